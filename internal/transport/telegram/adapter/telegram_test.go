package adapter

import (
	"strings"
	"testing"

	kit "remindbot/internal/transport"
)

func TestSplitTelegramText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		in        string
		limit     int
		parseMode string
		want      []string
	}{
		{name: "short", in: "hello", limit: 10, want: []string{"hello"}},
		{name: "newline boundary", in: "aaaa\nbbbb\ncccc", limit: 10, want: []string{"aaaa\nbbbb", "cccc"}},
		{name: "hard cut", in: strings.Repeat("x", 25), limit: 10, want: []string{
			strings.Repeat("x", 10), strings.Repeat("x", 10), strings.Repeat("x", 5),
		}},
		{name: "html tag kept whole", in: "abcdefg<i>", limit: 8, parseMode: "HTML", want: []string{"abcdefg", "<i>"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := splitTelegramText(tt.in, tt.limit, tt.parseMode)
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Fatalf("splitTelegramText = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSplitKeepsRunes(t *testing.T) {
	t.Parallel()
	in := strings.Repeat("🔔", 15)
	got := splitTelegramText(in, 10, "")
	if len(got) != 2 || strings.Join(got, "") != in {
		t.Fatalf("split broke runes: %q", got)
	}
}

func TestInlineMarkup(t *testing.T) {
	t.Parallel()
	if inlineMarkup(nil) != nil {
		t.Fatal("nil buttons should produce no markup")
	}
	if inlineMarkup([][]kit.Button{{}}) != nil {
		t.Fatal("empty rows should produce no markup")
	}
	rm := inlineMarkup([][]kit.Button{
		{{Text: "⏰ +1h", Data: "rem|snooze|3|60"}, {Text: "⏰ +3h", Data: "rem|snooze|3|180"}},
		{{Text: "✅ Done", Data: "rem|done|3"}},
	})
	if rm == nil || len(rm.InlineKeyboard) != 2 || len(rm.InlineKeyboard[0]) != 2 {
		t.Fatalf("unexpected markup %+v", rm)
	}
	if rm.InlineKeyboard[1][0].Data != "rem|done|3" {
		t.Fatalf("data = %q", rm.InlineKeyboard[1][0].Data)
	}
}
