package reminder

import (
	"fmt"
	"strconv"
	"strings"
)

// Callback payloads carried by reminder buttons: "rem|snooze|<note>|<min>"
// and "rem|done|<note>". Telegram caps callback data at 64 bytes.
const actionPrefix = "rem"

type ActionKind string

const (
	ActionSnooze ActionKind = "snooze"
	ActionDone   ActionKind = "done"
)

// SnoozeChoices are the snooze buttons offered on every reminder, in minutes.
var SnoozeChoices = []int{60, 180}

// MaxSnoozeMinutes caps a single snooze at one leap year.
const MaxSnoozeMinutes = 366 * 24 * 60

// ReminderActions builds the inline keyboard for a reminder message.
func ReminderActions(noteID int64) [][]Action {
	row := make([]Action, 0, len(SnoozeChoices))
	for _, m := range SnoozeChoices {
		row = append(row, Action{Label: snoozeLabel(m), Data: EncodeAction(ActionSnooze, noteID, m)})
	}
	return [][]Action{
		row,
		{{Label: "✅ Done", Data: EncodeAction(ActionDone, noteID, 0)}},
	}
}

func snoozeLabel(minutes int) string {
	if minutes%60 == 0 {
		return fmt.Sprintf("⏰ +%dh", minutes/60)
	}
	return fmt.Sprintf("⏰ +%dm", minutes)
}

func EncodeAction(kind ActionKind, noteID int64, minutes int) string {
	if kind == ActionSnooze {
		return fmt.Sprintf("%s|%s|%d|%d", actionPrefix, kind, noteID, minutes)
	}
	return fmt.Sprintf("%s|%s|%d", actionPrefix, kind, noteID)
}

// ParsedAction is a decoded button payload.
type ParsedAction struct {
	Kind    ActionKind
	NoteID  int64
	Minutes int
}

// DecodeAction parses callback data produced by EncodeAction.
func DecodeAction(data string) (ParsedAction, error) {
	parts := strings.Split(strings.TrimSpace(data), "|")
	if len(parts) < 3 || parts[0] != actionPrefix {
		return ParsedAction{}, fmt.Errorf("not a reminder action: %q", data)
	}
	id, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil || id <= 0 {
		return ParsedAction{}, fmt.Errorf("bad note id in %q", data)
	}
	switch ActionKind(parts[1]) {
	case ActionDone:
		if len(parts) != 3 {
			return ParsedAction{}, fmt.Errorf("bad done action %q", data)
		}
		return ParsedAction{Kind: ActionDone, NoteID: id}, nil
	case ActionSnooze:
		if len(parts) != 4 {
			return ParsedAction{}, fmt.Errorf("bad snooze action %q", data)
		}
		m, err := strconv.Atoi(parts[3])
		if err != nil || m <= 0 || m > MaxSnoozeMinutes {
			return ParsedAction{}, fmt.Errorf("bad snooze minutes in %q", data)
		}
		return ParsedAction{Kind: ActionSnooze, NoteID: id, Minutes: m}, nil
	default:
		return ParsedAction{}, fmt.Errorf("unknown reminder action %q", parts[1])
	}
}
