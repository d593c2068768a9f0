package notifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"remindbot/internal/clock"
	"remindbot/internal/eventbus"
	"remindbot/internal/reminder"
	kit "remindbot/internal/transport"
	logx "remindbot/pkg/logx"
)

type sentText struct {
	to   kit.ChatTarget
	text string
	opt  *kit.SendOptions
}

type fakeAdapter struct {
	mu   sync.Mutex
	sent []sentText
	err  error
}

func (f *fakeAdapter) Start(context.Context, chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(context.Context) error                     { return nil }

func (f *fakeAdapter) SendText(_ context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return kit.MessageRef{}, f.err
	}
	f.sent = append(f.sent, sentText{to: to, text: text, opt: opt})
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(f.sent)}, nil
}

func (f *fakeAdapter) EditText(context.Context, kit.MessageRef, string, *kit.SendOptions) error {
	return nil
}

func (f *fakeAdapter) AnswerCallback(context.Context, string, string) error { return nil }

func (f *fakeAdapter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type memDedup struct {
	mu sync.Mutex
	m  map[string]time.Time
}

func (d *memDedup) GetDedup(_ context.Context, key string) (time.Time, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.m[key]
	return t, ok, nil
}

func (d *memDedup) PutDedup(_ context.Context, key string, until time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.m[key] = until
	return nil
}

func (d *memDedup) len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.m)
}

type fakePusher struct {
	calls int
	err   error
}

func (p *fakePusher) SendToUser(context.Context, int64, string, string, map[string]string) (int, error) {
	p.calls++
	return 1, p.err
}

var t0 = time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

func TestSendMessageAttachesButtons(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{}
	bus := eventbus.New()
	events, unsub := bus.Subscribe(4)
	defer unsub()

	svc := New(Config{Enabled: true}, ad, logx.Nop(), WithBus(bus), WithClock(clock.NewFake(t0)))
	msg := reminder.Message{Text: "❗ REMINDER", Actions: reminder.ReminderActions(9)}
	if err := svc.SendMessage(context.Background(), 42, msg); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	if ad.count() != 1 {
		t.Fatalf("sent = %d", ad.count())
	}
	got := ad.sent[0]
	if got.to.ChatID != 42 || got.text != msg.Text {
		t.Fatalf("sent %+v", got)
	}
	if len(got.opt.Buttons) != 2 || got.opt.Buttons[1][0].Data != "rem|done|9" {
		t.Fatalf("buttons = %+v", got.opt.Buttons)
	}
	if ev := <-events; ev.Type != eventbus.NotifySent {
		t.Fatalf("event = %s", ev.Type)
	}
	if h := svc.History(); len(h) != 1 || h[0].UserID != 42 {
		t.Fatalf("history = %+v", h)
	}
}

func TestSendMessageDisabled(t *testing.T) {
	t.Parallel()
	svc := New(Config{}, &fakeAdapter{}, logx.Nop())
	if err := svc.SendMessage(context.Background(), 1, reminder.Message{Text: "x"}); !errors.Is(err, ErrDisabled) {
		t.Fatalf("err = %v, want ErrDisabled", err)
	}
}

func TestDedupWindow(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{}
	fc := clock.NewFake(t0)
	svc := New(Config{Enabled: true, DedupWindow: time.Minute}, ad, logx.Nop(), WithClock(fc))
	ctx := context.Background()
	msg := reminder.Message{Text: "same"}

	_ = svc.SendMessage(ctx, 1, msg)
	_ = svc.SendMessage(ctx, 1, msg)
	_ = svc.SendMessage(ctx, 2, msg)
	if ad.count() != 2 {
		t.Fatalf("sent = %d, want 2 (duplicate for user 1 suppressed)", ad.count())
	}

	fc.Advance(time.Minute)
	_ = svc.SendMessage(ctx, 1, msg)
	if ad.count() != 3 {
		t.Fatalf("sent = %d, want 3 after window", ad.count())
	}
}

func TestFailedSendDoesNotArmDedup(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{err: errors.New("blocked by user")}
	svc := New(Config{Enabled: true, DedupWindow: time.Hour}, ad, logx.Nop(), WithClock(clock.NewFake(t0)))
	ctx := context.Background()

	if err := svc.SendMessage(ctx, 1, reminder.Message{Text: "x"}); err == nil {
		t.Fatal("expected send error")
	}
	ad.mu.Lock()
	ad.err = nil
	ad.mu.Unlock()
	if err := svc.SendMessage(ctx, 1, reminder.Message{Text: "x"}); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if ad.count() != 1 {
		t.Fatalf("sent = %d", ad.count())
	}
}

func TestPersistedDedupSurvivesRestart(t *testing.T) {
	t.Parallel()
	store := &memDedup{m: map[string]time.Time{}}
	cfg := Config{Enabled: true, DedupWindow: time.Hour, PersistDedup: true}
	ctx := context.Background()
	msg := reminder.Message{Text: "water plants"}

	first := New(cfg, &fakeAdapter{}, logx.Nop(), WithDedupStore(store), WithClock(clock.NewFake(t0)))
	first.Start(ctx)
	if err := first.SendMessage(ctx, 5, msg); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := first.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if store.len() != 1 {
		t.Fatalf("persisted = %d, want 1", store.len())
	}

	ad := &fakeAdapter{}
	second := New(cfg, ad, logx.Nop(), WithDedupStore(store), WithClock(clock.NewFake(t0.Add(time.Minute))))
	if err := second.SendMessage(ctx, 5, msg); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if ad.count() != 0 {
		t.Fatal("restart should not resend a message inside the window")
	}
}

func TestSendPushIsBestEffort(t *testing.T) {
	t.Parallel()
	p := &fakePusher{err: errors.New("gateway down")}
	svc := New(Config{Enabled: true}, &fakeAdapter{}, logx.Nop(), WithPusher(p))
	svc.SendPush(context.Background(), 1, "❗ Reminder", "x", nil)
	if p.calls != 1 {
		t.Fatalf("push calls = %d", p.calls)
	}

	// no pusher configured
	New(Config{Enabled: true}, &fakeAdapter{}, logx.Nop()).SendPush(context.Background(), 1, "t", "b", nil)
}
