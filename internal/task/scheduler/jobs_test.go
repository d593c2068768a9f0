package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"remindbot/internal/clock"
	"remindbot/internal/eventbus"
	"remindbot/internal/reminder"
	logx "remindbot/pkg/logx"
)

type fired struct {
	mu    sync.Mutex
	items []reminder.Payload
}

func (f *fired) handler(_ context.Context, p reminder.Payload) error {
	f.mu.Lock()
	f.items = append(f.items, p)
	f.mu.Unlock()
	return nil
}

func (f *fired) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

var t0 = time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

func newTestScheduler(t *testing.T) (*Service, *clock.Fake, *fired) {
	t.Helper()
	fc := clock.NewFake(t0)
	s := New(Config{Enabled: true, Timezone: "UTC"}, nil, logx.Nop(), eventbus.New(), WithClock(fc))
	f := &fired{}
	s.SetFireHandler(f.handler, time.Second)
	s.Start(context.Background())
	t.Cleanup(func() { s.Stop(context.Background()) })
	return s, fc, f
}

func mainKey(id int64) reminder.JobKey { return reminder.JobKey{NoteID: id, Kind: reminder.KindMain} }
func preKey(id int64) reminder.JobKey  { return reminder.JobKey{NoteID: id, Kind: reminder.KindPre} }

func TestAddOrReplaceFiresOnce(t *testing.T) {
	t.Parallel()
	s, fc, f := newTestScheduler(t)

	ok, err := s.AddOrReplace(mainKey(1), t0.Add(time.Hour), reminder.Payload{NoteID: 1, Text: "a"})
	if err != nil || !ok {
		t.Fatalf("AddOrReplace = %v, %v", ok, err)
	}
	fc.Advance(59 * time.Minute)
	if f.count() != 0 {
		t.Fatalf("fired early")
	}
	fc.Advance(time.Minute)
	if f.count() != 1 {
		t.Fatalf("fired = %d, want 1", f.count())
	}
	if !s.IsEmpty() {
		t.Fatalf("job should be removed after firing")
	}
	fc.Advance(24 * time.Hour)
	if f.count() != 1 {
		t.Fatalf("fired again: %d", f.count())
	}
}

func TestAddOrReplaceKeepsOneJobPerKey(t *testing.T) {
	t.Parallel()
	s, fc, f := newTestScheduler(t)

	_, _ = s.AddOrReplace(mainKey(1), t0.Add(time.Hour), reminder.Payload{NoteID: 1, Text: "old"})
	_, _ = s.AddOrReplace(mainKey(1), t0.Add(2*time.Hour), reminder.Payload{NoteID: 1, Text: "new"})

	if got := len(s.ListPending()); got != 1 {
		t.Fatalf("pending = %d, want 1", got)
	}
	fc.Advance(90 * time.Minute)
	if f.count() != 0 {
		t.Fatalf("replaced job fired")
	}
	fc.Advance(time.Hour)
	if f.count() != 1 || f.items[0].Text != "new" {
		t.Fatalf("fired = %+v", f.items)
	}
}

func TestAddOrReplacePastTimeIsNotScheduled(t *testing.T) {
	t.Parallel()
	s, _, _ := newTestScheduler(t)

	_, _ = s.AddOrReplace(mainKey(3), t0.Add(time.Hour), reminder.Payload{NoteID: 3})
	for _, at := range []time.Time{t0, t0.Add(-time.Minute)} {
		ok, err := s.AddOrReplace(mainKey(3), at, reminder.Payload{NoteID: 3})
		if err != nil || ok {
			t.Fatalf("AddOrReplace(%v) = %v, %v; want false, nil", at, ok, err)
		}
	}
	if !s.IsEmpty() {
		t.Fatalf("old job must be dropped when the replacement is in the past")
	}
}

func TestAddOrReplaceRejectsBadKey(t *testing.T) {
	t.Parallel()
	s, _, _ := newTestScheduler(t)
	if _, err := s.AddOrReplace(reminder.JobKey{NoteID: 0, Kind: reminder.KindMain}, t0.Add(time.Hour), reminder.Payload{}); err == nil {
		t.Fatal("expected error for note id 0")
	}
	if _, err := s.AddOrReplace(reminder.JobKey{NoteID: 1, Kind: "later"}, t0.Add(time.Hour), reminder.Payload{}); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestRemovePreventsFire(t *testing.T) {
	t.Parallel()
	s, fc, f := newTestScheduler(t)

	_, _ = s.AddOrReplace(mainKey(4), t0.Add(time.Minute), reminder.Payload{NoteID: 4})
	if !s.Remove(mainKey(4)) {
		t.Fatal("Remove reported no job")
	}
	if s.Remove(mainKey(4)) {
		t.Fatal("second Remove should report false")
	}
	fc.Advance(time.Hour)
	if f.count() != 0 {
		t.Fatalf("removed job fired")
	}
}

func TestRemoveByNoteDropsBothKinds(t *testing.T) {
	t.Parallel()
	s, _, _ := newTestScheduler(t)

	_, _ = s.AddOrReplace(mainKey(5), t0.Add(time.Hour), reminder.Payload{NoteID: 5})
	_, _ = s.AddOrReplace(preKey(5), t0.Add(30*time.Minute), reminder.Payload{NoteID: 5, IsPreReminder: true})
	_, _ = s.AddOrReplace(mainKey(6), t0.Add(time.Hour), reminder.Payload{NoteID: 6})

	if n := s.RemoveByNote(5); n != 2 {
		t.Fatalf("RemoveByNote = %d, want 2", n)
	}
	if n := s.RemoveByNote(5); n != 0 {
		t.Fatalf("second RemoveByNote = %d, want 0", n)
	}
	if _, ok := s.Pending(mainKey(6)); !ok {
		t.Fatal("other note's job must survive")
	}
}

func TestListPendingOrdersByRunTime(t *testing.T) {
	t.Parallel()
	s, _, _ := newTestScheduler(t)

	_, _ = s.AddOrReplace(mainKey(7), t0.Add(3*time.Hour), reminder.Payload{NoteID: 7})
	_, _ = s.AddOrReplace(preKey(7), t0.Add(2*time.Hour), reminder.Payload{NoteID: 7, IsPreReminder: true})
	_, _ = s.AddOrReplace(mainKey(8), t0.Add(time.Hour), reminder.Payload{NoteID: 8})

	got := s.ListPending()
	want := []string{"note:8:main", "note:7:pre", "note:7:main"}
	if len(got) != len(want) {
		t.Fatalf("pending = %d, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].Name != w {
			t.Fatalf("pending[%d] = %s, want %s", i, got[i].Name, w)
		}
	}
}

func TestStopDisarmsAndStartRearms(t *testing.T) {
	t.Parallel()
	s, fc, f := newTestScheduler(t)

	_, _ = s.AddOrReplace(mainKey(9), t0.Add(time.Hour), reminder.Payload{NoteID: 9})
	s.Stop(context.Background())
	fc.Advance(2 * time.Hour)
	if f.count() != 0 {
		t.Fatal("stopped scheduler fired a job")
	}
	if _, ok := s.Pending(mainKey(9)); !ok {
		t.Fatal("job must survive Stop")
	}

	_, _ = s.AddOrReplace(mainKey(19), t0.Add(3*time.Hour), reminder.Payload{NoteID: 19})
	s.Start(context.Background())
	fc.Advance(0)
	if f.count() != 0 {
		t.Fatalf("stale job fired on re-arm, fired = %d", f.count())
	}
	if _, ok := s.Pending(mainKey(9)); ok {
		t.Fatal("stale job should be dropped on re-arm")
	}
	if _, ok := s.Pending(mainKey(19)); !ok {
		t.Fatal("future job lost on re-arm")
	}
	fc.Advance(time.Hour)
	if f.count() != 1 {
		t.Fatalf("future job fired = %d, want 1", f.count())
	}
}

func TestJobsAddedBeforeStartWaitForStart(t *testing.T) {
	t.Parallel()
	fc := clock.NewFake(t0)
	s := New(Config{Enabled: true}, nil, logx.Nop(), nil, WithClock(fc))
	f := &fired{}
	s.SetFireHandler(f.handler, 0)

	_, _ = s.AddOrReplace(mainKey(10), t0.Add(time.Minute), reminder.Payload{NoteID: 10})
	fc.Advance(30 * time.Second)
	if f.count() != 0 {
		t.Fatal("job fired before Start")
	}
	s.Start(context.Background())
	defer s.Stop(context.Background())
	fc.Advance(30 * time.Second)
	if f.count() != 1 {
		t.Fatalf("fired = %d, want 1", f.count())
	}
}

func TestHandlerCanRescheduleSameKey(t *testing.T) {
	t.Parallel()
	fc := clock.NewFake(t0)
	s := New(Config{Enabled: true}, nil, logx.Nop(), nil, WithClock(fc))
	var runs int
	s.SetFireHandler(func(_ context.Context, p reminder.Payload) error {
		runs++
		if runs < 3 {
			_, err := s.AddOrReplace(mainKey(p.NoteID), fc.Now().Add(time.Minute), p)
			return err
		}
		return nil
	}, time.Second)
	s.Start(context.Background())
	defer s.Stop(context.Background())

	_, _ = s.AddOrReplace(mainKey(11), t0.Add(time.Minute), reminder.Payload{NoteID: 11})
	fc.Advance(10 * time.Minute)
	if runs != 3 {
		t.Fatalf("runs = %d, want 3", runs)
	}
	if !s.IsEmpty() {
		t.Fatal("chain should end empty")
	}
}

func TestEventsPublished(t *testing.T) {
	t.Parallel()
	fc := clock.NewFake(t0)
	bus := eventbus.New()
	ch, unsub := bus.Subscribe(16)
	defer unsub()

	s := New(Config{Enabled: true}, nil, logx.Nop(), bus, WithClock(fc))
	s.SetFireHandler(func(context.Context, reminder.Payload) error { return nil }, 0)
	s.Start(context.Background())
	defer s.Stop(context.Background())

	_, _ = s.AddOrReplace(mainKey(12), t0.Add(time.Minute), reminder.Payload{NoteID: 12})
	fc.Advance(time.Minute)

	var types []string
	for len(types) < 2 {
		select {
		case ev := <-ch:
			types = append(types, ev.Type)
		case <-time.After(time.Second):
			t.Fatalf("events = %v", types)
		}
	}
	if types[0] != eventbus.ReminderScheduled || types[1] != eventbus.ReminderFired {
		t.Fatalf("events = %v", types)
	}
}
