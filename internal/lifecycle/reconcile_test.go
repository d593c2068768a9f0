package lifecycle

import (
	"context"
	"testing"
	"time"

	"remindbot/internal/reminder"
)

func TestReloadRegistersOnlyFutureActiveNotes(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.store.PutProfile(vip)
	f.store.PutNote(reminder.Note{ID: 1, OwnerID: 1, DueDate: ptr(now0.Add(3 * time.Hour))})
	f.store.PutNote(reminder.Note{ID: 2, OwnerID: 1, DueDate: ptr(now0.Add(-time.Hour))})
	f.store.PutNote(reminder.Note{ID: 3, OwnerID: 1, DueDate: ptr(now0.Add(time.Hour)), IsCompleted: true})
	f.store.PutNote(reminder.Note{ID: 4, OwnerID: 1, DueDate: ptr(now0.Add(time.Hour)), IsArchived: true})
	f.store.PutNote(reminder.Note{ID: 5, OwnerID: 1})
	f.store.PutNote(reminder.Note{ID: 6, OwnerID: 2, DueDate: ptr(now0.Add(time.Hour))})

	n, err := f.m.Reload(context.Background())
	if err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if n != 2 {
		t.Fatalf("Reload = %d, want 2", n)
	}
	got := map[string]bool{}
	for _, j := range f.jobs.ListPending() {
		got[j.Name] = true
	}
	want := map[string]bool{"note:1:main": true, "note:1:pre": true, "note:6:main": true}
	if len(got) != len(want) {
		t.Fatalf("pending = %v, want %v", got, want)
	}
	for k := range want {
		if !got[k] {
			t.Fatalf("missing %s in %v", k, got)
		}
	}
}

func TestReconcileRemovesOrphanJobs(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.store.PutNote(reminder.Note{ID: 1, OwnerID: 1, DueDate: ptr(now0.Add(time.Hour))})
	f.store.PutNote(reminder.Note{ID: 2, OwnerID: 1, DueDate: ptr(now0.Add(time.Hour))})
	if _, err := f.m.Reload(ctx); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	// archived behind the manager's back
	_ = f.store.SetArchived(ctx, 2, true)

	res, err := f.m.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if res.Registered != 1 || res.Removed != 1 {
		t.Fatalf("result = %+v", res)
	}
	if _, ok := f.job(2, reminder.KindMain); ok {
		t.Fatal("orphan job survived")
	}
	if _, ok := f.job(1, reminder.KindMain); !ok {
		t.Fatal("live job removed")
	}
}

func TestReconcileRepairsDriftedJob(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.store.PutNote(reminder.Note{ID: 1, OwnerID: 1, DueDate: ptr(now0.Add(time.Hour))})
	_, _ = f.m.Reload(ctx)

	moved := now0.Add(4 * time.Hour)
	_ = f.store.UpdateDueDate(ctx, 1, &moved)

	if _, err := f.m.Reconcile(ctx); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if j, ok := f.job(1, reminder.KindMain); !ok || !j.RunAt.Equal(moved) {
		t.Fatalf("main = %+v, %v", j, ok)
	}
}

func TestReconcileAdvancesStuckRecurringNotes(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.store.PutProfile(reminder.UserProfile{UserID: 1, IsVIP: true})
	f.store.PutProfile(reminder.UserProfile{UserID: 2})
	// fired yesterday but the next occurrence was never written
	f.store.PutNote(reminder.Note{ID: 1, OwnerID: 1, DueDate: ptr(now0.Add(-23 * time.Hour)), RecurrenceRule: "FREQ=DAILY"})
	// within the grace period: the fire may still be running
	f.store.PutNote(reminder.Note{ID: 2, OwnerID: 1, DueDate: ptr(now0.Add(-time.Minute)), RecurrenceRule: "FREQ=DAILY"})
	// owner no longer VIP
	f.store.PutNote(reminder.Note{ID: 3, OwnerID: 2, DueDate: ptr(now0.Add(-23 * time.Hour)), RecurrenceRule: "FREQ=DAILY"})

	res, err := f.m.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if res.Advanced != 1 || res.Ended != 1 {
		t.Fatalf("result = %+v", res)
	}

	want := now0.Add(time.Hour)
	if n, _ := f.store.Note(1); !n.DueDate.Equal(want) {
		t.Fatalf("note 1 due = %v, want %v", n.DueDate, want)
	}
	if j, ok := f.job(1, reminder.KindMain); !ok || !j.RunAt.Equal(want) {
		t.Fatalf("note 1 job = %+v, %v", j, ok)
	}
	if n, _ := f.store.Note(2); !n.DueDate.Equal(now0.Add(-time.Minute)) {
		t.Fatal("note inside the grace period must not move")
	}
	if n, _ := f.store.Note(3); n.Recurring() {
		t.Fatal("non-VIP series should end")
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.store.PutProfile(vip)
	f.store.PutNote(reminder.Note{ID: 1, OwnerID: 1, DueDate: ptr(now0.Add(2 * time.Hour))})

	_, _ = f.m.Reconcile(context.Background())
	first := f.jobs.ListPending()
	res, _ := f.m.Reconcile(context.Background())
	second := f.jobs.ListPending()

	if res.Removed != 0 || len(first) != len(second) || len(second) != 2 {
		t.Fatalf("first = %+v, second = %+v, res = %+v", first, second, res)
	}
}
