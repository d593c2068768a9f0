package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"remindbot/internal/reminder"
	logx "remindbot/pkg/logx"
)

type flakyNotes struct {
	reminder.NoteStore
	failures int
	err      error
	calls    int
}

func (f *flakyNotes) UpdateDueDate(context.Context, int64, *time.Time) error {
	f.calls++
	if f.calls <= f.failures {
		return f.err
	}
	return nil
}

func TestWithRetryRecoversTransientFailure(t *testing.T) {
	t.Parallel()
	inner := &flakyNotes{failures: 2, err: errors.New("database is locked")}
	ns := WithRetry(inner, RetryConfig{Attempts: 3, Delay: time.Millisecond}, logx.Nop())

	if err := ns.UpdateDueDate(context.Background(), 1, nil); err != nil {
		t.Fatalf("UpdateDueDate: %v", err)
	}
	if inner.calls != 3 {
		t.Fatalf("calls = %d, want 3", inner.calls)
	}
}

func TestWithRetryGivesUp(t *testing.T) {
	t.Parallel()
	boom := errors.New("disk I/O error")
	inner := &flakyNotes{failures: 10, err: boom}
	ns := WithRetry(inner, RetryConfig{Attempts: 2, Delay: time.Millisecond}, logx.Nop())

	if err := ns.UpdateDueDate(context.Background(), 1, nil); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if inner.calls != 2 {
		t.Fatalf("calls = %d, want 2", inner.calls)
	}
}

func TestWithRetrySkipsNotFound(t *testing.T) {
	t.Parallel()
	inner := &flakyNotes{failures: 10, err: &reminder.NotFoundError{NoteID: 1}}
	ns := WithRetry(inner, RetryConfig{Attempts: 5, Delay: time.Millisecond}, logx.Nop())

	err := ns.UpdateDueDate(context.Background(), 1, nil)
	var nf *reminder.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("err = %v, want *NotFoundError", err)
	}
	if inner.calls != 1 {
		t.Fatalf("calls = %d, want 1", inner.calls)
	}
}
