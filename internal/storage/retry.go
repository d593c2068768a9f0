package storage

import (
	"context"
	"errors"
	"time"

	"github.com/avast/retry-go"

	"remindbot/internal/reminder"
	logx "remindbot/pkg/logx"
)

// RetryConfig bounds write retries. Attempts counts the first try.
type RetryConfig struct {
	Attempts uint
	Delay    time.Duration
}

// retryingNotes retries transient write failures of a NoteStore with
// exponential backoff. Reads and not-found errors pass straight through.
type retryingNotes struct {
	reminder.NoteStore
	cfg RetryConfig
	log logx.Logger
}

// WithRetry wraps ns so UpdateDueDate, SetRecurrenceRule, SetCompleted and
// IncrementSnoozeCount are retried.
func WithRetry(ns reminder.NoteStore, cfg RetryConfig, log logx.Logger) reminder.NoteStore {
	if cfg.Attempts == 0 {
		cfg.Attempts = 3
	}
	if cfg.Delay <= 0 {
		cfg.Delay = 200 * time.Millisecond
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &retryingNotes{NoteStore: ns, cfg: cfg, log: log}
}

func (r *retryingNotes) UpdateDueDate(ctx context.Context, noteID int64, due *time.Time) error {
	return r.do(ctx, "update_due_date", noteID, func() error { return r.NoteStore.UpdateDueDate(ctx, noteID, due) })
}

func (r *retryingNotes) SetRecurrenceRule(ctx context.Context, noteID int64, rule *string) error {
	return r.do(ctx, "set_recurrence_rule", noteID, func() error { return r.NoteStore.SetRecurrenceRule(ctx, noteID, rule) })
}

func (r *retryingNotes) IncrementSnoozeCount(ctx context.Context, noteID int64) error {
	return r.do(ctx, "increment_snooze", noteID, func() error { return r.NoteStore.IncrementSnoozeCount(ctx, noteID) })
}

func (r *retryingNotes) SetCompleted(ctx context.Context, noteID int64, completed bool) error {
	return r.do(ctx, "set_completed", noteID, func() error { return r.NoteStore.SetCompleted(ctx, noteID, completed) })
}

func (r *retryingNotes) do(ctx context.Context, op string, noteID int64, fn func() error) error {
	return retry.Do(fn,
		retry.Context(ctx),
		retry.Attempts(r.cfg.Attempts),
		retry.Delay(r.cfg.Delay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, reminder.ErrNotFound) && !errors.Is(err, ErrDisabled) && ctx.Err() == nil
		}),
		retry.DelayType(func(n uint, err error, c *retry.Config) time.Duration {
			return retry.BackOffDelay(n, err, c)
		}),
		retry.OnRetry(func(n uint, err error) {
			r.log.Warn("note write failed; retrying", logx.String("op", op), logx.Note(noteID), logx.Uint64("attempt", uint64(n)+1), logx.Err(err))
		}),
	)
}
