package reminder

import (
	"context"
	"time"
)

// NoteStore is the persistence the reminder engine needs. GetNote returns
// (nil, nil) for a missing note.
type NoteStore interface {
	GetNote(ctx context.Context, noteID int64) (*Note, error)
	UpdateDueDate(ctx context.Context, noteID int64, due *time.Time) error
	SetRecurrenceRule(ctx context.Context, noteID int64, rule *string) error
	IncrementSnoozeCount(ctx context.Context, noteID int64) error
	SetCompleted(ctx context.Context, noteID int64, completed bool) error

	// GetNotesWithFutureReminders lists active notes due after now.
	GetNotesWithFutureReminders(ctx context.Context, now time.Time) ([]Note, error)
	// GetOverdueRecurringNotes lists active recurring notes due before cutoff.
	GetOverdueRecurringNotes(ctx context.Context, cutoff time.Time) ([]Note, error)
}

// ProfileStore returns (nil, nil) for an unknown user.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID int64) (*UserProfile, error)
}

// Action is an inline button attached to a reminder message.
type Action struct {
	Label string
	Data  string
}

// Message is a chat message addressed to one user.
type Message struct {
	Text    string
	Actions [][]Action
}

// Sender delivers reminders. SendPush is best-effort and reports nothing.
type Sender interface {
	SendMessage(ctx context.Context, userID int64, msg Message) error
	SendPush(ctx context.Context, userID int64, title, body string, data map[string]string)
}
