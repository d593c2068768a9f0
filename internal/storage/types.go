package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures the SQLite store.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means 5s
}

// NewNote is the input of CreateNote.
type NewNote struct {
	OwnerID        int64
	Text           string
	DueDate        *time.Time
	RecurrenceRule string
}

// UserAction records something a user did to a reminder (snooze, done).
type UserAction struct {
	At       time.Time
	UserID   int64
	Action   string
	NoteID   int64
	MetaJSON string
}

// Device is a registered push token.
type Device struct {
	UserID   int64
	Token    string
	Platform string
}
