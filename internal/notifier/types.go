package notifier

import (
	"context"
	"time"
)

// Config controls chat delivery.
type Config struct {
	Enabled         bool
	RatePerSec      int
	SendTimeout     time.Duration
	DedupWindow     time.Duration
	DedupMaxEntries int
	PersistDedup    bool
}

type HistoryItem struct {
	At     time.Time
	UserID int64
	Text   string
}

// NotificationEvent is the Data of notifier bus events.
type NotificationEvent struct {
	UserID int64     `json:"user_id"`
	Key    string    `json:"key"`
	At     time.Time `json:"at"`
	Error  string    `json:"error,omitempty"`
}

// DedupStore persists suppression windows across restarts.
type DedupStore interface {
	GetDedup(ctx context.Context, key string) (time.Time, bool, error)
	PutDedup(ctx context.Context, key string, until time.Time) error
}

// Pusher sends a push notification to every device of a user.
type Pusher interface {
	SendToUser(ctx context.Context, userID int64, title, body string, data map[string]string) (int, error)
}
