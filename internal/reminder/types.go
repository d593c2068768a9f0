package reminder

import (
	"fmt"
	"strings"
	"time"
)

// Note is the subset of a stored note the reminder engine reads.
type Note struct {
	ID             int64
	OwnerID        int64
	Text           string
	DueDate        *time.Time // UTC; nil when the note has no reminder
	RecurrenceRule string     // empty when not recurring
	IsCompleted    bool
	IsArchived     bool
	SnoozeCount    int
}

// Active reports whether the note may still produce reminders.
func (n Note) Active() bool { return !n.IsCompleted && !n.IsArchived }

// Recurring reports whether the note carries a recurrence rule.
func (n Note) Recurring() bool { return strings.TrimSpace(n.RecurrenceRule) != "" }

// UserProfile is read-only here.
type UserProfile struct {
	UserID              int64
	Timezone            string
	DefaultReminderTime *ClockTime // nil when the user never set one
	PreReminderMinutes  int
	IsVIP               bool
}

// Location resolves the profile timezone, falling back to UTC.
func (p UserProfile) Location() *time.Location {
	return LoadLocation(p.Timezone)
}

// PreReminderLead is the pre-reminder offset, or 0 when the profile has none.
func (p UserProfile) PreReminderLead() time.Duration {
	if !p.IsVIP || p.PreReminderMinutes <= 0 {
		return 0
	}
	return time.Duration(p.PreReminderMinutes) * time.Minute
}

// TimeComponents is the structured form of a time mention produced upstream.
// Relative offsets apply first, absolute fields overlay the result.
type TimeComponents struct {
	OriginalMention string

	RelativeDays    *int
	RelativeHours   *int
	RelativeMinutes *int

	Year   *int
	Month  *int
	Day    *int
	Hour   *int
	Minute *int

	IsTodayExplicit bool
}

type Kind string

const (
	KindMain Kind = "main"
	KindPre  Kind = "pre"
)

// JobKey identifies a reminder job. At most one job exists per key.
type JobKey struct {
	NoteID int64
	Kind   Kind
}

func (k JobKey) String() string { return fmt.Sprintf("note:%d:%s", k.NoteID, k.Kind) }

// Payload is what a fired job hands to the dispatcher.
type Payload struct {
	NoteID        int64
	RecipientID   int64
	Text          string
	DueDate       time.Time
	IsPreReminder bool
}

// Kind derives the job kind from the payload.
func (p Payload) Kind() Kind {
	if p.IsPreReminder {
		return KindPre
	}
	return KindMain
}

// PendingJob describes a scheduled, not yet fired reminder.
type PendingJob struct {
	Key     JobKey    `json:"-"`
	Name    string    `json:"name"`
	NoteID  int64     `json:"note_id"`
	Kind    Kind      `json:"kind"`
	RunAt   time.Time `json:"run_at"`
	Payload Payload   `json:"-"`
}
