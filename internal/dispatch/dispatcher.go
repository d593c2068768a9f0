// Package dispatch turns a fired reminder job into a chat message and a push
// notification, and advances recurring notes to their next occurrence.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"remindbot/internal/reminder"
	"remindbot/internal/task/engine"
	logx "remindbot/pkg/logx"
)

// Advancer moves a recurring note to its next occurrence. lifecycle.Manager
// implements it.
type Advancer interface {
	Advance(ctx context.Context, note reminder.Note, profile reminder.UserProfile) (time.Time, bool)
}

type Dispatcher struct {
	notes    reminder.NoteStore
	profiles reminder.ProfileStore
	sender   reminder.Sender
	series   Advancer
	log      logx.Logger
}

func New(notes reminder.NoteStore, profiles reminder.ProfileStore, sender reminder.Sender, series Advancer, log logx.Logger) *Dispatcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Dispatcher{
		notes:    notes,
		profiles: profiles,
		sender:   sender,
		series:   series,
		log:      log.With(logx.String("comp", "dispatch")),
	}
}

// Fire delivers one reminder. An error is returned only before anything was
// sent, so a retry never double-delivers. A note the store reports as not
// found fails with engine.NoRetry.
func (d *Dispatcher) Fire(ctx context.Context, p reminder.Payload) error {
	log := d.log.With(logx.Note(p.NoteID), logx.String("kind", string(p.Kind())))

	note, err := d.notes.GetNote(ctx, p.NoteID)
	if err != nil {
		err = fmt.Errorf("load note %d: %w", p.NoteID, err)
		if errors.Is(err, reminder.ErrNotFound) {
			// deleted between scheduling and firing; a retry finds the same
			return engine.NoRetry(err)
		}
		return err
	}
	switch {
	case note == nil:
		log.Info("reminder dropped: note gone")
		return nil
	case !note.Active():
		log.Info("reminder dropped: note inactive", logx.Bool("completed", note.IsCompleted), logx.Bool("archived", note.IsArchived))
		return nil
	case note.DueDate == nil:
		log.Info("reminder dropped: due date cleared")
		return nil
	case p.RecipientID != 0 && note.OwnerID != p.RecipientID:
		log.Warn("reminder dropped: owner changed", logx.Int64("recipient", p.RecipientID), logx.Int64("owner", note.OwnerID))
		return nil
	}

	profile := d.loadProfile(ctx, note.OwnerID, log)

	msg := reminder.Message{
		Text:    FormatMessage(*note, profile.Timezone, p.IsPreReminder),
		Actions: reminder.ReminderActions(note.ID),
	}
	if err := d.sender.SendMessage(ctx, note.OwnerID, msg); err != nil {
		log.Warn("reminder message not delivered", logx.Int64("user", note.OwnerID), logx.Err(err))
	} else {
		log.Info("reminder sent", logx.Int64("user", note.OwnerID))
	}
	d.sender.SendPush(ctx, note.OwnerID, pushTitle(p.IsPreReminder), note.Text, map[string]string{
		"noteId": strconv.FormatInt(note.ID, 10),
	})

	if p.IsPreReminder || !note.Recurring() {
		return nil
	}
	if next, ok := d.series.Advance(ctx, *note, profile); ok {
		log.Debug("series continues", logx.Time("next", next))
	}
	return nil
}

// loadProfile never fails: a missing or unreadable profile yields a free
// UTC profile.
func (d *Dispatcher) loadProfile(ctx context.Context, userID int64, log logx.Logger) reminder.UserProfile {
	p, err := d.profiles.GetProfile(ctx, userID)
	if err != nil {
		log.Warn("profile unavailable; using UTC", logx.Int64("user", userID), logx.Err(err))
	}
	if p == nil {
		return reminder.UserProfile{UserID: userID, Timezone: "UTC"}
	}
	return *p
}

// FormatMessage renders the reminder text shown in chat.
func FormatMessage(note reminder.Note, tz string, pre bool) string {
	header := "❗ REMINDER"
	if pre {
		header = "🔔 Pre-reminder"
	}
	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Note: #%d\n", note.ID)
	if note.DueDate != nil {
		fmt.Fprintf(&b, "Due: %s\n", reminder.FormatDue(*note.DueDate, tz))
	}
	b.WriteString("\n📝 ")
	b.WriteString(note.Text)
	return b.String()
}

func pushTitle(pre bool) string {
	if pre {
		return "📌 Reminder"
	}
	return "❗ Reminder"
}
