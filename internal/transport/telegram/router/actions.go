package router

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"remindbot/internal/reminder"
	"remindbot/internal/storage"
	kit "remindbot/internal/transport"
	logx "remindbot/pkg/logx"
)

const statusSep = "\n\n» "

// handleAction applies a reminder button. Only the note owner may press it.
func (r *Router) handleAction(ctx context.Context, req *Request, act reminder.ParsedAction) error {
	cb := req.Update.Callback
	answer := func(text string) { _ = r.deps.Adapter.AnswerCallback(ctx, cb.ID, text) }

	note, err := r.deps.Notes.GetNote(ctx, act.NoteID)
	if err != nil {
		answer("Something went wrong, try again")
		return err
	}
	if note == nil || note.OwnerID != req.FromID {
		answer("Reminder not found")
		return nil
	}
	tz := r.timezone(ctx, note.OwnerID)

	var status string
	switch act.Kind {
	case reminder.ActionSnooze:
		due, err := r.deps.Reminders.Snooze(ctx, act.NoteID, act.Minutes)
		if errors.Is(err, reminder.ErrNotFound) {
			answer("Reminder not found")
			return nil
		}
		if err != nil {
			answer("Could not snooze, try again")
			return err
		}
		answer("⏰ Snoozed")
		status = "⏰ Snoozed until " + reminder.FormatDue(due, tz)
	case reminder.ActionDone:
		recurring, err := r.deps.Reminders.Complete(ctx, act.NoteID)
		if errors.Is(err, reminder.ErrNotFound) {
			answer("Reminder not found")
			return nil
		}
		if err != nil {
			answer("Could not complete, try again")
			return err
		}
		if recurring {
			answer("🔁 Next occurrence stays scheduled")
			status = "✅ Done, series continues"
		} else {
			answer("✅ Done")
			status = "✅ Done"
		}
	default:
		answer("")
		return nil
	}

	ref := kit.MessageRef{ChatID: cb.ChatID, MessageID: cb.MessageID}
	// no buttons: the keyboard is removed once the reminder was handled
	if err := r.deps.Adapter.EditText(ctx, ref, withStatus(cb.MessageText, status), nil); err != nil {
		req.Logger.Debug("reminder message not edited", logx.Err(err))
	}
	r.record(ctx, req, act)
	return nil
}

func (r *Router) timezone(ctx context.Context, userID int64) string {
	if r.deps.Profiles == nil {
		return "UTC"
	}
	p, err := r.deps.Profiles.GetProfile(ctx, userID)
	if err != nil || p == nil || p.Timezone == "" {
		return "UTC"
	}
	return p.Timezone
}

func (r *Router) record(ctx context.Context, req *Request, act reminder.ParsedAction) {
	if r.deps.Actions == nil {
		return
	}
	meta := ""
	if act.Kind == reminder.ActionSnooze {
		b, _ := json.Marshal(map[string]int{"minutes": act.Minutes})
		meta = string(b)
	}
	err := r.deps.Actions.AppendAction(ctx, storage.UserAction{
		UserID:   req.FromID,
		Action:   string(act.Kind),
		NoteID:   act.NoteID,
		MetaJSON: meta,
	})
	if err != nil {
		req.Logger.Warn("user action not recorded", logx.Note(act.NoteID), logx.Err(err))
	}
}

// withStatus replaces any previous status line under a reminder text.
func withStatus(text, status string) string {
	if i := strings.Index(text, statusSep); i >= 0 {
		text = text[:i]
	}
	return strings.TrimRight(text, "\n") + statusSep + status
}
