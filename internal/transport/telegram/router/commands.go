package router

import (
	"context"
	"fmt"
	"strings"

	"remindbot/internal/reminder"
	kit "remindbot/internal/transport"
)

const helpText = `I send you reminders for your notes.

/reminders lists what is scheduled
/help shows this message

Use the buttons under a reminder to snooze it or mark it done.`

func (r *Router) reply(ctx context.Context, req *Request, text string) error {
	_, err := r.deps.Adapter.SendText(ctx, req.Chat, text, &kit.SendOptions{DisablePreview: true})
	return err
}

// cmdStart creates a default profile for new users.
func (r *Router) cmdStart(ctx context.Context, req *Request) error {
	if r.deps.Profiles != nil {
		p, err := r.deps.Profiles.GetProfile(ctx, req.FromID)
		if err != nil {
			return err
		}
		if p == nil {
			def := reminder.DefaultFreeTime
			err := r.deps.Profiles.UpsertProfile(ctx, reminder.UserProfile{
				UserID:              req.FromID,
				Timezone:            "UTC",
				DefaultReminderTime: &def,
				PreReminderMinutes:  60,
			})
			if err != nil {
				return err
			}
		}
	}
	return r.reply(ctx, req, "👋 Welcome!\n\n"+helpText)
}

func (r *Router) cmdHelp(ctx context.Context, req *Request) error {
	return r.reply(ctx, req, helpText)
}

// cmdReminders lists the caller's pending reminders.
func (r *Router) cmdReminders(ctx context.Context, req *Request) error {
	if r.deps.Jobs == nil {
		return r.reply(ctx, req, "Reminder list is not available.")
	}
	tz := r.timezone(ctx, req.FromID)

	var b strings.Builder
	n := 0
	for _, j := range r.deps.Jobs.ListPending() {
		if j.Payload.RecipientID != req.FromID {
			continue
		}
		if n == 0 {
			b.WriteString("⏳ Scheduled reminders\n")
		}
		n++
		icon := "🔔"
		if j.Kind == reminder.KindPre {
			icon = "🕐"
		}
		fmt.Fprintf(&b, "\n%s #%d %s", icon, j.NoteID, reminder.FormatDue(j.RunAt, tz))
		if t := strings.TrimSpace(j.Payload.Text); t != "" && j.Kind == reminder.KindMain {
			fmt.Fprintf(&b, "\n   %s", truncate(t, 60))
		}
	}
	if n == 0 {
		return r.reply(ctx, req, "No reminders scheduled.")
	}
	return r.reply(ctx, req, b.String())
}

func truncate(s string, n int) string {
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	return string(rs[:n-1]) + "…"
}
