package lifecycle

import (
	"context"
	"fmt"

	"remindbot/internal/reminder"
	logx "remindbot/pkg/logx"
)

// profileCache loads each owner's profile once per pass.
type profileCache struct {
	m     *Manager
	cache map[int64]reminder.UserProfile
}

func (m *Manager) newProfileCache() *profileCache {
	return &profileCache{m: m, cache: map[int64]reminder.UserProfile{}}
}

func (c *profileCache) get(ctx context.Context, userID int64) reminder.UserProfile {
	if p, ok := c.cache[userID]; ok {
		return p
	}
	p := c.m.profile(ctx, userID)
	c.cache[userID] = p
	return p
}

// Reload registers every active note with a future due date. The job store
// keeps nothing across restarts, so this runs once at startup before the
// scheduler is started. It returns how many notes were registered.
func (m *Manager) Reload(ctx context.Context) (int, error) {
	notes, err := m.notes.GetNotesWithFutureReminders(ctx, m.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("load future reminders: %w", err)
	}

	profiles := m.newProfileCache()
	n := 0
	for _, note := range notes {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if err := m.Register(ctx, note, profiles.get(ctx, note.OwnerID)); err != nil {
			m.log.Warn("reload: note not registered", logx.Note(note.ID), logx.Err(err))
			continue
		}
		n++
	}
	m.log.Info("reminders reloaded", logx.Int("notes", n), logx.Int("found", len(notes)))
	return n, nil
}
