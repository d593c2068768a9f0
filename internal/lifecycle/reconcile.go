package lifecycle

import (
	"context"
	"fmt"

	logx "remindbot/pkg/logx"
)

// ReconcileResult summarizes one sweep.
type ReconcileResult struct {
	Registered int `json:"registered"`
	Removed    int `json:"removed"`
	Advanced   int `json:"advanced"`
	Ended      int `json:"ended"`
}

// Reconcile brings the job store back in line with persisted note state:
// future notes are registered again, jobs of notes that no longer qualify
// are dropped, and recurring notes stuck in the past for longer than
// ReconcileGrace (typically after a failed write while advancing) are moved
// to their next occurrence without sending.
func (m *Manager) Reconcile(ctx context.Context) (ReconcileResult, error) {
	var res ReconcileResult
	before := m.jobs.ListPending()
	now := m.clock.Now()

	notes, err := m.notes.GetNotesWithFutureReminders(ctx, now)
	if err != nil {
		return res, fmt.Errorf("load future reminders: %w", err)
	}
	profiles := m.newProfileCache()
	live := make(map[int64]struct{}, len(notes))
	for _, note := range notes {
		live[note.ID] = struct{}{}
		if err := m.Register(ctx, note, profiles.get(ctx, note.OwnerID)); err != nil {
			m.log.Warn("reconcile: note not registered", logx.Note(note.ID), logx.Err(err))
			continue
		}
		res.Registered++
	}

	// Only jobs seen before the query are candidates, and only while they
	// are unchanged; anything registered meanwhile is newer than our view.
	for _, j := range before {
		if _, ok := live[j.NoteID]; ok {
			continue
		}
		cur, ok := m.jobs.Pending(j.Key)
		if !ok || !cur.RunAt.Equal(j.RunAt) {
			continue
		}
		if m.jobs.Remove(j.Key) {
			res.Removed++
			m.log.Info("reconcile: orphan job removed", logx.String("job", j.Name))
		}
	}

	overdue, err := m.notes.GetOverdueRecurringNotes(ctx, now.Add(-m.config().ReconcileGrace))
	if err != nil {
		return res, fmt.Errorf("load overdue recurring notes: %w", err)
	}
	for _, note := range overdue {
		if _, ok := m.Advance(ctx, note, profiles.get(ctx, note.OwnerID)); ok {
			res.Advanced++
		} else {
			res.Ended++
		}
	}

	if res.Removed > 0 || res.Advanced > 0 || res.Ended > 0 {
		m.log.Info("reconcile finished", logx.Int("registered", res.Registered), logx.Int("removed", res.Removed), logx.Int("advanced", res.Advanced), logx.Int("ended", res.Ended))
	} else {
		m.log.Debug("reconcile finished", logx.Int("registered", res.Registered))
	}
	return res, nil
}
