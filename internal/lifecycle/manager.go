// Package lifecycle keeps the scheduled reminder jobs of a note in step with
// its persisted state: register, unregister, snooze, complete, startup
// reload and the periodic reconcile sweep.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"remindbot/internal/clock"
	"remindbot/internal/eventbus"
	"remindbot/internal/reminder"
	logx "remindbot/pkg/logx"
)

// JobStore is the subset of scheduler.Service the manager drives.
type JobStore interface {
	AddOrReplace(key reminder.JobKey, runAt time.Time, p reminder.Payload) (bool, error)
	Remove(key reminder.JobKey) bool
	RemoveByNote(noteID int64) int
	Pending(key reminder.JobKey) (reminder.PendingJob, bool)
	ListPending() []reminder.PendingJob
}

type Config struct {
	// FreeDefault and VIPDefault are the clock times used for date-only
	// mentions. A VIP profile's own default reminder time wins over VIPDefault.
	FreeDefault reminder.ClockTime
	VIPDefault  reminder.ClockTime

	// ReconcileGrace is how long a recurring note may sit in the past before
	// the reconcile sweep advances it without sending.
	ReconcileGrace time.Duration
}

func (c Config) withDefaults() Config {
	if c.FreeDefault.IsZero() {
		c.FreeDefault = reminder.DefaultFreeTime
	}
	if c.VIPDefault.IsZero() {
		c.VIPDefault = reminder.DefaultVIPTime
	}
	if c.ReconcileGrace <= 0 {
		c.ReconcileGrace = 10 * time.Minute
	}
	return c
}

type Option func(*Manager)

func WithClock(c clock.Clock) Option {
	return func(m *Manager) {
		if c != nil {
			m.clock = c
		}
	}
}

func WithBus(b eventbus.Bus) Option {
	return func(m *Manager) { m.bus = b }
}

type Manager struct {
	jobs     JobStore
	notes    reminder.NoteStore
	profiles reminder.ProfileStore

	cfgMu sync.RWMutex
	cfg   Config

	clock clock.Clock
	bus   eventbus.Bus
	log   logx.Logger
}

func New(jobs JobStore, notes reminder.NoteStore, profiles reminder.ProfileStore, cfg Config, log logx.Logger, opts ...Option) *Manager {
	if log.IsZero() {
		log = logx.Nop()
	}
	m := &Manager{
		jobs:     jobs,
		notes:    notes,
		profiles: profiles,
		cfg:      cfg.withDefaults(),
		clock:    clock.Real(),
		log:      log.With(logx.String("comp", "lifecycle")),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Apply swaps the default clock times and reconcile grace. Jobs already
// registered keep their run times.
func (m *Manager) Apply(cfg Config) {
	m.cfgMu.Lock()
	m.cfg = cfg.withDefaults()
	m.cfgMu.Unlock()
}

func (m *Manager) config() Config {
	m.cfgMu.RLock()
	defer m.cfgMu.RUnlock()
	return m.cfg
}

// Register schedules the main job of note and, for VIP profiles with a lead
// time, its pre-reminder. A note that is inactive, has no due date or is due
// now or earlier ends up with no jobs. Calling Register twice with the same
// input leaves the same jobs.
func (m *Manager) Register(ctx context.Context, note reminder.Note, profile reminder.UserProfile) error {
	now := m.clock.Now()
	if !note.Active() || note.DueDate == nil || !note.DueDate.After(now) {
		m.jobs.RemoveByNote(note.ID)
		return nil
	}
	due := note.DueDate.UTC()

	payload := reminder.Payload{NoteID: note.ID, RecipientID: note.OwnerID, Text: note.Text, DueDate: due}
	if _, err := m.jobs.AddOrReplace(reminder.JobKey{NoteID: note.ID, Kind: reminder.KindMain}, due, payload); err != nil {
		return fmt.Errorf("schedule note %d: %w", note.ID, err)
	}

	preKey := reminder.JobKey{NoteID: note.ID, Kind: reminder.KindPre}
	lead := profile.PreReminderLead()
	if lead <= 0 {
		m.jobs.Remove(preKey)
		return nil
	}
	preAt := due.Add(-lead)
	if !preAt.After(now) {
		m.jobs.Remove(preKey)
		return nil
	}
	pre := payload
	pre.IsPreReminder = true
	if _, err := m.jobs.AddOrReplace(preKey, preAt, pre); err != nil {
		return fmt.Errorf("schedule pre-reminder of note %d: %w", note.ID, err)
	}
	return nil
}

// Unregister drops every job of the note. Used on completion of one-off
// notes, archival and deletion.
func (m *Manager) Unregister(noteID int64) int {
	return m.jobs.RemoveByNote(noteID)
}

// Refresh reloads a note and its owner's profile and registers it again.
// Call it after creating a note, editing its due date or restoring it.
func (m *Manager) Refresh(ctx context.Context, noteID int64) error {
	note, err := m.loadNote(ctx, noteID)
	if err != nil {
		return err
	}
	return m.Register(ctx, *note, m.profile(ctx, note.OwnerID))
}

// ApplyTimeComponents resolves tc in the owner's timezone, persists the due
// date and registers the note. ok is false when tc describes no valid
// instant; the note is then left without a reminder.
func (m *Manager) ApplyTimeComponents(ctx context.Context, noteID int64, tc *reminder.TimeComponents) (due time.Time, ok bool, err error) {
	note, err := m.loadNote(ctx, noteID)
	if err != nil {
		return time.Time{}, false, err
	}
	profile := m.profile(ctx, note.OwnerID)

	cfg := m.config()
	vipDefault := cfg.VIPDefault
	if profile.DefaultReminderTime != nil {
		vipDefault = *profile.DefaultReminderTime
	}
	now := m.clock.Now().In(profile.Location())
	due, ok = reminder.Resolve(tc, now, profile.IsVIP, cfg.FreeDefault, vipDefault)
	if !ok {
		mention := ""
		if tc != nil {
			mention = tc.OriginalMention
		}
		m.log.Info("time mention not resolvable; note has no reminder", logx.Note(noteID), logx.String("mention", mention))
		return time.Time{}, false, nil
	}

	if err := m.notes.UpdateDueDate(ctx, noteID, &due); err != nil {
		return time.Time{}, false, fmt.Errorf("persist due date of note %d: %w", noteID, err)
	}
	note.DueDate = &due
	if err := m.Register(ctx, *note, profile); err != nil {
		return due, true, err
	}
	return due, true, nil
}

// Snooze pushes the due date of a note forward by minutes and reschedules
// it. The shift starts from the current due date, or from now when that has
// already passed.
func (m *Manager) Snooze(ctx context.Context, noteID int64, minutes int) (time.Time, error) {
	if minutes <= 0 || minutes > reminder.MaxSnoozeMinutes {
		return time.Time{}, fmt.Errorf("snooze minutes must be in 1..%d, got %d", reminder.MaxSnoozeMinutes, minutes)
	}
	note, err := m.loadNote(ctx, noteID)
	if err != nil {
		return time.Time{}, err
	}
	if note.DueDate == nil {
		return time.Time{}, &reminder.NotFoundError{NoteID: noteID, Reason: "has no due date"}
	}

	base := note.DueDate.UTC()
	shift := time.Duration(minutes) * time.Minute
	if now := m.clock.Now(); !base.Add(shift).After(now) {
		base = now.UTC()
	}
	next := base.Add(shift).Truncate(time.Second)

	if err := m.notes.UpdateDueDate(ctx, noteID, &next); err != nil {
		return time.Time{}, fmt.Errorf("persist snoozed due date of note %d: %w", noteID, err)
	}
	if err := m.notes.IncrementSnoozeCount(ctx, noteID); err != nil {
		m.log.Warn("snooze count not updated", logx.Note(noteID), logx.Err(err))
	}

	note.DueDate = &next
	if err := m.Register(ctx, *note, m.profile(ctx, note.OwnerID)); err != nil {
		return next, err
	}
	m.log.Info("reminder snoozed", logx.Note(noteID), logx.Int("minutes", minutes), logx.Time("due", next))
	return next, nil
}

// Complete handles a "done" action. One-off notes are marked completed and
// unregistered. Recurring notes are left alone: their series continues and
// recurring reports true.
func (m *Manager) Complete(ctx context.Context, noteID int64) (recurring bool, err error) {
	note, err := m.loadNote(ctx, noteID)
	if err != nil {
		return false, err
	}
	if note.Recurring() {
		return true, nil
	}
	if err := m.notes.SetCompleted(ctx, noteID, true); err != nil {
		return false, fmt.Errorf("complete note %d: %w", noteID, err)
	}
	m.Unregister(noteID)
	return false, nil
}

// Advance moves a recurring note to its next occurrence after its current
// due date, persists it and registers it. The series ends (rule cleared,
// note kept as a one-off) when the owner is not VIP, the rule is invalid or
// exhausted. It reports whether a next occurrence was scheduled.
func (m *Manager) Advance(ctx context.Context, note reminder.Note, profile reminder.UserProfile) (time.Time, bool) {
	log := m.log.With(logx.Note(note.ID), logx.String("rule", note.RecurrenceRule))
	if !note.Recurring() || note.DueDate == nil {
		return time.Time{}, false
	}
	if !profile.IsVIP {
		log.Info("recurrence stopped: owner is not VIP", logx.Int64("user", note.OwnerID))
		m.clearRule(ctx, note.ID, log)
		return time.Time{}, false
	}

	next, ok, err := reminder.NextAfter(note.RecurrenceRule, *note.DueDate, m.clock.Now())
	switch {
	case err != nil:
		log.Warn("recurrence rule invalid; clearing", logx.Err(err))
		m.clearRule(ctx, note.ID, log)
		return time.Time{}, false
	case !ok:
		log.Info("recurrence exhausted")
		m.clearRule(ctx, note.ID, log)
		return time.Time{}, false
	}

	if err := m.notes.UpdateDueDate(ctx, note.ID, &next); err != nil {
		log.Error("next occurrence not persisted", logx.Time("next", next), logx.Err(err))
		return time.Time{}, false
	}
	note.DueDate = &next
	if err := m.Register(ctx, note, profile); err != nil {
		log.Error("next occurrence not scheduled", logx.Time("next", next), logx.Err(err))
		return next, false
	}
	log.Info("recurring reminder advanced", logx.Time("next", next))
	if m.bus != nil {
		m.bus.Publish(eventbus.Event{Type: eventbus.ReminderAdvanced, Data: map[string]any{"note_id": note.ID, "next": next}})
	}
	return next, true
}

func (m *Manager) clearRule(ctx context.Context, noteID int64, log logx.Logger) {
	if err := m.notes.SetRecurrenceRule(ctx, noteID, nil); err != nil {
		log.Error("recurrence rule not cleared", logx.Err(err))
	}
}

func (m *Manager) loadNote(ctx context.Context, noteID int64) (*reminder.Note, error) {
	note, err := m.notes.GetNote(ctx, noteID)
	if err != nil {
		return nil, fmt.Errorf("load note %d: %w", noteID, err)
	}
	if note == nil {
		return nil, &reminder.NotFoundError{NoteID: noteID}
	}
	return note, nil
}

// profile falls back to a free UTC profile when none is stored or the store
// fails.
func (m *Manager) profile(ctx context.Context, userID int64) reminder.UserProfile {
	p, err := m.profiles.GetProfile(ctx, userID)
	if err != nil && !errors.Is(err, context.Canceled) {
		m.log.Warn("profile unavailable; using defaults", logx.Int64("user", userID), logx.Err(err))
	}
	if p == nil {
		return reminder.UserProfile{UserID: userID, Timezone: "UTC"}
	}
	return *p
}
