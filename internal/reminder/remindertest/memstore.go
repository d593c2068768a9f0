// Package remindertest provides in-memory implementations of the reminder
// ports for tests.
package remindertest

import (
	"context"
	"sort"
	"sync"
	"time"

	"remindbot/internal/reminder"
)

// Store is an in-memory NoteStore and ProfileStore.
type Store struct {
	mu       sync.Mutex
	notes    map[int64]reminder.Note
	profiles map[int64]reminder.UserProfile

	// FailWrites makes every write return this error when set.
	FailWrites error
	// FailReads makes GetNote return this error when set.
	FailReads error
}

func NewStore() *Store {
	return &Store{notes: map[int64]reminder.Note{}, profiles: map[int64]reminder.UserProfile{}}
}

func (s *Store) PutNote(n reminder.Note) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.DueDate != nil {
		d := n.DueDate.UTC()
		n.DueDate = &d
	}
	s.notes[n.ID] = n
}

func (s *Store) PutProfile(p reminder.UserProfile) {
	s.mu.Lock()
	s.profiles[p.UserID] = p
	s.mu.Unlock()
}

// Note returns a copy of the stored note.
func (s *Store) Note(id int64) (reminder.Note, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notes[id]
	return n, ok
}

func (s *Store) GetNote(_ context.Context, id int64) (*reminder.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailReads != nil {
		return nil, s.FailReads
	}
	n, ok := s.notes[id]
	if !ok {
		return nil, nil
	}
	return &n, nil
}

func (s *Store) update(id int64, fn func(*reminder.Note)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites != nil {
		return s.FailWrites
	}
	n, ok := s.notes[id]
	if !ok {
		return &reminder.NotFoundError{NoteID: id}
	}
	fn(&n)
	s.notes[id] = n
	return nil
}

func (s *Store) UpdateDueDate(_ context.Context, id int64, due *time.Time) error {
	return s.update(id, func(n *reminder.Note) {
		if due == nil {
			n.DueDate = nil
			return
		}
		d := due.UTC()
		n.DueDate = &d
	})
}

func (s *Store) SetRecurrenceRule(_ context.Context, id int64, rule *string) error {
	return s.update(id, func(n *reminder.Note) {
		n.RecurrenceRule = ""
		if rule != nil {
			n.RecurrenceRule = *rule
		}
	})
}

func (s *Store) IncrementSnoozeCount(_ context.Context, id int64) error {
	return s.update(id, func(n *reminder.Note) { n.SnoozeCount++ })
}

func (s *Store) SetCompleted(_ context.Context, id int64, completed bool) error {
	return s.update(id, func(n *reminder.Note) { n.IsCompleted = completed })
}

func (s *Store) SetArchived(_ context.Context, id int64, archived bool) error {
	return s.update(id, func(n *reminder.Note) { n.IsArchived = archived })
}

func (s *Store) GetNotesWithFutureReminders(_ context.Context, now time.Time) ([]reminder.Note, error) {
	return s.filter(func(n reminder.Note) bool { return n.DueDate.After(now) }), nil
}

func (s *Store) GetOverdueRecurringNotes(_ context.Context, cutoff time.Time) ([]reminder.Note, error) {
	return s.filter(func(n reminder.Note) bool { return n.Recurring() && n.DueDate.Before(cutoff) }), nil
}

func (s *Store) filter(keep func(reminder.Note) bool) []reminder.Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []reminder.Note
	for _, n := range s.notes {
		if n.DueDate == nil || !n.Active() || !keep(n) {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(*out[j].DueDate) })
	return out
}

func (s *Store) GetProfile(_ context.Context, userID int64) (*reminder.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}
