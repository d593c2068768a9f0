package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"remindbot/internal/reminder"
)

const noteColumns = `note_id, telegram_id, text, due_date, recurrence_rule, is_completed, is_archived, snooze_count`

type noteRow struct {
	ID             int64          `db:"note_id"`
	OwnerID        int64          `db:"telegram_id"`
	Text           string         `db:"text"`
	DueDate        sql.NullInt64  `db:"due_date"`
	RecurrenceRule sql.NullString `db:"recurrence_rule"`
	IsCompleted    bool           `db:"is_completed"`
	IsArchived     bool           `db:"is_archived"`
	SnoozeCount    int            `db:"snooze_count"`
}

func (r noteRow) toNote() reminder.Note {
	n := reminder.Note{
		ID:             r.ID,
		OwnerID:        r.OwnerID,
		Text:           r.Text,
		RecurrenceRule: r.RecurrenceRule.String,
		IsCompleted:    r.IsCompleted,
		IsArchived:     r.IsArchived,
		SnoozeCount:    r.SnoozeCount,
	}
	if r.DueDate.Valid {
		due := time.Unix(r.DueDate.Int64, 0).UTC()
		n.DueDate = &due
	}
	return n
}

func toNotes(rows []noteRow) []reminder.Note {
	out := make([]reminder.Note, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toNote())
	}
	return out
}

// CreateNote inserts a note for an existing user and returns its id.
func (s *Store) CreateNote(ctx context.Context, n NewNote) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO notes(telegram_id, text, due_date, recurrence_rule) VALUES(?,?,?,?)`,
		n.OwnerID, n.Text, nullUnix(n.DueDate), nullStr(n.RecurrenceRule),
	)
	if err != nil {
		return 0, fmt.Errorf("insert note: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("note insert id: %w", err)
	}
	return id, nil
}

func (s *Store) GetNote(ctx context.Context, noteID int64) (*reminder.Note, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var r noteRow
	err := s.db.GetContext(ctx, &r, `SELECT `+noteColumns+` FROM notes WHERE note_id = ?`, noteID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get note %d: %w", noteID, err)
	}
	n := r.toNote()
	return &n, nil
}

func (s *Store) UpdateDueDate(ctx context.Context, noteID int64, due *time.Time) error {
	return s.updateNote(ctx, noteID, "due_date = ?", nullUnix(due))
}

func (s *Store) SetRecurrenceRule(ctx context.Context, noteID int64, rule *string) error {
	var v any
	if rule != nil {
		v = nullStr(*rule)
	}
	return s.updateNote(ctx, noteID, "recurrence_rule = ?", v)
}

func (s *Store) IncrementSnoozeCount(ctx context.Context, noteID int64) error {
	return s.updateNote(ctx, noteID, "snooze_count = snooze_count + 1")
}

func (s *Store) SetCompleted(ctx context.Context, noteID int64, completed bool) error {
	return s.updateNote(ctx, noteID, "is_completed = ?", completed)
}

func (s *Store) SetArchived(ctx context.Context, noteID int64, archived bool) error {
	return s.updateNote(ctx, noteID, "is_archived = ?", archived)
}

func (s *Store) DeleteNote(ctx context.Context, noteID int64) error {
	if err := s.ready(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE note_id = ?`, noteID)
	if err != nil {
		return fmt.Errorf("delete note %d: %w", noteID, err)
	}
	return requireRow(res, noteID)
}

// GetNotesWithFutureReminders lists active notes due strictly after now,
// earliest first.
func (s *Store) GetNotesWithFutureReminders(ctx context.Context, now time.Time) ([]reminder.Note, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var rows []noteRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT `+noteColumns+` FROM notes
		 WHERE due_date IS NOT NULL AND due_date > ? AND is_completed = 0 AND is_archived = 0
		 ORDER BY due_date, note_id`,
		now.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("select future reminders: %w", err)
	}
	return toNotes(rows), nil
}

// GetOverdueRecurringNotes lists active recurring notes due strictly before
// cutoff.
func (s *Store) GetOverdueRecurringNotes(ctx context.Context, cutoff time.Time) ([]reminder.Note, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var rows []noteRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT `+noteColumns+` FROM notes
		 WHERE due_date IS NOT NULL AND due_date < ?
		   AND recurrence_rule IS NOT NULL AND recurrence_rule <> ''
		   AND is_completed = 0 AND is_archived = 0
		 ORDER BY due_date, note_id`,
		cutoff.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("select overdue recurring notes: %w", err)
	}
	return toNotes(rows), nil
}

func (s *Store) updateNote(ctx context.Context, noteID int64, set string, args ...any) error {
	if err := s.ready(); err != nil {
		return err
	}
	q := `UPDATE notes SET ` + set + `, updated_at = ? WHERE note_id = ?`
	args = append(args, time.Now().Unix(), noteID)
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update note %d: %w", noteID, err)
	}
	return requireRow(res, noteID)
}

func requireRow(res sql.Result, noteID int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &reminder.NotFoundError{NoteID: noteID}
	}
	return nil
}
