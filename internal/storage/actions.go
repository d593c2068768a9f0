package storage

import (
	"context"
	"fmt"
	"time"
)

// AppendAction records a user action on a reminder.
func (s *Store) AppendAction(ctx context.Context, a UserAction) error {
	if err := s.ready(); err != nil {
		return err
	}
	if a.At.IsZero() {
		a.At = time.Now()
	}
	var noteID any
	if a.NoteID > 0 {
		noteID = a.NoteID
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_actions(user_telegram_id, action_type, note_id, created_at, metadata) VALUES(?,?,?,?,?)`,
		a.UserID, a.Action, noteID, a.At.Unix(), nullStr(a.MetaJSON),
	)
	if err != nil {
		return fmt.Errorf("append action: %w", err)
	}
	return nil
}

// CountActions returns how many actions of kind userID performed since t.
func (s *Store) CountActions(ctx context.Context, userID int64, kind string, since time.Time) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	var n int
	err := s.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM user_actions WHERE user_telegram_id = ? AND action_type = ? AND created_at >= ?`,
		userID, kind, since.Unix(),
	)
	return n, err
}
