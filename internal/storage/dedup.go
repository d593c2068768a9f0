package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

func (s *Store) PutDedup(ctx context.Context, key string, until time.Time) error {
	if err := s.ready(); err != nil {
		return err
	}
	if key == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dedup(key, until) VALUES(?,?)
		 ON CONFLICT(key) DO UPDATE SET until = excluded.until`,
		key, until.UnixMilli(),
	)
	if err == nil && s.opCount.Add(1)%s.pruneEvery == 0 {
		pctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		_ = s.pruneExpired(pctx, time.Now())
		cancel()
	}
	return err
}

func (s *Store) GetDedup(ctx context.Context, key string) (time.Time, bool, error) {
	if err := s.ready(); err != nil {
		return time.Time{}, false, err
	}
	if key == "" {
		return time.Time{}, false, nil
	}
	var ms int64
	err := s.db.GetContext(ctx, &ms, `SELECT until FROM dedup WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return time.UnixMilli(ms), true, nil
}

func (s *Store) pruneExpired(ctx context.Context, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM dedup WHERE until < ?`, now.UnixMilli())
	return err
}
