package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

type deviceRow struct {
	UserID   int64          `db:"user_telegram_id"`
	Token    string         `db:"fcm_token"`
	Platform sql.NullString `db:"platform"`
}

// AddDevice registers a push token for userID. A token already known is
// moved to userID.
func (s *Store) AddDevice(ctx context.Context, userID int64, token, platform string) error {
	if err := s.ready(); err != nil {
		return err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("empty device token")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_devices(user_telegram_id, fcm_token, platform) VALUES(?,?,?)
		 ON CONFLICT(fcm_token) DO UPDATE SET user_telegram_id = excluded.user_telegram_id, platform = excluded.platform`,
		userID, token, nullStr(platform),
	)
	if err != nil {
		return fmt.Errorf("add device for %d: %w", userID, err)
	}
	return nil
}

// Devices lists the push tokens of userID.
func (s *Store) Devices(ctx context.Context, userID int64) ([]Device, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var rows []deviceRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT user_telegram_id, fcm_token, platform FROM user_devices WHERE user_telegram_id = ? ORDER BY id`,
		userID,
	); err != nil {
		return nil, fmt.Errorf("list devices for %d: %w", userID, err)
	}
	out := make([]Device, 0, len(rows))
	for _, r := range rows {
		out = append(out, Device{UserID: r.UserID, Token: r.Token, Platform: r.Platform.String})
	}
	return out, nil
}

// DeviceTokens returns only the token strings of userID.
func (s *Store) DeviceTokens(ctx context.Context, userID int64) ([]string, error) {
	devs, err := s.Devices(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(devs))
	for _, d := range devs {
		out = append(out, d.Token)
	}
	return out, nil
}

func (s *Store) DeleteDeviceToken(ctx context.Context, token string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM user_devices WHERE fcm_token = ?`, token); err != nil {
		return fmt.Errorf("delete device token: %w", err)
	}
	return nil
}

func (s *Store) TouchDeviceToken(ctx context.Context, token string, at time.Time) error {
	if err := s.ready(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `UPDATE user_devices SET last_used_at = ? WHERE fcm_token = ?`, at.Unix(), token)
	return err
}
