package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"remindbot/internal/reminder"
	logx "remindbot/pkg/logx"
)

type profileRow struct {
	UserID              int64  `db:"telegram_id"`
	Timezone            string `db:"timezone"`
	DefaultReminderTime string `db:"default_reminder_time"`
	PreReminderMinutes  int    `db:"pre_reminder_minutes"`
	IsVIP               bool   `db:"is_vip"`
}

func (s *Store) GetProfile(ctx context.Context, userID int64) (*reminder.UserProfile, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var r profileRow
	err := s.db.GetContext(ctx, &r,
		`SELECT telegram_id, timezone, default_reminder_time, pre_reminder_minutes, is_vip
		 FROM users WHERE telegram_id = ?`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile %d: %w", userID, err)
	}

	p := &reminder.UserProfile{
		UserID:             r.UserID,
		Timezone:           r.Timezone,
		PreReminderMinutes: r.PreReminderMinutes,
		IsVIP:              r.IsVIP,
	}
	if raw := strings.TrimSpace(r.DefaultReminderTime); raw != "" {
		if ct, err := reminder.ParseClockTime(raw); err == nil {
			p.DefaultReminderTime = &ct
		} else {
			s.log.Warn("bad default_reminder_time; using built-in default", logx.Int64("user", userID), logx.Err(err))
		}
	}
	return p, nil
}

// UpsertProfile creates or updates the reminder-related columns of a user.
func (s *Store) UpsertProfile(ctx context.Context, p reminder.UserProfile) error {
	if err := s.ready(); err != nil {
		return err
	}
	tz := p.Timezone
	if tz == "" {
		tz = "UTC"
	}
	def := ""
	if p.DefaultReminderTime != nil {
		def = p.DefaultReminderTime.String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users(telegram_id, timezone, default_reminder_time, pre_reminder_minutes, is_vip)
		 VALUES(?,?,?,?,?)
		 ON CONFLICT(telegram_id) DO UPDATE SET
		   timezone = excluded.timezone,
		   default_reminder_time = excluded.default_reminder_time,
		   pre_reminder_minutes = excluded.pre_reminder_minutes,
		   is_vip = excluded.is_vip,
		   updated_at = ?`,
		p.UserID, tz, def, p.PreReminderMinutes, p.IsVIP, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert profile %d: %w", p.UserID, err)
	}
	return nil
}
