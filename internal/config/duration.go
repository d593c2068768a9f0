package config

import (
	"fmt"
	"strings"
	"time"

	"remindbot/internal/reminder"
)

// ParseDurationField parses a Go duration string. Empty means 0; negative
// values are rejected. path names the field in errors.
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}

// ParseClockOrDefault parses an "HH:MM" field, returning def when empty.
func ParseClockOrDefault(path, raw string, def reminder.ClockTime) (reminder.ClockTime, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	c, err := reminder.ParseClockTime(raw)
	if err != nil {
		return reminder.ClockTime{}, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}
