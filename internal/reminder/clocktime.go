package reminder

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ClockTime is a local time of day with minute precision.
type ClockTime struct {
	Hour   int
	Minute int
}

// DefaultVIPTime is used when a VIP profile has no default reminder time.
var DefaultVIPTime = ClockTime{Hour: 9}

// DefaultFreeTime is the fixed default for free users.
var DefaultFreeTime = ClockTime{Hour: 12}

// ParseClockTime parses "HH:MM" (also "H:MM" and "HH:MM:SS", seconds ignored).
func ParseClockTime(s string) (ClockTime, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return ClockTime{}, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return ClockTime{}, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return ClockTime{}, fmt.Errorf("invalid minute in %q", s)
	}
	return ClockTime{Hour: h, Minute: m}, nil
}

func (c ClockTime) IsZero() bool { return c.Hour == 0 && c.Minute == 0 }

func (c ClockTime) String() string { return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute) }

// On returns the instant at c on the calendar date of day, in day's location.
func (c ClockTime) On(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, c.Hour, c.Minute, 0, 0, day.Location())
}
