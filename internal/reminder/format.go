package reminder

import (
	"strings"
	"time"
)

// DueLayout is how due dates are shown to users.
const DueLayout = "02.01.2006 15:04 (MST)"

// LoadLocation resolves an IANA zone name; empty or unknown names yield UTC.
func LoadLocation(tz string) *time.Location {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}

// FormatDue renders t in tz using DueLayout.
func FormatDue(t time.Time, tz string) string {
	return t.In(LoadLocation(tz)).Format(DueLayout)
}
