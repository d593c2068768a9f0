package reminder

import "time"

const (
	maxRelativeDays    = 366 * 100
	maxRelativeHours   = maxRelativeDays * 24
	maxRelativeMinutes = maxRelativeHours * 60
)

// Resolve turns extracted time components into a UTC due date.
//
// now must carry the user's location; all calendar reasoning happens there.
// The second result is false when tc is nil or describes an impossible
// instant (month 13, Feb 30, hour 24, ...).
//
// Order of operations: relative offsets, absolute overlay, "already passed"
// correction (skipped when the mention was an explicit "today"), then the
// default time for date-only mentions.
func Resolve(tc *TimeComponents, now time.Time, isVIP bool, freeDefault, vipDefault ClockTime) (time.Time, bool) {
	if tc == nil || !tc.inRange() {
		return time.Time{}, false
	}
	loc := now.Location()

	t := now
	if tc.RelativeDays != nil {
		t = t.AddDate(0, 0, *tc.RelativeDays)
	}
	if tc.RelativeHours != nil {
		t = t.Add(time.Duration(*tc.RelativeHours) * time.Hour)
	}
	if tc.RelativeMinutes != nil {
		t = t.Add(time.Duration(*tc.RelativeMinutes) * time.Minute)
	}

	hasDate := tc.Year != nil || tc.Month != nil || tc.Day != nil
	hasClock := tc.Hour != nil || tc.Minute != nil

	if hasDate || hasClock {
		y, mo, d := t.Date()
		hh, mi, ss := t.Clock()
		if tc.Year != nil {
			y = *tc.Year
		}
		if tc.Month != nil {
			mo = time.Month(*tc.Month)
		}
		if tc.Day != nil {
			d = *tc.Day
		}
		switch {
		case hasClock:
			ss = 0
			if tc.Hour != nil {
				hh = *tc.Hour
				mi = 0
			}
			if tc.Minute != nil {
				mi = *tc.Minute
			}
		default:
			// date-only mention
			hh, mi, ss = 0, 0, 0
		}
		if !validDate(y, mo, d) {
			return time.Time{}, false
		}
		t = time.Date(y, mo, d, hh, mi, ss, 0, loc)
	}

	if !tc.IsTodayExplicit {
		var ok bool
		if t, ok = rollForward(tc, t, now); !ok {
			return time.Time{}, false
		}
	}

	if !hasClock && isMidnight(t) {
		def := freeDefault
		if isVIP {
			def = vipDefault
		}
		t = def.On(t)
	}

	return t.UTC(), true
}

// rollForward moves mentions that already passed into the future.
func rollForward(tc *TimeComponents, t, now time.Time) (time.Time, bool) {
	hourOnly := tc.Hour != nil && tc.Year == nil && tc.Month == nil && tc.Day == nil && tc.RelativeDays == nil
	dayMonth := tc.Day != nil && tc.Month != nil && tc.Year == nil

	switch {
	case hourOnly:
		if !t.After(now) {
			t = t.AddDate(0, 0, 1)
		}
	case dayMonth:
		today := startOfDay(now)
		day := startOfDay(t)
		switch {
		case day.Before(today):
			y := t.Year() + 1
			if !validDate(y, t.Month(), t.Day()) {
				return time.Time{}, false
			}
			hh, mi, ss := t.Clock()
			t = time.Date(y, t.Month(), t.Day(), hh, mi, ss, 0, t.Location())
		case day.Equal(today) && !t.After(now):
			t = t.AddDate(0, 0, 1)
		}
	}
	return t, true
}

func (tc *TimeComponents) inRange() bool {
	switch {
	case !intIn(tc.RelativeDays, -maxRelativeDays, maxRelativeDays),
		!intIn(tc.RelativeHours, -maxRelativeHours, maxRelativeHours),
		!intIn(tc.RelativeMinutes, -maxRelativeMinutes, maxRelativeMinutes),
		!intIn(tc.Year, 1, 9999),
		!intIn(tc.Month, 1, 12),
		!intIn(tc.Day, 1, 31),
		!intIn(tc.Hour, 0, 23),
		!intIn(tc.Minute, 0, 59):
		return false
	}
	return true
}

func intIn(v *int, lo, hi int) bool {
	return v == nil || (*v >= lo && *v <= hi)
}

func validDate(y int, m time.Month, d int) bool {
	if m < time.January || m > time.December || d < 1 {
		return false
	}
	return d <= daysIn(y, m)
}

func daysIn(y int, m time.Month) int {
	return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func isMidnight(t time.Time) bool {
	hh, mi, ss := t.Clock()
	return hh == 0 && mi == 0 && ss == 0 && t.Nanosecond() == 0
}
