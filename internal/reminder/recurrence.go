package reminder

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// Supported frequencies. Sub-daily rules are rejected.
var supportedFreq = map[rrule.Frequency]string{
	rrule.DAILY:   "DAILY",
	rrule.WEEKLY:  "WEEKLY",
	rrule.MONTHLY: "MONTHLY",
	rrule.YEARLY:  "YEARLY",
}

// ParseRule parses an RFC 5545 RRULE value, with or without the "RRULE:"
// prefix, and rejects unsupported frequencies.
func ParseRule(rule string) (*rrule.ROption, error) {
	s := normalizeRule(rule)
	if s == "" {
		return nil, fmt.Errorf("%w: empty rule", ErrInvalidRule)
	}
	opt, err := rrule.StrToROption(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	if _, ok := supportedFreq[opt.Freq]; !ok {
		return nil, fmt.Errorf("%w: unsupported frequency in %q", ErrInvalidRule, s)
	}
	return opt, nil
}

// ValidateRule reports whether rule can drive a recurring reminder.
func ValidateRule(rule string) error {
	_, _, err := NextOccurrence(rule, time.Now())
	return err
}

// NextOccurrence returns the first occurrence strictly after last, with the
// series anchored at last in UTC. ok is false when a bounded series (UNTIL,
// COUNT) has no further occurrence.
//
// Anchoring at UTC keeps FREQ=DAILY at exactly +24h across DST changes.
// Month-day rules follow RFC 5545: BYMONTHDAY=31 skips shorter months.
func NextOccurrence(rule string, last time.Time) (next time.Time, ok bool, err error) {
	return NextAfter(rule, last, last)
}

// NextAfter is NextOccurrence for a series anchored at last, returning the
// first occurrence strictly after max(last, now). A fire that runs late
// therefore never yields an occurrence that is already in the past.
func NextAfter(rule string, last, now time.Time) (time.Time, bool, error) {
	opt, err := ParseRule(rule)
	if err != nil {
		return time.Time{}, false, err
	}
	anchor := last.UTC().Truncate(time.Second)
	opt.Dtstart = anchor
	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}

	from := anchor
	if now.After(from) {
		from = now.UTC()
	}
	next := r.After(from, false)
	if next.IsZero() {
		return time.Time{}, false, nil
	}
	return next.UTC(), true, nil
}

func normalizeRule(rule string) string {
	s := strings.TrimSpace(rule)
	if len(s) >= len("RRULE:") && strings.EqualFold(s[:len("RRULE:")], "RRULE:") {
		s = s[len("RRULE:"):]
	}
	return strings.ToUpper(strings.TrimSpace(s))
}
