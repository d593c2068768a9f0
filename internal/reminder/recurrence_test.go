package reminder

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextOccurrenceDailyIsPlus24h(t *testing.T) {
	t.Parallel()
	anchors := []time.Time{
		time.Date(2026, 1, 31, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 28, 23, 30, 0, 0, time.UTC),
		time.Date(2028, 2, 28, 12, 0, 0, 0, time.UTC),
		time.Date(2026, 12, 31, 23, 59, 59, 0, time.UTC),
		time.Date(2026, 3, 29, 0, 30, 0, 0, time.UTC), // EU DST switch day
	}
	for _, last := range anchors {
		next, ok, err := NextOccurrence("FREQ=DAILY", last)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, last.Add(24*time.Hour), next, "anchor %s", last)
	}
}

func TestNextOccurrenceNonUTCInput(t *testing.T) {
	t.Parallel()
	last := time.Date(2026, 10, 24, 10, 0, 0, 0, time.FixedZone("X", 2*3600))
	next, ok, err := NextOccurrence("RRULE:FREQ=DAILY", last)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, next.Equal(last.Add(24*time.Hour)))
	assert.Equal(t, time.UTC, next.Location())
}

func TestNextOccurrenceMonthlyDay31SkipsShortMonths(t *testing.T) {
	t.Parallel()
	last := time.Date(2026, 1, 31, 9, 0, 0, 0, time.UTC)
	next, ok, err := NextOccurrence("FREQ=MONTHLY;BYMONTHDAY=31", last)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 3, 31, 9, 0, 0, 0, time.UTC), next)

	next, ok, err = NextOccurrence("FREQ=MONTHLY;BYMONTHDAY=31", next)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 5, 31, 9, 0, 0, 0, time.UTC), next)
}

func TestNextOccurrenceWeeklyByDay(t *testing.T) {
	t.Parallel()
	monday := time.Date(2026, 10, 12, 8, 0, 0, 0, time.UTC)
	require.Equal(t, time.Monday, monday.Weekday())

	next, ok, err := NextOccurrence("FREQ=WEEKLY;BYDAY=MO", monday)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, monday.AddDate(0, 0, 7), next)
}

func TestNextOccurrenceUntilExhausts(t *testing.T) {
	t.Parallel()
	last := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	_, ok, err := NextOccurrence("FREQ=DAILY;UNTIL=20260601T235959Z", last)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNextOccurrenceRejectsBadRules(t *testing.T) {
	t.Parallel()
	last := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	for _, rule := range []string{"", "FREQ=HOURLY", "FREQ=SOMETIMES", "garbage"} {
		_, _, err := NextOccurrence(rule, last)
		require.Error(t, err, "rule %q", rule)
		assert.True(t, errors.Is(err, ErrInvalidRule), "rule %q: %v", rule, err)
	}
}

func TestNextAfterSkipsPastOccurrences(t *testing.T) {
	t.Parallel()
	last := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	now := time.Date(2026, 6, 4, 12, 0, 0, 0, time.UTC)
	next, ok, err := NextAfter("FREQ=DAILY", last, now)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 6, 5, 9, 0, 0, 0, time.UTC), next)
}

func TestValidateRule(t *testing.T) {
	t.Parallel()
	assert.NoError(t, ValidateRule("FREQ=YEARLY"))
	assert.NoError(t, ValidateRule("rrule:freq=weekly;byday=mo,we"))
	assert.Error(t, ValidateRule("FREQ=MINUTELY"))
}
