package scheduler

import (
	"testing"
	"time"
)

func TestParseSchedule(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in     string
		kind   SpecKind
		every  time.Duration
		cron   string
		source string
	}{
		{in: "*/15 * * * *", kind: SpecCron, cron: "*/15 * * * *", source: "cron"},
		{in: "@every 15m", kind: SpecCron, cron: "@every 15m", source: "cron"},
		{in: "cron: 0 3 * * *", kind: SpecCron, cron: "0 3 * * *", source: "cron"},
		{in: "15m", kind: SpecInterval, every: 15 * time.Minute, source: "duration"},
		{in: "00:15", kind: SpecInterval, every: 15 * time.Minute, source: "hhmm"},
		{in: "02:30", kind: SpecInterval, every: 150 * time.Minute, source: "hhmm"},
		{in: "interval: 1h", kind: SpecInterval, every: time.Hour, source: "duration"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseSchedule(tt.in)
			if err != nil {
				t.Fatalf("ParseSchedule(%q) error: %v", tt.in, err)
			}
			if got.Kind != tt.kind || got.Every != tt.every || got.Cron != tt.cron || got.Source != tt.source {
				t.Fatalf("ParseSchedule(%q) = %+v", tt.in, got)
			}
		})
	}
}

func TestParseScheduleRejects(t *testing.T) {
	t.Parallel()
	for _, in := range []string{"", "   ", "cron:", "00:75", "00:00", "-5m", "soon"} {
		if _, err := ParseSchedule(in); err == nil {
			t.Fatalf("ParseSchedule(%q) should fail", in)
		}
	}
}

func TestIntervalSpreadDelaysFirstRunOnly(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	sched, jitter := makeIntervalScheduleWithSpread(time.Minute, now, "reconcile")
	if jitter < 0 || jitter >= 30*time.Second {
		t.Fatalf("jitter = %v", jitter)
	}
	first := sched.Next(now)
	if want := now.Add(time.Minute + jitter); !first.Equal(want) {
		t.Fatalf("first = %v, want %v", first, want)
	}
	second := sched.Next(first)
	if second.Sub(first) < time.Minute-time.Second || second.Sub(first) > time.Minute {
		t.Fatalf("second gap = %v", second.Sub(first))
	}
}
