package scheduler

import (
	"context"
	"testing"
	"time"

	"remindbot/internal/clock"
	logx "remindbot/pkg/logx"
)

func noop(context.Context) error { return nil }

func TestAddScheduleAndRemove(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true, Timezone: "UTC"}, nil, logx.Nop(), nil, WithClock(clock.NewFake(t0)))

	// registered before Start, armed on Start
	if _, err := s.AddSchedule("sweep", "@every 15m", time.Minute, noop); err != nil {
		t.Fatalf("AddSchedule: %v", err)
	}
	s.Start(context.Background())
	defer s.Stop(context.Background())

	if _, err := s.AddSchedule("digest", "0 9 * * *", 0, noop); err != nil {
		t.Fatalf("AddSchedule cron: %v", err)
	}
	// same name replaces
	if _, err := s.AddSchedule("sweep", "30m", time.Minute, noop); err != nil {
		t.Fatalf("AddSchedule replace: %v", err)
	}

	snap := s.Snapshot()
	if len(snap.Schedules) != 2 {
		t.Fatalf("schedules = %+v", snap.Schedules)
	}
	for _, it := range snap.Schedules {
		if it.Next.IsZero() {
			t.Fatalf("schedule %q not armed", it.Name)
		}
		if it.Name == "sweep" && it.Spec != "@every 30m0s" {
			t.Fatalf("sweep spec = %q", it.Spec)
		}
	}

	if !s.RemoveSchedule("sweep") {
		t.Fatal("RemoveSchedule reported nothing removed")
	}
	if s.RemoveSchedule("sweep") {
		t.Fatal("second RemoveSchedule should report false")
	}
	if got := s.Snapshot().Schedules; len(got) != 1 || got[0].Name != "digest" {
		t.Fatalf("schedules = %+v", got)
	}
}

func TestAddScheduleRejectsBadInput(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true}, nil, logx.Nop(), nil)

	if _, err := s.AddSchedule("x", "every tuesday-ish", 0, noop); err == nil {
		t.Fatal("expected error for bad schedule")
	}
	if _, err := s.AddSchedule(" ", "@every 1m", 0, noop); err == nil {
		t.Fatal("expected error for empty name")
	}
	if _, err := s.AddSchedule("x", "@every 1m", 0, nil); err == nil {
		t.Fatal("expected error for nil job")
	}
	if _, err := s.AddInterval("x", 0, 0, noop); err == nil {
		t.Fatal("expected error for zero interval")
	}
}

func TestApplyTimezoneRearmsSchedules(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true, Timezone: "UTC"}, nil, logx.Nop(), nil, WithClock(clock.NewFake(t0)))
	if _, err := s.AddSchedule("digest", "0 9 * * *", 0, noop); err != nil {
		t.Fatalf("AddSchedule: %v", err)
	}
	s.Start(context.Background())
	defer s.Stop(context.Background())

	s.Apply(Config{Enabled: true, Timezone: "Asia/Tokyo"})
	snap := s.Snapshot()
	if snap.Timezone != "Asia/Tokyo" {
		t.Fatalf("timezone = %q", snap.Timezone)
	}
	if len(snap.Schedules) != 1 || snap.Schedules[0].Next.IsZero() {
		t.Fatalf("schedules after apply = %+v", snap.Schedules)
	}
	if loc := snap.Schedules[0].Next.Location().String(); loc != "Asia/Tokyo" {
		t.Fatalf("next run location = %q", loc)
	}
}
