package scheduler

import "time"

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	snap := Snapshot{Enabled: s.cfg.Enabled, Timezone: s.cfg.Timezone}
	for _, d := range s.defs {
		it := ScheduleInfo{ID: d.id, Name: d.name, Spec: d.spec, Timeout: d.timeout}
		if s.c != nil && d.entryID != 0 {
			e := s.c.Entry(d.entryID)
			it.Next, it.Prev = e.Next, e.Prev
		}
		snap.Schedules = append(snap.Schedules, it)
	}
	if snap.Timezone == "" && s.loc != nil {
		snap.Timezone = s.loc.String()
	}
	eng := s.engine
	s.mu.Unlock()

	s.jmu.Lock()
	snap.PendingJobs = len(s.jobs)
	var next time.Time
	for _, j := range s.jobs {
		if next.IsZero() || j.runAt.Before(next) {
			next = j.runAt
		}
	}
	snap.NextReminder = next
	s.jmu.Unlock()

	if eng != nil {
		snap.Engine = eng.Snapshot()
	}
	return snap
}
