package scheduler

import (
	"context"
	"fmt"
	"sort"
	"time"

	"remindbot/internal/clock"
	"remindbot/internal/eventbus"
	"remindbot/internal/reminder"
	"remindbot/internal/task/engine"
	logx "remindbot/pkg/logx"
)

// AddOrReplace stores a reminder job for key, replacing any previous job for
// the same key. A runAt that is not strictly in the future is not scheduled
// (the old job is still removed) and the result is false.
func (s *Service) AddOrReplace(key reminder.JobKey, runAt time.Time, p reminder.Payload) (bool, error) {
	if key.NoteID <= 0 {
		return false, fmt.Errorf("reminder job: invalid note id %d", key.NoteID)
	}
	if key.Kind != reminder.KindMain && key.Kind != reminder.KindPre {
		return false, fmt.Errorf("reminder job: invalid kind %q", key.Kind)
	}

	s.jmu.Lock()
	replaced := s.removeJobLocked(key)
	if !runAt.After(s.clock.Now()) {
		s.jmu.Unlock()
		if replaced != nil {
			s.publishJob(eventbus.ReminderRemoved, replaced)
		}
		s.log.Debug("reminder not scheduled: run time passed", logx.String("job", key.String()), logx.Time("run_at", runAt))
		return false, nil
	}

	s.jobSeq++
	j := &reminderJob{key: key, runAt: runAt.UTC(), payload: p, ver: s.jobSeq}
	if s.armed {
		j.timer = s.armLocked(j)
	}
	s.jobs[key] = j
	s.jmu.Unlock()

	s.publishJob(eventbus.ReminderScheduled, j)
	s.log.Debug("reminder scheduled", logx.String("job", key.String()), logx.Time("run_at", j.runAt), logx.Bool("replaced", replaced != nil))
	return true, nil
}

// Remove drops the job for key. It reports whether one existed.
func (s *Service) Remove(key reminder.JobKey) bool {
	s.jmu.Lock()
	j := s.removeJobLocked(key)
	s.jmu.Unlock()
	if j == nil {
		return false
	}
	s.publishJob(eventbus.ReminderRemoved, j)
	return true
}

// RemoveByNote drops both the main and the pre job of a note and returns how
// many were removed.
func (s *Service) RemoveByNote(noteID int64) int {
	n := 0
	for _, k := range []reminder.Kind{reminder.KindMain, reminder.KindPre} {
		if s.Remove(reminder.JobKey{NoteID: noteID, Kind: k}) {
			n++
		}
	}
	if n > 0 {
		s.log.Debug("reminders removed", logx.Note(noteID), logx.Int("count", n))
	}
	return n
}

func (s *Service) IsEmpty() bool {
	s.jmu.Lock()
	defer s.jmu.Unlock()
	return len(s.jobs) == 0
}

// Pending returns the job stored for key.
func (s *Service) Pending(key reminder.JobKey) (reminder.PendingJob, bool) {
	s.jmu.Lock()
	defer s.jmu.Unlock()
	j, ok := s.jobs[key]
	if !ok {
		return reminder.PendingJob{}, false
	}
	return j.pending(), true
}

// ListPending returns every stored job ordered by run time.
func (s *Service) ListPending() []reminder.PendingJob {
	s.jmu.Lock()
	out := make([]reminder.PendingJob, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j.pending())
	}
	s.jmu.Unlock()

	sort.Slice(out, func(i, k int) bool {
		if !out[i].RunAt.Equal(out[k].RunAt) {
			return out[i].RunAt.Before(out[k].RunAt)
		}
		return out[i].Name < out[k].Name
	})
	return out
}

func (s *Service) removeJobLocked(key reminder.JobKey) *reminderJob {
	j, ok := s.jobs[key]
	if !ok {
		return nil
	}
	if j.timer != nil {
		j.timer.Stop()
	}
	delete(s.jobs, key)
	return j
}

// armLocked starts the timer for j. Call with jmu held.
func (s *Service) armLocked(j *reminderJob) clock.Timer {
	delay := max(j.runAt.Sub(s.clock.Now()), 0)
	key, ver := j.key, j.ver
	return s.clock.AfterFunc(delay, func() { s.onDue(key, ver) })
}

// armJobs starts timers for every stored job. Jobs whose run time passed
// while disarmed are dropped, not fired; the reconcile sweep moves overdue
// recurring notes on.
func (s *Service) armJobs() int {
	s.jmu.Lock()
	s.armed = true
	now := s.clock.Now()
	var stale []*reminderJob
	for key, j := range s.jobs {
		if j.timer != nil {
			j.timer.Stop()
			j.timer = nil
		}
		if !j.runAt.After(now) {
			delete(s.jobs, key)
			stale = append(stale, j)
			continue
		}
		j.timer = s.armLocked(j)
	}
	n := len(s.jobs)
	s.jmu.Unlock()

	for _, j := range stale {
		s.publishJob(eventbus.ReminderRemoved, j)
		s.log.Info("stale reminder dropped on arm", logx.String("job", j.key.String()), logx.Time("run_at", j.runAt))
	}
	return n
}

func (s *Service) disarmJobs() {
	s.jmu.Lock()
	defer s.jmu.Unlock()
	s.armed = false
	for _, j := range s.jobs {
		if j.timer != nil {
			j.timer.Stop()
			j.timer = nil
		}
	}
}

// onDue runs on the timer goroutine. A callback whose version no longer
// matches belongs to a replaced or removed job and is ignored.
func (s *Service) onDue(key reminder.JobKey, ver uint64) {
	s.jmu.Lock()
	j, ok := s.jobs[key]
	if !ok || j.ver != ver {
		s.jmu.Unlock()
		return
	}
	// delete before dispatch so a re-registration from the handler lands cleanly
	delete(s.jobs, key)
	fire := s.fire
	timeout := s.fireTimeout
	s.jmu.Unlock()

	s.publishJob(eventbus.ReminderFired, j)
	if fire == nil {
		s.log.Warn("reminder due but no fire handler installed", logx.String("job", key.String()))
		return
	}

	payload := j.payload
	run := func(ctx context.Context) error { return fire(ctx, payload) }
	name := key.String()

	if s.engine == nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := run(ctx); err != nil {
			s.log.Warn("reminder fire failed", logx.String("job", name), logx.Err(err))
		}
		return
	}
	err := s.engine.Enqueue(engine.Task{
		Name:    name,
		Timeout: timeout,
		Run:     run,
		Opt:     TaskOptions{Overlap: engine.OverlapAllow},
	})
	if err != nil {
		s.reportEnqueueError("reminder", name, err)
	}
}

func (s *Service) publishJob(typ string, j *reminderJob) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: typ, Data: j.pending()})
}
