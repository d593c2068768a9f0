package scheduler

import (
	"errors"
	"time"

	"remindbot/internal/task/engine"
	logx "remindbot/pkg/logx"
)

const enqueueWarnThrottle = 5 * time.Second

// reportEnqueueError logs an enqueue failure for task name, throttled per
// group so a burst of reminder drops does not flood the log.
func (s *Service) reportEnqueueError(group, name string, err error) {
	if err == nil {
		return
	}
	// overlap skips are routine for sweeps
	if errors.Is(err, engine.ErrOverlapSkip) {
		s.log.Debug("schedule trigger skipped", logx.String("schedule", name), logx.Err(err))
		return
	}

	now := time.Now()
	s.enqMu.Lock()
	if s.lastEnqWarn == nil {
		s.lastEnqWarn = make(map[string]time.Time)
	}
	last := s.lastEnqWarn[group]
	if !last.IsZero() && now.Sub(last) < enqueueWarnThrottle {
		s.enqMu.Unlock()
		return
	}
	s.lastEnqWarn[group] = now
	s.enqMu.Unlock()

	s.log.Warn("failed to enqueue task", logx.String("task", name), logx.Err(err))
}
