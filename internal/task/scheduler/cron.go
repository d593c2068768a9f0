package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"remindbot/internal/task/engine"
	logx "remindbot/pkg/logx"
)

// AddSchedule registers a named recurring job from a schedule string (see
// ParseSchedule). Runs never overlap: a trigger while the previous run is
// queued or running is skipped. Registering an existing name replaces it.
func (s *Service) AddSchedule(name, schedule string, timeout time.Duration, job func(ctx context.Context) error) (string, error) {
	ps, err := ParseSchedule(schedule)
	if err != nil {
		return "", err
	}
	switch ps.Kind {
	case SpecCron:
		return s.AddCron(name, ps.Cron, timeout, job)
	case SpecInterval:
		return s.AddInterval(name, ps.Every, timeout, job)
	default:
		return "", fmt.Errorf("unsupported schedule kind %d", ps.Kind)
	}
}

func (s *Service) AddCron(name, spec string, timeout time.Duration, job func(ctx context.Context) error) (string, error) {
	if _, err := s.parser.Parse(spec); err != nil {
		return "", fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}
	return s.addDef(name, "cron", spec, timeout, job)
}

func (s *Service) AddInterval(name string, every time.Duration, timeout time.Duration, job func(ctx context.Context) error) (string, error) {
	if every <= 0 {
		return "", errors.New("interval must be > 0")
	}
	return s.addDef(name, "interval", "@every "+every.String(), timeout, job)
}

func (s *Service) addDef(name, kind, spec string, timeout time.Duration, job func(ctx context.Context) error) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("name required")
	}
	if job == nil {
		return "", errors.New("job required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeScheduleLocked(name)

	s.defs = append(s.defs, scheduleDef{
		id:      fmt.Sprintf("%s:%d", kind, time.Now().UnixNano()),
		name:    name,
		spec:    spec,
		timeout: timeout,
		job:     job,
		opt:     TaskOptions{Overlap: engine.OverlapSkipIfRunning},
		state:   &engine.RunState{},
	})
	if s.c == nil {
		// armed on Start
		return name, nil
	}
	d := &s.defs[len(s.defs)-1]
	if err := s.addCronLocked(d); err != nil {
		s.log.Error("schedule register failed", logx.String("name", name), logx.String("spec", spec), logx.Err(err))
		return name, err
	}
	fields := []logx.Field{logx.String("name", name), logx.String("spec", spec), logx.Duration("timeout", timeout)}
	if next := s.previewNextRunsLocked(spec, 3); next != "" {
		fields = append(fields, logx.String("next", next))
	}
	s.log.Debug("schedule registered", fields...)
	return name, nil
}

// RemoveSchedule unregisters a named schedule. It reports whether one existed.
func (s *Service) RemoveSchedule(name string) bool {
	s.mu.Lock()
	removed := s.removeScheduleLocked(name)
	s.mu.Unlock()
	if removed {
		s.log.Debug("schedule removed", logx.String("name", name))
	}
	return removed
}

func (s *Service) removeScheduleLocked(name string) bool {
	name = strings.TrimSpace(name)
	n := 0
	for _, d := range s.defs {
		if d.name == name {
			if s.c != nil && d.entryID != 0 {
				s.c.Remove(d.entryID)
			}
			continue
		}
		s.defs[n] = d
		n++
	}
	removed := n < len(s.defs)
	s.defs = s.defs[:n]
	return removed
}

func (s *Service) addCronLocked(d *scheduleDef) error {
	name, timeout, run, opt, state := d.name, d.timeout, d.job, d.opt, d.state
	job := cron.FuncJob(func() {
		if s.engine == nil {
			ctx, cancel := context.WithTimeout(context.Background(), max(timeout, time.Minute))
			defer cancel()
			if err := run(ctx); err != nil {
				s.log.Warn("schedule run failed", logx.String("schedule", name), logx.Err(err))
			}
			return
		}
		err := s.engine.Enqueue(engine.Task{Name: name, Timeout: timeout, Run: run, Opt: opt, State: state})
		if err != nil {
			s.reportEnqueueError(name, name, err)
		}
	})

	// @every schedules get a random first-run offset to avoid a burst at boot.
	if every, ok := strings.CutPrefix(strings.TrimSpace(d.spec), "@every"); ok {
		if dur, err := time.ParseDuration(strings.TrimSpace(every)); err == nil && dur > 0 {
			sched, spread := makeIntervalScheduleWithSpread(dur, time.Now().In(s.loc), d.name)
			d.startupSpread = spread
			d.entryID = s.c.Schedule(sched, job)
			return nil
		}
	}

	d.startupSpread = 0
	eid, err := s.c.AddJob(d.spec, job)
	if err != nil {
		return err
	}
	d.entryID = eid
	return nil
}

// previewNextRunsLocked lists the next n run times for debug logs.
func (s *Service) previewNextRunsLocked(spec string, n int) string {
	if !s.log.Enabled(logx.LevelDebug) || n <= 0 {
		return ""
	}
	sched, err := s.parser.Parse(spec)
	if err != nil {
		return ""
	}
	loc := s.loc
	if loc == nil {
		loc = time.Local
	}
	t := time.Now().In(loc)
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		if t = sched.Next(t); t.IsZero() {
			break
		}
		out = append(out, t.Format("2006-01-02 15:04:05"))
	}
	return strings.Join(out, ", ")
}
