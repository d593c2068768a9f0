package app

import (
	"context"
	"strings"
	"time"

	"remindbot/internal/config"
	logx "remindbot/pkg/logx"
)

// applyConfig pushes a validated config into the running components.
// Sections that need a restart are only reported.
func (a *App) applyConfig(ctx context.Context, prev, next *config.Config) {
	sections, attrs := config.SummarizeConfigChange(prev, next)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	changed := logx.String("changed", strings.Join(sections, ","))
	a.log.Debug("config change summary", append([]logx.Field{changed}, attrs...)...)

	if restart := config.RestartRequired(sections); len(restart) > 0 {
		a.log.Warn("config changed; restart required for changes to take effect", logx.String("sections", strings.Join(restart, ",")))
	}

	a.logs.Apply(mapLoggingConfig(next))

	// engine before scheduler on enable, scheduler first on disable
	prevSched := a.sched.Enabled()
	if engCfg, err := mapTaskEngineConfig(next); err != nil {
		a.log.Warn("invalid task_engine config; keeping previous", logx.Err(err))
	} else {
		if prevSched && !next.Scheduler.Enabled {
			a.log.Info("scheduler disabled via config")
			stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			a.sched.Stop(stopCtx)
			cancel()
		}
		a.engine.Apply(ctx, engCfg)
		a.reg.Set("task.engine", a.engine.Supervisor())
	}
	a.sched.Apply(mapSchedulerConfig(next))
	if !prevSched && next.Scheduler.Enabled {
		a.log.Info("scheduler enabled via config")
		a.sched.Start(ctx)
	}

	if ncfg, err := mapNotifierConfig(next); err != nil {
		a.log.Warn("invalid notifier config; keeping previous", logx.Err(err))
	} else {
		wasOn := prev.Notifier.IsEnabled()
		a.notif.Apply(ncfg)
		switch {
		case wasOn && !ncfg.Enabled:
			a.log.Info("notifier disabled via config")
			stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			_ = a.notif.Stop(stopCtx)
			cancel()
		case !wasOn && ncfg.Enabled:
			a.log.Info("notifier enabled via config")
			a.notif.Start(ctx)
		}
		a.reg.Set("notifier", a.notif.Supervisor())
	}

	if lc, err := mapLifecycleConfig(next); err != nil {
		a.log.Warn("invalid reminders config; keeping previous", logx.Err(err))
	} else {
		a.reminders.Apply(lc)
	}
	if spec := reconcileSpec(next); spec != reconcileSpec(prev) {
		if err := a.setReconcile(spec); err != nil {
			a.log.Warn("reconcile schedule not updated", logx.Err(err))
		}
	}

	a.log.Info("config reloaded", append([]logx.Field{changed}, attrs...)...)
}
