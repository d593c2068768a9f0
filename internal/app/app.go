package app

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"remindbot/internal/config"
	"remindbot/internal/dispatch"
	"remindbot/internal/eventbus"
	"remindbot/internal/lifecycle"
	"remindbot/internal/notifier"
	"remindbot/internal/push"
	"remindbot/internal/runtime/supervisor"
	"remindbot/internal/status"
	"remindbot/internal/storage"
	"remindbot/internal/task/engine"
	"remindbot/internal/task/scheduler"
	kit "remindbot/internal/transport"
	telegram "remindbot/internal/transport/telegram/adapter"
	"remindbot/internal/transport/telegram/router"
	logx "remindbot/pkg/logx"
)

const reconcileJob = "reminders.reconcile"

type App struct {
	cfgm *config.Manager
	sup  *supervisor.Supervisor
	reg  *supervisor.Registry

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store *storage.Store

	adapter *telegram.Adapter
	engine  *engine.Service
	sched   *scheduler.Service
	notif   *notifier.Service
	push    *push.Client
	status  *status.Service

	reminders *lifecycle.Manager
	dispatch  *dispatch.Dispatcher
	router    *router.Router

	updates chan kit.Update
}

func NewApp(ctx context.Context, cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load(ctx)
	if err != nil {
		return nil, err
	}

	// The adapter logs through this service, so the remote sink is attached
	// once the adapter exists.
	logSvc, root := logx.New(mapLoggingConfig(cfg), nil)
	log := root.With(logx.String("comp", "app"))

	adCfg, err := mapAdapterConfig(cfg)
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(adCfg, root.With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}
	logSvc.SetRemote(ad)

	bus := eventbus.New()

	storeCfg, retryCfg, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(storeCfg, root)
	if err != nil {
		return nil, err
	}
	notes := storage.WithRetry(store, retryCfg, root.With(logx.String("comp", "storage")))

	engCfg, err := mapTaskEngineConfig(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	engineSvc := engine.New(engCfg, root.With(logx.String("comp", "taskengine")), bus)
	schedSvc := scheduler.New(mapSchedulerConfig(cfg), engineSvc, root.With(logx.String("comp", "scheduler")), bus)

	lcCfg, err := mapLifecycleConfig(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	reminders := lifecycle.New(schedSvc, notes, store, lcCfg, root, lifecycle.WithBus(bus))

	notifOpts := []notifier.Option{notifier.WithDedupStore(store), notifier.WithBus(bus)}
	var pushClient *push.Client
	if pc, err := mapPushConfig(cfg); err != nil {
		_ = store.Close()
		return nil, err
	} else if pc.Enabled {
		pushClient, err = push.New(pc, store, root.With(logx.String("comp", "push")))
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		notifOpts = append(notifOpts, notifier.WithPusher(pushClient))
		log.Info("push enabled", logx.String("endpoint", pc.Endpoint))
	}
	ncfg, err := mapNotifierConfig(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	notifSvc := notifier.New(ncfg, ad, root.With(logx.String("comp", "notifier")), notifOpts...)

	disp := dispatch.New(notes, store, notifSvc, reminders, root)
	fireTO, err := fireTimeout(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	schedSvc.SetFireHandler(disp.Fire, fireTO)

	reg := supervisor.NewRegistry()
	r := router.New(root.With(logx.String("comp", "router")), router.Deps{
		Adapter:   ad,
		Reminders: reminders,
		Notes:     store,
		Profiles:  store,
		Actions:   store,
		Jobs:      schedSvc,
		Registry:  reg,
	}, router.Config{})

	statusSvc := status.New(mapStatusConfig(cfg), schedSvc, store, reg, root)

	return &App{
		cfgm:      cfgm,
		reg:       reg,
		log:       log,
		logs:      logSvc,
		bus:       bus,
		store:     store,
		adapter:   ad,
		engine:    engineSvc,
		sched:     schedSvc,
		notif:     notifSvc,
		push:      pushClient,
		status:    statusSvc,
		reminders: reminders,
		dispatch:  disp,
		router:    r,
		updates:   make(chan kit.Update, 256),
	}, nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	a.reg.Set("app", a.sup)
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	cfg := a.cfgm.Get()

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}
	a.reg.Set("telegram.adapter", a.adapter.Supervisor())

	a.notif.Start(a.sup.Context())
	a.reg.Set("notifier", a.notif.Supervisor())

	if a.engine.Enabled() {
		a.engine.Start(a.sup.Context())
		a.reg.Set("task.engine", a.engine.Supervisor())
	}

	// jobs are parked until the scheduler starts, so nothing fires mid-reload
	n, err := a.reminders.Reload(a.sup.Context())
	if err != nil {
		// the reconcile sweep retries
		a.log.Error("startup reload failed", logx.Err(err))
	} else {
		a.log.Info("reminders reloaded", logx.Int("notes", n))
	}
	if err := a.setReconcile(reconcileSpec(cfg)); err != nil {
		return err
	}
	if a.sched.Enabled() {
		a.sched.Start(a.sup.Context())
	}

	if err := a.status.Start(a.sup.Context()); err != nil {
		a.log.Warn("status endpoint unavailable", logx.Err(err))
	}

	a.sup.Go("telegram.dispatch", func(c context.Context) error {
		return a.router.DispatchLoop(c, a.updates)
	})

	if a.bus != nil {
		events, unsub := a.bus.Subscribe(128)
		a.sup.Go0("eventbus.log", func(c context.Context) {
			defer unsub()
			for {
				select {
				case <-c.Done():
					return
				case e, ok := <-events:
					if !ok {
						return
					}
					a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
				}
			}
		})
	}

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// coalesce bursts
				for drained := false; !drained; {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						drained = true
					}
				}
				a.applyConfig(c, lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	sdNotify(a.log, daemon.SdNotifyReady)
	a.log.Info("app started")
	return nil
}

// setReconcile installs (or removes, for "") the periodic reconcile sweep.
func (a *App) setReconcile(spec string) error {
	a.sched.RemoveSchedule(reconcileJob)
	if spec == "" {
		a.log.Info("reconcile sweep disabled")
		return nil
	}
	_, err := a.sched.AddSchedule(reconcileJob, spec, time.Minute, func(ctx context.Context) error {
		res, err := a.reminders.Reconcile(ctx)
		if err != nil {
			return err
		}
		if res.Removed > 0 || res.Advanced > 0 || res.Ended > 0 {
			a.log.Info("reconcile sweep repaired jobs",
				logx.Int("registered", res.Registered),
				logx.Int("removed", res.Removed),
				logx.Int("advanced", res.Advanced),
				logx.Int("ended", res.Ended),
			)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("reminders.reconcile: %w", err)
	}
	return nil
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	sdNotify(a.log, daemon.SdNotifyStopping)

	a.sup.Cancel()

	// step bounds one shutdown step so a stuck component can't stall the rest
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		a.log.Debug("stop step begin", logx.String("name", name), logx.Duration("max", max))

		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			// never extend the caller's deadline
			if dl, ok := ctx.Deadline(); ok {
				rem := time.Until(dl)
				if rem <= 0 {
					max = 0
				} else if rem < max {
					max = rem
				}
			}
			if max > 0 {
				stepCtx, cancel = context.WithTimeout(ctx, max)
				defer cancel()
			}
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			took := time.Since(start)
			if took >= 500*time.Millisecond {
				a.log.Info("stop step end", logx.String("name", name), logx.Duration("took", took))
			} else {
				a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", took))
			}
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Err(stepCtx.Err()),
				logx.Duration("elapsed", time.Since(start)),
			)
			go func() {
				err := <-done
				took := time.Since(start)
				if err != nil {
					a.log.Warn("stop step finished after deadline", logx.String("name", name), logx.Err(err), logx.Duration("took", took))
				} else {
					a.log.Info("stop step finished after deadline", logx.String("name", name), logx.Duration("took", took))
				}
			}()
		}
	}

	// timers first so nothing new is enqueued while the engine drains
	step("scheduler", 2*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	step("taskengine", 3*time.Second, func(c context.Context) error { a.engine.Stop(c); return nil })
	step("status", time.Second, func(c context.Context) error { a.status.Stop(c); return nil })
	step("notifier", time.Second, a.notif.Stop)
	step("push", time.Second, func(context.Context) error {
		if a.push == nil {
			return nil
		}
		return a.push.Close()
	})
	step("adapter", 2*time.Second, a.adapter.Stop)
	step("storage", time.Second, func(context.Context) error { return a.store.Close() })
	step("supervisor", 2*time.Second, a.sup.Wait)

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}
