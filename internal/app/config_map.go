package app

import (
	"strings"
	"time"

	"remindbot/internal/config"
	"remindbot/internal/lifecycle"
	"remindbot/internal/notifier"
	"remindbot/internal/push"
	"remindbot/internal/reminder"
	"remindbot/internal/status"
	"remindbot/internal/storage"
	"remindbot/internal/task/engine"
	"remindbot/internal/task/scheduler"
	telegram "remindbot/internal/transport/telegram/adapter"
	logx "remindbot/pkg/logx"
)

const defaultReconcile = "@every 15m"

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Remote: logx.RemoteConfig{
			// no target chat means nowhere to forward to
			Enabled:    cfg.Logging.Telegram.Enabled && cfg.Telegram.GroupLog != 0,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

func mapAdapterConfig(cfg *config.Config) (telegram.Config, error) {
	poll, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return telegram.Config{}, err
	}
	return telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: poll,
		LogChatID:   cfg.Telegram.GroupLog,
	}, nil
}

func mapStorageConfig(cfg *config.Config) (storage.Config, storage.RetryConfig, error) {
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 5*time.Second)
	if err != nil {
		return storage.Config{}, storage.RetryConfig{}, err
	}
	attempts := cfg.Reminders.PersistRetries
	if attempts == 0 {
		attempts = 3
	}
	return storage.Config{Path: strings.TrimSpace(cfg.Storage.Path), BusyTimeout: busy},
		storage.RetryConfig{Attempts: attempts, Delay: 200 * time.Millisecond}, nil
}

func mapTaskEngineConfig(cfg *config.Config) (engine.Config, error) {
	te := cfg.TaskEngine
	workers := te.Workers
	if workers <= 0 {
		workers = 2
	}
	queueSize := te.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}
	historySize := te.HistorySize
	if historySize == 0 {
		historySize = 200
	}
	retryMax := te.RetryMax
	if retryMax == 0 {
		retryMax = 3
	}

	defTimeout, err := config.ParseDurationField("task_engine.default_timeout", te.DefaultTimeout)
	if err != nil {
		return engine.Config{}, err
	}
	maxQueueDelay, err := config.ParseDurationField("task_engine.max_queue_delay", te.MaxQueueDelay)
	if err != nil {
		return engine.Config{}, err
	}

	return engine.Config{
		// reminders fire through the engine, so it runs whenever the scheduler does
		Enabled:        cfg.Scheduler.Enabled,
		Workers:        workers,
		QueueSize:      queueSize,
		DefaultTimeout: defTimeout,
		MaxQueueDelay:  maxQueueDelay,
		HistorySize:    historySize,
		RetryMax:       retryMax,
	}, nil
}

func mapSchedulerConfig(cfg *config.Config) scheduler.Config {
	return scheduler.Config{
		Enabled:  cfg.Scheduler.Enabled,
		Timezone: strings.TrimSpace(cfg.Scheduler.Timezone),
	}
}

func mapNotifierConfig(cfg *config.Config) (notifier.Config, error) {
	nc := cfg.Notifier
	send, err := config.ParseDurationOrDefault("notifier.send_timeout", nc.SendTimeout, 10*time.Second)
	if err != nil {
		return notifier.Config{}, err
	}
	window, err := config.ParseDurationOrDefault("notifier.dedup_window", nc.DedupWindow, 2*time.Minute)
	if err != nil {
		return notifier.Config{}, err
	}
	return notifier.Config{
		Enabled:         nc.IsEnabled(),
		RatePerSec:      nc.RatePerSec,
		SendTimeout:     send,
		DedupWindow:     window,
		DedupMaxEntries: nc.DedupMaxEntries,
		PersistDedup:    nc.PersistDedup,
	}, nil
}

func mapPushConfig(cfg *config.Config) (push.Config, error) {
	timeout, err := config.ParseDurationOrDefault("push.timeout", cfg.Push.Timeout, 10*time.Second)
	if err != nil {
		return push.Config{}, err
	}
	return push.Config{
		Enabled:  cfg.Push.Enabled,
		Endpoint: strings.TrimSpace(cfg.Push.Endpoint),
		Token:    cfg.Push.Token,
		Timeout:  timeout,
	}, nil
}

func mapLifecycleConfig(cfg *config.Config) (lifecycle.Config, error) {
	rc := cfg.Reminders
	free, err := config.ParseClockOrDefault("reminders.free_default_time", rc.FreeDefaultTime, reminder.DefaultFreeTime)
	if err != nil {
		return lifecycle.Config{}, err
	}
	vip, err := config.ParseClockOrDefault("reminders.vip_default_time", rc.VIPDefaultTime, reminder.DefaultVIPTime)
	if err != nil {
		return lifecycle.Config{}, err
	}
	grace, err := config.ParseDurationOrDefault("reminders.reconcile_grace", rc.ReconcileGrace, 10*time.Minute)
	if err != nil {
		return lifecycle.Config{}, err
	}
	return lifecycle.Config{FreeDefault: free, VIPDefault: vip, ReconcileGrace: grace}, nil
}

// reconcileSpec returns the sweep schedule, or "" when the sweep is off.
func reconcileSpec(cfg *config.Config) string {
	spec := strings.TrimSpace(cfg.Reminders.Reconcile)
	switch {
	case spec == "":
		return defaultReconcile
	case strings.EqualFold(spec, "off"):
		return ""
	}
	return spec
}

func fireTimeout(cfg *config.Config) (time.Duration, error) {
	return config.ParseDurationOrDefault("reminders.fire_timeout", cfg.Reminders.FireTimeout, 30*time.Second)
}

func mapStatusConfig(cfg *config.Config) status.Config {
	return status.Config{
		Enabled: cfg.Status.Enabled,
		Addr:    strings.TrimSpace(cfg.Status.Addr),
		Pprof:   cfg.Status.Pprof,
	}
}
