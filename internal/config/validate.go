package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"

	"remindbot/internal/reminder"
	"remindbot/internal/task/scheduler"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// envOverlay lists the settings that may come from the environment,
// prefixed with REMINDBOT_.
type envOverlay struct {
	TelegramToken string `envconfig:"TELEGRAM_TOKEN"`
	PushToken     string `envconfig:"PUSH_TOKEN"`
	StoragePath   string `envconfig:"STORAGE_PATH"`
	LogLevel      string `envconfig:"LOG_LEVEL"`
}

// ApplyEnv overrides cfg with non-empty REMINDBOT_* variables.
func ApplyEnv(cfg *Config) error {
	var o envOverlay
	if err := envconfig.Process("REMINDBOT", &o); err != nil {
		return fmt.Errorf("env overlay: %w", err)
	}
	if o.TelegramToken != "" {
		cfg.Telegram.Token = o.TelegramToken
	}
	if o.PushToken != "" {
		cfg.Push.Token = o.PushToken
	}
	if o.StoragePath != "" {
		cfg.Storage.Path = o.StoragePath
	}
	if o.LogLevel != "" {
		cfg.Logging.Level = o.LogLevel
	}
	return nil
}

// Validate checks struct constraints and every string-encoded field.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	var errs []error
	check := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	for path, raw := range map[string]string{
		"telegram.poll_timeout":       cfg.Telegram.PollTimeout,
		"storage.busy_timeout":        cfg.Storage.BusyTimeout,
		"task_engine.default_timeout": cfg.TaskEngine.DefaultTimeout,
		"task_engine.max_queue_delay": cfg.TaskEngine.MaxQueueDelay,
		"notifier.send_timeout":       cfg.Notifier.SendTimeout,
		"notifier.dedup_window":       cfg.Notifier.DedupWindow,
		"push.timeout":                cfg.Push.Timeout,
		"reminders.reconcile_grace":   cfg.Reminders.ReconcileGrace,
		"reminders.fire_timeout":      cfg.Reminders.FireTimeout,
	} {
		_, err := ParseDurationField(path, raw)
		check(err)
	}
	for path, raw := range map[string]string{
		"reminders.free_default_time": cfg.Reminders.FreeDefaultTime,
		"reminders.vip_default_time":  cfg.Reminders.VIPDefaultTime,
	} {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		if _, err := reminder.ParseClockTime(raw); err != nil {
			check(fmt.Errorf("%s: %w", path, err))
		}
	}
	if spec := strings.TrimSpace(cfg.Reminders.Reconcile); spec != "" && !strings.EqualFold(spec, "off") {
		if _, err := scheduler.ParseSchedule(spec); err != nil {
			check(fmt.Errorf("reminders.reconcile: %w", err))
		}
	}
	if ep := strings.TrimSpace(cfg.Push.Endpoint); ep != "" {
		if err := validate.Var(ep, "url"); err != nil {
			check(fmt.Errorf("push.endpoint: %w", err))
		}
	}
	if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			check(fmt.Errorf("scheduler.timezone: %w", err))
		}
	}
	return errors.Join(errs...)
}
