package config

import (
	"reflect"
	"strings"

	logx "remindbot/pkg/logx"
)

// SummarizeConfigChange lists the sections that differ and returns fields
// safe to log. Tokens are never included.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	var (
		changed []string
		attrs   []logx.Field
	)
	add := func(section string, differs bool, fields ...logx.Field) {
		if !differs {
			return
		}
		changed = append(changed, section)
		attrs = append(attrs, fields...)
	}

	ot, nt := oldCfg.Telegram, newCfg.Telegram
	add("telegram", ot.PollTimeout != nt.PollTimeout || ot.GroupLog != nt.GroupLog || ot.Token != nt.Token,
		logx.String("telegram.poll_timeout", nt.PollTimeout),
		logx.Bool("telegram.group_log_set", nt.GroupLog != 0),
		logx.Bool("telegram.token_changed", ot.Token != nt.Token),
	)
	add("logging", oldCfg.Logging != newCfg.Logging,
		logx.String("logging.level", newCfg.Logging.Level),
		logx.Bool("logging.file", newCfg.Logging.File.Enabled),
		logx.Bool("logging.telegram", newCfg.Logging.Telegram.Enabled),
	)
	add("storage", oldCfg.Storage != newCfg.Storage,
		logx.String("storage.path", newCfg.Storage.Path),
	)
	add("scheduler", oldCfg.Scheduler != newCfg.Scheduler,
		logx.Bool("scheduler.enabled", newCfg.Scheduler.Enabled),
		logx.String("scheduler.timezone", newCfg.Scheduler.Timezone),
	)
	add("task_engine", oldCfg.TaskEngine != newCfg.TaskEngine,
		logx.Int("task_engine.workers", newCfg.TaskEngine.Workers),
		logx.Int("task_engine.queue_size", newCfg.TaskEngine.QueueSize),
	)
	add("notifier", !reflect.DeepEqual(oldCfg.Notifier, newCfg.Notifier),
		logx.Bool("notifier.enabled", newCfg.Notifier.IsEnabled()),
		logx.Int("notifier.rate_per_sec", newCfg.Notifier.RatePerSec),
		logx.String("notifier.dedup_window", newCfg.Notifier.DedupWindow),
	)
	op, np := oldCfg.Push, newCfg.Push
	add("push", op.Enabled != np.Enabled || op.Endpoint != np.Endpoint || op.Timeout != np.Timeout || op.Token != np.Token,
		logx.Bool("push.enabled", np.Enabled),
		logx.String("push.endpoint", redactURL(np.Endpoint)),
	)
	add("reminders", oldCfg.Reminders != newCfg.Reminders,
		logx.String("reminders.reconcile", newCfg.Reminders.Reconcile),
		logx.String("reminders.free_default_time", newCfg.Reminders.FreeDefaultTime),
		logx.String("reminders.vip_default_time", newCfg.Reminders.VIPDefaultTime),
	)
	add("status", oldCfg.Status != newCfg.Status,
		logx.Bool("status.enabled", newCfg.Status.Enabled),
		logx.String("status.addr", newCfg.Status.Addr),
	)
	return changed, attrs
}

// RestartRequired reports sections that cannot be applied to a running
// process.
func RestartRequired(changed []string) []string {
	var out []string
	for _, s := range changed {
		switch s {
		case "telegram", "storage", "push", "status":
			out = append(out, s)
		}
	}
	return out
}

// redactURL drops the query string, which may carry keys.
func redactURL(u string) string {
	if i := strings.IndexByte(u, '?'); i >= 0 {
		return u[:i] + "?…"
	}
	return u
}
