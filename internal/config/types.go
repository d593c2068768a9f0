package config

// Config is the on-disk configuration. Durations are Go duration strings
// ("500ms", "10s", "1m"); clock times are "HH:MM".
type Config struct {
	Telegram   TelegramConfig   `json:"telegram"`
	Logging    LoggingConfig    `json:"logging"`
	Storage    StorageConfig    `json:"storage"`
	Scheduler  SchedulerConfig  `json:"scheduler"`
	TaskEngine TaskEngineConfig `json:"task_engine"`
	Notifier   NotifierConfig   `json:"notifier"`
	Push       PushConfig       `json:"push"`
	Reminders  RemindersConfig  `json:"reminders"`
	Status     StatusConfig     `json:"status"`
}

type TelegramConfig struct {
	// Token may be left empty in the file and supplied as REMINDBOT_TELEGRAM_TOKEN.
	Token       string `json:"token" validate:"required"`
	PollTimeout string `json:"poll_timeout,omitempty"`
	// GroupLog is the chat id receiving forwarded warn/error logs.
	GroupLog int64 `json:"group_log,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path" validate:"required_if=Enabled true"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level,omitempty" validate:"omitempty,oneof=debug info warn warning error"`
	RatePerSec int    `json:"rate_per_sec,omitempty" validate:"gte=0"`
}

// StorageConfig points at the SQLite database.
//
//	"storage": { "path": "./data/remindbot.db", "busy_timeout": "5s" }
type StorageConfig struct {
	Path        string `json:"path" validate:"required"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

type SchedulerConfig struct {
	Enabled bool `json:"enabled"`
	// Timezone for cron schedules.
	Timezone string `json:"timezone,omitempty"`
}

// TaskEngineConfig controls execution of fired reminders and periodic tasks.
//
// Defaults (when omitted or zero):
//   - workers: 2
//   - queue_size: 256
//   - default_timeout: "0s" (disabled)
//   - max_queue_delay: "0s" (disabled)
//   - history_size: 200
//   - retry_max: 3
type TaskEngineConfig struct {
	Workers        int    `json:"workers,omitempty" validate:"gte=0,lte=256"`
	QueueSize      int    `json:"queue_size,omitempty" validate:"gte=0"`
	DefaultTimeout string `json:"default_timeout,omitempty"`
	MaxQueueDelay  string `json:"max_queue_delay,omitempty"`
	HistorySize    int    `json:"history_size,omitempty" validate:"gte=0"`
	RetryMax       int    `json:"retry_max,omitempty" validate:"gte=0"`
}

// NotifierConfig controls chat delivery. The notifier is on unless
// "enabled" is explicitly false.
type NotifierConfig struct {
	Enabled         *bool  `json:"enabled,omitempty"`
	RatePerSec      int    `json:"rate_per_sec,omitempty" validate:"gte=0"`
	SendTimeout     string `json:"send_timeout,omitempty"`
	DedupWindow     string `json:"dedup_window,omitempty"`
	DedupMaxEntries int    `json:"dedup_max_entries,omitempty" validate:"gte=0"`
	PersistDedup    bool   `json:"persist_dedup,omitempty"`
}

func (n NotifierConfig) IsEnabled() bool { return n.Enabled == nil || *n.Enabled }

type PushConfig struct {
	Enabled  bool   `json:"enabled"`
	Endpoint string `json:"endpoint,omitempty" validate:"required_if=Enabled true"`
	// Token may come from REMINDBOT_PUSH_TOKEN.
	Token   string `json:"token,omitempty"`
	Timeout string `json:"timeout,omitempty"`
}

type RemindersConfig struct {
	FreeDefaultTime string `json:"free_default_time,omitempty"`
	VIPDefaultTime  string `json:"vip_default_time,omitempty"`
	// Reconcile is the sweep schedule ("@every 15m", a cron spec, or "off").
	Reconcile      string `json:"reconcile,omitempty"`
	ReconcileGrace string `json:"reconcile_grace,omitempty"`
	// PersistRetries is the number of attempts for reminder writes.
	PersistRetries uint   `json:"persist_retries,omitempty" validate:"lte=10"`
	FireTimeout    string `json:"fire_timeout,omitempty"`
}

type StatusConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty" validate:"omitempty,hostname_port"`
	// Pprof mounts net/http/pprof under /debug.
	Pprof bool `json:"pprof,omitempty"`
}
