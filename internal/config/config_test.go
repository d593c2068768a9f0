package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remindbot/internal/reminder"
)

const validJSON = `{
  "telegram": {"token": "123:abc", "poll_timeout": "10s"},
  "logging": {"level": "info", "console": true},
  "storage": {"path": "./data/remindbot.db"},
  "scheduler": {"enabled": true, "timezone": "UTC"},
  "notifier": {"rate_per_sec": 20, "dedup_window": "10m", "persist_dedup": true},
  "reminders": {"vip_default_time": "08:30", "reconcile": "@every 15m", "reconcile_grace": "10m"},
  "status": {"enabled": true, "addr": "127.0.0.1:8089"}
}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestLoadJSON(t *testing.T) {
	t.Parallel()
	m := NewManager(writeFile(t, "config.json", validJSON))
	cfg, err := m.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "123:abc", cfg.Telegram.Token)
	assert.True(t, cfg.Notifier.IsEnabled())
	assert.Equal(t, "@every 15m", cfg.Reminders.Reconcile)
	assert.Same(t, cfg, m.Get())
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	yml := `
telegram:
  token: "123:abc"
storage:
  path: /tmp/r.db
notifier:
  enabled: false
reminders:
  free_default_time: "12:00"
`
	cfg, err := NewManager(writeFile(t, "config.yaml", yml)).Load(context.Background())
	require.NoError(t, err)
	assert.False(t, cfg.Notifier.IsEnabled())
	assert.Equal(t, "/tmp/r.db", cfg.Storage.Path)
}

func TestLoadRejectsUnknownAndTrailing(t *testing.T) {
	t.Parallel()
	for name, body := range map[string]string{
		"unknown field": `{"telegram":{"token":"x"},"storage":{"path":"a"},"plugins":{}}`,
		"trailing data": `{"telegram":{"token":"x"},"storage":{"path":"a"}}{}`,
	} {
		_, err := NewManager(writeFile(t, "config.json", body)).Load(context.Background())
		assert.Error(t, err, name)
	}
}

func TestEnvOverlay(t *testing.T) {
	t.Setenv("REMINDBOT_TELEGRAM_TOKEN", "from-env")
	t.Setenv("REMINDBOT_STORAGE_PATH", "/var/lib/remindbot/db")
	cfg, err := NewManager(writeFile(t, "config.json", `{"storage":{"path":"x"}}`)).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Telegram.Token)
	assert.Equal(t, "/var/lib/remindbot/db", cfg.Storage.Path)
}

func TestValidate(t *testing.T) {
	t.Parallel()
	base := func() *Config {
		return &Config{
			Telegram: TelegramConfig{Token: "t"},
			Storage:  StorageConfig{Path: "db"},
		}
	}
	require.NoError(t, Validate(base()))

	tests := []struct {
		name string
		mut  func(c *Config)
	}{
		{"missing token", func(c *Config) { c.Telegram.Token = "" }},
		{"missing storage path", func(c *Config) { c.Storage.Path = "" }},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }},
		{"bad duration", func(c *Config) { c.Notifier.DedupWindow = "ten minutes" }},
		{"negative duration", func(c *Config) { c.Reminders.ReconcileGrace = "-1m" }},
		{"bad clock", func(c *Config) { c.Reminders.VIPDefaultTime = "25:00" }},
		{"bad reconcile", func(c *Config) { c.Reminders.Reconcile = "soon" }},
		{"bad timezone", func(c *Config) { c.Scheduler.Timezone = "Mars/Olympus" }},
		{"push without endpoint", func(c *Config) { c.Push.Enabled = true }},
		{"status addr", func(c *Config) { c.Status.Addr = "not an addr" }},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := base()
			tt.mut(c)
			assert.Error(t, Validate(c))
		})
	}

	c := base()
	c.Reminders.Reconcile = "off"
	assert.NoError(t, Validate(c))
}

func TestParseClockOrDefault(t *testing.T) {
	t.Parallel()
	got, err := ParseClockOrDefault("x", "", reminder.DefaultVIPTime)
	require.NoError(t, err)
	assert.Equal(t, reminder.DefaultVIPTime, got)

	got, err = ParseClockOrDefault("x", "07:45", reminder.DefaultVIPTime)
	require.NoError(t, err)
	assert.Equal(t, reminder.ClockTime{Hour: 7, Minute: 45}, got)
}

func TestWatchPublishesValidChanges(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.json", validJSON)
	m := NewManager(path)
	_, err := m.Load(context.Background())
	require.NoError(t, err)

	sub := m.Subscribe(1)
	defer m.Unsubscribe(sub)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.Watch(ctx) }()
	// let the watcher register
	time.Sleep(200 * time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte(`{"telegram":{"token":"t"},"storage":{"path":"db"},"logging":{"level":"loud"}}`), 0o600))
	require.NoError(t, os.WriteFile(path, []byte(`{"telegram":{"token":"t"},"storage":{"path":"db"},"logging":{"level":"debug"}}`), 0o600))

	select {
	case cfg := <-sub:
		assert.Equal(t, "debug", cfg.Logging.Level)
	case <-time.After(5 * time.Second):
		t.Fatal("no config published")
	}
}

func TestSummarizeConfigChange(t *testing.T) {
	t.Parallel()
	oldCfg := &Config{Telegram: TelegramConfig{Token: "a"}, Logging: LoggingConfig{Level: "info"}}
	newCfg := &Config{Telegram: TelegramConfig{Token: "b"}, Logging: LoggingConfig{Level: "debug"}, Reminders: RemindersConfig{Reconcile: "off"}}

	changed, attrs := SummarizeConfigChange(oldCfg, newCfg)
	assert.Equal(t, []string{"telegram", "logging", "reminders"}, changed)
	assert.NotEmpty(t, attrs)
	assert.Equal(t, []string{"telegram"}, RestartRequired(changed))
}
