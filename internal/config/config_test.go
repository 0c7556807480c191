package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MacroTracker/internal/scheduler"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_DefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.UserID)
	assert.True(t, cfg.Sessions.ShowAsia)
	assert.True(t, cfg.Sessions.ShowLondon)
	assert.True(t, cfg.Sessions.ShowNY)
	assert.Equal(t, scheduler.DefaultSpec, cfg.Schedule.TickSpec)
	assert.Equal(t, 10*time.Second, cfg.Journal.WriteTimeout)
	assert.Equal(t, "data/macro_tracker.db", cfg.Database.SQLitePath)
	assert.False(t, cfg.TelegramEnabled())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_YAML(t *testing.T) {
	path := writeConfig(t, `
user_id: trader-1
telegram:
  bot_token: abc
  chat_id: "42"
sessions:
  show_asia: false
schedule:
  tick_spec: "*/5 * * * * *"
  alert_lead_minutes: 5
journal:
  write_timeout: 3s
export:
  dir: /tmp/exports
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "trader-1", cfg.UserID)
	assert.True(t, cfg.TelegramEnabled())
	assert.Equal(t, "42", cfg.Telegram.ChatID)
	assert.Equal(t, 3, cfg.Telegram.MaxRetries)
	assert.False(t, cfg.Sessions.ShowAsia)
	assert.True(t, cfg.Sessions.ShowLondon, "unset toggles keep their default")
	assert.Equal(t, 5, cfg.Schedule.AlertLeadMinutes)
	assert.Equal(t, 3*time.Second, cfg.Journal.WriteTimeout)
	assert.Equal(t, "/tmp/exports", cfg.Export.Dir)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "user_id: from-file\nsessions:\n  show_ny: true\n")
	t.Setenv("MACRO_USER_ID", "from-env")
	t.Setenv("SHOW_NY_MACROS", "false")
	t.Setenv("ALERT_LEAD_MINUTES", "10")
	t.Setenv("WRITE_TIMEOUT", "750ms")
	t.Setenv("SQLITE_PATH", "/var/lib/macro.db")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.UserID)
	assert.False(t, cfg.Sessions.ShowNY)
	assert.Equal(t, 10, cfg.Schedule.AlertLeadMinutes)
	assert.Equal(t, 750*time.Millisecond, cfg.Journal.WriteTimeout)
	assert.Equal(t, "/var/lib/macro.db", cfg.Database.SQLitePath)
}

func TestLoad_BadInput(t *testing.T) {
	_, err := Load(writeConfig(t, "user_id: [unclosed"))
	assert.Error(t, err)

	t.Setenv("SHOW_ASIA_MACROS", "maybe")
	_, err = Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "SHOW_ASIA_MACROS")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"token without chat", func(c *Config) { c.Telegram.BotToken = "x" }, "chat_id"},
		{"bad tick spec", func(c *Config) { c.Schedule.TickSpec = "every second" }, "tick_spec"},
		{"negative lead", func(c *Config) { c.Schedule.AlertLeadMinutes = -1 }, "alert_lead_minutes"},
		{"lead too long", func(c *Config) { c.Schedule.AlertLeadMinutes = 24 * 60 }, "alert_lead_minutes"},
		{"zero timeout", func(c *Config) { c.Journal.WriteTimeout = 0 }, "write_timeout"},
		{"negative retries", func(c *Config) { c.Telegram.MaxRetries = -1 }, "max_retries"},
		{"no user", func(c *Config) { c.UserID = "" }, "user_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestPath(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	assert.Equal(t, DefaultPath, Path())
	t.Setenv("CONFIG_PATH", "/etc/macro.yaml")
	assert.Equal(t, "/etc/macro.yaml", Path())
}
