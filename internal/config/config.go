package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"MacroTracker/internal/catalog"
	"MacroTracker/internal/scheduler"
)

// DefaultPath is used when CONFIG_PATH is unset.
const DefaultPath = "configs/config.yaml"

// Config holds all application configuration.
type Config struct {
	UserID   string `yaml:"user_id"`
	Telegram struct {
		BotToken   string `yaml:"bot_token"`
		ChatID     string `yaml:"chat_id"`
		MaxRetries int    `yaml:"max_retries"`
	} `yaml:"telegram"`
	Sessions catalog.SessionFilter `yaml:"sessions"`
	Schedule struct {
		TickSpec         string `yaml:"tick_spec"`
		AlertLeadMinutes int    `yaml:"alert_lead_minutes"`
		AlertOnEnd       bool   `yaml:"alert_on_end"`
	} `yaml:"schedule"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Journal struct {
		WriteTimeout time.Duration `yaml:"write_timeout"`
	} `yaml:"journal"`
	Export struct {
		Dir string `yaml:"dir"`
	} `yaml:"export"`
	Log struct {
		Level string `yaml:"level"`
		Env   string `yaml:"env"`
	} `yaml:"log"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
	Proxy string `yaml:"proxy"`
}

// TelegramEnabled reports whether a bot token is configured.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != ""
}

// Path returns CONFIG_PATH or the default location.
func Path() string {
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		return v
	}
	return DefaultPath
}

// Load reads .env (if present) and the YAML file at path, then applies
// environment variable overrides and defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{Sessions: catalog.AllSessions}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"MACRO_USER_ID":      &c.UserID,
		"TELEGRAM_BOT_TOKEN": &c.Telegram.BotToken,
		"TELEGRAM_CHAT_ID":   &c.Telegram.ChatID,
		"HTTPS_PROXY":        &c.Proxy,
		"TICK_SPEC":          &c.Schedule.TickSpec,
		"SQLITE_PATH":        &c.Database.SQLitePath,
		"EXPORT_DIR":         &c.Export.Dir,
		"LOG_LEVEL":          &c.Log.Level,
		"APP_ENV":            &c.Log.Env,
		"METRICS_ADDR":       &c.Metrics.Addr,
	}
	for name, dst := range strs {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	bools := map[string]*bool{
		"SHOW_ASIA_MACROS":   &c.Sessions.ShowAsia,
		"SHOW_LONDON_MACROS": &c.Sessions.ShowLondon,
		"SHOW_NY_MACROS":     &c.Sessions.ShowNY,
	}
	for name, dst := range bools {
		if v := os.Getenv(name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*dst = b
		}
	}

	if v := os.Getenv("ALERT_LEAD_MINUTES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ALERT_LEAD_MINUTES: %w", err)
		}
		c.Schedule.AlertLeadMinutes = n
	}
	if v := os.Getenv("WRITE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("WRITE_TIMEOUT: %w", err)
		}
		c.Journal.WriteTimeout = d
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.UserID == "" {
		c.UserID = "local"
	}
	if c.Telegram.MaxRetries == 0 {
		c.Telegram.MaxRetries = 3
	}
	if c.Schedule.TickSpec == "" {
		c.Schedule.TickSpec = scheduler.DefaultSpec
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/macro_tracker.db"
	}
	if c.Journal.WriteTimeout == 0 {
		c.Journal.WriteTimeout = 10 * time.Second
	}
	if c.Export.Dir == "" {
		c.Export.Dir = "data/exports"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Env == "" {
		c.Log.Env = "development"
	}
}

// Validate checks that all required fields are set and consistent.
func (c *Config) Validate() error {
	if c.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if c.TelegramEnabled() && c.Telegram.ChatID == "" {
		return fmt.Errorf("telegram.chat_id is required when bot_token is set")
	}
	if c.Telegram.MaxRetries < 0 {
		return fmt.Errorf("telegram.max_retries must not be negative")
	}
	if err := scheduler.ParseSpec(c.Schedule.TickSpec); err != nil {
		return fmt.Errorf("schedule.tick_spec: %w", err)
	}
	if c.Schedule.AlertLeadMinutes < 0 || c.Schedule.AlertLeadMinutes >= 24*60 {
		return fmt.Errorf("schedule.alert_lead_minutes must be in [0, 1440)")
	}
	if c.Journal.WriteTimeout <= 0 {
		return fmt.Errorf("journal.write_timeout must be positive")
	}
	if c.Database.SQLitePath == "" {
		return fmt.Errorf("database.sqlite_path is required")
	}
	return nil
}
