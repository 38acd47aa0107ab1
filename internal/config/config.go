// Package config defines service configuration structures and loading hooks.
package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/okian/flickrank/internal/domain/model"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// StorageDriver selects the durable store: memory, sqlite or postgres.
	StorageDriver string `koanf:"storage_driver"`

	// SQLitePath is the database file used by the sqlite driver.
	SQLitePath string `koanf:"sqlite_path"`

	// PostgresDSN is the connection string used by the postgres driver.
	PostgresDSN string `koanf:"postgres_dsn"`

	// WriteQueueSize bounds the durable write queue.
	WriteQueueSize int `koanf:"write_queue_size"`

	// SessionIdleTTLSec is how long an untouched session survives.
	SessionIdleTTLSec int `koanf:"session_idle_ttl_sec"`

	// ReaperSchedule is the cron spec of the idle-session reaper.
	ReaperSchedule string `koanf:"reaper_schedule"`

	// Engine holds the rating engine parameters.
	Engine model.Params `koanf:"engine"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Addr:              ":9080",
		StorageDriver:     "memory",
		SQLitePath:        "flickrank.db",
		WriteQueueSize:    4096,
		SessionIdleTTLSec: 1800,
		ReaperSchedule:    "@every 1m",
		Engine:            model.DefaultParams(),
	}
}

// Validate checks the config for values the service cannot run with.
func (c *Config) Validate() error {
	bad := func(format string, args ...any) error {
		return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalidConfig)
	}
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return bad("addr must not be empty")
	case c.WriteQueueSize < 1:
		return bad("write_queue_size must be positive, got %d", c.WriteQueueSize)
	case c.SessionIdleTTLSec < 1:
		return bad("session_idle_ttl_sec must be positive, got %d", c.SessionIdleTTLSec)
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return bad("log_format %q must be text or json", c.LogFormat)
	}

	switch c.StorageDriver {
	case "memory":
	case "sqlite":
		if c.SQLitePath == "" {
			return bad("sqlite_path must be set for the sqlite driver")
		}
	case "postgres":
		if c.PostgresDSN == "" {
			return bad("postgres_dsn must be set for the postgres driver")
		}
	default:
		return bad("unknown storage_driver %q", c.StorageDriver)
	}

	if c.ReaperSchedule != "" {
		if _, err := cron.ParseStandard(c.ReaperSchedule); err != nil {
			return fmt.Errorf("reaper_schedule %q: %w: %w", c.ReaperSchedule, ErrInvalidConfig, err)
		}
	}
	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("engine: %w: %w", ErrInvalidConfig, err)
	}
	return nil
}
