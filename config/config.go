package config

import (
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

// Config holds process-wide configuration. Everything else — templates,
// hosts, groups, credentials, scheduled jobs, the cron history retention
// cap — lives in the catalog's Settings row or its own tables, never here.
type Config struct {
	Env string `env:"ENV" envDefault:"local" validate:"required,oneof=local staging production"`

	DatabaseURL   string `env:"DATABASE_URL,required" validate:"required"`
	EncryptionKey string `env:"FLEETRUN_ENCRYPTION_KEY"`

	AdminPort   string `env:"ADMIN_PORT" envDefault:"8080"`
	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info" validate:"required,oneof=debug info warn error"`

	// RetentionPollIntervalSec is how often the standalone retention
	// loop re-checks the cron history cap, independent of cron fires.
	RetentionPollIntervalSec int `env:"RETENTION_POLL_INTERVAL_SEC" envDefault:"30" validate:"min=1,max=3600"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SlogLevel converts the LOG_LEVEL string to a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
