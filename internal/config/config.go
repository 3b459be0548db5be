package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/bank-ledger-engine/internal/ledger"
)

// Config is the process configuration, read from environment variables.
// When DatabaseURL is empty the server runs on the in-memory store.
type Config struct {
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`

	DatabaseURL string        `env:"DATABASE_URL"`
	LockTimeout time.Duration `env:"LOCK_TIMEOUT" envDefault:"250ms"`

	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	// KafkaTopic, when set, pins every published event to one topic instead
	// of the per-event topic names.
	KafkaTopic string `env:"KAFKA_TOPIC"`

	TransferRetries int           `env:"TRANSFER_RETRIES" envDefault:"3"`
	TransferBackoff time.Duration `env:"TRANSFER_BACKOFF" envDefault:"50ms"`

	TransferCap string `env:"TRANSFER_CAP" envDefault:"5000"`
	DailyCap    string `env:"DAILY_CAP" envDefault:"5000"`
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Limits converts the configured cap overrides into ledger limits.
func (c Config) Limits() (ledger.Limits, error) {
	transferCap, err := decimal.NewFromString(c.TransferCap)
	if err != nil {
		return ledger.Limits{}, fmt.Errorf("parse TRANSFER_CAP: %w", err)
	}
	dailyCap, err := decimal.NewFromString(c.DailyCap)
	if err != nil {
		return ledger.Limits{}, fmt.Errorf("parse DAILY_CAP: %w", err)
	}
	return ledger.Limits{TransferCap: transferCap, DailyCap: dailyCap}, nil
}

// IsProduction reports whether the process runs with the production profile.
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}
