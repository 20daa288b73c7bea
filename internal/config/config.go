// Package config loads the monitor's configuration from environment
// variables.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration loaded from environment
// variables. An empty DBPath disables the store: samples are still
// fetched and served from the latest run but nothing is persisted.
type Config struct {
	Port int `envconfig:"PORT" default:"8080"`

	// Upstream sources
	CounterURL     string `envconfig:"COUNTER_URL" default:"https://eci.ec.europa.eu/045/public/api/report/progression"`
	DescriptionURL string `envconfig:"DESCRIPTION_URL" default:"https://eci.ec.europa.eu/045/public/api/initiative/description"`

	CounterTimeout     time.Duration `envconfig:"COUNTER_TIMEOUT" default:"10s"`
	DescriptionTimeout time.Duration `envconfig:"DESCRIPTION_TIMEOUT" default:"5s"`
	FetchRatePerSecond float64       `envconfig:"FETCH_RATE_LIMIT" default:"1"`
	FetchRateBurst     int           `envconfig:"FETCH_RATE_BURST" default:"3"`

	// Pipeline
	PollInterval   time.Duration `envconfig:"POLL_INTERVAL" default:"5m"`
	ObservedWindow time.Duration `envconfig:"OBSERVED_WINDOW" default:"168h"`

	// Store
	DBPath       string `envconfig:"DB_PATH"`
	RetentionCap int    `envconfig:"HISTORY_RETENTION_CAP" default:"8640"`

	// HTTP
	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS"`
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.CounterURL == "" {
		return fmt.Errorf("COUNTER_URL must not be empty")
	}
	if c.PollInterval < time.Minute {
		return fmt.Errorf("POLL_INTERVAL %v is below the 1m minimum", c.PollInterval)
	}
	if c.RetentionCap <= 0 {
		return fmt.Errorf("HISTORY_RETENTION_CAP must be positive, got %d", c.RetentionCap)
	}
	return nil
}
