// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	HTTPAddr string     `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`

	// Auth: dev accepts "<userID>:<role>" tokens, hmac verifies HS256 JWTs.
	AuthMode       string `env:"AUTH_MODE" envDefault:"dev"`
	AuthHMACSecret string `env:"AUTH_HMAC_SECRET"`

	// Optional redis for online-presence bookkeeping.
	RedisURL string `env:"REDIS_URL"`

	// Liveness sweep cadence and cutoff.
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"30s"`
	StaleTimeout  time.Duration `env:"STALE_TIMEOUT" envDefault:"60s"`

	// Inbound control-message budget per connection.
	ControlRate  float64 `env:"WS_CONTROL_RATE" envDefault:"10"`
	ControlBurst int     `env:"WS_CONTROL_BURST" envDefault:"20"`

	// Origins allowed to open WebSocket connections; empty allows all.
	AllowOrigins []string `env:"ALLOW_ORIGINS" envSeparator:","`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if cfg.StaleTimeout <= 0 || cfg.SweepInterval <= 0 {
		return nil, fmt.Errorf("sweep interval and stale timeout must be positive")
	}
	return &cfg, nil
}
