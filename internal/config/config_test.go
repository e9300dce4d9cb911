package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want INFO", cfg.LogLevel)
	}
	if cfg.AuthMode != "dev" {
		t.Errorf("AuthMode = %q, want dev", cfg.AuthMode)
	}
	if cfg.SweepInterval != 30*time.Second {
		t.Errorf("SweepInterval = %v, want 30s", cfg.SweepInterval)
	}
	if cfg.StaleTimeout != 60*time.Second {
		t.Errorf("StaleTimeout = %v, want 60s", cfg.StaleTimeout)
	}
	if cfg.ControlRate != 10 || cfg.ControlBurst != 20 {
		t.Errorf("control budget = %v/%v, want 10/20", cfg.ControlRate, cfg.ControlBurst)
	}
	if len(cfg.AllowOrigins) != 0 {
		t.Errorf("AllowOrigins = %v, want empty", cfg.AllowOrigins)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("AUTH_MODE", "hmac")
	t.Setenv("AUTH_HMAC_SECRET", "s3cret")
	t.Setenv("SWEEP_INTERVAL", "10s")
	t.Setenv("STALE_TIMEOUT", "20s")
	t.Setenv("ALLOW_ORIGINS", "https://app.example.com,https://staging.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTPAddr != ":9999" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, want DEBUG", cfg.LogLevel)
	}
	if cfg.AuthMode != "hmac" || cfg.AuthHMACSecret != "s3cret" {
		t.Errorf("auth = %q/%q", cfg.AuthMode, cfg.AuthHMACSecret)
	}
	if cfg.SweepInterval != 10*time.Second || cfg.StaleTimeout != 20*time.Second {
		t.Errorf("sweep = %v/%v", cfg.SweepInterval, cfg.StaleTimeout)
	}
	if len(cfg.AllowOrigins) != 2 || cfg.AllowOrigins[0] != "https://app.example.com" {
		t.Errorf("AllowOrigins = %v", cfg.AllowOrigins)
	}
}

func TestLoadRejectsNonPositiveSweep(t *testing.T) {
	t.Setenv("SWEEP_INTERVAL", "0s")
	if _, err := Load(); err == nil {
		t.Error("zero sweep interval accepted")
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("STALE_TIMEOUT", "soon")
	if _, err := Load(); err == nil {
		t.Error("unparsable duration accepted")
	}
}
