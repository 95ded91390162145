package config

import (
	"testing"

	"github.com/eargollo/lazywriter/internal/lazywriter"
)

func TestLoad_usesDefaultsWhenEnvUnset(t *testing.T) {
	t.Setenv(EnvFirstDelayMS, "")
	t.Setenv(EnvIdleDelayMS, "")
	t.Setenv(EnvWorkerCount, "")
	t.Setenv(EnvDatabaseURL, "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() err = %v, want nil", err)
	}
	want := lazywriter.DefaultTunables()
	if cfg.Tunables() != want {
		t.Errorf("Tunables() = %+v, want %+v", cfg.Tunables(), want)
	}
	if cfg.DatabaseURL() != "" {
		t.Errorf("DatabaseURL() = %q, want empty", cfg.DatabaseURL())
	}
}

func TestLoad_usesEnvWhenSet(t *testing.T) {
	t.Setenv(EnvFirstDelayMS, "500")
	t.Setenv(EnvWorkerCount, "8")
	t.Setenv(EnvDatabaseURL, "postgres://localhost/lazywriter?sslmode=disable")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() err = %v, want nil", err)
	}
	if got := cfg.Tunables().FirstDelay.Milliseconds(); got != 500 {
		t.Errorf("FirstDelay = %dms, want 500ms", got)
	}
	if got := cfg.Tunables().WorkerCount; got != 8 {
		t.Errorf("WorkerCount = %d, want 8", got)
	}
	if cfg.DatabaseURL() == "" {
		t.Error("DatabaseURL() = empty, want set")
	}
}

func TestLoad_returnsErrorForInvalidNumber(t *testing.T) {
	t.Setenv(EnvWorkerCount, "not-a-number")

	if _, err := Load(); err == nil {
		t.Error("Load() err = nil, want non-nil for invalid worker count")
	}
}

func TestLoad_returnsErrorForZeroWorkerCount(t *testing.T) {
	t.Setenv(EnvWorkerCount, "0")

	if _, err := Load(); err == nil {
		t.Error("Load() err = nil, want non-nil for zero worker count")
	}
}

func TestLoad_returnsErrorForNegativeDelay(t *testing.T) {
	t.Setenv(EnvFirstDelayMS, "-1")

	if _, err := Load(); err == nil {
		t.Error("Load() err = nil, want non-nil for negative delay")
	}
}
