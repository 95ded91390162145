// Package config loads the lazy writer's tunables from the environment,
// the same shape the original cache-manager host process would use to
// configure its process-wide lazy writer instance at startup.
package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/eargollo/lazywriter/internal/lazywriter"
)

// Env names for tunables. Unset or empty means use the default.
const (
	EnvFirstDelayMS         = "LAZYWRITER_FIRST_DELAY_MS"
	EnvIdleDelayMS          = "LAZYWRITER_IDLE_DELAY_MS"
	EnvDirtyPageTarget      = "LAZYWRITER_DIRTY_PAGE_TARGET"
	EnvMaxWriteBehindPages  = "LAZYWRITER_MAX_WRITE_BEHIND_PAGES"
	EnvSmallSystemThreshold = "LAZYWRITER_SMALL_SYSTEM_THRESHOLD"
	EnvWorkerCount          = "LAZYWRITER_WORKER_COUNT"
	EnvEntryCapacity        = "LAZYWRITER_ENTRY_CAPACITY"
	// EnvDatabaseURL, when set, selects the Postgres-backed demo store
	// over the default embedded SQLite one (cmd/lazywriterd).
	EnvDatabaseURL = "DATABASE_URL"
)

// Config holds the lazy writer's tunables plus the demo storage backend
// selection. Load reads it from the environment; defaults match
// lazywriter.DefaultTunables.
type Config struct {
	tunables    lazywriter.Tunables
	databaseURL string
}

// Load reads configuration from the environment, falling back to
// lazywriter.DefaultTunables for anything unset. Returns an error if a
// numeric env var is set but cannot be parsed.
func Load() (*Config, error) {
	cfg := &Config{tunables: lazywriter.DefaultTunables()}

	if err := durationEnv(EnvFirstDelayMS, &cfg.tunables.FirstDelay); err != nil {
		return nil, err
	}
	if err := durationEnv(EnvIdleDelayMS, &cfg.tunables.IdleDelay); err != nil {
		return nil, err
	}
	if err := int64Env(EnvDirtyPageTarget, &cfg.tunables.DirtyPageTarget); err != nil {
		return nil, err
	}
	if err := int64Env(EnvMaxWriteBehindPages, &cfg.tunables.MaxWriteBehindPages); err != nil {
		return nil, err
	}
	if err := int64Env(EnvSmallSystemThreshold, &cfg.tunables.SmallSystemThreshold); err != nil {
		return nil, err
	}
	if err := intEnv(EnvWorkerCount, &cfg.tunables.WorkerCount); err != nil {
		return nil, err
	}
	if err := intEnv(EnvEntryCapacity, &cfg.tunables.EntryCapacity); err != nil {
		return nil, err
	}

	cfg.databaseURL = os.Getenv(EnvDatabaseURL)

	if cfg.tunables.WorkerCount <= 0 {
		return nil, errors.New("LAZYWRITER_WORKER_COUNT must be positive")
	}

	return cfg, nil
}

// Tunables returns the lazy writer tunables this config loaded.
func (c *Config) Tunables() lazywriter.Tunables { return c.tunables }

// DatabaseURL returns the Postgres connection URL, or "" to use the
// embedded SQLite demo store.
func (c *Config) DatabaseURL() string { return c.databaseURL }

func durationEnv(name string, dst *time.Duration) error {
	s := os.Getenv(name)
	if s == "" {
		return nil
	}
	ms, err := strconv.Atoi(s)
	if err != nil {
		return errors.New(name + " must be a number of milliseconds")
	}
	if ms < 0 {
		return errors.New(name + " must not be negative")
	}
	*dst = time.Duration(ms) * time.Millisecond
	return nil
}

func int64Env(name string, dst *int64) error {
	s := os.Getenv(name)
	if s == "" {
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return errors.New(name + " must be a number")
	}
	if n < 0 {
		return errors.New(name + " must not be negative")
	}
	*dst = n
	return nil
}

func intEnv(name string, dst *int) error {
	s := os.Getenv(name)
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return errors.New(name + " must be a number")
	}
	*dst = n
	return nil
}
