package config

import (
	"os"
	"strconv"
	"time"
)

// Mode selects the physical SQLite layout the engine runs on.
type Mode string

const (
	// ModeFile is the durable mode: a file-backed database in WAL mode,
	// which permits concurrent readers alongside a single writer.
	ModeFile Mode = "file"
	// ModeMemory is the ephemeral mode: a shared-cache in-memory database.
	// No WAL is available there, so the engine serializes access itself.
	ModeMemory Mode = "memory"
)

// Config holds all configuration for the engine.
type Config struct {
	// Path is the database file path. Ignored in ModeMemory.
	Path string
	// Mode picks the physical storage mode. Callers see an identical
	// contract in either mode.
	Mode Mode
	// SweepInterval is the minimum spacing between two TTL sweep passes
	// over the same table.
	SweepInterval time.Duration
	// BusyTimeout is handed to SQLite as _busy_timeout.
	BusyTimeout time.Duration
}

// New creates and returns a new Config instance, populating it from
// environment variables or using default values.
func New() *Config {
	return &Config{
		Path:          getEnv("CONCRETELOCAL_PATH", "concretelocal.db"),
		Mode:          Mode(getEnv("CONCRETELOCAL_MODE", string(ModeFile))),
		SweepInterval: getEnvAsDuration("CONCRETELOCAL_SWEEP_INTERVAL", time.Minute),
		BusyTimeout:   getEnvAsDuration("CONCRETELOCAL_BUSY_TIMEOUT", 5*time.Second),
	}
}

// Memory returns a config for an ephemeral in-memory engine, the setup most
// tests want.
func Memory() *Config {
	c := New()
	c.Mode = ModeMemory
	return c
}

func getEnv(key, fallback string) string {
	if v, exists := os.LookupEnv(key); exists && v != "" {
		return v
	}
	return fallback
}

// getEnvAsDuration parses an environment variable as a Go duration
// ("30s", "2m"). Bare integers are taken as milliseconds.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return fallback
	}
	if d, err := time.ParseDuration(valueStr); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}
