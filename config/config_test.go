package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	cfg := New()
	assert.Equal(t, "concretelocal.db", cfg.Path)
	assert.Equal(t, ModeFile, cfg.Mode)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
	assert.Equal(t, 5*time.Second, cfg.BusyTimeout)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CONCRETELOCAL_PATH", "/tmp/x.db")
	t.Setenv("CONCRETELOCAL_MODE", "memory")
	t.Setenv("CONCRETELOCAL_SWEEP_INTERVAL", "30s")

	cfg := New()
	assert.Equal(t, "/tmp/x.db", cfg.Path)
	assert.Equal(t, ModeMemory, cfg.Mode)
	assert.Equal(t, 30*time.Second, cfg.SweepInterval)
}

func TestDurationParsing(t *testing.T) {
	// Bare integers read as milliseconds; garbage falls back.
	t.Setenv("CONCRETELOCAL_BUSY_TIMEOUT", "250")
	assert.Equal(t, 250*time.Millisecond, New().BusyTimeout)

	t.Setenv("CONCRETELOCAL_BUSY_TIMEOUT", "soon")
	assert.Equal(t, 5*time.Second, New().BusyTimeout)

	t.Setenv("CONCRETELOCAL_BUSY_TIMEOUT", "")
	assert.Equal(t, 5*time.Second, New().BusyTimeout)
}

func TestMemoryPreset(t *testing.T) {
	cfg := Memory()
	assert.Equal(t, ModeMemory, cfg.Mode)
}
