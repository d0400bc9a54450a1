package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"loadcheck/internal/config"
)

// GetConfig resolves once per process, so a single test sets the
// environment before the first call and checks binding plus clamping
// together.
func TestGetConfig(t *testing.T) {
	t.Setenv("STARCAT_PORT", "4321")
	t.Setenv(config.WorkersEnv, "0")  // clamped to 1
	t.Setenv(config.IDLimitEnv, "-5") // clamped to 0
	t.Setenv(config.MaxDelayEnv, "250")

	cfg := config.GetConfig()

	assert.Equal(t, "starcat", cfg.AppName)
	assert.Equal(t, "4321", cfg.AppPort)
	assert.Equal(t, 1, cfg.Workers)
	assert.Equal(t, 0, cfg.IDLimit)
	assert.Equal(t, 250, cfg.MaxDelayMs)
	assert.Equal(t, 250*time.Millisecond, cfg.MaxDelay())
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout())

	// Subsequent calls return the same instance.
	assert.Same(t, cfg, config.GetConfig())
}
