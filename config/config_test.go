package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("BOT_TOKEN", "token")
	t.Setenv("DATABASE_TYPE", "")
	t.Setenv("TRIAL_DURATION_HOURS", "")
	t.Setenv("AI_BACKEND", "")

	cfg := Load()

	assert.Equal(t, "token", cfg.Token)
	assert.Equal(t, DatabaseSQLite, cfg.Database.Type)
	assert.Equal(t, 24*time.Hour, cfg.TrialDuration)
	assert.Equal(t, time.Minute, cfg.SchedulerInterval)
	assert.Equal(t, BackendOpenAI, cfg.AI.Backend)
	assert.Equal(t, 1024, cfg.AI.MaxTokens)
	assert.InDelta(t, 0.7, cfg.AI.Temperature, 1e-9)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("BOT_TOKEN", " token ")
	t.Setenv("TRIAL_DURATION_HOURS", "48")
	t.Setenv("AI_BACKEND", "Gemini")
	t.Setenv("AI_TIMEOUT_SECONDS", "5")
	t.Setenv("DEBUG_MODE", "yes")

	cfg := Load()

	assert.Equal(t, "token", cfg.Token)
	assert.Equal(t, 48*time.Hour, cfg.TrialDuration)
	assert.Equal(t, BackendGemini, cfg.AI.Backend)
	assert.Equal(t, 5*time.Second, cfg.AI.Timeout)
	assert.True(t, cfg.Debug)
}

func TestInvalidDurationFallsBack(t *testing.T) {
	t.Setenv("TRIAL_DURATION_HOURS", "-3")
	assert.Equal(t, 24*time.Hour, getDurationEnv("TRIAL_DURATION_HOURS", 24, time.Hour))

	t.Setenv("TRIAL_DURATION_HOURS", "abc")
	assert.Equal(t, 24*time.Hour, getDurationEnv("TRIAL_DURATION_HOURS", 24, time.Hour))
}

func TestProvideRequiresToken(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")

	_, err := Provide()
	require.ErrorIs(t, err, ErrMissingToken)
}
