package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestBuildRejectsUnknownLevel(t *testing.T) {
	_, err := Build("loud", "json", false)
	require.Error(t, err)
}

func TestBuildDebugOverridesLevel(t *testing.T) {
	log, err := Build("error", "json", true)
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "привет", Truncate("привет", 10))
	assert.Equal(t, "при...", Truncate("привет", 3))
}
