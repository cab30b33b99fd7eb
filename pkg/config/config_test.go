package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("CALLRELAY_AGENT_URL", "wss://agent.example.com/v1/realtime")
	t.Setenv("CALLRELAY_AGENT_API_KEY", "sk-test")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, VADModeDelegated, cfg.VADMode)
	assert.Equal(t, 0.015, cfg.VADStartThreshold)
	assert.Equal(t, 3, cfg.VADMinSpeechFrames)
	assert.Equal(t, 35, cfg.VADEndSilenceFrames)
	assert.Equal(t, 750, cfg.VADMaxSpeechFrames)
	assert.Equal(t, "whisper-1", cfg.TranscriptionModel)
	assert.Equal(t, 30*time.Second, cfg.ShutdownGracePeriod)
	assert.True(t, cfg.GreetingEnabled)
	assert.Empty(t, cfg.SynthURL)
}

func TestLoadGreetingToggle(t *testing.T) {
	setRequired(t)
	t.Setenv("CALLRELAY_GREETING_ENABLED", "false")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.False(t, cfg.GreetingEnabled)
}

func TestLoadMissingAgentURL(t *testing.T) {
	t.Setenv("CALLRELAY_AGENT_URL", "")
	t.Setenv("CALLRELAY_AGENT_API_KEY", "sk-test")

	_, err := LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CALLRELAY_AGENT_URL")
}

func TestLoadMissingAPIKey(t *testing.T) {
	t.Setenv("CALLRELAY_AGENT_URL", "wss://agent.example.com/v1/realtime")
	t.Setenv("CALLRELAY_AGENT_API_KEY", "")

	_, err := LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CALLRELAY_AGENT_API_KEY")
}

func TestLoadVADModeValidation(t *testing.T) {
	setRequired(t)
	t.Setenv("CALLRELAY_VAD_MODE", "psychic")

	_, err := LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CALLRELAY_VAD_MODE")
}

func TestLoadIndependentModeTuning(t *testing.T) {
	setRequired(t)
	t.Setenv("CALLRELAY_VAD_MODE", "independent")
	t.Setenv("CALLRELAY_VAD_START_THRESHOLD", "0.02")
	t.Setenv("CALLRELAY_VAD_END_SILENCE_FRAMES", "50")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, VADModeIndependent, cfg.VADMode)
	assert.Equal(t, 0.02, cfg.VADStartThreshold)
	assert.Equal(t, 50, cfg.VADEndSilenceFrames)
}

func TestLoadRejectsInvertedVADFrames(t *testing.T) {
	setRequired(t)
	t.Setenv("CALLRELAY_VAD_MAX_SPEECH_FRAMES", "2")

	_, err := LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CALLRELAY_VAD_MAX_SPEECH_FRAMES")
}

func TestDurationEnvAcceptsMillisecondsAndGoSyntax(t *testing.T) {
	setRequired(t)

	t.Setenv("CALLRELAY_SHUTDOWN_GRACE_PERIOD", "1500")
	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, cfg.ShutdownGracePeriod)

	t.Setenv("CALLRELAY_SHUTDOWN_GRACE_PERIOD", "45s")
	cfg, err = LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.ShutdownGracePeriod)
}

func TestLoadLogLevelValidation(t *testing.T) {
	setRequired(t)
	t.Setenv("CALLRELAY_LOG_LEVEL", "loud")

	_, err := LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CALLRELAY_LOG_LEVEL")
}
