// Package config loads gateway settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// VADMode names who owns turn segmentation.
type VADMode string

const (
	// VADModeDelegated relies on the agent endpoint's server VAD.
	VADModeDelegated VADMode = "delegated"
	// VADModeIndependent runs the local energy detector.
	VADModeIndependent VADMode = "independent"
)

type Config struct {
	Addr string

	// PublicHost is the externally reachable hostname placed into the call
	// webhook's stream URL. Empty falls back to the request Host header.
	PublicHost string

	// Agent endpoint.
	AgentURL           string
	AgentAPIKey        string
	AgentVoice         string
	AgentInstructions  string
	TranscriptionModel string

	// GreetingEnabled makes the agent speak first on call start. Turn it off
	// when the carrier plays its own greeting before connecting the stream.
	GreetingEnabled bool

	VADMode VADMode

	// Energy detector tuning, used only in independent mode.
	VADStartThreshold   float64
	VADMinSpeechFrames  int
	VADEndSilenceFrames int
	VADMaxSpeechFrames  int

	// Prompt synthesis endpoint. Empty URL disables the synthesizer; the
	// relay falls back to routing prompts through the agent.
	SynthURL    string
	SynthAPIKey string
	SynthVoice  string

	ReadHeaderTimeout   time.Duration
	ShutdownGracePeriod time.Duration
	AgentDialTimeout    time.Duration

	LogLevel string
}

const defaultInstructions = "You are a friendly phone intake assistant for an appliance " +
	"repair service. Collect the caller's name, phone number, email, address, and a " +
	"description of the problem. Ask one question at a time and keep replies short."

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                envOr("CALLRELAY_ADDR", ":8080"),
		PublicHost:          envOr("CALLRELAY_PUBLIC_HOST", ""),
		AgentURL:            envOr("CALLRELAY_AGENT_URL", ""),
		AgentAPIKey:         envOr("CALLRELAY_AGENT_API_KEY", ""),
		AgentVoice:          envOr("CALLRELAY_AGENT_VOICE", "alloy"),
		AgentInstructions:   envOr("CALLRELAY_AGENT_INSTRUCTIONS", defaultInstructions),
		TranscriptionModel:  envOr("CALLRELAY_TRANSCRIPTION_MODEL", "whisper-1"),
		GreetingEnabled:     envBoolOr("CALLRELAY_GREETING_ENABLED", true),
		VADMode:             VADMode(envOr("CALLRELAY_VAD_MODE", string(VADModeDelegated))),
		VADStartThreshold:   envFloat64Or("CALLRELAY_VAD_START_THRESHOLD", 0.015),
		VADMinSpeechFrames:  envIntOr("CALLRELAY_VAD_MIN_SPEECH_FRAMES", 3),
		VADEndSilenceFrames: envIntOr("CALLRELAY_VAD_END_SILENCE_FRAMES", 35),
		VADMaxSpeechFrames:  envIntOr("CALLRELAY_VAD_MAX_SPEECH_FRAMES", 750),
		SynthURL:            envOr("CALLRELAY_SYNTH_URL", ""),
		SynthAPIKey:         envOr("CALLRELAY_SYNTH_API_KEY", ""),
		SynthVoice:          envOr("CALLRELAY_SYNTH_VOICE", ""),
		ReadHeaderTimeout:   envDurationOr("CALLRELAY_READ_HEADER_TIMEOUT", 10*time.Second),
		ShutdownGracePeriod: envDurationOr("CALLRELAY_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
		AgentDialTimeout:    envDurationOr("CALLRELAY_AGENT_DIAL_TIMEOUT", 10*time.Second),
		LogLevel:            envOr("CALLRELAY_LOG_LEVEL", "info"),
	}

	switch cfg.VADMode {
	case VADModeDelegated, VADModeIndependent:
	default:
		return Config{}, fmt.Errorf("CALLRELAY_VAD_MODE must be one of delegated|independent")
	}

	if strings.TrimSpace(cfg.AgentURL) == "" {
		return Config{}, fmt.Errorf("CALLRELAY_AGENT_URL must be set")
	}
	if strings.TrimSpace(cfg.AgentAPIKey) == "" {
		return Config{}, fmt.Errorf("CALLRELAY_AGENT_API_KEY must be set")
	}
	if cfg.VADStartThreshold <= 0 || cfg.VADStartThreshold >= 1 {
		return Config{}, fmt.Errorf("CALLRELAY_VAD_START_THRESHOLD must be in (0,1)")
	}
	if cfg.VADMinSpeechFrames <= 0 {
		return Config{}, fmt.Errorf("CALLRELAY_VAD_MIN_SPEECH_FRAMES must be > 0")
	}
	if cfg.VADEndSilenceFrames <= 0 {
		return Config{}, fmt.Errorf("CALLRELAY_VAD_END_SILENCE_FRAMES must be > 0")
	}
	if cfg.VADMaxSpeechFrames <= cfg.VADMinSpeechFrames {
		return Config{}, fmt.Errorf("CALLRELAY_VAD_MAX_SPEECH_FRAMES must be > CALLRELAY_VAD_MIN_SPEECH_FRAMES")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("CALLRELAY_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("CALLRELAY_SHUTDOWN_GRACE_PERIOD must be > 0")
	}
	if cfg.AgentDialTimeout <= 0 {
		return Config{}, fmt.Errorf("CALLRELAY_AGENT_DIAL_TIMEOUT must be > 0")
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return Config{}, fmt.Errorf("CALLRELAY_LOG_LEVEL must be one of debug|info|warn|error")
	}

	return cfg, nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envIntOr(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envBoolOr(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envFloat64Or(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

// envDurationOr reads a duration. Bare integers are treated as milliseconds.
func envDurationOr(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Millisecond
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
