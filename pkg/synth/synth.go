// Package synth turns gateway-injected prompt text into caller audio. The
// agent speaks for itself; this path only covers prompts the relay decides
// to say on its own, like verification questions.
package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Synthesizer produces 8kHz μ-law audio for a prompt. Implementations must
// be safe for concurrent use.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Config holds the HTTP synthesis endpoint settings.
type Config struct {
	// URL is the synthesis endpoint.
	URL string
	// APIKey is sent as a bearer token.
	APIKey string
	// Voice selects the endpoint's voice, if it supports one.
	Voice string
	// Timeout bounds one synthesis round trip. Zero means 10s.
	Timeout time.Duration
}

// HTTPSynthesizer posts prompt text to a TTS endpoint that answers with raw
// 8kHz μ-law bytes.
type HTTPSynthesizer struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

// NewHTTPSynthesizer builds the client. A nil httpClient uses a dedicated
// one with the configured timeout.
func NewHTTPSynthesizer(cfg Config, httpClient *http.Client, logger *slog.Logger) *HTTPSynthesizer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPSynthesizer{cfg: cfg, client: httpClient, logger: logger}
}

type synthesisRequest struct {
	Text         string `json:"text"`
	Voice        string `json:"voice,omitempty"`
	OutputFormat string `json:"output_format"`
	SampleRate   int    `json:"sample_rate"`
}

// Synthesize posts the prompt and returns the μ-law bytes.
func (s *HTTPSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	body, err := json.Marshal(synthesisRequest{
		Text:         text,
		Voice:        s.cfg.Voice,
		OutputFormat: "mulaw",
		SampleRate:   8000,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("synthesis request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("synthesis endpoint returned %d: %s", resp.StatusCode, snippet)
	}
	audio, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read synthesis body: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("synthesis endpoint returned no audio")
	}
	return audio, nil
}
