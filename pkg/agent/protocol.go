package agent

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Audio format names the agent endpoint understands. The relay always
// negotiates μ-law so carrier frames pass through without transcoding.
const (
	FormatG711Ulaw = "g711_ulaw"
	FormatPCM16    = "pcm16"
)

// TurnDetection configures the agent's server-side VAD. A nil pointer in
// SessionConfig serializes as an explicit null, which switches the endpoint
// into manual commit mode.
type TurnDetection struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold,omitempty"`
	PrefixPaddingMS   int     `json:"prefix_padding_ms,omitempty"`
	SilenceDurationMS int     `json:"silence_duration_ms,omitempty"`
}

// TranscriptionConfig selects the input transcription model.
type TranscriptionConfig struct {
	Model string `json:"model"`
}

// SessionConfig is the body of session.update.
type SessionConfig struct {
	Modalities              []string             `json:"modalities,omitempty"`
	Instructions            string               `json:"instructions,omitempty"`
	Voice                   string               `json:"voice,omitempty"`
	InputAudioFormat        string               `json:"input_audio_format,omitempty"`
	OutputAudioFormat       string               `json:"output_audio_format,omitempty"`
	InputAudioTranscription *TranscriptionConfig `json:"input_audio_transcription,omitempty"`
	TurnDetection           *TurnDetection       `json:"turn_detection"`
	Temperature             float64              `json:"temperature,omitempty"`
}

type sessionUpdate struct {
	Type    string        `json:"type"`
	Session SessionConfig `json:"session"`
}

type audioAppend struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

type typeOnly struct {
	Type string `json:"type"`
}

type responseCancel struct {
	Type       string `json:"type"`
	ResponseID string `json:"response_id,omitempty"`
}

// APIError is the error body the endpoint sends on protocol violations.
type APIError struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

// ServerEvent is one decoded inbound event. Only the fields relevant to the
// event's Type are populated.
type ServerEvent struct {
	Type       string
	Audio      []byte
	Transcript string
	ResponseID string
	ItemID     string
	Status     string
	Err        *APIError
}

// Inbound event types the relay acts on.
const (
	EventSessionCreated      = "session.created"
	EventSessionUpdated      = "session.updated"
	EventSpeechStarted       = "input_audio_buffer.speech_started"
	EventSpeechStopped       = "input_audio_buffer.speech_stopped"
	EventInputCommitted      = "input_audio_buffer.committed"
	EventTranscriptCompleted = "conversation.item.input_audio_transcription.completed"
	EventResponseCreated     = "response.created"
	EventResponseDone        = "response.done"
	EventAudioDelta          = "response.audio.delta"
	EventAudioDone           = "response.audio.done"
	EventOutputTranscript    = "response.audio_transcript.done"
	EventError               = "error"
)

// ParseServerEvent decodes one inbound frame. Unknown event types come back
// with just Type set so callers can ignore them without erroring.
func ParseServerEvent(data []byte) (ServerEvent, error) {
	var raw struct {
		Type       string `json:"type"`
		Delta      string `json:"delta,omitempty"`
		Transcript string `json:"transcript,omitempty"`
		ItemID     string `json:"item_id,omitempty"`
		EventID    string `json:"event_id,omitempty"`
		Response   *struct {
			ID     string `json:"id,omitempty"`
			Status string `json:"status,omitempty"`
		} `json:"response,omitempty"`
		ResponseID string    `json:"response_id,omitempty"`
		Error      *APIError `json:"error,omitempty"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return ServerEvent{}, fmt.Errorf("decode agent event: %w", err)
	}
	if strings.TrimSpace(raw.Type) == "" {
		return ServerEvent{}, fmt.Errorf("agent event missing type")
	}

	event := ServerEvent{
		Type:       raw.Type,
		Transcript: raw.Transcript,
		ItemID:     raw.ItemID,
		ResponseID: raw.ResponseID,
		Err:        raw.Error,
	}
	if raw.Response != nil {
		if event.ResponseID == "" {
			event.ResponseID = raw.Response.ID
		}
		event.Status = raw.Response.Status
	}
	if raw.Type == EventAudioDelta && raw.Delta != "" {
		audio, err := base64.StdEncoding.DecodeString(raw.Delta)
		if err != nil {
			return ServerEvent{}, fmt.Errorf("decode audio delta: %w", err)
		}
		event.Audio = audio
	}
	return event, nil
}
