package carrier

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Carrier media streams carry 8kHz mono G.711 μ-law, 20ms per frame.
const (
	SampleRate    = 8000
	FrameDuration = 20 // milliseconds
	FrameBytes    = SampleRate * FrameDuration / 1000
)

// DecodeError reports a malformed or unsupported carrier frame. Callers are
// expected to drop the frame and keep the stream alive.
type DecodeError struct {
	Message string
	Field   string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Field) == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Field)
}

func badFrame(message, field string) *DecodeError {
	return &DecodeError{Message: message, Field: field}
}

// MediaFormat describes the negotiated stream audio shape.
type MediaFormat struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sampleRate"`
	Channels   int    `json:"channels"`
}

// StartPayload is the body of the carrier's stream-open event.
type StartPayload struct {
	StreamSID        string            `json:"streamSid"`
	AccountSID       string            `json:"accountSid,omitempty"`
	CallSID          string            `json:"callSid"`
	Tracks           []string          `json:"tracks,omitempty"`
	MediaFormat      MediaFormat       `json:"mediaFormat"`
	CustomParameters map[string]string `json:"customParameters,omitempty"`
}

// StartEvent opens a media stream.
type StartEvent struct {
	Event     string       `json:"event"`
	SequenceN string       `json:"sequenceNumber,omitempty"`
	StreamSID string       `json:"streamSid"`
	Start     StartPayload `json:"start"`
}

// MediaPayload carries one base64 μ-law frame.
type MediaPayload struct {
	Track     string `json:"track,omitempty"`
	Chunk     string `json:"chunk,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   string `json:"payload"`
}

// MediaEvent carries caller audio inbound or agent audio outbound.
type MediaEvent struct {
	Event     string       `json:"event"`
	SequenceN string       `json:"sequenceNumber,omitempty"`
	StreamSID string       `json:"streamSid,omitempty"`
	Media     MediaPayload `json:"media"`
}

// Audio decodes the base64 frame body.
func (m MediaEvent) Audio() ([]byte, error) {
	return base64.StdEncoding.DecodeString(m.Media.Payload)
}

// StopEvent closes a media stream.
type StopEvent struct {
	Event     string `json:"event"`
	StreamSID string `json:"streamSid,omitempty"`
	Stop      struct {
		AccountSID string `json:"accountSid,omitempty"`
		CallSID    string `json:"callSid,omitempty"`
	} `json:"stop"`
}

// MarkEvent acknowledges a playback mark the gateway sent earlier.
type MarkEvent struct {
	Event     string `json:"event"`
	StreamSID string `json:"streamSid,omitempty"`
	Mark      struct {
		Name string `json:"name"`
	} `json:"mark"`
}

// ConnectedEvent is the carrier's initial socket greeting. It carries no
// stream state; sessions wait for start.
type ConnectedEvent struct {
	Event    string `json:"event"`
	Protocol string `json:"protocol,omitempty"`
	Version  string `json:"version,omitempty"`
}

// ParseEvent decodes one inbound carrier frame. Unknown or malformed frames
// return a *DecodeError; the stream itself stays healthy.
func ParseEvent(data []byte) (any, error) {
	var envelope struct {
		Event string `json:"event"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, badFrame("invalid json frame", "")
	}
	switch strings.TrimSpace(envelope.Event) {
	case "connected":
		var msg ConnectedEvent
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badFrame("invalid connected frame", "")
		}
		return msg, nil
	case "start":
		var msg StartEvent
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badFrame("invalid start frame", "")
		}
		if strings.TrimSpace(msg.Start.StreamSID) == "" {
			return nil, badFrame("start.streamSid is required", "start.streamSid")
		}
		return msg, nil
	case "media":
		var msg MediaEvent
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badFrame("invalid media frame", "")
		}
		if msg.Media.Payload == "" {
			return nil, badFrame("media.payload is required", "media.payload")
		}
		return msg, nil
	case "stop":
		var msg StopEvent
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badFrame("invalid stop frame", "")
		}
		return msg, nil
	case "mark":
		var msg MarkEvent
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badFrame("invalid mark frame", "")
		}
		return msg, nil
	case "":
		return nil, badFrame("missing event", "event")
	default:
		return nil, badFrame("unsupported event", "event")
	}
}

// MediaMessage is the outbound audio frame.
type MediaMessage struct {
	Event     string `json:"event"`
	StreamSID string `json:"streamSid"`
	Media     struct {
		Payload string `json:"payload"`
	} `json:"media"`
}

// NewMediaMessage wraps one μ-law frame for the wire.
func NewMediaMessage(streamSID string, frame []byte) MediaMessage {
	msg := MediaMessage{Event: "media", StreamSID: streamSID}
	msg.Media.Payload = base64.StdEncoding.EncodeToString(frame)
	return msg
}

// ClearMessage tells the carrier to discard queued playback audio.
type ClearMessage struct {
	Event     string `json:"event"`
	StreamSID string `json:"streamSid"`
}

func NewClearMessage(streamSID string) ClearMessage {
	return ClearMessage{Event: "clear", StreamSID: streamSID}
}

// MarkMessage asks the carrier to echo a mark once playback reaches it.
type MarkMessage struct {
	Event     string `json:"event"`
	StreamSID string `json:"streamSid"`
	Mark      struct {
		Name string `json:"name"`
	} `json:"mark"`
}

func NewMarkMessage(streamSID, name string) MarkMessage {
	msg := MarkMessage{Event: "mark", StreamSID: streamSID}
	msg.Mark.Name = name
	return msg
}
