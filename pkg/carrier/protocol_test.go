package carrier

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStartEvent(t *testing.T) {
	raw := []byte(`{
		"event": "start",
		"sequenceNumber": "1",
		"streamSid": "MZ123",
		"start": {
			"streamSid": "MZ123",
			"callSid": "CA456",
			"tracks": ["inbound"],
			"mediaFormat": {"encoding": "audio/x-mulaw", "sampleRate": 8000, "channels": 1},
			"customParameters": {"campaign": "service"}
		}
	}`)

	event, err := ParseEvent(raw)
	require.NoError(t, err)

	start, ok := event.(StartEvent)
	require.True(t, ok)
	assert.Equal(t, "MZ123", start.Start.StreamSID)
	assert.Equal(t, "CA456", start.Start.CallSID)
	assert.Equal(t, 8000, start.Start.MediaFormat.SampleRate)
	assert.Equal(t, "service", start.Start.CustomParameters["campaign"])
}

func TestParseMediaEventDecodesPayload(t *testing.T) {
	frame := make([]byte, FrameBytes)
	for i := range frame {
		frame[i] = byte(i)
	}
	raw, err := json.Marshal(map[string]any{
		"event": "media",
		"media": map[string]any{
			"track":   "inbound",
			"payload": base64.StdEncoding.EncodeToString(frame),
		},
	})
	require.NoError(t, err)

	event, err := ParseEvent(raw)
	require.NoError(t, err)

	media, ok := event.(MediaEvent)
	require.True(t, ok)

	audio, err := media.Audio()
	require.NoError(t, err)
	assert.Equal(t, frame, audio)
}

func TestParseMalformedFramesDropped(t *testing.T) {
	cases := map[string][]byte{
		"not json":        []byte(`{{{`),
		"missing event":   []byte(`{"media": {"payload": "AA=="}}`),
		"unknown event":   []byte(`{"event": "dtmf"}`),
		"empty payload":   []byte(`{"event": "media", "media": {}}`),
		"start no stream": []byte(`{"event": "start", "start": {}}`),
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseEvent(raw)
			require.Error(t, err)
			var decodeErr *DecodeError
			assert.ErrorAs(t, err, &decodeErr)
		})
	}
}

func TestParseStopAndConnected(t *testing.T) {
	event, err := ParseEvent([]byte(`{"event": "stop", "stop": {"callSid": "CA456"}}`))
	require.NoError(t, err)
	stop, ok := event.(StopEvent)
	require.True(t, ok)
	assert.Equal(t, "CA456", stop.Stop.CallSID)

	event, err = ParseEvent([]byte(`{"event": "connected", "protocol": "Call", "version": "1.0.0"}`))
	require.NoError(t, err)
	_, ok = event.(ConnectedEvent)
	assert.True(t, ok)
}

func TestOutboundMessages(t *testing.T) {
	frame := []byte{0xFF, 0xFF, 0x7F}
	msg := NewMediaMessage("MZ123", frame)
	assert.Equal(t, "media", msg.Event)
	assert.Equal(t, "MZ123", msg.StreamSID)
	decoded, err := base64.StdEncoding.DecodeString(msg.Media.Payload)
	require.NoError(t, err)
	assert.Equal(t, frame, decoded)

	clearMsg := NewClearMessage("MZ123")
	data, err := json.Marshal(clearMsg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"event": "clear", "streamSid": "MZ123"}`, string(data))

	mark := NewMarkMessage("MZ123", "greeting-done")
	data, err = json.Marshal(mark)
	require.NoError(t, err)
	assert.JSONEq(t, `{"event": "mark", "streamSid": "MZ123", "mark": {"name": "greeting-done"}}`, string(data))
}
