package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEndpoint upgrades, echoes every client message type onto seen, and
// replies to session.update with session.updated.
func fakeEndpoint(t *testing.T, seen chan<- string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer ws.Close()

		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			var msg struct {
				Type string `json:"type"`
			}
			require.NoError(t, json.Unmarshal(data, &msg))
			seen <- msg.Type
			if msg.Type == "session.update" {
				reply, _ := json.Marshal(map[string]string{"type": EventSessionUpdated})
				_ = ws.WriteMessage(websocket.TextMessage, reply)
			}
		}
	}))
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func TestClientRoundTrip(t *testing.T) {
	seen := make(chan string, 16)
	ts := fakeEndpoint(t, seen)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	client, err := Dial(ctx, Config{URL: wsURL(ts), APIKey: "test-key"}, nil)
	require.NoError(t, err)
	defer client.Close()
	go client.ReadLoop()

	require.NoError(t, client.ConfigureSession(SessionConfig{
		InputAudioFormat:  FormatG711Ulaw,
		OutputAudioFormat: FormatG711Ulaw,
	}))
	require.NoError(t, client.AppendAudio(make([]byte, 160)))
	require.NoError(t, client.CommitAudio())
	require.NoError(t, client.CreateResponse())
	require.NoError(t, client.CancelResponse())

	want := []string{
		"session.update",
		"input_audio_buffer.append",
		"input_audio_buffer.commit",
		"response.create",
		"response.cancel",
	}
	for _, expected := range want {
		select {
		case got := <-seen:
			assert.Equal(t, expected, got)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %s", expected)
		}
	}

	select {
	case event := <-client.Events():
		assert.Equal(t, EventSessionUpdated, event.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("no session.updated event")
	}
}

func TestClientCloseIsIdempotent(t *testing.T) {
	seen := make(chan string, 16)
	ts := fakeEndpoint(t, seen)
	defer ts.Close()

	client, err := Dial(context.Background(), Config{URL: wsURL(ts)}, nil)
	require.NoError(t, err)

	require.NoError(t, client.Close())
	assert.NotPanics(t, func() { _ = client.Close() })
}

func TestDialFailure(t *testing.T) {
	_, err := Dial(context.Background(), Config{URL: "ws://127.0.0.1:1/nope"}, nil)
	assert.Error(t, err)
}
