package agent

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeTimeout = 5 * time.Second

// Config holds the agent endpoint settings.
type Config struct {
	// URL is the realtime websocket endpoint, including the model query
	// parameter if the provider requires one.
	URL string
	// APIKey is sent as a bearer token.
	APIKey string
	// Headers carries any extra handshake headers the provider wants.
	Headers http.Header
}

// Client is one websocket connection to the speech-to-speech agent. Writes
// are serialized behind a mutex; reads flow through ReadLoop onto the
// events channel.
type Client struct {
	ws     *websocket.Conn
	logger *slog.Logger

	writeMu sync.Mutex

	closeOnce sync.Once
	events    chan ServerEvent
	done      chan struct{}
}

// Dial connects and returns a client ready for ConfigureSession. The caller
// owns starting ReadLoop.
func Dial(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	header := http.Header{}
	for k, vs := range cfg.Headers {
		for _, v := range vs {
			header.Add(k, v)
		}
	}
	if cfg.APIKey != "" {
		header.Set("Authorization", "Bearer "+cfg.APIKey)
	}

	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, cfg.URL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial agent endpoint: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial agent endpoint: %w", err)
	}

	return &Client{
		ws:     ws,
		logger: logger,
		events: make(chan ServerEvent, 256),
		done:   make(chan struct{}),
	}, nil
}

// Events yields decoded server events. The channel closes when the
// connection goes away.
func (c *Client) Events() <-chan ServerEvent { return c.events }

// Done is closed once the client is torn down.
func (c *Client) Done() <-chan struct{} { return c.done }

// ReadLoop pumps inbound events until the socket dies. Undecodable frames
// are logged and skipped.
func (c *Client) ReadLoop() {
	defer close(c.events)
	defer c.Close()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("agent socket closed unexpectedly", "error", err)
			}
			return
		}
		event, err := ParseServerEvent(data)
		if err != nil {
			c.logger.Debug("skipping undecodable agent event", "error", err)
			continue
		}
		select {
		case c.events <- event:
		case <-c.done:
			return
		}
	}
}

// ConfigureSession sends session.update.
func (c *Client) ConfigureSession(cfg SessionConfig) error {
	return c.writeJSON(sessionUpdate{Type: "session.update", Session: cfg})
}

// AppendAudio streams one chunk of caller audio into the input buffer.
func (c *Client) AppendAudio(frame []byte) error {
	return c.writeJSON(audioAppend{
		Type:  "input_audio_buffer.append",
		Audio: base64.StdEncoding.EncodeToString(frame),
	})
}

// CommitAudio ends the caller turn in manual VAD mode.
func (c *Client) CommitAudio() error {
	return c.writeJSON(typeOnly{Type: "input_audio_buffer.commit"})
}

// ClearAudio discards the uncommitted input buffer.
func (c *Client) ClearAudio() error {
	return c.writeJSON(typeOnly{Type: "input_audio_buffer.clear"})
}

// CreateResponse asks the agent to generate a reply.
func (c *Client) CreateResponse() error {
	return c.writeJSON(typeOnly{Type: "response.create"})
}

// CancelResponse aborts the in-flight response, if any.
func (c *Client) CancelResponse() error {
	return c.writeJSON(responseCancel{Type: "response.cancel"})
}

func (c *Client) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Close tears the connection down. Safe to call more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		deadline := time.Now().Add(writeTimeout)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		err = c.ws.Close()
		c.writeMu.Unlock()
	})
	return err
}
