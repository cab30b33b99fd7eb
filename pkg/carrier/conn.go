package carrier

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const defaultWriteTimeout = 5 * time.Second

// Conn wraps one carrier media-stream websocket. Reads flow through
// ReadLoop onto the events channel; writes are serialized behind a mutex so
// the session loop and teardown paths can both send safely.
type Conn struct {
	ws     *websocket.Conn
	logger *slog.Logger

	writeMu      sync.Mutex
	writeTimeout time.Duration

	closeOnce sync.Once
	events    chan any
	done      chan struct{}
}

// NewConn wraps an upgraded websocket connection.
func NewConn(ws *websocket.Conn, logger *slog.Logger) *Conn {
	if logger == nil {
		logger = slog.Default()
	}
	return &Conn{
		ws:           ws,
		logger:       logger,
		writeTimeout: defaultWriteTimeout,
		events:       make(chan any, 64),
		done:         make(chan struct{}),
	}
}

// Events yields decoded inbound frames. The channel closes when the peer
// disconnects or Close is called.
func (c *Conn) Events() <-chan any { return c.events }

// Done is closed when the connection is torn down.
func (c *Conn) Done() <-chan struct{} { return c.done }

// ReadLoop pumps inbound frames until the socket dies. Malformed frames are
// logged and dropped; the loop keeps going.
func (c *Conn) ReadLoop() {
	defer close(c.events)
	defer c.Close()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("carrier socket closed unexpectedly", "error", err)
			}
			return
		}
		event, err := ParseEvent(data)
		if err != nil {
			c.logger.Debug("dropping malformed carrier frame", "error", err)
			continue
		}
		select {
		case c.events <- event:
		case <-c.done:
			return
		}
	}
}

// SendMedia writes one μ-law frame to the caller.
func (c *Conn) SendMedia(streamSID string, frame []byte) error {
	return c.writeJSON(NewMediaMessage(streamSID, frame))
}

// SendClear discards whatever the carrier has buffered for playback.
func (c *Conn) SendClear(streamSID string) error {
	return c.writeJSON(NewClearMessage(streamSID))
}

// SendMark queues a playback mark.
func (c *Conn) SendMark(streamSID, name string) error {
	return c.writeJSON(NewMarkMessage(streamSID, name))
}

func (c *Conn) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Close tears the socket down. Safe to call more than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		deadline := time.Now().Add(c.writeTimeout)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		err = c.ws.Close()
		c.writeMu.Unlock()
	})
	return err
}
