package carrier

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voicelane/callrelay/pkg/metrics"
)

// StreamHandler runs one accepted media stream. It owns the connection for
// the duration of the call and must return when the call ends.
type StreamHandler interface {
	HandleStream(conn *Conn)
}

// StreamHandlerFunc adapts a function to StreamHandler.
type StreamHandlerFunc func(conn *Conn)

func (f StreamHandlerFunc) HandleStream(conn *Conn) { f(conn) }

// ServerConfig holds the HTTP surface settings.
type ServerConfig struct {
	// PublicHost is the externally reachable host used in the TwiML stream
	// URL, e.g. "gateway.example.com".
	PublicHost string
}

// Server exposes the carrier-facing HTTP surface: the media websocket, the
// call-webhook TwiML responder, health, and metrics.
type Server struct {
	cfg      ServerConfig
	handler  StreamHandler
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewServer builds the carrier HTTP surface.
func NewServer(cfg ServerConfig, handler StreamHandler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Router wires all routes.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/media", s.handleMedia).Methods(http.MethodGet)
	r.HandleFunc("/twiml", s.handleTwiML).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	return r
}

func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("media upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}
	metrics.CallsStarted.Inc()

	conn := NewConn(ws, s.logger)
	go conn.ReadLoop()
	defer metrics.CallsEnded.Inc()
	defer conn.Close()
	s.handler.HandleStream(conn)
}

// handleTwiML answers the carrier's call webhook by pointing the call's
// media at our websocket endpoint.
func (s *Server) handleTwiML(w http.ResponseWriter, r *http.Request) {
	host := s.cfg.PublicHost
	if host == "" {
		host = r.Host
	}
	w.Header().Set("Content-Type", "application/xml")
	fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<Response>
  <Connect>
    <Stream url="wss://%s/media" />
  </Connect>
</Response>
`, host)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
