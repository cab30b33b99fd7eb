package relay

import (
	"context"
	"log/slog"
	"time"

	"github.com/voicelane/callrelay/pkg/agent"
	"github.com/voicelane/callrelay/pkg/carrier"
	"github.com/voicelane/callrelay/pkg/synth"
)

// AgentDialer opens a fresh agent connection for one call.
type AgentDialer func(ctx context.Context) (AgentLink, error)

// GatewayConfig carries per-call session settings plus dial behavior.
type GatewayConfig struct {
	Session     SessionConfig
	DialTimeout time.Duration
}

// Gateway accepts carrier media streams and runs one Session per call. It
// implements carrier.StreamHandler.
type Gateway struct {
	cfg    GatewayConfig
	dial   AgentDialer
	synth  synth.Synthesizer
	logger *slog.Logger
}

// NewGateway builds the per-call session factory.
func NewGateway(cfg GatewayConfig, dial AgentDialer, synthesizer synth.Synthesizer, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	return &Gateway{cfg: cfg, dial: dial, synth: synthesizer, logger: logger}
}

// HandleStream owns one accepted media stream until the call ends.
func (g *Gateway) HandleStream(conn *carrier.Conn) {
	dialCtx, cancel := context.WithTimeout(context.Background(), g.cfg.DialTimeout)
	agentLink, err := g.dial(dialCtx)
	cancel()
	if err != nil {
		g.logger.Error("agent dial failed, dropping call", "error", err)
		_ = conn.Close()
		return
	}

	session := NewSession(conn, Dependencies{
		Agent:  agentLink,
		Synth:  g.synth,
		Logger: g.logger,
	}, g.cfg.Session)

	if err := session.Run(context.Background()); err != nil && err != context.Canceled {
		g.logger.Warn("session ended with error", "error", err)
	}
}

// DialRealtime returns an AgentDialer for the standard realtime client.
func DialRealtime(cfg agent.Config, logger *slog.Logger) AgentDialer {
	return func(ctx context.Context) (AgentLink, error) {
		client, err := agent.Dial(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		go client.ReadLoop()
		return client, nil
	}
}
