package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/voicelane/callrelay/internal/dotenv"
	"github.com/voicelane/callrelay/pkg/agent"
	"github.com/voicelane/callrelay/pkg/carrier"
	"github.com/voicelane/callrelay/pkg/config"
	"github.com/voicelane/callrelay/pkg/relay"
	"github.com/voicelane/callrelay/pkg/synth"
	"github.com/voicelane/callrelay/pkg/vad"
)

type relayDeps struct {
	loadConfig   func() (config.Config, error)
	signalNotify func(chan<- os.Signal, ...os.Signal)
	signalStop   func(chan<- os.Signal)
}

func defaultRelayDeps() relayDeps {
	return relayDeps{
		loadConfig: config.LoadFromEnv,
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {
			signal.Notify(c, sig...)
		},
		signalStop: signal.Stop,
	}
}

func logLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func vadMode(m config.VADMode) relay.VADMode {
	if m == config.VADModeIndependent {
		return relay.VADIndependent
	}
	return relay.VADDelegated
}

func buildGateway(cfg config.Config, logger *slog.Logger) *relay.Gateway {
	var synthesizer synth.Synthesizer
	if cfg.SynthURL != "" {
		synthesizer = synth.NewHTTPSynthesizer(synth.Config{
			URL:    cfg.SynthURL,
			APIKey: cfg.SynthAPIKey,
			Voice:  cfg.SynthVoice,
		}, nil, logger)
	}

	dial := relay.DialRealtime(agent.Config{
		URL:    cfg.AgentURL,
		APIKey: cfg.AgentAPIKey,
	}, logger)

	return relay.NewGateway(relay.GatewayConfig{
		DialTimeout: cfg.AgentDialTimeout,
		Session: relay.SessionConfig{
			VADMode:            vadMode(cfg.VADMode),
			Instructions:       cfg.AgentInstructions,
			Voice:              cfg.AgentVoice,
			TranscriptionModel: cfg.TranscriptionModel,
			SkipGreeting:       !cfg.GreetingEnabled,
			VAD: vad.Config{
				StartThreshold:   cfg.VADStartThreshold,
				MinSpeechFrames:  cfg.VADMinSpeechFrames,
				EndSilenceFrames: cfg.VADEndSilenceFrames,
				MaxSpeechFrames:  cfg.VADMaxSpeechFrames,
			},
		},
	}, dial, synthesizer, logger)
}

func runRelay(ctx context.Context, logger *slog.Logger, deps relayDeps) error {
	if deps.loadConfig == nil {
		return errors.New("missing loadConfig dependency")
	}
	if deps.signalNotify == nil || deps.signalStop == nil {
		return errors.New("missing signal dependency")
	}
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := deps.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	gateway := buildGateway(cfg, logger)
	server := carrier.NewServer(carrier.ServerConfig{PublicHost: cfg.PublicHost}, gateway, logger)

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}

	logger.Info("starting call relay",
		"addr", cfg.Addr, "vad_mode", string(cfg.VADMode), "synth_enabled", cfg.SynthURL != "")

	listenErrCh := make(chan error, 1)
	go func() {
		err := httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErrCh <- err
			return
		}
		listenErrCh <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	deps.signalNotify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer deps.signalStop(sigCh)

	select {
	case err := <-listenErrCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	if err := <-listenErrCh; err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	logger.Info("call relay stopped")
	return nil
}

func runMain(ctx context.Context, stderr io.Writer, deps relayDeps) int {
	if stderr == nil {
		stderr = os.Stderr
	}

	if err := dotenv.LoadFile(".env"); err != nil {
		fmt.Fprintf(stderr, "callrelay: %v\n", err)
		return 1
	}

	level := logLevel(os.Getenv("CALLRELAY_LOG_LEVEL"))
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	if err := runRelay(ctx, logger, deps); err != nil {
		fmt.Fprintf(stderr, "callrelay: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(runMain(context.Background(), os.Stderr, defaultRelayDeps()))
}
