package relay

import (
	"context"
	"log/slog"
	"time"

	"github.com/voicelane/callrelay/pkg/agent"
	"github.com/voicelane/callrelay/pkg/audio"
	"github.com/voicelane/callrelay/pkg/carrier"
	"github.com/voicelane/callrelay/pkg/intake"
	"github.com/voicelane/callrelay/pkg/metrics"
	"github.com/voicelane/callrelay/pkg/synth"
	"github.com/voicelane/callrelay/pkg/vad"
)

// VADMode selects who segments caller turns.
type VADMode int

const (
	// VADDelegated lets the agent endpoint's server VAD segment turns.
	VADDelegated VADMode = iota
	// VADIndependent runs the local energy detector and commits manually.
	VADIndependent
)

func (m VADMode) String() string {
	if m == VADIndependent {
		return "independent"
	}
	return "delegated"
}

// AgentLink is the slice of the agent client the session needs. *agent.Client
// satisfies it; tests substitute a fake.
type AgentLink interface {
	Events() <-chan agent.ServerEvent
	ConfigureSession(agent.SessionConfig) error
	AppendAudio([]byte) error
	CommitAudio() error
	ClearAudio() error
	CreateResponse() error
	CancelResponse() error
	Close() error
}

// CarrierLink is the slice of the carrier connection the session needs.
// *carrier.Conn satisfies it.
type CarrierLink interface {
	Events() <-chan any
	SendMedia(streamSID string, frame []byte) error
	SendClear(streamSID string) error
	SendMark(streamSID, name string) error
	Close() error
}

// SessionConfig controls one call's behavior.
type SessionConfig struct {
	VADMode      VADMode
	Instructions string
	Voice        string
	// TranscriptionModel names the agent-side input transcription model.
	TranscriptionModel string
	// VAD holds the energy detector tuning for VADIndependent.
	VAD vad.Config
	// SkipGreeting suppresses the opening response request, for deployments
	// where the carrier plays its own greeting before connecting the stream.
	SkipGreeting bool
}

// Dependencies carries the session's collaborators.
type Dependencies struct {
	Agent  AgentLink
	Synth  synth.Synthesizer
	Logger *slog.Logger
}

// Session owns one call end to end. A single goroutine (Run) holds all
// mutable state; the carrier and agent sockets feed it through channels.
type Session struct {
	cfg    SessionConfig
	conn   CarrierLink
	agent  AgentLink
	synth  synth.Synthesizer
	logger *slog.Logger

	orch     *Orchestrator
	playback *audio.PlaybackBuffer
	pacer    *Pacer
	energy   *vad.EnergyDetector
	remote   *vad.DelegatedDetector

	// synthDone carries finished prompt audio back from the synthesis
	// goroutine; the Run loop is the only reader.
	synthDone chan synthResult

	streamSID  string
	callSID    string
	started    bool
	commitTime time.Time
}

type synthResult struct {
	text  string
	audio []byte
	err   error
}

// NewSession wires a session for one accepted media stream.
func NewSession(conn CarrierLink, deps Dependencies, cfg SessionConfig) *Session {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		cfg:       cfg,
		conn:      conn,
		agent:     deps.Agent,
		synth:     deps.Synth,
		logger:    logger,
		orch:      NewOrchestrator(intake.NewValidator(intake.WithLogger(logger)), logger),
		playback:  audio.NewPlaybackBuffer(),
		pacer:     NewPacer(carrier.FrameDuration*time.Millisecond, nil),
		energy:    vad.NewEnergyDetector(cfg.VAD),
		remote:    vad.NewDelegatedDetector(),
		synthDone: make(chan synthResult, 4),
	}
}

// Orchestrator exposes the decision core, mainly for end-of-call reporting.
func (s *Session) Orchestrator() *Orchestrator { return s.orch }

// Run drives the call until either peer disconnects or ctx is canceled.
// It closes both peers on the way out.
func (s *Session) Run(ctx context.Context) error {
	defer s.teardown()

	frameTimer := time.NewTimer(carrier.FrameDuration * time.Millisecond)
	defer frameTimer.Stop()

	carrierEvents := s.conn.Events()
	agentEvents := s.agent.Events()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-carrierEvents:
			if !ok {
				s.logger.Info("carrier stream closed", "call_sid", s.callSID)
				return nil
			}
			if done := s.handleCarrierEvent(event); done {
				return nil
			}

		case event, ok := <-agentEvents:
			if !ok {
				s.logger.Info("agent stream closed", "call_sid", s.callSID)
				return nil
			}
			s.handleAgentEvent(ctx, event)

		case res := <-s.synthDone:
			s.handleSynthResult(res)

		case <-frameTimer.C:
			s.emitFrame()
			frameTimer.Reset(s.pacer.Next())
		}
	}
}

func (s *Session) teardown() {
	_ = s.agent.Close()
	_ = s.conn.Close()
}

func (s *Session) handleCarrierEvent(event any) (done bool) {
	switch ev := event.(type) {
	case carrier.ConnectedEvent:
		return false

	case carrier.StartEvent:
		s.streamSID = ev.Start.StreamSID
		s.callSID = ev.Start.CallSID
		s.started = true
		s.pacer.Reset()
		s.logger.Info("call started",
			"call_sid", s.callSID, "stream_sid", s.streamSID, "vad_mode", s.cfg.VADMode.String())
		s.configureAgent()
		return false

	case carrier.MediaEvent:
		if !s.started {
			return false
		}
		frame, err := ev.Audio()
		if err != nil {
			s.logger.Debug("undecodable media payload", "error", err)
			return false
		}
		metrics.FramesIn.Inc()
		s.handleCallerAudio(frame)
		return false

	case carrier.MarkEvent:
		s.logger.Debug("playback mark reached", "name", ev.Mark.Name)
		return false

	case carrier.StopEvent:
		s.logger.Info("call stopped", "call_sid", s.callSID)
		s.logIntakeSummary()
		return true

	default:
		return false
	}
}

func (s *Session) configureAgent() {
	cfg := agent.SessionConfig{
		Modalities:        []string{"audio", "text"},
		Instructions:      s.cfg.Instructions,
		Voice:             s.cfg.Voice,
		InputAudioFormat:  agent.FormatG711Ulaw,
		OutputAudioFormat: agent.FormatG711Ulaw,
	}
	if s.cfg.TranscriptionModel != "" {
		cfg.InputAudioTranscription = &agent.TranscriptionConfig{Model: s.cfg.TranscriptionModel}
	}
	if s.cfg.VADMode == VADDelegated {
		cfg.TurnDetection = &agent.TurnDetection{
			Type:              "server_vad",
			Threshold:         0.5,
			PrefixPaddingMS:   300,
			SilenceDurationMS: 500,
		}
	}
	if err := s.agent.ConfigureSession(cfg); err != nil {
		s.logger.Error("agent session configure failed", "error", err)
		return
	}
	if s.cfg.SkipGreeting {
		return
	}
	// Agent speaks first.
	if s.orch.TryStartResponse() {
		if err := s.agent.CreateResponse(); err != nil {
			s.logger.Error("greeting request failed", "error", err)
		}
	}
}

func (s *Session) handleCallerAudio(frame []byte) {
	if err := s.agent.AppendAudio(frame); err != nil {
		s.logger.Warn("append audio failed", "error", err)
		return
	}
	if s.cfg.VADMode != VADIndependent {
		return
	}

	switch s.energy.Process(audio.MulawToLinear(frame)) {
	case vad.SpeechStart:
		s.bargeIn("local_vad")
	case vad.Commit:
		s.commitTurn()
	}
}

func (s *Session) commitTurn() {
	if err := s.agent.CommitAudio(); err != nil {
		s.logger.Warn("commit failed", "error", err)
		return
	}
	s.commitTime = time.Now()
	metrics.TurnsCommitted.WithLabelValues(s.cfg.VADMode.String()).Inc()
}

// bargeIn stops agent playback the moment the caller starts talking: local
// buffer, carrier queue, and any in-flight generation all go.
func (s *Session) bargeIn(source string) {
	if s.playback.Len() == 0 && !s.orch.ResponseInFlight() {
		return
	}
	s.playback.Clear()
	if s.streamSID != "" {
		if err := s.conn.SendClear(s.streamSID); err != nil {
			s.logger.Warn("carrier clear failed", "error", err)
		}
	}
	if s.orch.ResponseInFlight() {
		if err := s.agent.CancelResponse(); err != nil {
			s.logger.Warn("response cancel failed", "error", err)
		}
	}
	s.orch.CancelResponse()
	metrics.BargeIns.Inc()
	s.logger.Info("barge-in", "source", source, "call_sid", s.callSID)
}

func (s *Session) handleAgentEvent(ctx context.Context, event agent.ServerEvent) {
	switch event.Type {
	case agent.EventAudioDelta:
		if !s.commitTime.IsZero() {
			metrics.ResponseLatency.Observe(time.Since(s.commitTime).Seconds())
			s.commitTime = time.Time{}
		}
		s.playback.Append(event.Audio)

	case agent.EventSpeechStarted:
		if s.cfg.VADMode == VADDelegated {
			if s.remote.OnRemoteSpeechStarted() == vad.SpeechStart {
				s.bargeIn("agent_vad")
			}
		}

	case agent.EventSpeechStopped:
		if s.cfg.VADMode == VADDelegated {
			if s.remote.OnRemoteSpeechStopped() == vad.Commit {
				s.commitTime = time.Now()
				metrics.TurnsCommitted.WithLabelValues(s.cfg.VADMode.String()).Inc()
			}
		}

	case agent.EventTranscriptCompleted:
		s.handleCallerTranscript(ctx, event.Transcript)

	case agent.EventOutputTranscript:
		if s.orch.NoteAgentText(event.Transcript) {
			s.regenerate()
		}

	case agent.EventResponseCreated:
		s.orch.NoteResponseCreated()

	case agent.EventResponseDone:
		if s.orch.FinishResponse() {
			if err := s.agent.CreateResponse(); err != nil {
				s.logger.Warn("queued response request failed", "error", err)
			}
		}

	case agent.EventError:
		metrics.AgentErrors.Inc()
		s.logger.Error("agent error", "error", event.Err)
	}
}

func (s *Session) handleCallerTranscript(ctx context.Context, transcript string) {
	action := s.orch.HandleTranscript(transcript)
	s.logger.Info("caller turn",
		"transcript", transcript, "forward", action.Forward, "prompt", action.Say != "")

	if action.Say != "" {
		// The gateway takes over this turn; the agent must not answer it.
		if s.orch.ResponseInFlight() {
			_ = s.agent.CancelResponse()
			s.orch.CancelResponse()
		}
		_ = s.agent.ClearAudio()
		s.speak(ctx, action.Say)
	}
	// In delegated mode the endpoint's own VAD already started a response
	// for this turn; only manual mode asks explicitly.
	if action.Forward && s.cfg.VADMode == VADIndependent {
		s.requestResponse()
	}
}

// regenerate throws away a screened-out agent reply and asks for another.
func (s *Session) regenerate() {
	s.playback.Clear()
	if s.streamSID != "" {
		_ = s.conn.SendClear(s.streamSID)
	}
	if s.orch.ResponseInFlight() {
		_ = s.agent.CancelResponse()
	}
	s.orch.CancelResponse()
	s.requestResponse()
}

func (s *Session) requestResponse() {
	if !s.orch.TryStartResponse() {
		return
	}
	if err := s.agent.CreateResponse(); err != nil {
		s.logger.Warn("response request failed", "error", err)
		s.orch.CancelResponse()
	}
}

// speak synthesizes a gateway prompt into the playback buffer. The HTTP
// round trip runs off the loop goroutine so pacing never stalls on it; the
// result comes back through synthDone. Synthesis failure falls through to
// the agent so the caller is never left hanging.
func (s *Session) speak(ctx context.Context, text string) {
	if s.synth == nil {
		s.logger.Warn("no synthesizer configured, forwarding prompt to agent", "prompt", text)
		s.requestResponse()
		return
	}
	go func() {
		data, err := s.synth.Synthesize(ctx, text)
		select {
		case s.synthDone <- synthResult{text: text, audio: data, err: err}:
		case <-ctx.Done():
		}
	}()
}

func (s *Session) handleSynthResult(res synthResult) {
	if res.err != nil {
		s.logger.Error("prompt synthesis failed", "error", res.err, "prompt", res.text)
		s.requestResponse()
		return
	}
	s.playback.Append(res.audio)
}

// emitFrame pushes exactly one paced frame to the caller: buffered agent
// audio when there is any, a full silence frame otherwise.
func (s *Session) emitFrame() {
	if !s.started {
		return
	}
	frame, _ := s.playback.DrainFrame(carrier.FrameBytes)
	if err := s.conn.SendMedia(s.streamSID, frame); err != nil {
		s.logger.Warn("media send failed", "error", err)
		return
	}
	metrics.FramesOut.Inc()
}

func (s *Session) logIntakeSummary() {
	fields := s.orch.Validator().Fields()
	verified := 0
	for _, rec := range fields {
		if rec.Verified {
			verified++
		}
	}
	s.logger.Info("intake summary",
		"call_sid", s.callSID,
		"fields", len(fields),
		"verified", verified,
		"verification_events", len(s.orch.Validator().Events()),
		"phase", s.orch.Phase().String())
}
