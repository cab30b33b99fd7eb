// Package vad segments inbound caller audio into discrete utterances. Two
// interchangeable strategies exist: an independent energy detector used when
// the agent's built-in turn detection is disabled, and a delegated detector
// that simply relays the agent's own speech signals.
package vad

import (
	"github.com/voicelane/callrelay/pkg/audio"
)

// Result is the outcome of processing one inbound frame.
type Result int

const (
	// Continue means keep forwarding audio, no boundary crossed.
	Continue Result = iota
	// SpeechStart means the caller began speaking. The playback buffer must
	// be flushed (barge-in) when this fires during agent speech.
	SpeechStart
	// Commit means the caller's utterance ended and buffered audio should be
	// committed as one turn.
	Commit
)

// String returns a human-readable result name.
func (r Result) String() string {
	switch r {
	case Continue:
		return "CONTINUE"
	case SpeechStart:
		return "SPEECH_START"
	case Commit:
		return "COMMIT"
	default:
		return "UNKNOWN"
	}
}

// Config tunes the independent energy detector.
type Config struct {
	// StartThreshold is the RMS level (0..1) above which a frame counts as
	// speech.
	StartThreshold float64

	// MinSpeechFrames is how many consecutive speech frames are required
	// before the detector declares speech. Rejects clicks and coughs.
	MinSpeechFrames int

	// EndSilenceFrames is how many consecutive below-threshold frames are
	// required before the utterance ends. Longer than MinSpeechFrames so
	// natural pauses do not split a turn.
	EndSilenceFrames int

	// MaxSpeechFrames forces a commit regardless of continued energy, to
	// bound worst-case latency and buffered memory.
	MaxSpeechFrames int
}

// DefaultConfig returns detector settings tuned for 8kHz 20ms frames.
func DefaultConfig() Config {
	return Config{
		StartThreshold:   0.015,
		MinSpeechFrames:  3,   // ~60ms to start
		EndSilenceFrames: 35,  // ~700ms of silence ends the turn
		MaxSpeechFrames:  750, // ~15s hard ceiling
	}
}

// EnergyDetector is the independent strategy: per-frame RMS with hysteresis.
type EnergyDetector struct {
	cfg Config

	inSpeech     bool
	speechRun    int
	silenceRun   int
	speechFrames int
}

// NewEnergyDetector creates a detector with the given config, filling in
// defaults for zero values.
func NewEnergyDetector(cfg Config) *EnergyDetector {
	def := DefaultConfig()
	if cfg.StartThreshold <= 0 {
		cfg.StartThreshold = def.StartThreshold
	}
	if cfg.MinSpeechFrames <= 0 {
		cfg.MinSpeechFrames = def.MinSpeechFrames
	}
	if cfg.EndSilenceFrames <= 0 {
		cfg.EndSilenceFrames = def.EndSilenceFrames
	}
	if cfg.MaxSpeechFrames <= 0 {
		cfg.MaxSpeechFrames = def.MaxSpeechFrames
	}
	return &EnergyDetector{cfg: cfg}
}

// Process consumes one frame of linear samples and reports whether an
// utterance boundary was crossed.
func (d *EnergyDetector) Process(frame []int16) Result {
	level := audio.RMSEnergy(frame)

	if !d.inSpeech {
		if level >= d.cfg.StartThreshold {
			d.speechRun++
			if d.speechRun >= d.cfg.MinSpeechFrames {
				d.inSpeech = true
				d.speechRun = 0
				d.silenceRun = 0
				d.speechFrames = d.cfg.MinSpeechFrames
				return SpeechStart
			}
		} else {
			d.speechRun = 0
		}
		return Continue
	}

	d.speechFrames++
	if d.speechFrames >= d.cfg.MaxSpeechFrames {
		d.endUtterance()
		return Commit
	}

	if level < d.cfg.StartThreshold {
		d.silenceRun++
		if d.silenceRun >= d.cfg.EndSilenceFrames {
			d.endUtterance()
			return Commit
		}
	} else {
		d.silenceRun = 0
	}
	return Continue
}

// InSpeech reports whether the detector currently considers the caller to be
// speaking.
func (d *EnergyDetector) InSpeech() bool {
	return d.inSpeech
}

// Reset clears detector state for a new turn.
func (d *EnergyDetector) Reset() {
	d.inSpeech = false
	d.speechRun = 0
	d.silenceRun = 0
	d.speechFrames = 0
}

func (d *EnergyDetector) endUtterance() {
	d.inSpeech = false
	d.speechRun = 0
	d.silenceRun = 0
	d.speechFrames = 0
}

// DelegatedDetector is the delegated strategy: the remote agent performs
// turn detection and this type just maps its signals onto Result values.
type DelegatedDetector struct {
	inSpeech bool
}

// NewDelegatedDetector returns a detector driven by remote speech events.
func NewDelegatedDetector() *DelegatedDetector {
	return &DelegatedDetector{}
}

// OnRemoteSpeechStarted relays the agent's speech-start signal.
func (d *DelegatedDetector) OnRemoteSpeechStarted() Result {
	if d.inSpeech {
		return Continue
	}
	d.inSpeech = true
	return SpeechStart
}

// OnRemoteSpeechStopped relays the agent's speech-stop signal.
func (d *DelegatedDetector) OnRemoteSpeechStopped() Result {
	if !d.inSpeech {
		return Continue
	}
	d.inSpeech = false
	return Commit
}

// InSpeech reports the relayed speech state.
func (d *DelegatedDetector) InSpeech() bool {
	return d.inSpeech
}

// Reset clears the relayed state.
func (d *DelegatedDetector) Reset() {
	d.inSpeech = false
}
