// Package metrics exposes the gateway's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CallsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "callrelay_calls_started_total",
		Help: "Media streams accepted from the carrier.",
	})

	CallsEnded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "callrelay_calls_ended_total",
		Help: "Media streams closed, any reason.",
	})

	FramesIn = promauto.NewCounter(prometheus.CounterOpts{
		Name: "callrelay_frames_in_total",
		Help: "Caller audio frames received from the carrier.",
	})

	FramesOut = promauto.NewCounter(prometheus.CounterOpts{
		Name: "callrelay_frames_out_total",
		Help: "Agent audio frames paced out to the carrier.",
	})

	BargeIns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "callrelay_barge_ins_total",
		Help: "Times caller speech interrupted agent playback.",
	})

	TurnsCommitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "callrelay_turns_committed_total",
		Help: "Caller turns committed to the agent, by VAD mode.",
	}, []string{"mode"})

	Verifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "callrelay_verifications_total",
		Help: "Field verification diversions, by reason.",
	}, []string{"reason"})

	LowConfidenceDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "callrelay_low_confidence_drops_total",
		Help: "Transcripts screened out by the confidence gate.",
	})

	AgentErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "callrelay_agent_errors_total",
		Help: "Error events received from the agent endpoint.",
	})

	ResponseLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "callrelay_response_latency_seconds",
		Help:    "Time from turn commit to first agent audio delta.",
		Buckets: prometheus.DefBuckets,
	})
)
