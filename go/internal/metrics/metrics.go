package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Replication metrics
	EnvelopesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buzzquiz_envelopes_received_total",
			Help: "Envelopes received from the broadcast channel by outcome",
		},
		[]string{"type", "outcome"},
	)

	EnvelopesEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buzzquiz_envelopes_emitted_total",
			Help: "Envelopes handed to the transport",
		},
		[]string{"type", "status"},
	)

	EmitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "buzzquiz_emit_duration_seconds",
			Help:    "Time spent publishing one envelope",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5},
		},
		[]string{"type"},
	)

	RacesResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buzzquiz_races_resolved_total",
			Help: "Race windows that closed, by whether this node declared a winner",
		},
		[]string{"declared"},
	)

	RaceContenders = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "buzzquiz_race_contenders",
			Help:    "Attempts collected when a race window closed",
			Buckets: []float64{0, 1, 2, 3, 5, 8},
		},
	)

	// Collaborator metrics
	CollaboratorCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buzzquiz_collaborator_calls_total",
			Help: "Calls to question, scoring and transcription collaborators",
		},
		[]string{"op", "status"},
	)

	CollaboratorDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "buzzquiz_collaborator_duration_seconds",
			Help:    "Collaborator call latency",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"op"},
	)

	// Content metrics
	ContentIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buzzquiz_content_ingested_total",
			Help: "Content documents ingested",
		},
		[]string{"kind", "status"},
	)

	PoolTakes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buzzquiz_pool_takes_total",
			Help: "Questions handed out from content pools",
		},
		[]string{"result"}, // "hit", "recycled" or "empty"
	)

	StoreLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "buzzquiz_store_latency_seconds",
			Help:    "Content store operation latency",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
		},
		[]string{"driver", "op"},
	)

	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buzzquiz_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "buzzquiz_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)
)

// Outcome of applying a received envelope.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeMalformed Outcome = "malformed"
)

// Recorder defines what a quiz node reports about replication.
type Recorder interface {
	RecordReceived(eventType string, outcome Outcome)
	RecordEmitted(eventType string, success bool, duration time.Duration)
	RecordRace(contenders int, declared bool)
	RecordCollaborator(op string, success bool, duration time.Duration)
}

// NoOp is a Recorder that discards everything.
type NoOp struct{}

func (NoOp) RecordReceived(eventType string, outcome Outcome)                     {}
func (NoOp) RecordEmitted(eventType string, success bool, duration time.Duration) {}
func (NoOp) RecordRace(contenders int, declared bool)                             {}
func (NoOp) RecordCollaborator(op string, success bool, duration time.Duration)   {}

// Prometheus is a Recorder backed by the package collectors.
type Prometheus struct{}

func (Prometheus) RecordReceived(eventType string, outcome Outcome) {
	EnvelopesReceived.WithLabelValues(eventType, string(outcome)).Inc()
}

func (Prometheus) RecordEmitted(eventType string, success bool, duration time.Duration) {
	EnvelopesEmitted.WithLabelValues(eventType, status(success)).Inc()
	EmitDuration.WithLabelValues(eventType).Observe(duration.Seconds())
}

func (Prometheus) RecordRace(contenders int, declared bool) {
	RaceContenders.Observe(float64(contenders))
	if declared {
		RacesResolved.WithLabelValues("true").Inc()
	} else {
		RacesResolved.WithLabelValues("false").Inc()
	}
}

func (Prometheus) RecordCollaborator(op string, success bool, duration time.Duration) {
	CollaboratorCalls.WithLabelValues(op, status(success)).Inc()
	CollaboratorDuration.WithLabelValues(op).Observe(duration.Seconds())
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
