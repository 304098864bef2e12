// Package observability provides Prometheus metrics for the dialog
// host: provider calls, turns, operation invocations, router scoring,
// and scratch reclamation.
package observability

import "github.com/prometheus/client_golang/prometheus"

// LLMBuckets defines histogram buckets suited for inference latencies,
// ranging from 100ms to 120s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// TurnsTotal counts completed query turns by outcome.
	TurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dialog_turns_total",
			Help: "Query turns",
		},
		[]string{"status"},
	)

	// TurnDuration records end-to-end turn duration in seconds.
	TurnDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dialog_turn_duration_seconds",
			Help:    "Turn duration",
			Buckets: LLMBuckets,
		},
	)

	// ProviderRequestsTotal counts calls to the reasoning engine.
	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dialog_provider_requests_total",
			Help: "Provider requests",
		},
		[]string{"provider", "model", "status"},
	)

	// ProviderLatency records reasoning engine latency in seconds.
	ProviderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dialog_provider_latency_seconds",
			Help:    "Provider latency",
			Buckets: LLMBuckets,
		},
		[]string{"provider", "model"},
	)

	// ProviderTokensTotal counts tokens processed by direction.
	ProviderTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dialog_provider_tokens_total",
			Help: "Token count",
		},
		[]string{"provider", "model", "direction"},
	)

	// OperationInvocationsTotal counts capability invocations by
	// operation name and outcome.
	OperationInvocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dialog_operation_invocations_total",
			Help: "Operation invocations",
		},
		[]string{"operation", "status"},
	)

	// RouterScores records relevance scores per pipeline.
	RouterScores = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dialog_router_pipeline_score",
			Help:    "Pipeline relevance scores",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		},
		[]string{"pipeline"},
	)

	// ScratchReclaimedBytes counts bytes removed by reclamation sweeps.
	ScratchReclaimedBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dialog_scratch_reclaimed_bytes_total",
			Help: "Scratch bytes reclaimed",
		},
	)

	// ScratchUsageBytes tracks current scratch usage after a sweep.
	ScratchUsageBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dialog_scratch_usage_bytes",
			Help: "Scratch usage",
		},
	)
)

func init() {
	prometheus.MustRegister(
		TurnsTotal,
		TurnDuration,
		ProviderRequestsTotal,
		ProviderLatency,
		ProviderTokensTotal,
		OperationInvocationsTotal,
		RouterScores,
		ScratchReclaimedBytes,
		ScratchUsageBytes,
	)
}
