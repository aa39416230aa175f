// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PrimitiveInvocationsTotal counts primitive calls by name
	PrimitiveInvocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "actionengine_primitive_invocations_total",
			Help: "Total number of primitive invocations",
		},
		[]string{"primitive"},
	)

	// PrimitiveErrorsTotal counts primitive calls skipped because of bad input
	PrimitiveErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "actionengine_primitive_errors_total",
			Help: "Total number of primitive invocations skipped on error",
		},
		[]string{"primitive", "reason"},
	)

	// PipelinePacketsTotal counts packets leaving the pipeline by outcome
	PipelinePacketsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "actionengine_pipeline_packets_total",
			Help: "Total number of packets processed in pipeline",
		},
		[]string{"pipeline", "outcome"},
	)

	// PipelineLatencySeconds measures stage latency
	PipelineLatencySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "actionengine_pipeline_latency_seconds",
			Help:    "Latency of pipeline processing stages in seconds",
			Buckets: prometheus.ExponentialBuckets(0.000001, 2, 20), // 1µs to ~1s
		},
		[]string{"pipeline", "stage"},
	)

	// DigestsTotal counts learning notifications by outcome
	DigestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "actionengine_digests_total",
			Help: "Total number of digests emitted or suppressed",
		},
		[]string{"pipeline", "outcome"},
	)

	// PipelineWorkers tracks running workers
	PipelineWorkers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "actionengine_pipeline_workers",
			Help: "Number of running pipeline workers",
		},
		[]string{"pipeline"},
	)
)

// Error reasons for PrimitiveErrorsTotal
const (
	ReasonIndexOutOfRange = "index_out_of_range"
	ReasonZeroDivisor     = "zero_divisor"
	ReasonMissingField    = "missing_field"
	ReasonBadOperand      = "bad_operand"
)

// Packet outcomes for PipelinePacketsTotal
const (
	OutcomeEmitted      = "emitted"
	OutcomeDropped      = "dropped"
	OutcomeCloned       = "cloned"
	OutcomeResubmitted  = "resubmitted"
	OutcomeRecirculated = "recirculated"
	OutcomeFiltered     = "filtered"
	OutcomeLoopLimit    = "loop_limit"
	OutcomeEmitError    = "emit_error"
)
