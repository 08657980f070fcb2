// Package metrics provides Prometheus collectors for the resolution pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Status label values for EscalationCalls.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Result label values for KBLookups.
const (
	LookupHit   = "hit"
	LookupMiss  = "miss"
	LookupError = "error"
)

var (
	// Escalation metrics
	EscalationCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schemamap_escalation_calls_total",
			Help: "Total number of language-model calls by outcome",
		},
		[]string{"status"},
	)

	EscalationParseErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "schemamap_escalation_parse_errors_total",
			Help: "Total number of language-model responses that could not be parsed",
		},
	)

	EscalationRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "schemamap_escalation_retries_total",
			Help: "Total number of escalation retries",
		},
	)

	EscalationLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "schemamap_escalation_latency_seconds",
			Help:    "Latency of language-model calls",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	// Knowledge base metrics
	KBLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schemamap_kb_lookups_total",
			Help: "Total number of knowledge base lookups by result",
		},
		[]string{"result"},
	)

	// Mapping metrics
	Mappings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schemamap_mappings_total",
			Help: "Total number of final mappings by winning source",
		},
		[]string{"source"},
	)
)

// RecordEscalationCall records one language-model call.
func RecordEscalationCall(ok bool, latency time.Duration) {
	status := StatusSuccess
	if !ok {
		status = StatusFailure
	}

	EscalationCalls.WithLabelValues(status).Inc()
	EscalationLatency.Observe(latency.Seconds())
}

// RecordKBLookup records one knowledge base lookup.
func RecordKBLookup(result string) {
	KBLookups.WithLabelValues(result).Inc()
}

// RecordMapping records the winning source of one final mapping.
func RecordMapping(source string) {
	Mappings.WithLabelValues(source).Inc()
}
