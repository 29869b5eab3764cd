// Package metrics provides Prometheus metrics for the clover service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DetectionRunsTotal tracks detection runs by entity type and outcome
	DetectionRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "dedup",
			Name:      "detection_runs_total",
			Help:      "Total number of duplicate detection runs by outcome",
		},
		[]string{"entity_type", "status"},
	)

	DetectionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "dedup",
			Name:      "detection_duration_seconds",
			Help:      "Duration of duplicate detection runs in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"entity_type"},
	)

	// PairsComparedTotal tracks the number of scored pairs
	PairsComparedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "dedup",
			Name:      "pairs_compared_total",
			Help:      "Total number of candidate pairs scored",
		},
		[]string{"entity_type"},
	)

	SuggestionsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "dedup",
			Name:      "suggestions_created_total",
			Help:      "Total number of duplicate suggestions created",
		},
		[]string{"entity_type"},
	)

	// SuggestionsResolvedTotal tracks merges and dismissals by outcome
	SuggestionsResolvedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "dedup",
			Name:      "suggestions_resolved_total",
			Help:      "Total number of suggestions resolved by action and outcome",
		},
		[]string{"entity_type", "action", "status"},
	)

	// AuditFailuresTotal tracks audit entries that could not be recorded
	AuditFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Name:      "audit_failures_total",
			Help:      "Total number of audit entries that failed to be recorded",
		},
		[]string{"action"},
	)
)
