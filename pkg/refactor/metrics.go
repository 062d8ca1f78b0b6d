package refactor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	assistOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rsrefactor",
			Subsystem: "assists",
			Name:      "outcomes_total",
			Help:      "Assist evaluations by assist id and outcome.",
		},
		[]string{"assist", "outcome"},
	)

	planChanges = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "rsrefactor",
			Subsystem: "plans",
			Name:      "changes",
			Help:      "Changes per executed refactoring plan.",
			Buckets:   prometheus.LinearBuckets(1, 2, 8),
		},
	)

	planExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rsrefactor",
			Subsystem: "plans",
			Name:      "executions_total",
			Help:      "Executed refactoring plans by outcome.",
		},
		[]string{"status"},
	)
)
