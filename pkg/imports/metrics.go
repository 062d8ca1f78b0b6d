package imports

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const tracerName = "rsrefactor.imports"

var (
	searchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rsrefactor",
			Subsystem: "imports",
			Name:      "searches_total",
			Help:      "Import searches by mode and outcome.",
		},
		[]string{"mode", "status"},
	)

	candidatesFound = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rsrefactor",
			Subsystem: "imports",
			Name:      "candidates",
			Help:      "Candidates returned per import search.",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 40, 100},
		},
		[]string{"mode"},
	)

	staleEntriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "rsrefactor",
			Subsystem: "imports",
			Name:      "stale_entries_total",
			Help:      "Local index entries dropped because they no longer resolve.",
		},
	)
)

func recordSearch(mode string, candidates int, err error) {
	status := "success"
	if err != nil {
		status = "cancelled"
	}
	searchesTotal.WithLabelValues(mode, status).Inc()
	if err == nil {
		candidatesFound.WithLabelValues(mode).Observe(float64(candidates))
	}
}
