// Package metrics holds the Prometheus instruments for the attribution
// engine. A Metrics value is constructed once in main and passed to the
// usecase layer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the engine's counters. Counters are registered on the
// given registerer at construction.
type Metrics struct {
	ConversionsProcessed prometheus.Counter
	ConversionFailures   prometheus.Counter
	ResultsWritten       prometheus.Counter
}

// New registers the engine counters on reg and returns them. Pass
// prometheus.DefaultRegisterer in main; tests use a fresh registry.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ConversionsProcessed: f.NewCounter(prometheus.CounterOpts{
			Name: "conversions_processed_total",
			Help: "Conversions successfully processed, including empty-journey conversions.",
		}),
		ConversionFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "conversion_failures_total",
			Help: "Conversions that failed to process; batch runs continue past these.",
		}),
		ResultsWritten: f.NewCounter(prometheus.CounterOpts{
			Name: "attribution_results_written_total",
			Help: "Attribution result rows written across all models.",
		}),
	}
}
