// Package metrics exposes Prometheus instrumentation for the extraction engine.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Attempt outcomes.
const (
	OutcomeProduced = "produced"
	OutcomeEmpty    = "empty"
	OutcomeFailed   = "failed"
	OutcomeSkipped  = "skipped"
)

// Metrics holds the engine's collectors. A nil *Metrics records nothing.
//
// Metrics:
//   - invoice_strategy_attempts_total{method,outcome}
//   - invoice_extractions_total{plausible}
//   - invoice_extraction_duration_seconds
type Metrics struct {
	StrategyAttempts   *prometheus.CounterVec
	Extractions        *prometheus.CounterVec
	ExtractionDuration prometheus.Histogram
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		StrategyAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "invoice_strategy_attempts_total",
				Help: "Extraction strategy attempts by method and outcome",
			},
			[]string{"method", "outcome"},
		),
		Extractions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "invoice_extractions_total",
				Help: "Completed extractions by plausibility verdict",
			},
			[]string{"plausible"},
		),
		ExtractionDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "invoice_extraction_duration_seconds",
				Help:    "End-to-end extraction duration in seconds",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
		),
	}
}

// RecordAttempt counts one strategy attempt.
func (m *Metrics) RecordAttempt(method, outcome string) {
	if m == nil {
		return
	}
	m.StrategyAttempts.WithLabelValues(method, outcome).Inc()
}

// RecordExtraction counts a finished extraction and observes its duration.
func (m *Metrics) RecordExtraction(plausible bool, d time.Duration) {
	if m == nil {
		return
	}
	m.Extractions.WithLabelValues(strconv.FormatBool(plausible)).Inc()
	m.ExtractionDuration.Observe(d.Seconds())
}
