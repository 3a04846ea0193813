// Package metrics holds the Prometheus collectors for pass extraction.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeAllowed = "allowed"
	OutcomeDenied  = "denied"
)

// Metrics tracks extraction counts, failures by code, policy decisions and
// extraction latency.
type Metrics struct {
	Extractions        *prometheus.CounterVec
	ExtractionErrors   *prometheus.CounterVec
	PolicyDecisions    *prometheus.CounterVec
	ExtractionDuration prometheus.Histogram
	ArchiveBytes       prometheus.Histogram
}

// New registers every collector with reg. A nil reg uses the default
// registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		Extractions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "passconv_extractions_total",
			Help: "Total number of pass extractions by subtype and outcome",
		}, []string{"subtype", "outcome"}),
		ExtractionErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "passconv_extraction_errors_total",
			Help: "Total number of failed extractions by error code",
		}, []string{"code"}),
		PolicyDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "passconv_policy_decisions_total",
			Help: "Total number of admission decisions by outcome",
		}, []string{"outcome"}),
		ExtractionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "passconv_extraction_duration_seconds",
			Help:    "Duration of a full extraction, including policy evaluation",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		ArchiveBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "passconv_archive_bytes",
			Help:    "Size of inspected archives",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		}),
	}
}

// ObserveExtraction records a finished extraction.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveExtraction(start time.Time, subtype, code string) {
	m.ExtractionDuration.Observe(time.Since(start).Seconds())
	if code != "" {
		m.Extractions.WithLabelValues(subtype, OutcomeError).Inc()
		m.ExtractionErrors.WithLabelValues(code).Inc()
		return
	}
	m.Extractions.WithLabelValues(subtype, OutcomeOK).Inc()
}

// ObserveDecision records an admission decision.
func (m *Metrics) ObserveDecision(allowed bool) {
	if allowed {
		m.PolicyDecisions.WithLabelValues(OutcomeAllowed).Inc()
		return
	}
	m.PolicyDecisions.WithLabelValues(OutcomeDenied).Inc()
}

// ObserveArchiveSize records the byte size of an inspected archive.
func (m *Metrics) ObserveArchiveSize(n int64) {
	m.ArchiveBytes.Observe(float64(n))
}
