// Package metrics exposes Prometheus counters and histograms for the scan pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"smartscan/internal/parser"
)

const namespace = "smartscan"

// Scan outcomes used as the "outcome" label
const (
	OutcomeValid        = "valid"
	OutcomeInvalid      = "invalid"
	OutcomeNoCandidates = "no_candidates"
	OutcomeOCRFailed    = "ocr_failed"
)

// Metrics holds the service's collectors on a private registry. A nil *Metrics is a
// valid no-op recorder.
type Metrics struct {
	registry *prometheus.Registry

	ScansTotal      *prometheus.CounterVec
	CandidatesTotal prometheus.Counter
	CacheHitsTotal  prometheus.Counter
	OCRDuration     prometheus.Histogram
	ProcessDuration prometheus.Histogram
}

// New creates and registers all collectors
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ScansTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scans_total",
				Help:      "Documents processed, by outcome",
			},
			[]string{"outcome"},
		),
		CandidatesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_total",
			Help:      "Normalized container ID candidates found",
		}),
		CacheHitsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Uploads answered from the result cache without OCR",
		}),
		OCRDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ocr_duration_seconds",
			Help:      "Time spent in text recognition",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		ProcessDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "process_duration_seconds",
			Help:      "Time spent extracting and validating container IDs",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
	}
}

// Outcome classifies a recovery result for the outcome label
func Outcome(result *parser.ProcessResult) string {
	switch {
	case result.Success:
		return OutcomeValid
	case len(result.ContainerIDsFound) == 0:
		return OutcomeNoCandidates
	default:
		return OutcomeInvalid
	}
}

// RecordResult counts one processed document and its candidates
func (m *Metrics) RecordResult(result *parser.ProcessResult, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ScansTotal.WithLabelValues(Outcome(result)).Inc()
	m.CandidatesTotal.Add(float64(len(result.ContainerIDsFound)))
	m.ProcessDuration.Observe(elapsed.Seconds())
}

// RecordOCRFailure counts a document whose image could not be read
func (m *Metrics) RecordOCRFailure() {
	if m == nil {
		return
	}
	m.ScansTotal.WithLabelValues(OutcomeOCRFailed).Inc()
}

// ObserveOCR records recognition latency
func (m *Metrics) ObserveOCR(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.OCRDuration.Observe(elapsed.Seconds())
}

// RecordCacheHit counts an upload served from cache
func (m *Metrics) RecordCacheHit() {
	if m == nil {
		return
	}
	m.CacheHitsTotal.Inc()
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
