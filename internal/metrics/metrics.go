// Package metrics exposes Prometheus collectors for a harvest run.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pass labels distinguish the first harvest pass from the exception sweep.
const (
	PassFirst = "first"
	PassSweep = "sweep"
)

// Metrics holds the collectors of one process on a dedicated registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	outcomesTotal        *prometheus.CounterVec
	recordsTotal         prometheus.Counter
	attemptsTotal        *prometheus.CounterVec
	attemptDuration      prometheus.Histogram
	backoffSeconds       prometheus.Histogram
	activeWorkers        prometheus.Gauge
	archiveFailuresTotal prometheus.Counter
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
}

// New registers the harvester collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		outcomesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_outcomes_total",
				Help: "Snapshot URLs classified, labeled by pass and status.",
			},
			[]string{"pass", "status"},
		),
		recordsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harvester_records_total",
			Help: "Records extracted from successful snapshots.",
		}),
		attemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_attempts_total",
				Help: "Single fetch attempts, labeled by resulting status.",
			},
			[]string{"status"},
		),
		attemptDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "harvester_attempt_duration_seconds",
			Help:    "Duration of single fetch-and-extract attempts.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		}),
		backoffSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "harvester_backoff_seconds",
			Help:    "Delays slept between retry attempts.",
			Buckets: []float64{1, 15, 60, 120, 240, 480},
		}),
		activeWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "harvester_active_workers",
			Help: "Workers currently processing a snapshot URL.",
		}),
		archiveFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harvester_archive_failures_total",
			Help: "Snapshot pages that could not be archived.",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Status server requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Status server latencies, labeled by method and route.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"method", "route"},
		),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.outcomesTotal,
		m.recordsTotal,
		m.attemptsTotal,
		m.attemptDuration,
		m.backoffSeconds,
		m.activeWorkers,
		m.archiveFailuresTotal,
		m.httpRequestsTotal,
		m.httpRequestDuration,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns an http.Handler exposing the registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveOutcome counts a classified URL and its records.
func (m *Metrics) ObserveOutcome(pass, status string, records int) {
	if m == nil {
		return
	}
	m.outcomesTotal.WithLabelValues(pass, status).Inc()
	if records > 0 {
		m.recordsTotal.Add(float64(records))
	}
}

// ObserveAttempt records one attempt and its duration.
func (m *Metrics) ObserveAttempt(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.attemptsTotal.WithLabelValues(status).Inc()
	m.attemptDuration.Observe(d.Seconds())
}

// ObserveBackoff records a retry delay.
func (m *Metrics) ObserveBackoff(d time.Duration) {
	if m == nil {
		return
	}
	m.backoffSeconds.Observe(d.Seconds())
}

// ObserveArchiveFailure counts a failed archive upload.
func (m *Metrics) ObserveArchiveFailure() {
	if m == nil {
		return
	}
	m.archiveFailuresTotal.Inc()
}

// IncActiveWorkers increments the active workers gauge.
func (m *Metrics) IncActiveWorkers() {
	if m == nil {
		return
	}
	m.activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func (m *Metrics) DecActiveWorkers() {
	if m == nil {
		return
	}
	m.activeWorkers.Dec()
}

// ObserveHTTPRequest records one status server request.
func (m *Metrics) ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
