package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wildlife"

// Metrics owns the process registry. It also records record-cache and
// classification events for the detections service.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal      *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	requestsInProgress prometheus.Gauge

	assetFetches   *prometheus.CounterVec
	cacheResults   *prometheus.CounterVec
	skipped        *prometheus.CounterVec
	detectionCount prometheus.Gauge
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{registry: reg}

	m.requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by method and status code.",
	}, []string{"method", "status"})
	m.requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method"})
	m.requestsInProgress = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "http_requests_in_progress",
		Help:      "Requests currently being served.",
	})
	m.assetFetches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "asset_fetch_total",
		Help:      "Remote asset listing queries by outcome.",
	}, []string{"outcome"})
	m.cacheResults = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "record_cache_total",
		Help:      "Record cache lookups by result.",
	}, []string{"result"})
	m.skipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "classification_skipped_total",
		Help:      "Assets dropped during classification by reason.",
	}, []string{"reason"})
	m.detectionCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "detection_records",
		Help:      "Size of the last classified record set.",
	})

	reg.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.requestsInProgress,
		m.assetFetches,
		m.cacheResults,
		m.skipped,
		m.detectionCount,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) CacheResult(result string) {
	m.cacheResults.WithLabelValues(result).Inc()
}

func (m *Metrics) FetchOutcome(outcome string) {
	m.assetFetches.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ClassificationSkipped(reason string, n int) {
	m.skipped.WithLabelValues(reason).Add(float64(n))
}

func (m *Metrics) RecordsClassified(n int) {
	m.detectionCount.Set(float64(n))
}

// Middleware tracks request metrics
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.requestsInProgress.Inc()
		defer m.requestsInProgress.Dec()

		start := time.Now()
		wrapped := wrapWriter(w)
		next.ServeHTTP(wrapped, r)

		m.requestsTotal.WithLabelValues(r.Method, strconv.Itoa(wrapped.statusCode)).Inc()
		m.requestDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
