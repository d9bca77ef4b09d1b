// Package observability provides the Prometheus metrics of the editing service.
package observability

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pipeconf"

// Metrics holds the service collectors and the registry they are exposed from.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	operationsTotal *prometheus.CounterVec
	activeSessions  prometheus.Gauge
	historyDepth    prometheus.Histogram

	backendRequestsTotal   *prometheus.CounterVec
	backendRequestDuration *prometheus.HistogramVec

	revisionsStored *prometheus.CounterVec
}

// NewMetrics creates the collectors on a fresh registry together with the Go runtime and
// process collectors.
func NewMetrics() (*Metrics, error) {
	m := &Metrics{registry: prometheus.NewRegistry()}
	m.initMetrics()

	for _, c := range []prometheus.Collector{
		m,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := m.registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) initMetrics() {
	m.httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status_code"},
	)

	m.httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Time taken for HTTP requests",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	m.operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Config edit operations by outcome",
		},
		[]string{"operation", "status"}, // operation: rename, undo, import_toggle; status: success, error
	)

	m.activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Current number of editing sessions",
		},
	)

	m.historyDepth = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "history_undo_depth",
			Help:      "Undo stack depth observed after each recorded change",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		},
	)

	m.backendRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_requests_total",
			Help:      "Requests sent to the config backend",
		},
		[]string{"path", "status_code"}, // status_code is "error" for transport failures
	)

	m.backendRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_seconds",
			Help:      "Time taken for backend requests",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"path"},
	)

	m.revisionsStored = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "revisions_stored_total",
			Help:      "Config revisions written to the archive",
		},
		[]string{"source"},
	)
}

func (m *Metrics) getCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.operationsTotal,
		m.activeSessions,
		m.historyDepth,
		m.backendRequestsTotal,
		m.backendRequestDuration,
		m.revisionsStored,
	}
}

// Describe implements the Collector interface
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.getCollectors() {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.getCollectors() {
		collector.Collect(ch)
	}
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordHTTPRequest records a served request. route is the route pattern, not the raw path.
func (m *Metrics) RecordHTTPRequest(method, route string, statusCode int, seconds float64) {
	m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(seconds)
}

// RecordOperation records the outcome of an edit operation.
func (m *Metrics) RecordOperation(operation string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.operationsTotal.WithLabelValues(operation, status).Inc()
}

// SetActiveSessions sets the session gauge.
func (m *Metrics) SetActiveSessions(n int) {
	m.activeSessions.Set(float64(n))
}

// ObserveHistoryDepth records the undo depth of a session after a change.
func (m *Metrics) ObserveHistoryDepth(depth int) {
	m.historyDepth.Observe(float64(depth))
}

// RecordBackendRequest records a backend call. A zero statusCode marks a transport failure.
func (m *Metrics) RecordBackendRequest(path string, statusCode int, seconds float64) {
	code := "error"
	if statusCode != 0 {
		code = strconv.Itoa(statusCode)
	}
	m.backendRequestsTotal.WithLabelValues(path, code).Inc()
	m.backendRequestDuration.WithLabelValues(path).Observe(seconds)
}

// RecordRevision counts an archived revision.
func (m *Metrics) RecordRevision(source string) {
	m.revisionsStored.WithLabelValues(source).Inc()
}
