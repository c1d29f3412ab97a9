package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "turdhunter"

// Metrics holds the service's Prometheus collectors
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests    *prometheus.CounterVec
	StoreOperations *prometheus.CounterVec
	StoreDuration   *prometheus.HistogramVec
	IngestedScores  *prometheus.CounterVec
}

// New creates the collectors and registers them on a fresh registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		StoreOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operations_total",
			Help:      "Storage backend operations by operation and result.",
		}, []string{"operation", "result"}),
		StoreDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_operation_duration_seconds",
			Help:      "Storage backend operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		IngestedScores: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingested_scores_total",
			Help:      "Scores consumed from Kafka by result.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		m.HTTPRequests,
		m.StoreOperations,
		m.StoreDuration,
		m.IngestedScores,
		prometheus.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry, DisableCompression: true})
}

// ObserveStore records the outcome and latency of a backend call.
// A nil Metrics is a no-op.
func (m *Metrics) ObserveStore(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.StoreOperations.WithLabelValues(operation, result).Inc()
	m.StoreDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// ObserveRequest counts a finished HTTP request
func (m *Metrics) ObserveRequest(method, route string, code int) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
}

// ObserveIngest counts a consumed Kafka score
func (m *Metrics) ObserveIngest(result string) {
	if m == nil {
		return
	}
	m.IngestedScores.WithLabelValues(result).Inc()
}
