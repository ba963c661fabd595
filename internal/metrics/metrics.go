// Package metrics holds the Prometheus collectors for the gridgate core.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all registered collectors. A nil *Metrics is safe to use;
// every method is a no-op on nil so tests and library callers can skip
// instrumentation entirely.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	PermissionChecksTotal *prometheus.CounterVec
	CellTransitionsTotal  *prometheus.CounterVec

	GrantCacheHitsTotal   prometheus.Counter
	GrantCacheMissesTotal prometheus.Counter
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gridgate_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gridgate_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		PermissionChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gridgate_permission_checks_total",
				Help: "Permission resolution outcomes by scope",
			},
			[]string{"scope", "outcome"},
		),
		CellTransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gridgate_cell_transitions_total",
				Help: "Cell state transition outcomes by action",
			},
			[]string{"action", "outcome"},
		),
		GrantCacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gridgate_grant_cache_hits_total",
			Help: "Grant cache hits in the permission resolver",
		}),
		GrantCacheMissesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gridgate_grant_cache_misses_total",
			Help: "Grant cache misses in the permission resolver",
		}),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.PermissionChecksTotal,
		m.CellTransitionsTotal,
		m.GrantCacheHitsTotal,
		m.GrantCacheMissesTotal,
	)
	return m
}

// Handler returns the /metrics endpoint handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObservePermissionCheck records one resolver outcome ("allowed"/"denied").
func (m *Metrics) ObservePermissionCheck(scope, outcome string) {
	if m == nil {
		return
	}
	m.PermissionChecksTotal.WithLabelValues(scope, outcome).Inc()
}

// ObserveCellTransition records one transition outcome
// ("applied"/"noop"/"denied"/"conflict"/"error").
func (m *Metrics) ObserveCellTransition(action, outcome string) {
	if m == nil {
		return
	}
	m.CellTransitionsTotal.WithLabelValues(action, outcome).Inc()
}

// ObserveGrantCache records one cache lookup.
func (m *Metrics) ObserveGrantCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.GrantCacheHitsTotal.Inc()
	} else {
		m.GrantCacheMissesTotal.Inc()
	}
}
