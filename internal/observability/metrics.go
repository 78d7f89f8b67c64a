package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the engine's prometheus collectors on a private
// registry so tests can build as many instances as they like.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec

	ScanTicks            *prometheus.CounterVec
	ScanDuration         prometheus.Histogram
	TicketsEvaluated     prometheus.Counter
	TenantScanErrors     *prometheus.CounterVec
	NotificationsEmitted *prometheus.CounterVec
}

// NewMetrics initializes and registers all collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sla_engine_http_requests_total",
			Help: "HTTP requests processed, by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sla_engine_http_request_duration_seconds",
			Help:    "HTTP request latency, by method and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		HTTPErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sla_engine_http_errors_total",
			Help: "HTTP error responses, by route and error code.",
		}, []string{"route", "code"}),
		ScanTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sla_engine_monitor_ticks_total",
			Help: "Breach monitor ticks, by outcome.",
		}, []string{"outcome"}),
		ScanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sla_engine_monitor_tick_duration_seconds",
			Help:    "Wall time of one full monitor tick.",
			Buckets: prometheus.DefBuckets,
		}),
		TicketsEvaluated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sla_engine_monitor_tickets_evaluated_total",
			Help: "Tickets evaluated against their thresholds.",
		}),
		TenantScanErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sla_engine_monitor_tenant_scan_errors_total",
			Help: "Failed tenant scans, by tenant.",
		}, []string{"tenant_id"}),
		NotificationsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sla_engine_notifications_emitted_total",
			Help: "Breach notifications written, by threshold kind.",
		}, []string{"kind"}),
	}
	registry.MustRegister(
		m.HTTPRequests,
		m.HTTPRequestDuration,
		m.HTTPErrors,
		m.ScanTicks,
		m.ScanDuration,
		m.TicketsEvaluated,
		m.TenantScanErrors,
		m.NotificationsEmitted,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the scrape endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	m.HTTPErrors.WithLabelValues(route, code).Inc()
}
