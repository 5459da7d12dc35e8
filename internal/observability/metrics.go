// Package observability owns the Prometheus registry and the HTTP and domain
// counters exported on /metrics.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the service.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	scanOutcomes    *prometheus.CounterVec
	dispatches      *prometheus.CounterVec
}

// NewMetrics initialises the registry with the HTTP, scan and dispatch collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trackfit_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "trackfit_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	scans := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trackfit_scan_outcomes_total",
		Help: "Observable identification outcomes by resolution kind and failure reason.",
	}, []string{"kind", "reason"})
	dispatches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trackfit_dispatch_total",
		Help: "Dispatched actions by action and result.",
	}, []string{"action", "result"})
	registry.MustRegister(requests, duration, scans, dispatches)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		scanOutcomes:    scans,
		dispatches:      dispatches,
	}
}

// Handler returns the /metrics handler.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records count and duration for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObserveScan counts one observable scan outcome. reason is empty for successes.
func (m *Metrics) ObserveScan(kind, reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "none"
	}
	m.scanOutcomes.WithLabelValues(kind, reason).Inc()
}

// ObserveDispatch counts one dispatch result.
func (m *Metrics) ObserveDispatch(action, result string) {
	if m == nil {
		return
	}
	m.dispatches.WithLabelValues(action, result).Inc()
}

// Registerer exposes the registry for additional collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
