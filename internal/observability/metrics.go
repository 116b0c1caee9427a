// Package observability exposes Prometheus metrics for the chat service.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mutextalk"

// Metrics collects Prometheus metrics for the service.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	commandsTotal   *prometheus.CounterVec
	permitAcquires  *prometheus.CounterVec
	auditFailures   *prometheus.CounterVec
}

// NewMetrics initialises the registry and every collector.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency per route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})
	commands := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "commands_total",
		Help:      "Dispatched commands by kind and result code.",
	}, []string{"kind", "code"})
	acquires := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "permit_acquire_total",
		Help:      "Permit acquisition attempts by outcome.",
	}, []string{"outcome"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_sink_failures_total",
		Help:      "Audit records a sink failed to persist.",
	}, []string{"sink"})
	registry.MustRegister(requests, duration, commands, acquires, failures)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		commandsTotal:   commands,
		permitAcquires:  acquires,
		auditFailures:   failures,
	}
}

// Handler returns the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request count and latency per route.
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

// ObserveCommand counts one dispatched command.
func (m *Metrics) ObserveCommand(kind string, code int) {
	if m == nil {
		return
	}
	m.commandsTotal.WithLabelValues(kind, strconv.Itoa(code)).Inc()
}

// ObserveAcquire counts an acquisition attempt. outcome is "granted", "busy",
// "disabled" or "invalid".
func (m *Metrics) ObserveAcquire(outcome string) {
	if m == nil {
		return
	}
	m.permitAcquires.WithLabelValues(outcome).Inc()
}

// TrackPermit exports the permit state, read from state on every scrape.
// Call it once per registry.
func (m *Metrics) TrackPermit(state func() (held, enabled bool)) {
	if m == nil || state == nil {
		return
	}
	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "permit_held",
			Help:      "1 while a writer holds the permit.",
		}, func() float64 {
			held, _ := state()
			return boolGauge(held)
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "writing_enabled",
			Help:      "1 while new acquisitions are allowed.",
		}, func() float64 {
			_, enabled := state()
			return boolGauge(enabled)
		}),
	)
}

// AuditSinkFailed counts a record a sink could not persist.
func (m *Metrics) AuditSinkFailed(sink string) {
	if m == nil {
		return
	}
	m.auditFailures.WithLabelValues(sink).Inc()
}

// Registerer exposes the registry for custom collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
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
