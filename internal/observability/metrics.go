package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the application.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	quotations      *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	adjustments     *prometheus.CounterVec
	pdfRenders      *prometheus.CounterVec
}

// NewMetrics initialises a private registry with HTTP and quotation metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quotedesk_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "quotedesk_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	quotations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quotedesk_quotations_created_total",
		Help: "Quotations created, by initial state.",
	}, []string{"state"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quotedesk_quotation_transitions_total",
		Help: "State transition requests, by trigger and whether the state changed.",
	}, []string{"trigger", "changed"})
	adjustments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quotedesk_quotation_adjustments_total",
		Help: "Commercial adjustments applied, by kind.",
	}, []string{"kind"})
	renders := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quotedesk_pdf_renders_total",
		Help: "Quotation PDF render attempts, by outcome.",
	}, []string{"outcome"})
	registry.MustRegister(
		requests, duration, quotations, transitions, adjustments, renders,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		quotations:      quotations,
		transitions:     transitions,
		adjustments:     adjustments,
		pdfRenders:      renders,
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

// Middleware records request count and latency per route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer exposes the registry so other packages can add collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// QuotationCreated counts a new quotation in its initial state.
func (m *Metrics) QuotationCreated(state string) {
	if m == nil {
		return
	}
	m.quotations.WithLabelValues(state).Inc()
}

// TransitionApplied counts a transition request.
func (m *Metrics) TransitionApplied(trigger string, changed bool) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(trigger, strconv.FormatBool(changed)).Inc()
}

// AdjustmentApplied counts a discount or free-months adjustment.
func (m *Metrics) AdjustmentApplied(kind string) {
	if m == nil {
		return
	}
	m.adjustments.WithLabelValues(kind).Inc()
}

// PDFRendered counts a render attempt by outcome.
func (m *Metrics) PDFRendered(outcome string) {
	if m == nil {
		return
	}
	m.pdfRenders.WithLabelValues(outcome).Inc()
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
