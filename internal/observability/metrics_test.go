package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestHandlerIncludesRuntimeCollectors(t *testing.T) {
	body := scrape(t, NewMetrics())
	assert.Contains(t, body, "go_goroutines")
	assert.Contains(t, body, "process_")
}

func TestMiddlewareLabelsByRoutePattern(t *testing.T) {
	m := NewMetrics()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Post("/quotations/{id}/transitions", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})
	r.Get("/quotations/{id}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{}"))
	})

	for _, path := range []string{"/quotations/7/transitions", "/quotations/8/transitions"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, path, nil))
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/quotations/7", nil))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("/quotations/{id}/transitions", "409")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("/quotations/{id}", "200")))
	assert.Contains(t, scrape(t, m), `quotedesk_http_request_duration_seconds_bucket{route="/quotations/{id}"`)
}

func TestRoutePatternFallsBackToUnknown(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/nowhere", nil)
	assert.Equal(t, "unknown", routePattern(req))

	rctx := chi.NewRouteContext()
	rctx.RoutePatterns = []string{"/healthz"}
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	assert.Equal(t, "/healthz", routePattern(req))
}

func TestQuotationCounters(t *testing.T) {
	m := NewMetrics()
	m.QuotationCreated("pending_approval")
	m.TransitionApplied("approve", true)
	m.TransitionApplied("approve", false)
	m.AdjustmentApplied("discount")
	m.PDFRendered("failure")

	expected := `
# HELP quotedesk_quotation_transitions_total State transition requests, by trigger and whether the state changed.
# TYPE quotedesk_quotation_transitions_total counter
quotedesk_quotation_transitions_total{changed="false",trigger="approve"} 1
quotedesk_quotation_transitions_total{changed="true",trigger="approve"} 1
`
	require.NoError(t, testutil.GatherAndCompare(m.registry, strings.NewReader(expected), "quotedesk_quotation_transitions_total"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.quotations.WithLabelValues("pending_approval")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.adjustments.WithLabelValues("discount")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.pdfRenders.WithLabelValues("failure")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.QuotationCreated("pending_approval")
	m.TransitionApplied("reject", true)
	m.AdjustmentApplied("free_months")
	m.PDFRendered("success")

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	assert.NotNil(t, m.Middleware(next))

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
