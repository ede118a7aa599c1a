package monitoring

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestNew_Prometheus(t *testing.T) {
	m, err := New(context.Background(), DefaultConfig("member-registry-test"))
	require.NoError(t, err)
	require.NotNil(t, m)
	defer m.Shutdown(context.Background())

	router := chi.NewRouter()
	router.Use(m.HTTPMetricsMiddleware)
	router.Get("/members/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/members/42", nil))

	m.RecordBusinessEvent("member_created", "success")
	m.RecordExternalCall("sqlite", "create", 3*time.Millisecond, errors.New("boom"))

	body := scrape(t, m)
	assert.Contains(t, body, "http_requests")
	assert.Contains(t, body, `http_route="/members/{id}"`)
	assert.Contains(t, body, "business_events")
	assert.Contains(t, body, `members_business_action="member_created"`)
	assert.Contains(t, body, "external_call_errors")
	assert.Contains(t, body, "go_goroutine")
}

func TestNew_Disabled(t *testing.T) {
	cfg := DefaultConfig("member-registry-test")
	cfg.Enabled = false

	m, err := New(context.Background(), cfg)
	require.NoError(t, err)
	assert.Nil(t, m)

	// nil metrics are safe to use
	m.RecordBusinessEvent("member_created", "success")
	m.RecordExternalCall("sqlite", "create", time.Millisecond, nil)
	assert.NoError(t, m.Shutdown(context.Background()))

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) })
	w = httptest.NewRecorder()
	m.HTTPMetricsMiddleware(next).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, w.Code)
}

func TestNew_OTLPValidation(t *testing.T) {
	cfg := DefaultConfig("member-registry-test")
	cfg.ExporterType = ExporterOTLP

	_, err := New(context.Background(), cfg)
	assert.ErrorContains(t, err, "OTLP endpoint is required")

	cfg.OTLPEndpoint = "http://collector:4318"
	_, err = New(context.Background(), cfg)
	assert.ErrorContains(t, err, "must use HTTPS")
}

func TestNew_OTLP(t *testing.T) {
	cfg := DefaultConfig("member-registry-test")
	cfg.ExporterType = ExporterOTLP
	cfg.OTLPEndpoint = "http://127.0.0.1:4318"
	cfg.OTLPTLSInsecure = true
	cfg.ExportInterval = time.Hour

	m, err := New(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, m)

	assert.Contains(t, scrape(t, m), "OTLP")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	// nothing listens on the collector port; shutdown only has to return
	_ = m.Shutdown(ctx)
}

func TestNew_UnknownExporter(t *testing.T) {
	cfg := DefaultConfig("member-registry-test")
	cfg.ExporterType = "statsd"

	_, err := New(context.Background(), cfg)
	assert.ErrorContains(t, err, "unknown exporter type")
}
