package monitoring

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
)

// Attribute keys for the service's own metrics
const (
	attrBusinessAction    = "members.business.action"
	attrBusinessOutcome   = "members.business.outcome"
	attrExternalTarget    = "members.external.target"
	attrExternalOperation = "members.external.operation"
)

// Exporter types
const (
	ExporterPrometheus = "prometheus"
	ExporterOTLP       = "otlp"
	ExporterNone       = "none"
)

// Config holds the configuration for OpenTelemetry metrics
type Config struct {
	Enabled        bool   `yaml:"enabled"`
	ExporterType   string `yaml:"exporter"` // prometheus, otlp or none
	ServiceName    string `yaml:"serviceName"`
	ServiceVersion string `yaml:"serviceVersion"`
	// OTLPEndpoint is the OTLP/HTTP collector URL, e.g. https://collector:4318
	OTLPEndpoint    string            `yaml:"otlpEndpoint"`
	OTLPHeaders     map[string]string `yaml:"otlpHeaders"`
	OTLPTLSInsecure bool              `yaml:"otlpInsecure"`
	ExportInterval  time.Duration     `yaml:"exportInterval"`
}

// DefaultConfig returns a Prometheus-backed configuration
func DefaultConfig(serviceName string) Config {
	return Config{
		Enabled:        true,
		ExporterType:   ExporterPrometheus,
		ServiceName:    serviceName,
		ServiceVersion: "dev",
		ExportInterval: 15 * time.Second,
	}
}

var durationBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

// Metrics owns the meter provider and the instruments recorded by the service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	provider *sdkmetric.MeterProvider
	handler  http.Handler

	httpRequests    metric.Int64Counter
	httpDuration    metric.Float64Histogram
	externalCalls   metric.Int64Counter
	externalErrors  metric.Int64Counter
	externalLatency metric.Float64Histogram
	businessEvents  metric.Int64Counter
}

// New sets up OpenTelemetry metrics. It returns nil metrics when observability is disabled.
func New(ctx context.Context, config Config) (*Metrics, error) {
	if !config.Enabled || config.ExporterType == ExporterNone {
		slog.Info("OpenTelemetry metrics disabled", "service", config.ServiceName)
		return nil, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	m := &Metrics{}
	var reader sdkmetric.Reader

	switch config.ExporterType {
	case ExporterPrometheus, "":
		reg := prometheus.NewRegistry()
		exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
		if err != nil {
			return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
		}
		reader = exporter
		m.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
		slog.Info("Initialized OpenTelemetry metrics with Prometheus exporter", "service", config.ServiceName)

	case ExporterOTLP:
		opts, err := otlpOptions(config)
		if err != nil {
			return nil, err
		}
		exporter, err := otlpmetrichttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		interval := config.ExportInterval
		if interval <= 0 {
			interval = 15 * time.Second
		}
		reader = sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))
		m.handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("# Metrics exported via OTLP\n"))
		})
		slog.Info("Initialized OpenTelemetry metrics with OTLP exporter",
			"service", config.ServiceName,
			"endpoint", config.OTLPEndpoint,
			"insecure", config.OTLPTLSInsecure)

	default:
		return nil, fmt.Errorf("unknown exporter type: %s (supported: prometheus, otlp, none)", config.ExporterType)
	}

	histogramView := func(name string) sdkmetric.View {
		return sdkmetric.NewView(
			sdkmetric.Instrument{Name: name},
			sdkmetric.Stream{Aggregation: sdkmetric.AggregationExplicitBucketHistogram{Boundaries: durationBuckets}},
		)
	}
	m.provider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
		sdkmetric.WithView(histogramView("http_request_duration_seconds")),
		sdkmetric.WithView(histogramView("external_call_duration_seconds")),
	)
	otel.SetMeterProvider(m.provider)

	// goroutines, GC and heap
	if err := runtime.Start(
		runtime.WithMinimumReadMemStatsInterval(10*time.Second),
		runtime.WithMeterProvider(m.provider),
	); err != nil {
		slog.Warn("Failed to start Go runtime metrics", "error", err)
	}

	if err := m.createInstruments(m.provider.Meter("member-registry")); err != nil {
		return nil, err
	}
	return m, nil
}

func otlpOptions(config Config) ([]otlpmetrichttp.Option, error) {
	if config.OTLPEndpoint == "" {
		return nil, fmt.Errorf("OTLP endpoint is required when using OTLP exporter")
	}
	endpointURL, err := url.Parse(config.OTLPEndpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid OTLP endpoint URL: %w", err)
	}
	if endpointURL.Scheme != "https" && !config.OTLPTLSInsecure {
		return nil, fmt.Errorf("OTLP endpoint must use HTTPS (got: %s); set OTEL_EXPORTER_OTLP_INSECURE=true to allow plain HTTP", endpointURL.Scheme)
	}

	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(endpointURL.Host)}
	if endpointURL.Path != "" && endpointURL.Path != "/" {
		opts = append(opts, otlpmetrichttp.WithURLPath(endpointURL.Path))
	}
	if endpointURL.Scheme == "http" {
		slog.Warn("Using insecure HTTP connection for OTLP endpoint", "endpoint", config.OTLPEndpoint)
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	if len(config.OTLPHeaders) > 0 {
		opts = append(opts, otlpmetrichttp.WithHeaders(config.OTLPHeaders))
	}
	return opts, nil
}

func (m *Metrics) createInstruments(meter metric.Meter) error {
	var err error
	if m.httpRequests, err = meter.Int64Counter("http_requests_total",
		metric.WithDescription("Total number of HTTP requests")); err != nil {
		return fmt.Errorf("failed to create http_requests_total counter: %w", err)
	}
	if m.httpDuration, err = meter.Float64Histogram("http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"), metric.WithUnit("s")); err != nil {
		return fmt.Errorf("failed to create http_request_duration_seconds histogram: %w", err)
	}
	if m.externalCalls, err = meter.Int64Counter("external_calls_total",
		metric.WithDescription("Total number of database and cache calls")); err != nil {
		return fmt.Errorf("failed to create external_calls_total counter: %w", err)
	}
	if m.externalErrors, err = meter.Int64Counter("external_call_errors_total",
		metric.WithDescription("Total number of failed database and cache calls")); err != nil {
		return fmt.Errorf("failed to create external_call_errors_total counter: %w", err)
	}
	if m.externalLatency, err = meter.Float64Histogram("external_call_duration_seconds",
		metric.WithDescription("Database and cache call duration in seconds"), metric.WithUnit("s")); err != nil {
		return fmt.Errorf("failed to create external_call_duration_seconds histogram: %w", err)
	}
	if m.businessEvents, err = meter.Int64Counter("business_events_total",
		metric.WithDescription("Total number of member business events")); err != nil {
		return fmt.Errorf("failed to create business_events_total counter: %w", err)
	}
	return nil
}

// Handler serves the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.handler == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("# Metrics disabled\n"))
		})
	}
	return m.handler
}

// HTTPMetricsMiddleware records request count and latency per chi route pattern
func (m *Metrics) HTTPMetricsMiddleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		route := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}

		ctx := context.Background()
		m.httpRequests.Add(ctx, 1, metric.WithAttributes(
			semconv.HTTPRequestMethodKey.String(r.Method),
			semconv.HTTPRouteKey.String(route),
			semconv.HTTPResponseStatusCodeKey.Int(rw.statusCode),
		))
		m.httpDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
			semconv.HTTPRequestMethodKey.String(r.Method),
			semconv.HTTPRouteKey.String(route),
		))
	})
}

// RecordExternalCall records a database or cache call
func (m *Metrics) RecordExternalCall(target, operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String(attrExternalTarget, target),
		attribute.String(attrExternalOperation, operation),
	)
	m.externalCalls.Add(ctx, 1, attrs)
	m.externalLatency.Record(ctx, duration.Seconds(), attrs)
	if err != nil {
		m.externalErrors.Add(ctx, 1, attrs)
	}
}

// RecordBusinessEvent records a member business event such as member_created/success
func (m *Metrics) RecordBusinessEvent(action, outcome string) {
	if m == nil {
		return
	}
	m.businessEvents.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String(attrBusinessAction, action),
		attribute.String(attrBusinessOutcome, outcome),
	))
}

// Shutdown flushes pending exports
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m == nil || m.provider == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
