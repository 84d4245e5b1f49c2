package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry holds all telemetry instruments and providers.
type Telemetry struct {
	meterProvider  *sdkmetric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer
	meter          metric.Meter
	exporter       *prometheus.Exporter

	// RED Metrics (Rate, Errors, Duration)
	httpRequestsTotal    metric.Int64Counter
	httpRequestDuration  metric.Float64Histogram
	httpRequestsInFlight metric.Int64UpDownCounter

	// Business Metrics
	filesTotal            metric.Int64Counter
	fileDuration          metric.Float64Histogram
	bytesTransferred      metric.Int64Counter
	downloadsActive       metric.Int64UpDownCounter
	retriesTotal          metric.Int64Counter
	runsTotal             metric.Int64Counter
	clientOperationsTotal metric.Int64Counter
	clientErrors          metric.Int64Counter
	dbOperationsTotal     metric.Int64Counter
	dbOperationDuration   metric.Float64Histogram

	// System health
	systemUptime metric.Float64Gauge
}

// Config holds telemetry configuration.
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	OTLPEndpoint   string // push metrics over OTLP/gRPC as well when set
}

// New creates a new telemetry instance. A disabled config yields a Telemetry
// whose methods are no-ops.
func New(ctx context.Context, cfg Config) (*Telemetry, error) {
	if !cfg.Enabled {
		return &Telemetry{}, nil
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	readers := []sdkmetric.Option{sdkmetric.WithReader(exporter)}

	if cfg.OTLPEndpoint != "" {
		otlpExporter, err := otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlpmetricgrpc.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create otlp exporter: %w", err)
		}

		readers = append(readers, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(otlpExporter)))
	}

	meterProvider := sdkmetric.NewMeterProvider(readers...)
	tracerProvider := sdktrace.NewTracerProvider()

	otel.SetMeterProvider(meterProvider)
	otel.SetTracerProvider(tracerProvider)

	t := &Telemetry{
		meterProvider:  meterProvider,
		tracerProvider: tracerProvider,
		tracer:         tracerProvider.Tracer(cfg.ServiceName, trace.WithInstrumentationVersion(cfg.ServiceVersion)),
		meter:          meterProvider.Meter(cfg.ServiceName, metric.WithInstrumentationVersion(cfg.ServiceVersion)),
		exporter:       exporter,
	}

	if err := t.initializeMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	if err := runtime.Start(runtime.WithMeterProvider(meterProvider)); err != nil {
		return nil, fmt.Errorf("failed to start runtime instrumentation: %w", err)
	}

	go t.collectSystemMetrics(ctx)

	return t, nil
}

// Tracer returns the OpenTelemetry tracer.
func (t *Telemetry) Tracer() trace.Tracer {
	return t.tracer
}

// Meter returns the OpenTelemetry meter.
func (t *Telemetry) Meter() metric.Meter {
	return t.meter
}

// RecordHTTPRequest records HTTP request metrics.
func (t *Telemetry) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.String("status", status),
	)

	if t.httpRequestsTotal != nil {
		t.httpRequestsTotal.Add(context.Background(), 1, attrs)
	}

	if t.httpRequestDuration != nil {
		t.httpRequestDuration.Record(context.Background(), duration.Seconds(), attrs)
	}
}

// IncrementHTTPInFlight increments in-flight HTTP requests.
func (t *Telemetry) IncrementHTTPInFlight() {
	if t.httpRequestsInFlight != nil {
		t.httpRequestsInFlight.Add(context.Background(), 1)
	}
}

// DecrementHTTPInFlight decrements in-flight HTTP requests.
func (t *Telemetry) DecrementHTTPInFlight() {
	if t.httpRequestsInFlight != nil {
		t.httpRequestsInFlight.Add(context.Background(), -1)
	}
}

// RecordFile records the outcome of a single file: downloaded, skipped, not_found or error.
func (t *Telemetry) RecordFile(outcome string, duration time.Duration) {
	if t == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("outcome", outcome))

	if t.filesTotal != nil {
		t.filesTotal.Add(context.Background(), 1, attrs)
	}

	if t.fileDuration != nil {
		t.fileDuration.Record(context.Background(), duration.Seconds(), attrs)
	}
}

// RecordBytes adds n bytes written to disk.
func (t *Telemetry) RecordBytes(n int64) {
	if t != nil && t.bytesTransferred != nil {
		t.bytesTransferred.Add(context.Background(), n)
	}
}

// RecordRetry counts a transient failure that triggered a new attempt.
func (t *Telemetry) RecordRetry(operation string) {
	if t != nil && t.retriesTotal != nil {
		t.retriesTotal.Add(context.Background(), 1,
			metric.WithAttributes(attribute.String("operation", operation)),
		)
	}
}

// RecordRun records the end of a download run.
func (t *Telemetry) RecordRun(category, status string) {
	if t != nil && t.runsTotal != nil {
		t.runsTotal.Add(context.Background(), 1,
			metric.WithAttributes(
				attribute.String("category", category),
				attribute.String("status", status),
			),
		)
	}
}

// IncrementActiveDownloads increments active downloads counter.
func (t *Telemetry) IncrementActiveDownloads() {
	if t.downloadsActive != nil {
		t.downloadsActive.Add(context.Background(), 1)
	}
}

// DecrementActiveDownloads decrements active downloads counter.
func (t *Telemetry) DecrementActiveDownloads() {
	if t.downloadsActive != nil {
		t.downloadsActive.Add(context.Background(), -1)
	}
}

// RecordClientOperation records remote session operation metrics.
func (t *Telemetry) RecordClientOperation(client, operation, status string) {
	if t.clientOperationsTotal != nil {
		t.clientOperationsTotal.Add(context.Background(), 1,
			metric.WithAttributes(
				attribute.String("client", client),
				attribute.String("operation", operation),
				attribute.String("status", status),
			),
		)
	}

	if status == "error" && t.clientErrors != nil {
		t.clientErrors.Add(context.Background(), 1,
			metric.WithAttributes(
				attribute.String("client", client),
				attribute.String("operation", operation),
			),
		)
	}
}

// RecordDBOperation records database operation metrics.
func (t *Telemetry) RecordDBOperation(operation, status string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("status", status),
	)

	if t.dbOperationsTotal != nil {
		t.dbOperationsTotal.Add(context.Background(), 1, attrs)
	}

	if t.dbOperationDuration != nil {
		t.dbOperationDuration.Record(context.Background(), duration.Seconds(), attrs)
	}
}

// Handler returns the HTTP handler for metrics endpoint.
func (t *Telemetry) Handler() http.Handler {
	if t.exporter == nil {
		return http.NotFoundHandler()
	}

	return promhttp.Handler()
}

// Shutdown flushes and stops the meter and tracer providers.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error

	if t.meterProvider != nil {
		errs = append(errs, t.meterProvider.Shutdown(ctx))
	}

	if t.tracerProvider != nil {
		errs = append(errs, t.tracerProvider.Shutdown(ctx))
	}

	return errors.Join(errs...)
}

func (t *Telemetry) initializeMetrics() error {
	if err := t.initializeREDMetrics(); err != nil {
		return err
	}

	if err := t.initializeBusinessMetrics(); err != nil {
		return err
	}

	return t.initializeSystemMetrics()
}

func (t *Telemetry) initializeREDMetrics() error {
	var err error

	t.httpRequestsTotal, err = t.meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create http_requests_total counter: %w", err)
	}

	t.httpRequestDuration, err = t.meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create http_request_duration histogram: %w", err)
	}

	t.httpRequestsInFlight, err = t.meter.Int64UpDownCounter(
		"http_requests_in_flight",
		metric.WithDescription("Number of HTTP requests currently being processed"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create http_requests_in_flight counter: %w", err)
	}

	return nil
}

func (t *Telemetry) initializeBusinessMetrics() error {
	var err error

	t.filesTotal, err = t.meter.Int64Counter(
		"files_total",
		metric.WithDescription("Total number of files processed, by outcome"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create files_total counter: %w", err)
	}

	t.fileDuration, err = t.meter.Float64Histogram(
		"file_duration_seconds",
		metric.WithDescription("Time spent on a single file, retries included"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create file_duration histogram: %w", err)
	}

	t.bytesTransferred, err = t.meter.Int64Counter(
		"bytes_transferred_total",
		metric.WithDescription("Total number of bytes written to disk"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return fmt.Errorf("failed to create bytes_transferred counter: %w", err)
	}

	t.downloadsActive, err = t.meter.Int64UpDownCounter(
		"downloads_active",
		metric.WithDescription("Number of files currently being saved"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create downloads_active counter: %w", err)
	}

	t.retriesTotal, err = t.meter.Int64Counter(
		"retries_total",
		metric.WithDescription("Total number of retries after transient failures"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create retries_total counter: %w", err)
	}

	t.runsTotal, err = t.meter.Int64Counter(
		"runs_total",
		metric.WithDescription("Total number of download runs"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create runs_total counter: %w", err)
	}

	t.clientOperationsTotal, err = t.meter.Int64Counter(
		"client_operations_total",
		metric.WithDescription("Total number of remote session operations"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create client_operations_total counter: %w", err)
	}

	t.clientErrors, err = t.meter.Int64Counter(
		"client_errors_total",
		metric.WithDescription("Total number of remote session errors"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create client_errors counter: %w", err)
	}

	t.dbOperationsTotal, err = t.meter.Int64Counter(
		"db_operations_total",
		metric.WithDescription("Total number of database operations"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create db_operations_total counter: %w", err)
	}

	t.dbOperationDuration, err = t.meter.Float64Histogram(
		"db_operation_duration_seconds",
		metric.WithDescription("Database operation duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create db_operation_duration histogram: %w", err)
	}

	return nil
}

func (t *Telemetry) initializeSystemMetrics() error {
	var err error

	t.systemUptime, err = t.meter.Float64Gauge(
		"system_uptime_seconds",
		metric.WithDescription("System uptime in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create system_uptime gauge: %w", err)
	}

	return nil
}

// collectSystemMetrics records uptime periodically. Go runtime metrics come
// from the contrib runtime instrumentation.
func (t *Telemetry) collectSystemMetrics(ctx context.Context) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	startTime := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if t.systemUptime != nil {
				t.systemUptime.Record(context.Background(), time.Since(startTime).Seconds())
			}
		}
	}
}
