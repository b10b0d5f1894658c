package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const (
	ServiceName    = "marketlens"
	ServiceVersion = "1.0.0"
	MeterName      = "marketlens"
)

// OTelProviders holds the metric provider and the scrape handler.
type OTelProviders struct {
	MeterProvider  *sdkmetric.MeterProvider
	Meter          metric.Meter
	PrometheusHTTP http.Handler
	Logger         *slog.Logger
}

// InitializeOTel sets up the OpenTelemetry meter provider with a
// Prometheus exporter and installs it globally.
func InitializeOTel(logger *slog.Logger) (*OTelProviders, error) {
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(ServiceName),
		semconv.ServiceVersion(ServiceVersion),
		attribute.String("service.instance.id", instanceID()),
	)

	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(mp)

	logger.Info("metrics initialized", slog.String("exporter", "prometheus"))

	return &OTelProviders{
		MeterProvider:  mp,
		Meter:          mp.Meter(MeterName, metric.WithInstrumentationVersion(ServiceVersion)),
		PrometheusHTTP: promhttp.Handler(),
		Logger:         logger,
	}, nil
}

// Shutdown flushes and stops the meter provider.
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil {
			return fmt.Errorf("meter provider shutdown: %w", err)
		}
	}
	p.Logger.InfoContext(ctx, "metrics shutdown complete")
	return nil
}

// ServiceMetrics holds the application's instruments.
type ServiceMetrics struct {
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
	HTTPActiveRequests  metric.Int64UpDownCounter

	EvalTotal    metric.Int64Counter
	EvalDuration metric.Float64Histogram
	EvalErrors   metric.Int64Counter

	RefreshRuns     metric.Int64Counter
	RefreshDuration metric.Float64Histogram

	InsightUploads   metric.Int64Counter
	InsightSummaries metric.Int64Counter
}

// CreateServiceMetrics registers the application's instruments on meter.
func CreateServiceMetrics(meter metric.Meter) (*ServiceMetrics, error) {
	m := &ServiceMetrics{}
	var err error

	if m.HTTPRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	); err != nil {
		return nil, err
	}
	if m.HTTPRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.HTTPActiveRequests, err = meter.Int64UpDownCounter(
		"http_active_requests",
		metric.WithDescription("Number of in-flight HTTP requests"),
	); err != nil {
		return nil, err
	}

	if m.EvalTotal, err = meter.Int64Counter(
		"expression_evaluations_total",
		metric.WithDescription("Total number of expression evaluations"),
	); err != nil {
		return nil, err
	}
	if m.EvalDuration, err = meter.Float64Histogram(
		"expression_evaluation_duration_seconds",
		metric.WithDescription("Expression evaluation duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.EvalErrors, err = meter.Int64Counter(
		"expression_evaluation_errors_total",
		metric.WithDescription("Total number of failed expression evaluations"),
	); err != nil {
		return nil, err
	}

	if m.RefreshRuns, err = meter.Int64Counter(
		"refresh_runs_total",
		metric.WithDescription("Total number of scheduled chart refresh runs"),
	); err != nil {
		return nil, err
	}
	if m.RefreshDuration, err = meter.Float64Histogram(
		"refresh_run_duration_seconds",
		metric.WithDescription("Chart refresh run duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if m.InsightUploads, err = meter.Int64Counter(
		"insight_uploads_total",
		metric.WithDescription("Total number of insight document uploads"),
	); err != nil {
		return nil, err
	}
	if m.InsightSummaries, err = meter.Int64Counter(
		"insight_summaries_total",
		metric.WithDescription("Total number of insight summaries generated"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

// RecordEval records one expression evaluation.
func (m *ServiceMetrics) RecordEval(ctx context.Context, duration time.Duration, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
		m.EvalErrors.Add(ctx, 1)
	}
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.EvalTotal.Add(ctx, 1, attrs)
	m.EvalDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordRefresh records one scheduled refresh run.
func (m *ServiceMetrics) RecordRefresh(ctx context.Context, duration time.Duration, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.RefreshRuns.Add(ctx, 1, attrs)
	m.RefreshDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordInsightUpload records one document upload attempt.
func (m *ServiceMetrics) RecordInsightUpload(ctx context.Context, accepted bool) {
	if m == nil {
		return
	}
	status := "accepted"
	if !accepted {
		status = "rejected"
	}
	m.InsightUploads.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordInsightSummary records one summarization outcome.
func (m *ServiceMetrics) RecordInsightSummary(ctx context.Context, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.InsightSummaries.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

func instanceID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s-%d", hostname, time.Now().Unix())
}
