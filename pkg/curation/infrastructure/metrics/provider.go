package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	config "github.com/linksmith/chrono-scraper-sub006/pkg/curation/core/config"
	logger "github.com/linksmith/chrono-scraper-sub006/pkg/curation/support/util/logger"
)

func fmtAny(v interface{}) string {
	return fmt.Sprintf("%v", v)
}

// SetupTracerProvider configures the global OpenTelemetry tracer provider.
// With no OTLP endpoint configured, spans stay in-process and unexported.
// The returned shutdown function flushes pending spans.
func SetupTracerProvider(ctx context.Context, cfg *config.TelemetryConfig) (func(context.Context) error, error) {
	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to build telemetry resource: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if cfg.OTLPEndpoint != "" {
		exporter, err := otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(cfg.OTLPEndpoint),
			otlptracehttp.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
		logger.Infof("Trace export enabled (endpoint: %s)", cfg.OTLPEndpoint)
	} else {
		logger.Debugf("No OTLP endpoint configured; trace export disabled")
	}

	provider := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(provider)
	return provider.Shutdown, nil
}
