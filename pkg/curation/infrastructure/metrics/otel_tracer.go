package metrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	model "github.com/linksmith/chrono-scraper-sub006/pkg/curation/core/domain/model"
	metrics "github.com/linksmith/chrono-scraper-sub006/pkg/curation/core/metrics"
)

const tracerName = "github.com/linksmith/chrono-scraper-sub006/pkg/curation"

// OpenTelemetryTracer is an implementation of metrics.Tracer backed by the
// globally registered OpenTelemetry tracer provider.
type OpenTelemetryTracer struct {
	tracer trace.Tracer
}

// NewOpenTelemetryTracer creates a new instance of OpenTelemetryTracer.
func NewOpenTelemetryTracer() metrics.Tracer {
	return &OpenTelemetryTracer{
		tracer: otel.Tracer(tracerName),
	}
}

// StartExecutionSpan starts a span covering a whole BulkExecution.
func (t *OpenTelemetryTracer) StartExecutionSpan(ctx context.Context, execution *model.BulkExecution) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, "curation.bulk_execution",
		trace.WithAttributes(
			attribute.String("curation.execution_id", execution.ID),
			attribute.String("curation.project_id", execution.ProjectID),
			attribute.String("curation.action", string(execution.Action)),
			attribute.Int("curation.target_count", len(execution.TargetIDs)),
		),
	)
	return ctx, func() { span.End() }
}

// StartItemSpan starts a span for a single page application within an execution.
func (t *OpenTelemetryTracer) StartItemSpan(ctx context.Context, executionID, pageID string) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, "curation.bulk_item",
		trace.WithAttributes(
			attribute.String("curation.execution_id", executionID),
			attribute.String("curation.page_id", pageID),
		),
	)
	return ctx, func() { span.End() }
}

// RecordError records an error in the current span.
func (t *OpenTelemetryTracer) RecordError(ctx context.Context, module string, err error) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.RecordError(err, trace.WithAttributes(attribute.String("curation.module", module)))
	span.SetStatus(codes.Error, err.Error())
}

// RecordEvent records an event in the current span.
func (t *OpenTelemetryTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	attrs := make([]attribute.KeyValue, 0, len(attributes))
	for key, value := range attributes {
		switch v := value.(type) {
		case string:
			attrs = append(attrs, attribute.String(key, v))
		case int:
			attrs = append(attrs, attribute.Int(key, v))
		case bool:
			attrs = append(attrs, attribute.Bool(key, v))
		case float64:
			attrs = append(attrs, attribute.Float64(key, v))
		default:
			attrs = append(attrs, attribute.String(key, fmtAny(v)))
		}
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

var _ metrics.Tracer = (*OpenTelemetryTracer)(nil)
