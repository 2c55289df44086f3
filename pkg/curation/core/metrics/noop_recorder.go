package metrics

import (
	"context"
	"time"

	model "github.com/linksmith/chrono-scraper-sub006/pkg/curation/core/domain/model"
)

// NoOpMetricRecorder is an implementation of MetricRecorder that does nothing.
// It is used when metrics are disabled or during testing.
type NoOpMetricRecorder struct{}

// NewNoOpMetricRecorder creates a new instance of NoOpMetricRecorder.
func NewNoOpMetricRecorder() MetricRecorder {
	return &NoOpMetricRecorder{}
}

// RecordExecutionStart does nothing.
func (r *NoOpMetricRecorder) RecordExecutionStart(ctx context.Context, execution *model.BulkExecution) {
}

// RecordExecutionEnd does nothing.
func (r *NoOpMetricRecorder) RecordExecutionEnd(ctx context.Context, execution *model.BulkExecution) {
}

// RecordItemOutcome does nothing.
func (r *NoOpMetricRecorder) RecordItemOutcome(ctx context.Context, action model.BulkAction, outcome model.ItemOutcome) {
}

// RecordOverride does nothing.
func (r *NoOpMetricRecorder) RecordOverride(ctx context.Context, action model.BulkAction, result string) {
}

// RecordRateLimitHit does nothing.
func (r *NoOpMetricRecorder) RecordRateLimitHit(ctx context.Context, scope string) {}

// RecordDuration does nothing.
func (r *NoOpMetricRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
}

var _ MetricRecorder = (*NoOpMetricRecorder)(nil)

// --- NoOpTracer ---

// NoOpTracer is an implementation of Tracer that does nothing.
type NoOpTracer struct{}

// NewNoOpTracer creates a new instance of NoOpTracer.
func NewNoOpTracer() Tracer {
	return &NoOpTracer{}
}

// StartExecutionSpan starts a Span for a BulkExecution.
func (t *NoOpTracer) StartExecutionSpan(ctx context.Context, execution *model.BulkExecution) (context.Context, func()) {
	return ctx, func() {}
}

// StartItemSpan starts a Span for a single page application.
func (t *NoOpTracer) StartItemSpan(ctx context.Context, executionID, pageID string) (context.Context, func()) {
	return ctx, func() {}
}

// RecordError records an error in the current Span.
func (t *NoOpTracer) RecordError(ctx context.Context, module string, err error) {}

// RecordEvent records an event in the current Span.
func (t *NoOpTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {
}

var _ Tracer = (*NoOpTracer)(nil)
