package metrics

import (
	"context"
	"time"

	model "github.com/linksmith/chrono-scraper-sub006/pkg/curation/core/domain/model"
)

// MetricRecorder is an abstract interface for recording curation metrics.
//
// This interface provides a standardized way to record execution-level and
// item-level events, decoupling the engine from the metrics backend
// (e.g., Prometheus, OpenTelemetry Metrics).
type MetricRecorder interface {
	// RecordExecutionStart records the start of a BulkExecution.
	RecordExecutionStart(ctx context.Context, execution *model.BulkExecution)

	// RecordExecutionEnd records a BulkExecution reaching a terminal state.
	RecordExecutionEnd(ctx context.Context, execution *model.BulkExecution)

	// RecordItemOutcome records a single per-page outcome within an execution.
	RecordItemOutcome(ctx context.Context, action model.BulkAction, outcome model.ItemOutcome)

	// RecordOverride records a single-page manual action outcome.
	//
	// action: The manual action applied.
	// result: "success", "conflict" or "rejected".
	RecordOverride(ctx context.Context, action model.BulkAction, result string)

	// RecordRateLimitHit records a request rejected by the rate guard.
	RecordRateLimitHit(ctx context.Context, scope string)

	// RecordDuration records the execution time of a specific operation.
	//
	// name: The name of the duration to record (e.g., "bulk_execution_duration").
	// tags: Additional tags to associate with the observation.
	RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string)
}
