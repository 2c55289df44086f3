package metrics

import (
	"context"

	model "github.com/linksmith/chrono-scraper-sub006/pkg/curation/core/domain/model"
)

// Tracer is an abstract interface for distributed tracing.
// It integrates with tracing systems like OpenTelemetry, enabling
// visualization of bulk execution and per-page override flows.
type Tracer interface {
	// StartExecutionSpan starts a Span covering a whole BulkExecution.
	//
	// Returns a context with the new Span set, and a function to end the Span.
	// It is recommended to call the returned function in a defer statement.
	StartExecutionSpan(ctx context.Context, execution *model.BulkExecution) (context.Context, func())

	// StartItemSpan starts a Span for a single page application within an execution.
	StartItemSpan(ctx context.Context, executionID, pageID string) (context.Context, func())

	// RecordError records an error in the current Span.
	RecordError(ctx context.Context, module string, err error)

	// RecordEvent records an event in the current Span.
	//
	// name: The name of the event (e.g., "execution_paused").
	// attributes: Additional attributes to associate with the event.
	RecordEvent(ctx context.Context, name string, attributes map[string]interface{})
}
