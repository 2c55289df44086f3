package usecase

import (
	"context"

	model "github.com/linksmith/chrono-scraper-sub006/pkg/curation/core/domain/model"
)

// ApplyResult is the outcome of applying a single manual action to a page.
type ApplyResult struct {
	PageID             string
	Outcome            model.ItemOutcome
	PreviousStatus     model.PageStatus
	NewStatus          model.PageStatus
	Priority           int
	ManuallyOverridden bool
	// Warning reports a non-fatal follow-up problem, e.g. a committed page
	// mutation whose audit event could not be recorded.
	Warning string
}

// OverrideApplier applies one manual curation action to one page, enforcing
// the status transition rules and optimistic concurrency.
type OverrideApplier interface {
	// Apply validates, applies and audits one action against one page.
	// A lost optimistic-concurrency race returns an error matching
	// exception.ErrConcurrentModification; the page is left untouched.
	Apply(ctx context.Context, projectID, pageID string, action model.BulkAction, params model.RawParams, actor string) (*ApplyResult, error)
}

// SubmitResult reports how a bulk request was accepted.
type SubmitResult struct {
	// Execution is a snapshot of the created execution. For synchronous
	// batches it is already terminal.
	Execution *model.BulkExecution
	// Async reports whether the execution continues in the background.
	Async bool
}

// BulkOperator orchestrates bulk operations over many pages: submission,
// pause, resume, cancellation, and status polling.
type BulkOperator interface {
	// Submit validates a bulk request and either runs it to completion
	// (small batches) or schedules it and returns immediately.
	Submit(ctx context.Context, projectID string, action model.BulkAction, targetIDs []string, params model.RawParams, actor string) (*SubmitResult, error)

	// Pause stops dispatching new items on a running execution. In-flight
	// items complete and are recorded.
	Pause(ctx context.Context, projectID, executionID string) (*model.BulkExecution, error)

	// Resume continues a paused execution with the remaining items.
	Resume(ctx context.Context, projectID, executionID string) (*model.BulkExecution, error)

	// Cancel stops an execution permanently. Already-applied items keep
	// their effects.
	Cancel(ctx context.Context, projectID, executionID string) (*model.BulkExecution, error)

	// Status returns a snapshot of the execution for polling.
	Status(ctx context.Context, projectID, executionID string) (*model.BulkExecution, error)
}
