package repository

import (
	"context"
	"errors"

	model "github.com/linksmith/chrono-scraper-sub006/pkg/curation/core/domain/model"
)

// ErrExecutionNotFound is returned when a requested bulk execution does not exist.
var ErrExecutionNotFound = errors.New("bulk execution not found")

// ExecutionRepository defines the persistence operations for bulk executions.
type ExecutionRepository interface {
	// Save inserts a new execution record.
	Save(ctx context.Context, execution *model.BulkExecution) error
	// Update persists the current state of an existing execution.
	Update(ctx context.Context, execution *model.BulkExecution) error
	// Find returns the execution with the given id, or ErrExecutionNotFound.
	Find(ctx context.Context, projectID, executionID string) (*model.BulkExecution, error)
	// ListActive returns all executions in a non-terminal state. Used at
	// startup to settle records a dead process left behind.
	ListActive(ctx context.Context) ([]*model.BulkExecution, error)
}
