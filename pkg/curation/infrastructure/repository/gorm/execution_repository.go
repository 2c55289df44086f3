package gormrepo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	model "github.com/linksmith/chrono-scraper-sub006/pkg/curation/core/domain/model"
	repository "github.com/linksmith/chrono-scraper-sub006/pkg/curation/core/domain/repository"
	exception "github.com/linksmith/chrono-scraper-sub006/pkg/curation/support/util/exception"
)

// GormExecutionRepository is the gorm-backed implementation of the
// ExecutionRepository interface.
type GormExecutionRepository struct {
	db *gorm.DB
}

// NewGormExecutionRepository creates a new instance of GormExecutionRepository.
func NewGormExecutionRepository(db *gorm.DB) *GormExecutionRepository {
	return &GormExecutionRepository{db: db}
}

// Verify interface compliance.
var _ repository.ExecutionRepository = (*GormExecutionRepository)(nil)

// Save inserts a new execution record.
func (r *GormExecutionRepository) Save(ctx context.Context, execution *model.BulkExecution) error {
	if err := r.db.WithContext(ctx).Create(toExecutionEntity(execution)).Error; err != nil {
		return exception.New(moduleName, exception.CodeExecutionFault, "failed to insert execution", err, true)
	}
	return nil
}

// Update persists the current state of an existing execution. The engine's
// controller goroutine is the only writer, so a plain save is sufficient.
func (r *GormExecutionRepository) Update(ctx context.Context, execution *model.BulkExecution) error {
	if err := r.db.WithContext(ctx).Save(toExecutionEntity(execution)).Error; err != nil {
		return exception.New(moduleName, exception.CodeExecutionFault, "failed to update execution", err, true)
	}
	return nil
}

// Find returns the execution with the given id within the project.
func (r *GormExecutionRepository) Find(ctx context.Context, projectID, executionID string) (*model.BulkExecution, error) {
	var entity executionEntity
	err := r.db.WithContext(ctx).
		Where("id = ? AND project_id = ?", executionID, projectID).
		First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrExecutionNotFound
		}
		return nil, exception.New(moduleName, exception.CodeExecutionFault, "failed to load execution", err, true)
	}
	return fromExecutionEntity(&entity), nil
}

// ListActive returns all executions in a non-terminal state.
func (r *GormExecutionRepository) ListActive(ctx context.Context) ([]*model.BulkExecution, error) {
	var entities []executionEntity
	err := r.db.WithContext(ctx).
		Where("state NOT IN ?", []string{
			string(model.ExecutionStateCancelled),
			string(model.ExecutionStateCompleted),
			string(model.ExecutionStateFailed),
		}).
		Find(&entities).Error
	if err != nil {
		return nil, exception.New(moduleName, exception.CodeExecutionFault, "failed to list executions", err, true)
	}
	executions := make([]*model.BulkExecution, 0, len(entities))
	for i := range entities {
		executions = append(executions, fromExecutionEntity(&entities[i]))
	}
	return executions, nil
}
