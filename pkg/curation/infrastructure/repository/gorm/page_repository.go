package gormrepo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	model "github.com/linksmith/chrono-scraper-sub006/pkg/curation/core/domain/model"
	repository "github.com/linksmith/chrono-scraper-sub006/pkg/curation/core/domain/repository"
	exception "github.com/linksmith/chrono-scraper-sub006/pkg/curation/support/util/exception"
)

const moduleName = "gorm_repository"

// GormPageRepository is the gorm-backed implementation of the PageRepository
// interface. Optimistic concurrency is enforced with a guarded UPDATE on the
// stored version column.
type GormPageRepository struct {
	db *gorm.DB
}

// NewGormPageRepository creates a new instance of GormPageRepository.
func NewGormPageRepository(db *gorm.DB) *GormPageRepository {
	return &GormPageRepository{db: db}
}

// Verify interface compliance.
var _ repository.PageRepository = (*GormPageRepository)(nil)

// Save inserts a new page.
func (r *GormPageRepository) Save(ctx context.Context, page *model.Page) error {
	if err := r.db.WithContext(ctx).Create(toPageEntity(page)).Error; err != nil {
		return exception.New(moduleName, exception.CodeExecutionFault, "failed to insert page", err, true)
	}
	return nil
}

// Find returns the page with the given id within the project.
func (r *GormPageRepository) Find(ctx context.Context, projectID, pageID string) (*model.Page, error) {
	var entity pageEntity
	err := r.db.WithContext(ctx).
		Where("id = ? AND project_id = ?", pageID, projectID).
		First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrPageNotFound
		}
		return nil, exception.New(moduleName, exception.CodeExecutionFault, "failed to load page", err, true)
	}
	return fromPageEntity(&entity), nil
}

// UpdateWithVersion persists the page iff the stored row still carries
// expectedVersion. A lost race returns exception.ErrConcurrentModification.
func (r *GormPageRepository) UpdateWithVersion(ctx context.Context, page *model.Page, expectedVersion int) error {
	entity := toPageEntity(page)
	entity.Version = expectedVersion + 1
	entity.LastUpdated = time.Now()

	result := r.db.WithContext(ctx).
		Model(&pageEntity{}).
		Where("id = ? AND project_id = ? AND version = ?", page.ID, page.ProjectID, expectedVersion).
		Updates(map[string]interface{}{
			"status":              entity.Status,
			"filter_reason":       entity.FilterReason,
			"filter_category":     entity.FilterCategory,
			"filter_confidence":   entity.FilterConfidence,
			"filter_detail":       entity.FilterDetail,
			"priority":            entity.Priority,
			"manually_overridden": entity.ManuallyOverridden,
			"version":             entity.Version,
			"last_updated":        entity.LastUpdated,
		})
	if result.Error != nil {
		return exception.New(moduleName, exception.CodeExecutionFault, "failed to update page", result.Error, true)
	}
	if result.RowsAffected == 0 {
		// Either the page vanished or another writer bumped the version.
		var count int64
		if err := r.db.WithContext(ctx).Model(&pageEntity{}).
			Where("id = ? AND project_id = ?", page.ID, page.ProjectID).
			Count(&count).Error; err == nil && count == 0 {
			return repository.ErrPageNotFound
		}
		return exception.Newf(moduleName, exception.CodeConcurrentModification,
			"page %s was modified concurrently (expected version %d)", page.ID, expectedVersion)
	}
	return nil
}
