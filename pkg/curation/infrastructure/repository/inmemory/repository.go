// Package inmemory provides in-memory implementations of the page and
// execution repositories. All data lives in maps, suitable for testing and
// scenarios where persistence is not required.
package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	model "github.com/linksmith/chrono-scraper-sub006/pkg/curation/core/domain/model"
	repository "github.com/linksmith/chrono-scraper-sub006/pkg/curation/core/domain/repository"
	exception "github.com/linksmith/chrono-scraper-sub006/pkg/curation/support/util/exception"
)

const moduleName = "inmemory_repository"

// InMemoryPageRepository is an in-memory implementation of the PageRepository
// interface with full optimistic-concurrency semantics.
type InMemoryPageRepository struct {
	pages map[string]*model.Page
	mu    sync.RWMutex
}

// NewInMemoryPageRepository creates and initializes a new InMemoryPageRepository.
func NewInMemoryPageRepository() *InMemoryPageRepository {
	return &InMemoryPageRepository{
		pages: make(map[string]*model.Page),
	}
}

// Verify interface compliance.
var _ repository.PageRepository = (*InMemoryPageRepository)(nil)

// Save inserts a new page. It returns an error if a page with the same ID
// already exists.
func (r *InMemoryPageRepository) Save(ctx context.Context, page *model.Page) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.pages[page.ID]; exists {
		return fmt.Errorf("page with ID %s already exists", page.ID)
	}
	r.pages[page.ID] = page.Clone()
	return nil
}

// Find returns the page with the given id within the project.
func (r *InMemoryPageRepository) Find(ctx context.Context, projectID, pageID string) (*model.Page, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	page, ok := r.pages[pageID]
	if !ok || page.ProjectID != projectID {
		return nil, repository.ErrPageNotFound
	}
	// Deep copy to prevent external modification of internal state.
	return page.Clone(), nil
}

// UpdateWithVersion persists the page iff the stored row still carries
// expectedVersion. A lost race returns exception.ErrConcurrentModification.
func (r *InMemoryPageRepository) UpdateWithVersion(ctx context.Context, page *model.Page, expectedVersion int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.pages[page.ID]
	if !ok || current.ProjectID != page.ProjectID {
		return repository.ErrPageNotFound
	}
	if current.Version != expectedVersion {
		return exception.Newf(moduleName, exception.CodeConcurrentModification,
			"page %s was modified concurrently (expected version %d, found %d)", page.ID, expectedVersion, current.Version)
	}
	updated := page.Clone()
	updated.Version = expectedVersion + 1
	updated.LastUpdated = time.Now()
	r.pages[page.ID] = updated
	return nil
}

// InMemoryExecutionRepository is an in-memory implementation of the
// ExecutionRepository interface.
type InMemoryExecutionRepository struct {
	executions map[string]*model.BulkExecution
	mu         sync.RWMutex
}

// NewInMemoryExecutionRepository creates and initializes a new InMemoryExecutionRepository.
func NewInMemoryExecutionRepository() *InMemoryExecutionRepository {
	return &InMemoryExecutionRepository{
		executions: make(map[string]*model.BulkExecution),
	}
}

// Verify interface compliance.
var _ repository.ExecutionRepository = (*InMemoryExecutionRepository)(nil)

// Save inserts a new execution record. It returns an error if an execution
// with the same ID already exists.
func (r *InMemoryExecutionRepository) Save(ctx context.Context, execution *model.BulkExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.executions[execution.ID]; exists {
		return fmt.Errorf("BulkExecution with ID %s already exists", execution.ID)
	}
	r.executions[execution.ID] = execution.Snapshot()
	return nil
}

// Update persists the current state of an existing execution.
func (r *InMemoryExecutionRepository) Update(ctx context.Context, execution *model.BulkExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.executions[execution.ID]; !exists {
		return fmt.Errorf("BulkExecution with ID %s not found for update", execution.ID)
	}
	r.executions[execution.ID] = execution.Snapshot()
	return nil
}

// Find returns the execution with the given id within the project.
func (r *InMemoryExecutionRepository) Find(ctx context.Context, projectID, executionID string) (*model.BulkExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	execution, ok := r.executions[executionID]
	if !ok || execution.ProjectID != projectID {
		return nil, repository.ErrExecutionNotFound
	}
	return execution.Snapshot(), nil
}

// ListActive returns all executions in a non-terminal state.
func (r *InMemoryExecutionRepository) ListActive(ctx context.Context) ([]*model.BulkExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	active := make([]*model.BulkExecution, 0)
	for _, execution := range r.executions {
		if !execution.State.IsTerminal() {
			active = append(active, execution.Snapshot())
		}
	}
	return active, nil
}
