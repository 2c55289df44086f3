package repository

import (
	"context"
	"errors"

	model "github.com/linksmith/chrono-scraper-sub006/pkg/curation/core/domain/model"
)

// ErrPageNotFound is returned when a requested page does not exist.
var ErrPageNotFound = errors.New("scrape page not found")

// PageRepository defines the persistence operations for scrape pages.
type PageRepository interface {
	// Find returns the page with the given id, or ErrPageNotFound.
	Find(ctx context.Context, projectID, pageID string) (*model.Page, error)
	// UpdateWithVersion persists the page iff the stored row still carries
	// expectedVersion, incrementing the version on success. A lost race
	// returns exception.ErrConcurrentModification.
	UpdateWithVersion(ctx context.Context, page *model.Page, expectedVersion int) error
	// Save inserts a new page.
	Save(ctx context.Context, page *model.Page) error
}
