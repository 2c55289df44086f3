package audit

// Package audit records every manual curation decision for traceability.
// Events are emitted after the page mutation commits; a failed emit never
// rolls the mutation back.

import (
	"context"
	"time"

	model "github.com/linksmith/chrono-scraper-sub006/pkg/curation/core/domain/model"
)

// Event is a single manual-curation decision record.
type Event struct {
	ID          string
	Timestamp   time.Time
	Actor       string
	ProjectID   string
	PageID      string
	ExecutionID string // empty for single-page actions
	Action      model.BulkAction
	FromStatus  model.PageStatus
	ToStatus    model.PageStatus
	Outcome     string // "success", "skipped" or "failed"
	Reason      string
	Detail      model.DetailMap
}

// NewEvent builds an Event with a fresh id and timestamp.
func NewEvent(actor, projectID, pageID string, action model.BulkAction, from, to model.PageStatus) *Event {
	return &Event{
		ID:         model.NewID(),
		Timestamp:  time.Now(),
		Actor:      actor,
		ProjectID:  projectID,
		PageID:     pageID,
		Action:     action,
		FromStatus: from,
		ToStatus:   to,
		Outcome:    "success",
	}
}

// Sink accepts curation audit events.
type Sink interface {
	// Emit records one event. Implementations may buffer; a returned error
	// means the event could not even be queued.
	Emit(ctx context.Context, event *Event) error
	// Close flushes buffered events and releases resources.
	Close(ctx context.Context) error
}
