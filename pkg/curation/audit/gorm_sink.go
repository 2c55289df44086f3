package audit

import (
	"context"
	"time"

	"gorm.io/gorm"

	model "github.com/linksmith/chrono-scraper-sub006/pkg/curation/core/domain/model"
	exception "github.com/linksmith/chrono-scraper-sub006/pkg/curation/support/util/exception"
	logger "github.com/linksmith/chrono-scraper-sub006/pkg/curation/support/util/logger"
)

const moduleName = "audit"

// auditLogEntity is the gorm row for a persisted audit event.
type auditLogEntity struct {
	ID          string          `gorm:"primaryKey;column:id"`
	Timestamp   time.Time       `gorm:"column:timestamp;index"`
	Actor       string          `gorm:"column:actor;index"`
	ProjectID   string          `gorm:"column:project_id;index"`
	PageID      string          `gorm:"column:page_id;index"`
	ExecutionID string          `gorm:"column:execution_id"`
	Action      string          `gorm:"column:action"`
	FromStatus  string          `gorm:"column:from_status"`
	ToStatus    string          `gorm:"column:to_status"`
	Outcome     string          `gorm:"column:outcome"`
	Reason      string          `gorm:"column:reason"`
	Detail      model.DetailMap `gorm:"column:detail;type:text"`
}

// TableName specifies the table name for the auditLogEntity.
func (auditLogEntity) TableName() string {
	return "curation_audit_log"
}

func toEntity(event *Event) *auditLogEntity {
	return &auditLogEntity{
		ID:          event.ID,
		Timestamp:   event.Timestamp,
		Actor:       event.Actor,
		ProjectID:   event.ProjectID,
		PageID:      event.PageID,
		ExecutionID: event.ExecutionID,
		Action:      string(event.Action),
		FromStatus:  string(event.FromStatus),
		ToStatus:    string(event.ToStatus),
		Outcome:     event.Outcome,
		Reason:      event.Reason,
		Detail:      event.Detail,
	}
}

// GormSink persists audit events asynchronously through a buffered channel.
// A full buffer falls back to a synchronous insert so that no decision record
// is silently dropped.
type GormSink struct {
	db   *gorm.DB
	ch   chan *Event
	done chan struct{}
}

// NewGormSink creates an asynchronous gorm-backed sink and starts its flush
// goroutine. bufferSize below 1 is clamped to 1.
func NewGormSink(db *gorm.DB, bufferSize int) (*GormSink, error) {
	if db == nil {
		return nil, exception.New(moduleName, exception.CodeInvalidParameter, "gorm.DB must not be nil", nil, false)
	}
	if bufferSize < 1 {
		bufferSize = 1
	}
	if err := db.AutoMigrate(&auditLogEntity{}); err != nil {
		return nil, exception.New(moduleName, exception.CodeExecutionFault, "failed to migrate audit schema", err, false)
	}
	s := &GormSink{
		db:   db,
		ch:   make(chan *Event, bufferSize),
		done: make(chan struct{}),
	}
	go s.flushLoop()
	return s, nil
}

// Emit queues the event for asynchronous persistence. When the buffer is
// full the insert happens synchronously on the caller's goroutine.
func (s *GormSink) Emit(ctx context.Context, event *Event) error {
	select {
	case s.ch <- event:
		return nil
	default:
	}
	logger.Warnf("Audit buffer full, falling back to synchronous insert (page: %s)", event.PageID)
	return s.insert(ctx, event)
}

// Close stops the flush goroutine after draining all buffered events.
func (s *GormSink) Close(ctx context.Context) error {
	close(s.ch)
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return exception.New(moduleName, exception.CodeRepositoryTimeout, "timed out waiting for audit sink to drain", ctx.Err(), false)
	}
}

func (s *GormSink) flushLoop() {
	defer close(s.done)
	for event := range s.ch {
		if err := s.insert(context.Background(), event); err != nil {
			logger.Errorf("Failed to persist audit event (ID: %s, page: %s): %v", event.ID, event.PageID, err)
		}
	}
}

func (s *GormSink) insert(ctx context.Context, event *Event) error {
	if err := s.db.WithContext(ctx).Create(toEntity(event)).Error; err != nil {
		return exception.New(moduleName, exception.CodeExecutionFault, "failed to insert audit event", err, true)
	}
	return nil
}

var _ Sink = (*GormSink)(nil)

// NoOpSink discards every event. It is used in tests and when auditing is disabled.
type NoOpSink struct{}

// NewNoOpSink creates a new instance of NoOpSink.
func NewNoOpSink() Sink {
	return &NoOpSink{}
}

// Emit does nothing.
func (NoOpSink) Emit(ctx context.Context, event *Event) error { return nil }

// Close does nothing.
func (NoOpSink) Close(ctx context.Context) error { return nil }

var _ Sink = NoOpSink{}
