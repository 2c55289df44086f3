package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PageStatus represents the lifecycle state of a scraped page.
type PageStatus string

const (
	StatusPending              PageStatus = "pending"
	StatusInProgress           PageStatus = "in_progress"
	StatusCompleted            PageStatus = "completed"
	StatusFailed               PageStatus = "failed"
	StatusSkipped              PageStatus = "skipped"
	StatusFilteredDuplicate    PageStatus = "filtered_duplicate"
	StatusFilteredListPage     PageStatus = "filtered_list_page"
	StatusFilteredLowQuality   PageStatus = "filtered_low_quality"
	StatusFilteredSize         PageStatus = "filtered_size"
	StatusFilteredType         PageStatus = "filtered_type"
	StatusFilteredCustom       PageStatus = "filtered_custom"
	StatusAwaitingManualReview PageStatus = "awaiting_manual_review"
	StatusManuallyApproved     PageStatus = "manually_approved"
)

// String returns the string representation of the PageStatus.
func (s PageStatus) String() string {
	return string(s)
}

// IsFiltered reports whether the status is one of the automated filter outcomes.
func (s PageStatus) IsFiltered() bool {
	switch s {
	case StatusFilteredDuplicate, StatusFilteredListPage, StatusFilteredLowQuality,
		StatusFilteredSize, StatusFilteredType, StatusFilteredCustom:
		return true
	default:
		return false
	}
}

// IsValid reports whether the status is a known lifecycle state.
func (s PageStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusFailed, StatusSkipped,
		StatusAwaitingManualReview, StatusManuallyApproved:
		return true
	default:
		return s.IsFiltered()
	}
}

// FilterCategory classifies an automated filter decision.
type FilterCategory string

const (
	FilterCategoryDuplicate  FilterCategory = "duplicate"
	FilterCategoryListPage   FilterCategory = "list_page"
	FilterCategoryLowQuality FilterCategory = "low_quality"
	FilterCategorySize       FilterCategory = "size"
	FilterCategoryType       FilterCategory = "type"
	FilterCategoryCustom     FilterCategory = "custom"
)

// statusByCategory maps each filter category to its filtered status.
var statusByCategory = map[FilterCategory]PageStatus{
	FilterCategoryDuplicate:  StatusFilteredDuplicate,
	FilterCategoryListPage:   StatusFilteredListPage,
	FilterCategoryLowQuality: StatusFilteredLowQuality,
	FilterCategorySize:       StatusFilteredSize,
	FilterCategoryType:       StatusFilteredType,
	FilterCategoryCustom:     StatusFilteredCustom,
}

// FilteredStatusForCategory returns the filtered status corresponding to the
// given filter category. The second return value is false for unknown categories.
func FilteredStatusForCategory(category FilterCategory) (PageStatus, bool) {
	s, ok := statusByCategory[category]
	return s, ok
}

// DetailMap is an arbitrary structured payload attached to a filter decision.
type DetailMap map[string]interface{}

// Value implements the `driver.Valuer` interface, converting the DetailMap to a JSON string.
func (d DetailMap) Value() (driver.Value, error) {
	if d == nil {
		return "{}", nil
	}
	data, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements the `sql.Scanner` interface, converting a JSON string to a DetailMap.
func (d *DetailMap) Scan(value interface{}) error {
	if value == nil {
		*d = make(DetailMap)
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported Scan type for DetailMap: %T", value)
	}
	if len(b) == 0 {
		*d = make(DetailMap)
		return nil
	}
	if err := json.Unmarshal(b, d); err != nil {
		return fmt.Errorf("failed to unmarshal DetailMap JSON: %w", err)
	}
	return nil
}

// FilterDecision is the immutable record of why the automated filter produced
// a given status. It is set by the filtering pipeline and cleared only by an
// explicit restore; manual overrides must leave it untouched.
type FilterDecision struct {
	Reason     string
	Category   FilterCategory
	Confidence float64
	Detail     DetailMap
}

// IsZero reports whether no filter decision has been recorded.
func (fd FilterDecision) IsZero() bool {
	return fd.Reason == "" && fd.Category == "" && fd.Confidence == 0 && len(fd.Detail) == 0
}

// Page is the curated view of a scraped page held by the page repository.
// Every mutation must go through an optimistic compare-and-swap keyed on
// Version, because the automated filtering pipeline writes the same rows.
type Page struct {
	ID                 string
	ProjectID          string
	URL                string
	Status             PageStatus
	Filter             FilterDecision
	Priority           int
	ManuallyOverridden bool
	Version            int
	CreateTime         time.Time
	LastUpdated        time.Time
}

const (
	// MinPriority and MaxPriority bound the page priority scale.
	MinPriority = 1
	MaxPriority = 10
)

// NewPage creates a new Page in the pending state with default priority.
func NewPage(projectID, url string) *Page {
	now := time.Now()
	return &Page{
		ID:          NewID(),
		ProjectID:   projectID,
		URL:         url,
		Status:      StatusPending,
		Priority:    5,
		Version:     0,
		CreateTime:  now,
		LastUpdated: now,
	}
}

// Clone returns a deep copy of the page.
func (p *Page) Clone() *Page {
	cp := *p
	if p.Filter.Detail != nil {
		cp.Filter.Detail = make(DetailMap, len(p.Filter.Detail))
		for k, v := range p.Filter.Detail {
			cp.Filter.Detail[k] = v
		}
	}
	return &cp
}

// NewID generates a new UUID string.
func NewID() string {
	return uuid.New().String()
}
