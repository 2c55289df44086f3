package gormrepo

import (
	"time"

	model "github.com/linksmith/chrono-scraper-sub006/pkg/curation/core/domain/model"
)

// pageEntity is the gorm row for a scrape page.
type pageEntity struct {
	ID                 string          `gorm:"primaryKey;column:id"`
	ProjectID          string          `gorm:"column:project_id;index"`
	URL                string          `gorm:"column:url"`
	Status             string          `gorm:"column:status;index"`
	FilterReason       string          `gorm:"column:filter_reason"`
	FilterCategory     string          `gorm:"column:filter_category"`
	FilterConfidence   float64         `gorm:"column:filter_confidence"`
	FilterDetail       model.DetailMap `gorm:"column:filter_detail;type:text"`
	Priority           int             `gorm:"column:priority"`
	ManuallyOverridden bool            `gorm:"column:manually_overridden"`
	Version            int             `gorm:"column:version"`
	CreateTime         time.Time       `gorm:"column:create_time"`
	LastUpdated        time.Time       `gorm:"column:last_updated"`
}

// TableName specifies the table name for the pageEntity.
func (pageEntity) TableName() string {
	return "scrape_page"
}

func toPageEntity(page *model.Page) *pageEntity {
	return &pageEntity{
		ID:                 page.ID,
		ProjectID:          page.ProjectID,
		URL:                page.URL,
		Status:             string(page.Status),
		FilterReason:       page.Filter.Reason,
		FilterCategory:     string(page.Filter.Category),
		FilterConfidence:   page.Filter.Confidence,
		FilterDetail:       page.Filter.Detail,
		Priority:           page.Priority,
		ManuallyOverridden: page.ManuallyOverridden,
		Version:            page.Version,
		CreateTime:         page.CreateTime,
		LastUpdated:        page.LastUpdated,
	}
}

func fromPageEntity(e *pageEntity) *model.Page {
	return &model.Page{
		ID:        e.ID,
		ProjectID: e.ProjectID,
		URL:       e.URL,
		Status:    model.PageStatus(e.Status),
		Filter: model.FilterDecision{
			Reason:     e.FilterReason,
			Category:   model.FilterCategory(e.FilterCategory),
			Confidence: e.FilterConfidence,
			Detail:     e.FilterDetail,
		},
		Priority:           e.Priority,
		ManuallyOverridden: e.ManuallyOverridden,
		Version:            e.Version,
		CreateTime:         e.CreateTime,
		LastUpdated:        e.LastUpdated,
	}
}

// executionEntity is the gorm row for a bulk execution.
type executionEntity struct {
	ID          string            `gorm:"primaryKey;column:id"`
	ProjectID   string            `gorm:"column:project_id;index"`
	Action      string            `gorm:"column:action"`
	TargetIDs   model.StringList  `gorm:"column:target_ids;type:text"`
	Params      model.RawParams   `gorm:"column:params;type:text"`
	State       string            `gorm:"column:state;index"`
	Results     model.ResultList  `gorm:"column:results;type:text"`
	Succeeded   int               `gorm:"column:succeeded"`
	Skipped     int               `gorm:"column:skipped"`
	Failed      int               `gorm:"column:failed"`
	Failures    model.FailureList `gorm:"column:failures;type:text"`
	SubmittedBy string            `gorm:"column:submitted_by"`
	CreateTime  time.Time         `gorm:"column:create_time"`
	StartTime   *time.Time        `gorm:"column:start_time"`
	EndTime     *time.Time        `gorm:"column:end_time"`
	LastUpdated time.Time         `gorm:"column:last_updated"`
	Version     int               `gorm:"column:version"`
}

// TableName specifies the table name for the executionEntity.
func (executionEntity) TableName() string {
	return "curation_bulk_execution"
}

func toExecutionEntity(execution *model.BulkExecution) *executionEntity {
	return &executionEntity{
		ID:          execution.ID,
		ProjectID:   execution.ProjectID,
		Action:      string(execution.Action),
		TargetIDs:   execution.TargetIDs,
		Params:      execution.Params,
		State:       string(execution.State),
		Results:     execution.Results,
		Succeeded:   execution.Counts.Succeeded,
		Skipped:     execution.Counts.Skipped,
		Failed:      execution.Counts.Failed,
		Failures:    execution.Failures,
		SubmittedBy: execution.SubmittedBy,
		CreateTime:  execution.CreateTime,
		StartTime:   execution.StartTime,
		EndTime:     execution.EndTime,
		LastUpdated: execution.LastUpdated,
		Version:     execution.Version,
	}
}

func fromExecutionEntity(e *executionEntity) *model.BulkExecution {
	return &model.BulkExecution{
		ID:        e.ID,
		ProjectID: e.ProjectID,
		Action:    model.BulkAction(e.Action),
		TargetIDs: e.TargetIDs,
		Params:    e.Params,
		State:     model.ExecutionState(e.State),
		Results:   e.Results,
		Counts: model.ExecutionCounts{
			Succeeded: e.Succeeded,
			Skipped:   e.Skipped,
			Failed:    e.Failed,
		},
		Failures:    e.Failures,
		SubmittedBy: e.SubmittedBy,
		CreateTime:  e.CreateTime,
		StartTime:   e.StartTime,
		EndTime:     e.EndTime,
		LastUpdated: e.LastUpdated,
		Version:     e.Version,
	}
}
