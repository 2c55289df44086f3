package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	model "github.com/linksmith/chrono-scraper-sub006/pkg/curation/core/domain/model"
	guard "github.com/linksmith/chrono-scraper-sub006/pkg/curation/engine/guard"
	exception "github.com/linksmith/chrono-scraper-sub006/pkg/curation/support/util/exception"
)

const moduleName = "api"

// singleActionResponse is the payload for a single-page action.
type singleActionResponse struct {
	ScrapePageID         string `json:"scrape_page_id"`
	Outcome              string `json:"outcome"`
	OriginalStatus       string `json:"original_status"`
	NewStatus            string `json:"new_status"`
	PriorityLevel        int    `json:"priority_level"`
	IsManuallyOverridden bool   `json:"is_manually_overridden"`
	SkipReason           string `json:"skip_reason,omitempty"`
	PermanentSkip        bool   `json:"permanent_skip,omitempty"`
	Warning              string `json:"warning,omitempty"`
}

// bulkSubmitRequest is the body of a bulk action submission.
type bulkSubmitRequest struct {
	Action  string          `json:"action"`
	PageIDs []string        `json:"page_ids"`
	Params  model.RawParams `json:"parameters"`
}

// executionResponse is the polling representation of a bulk execution.
type executionResponse struct {
	ExecutionID        string             `json:"execution_id"`
	ProjectID          string             `json:"project_id"`
	Action             string             `json:"action"`
	State              string             `json:"state"`
	ProgressPercentage float64            `json:"progress_percentage"`
	TotalRequested     int                `json:"total_requested"`
	CompletedItems     int                `json:"completed_items"`
	SuccessfulUpdates  int                `json:"successful_updates"`
	SkippedUpdates     int                `json:"skipped_updates"`
	FailedUpdates      int                `json:"failed_updates"`
	ProcessingTimeMs   int64              `json:"processing_time_ms,omitempty"`
	Message            string             `json:"message,omitempty"`
	Results            []model.ItemResult `json:"results,omitempty"`
	Failures           []string           `json:"failures,omitempty"`
	SubmittedBy        string             `json:"submitted_by"`
}

func toExecutionResponse(execution *model.BulkExecution, includeResults bool) executionResponse {
	resp := executionResponse{
		ExecutionID:        execution.ID,
		ProjectID:          execution.ProjectID,
		Action:             string(execution.Action),
		State:              execution.State.String(),
		ProgressPercentage: execution.Progress(),
		TotalRequested:     len(execution.TargetIDs),
		CompletedItems:     len(execution.Results),
		SuccessfulUpdates:  execution.Counts.Succeeded,
		SkippedUpdates:     execution.Counts.Skipped,
		FailedUpdates:      execution.Counts.Failed,
		SubmittedBy:        execution.SubmittedBy,
	}
	if execution.StartTime != nil && execution.EndTime != nil {
		resp.ProcessingTimeMs = execution.EndTime.Sub(*execution.StartTime).Milliseconds()
	}
	if len(execution.Failures) > 0 {
		resp.Message = execution.Failures[len(execution.Failures)-1]
	}
	if includeResults {
		resp.Results = execution.Results
	}
	return resp
}

func decodeBody(w http.ResponseWriter, r *http.Request, target interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(target); err != nil && err != io.EOF {
		return exception.New(moduleName, exception.CodeInvalidParameter, "invalid request body", err, false)
	}
	return nil
}

func handleSingleAction(deps Deps, action model.BulkAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectID := chi.URLParam(r, "projectID")
		pageID := chi.URLParam(r, "pageID")
		actor := actorFrom(r)

		if err := deps.Guard.Allow(actor, guard.ScopeStandard); err != nil {
			deps.Recorder.RecordRateLimitHit(r.Context(), string(guard.ScopeStandard))
			writeError(w, err)
			return
		}

		var params model.RawParams
		if err := decodeBody(w, r, &params); err != nil {
			writeError(w, err)
			return
		}

		result, err := deps.Applier.Apply(r.Context(), projectID, pageID, action, params, actor)
		if err != nil {
			writeError(w, err)
			return
		}
		body := singleActionResponse{
			ScrapePageID:         result.PageID,
			Outcome:              string(result.Outcome),
			OriginalStatus:       string(result.PreviousStatus),
			NewStatus:            string(result.NewStatus),
			PriorityLevel:        result.Priority,
			IsManuallyOverridden: result.ManuallyOverridden,
			Warning:              result.Warning,
		}
		if action == model.ActionManualSkip {
			if reason, ok := params["skip_reason"].(string); ok {
				body.SkipReason = reason
			}
			if permanent, ok := params["permanent_skip"].(bool); ok {
				body.PermanentSkip = permanent
			}
		}
		writeJSON(w, http.StatusOK, body)
	}
}

func handleBulkSubmit(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectID := chi.URLParam(r, "projectID")
		actor := actorFrom(r)

		var req bulkSubmitRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, err)
			return
		}

		result, err := deps.Operator.Submit(r.Context(), projectID, model.BulkAction(req.Action), req.PageIDs, req.Params, actor)
		if err != nil {
			if code := exception.CodeOf(err); code == exception.CodeRateLimitExceeded {
				deps.Recorder.RecordRateLimitHit(r.Context(), string(guard.ScopeBulk))
			}
			writeError(w, err)
			return
		}

		// Synchronous batches answer with the full terminal record; scheduled
		// ones return 202 with the id to poll.
		status := http.StatusOK
		if result.Async {
			status = http.StatusAccepted
		}
		writeJSON(w, status, toExecutionResponse(result.Execution, !result.Async))
	}
}

func handleBulkStatus(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectID := chi.URLParam(r, "projectID")
		executionID := chi.URLParam(r, "executionID")

		execution, err := deps.Operator.Status(r.Context(), projectID, executionID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toExecutionResponse(execution, true))
	}
}

func handleBulkControl(deps Deps, verb string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectID := chi.URLParam(r, "projectID")
		executionID := chi.URLParam(r, "executionID")

		var execution *model.BulkExecution
		var err error
		switch verb {
		case "pause":
			execution, err = deps.Operator.Pause(r.Context(), projectID, executionID)
		case "resume":
			execution, err = deps.Operator.Resume(r.Context(), projectID, executionID)
		default:
			execution, err = deps.Operator.Cancel(r.Context(), projectID, executionID)
		}
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, toExecutionResponse(execution, false))
	}
}
