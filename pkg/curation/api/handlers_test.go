// Package api_test provides HTTP-level tests for the curation API, wiring
// the full stack against in-memory repositories.
package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	api "github.com/linksmith/chrono-scraper-sub006/pkg/curation/api"
	audit "github.com/linksmith/chrono-scraper-sub006/pkg/curation/audit"
	usecase "github.com/linksmith/chrono-scraper-sub006/pkg/curation/core/application/usecase"
	config "github.com/linksmith/chrono-scraper-sub006/pkg/curation/core/config"
	model "github.com/linksmith/chrono-scraper-sub006/pkg/curation/core/domain/model"
	metrics "github.com/linksmith/chrono-scraper-sub006/pkg/curation/core/metrics"
	bulk "github.com/linksmith/chrono-scraper-sub006/pkg/curation/engine/bulk"
	guard "github.com/linksmith/chrono-scraper-sub006/pkg/curation/engine/guard"
	inmemory "github.com/linksmith/chrono-scraper-sub006/pkg/curation/infrastructure/repository/inmemory"
)

const testProject = "proj-1"

type apiFixture struct {
	server   *httptest.Server
	pages    *inmemory.InMemoryPageRepository
	executor *bulk.Executor
}

func newAPIFixture(t *testing.T, guardCfg *config.GuardConfig) *apiFixture {
	t.Helper()
	pages := inmemory.NewInMemoryPageRepository()
	executions := inmemory.NewInMemoryExecutionRepository()
	recorder := metrics.NewNoOpMetricRecorder()

	if guardCfg == nil {
		guardCfg = &config.GuardConfig{
			StandardLimit:         1000,
			StandardWindowSeconds: 60,
			BulkLimit:             1000,
			BulkWindowSeconds:     60,
		}
	}
	g := guard.New(guardCfg, 100)

	applier := usecase.NewDefaultOverrideApplier(pages, audit.NewNoOpSink(), recorder, 5*time.Second)
	policy := bulk.NewRetryPolicy(&config.RetryConfig{MaxAttempts: 2, InitialInterval: 1, MaxInterval: 2, Factor: 2.0})
	executor := bulk.NewExecutor(executions, recorder, metrics.NewNoOpTracer(), policy, 4, time.Hour)
	operator := usecase.NewDefaultBulkOperator(applier, executor, g, 100, 5)

	handler := api.NewRouter(api.Deps{
		Applier:  applier,
		Operator: operator,
		Guard:    g,
		Recorder: recorder,
	})
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return &apiFixture{server: server, pages: pages, executor: executor}
}

func (f *apiFixture) seedPage(t *testing.T, status model.PageStatus) *model.Page {
	t.Helper()
	page := model.NewPage(testProject, "https://example.org/article")
	page.Status = status
	require.NoError(t, f.pages.Save(context.Background(), page))
	return page
}

func (f *apiFixture) post(t *testing.T, path string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(http.MethodPost, f.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Curation-Actor", "alice")
	resp, err := f.server.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func (f *apiFixture) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := f.server.Client().Get(f.server.URL + path)
	require.NoError(t, err)
	return resp
}

func decodeInto(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
}

func TestHealthz(t *testing.T) {
	f := newAPIFixture(t, nil)
	resp := f.get(t, "/healthz")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSingleAction_ManualSkip(t *testing.T) {
	f := newAPIFixture(t, nil)
	page := f.seedPage(t, model.StatusPending)

	resp := f.post(t, fmt.Sprintf("/projects/%s/pages/%s/manual-skip", testProject, page.ID),
		map[string]interface{}{"skip_reason": "stale content"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		ScrapePageID         string `json:"scrape_page_id"`
		Outcome              string `json:"outcome"`
		OriginalStatus       string `json:"original_status"`
		NewStatus            string `json:"new_status"`
		IsManuallyOverridden bool   `json:"is_manually_overridden"`
	}
	decodeInto(t, resp, &body)
	assert.Equal(t, page.ID, body.ScrapePageID)
	assert.Equal(t, "success", body.Outcome)
	assert.Equal(t, "pending", body.OriginalStatus)
	assert.Equal(t, "skipped", body.NewStatus)
	assert.True(t, body.IsManuallyOverridden)
}

func TestSingleAction_ValidationError(t *testing.T) {
	f := newAPIFixture(t, nil)
	page := f.seedPage(t, model.StatusPending)

	// skip_reason is required.
	resp := f.post(t, fmt.Sprintf("/projects/%s/pages/%s/manual-skip", testProject, page.ID),
		map[string]interface{}{})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body struct {
		ErrorCode string `json:"error_code"`
	}
	decodeInto(t, resp, &body)
	assert.Equal(t, "INVALID_PARAMETER", body.ErrorCode)
}

func TestSingleAction_PageNotFound(t *testing.T) {
	f := newAPIFixture(t, nil)
	resp := f.post(t, fmt.Sprintf("/projects/%s/pages/ghost/manual-skip", testProject),
		map[string]interface{}{"skip_reason": "x"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var body struct {
		ErrorCode string `json:"error_code"`
	}
	decodeInto(t, resp, &body)
	assert.Equal(t, "SCRAPE_PAGE_NOT_FOUND", body.ErrorCode)
}

func TestSingleAction_InvalidTransitionConflicts(t *testing.T) {
	f := newAPIFixture(t, nil)
	page := f.seedPage(t, model.StatusInProgress)

	resp := f.post(t, fmt.Sprintf("/projects/%s/pages/%s/manual-skip", testProject, page.ID),
		map[string]interface{}{"skip_reason": "x"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestSingleAction_RateLimited(t *testing.T) {
	f := newAPIFixture(t, &config.GuardConfig{
		StandardLimit:         1,
		StandardWindowSeconds: 60,
		BulkLimit:             1000,
		BulkWindowSeconds:     60,
	})
	page := f.seedPage(t, model.StatusPending)
	path := fmt.Sprintf("/projects/%s/pages/%s/update-priority", testProject, page.ID)

	resp := f.post(t, path, map[string]interface{}{"priority": 7})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.post(t, path, map[string]interface{}{"priority": 8})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))

	var body struct {
		ErrorCode  string `json:"error_code"`
		Limit      int    `json:"limit"`
		Window     int    `json:"window"`
		RetryAfter int    `json:"retry_after"`
	}
	decodeInto(t, resp, &body)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", body.ErrorCode)
	assert.Equal(t, 1, body.Limit)
	assert.Equal(t, 60, body.Window)
	assert.Positive(t, body.RetryAfter)
}

type executionBody struct {
	ExecutionID    string             `json:"execution_id"`
	State          string             `json:"state"`
	Progress       float64            `json:"progress_percentage"`
	TotalRequested int                `json:"total_requested"`
	Completed      int                `json:"completed_items"`
	Succeeded      int                `json:"successful_updates"`
	Skipped        int                `json:"skipped_updates"`
	Failed         int                `json:"failed_updates"`
	Results        []model.ItemResult `json:"results"`
}

func TestBulkSubmit_SynchronousAnswersWithResults(t *testing.T) {
	f := newAPIFixture(t, nil)
	ids := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		ids = append(ids, f.seedPage(t, model.StatusPending).ID)
	}

	resp := f.post(t, fmt.Sprintf("/projects/%s/pages/bulk-actions", testProject), map[string]interface{}{
		"action":     "manual_skip",
		"page_ids":   ids,
		"parameters": map[string]interface{}{"skip_reason": "bulk cleanup"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body executionBody
	decodeInto(t, resp, &body)
	assert.Equal(t, "completed", body.State)
	assert.Equal(t, 3, body.TotalRequested)
	assert.Equal(t, 3, body.Completed)
	assert.Equal(t, 3, body.Succeeded)
	assert.Len(t, body.Results, 3)
	assert.InDelta(t, 100.0, body.Progress, 0.001)
}

func TestBulkSubmit_LargeBatchAcceptedAndPollable(t *testing.T) {
	f := newAPIFixture(t, nil)
	ids := make([]string, 0, 8)
	for i := 0; i < 8; i++ {
		ids = append(ids, f.seedPage(t, model.StatusPending).ID)
	}

	resp := f.post(t, fmt.Sprintf("/projects/%s/pages/bulk-actions", testProject), map[string]interface{}{
		"action":     "manual_skip",
		"page_ids":   ids,
		"parameters": map[string]interface{}{"skip_reason": "bulk cleanup"},
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var accepted executionBody
	decodeInto(t, resp, &accepted)
	require.NotEmpty(t, accepted.ExecutionID)
	// Scheduled submissions answer without the per-page results.
	assert.Empty(t, accepted.Results)

	f.executor.Wait(accepted.ExecutionID)

	statusResp := f.get(t, fmt.Sprintf("/projects/%s/bulk-operations/%s/status", testProject, accepted.ExecutionID))
	require.Equal(t, http.StatusOK, statusResp.StatusCode)

	var final executionBody
	decodeInto(t, statusResp, &final)
	assert.Equal(t, "completed", final.State)
	assert.Equal(t, 8, final.Succeeded)
	assert.Len(t, final.Results, 8)
}

func TestBulkSubmit_ValidationError(t *testing.T) {
	f := newAPIFixture(t, nil)
	resp := f.post(t, fmt.Sprintf("/projects/%s/pages/bulk-actions", testProject), map[string]interface{}{
		"action":     "manual_skip",
		"page_ids":   []string{},
		"parameters": map[string]interface{}{"skip_reason": "x"},
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBulkControl_UnknownExecution(t *testing.T) {
	f := newAPIFixture(t, nil)
	resp := f.post(t, fmt.Sprintf("/projects/%s/bulk-operations/ghost/cancel", testProject), nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var body struct {
		ErrorCode string `json:"error_code"`
	}
	decodeInto(t, resp, &body)
	assert.Equal(t, "EXECUTION_NOT_FOUND", body.ErrorCode)
}

func TestBulkStatus_OtherProjectIsNotFound(t *testing.T) {
	f := newAPIFixture(t, nil)
	ids := []string{f.seedPage(t, model.StatusPending).ID}

	resp := f.post(t, fmt.Sprintf("/projects/%s/pages/bulk-actions", testProject), map[string]interface{}{
		"action":     "manual_skip",
		"page_ids":   ids,
		"parameters": map[string]interface{}{"skip_reason": "x"},
	})
	var body executionBody
	decodeInto(t, resp, &body)

	other := f.get(t, fmt.Sprintf("/projects/%s/bulk-operations/%s/status", "proj-2", body.ExecutionID))
	defer other.Body.Close()
	assert.Equal(t, http.StatusNotFound, other.StatusCode)
}
