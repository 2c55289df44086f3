// Package usecase_test provides unit tests for the bulk operator: request
// validation, submission quota, and the synchronous threshold.
package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	usecase "github.com/linksmith/chrono-scraper-sub006/pkg/curation/core/application/usecase"
	config "github.com/linksmith/chrono-scraper-sub006/pkg/curation/core/config"
	model "github.com/linksmith/chrono-scraper-sub006/pkg/curation/core/domain/model"
	metrics "github.com/linksmith/chrono-scraper-sub006/pkg/curation/core/metrics"
	bulk "github.com/linksmith/chrono-scraper-sub006/pkg/curation/engine/bulk"
	guard "github.com/linksmith/chrono-scraper-sub006/pkg/curation/engine/guard"
	inmemory "github.com/linksmith/chrono-scraper-sub006/pkg/curation/infrastructure/repository/inmemory"
	exception "github.com/linksmith/chrono-scraper-sub006/pkg/curation/support/util/exception"
)

type operatorFixture struct {
	operator *usecase.DefaultBulkOperator
	pages    *inmemory.InMemoryPageRepository
	executor *bulk.Executor
}

func newOperatorFixture(t *testing.T, guardCfg *config.GuardConfig) *operatorFixture {
	t.Helper()
	pages := inmemory.NewInMemoryPageRepository()
	executions := inmemory.NewInMemoryExecutionRepository()
	recorder := metrics.NewNoOpMetricRecorder()

	applier := usecase.NewDefaultOverrideApplier(pages, &capturingSink{}, recorder, 5*time.Second)
	policy := bulk.NewRetryPolicy(&config.RetryConfig{MaxAttempts: 2, InitialInterval: 1, MaxInterval: 2, Factor: 2.0})
	executor := bulk.NewExecutor(executions, recorder, metrics.NewNoOpTracer(), policy, 4, time.Hour)

	if guardCfg == nil {
		guardCfg = &config.GuardConfig{
			StandardLimit:         1000,
			StandardWindowSeconds: 60,
			BulkLimit:             1000,
			BulkWindowSeconds:     60,
		}
	}
	g := guard.New(guardCfg, 100)
	operator := usecase.NewDefaultBulkOperator(applier, executor, g, 100, 5)
	return &operatorFixture{operator: operator, pages: pages, executor: executor}
}

func (f *operatorFixture) seedPages(t *testing.T, status model.PageStatus, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		page := model.NewPage(testProject, fmt.Sprintf("https://example.org/page/%d", i))
		page.Status = status
		require.NoError(t, f.pages.Save(context.Background(), page))
		ids = append(ids, page.ID)
	}
	return ids
}

func TestSubmit_SmallBatchRunsSynchronously(t *testing.T) {
	f := newOperatorFixture(t, nil)
	ids := f.seedPages(t, model.StatusPending, 3)

	result, err := f.operator.Submit(context.Background(), testProject, model.ActionManualSkip, ids,
		model.RawParams{"skip_reason": "bulk cleanup"}, "alice")
	require.NoError(t, err)

	assert.False(t, result.Async)
	assert.Equal(t, model.ExecutionStateCompleted, result.Execution.State)
	assert.Equal(t, 3, result.Execution.Counts.Succeeded)
	assert.Len(t, result.Execution.Results, 3)

	// The pages were actually skipped.
	for _, id := range ids {
		stored, err := f.pages.Find(context.Background(), testProject, id)
		require.NoError(t, err)
		assert.Equal(t, model.StatusSkipped, stored.Status)
	}
}

func TestSubmit_LargeBatchIsScheduled(t *testing.T) {
	f := newOperatorFixture(t, nil)
	ids := f.seedPages(t, model.StatusPending, 10)

	result, err := f.operator.Submit(context.Background(), testProject, model.ActionManualSkip, ids,
		model.RawParams{"skip_reason": "bulk cleanup"}, "alice")
	require.NoError(t, err)

	assert.True(t, result.Async)
	executionID := result.Execution.ID
	f.executor.Wait(executionID)

	final, err := f.operator.Status(context.Background(), testProject, executionID)
	require.NoError(t, err)
	assert.Equal(t, model.ExecutionStateCompleted, final.State)
	assert.Equal(t, 10, final.Counts.Succeeded)
}

func TestSubmit_MissingPagesAreFailedItems(t *testing.T) {
	f := newOperatorFixture(t, nil)
	ids := f.seedPages(t, model.StatusPending, 2)
	ids = append(ids, "nonexistent-page")

	result, err := f.operator.Submit(context.Background(), testProject, model.ActionManualSkip, ids,
		model.RawParams{"skip_reason": "bulk cleanup"}, "alice")
	require.NoError(t, err)

	assert.Equal(t, 2, result.Execution.Counts.Succeeded)
	assert.Equal(t, 1, result.Execution.Counts.Failed)

	var missing *model.ItemResult
	for i := range result.Execution.Results {
		if result.Execution.Results[i].PageID == "nonexistent-page" {
			missing = &result.Execution.Results[i]
		}
	}
	require.NotNil(t, missing)
	assert.Equal(t, model.OutcomeFailed, missing.Outcome)
	assert.Equal(t, string(exception.CodePageNotFound), missing.ErrorCode)
}

func TestSubmit_ValidationAggregatesProblems(t *testing.T) {
	f := newOperatorFixture(t, nil)

	// Unknown action, no targets.
	_, err := f.operator.Submit(context.Background(), testProject, "reindex", nil, nil, "alice")
	require.Error(t, err)
	assert.Equal(t, exception.CodeInvalidParameter, exception.CodeOf(err))
	assert.Contains(t, err.Error(), "unknown action")
	assert.Contains(t, err.Error(), "page_ids must not be empty")
}

func TestSubmit_RejectsDuplicateTargets(t *testing.T) {
	f := newOperatorFixture(t, nil)
	_, err := f.operator.Submit(context.Background(), testProject, model.ActionManualSkip,
		[]string{"p1", "p2", "p1"}, model.RawParams{"skip_reason": "x"}, "alice")
	require.Error(t, err)
	assert.Equal(t, exception.CodeInvalidParameter, exception.CodeOf(err))
}

func TestSubmit_RejectsEmptyTargetID(t *testing.T) {
	f := newOperatorFixture(t, nil)
	_, err := f.operator.Submit(context.Background(), testProject, model.ActionManualSkip,
		[]string{"p1", ""}, model.RawParams{"skip_reason": "x"}, "alice")
	require.Error(t, err)
}

func TestSubmit_RejectsOversizeBatch(t *testing.T) {
	f := newOperatorFixture(t, nil)
	ids := make([]string, 101)
	for i := range ids {
		ids[i] = fmt.Sprintf("p%d", i)
	}
	_, err := f.operator.Submit(context.Background(), testProject, model.ActionManualSkip, ids,
		model.RawParams{"skip_reason": "x"}, "alice")
	require.Error(t, err)
	assert.Equal(t, exception.CodeInvalidParameter, exception.CodeOf(err))
}

func TestSubmit_EnforcesActionCap(t *testing.T) {
	f := newOperatorFixture(t, &config.GuardConfig{
		StandardLimit: 1000, StandardWindowSeconds: 60,
		BulkLimit: 1000, BulkWindowSeconds: 60,
		ActionCaps: map[string]int{"override_filter": 2},
	})
	_, err := f.operator.Submit(context.Background(), testProject, model.ActionOverrideFilter,
		[]string{"p1", "p2", "p3"}, model.RawParams{"reasoning": "cap check"}, "alice")
	require.Error(t, err)
	assert.Equal(t, exception.CodeInvalidParameter, exception.CodeOf(err))
}

func TestSubmit_EnforcesSubmissionQuota(t *testing.T) {
	f := newOperatorFixture(t, &config.GuardConfig{
		StandardLimit: 1000, StandardWindowSeconds: 60,
		BulkLimit: 1, BulkWindowSeconds: 60,
	})
	ids := f.seedPages(t, model.StatusPending, 2)

	_, err := f.operator.Submit(context.Background(), testProject, model.ActionManualSkip, ids,
		model.RawParams{"skip_reason": "first"}, "alice")
	require.NoError(t, err)

	_, err = f.operator.Submit(context.Background(), testProject, model.ActionManualSkip, ids,
		model.RawParams{"skip_reason": "second"}, "alice")
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrRateLimited))
}

func TestControl_UnknownExecutionMapsToNotFound(t *testing.T) {
	f := newOperatorFixture(t, nil)

	for name, call := range map[string]func() error{
		"pause":  func() error { _, err := f.operator.Pause(context.Background(), testProject, "nope"); return err },
		"resume": func() error { _, err := f.operator.Resume(context.Background(), testProject, "nope"); return err },
		"cancel": func() error { _, err := f.operator.Cancel(context.Background(), testProject, "nope"); return err },
		"status": func() error { _, err := f.operator.Status(context.Background(), testProject, "nope"); return err },
	} {
		err := call()
		require.Error(t, err, name)
		assert.Equal(t, exception.CodeExecutionNotFound, exception.CodeOf(err), name)
	}
}
