// Package bulk_test provides unit tests for the bulk execution engine:
// worker pool bounds, pause/resume/cancel control, and exactly-once
// per-page result accounting.
package bulk_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/linksmith/chrono-scraper-sub006/pkg/curation/core/config"
	model "github.com/linksmith/chrono-scraper-sub006/pkg/curation/core/domain/model"
	metrics "github.com/linksmith/chrono-scraper-sub006/pkg/curation/core/metrics"
	bulk "github.com/linksmith/chrono-scraper-sub006/pkg/curation/engine/bulk"
	inmemory "github.com/linksmith/chrono-scraper-sub006/pkg/curation/infrastructure/repository/inmemory"
	exception "github.com/linksmith/chrono-scraper-sub006/pkg/curation/support/util/exception"
)

func newTestExecutor(workerCount int) (*bulk.Executor, *inmemory.InMemoryExecutionRepository) {
	repo := inmemory.NewInMemoryExecutionRepository()
	policy := bulk.NewRetryPolicy(&config.RetryConfig{MaxAttempts: 3, InitialInterval: 1, MaxInterval: 5, Factor: 2.0})
	executor := bulk.NewExecutor(repo, metrics.NewNoOpMetricRecorder(), metrics.NewNoOpTracer(), policy, workerCount, time.Hour)
	return executor, repo
}

func targetIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = model.NewID()
	}
	return ids
}

func successFunc() bulk.ItemFunc {
	return func(ctx context.Context, pageID string) (model.ItemResult, error) {
		return model.ItemResult{PageID: pageID, Outcome: model.OutcomeSuccess}, nil
	}
}

func TestExecutor_LaunchSyncCompletes(t *testing.T) {
	executor, repo := newTestExecutor(4)
	ids := targetIDs(10)
	exec := model.NewBulkExecution("proj-1", model.ActionManualSkip, ids, model.RawParams{"skip_reason": "stale"}, "op")

	snap, err := executor.LaunchSync(context.Background(), exec, successFunc())
	require.NoError(t, err)

	assert.Equal(t, model.ExecutionStateCompleted, snap.State)
	assert.Equal(t, 10, snap.Counts.Succeeded)
	assert.Len(t, snap.Results, 10)
	assert.InDelta(t, 100.0, snap.Progress(), 0.001)
	assert.NotNil(t, snap.StartTime)
	assert.NotNil(t, snap.EndTime)

	// The repository carries the terminal record.
	stored, err := repo.Find(context.Background(), "proj-1", exec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ExecutionStateCompleted, stored.State)
	assert.Len(t, stored.Results, 10)
}

func TestExecutor_ExactlyOncePerPage(t *testing.T) {
	executor, _ := newTestExecutor(8)
	ids := targetIDs(50)
	exec := model.NewBulkExecution("proj-1", model.ActionManualSkip, ids, nil, "op")

	var mu sync.Mutex
	applied := make(map[string]int)
	apply := func(ctx context.Context, pageID string) (model.ItemResult, error) {
		mu.Lock()
		applied[pageID]++
		mu.Unlock()
		return model.ItemResult{PageID: pageID, Outcome: model.OutcomeSuccess}, nil
	}

	snap, err := executor.LaunchSync(context.Background(), exec, apply)
	require.NoError(t, err)

	assert.Len(t, snap.Results, 50)
	seen := make(map[string]bool)
	for _, res := range snap.Results {
		assert.False(t, seen[res.PageID], "page %s recorded twice", res.PageID)
		seen[res.PageID] = true
	}
	for id, count := range applied {
		assert.Equal(t, 1, count, "page %s applied %d times", id, count)
	}
}

func TestExecutor_WorkerPoolIsBounded(t *testing.T) {
	const workers = 3
	executor, _ := newTestExecutor(workers)
	exec := model.NewBulkExecution("proj-1", model.ActionManualSkip, targetIDs(30), nil, "op")

	var inFlight, peak atomic.Int32
	apply := func(ctx context.Context, pageID string) (model.ItemResult, error) {
		current := inFlight.Add(1)
		for {
			max := peak.Load()
			if current <= max || peak.CompareAndSwap(max, current) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		inFlight.Add(-1)
		return model.ItemResult{PageID: pageID, Outcome: model.OutcomeSuccess}, nil
	}

	_, err := executor.LaunchSync(context.Background(), exec, apply)
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(workers))
}

func TestExecutor_PartialFailureAccounting(t *testing.T) {
	executor, _ := newTestExecutor(4)
	ids := targetIDs(9)
	exec := model.NewBulkExecution("proj-1", model.ActionManualProcess, ids, nil, "op")

	var n atomic.Int32
	apply := func(ctx context.Context, pageID string) (model.ItemResult, error) {
		switch n.Add(1) % 3 {
		case 0:
			return model.ItemResult{PageID: pageID, Outcome: model.OutcomeFailed,
				Error: "illegal transition", ErrorCode: string(exception.CodeInvalidTransition)}, nil
		case 1:
			return model.ItemResult{PageID: pageID, Outcome: model.OutcomeSkipped}, nil
		default:
			return model.ItemResult{PageID: pageID, Outcome: model.OutcomeSuccess}, nil
		}
	}

	snap, err := executor.LaunchSync(context.Background(), exec, apply)
	require.NoError(t, err)

	// Per-page failures never fail the execution.
	assert.Equal(t, model.ExecutionStateCompleted, snap.State)
	assert.Equal(t, 3, snap.Counts.Succeeded)
	assert.Equal(t, 3, snap.Counts.Skipped)
	assert.Equal(t, 3, snap.Counts.Failed)
}

func TestExecutor_RetriesTransientErrors(t *testing.T) {
	executor, _ := newTestExecutor(1)
	exec := model.NewBulkExecution("proj-1", model.ActionManualSkip, []string{"p1"}, nil, "op")

	var attempts atomic.Int32
	apply := func(ctx context.Context, pageID string) (model.ItemResult, error) {
		if attempts.Add(1) < 3 {
			return model.ItemResult{PageID: pageID, Outcome: model.OutcomeFailed, Error: "timeout"},
				exception.New("repository", exception.CodeRepositoryTimeout, "timeout", nil, true)
		}
		return model.ItemResult{PageID: pageID, Outcome: model.OutcomeSuccess}, nil
	}

	snap, err := executor.LaunchSync(context.Background(), exec, apply)
	require.NoError(t, err)
	assert.Equal(t, int32(3), attempts.Load())
	assert.Equal(t, 1, snap.Counts.Succeeded)
}

func TestExecutor_DoesNotRetryNonTransientErrors(t *testing.T) {
	executor, _ := newTestExecutor(1)
	exec := model.NewBulkExecution("proj-1", model.ActionManualSkip, []string{"p1"}, nil, "op")

	var attempts atomic.Int32
	apply := func(ctx context.Context, pageID string) (model.ItemResult, error) {
		attempts.Add(1)
		return model.ItemResult{PageID: pageID, Outcome: model.OutcomeFailed, Error: "race"},
			exception.New("repository", exception.CodeConcurrentModification, "race", nil, false)
	}

	snap, err := executor.LaunchSync(context.Background(), exec, apply)
	require.NoError(t, err)
	assert.Equal(t, int32(1), attempts.Load())
	assert.Equal(t, 1, snap.Counts.Failed)
}

func TestExecutor_PauseDrainsAndResumeContinues(t *testing.T) {
	executor, _ := newTestExecutor(1)
	ids := targetIDs(6)
	exec := model.NewBulkExecution("proj-1", model.ActionManualSkip, ids, nil, "op")

	release := make(chan struct{})
	firstStarted := make(chan struct{})
	var once sync.Once
	apply := func(ctx context.Context, pageID string) (model.ItemResult, error) {
		once.Do(func() { close(firstStarted) })
		<-release
		return model.ItemResult{PageID: pageID, Outcome: model.OutcomeSuccess}, nil
	}

	require.NoError(t, executor.Launch(context.Background(), exec, apply))
	<-firstStarted

	_, err := executor.Pause(context.Background(), "proj-1", exec.ID)
	require.NoError(t, err)

	// Unblock all items; the in-flight one drains, then the controller parks.
	close(release)
	require.Eventually(t, func() bool {
		snap, err := executor.Status(context.Background(), "proj-1", exec.ID)
		return err == nil && snap.State == model.ExecutionStatePaused
	}, 2*time.Second, 5*time.Millisecond)

	snap, err := executor.Status(context.Background(), "proj-1", exec.ID)
	require.NoError(t, err)
	assert.Less(t, len(snap.Results), len(ids))
	processedAtPause := len(snap.Results)

	_, err = executor.Resume(context.Background(), "proj-1", exec.ID)
	require.NoError(t, err)
	executor.Wait(exec.ID)

	snap, err = executor.Status(context.Background(), "proj-1", exec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ExecutionStateCompleted, snap.State)
	assert.Len(t, snap.Results, len(ids))
	assert.GreaterOrEqual(t, len(snap.Results), processedAtPause)
}

func TestExecutor_PauseRejectedWhenTerminal(t *testing.T) {
	executor, _ := newTestExecutor(2)
	exec := model.NewBulkExecution("proj-1", model.ActionManualSkip, targetIDs(2), nil, "op")
	_, err := executor.LaunchSync(context.Background(), exec, successFunc())
	require.NoError(t, err)

	_, err = executor.Pause(context.Background(), "proj-1", exec.ID)
	assert.Error(t, err)
	assert.Equal(t, exception.CodeInvalidTransition, exception.CodeOf(err))
}

func TestExecutor_CancelStopsDispatch(t *testing.T) {
	executor, _ := newTestExecutor(1)
	ids := targetIDs(20)
	exec := model.NewBulkExecution("proj-1", model.ActionManualSkip, ids, nil, "op")

	firstStarted := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	apply := func(ctx context.Context, pageID string) (model.ItemResult, error) {
		once.Do(func() { close(firstStarted) })
		<-release
		return model.ItemResult{PageID: pageID, Outcome: model.OutcomeSuccess}, nil
	}

	require.NoError(t, executor.Launch(context.Background(), exec, apply))
	<-firstStarted

	_, err := executor.Cancel(context.Background(), "proj-1", exec.ID)
	require.NoError(t, err)
	close(release)
	executor.Wait(exec.ID)

	snap, err := executor.Status(context.Background(), "proj-1", exec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ExecutionStateCancelled, snap.State)
	// Applied items keep their recorded effects; undispatched ones are untouched.
	assert.Less(t, len(snap.Results), len(ids))
	assert.NotNil(t, snap.EndTime)
}

func TestExecutor_CancelWhilePaused(t *testing.T) {
	executor, _ := newTestExecutor(1)
	exec := model.NewBulkExecution("proj-1", model.ActionManualSkip, targetIDs(4), nil, "op")

	firstStarted := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	apply := func(ctx context.Context, pageID string) (model.ItemResult, error) {
		once.Do(func() { close(firstStarted) })
		<-release
		return model.ItemResult{PageID: pageID, Outcome: model.OutcomeSuccess}, nil
	}

	require.NoError(t, executor.Launch(context.Background(), exec, apply))
	<-firstStarted
	_, err := executor.Pause(context.Background(), "proj-1", exec.ID)
	require.NoError(t, err)
	close(release)

	require.Eventually(t, func() bool {
		snap, err := executor.Status(context.Background(), "proj-1", exec.ID)
		return err == nil && snap.State == model.ExecutionStatePaused
	}, 2*time.Second, 5*time.Millisecond)

	_, err = executor.Cancel(context.Background(), "proj-1", exec.ID)
	require.NoError(t, err)
	executor.Wait(exec.ID)

	snap, err := executor.Status(context.Background(), "proj-1", exec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ExecutionStateCancelled, snap.State)
}

func TestExecutor_StatusFallsBackToRepository(t *testing.T) {
	executor, repo := newTestExecutor(2)

	// An execution only the repository knows about, e.g. after eviction.
	exec := model.NewBulkExecution("proj-1", model.ActionManualSkip, targetIDs(1), nil, "op")
	exec.MarkAsRunning()
	exec.MarkAsCompleted()
	require.NoError(t, repo.Save(context.Background(), exec))

	snap, err := executor.Status(context.Background(), "proj-1", exec.ID)
	require.NoError(t, err)
	assert.Equal(t, exec.ID, snap.ID)
	assert.Equal(t, model.ExecutionStateCompleted, snap.State)
}

func TestExecutor_StatusScopedByProject(t *testing.T) {
	executor, _ := newTestExecutor(2)
	exec := model.NewBulkExecution("proj-1", model.ActionManualSkip, targetIDs(1), nil, "op")
	_, err := executor.LaunchSync(context.Background(), exec, successFunc())
	require.NoError(t, err)

	_, err = executor.Status(context.Background(), "proj-2", exec.ID)
	assert.Error(t, err)
}

type recordingArchiver struct {
	mu       sync.Mutex
	archived []*model.BulkExecution
}

func (a *recordingArchiver) Archive(ctx context.Context, execution *model.BulkExecution) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.archived = append(a.archived, execution)
	return nil
}

func TestExecutor_ArchivesTerminalExecutions(t *testing.T) {
	executor, _ := newTestExecutor(2)
	archiver := &recordingArchiver{}
	executor.SetArchiver(archiver)

	exec := model.NewBulkExecution("proj-1", model.ActionManualSkip, targetIDs(3), nil, "op")
	_, err := executor.LaunchSync(context.Background(), exec, successFunc())
	require.NoError(t, err)

	archiver.mu.Lock()
	defer archiver.mu.Unlock()
	require.Len(t, archiver.archived, 1)
	assert.Equal(t, exec.ID, archiver.archived[0].ID)
	assert.Equal(t, model.ExecutionStateCompleted, archiver.archived[0].State)
}

// faultyExecutionRepository wraps the in-memory store and fails updates while
// failUpdates is set.
type faultyExecutionRepository struct {
	*inmemory.InMemoryExecutionRepository
	failUpdates atomic.Bool
}

func (r *faultyExecutionRepository) Update(ctx context.Context, execution *model.BulkExecution) error {
	if r.failUpdates.Load() {
		return errors.New("connection reset")
	}
	return r.InMemoryExecutionRepository.Update(ctx, execution)
}

func TestExecutor_RepeatedPersistFailuresFailExecution(t *testing.T) {
	inner := inmemory.NewInMemoryExecutionRepository()
	repo := &faultyExecutionRepository{InMemoryExecutionRepository: inner}
	policy := bulk.NewRetryPolicy(&config.RetryConfig{MaxAttempts: 2, InitialInterval: 1, MaxInterval: 2, Factor: 2.0})
	executor := bulk.NewExecutor(repo, metrics.NewNoOpMetricRecorder(), metrics.NewNoOpTracer(), policy, 2, time.Hour)

	exec := model.NewBulkExecution("proj-1", model.ActionManualSkip, targetIDs(20), nil, "op")

	apply := func(ctx context.Context, pageID string) (model.ItemResult, error) {
		return model.ItemResult{PageID: pageID, Outcome: model.OutcomeFailed,
				Error: "store unreachable", ErrorCode: string(exception.CodeRepositoryTimeout)},
			exception.New("repository", exception.CodeRepositoryTimeout, "store unreachable", nil, true)
	}

	repo.failUpdates.Store(true)
	snap, err := executor.LaunchSync(context.Background(), exec, apply)
	require.NoError(t, err)

	// A store that fails every write fails the execution instead of letting
	// it report completed.
	assert.Equal(t, model.ExecutionStateFailed, snap.State)
	assert.NotNil(t, snap.EndTime)
	assert.NotEmpty(t, snap.Failures)
	// Results recorded before the abort survive; the rest were never attempted.
	assert.NotEmpty(t, snap.Results)
	assert.Less(t, len(snap.Results), 20)
}

func TestExecutor_SystemicItemFailuresAbortDispatch(t *testing.T) {
	executor, repo := newTestExecutor(1)
	exec := model.NewBulkExecution("proj-1", model.ActionManualProcess, targetIDs(10), nil, "op")

	apply := func(ctx context.Context, pageID string) (model.ItemResult, error) {
		return model.ItemResult{PageID: pageID, Outcome: model.OutcomeFailed,
				Error: "store unreachable", ErrorCode: string(exception.CodeRepositoryTimeout)},
			exception.New("repository", exception.CodeRepositoryTimeout, "store unreachable", nil, true)
	}

	snap, err := executor.LaunchSync(context.Background(), exec, apply)
	require.NoError(t, err)

	assert.Equal(t, model.ExecutionStateFailed, snap.State)
	assert.Len(t, snap.Results, 3)
	assert.Equal(t, 3, snap.Counts.Failed)

	stored, err := repo.Find(context.Background(), "proj-1", exec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ExecutionStateFailed, stored.State)
	assert.Len(t, stored.Results, 3)
}

func TestExecutor_RecoverSettlesInterruptedExecutions(t *testing.T) {
	executor, repo := newTestExecutor(2)

	orphan := model.NewBulkExecution("proj-1", model.ActionManualSkip, targetIDs(5), nil, "op")
	orphan.MarkAsRunning()
	orphan.AppendResult(model.ItemResult{PageID: orphan.TargetIDs[0], Outcome: model.OutcomeSuccess})
	done := model.NewBulkExecution("proj-2", model.ActionManualSkip, targetIDs(1), nil, "op")
	done.MarkAsRunning()
	done.MarkAsCompleted()
	require.NoError(t, repo.Save(context.Background(), orphan))
	require.NoError(t, repo.Save(context.Background(), done))

	require.NoError(t, executor.Recover(context.Background()))

	stored, err := repo.Find(context.Background(), "proj-1", orphan.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ExecutionStateFailed, stored.State)
	assert.NotNil(t, stored.EndTime)
	assert.NotEmpty(t, stored.Failures)
	// Partial results survive the settlement.
	assert.Len(t, stored.Results, 1)

	untouched, err := repo.Find(context.Background(), "proj-2", done.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ExecutionStateCompleted, untouched.State)
}

// failingArchiver rejects every archive attempt and can trip the repository
// at the same moment.
type failingArchiver struct {
	repo *faultyExecutionRepository
}

func (a *failingArchiver) Archive(ctx context.Context, execution *model.BulkExecution) error {
	if a.repo != nil {
		a.repo.failUpdates.Store(true)
	}
	return errors.New("bucket unavailable")
}

func TestExecutor_ArchiveAndPersistFailuresBothRecorded(t *testing.T) {
	inner := inmemory.NewInMemoryExecutionRepository()
	repo := &faultyExecutionRepository{InMemoryExecutionRepository: inner}
	policy := bulk.NewRetryPolicy(&config.RetryConfig{MaxAttempts: 2, InitialInterval: 1, MaxInterval: 2, Factor: 2.0})
	executor := bulk.NewExecutor(repo, metrics.NewNoOpMetricRecorder(), metrics.NewNoOpTracer(), policy, 2, time.Hour)
	executor.SetArchiver(&failingArchiver{repo: repo})

	exec := model.NewBulkExecution("proj-1", model.ActionManualSkip, targetIDs(2), nil, "op")
	snap, err := executor.LaunchSync(context.Background(), exec, successFunc())
	require.NoError(t, err)
	require.Equal(t, model.ExecutionStateCompleted, snap.State)

	// Both the archive failure and the follow-up persistence failure end up
	// on the record instead of vanishing.
	final, err := executor.Status(context.Background(), "proj-1", exec.ID)
	require.NoError(t, err)
	var archiveNoted, persistNoted bool
	for _, failure := range final.Failures {
		if strings.Contains(failure, "archive failed") {
			archiveNoted = true
		}
		if strings.Contains(failure, "persist execution") {
			persistNoted = true
		}
	}
	assert.True(t, archiveNoted)
	assert.True(t, persistNoted)
}
