// Package bulk implements the execution engine for bulk curation operations:
// a bounded worker pool per execution, pause/resume/cancel control, and
// exactly-once per-page result accounting.
package bulk

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"

	model "github.com/linksmith/chrono-scraper-sub006/pkg/curation/core/domain/model"
	repository "github.com/linksmith/chrono-scraper-sub006/pkg/curation/core/domain/repository"
	metrics "github.com/linksmith/chrono-scraper-sub006/pkg/curation/core/metrics"
	exception "github.com/linksmith/chrono-scraper-sub006/pkg/curation/support/util/exception"
	logger "github.com/linksmith/chrono-scraper-sub006/pkg/curation/support/util/logger"
)

const moduleName = "bulk_executor"

// systemicFaultThreshold is how many consecutive infrastructure-level item
// failures, or cumulative persistence failures, an execution tolerates before
// it stops dispatching and settles as failed.
const systemicFaultThreshold = 3

// ItemFunc applies the execution's action to one page and reports the
// outcome. The returned error drives retry decisions; the ItemResult is what
// gets recorded. Each call must be side-effect free on failure.
type ItemFunc func(ctx context.Context, pageID string) (model.ItemResult, error)

// Archiver persists the results of a terminal execution to long-term storage.
type Archiver interface {
	Archive(ctx context.Context, execution *model.BulkExecution) error
}

// handle is the in-memory control block for one execution. The execution
// record is guarded by mu; the controller goroutine is the only writer of
// results and state, control methods only flip request flags.
type handle struct {
	mu   sync.Mutex
	exec *model.BulkExecution

	pauseRequested  atomic.Bool
	cancelRequested atomic.Bool

	resumeCh   chan struct{}
	cancelCh   chan struct{}
	cancelOnce sync.Once
	doneCh     chan struct{}
}

func newHandle(exec *model.BulkExecution) *handle {
	return &handle{
		exec:     exec,
		resumeCh: make(chan struct{}, 1),
		cancelCh: make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

func (h *handle) snapshot() *model.BulkExecution {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exec.Snapshot()
}

func (h *handle) requestCancel() {
	h.cancelRequested.Store(true)
	h.cancelOnce.Do(func() { close(h.cancelCh) })
}

// Executor owns the lifecycle of bulk executions: it runs the worker pool,
// folds per-page results, honors pause/resume/cancel requests, and persists
// progress. Terminal executions stay pollable in memory for a retention
// window and in the repository indefinitely.
type Executor struct {
	executions repository.ExecutionRepository
	recorder   metrics.MetricRecorder
	tracer     metrics.Tracer
	archiver   Archiver // optional
	retry      RetryPolicy

	workerCount int
	retention   time.Duration

	mu      sync.Mutex
	handles map[string]*handle
}

// NewExecutor creates an Executor with the given worker pool size and
// retention window for terminal executions.
func NewExecutor(
	executions repository.ExecutionRepository,
	recorder metrics.MetricRecorder,
	tracer metrics.Tracer,
	retry RetryPolicy,
	workerCount int,
	retention time.Duration,
) *Executor {
	if workerCount < 1 {
		workerCount = 1
	}
	return &Executor{
		executions:  executions,
		recorder:    recorder,
		tracer:      tracer,
		retry:       retry,
		workerCount: workerCount,
		retention:   retention,
		handles:     make(map[string]*handle),
	}
}

// SetArchiver installs an optional terminal-execution archiver.
func (e *Executor) SetArchiver(archiver Archiver) {
	e.archiver = archiver
}

// Launch registers the execution and starts its controller goroutine.
func (e *Executor) Launch(ctx context.Context, exec *model.BulkExecution, apply ItemFunc) error {
	h, err := e.register(ctx, exec)
	if err != nil {
		return err
	}
	go e.run(context.WithoutCancel(ctx), h, apply)
	return nil
}

// LaunchSync registers the execution and runs it to completion on the
// calling goroutine. Used for batches small enough to answer synchronously.
func (e *Executor) LaunchSync(ctx context.Context, exec *model.BulkExecution, apply ItemFunc) (*model.BulkExecution, error) {
	h, err := e.register(ctx, exec)
	if err != nil {
		return nil, err
	}
	e.run(ctx, h, apply)
	return h.snapshot(), nil
}

func (e *Executor) register(ctx context.Context, exec *model.BulkExecution) (*handle, error) {
	if err := e.executions.Save(ctx, exec); err != nil {
		return nil, exception.New(moduleName, exception.CodeExecutionFault, "failed to persist new execution", err, true)
	}
	h := newHandle(exec)
	e.mu.Lock()
	e.handles[exec.ID] = h
	e.mu.Unlock()
	return h, nil
}

// Recover settles executions a previous process left in a non-terminal
// state: without their controller goroutine they can never progress, so they
// are marked failed with their partial results intact. Call once at startup,
// before accepting new launches.
func (e *Executor) Recover(ctx context.Context) error {
	stale, err := e.executions.ListActive(ctx)
	if err != nil {
		return err
	}
	var faults *multierror.Error
	for _, exec := range stale {
		exec.MarkAsFailed(exception.Newf(moduleName, exception.CodeExecutionFault,
			"interrupted by process restart"))
		if err := e.executions.Update(ctx, exec); err != nil {
			faults = multierror.Append(faults, fmt.Errorf("settle execution %s: %w", exec.ID, err))
			continue
		}
		logger.Warnf("Execution %s was interrupted by a restart; marked failed", exec.ID)
	}
	return faults.ErrorOrNil()
}

// Pause requests that the execution stop dispatching new items. In-flight
// items drain and are recorded; the state becomes paused once drained.
func (e *Executor) Pause(ctx context.Context, projectID, executionID string) (*model.BulkExecution, error) {
	h, err := e.liveHandle(projectID, executionID)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	state := h.exec.State
	h.mu.Unlock()
	if state != model.ExecutionStateRunning && state != model.ExecutionStateQueued {
		return nil, exception.Newf(moduleName, exception.CodeInvalidTransition,
			"execution %s cannot be paused from state %s", executionID, state)
	}
	h.pauseRequested.Store(true)
	logger.Infof("Pause requested for execution %s", executionID)
	return h.snapshot(), nil
}

// Resume continues a paused execution with the items not yet processed.
func (e *Executor) Resume(ctx context.Context, projectID, executionID string) (*model.BulkExecution, error) {
	h, err := e.liveHandle(projectID, executionID)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	state := h.exec.State
	h.mu.Unlock()
	if state != model.ExecutionStatePaused && !h.pauseRequested.Load() {
		return nil, exception.Newf(moduleName, exception.CodeInvalidTransition,
			"execution %s cannot be resumed from state %s", executionID, state)
	}
	h.pauseRequested.Store(false)
	select {
	case h.resumeCh <- struct{}{}:
	default:
	}
	logger.Infof("Resume requested for execution %s", executionID)
	return h.snapshot(), nil
}

// Cancel stops the execution permanently. Items already applied keep their
// effects; items never dispatched are left untouched and unrecorded.
func (e *Executor) Cancel(ctx context.Context, projectID, executionID string) (*model.BulkExecution, error) {
	h, err := e.liveHandle(projectID, executionID)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	state := h.exec.State
	h.mu.Unlock()
	if state.IsTerminal() {
		return nil, exception.Newf(moduleName, exception.CodeInvalidTransition,
			"execution %s is already terminal (%s)", executionID, state)
	}
	h.requestCancel()
	// Wake a paused controller so it can settle as cancelled.
	select {
	case h.resumeCh <- struct{}{}:
	default:
	}
	logger.Infof("Cancel requested for execution %s", executionID)
	return h.snapshot(), nil
}

// Status returns a point-in-time snapshot of the execution, falling back to
// the repository for executions evicted from memory.
func (e *Executor) Status(ctx context.Context, projectID, executionID string) (*model.BulkExecution, error) {
	e.mu.Lock()
	h, ok := e.handles[executionID]
	e.mu.Unlock()
	if ok {
		snap := h.snapshot()
		if snap.ProjectID != projectID {
			return nil, repository.ErrExecutionNotFound
		}
		return snap, nil
	}
	return e.executions.Find(ctx, projectID, executionID)
}

// Wait blocks until the execution's controller goroutine finishes.
// Intended for tests and graceful shutdown.
func (e *Executor) Wait(executionID string) {
	e.mu.Lock()
	h, ok := e.handles[executionID]
	e.mu.Unlock()
	if ok {
		<-h.doneCh
	}
}

// StartEviction launches a goroutine that drops terminal executions from the
// in-memory registry once their retention window passes. The repository copy
// remains authoritative.
func (e *Executor) StartEviction(done <-chan struct{}) {
	if e.retention <= 0 {
		return
	}
	tick := time.NewTicker(time.Minute)
	go func() {
		defer tick.Stop()
		for {
			select {
			case <-done:
				return
			case <-tick.C:
				e.evict()
			}
		}
	}()
}

func (e *Executor) evict() {
	cutoff := time.Now().Add(-e.retention)
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, h := range e.handles {
		h.mu.Lock()
		expired := h.exec.State.IsTerminal() && h.exec.EndTime != nil && h.exec.EndTime.Before(cutoff)
		h.mu.Unlock()
		if expired {
			delete(e.handles, id)
		}
	}
}

func (e *Executor) liveHandle(projectID, executionID string) (*handle, error) {
	e.mu.Lock()
	h, ok := e.handles[executionID]
	e.mu.Unlock()
	if !ok {
		return nil, repository.ErrExecutionNotFound
	}
	h.mu.Lock()
	sameProject := h.exec.ProjectID == projectID
	h.mu.Unlock()
	if !sameProject {
		return nil, repository.ErrExecutionNotFound
	}
	return h, nil
}

// run is the controller loop for one execution. It is the single writer of
// the execution's results and state. Items are dispatched to at most
// workerCount concurrent goroutines; each processed page is recorded exactly
// once, including across pause/resume cycles.
func (e *Executor) run(ctx context.Context, h *handle, apply ItemFunc) {
	defer close(h.doneCh)

	h.mu.Lock()
	exec := h.exec
	targets := append([]string(nil), exec.TargetIDs...)
	exec.MarkAsRunning()
	h.mu.Unlock()

	ctx, endSpan := e.tracer.StartExecutionSpan(ctx, exec)
	defer endSpan()
	e.recorder.RecordExecutionStart(ctx, exec)

	var faults *multierror.Error
	persistFailures := 0
	if err := e.persist(ctx, h); err != nil {
		faults = multierror.Append(faults, err)
		persistFailures++
	}

	resultCh := make(chan model.ItemResult)
	inFlight := 0
	next := 0
	systemicStreak := 0
	aborted := false

	for {
		canDispatch := next < len(targets) &&
			inFlight < e.workerCount &&
			!aborted &&
			!h.cancelRequested.Load() &&
			!h.pauseRequested.Load()

		if canDispatch {
			pageID := targets[next]
			next++
			inFlight++
			go func(pageID string) {
				resultCh <- e.applyWithRetry(ctx, exec.ID, pageID, apply)
			}(pageID)
			continue
		}

		if inFlight > 0 {
			res := <-resultCh
			inFlight--
			h.mu.Lock()
			exec.AppendResult(res)
			h.mu.Unlock()
			e.recorder.RecordItemOutcome(ctx, exec.Action, res.Outcome)
			if err := e.persist(ctx, h); err != nil {
				faults = multierror.Append(faults, err)
				persistFailures++
			}
			if isSystemicFailure(res) {
				systemicStreak++
			} else {
				systemicStreak = 0
			}
			// Business-rule rejections never abort the batch; a store that
			// fails every call does, once the in-flight items drain.
			if systemicStreak >= systemicFaultThreshold || persistFailures >= systemicFaultThreshold {
				aborted = true
			}
			continue
		}

		// Nothing in flight from here on.
		if h.cancelRequested.Load() {
			e.tracer.RecordEvent(ctx, "execution.cancelled", map[string]interface{}{"execution_id": exec.ID})
			e.finishCancelled(ctx, h, faults)
			return
		}
		if aborted {
			e.tracer.RecordEvent(ctx, "execution.aborted", map[string]interface{}{"execution_id": exec.ID})
			e.finishFailed(ctx, h, faults, len(targets)-next)
			return
		}
		if next >= len(targets) {
			e.finishCompleted(ctx, h, faults)
			return
		}

		// Pause requested and drained: park until resume or cancel.
		h.mu.Lock()
		if err := exec.TransitionTo(model.ExecutionStatePaused); err != nil {
			logger.Warnf("Execution %s could not enter paused state: %v", exec.ID, err)
		}
		h.mu.Unlock()
		if err := e.persist(ctx, h); err != nil {
			faults = multierror.Append(faults, err)
			persistFailures++
		}
		e.tracer.RecordEvent(ctx, "execution.paused", map[string]interface{}{
			"execution_id": exec.ID,
			"processed":    next,
		})
		logger.Infof("Execution %s paused at %d/%d items", exec.ID, len(exec.Results), len(targets))

		// A stale resume token can linger when a pause was retracted before
		// the controller parked; keep waiting until the pause is withdrawn.
		for h.pauseRequested.Load() && !h.cancelRequested.Load() {
			select {
			case <-h.resumeCh:
			case <-h.cancelCh:
			}
		}
		if h.cancelRequested.Load() {
			e.finishCancelled(ctx, h, faults)
			return
		}
		h.mu.Lock()
		exec.MarkAsRunning()
		h.mu.Unlock()
		if err := e.persist(ctx, h); err != nil {
			faults = multierror.Append(faults, err)
			persistFailures++
		}
		e.tracer.RecordEvent(ctx, "execution.resumed", map[string]interface{}{"execution_id": exec.ID})
		logger.Infof("Execution %s resumed", exec.ID)
	}
}

// applyWithRetry runs the item function with the retry policy. Only errors
// flagged transient are retried; transition violations and concurrency races
// fail the item on the first attempt.
func (e *Executor) applyWithRetry(ctx context.Context, executionID, pageID string, apply ItemFunc) model.ItemResult {
	itemCtx, endSpan := e.tracer.StartItemSpan(ctx, executionID, pageID)
	defer endSpan()

	var result model.ItemResult
	var err error
	maxAttempts := e.retry.MaxAttempts()
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err = apply(itemCtx, pageID)
		if err == nil || !e.retry.ShouldRetry(err) {
			break
		}
		if attempt < maxAttempts {
			logger.Debugf("Retrying page %s in execution %s (attempt %d/%d): %v",
				pageID, executionID, attempt, maxAttempts, err)
			select {
			case <-time.After(e.retry.BackoffInterval(attempt)):
			case <-itemCtx.Done():
				attempt = maxAttempts
			}
		}
	}
	if err != nil {
		e.tracer.RecordError(itemCtx, moduleName, err)
	}
	return result
}

// isSystemicFailure reports whether an item failed for infrastructure
// reasons rather than a business-rule rejection. Runs of these indicate the
// whole execution is broken, not the individual pages.
func isSystemicFailure(res model.ItemResult) bool {
	if res.Outcome != model.OutcomeFailed {
		return false
	}
	switch exception.ErrorCode(res.ErrorCode) {
	case exception.CodeRepositoryTimeout, exception.CodeExecutionFault:
		return true
	}
	return false
}

func (e *Executor) finishCompleted(ctx context.Context, h *handle, faults *multierror.Error) {
	h.mu.Lock()
	h.exec.MarkAsCompleted()
	if err := faults.ErrorOrNil(); err != nil {
		h.exec.AddFailure(err)
	}
	h.mu.Unlock()
	e.finalize(ctx, h, "completed")
}

// finishFailed settles an execution whose infrastructure gave out. Results
// accumulated before the abort are preserved; remaining targets stay
// untouched.
func (e *Executor) finishFailed(ctx context.Context, h *handle, faults *multierror.Error, remaining int) {
	h.mu.Lock()
	h.exec.MarkAsFailed(exception.Newf(moduleName, exception.CodeExecutionFault,
		"aborted after repeated infrastructure failures; %d targets not attempted", remaining))
	if err := faults.ErrorOrNil(); err != nil {
		h.exec.AddFailure(err)
	}
	id := h.exec.ID
	h.mu.Unlock()
	logger.Errorf("Execution %s aborted with %d targets unattempted", id, remaining)
	e.finalize(ctx, h, "failed")
}

func (e *Executor) finishCancelled(ctx context.Context, h *handle, faults *multierror.Error) {
	h.mu.Lock()
	if err := h.exec.TransitionTo(model.ExecutionStateCancelling); err != nil {
		logger.Warnf("Execution %s could not enter cancelling state: %v", h.exec.ID, err)
	}
	h.exec.MarkAsCancelled()
	if err := faults.ErrorOrNil(); err != nil {
		h.exec.AddFailure(err)
	}
	h.mu.Unlock()
	e.finalize(ctx, h, "cancelled")
}

// finalize persists the terminal record, emits metrics and hands the results
// to the archiver. Archive failures are recorded on the execution but do not
// change its terminal state.
func (e *Executor) finalize(ctx context.Context, h *handle, disposition string) {
	snap := h.snapshot()
	if err := e.persist(ctx, h); err != nil {
		h.mu.Lock()
		h.exec.AddFailure(err)
		h.mu.Unlock()
	}
	e.recorder.RecordExecutionEnd(ctx, snap)
	if snap.StartTime != nil && snap.EndTime != nil {
		e.recorder.RecordDuration(ctx, "bulk_execution_duration", snap.EndTime.Sub(*snap.StartTime), map[string]string{
			"action":      string(snap.Action),
			"disposition": disposition,
		})
	}
	logger.Infof("Execution %s finished as %s: %d succeeded, %d skipped, %d failed",
		snap.ID, disposition, snap.Counts.Succeeded, snap.Counts.Skipped, snap.Counts.Failed)

	if e.archiver != nil {
		if err := e.archiver.Archive(ctx, snap); err != nil {
			logger.Errorf("Failed to archive execution %s: %v", snap.ID, err)
			h.mu.Lock()
			h.exec.AddFailure(fmt.Errorf("archive failed: %w", err))
			h.mu.Unlock()
			if err := e.persist(ctx, h); err != nil {
				h.mu.Lock()
				h.exec.AddFailure(err)
				h.mu.Unlock()
			}
		}
	}
}

// persist writes the current execution snapshot through the repository.
// Persistence trouble is recorded on the execution rather than aborting it:
// the in-memory record remains authoritative while the execution lives.
func (e *Executor) persist(ctx context.Context, h *handle) error {
	snap := h.snapshot()
	if err := e.executions.Update(ctx, snap); err != nil {
		logger.Errorf("Failed to persist execution %s: %v", snap.ID, err)
		return fmt.Errorf("persist execution %s: %w", snap.ID, err)
	}
	return nil
}
