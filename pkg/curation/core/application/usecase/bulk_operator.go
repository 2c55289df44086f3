package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"

	model "github.com/linksmith/chrono-scraper-sub006/pkg/curation/core/domain/model"
	repository "github.com/linksmith/chrono-scraper-sub006/pkg/curation/core/domain/repository"
	bulk "github.com/linksmith/chrono-scraper-sub006/pkg/curation/engine/bulk"
	guard "github.com/linksmith/chrono-scraper-sub006/pkg/curation/engine/guard"
	exception "github.com/linksmith/chrono-scraper-sub006/pkg/curation/support/util/exception"
	logger "github.com/linksmith/chrono-scraper-sub006/pkg/curation/support/util/logger"
)

const moduleBulk = "bulk_operator"

// DefaultBulkOperator is the default implementation of the BulkOperator
// interface. It validates bulk requests, enforces the submission quota, and
// delegates execution to the bulk engine.
type DefaultBulkOperator struct {
	applier       OverrideApplier
	executor      *bulk.Executor
	guard         *guard.Guard
	maxBatchSize  int
	syncThreshold int
}

// Verify that DefaultBulkOperator implements the BulkOperator interface.
var _ BulkOperator = (*DefaultBulkOperator)(nil)

// NewDefaultBulkOperator creates a new instance of DefaultBulkOperator.
func NewDefaultBulkOperator(applier OverrideApplier, executor *bulk.Executor, g *guard.Guard, maxBatchSize, syncThreshold int) *DefaultBulkOperator {
	return &DefaultBulkOperator{
		applier:       applier,
		executor:      executor,
		guard:         g,
		maxBatchSize:  maxBatchSize,
		syncThreshold: syncThreshold,
	}
}

// Submit implements the BulkOperator interface. Batches at or below the
// synchronous threshold run to completion before returning; larger batches
// are scheduled and polled via Status.
func (o *DefaultBulkOperator) Submit(ctx context.Context, projectID string, action model.BulkAction, targetIDs []string, params model.RawParams, actor string) (*SubmitResult, error) {
	if err := o.validate(action, targetIDs, params); err != nil {
		return nil, err
	}
	if err := o.guard.Allow(actor, guard.ScopeBulk); err != nil {
		return nil, err
	}

	exec := model.NewBulkExecution(projectID, action, targetIDs, params, actor)
	apply := o.itemFunc(projectID, action, params, actor)

	if len(targetIDs) <= o.syncThreshold {
		logger.Debugf("Executing bulk %s synchronously (%d pages)", action, len(targetIDs))
		snap, err := o.executor.LaunchSync(ctx, exec, apply)
		if err != nil {
			return nil, err
		}
		return &SubmitResult{Execution: snap, Async: false}, nil
	}

	logger.Infof("Scheduling bulk %s execution %s (%d pages)", action, exec.ID, len(targetIDs))
	if err := o.executor.Launch(ctx, exec, apply); err != nil {
		return nil, err
	}
	return &SubmitResult{Execution: exec.Snapshot(), Async: true}, nil
}

// Pause implements the BulkOperator interface.
func (o *DefaultBulkOperator) Pause(ctx context.Context, projectID, executionID string) (*model.BulkExecution, error) {
	snap, err := o.executor.Pause(ctx, projectID, executionID)
	return snap, o.mapNotFound(err, executionID)
}

// Resume implements the BulkOperator interface.
func (o *DefaultBulkOperator) Resume(ctx context.Context, projectID, executionID string) (*model.BulkExecution, error) {
	snap, err := o.executor.Resume(ctx, projectID, executionID)
	return snap, o.mapNotFound(err, executionID)
}

// Cancel implements the BulkOperator interface.
func (o *DefaultBulkOperator) Cancel(ctx context.Context, projectID, executionID string) (*model.BulkExecution, error) {
	snap, err := o.executor.Cancel(ctx, projectID, executionID)
	return snap, o.mapNotFound(err, executionID)
}

// Status implements the BulkOperator interface.
func (o *DefaultBulkOperator) Status(ctx context.Context, projectID, executionID string) (*model.BulkExecution, error) {
	snap, err := o.executor.Status(ctx, projectID, executionID)
	return snap, o.mapNotFound(err, executionID)
}

// validate checks the request shape before anything is scheduled. All
// detectable problems are aggregated so the client can fix them in one pass.
func (o *DefaultBulkOperator) validate(action model.BulkAction, targetIDs []string, params model.RawParams) error {
	var errs *multierror.Error

	if !action.IsValid() {
		errs = multierror.Append(errs, fmt.Errorf("unknown action: %s", action))
	} else if _, err := model.DecodeParams(action, params); err != nil {
		errs = multierror.Append(errs, err)
	}

	if len(targetIDs) == 0 {
		errs = multierror.Append(errs, errors.New("page_ids must not be empty"))
	}
	if len(targetIDs) > o.maxBatchSize {
		errs = multierror.Append(errs, fmt.Errorf("batch of %d pages exceeds the maximum of %d", len(targetIDs), o.maxBatchSize))
	}
	if action.IsValid() {
		if err := o.guard.CheckBatchSize(action, len(targetIDs)); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	seen := make(map[string]struct{}, len(targetIDs))
	for _, id := range targetIDs {
		if id == "" {
			errs = multierror.Append(errs, errors.New("page_ids must not contain empty ids"))
			break
		}
		if _, dup := seen[id]; dup {
			errs = multierror.Append(errs, fmt.Errorf("duplicate target id: %s", id))
			break
		}
		seen[id] = struct{}{}
	}

	if err := errs.ErrorOrNil(); err != nil {
		return exception.New(moduleBulk, exception.CodeInvalidParameter, "bulk request validation failed", err, false)
	}
	return nil
}

// itemFunc adapts the single-page applier to the engine's per-item contract.
// Failures are folded into a failed ItemResult; the raw error is also
// returned so the engine can retry transient ones.
func (o *DefaultBulkOperator) itemFunc(projectID string, action model.BulkAction, params model.RawParams, actor string) bulk.ItemFunc {
	return func(ctx context.Context, pageID string) (model.ItemResult, error) {
		applied, err := o.applier.Apply(ctx, projectID, pageID, action, params, actor)
		if err != nil {
			return model.ItemResult{
				PageID:    pageID,
				Outcome:   model.OutcomeFailed,
				Error:     exception.ExtractErrorMessage(err),
				ErrorCode: string(exception.CodeOf(err)),
			}, err
		}
		return model.ItemResult{
			PageID:         applied.PageID,
			Outcome:        applied.Outcome,
			PreviousStatus: applied.PreviousStatus,
			NewStatus:      applied.NewStatus,
			Warning:        applied.Warning,
		}, nil
	}
}

func (o *DefaultBulkOperator) mapNotFound(err error, executionID string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrExecutionNotFound) {
		return exception.Newf(moduleBulk, exception.CodeExecutionNotFound, "bulk execution %s not found", executionID)
	}
	return err
}
