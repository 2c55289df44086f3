package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	audit "github.com/linksmith/chrono-scraper-sub006/pkg/curation/audit"
	model "github.com/linksmith/chrono-scraper-sub006/pkg/curation/core/domain/model"
	repository "github.com/linksmith/chrono-scraper-sub006/pkg/curation/core/domain/repository"
	metrics "github.com/linksmith/chrono-scraper-sub006/pkg/curation/core/metrics"
	exception "github.com/linksmith/chrono-scraper-sub006/pkg/curation/support/util/exception"
	logger "github.com/linksmith/chrono-scraper-sub006/pkg/curation/support/util/logger"
)

const moduleOverride = "override_applier"

// DefaultOverrideApplier is the default implementation of the OverrideApplier
// interface. It loads the page, validates the requested transition, persists
// the mutation with an optimistic version check, and records an audit event.
type DefaultOverrideApplier struct {
	pages    repository.PageRepository
	sink     audit.Sink
	recorder metrics.MetricRecorder
	timeout  time.Duration
}

// Verify that DefaultOverrideApplier implements the OverrideApplier interface.
var _ OverrideApplier = (*DefaultOverrideApplier)(nil)

// NewDefaultOverrideApplier creates a new instance of DefaultOverrideApplier.
// timeout bounds the repository round trips of a single Apply call; zero
// disables the bound.
func NewDefaultOverrideApplier(pages repository.PageRepository, sink audit.Sink, recorder metrics.MetricRecorder, timeout time.Duration) *DefaultOverrideApplier {
	return &DefaultOverrideApplier{
		pages:    pages,
		sink:     sink,
		recorder: recorder,
		timeout:  timeout,
	}
}

// Apply implements the OverrideApplier interface.
func (a *DefaultOverrideApplier) Apply(ctx context.Context, projectID, pageID string, action model.BulkAction, params model.RawParams, actor string) (*ApplyResult, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	if !action.IsValid() {
		a.recorder.RecordOverride(ctx, action, "rejected")
		return nil, exception.Newf(moduleOverride, exception.CodeInvalidParameter, "unknown action: %s", action)
	}

	decoded, err := model.DecodeParams(action, params)
	if err != nil {
		a.recorder.RecordOverride(ctx, action, "rejected")
		return nil, err
	}

	page, err := a.pages.Find(ctx, projectID, pageID)
	if err != nil {
		if errors.Is(err, repository.ErrPageNotFound) {
			a.recorder.RecordOverride(ctx, action, "rejected")
			return nil, exception.Newf(moduleOverride, exception.CodePageNotFound, "page %s not found in project %s", pageID, projectID)
		}
		return nil, exception.New(moduleOverride, exception.CodeRepositoryTimeout, fmt.Sprintf("failed to load page %s", pageID), err, true)
	}

	opt, err := transitionOption(action, page, decoded)
	if err != nil {
		a.recorder.RecordOverride(ctx, action, "rejected")
		return nil, err
	}

	next, err := model.NextStatus(action, page.Status, opt)
	if err != nil {
		a.recorder.RecordOverride(ctx, action, "rejected")
		return nil, err
	}

	updated := page.Clone()
	mutatePage(updated, action, next, decoded)

	if err := a.pages.UpdateWithVersion(ctx, updated, page.Version); err != nil {
		if errors.Is(err, exception.ErrConcurrentModification) {
			logger.Debugf("Concurrent modification on page %s (expected version %d)", page.ID, page.Version)
			a.recorder.RecordOverride(ctx, action, "conflict")
			return nil, err
		}
		return nil, exception.New(moduleOverride, exception.CodeRepositoryTimeout, fmt.Sprintf("failed to persist page %s", page.ID), err, true)
	}

	result := &ApplyResult{
		PageID:             page.ID,
		Outcome:            model.OutcomeSuccess,
		PreviousStatus:     page.Status,
		NewStatus:          updated.Status,
		Priority:           updated.Priority,
		ManuallyOverridden: updated.ManuallyOverridden,
	}
	a.emitAudit(ctx, result, page, action, decoded, actor)
	a.recorder.RecordOverride(ctx, action, "success")
	return result, nil
}

// emitAudit records the decision after the mutation committed. A failed emit
// is reported as a warning on the result, never as an error: the page change
// is already durable and must not be rolled back.
func (a *DefaultOverrideApplier) emitAudit(ctx context.Context, result *ApplyResult, page *model.Page, action model.BulkAction, decoded model.ActionParams, actor string) {
	event := audit.NewEvent(actor, page.ProjectID, page.ID, action, result.PreviousStatus, result.NewStatus)
	event.Outcome = string(result.Outcome)
	event.Reason = auditReason(decoded)
	if err := a.sink.Emit(ctx, event); err != nil {
		logger.Warnf("Failed to record audit event for page %s: %v", page.ID, err)
		result.Warning = fmt.Sprintf("change applied but audit record failed: %v", err)
	}
}

// transitionOption derives the TransitionOption for the action from the
// decoded parameters and the page's recorded filter decision.
func transitionOption(action model.BulkAction, page *model.Page, decoded model.ActionParams) (model.TransitionOption, error) {
	var opt model.TransitionOption
	switch action {
	case model.ActionManualProcess:
		opt.Force = decoded.(*model.ManualProcessParams).ForceReprocess
	case model.ActionResetStatus:
		opt.ResetTarget = decoded.(*model.ResetStatusParams).Target()
	case model.ActionRestoreFilter:
		if !page.ManuallyOverridden {
			return opt, exception.Newf(moduleOverride, exception.CodeInvalidTransition,
				"page %s was not manually overridden; nothing to restore", page.ID)
		}
		if page.Filter.IsZero() {
			return opt, exception.Newf(moduleOverride, exception.CodeInvalidParameter,
				"page %s has no recorded filter decision to restore", page.ID)
		}
		opt.RestoreCategory = page.Filter.Category
	}
	return opt, nil
}

// mutatePage applies the action's side effects to the page copy.
func mutatePage(page *model.Page, action model.BulkAction, next model.PageStatus, decoded model.ActionParams) {
	page.Status = next
	switch action {
	case model.ActionManualProcess:
		p := decoded.(*model.ManualProcessParams)
		if p.PriorityLevel > 0 {
			page.Priority = p.PriorityLevel
		}
		page.ManuallyOverridden = true
	case model.ActionManualSkip:
		page.ManuallyOverridden = true
	case model.ActionUpdatePriority:
		page.Priority = decoded.(*model.UpdatePriorityParams).Priority
	case model.ActionResetStatus:
		page.ManuallyOverridden = false
	case model.ActionOverrideFilter:
		page.ManuallyOverridden = true
	case model.ActionRestoreFilter:
		page.ManuallyOverridden = false
	}
}

// auditReason extracts the operator-supplied reason from the decoded params.
func auditReason(decoded model.ActionParams) string {
	switch p := decoded.(type) {
	case *model.ManualProcessParams:
		return p.ProcessingNotes
	case *model.ManualSkipParams:
		return p.SkipReason
	case *model.OverrideFilterParams:
		return p.Reasoning
	case *model.RestoreFilterParams:
		return p.Notes
	default:
		return ""
	}
}
