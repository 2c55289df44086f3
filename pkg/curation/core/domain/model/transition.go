package model

import (
	"fmt"

	"github.com/linksmith/chrono-scraper-sub006/pkg/curation/support/util/exception"
)

// BulkAction identifies a manual override action. The set is closed: the
// executor dispatches over it with a switch, keeping the transition graph
// auditable in one place.
type BulkAction string

const (
	ActionManualProcess  BulkAction = "manual_process"
	ActionManualSkip     BulkAction = "manual_skip"
	ActionUpdatePriority BulkAction = "update_priority"
	ActionResetStatus    BulkAction = "reset_status"
	ActionOverrideFilter BulkAction = "override_filter"
	ActionRestoreFilter  BulkAction = "restore_filter"
)

// String returns the string representation of the BulkAction.
func (a BulkAction) String() string {
	return string(a)
}

// IsValid reports whether the action is one of the known manual actions.
func (a BulkAction) IsValid() bool {
	switch a {
	case ActionManualProcess, ActionManualSkip, ActionUpdatePriority,
		ActionResetStatus, ActionOverrideFilter, ActionRestoreFilter:
		return true
	default:
		return false
	}
}

// TransitionOption carries the per-request inputs the transition graph needs
// beyond the action and source status.
type TransitionOption struct {
	// Force permits manual_process from the failed state (force_reprocess).
	Force bool
	// ResetTarget is the explicit target for reset_status requests.
	ResetTarget PageStatus
	// RestoreCategory is the retained filter category used by restore_filter
	// to derive the original filtered status.
	RestoreCategory FilterCategory
}

// NextStatus validates the requested action against the fixed transition
// graph and returns the resulting status. It returns an InvalidTransition
// error if the source status has no legal edge for the action.
//
// The graph, in full:
//
//	manual_process:  filtered_* | awaiting_manual_review -> pending
//	                 failed -> pending (only with Force)
//	manual_skip:     pending | failed | awaiting_manual_review | filtered_* -> skipped
//	override_filter: filtered_* | awaiting_manual_review -> manually_approved
//	restore_filter:  manually_approved -> filtered_<retained category>
//	update_priority: status unchanged (any state except in_progress/completed)
//	reset_status:    target-derived, see below
//
// completed and in_progress belong to the automated pipeline: in_progress
// rejects every manual action so that in-flight pages are never mutated, and
// completed is never a manual target or source except for priority updates.
func NextStatus(action BulkAction, from PageStatus, opt TransitionOption) (PageStatus, error) {
	if from == StatusInProgress {
		return "", invalidTransition(action, from, "cannot override in-flight page")
	}

	switch action {
	case ActionManualProcess:
		if from.IsFiltered() || from == StatusAwaitingManualReview {
			return StatusPending, nil
		}
		if from == StatusFailed && opt.Force {
			return StatusPending, nil
		}
		return "", invalidTransition(action, from, "")

	case ActionManualSkip:
		if from.IsFiltered() || from == StatusPending || from == StatusFailed || from == StatusAwaitingManualReview {
			return StatusSkipped, nil
		}
		return "", invalidTransition(action, from, "")

	case ActionOverrideFilter:
		if from.IsFiltered() || from == StatusAwaitingManualReview {
			return StatusManuallyApproved, nil
		}
		return "", invalidTransition(action, from, "")

	case ActionRestoreFilter:
		if from != StatusManuallyApproved {
			return "", invalidTransition(action, from, "")
		}
		restored, ok := FilteredStatusForCategory(opt.RestoreCategory)
		if !ok {
			return "", invalidTransition(action, from, fmt.Sprintf("no filtered status for category %q", opt.RestoreCategory))
		}
		return restored, nil

	case ActionUpdatePriority:
		// Pure metadata mutation, the status is left untouched. Completed
		// pages are still prioritizable; only in-flight pages are off limits.
		return from, nil

	case ActionResetStatus:
		return resetTarget(from, opt.ResetTarget)

	default:
		return "", exception.Newf("transition", exception.CodeInvalidParameter, "unknown action %q", action)
	}
}

// resetTarget validates a reset_status request. The caller supplies the
// explicit target; legality follows the action the target implies.
func resetTarget(from, target PageStatus) (PageStatus, error) {
	switch target {
	case StatusPending:
		// Same legality as manual_process.
		if from.IsFiltered() || from == StatusAwaitingManualReview || from == StatusFailed {
			return StatusPending, nil
		}
	case StatusAwaitingManualReview:
		// Reverse of manual_process: pages queued for processing or filtered
		// automatically can be sent back for human review.
		if from == StatusPending || from == StatusFailed || from.IsFiltered() {
			return StatusAwaitingManualReview, nil
		}
	case StatusSkipped:
		// Same legality as manual_skip.
		if from.IsFiltered() || from == StatusPending || from == StatusFailed || from == StatusAwaitingManualReview {
			return StatusSkipped, nil
		}
	default:
		return "", exception.Newf("transition", exception.CodeInvalidParameter, "status %q is not a valid reset target", target)
	}
	return "", invalidTransition(ActionResetStatus, from, fmt.Sprintf("target %q", target))
}

// invalidTransition builds the per-page InvalidTransition error.
func invalidTransition(action BulkAction, from PageStatus, detail string) error {
	msg := fmt.Sprintf("action %s is not legal from status %s", action, from)
	if detail != "" {
		msg += ": " + detail
	}
	return exception.New("transition", exception.CodeInvalidTransition, msg, nil, false)
}
