package model

import (
	"fmt"

	"github.com/mitchellh/mapstructure"

	exception "github.com/linksmith/chrono-scraper-sub006/pkg/curation/support/util/exception"
)

const moduleModel = "model"

// ActionParams is implemented by every per-action parameter struct.
type ActionParams interface {
	// Validate checks the decoded parameters against their action's rules.
	Validate() error
}

// ManualProcessParams are the parameters of the manual_process action.
type ManualProcessParams struct {
	PriorityLevel   int    `mapstructure:"priority_level"`
	ProcessingNotes string `mapstructure:"processing_notes"`
	ForceReprocess  bool   `mapstructure:"force_reprocess"`
}

// Validate checks the manual_process parameters.
func (p *ManualProcessParams) Validate() error {
	if p.PriorityLevel != 0 && (p.PriorityLevel < MinPriority || p.PriorityLevel > MaxPriority) {
		return paramError(fmt.Sprintf("priority_level must be between %d and %d, got %d", MinPriority, MaxPriority, p.PriorityLevel))
	}
	return nil
}

// ManualSkipParams are the parameters of the manual_skip action.
type ManualSkipParams struct {
	SkipReason    string `mapstructure:"skip_reason"`
	SkipNotes     string `mapstructure:"skip_notes"`
	PermanentSkip bool   `mapstructure:"permanent_skip"`
}

// Validate checks the manual_skip parameters.
func (p *ManualSkipParams) Validate() error {
	if p.SkipReason == "" {
		return paramError("skip_reason is required for manual_skip")
	}
	return nil
}

// UpdatePriorityParams are the parameters of the update_priority action.
type UpdatePriorityParams struct {
	Priority int `mapstructure:"priority"`
}

// Validate checks the update_priority parameters.
func (p *UpdatePriorityParams) Validate() error {
	if p.Priority < MinPriority || p.Priority > MaxPriority {
		return paramError(fmt.Sprintf("priority must be between %d and %d, got %d", MinPriority, MaxPriority, p.Priority))
	}
	return nil
}

// ResetStatusParams are the parameters of the reset_status action.
type ResetStatusParams struct {
	TargetStatus string `mapstructure:"target_status"`
}

// Validate checks the reset_status parameters.
func (p *ResetStatusParams) Validate() error {
	switch PageStatus(p.TargetStatus) {
	case StatusPending, StatusAwaitingManualReview, StatusSkipped:
		return nil
	case "":
		return paramError("target_status is required for reset_status")
	default:
		return paramError(fmt.Sprintf("target_status %q is not a valid reset target", p.TargetStatus))
	}
}

// Target returns the validated reset target status.
func (p *ResetStatusParams) Target() PageStatus {
	return PageStatus(p.TargetStatus)
}

// OverrideFilterParams are the parameters of the override_filter action.
type OverrideFilterParams struct {
	Reasoning string `mapstructure:"reasoning"`
}

// Validate checks the override_filter parameters.
func (p *OverrideFilterParams) Validate() error {
	if p.Reasoning == "" {
		return paramError("reasoning is required for override_filter")
	}
	return nil
}

// RestoreFilterParams are the parameters of the restore_filter action.
// The filter category to restore comes from the page's recorded decision,
// so no fields are required.
type RestoreFilterParams struct {
	Notes string `mapstructure:"notes"`
}

// Validate checks the restore_filter parameters.
func (p *RestoreFilterParams) Validate() error {
	return nil
}

// DecodeParams decodes and validates the raw parameter map for the given
// action. Unknown keys are rejected so that client typos surface as
// validation errors instead of silently ignored fields.
func DecodeParams(action BulkAction, raw RawParams) (ActionParams, error) {
	var target ActionParams
	switch action {
	case ActionManualProcess:
		target = &ManualProcessParams{}
	case ActionManualSkip:
		target = &ManualSkipParams{}
	case ActionUpdatePriority:
		target = &UpdatePriorityParams{}
	case ActionResetStatus:
		target = &ResetStatusParams{}
	case ActionOverrideFilter:
		target = &OverrideFilterParams{}
	case ActionRestoreFilter:
		target = &RestoreFilterParams{}
	default:
		return nil, paramError(fmt.Sprintf("unknown action: %s", action))
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      target,
		ErrorUnused: true,
	})
	if err != nil {
		return nil, exception.New(moduleModel, exception.CodeInvalidParameter, "failed to build parameter decoder", err, false)
	}
	if raw == nil {
		raw = RawParams{}
	}
	if err := decoder.Decode(map[string]interface{}(raw)); err != nil {
		return nil, exception.New(moduleModel, exception.CodeInvalidParameter,
			fmt.Sprintf("invalid parameters for action %s: %v", action, err), err, false)
	}
	if err := target.Validate(); err != nil {
		return nil, err
	}
	return target, nil
}

func paramError(msg string) error {
	return exception.New(moduleModel, exception.CodeInvalidParameter, msg, nil, false)
}
