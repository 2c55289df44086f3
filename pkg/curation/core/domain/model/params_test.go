// Package model_test provides unit tests for action parameter decoding.
package model_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linksmith/chrono-scraper-sub006/pkg/curation/core/domain/model"
	"github.com/linksmith/chrono-scraper-sub006/pkg/curation/support/util/exception"
)

func TestDecodeParams_ManualProcess(t *testing.T) {
	decoded, err := model.DecodeParams(model.ActionManualProcess, model.RawParams{
		"priority_level":   8,
		"processing_notes": "looks like an article",
		"force_reprocess":  true,
	})
	require.NoError(t, err)

	params, ok := decoded.(*model.ManualProcessParams)
	require.True(t, ok)
	assert.Equal(t, 8, params.PriorityLevel)
	assert.Equal(t, "looks like an article", params.ProcessingNotes)
	assert.True(t, params.ForceReprocess)

	// All fields are optional.
	_, err = model.DecodeParams(model.ActionManualProcess, nil)
	assert.NoError(t, err)

	// Out-of-range priority is rejected.
	_, err = model.DecodeParams(model.ActionManualProcess, model.RawParams{"priority_level": 11})
	assert.Error(t, err)
	assert.Equal(t, exception.CodeInvalidParameter, exception.CodeOf(err))
}

func TestDecodeParams_ManualSkipRequiresReason(t *testing.T) {
	_, err := model.DecodeParams(model.ActionManualSkip, model.RawParams{"skip_notes": "n/a"})
	assert.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrValidation))

	decoded, err := model.DecodeParams(model.ActionManualSkip, model.RawParams{
		"skip_reason":    "duplicate of canonical page",
		"permanent_skip": true,
	})
	require.NoError(t, err)
	params := decoded.(*model.ManualSkipParams)
	assert.Equal(t, "duplicate of canonical page", params.SkipReason)
	assert.True(t, params.PermanentSkip)
}

func TestDecodeParams_UpdatePriorityBounds(t *testing.T) {
	for _, priority := range []int{model.MinPriority, 5, model.MaxPriority} {
		_, err := model.DecodeParams(model.ActionUpdatePriority, model.RawParams{"priority": priority})
		assert.NoError(t, err, "priority %d", priority)
	}
	for _, priority := range []int{0, -1, 11} {
		_, err := model.DecodeParams(model.ActionUpdatePriority, model.RawParams{"priority": priority})
		assert.Error(t, err, "priority %d", priority)
	}
}

func TestDecodeParams_ResetStatusTargets(t *testing.T) {
	for _, target := range []string{"pending", "awaiting_manual_review", "skipped"} {
		decoded, err := model.DecodeParams(model.ActionResetStatus, model.RawParams{"target_status": target})
		require.NoError(t, err, "target %s", target)
		assert.Equal(t, model.PageStatus(target), decoded.(*model.ResetStatusParams).Target())
	}

	_, err := model.DecodeParams(model.ActionResetStatus, model.RawParams{})
	assert.Error(t, err)

	_, err = model.DecodeParams(model.ActionResetStatus, model.RawParams{"target_status": "completed"})
	assert.Error(t, err)
}

func TestDecodeParams_OverrideFilterRequiresReasoning(t *testing.T) {
	_, err := model.DecodeParams(model.ActionOverrideFilter, model.RawParams{})
	assert.Error(t, err)

	_, err = model.DecodeParams(model.ActionOverrideFilter, model.RawParams{"reasoning": "false positive"})
	assert.NoError(t, err)
}

func TestDecodeParams_RejectsUnknownKeys(t *testing.T) {
	_, err := model.DecodeParams(model.ActionManualSkip, model.RawParams{
		"skip_reason": "stale",
		"skip_raeson": "typo",
	})
	assert.Error(t, err)
	assert.Equal(t, exception.CodeInvalidParameter, exception.CodeOf(err))
}

func TestDecodeParams_UnknownAction(t *testing.T) {
	_, err := model.DecodeParams("reindex", nil)
	assert.Error(t, err)
}
