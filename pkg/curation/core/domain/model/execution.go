package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	logger "github.com/linksmith/chrono-scraper-sub006/pkg/curation/support/util/logger"
)

// ExecutionState represents the state of a bulk execution.
type ExecutionState string

const (
	ExecutionStateQueued     ExecutionState = "queued"
	ExecutionStateRunning    ExecutionState = "running"
	ExecutionStatePaused     ExecutionState = "paused"
	ExecutionStateCancelling ExecutionState = "cancelling"
	ExecutionStateCancelled  ExecutionState = "cancelled"
	ExecutionStateCompleted  ExecutionState = "completed"
	ExecutionStateFailed     ExecutionState = "failed"
)

// String returns the string representation of the ExecutionState.
func (s ExecutionState) String() string {
	return string(s)
}

// IsTerminal reports whether the execution state is final. A terminal
// execution is immutable and retained only for polling and audit.
func (s ExecutionState) IsTerminal() bool {
	switch s {
	case ExecutionStateCancelled, ExecutionStateCompleted, ExecutionStateFailed:
		return true
	default:
		return false
	}
}

// isValidExecutionTransition checks whether the state transition is legal.
func isValidExecutionTransition(current, next ExecutionState) bool {
	switch current {
	case ExecutionStateQueued:
		// QUEUED can start running, be cancelled before dispatch, or fail during setup.
		return next == ExecutionStateRunning || next == ExecutionStateCancelling || next == ExecutionStateFailed
	case ExecutionStateRunning:
		return next == ExecutionStatePaused || next == ExecutionStateCancelling ||
			next == ExecutionStateCompleted || next == ExecutionStateFailed
	case ExecutionStatePaused:
		return next == ExecutionStateRunning || next == ExecutionStateCancelling || next == ExecutionStateFailed
	case ExecutionStateCancelling:
		// In-flight items drain first; the execution then settles as cancelled
		// (or failed if the drain itself hits an infrastructure fault).
		return next == ExecutionStateCancelled || next == ExecutionStateFailed
	default:
		// Terminal states have no outgoing edges.
		return false
	}
}

// ItemOutcome classifies the result of applying an action to a single page.
type ItemOutcome string

const (
	OutcomeSuccess ItemOutcome = "success"
	OutcomeSkipped ItemOutcome = "skipped"
	OutcomeFailed  ItemOutcome = "failed"
)

// ItemResult is the per-page outcome of a bulk execution. Exactly one entry
// is appended per processed page id, even across pause/resume cycles.
type ItemResult struct {
	PageID         string      `json:"page_id"`
	Outcome        ItemOutcome `json:"outcome"`
	PreviousStatus PageStatus  `json:"previous_status,omitempty"`
	NewStatus      PageStatus  `json:"new_status,omitempty"`
	Error          string      `json:"error,omitempty"`
	ErrorCode      string      `json:"error_code,omitempty"`
	// Warning carries non-fatal follow-up problems, e.g. a page mutation that
	// succeeded but whose audit event could not be recorded.
	Warning string `json:"warning,omitempty"`
}

// ResultList holds the per-page outcomes of an execution.
type ResultList []ItemResult

// Value implements the `driver.Valuer` interface, converting the ResultList to a JSON string.
func (rl ResultList) Value() (driver.Value, error) {
	if rl == nil {
		return "[]", nil
	}
	data, err := json.Marshal(rl)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements the `sql.Scanner` interface, converting a JSON string to a ResultList.
func (rl *ResultList) Scan(value interface{}) error {
	if value == nil {
		*rl = make(ResultList, 0)
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported Scan type for ResultList: %T", value)
	}
	if len(b) == 0 {
		*rl = make(ResultList, 0)
		return nil
	}
	if err := json.Unmarshal(b, rl); err != nil {
		return fmt.Errorf("failed to unmarshal ResultList JSON: %w", err)
	}
	return nil
}

// StringList is a JSON-persisted ordered list of ids.
type StringList []string

// Value implements the `driver.Valuer` interface, converting the StringList to a JSON string.
func (sl StringList) Value() (driver.Value, error) {
	if sl == nil {
		return "[]", nil
	}
	data, err := json.Marshal(sl)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements the `sql.Scanner` interface, converting a JSON string to a StringList.
func (sl *StringList) Scan(value interface{}) error {
	if value == nil {
		*sl = make(StringList, 0)
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported Scan type for StringList: %T", value)
	}
	if len(b) == 0 {
		*sl = make(StringList, 0)
		return nil
	}
	if err := json.Unmarshal(b, sl); err != nil {
		return fmt.Errorf("failed to unmarshal StringList JSON: %w", err)
	}
	return nil
}

// RawParams is the JSON-persisted action parameter payload as submitted.
type RawParams map[string]interface{}

// Value implements the `driver.Valuer` interface, converting the RawParams to a JSON string.
func (rp RawParams) Value() (driver.Value, error) {
	if rp == nil {
		return "{}", nil
	}
	data, err := json.Marshal(rp)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements the `sql.Scanner` interface, converting a JSON string to RawParams.
func (rp *RawParams) Scan(value interface{}) error {
	if value == nil {
		*rp = make(RawParams)
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported Scan type for RawParams: %T", value)
	}
	if len(b) == 0 {
		*rp = make(RawParams)
		return nil
	}
	if err := json.Unmarshal(b, rp); err != nil {
		return fmt.Errorf("failed to unmarshal RawParams JSON: %w", err)
	}
	return nil
}

// ExecutionCounts are the derived counters kept consistent with the result list.
type ExecutionCounts struct {
	Succeeded int `json:"succeeded"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// Processed returns the total number of processed pages.
func (c ExecutionCounts) Processed() int {
	return c.Succeeded + c.Skipped + c.Failed
}

// BulkExecution is the durable unit a client polls: one orchestrated
// application of a single action across many pages. It is mutated only by
// the owning executor goroutine and becomes immutable once terminal.
type BulkExecution struct {
	ID          string
	ProjectID   string
	Action      BulkAction
	TargetIDs   StringList
	Params      RawParams
	State       ExecutionState
	Results     ResultList
	Counts      ExecutionCounts
	Failures    FailureList
	SubmittedBy string
	CreateTime  time.Time
	StartTime   *time.Time
	EndTime     *time.Time
	LastUpdated time.Time
	Version     int
}

// NewBulkExecution creates a queued BulkExecution for the given request.
func NewBulkExecution(projectID string, action BulkAction, targetIDs []string, params RawParams, submittedBy string) *BulkExecution {
	now := time.Now()
	return &BulkExecution{
		ID:          NewID(),
		ProjectID:   projectID,
		Action:      action,
		TargetIDs:   append(StringList(nil), targetIDs...),
		Params:      params,
		State:       ExecutionStateQueued,
		Results:     make(ResultList, 0, len(targetIDs)),
		Failures:    make(FailureList, 0),
		SubmittedBy: submittedBy,
		CreateTime:  now,
		LastUpdated: now,
	}
}

// TransitionTo safely transitions the execution state.
func (e *BulkExecution) TransitionTo(next ExecutionState) error {
	if !isValidExecutionTransition(e.State, next) {
		return fmt.Errorf("BulkExecution (ID: %s): invalid state transition: %s -> %s", e.ID, e.State, next)
	}
	e.State = next
	e.LastUpdated = time.Now()
	return nil
}

// MarkAsRunning updates the execution state to RUNNING and stamps the start time.
func (e *BulkExecution) MarkAsRunning() {
	if err := e.TransitionTo(ExecutionStateRunning); err != nil {
		logger.Warnf("Could not update BulkExecution (ID: %s) state to running: %v", e.ID, err)
		e.State = ExecutionStateRunning
	}
	if e.StartTime == nil {
		now := time.Now()
		e.StartTime = &now
	}
	e.LastUpdated = time.Now()
}

// MarkAsCompleted updates the execution state to COMPLETED.
func (e *BulkExecution) MarkAsCompleted() {
	if err := e.TransitionTo(ExecutionStateCompleted); err != nil {
		logger.Warnf("Could not update BulkExecution (ID: %s) state to completed: %v", e.ID, err)
		e.State = ExecutionStateCompleted
	}
	now := time.Now()
	e.EndTime = &now
	e.LastUpdated = now
}

// MarkAsCancelled updates the execution state to CANCELLED.
func (e *BulkExecution) MarkAsCancelled() {
	if err := e.TransitionTo(ExecutionStateCancelled); err != nil {
		logger.Warnf("Could not update BulkExecution (ID: %s) state to cancelled: %v", e.ID, err)
		e.State = ExecutionStateCancelled
	}
	now := time.Now()
	e.EndTime = &now
	e.LastUpdated = now
}

// MarkAsFailed updates the execution state to FAILED and records the fault.
// Individual page failures never flip the execution to failed; this is
// reserved for execution-level faults such as an unreachable repository.
func (e *BulkExecution) MarkAsFailed(err error) {
	if terr := e.TransitionTo(ExecutionStateFailed); terr != nil {
		logger.Warnf("Could not update BulkExecution (ID: %s) state to failed: %v", e.ID, terr)
		e.State = ExecutionStateFailed
	}
	now := time.Now()
	e.EndTime = &now
	e.LastUpdated = now
	if err != nil {
		e.AddFailure(err)
	}
}

// AddFailure records an execution-level error message, skipping duplicates.
func (e *BulkExecution) AddFailure(err error) {
	if err == nil {
		return
	}
	msg := err.Error()
	for _, existing := range e.Failures {
		if existing == msg {
			return
		}
	}
	e.Failures = append(e.Failures, msg)
	e.LastUpdated = time.Now()
}

// AppendResult appends one per-page outcome and folds it into the counters.
// Callers must guarantee single-writer access (the owning executor goroutine).
func (e *BulkExecution) AppendResult(res ItemResult) {
	e.Results = append(e.Results, res)
	switch res.Outcome {
	case OutcomeSuccess:
		e.Counts.Succeeded++
	case OutcomeSkipped:
		e.Counts.Skipped++
	case OutcomeFailed:
		e.Counts.Failed++
	}
	e.LastUpdated = time.Now()
}

// Progress returns the completion percentage over the fixed target set.
func (e *BulkExecution) Progress() float64 {
	if len(e.TargetIDs) == 0 {
		return 100.0
	}
	return float64(len(e.Results)) / float64(len(e.TargetIDs)) * 100.0
}

// Snapshot returns a deep copy safe to hand to a polling client while the
// owning goroutine keeps mutating the original.
func (e *BulkExecution) Snapshot() *BulkExecution {
	cp := *e
	cp.TargetIDs = append(StringList(nil), e.TargetIDs...)
	cp.Results = append(ResultList(nil), e.Results...)
	cp.Failures = append(FailureList(nil), e.Failures...)
	if e.Params != nil {
		cp.Params = make(RawParams, len(e.Params))
		for k, v := range e.Params {
			cp.Params[k] = v
		}
	}
	if e.StartTime != nil {
		t := *e.StartTime
		cp.StartTime = &t
	}
	if e.EndTime != nil {
		t := *e.EndTime
		cp.EndTime = &t
	}
	return &cp
}

// FailureList holds a list of execution-level error messages.
type FailureList []string

// Value implements the `driver.Valuer` interface, converting the FailureList to a JSON string.
func (fl FailureList) Value() (driver.Value, error) {
	if fl == nil {
		return "[]", nil
	}
	data, err := json.Marshal(fl)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements the `sql.Scanner` interface, converting a JSON string to a FailureList.
func (fl *FailureList) Scan(value interface{}) error {
	if value == nil {
		*fl = make(FailureList, 0)
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported Scan type for FailureList: %T", value)
	}
	if len(b) == 0 {
		*fl = make(FailureList, 0)
		return nil
	}
	if err := json.Unmarshal(b, fl); err != nil {
		return fmt.Errorf("failed to unmarshal FailureList JSON: %w", err)
	}
	return nil
}
