// Package exception provides the error taxonomy shared by the page curation
// core. Errors are classified through sentinel values and a CurationError
// wrapper carrying the module of origin and a stable API error code, so that
// per-item outcomes and HTTP responses can be derived without string matching.
package exception

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorCode is the stable, API-facing error vocabulary.
type ErrorCode string

const (
	CodePageNotFound           ErrorCode = "SCRAPE_PAGE_NOT_FOUND"
	CodeExecutionNotFound      ErrorCode = "EXECUTION_NOT_FOUND"
	CodeInvalidParameter       ErrorCode = "INVALID_PARAMETER"
	CodeRateLimitExceeded      ErrorCode = "RATE_LIMIT_EXCEEDED"
	CodeInvalidTransition      ErrorCode = "INVALID_TRANSITION"
	CodeConcurrentModification ErrorCode = "CONCURRENT_MODIFICATION"
	CodeRepositoryTimeout      ErrorCode = "REPOSITORY_TIMEOUT"
	CodeExecutionFault         ErrorCode = "EXECUTION_FAULT"
)

// Sentinel errors for the taxonomy. Callers classify with errors.Is; the
// concrete CurationError instances produced throughout the core report
// themselves as the sentinel matching their code.
var (
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrValidation             = errors.New("validation error")
	ErrRateLimited            = errors.New("rate limit exceeded")
	ErrRepositoryTimeout      = errors.New("repository timeout")
	ErrExecutionFault         = errors.New("execution fault")
)

// sentinelByCode maps each ErrorCode to its sentinel, where one exists.
// NotFound codes have their sentinels in the repository package to keep the
// ownership of those errors next to the lookups that produce them.
var sentinelByCode = map[ErrorCode]error{
	CodeInvalidParameter:       ErrValidation,
	CodeRateLimitExceeded:      ErrRateLimited,
	CodeInvalidTransition:      ErrInvalidTransition,
	CodeConcurrentModification: ErrConcurrentModification,
	CodeRepositoryTimeout:      ErrRepositoryTimeout,
	CodeExecutionFault:         ErrExecutionFault,
}

// CurationError is the custom error type produced by the curation core.
// It holds the module where the error occurred, a message, the wrapped
// original error, the API error code, and a retryability flag consumed by
// the bulk executor's retry policy.
type CurationError struct {
	// Module indicates where the error occurred (e.g., "override", "bulk", "repository").
	Module string
	// Code is the stable API error code.
	Code ErrorCode
	// Message is a concise description of the error.
	Message string
	// OriginalErr is the wrapped original error.
	OriginalErr error
	// isRetryable indicates whether this error is transient and worth retrying.
	isRetryable bool
	// StackTrace is the stack trace at the time of the error (for debugging).
	StackTrace string
}

// New creates a new CurationError instance.
func New(module string, code ErrorCode, message string, originalErr error, isRetryable bool) *CurationError {
	buf := make([]byte, 2048)
	n := runtime.Stack(buf, false)

	return &CurationError{
		Module:      module,
		Code:        code,
		Message:     message,
		OriginalErr: originalErr,
		isRetryable: isRetryable,
		StackTrace:  string(buf[:n]),
	}
}

// Newf creates a new non-retryable CurationError with a formatted message.
func Newf(module string, code ErrorCode, format string, a ...interface{}) *CurationError {
	return New(module, code, fmt.Sprintf(format, a...), nil, false)
}

// Error implements the error interface.
func (e *CurationError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Module, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("[%s] %s", e.Module, e.Message)
}

// Unwrap returns the wrapped original error.
func (e *CurationError) Unwrap() error {
	return e.OriginalErr
}

// IsRetryable reports whether this error is transient.
func (e *CurationError) IsRetryable() bool {
	return e.isRetryable
}

// Is makes errors.Is match a CurationError against the sentinel of its code,
// in addition to the standard unwrap chain.
func (e *CurationError) Is(target error) bool {
	if s, ok := sentinelByCode[e.Code]; ok && target == s {
		return true
	}
	return false
}

// CodeOf extracts the ErrorCode from an error chain. Errors outside the
// taxonomy map to CodeExecutionFault, the catch-all for infrastructure faults.
func CodeOf(err error) ErrorCode {
	var ce *CurationError
	if errors.As(err, &ce) {
		return ce.Code
	}
	switch {
	case errors.Is(err, ErrInvalidTransition):
		return CodeInvalidTransition
	case errors.Is(err, ErrConcurrentModification):
		return CodeConcurrentModification
	case errors.Is(err, ErrValidation):
		return CodeInvalidParameter
	case errors.Is(err, ErrRateLimited):
		return CodeRateLimitExceeded
	case errors.Is(err, ErrRepositoryTimeout):
		return CodeRepositoryTimeout
	}
	return CodeExecutionFault
}

// IsRetryable reports whether any error in the chain is a retryable CurationError.
func IsRetryable(err error) bool {
	var ce *CurationError
	if errors.As(err, &ce) {
		return ce.IsRetryable()
	}
	return false
}

// ExtractErrorMessage extracts a clean message string from an error.
// For CurationError, it returns the Message field without the module prefix.
func ExtractErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var ce *CurationError
	if errors.As(err, &ce) {
		return ce.Message
	}
	return err.Error()
}
