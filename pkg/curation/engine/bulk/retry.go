package bulk

import (
	"math"
	"time"

	config "github.com/linksmith/chrono-scraper-sub006/pkg/curation/core/config"
	exception "github.com/linksmith/chrono-scraper-sub006/pkg/curation/support/util/exception"
)

// RetryPolicy is an interface that defines per-item retry logic.
// It decides whether an error is worth another attempt and how long to wait
// before it.
type RetryPolicy interface {
	// ShouldRetry determines if a given error is retryable.
	ShouldRetry(err error) bool
	// BackoffInterval returns the waiting time before the given attempt.
	// attempt starts from 1.
	BackoffInterval(attempt int) time.Duration
	// MaxAttempts returns the maximum number of attempts per item.
	MaxAttempts() int
}

// defaultRetryPolicy retries only errors flagged as transient, with
// exponential backoff capped at a maximum interval. Transition violations
// and lost optimistic-concurrency races are never retried: replaying them
// cannot succeed and would double-apply observable effects.
type defaultRetryPolicy struct {
	maxAttempts     int
	initialInterval time.Duration
	maxInterval     time.Duration
	factor          float64
}

// NewRetryPolicy creates a RetryPolicy from the bulk retry configuration.
func NewRetryPolicy(cfg *config.RetryConfig) RetryPolicy {
	return &defaultRetryPolicy{
		maxAttempts:     cfg.MaxAttempts,
		initialInterval: time.Duration(cfg.InitialInterval) * time.Millisecond,
		maxInterval:     time.Duration(cfg.MaxInterval) * time.Millisecond,
		factor:          cfg.Factor,
	}
}

// MaxAttempts returns the maximum number of attempts per item.
func (p *defaultRetryPolicy) MaxAttempts() int {
	if p.maxAttempts < 1 {
		return 1
	}
	return p.maxAttempts
}

// ShouldRetry determines if an error is retryable based on its transient flag.
func (p *defaultRetryPolicy) ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	return exception.IsRetryable(err)
}

// BackoffInterval returns the exponential backoff interval for the attempt.
func (p *defaultRetryPolicy) BackoffInterval(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	factor := p.factor
	if factor <= 0 {
		factor = 1
	}
	interval := time.Duration(float64(p.initialInterval) * math.Pow(factor, float64(attempt-1)))
	if p.maxInterval > 0 && interval > p.maxInterval {
		interval = p.maxInterval
	}
	return interval
}

// Verify interfaces
var _ RetryPolicy = (*defaultRetryPolicy)(nil)
