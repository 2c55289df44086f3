package guard

// Package guard enforces rate and quota limits on manual curation traffic so
// that review tooling cannot starve the scraping pipeline.

import (
	"fmt"
	"sync"
	"time"

	config "github.com/linksmith/chrono-scraper-sub006/pkg/curation/core/config"
	model "github.com/linksmith/chrono-scraper-sub006/pkg/curation/core/domain/model"
	exception "github.com/linksmith/chrono-scraper-sub006/pkg/curation/support/util/exception"
	logger "github.com/linksmith/chrono-scraper-sub006/pkg/curation/support/util/logger"
)

const moduleName = "guard"

// Scope identifies which limit class a request falls under.
type Scope string

const (
	// ScopeStandard covers single-page manual actions.
	ScopeStandard Scope = "standard"
	// ScopeBulk covers bulk operation submissions.
	ScopeBulk Scope = "bulk"
)

// LimitError reports a rejected request together with the limit that was hit
// and when the caller may retry.
type LimitError struct {
	Scope         Scope
	Limit         int
	WindowSeconds int
	RetryAfter    time.Duration
}

// Error implements the error interface.
func (e *LimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s actions: %d per %ds window, retry after %s",
		e.Scope, e.Limit, e.WindowSeconds, e.RetryAfter.Round(time.Second))
}

// Is reports whether target is the rate-limited sentinel, so callers can use
// errors.Is(err, exception.ErrRateLimited).
func (e *LimitError) Is(target error) bool {
	return target == exception.ErrRateLimited
}

type bucket struct {
	mu      sync.Mutex
	count   int
	resetAt time.Time
}

// Guard applies per-caller fixed-window rate limits and per-batch quota caps.
// Window state lives in memory; limits come from configuration.
type Guard struct {
	cfg     *config.GuardConfig
	maxSize int
	buckets sync.Map
	now     func() time.Time
}

// New creates a Guard from the configured limits. maxBatchSize is the
// fallback per-batch cap for actions without an explicit entry.
func New(cfg *config.GuardConfig, maxBatchSize int) *Guard {
	return &Guard{
		cfg:     cfg,
		maxSize: maxBatchSize,
		now:     time.Now,
	}
}

// Allow consumes one slot from the caller's window for the given scope.
// It returns a *LimitError when the window is exhausted.
func (g *Guard) Allow(caller string, scope Scope) error {
	limit, windowSeconds := g.limitsFor(scope)
	if limit <= 0 {
		return nil
	}

	key := string(scope) + ":" + caller
	now := g.now()
	window := time.Duration(windowSeconds) * time.Second

	val, loaded := g.buckets.LoadOrStore(key, &bucket{count: 1, resetAt: now.Add(window)})
	if !loaded {
		return nil
	}

	b := val.(*bucket)
	b.mu.Lock()
	defer b.mu.Unlock()
	if now.After(b.resetAt) {
		b.count = 1
		b.resetAt = now.Add(window)
		return nil
	}
	b.count++
	if b.count <= limit {
		return nil
	}

	retryAfter := b.resetAt.Sub(now)
	logger.Warnf("Rate limit hit (caller: %s, scope: %s, limit: %d/%ds)", caller, scope, limit, windowSeconds)
	return &LimitError{
		Scope:         scope,
		Limit:         limit,
		WindowSeconds: windowSeconds,
		RetryAfter:    retryAfter,
	}
}

// CheckBatchSize validates a bulk request's target count against the
// per-action cap, falling back to the global maximum batch size.
func (g *Guard) CheckBatchSize(action model.BulkAction, size int) error {
	limit := g.maxSize
	if configured, ok := g.cfg.ActionCaps[string(action)]; ok && configured > 0 {
		limit = configured
	}
	if size > limit {
		return exception.Newf(moduleName, exception.CodeInvalidParameter,
			"batch of %d pages exceeds the %d-page cap for action %s", size, limit, action)
	}
	return nil
}

// StartGC launches a goroutine that drops expired windows until done closes.
func (g *Guard) StartGC(done <-chan struct{}) {
	tick := time.NewTicker(5 * time.Minute)
	go func() {
		defer tick.Stop()
		for {
			select {
			case <-done:
				return
			case <-tick.C:
				g.gc()
			}
		}
	}()
}

func (g *Guard) gc() {
	now := g.now()
	g.buckets.Range(func(key, value any) bool {
		b := value.(*bucket)
		b.mu.Lock()
		expired := now.After(b.resetAt)
		b.mu.Unlock()
		if expired {
			g.buckets.Delete(key)
		}
		return true
	})
}

func (g *Guard) limitsFor(scope Scope) (int, int) {
	switch scope {
	case ScopeBulk:
		return g.cfg.BulkLimit, g.cfg.BulkWindowSeconds
	default:
		return g.cfg.StandardLimit, g.cfg.StandardWindowSeconds
	}
}
