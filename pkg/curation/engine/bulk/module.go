package bulk

import (
	"context"
	"time"

	"go.uber.org/fx"

	config "github.com/linksmith/chrono-scraper-sub006/pkg/curation/core/config"
	repository "github.com/linksmith/chrono-scraper-sub006/pkg/curation/core/domain/repository"
	metrics "github.com/linksmith/chrono-scraper-sub006/pkg/curation/core/metrics"
)

// Module provides the bulk execution engine components to Fx.
var Module = fx.Options(
	fx.Provide(func(cfg *config.BulkConfig) RetryPolicy {
		return NewRetryPolicy(&cfg.Retry)
	}),
	fx.Provide(func(
		executions repository.ExecutionRepository,
		recorder metrics.MetricRecorder,
		tracer metrics.Tracer,
		retry RetryPolicy,
		cfg *config.BulkConfig,
		lc fx.Lifecycle,
	) *Executor {
		executor := NewExecutor(executions, recorder, tracer, retry,
			cfg.WorkerCount, time.Duration(cfg.RetentionMinutes)*time.Minute)
		done := make(chan struct{})
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				if err := executor.Recover(ctx); err != nil {
					return err
				}
				executor.StartEviction(done)
				return nil
			},
			OnStop: func(context.Context) error {
				close(done)
				return nil
			},
		})
		return executor
	}),
)
