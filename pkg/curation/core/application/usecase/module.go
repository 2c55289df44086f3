package usecase

import (
	"time"

	"go.uber.org/fx"

	audit "github.com/linksmith/chrono-scraper-sub006/pkg/curation/audit"
	config "github.com/linksmith/chrono-scraper-sub006/pkg/curation/core/config"
	repository "github.com/linksmith/chrono-scraper-sub006/pkg/curation/core/domain/repository"
	metrics "github.com/linksmith/chrono-scraper-sub006/pkg/curation/core/metrics"
	bulk "github.com/linksmith/chrono-scraper-sub006/pkg/curation/engine/bulk"
	guard "github.com/linksmith/chrono-scraper-sub006/pkg/curation/engine/guard"
)

// Module is the Fx module for the OverrideApplier and BulkOperator use cases.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		func(pages repository.PageRepository, sink audit.Sink, recorder metrics.MetricRecorder, cfg *config.Config) *DefaultOverrideApplier {
			timeout := time.Duration(cfg.Curation.Override.RepositoryTimeoutSeconds) * time.Second
			return NewDefaultOverrideApplier(pages, sink, recorder, timeout)
		},
		fx.As(new(OverrideApplier)),
	)),
	fx.Provide(fx.Annotate(
		func(applier OverrideApplier, executor *bulk.Executor, g *guard.Guard, cfg *config.BulkConfig) *DefaultBulkOperator {
			return NewDefaultBulkOperator(applier, executor, g, cfg.MaxBatchSize, cfg.SyncThreshold)
		},
		fx.As(new(BulkOperator)),
	)),
)
