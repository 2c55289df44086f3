package main

import (
	"context"

	"go.uber.org/fx"

	api "github.com/linksmith/chrono-scraper-sub006/pkg/curation/api"
	audit "github.com/linksmith/chrono-scraper-sub006/pkg/curation/audit"
	usecase "github.com/linksmith/chrono-scraper-sub006/pkg/curation/core/application/usecase"
	config "github.com/linksmith/chrono-scraper-sub006/pkg/curation/core/config"
	bulk "github.com/linksmith/chrono-scraper-sub006/pkg/curation/engine/bulk"
	guard "github.com/linksmith/chrono-scraper-sub006/pkg/curation/engine/guard"
	archive "github.com/linksmith/chrono-scraper-sub006/pkg/curation/infrastructure/archive"
	inframetrics "github.com/linksmith/chrono-scraper-sub006/pkg/curation/infrastructure/metrics"
	gormrepo "github.com/linksmith/chrono-scraper-sub006/pkg/curation/infrastructure/repository/gorm"
	inmemoryRepo "github.com/linksmith/chrono-scraper-sub006/pkg/curation/infrastructure/repository/inmemory"
	logger "github.com/linksmith/chrono-scraper-sub006/pkg/curation/support/util/logger"
)

// GetApplicationOptions builds the list of fx.Option for the curation server.
// When inMemory is true, the gorm-backed persistence and audit trail are
// replaced with in-memory equivalents, which is useful for local smoke runs.
func GetApplicationOptions(envFilePath string, embeddedConfig config.EmbeddedConfig, inMemory bool) []fx.Option {
	var options []fx.Option

	options = append(options, fx.Supply(
		embeddedConfig,
		fx.Annotate(envFilePath, fx.ResultTags(`name:"envFilePath"`)),
	))
	options = append(options, logger.Module)
	options = append(options, config.Module)
	options = append(options, inframetrics.Module)

	if inMemory {
		options = append(options, inmemoryRepo.Module)
		options = append(options, fx.Provide(audit.NewNoOpSink))
	} else {
		options = append(options, gormrepo.Module)
		options = append(options, audit.Module)
	}

	options = append(options, guard.Module)
	options = append(options, bulk.Module)
	options = append(options, usecase.Module)
	options = append(options, archive.Module)
	options = append(options, api.Module)
	options = append(options, fx.Invoke(setupTracing))

	return options
}

// setupTracing installs the global tracer provider and ties its shutdown to
// the application lifecycle.
func setupTracing(cfg *config.Config, lc fx.Lifecycle) error {
	shutdown, err := inframetrics.SetupTracerProvider(context.Background(), &cfg.Curation.Telemetry)
	if err != nil {
		return err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return shutdown(ctx)
		},
	})
	return nil
}
