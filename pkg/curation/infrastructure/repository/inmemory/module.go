// Package inmemory integrates the in-memory repositories into the
// application's dependency graph using Fx.
package inmemory

import (
	"go.uber.org/fx"

	repository "github.com/linksmith/chrono-scraper-sub006/pkg/curation/core/domain/repository"
)

// Module is an Fx module that provides the in-memory repositories behind the
// repository interfaces.
var Module = fx.Options(
	fx.Provide(
		fx.Annotate(
			NewInMemoryPageRepository,
			fx.As(new(repository.PageRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			NewInMemoryExecutionRepository,
			fx.As(new(repository.ExecutionRepository)),
		),
	),
)
