package guard

import (
	"context"

	"go.uber.org/fx"

	config "github.com/linksmith/chrono-scraper-sub006/pkg/curation/core/config"
)

// Module provides the rate guard to Fx with background GC tied to the
// application lifecycle.
var Module = fx.Options(
	fx.Provide(func(cfg *config.Config, lc fx.Lifecycle) *Guard {
		g := New(&cfg.Curation.Guard, cfg.Curation.Bulk.MaxBatchSize)
		done := make(chan struct{})
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				g.StartGC(done)
				return nil
			},
			OnStop: func(context.Context) error {
				close(done)
				return nil
			},
		})
		return g
	}),
)
