package audit

import (
	"context"

	"go.uber.org/fx"
	"gorm.io/gorm"

	config "github.com/linksmith/chrono-scraper-sub006/pkg/curation/core/config"
)

// Module provides the audit sink to Fx, wired to the gorm connection and
// drained on application shutdown.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		func(db *gorm.DB, cfg *config.Config, lc fx.Lifecycle) (*GormSink, error) {
			sink, err := NewGormSink(db, cfg.Curation.Audit.BufferSize)
			if err != nil {
				return nil, err
			}
			lc.Append(fx.Hook{
				OnStop: func(ctx context.Context) error {
					return sink.Close(ctx)
				},
			})
			return sink, nil
		},
		fx.As(new(Sink)),
	)),
)
