// Package gormrepo integrates the gorm-backed repositories into the
// application's dependency graph using Fx.
package gormrepo

import (
	"context"

	"go.uber.org/fx"
	"gorm.io/gorm"

	config "github.com/linksmith/chrono-scraper-sub006/pkg/curation/core/config"
	repository "github.com/linksmith/chrono-scraper-sub006/pkg/curation/core/domain/repository"
)

// Module is an Fx module that provides the gorm connection and repositories.
var Module = fx.Options(
	fx.Provide(func(cfg *config.DatabaseConfig, lc fx.Lifecycle) (*gorm.DB, error) {
		db, err := NewConnection(cfg)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				sqlDB, err := db.DB()
				if err != nil {
					return err
				}
				return sqlDB.Close()
			},
		})
		return db, nil
	}),
	fx.Provide(fx.Annotate(
		NewGormPageRepository,
		fx.As(new(repository.PageRepository)),
	)),
	fx.Provide(fx.Annotate(
		NewGormExecutionRepository,
		fx.As(new(repository.ExecutionRepository)),
	)),
)
