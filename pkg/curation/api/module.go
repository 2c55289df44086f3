package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/fx"

	usecase "github.com/linksmith/chrono-scraper-sub006/pkg/curation/core/application/usecase"
	config "github.com/linksmith/chrono-scraper-sub006/pkg/curation/core/config"
	metrics "github.com/linksmith/chrono-scraper-sub006/pkg/curation/core/metrics"
	guard "github.com/linksmith/chrono-scraper-sub006/pkg/curation/engine/guard"
	logger "github.com/linksmith/chrono-scraper-sub006/pkg/curation/support/util/logger"
)

// Module provides the HTTP router and server, started and stopped with the
// application lifecycle.
var Module = fx.Options(
	fx.Provide(func(applier usecase.OverrideApplier, operator usecase.BulkOperator, g *guard.Guard, recorder metrics.MetricRecorder) http.Handler {
		return NewRouter(Deps{
			Applier:  applier,
			Operator: operator,
			Guard:    g,
			Recorder: recorder,
		})
	}),
	fx.Invoke(func(handler http.Handler, cfg *config.Config, lc fx.Lifecycle) {
		server := &http.Server{
			Addr:              cfg.Curation.Server.Address,
			Handler:           handler,
			ReadHeaderTimeout: time.Duration(cfg.Curation.Server.ReadTimeoutSeconds) * time.Second,
		}
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				go func() {
					logger.Infof("HTTP server listening on %s", server.Addr)
					if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						logger.Errorf("HTTP server stopped unexpectedly: %v", err)
					}
				}()
				return nil
			},
			OnStop: func(ctx context.Context) error {
				shutdownCtx, cancel := context.WithTimeout(ctx,
					time.Duration(cfg.Curation.Server.ShutdownTimeoutSeconds)*time.Second)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			},
		})
	}),
)
