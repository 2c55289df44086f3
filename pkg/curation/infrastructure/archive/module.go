package archive

import (
	"go.uber.org/fx"

	config "github.com/linksmith/chrono-scraper-sub006/pkg/curation/core/config"
	bulk "github.com/linksmith/chrono-scraper-sub006/pkg/curation/engine/bulk"
)

// Module wires the Parquet archiver into the bulk engine when enabled.
var Module = fx.Options(
	fx.Invoke(func(cfg *config.Config, executor *bulk.Executor) error {
		if !cfg.Curation.Archive.Enabled {
			return nil
		}
		archiver, err := NewParquetArchiver(cfg.Curation.Archive.Directory)
		if err != nil {
			return err
		}
		executor.SetArchiver(archiver)
		return nil
	}),
)
