package main

import (
	"os"

	_ "embed"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	config "github.com/linksmith/chrono-scraper-sub006/pkg/curation/core/config"
	logger "github.com/linksmith/chrono-scraper-sub006/pkg/curation/support/util/logger"
)

// embeddedConfig embeds the content of the application's YAML configuration file.
// This file is used to load configuration at application startup.
//
//go:embed resources/application.yaml
var embeddedConfig []byte

// newRootCommand builds the chronod command tree.
func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "chronod",
		Short:        "Page curation service for the chrono-scraper archive",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCommand())
	return root
}

// newServeCommand builds the "serve" subcommand, which runs the HTTP API and
// the bulk execution engine until interrupted.
func newServeCommand() *cobra.Command {
	var envFilePath string
	var inMemory bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the curation HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			options := GetApplicationOptions(envFilePath, config.EmbeddedConfig(embeddedConfig), inMemory)
			app := fx.New(options...)
			if err := app.Err(); err != nil {
				return err
			}
			// Run blocks until SIGINT or SIGTERM, then executes the
			// registered OnStop hooks.
			app.Run()
			return nil
		},
	}

	cmd.Flags().StringVar(&envFilePath, "env-file", os.Getenv("ENV_FILE_PATH"), "path to a .env file with configuration overrides")
	cmd.Flags().BoolVar(&inMemory, "in-memory", false, "use in-memory persistence instead of the configured database")
	return cmd
}

// main is the entry point of the application.
func main() {
	if err := newRootCommand().Execute(); err != nil {
		logger.Fatalf("chronod terminated with an error: %v", err)
	}
}
