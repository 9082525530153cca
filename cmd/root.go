// Package cmd defines the CLI commands of the pagelift executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pagelift/pagelift/internal/config"
	"github.com/pagelift/pagelift/internal/logging"
)

var cfgFile string

// runtimeDeps carries what every subcommand needs after the root hooks ran.
type runtimeDeps struct {
	cfg    config.Config
	logger *zap.Logger
}

var deps runtimeDeps

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pagelift",
		Short: "SEO content automation backend",
		Long: `pagelift scans a site's sitemap, scores each page against on-page SEO
heuristics, generates refreshed drafts with internal links, and publishes
them to WordPress. It runs as an HTTP API for the dashboard or as a
standalone CLI for one-shot scans and the autonomous refresh loop.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			zap.ReplaceGlobals(logger)
			deps = runtimeDeps{cfg: cfg, logger: logger}
			return nil
		},

		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if deps.logger != nil {
				_ = deps.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (env vars with PAGELIFT_ prefix also apply)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newScanCmd())
	cmd.AddCommand(newAutopilotCmd())

	return cmd
}

// Execute runs the CLI.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
