package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pagelift/pagelift/internal/app"
)

func newAutopilotCmd() *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "autopilot",
		Short: "Run the autonomous scan-score-generate-publish loop",
		Long: `Repeatedly scans the configured site, picks the weakest-scoring pages,
generates refreshed drafts with internal links, and publishes them to
WordPress. Requires ai.api_key and wordpress.base_url to be configured.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAutopilot(cmd, once)
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run a single cycle and exit")
	return cmd
}

func runAutopilot(cmd *cobra.Command, once bool) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := deps.cfg
	if once {
		cfg.Autopilot.StopAfterCycle = true
	}

	a, err := app.New(ctx, cfg, deps.logger)
	if err != nil {
		return fmt.Errorf("initialize application: %w", err)
	}
	defer a.Close(context.Background())

	pilot, err := a.Autopilot()
	if err != nil {
		return err
	}

	if err := pilot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("autopilot: %w", err)
	}
	return nil
}
