package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pagelift/pagelift/internal/api"
	"github.com/pagelift/pagelift/internal/app"
	"github.com/pagelift/pagelift/internal/pipeline"
	"github.com/pagelift/pagelift/internal/seo"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard HTTP API and scan workers",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, deps.cfg, deps.logger)
	if err != nil {
		return fmt.Errorf("initialize application: %w", err)
	}
	defer a.Close(context.Background())

	dispatch := pipeline.NewDispatcher(a.Queue, a.Workers)

	// Typed nils must not reach the interface fields.
	var publisher api.Publisher
	if a.Publisher != nil {
		publisher = a.Publisher
	}
	var gen seo.Generator
	if a.Generator != nil {
		gen = a.Generator
	}

	server := api.NewServer(
		a.Store,
		dispatch,
		a.Registry,
		publisher,
		gen,
		a.IDGen,
		a.Clock,
		a.Metrics,
		deps.cfg,
		deps.logger.Named("api"),
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", deps.cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		deps.logger.Info("dispatcher started", zap.Int("workers", len(a.Workers)))
		dispatch.Run(ctx)
	}()

	go func() {
		deps.logger.Info("http server started", zap.Int("port", deps.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			deps.logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	deps.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		deps.logger.Error("server shutdown error", zap.Error(err))
	}
	deps.logger.Info("shutdown complete")
	return nil
}
