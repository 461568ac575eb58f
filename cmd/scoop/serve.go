package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teovin/scoop/internal/capture"
	"github.com/teovin/scoop/internal/domain"
	"github.com/teovin/scoop/internal/infrastructure/config"
	"github.com/teovin/scoop/internal/infrastructure/httpapi"
	obs "github.com/teovin/scoop/internal/infrastructure/observability"
)

var serveFlags struct {
	addr string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the capture API server",
	Long: `Serve exposes capture submission, status, archive download, HAR export and
a live monitor websocket over HTTP. Captures run in the background, each with
its own browser and intercepting proxy.`,
	RunE: runServeCmd,
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.addr, "addr", ":9036", "listen address")
	rootCmd.AddCommand(serveCmd)
}

func runServeCmd(cmd *cobra.Command, args []string) error {
	cfg := config.FromEnv()
	cfg.LogLevel = logLevel
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := obs.NewLogger(cfg.LogLevel, false)
	metrics := obs.NewMetrics()
	monitor := httpapi.NewMonitorHub()

	runner := func(ctx context.Context, c *capture.Capture, onEvent capture.EventFunc) (domain.State, error) {
		return runCapture(ctx, c, logger, metrics, onEvent)
	}
	captures := httpapi.NewCaptureService(cfg, runner, logger, monitor)

	deps := &httpapi.Deps{
		Cfg:      cfg,
		Logger:   logger,
		Metrics:  metrics,
		Captures: captures,
		Monitor:  monitor,
	}
	srv := &http.Server{
		Addr:              serveFlags.addr,
		Handler:           httpapi.NewRouter(deps),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", serveFlags.addr).Msg("capture server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
