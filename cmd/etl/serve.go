package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	httpadapter "github.com/couchcryptid/listing-etl/internal/adapter/http"
	"github.com/couchcryptid/listing-etl/internal/observability"
	"github.com/couchcryptid/listing-etl/internal/pipeline"
)

var serveInterval time.Duration

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Reconcile listings periodically and expose health and metrics endpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		if serveInterval <= 0 {
			return errors.New("--interval must be positive")
		}
		criteria, err := flags.criteria()
		if err != nil {
			return err
		}
		a, err := newApp(cfg, flags, observability.NewMetrics(), logger)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		scheduler := pipeline.NewScheduler(a.reconciler, criteria, serveInterval, clockwork.NewRealClock(), logger)
		srv := httpadapter.NewServer(cfg.HTTPAddr, scheduler, logger)

		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()

		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := scheduler.Run(ctx); err != nil {
				logger.Error("scheduler error", "error", err)
			}
		}()

		<-ctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}

		closeAfterCycle(shutdownCtx, done, a)
		logger.Info("shutdown complete")
		return nil
	},
}

// closeAfterCycle closes the sinks once the scheduler has returned. If the
// deadline passes first the sinks are left open, since the running cycle may
// still be exporting to them. It reports whether the sinks were closed.
func closeAfterCycle(ctx context.Context, done <-chan struct{}, a *app) bool {
	select {
	case <-done:
		a.close()
		return true
	case <-ctx.Done():
		a.logger.Warn("cycle did not stop before the shutdown timeout, sinks left open")
		return false
	}
}

func init() {
	serveCmd.Flags().DurationVar(&serveInterval, "interval", 6*time.Hour, "time between reconciliation cycles")
}
