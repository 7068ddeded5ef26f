package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hackgods/clinic-scheduling/internal/app"
	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/logging"
	"github.com/hackgods/clinic-scheduling/internal/observability"
	"github.com/hackgods/clinic-scheduling/internal/rating"
)

// rating-reconciler periodically recomputes every provider's average rating
// so that an average left stale by a failed follow-up write converges.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("rating-reconciler", "info").Error("config load error", "err", err)
		os.Exit(1)
	}

	logger := logging.New("rating-reconciler", cfg.LogLevel)
	logger.Info("rating-reconciler starting up", "env", cfg.Env, "interval", cfg.ReconcileInterval)

	flush, err := observability.InitSentry(cfg.SentryDSN, cfg.Env, cfg.Version)
	if err != nil {
		logger.Warn("sentry disabled", "err", err)
	}
	defer flush()

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(rootCtx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "err", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := application.Close(ctx); err != nil {
			logger.Error("error closing backends", "err", err)
		}
	}()

	// Run once at startup
	runOnce(rootCtx, application.Ratings, logger)

	ticker := time.NewTicker(cfg.ReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info("shutdown signal received, stopping reconciler")
			return
		case <-ticker.C:
			runOnce(rootCtx, application.Ratings, logger)
		}
	}
}

func runOnce(ctx context.Context, svc *rating.Service, logger *slog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	start := time.Now()
	n, err := svc.RecomputeAll(runCtx)
	if apperr.IsRetryable(err) {
		logger.Warn("reconcile run deferred to next tick", "providers", n, "err", err)
		return
	}
	if err != nil {
		logger.Error("reconcile run error", "providers", n, "err", err)
		observability.CaptureError(ctx, err, map[string]string{"job": "rating-reconciler"})
		return
	}
	logger.Info("reconcile run complete", "providers", n, "duration", time.Since(start))
}
