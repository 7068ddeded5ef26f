package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hackgods/clinic-scheduling/internal/api"
	"github.com/hackgods/clinic-scheduling/internal/app"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/logging"
	"github.com/hackgods/clinic-scheduling/internal/metrics"
	"github.com/hackgods/clinic-scheduling/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("api-server", "info").Error("config load error", "err", err)
		os.Exit(1)
	}

	logger := logging.New("api-server", cfg.LogLevel)
	logger.Info("api-server starting up", "env", cfg.Env, "http_port", cfg.HTTPPort,
		"store", cfg.StoreBackend, "lock", cfg.LockBackend)

	flush, err := observability.InitSentry(cfg.SentryDSN, cfg.Env, cfg.Version)
	if err != nil {
		logger.Warn("sentry disabled", "err", err)
	}
	defer flush()

	metrics.Init()

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(rootCtx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "err", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr: ":" + cfg.HTTPPort,
		Handler: api.NewRouter(api.RouterConfig{
			Appointments:  application.Appointments,
			Ratings:       application.Ratings,
			Registry:      application.Registry,
			Slots:         application.Slots,
			EventLog:      application.EventLog,
			Health:        application.Health,
			Logger:        logger,
			EnableMetrics: true,
			Env:           cfg.Env,
			Version:       cfg.Version,
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			logger.Error("http server failed", "err", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "err", err)
	}
	if err := application.Close(shutdownCtx); err != nil {
		logger.Error("error closing backends", "err", err)
	}
	logger.Info("api-server stopped")
}
