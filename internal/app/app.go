// Package app assembles the scheduling services from configuration. The API
// server and the background binaries share it so they agree on backends.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hackgods/clinic-scheduling/internal/api"
	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/domain"
	"github.com/hackgods/clinic-scheduling/internal/events"
	"github.com/hackgods/clinic-scheduling/internal/lock"
	"github.com/hackgods/clinic-scheduling/internal/metrics"
	"github.com/hackgods/clinic-scheduling/internal/rating"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
	"github.com/hackgods/clinic-scheduling/internal/registry"
	"github.com/hackgods/clinic-scheduling/internal/store"
	"github.com/hackgods/clinic-scheduling/internal/store/memory"
	"github.com/hackgods/clinic-scheduling/internal/store/postgres"
)

type App struct {
	Store        store.Store
	Registry     *registry.Service
	Validator    *availability.Validator
	Slots        *availability.Generator
	Appointments *appointment.Service
	Ratings      *rating.Service
	Events       *events.Dispatcher
	EventLog     *events.EventLog

	// Health lists the dependencies readiness should probe.
	Health []api.Dependency

	closers []func(ctx context.Context) error
	logger  *slog.Logger
}

// New connects the configured backends, seeds the default lifecycle states
// and wires the services together.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	a := &App{logger: logger}

	raw, err := a.openStore(ctx, cfg)
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	policy := store.DefaultPolicy()
	if cfg.StoreTimeout > 0 {
		policy.Timeout = cfg.StoreTimeout
	}
	if cfg.StoreMaxAttempts > 0 {
		policy.MaxAttempts = uint(cfg.StoreMaxAttempts)
	}
	policy.OnRetry = func(op string, err error, wait time.Duration) {
		metrics.StoreRetries.WithLabelValues(op).Inc()
		logger.Warn("retrying store call", "op", op, "err", err, "wait", wait)
	}
	a.Store = store.WithPolicy(raw, policy)
	a.Health = append(a.Health, api.Dependency{Name: "store", Check: a.Store, Critical: true})

	locker, err := a.openLocker(cfg)
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}

	a.Registry = registry.NewService(a.Store, locker, logger)
	if _, err := a.Registry.SeedDefaultStates(ctx); err != nil {
		_ = a.Close(ctx)
		return nil, fmt.Errorf("seed lifecycle states: %w", err)
	}

	a.EventLog = events.NewEventLog(a.Store)
	subscribers := []events.Subscriber{a.EventLog}
	if len(cfg.KafkaBrokers) > 0 {
		pub := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		subscribers = append(subscribers, pub)
		a.closers = append(a.closers, func(context.Context) error { return pub.Close() })
		logger.Info("publishing events to kafka", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}
	a.Events = events.NewDispatcher(logger, cfg.EventBuffer, subscribers...)
	a.Events.OnDrop = func(events.Event) { metrics.EventsDropped.Inc() }
	// The dispatcher drains before the kafka writer closes.
	a.closers = append([]func(context.Context) error{a.Events.Close}, a.closers...)

	a.Validator = availability.NewValidator(a.Store, a.Registry, logger)
	a.Slots = availability.NewGenerator(a.Registry, a.Validator, domain.Interval{Start: cfg.WorkdayStart, End: cfg.WorkdayEnd}, cfg.SlotSize)
	a.Appointments = appointment.NewService(a.Store, a.Registry, a.Validator, locker, logger, appointment.WithNotifier(a.Events))
	a.Ratings = rating.NewService(a.Store, a.Registry, a.Appointments, locker, a.Events, logger)

	return a, nil
}

func (a *App) openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	if cfg.StoreBackend == config.StoreBackendMemory {
		a.logger.Warn("using in-memory store, data is lost on exit")
		return memory.New(), nil
	}

	pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{
		MaxConns: cfg.PostgresMaxConns,
		MinConns: cfg.PostgresMinConns,
	})
	if err != nil {
		return nil, fmt.Errorf("postgres connection error: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error { pool.Close(); return nil })

	pg := postgres.New(pool)
	if err := pg.Migrate(pgCtx); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	a.logger.Info("connected to postgres")
	return pg, nil
}

func (a *App) openLocker(cfg config.Config) (lock.Locker, error) {
	if cfg.LockBackend == config.LockBackendLocal {
		a.logger.Warn("using in-process locks, run a single replica")
		return lock.NewLocal(cfg.LockWait), nil
	}

	rdb, err := redisclient.NewRedisClient(redisclient.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		return nil, fmt.Errorf("redis connection error: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error { return rdb.Close() })
	a.Health = append(a.Health, api.Dependency{Name: "redis", Check: redisclient.Pinger{Client: rdb}})
	a.logger.Info("connected to redis")
	return redisclient.NewLocker(rdb, cfg.LockTTL, cfg.LockWait), nil
}

// Close flushes pending events, then closes connections.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for _, c := range a.closers {
		if err := c(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
