// Package main is the entry point for the exchange rates service.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ratesvc/internal/auth"
	"ratesvc/internal/cache"
	"ratesvc/internal/config"
	"ratesvc/internal/provider"
	"ratesvc/internal/resilience"
	"ratesvc/internal/service"
	"ratesvc/internal/worker"
)

// App holds all application dependencies and manages their lifecycle.
type App struct {
	cfg            *config.Config
	logger         *zap.SugaredLogger
	rdbCache       *redis.Client // nil when redis.cache_addr is not configured
	rdbAsynq       *redis.Client
	asynqClient    *asynq.Client
	asynqServer    *asynq.Server
	asynqMux       *asynq.ServeMux
	asynqScheduler *asynq.Scheduler
	httpServer     *http.Server

	// set only when the in-memory caches are in use; swept by Run.
	memLatest  *cache.Memory[provider.RateSnapshot]
	memHistory *cache.Memory[[]provider.HistoricalRate]
}

// NewApp initializes all dependencies and returns a ready-to-run App.
func NewApp(cfg *config.Config, logger *zap.SugaredLogger) (*App, error) {
	app := &App{
		cfg:    cfg,
		logger: logger,
	}

	if err := app.initStorage(); err != nil {
		_ = app.close()
		return nil, err
	}

	if err := app.initServices(); err != nil {
		_ = app.close()
		return nil, err
	}

	return app, nil
}

// close releases Redis connections and the Asynq client.
func (app *App) close() error {
	var errs []error
	if app.asynqClient != nil {
		if err := app.asynqClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("asynq client close: %w", err))
		}
	}
	if app.rdbAsynq != nil {
		if err := app.rdbAsynq.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis asynq close: %w", err))
		}
	}
	if app.rdbCache != nil {
		if err := app.rdbCache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis cache close: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (app *App) initStorage() error {
	if app.cfg.Redis.CacheAddr == "" {
		app.logger.Infow("No Redis cache configured, using in-memory caches")
		return nil
	}

	app.rdbCache = redis.NewClient(&redis.Options{
		Addr: app.cfg.Redis.CacheAddr,
	})
	if err := app.rdbCache.Ping(context.Background()).Err(); err != nil {
		return fmt.Errorf("connect to Redis (cache, %s): %w", app.cfg.Redis.CacheAddr, err)
	}
	app.logger.Infow("Connected to Redis cache", "addr", app.cfg.Redis.CacheAddr)

	return nil
}

func (app *App) initServices() error {
	redisOpt := asynq.RedisClientOpt{Addr: app.cfg.Redis.AsynqAddr}

	app.rdbAsynq = redis.NewClient(&redis.Options{Addr: app.cfg.Redis.AsynqAddr})
	app.asynqClient = asynq.NewClient(redisOpt)
	app.asynqServer = asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: app.cfg.Worker.Concurrency,
		},
	)
	app.logger.Infow("Asynq configured", "addr", app.cfg.Redis.AsynqAddr)

	providers, err := newProviders(app.cfg, app.logger)
	if err != nil {
		return err
	}

	latestCache, historyCache := app.newCaches()

	rateService := service.NewRateService(
		providers,
		latestCache,
		historyCache,
		app.logger,
		app.cfg.Cache,
	)

	asynqEnqueuer := worker.NewAsynqEnqueuer(
		app.asynqClient,
		app.cfg.Worker.MaxRetry,
		time.Duration(app.cfg.Worker.TimeoutSec)*time.Second,
	)

	app.asynqMux = asynq.NewServeMux()
	app.asynqMux.HandleFunc(worker.TaskTypeRefreshRates, worker.NewRefreshHandler(rateService, app.logger))

	if err := app.initScheduler(redisOpt); err != nil {
		return err
	}

	authManager := auth.NewManager(app.cfg.Auth)

	app.initHTTP(rateService, asynqEnqueuer, authManager)
	return nil
}

// newCaches returns the latest and historical rate caches, backed by Redis
// when a cache address is configured and by process memory otherwise.
func (app *App) newCaches() (cache.Cache[provider.RateSnapshot], cache.Cache[[]provider.HistoricalRate]) {
	if app.rdbCache != nil {
		return cache.NewRedis[provider.RateSnapshot](app.rdbCache, "ratesvc", app.logger),
			cache.NewRedis[[]provider.HistoricalRate](app.rdbCache, "ratesvc", app.logger)
	}
	app.memLatest = cache.NewMemory[provider.RateSnapshot]()
	app.memHistory = cache.NewMemory[[]provider.HistoricalRate]()
	return app.memLatest, app.memHistory
}

func newProviders(cfg *config.Config, logger *zap.SugaredLogger) (*provider.Factory, error) {
	if cfg.Frankfurter.BaseURL == "" {
		return nil, fmt.Errorf("frankfurter provider requires base_url")
	}

	transport := resilience.NewTransport(
		"frankfurter",
		http.DefaultTransport,
		resilience.Config{
			MaxAttempts:     cfg.Resilience.MaxAttempts,
			BackoffBase:     time.Duration(cfg.Resilience.BackoffBaseSec) * time.Second,
			BreakerFailures: cfg.Resilience.BreakerFailures,
			BreakerCooldown: time.Duration(cfg.Resilience.BreakerCooldownSec) * time.Second,
		},
		logger,
	)

	frankfurter := provider.NewFrankfurterProvider(cfg.Frankfurter.BaseURL, transport, cfg.Frankfurter.Timeout, logger)

	return provider.NewFactory(map[string]provider.CurrencyProvider{
		"frankfurter": frankfurter,
		"mock":        provider.NewMockProvider(),
	}), nil
}

// initScheduler registers a periodic refresh task per configured base currency.
func (app *App) initScheduler(redisOpt asynq.RedisClientOpt) error {
	app.asynqScheduler = asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{})

	for _, base := range app.cfg.Worker.RefreshBases {
		payload, err := json.Marshal(worker.RefreshPayload{
			Provider: app.cfg.Worker.RefreshProvider,
			Base:     base,
		})
		if err != nil {
			return fmt.Errorf("marshal refresh payload: %w", err)
		}

		task := asynq.NewTask(worker.TaskTypeRefreshRates, payload,
			asynq.MaxRetry(app.cfg.Worker.MaxRetry),
			asynq.Timeout(time.Duration(app.cfg.Worker.TimeoutSec)*time.Second),
		)
		entryID, err := app.asynqScheduler.Register(app.cfg.Worker.RefreshCron, task)
		if err != nil {
			return fmt.Errorf("register refresh schedule for %s: %w", base, err)
		}
		app.logger.Infow("Registered periodic refresh",
			"provider", app.cfg.Worker.RefreshProvider, "base", base,
			"cron", app.cfg.Worker.RefreshCron, "entry_id", entryID)
	}

	return nil
}

// Run starts the HTTP server, Asynq worker, and scheduler, blocking until the
// context is canceled.
func (app *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		app.logger.Infow("Starting Asynq worker server")
		if err := app.asynqServer.Start(app.asynqMux); err != nil {
			return fmt.Errorf("asynq worker failed to start: %w", err)
		}

		<-ctx.Done()
		return nil
	})

	g.Go(func() error {
		app.logger.Infow("Starting Asynq scheduler")
		if err := app.asynqScheduler.Start(); err != nil {
			return fmt.Errorf("asynq scheduler failed to start: %w", err)
		}

		<-ctx.Done()
		return nil
	})

	if app.memLatest != nil {
		g.Go(func() error {
			app.memLatest.Janitor(ctx, time.Minute)
			return nil
		})
		g.Go(func() error {
			app.memHistory.Janitor(ctx, time.Minute)
			return nil
		})
	}

	g.Go(func() error {
		app.logger.Infow("HTTP server listening", "port", app.cfg.Server.Port)
		if err := app.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown: triggered by context cancellation (signal or component failure).
	g.Go(func() error {
		<-ctx.Done()
		return app.shutdown()
	})

	return g.Wait()
}

// shutdown performs ordered teardown: HTTP server -> scheduler -> Asynq worker
// -> connections. This ensures in-flight tasks finish before the Redis
// connections close.
func (app *App) shutdown() error {
	app.logger.Infow("Shutting down server...")

	var errs []error

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 1. Stop accepting new HTTP requests, drain in-flight
	if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
		app.logger.Errorw("HTTP server shutdown error", "error", err)
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}

	// 2. Stop scheduling new refreshes, then drain in-flight Asynq tasks
	app.asynqScheduler.Shutdown()
	app.asynqServer.Shutdown()

	// 3. Close connections (asynq client, Redis)
	if err := app.close(); err != nil {
		app.logger.Errorw("Connection cleanup errors", "error", err)
		errs = append(errs, err)
	}

	app.logger.Infow("Shutdown complete")
	return errors.Join(errs...)
}
