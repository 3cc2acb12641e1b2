package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"portal_lead_distribution/internal/distribution"
	"portal_lead_distribution/internal/events"
	apphttp "portal_lead_distribution/internal/http"
	"portal_lead_distribution/internal/http/router"
	"portal_lead_distribution/internal/notification"
	"portal_lead_distribution/internal/notification/inapp"
	"portal_lead_distribution/internal/scheduler"
	"portal_lead_distribution/platform/config"
	"portal_lead_distribution/platform/db"
	"portal_lead_distribution/platform/logger"
	"portal_lead_distribution/platform/metrics"
	platformredis "portal_lead_distribution/platform/redis"
	"portal_lead_distribution/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	if cfg.GetMigrationsAutoRun() {
		if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
			return db.RunMigrations(ctx, pool)
		}); err != nil {
			log.Error("failed to run database migrations", "error", err)
			panic("failed to run database migrations: " + err.Error())
		}
		log.Info("database migrations complete")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	distributionMetrics := metrics.NewDistributionMetrics(registry)

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)
	val := validator.New()

	redisClient := initRedis(ctx, cfg, log)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	notificationModule := notification.New(inapp.NewRepository(pool), log)
	defer notificationModule.Close()
	if redisClient != nil {
		notificationModule.UseBroadcast(redisClient, cfg.GetNotificationChannel())
	}

	distributionModule := distribution.NewModule(pool, eventBus, val, distributionMetrics, distribution.OptionsFromConfig(cfg), log)
	distributionSvc := distributionModule.Service()
	distributionSvc.SetNotifier(notificationModule.Notifier())

	expiryClient, closeScheduler := initExpiryScheduler(cfg, log)
	if closeScheduler != nil {
		defer closeScheduler()
		distributionSvc.SetExpiryScheduler(expiryClient)
	}

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:  cfg,
		Logger:  log,
		Health:  pool,
		Metrics: registry,
		Modules: []apphttp.Module{
			distributionModule,
			notificationModule,
		},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, gracefully shutting down")
		notificationModule.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if redisClient != nil {
		g.Go(func() error {
			return notificationModule.Subscribe(gctx, redisClient, cfg.GetNotificationChannel())
		})
	} else {
		// Without redis there is no scheduler process; sweep in-process.
		sweep := scheduler.NewClaimExpirySweep(distributionSvc, nil, log, cfg.GetClaimSweepInterval())
		g.Go(func() error {
			sweep.Run(gctx)
			return nil
		})
	}

	err = g.Wait()
	eventBus.Wait()
	if err != nil {
		log.Error("server error", "error", err)
		panic("server error: " + err.Error())
	}
}

func initRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) *redis.Client {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; live notifications stay in-process and claim expiry runs on the local sweep only")
		return nil
	}

	client, err := platformredis.New(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		panic("failed to connect to redis: " + err.Error())
	}
	return client
}

func initExpiryScheduler(cfg config.SchedulerConfig, log *logger.Logger) (*scheduler.Client, func()) {
	if cfg.GetRedisURL() == "" {
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize claim expiry scheduler client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
