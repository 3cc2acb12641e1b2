package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"portal_lead_distribution/internal/distribution"
	"portal_lead_distribution/internal/events"
	"portal_lead_distribution/internal/notification"
	"portal_lead_distribution/internal/notification/inapp"
	"portal_lead_distribution/internal/scheduler"
	"portal_lead_distribution/platform/config"
	"portal_lead_distribution/platform/db"
	"portal_lead_distribution/platform/logger"
	platformredis "portal_lead_distribution/platform/redis"
	"portal_lead_distribution/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

const claimSweepLockKey = "lead-distribution:claim-sweep"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	if cfg.GetRedisURL() == "" {
		panic("REDIS_URL is required for the scheduler")
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env, "sweepInterval", cfg.GetClaimSweepInterval())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	redisClient, err := platformredis.New(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		panic("failed to connect to redis: " + err.Error())
	}
	defer func() { _ = redisClient.Close() }()

	eventBus := events.NewInMemoryBus(log)

	// Notifications raised by escalation reach API processes over redis.
	notificationModule := notification.New(inapp.NewRepository(pool), log)
	notificationModule.UseBroadcast(redisClient, cfg.GetNotificationChannel())

	distributionModule := distribution.NewModule(pool, eventBus, validator.New(), nil, distribution.OptionsFromConfig(cfg), log)
	distributionSvc := distributionModule.Service()
	distributionSvc.SetNotifier(notificationModule.Notifier())

	expiryClient, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize claim expiry scheduler client", "error", err)
		panic("failed to initialize claim expiry scheduler client: " + err.Error())
	}
	defer func() { _ = expiryClient.Close() }()
	distributionSvc.SetExpiryScheduler(expiryClient)

	lock, err := scheduler.NewRedisLock(redisClient, claimSweepLockKey, 0)
	if err != nil {
		log.Error("failed to initialize claim sweep lock", "error", err)
		panic("failed to initialize claim sweep lock: " + err.Error())
	}
	sweep := scheduler.NewClaimExpirySweep(distributionSvc, lock, log, cfg.GetClaimSweepInterval())

	worker, err := scheduler.NewWorker(cfg, distributionSvc, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sweep.Run(gctx)
		return nil
	})
	g.Go(func() error {
		worker.Run(gctx)
		return nil
	})
	_ = g.Wait()

	eventBus.Wait()
	log.Info("scheduler stopped")
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
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
