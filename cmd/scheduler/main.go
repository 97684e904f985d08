package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agencycrm_backend/internal/activity"
	"agencycrm_backend/internal/adapters"
	"agencycrm_backend/internal/billing"
	"agencycrm_backend/internal/clients"
	"agencycrm_backend/internal/email"
	"agencycrm_backend/internal/events"
	"agencycrm_backend/internal/followups"
	"agencycrm_backend/internal/identity"
	"agencycrm_backend/internal/leads"
	"agencycrm_backend/internal/notification"
	"agencycrm_backend/internal/scheduler"
	"agencycrm_backend/platform/config"
	"agencycrm_backend/platform/db"
	"agencycrm_backend/platform/logger"
	"agencycrm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

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

	eventBus := events.NewInMemoryBus(log)
	sender := email.NewSender(cfg)
	val := validator.New()

	activityWriter := activity.NewService(activity.NewRepository(pool), log)
	team := identity.NewDirectory(pool)

	// Worker-side engine wiring: the sweeps call the same services the API
	// does, so cascades and dedup rules behave identically.
	notificationModule := notification.NewModule(pool, sender, team, cfg, log)
	notificationModule.RegisterHandlers(eventBus)

	var provider identity.Provider
	if p := identity.NewHTTPProvider(cfg); p != nil {
		provider = p
	}
	clientsModule := clients.NewModule(pool, provider, team, sender, activityWriter, eventBus, cfg.GetAppBaseURL(), val, log)

	conversionGateway := adapters.NewClientConversionGateway(clientsModule.Service())
	leadsModule := leads.NewModule(pool, conversionGateway, activityWriter, eventBus, val, log)

	contacts := adapters.NewContactReader(clientsModule.Service(), leadsModule.Service())
	billingModule := billing.NewModule(pool, cfg, contacts, activityWriter, eventBus, val, log)
	followUpsModule := followups.NewModule(pool, contacts, sender, activityWriter, eventBus, val, log)

	dispatcher, err := scheduler.NewDispatcher(cfg, pool, log)
	if err != nil {
		log.Error("failed to initialize dispatcher", "error", err)
		panic("failed to initialize dispatcher: " + err.Error())
	}
	defer func() { _ = dispatcher.Close() }()
	go dispatcher.Run(ctx)

	worker, err := scheduler.NewWorker(cfg, followUpsModule.Service(), leadsModule.Service(), billingModule.Service(), eventBus, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
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
