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
	"agencycrm_backend/internal/followups/drafter"
	apphttp "agencycrm_backend/internal/http"
	"agencycrm_backend/internal/http/router"
	"agencycrm_backend/internal/identity"
	"agencycrm_backend/internal/leads"
	"agencycrm_backend/internal/notification"
	"agencycrm_backend/internal/projects"
	"agencycrm_backend/internal/proposals"
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
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, "migrations")
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

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

	eventBus := events.NewInMemoryBus(log)
	sender := email.NewSender(cfg)
	val := validator.New()

	activityWriter := activity.NewService(activity.NewRepository(pool), log)
	team := identity.NewDirectory(pool)

	// Nil provider means the external identity service is not configured;
	// portal provisioning is skipped and invites fail loudly.
	var provider identity.Provider
	if p := identity.NewHTTPProvider(cfg); p != nil {
		provider = p
		log.Info("identity provider configured", "url", cfg.GetIdentityAdminURL())
	} else {
		log.Warn("identity provider not configured; portal invites disabled")
	}

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	notificationModule := notification.NewModule(pool, sender, team, cfg, log)
	notificationModule.RegisterHandlers(eventBus)

	clientsModule := clients.NewModule(pool, provider, team, sender, activityWriter, eventBus, cfg.GetAppBaseURL(), val, log)

	conversionGateway := adapters.NewClientConversionGateway(clientsModule.Service())
	leadsModule := leads.NewModule(pool, conversionGateway, activityWriter, eventBus, val, log)

	contacts := adapters.NewContactReader(clientsModule.Service(), leadsModule.Service())
	stageAdvancer := adapters.NewLeadStageAdvancer(leadsModule.Service())

	billingModule := billing.NewModule(pool, cfg, contacts, activityWriter, eventBus, val, log)
	invoiceCreator := adapters.NewMilestoneInvoiceCreator(billingModule.Service())
	projectsModule := projects.NewModule(pool, stageAdvancer, invoiceCreator, contacts, activityWriter, eventBus, val, log)
	proposalsModule := proposals.NewModule(pool, contacts, sender, stageAdvancer, activityWriter, eventBus, cfg.GetAppBaseURL(), val, log)
	followUpsModule := followups.NewModule(pool, contacts, sender, activityWriter, eventBus, val, log)

	// The drafter listens for new follow-ups and fills in a suggested email.
	leadSummaries := adapters.NewLeadSummaryReader(leadsModule.Service())
	followUpDrafter, err := drafter.New(ctx, cfg, leadSummaries, followUpsModule.Service(), log)
	if err != nil {
		log.Error("failed to initialize follow-up drafter", "error", err)
		panic("failed to initialize follow-up drafter: " + err.Error())
	}
	if followUpDrafter != nil {
		followUpDrafter.Subscribe(eventBus)
		log.Info("follow-up drafter enabled", "model", cfg.GetDraftModel())
	} else {
		log.Warn("GEMINI_API_KEY not configured; follow-up drafting disabled")
	}

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			leadsModule,
			clientsModule,
			projectsModule,
			proposalsModule,
			billingModule,
			followUpsModule,
			notificationModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = shutdownCtx
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
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
