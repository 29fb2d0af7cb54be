package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"handyman_portal_backend/internal/auth"
	"handyman_portal_backend/internal/cases"
	casesvc "handyman_portal_backend/internal/cases/service"
	"handyman_portal_backend/internal/clientportal"
	"handyman_portal_backend/internal/cognito"
	"handyman_portal_backend/internal/events"
	apphttp "handyman_portal_backend/internal/http"
	"handyman_portal_backend/internal/http/router"
	"handyman_portal_backend/internal/invoices"
	invoicesvc "handyman_portal_backend/internal/invoices/service"
	"handyman_portal_backend/internal/line"
	"handyman_portal_backend/internal/notification"
	"handyman_portal_backend/internal/payments"
	"handyman_portal_backend/internal/scheduler"
	"handyman_portal_backend/platform/config"
	"handyman_portal_backend/platform/db"
	"handyman_portal_backend/platform/logger"
	"handyman_portal_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
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

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	reminderScheduler, closeScheduler := initReminderScheduler(cfg, log)
	if closeScheduler != nil {
		defer closeScheduler()
	}

	// Shared validator instance for dependency injection
	val := validator.New()

	// Cognito ID-token verifier for back-office staff logins. Nil when the
	// user pool is not configured: the cognito provider then answers 503.
	cognitoVerifier := cognito.NewVerifier(cfg, log)
	if cognitoVerifier == nil {
		log.Warn("COGNITO_* not configured; headquarters login disabled")
	}

	// LINE Messaging API client. Nil when the channel is not configured:
	// logins via LINE and push notifications are then disabled.
	lineClient := line.NewClient(cfg, log)
	if lineClient == nil {
		log.Warn("LINE_CHANNEL_ACCESS_TOKEN not configured; LINE login and push disabled")
	}

	// Stripe gateway. Nil when no secret key is configured: checkout
	// endpoints answer 503 and webhooks are acknowledged without effect.
	stripeGateway := payments.NewGateway(cfg)
	if stripeGateway == nil {
		log.Warn("STRIPE_SECRET_KEY not configured; online payment disabled")
	}

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	authModule := auth.NewModule(pool, cognitoVerifier, lineClient, cfg, val, log)
	casesModule := cases.NewModule(pool, eventBus, reminderScheduler, cfg, val, log)

	var checkoutGateway invoicesvc.CheckoutGateway
	if stripeGateway != nil {
		checkoutGateway = stripeGateway
	}
	invoicesModule := invoices.NewModule(pool, casesModule.Repository(), checkoutGateway, eventBus, val, log)

	paymentsModule := payments.NewModule(stripeGateway, invoicesModule.Repository(), eventBus, log)

	// Notification enqueuer listens for domain events and writes the outbox;
	// delivery happens in the scheduler process.
	notificationModule := notification.NewModule(pool, authModule.Repository(), casesModule.Repository(), lineClient, log)
	notificationModule.SubscribeEnqueuer(eventBus)

	clientPortalModule := clientportal.NewModule(lineClient, authModule.Repository(), casesModule.Repository(), invoicesModule.Repository(), cfg, val, log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			authModule,
			casesModule,
			invoicesModule,
			paymentsModule,
			clientPortalModule,
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

func initReminderScheduler(cfg config.SchedulerConfig, log *logger.Logger) (casesvc.ReminderScheduler, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; visit reminders disabled")
		return nil, nil
	}

	reminderClient, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize reminder scheduler client", "error", err)
		return nil, nil
	}

	return reminderClient, func() {
		_ = reminderClient.Close()
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
