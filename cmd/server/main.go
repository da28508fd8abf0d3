package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DukeRupert/chartwise/internal"
	"github.com/DukeRupert/chartwise/internal/ai"
	"github.com/DukeRupert/chartwise/internal/ai/anthropic"
	"github.com/DukeRupert/chartwise/internal/ai/mock"
	"github.com/DukeRupert/chartwise/internal/auth"
	"github.com/DukeRupert/chartwise/internal/billing"
	"github.com/DukeRupert/chartwise/internal/cache"
	"github.com/DukeRupert/chartwise/internal/clock"
	"github.com/DukeRupert/chartwise/internal/email"
	"github.com/DukeRupert/chartwise/internal/handler"
	"github.com/DukeRupert/chartwise/internal/jobs"
	"github.com/DukeRupert/chartwise/internal/metrics"
	"github.com/DukeRupert/chartwise/internal/middleware"
	"github.com/DukeRupert/chartwise/internal/repository"
	"github.com/DukeRupert/chartwise/internal/service"
	"github.com/DukeRupert/chartwise/internal/storage"
	"github.com/DukeRupert/chartwise/internal/worker"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const sessionCleanupInterval = time.Hour

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)
	slog.SetDefault(logger)

	// Initialize database connection
	db, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Run migrations
	if err := internal.RunMigrations(ctx, db, logger); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database ready")

	repo := repository.New(db)

	clk, err := clock.New(cfg.UsageTimezone)
	if err != nil {
		return fmt.Errorf("clock initialization failed: %w", err)
	}

	// ==========================================================================
	// Infrastructure
	// ==========================================================================

	store, err := newStorage(cfg, logger)
	if err != nil {
		return fmt.Errorf("storage initialization failed: %w", err)
	}

	provider, err := newAIProvider(cfg, logger)
	if err != nil {
		return fmt.Errorf("AI provider initialization failed: %w", err)
	}

	emailService, err := email.NewSMTPEmailService(email.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	}, cfg.BaseURL, logger)
	if err != nil {
		return fmt.Errorf("email service initialization failed: %w", err)
	}

	var billingService billing.Service
	if cfg.BillingEnabled() {
		billingService = billing.NewStripeService(cfg.StripeSecretKey, cfg.StripeWebhookSecret, billing.PriceConfig{
			PremiumMonthlyPriceID: cfg.StripePremiumMonthlyPrice,
			PremiumYearlyPriceID:  cfg.StripePremiumYearlyPrice,
		})
		logger.Info("Stripe billing enabled")
	} else {
		logger.Warn("Stripe billing disabled, STRIPE_SECRET_KEY not set")
	}

	limiterFactory := middleware.NewMemoryLimiterFactory(logger)
	healthChecks := map[string]handler.HealthChecker{
		"database": handler.HealthCheckFunc(db.PingContext),
	}
	if cfg.RedisURL != "" {
		rc, err := cache.New(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis initialization failed: %w", err)
		}
		defer rc.Close()

		limiterFactory = func(name string, limit int, window time.Duration) middleware.Limiter {
			return rc.NewRateLimiter(name, limit, window, logger)
		}
		healthChecks["cache"] = rc
		logger.Info("Redis rate limiting enabled")
	}

	// ==========================================================================
	// Background worker
	// ==========================================================================

	mailer := worker.NewMailer(repo)

	var jobWorker *worker.Worker
	if cfg.WorkerEnabled {
		jobWorker, err = worker.New(db, repo, worker.Config{
			Concurrency:  cfg.WorkerConcurrency,
			PollInterval: cfg.WorkerPollInterval,
			JobTimeout:   cfg.WorkerJobTimeout,
			// A running send older than this belongs to a crashed process.
			StaleJobThreshold: 2 * cfg.WorkerJobTimeout,
		}, logger)
		if err != nil {
			return fmt.Errorf("worker initialization failed: %w", err)
		}
		jobWorker.Register(jobs.NewSendEmailHandler(emailService, logger))
		jobWorker.Start(ctx)
	} else {
		logger.Warn("Background worker disabled, queued emails will not be sent")
	}

	// ==========================================================================
	// Services
	// ==========================================================================

	userService := service.NewUserService(repo, clk, mailer, service.UserServiceConfig{
		SessionDuration: cfg.SessionDuration,
	}, logger)
	usageService := service.NewUsageService(repo, clk, logger)
	ticketService := service.NewTicketService(repo, mailer, logger)
	analysisService := service.NewAnalysisService(repo, usageService, provider, store, service.NewImagingProcessor(), logger)

	go cleanupSessions(ctx, userService, logger)

	// ==========================================================================
	// Middleware
	// ==========================================================================

	isSecure := cfg.IsProduction()
	admins := auth.NewAdmins(cfg.AdminEmails)
	authMw := middleware.NewAuthMiddleware(userService, admins, logger, isSecure)
	limits := middleware.NewRouteLimiters(limiterFactory, logger)

	requireUser := middleware.Stack(authMw.WithUser, authMw.RequireUser)
	requireAdmin := middleware.Stack(authMw.WithUser, authMw.RequireAdmin)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	handler.NewHealthHandler(healthChecks, logger).RegisterRoutes(mux)
	handler.NewAuthHandler(userService, logger, isSecure).RegisterRoutes(mux, requireUser, limits.LimitLogin, limits.LimitRegister)
	handler.NewAnalysisHandler(analysisService, usageService, logger).RegisterRoutes(mux, requireUser)
	handler.NewBillingHandler(billingService, userService, cfg.BaseURL, logger).RegisterRoutes(mux, requireUser)
	handler.NewWebhookHandler(billingService, userService, logger).RegisterRoutes(mux)
	handler.NewSupportHandler(ticketService, admins, logger).RegisterRoutes(mux, authMw.WithUser, requireUser, limits.LimitTickets)
	handler.NewAdminHandler(ticketService, logger).RegisterRoutes(mux, requireAdmin)

	metricsAuth := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword, logger)
	mux.Handle("GET /metrics", metricsAuth.Handler(promhttp.Handler()))

	if _, ok := store.(*storage.LocalStorage); ok {
		handler.NewFilesHandler(store, logger).RegisterRoutes(mux, requireUser)
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		handler.NotFoundResponse(w, r, logger)
	})

	// metrics.Middleware sits innermost so it sees the request the mux routes.
	chain := middleware.Stack(
		middleware.NewRequestLoggingMiddleware(logger).Handler,
		middleware.NewSecurityHeadersMiddleware(isSecure).Handler,
		metrics.Middleware,
	)

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           chain(mux),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      2 * cfg.AIRequestTimeout,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		logger.Error("Server failed", "error", err)
	case <-ctx.Done():
		logger.Info("Shutdown signal received, initiating graceful shutdown...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}
	if jobWorker != nil {
		jobWorker.Stop()
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

func newStorage(cfg *internal.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.StorageProvider == "r2" {
		return storage.NewR2Storage(storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicURL:       cfg.R2PublicURL,
			Endpoint:        cfg.R2Endpoint,
		}, logger)
	}
	return storage.NewLocalStorage(storage.LocalConfig{
		BasePath: cfg.LocalStoragePath,
		BaseURL:  cfg.LocalStorageURL,
	}, logger)
}

func newAIProvider(cfg *internal.Config, logger *slog.Logger) (ai.AIProvider, error) {
	if cfg.AIProvider == "anthropic" {
		return anthropic.New(anthropic.Config{
			APIKey: cfg.AnthropicAPIKey,
			Model:  cfg.AnthropicModel,
			ProviderConfig: ai.ProviderConfig{
				MaxRetries:     cfg.AIMaxRetries,
				RetryBaseDelay: cfg.AIRetryBaseDelay,
				RequestTimeout: cfg.AIRequestTimeout,
			},
		}, logger)
	}
	logger.Warn("Using mock AI provider")
	return mock.New(logger), nil
}

func cleanupSessions(ctx context.Context, users service.UserService, logger *slog.Logger) {
	ticker := time.NewTicker(sessionCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := users.DeleteExpiredSessions(ctx); err != nil {
				logger.Error("Failed to delete expired sessions", "error", err)
			}
		}
	}
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
