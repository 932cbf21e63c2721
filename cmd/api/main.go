package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BradenHooton/scarif/internal/auth"
	"github.com/BradenHooton/scarif/internal/background"
	"github.com/BradenHooton/scarif/internal/clock"
	"github.com/BradenHooton/scarif/internal/config"
	"github.com/BradenHooton/scarif/internal/database"
	"github.com/BradenHooton/scarif/internal/handlers"
	middlewareCustom "github.com/BradenHooton/scarif/internal/middleware"
	"github.com/BradenHooton/scarif/internal/models"
	"github.com/BradenHooton/scarif/internal/money"
	"github.com/BradenHooton/scarif/internal/notify"
	"github.com/BradenHooton/scarif/internal/policy"
	"github.com/BradenHooton/scarif/internal/repositories"
	"github.com/BradenHooton/scarif/internal/routes"
	pkgauth "github.com/BradenHooton/scarif/pkg/auth"
	pkglogger "github.com/BradenHooton/scarif/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Storage backend: Postgres by default, in-memory with DB_DRIVER=memory
	// for single-process runs without a database.
	var (
		db *database.DB

		accountRepo    policy.AccountRepository
		challengeRepo  policy.ChallengeRepository
		resetTokenRepo policy.ResetTokenRepository
		declineRepo    policy.DeclineRepository
		checkoutRepo   policy.CheckoutRepository
		orderRepo      policy.OrderHistory
		declineLog     background.DeclineLog
	)

	if cfg.Database.Driver == "memory" {
		logger.Info("using in-memory storage; state does not survive a restart")

		memAccounts := repositories.NewMemoryAccountRepository()
		memDeclines := repositories.NewMemoryDeclineRepository()
		accountRepo = memAccounts
		challengeRepo = repositories.NewMemoryChallengeRepository()
		resetTokenRepo = repositories.NewMemoryResetTokenRepository(memAccounts)
		declineRepo = memDeclines
		declineLog = memDeclines
		checkoutRepo = repositories.NewMemoryCheckoutRepository()
		orderRepo = repositories.NewMemoryOrderHistory()
	} else {
		db, err = database.NewConnection(&cfg.Database, logger)
		if err != nil {
			logger.Error("failed to connect to database", slog.Any("error", err))
			os.Exit(1)
		}
		defer db.Close()

		migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := db.Migrate(migrateCtx); err != nil {
			migrateCancel()
			logger.Error("failed to run migrations", slog.Any("error", err))
			os.Exit(1)
		}
		migrateCancel()

		pgDeclines := repositories.NewDeclineRepository(db)
		accountRepo = repositories.NewAccountRepository(db)
		challengeRepo = repositories.NewChallengeRepository(db)
		resetTokenRepo = repositories.NewResetTokenRepository(db)
		declineRepo = pgDeclines
		declineLog = pgDeclines
		checkoutRepo = repositories.NewCheckoutRepository(db)
		orderRepo = repositories.NewOrderRepository(db)
	}

	credentials := repositories.NewBcryptCredentialStore(accountRepo)

	// Cleanup manager prunes declines that aged past the fraud window
	cleanupManager := background.NewCleanupManager(declineLog, clock.NewSystem(), 2*cfg.Policy.FraudWindow, logger, time.Hour)

	// Token and TOTP managers
	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.SessionTokenExpiry)
	totpManager, err := auth.NewTOTPManager(cfg.Auth.TOTPEncryptionKey, cfg.Auth.TOTPIssuer)
	if err != nil {
		logger.Error("failed to initialize TOTP manager", slog.Any("error", err))
		os.Exit(1)
	}

	auditLogger := pkglogger.NewAuditLogger(logger)

	// Timing delay equalizes authentication failure latency
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:   100,
		RandomDelayMs: 100,
	})

	// Notification channel: SES in production, logger elsewhere
	var notifier notify.Notifier
	if cfg.Server.Env == "production" {
		notifier, err = notify.NewSESNotifier(cfg.Email.AWSRegion, cfg.Email.FromAddress, cfg.Email.ResetURLBase, logger)
		if err != nil {
			logger.Error("failed to initialize notifier", slog.Any("error", err))
			os.Exit(1)
		}
	} else {
		notifier = notify.NewLogNotifier(logger, cfg.Server.Env)
	}

	defaultShipping, err := money.FromString(cfg.Policy.DefaultShipping)
	if err != nil {
		logger.Error("invalid default shipping amount", slog.Any("error", err))
		os.Exit(1)
	}

	// Policy engine
	systemClock := clock.NewSystem()
	engine := policy.NewPolicyEngine(policy.EngineDeps{
		Accounts:    accountRepo,
		Checkouts:   checkoutRepo,
		Credentials: credentials,

		Attempts:   policy.NewAttemptTracker(accountRepo, systemClock, cfg.Policy.LockoutDuration, logger, auditLogger),
		Challenges: policy.NewCodeChallenge(challengeRepo, systemClock, cfg.Policy.CodeValidity, totpManager, logger),
		Resets:     policy.NewResetTokens(resetTokenRepo, systemClock, cfg.Policy.ResetTokenExpiry, logger, auditLogger),
		Coupons:    policy.NewCouponEngine(policy.DefaultCatalog(), orderRepo, logger, auditLogger),
		Fraud:      policy.NewFraudGuard(declineRepo, systemClock, cfg.Policy.FraudWindow, logger, auditLogger),
		Orders:     orderRepo,

		Notifier: notifier,
		Tokens:   tokenManager,
		TOTP:     totpManager,
		Timing:   timingDelay,
		Clock:    systemClock,

		DefaultShipping: defaultShipping,

		Logger:      logger,
		AuditLogger: auditLogger,
	})

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(engine)
	checkoutHandler := handlers.NewCheckoutHandler(engine)

	// Bootstrap a seed account if configured
	seedCtx, seedCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureSeedAccount(seedCtx, accountRepo, logger); err != nil {
		logger.Error("failed to ensure seed account", slog.Any("error", err))
	}
	seedCancel()

	// Setup router
	router := chi.NewRouter()
	// RealIP is deliberately absent: forwarded headers are only honored
	// behind a trusted proxy, inside the rate limiter's key function.
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	rateLimit := middlewareCustom.DefaultAuthRateLimit()
	rateLimit.TrustedProxies = cfg.Server.TrustedProxies
	routes.RegisterRoutes(router, authHandler, checkoutHandler, tokenManager, rateLimit)

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if db == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"healthy","database":"memory"}`))
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start cleanup task
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// ensureSeedAccount creates a first account if SEED_EMAIL and SEED_PASSWORD
// are set, so a fresh deployment has something to log into.
func ensureSeedAccount(ctx context.Context, accountRepo policy.AccountRepository, logger *slog.Logger) error {
	seedEmail := os.Getenv("SEED_EMAIL")
	seedPassword := os.Getenv("SEED_PASSWORD")

	if seedEmail == "" || seedPassword == "" {
		return nil
	}

	_, err := accountRepo.GetByEmail(ctx, seedEmail)
	if err == nil {
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check seed account: %w", err)
	}

	if err := pkgauth.ValidatePassword(seedPassword); err != nil {
		return fmt.Errorf("seed password rejected: %w", err)
	}

	hash, err := pkgauth.HashPassword(seedPassword)
	if err != nil {
		return fmt.Errorf("failed to hash seed password: %w", err)
	}

	if _, err := accountRepo.Create(ctx, &models.Account{Email: seedEmail, PasswordHash: hash}); err != nil {
		return fmt.Errorf("failed to create seed account: %w", err)
	}

	logger.Info("seed account created", slog.String("email", pkglogger.SanitizedEmail(seedEmail)))
	return nil
}
