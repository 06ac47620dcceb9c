package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BradenHooton/loginguard/internal/auth"
	"github.com/BradenHooton/loginguard/internal/background"
	"github.com/BradenHooton/loginguard/internal/config"
	"github.com/BradenHooton/loginguard/internal/database"
	"github.com/BradenHooton/loginguard/internal/guard"
	"github.com/BradenHooton/loginguard/internal/handlers"
	middlewareCustom "github.com/BradenHooton/loginguard/internal/middleware"
	"github.com/BradenHooton/loginguard/internal/repositories"
	"github.com/BradenHooton/loginguard/internal/routes"
	"github.com/BradenHooton/loginguard/internal/services"
	"github.com/BradenHooton/loginguard/internal/store"
	pkghttp "github.com/BradenHooton/loginguard/pkg/http"
	pkglogger "github.com/BradenHooton/loginguard/pkg/logger"
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

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Server.LogLevel)); err != nil {
		logger.Warn("invalid LOG_LEVEL, using info", slog.String("log_level", cfg.Server.LogLevel))
		level = slog.LevelInfo
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("store_backend", cfg.Store.Backend))

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = db.Migrate(migrateCtx)
	migrateCancel()
	if err != nil {
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	resetRepo := repositories.NewPasswordResetRepository(db)

	healthChecks := map[string]handlers.HealthCheck{"database": db.HealthCheck}
	purgers := map[string]background.Purger{"reset_tokens": resetRepo}

	// Attempt store
	attemptStore, err := newAttemptStore(cfg, db)
	if err != nil {
		logger.Error("failed to initialize attempt store", slog.Any("error", err))
		os.Exit(1)
	}
	switch s := attemptStore.(type) {
	case *store.RedisStore:
		defer s.Close()
		healthChecks["store"] = s.HealthCheck
	case background.Purger:
		purgers["login_attempts"] = s
	}

	loginGuard := guard.New(attemptStore, guard.Config{
		MaxAttempts:   cfg.Guard.MaxAttempts,
		LockoutWindow: cfg.Guard.LockoutWindow,
		StoreTimeout:  cfg.Guard.StoreTimeout,
	}, logger)

	// Client IP resolution
	resolver, err := pkghttp.NewIPResolver(cfg.IP.Sources, cfg.IP.TrustedProxies)
	if err != nil {
		logger.Error("invalid client ip configuration", slog.Any("error", err))
		os.Exit(1)
	}
	if resolver.TrustsAllHeaders() && cfg.Server.Env == "production" {
		logger.Warn("TRUSTED_PROXIES is empty: client ip headers are trusted from any peer")
	}

	// Initialize token and nonce managers
	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenExpiry)
	nonceManager := auth.NewNonceManager(cfg.Auth.NonceSecret, cfg.Auth.NonceLifetime)
	cookieConfig := auth.CookieConfig{
		Secure:   cfg.Auth.SecureCookies,
		SameSite: "lax",
		MaxAge:   int(cfg.Auth.NonceLifetime.Seconds()),
	}

	auditLogger := pkglogger.NewAuditLogger(logger)

	// AWS SES email service
	mailer, err := services.NewSESMailer(cfg.Email.AWSRegion, cfg.Email.FromAddress, cfg.Email.ResetURLBase, logger)
	if err != nil {
		logger.Error("failed to initialize email service", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize services
	authService := services.NewAuthService(userRepo, tokenManager, loginGuard, logger, auditLogger)
	accountService := services.NewAccountService(userRepo, resetRepo, mailer, loginGuard, cfg.Auth.ResetTokenExpiry, logger, auditLogger)

	logger.Info("authentication pipeline ready", slog.Any("stages", authService.Pipeline().Stages()))

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService, accountService, nonceManager, cookieConfig, logger)
	healthHandler := handlers.NewHealthHandler(healthChecks, 2*time.Second, logger)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.ClientIP(resolver, logger))
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	loginRateLimit := middlewareCustom.DefaultLoginRateLimit(resolver)
	if cfg.Auth.LoginRequestsPerMin > 0 {
		loginRateLimit.RequestsPerMinute = cfg.Auth.LoginRequestsPerMin
	}

	// Register routes
	routes.RegisterRoutes(router, routes.Dependencies{
		AuthHandler:    authHandler,
		HealthHandler:  healthHandler,
		TokenManager:   tokenManager,
		NonceManager:   nonceManager,
		LoginRateLimit: loginRateLimit,
		Logger:         logger,
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start cleanup task
	cleanupManager := background.NewCleanupManager(purgers, logger, cfg.Auth.CleanupInterval)
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

// newAttemptStore builds the configured backend for failed-attempt counters
func newAttemptStore(cfg *config.Config, db *database.DB) (store.Store, error) {
	switch cfg.Store.Backend {
	case config.StoreBackendRedis:
		redisStore, err := store.NewRedisStore(&cfg.Redis)
		if err != nil {
			return nil, err
		}
		return redisStore, nil
	case config.StoreBackendMemory:
		return store.NewMemoryStore(), nil
	case config.StoreBackendPostgres:
		return store.NewPostgresStore(db), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
