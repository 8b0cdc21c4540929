// Package main is the entry point for the recherche-api server.
// Note: Partner provisioning and contracts live in the surrounding
// platform; partner records arrive via signed platform webhooks.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/firmenkern/recherche-api/internal/config"
	"github.com/firmenkern/recherche-api/internal/database"
	"github.com/firmenkern/recherche-api/internal/http/handlers"
	"github.com/firmenkern/recherche-api/internal/http/mw"
	"github.com/firmenkern/recherche-api/internal/http/routes"
	"github.com/firmenkern/recherche-api/internal/logging"
	"github.com/firmenkern/recherche-api/internal/ratelimit"
	"github.com/firmenkern/recherche-api/internal/repository"
	"github.com/firmenkern/recherche-api/internal/service"
	"github.com/firmenkern/recherche-api/internal/version"
	"github.com/firmenkern/recherche-api/internal/worker"
)

func main() {
	// Initialize logger with TTY detection, source paths, and format control
	logger := logging.SetDefault()

	// Log version info first thing
	v := version.Get()
	logger.Info("starting recherche-api",
		"version", v.Version,
		"commit", v.Commit,
		"built", v.Date,
		"go_version", v.GoVersion,
	)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize database
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	// Run migrations (with logging for each migration applied)
	if err := database.MigrateWithLogger(db, logger); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	repos := repository.NewRepositories(db)

	// Initialize services
	services, err := service.NewServices(cfg, repos, logger)
	if err != nil {
		logger.Error("failed to initialize services", "error", err)
		os.Exit(1)
	}

	// Partner rate limits count in Redis when configured so instances
	// share windows; otherwise in-process.
	var limiter *ratelimit.Limiter
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		limiter = ratelimit.New(ratelimit.NewRedisStore(redis.NewClient(opts)))
		logger.Info("rate limit store ready", "backend", "redis")
	} else {
		limiter = ratelimit.NewMemory()
		logger.Info("rate limit store ready", "backend", "memory")
	}

	ctx, cancel := context.WithCancel(context.Background())

	// Start the order dispatcher unless this instance is API-only
	var dispatcher *worker.Dispatcher
	if cfg.WorkerEnabled {
		dispatcher = worker.New(
			repos,
			services.Settings,
			services.Ledger,
			services.Archive,
			worker.Config{
				PollInterval:    cfg.WorkerPollInterval,
				Concurrency:     cfg.WorkerConcurrency,
				StaleOrderAfter: cfg.StaleOrderAfter,
			},
			logger,
		)
		dispatcher.Start(ctx)
	} else {
		logger.Info("dispatcher disabled, orders are processed by a separate worker")
	}

	// Create router
	router := chi.NewRouter()

	// Global middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(mw.APIVersion())

	// Request deadline below the server WriteTimeout; webhook deliveries
	// are excluded so Stripe and the platform control their own retries
	router.Use(mw.Timeout(mw.TimeoutConfig{
		Default:      30 * time.Second,
		SkipPatterns: []string{"/webhooks"},
	}))

	// CORS configuration
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", mw.HeaderAPIKey},
		ExposedHeaders:   []string{"Link", "X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Request size limit (1MB) - prevent large payload attacks
	router.Use(middleware.RequestSize(1 * 1024 * 1024))

	// Global rate limit by IP (fallback for unauthenticated requests)
	// Partner requests get per-partner limits applied after auth
	if cfg.HTTPRateLimit > 0 {
		router.Use(mw.RateLimitByIP(cfg.HTTPRateLimit))
	}

	// Huma API with shared route definitions; the OpenAPI generator
	// registers the same routes against stub handlers.
	api := humachi.New(router, routes.NewHumaConfig(cfg.BaseURL))
	api.UseMiddleware(
		mw.Auth(api, mw.AuthConfig{Partners: services.Partner, JWTSecret: []byte(cfg.JWTSecret)}),
		mw.UsageRecorder(services.Usage, logger),
		mw.PartnerRateLimit(limiter),
	)

	routes.Register(api, &routes.Handlers{
		Health:  handlers.NewHealthHandler(db).Health,
		Order:   handlers.NewOrderHandler(services.Order, services.Archive, logger),
		Billing: handlers.NewBillingHandler(services.Ledger, services.Topup),
		Admin:   handlers.NewAdminHandler(services.Settings, services.Partner, services.Order, services.Usage, logger),
	})

	// Webhooks bypass huma: signatures are verified over the raw body
	if cfg.StripeWebhookSecret != "" {
		stripeWebhook := handlers.NewStripeWebhookHandler(cfg, services.Topup, logger)
		router.Post("/webhooks/stripe", stripeWebhook.HandleWebhook)
		logger.Info("stripe webhook endpoint enabled")
	}
	if cfg.PlatformWebhookSecret != "" {
		platformWebhook := handlers.NewPlatformWebhookHandler(cfg, services.Partner, logger)
		router.Post("/webhooks/platform", platformWebhook.HandleWebhook)
		logger.Info("platform webhook endpoint enabled")
	}

	// Prometheus metrics (default registry)
	router.Handle("/metrics", promhttp.Handler())

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
		<-sigChan

		logger.Info("shutting down server")

		// Stop the dispatcher first so in-flight orders settle
		cancel()
		if dispatcher != nil {
			dispatcher.Stop()
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}
	}()

	// Start server
	logger.Info("starting server", "port", cfg.Port, "base_url", cfg.BaseURL)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
