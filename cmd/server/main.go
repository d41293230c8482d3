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

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/yourorg/rentledger/internal/domain"
	"github.com/yourorg/rentledger/internal/featureflags"
	"github.com/yourorg/rentledger/internal/handler"
	"github.com/yourorg/rentledger/internal/infrastructure/daraja"
	"github.com/yourorg/rentledger/internal/infrastructure/kafka"
	"github.com/yourorg/rentledger/internal/infrastructure/logger"
	"github.com/yourorg/rentledger/internal/infrastructure/redis"
	"github.com/yourorg/rentledger/internal/observability/metrics"
	"github.com/yourorg/rentledger/internal/observability/tracing"
	"github.com/yourorg/rentledger/internal/repository"
	"github.com/yourorg/rentledger/internal/security"
	"github.com/yourorg/rentledger/internal/security/audit"
	"github.com/yourorg/rentledger/internal/security/auth"
	"github.com/yourorg/rentledger/internal/security/middleware"
	"github.com/yourorg/rentledger/internal/security/ratelimit"
	"github.com/yourorg/rentledger/internal/service"
	"github.com/yourorg/rentledger/internal/worker"
	"github.com/yourorg/rentledger/pkg/config"
	"github.com/yourorg/rentledger/pkg/database"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize structured logger
	log := logger.NewLogger(cfg.LogLevel)
	log.Info("starting rentledger server", slog.String("environment", cfg.Environment))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.Init(ctx, log, cfg.TracingEndpoint, "rentledger", cfg.Environment)
	if err != nil {
		log.Error("failed to initialize tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 3. Open the database and apply migrations
	pool, err := database.NewConnectionPool(ctx, &cfg.Database, log)
	if err != nil {
		log.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	if err := repository.Migrate(ctx, pool.ORM()); err != nil {
		log.Error("failed to migrate database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	store := repository.NewStore(pool.ORM(), log)

	// 4. Optional Redis for the Daraja token cache
	var tokenCache daraja.TokenCache = daraja.NewMemoryTokenCache()
	var redisPing handler.Pinger
	if cfg.RedisURL != "" {
		redisClient, err := redis.NewClient(cfg.RedisURL, log)
		if err != nil {
			log.Error("failed to connect to Redis", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer redisClient.Close()
		tokenCache, redisPing = redisClient, redisClient
	}

	// 5. Payment gateway
	var gateway domain.PaymentGateway = daraja.Unconfigured{}
	if cfg.Daraja.Enabled() {
		client, err := daraja.NewClient(daraja.Config{
			BaseURL:        cfg.Daraja.BaseURL,
			ConsumerKey:    cfg.Daraja.ConsumerKey,
			ConsumerSecret: cfg.Daraja.ConsumerSecret,
			ShortCode:      cfg.Daraja.ShortCode,
			PassKey:        cfg.Daraja.PassKey,
			CallbackURL:    cfg.Daraja.CallbackURL,
			OAuthTimeout:   cfg.Daraja.OAuthTimeout,
			STKTimeout:     cfg.Daraja.STKTimeout,
		}, tokenCache, log)
		if err != nil {
			log.Error("invalid daraja configuration", slog.String("error", err.Error()))
			os.Exit(1)
		}
		gateway = client
	} else {
		log.Warn("daraja credentials not set, mobile-money payments disabled")
	}

	// 6. Domain events
	var events domain.EventPublisher = domain.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 && featureflags.EnabledOr(featureflags.KafkaEvents, true) {
		publisher, err := kafka.Connect(ctx, cfg.KafkaBrokers, cfg.KafkaTopic, 5, log)
		if err != nil {
			log.Error("failed to connect to Kafka", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer publisher.Close()
		events = publisher
	}

	// 7. Initialize security components and services
	tokenManager := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
	rateLimiter := ratelimit.NewLimiter(cfg.RateLimitPerMinute, time.Minute)
	auditLogger := audit.NewLogger(log)

	deps := service.Deps{
		Store:  store,
		Authz:  security.NewAuthorizationService(log),
		Audit:  auditLogger,
		Events: events,
		Clock:  time.Now,
		Logger: log,
	}
	leaseService := service.NewLeaseService(deps)
	unitService := service.NewUnitService(deps)
	tenantService := service.NewTenantService(deps)
	paymentService := service.NewPaymentService(deps)
	reportService := service.NewReportService(deps)
	notificationService := service.NewNotificationService(deps, reportService)
	authService := service.NewAuthService(deps, tokenManager, leaseService)
	chargeService := service.NewChargeService(deps, gateway)

	// 8. Setup HTTP routes
	mux := handler.NewMux(handler.Handlers{
		Auth:          handler.NewAuthHandler(authService, log),
		Properties:    handler.NewPropertyHandler(unitService, tenantService, log),
		Leases:        handler.NewLeaseHandler(leaseService, log),
		Payments:      handler.NewPaymentHandler(paymentService, log),
		Charges:       handler.NewChargeHandler(chargeService, log),
		Reports:       handler.NewReportHandler(reportService, log),
		Notifications: handler.NewNotificationHandler(notificationService, log),
		Health:        handler.NewHealthHandler(handler.PingFunc(pool.Health), redisPing, log),
	})

	// Chain middleware: request ID -> CORS -> JWT -> rate limit -> audit -> validation -> metrics
	rootHandler := middleware.Chain(metrics.HTTPMetricsMiddleware(mux),
		middleware.RequestID(log),
		middleware.CORS(cfg.CORSAllowedOrigins),
		middleware.JWTMiddleware(tokenManager, log),
		middleware.RateLimitMiddleware(rateLimiter, middleware.RateLimitPolicy{
			STKPerMinute:   cfg.STKRateLimitPerMinute,
			TrustedProxies: cfg.TrustedProxies,
		}, log),
		middleware.AuditMiddleware(auditLogger),
		middleware.ValidateJSONContentType(log),
		middleware.LimitBody(middleware.DefaultMaxBodyBytes),
		middleware.SanitizeInputs(log),
	)

	// 9. Start reminder worker in background
	if featureflags.EnabledOr(featureflags.RentReminders, true) {
		reminderWorker := worker.NewReminderWorker(notificationService, log, cfg.ReminderInterval)
		go reminderWorker.Start(ctx)
	} else {
		log.Info("rent reminder worker disabled by flag")
	}

	// 10. Start HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      otelhttp.NewHandler(rootHandler, "rentledger"),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second, // STK push may take up to the Daraja timeout
		IdleTimeout:  60 * time.Second,
	}

	log.Info("server starting",
		slog.Int("port", cfg.ServerPort),
		slog.String("database", cfg.Database.Driver),
		slog.Bool("daraja", cfg.Daraja.Enabled()),
		slog.Bool("redis", cfg.RedisURL != ""),
		slog.Int("kafka_brokers", len(cfg.KafkaBrokers)),
		slog.Int("rate_limit", cfg.RateLimitPerMinute),
	)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", slog.String("error", err.Error()))
			sigChan <- syscall.SIGTERM
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Info("shutdown signal received")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", slog.String("error", err.Error()))
	}

	cancel() // Stop reminder worker
	rateLimiter.Stop()
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn("tracing shutdown error", slog.String("error", err.Error()))
	}
	log.Info("server stopped")
}
