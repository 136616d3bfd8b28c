package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/salonpos/access-service/internal/client"
	"github.com/salonpos/access-service/internal/config"
	"github.com/salonpos/access-service/internal/handler"
	"github.com/salonpos/access-service/internal/middleware"
	"github.com/salonpos/access-service/internal/repository"
	"github.com/salonpos/access-service/internal/service"
	"github.com/salonpos/access-service/internal/sessions"
	"github.com/salonpos/access-service/internal/telemetry"
	"github.com/salonpos/access-service/internal/util/logger"
)

var version = "development"

func main() {
	configPath := "config/app-config.yaml"
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		configPath = p
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		panic(fmt.Errorf("failed to load config: %w", err))
	}

	logger.ReplaceGlobal(&logger.Config{
		Level:  cfg.Logger.Level,
		Format: cfg.Logger.Encoding,
	})
	defer logger.Sync()

	logger.Info("Starting access-service %s (env=%s)", version, cfg.Env)

	// Door secret, optionally from Secrets Manager
	if err := config.ResolveDoorSecret(ctx, cfg, nil); err != nil {
		logger.Fatalf("Door secret resolution failed: %v", err)
	}
	if cfg.Door.Secret == "" && !cfg.IsDevelopment() {
		// Not fatal here: the secret guard answers 503 until an operator
		// fixes the config, and the health endpoint reports it.
		logger.Error("No door secret configured outside development; door control will refuse requests")
	}

	// Audit log store
	var attemptRepo repository.AccessAttemptRepository
	var db *sql.DB
	if cfg.DatabaseURL != "" {
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("Database open failed: %v", err)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			logger.Fatalf("Database ping failed: %v", err)
		}
		if err := repository.EnsureSchema(ctx, db); err != nil {
			logger.Fatalf("Schema bootstrap failed: %v", err)
		}
		attemptRepo = repository.NewPostgresAccessAttemptRepository(db)
	} else {
		if !cfg.IsDevelopment() {
			logger.Fatalf("database_url is required outside development")
		}
		logger.Warn("No database configured, audit log is in-memory only")
		attemptRepo = repository.NewMemoryAccessAttemptRepository()
	}

	// Rate limit store: Redis when configured so instances share budgets,
	// otherwise per-process memory.
	var limiterStore middleware.Store
	var redisClient *client.RedisClient
	if cfg.RedisURL != "" {
		ropts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatalf("Invalid redis_url: %v", err)
		}
		redisClient, err = client.NewRedisClient(ctx, client.RedisConfig{
			Address:  ropts.Addr,
			Password: ropts.Password,
			DB:       ropts.DB,
			CircuitBreaker: client.CircuitBreakerConfig{
				Enabled:      true,
				FailureRatio: 0.5,
				RecoveryTime: 30 * time.Second,
				MinRequests:  20,
			},
		})
		if err != nil {
			logger.Fatalf("Redis connect failed: %v", err)
		}
		defer redisClient.Close()
		limiterStore = middleware.NewRedisStore(redisClient)
	} else {
		limiterStore = middleware.NewMemoryStore(cfg.RateLimit.SweepSlack)
	}

	// Audit shipper
	shipper, err := telemetry.NewKafkaAuditShipper(cfg.Telemetry.Kafka)
	if err != nil {
		logger.Fatalf("Kafka shipper init failed: %v", err)
	}
	shipper.Start()

	// Optional search sink: consume the audit topic back into Elasticsearch.
	bridge := telemetry.NewKafkaToES(cfg.Telemetry.Kafka, cfg.Telemetry.Elastic)
	bridge.Start(ctx)

	// Audit retention
	sweeper := service.NewRetentionSweeper(attemptRepo, cfg.Audit.Retention, cfg.Audit.SweepInterval)
	sweeper.Start()

	// Collaborators
	matcher := client.NewMatcherClient(cfg.Matcher.URL, cfg.Matcher.Timeout)
	doors := client.NewRelayClient(cfg.Door.RelayURL, cfg.Door.RelayTimeout)

	// Core services
	engine := service.NewDecisionEngine(cfg.Matcher.MinConfidence, cfg.Matcher.AutoApprove, !cfg.Matcher.AllowNonLive)
	access := service.NewAccessService(matcher, doors, engine, attemptRepo, shipper)
	sessionManager := sessions.NewManager(sessions.Config{
		SigningKey: cfg.Session.SigningKey,
		TokenTTL:   cfg.Session.TokenTTL,
		Issuer:     cfg.Session.Issuer,
	})

	// Guard chain
	originGuard := middleware.NewOriginGuard()
	secretGuard := middleware.NewSecretGuard(middleware.SecretPolicy{
		Secret:            cfg.Door.Secret,
		AllowUnconfigured: cfg.IsDevelopment(),
	}, sessionManager)
	rateLimiter := middleware.NewRateLimiter(middleware.LimiterConfig{
		Max:             cfg.RateLimit.Max,
		Window:          cfg.RateLimit.Window,
		KeyPrefix:       cfg.RateLimit.KeyPrefix,
		StrictOnFailure: cfg.RateLimit.StrictOnFailure,
	}, limiterStore)

	// Handlers
	identifyHandler := handler.NewIdentifyHandler(access)
	doorHandler := handler.NewDoorHandler(access, cfg.Door.DefaultDoorID)
	attemptsHandler := handler.NewAttemptsHandler(access)
	sessionHandler := handler.NewSessionHandler(sessionManager, cfg.Door.Secret)
	healthHandler := handler.NewHealthHandler(cfg, version, db, redisClient)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger)

	r.Get("/healthz", healthHandler.ServeHTTP)
	r.Get("/livez", healthHandler.LivenessHandler)
	r.Get("/readyz", healthHandler.ReadinessHandler)

	r.Route("/v1", func(r chi.Router) {
		// Ordering matters: origin first, then secret, then the rate
		// counter, so disallowed callers are never counted.
		r.Group(func(r chi.Router) {
			r.Use(originGuard.Handler)
			r.Post("/face/identify", identifyHandler.Identify)
			r.Get("/door/attempts", attemptsHandler.List)
			r.Get("/door/attempts/export", attemptsHandler.Export)
			r.Get("/ratelimit/stats", rateLimiter.StatsHandler)
		})

		r.Group(func(r chi.Router) {
			r.Use(originGuard.Handler)
			r.Use(rateLimiter.Handler)
			r.Post("/session", sessionHandler.Create)
		})

		r.Group(func(r chi.Router) {
			r.Use(originGuard.Handler)
			r.Use(secretGuard.Handler)
			r.Use(rateLimiter.Handler)
			r.Post("/door/open", doorHandler.OpenDoor)
			r.Post("/door/auto", doorHandler.AutoUnlock)
		})
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("HTTP server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("Shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error: %v", err)
	}
	sweeper.Stop(shutdownCtx)
	cancel() // stops the kafka reader
	bridge.Stop(shutdownCtx)
	shipper.Stop(shutdownCtx)
	logger.Info("Shutdown complete")
}
