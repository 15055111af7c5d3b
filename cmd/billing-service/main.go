package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dhoini/comics-billing/internal/app"
	"github.com/Dhoini/comics-billing/internal/config"
	"github.com/Dhoini/comics-billing/internal/db"
	billinggrpc "github.com/Dhoini/comics-billing/internal/grpc"
	"github.com/Dhoini/comics-billing/internal/http/handlers"
	"github.com/Dhoini/comics-billing/internal/http/routes"
	"github.com/Dhoini/comics-billing/internal/interceptors"
	"github.com/Dhoini/comics-billing/internal/kafka"
	"github.com/Dhoini/comics-billing/internal/metrics"
	"github.com/Dhoini/comics-billing/internal/middleware"
	"github.com/Dhoini/comics-billing/internal/repository"
	"github.com/Dhoini/comics-billing/internal/repository/postgres"
	"github.com/Dhoini/comics-billing/internal/services"
	"github.com/Dhoini/comics-billing/internal/stripe"
	"github.com/Dhoini/comics-billing/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.App.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Infow("Billing service starting up", "env", cfg.App.Env)

	if err := cfg.Validate(); err != nil {
		log.Fatalw("Invalid configuration", "error", err)
	}
	policy, err := services.ParseCancelPolicy(cfg.Billing.CancelPolicy)
	if err != nil {
		log.Fatalw("Invalid cancel policy", "error", err)
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// База данных
	dbClient, err := db.NewDBClient(ctx, db.PoolConfig{
		DSN:      cfg.Database.DSN,
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	}, log)
	if err != nil {
		log.Fatalw("Failed to connect to database", "error", err)
	}
	defer func() { _ = dbClient.Close() }()

	healthChecks := map[string]handlers.HealthCheck{
		"postgres": func(ctx context.Context) error { return dbClient.Pool().Ping(ctx) },
	}

	subscriptionRepo := repository.NewPostgresSubscriptionRepository(dbClient.DB(), log)
	var userRepo repository.UserRepository = postgres.NewPostgresUserRepository(dbClient.Pool(), log)

	// Redis не обязателен: без него нет журнала событий и кэша клиентов
	var ledger services.EventLedger
	if cfg.Redis.Addr != "" {
		redisCache, err := repository.NewRedisCacheRepository(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
		if err != nil {
			log.Warnw("Redis unavailable, continuing without event ledger and customer cache", "error", err)
		} else {
			defer func() { _ = redisCache.Close() }()
			ledger = redisCache
			userRepo = repository.NewCachedUserRepository(userRepo, redisCache, log)
			healthChecks["redis"] = redisCache.Ping
		}
	} else {
		log.Infow("Redis is not configured, replay ledger disabled")
	}

	// Kafka тоже не обязательна
	var publisher services.ReconcilePublisher
	if len(cfg.Kafka.Brokers) > 0 {
		topic := cfg.Kafka.Topic
		if topic == "" {
			topic = kafka.DefaultTopic
		}
		setupCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := kafka.EnsureTopics(setupCtx, cfg.Kafka.Brokers, []kafka.Topic{{Name: topic}}, log); err != nil {
			log.Warnw("Failed to ensure Kafka topics", "error", err)
		}
		cancel()

		kafkaPublisher, err := kafka.NewKafkaPublisher(cfg.Kafka.Brokers, topic, log)
		if err != nil {
			log.Warnw("Kafka publisher unavailable, continuing without notifications", "error", err)
		} else {
			defer func() { _ = kafkaPublisher.Close() }()
			publisher = kafkaPublisher
		}
	}

	// Метрики
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	billingMetrics := metrics.NewBillingMetrics(registry, log)
	systemMetrics := metrics.NewSystemMetrics(registry, log)
	systemMetrics.StartRecording(15 * time.Second)
	defer systemMetrics.Stop()

	// Клиент Stripe создается один раз и передается сервисам
	gateway := stripe.NewStripeClient(cfg.Stripe.APIKey, log)
	verifier, err := stripe.NewVerifier(cfg.Stripe.WebhookSecret)
	if err != nil {
		log.Fatalw("Failed to create webhook verifier", "error", err)
	}

	sessions := services.NewSessionInitiator(userRepo, gateway, services.SessionConfig{
		FrontendURL:    cfg.App.FrontendURL,
		DefaultPriceID: cfg.Stripe.DefaultPriceID,
	}, billingMetrics, log)
	reconciler := services.NewSubscriptionReconciler(subscriptionRepo, userRepo, cfg.PlanFor, publisher, billingMetrics, log)
	dispatcher := services.NewEventDispatcher(reconciler, gateway, ledger, log)
	gate := services.NewAccessGate(subscriptionRepo, policy, billingMetrics, log)
	log.Infow("Billing services initialized", "cancelPolicy", policy.String())

	validator := middleware.NewTokenValidator(cfg.Auth.JWTSecret)
	application := app.NewApp(app.Deps{
		Verifier:     verifier,
		Dispatcher:   dispatcher,
		Sessions:     sessions,
		Gate:         gate,
		Validator:    validator,
		Metrics:      billingMetrics,
		Registry:     registry,
		HealthChecks: healthChecks,
	}, log)

	router := gin.New()
	routes.SetupRoutes(router, application, log)

	httpServer := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	authInterceptor := interceptors.NewAuthInterceptor(log, validator)
	grpcServer := billinggrpc.NewServer(log, interceptors.Logging(log), authInterceptor.Unary())
	grpcServer.RegisterAccessGate(billinggrpc.NewAccessServer(gate, log))

	serveErr := make(chan error, 2)
	go func() {
		log.Infow("Starting HTTP server", "port", cfg.App.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("http: %w", err)
		}
	}()
	go func() {
		if err := grpcServer.ListenAndServe(cfg.GRPC.Port); err != nil {
			serveErr <- fmt.Errorf("grpc: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Infow("Shutdown signal received")
	case err := <-serveErr:
		log.Errorw("Server failed, shutting down", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Errorw("HTTP server shutdown error", "error", err)
	} else {
		log.Infow("HTTP server gracefully stopped")
	}

	stopped := make(chan struct{})
	go func() {
		grpcServer.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
		log.Infow("gRPC server gracefully stopped")
	case <-shutdownCtx.Done():
		log.Warnw("gRPC server did not stop before deadline")
	}

	log.Infow("Cleanup finished")
}
