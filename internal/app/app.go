package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/oguzkaracar/coursecommerce/internal/auth"
	"github.com/oguzkaracar/coursecommerce/internal/config"
	"github.com/oguzkaracar/coursecommerce/internal/event"
	"github.com/oguzkaracar/coursecommerce/internal/gateway"
	gatewaymock "github.com/oguzkaracar/coursecommerce/internal/gateway/mock"
	gatewayrest "github.com/oguzkaracar/coursecommerce/internal/gateway/rest"
	handler "github.com/oguzkaracar/coursecommerce/internal/handler/http"
	"github.com/oguzkaracar/coursecommerce/internal/repository/postgres"
	"github.com/oguzkaracar/coursecommerce/internal/service"
	"github.com/oguzkaracar/coursecommerce/migrations"
	"github.com/oguzkaracar/coursecommerce/pkg/database"
	"github.com/oguzkaracar/coursecommerce/pkg/health"
	pkgkafka "github.com/oguzkaracar/coursecommerce/pkg/kafka"
	"github.com/oguzkaracar/coursecommerce/pkg/middleware"
)

// App wires together all dependencies and runs the commerce service.
type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	pool       *pgxpool.Pool
	redis      *redis.Client
	producer   *pkgkafka.Producer
	dlq        *pkgkafka.DLQProducer
	consumer   *pkgkafka.Consumer
	httpServer *http.Server
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// PostgreSQL connection pool.
	pgCfg := database.PostgresConfig{
		Host:            cfg.PostgresHost,
		Port:            cfg.PostgresPort,
		User:            cfg.PostgresUser,
		Password:        cfg.PostgresPass,
		DBName:          cfg.PostgresDB,
		SSLMode:         cfg.PostgresSSL,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnLifetime: time.Duration(cfg.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(cfg.DBMaxConnIdleTimeMins) * time.Minute,
	}

	pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	prometheus.MustRegister(database.NewPoolStatsCollector(pool, "coursecommerce"))

	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	// Redis backs the entitlement cache and consumer deduplication.
	redisClient, err := database.NewRedisClient(ctx, database.RedisConfig{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("connected to Redis", slog.String("host", cfg.RedisHost))

	// Kafka producer and DLQ.
	producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
	dlq := pkgkafka.NewDLQProducer(cfg.KafkaBrokers, logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	// Payment gateway.
	paymentGateway := newPaymentGateway(cfg, logger)
	logger.Info("payment gateway initialized", slog.String("mode", cfg.GatewayMode))

	// Repositories.
	orderRepo := postgres.NewOrderRepository(pool)
	discountRepo := postgres.NewDiscountRepository(pool)
	entitlementRepo := postgres.NewEntitlementRepository(pool)

	// Services.
	eventProducer := event.NewProducer(producer, logger)
	entitlementService := service.NewEntitlementService(
		entitlementRepo,
		redisClient,
		time.Duration(cfg.EntitlementCacheTTLMins)*time.Minute,
		logger,
	)
	orderService := service.NewOrderService(orderRepo, eventProducer, logger)
	refundService := service.NewRefundService(orderRepo, paymentGateway, entitlementService, eventProducer, logger)
	discountService := service.NewDiscountService(discountRepo, eventProducer, logger)

	// Payment capture consumer with Redis-backed deduplication.
	dedupStore := pkgkafka.NewRedisIdempotencyStore(
		redisClient,
		"events:processed",
		time.Duration(cfg.EventDedupTTLHours)*time.Hour,
	)
	consumerHandler := event.NewConsumerHandler(orderService, discountService, entitlementService, logger)
	consumer := event.NewConsumer(cfg.KafkaBrokers, consumerHandler, dedupStore, dlq, logger)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.Register("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.Register("redis", func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})
	healthHandler.Register("kafka", func(ctx context.Context) error {
		return producer.Ping(ctx)
	})

	jwtManager := auth.NewJWTManager(cfg.JWTSecret)

	router := handler.NewRouter(handler.RouterDeps{
		Orders:       orderService,
		Refunds:      refundService,
		Discounts:    discountService,
		Entitlements: entitlementService,
		Health:       healthHandler,
		Validate:     jwtManager.Validator(),
		CORS:         middleware.CORSConfig{AllowedOrigins: cfg.CORSAllowedOrigins},
		Logger:       logger,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:        cfg,
		logger:     logger,
		pool:       pool,
		redis:      redisClient,
		producer:   producer,
		dlq:        dlq,
		consumer:   consumer,
		httpServer: httpServer,
	}, nil
}

func newPaymentGateway(cfg *config.Config, logger *slog.Logger) gateway.Gateway {
	if cfg.GatewayMode == config.GatewayModeREST {
		return gatewayrest.NewGateway(gatewayrest.Config{
			BaseURL: cfg.GatewayBaseURL,
			APIKey:  cfg.GatewayAPIKey,
		}, logger)
	}
	return gatewaymock.NewGateway()
}

// Run starts the HTTP server and the payment capture consumer, blocking
// until the context is canceled or either component fails.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	consumerCtx, stopConsumer := context.WithCancel(ctx)
	defer stopConsumer()

	go func() {
		if err := a.consumer.Start(consumerCtx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("kafka consumer: %w", err)
		}
	}()

	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown stops all components in order: the HTTP server drains in-flight
// requests, the consumer stops fetching, then producers and connections close.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if err := a.consumer.Close(); err != nil {
		a.logger.Error("kafka consumer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if err := a.dlq.Close(); err != nil {
		a.logger.Error("dlq producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if err := a.redis.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	a.pool.Close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
