package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"

	"github.com/hariomGiri/localshop-connect-sub001/internal/auth"
	"github.com/hariomGiri/localshop-connect-sub001/internal/catalog"
	"github.com/hariomGiri/localshop-connect-sub001/internal/config"
	"github.com/hariomGiri/localshop-connect-sub001/internal/event"
	handler "github.com/hariomGiri/localshop-connect-sub001/internal/handler/http"
	"github.com/hariomGiri/localshop-connect-sub001/internal/pricing"
	"github.com/hariomGiri/localshop-connect-sub001/internal/repository/postgres"
	"github.com/hariomGiri/localshop-connect-sub001/internal/service"
	"github.com/hariomGiri/localshop-connect-sub001/migrations"
	"github.com/hariomGiri/localshop-connect-sub001/pkg/database"
	"github.com/hariomGiri/localshop-connect-sub001/pkg/health"
	"github.com/hariomGiri/localshop-connect-sub001/pkg/httpclient"
	pkgkafka "github.com/hariomGiri/localshop-connect-sub001/pkg/kafka"
	"github.com/hariomGiri/localshop-connect-sub001/pkg/middleware"
	"github.com/hariomGiri/localshop-connect-sub001/pkg/tracing"
)

const (
	serviceName    = "order-service"
	serviceVersion = "0.1.0"
)

// App wires together all dependencies and runs the order service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	producer       *pkgkafka.Producer
	dlq            *pkgkafka.DLQProducer
	consumer       *pkgkafka.Consumer
	httpServer     *http.Server
	tracerShutdown tracing.ShutdownFunc
}

// NewApp creates a new application instance, initializing all dependencies.
// Anything opened before a failure is closed again.
func NewApp(cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var cleanup []func()
	defer func() {
		if err != nil {
			for i := len(cleanup) - 1; i >= 0; i-- {
				cleanup[i]()
			}
		}
	}()

	tracerShutdown, err := tracing.InitTracer(ctx, cfg.Tracing(serviceName, serviceVersion))
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	cleanup = append(cleanup, func() { _ = tracerShutdown(context.Background()) })

	engine, err := pricing.NewEngine(pricing.Config{TaxRate: cfg.TaxRate, BaseDeliveryFee: cfg.BaseDeliveryFee})
	if err != nil {
		return nil, fmt.Errorf("init pricing: %w", err)
	}

	// PostgreSQL
	pool, err := database.NewPostgresPool(ctx, cfg.Postgres(), logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	cleanup = append(cleanup, pool.Close)
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, handler.ServiceName); err != nil {
		return nil, fmt.Errorf("register pool metrics: %w", err)
	}

	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	if cfg.SlowQueryThreshold > 0 {
		database.SetSlowQueryLogging(cfg.SlowQueryThreshold, logger)
	}

	// Redis
	redisClient, err := database.NewRedisClient(ctx, cfg.Redis())
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	cleanup = append(cleanup, func() { _ = redisClient.Close() })
	logger.Info("connected to Redis", slog.String("addr", cfg.RedisAddr))

	// Kafka
	producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
	cleanup = append(cleanup, func() { _ = producer.Close() })
	dlq := pkgkafka.NewDLQProducer(cfg.KafkaBrokers)
	cleanup = append(cleanup, func() { _ = dlq.Close() })
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	// Catalog client behind a circuit breaker and a Redis read-through cache.
	cbCfg := cfg.CircuitBreaker()
	cbClient := httpclient.NewCircuitBreakerClient(httpclient.New(httpclient.DefaultConfig()), cbCfg, logger)
	catalogReader := catalog.NewCachedReader(
		catalog.NewClient(cbClient, cfg.CatalogServiceURL),
		redisClient,
		cfg.CatalogCacheTTL,
		logger,
	)
	logger.Info("catalog client initialized",
		slog.String("url", cfg.CatalogServiceURL),
		slog.String("breaker", cbCfg.Name),
		slog.Duration("cache_ttl", cfg.CatalogCacheTTL),
	)

	// Build the dependency graph.
	repo := postgres.NewOrderRepository(pool)
	orderService := service.NewOrderService(
		repo,
		catalogReader,
		engine,
		event.NewProducer(producer, logger),
		service.Defaults{
			Currency:      cfg.Currency,
			PaymentMethod: cfg.DefaultPaymentMethod,
			Country:       cfg.DefaultCountry,
		},
		logger,
	)

	consumer := pkgkafka.NewConsumer(
		pkgkafka.ConsumerConfig{
			Brokers:      cfg.KafkaBrokers,
			GroupID:      cfg.KafkaConsumerGroup,
			MaxRetries:   cfg.KafkaMaxRetries,
			RetryBackoff: cfg.KafkaRetryBackoff,
		},
		event.Handlers(
			orderService,
			catalogReader,
			pkgkafka.NewRedisIdempotencyStore(redisClient, "order:events:", cfg.EventDedupTTL),
			logger,
		),
		dlq,
		logger,
	)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})
	healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
		return producer.Ping(ctx)
	})
	healthHandler.RegisterNonCritical("catalog", func(context.Context) error {
		if cbClient.State() == gobreaker.StateOpen {
			return errors.New("circuit breaker open")
		}
		return nil
	})

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, time.Hour)
	router := handler.NewRouter(orderService, healthHandler, jwtManager.TokenValidator(), logger, handler.RouterConfig{
		RequestTimeout:  cfg.HTTPRequestTimeout,
		CORS:            middleware.CORSConfig{AllowedOrigins: cfg.CORSAllowedOrigins, MaxAge: 600},
		PprofCIDRs:      cfg.PprofAllowedCIDRs,
		CreateRateLimit: cfg.CreateRateLimit(),
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.HTTPRequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		redis:          redisClient,
		producer:       producer,
		dlq:            dlq,
		consumer:       consumer,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// Run starts the event consumer and the HTTP server and blocks until the
// context is canceled or the server fails.
func (a *App) Run(ctx context.Context) error {
	consumerCtx, stopConsumer := context.WithCancel(ctx)
	defer stopConsumer()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := a.consumer.Run(consumerCtx); err != nil {
			a.logger.Error("event consumer stopped", slog.String("error", err.Error()))
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case runErr = <-errCh:
	}

	// Consumers stop first so no event is handled against a closing pool.
	stopConsumer()
	wg.Wait()

	return errors.Join(runErr, a.Shutdown())
}

// Shutdown gracefully stops all components in order:
// 1. HTTP server (drain in-flight requests)
// 2. Tracer (flush spans from drained requests)
// 3. Kafka consumer and producers
// 4. Redis client
// 5. PostgreSQL pool
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
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
		a.logger.Error("kafka dlq producer close error", slog.String("error", err.Error()))
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
