package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/suivie/storefront/internal/cart"
	"github.com/suivie/storefront/internal/config"
	"github.com/suivie/storefront/internal/event"
	handler "github.com/suivie/storefront/internal/handler/http"
	"github.com/suivie/storefront/internal/repository"
	"github.com/suivie/storefront/internal/repository/memory"
	"github.com/suivie/storefront/internal/repository/postgres"
	"github.com/suivie/storefront/internal/repository/postgres/migrations"
	redisrepo "github.com/suivie/storefront/internal/repository/redis"
	"github.com/suivie/storefront/internal/service"
	"github.com/suivie/storefront/internal/shopify"
	"github.com/suivie/storefront/pkg/database"
	"github.com/suivie/storefront/pkg/health"
	"github.com/suivie/storefront/pkg/httpclient"
	pkgkafka "github.com/suivie/storefront/pkg/kafka"
	"github.com/suivie/storefront/pkg/middleware"
	"github.com/suivie/storefront/pkg/tracing"
)

// ServiceName labels logs, metrics and traces.
const ServiceName = "storefront"

// App wires together all dependencies and runs the storefront service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	rdb            *redis.Client
	pool           *pgxpool.Pool
	producer       *pkgkafka.Producer
	carts          *cart.Registry
	health         *health.Handler
	httpServer     *http.Server
	listeners      []listener
	tracerShutdown func(context.Context) error
}

// listener is a background loop delivering remote change notifications.
type listener struct {
	name string
	run  func(ctx context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger, health: health.NewHandler(2 * time.Second)}

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    ServiceName,
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTelEndpoint,
		SampleRate:     cfg.OTelSampleRate,
		Enabled:        cfg.OTelEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.tracerShutdown = tracerShutdown

	database.SetSlowQueryLogging(cfg.SlowQueryThreshold, logger)

	if err := a.connect(ctx); err != nil {
		return nil, a.abort(err)
	}

	factory, err := a.storage(ctx)
	if err != nil {
		return nil, a.abort(err)
	}
	notifier := a.notifier()

	// Build the dependency graph.
	a.carts = cart.NewRegistry(factory, notifier, cfg.CartKey, logger,
		cart.WithIdleTTL(cfg.CartIdleTTL),
		cart.WithMaxStores(cfg.CartMaxStores),
	)

	httpClient := httpclient.New(httpclient.Config{
		Timeout:         cfg.ShopifyTimeout,
		MaxRetries:      2,
		RetryWaitMin:    250 * time.Millisecond,
		RetryWaitMax:    2 * time.Second,
		MaxConnsPerHost: 32,
	})
	breaker := httpclient.NewCircuitBreakerClient(httpClient, httpclient.DefaultCircuitBreakerConfig("shopify"), logger)
	shop := shopify.NewClient(shopify.Config{
		Domain:     cfg.ShopifyDomain,
		Token:      cfg.ShopifyToken,
		APIVersion: cfg.ShopifyAPIVersion,
	}, breaker, logger)
	if !shop.Configured() {
		logger.Warn("shopify storefront is not configured, catalog and checkout will answer 503")
	}
	checkoutService := service.NewCheckoutService(shop, logger, cfg.ClearOnCheckout)

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.CORSOrigins

	// HTTP router.
	router := handler.NewRouter(handler.RouterConfig{
		ServiceName:     ServiceName,
		Carts:           a.carts,
		Catalog:         shop,
		Checkout:        checkoutService,
		Health:          a.health,
		Logger:          logger,
		CORS:            cors,
		PprofCIDRs:      cfg.PprofCIDRs,
		ProductCacheTTL: cfg.ProductCacheTTL,
		RequestTimeout:  cfg.RequestTimeout,
		RateLimitRPS:    cfg.RateLimitRPS,
		RateLimitBurst:  cfg.RateLimitBurst,
	})

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// connect opens the Redis client when any backend needs it.
func (a *App) connect(ctx context.Context) error {
	if !a.cfg.UsesRedis() {
		return nil
	}
	rc := database.DefaultRedisConfig()
	if a.cfg.RedisAddr != "" {
		rc.Addr = a.cfg.RedisAddr
	}
	rc.Password = a.cfg.RedisPass
	rc.DB = a.cfg.RedisDB

	rdb, err := database.NewRedisClient(ctx, rc)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	a.logger.Info("connected to Redis",
		slog.String("addr", rc.Addr),
		slog.Int("db", rc.DB),
	)
	a.rdb = rdb
	a.health.Register("redis", func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})
	return nil
}

// storage returns the repository factory of the configured backend.
func (a *App) storage(ctx context.Context) (repository.Factory, error) {
	switch a.cfg.StorageBackend {
	case config.StorageRedis:
		return redisrepo.Factory(a.rdb, a.cfg.CartTTLDuration()), nil

	case config.StoragePostgres:
		pgCfg := database.DefaultPostgresConfig()
		pgCfg.Host = a.cfg.PostgresHost
		pgCfg.Port = a.cfg.PostgresPort
		pgCfg.User = a.cfg.PostgresUser
		pgCfg.Password = a.cfg.PostgresPassword
		pgCfg.DBName = a.cfg.PostgresDB
		pgCfg.SSLMode = a.cfg.PostgresSSLMode
		pgCfg.MaxConns = a.cfg.PostgresMaxConns

		pool, err := database.NewPostgresPool(ctx, &pgCfg, a.logger)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		a.pool = pool
		a.logger.Info("connected to PostgreSQL",
			slog.String("host", a.cfg.PostgresHost),
			slog.Int("port", a.cfg.PostgresPort),
			slog.String("database", a.cfg.PostgresDB),
		)
		database.RegisterPoolMetrics(pool, ServiceName)

		if err := database.RunMigrations(ctx, pool, migrations.FS, a.logger); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		a.logger.Info("database migrations completed")

		a.health.Register("postgres", func(ctx context.Context) error {
			return pool.Ping(ctx)
		})
		return postgres.Factory(pool), nil

	default:
		a.logger.Warn("using in-memory cart storage, carts are lost on restart")
		return memory.NewSlots().Factory(), nil
	}
}

// notifier builds the change notifier. The in-process bus is always part of
// it; redis and kafka add a cross-process transport with its listener.
func (a *App) notifier() event.Notifier {
	bus := event.NewBus()

	switch a.cfg.NotifyBackend {
	case config.NotifyRedis:
		n := event.NewRedisNotifier(a.rdb, a.cfg.RedisChannel, a.logger)
		a.listeners = append(a.listeners, listener{name: "redis notifier", run: n.Run})
		return event.Fanout{bus, n}

	case config.NotifyKafka:
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(a.cfg.KafkaBrokers), a.logger)
		a.health.Register("kafka", a.producer.Ping)

		n := event.NewKafkaNotifier(a.producer, ServiceName, a.logger)
		// Each process must see every change, so each gets its own group.
		group := ServiceName + "-" + uuid.NewString()
		consumer := n.Consumer(pkgkafka.ConsumerConfig{
			Brokers:     a.cfg.KafkaBrokers,
			GroupID:     group,
			StartOffset: kafkago.LastOffset,
			MaxWait:     500 * time.Millisecond,
		})
		a.listeners = append(a.listeners, listener{name: "kafka notifier", run: consumer.Start})
		return event.Fanout{bus, n}

	default:
		return bus
	}
}

// Handler returns the HTTP handler.
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}

// Run starts the HTTP server and the notification listeners, then blocks
// until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1+len(a.listeners))

	listenCtx, stopListeners := context.WithCancel(ctx)
	defer stopListeners()

	// Start HTTP server.
	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	// Start notification listeners.
	for _, l := range a.listeners {
		go func() {
			a.logger.Info("starting listener", slog.String("listener", l.name))
			if err := l.run(listenCtx); err != nil && listenCtx.Err() == nil {
				errCh <- fmt.Errorf("%s: %w", l.name, err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in order:
// 1. Readiness (report draining so load balancers stop routing)
// 2. HTTP server (drain in-flight requests)
// 3. Tracer (flush pending spans from drained requests)
// 4. Cart stores (stop reacting to notifications)
// 5. Kafka producer, Redis client and PostgreSQL pool
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	a.health.SetDraining()

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

	a.carts.Close()

	errs = append(errs, a.closeClients()...)

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// abort releases what NewApp acquired before failing with err.
func (a *App) abort(err error) error {
	a.closeClients()
	if a.tracerShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if terr := a.tracerShutdown(ctx); terr != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", terr.Error()))
		}
	}
	return err
}

func (a *App) closeClients() []error {
	var errs []error
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	return errs
}
