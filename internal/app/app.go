package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/cartstore/internal/config"
	"github.com/utafrali/cartstore/internal/event"
	handler "github.com/utafrali/cartstore/internal/handler/http"
	"github.com/utafrali/cartstore/internal/repository"
	memoryrepo "github.com/utafrali/cartstore/internal/repository/memory"
	redisrepo "github.com/utafrali/cartstore/internal/repository/redis"
	"github.com/utafrali/cartstore/internal/service"
	"github.com/utafrali/cartstore/pkg/database"
	"github.com/utafrali/cartstore/pkg/health"
	pkgkafka "github.com/utafrali/cartstore/pkg/kafka"
	"github.com/utafrali/cartstore/pkg/middleware"
	"github.com/utafrali/cartstore/pkg/tracing"
)

// ServiceName identifies this process in logs, traces and metrics.
const ServiceName = "cart-service"

// App wires together all dependencies and runs the cart service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	rdb            *redis.Client
	producer       *pkgkafka.Producer
	httpServer     *http.Server
	stopSweeper    context.CancelFunc
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger, stopSweeper: func() {}}

	tcfg := tracing.DefaultConfig(ServiceName)
	tcfg.Enabled = cfg.OTELEnabled
	tcfg.OTLPEndpoint = cfg.OTELEndpoint
	tcfg.SampleRate = cfg.OTELSampleRate
	tcfg.Environment = cfg.Environment
	shutdown, err := tracing.InitTracer(ctx, tcfg)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.tracerShutdown = shutdown

	healthHandler := health.NewHandler()

	repo, err := a.newRepository(ctx)
	if err != nil {
		_ = shutdown(context.Background())
		return nil, err
	}
	healthHandler.RegisterCritical("sessions", repo.Ping)

	// Leave events as a nil interface when Kafka is off.
	var events service.EventPublisher
	if cfg.EventsEnabled() {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		breakerCfg := pkgkafka.DefaultBreakerConfig("cart-events")
		breakerCfg.PublishTimeout = cfg.KafkaPublishTimeout
		breakerCfg.Timeout = cfg.KafkaBreakerOpenTimeout
		events = event.NewProducer(pkgkafka.NewBreakerPublisher(a.producer, breakerCfg, logger), logger)
		healthHandler.RegisterNonCritical("kafka", a.producer.Ping)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	} else {
		logger.Info("cart change events disabled, no kafka brokers configured")
	}

	cartService := service.NewCartService(repo, events, logger, service.Options{
		MaxEntriesPerCart:   cfg.MaxEntriesPerCart,
		MaxQuantityPerEntry: cfg.MaxQuantityPerEntry,
		MaxConflictRetries:  cfg.MaxConflictRetries,
	})

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.CORSAllowedOrigins
	cors.Environment = cfg.Environment

	router := handler.NewRouter(cartService, healthHandler, logger, handler.RouterConfig{
		CORS:       cors,
		PprofCIDRs: cfg.PprofAllowedCIDRs,
		RateLimit: middleware.RateLimitConfig{
			RPS:     cfg.RateLimitRPS,
			Burst:   cfg.RateLimitBurst,
			IPRPS:   cfg.IPRateLimitRPS,
			IPBurst: cfg.IPRateLimitBurst,
		},
	})

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return a, nil
}

// newRepository opens the configured session backend.
func (a *App) newRepository(ctx context.Context) (repository.CartRepository, error) {
	switch a.cfg.SessionBackend {
	case config.BackendRedis:
		rcfg := database.DefaultRedisConfig()
		rcfg.Addr = a.cfg.RedisAddr
		rcfg.Password = a.cfg.RedisPass
		rcfg.DB = a.cfg.RedisDB
		rcfg.SlowThreshold = a.cfg.RedisSlowThreshold
		rcfg.Logger = a.logger

		rdb, err := database.NewRedisClient(ctx, rcfg)
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.rdb = rdb
		if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, rdb, ServiceName); err != nil {
			a.logger.Warn("failed to register redis pool metrics", slog.String("error", err.Error()))
		}
		a.logger.Info("connected to Redis",
			slog.String("addr", a.cfg.RedisAddr),
			slog.Int("db", a.cfg.RedisDB),
		)
		return redisrepo.NewCartRepository(rdb, a.cfg.SessionTTL), nil

	default:
		repo := memoryrepo.NewCartRepository(a.cfg.SessionTTL)
		sweepCtx, stop := context.WithCancel(context.Background())
		a.stopSweeper = stop
		go repo.RunSweeper(sweepCtx, sweepInterval(a.cfg.SessionTTL))
		a.logger.Info("using in-memory session store", slog.Duration("ttl", a.cfg.SessionTTL))
		return repo, nil
	}
}

// sweepInterval checks for expired sessions a few times per TTL, bounded to
// [1s, 1m].
func sweepInterval(ttl time.Duration) time.Duration {
	d := ttl / 4
	switch {
	case d < time.Second:
		return time.Second
	case d > time.Minute:
		return time.Minute
	default:
		return d
	}
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
			slog.String("session_backend", a.cfg.SessionBackend),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components. Errors are logged and the first
// one is returned.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	a.stopSweeper()

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

	if err := a.tracerShutdown(shutdownCtx); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	a.logger.Info("application shutdown complete")
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}
