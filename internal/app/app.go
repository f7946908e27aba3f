package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/contactbook/internal/auth"
	"github.com/utafrali/contactbook/internal/config"
	"github.com/utafrali/contactbook/internal/event"
	handler "github.com/utafrali/contactbook/internal/handler/http"
	"github.com/utafrali/contactbook/internal/mailer"
	"github.com/utafrali/contactbook/internal/repository/postgres"
	rediscache "github.com/utafrali/contactbook/internal/repository/redis"
	"github.com/utafrali/contactbook/internal/service"
	"github.com/utafrali/contactbook/internal/storage"
	"github.com/utafrali/contactbook/internal/storage/memory"
	"github.com/utafrali/contactbook/migrations"
	"github.com/utafrali/contactbook/pkg/database"
	"github.com/utafrali/contactbook/pkg/health"
	"github.com/utafrali/contactbook/pkg/httpclient"
	pkgkafka "github.com/utafrali/contactbook/pkg/kafka"
	"github.com/utafrali/contactbook/pkg/middleware"
	"github.com/utafrali/contactbook/pkg/ratelimit"
	"github.com/utafrali/contactbook/pkg/tracing"
)

const (
	serviceName    = "contactbook"
	serviceVersion = "0.1.0"
	avatarPath     = "/avatars"
)

// App wires together all dependencies and runs the contactbook service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	producer       *pkgkafka.Producer
	dlq            *pkgkafka.DLQProducer
	consumer       *pkgkafka.Consumer
	async          *event.AsyncDispatcher
	closeLimiter   func()
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}
	// Release whatever was opened if a later step fails.
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	// Initialize OpenTelemetry tracing.
	a.tracerShutdown, err = tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Initialize PostgreSQL connection pool.
	pgCfg := cfg.Postgres()
	a.pool, err = database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	database.RegisterPoolMetrics(a.pool, serviceName)

	if err = database.RunMigrations(ctx, a.pool, migrations.FS, logger); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	if cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, logger)
	}

	// Initialize Redis for the account cache, rate limits and mail idempotency.
	a.redis, err = database.NewRedisClient(ctx, cfg.Redis(), logger)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("connected to Redis", slog.String("addr", cfg.Redis().Addr()))
	database.RegisterRedisMetrics(a.redis, serviceName)

	limiter, closeLimiter, err := ratelimit.New(cfg.RateLimitBackend, a.redis, ratelimit.Config{
		Times:  cfg.RateLimitTimes,
		Window: cfg.RateLimitWindow,
	})
	if err != nil {
		return nil, fmt.Errorf("init rate limiter: %w", err)
	}
	a.closeLimiter = closeLimiter

	tokens, err := auth.NewTokenManager(auth.TokenConfig{
		Secret:        cfg.JWTSecret,
		Algorithm:     cfg.JWTAlgorithm,
		AccessExpiry:  cfg.JWTAccessExpiry,
		RefreshExpiry: cfg.JWTRefreshExpiry,
		EmailExpiry:   cfg.JWTEmailExpiry,
	})
	if err != nil {
		return nil, fmt.Errorf("init token manager: %w", err)
	}

	healthHandler := health.NewHandler()

	// Mail delivery.
	renderer, err := mailer.NewRenderer(cfg.APIPrefix)
	if err != nil {
		return nil, fmt.Errorf("load mail templates: %w", err)
	}
	sender, err := mailer.NewSMTPSender(mailer.Config{
		Host:     cfg.MailServer,
		Port:     cfg.MailPort,
		Username: cfg.MailUsername,
		Password: cfg.MailPassword,
		From:     cfg.MailFrom,
		FromName: cfg.MailFromName,
		SSL:      cfg.MailSSLTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("init smtp sender: %w", err)
	}
	deliverer := mailer.New(renderer, sender, logger)

	mail := a.mailDispatcher(deliverer, healthHandler)

	// Avatar storage.
	store, avatars, err := a.avatarStorage(ctx)
	if err != nil {
		return nil, err
	}

	// Build the dependency graph.
	accountRepo := postgres.NewAccountRepository(a.pool)
	contactRepo := postgres.NewContactRepository(a.pool)
	accountCache := rediscache.NewAccountCache(a.redis, cfg.AccountCacheTTL)

	services := handler.Services{
		Auth:     service.NewAuthService(accountRepo, accountCache, tokens, auth.NewPasswordHasher(0), mail, logger),
		Contacts: service.NewContactService(contactRepo, cfg.ContactsLimits(), cfg.BirthdayDays(), logger),
		Profile:  service.NewProfileService(accountRepo, accountCache, store, cfg.AvatarPrefix, logger),
	}

	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return a.pool.Ping(ctx)
	})
	healthHandler.RegisterCritical("redis", func(ctx context.Context) error {
		return a.redis.Ping(ctx).Err()
	})

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.CORSAllowedOrigins
	cors.AllowCredentials = true
	cors.Environment = cfg.Environment

	routerCfg := handler.RouterConfig{
		ServiceName: serviceName,
		APIPrefix:   cfg.APIPrefix,
		CORS:        cors,
		Ban: middleware.BanConfig{
			UserAgents: cfg.BannedUserAgents,
			IPs:        cfg.BannedIPs,
		},
		PprofAllowedCIDRs: cfg.PprofAllowedCIDRs,
		TrustedProxies:    cfg.TrustedProxies,
		PublicURL:         cfg.PublicURL,
		RateLimiter:       limiter,
	}
	if avatars != nil {
		routerCfg.Avatars = avatars
		routerCfg.AvatarPath = avatarPath
	}

	router := handler.NewRouter(routerCfg, services, a.pool, healthHandler, logger)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// mailDispatcher selects in-process or Kafka-backed mail delivery.
func (a *App) mailDispatcher(deliverer *mailer.Mailer, healthHandler *health.Handler) service.MailDispatcher {
	if a.cfg.MailDispatch != config.MailDispatchKafka {
		a.async = event.NewAsyncDispatcher(deliverer, event.DefaultDeliveryTimeout, a.logger)
		a.logger.Info("mail dispatch: in-process")
		return a.async
	}

	a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(a.cfg.KafkaBrokers), a.logger)
	a.dlq = pkgkafka.NewDLQProducer(a.cfg.KafkaBrokers, a.logger)
	a.consumer = event.NewMailConsumer(event.MailConsumerConfig{
		Brokers: a.cfg.KafkaBrokers,
		Topic:   a.cfg.KafkaMailTopic,
	}, event.NewMailConsumerHandler(deliverer, a.logger), a.redis, a.dlq, a.logger)

	healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
		return a.producer.Ping(ctx)
	})
	a.logger.Info("mail dispatch: kafka",
		slog.Any("brokers", a.cfg.KafkaBrokers),
		slog.String("topic", a.cfg.KafkaMailTopic),
	)
	return event.NewKafkaDispatcher(a.producer, a.cfg.KafkaMailTopic, a.logger)
}

// avatarStorage returns S3 storage when an endpoint is configured and an
// in-memory store served by this process otherwise. The second return value
// is non-nil only for the in-memory store.
func (a *App) avatarStorage(ctx context.Context) (storage.Storage, handler.AvatarSource, error) {
	if a.cfg.S3Endpoint == "" {
		store := memory.New(strings.TrimRight(a.cfg.PublicURL, "/") + avatarPath)
		a.logger.Warn("S3_ENDPOINT not set, storing avatars in memory")
		return store, store, nil
	}

	breaker := httpclient.NewCircuitBreakerClient(
		httpclient.New(httpclient.DefaultConfig("s3")),
		httpclient.DefaultCircuitBreakerConfig("s3"),
		a.logger,
	)
	store, err := storage.NewS3Storage(ctx, storage.S3Config{
		Endpoint:  a.cfg.S3Endpoint,
		Region:    a.cfg.S3Region,
		AccessKey: a.cfg.S3AccessKey,
		SecretKey: a.cfg.S3SecretKey,
		Bucket:    a.cfg.S3Bucket,
		PublicURL: a.cfg.S3PublicURL,
	}, breaker)
	if err != nil {
		return nil, nil, fmt.Errorf("init s3 storage: %w", err)
	}
	a.logger.Info("avatar storage: s3",
		slog.String("endpoint", a.cfg.S3Endpoint),
		slog.String("bucket", a.cfg.S3Bucket),
	)
	return store, nil, nil
}

// Run starts the HTTP server and the mail consumer, and blocks until the
// context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	if a.consumer != nil {
		go func() {
			if err := a.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("mail consumer: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return errors.Join(err, a.Shutdown())
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Background mail deliveries and the mail consumer
// 3. Tracer (flush pending spans)
// 4. Kafka producers, rate limiter, Redis and PostgreSQL
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.async != nil {
		mailCtx, mailCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer mailCancel()
		if err := a.async.Wait(mailCtx); err != nil {
			a.logger.Error("pending mail deliveries abandoned", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	errs = append(errs, a.close())

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// close releases every resource opened by NewApp. Fields that were never
// initialized are skipped.
func (a *App) close() error {
	var errs []error
	record := func(what string, err error) {
		if err != nil {
			a.logger.Error(what+" close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.consumer != nil {
		record("mail consumer", a.consumer.Close())
	}
	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		record("tracer", a.tracerShutdown(tracerCtx))
		tracerCancel()
	}
	if a.producer != nil {
		record("kafka producer", a.producer.Close())
	}
	if a.dlq != nil {
		record("dlq producer", a.dlq.Close())
	}
	if a.closeLimiter != nil {
		a.closeLimiter()
	}
	if a.redis != nil {
		record("redis", a.redis.Close())
	}
	if a.pool != nil {
		a.pool.Close()
	}
	return errors.Join(errs...)
}
