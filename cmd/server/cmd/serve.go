package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Togather-Foundation/webhook-receiver/internal/api"
	"github.com/Togather-Foundation/webhook-receiver/internal/api/handlers"
	"github.com/Togather-Foundation/webhook-receiver/internal/config"
	"github.com/Togather-Foundation/webhook-receiver/internal/domain/webhooks"
	natspub "github.com/Togather-Foundation/webhook-receiver/internal/messaging/nats"
	"github.com/Togather-Foundation/webhook-receiver/internal/metrics"
	"github.com/Togather-Foundation/webhook-receiver/internal/ratelimit"
	"github.com/Togather-Foundation/webhook-receiver/internal/storage/memory"
	"github.com/Togather-Foundation/webhook-receiver/internal/storage/postgres"
	"github.com/Togather-Foundation/webhook-receiver/internal/telemetry"
)

const dbMetricsInterval = 15 * time.Second

var (
	// Server flags (override config/env)
	serverHost string
	serverPort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook receiver HTTP server",
	Long: `Start the webhook receiver and begin accepting deliveries.

The server will:
- Load configuration from environment variables (or --config file if provided)
- Connect to the event store and apply migrations (STORE_DRIVER=postgres)
- Start the HTTP server
- Handle graceful shutdown on SIGINT/SIGTERM

Examples:
  # Start with default configuration (from env vars)
  webhook-receiver serve

  # Start on a specific host and port
  webhook-receiver serve --host 127.0.0.1 --port 9090

  # Run without a database
  STORE_DRIVER=memory webhook-receiver serve --log-format console`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&serverHost, "host", "", "server host address (default: 0.0.0.0)")
	serveCmd.Flags().IntVar(&serverPort, "port", 0, "server port (default: 8080)")
}

func runServer(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if serverHost != "" {
		cfg.Server.Host = serverHost
	}
	if serverPort != 0 {
		cfg.Server.Port = serverPort
	}

	logger := config.NewLogger(cfg.Logging)
	logger.Info().Str("version", Version).Str("environment", cfg.Environment).Msg("starting webhook receiver")
	metrics.Init(Version, GitCommit, BuildDate)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		app.Close(closeCtx)
	}()

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           app.handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	return gracefulShutdown(server, cfg.Server.ShutdownTimeout, logger)
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}

	// Override logging from flags if provided
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	return cfg, nil
}

// app is the assembled receiver: an HTTP handler plus everything that must
// be released on shutdown, closed in reverse order of creation.
type app struct {
	handler http.Handler
	closers []func(context.Context) error
	logger  zerolog.Logger
}

func (a *app) onClose(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

func (a *app) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.logger.Error().Err(err).Msg("shutdown error")
		}
	}
	a.closers = nil
}

func buildApp(ctx context.Context, cfg config.Config, logger zerolog.Logger) (_ *app, err error) {
	a := &app{logger: logger}
	defer func() {
		if err != nil {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			a.Close(closeCtx)
		}
	}()

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.Tracing, Version)
	if err != nil {
		return nil, fmt.Errorf("tracing init failed: %w", err)
	}
	a.onClose(func(ctx context.Context) error { return shutdownTracing(ctx) })

	store, err := openStore(ctx, a, cfg, logger)
	if err != nil {
		return nil, err
	}

	if cfg.Webhook.Secret == "" {
		logger.Warn().Msg("WEBHOOK_SECRET is not set; signature verification is disabled")
	}

	ingestOpts := []webhooks.IngestOption{webhooks.WithInsertTimeout(cfg.Webhook.InsertTimeout)}
	list := webhooks.NewListService(store)
	health := handlers.NewHealthChecker(list, Version, GitCommit)

	if cfg.NATS.URL != "" {
		natsCfg := natspub.DefaultConfig()
		natsCfg.URL = cfg.NATS.URL
		natsCfg.SubjectPrefix = cfg.NATS.SubjectPrefix
		publisher, err := natspub.Connect(natsCfg, logger)
		if err != nil {
			return nil, err
		}
		a.onClose(func(context.Context) error { return publisher.Close() })
		ingestOpts = append(ingestOpts, webhooks.WithPublisher(publisher))
		health.WithDependency("nats", publisher)
		logger.Info().Str("subject_prefix", natsCfg.SubjectPrefix).Msg("publishing stored events to NATS")
	}

	webhookLimiter, err := newLimiter(ctx, a, cfg, cfg.RateLimit.WebhookPerMinute)
	if err != nil {
		return nil, err
	}
	publicLimiter, err := newLimiter(ctx, a, cfg, cfg.RateLimit.PublicPerMinute)
	if err != nil {
		return nil, err
	}
	if redisLimiter, ok := webhookLimiter.(*ratelimit.RedisLimiter); ok {
		health.WithDependency("redis", redisLimiter)
	}

	verifier := webhooks.NewSignatureVerifier(cfg.Webhook.Secret)
	normalizer := webhooks.NewNormalizer(webhooks.NewMonotonicClock())

	a.handler = api.NewRouter(api.Dependencies{
		Logger:         logger,
		Ingest:         webhooks.NewIngestService(store, verifier, normalizer, ingestOpts...),
		Events:         list,
		Health:         health,
		WebhookLimiter: webhookLimiter,
		PublicLimiter:  publicLimiter,
		TrustedProxies: cfg.RateLimit.TrustedProxies,
		MaxBodyBytes:   cfg.Webhook.MaxBodyBytes,
		RequireHTTPS:   cfg.Environment == "production",
		Version:        Version,
		GitCommit:      GitCommit,
		BuildDate:      BuildDate,
	})
	return a, nil
}

func openStore(ctx context.Context, a *app, cfg config.Config, logger zerolog.Logger) (webhooks.Store, error) {
	if cfg.Store.Driver == config.StoreDriverMemory {
		logger.Warn().Msg("using in-memory event store; events are lost on restart")
		return memory.NewStore(), nil
	}

	if cfg.Database.AutoMigrate {
		if err := postgres.MigrateUp(cfg.Database.URL); err != nil {
			return nil, fmt.Errorf("database migration failed: %w", err)
		}
		logger.Info().Msg("database migrations applied")
	}

	pool, err := postgres.Open(ctx, cfg.Database.URL, cfg.Database.MaxConnections)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	a.onClose(func(context.Context) error { pool.Close(); return nil })

	collector := metrics.NewDBCollector(pool)
	collectorCtx, cancel := context.WithCancel(context.Background())
	go collector.Start(collectorCtx, dbMetricsInterval)
	a.onClose(func(context.Context) error {
		cancel()
		collector.Stop()
		return nil
	})

	repo, err := postgres.NewEventRepository(pool)
	if err != nil {
		return nil, err
	}
	logger.Info().Msg("connected to event store")
	return repo, nil
}

// newLimiter returns nil when perMinute is zero, which disables the tier.
func newLimiter(ctx context.Context, a *app, cfg config.Config, perMinute int) (ratelimit.Limiter, error) {
	if perMinute <= 0 {
		return nil, nil
	}
	if cfg.RateLimit.Backend == config.RateLimitBackendRedis {
		limiter, err := ratelimit.NewRedisLimiter(ctx, cfg.Redis.URL, perMinute, time.Minute)
		if err != nil {
			return nil, err
		}
		a.onClose(func(context.Context) error { return limiter.Close() })
		return limiter, nil
	}
	limiter := ratelimit.NewMemoryLimiter(perMinute)
	a.onClose(func(context.Context) error { return limiter.Close() })
	return limiter, nil
}

func gracefulShutdown(server *http.Server, timeout time.Duration, logger zerolog.Logger) error {
	logger.Info().Msg("shutting down")

	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
		return err
	}

	logger.Info().Msg("server stopped")
	return nil
}
