package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/orato-app/orato/pkg/api"
	"github.com/orato-app/orato/pkg/audit"
	"github.com/orato-app/orato/pkg/billing"
	"github.com/orato-app/orato/pkg/config"
	"github.com/orato-app/orato/pkg/middleware"
	"github.com/orato-app/orato/pkg/observability"
	"github.com/orato-app/orato/pkg/plans"
	"github.com/orato-app/orato/pkg/provider"
	"github.com/orato-app/orato/pkg/storage/postgres"
	"github.com/orato-app/orato/pkg/usage"
	"github.com/orato-app/orato/pkg/users"
)

// redisGoClient unwraps the underlying client, tolerating a nil wrapper.
func redisGoClient(rc *postgres.RedisClient) *redis.Client {
	if rc == nil {
		return nil
	}
	return rc.GetClient()
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		observability.NewLogger(observability.ErrorLevel, nil).WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, nil)
	metrics := observability.NewMetrics(nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := observability.InitTracing(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize tracing")
		os.Exit(1)
	}

	cm, err := postgres.NewConnectionManager(postgres.ConnectionConfig{
		PrimaryURL:  cfg.Database.URL,
		ReplicaURLs: postgres.ParseReplicaURLs(cfg.Database.ReplicaURLs),
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		Timeout:     cfg.Database.Timeout,
		MaxLifetime: cfg.Database.MaxLifetime,
		MaxIdleTime: cfg.Database.MaxIdleTime,
	}, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to PostgreSQL")
		os.Exit(1)
	}
	if err := postgres.InitSchema(ctx, cm.Primary()); err != nil {
		logger.WithError(err).Error("Failed to initialize schema")
		os.Exit(1)
	}
	cm.StartHealthCheckRoutine(ctx, 30*time.Second, metrics)

	// Redis is optional; without it the service runs with rate limiting off.
	var redisClient *postgres.RedisClient
	if cfg.Redis.URL != "" {
		redisClient, err = postgres.NewRedisClient(postgres.RedisConfig{
			URL:        cfg.Redis.URL,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			MaxRetries: cfg.Redis.MaxRetries,
			PoolSize:   cfg.Redis.PoolSize,
		})
		if err != nil {
			logger.WithError(err).Warn("Failed to connect to Redis, continuing without rate limiting")
			redisClient = nil
		}
	}

	var clients []provider.Client
	if cfg.Providers.StripeAPIKey != "" {
		clients = append(clients, provider.NewStripeClient(cfg.Providers.StripeAPIKey))
	}
	if cfg.Providers.RevenueCatAPIKey != "" {
		clients = append(clients,
			provider.NewRevenueCatClient(cfg.Providers.RevenueCatAPIKey).WithBaseURL(cfg.Providers.RevenueCatURL))
	}
	if len(clients) == 0 {
		logger.Warn("No subscription providers configured, all cycles will be anchor-derived")
	}
	registry := provider.NewRegistry(clients...)

	anomalies := audit.NewStore(cm.Primary())
	resolver := billing.NewResolver(registry, anomalies, logger, metrics, cfg.Providers.Timeout)
	userSvc := users.NewPostgresService(cm.Primary(), cm.Replica())

	var catalog *plans.Catalog
	if cfg.Plans.CatalogPath != "" {
		catalog, err = plans.NewCatalogFromFile(cfg.Plans.CatalogPath, logger)
		if err != nil {
			logger.WithError(err).Error("Failed to load plan catalog")
			os.Exit(1)
		}
	} else {
		catalog = plans.NewCatalog(logger)
	}

	watchStop := make(chan struct{})
	if cfg.Plans.WatchFile {
		if err := catalog.Watch(watchStop); err != nil {
			logger.WithError(err).Warn("Plan catalog watcher failed to start, reloads disabled")
		}
	}

	usageSvc := usage.NewPostgresService(cm.Primary(), cm.Replica(), resolver, userSvc, catalog, metrics)

	var limiter *middleware.DistributedRateLimiter
	if cfg.RateLimitActive() && redisClient != nil {
		limiter = middleware.NewDistributedRateLimiter(redisClient.GetClient(), &middleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.RequestsPerMinute,
			WindowDuration:    time.Minute,
		}, "orato:ratelimit")
		logger.Infof("Rate limiting enabled: %d requests/minute", cfg.RateLimit.RequestsPerMinute)
	}

	server := api.NewServer(api.ServerConfig{
		Users:       userSvc,
		Usage:       usageSvc,
		Resolver:    resolver,
		Catalog:     catalog,
		Logger:      logger,
		Metrics:     metrics,
		RateLimiter: limiter,
	})

	var handler http.Handler = server
	if cfg.Observability.OTelEnabled {
		handler = otelhttp.NewHandler(server, "orato-api")
	}

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Probes and metrics are served on a separate port so they are never
	// rate limited or exposed with the public API.
	health := observability.NewHealthChecker(cm.Primary(), redisGoClient(redisClient))
	opsMux := http.NewServeMux()
	opsMux.HandleFunc("/healthz", health.Liveness)
	opsMux.HandleFunc("/readyz", health.Readiness)
	opsMux.Handle("/metrics", metrics.Handler())
	opsServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: opsMux,
	}

	sm := observability.NewShutdownManager(logger, apiServer, cfg.Server.ShutdownTimeout)
	sm.RegisterShutdownFunc(opsServer.Shutdown)
	sm.RegisterShutdownFunc(func(context.Context) error {
		cancel()
		close(watchStop)
		return cm.Close()
	})
	if redisClient != nil {
		sm.RegisterShutdownFunc(func(context.Context) error {
			return redisClient.Close()
		})
	}
	if shutdownTracing != nil {
		sm.RegisterShutdownFunc(shutdownTracing)
	}

	go func() {
		logger.Infof("Starting Orato ops server on %s", opsServer.Addr)
		if err := opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("Ops server failed")
			os.Exit(1)
		}
	}()

	go func() {
		logger.Infof("Starting Orato API server on %s", apiServer.Addr)
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("API server failed")
			os.Exit(1)
		}
	}()

	if err := sm.WaitForShutdown(); err != nil {
		logger.WithError(err).Error("Shutdown finished with errors")
		os.Exit(1)
	}
}
