package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/orato-app/orato/pkg/observability"
)

// Config holds all application configuration.
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Providers     ProviderConfig
	Plans         PlansConfig
	RateLimit     RateLimitConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	URL         string
	ReplicaURLs string
	MaxConns    int
	MinConns    int
	Timeout     time.Duration
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
}

// RedisConfig holds Redis configuration. Redis is optional; rate limiting is
// disabled without it.
type RedisConfig struct {
	URL        string
	Password   string
	DB         int
	MaxRetries int
	PoolSize   int
}

// ProviderConfig holds subscription provider credentials.
type ProviderConfig struct {
	StripeAPIKey     string
	RevenueCatAPIKey string
	RevenueCatURL    string
	Timeout          time.Duration
}

// PlansConfig holds plan catalog settings.
type PlansConfig struct {
	CatalogPath string
	WatchFile   bool
}

// RateLimitConfig holds distributed rate limiter settings.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	BurstSize         int
}

// ObservabilityConfig holds observability settings.
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("ORATO_HOST", "0.0.0.0"),
			Port:            getEnv("ORATO_PORT", "8080"),
			ReadTimeout:     getEnvDuration("ORATO_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("ORATO_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("ORATO_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("ORATO_SHUTDOWN_TIMEOUT", 30*time.Second),
			HealthPort:      getEnv("ORATO_HEALTH_PORT", "9090"),
		},
		Database: DatabaseConfig{
			URL:         getEnv("ORATO_POSTGRES_URL", ""),
			ReplicaURLs: getEnv("ORATO_POSTGRES_REPLICA_URLS", ""),
			MaxConns:    getEnvInt("ORATO_POSTGRES_MAX_CONNS", 25),
			MinConns:    getEnvInt("ORATO_POSTGRES_MIN_CONNS", 5),
			Timeout:     getEnvDuration("ORATO_POSTGRES_TIMEOUT", 10*time.Second),
			MaxLifetime: getEnvDuration("ORATO_POSTGRES_MAX_LIFETIME", 30*time.Minute),
			MaxIdleTime: getEnvDuration("ORATO_POSTGRES_MAX_IDLE_TIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL:        getEnv("ORATO_REDIS_URL", ""),
			Password:   getEnv("ORATO_REDIS_PASSWORD", ""),
			DB:         getEnvInt("ORATO_REDIS_DB", 0),
			MaxRetries: getEnvInt("ORATO_REDIS_MAX_RETRIES", 3),
			PoolSize:   getEnvInt("ORATO_REDIS_POOL_SIZE", 10),
		},
		Providers: ProviderConfig{
			StripeAPIKey:     getEnv("ORATO_STRIPE_API_KEY", ""),
			RevenueCatAPIKey: getEnv("ORATO_REVENUECAT_API_KEY", ""),
			RevenueCatURL:    getEnv("ORATO_REVENUECAT_URL", "https://api.revenuecat.com/v1"),
			Timeout:          getEnvDuration("ORATO_PROVIDER_TIMEOUT", 5*time.Second),
		},
		Plans: PlansConfig{
			CatalogPath: getEnv("ORATO_PLAN_CATALOG", ""),
			WatchFile:   getEnvBool("ORATO_PLAN_CATALOG_WATCH", false),
		},
		RateLimit: RateLimitConfig{
			Enabled:           getEnvBool("ORATO_RATE_LIMIT_ENABLED", true),
			RequestsPerMinute: getEnvInt("ORATO_RATE_LIMIT_RPM", 300),
			BurstSize:         getEnvInt("ORATO_RATE_LIMIT_BURST", 50),
		},
		Observability: ObservabilityConfig{
			LogLevel:           observability.ParseLevel(getEnv("ORATO_LOG_LEVEL", "info")),
			MetricsEnabled:     getEnvBool("ORATO_METRICS_ENABLED", true),
			OTelEnabled:        getEnvBool("ORATO_OTEL_ENABLED", false),
			OTelEndpoint:       getEnv("ORATO_OTEL_ENDPOINT", "localhost:4317"),
			OTelServiceName:    getEnv("ORATO_OTEL_SERVICE_NAME", "orato"),
			OTelServiceVersion: getEnv("ORATO_OTEL_SERVICE_VERSION", "1.0.0"),
			OTelInsecure:       getEnvBool("ORATO_OTEL_INSECURE", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.Database.MaxConns <= 0 {
		return fmt.Errorf("postgres max connections must be positive")
	}

	if c.Providers.Timeout <= 0 {
		return fmt.Errorf("provider timeout must be positive")
	}

	if c.RateLimit.Enabled && c.Redis.URL != "" {
		if c.RateLimit.RequestsPerMinute <= 0 {
			return fmt.Errorf("rate limit requests per minute must be positive")
		}
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// RateLimitActive reports whether the distributed rate limiter should run.
// It needs both the feature flag and a Redis endpoint.
func (c *Config) RateLimitActive() bool {
	return c.RateLimit.Enabled && c.Redis.URL != ""
}

// getEnv returns an environment variable value or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
