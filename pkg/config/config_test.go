package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orato-app/orato/pkg/observability"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("ORATO_POSTGRES_URL", "postgres://localhost/orato")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.HealthPort)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 25, cfg.Database.MaxConns)
	assert.Equal(t, 5*time.Second, cfg.Providers.Timeout)
	assert.Equal(t, observability.InfoLevel, cfg.Observability.LogLevel)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.False(t, cfg.RateLimitActive(), "rate limiting needs a redis URL")
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("ORATO_POSTGRES_URL", "postgres://localhost/orato")
	t.Setenv("ORATO_PORT", "3000")
	t.Setenv("ORATO_LOG_LEVEL", "debug")
	t.Setenv("ORATO_PROVIDER_TIMEOUT", "2s")
	t.Setenv("ORATO_REDIS_URL", "redis://localhost:6379")
	t.Setenv("ORATO_RATE_LIMIT_RPM", "60")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Server.Port)
	assert.Equal(t, observability.DebugLevel, cfg.Observability.LogLevel)
	assert.Equal(t, 2*time.Second, cfg.Providers.Timeout)
	assert.Equal(t, 60, cfg.RateLimit.RequestsPerMinute)
	assert.True(t, cfg.RateLimitActive())
}

func TestLoadConfigMissingPostgresURL(t *testing.T) {
	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Server:    ServerConfig{Port: "8080", HealthPort: "9090"},
			Database:  DatabaseConfig{URL: "postgres://localhost/orato", MaxConns: 10},
			Providers: ProviderConfig{Timeout: 5 * time.Second},
		}
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, base().Validate())
	})

	t.Run("same ports", func(t *testing.T) {
		cfg := base()
		cfg.Server.HealthPort = "8080"
		assert.Error(t, cfg.Validate())
	})

	t.Run("zero provider timeout", func(t *testing.T) {
		cfg := base()
		cfg.Providers.Timeout = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("otel enabled without endpoint", func(t *testing.T) {
		cfg := base()
		cfg.Observability.OTelEnabled = true
		assert.Error(t, cfg.Validate())
	})

	t.Run("rate limit misconfigured", func(t *testing.T) {
		cfg := base()
		cfg.RateLimit.Enabled = true
		cfg.Redis.URL = "redis://localhost"
		cfg.RateLimit.RequestsPerMinute = 0
		assert.Error(t, cfg.Validate())
	})
}
