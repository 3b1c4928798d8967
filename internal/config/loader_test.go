package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {
	t.Setenv("APP_ENVIRONMENT", "sandbox")
	t.Setenv("PORTAL_BASE_URL", "https://portal.example.com/api")
	t.Setenv("PORTAL_TOKEN", "test-token")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("CACHE_KIND", "keydb")
	t.Setenv("KEYDB_ADDRESS", "keydb:6379")

	cfg, err := Load()
	assert.NoError(t, err)
	assert.NotNil(t, cfg)

	assert.Equal(t, "sandbox", cfg.App.Env.Name)
	assert.Equal(t, "https://portal.example.com/api", cfg.Portal.BaseURL)
	assert.Equal(t, "test-token", cfg.Portal.Token)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, CacheKindKeyDB, cfg.Cache.Kind)
	assert.Equal(t, "keydb:6379", cfg.Cache.KeyDB.Address)
}

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := Load()
	assert.NoError(t, err)
	assert.NotNil(t, cfg)

	// App defaults
	assert.Equal(t, "recordkit", cfg.App.ServiceName)
	assert.Equal(t, "development", cfg.App.Env.Name)

	// Portal defaults
	assert.Equal(t, "http://localhost:8080/api", cfg.Portal.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Portal.Timeout)
	assert.Equal(t, uint(3), cfg.Portal.MaxRetries)

	// Circuit breaker defaults
	assert.True(t, cfg.CircuitBreaker.Enabled)
	assert.Equal(t, uint(5), cfg.CircuitBreaker.FailureThreshold)

	// Cache defaults
	assert.Equal(t, CacheKindMemory, cfg.Cache.Kind)
	assert.Equal(t, 2*time.Minute, cfg.Cache.TTL)
	assert.False(t, cfg.Cache.Disabled)

	// Rate limiting defaults
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 25, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 10, cfg.RateLimit.Burst)

	// Idempotency defaults
	assert.True(t, cfg.Idempotency.Enabled)
	assert.Equal(t, "Idempotency-Key", cfg.Idempotency.HeaderName)
}

func TestLoad_InvalidConfiguration(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value string
	}{
		{
			name:  "unknown cache kind",
			key:   "CACHE_KIND",
			value: "memcached",
		},
		{
			name:  "empty portal base URL",
			key:   "PORTAL_BASE_URL",
			value: "   ",
		},
		{
			name:  "zero rate limit with limiter enabled",
			key:   "RATE_LIMIT_RPS",
			value: "0",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)

			cfg, err := Load()
			assert.Error(t, err)
			assert.Nil(t, cfg)
		})
	}
}
