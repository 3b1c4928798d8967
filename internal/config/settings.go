package config

import (
	"fmt"
	"strings"
	"time"
)

// Compile time variables are set by -ldflags.
var (
	ServiceVersion string
	CommitSHA      string
)

type (
	ServiceConfig struct {
		App            App            `json:"app"`
		Portal         Portal         `json:"portal"`
		Backoff        Backoff        `json:"backoff"`
		CircuitBreaker CircuitBreaker `json:"circuit_breaker"`
		RateLimit      RateLimit      `json:"rate_limit"`
		Cache          Cache          `json:"cache"`
		Idempotency    Idempotency    `json:"idempotency"`
		Logging        Logging        `json:"logging"`
		Telemetry      Telemetry      `json:"telemetry"`
	}

	App struct {
		ServiceName string      `envconfig:"APP_SERVICE_NAME" default:"recordkit" json:"service_name"`
		Env         Environment `json:"environment"`
	}

	Environment struct {
		Name string `envconfig:"APP_ENVIRONMENT" default:"development" json:"env"`
	}

	// Portal configures the outbound HTTP connection to the records portal.
	Portal struct {
		BaseURL    string        `envconfig:"PORTAL_BASE_URL" default:"http://localhost:8080/api" json:"base_url"`
		Token      string        `envconfig:"PORTAL_TOKEN" default:"" json:"token,omitempty"`
		Timeout    time.Duration `envconfig:"PORTAL_TIMEOUT" default:"30s" json:"timeout"`
		MaxRetries uint          `envconfig:"PORTAL_MAX_RETRIES" default:"3" json:"max_retries"`
	}

	Backoff struct {
		BaseDelay  time.Duration `envconfig:"BACKOFF_BASE_DELAY" default:"1s" json:"base_delay"`
		Multiplier float64       `envconfig:"BACKOFF_MULTIPLIER" default:"1.5" json:"multiplier"`
		Jitter     float64       `envconfig:"BACKOFF_JITTER" default:"0.3" json:"jitter"`
		MaxDelay   time.Duration `envconfig:"BACKOFF_MAX_DELAY" default:"15s" json:"max_delay"`
	}

	CircuitBreaker struct {
		Enabled          bool          `envconfig:"PORTAL_CB_ENABLED" default:"true" json:"enabled"`
		MaxRequests      uint          `envconfig:"PORTAL_CB_MAX_REQUESTS" default:"5" json:"max_requests"`
		Interval         time.Duration `envconfig:"PORTAL_CB_INTERVAL" default:"60s" json:"interval"`
		Timeout          time.Duration `envconfig:"PORTAL_CB_TIMEOUT" default:"30s" json:"timeout"`
		FailureThreshold uint          `envconfig:"PORTAL_CB_FAILURE_THRESHOLD" default:"5" json:"failure_threshold"`
	}

	// RateLimit throttles outbound portal requests so a chatty caller
	// does not trip the portal's 429 responses in the first place.
	RateLimit struct {
		Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true" json:"enabled"`
		RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"25" json:"requests_per_second"`
		Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"10" json:"burst"`
	}

	Cache struct {
		Kind     string        `envconfig:"CACHE_KIND" default:"memory" json:"kind"`
		TTL      time.Duration `envconfig:"CACHE_TTL" default:"2m" json:"ttl"`
		KeyDB    KeyDB         `json:"keydb"`
		Disabled bool          `envconfig:"CACHE_DISABLED" default:"false" json:"disabled"`
	}

	KeyDB struct {
		Address      string        `envconfig:"KEYDB_ADDRESS" default:"localhost:6379" json:"address"`
		Password     string        `envconfig:"KEYDB_PASSWORD" default:"" json:"password,omitempty"`
		DB           int           `envconfig:"KEYDB_DB" default:"0" json:"db"`
		DialTimeout  time.Duration `envconfig:"KEYDB_DIAL_TIMEOUT" default:"5s" json:"dial_timeout"`
		ReadTimeout  time.Duration `envconfig:"KEYDB_READ_TIMEOUT" default:"3s" json:"read_timeout"`
		WriteTimeout time.Duration `envconfig:"KEYDB_WRITE_TIMEOUT" default:"3s" json:"write_timeout"`
	}

	Idempotency struct {
		Enabled    bool   `envconfig:"IDEMPOTENCY_ENABLED" default:"true" json:"enabled"`
		HeaderName string `envconfig:"IDEMPOTENCY_HEADER_NAME" default:"Idempotency-Key" json:"header_name"`
	}

	Logging struct {
		Level  string `envconfig:"LOG_LEVEL" default:"info" json:"level"`
		Format string `envconfig:"LOG_FORMAT" default:"json" json:"format"`
	}

	Telemetry struct {
		Enabled     bool   `envconfig:"TELEMETRY_ENABLED" default:"false" json:"enabled"`
		ServiceName string `envconfig:"TELEMETRY_SERVICE_NAME" default:"recordkit" json:"service_name"`
	}
)

const (
	CacheKindMemory = "memory"
	CacheKindKeyDB  = "keydb"
)

func (c ServiceConfig) Validate() error {
	if strings.TrimSpace(c.Portal.BaseURL) == "" {
		return fmt.Errorf("portal base URL must not be empty")
	}

	if c.Cache.Kind != CacheKindMemory && c.Cache.Kind != CacheKindKeyDB {
		return fmt.Errorf("unknown cache kind %q", c.Cache.Kind)
	}

	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache TTL must not be negative")
	}

	if c.RateLimit.Enabled && c.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("rate limit requests per second must be positive")
	}

	return nil
}
