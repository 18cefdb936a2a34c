package config

import (
	"errors"
	"fmt"
	"time"

	pkgconfig "github.com/utafrali/cartstore/pkg/config"
)

// Session backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config holds all configuration for the cart service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort        int           `env:"CART_HTTP_PORT" envDefault:"8003"`
	ShutdownTimeout time.Duration `env:"CART_SHUTDOWN_TIMEOUT" envDefault:"15s"`

	// Session storage
	SessionBackend      string        `env:"CART_SESSION_BACKEND" envDefault:"memory"`
	SessionTTL          time.Duration `env:"CART_SESSION_TTL" envDefault:"2h"`
	MaxConflictRetries  int           `env:"CART_MAX_CONFLICT_RETRIES" envDefault:"3"`
	MaxEntriesPerCart   int           `env:"CART_MAX_ENTRIES" envDefault:"50"`
	MaxQuantityPerEntry int           `env:"CART_MAX_QUANTITY" envDefault:"100"`

	// Redis
	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass string `env:"REDIS_PASSWORD"`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// Commands slower than this are logged; zero disables the log.
	RedisSlowThreshold time.Duration `env:"REDIS_SLOW_THRESHOLD" envDefault:"50ms"`

	// Kafka; no brokers disables change events.
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`

	// Publishes slower than KafkaPublishTimeout count as failures; a tripped
	// breaker skips publishing for KafkaBreakerOpenTimeout.
	KafkaPublishTimeout     time.Duration `env:"KAFKA_PUBLISH_TIMEOUT" envDefault:"2s"`
	KafkaBreakerOpenTimeout time.Duration `env:"KAFKA_BREAKER_OPEN_TIMEOUT" envDefault:"30s"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// HTTP surface
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	PprofAllowedCIDRs  []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.0/8,::1/128" envSeparator:","`

	// Per-session rate limit on cart commands; zero disables it. The per-IP
	// limit in front of it defaults to four times the session limit.
	RateLimitRPS     float64 `env:"CART_RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst   int     `env:"CART_RATE_LIMIT_BURST" envDefault:"40"`
	IPRateLimitRPS   float64 `env:"CART_IP_RATE_LIMIT_RPS"`
	IPRateLimitBurst int     `env:"CART_IP_RATE_LIMIT_BURST"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load cart config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// EventsEnabled reports whether change events should be published.
func (c *Config) EventsEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func (c *Config) validate() error {
	var errs []error
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP port: %d", c.HTTPPort))
	}
	switch c.SessionBackend {
	case BackendMemory:
	case BackendRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required for the redis session backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid session backend %q: want %s or %s", c.SessionBackend, BackendMemory, BackendRedis))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, fmt.Errorf("session TTL must be positive, got %s", c.SessionTTL))
	}
	if c.MaxConflictRetries < 0 {
		errs = append(errs, fmt.Errorf("max conflict retries must be >= 0, got %d", c.MaxConflictRetries))
	}
	if c.MaxEntriesPerCart < 1 {
		errs = append(errs, fmt.Errorf("max entries per cart must be >= 1, got %d", c.MaxEntriesPerCart))
	}
	if c.MaxQuantityPerEntry < 1 {
		errs = append(errs, fmt.Errorf("max quantity per entry must be >= 1, got %d", c.MaxQuantityPerEntry))
	}
	if c.RateLimitRPS < 0 || c.IPRateLimitRPS < 0 {
		errs = append(errs, fmt.Errorf("rate limit must be >= 0, got %g and %g", c.RateLimitRPS, c.IPRateLimitRPS))
	}
	if c.KafkaPublishTimeout < 0 || c.KafkaBreakerOpenTimeout < 0 {
		errs = append(errs, errors.New("kafka publish and breaker timeouts must be >= 0"))
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1 {
		errs = append(errs, fmt.Errorf("OTEL_SAMPLE_RATE must be between 0 and 1, got %g", c.OTELSampleRate))
	}
	return errors.Join(errs...)
}
