package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

const defaultAddr = "0.0.0.0:5001"

// Config holds the complete application configuration, loadable from
// environment variables (ORDERS_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:5001" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (ORDERS_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	RedisURL    string `default:"" usage:"Redis URL for Idempotency-Key replay; disabled when empty" flag:"redis-url"`
	Environment string `default:"development" usage:"Deployment environment reported by /health"`
	Database    DatabaseConfig
	Codes       CodesConfig
	Idempotency IdempotencyConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// DatabaseConfig tunes the PostgreSQL connection pool.
type DatabaseConfig struct {
	MaxConns int32 `default:"10" usage:"Maximum pool connections" flag:"db-max-conns"`
	MinConns int32 `default:"0"  usage:"Minimum idle pool connections" flag:"db-min-conns"`
}

// CodesConfig controls unique code allocation.
type CodesConfig struct {
	MaxAttempts int `default:"100" usage:"Random probes per unique code allocation" flag:"codes-max-attempts"`
}

// IdempotencyConfig controls replay of POST /orders responses.
type IdempotencyConfig struct {
	TTL time.Duration `default:"24h" usage:"How long completed responses are replayed" flag:"idempotency-ttl"`
}

// RateLimitConfig controls the per-client rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"15m" usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "ORDERS",
		Files:     []string{"config.yaml", "/etc/orders/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set ORDERS_DATABASE_URL or DATABASE_URL")
	}
	if c.Codes.MaxAttempts < 1 {
		return errors.Errorf("codes max attempts must be positive, got %d", c.Codes.MaxAttempts)
	}
	if c.RateLimit.Max < 1 || c.RateLimit.Window <= 0 {
		return errors.Errorf("invalid rate limit %d per %s", c.RateLimit.Max, c.RateLimit.Window)
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables
// (DATABASE_URL, REDIS_URL, NODE_ENV, PORT) to the ORDERS_-prefixed
// configuration when the prefixed values are unset.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.RedisURL == "" {
		c.RedisURL = os.Getenv("REDIS_URL")
	}
	if v := os.Getenv("NODE_ENV"); v != "" && os.Getenv("ORDERS_ENVIRONMENT") == "" {
		c.Environment = v
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
