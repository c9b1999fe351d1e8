package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Addr:        defaultAddr,
		DatabaseURL: "postgres://orders@localhost/orders",
		Codes:       CodesConfig{MaxAttempts: 100},
		RateLimit:   RateLimitConfig{Max: 100, Window: 15 * time.Minute},
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:    "missing database",
			mutate:  func(c *Config) { c.DatabaseURL = "" },
			wantErr: "database URL is required",
		},
		{
			name:    "zero attempts",
			mutate:  func(c *Config) { c.Codes.MaxAttempts = 0 },
			wantErr: "codes max attempts",
		},
		{
			name:    "zero rate window",
			mutate:  func(c *Config) { c.RateLimit.Window = 0 },
			wantErr: "invalid rate limit",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestApplyPlatformDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://platform/db")
	t.Setenv("REDIS_URL", "redis://platform:6379/0")
	t.Setenv("NODE_ENV", "production")
	t.Setenv("ORDERS_ENVIRONMENT", "")
	t.Setenv("PORT", "8080")

	cfg := Config{Addr: defaultAddr, Environment: "development"}
	cfg.applyPlatformDefaults()

	assert.Equal(t, "postgres://platform/db", cfg.DatabaseURL)
	assert.Equal(t, "redis://platform:6379/0", cfg.RedisURL)
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "0.0.0.0:8080", cfg.Addr)
}

func TestApplyPlatformDefaults_ExplicitWins(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://platform/db")
	t.Setenv("PORT", "8080")

	cfg := Config{Addr: "127.0.0.1:9000", DatabaseURL: "postgres://explicit/db"}
	cfg.applyPlatformDefaults()

	assert.Equal(t, "postgres://explicit/db", cfg.DatabaseURL)
	assert.Equal(t, "127.0.0.1:9000", cfg.Addr)
}
