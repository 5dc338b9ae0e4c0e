package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("AUTH_MODE", "header")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.App.Environment)
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, int64(64<<10), cfg.HTTP.MaxBodyBytes)
	assert.True(t, cfg.Redis.Disabled)
	assert.Equal(t, "X-User-ID", cfg.Auth.UserHeader)
	assert.Equal(t, 5, cfg.Progression.MaxAttempts)
	assert.Equal(t, 5*time.Minute, cfg.Reconcile.Interval)
	assert.False(t, cfg.Tracing.Enabled)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "staging")
	t.Setenv("STORE_DRIVER", "POSTGRES")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/progression")
	t.Setenv("JWT_SECRET", "0123456789abcdef0123")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("STORE_TIMEOUT", "750ms")
	t.Setenv("TRACING_SAMPLE_RATIO", "0.25")
	t.Setenv("REDIS_DISABLED", "false")
	t.Setenv("REDIS_URL", "redis://localhost:6379/1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvStaging, cfg.App.Environment)
	assert.Equal(t, DriverPostgres, cfg.Store.Driver)
	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, 750*time.Millisecond, cfg.Store.Timeout)
	assert.InDelta(t, 0.25, cfg.Tracing.SampleRatio, 1e-9)
	assert.False(t, cfg.Redis.Disabled)
	assert.Equal(t, AuthModeJWT, cfg.Auth.Mode)
}

func TestLoad_MalformedValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("AUTH_MODE", "header")
	t.Setenv("HTTP_PORT", "not-a-port")
	t.Setenv("STORE_TIMEOUT", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 3*time.Second, cfg.Store.Timeout)
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("AUTH_MODE", "jwt")
	t.Setenv("JWT_SECRET", "short")
	t.Setenv("PROGRESSION_MAX_ATTEMPTS", "0")

	_, err := Load()
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, "DATABASE_URL is required")
	assert.Contains(t, msg, "JWT_SECRET must be at least 16 bytes")
	assert.Contains(t, msg, "PROGRESSION_MAX_ATTEMPTS must be positive")
}

func TestValidate_Rules(t *testing.T) {
	valid := func() *Config {
		return &Config{
			App:         AppConfig{Environment: EnvDevelopment},
			HTTP:        HTTPConfig{Port: 8080, MaxBodyBytes: 1024},
			Store:       StoreConfig{Driver: DriverMemory, Timeout: time.Second},
			Redis:       RedisConfig{Disabled: true},
			Auth:        AuthConfig{Mode: AuthModeHeader, UserHeader: "X-User-ID"},
			Tracing:     TracingConfig{SampleRatio: 1},
			Reconcile:   ReconcileConfig{Enabled: true, Interval: time.Minute, BatchSize: 10},
			Progression: ProgressionConfig{MaxAttempts: 5},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown env", func(c *Config) { c.App.Environment = "qa" }, "APP_ENV"},
		{"bad port", func(c *Config) { c.HTTP.Port = 0 }, "HTTP_PORT"},
		{"unknown driver", func(c *Config) { c.Store.Driver = "mongo" }, "STORE_DRIVER"},
		{"memory in production", func(c *Config) { c.App.Environment = EnvProduction }, "STORE_DRIVER=memory"},
		{"header auth in production", func(c *Config) {
			c.App.Environment = EnvProduction
			c.Store = StoreConfig{Driver: DriverSQLite, SQLitePath: "p.db", Timeout: time.Second}
		}, "AUTH_MODE=header"},
		{"sqlite without path", func(c *Config) { c.Store.Driver, c.Store.SQLitePath = DriverSQLite, "" }, "SQLITE_PATH"},
		{"redis without address", func(c *Config) { c.Redis = RedisConfig{} }, "REDIS_URL or REDIS_HOST"},
		{"sample ratio", func(c *Config) { c.Tracing.SampleRatio = 2 }, "TRACING_SAMPLE_RATIO"},
		{"reconcile interval", func(c *Config) { c.Reconcile.Interval = time.Millisecond }, "RECONCILE_INTERVAL"},
		{"reconcile disabled skips checks", func(c *Config) {
			c.Reconcile = ReconcileConfig{Enabled: false}
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
