package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/backoffice/pkg/observability"
	"github.com/platinummonkey/backoffice/pkg/tokenstore"
)

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_STR", "custom")
	t.Setenv("TEST_BOOL_TRUE", "TRUE")
	t.Setenv("TEST_BOOL_ONE", "1")
	t.Setenv("TEST_BOOL_OTHER", "yes")
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_INT_BAD", "forty")
	t.Setenv("TEST_DUR", "90s")
	t.Setenv("TEST_DUR_BAD", "soon")

	assert.Equal(t, "custom", getEnv("TEST_STR", "default"))
	assert.Equal(t, "default", getEnv("TEST_STR_NOT_SET", "default"))

	assert.True(t, getEnvBool("TEST_BOOL_TRUE", false))
	assert.True(t, getEnvBool("TEST_BOOL_ONE", false))
	assert.False(t, getEnvBool("TEST_BOOL_OTHER", true))
	assert.True(t, getEnvBool("TEST_BOOL_NOT_SET", true))

	assert.Equal(t, 42, getEnvInt("TEST_INT", 10))
	assert.Equal(t, 10, getEnvInt("TEST_INT_BAD", 10))
	assert.Equal(t, 10, getEnvInt("TEST_INT_NOT_SET", 10))

	assert.Equal(t, 90*time.Second, getEnvDuration("TEST_DUR", time.Second))
	assert.Equal(t, time.Second, getEnvDuration("TEST_DUR_BAD", time.Second))
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:5000/api", cfg.API.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)

	assert.Equal(t, tokenstore.BackendFile, cfg.TokenStore.Type)
	assert.Equal(t, tokenstore.DefaultKey, cfg.TokenStore.Key)
	assert.NotEmpty(t, cfg.TokenStore.Dir)

	assert.Equal(t, "Admin", cfg.Access.AdminRole)
	assert.Empty(t, cfg.Access.RoutesFile)

	assert.Equal(t, ServerConfig{
		Host:            "127.0.0.1",
		Port:            "8080",
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    45 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		HealthPort:      "9090",
		WatchTokenFile:  true,
		LoginRateLimit:  10,
	}, cfg.Server)

	assert.Equal(t, observability.InfoLevel, cfg.Observability.LogLevel)
	assert.True(t, cfg.Observability.MetricsEnabled)
	assert.False(t, cfg.Observability.OTelEnabled)
	assert.Equal(t, "backoffice", cfg.Observability.OTelServiceName)
}

func TestLoadConfig_Custom(t *testing.T) {
	t.Setenv("BACKOFFICE_API_URL", "https://shop.example.com/api")
	t.Setenv("BACKOFFICE_API_TIMEOUT", "5s")
	t.Setenv("BACKOFFICE_TOKEN_STORE", "Redis")
	t.Setenv("BACKOFFICE_TOKEN_KEY", "ops.token")
	t.Setenv("BACKOFFICE_REDIS_URL", "redis://cache:6379")
	t.Setenv("BACKOFFICE_REDIS_PASSWORD", "hunter2")
	t.Setenv("BACKOFFICE_REDIS_DB", "3")
	t.Setenv("BACKOFFICE_ADMIN_ROLE", "SuperUser")
	t.Setenv("BACKOFFICE_ROUTES_FILE", "/etc/backoffice/routes.yaml")
	t.Setenv("BACKOFFICE_PORT", "3000")
	t.Setenv("BACKOFFICE_WATCH_TOKEN", "false")
	t.Setenv("BACKOFFICE_LOGIN_RATE_LIMIT", "0")
	t.Setenv("BACKOFFICE_LOG_LEVEL", "debug")
	t.Setenv("BACKOFFICE_OTEL_ENABLED", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "https://shop.example.com/api", cfg.API.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.API.Timeout)
	assert.Equal(t, tokenstore.BackendRedis, cfg.TokenStore.Type)
	assert.Equal(t, "ops.token", cfg.TokenStore.Key)
	assert.Equal(t, "redis://cache:6379", cfg.TokenStore.RedisURL)
	assert.Equal(t, "hunter2", cfg.TokenStore.RedisPassword)
	assert.Equal(t, 3, cfg.TokenStore.RedisDB)
	assert.Equal(t, "SuperUser", cfg.Access.AdminRole)
	assert.Equal(t, "/etc/backoffice/routes.yaml", cfg.Access.RoutesFile)
	assert.Equal(t, "3000", cfg.Server.Port)
	assert.False(t, cfg.Server.WatchTokenFile)
	assert.Zero(t, cfg.Server.LoginRateLimit)
	assert.Equal(t, observability.DebugLevel, cfg.Observability.LogLevel)
	assert.True(t, cfg.Observability.OTelEnabled)
}

func TestLoadConfig_SQLStore(t *testing.T) {
	t.Setenv("BACKOFFICE_TOKEN_STORE", "sql")
	t.Setenv("BACKOFFICE_SQL_DRIVER", "postgres")
	t.Setenv("BACKOFFICE_SQL_DSN", "postgres://localhost/backoffice?sslmode=disable")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.TokenStore.SQLDriver)
	assert.Equal(t, "postgres://localhost/backoffice?sslmode=disable", cfg.TokenStore.SQLDSN)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Setenv("BACKOFFICE_TOKEN_STORE", "redis")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis URL is required")
}

func validConfig() Config {
	return Config{
		API:        APIConfig{BaseURL: "http://localhost:5000/api", Timeout: time.Second},
		TokenStore: tokenstore.Config{Type: tokenstore.BackendFile, Key: tokenstore.DefaultKey, Dir: "/tmp/backoffice"},
		Access:     AccessConfig{AdminRole: "Admin"},
		Server:     ServerConfig{Port: "8080", HealthPort: "9090"},
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "relative api url", mutate: func(c *Config) { c.API.BaseURL = "/api" }, wantErr: "API base URL"},
		{name: "ftp api url", mutate: func(c *Config) { c.API.BaseURL = "ftp://host/api" }, wantErr: "API base URL"},
		{name: "zero timeout", mutate: func(c *Config) { c.API.Timeout = 0 }, wantErr: "API timeout"},
		{name: "bad store", mutate: func(c *Config) { c.TokenStore.Type = "s3" }, wantErr: "invalid token store type"},
		{name: "no admin role", mutate: func(c *Config) { c.Access.AdminRole = "" }, wantErr: "admin role is required"},
		{name: "missing server port", mutate: func(c *Config) { c.Server.Port = "" }, wantErr: "server port is required"},
		{name: "missing health port", mutate: func(c *Config) { c.Server.HealthPort = "" }, wantErr: "health port is required"},
		{name: "same ports", mutate: func(c *Config) { c.Server.HealthPort = "8080" }, wantErr: "must be different"},
		{name: "negative login limit", mutate: func(c *Config) { c.Server.LoginRateLimit = -1 }, wantErr: "login rate limit"},
		{
			name: "otel without endpoint",
			mutate: func(c *Config) {
				c.Observability.OTelEnabled = true
				c.Observability.OTelServiceName = "backoffice"
			},
			wantErr: "OpenTelemetry endpoint",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
