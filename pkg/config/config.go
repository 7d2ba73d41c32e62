package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/backoffice/pkg/auth"
	"github.com/platinummonkey/backoffice/pkg/observability"
	"github.com/platinummonkey/backoffice/pkg/tokenstore"
)

// Config holds all application configuration
type Config struct {
	// API is the back office REST API
	API APIConfig

	// TokenStore is where the session token survives restarts
	TokenStore tokenstore.Config

	// Access configures permission evaluation and navigation
	Access AccessConfig

	// Server configuration of the console agent
	Server ServerConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// APIConfig holds REST API client settings
type APIConfig struct {
	BaseURL string
	Timeout time.Duration
}

// AccessConfig holds permission settings
type AccessConfig struct {
	AdminRole  string
	RoutesFile string // optional YAML route table
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server
	HealthPort string

	// Follow CLI login/logout through the token file
	WatchTokenFile bool

	// Login attempts per minute per client, 0 disables throttling
	LoginRateLimit int
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		API:           loadAPIConfig(),
		TokenStore:    loadTokenStoreConfig(),
		Access:        loadAccessConfig(),
		Server:        loadServerConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadAPIConfig() APIConfig {
	return APIConfig{
		BaseURL: getEnv("BACKOFFICE_API_URL", "http://localhost:5000/api"),
		Timeout: getEnvDuration("BACKOFFICE_API_TIMEOUT", 30*time.Second),
	}
}

// loadTokenStoreConfig loads token store configuration from environment
func loadTokenStoreConfig() tokenstore.Config {
	cfg := tokenstore.DefaultConfig()

	if storeType := getEnv("BACKOFFICE_TOKEN_STORE", ""); storeType != "" {
		cfg.Type = strings.ToLower(storeType)
	}
	if key := getEnv("BACKOFFICE_TOKEN_KEY", ""); key != "" {
		cfg.Key = key
	}

	// File config
	if dir := getEnv("BACKOFFICE_TOKEN_DIR", ""); dir != "" {
		cfg.Dir = dir
	}

	// Redis config
	if redisURL := getEnv("BACKOFFICE_REDIS_URL", ""); redisURL != "" {
		cfg.RedisURL = redisURL
	}
	if redisPassword := getEnv("BACKOFFICE_REDIS_PASSWORD", ""); redisPassword != "" {
		cfg.RedisPassword = redisPassword
	}
	if redisDB := getEnvInt("BACKOFFICE_REDIS_DB", -1); redisDB >= 0 {
		cfg.RedisDB = redisDB
	}

	// SQL config
	if driver := getEnv("BACKOFFICE_SQL_DRIVER", ""); driver != "" {
		cfg.SQLDriver = driver
	}
	if dsn := getEnv("BACKOFFICE_SQL_DSN", ""); dsn != "" {
		cfg.SQLDSN = dsn
	}

	return cfg
}

func loadAccessConfig() AccessConfig {
	return AccessConfig{
		AdminRole:  getEnv("BACKOFFICE_ADMIN_ROLE", auth.RoleAdmin),
		RoutesFile: getEnv("BACKOFFICE_ROUTES_FILE", ""),
	}
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("BACKOFFICE_HOST", "127.0.0.1"),
		Port:            getEnv("BACKOFFICE_PORT", "8080"),
		ReadTimeout:     getEnvDuration("BACKOFFICE_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("BACKOFFICE_WRITE_TIMEOUT", 45*time.Second),
		IdleTimeout:     getEnvDuration("BACKOFFICE_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("BACKOFFICE_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("BACKOFFICE_HEALTH_PORT", "9090"),
		WatchTokenFile:  getEnvBool("BACKOFFICE_WATCH_TOKEN", true),
		LoginRateLimit:  getEnvInt("BACKOFFICE_LOGIN_RATE_LIMIT", 10),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           observability.ParseLogLevel(getEnv("BACKOFFICE_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("BACKOFFICE_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("BACKOFFICE_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("BACKOFFICE_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("BACKOFFICE_OTEL_SERVICE_NAME", "backoffice"),
		OTelServiceVersion: getEnv("BACKOFFICE_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("BACKOFFICE_OTEL_INSECURE", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate API config
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("API base URL must be an absolute http(s) URL, got %q", c.API.BaseURL)
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("API timeout must be positive")
	}

	if err := c.TokenStore.Validate(); err != nil {
		return err
	}

	if c.Access.AdminRole == "" {
		return fmt.Errorf("admin role is required")
	}

	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}
	if c.Server.LoginRateLimit < 0 {
		return fmt.Errorf("login rate limit must not be negative")
	}

	// Validate OpenTelemetry config
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

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
