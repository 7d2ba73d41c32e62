// Package config loads the console's configuration from BACKOFFICE_*
// environment variables.
//
// # Configuration Structure
//
// API:
//
//	BACKOFFICE_API_URL="https://shop.example.com/api"
//	BACKOFFICE_API_TIMEOUT="30s"
//
// Token store:
//
//	BACKOFFICE_TOKEN_STORE="file"  # file, redis, sql
//	BACKOFFICE_TOKEN_KEY="backoffice.token"
//	BACKOFFICE_TOKEN_DIR="$HOME/.config/backoffice"
//	BACKOFFICE_REDIS_URL="redis://localhost:6379"
//	BACKOFFICE_REDIS_PASSWORD=""
//	BACKOFFICE_REDIS_DB="0"
//	BACKOFFICE_SQL_DRIVER="sqlite3"  # sqlite3, postgres
//	BACKOFFICE_SQL_DSN="file:backoffice.db"
//
// Access:
//
//	BACKOFFICE_ADMIN_ROLE="Admin"
//	BACKOFFICE_ROUTES_FILE="/etc/backoffice/routes.yaml"
//
// Console agent:
//
//	BACKOFFICE_HOST="127.0.0.1"
//	BACKOFFICE_PORT="8080"
//	BACKOFFICE_HEALTH_PORT="9090"
//	BACKOFFICE_SHUTDOWN_TIMEOUT="30s"
//	BACKOFFICE_WATCH_TOKEN="true"
//
// Observability:
//
//	BACKOFFICE_LOG_LEVEL="info"  # debug, info, warn, error
//	BACKOFFICE_METRICS_ENABLED="true"
//	BACKOFFICE_OTEL_ENABLED="false"
//	BACKOFFICE_OTEL_ENDPOINT="localhost:4317"
//
// # Usage
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatalf("Failed to load configuration: %v", err)
//	}
//
// LoadConfig validates the result; invalid settings are reported with the
// offending setting named in the error.
package config
