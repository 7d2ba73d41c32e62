// Package observability provides structured logging, Prometheus metrics,
// health checks and OpenTelemetry setup for the console.
//
// # Structured Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stderr)
//	logger.WithField("user_id", id).Warn("Failed to fetch permissions")
//
// Library packages accept a *Logger and fall back to Discard() when none is
// given.
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.RecordLogin("success")
//
// A nil *Metrics records nothing, so components can be built without one.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient)
//	checker.AddCheck("token_dir", func(ctx context.Context) error { ... })
//	observability.RegisterHealthRoutes(mux, checker)
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "backoffice",
//	}, logger)
//	defer observability.ShutdownOTel(ctx, providers, logger)
package observability
