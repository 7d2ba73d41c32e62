package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/backoffice/pkg/apiclient"
	"github.com/platinummonkey/backoffice/pkg/config"
	"github.com/platinummonkey/backoffice/pkg/middleware"
	"github.com/platinummonkey/backoffice/pkg/nav"
	"github.com/platinummonkey/backoffice/pkg/observability"
	"github.com/platinummonkey/backoffice/pkg/rbac"
	"github.com/platinummonkey/backoffice/pkg/server"
	"github.com/platinummonkey/backoffice/pkg/session"
	"github.com/platinummonkey/backoffice/pkg/tokenstore"
)

// version is set at build time
var version = "dev"

// The console agent keeps one session and its capability map in memory and
// serves them to a local front-end
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	log := setupLogger(cfg.Observability.LogLevel)
	log.WithField("version", version).Info("Starting backoffice console agent")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatalf("Agent failed: %v", err)
	}
	log.Info("Agent stopped")
}

func setupLogger(level observability.LogLevel) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	parsed, err := logrus.ParseLevel(level.String())
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)
	return logger
}

func run(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout)

	// Tracing
	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	// Token store and its health check
	store, err := tokenstore.Open(ctx, cfg.TokenStore)
	if err != nil {
		return fmt.Errorf("failed to open token store: %w", err)
	}
	health := newHealthChecker(store)
	health.SetVersion(version)
	log.WithField("backend", store.Backend()).Info("Token store ready")

	fileStore, watchable := store.(*tokenstore.FileStore)
	store = tokenstore.Instrument(store, metrics, logger)

	// Core
	client, err := apiclient.New(cfg.API.BaseURL, cfg.API.Timeout)
	if err != nil {
		store.Close()
		return fmt.Errorf("failed to create API client: %w", err)
	}

	routes := nav.DefaultRoutes()
	if cfg.Access.RoutesFile != "" {
		if routes, err = nav.LoadRoutes(cfg.Access.RoutesFile); err != nil {
			store.Close()
			return err
		}
		log.WithField("routes", len(routes)).Info("Loaded route table")
	}

	resolver := rbac.NewResolver(client,
		rbac.WithAdminRole(cfg.Access.AdminRole),
		rbac.WithLogger(logger),
		rbac.WithMetrics(metrics),
	)
	sessions := session.NewManager(client, store,
		session.WithLogger(logger),
		session.WithMetrics(metrics),
	)
	sessions.Subscribe(resolver)

	restored, err := sessions.Restore(ctx)
	if err != nil {
		log.WithError(err).Warn("Could not read persisted token, starting logged out")
	} else if restored.IsAuthenticated() {
		log.WithField("user_id", restored.UserID().String()).Info("Session restored")
	}

	// Servers
	var loginLimit *middleware.RateLimiter
	if cfg.Server.LoginRateLimit > 0 {
		loginLimit = middleware.NewRateLimiter(middleware.LoginRateLimitConfig(cfg.Server.LoginRateLimit))
		loginLimit.StartCleanup(ctx)
	}
	api := server.New(sessions, resolver, nav.NewGate(routes),
		server.WithLogger(logger),
		server.WithMetrics(metrics),
		server.WithLoginLimiter(loginLimit),
	)
	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      api,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	opsMux := http.NewServeMux()
	observability.RegisterHealthRoutes(opsMux, health)
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(opsMux, registry)
	}
	opsServer := &http.Server{
		Addr:        net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler:     opsMux,
		ReadTimeout: cfg.Server.ReadTimeout,
	}

	shutdown.RegisterServer(apiServer)
	shutdown.RegisterServer(opsServer)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, providers, logger)
	})
	shutdown.RegisterShutdownFunc(func(context.Context) error {
		return store.Close()
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.WithField("addr", apiServer.Addr).Info("Console API listening")
		return serve(apiServer)
	})
	g.Go(func() error {
		log.WithField("addr", opsServer.Addr).Info("Health and metrics listening")
		return serve(opsServer)
	})

	if watchable && cfg.Server.WatchTokenFile {
		g.Go(func() error {
			log.WithField("path", fileStore.Path()).Info("Following token file")
			return fileStore.Watch(gctx, followTokenFile(gctx, sessions, store, logger))
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down")
		return shutdown.Shutdown(context.Background())
	})

	return g.Wait()
}

func serve(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s: %w", srv.Addr, err)
	}
	return nil
}

// newHealthChecker pings the backend behind the token store
func newHealthChecker(store tokenstore.Store) *observability.HealthChecker {
	switch s := store.(type) {
	case *tokenstore.SQLStore:
		return observability.NewHealthChecker(s.DB(), nil)
	case *tokenstore.RedisStore:
		return observability.NewHealthChecker(nil, s.Client())
	case *tokenstore.FileStore:
		health := observability.NewHealthChecker(nil, nil)
		health.AddCheck("token_dir", func(ctx context.Context) error {
			_, err := os.Stat(filepath.Dir(s.Path()))
			return err
		})
		return health
	default:
		return observability.NewHealthChecker(nil, nil)
	}
}
