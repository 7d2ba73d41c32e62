package server

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/backoffice/pkg/contextkeys"
	"github.com/platinummonkey/backoffice/pkg/httputil"
	"github.com/platinummonkey/backoffice/pkg/middleware"
	"github.com/platinummonkey/backoffice/pkg/nav"
	"github.com/platinummonkey/backoffice/pkg/observability"
	"github.com/platinummonkey/backoffice/pkg/rbac"
	"github.com/platinummonkey/backoffice/pkg/session"
)

// maxBodyBytes bounds request bodies; only login carries one
const maxBodyBytes = 64 << 10

// Server exposes the session and capability map to a local front-end
type Server struct {
	sessions    *session.Manager
	resolver    *rbac.Resolver
	gate        *nav.Gate
	permissions *rbac.PermissionMiddleware
	logger      *observability.Logger
	metrics     *observability.Metrics
	loginLimit  *middleware.RateLimiter

	router  *mux.Router
	handler http.Handler
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the request logger
func WithLogger(logger *observability.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics enables HTTP metrics
func WithMetrics(metrics *observability.Metrics) Option {
	return func(s *Server) {
		s.metrics = metrics
	}
}

// WithLoginLimiter throttles login attempts per client address
func WithLoginLimiter(limiter *middleware.RateLimiter) Option {
	return func(s *Server) {
		s.loginLimit = limiter
	}
}

// New creates the agent API. The resolver must be subscribed to sessions.
func New(sessions *session.Manager, resolver *rbac.Resolver, gate *nav.Gate, opts ...Option) *Server {
	s := &Server{
		sessions:    sessions,
		resolver:    resolver,
		gate:        gate,
		permissions: rbac.NewPermissionMiddleware(resolver),
		logger:      observability.Discard(),
		router:      mux.NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.routes()
	s.handler = httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.RecoveryMiddleware(s.logger),
		httputil.LoggingMiddleware(s.logger),
		httputil.MaxBytesMiddleware(maxBodyBytes),
	)(s.router)
	return s
}

func (s *Server) routes() {
	s.router.Use(observability.HTTPMetricsMiddleware(s.metrics))
	s.router.Use(s.requestContext)

	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/session", s.getSession).Methods(http.MethodGet)
	api.Handle("/session/login", middleware.Throttle(s.loginLimit)(http.HandlerFunc(s.login))).Methods(http.MethodPost)
	api.HandleFunc("/session/logout", s.logout).Methods(http.MethodPost)

	api.HandleFunc("/permissions", s.getPermissions).Methods(http.MethodGet)
	api.HandleFunc("/permissions/check", s.checkPermission).Methods(http.MethodGet)

	api.HandleFunc("/nav", s.getNav).Methods(http.MethodGet)
	api.HandleFunc("/nav/{resource}/actions", s.getActions).Methods(http.MethodGet)
}

// requestContext makes the logger and current user available to handlers
func (s *Server) requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := observability.WithLogger(r.Context(), s.logger)
		if userID := s.sessions.Current().UserID(); userID != "" {
			ctx = contextkeys.WithUserID(ctx, userID.String())
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
