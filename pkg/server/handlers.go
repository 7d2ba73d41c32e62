package server

import (
	"errors"
	"net/http"

	"github.com/platinummonkey/backoffice/pkg/apiclient"
	"github.com/platinummonkey/backoffice/pkg/auth"
	"github.com/platinummonkey/backoffice/pkg/httputil"
	"github.com/platinummonkey/backoffice/pkg/nav"
	"github.com/platinummonkey/backoffice/pkg/observability"
	"github.com/platinummonkey/backoffice/pkg/rbac"
	"github.com/platinummonkey/backoffice/pkg/session"
)

// LoginRequest is the body of POST /api/session/login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionResponse describes the session without exposing the token
type SessionResponse struct {
	Authenticated bool       `json:"authenticated"`
	User          *auth.User `json:"user,omitempty"`
	Permissions   rbac.State `json:"permissions"`
}

// CheckResponse is the result of a single permission query
type CheckResponse struct {
	Resource string        `json:"resource"`
	Action   string        `json:"action"`
	Decision rbac.Decision `json:"decision"`
	Allowed  bool          `json:"allowed"`
}

// NavResponse lists the routes the user may open
type NavResponse struct {
	State  rbac.State  `json:"state"`
	Routes []nav.Route `json:"routes"`
}

func (s *Server) sessionResponse(current auth.Session) SessionResponse {
	return SessionResponse{
		Authenticated: current.IsAuthenticated(),
		User:          current.User,
		Permissions:   s.resolver.State(),
	}
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, s.sessionResponse(s.sessions.Current()))
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Email, "email") || !httputil.RequireNonEmpty(w, req.Password, "password") {
		return
	}

	current, err := s.sessions.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		logger := observability.UpdateLoggerWithTraceContext(r.Context(), observability.FromContext(r.Context())).
			WithError(err)
		var apiErr *apiclient.Error
		switch {
		case errors.Is(err, apiclient.ErrUnauthorized):
			logger.Info("Login rejected")
			httputil.WriteUnauthorized(w, "Invalid email or password")
		case errors.Is(err, session.ErrInvalidLoginResponse):
			logger.Warn("Login response incomplete")
			httputil.WriteBadGateway(w, err.Error())
		case errors.As(err, &apiErr):
			logger.Warn("Login failed")
			httputil.WriteBadGateway(w, apiErr.Error())
		default:
			logger.Warn("Login failed")
			httputil.WriteBadGateway(w, "Authentication service unavailable")
		}
		return
	}

	httputil.WriteSuccess(w, s.sessionResponse(current))
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Logout(r.Context()); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (s *Server) getPermissions(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, s.resolver.Snapshot())
}

func (s *Server) checkPermission(w http.ResponseWriter, r *http.Request) {
	resource := httputil.ParseQueryString(r, "resource", "")
	if !httputil.RequireNonEmpty(w, resource, "resource") {
		return
	}
	action := httputil.ParseQueryString(r, "action", rbac.ActionView)

	decision := s.resolver.Check(resource, action)
	httputil.WriteSuccess(w, CheckResponse{
		Resource: rbac.NormalizeResource(resource),
		Action:   rbac.NormalizeAction(action),
		Decision: decision,
		Allowed:  decision == rbac.Allowed,
	})
}

func (s *Server) getNav(w http.ResponseWriter, r *http.Request) {
	routes := s.gate.Visible(s.resolver)
	if routes == nil {
		routes = []nav.Route{}
	}
	httputil.WriteSuccess(w, NavResponse{
		State:  s.resolver.State(),
		Routes: routes,
	})
}

// getActions answers which table controls to render for a resource. The
// resource itself must be viewable.
func (s *Server) getActions(w http.ResponseWriter, r *http.Request) {
	resource, ok := httputil.ParsePathStringOrError(w, r, "resource")
	if !ok {
		return
	}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteSuccess(w, s.gate.Actions(s.resolver, resource))
	})
	s.permissions.RequirePermission(resource, rbac.ActionView)(handler).ServeHTTP(w, r)
}
