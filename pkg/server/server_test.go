package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/backoffice/pkg/apiclient"
	"github.com/platinummonkey/backoffice/pkg/auth"
	"github.com/platinummonkey/backoffice/pkg/middleware"
	"github.com/platinummonkey/backoffice/pkg/nav"
	"github.com/platinummonkey/backoffice/pkg/observability"
	"github.com/platinummonkey/backoffice/pkg/rbac"
	"github.com/platinummonkey/backoffice/pkg/session"
	"github.com/platinummonkey/backoffice/pkg/tokenstore"
)

type fakeBackend struct {
	users  map[string]*auth.User
	grants map[auth.UserID][]rbac.Grant
	gate   chan struct{}
	err    error
}

func (f *fakeBackend) Login(ctx context.Context, email, password string) (*apiclient.LoginResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	user, ok := f.users[email]
	if !ok || password != "secret" {
		return nil, &apiclient.Error{StatusCode: http.StatusUnauthorized, Message: "Invalid credentials"}
	}
	return &apiclient.LoginResult{Token: "token-" + user.ID.String(), User: user}, nil
}

func (f *fakeBackend) RefreshToken(ctx context.Context, token string) (*apiclient.RefreshResult, error) {
	return nil, errors.New("not used")
}

func (f *fakeBackend) FetchPermissions(ctx context.Context, token string, userID auth.UserID) ([]rbac.Grant, error) {
	if f.gate != nil {
		<-f.gate
	}
	return f.grants[userID], nil
}

type testEnv struct {
	backend  *fakeBackend
	sessions *session.Manager
	resolver *rbac.Resolver
	server   *Server
	metrics  *observability.Metrics
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	backend := &fakeBackend{
		users: map[string]*auth.User{
			"dana@shop.test":  {ID: "7", Name: "Dana", Role: "Editor"},
			"admin@shop.test": {ID: "1", Name: "Root", Role: auth.RoleAdmin},
		},
		grants: map[auth.UserID][]rbac.Grant{
			"7": {
				{ResourceType: "products", Action: "view"},
				{ResourceType: "products", Action: "update"},
				{ResourceType: "brands", Action: "create"},
			},
		},
	}

	store, err := tokenstore.NewFileStore(t.TempDir(), tokenstore.DefaultKey)
	require.NoError(t, err)

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	resolver := rbac.NewResolver(backend)
	sessions := session.NewManager(backend, store)
	sessions.Subscribe(resolver)
	_, err = sessions.Restore(context.Background())
	require.NoError(t, err)

	srv := New(sessions, resolver, nav.NewGate(nil), WithMetrics(metrics))
	return &testEnv{backend: backend, sessions: sessions, resolver: resolver, server: srv, metrics: metrics}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, httptest.NewRequest(method, path, &buf))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dest))
}

func TestSession_LoggedOut(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/session", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.JSONEq(t, `{"authenticated":false,"permissions":"ready"}`, rec.Body.String())
}

func TestLoginFlow(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/session/login", LoginRequest{Email: "dana@shop.test", Password: "secret"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "token-7")

	var resp SessionResponse
	decode(t, rec, &resp)
	assert.True(t, resp.Authenticated)
	assert.Equal(t, "Dana", resp.User.Name)
	assert.Equal(t, rbac.StateReady, resp.Permissions)

	rec = env.do(t, http.MethodGet, "/api/session", nil)
	assert.NotContains(t, rec.Body.String(), "token-7")
	decode(t, rec, &resp)
	assert.True(t, resp.Authenticated)

	rec = env.do(t, http.MethodPost, "/api/session/logout", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, env.sessions.IsAuthenticated())
	assert.Empty(t, env.resolver.Capabilities())
}

func TestLogin_Errors(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/session/login", LoginRequest{Email: "dana@shop.test", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, env.sessions.IsAuthenticated())

	rec = env.do(t, http.MethodPost, "/api/session/login", LoginRequest{Email: "dana@shop.test"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	env.server.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/session/login", bytes.NewBufferString("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	env.backend.err = errors.New("dial tcp: connection refused")
	rec = env.do(t, http.MethodPost, "/api/session/login", LoginRequest{Email: "dana@shop.test", Password: "secret"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestPermissions(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.sessions.Login(context.Background(), "dana@shop.test", "secret")
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, "/api/permissions", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var snap struct {
		State        string                     `json:"state"`
		UserID       string                     `json:"user_id"`
		Capabilities map[string]map[string]bool `json:"capabilities"`
	}
	decode(t, rec, &snap)
	assert.Equal(t, "ready", snap.State)
	assert.Equal(t, "7", snap.UserID)
	assert.Equal(t, map[string]bool{"view": true, "create": false, "edit": true, "delete": false}, snap.Capabilities["products"])
	assert.True(t, snap.Capabilities["users"]["view"])
}

func TestPermissionCheck(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.sessions.Login(context.Background(), "dana@shop.test", "secret")
	require.NoError(t, err)

	tests := []struct {
		query string
		want  CheckResponse
	}{
		{"resource=Products&action=Update", CheckResponse{Resource: "products", Action: "edit", Decision: rbac.Allowed, Allowed: true}},
		{"resource=products", CheckResponse{Resource: "products", Action: "view", Decision: rbac.Allowed, Allowed: true}},
		{"resource=brands&action=delete", CheckResponse{Resource: "brands", Action: "delete", Decision: rbac.Denied}},
		{"resource=warehouses&action=view", CheckResponse{Resource: "warehouses", Action: "view", Decision: rbac.Denied}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, "/api/permissions/check?"+tt.query, nil)
			require.Equal(t, http.StatusOK, rec.Code)

			var got CheckResponse
			decode(t, rec, &got)
			assert.Equal(t, tt.want, got)
		})
	}

	rec := env.do(t, http.MethodGet, "/api/permissions/check?action=view", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNav(t *testing.T) {
	env := newTestEnv(t)

	var resp NavResponse
	decode(t, env.do(t, http.MethodGet, "/api/nav", nil), &resp)
	require.Len(t, resp.Routes, 1)
	assert.Equal(t, "dashboard", resp.Routes[0].Name)

	_, err := env.sessions.Login(context.Background(), "dana@shop.test", "secret")
	require.NoError(t, err)

	decode(t, env.do(t, http.MethodGet, "/api/nav", nil), &resp)
	names := make([]string, 0, len(resp.Routes))
	for _, r := range resp.Routes {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"dashboard", "products", "users"}, names)

	_, err = env.sessions.Login(context.Background(), "admin@shop.test", "secret")
	require.NoError(t, err)

	decode(t, env.do(t, http.MethodGet, "/api/nav", nil), &resp)
	assert.Len(t, resp.Routes, len(nav.DefaultRoutes()))
}

func TestNavActions(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.sessions.Login(context.Background(), "dana@shop.test", "secret")
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, "/api/nav/products/actions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var actions nav.Actions
	decode(t, rec, &actions)
	assert.Equal(t, nav.Actions{Resource: "products", Decision: rbac.Allowed, View: true, Edit: true}, actions)

	rec = env.do(t, http.MethodGet, "/api/nav/brands/actions", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.HTTPRequestsTotal.WithLabelValues("GET", "/api/nav/{resource}/actions", "403")))
}

func TestNavActions_PendingWhileLoading(t *testing.T) {
	env := newTestEnv(t)
	env.backend.gate = make(chan struct{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = env.sessions.Login(context.Background(), "dana@shop.test", "secret")
	}()
	require.Eventually(t, func() bool { return env.resolver.State() == rbac.StateLoading }, time.Second, 5*time.Millisecond)

	rec := env.do(t, http.MethodGet, "/api/nav/products/actions", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, rbac.PendingRetryAfter, rec.Header().Get("Retry-After"))

	close(env.backend.gate)
	<-done

	rec = env.do(t, http.MethodGet, "/api/nav/products/actions", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/session/login", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestLogin_Throttled(t *testing.T) {
	env := newTestEnv(t)
	limiter := middleware.NewRateLimiter(&middleware.RateLimitConfig{RequestsPerWindow: 2, WindowDuration: time.Minute})
	env.server = New(env.sessions, env.resolver, nav.NewGate(nil), WithLoginLimiter(limiter))

	for i := 0; i < 2; i++ {
		rec := env.do(t, http.MethodPost, "/api/session/login", LoginRequest{Email: "dana@shop.test", Password: "wrong"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	rec := env.do(t, http.MethodPost, "/api/session/login", LoginRequest{Email: "dana@shop.test", Password: "secret"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.False(t, env.sessions.IsAuthenticated())

	// Other routes are not throttled
	rec = env.do(t, http.MethodGet, "/api/session", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLogin_LogsRequestContext(t *testing.T) {
	env := newTestEnv(t)
	var logs bytes.Buffer
	env.server = New(env.sessions, env.resolver, nav.NewGate(nil),
		WithLogger(observability.NewLogger(observability.InfoLevel, &logs)))

	req := httptest.NewRequest(http.MethodPost, "/api/session/login",
		bytes.NewBufferString(`{"email":"dana@shop.test","password":"wrong"}`))
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, logs.String(), "Login rejected")
	assert.Contains(t, logs.String(), `"request_id":"req-42"`)
}
