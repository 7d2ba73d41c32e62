package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/platinummonkey/backoffice/pkg/apiclient"
	"github.com/platinummonkey/backoffice/pkg/auth"
	"github.com/platinummonkey/backoffice/pkg/observability"
	"github.com/platinummonkey/backoffice/pkg/tokenstore"
)

// ErrInvalidLoginResponse is returned when the API accepts credentials but
// does not return both a token and a user
var ErrInvalidLoginResponse = errors.New("login response is missing token or user")

// AuthAPI is the authentication collaborator. *apiclient.Client implements it.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (*apiclient.LoginResult, error)
	RefreshToken(ctx context.Context, token string) (*apiclient.RefreshResult, error)
}

// Listener is notified after every committed identity change
type Listener interface {
	SessionChanged(ctx context.Context, session auth.Session)
}

// ListenerFunc adapts a function to a Listener
type ListenerFunc func(ctx context.Context, session auth.Session)

// SessionChanged calls f
func (f ListenerFunc) SessionChanged(ctx context.Context, session auth.Session) {
	f(ctx, session)
}

// Manager owns the authentication token and current user. It is constructed
// once per process and shared by reference.
type Manager struct {
	api     AuthAPI
	store   tokenstore.Store
	logger  *observability.Logger
	metrics *observability.Metrics

	mu      sync.RWMutex
	current auth.Session
	settled bool
	seq     uint64
	cancel  context.CancelFunc

	// written is the token most recently handed to the store by this manager
	written atomic.Value
	// staleToken is set when a logout could not remove the persisted token
	staleToken atomic.Bool

	notifyMu  sync.Mutex
	delivered uint64

	listenersMu sync.RWMutex
	listeners   []Listener

	restoreGroup singleflight.Group
}

// Option configures a Manager
type Option func(*Manager)

// WithLogger sets the logger
func WithLogger(logger *observability.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMetrics enables session metrics
func WithMetrics(metrics *observability.Metrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// NewManager creates a logged-out manager
func NewManager(api AuthAPI, store tokenstore.Store, opts ...Option) *Manager {
	m := &Manager{
		api:    api,
		store:  store,
		logger: observability.Discard(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Subscribe registers a listener for identity changes. Listeners run
// synchronously, in registration order, after the new state is visible.
// Deliveries never overlap and arrive in commit order; a listener must not
// log in or out from within SessionChanged.
func (m *Manager) Subscribe(l Listener) {
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()
	m.listeners = append(m.listeners, l)
}

// Current returns a snapshot of the session
func (m *Manager) Current() auth.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// IsAuthenticated reports whether a token is held
func (m *Manager) IsAuthenticated() bool {
	return m.Current().IsAuthenticated()
}

// Token returns the current token, or "" when logged out
func (m *Manager) Token() string {
	return m.Current().Token
}

// OwnsToken reports whether token is the one this manager holds or the one it
// last persisted. A login or refresh saves the token before it becomes
// current, so storage watchers use this to recognise their own writes.
func (m *Manager) OwnsToken(token string) bool {
	if token == "" {
		return false
	}
	if written, _ := m.written.Load().(string); written == token {
		return true
	}
	return token == m.Token()
}

func (m *Manager) save(ctx context.Context, token string) error {
	m.written.Store(token)
	return m.store.Save(ctx, token)
}

// Login authenticates with the API. On failure the error is returned as is
// and the session is left untouched.
func (m *Manager) Login(ctx context.Context, email, password string) (auth.Session, error) {
	result, err := m.api.Login(ctx, email, password)
	if err != nil {
		m.metrics.RecordLogin("failure")
		return m.Current(), err
	}
	if result == nil || result.Token == "" || result.User == nil {
		m.metrics.RecordLogin("failure")
		return m.Current(), ErrInvalidLoginResponse
	}

	if err := m.save(ctx, result.Token); err != nil {
		m.metrics.RecordLogin("failure")
		return m.Current(), fmt.Errorf("failed to persist session token: %w", err)
	}
	m.staleToken.Store(false)

	// A fresh login re-resolves permissions even for the same identity, so
	// logging in again recovers from a failed permission fetch.
	next := auth.Session{Token: result.Token, User: result.User}
	m.commit(ctx, next, true)
	m.metrics.RecordLogin("success")

	m.logger.WithFields(map[string]interface{}{
		"user_id": next.UserID().String(),
		"role":    next.Role(),
	}).Info("Logged in")

	return next, nil
}

// Logout clears the in-memory session and the persisted token. Calling it
// while logged out is a no-op apart from the storage delete.
//
// The in-memory session is cleared even when the delete fails. The error is
// returned and the leftover token is never refreshed by this manager: the
// next Restore or Logout retries the delete instead. A new process reading
// the same store will still find the token.
func (m *Manager) Logout(ctx context.Context) error {
	wasAuthenticated := m.IsAuthenticated()
	m.commit(ctx, auth.Anonymous(), false)

	if err := m.deleteToken(ctx); err != nil {
		return fmt.Errorf("failed to remove persisted token: %w", err)
	}

	if wasAuthenticated {
		m.metrics.RecordLogout()
		m.logger.Info("Logged out")
	}
	return nil
}

// Restore runs the startup refresh. When a persisted token exists it is
// exchanged once for a fresh one; if that fails the session is treated as
// logged out and the persisted token removed. Only storage read failures
// are returned. Concurrent callers share a single refresh.
func (m *Manager) Restore(ctx context.Context) (auth.Session, error) {
	v, err, _ := m.restoreGroup.Do("restore", func() (interface{}, error) {
		return m.restore(ctx)
	})
	if err != nil {
		return m.Current(), err
	}
	return v.(auth.Session), nil
}

func (m *Manager) deleteToken(ctx context.Context) error {
	m.written.Store("")
	if err := m.store.Delete(ctx); err != nil {
		m.staleToken.Store(true)
		return err
	}
	m.staleToken.Store(false)
	return nil
}

func (m *Manager) restore(ctx context.Context) (auth.Session, error) {
	if m.staleToken.Load() {
		m.commit(ctx, auth.Anonymous(), false)
		if err := m.deleteToken(ctx); err != nil {
			return auth.Anonymous(), fmt.Errorf("failed to remove persisted token: %w", err)
		}
		return auth.Anonymous(), nil
	}

	token, err := m.store.Load(ctx)
	if errors.Is(err, tokenstore.ErrNotFound) {
		m.commit(ctx, auth.Anonymous(), false)
		return auth.Anonymous(), nil
	}
	if err != nil {
		m.commit(ctx, auth.Anonymous(), false)
		return auth.Anonymous(), fmt.Errorf("failed to load persisted token: %w", err)
	}

	next, err := m.refresh(ctx, token)
	if err != nil {
		m.metrics.RecordTokenRefresh("failure")
		m.logger.WithError(err).Info("Session refresh failed, continuing logged out")

		m.commit(ctx, auth.Anonymous(), false)
		if delErr := m.deleteToken(ctx); delErr != nil {
			m.logger.WithError(delErr).Warn("Failed to remove rejected token")
		}
		return auth.Anonymous(), nil
	}

	if err := m.save(ctx, next.Token); err != nil {
		m.logger.WithError(err).Warn("Failed to persist refreshed token")
	}

	m.commit(ctx, next, false)
	m.metrics.RecordTokenRefresh("success")
	m.logger.WithField("user_id", next.UserID().String()).Debug("Session restored")

	return next, nil
}

// refresh exchanges a token and works out the identity it belongs to
func (m *Manager) refresh(ctx context.Context, token string) (auth.Session, error) {
	result, err := m.api.RefreshToken(ctx, token)
	if err != nil {
		return auth.Session{}, err
	}
	if result == nil || result.Token == "" {
		return auth.Session{}, errors.New("refresh response did not contain a token")
	}

	user := result.User
	if user == nil {
		user, err = auth.ClaimsFromToken(result.Token)
		if err != nil {
			return auth.Session{}, fmt.Errorf("refreshed token has no usable identity: %w", err)
		}
	}

	return auth.Session{Token: result.Token, User: user}, nil
}

// commit swaps the session and notifies listeners if the identity changed
// or force is set. The first commit always notifies so listeners leave their
// initial state even when the process starts and stays logged out.
func (m *Manager) commit(ctx context.Context, next auth.Session, force bool) {
	m.mu.Lock()
	prev := m.current
	first := !m.settled
	m.current = next
	m.settled = true
	m.seq++
	notify := first || force || identityChanged(prev, next)
	if notify && m.cancel != nil {
		// the delivery in flight is for a session that is no longer current
		m.cancel()
	}
	m.mu.Unlock()

	m.metrics.SetAuthenticated(next.IsAuthenticated())

	if notify {
		m.notify(ctx)
	}
}

// notify delivers the latest committed session. Deliveries are serialized;
// one overtaken by a newer commit is skipped because that commit delivers.
func (m *Manager) notify(ctx context.Context) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	if m.seq <= m.delivered {
		m.mu.Unlock()
		return
	}
	s := m.current
	m.delivered = m.seq
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.mu.Unlock()
	defer cancel()

	m.listenersMu.RLock()
	listeners := make([]Listener, len(m.listeners))
	copy(listeners, m.listeners)
	m.listenersMu.RUnlock()

	for _, l := range listeners {
		l.SessionChanged(ctx, s)
	}
}

func identityChanged(prev, next auth.Session) bool {
	if prev.IsAuthenticated() != next.IsAuthenticated() {
		return true
	}
	if prev.UserID() != next.UserID() || prev.Role() != next.Role() {
		return true
	}
	return !slices.Equal(roles(prev), roles(next))
}

func roles(s auth.Session) []string {
	if s.User == nil {
		return nil
	}
	return s.User.Roles
}
