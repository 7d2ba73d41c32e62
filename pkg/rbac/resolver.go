package rbac

import (
	"context"
	"fmt"
	"sync"

	"github.com/platinummonkey/backoffice/pkg/auth"
	"github.com/platinummonkey/backoffice/pkg/observability"
)

// State is the lifecycle state of a Resolver
type State int

const (
	// StateIdle means no identity has been synced yet
	StateIdle State = iota
	// StateLoading means a grant fetch is in flight; nothing is confirmed
	StateLoading
	// StateReady means the capability map reflects the current identity
	StateReady
	// StateFallback means the grant fetch failed and only users.view is granted
	StateFallback
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name
func (s *State) UnmarshalText(text []byte) error {
	for _, candidate := range []State{StateIdle, StateLoading, StateReady, StateFallback} {
		if candidate.String() == string(text) {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown resolver state %q", text)
}

// Decision is the outcome of a permission query. Pending is distinct from
// Denied: consumers should neither render privileged controls nor show a
// denial while a decision is pending.
type Decision int

const (
	Pending Decision = iota
	Allowed
	Denied
)

func (d Decision) String() string {
	switch d {
	case Pending:
		return "pending"
	case Allowed:
		return "allowed"
	case Denied:
		return "denied"
	default:
		return "unknown"
	}
}

// MarshalText renders the decision name in JSON
func (d Decision) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText parses a decision name
func (d *Decision) UnmarshalText(text []byte) error {
	for _, candidate := range []Decision{Pending, Allowed, Denied} {
		if candidate.String() == string(text) {
			*d = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown decision %q", text)
}

// GrantFetcher loads the raw grants of a user from the API
type GrantFetcher interface {
	FetchPermissions(ctx context.Context, token string, userID auth.UserID) ([]Grant, error)
}

// Checker answers permission queries. Resolver is the production
// implementation; UI-side consumers depend on this interface only.
type Checker interface {
	HasPermission(resource, action string) bool
	Check(resource, action string) Decision
}

// Snapshot is a point-in-time copy of the resolver state
type Snapshot struct {
	State        State         `json:"state"`
	UserID       auth.UserID   `json:"user_id,omitempty"`
	Role         string        `json:"role,omitempty"`
	Admin        bool          `json:"admin"`
	Capabilities CapabilityMap `json:"capabilities"`
}

// Resolver converts the grants of the current user into a capability map and
// answers permission queries against it. It is constructed once per process
// and kept in sync with the session manager.
type Resolver struct {
	fetcher   GrantFetcher
	adminRole string
	logger    *observability.Logger
	metrics   *observability.Metrics

	mu         sync.RWMutex
	state      State
	session    auth.Session
	caps       CapabilityMap
	generation uint64
}

// Option configures a Resolver
type Option func(*Resolver)

// WithAdminRole overrides the bypass role name (default auth.RoleAdmin)
func WithAdminRole(role string) Option {
	return func(r *Resolver) {
		r.adminRole = role
	}
}

// WithLogger sets the logger used for fetch failures
func WithLogger(logger *observability.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics enables resolution and check metrics
func WithMetrics(metrics *observability.Metrics) Option {
	return func(r *Resolver) {
		r.metrics = metrics
	}
}

// NewResolver creates a resolver in the Idle state
func NewResolver(fetcher GrantFetcher, opts ...Option) *Resolver {
	r := &Resolver{
		fetcher:   fetcher,
		adminRole: auth.RoleAdmin,
		logger:    observability.Discard(),
		state:     StateIdle,
		caps:      CapabilityMap{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SessionChanged keeps the resolver in sync with the session manager
func (r *Resolver) SessionChanged(ctx context.Context, session auth.Session) {
	r.Sync(ctx, session)
}

// Sync re-derives the capability map for the given session and returns the
// resulting state. An unauthenticated session yields Ready with an empty map.
// If another Sync starts before the fetch completes, this result is discarded.
func (r *Resolver) Sync(ctx context.Context, session auth.Session) State {
	r.mu.Lock()
	r.generation++
	gen := r.generation
	r.session = session
	r.caps = CapabilityMap{}

	if !session.IsAuthenticated() {
		r.state = StateReady
		r.mu.Unlock()
		r.metrics.RecordPermissionResolve(StateReady.String())
		return StateReady
	}

	r.state = StateLoading
	r.mu.Unlock()

	userID := session.UserID()
	logger := r.logger.WithField("user_id", userID.String())

	grants, err := r.fetcher.FetchPermissions(ctx, session.Token, userID)

	next := StateReady
	var caps CapabilityMap
	if err != nil {
		if ctx.Err() != nil {
			logger.WithError(err).Debug("Permission fetch cancelled")
		} else {
			logger.WithError(err).Warn("Failed to fetch permissions, falling back to minimal capabilities")
		}
		next = StateFallback
		caps = FallbackMap()
	} else {
		caps = Fold(grants)
		logger.WithField("resources", len(caps)).Debug("Resolved permissions")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.generation != gen {
		logger.Debug("Discarding stale permission result")
		r.metrics.RecordPermissionResolve("stale")
		return r.state
	}

	r.state = next
	r.caps = caps
	r.metrics.RecordPermissionResolve(next.String())
	return next
}

// State returns the current lifecycle state
func (r *Resolver) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Check returns the decision for a resource/action pair. The Admin bypass is
// checked first and applies in every state; otherwise Idle and Loading yield
// Pending and missing entries yield Denied.
func (r *Resolver) Check(resource, action string) Decision {
	r.mu.RLock()
	decision := r.decideLocked(resource, action)
	r.mu.RUnlock()

	r.metrics.RecordPermissionCheck(decision.String())
	return decision
}

func (r *Resolver) decideLocked(resource, action string) Decision {
	if r.session.IsAuthenticated() && r.session.User.IsAdmin(r.adminRole) {
		return Allowed
	}

	switch r.state {
	case StateIdle, StateLoading:
		return Pending
	}

	if r.caps.Allows(resource, action) {
		return Allowed
	}
	return Denied
}

// HasPermission reports whether the current user may perform action on
// resource. It is false for anything not confirmed, including while loading.
func (r *Resolver) HasPermission(resource, action string) bool {
	return r.Check(resource, action) == Allowed
}

// Capabilities returns a copy of the current capability map
func (r *Resolver) Capabilities() CapabilityMap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.caps.Clone()
}

// Snapshot returns a consistent copy of the resolver state
func (r *Resolver) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return Snapshot{
		State:        r.state,
		UserID:       r.session.UserID(),
		Role:         r.session.Role(),
		Admin:        r.session.IsAuthenticated() && r.session.User.IsAdmin(r.adminRole),
		Capabilities: r.caps.Clone(),
	}
}
