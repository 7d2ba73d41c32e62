package rbac

import (
	"net/http"

	"github.com/platinummonkey/backoffice/pkg/httputil"
)

// PendingRetryAfter is the Retry-After value, in seconds, sent while
// permissions are still loading
const PendingRetryAfter = "1"

// PermissionMiddleware gates HTTP handlers on the capability map
type PermissionMiddleware struct {
	checker Checker
}

// NewPermissionMiddleware creates a new permission middleware
func NewPermissionMiddleware(checker Checker) *PermissionMiddleware {
	return &PermissionMiddleware{
		checker: checker,
	}
}

// RequirePermission creates middleware that requires a specific permission.
// A pending decision yields 503 with Retry-After rather than a denial.
func (pm *PermissionMiddleware) RequirePermission(resource, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !pm.admit(w, pm.checker.Check(resource, action)) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAnyPermission creates middleware that requires any of the given grants.
// The request is pending if no grant is allowed and at least one is pending.
func (pm *PermissionMiddleware) RequireAnyPermission(grants ...Grant) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision := Denied
			for _, g := range grants {
				d := pm.checker.Check(g.ResourceType, g.Action)
				if d == Allowed {
					decision = Allowed
					break
				}
				if d == Pending {
					decision = Pending
				}
			}

			if !pm.admit(w, decision) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (pm *PermissionMiddleware) admit(w http.ResponseWriter, decision Decision) bool {
	switch decision {
	case Allowed:
		return true
	case Pending:
		w.Header().Set("Retry-After", PendingRetryAfter)
		httputil.WriteServiceUnavailable(w, "Permissions are still loading")
		return false
	default:
		httputil.WriteForbidden(w, "Insufficient permissions")
		return false
	}
}
