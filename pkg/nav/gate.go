package nav

import (
	"github.com/platinummonkey/backoffice/pkg/rbac"
)

// Gate decides which routes and table controls a user may see
type Gate struct {
	routes []Route
	byPath map[string]Route
}

// NewGate creates a gate over a route table. Nil routes means DefaultRoutes.
func NewGate(routes []Route) *Gate {
	if routes == nil {
		routes = DefaultRoutes()
	}
	g := &Gate{
		routes: routes,
		byPath: make(map[string]Route, len(routes)),
	}
	for _, r := range routes {
		g.byPath[normalizePath(r.Path)] = r
	}
	return g
}

// Routes returns the full route table
func (g *Gate) Routes() []Route {
	out := make([]Route, len(g.routes))
	copy(out, g.routes)
	return out
}

// Decide returns the decision for a path. Unknown paths are denied and
// ungated routes are always allowed.
func (g *Gate) Decide(checker rbac.Checker, path string) rbac.Decision {
	r, ok := g.byPath[normalizePath(path)]
	if !ok {
		return rbac.Denied
	}
	return decideRoute(checker, r)
}

// Visible returns the routes whose decision is Allowed, in table order.
// Routes still pending are left out.
func (g *Gate) Visible(checker rbac.Checker) []Route {
	var visible []Route
	for _, r := range g.routes {
		if decideRoute(checker, r) == rbac.Allowed {
			visible = append(visible, r)
		}
	}
	return visible
}

// Actions lists the controls a table screen should render for a resource
type Actions struct {
	Resource string        `json:"resource"`
	Decision rbac.Decision `json:"decision"`
	View     bool          `json:"view"`
	Create   bool          `json:"create"`
	Edit     bool          `json:"edit"`
	Delete   bool          `json:"delete"`
}

// Actions reports which of the standard controls to render for resource.
// While the decision is pending every control is hidden.
func (g *Gate) Actions(checker rbac.Checker, resource string) Actions {
	a := Actions{Resource: rbac.NormalizeResource(resource)}

	a.Decision = checker.Check(a.Resource, rbac.ActionView)
	if a.Decision == rbac.Pending {
		return a
	}

	a.View = a.Decision == rbac.Allowed
	a.Create = checker.HasPermission(a.Resource, rbac.ActionCreate)
	a.Edit = checker.HasPermission(a.Resource, rbac.ActionEdit)
	a.Delete = checker.HasPermission(a.Resource, rbac.ActionDelete)
	return a
}

func decideRoute(checker rbac.Checker, r Route) rbac.Decision {
	if !r.Gated() {
		return rbac.Allowed
	}
	action := r.Action
	if action == "" {
		action = rbac.ActionView
	}
	return checker.Check(r.Resource, action)
}
