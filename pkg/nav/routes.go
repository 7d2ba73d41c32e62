package nav

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/backoffice/pkg/rbac"
)

// Route is one screen of the console. A route without a Resource is
// visible to everyone.
type Route struct {
	Name     string `yaml:"name" json:"name"`
	Path     string `yaml:"path" json:"path"`
	Title    string `yaml:"title" json:"title"`
	Resource string `yaml:"resource,omitempty" json:"resource,omitempty"`
	Action   string `yaml:"action,omitempty" json:"action,omitempty"`
}

// Gated reports whether the route requires a permission
func (r Route) Gated() bool {
	return r.Resource != ""
}

// routeFile is the on-disk layout of a route table
type routeFile struct {
	Routes []Route `yaml:"routes"`
}

// DefaultRoutes returns the built-in navigation of the back office
func DefaultRoutes() []Route {
	return []Route{
		{Name: "dashboard", Path: "/", Title: "Dashboard"},
		{Name: "products", Path: "/products", Title: "Products", Resource: rbac.ResourceProducts, Action: rbac.ActionView},
		{Name: "categories", Path: "/categories", Title: "Categories", Resource: rbac.ResourceCategories, Action: rbac.ActionView},
		{Name: "brands", Path: "/brands", Title: "Brands", Resource: rbac.ResourceBrands, Action: rbac.ActionView},
		{Name: "suppliers", Path: "/suppliers", Title: "Suppliers", Resource: rbac.ResourceSuppliers, Action: rbac.ActionView},
		{Name: "users", Path: "/users", Title: "Users", Resource: rbac.ResourceUsers, Action: rbac.ActionView},
	}
}

// LoadRoutes reads a YAML route table:
//
//	routes:
//	  - name: products
//	    path: /products
//	    title: Products
//	    resource: products
//	    action: view
func LoadRoutes(path string) ([]Route, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read route table: %w", err)
	}
	return ParseRoutes(data)
}

// ParseRoutes decodes and validates a YAML route table
func ParseRoutes(data []byte) ([]Route, error) {
	var file routeFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse route table: %w", err)
	}
	if len(file.Routes) == 0 {
		return nil, fmt.Errorf("route table has no routes")
	}

	seen := make(map[string]bool, len(file.Routes))
	routes := make([]Route, 0, len(file.Routes))
	for i, r := range file.Routes {
		r.Path = normalizePath(r.Path)
		if r.Name == "" {
			return nil, fmt.Errorf("route %d: name is required", i)
		}
		if seen[r.Path] {
			return nil, fmt.Errorf("route %q: duplicate path %s", r.Name, r.Path)
		}
		seen[r.Path] = true

		if r.Resource != "" {
			r.Resource = rbac.NormalizeResource(r.Resource)
			if r.Action == "" {
				r.Action = rbac.ActionView
			}
			r.Action = rbac.NormalizeAction(r.Action)
		}
		if r.Title == "" {
			r.Title = r.Name
		}
		routes = append(routes, r)
	}
	return routes, nil
}

func normalizePath(p string) string {
	p = strings.TrimSpace(p)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	return p
}
