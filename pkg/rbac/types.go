package rbac

import (
	"encoding/json"
	"strings"
)

// Resource types of the back office. Any other resource name coming from the
// API is still folded; these are the ones the console knows how to navigate.
const (
	ResourceProducts   = "products"
	ResourceCategories = "categories"
	ResourceBrands     = "brands"
	ResourceSuppliers  = "suppliers"
	ResourceUsers      = "users"
)

// Canonical actions
const (
	ActionView   = "view"
	ActionCreate = "create"
	ActionEdit   = "edit"
	ActionDelete = "delete"
)

// actionSynonyms maps every accepted spelling to its canonical action
var actionSynonyms = map[string]string{
	"view":   ActionView,
	"read":   ActionView,
	"create": ActionCreate,
	"add":    ActionCreate,
	"edit":   ActionEdit,
	"update": ActionEdit,
	"delete": ActionDelete,
	"remove": ActionDelete,
}

// Grant is one raw (resourceType, action) permission row issued to a user
type Grant struct {
	ResourceType string `json:"resourceType"`
	Action       string `json:"action"`
}

// String returns a string representation of the grant
func (g Grant) String() string {
	return g.ResourceType + ":" + g.Action
}

// NormalizeAction lower-cases an action and maps synonyms onto the canonical
// vocabulary. Unrecognised actions are returned verbatim (lower-cased).
func NormalizeAction(action string) string {
	a := strings.ToLower(strings.TrimSpace(action))
	if canonical, ok := actionSynonyms[a]; ok {
		return canonical
	}
	return a
}

// NormalizeResource lower-cases a resource type name
func NormalizeResource(resource string) string {
	return strings.ToLower(strings.TrimSpace(resource))
}

// Capabilities is the derived permission summary of one resource type.
// The four canonical flags are always present; Extra holds non-standard
// actions granted by the API.
type Capabilities struct {
	View   bool
	Create bool
	Edit   bool
	Delete bool
	Extra  map[string]bool
}

// Allows reports whether the (already normalized) action is granted
func (c Capabilities) Allows(action string) bool {
	switch action {
	case ActionView:
		return c.View
	case ActionCreate:
		return c.Create
	case ActionEdit:
		return c.Edit
	case ActionDelete:
		return c.Delete
	default:
		return c.Extra[action]
	}
}

func (c *Capabilities) grant(action string) {
	switch action {
	case ActionView:
		c.View = true
	case ActionCreate:
		c.Create = true
	case ActionEdit:
		c.Edit = true
	case ActionDelete:
		c.Delete = true
	case "":
	default:
		if c.Extra == nil {
			c.Extra = make(map[string]bool)
		}
		c.Extra[action] = true
	}
}

func (c Capabilities) clone() Capabilities {
	if c.Extra == nil {
		return c
	}
	extra := make(map[string]bool, len(c.Extra))
	for k, v := range c.Extra {
		extra[k] = v
	}
	c.Extra = extra
	return c
}

// MarshalJSON flattens the capabilities into a single object, e.g.
// {"view":true,"create":false,"edit":false,"delete":false,"publish":true}
func (c Capabilities) MarshalJSON() ([]byte, error) {
	out := make(map[string]bool, 4+len(c.Extra))
	for k, v := range c.Extra {
		out[k] = v
	}
	out[ActionView] = c.View
	out[ActionCreate] = c.Create
	out[ActionEdit] = c.Edit
	out[ActionDelete] = c.Delete
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON
func (c *Capabilities) UnmarshalJSON(data []byte) error {
	var in map[string]bool
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*c = Capabilities{}
	for k, v := range in {
		if !v {
			continue
		}
		c.grant(NormalizeAction(k))
	}
	return nil
}

// CapabilityMap maps lower-cased resource type names to their capabilities
type CapabilityMap map[string]Capabilities

// Allows looks up a resource/action pair, normalizing both.
// Absent resources and actions are denied.
func (m CapabilityMap) Allows(resource, action string) bool {
	caps, ok := m[NormalizeResource(resource)]
	if !ok {
		return false
	}
	return caps.Allows(NormalizeAction(action))
}

// Clone returns a deep copy of the map
func (m CapabilityMap) Clone() CapabilityMap {
	out := make(CapabilityMap, len(m))
	for k, v := range m {
		out[k] = v.clone()
	}
	return out
}

// Fold reduces raw grants into a capability map. Every resource seen gets a
// bucket with all four flags defaulting to false; each grant then sets the
// flag named by its normalized action. users.view is forced true afterwards so
// every authenticated user can see the user directory.
func Fold(grants []Grant) CapabilityMap {
	m := make(CapabilityMap)
	for _, g := range grants {
		resource := NormalizeResource(g.ResourceType)
		if resource == "" {
			continue
		}
		caps := m[resource]
		caps.grant(NormalizeAction(g.Action))
		m[resource] = caps
	}

	users := m[ResourceUsers]
	users.View = true
	m[ResourceUsers] = users

	return m
}

// FallbackMap is the degraded map used when the grant fetch fails:
// only the user directory is visible.
func FallbackMap() CapabilityMap {
	return CapabilityMap{
		ResourceUsers: {View: true},
	}
}
