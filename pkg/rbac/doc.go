// Package rbac derives the capability map of the signed-in user and answers
// permission queries against it.
//
// # Overview
//
// The API issues a flat list of grants, one per (resourceType, action) pair.
// The Resolver fetches that list whenever the session identity changes and
// folds it into a CapabilityMap keyed by lower-cased resource type:
//
//	grants: [{brands Create} {brands Update}]
//	map:    brands: {view:false create:true edit:true delete:false}
//	        users:  {view:true  create:false edit:false delete:false}
//
// users.view is always granted to an authenticated user.
//
// # Actions
//
// Actions are normalized before folding and before every lookup:
//
//	view, read     -> view
//	create, add    -> create
//	edit, update   -> edit
//	delete, remove -> delete
//
// Matching is case-insensitive. Any other action is kept verbatim (lower-cased)
// under Capabilities.Extra and can be queried like the canonical ones.
//
// # Lifecycle
//
//	Idle -> Loading -> Ready
//	                -> Fallback
//
// Logging out yields Ready with an empty map. A failed fetch yields Fallback
// with only users.view granted; the error is logged, never returned. When the
// identity changes again before a fetch completes, the older result is dropped.
//
// # Queries
//
//	resolver := rbac.NewResolver(apiClient, rbac.WithLogger(logger))
//	sessions.Subscribe(resolver)
//
//	switch resolver.Check("products", "edit") {
//	case rbac.Allowed:
//		// render the edit button
//	case rbac.Pending:
//		// render nothing yet
//	case rbac.Denied:
//		// hide the control
//	}
//
// Users holding the admin role (default "Admin") are allowed everything, in
// every state, before the map is consulted.
//
// # HTTP
//
//	pm := rbac.NewPermissionMiddleware(resolver)
//	router.Handle("/api/brands", pm.RequirePermission("brands", "view")(handler))
//
// Denied requests get 403. Pending requests get 503 with Retry-After.
package rbac
