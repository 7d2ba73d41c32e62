// Package server is the HTTP API of the local console agent.
//
//	GET  /api/session                    current user, never the token
//	POST /api/session/login              {"email": "...", "password": "..."}
//	POST /api/session/logout
//	GET  /api/permissions                resolver state and capability map
//	GET  /api/permissions/check          ?resource=products&action=edit
//	GET  /api/nav                        routes the user may open
//	GET  /api/nav/{resource}/actions     table controls for a resource
//
// Permission-gated endpoints answer 403 when denied and 503 with
// Retry-After while permissions are loading.
package server
