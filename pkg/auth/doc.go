// Package auth defines the identity types shared by the session manager and
// the permission resolver.
//
// # Sessions
//
// A Session is a value snapshot of the authentication state. Authentication is
// derived solely from token presence, and User is non-nil iff Token is set:
//
//	s := auth.Session{Token: tok, User: &auth.User{ID: "7", Role: "Editor"}}
//	s.IsAuthenticated() // true
//	auth.Anonymous().IsAuthenticated() // false
//
// # Roles
//
// RoleAdmin ("Admin") is the distinguished role that bypasses every permission
// check. The bypass itself lives in the rbac package so it stays auditable.
//
// # Token Claims
//
// The refresh endpoint may answer with a bare token. ClaimsFromToken recovers
// the user identity from the token's claims without verifying the signature:
//
//	user, err := auth.ClaimsFromToken(refreshed)
//	if errors.Is(err, auth.ErrNoIdentity) {
//		// token is opaque or carries no subject
//	}
//
// Both short JWT claim names (sub, name, email, role) and the .NET
// WS-Federation claim URIs are recognised.
package auth
