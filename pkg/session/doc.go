// Package session owns the authentication token and the current user.
//
// A Manager is built once per process from an API client and a token store.
// Restore performs the startup refresh: a persisted token is exchanged once
// for a fresh one, and any failure leaves the process logged out with the
// stale token removed. Login persists the new token; Logout removes it. The
// token is the only state that survives a restart.
//
// Listeners registered with Subscribe are told about every identity change,
// which is how the permission resolver follows the session:
//
//	sessions := session.NewManager(api, store, session.WithLogger(logger))
//	sessions.Subscribe(resolver)
//	if _, err := sessions.Restore(ctx); err != nil {
//		logger.WithError(err).Warn("Could not read persisted token")
//	}
package session
