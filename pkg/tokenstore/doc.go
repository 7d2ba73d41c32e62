// Package tokenstore persists the session token, the only state of the
// console that survives a process restart.
//
// Three backends implement Store and are selected by Config.Type:
//
//	file   one 0600 file, replaced atomically on save (default)
//	redis  one key, no expiry
//	sql    one row of the backoffice_kv table (sqlite3 or postgres)
//
// Every backend stores exactly one key. Load returns ErrNotFound when no token
// is persisted, and Delete is idempotent:
//
//	store, err := tokenstore.Open(ctx, cfg)
//	token, err := store.Load(ctx)
//	if errors.Is(err, tokenstore.ErrNotFound) {
//		// logged out
//	}
//
// FileStore.Watch reports writes and removals made by other processes sharing
// the directory, so a long-running agent can follow logins and logouts
// performed from the CLI.
package tokenstore
