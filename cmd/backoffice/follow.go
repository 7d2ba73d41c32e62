package main

import (
	"context"
	"errors"

	"github.com/platinummonkey/backoffice/pkg/observability"
	"github.com/platinummonkey/backoffice/pkg/session"
	"github.com/platinummonkey/backoffice/pkg/tokenstore"
)

// followTokenFile returns the watch callback that keeps the agent's session
// in step with logins and logouts done by the CLI in the same token directory.
// Events caused by the agent's own writes are ignored, including one that
// arrives between saving a new token and committing it.
func followTokenFile(ctx context.Context, sessions *session.Manager, store tokenstore.Store, logger *observability.Logger) func(tokenstore.ChangeKind) {
	return func(kind tokenstore.ChangeKind) {
		defer observability.RecoverPanic(logger, "token file watcher")

		log := logger.WithField("change", kind.String())

		token, err := store.Load(ctx)
		switch {
		case errors.Is(err, tokenstore.ErrNotFound):
			if !sessions.IsAuthenticated() {
				return
			}
			log.Info("Token removed by another process, logging out")
			if err := sessions.Logout(ctx); err != nil {
				log.WithError(err).Warn("Failed to log out")
			}
		case err != nil:
			log.WithError(err).Warn("Failed to read token file")
		case sessions.OwnsToken(token):
			return
		default:
			log.Info("Token written by another process, restoring session")
			if _, err := sessions.Restore(ctx); err != nil {
				log.WithError(err).Warn("Failed to restore session")
			}
		}
	}
}
