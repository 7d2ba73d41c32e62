package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/platinummonkey/backoffice/pkg/apiclient"
	"github.com/platinummonkey/backoffice/pkg/config"
	"github.com/platinummonkey/backoffice/pkg/nav"
	"github.com/platinummonkey/backoffice/pkg/observability"
	"github.com/platinummonkey/backoffice/pkg/rbac"
	"github.com/platinummonkey/backoffice/pkg/session"
	"github.com/platinummonkey/backoffice/pkg/tokenstore"
)

// Console is the core of one CLI invocation. Each invocation behaves like a
// fresh process start: the persisted session is restored before the command
// runs.
type Console struct {
	Sessions *session.Manager
	Resolver *rbac.Resolver
	Gate     *nav.Gate

	store tokenstore.Store
}

// NewConsole builds the session manager, resolver and navigation gate from
// configuration. Logs go to logOut.
func NewConsole(ctx context.Context, cfg *config.Config, logOut io.Writer) (*Console, error) {
	logger := observability.NewLogger(cfg.Observability.LogLevel, logOut)

	client, err := apiclient.New(cfg.API.BaseURL, cfg.API.Timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}

	store, err := tokenstore.Open(ctx, cfg.TokenStore)
	if err != nil {
		return nil, fmt.Errorf("failed to open token store: %w", err)
	}

	routes := nav.DefaultRoutes()
	if cfg.Access.RoutesFile != "" {
		routes, err = nav.LoadRoutes(cfg.Access.RoutesFile)
		if err != nil {
			store.Close()
			return nil, err
		}
	}

	resolver := rbac.NewResolver(client,
		rbac.WithAdminRole(cfg.Access.AdminRole),
		rbac.WithLogger(logger),
	)
	sessions := session.NewManager(client, store, session.WithLogger(logger))
	sessions.Subscribe(resolver)

	return &Console{
		Sessions: sessions,
		Resolver: resolver,
		Gate:     nav.NewGate(routes),
		store:    store,
	}, nil
}

// Restore performs the startup refresh
func (c *Console) Restore(ctx context.Context) error {
	if _, err := c.Sessions.Restore(ctx); err != nil {
		return fmt.Errorf("failed to restore session: %w", err)
	}
	return nil
}

// Close releases the token store
func (c *Console) Close() error {
	return c.store.Close()
}

// withConsole loads config, builds and restores a console, then runs fn
func (a *app) withConsole(fn func(ctx context.Context, c *Console) error) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	console, err := NewConsole(ctx, cfg, a.errOut)
	if err != nil {
		return err
	}
	defer console.Close()

	if err := console.Restore(ctx); err != nil {
		return err
	}
	return fn(ctx, console)
}
