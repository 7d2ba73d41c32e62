package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/platinummonkey/backoffice/pkg/apiclient"
	"github.com/platinummonkey/backoffice/pkg/auth"
	"github.com/platinummonkey/backoffice/pkg/rbac"
)

// PasswordEnv is read when -password is not given
const PasswordEnv = "BACKOFFICE_PASSWORD"

func newLoginCommand(a *app) *Command {
	cmd := &Command{
		Name:        "login",
		Description: "Log in and persist the session token",
		Flags:       newFlagSet("login", a.errOut),
	}

	email := cmd.Flags.String("email", "", "Account email")
	password := cmd.Flags.String("password", "", "Account password (default $"+PasswordEnv+")")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}

		pw := *password
		if pw == "" {
			pw = os.Getenv(PasswordEnv)
		}
		if *email == "" || pw == "" {
			return fmt.Errorf("email and password are required")
		}

		return a.withConsole(func(ctx context.Context, c *Console) error {
			s, err := c.Sessions.Login(ctx, *email, pw)
			if errors.Is(err, apiclient.ErrUnauthorized) {
				return fmt.Errorf("login failed: invalid email or password")
			}
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}

			fmt.Fprintf(a.out, "Logged in as %s\n", describeUser(s.User))
			if c.Resolver.State() == rbac.StateFallback {
				fmt.Fprintln(a.out, "Warning: permissions could not be loaded, access is limited")
			}
			return nil
		})
	}

	return cmd
}

func newLogoutCommand(a *app) *Command {
	cmd := &Command{
		Name:        "logout",
		Description: "Log out and remove the persisted token",
		Flags:       newFlagSet("logout", a.errOut),
	}

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}

		return a.withConsole(func(ctx context.Context, c *Console) error {
			if err := c.Sessions.Logout(ctx); err != nil {
				return fmt.Errorf("logout failed: %w", err)
			}
			fmt.Fprintln(a.out, "Logged out")
			return nil
		})
	}

	return cmd
}

func newWhoamiCommand(a *app) *Command {
	cmd := &Command{
		Name:        "whoami",
		Description: "Show the current user",
		Flags:       newFlagSet("whoami", a.errOut),
	}

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}

		return a.withConsole(func(ctx context.Context, c *Console) error {
			s := c.Sessions.Current()
			if !s.IsAuthenticated() {
				fmt.Fprintln(a.out, "Not logged in")
				return nil
			}

			fmt.Fprintf(a.out, "User:    %s\n", describeUser(s.User))
			fmt.Fprintf(a.out, "ID:      %s\n", s.UserID())
			if c.Resolver.Snapshot().Admin {
				fmt.Fprintln(a.out, "Admin:   yes")
			}
			if exp, err := auth.TokenExpiry(s.Token); err == nil {
				fmt.Fprintf(a.out, "Expires: %s\n", exp.UTC().Format(time.RFC3339))
			}
			return nil
		})
	}

	return cmd
}

func describeUser(u *auth.User) string {
	if u == nil {
		return "anonymous"
	}
	name := u.Name
	if name == "" {
		name = u.ID.String()
	}
	if u.Email != "" {
		name = fmt.Sprintf("%s <%s>", name, u.Email)
	}
	if u.Role != "" {
		name = fmt.Sprintf("%s (%s)", name, u.Role)
	}
	return name
}
