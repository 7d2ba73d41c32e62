package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/platinummonkey/backoffice/pkg/rbac"
)

// Returned by "can" so the exit status reflects the decision
var (
	ErrDenied  = errors.New("permission denied")
	ErrPending = errors.New("permissions not resolved")
)

func newCanCommand(a *app) *Command {
	cmd := &Command{
		Name:        "can",
		Description: "Check a permission: can <resource> <action>",
		Flags:       newFlagSet("can", a.errOut),
	}

	quiet := cmd.Flags.Bool("q", false, "Print nothing, report through the exit status")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		if cmd.Flags.NArg() != 2 {
			return fmt.Errorf("usage: can [-q] <resource> <action>")
		}
		resource, action := cmd.Flags.Arg(0), cmd.Flags.Arg(1)

		return a.withConsole(func(ctx context.Context, c *Console) error {
			decision := c.Resolver.Check(resource, action)
			if !*quiet {
				fmt.Fprintf(a.out, "%s %s: %s\n",
					rbac.NormalizeResource(resource), rbac.NormalizeAction(action), decision)
			}

			switch decision {
			case rbac.Allowed:
				return nil
			case rbac.Pending:
				return ErrPending
			default:
				return ErrDenied
			}
		})
	}

	return cmd
}

func newPermissionsCommand(a *app) *Command {
	cmd := &Command{
		Name:        "permissions",
		Description: "List the capability map of the current user",
		Flags:       newFlagSet("permissions", a.errOut),
	}

	asJSON := cmd.Flags.Bool("json", false, "Output JSON")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}

		return a.withConsole(func(ctx context.Context, c *Console) error {
			snap := c.Resolver.Snapshot()
			if *asJSON {
				return writeJSON(a.out, snap)
			}
			return writeCapabilities(a.out, snap)
		})
	}

	return cmd
}

func newNavCommand(a *app) *Command {
	cmd := &Command{
		Name:        "nav",
		Description: "List the screens visible to the current user",
		Flags:       newFlagSet("nav", a.errOut),
	}

	asJSON := cmd.Flags.Bool("json", false, "Output JSON")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}

		return a.withConsole(func(ctx context.Context, c *Console) error {
			routes := c.Gate.Visible(c.Resolver)
			if *asJSON {
				return writeJSON(a.out, routes)
			}

			w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PATH\tTITLE")
			for _, r := range routes {
				fmt.Fprintf(w, "%s\t%s\n", r.Path, r.Title)
			}
			return w.Flush()
		})
	}

	return cmd
}

func writeCapabilities(out io.Writer, snap rbac.Snapshot) error {
	fmt.Fprintf(out, "State: %s\n", snap.State)
	if snap.Admin {
		fmt.Fprintf(out, "Role %s bypasses all permission checks\n", snap.Role)
	}
	if len(snap.Capabilities) == 0 {
		fmt.Fprintln(out, "No permissions")
		return nil
	}

	resources := make([]string, 0, len(snap.Capabilities))
	for r := range snap.Capabilities {
		resources = append(resources, r)
	}
	sort.Strings(resources)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RESOURCE\tVIEW\tCREATE\tEDIT\tDELETE\tOTHER")
	for _, r := range resources {
		caps := snap.Capabilities[r]
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", r,
			mark(caps.View), mark(caps.Create), mark(caps.Edit), mark(caps.Delete),
			extraActions(caps.Extra))
	}
	return w.Flush()
}

func extraActions(extra map[string]bool) string {
	var actions []string
	for action, ok := range extra {
		if ok {
			actions = append(actions, action)
		}
	}
	if len(actions) == 0 {
		return "-"
	}
	sort.Strings(actions)
	return strings.Join(actions, ",")
}

func mark(ok bool) string {
	if ok {
		return "yes"
	}
	return "-"
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
