package cli

import (
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/platinummonkey/backoffice/pkg/config"
)

// Command represents a CLI command
type Command struct {
	Name        string
	Description string
	Run         func(args []string) error
	Subcommands map[string]*Command
	Flags       *flag.FlagSet
	Out         io.Writer
}

// app carries what every command needs to build the console core
type app struct {
	out        io.Writer
	errOut     io.Writer
	loadConfig func() (*config.Config, error)
}

// NewRootCommand creates the root command writing to stdout
func NewRootCommand() *Command {
	return newRootCommand(&app{
		out:        os.Stdout,
		errOut:     os.Stderr,
		loadConfig: config.LoadConfig,
	})
}

func newRootCommand(a *app) *Command {
	root := &Command{
		Name:        "backoffice",
		Description: "Back office console",
		Subcommands: make(map[string]*Command),
		Flags:       flag.NewFlagSet("backoffice", flag.ExitOnError),
		Out:         a.out,
	}

	// Add subcommands
	root.Subcommands["login"] = newLoginCommand(a)
	root.Subcommands["logout"] = newLogoutCommand(a)
	root.Subcommands["whoami"] = newWhoamiCommand(a)
	root.Subcommands["can"] = newCanCommand(a)
	root.Subcommands["permissions"] = newPermissionsCommand(a)
	root.Subcommands["nav"] = newNavCommand(a)

	return root
}

// Execute runs the command with the process arguments
func (c *Command) Execute() error {
	return c.ExecuteArgs(os.Args[1:])
}

// ExecuteArgs runs the command with explicit arguments
func (c *Command) ExecuteArgs(args []string) error {
	if len(args) == 0 {
		return c.usage()
	}

	// Check for help flag
	switch strings.ToLower(args[0]) {
	case "-h", "--help", "help":
		return c.usage()
	}

	// Check for subcommand
	if subcmd, ok := c.Subcommands[args[0]]; ok {
		return subcmd.Run(args[1:])
	}

	return fmt.Errorf("unknown command: %s", args[0])
}

// usage prints the command usage
func (c *Command) usage() error {
	out := c.Out
	if out == nil {
		out = os.Stdout
	}

	names := make([]string, 0, len(c.Subcommands))
	for name := range c.Subcommands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintf(out, "Usage: %s <command> [args]\n\n", c.Name)
	fmt.Fprintf(out, "Commands:\n")
	for _, name := range names {
		fmt.Fprintf(out, "  %-15s %s\n", name, c.Subcommands[name].Description)
	}
	return nil
}

func newFlagSet(name string, errOut io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(errOut)
	return fs
}
