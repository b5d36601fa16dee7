package cli

import (
	"flag"
	"fmt"
	"os"
	"sort"
)

// Command is one CLI subcommand. Run receives the arguments after the
// subcommand name and returns an error on any blocking failure, which the
// binary maps to a non-zero exit status.
type Command struct {
	Name        string
	Description string
	Run         func(args []string) error
	Subcommands map[string]*Command
	Flags       *flag.FlagSet
}

// NewRootCommand assembles the bazaar command tree.
func NewRootCommand() *Command {
	root := &Command{
		Name:        "bazaar",
		Description: "Federated asset marketplace CLI",
		Subcommands: make(map[string]*Command),
		Flags:       flag.NewFlagSet("bazaar", flag.ExitOnError),
	}

	for _, cmd := range []*Command{
		newPublishCommand(),
		newSearchCommand(),
		newInstallCommand(),
		newReviewCommand(),
		newSyncCommand(),
		newScanCommand(),
		newRescanCommand(),
		newProvenanceCommand(),
		newDeprecateCommand(),
	} {
		root.Subcommands[cmd.Name] = cmd
	}

	return root
}

// Execute dispatches to a subcommand. `bazaar help <command>` and the usual
// help flags print usage instead.
func (c *Command) Execute() error {
	args := os.Args[1:]
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" {
		return c.usage()
	}
	if args[0] == "help" {
		if len(args) > 1 {
			if subcmd, ok := c.Subcommands[args[1]]; ok {
				fmt.Printf("%s - %s\n\n", subcmd.Name, subcmd.Description)
				subcmd.Flags.SetOutput(os.Stdout)
				subcmd.Flags.PrintDefaults()
				return nil
			}
		}
		return c.usage()
	}

	if subcmd, ok := c.Subcommands[args[0]]; ok {
		return subcmd.Run(args[1:])
	}

	return fmt.Errorf("unknown command %q, run %q for a list", args[0], c.Name+" help")
}

func (c *Command) usage() error {
	names := make([]string, 0, len(c.Subcommands))
	for name := range c.Subcommands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Printf("Usage: %s <command> [args]\n\nCommands:\n", c.Name)
	for _, name := range names {
		fmt.Printf("  %-12s %s\n", name, c.Subcommands[name].Description)
	}
	fmt.Printf("\nRun %q for command flags.\n", c.Name+" help <command>")
	return nil
}
