package cli

import (
	"context"
	"flag"
	"fmt"
)

func newDeprecateCommand() *Command {
	cmd := &Command{
		Name:        "deprecate",
		Description: "Deprecate an approved version",
		Flags:       flag.NewFlagSet("deprecate", flag.ExitOnError),
		Run:         runDeprecate,
	}

	cmd.Flags.String("version", "", "Asset version ID")
	cmd.Flags.String("actor", "", "Identity recorded for the action")
	cmd.Flags.String("registry", "http://localhost:8080", "Registry URL")

	return cmd
}

func runDeprecate(args []string) error {
	cmd := newDeprecateCommand()
	if err := cmd.Flags.Parse(args); err != nil {
		return err
	}

	version := cmd.Flags.Lookup("version").Value.String()
	actor := cmd.Flags.Lookup("actor").Value.String()
	registry := cmd.Flags.Lookup("registry").Value.String()

	if version == "" {
		return fmt.Errorf("version is required")
	}

	client := NewClient(registry, actor)
	v, err := client.Deprecate(context.Background(), version)
	if err != nil {
		return fmt.Errorf("failed to deprecate: %w", err)
	}
	fmt.Printf("Version %s is now %s\n", v.ID, v.Status)
	return nil
}
