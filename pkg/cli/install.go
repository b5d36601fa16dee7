package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/platinummonkey/bazaar/pkg/storage"
)

func newInstallCommand() *Command {
	cmd := &Command{
		Name:        "install",
		Description: "Install an asset version into a project",
		Flags:       flag.NewFlagSet("install", flag.ExitOnError),
		Run:         runInstall,
	}

	cmd.Flags.String("project", "", "Project ID")
	cmd.Flags.String("version", "", "Asset version ID to install")
	cmd.Flags.String("dest", "", "Local directory to materialize the snapshot into (optional)")
	cmd.Flags.String("actor", "", "Identity recorded as the installer")
	cmd.Flags.String("registry", "http://localhost:8080", "Registry URL")

	return cmd
}

func runInstall(args []string) error {
	cmd := newInstallCommand()
	if err := cmd.Flags.Parse(args); err != nil {
		return err
	}

	project := cmd.Flags.Lookup("project").Value.String()
	version := cmd.Flags.Lookup("version").Value.String()
	dest := cmd.Flags.Lookup("dest").Value.String()
	actor := cmd.Flags.Lookup("actor").Value.String()
	registry := cmd.Flags.Lookup("registry").Value.String()

	if project == "" || version == "" {
		return fmt.Errorf("project and version are required")
	}

	client := NewClient(registry, actor)
	result, err := client.Install(context.Background(), project, version)
	if err != nil {
		return fmt.Errorf("failed to install: %w", err)
	}

	if result.AlreadyInstalled {
		fmt.Printf("Version %s is already installed in project %s\n", version, project)
	} else {
		fmt.Printf("Installed %s into project %s\n", version, project)
	}

	if dest != "" && result.Snapshot != nil {
		if err := storage.Materialize(result.Snapshot, dest); err != nil {
			return fmt.Errorf("failed to materialize snapshot: %w", err)
		}
		fmt.Printf("Materialized %d files into %s\n", len(result.Snapshot.Files), dest)
	}
	return nil
}
