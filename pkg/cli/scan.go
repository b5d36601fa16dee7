package cli

import (
	"context"
	"flag"
	"fmt"
)

func newScanCommand() *Command {
	cmd := &Command{
		Name:        "scan",
		Description: "Show gate results for a version",
		Flags:       flag.NewFlagSet("scan", flag.ExitOnError),
		Run:         runScan,
	}

	cmd.Flags.String("version", "", "Asset version ID")
	cmd.Flags.String("registry", "http://localhost:8080", "Registry URL")

	return cmd
}

func runScan(args []string) error {
	cmd := newScanCommand()
	if err := cmd.Flags.Parse(args); err != nil {
		return err
	}

	version := cmd.Flags.Lookup("version").Value.String()
	registry := cmd.Flags.Lookup("registry").Value.String()

	if version == "" {
		return fmt.Errorf("version is required")
	}

	client := NewClient(registry, "")
	results, err := client.ScanResults(context.Background(), version)
	if err != nil {
		return fmt.Errorf("failed to fetch scan results: %w", err)
	}
	if len(results) == 0 {
		fmt.Println("No scan results recorded")
		return nil
	}
	for _, r := range results {
		fmt.Printf("%-20s %s", r.Gate, r.Verdict)
		if r.Error != "" {
			fmt.Printf(" (%s)", r.Error)
		}
		fmt.Println()
	}
	return nil
}
