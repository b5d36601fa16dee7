package cli

import (
	"context"
	"flag"
	"fmt"
)

func newProvenanceCommand() *Command {
	cmd := &Command{
		Name:        "provenance",
		Description: "Show or verify a version's provenance chain",
		Flags:       flag.NewFlagSet("provenance", flag.ExitOnError),
		Run:         runProvenance,
	}

	cmd.Flags.String("version", "", "Asset version ID")
	cmd.Flags.Bool("verify", false, "Verify the chain instead of printing it")
	cmd.Flags.String("registry", "http://localhost:8080", "Registry URL")

	return cmd
}

func runProvenance(args []string) error {
	cmd := newProvenanceCommand()
	if err := cmd.Flags.Parse(args); err != nil {
		return err
	}

	version := cmd.Flags.Lookup("version").Value.String()
	verify := cmd.Flags.Lookup("verify").Value.String() == "true"
	registry := cmd.Flags.Lookup("registry").Value.String()

	if version == "" {
		return fmt.Errorf("version is required")
	}

	client := NewClient(registry, "")
	ctx := context.Background()

	if verify {
		result, err := client.ProvenanceVerify(ctx, version)
		if err != nil {
			return fmt.Errorf("failed to verify chain: %w", err)
		}
		if result.Valid {
			fmt.Printf("Chain for %s is valid (%d links)\n", version, result.Links)
			return nil
		}
		fmt.Printf("Chain for %s is INVALID: %s\n", version, result.Reason)
		return fmt.Errorf("provenance verification failed")
	}

	chain, err := client.ProvenanceReport(ctx, version)
	if err != nil {
		return fmt.Errorf("failed to fetch chain: %w", err)
	}
	for _, rec := range chain {
		fmt.Printf("%-3d %-10s %s  %s\n", rec.Seq, rec.Kind, rec.Digest, rec.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}
