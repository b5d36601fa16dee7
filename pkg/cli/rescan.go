package cli

import (
	"context"
	"crypto/ed25519"
	"flag"
	"fmt"

	"github.com/platinummonkey/bazaar/pkg/assets"
)

func newRescanCommand() *Command {
	cmd := &Command{
		Name:        "rescan",
		Description: "Re-run the gates for a scan-failed version",
		Flags:       flag.NewFlagSet("rescan", flag.ExitOnError),
		Run:         runRescan,
	}

	cmd.Flags.String("version", "", "Asset version ID")
	cmd.Flags.String("tier", string(assets.TierTenantLocal), "Target tier on success")
	cmd.Flags.String("key", "", "Path to a hex-encoded ed25519 seed for re-signing executable assets")
	cmd.Flags.String("actor", "", "Identity recorded as the requester")
	cmd.Flags.String("registry", "http://localhost:8080", "Registry URL")

	return cmd
}

func runRescan(args []string) error {
	cmd := newRescanCommand()
	if err := cmd.Flags.Parse(args); err != nil {
		return err
	}

	version := cmd.Flags.Lookup("version").Value.String()
	tier := cmd.Flags.Lookup("tier").Value.String()
	keyPath := cmd.Flags.Lookup("key").Value.String()
	actor := cmd.Flags.Lookup("actor").Value.String()
	registry := cmd.Flags.Lookup("registry").Value.String()

	if version == "" {
		return fmt.Errorf("version is required")
	}

	client := NewClient(registry, actor)
	ctx := context.Background()

	var signature []byte
	if keyPath != "" {
		key, err := loadSigningKey(keyPath)
		if err != nil {
			return err
		}
		// The snapshot content is immutable, so the stored digest is what
		// gets re-signed.
		v, err := client.GetVersion(ctx, version)
		if err != nil {
			return fmt.Errorf("failed to load version for signing: %w", err)
		}
		signature = ed25519.Sign(key, []byte(v.ContentDigest))
	}

	result, err := client.Rescan(ctx, version, assets.Tier(tier), signature)
	if err != nil {
		if result != nil && result.Report != nil {
			printReport(result.Report)
		}
		return err
	}
	fmt.Printf("Rescan of %s completed (status: %s)\n", version, result.Version.Status)
	if result.Report != nil {
		printReport(result.Report)
	}
	return nil
}
