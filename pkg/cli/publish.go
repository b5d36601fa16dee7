package cli

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/platinummonkey/bazaar/pkg/assets"
	"github.com/platinummonkey/bazaar/pkg/publish"
)

func newPublishCommand() *Command {
	cmd := &Command{
		Name:        "publish",
		Description: "Publish an asset snapshot to the registry",
		Flags:       flag.NewFlagSet("publish", flag.ExitOnError),
		Run:         runPublish,
	}

	cmd.Flags.String("dir", ".", "Directory containing the asset (with bazaar.yaml manifest)")
	cmd.Flags.String("tenant", "", "Tenant ID")
	cmd.Flags.String("publisher", "", "Publisher identity")
	cmd.Flags.String("tier", string(assets.TierTenantLocal), "Target tier (tenant_local or central_vetted)")
	cmd.Flags.String("key", "", "Path to a hex-encoded ed25519 seed for signing executable assets")
	cmd.Flags.String("registry", "http://localhost:8080", "Registry URL")

	return cmd
}

// loadSigningKey reads a hex-encoded ed25519 seed file.
func loadSigningKey(path string) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	seed, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to decode key file: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("key file must contain a %d-byte seed, got %d bytes", ed25519.SeedSize, len(seed))
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

func runPublish(args []string) error {
	cmd := newPublishCommand()
	if err := cmd.Flags.Parse(args); err != nil {
		return err
	}

	dir := cmd.Flags.Lookup("dir").Value.String()
	tenant := cmd.Flags.Lookup("tenant").Value.String()
	publisher := cmd.Flags.Lookup("publisher").Value.String()
	tier := cmd.Flags.Lookup("tier").Value.String()
	keyPath := cmd.Flags.Lookup("key").Value.String()
	registry := cmd.Flags.Lookup("registry").Value.String()

	if tenant == "" || publisher == "" {
		return fmt.Errorf("tenant and publisher are required")
	}

	snap, err := CaptureSnapshot(dir)
	if err != nil {
		return fmt.Errorf("failed to capture %s: %w", dir, err)
	}

	req := &publish.Request{
		TenantID:  tenant,
		Publisher: publisher,
		Tier:      assets.Tier(tier),
		Snapshot:  snap,
	}
	if keyPath != "" {
		key, err := loadSigningKey(keyPath)
		if err != nil {
			return err
		}
		req.Signature = ed25519.Sign(key, []byte(snap.Digest))
	}

	client := NewClient(registry, publisher)
	result, err := client.Publish(context.Background(), req)
	if err != nil {
		if result != nil && result.Report != nil {
			printReport(result.Report)
		}
		return err
	}

	fmt.Printf("Published %s version %d (status: %s)\n",
		result.Asset.Slug, result.Version.Version, result.Version.Status)
	if result.Report != nil {
		printReport(result.Report)
	}
	if result.ReviewID != 0 {
		fmt.Printf("Queued for review: review %d\n", result.ReviewID)
	}
	return nil
}
