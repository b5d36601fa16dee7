package cli

import (
	"context"
	"flag"
	"fmt"
	"strconv"

	"github.com/platinummonkey/bazaar/pkg/federation"
)

func newSyncCommand() *Command {
	cmd := &Command{
		Name:        "sync",
		Description: "Inspect and drive federation sync (status, promote, pull, ack)",
		Flags:       flag.NewFlagSet("sync", flag.ExitOnError),
		Run:         runSync,
	}

	cmd.Flags.String("action", "status", "Action: status, promote, pull, or ack")
	cmd.Flags.String("tenant", "", "Tenant ID")
	cmd.Flags.String("level", "", "Impact level for pull (IL2, IL4, IL5, IL6)")
	cmd.Flags.Int64("seq", 0, "Sequence to acknowledge (for ack)")
	cmd.Flags.String("registry", "http://localhost:8080", "Registry URL")

	return cmd
}

func printSyncReport(report *federation.Report) {
	fmt.Printf("%s: transferred=%d skipped=%d watermark=%d\n",
		report.Direction, report.Transferred, len(report.Skipped), report.Watermark)
	for _, f := range report.Failures {
		fmt.Printf("  failed %s: %s\n", f.VersionID, f.Reason)
	}
}

func runSync(args []string) error {
	cmd := newSyncCommand()
	if err := cmd.Flags.Parse(args); err != nil {
		return err
	}

	action := cmd.Flags.Lookup("action").Value.String()
	tenant := cmd.Flags.Lookup("tenant").Value.String()
	level := cmd.Flags.Lookup("level").Value.String()
	seqStr := cmd.Flags.Lookup("seq").Value.String()
	registry := cmd.Flags.Lookup("registry").Value.String()

	if tenant == "" {
		return fmt.Errorf("tenant is required")
	}

	client := NewClient(registry, "")
	ctx := context.Background()

	switch action {
	case "status":
		status, err := client.SyncStatus(ctx, tenant)
		if err != nil {
			return fmt.Errorf("failed to fetch sync status: %w", err)
		}
		fmt.Printf("Tenant %s: promote_watermark=%d pull_watermark=%d pending_promote=%d pending_pull=%d\n",
			tenant, status.State.PromoteWatermark, status.State.PullWatermark,
			status.PendingPromote, status.PendingPull)
		return nil
	case "promote":
		report, err := client.Promote(ctx, tenant)
		if err != nil {
			return err
		}
		printSyncReport(report)
		return nil
	case "pull":
		if level == "" {
			return fmt.Errorf("level is required for pull")
		}
		report, err := client.Pull(ctx, tenant, level)
		if err != nil {
			return err
		}
		printSyncReport(report)
		return nil
	case "ack":
		seq, err := strconv.ParseInt(seqStr, 10, 64)
		if err != nil || seq == 0 {
			return fmt.Errorf("a positive seq is required for ack")
		}
		if err := client.Ack(ctx, tenant, seq); err != nil {
			return fmt.Errorf("failed to ack: %w", err)
		}
		fmt.Printf("Acknowledged pull watermark %d for tenant %s\n", seq, tenant)
		return nil
	default:
		return fmt.Errorf("unknown action: %s", action)
	}
}
