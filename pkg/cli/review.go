package cli

import (
	"context"
	"flag"
	"fmt"
	"strconv"

	"github.com/platinummonkey/bazaar/pkg/assets"
)

func newReviewCommand() *Command {
	cmd := &Command{
		Name:        "review",
		Description: "List and decide pending reviews",
		Flags:       flag.NewFlagSet("review", flag.ExitOnError),
		Run:         runReview,
	}

	cmd.Flags.String("tenant", "", "Filter the queue by tenant ID")
	cmd.Flags.Int64("id", 0, "Review ID to decide")
	cmd.Flags.String("decision", "", "Decision to record (approved or rejected)")
	cmd.Flags.String("rationale", "", "Rationale (required for rejections)")
	cmd.Flags.String("reviewer", "", "Reviewer identity")
	cmd.Flags.String("registry", "http://localhost:8080", "Registry URL")

	return cmd
}

func runReview(args []string) error {
	cmd := newReviewCommand()
	if err := cmd.Flags.Parse(args); err != nil {
		return err
	}

	tenant := cmd.Flags.Lookup("tenant").Value.String()
	idStr := cmd.Flags.Lookup("id").Value.String()
	decision := cmd.Flags.Lookup("decision").Value.String()
	rationale := cmd.Flags.Lookup("rationale").Value.String()
	reviewer := cmd.Flags.Lookup("reviewer").Value.String()
	registry := cmd.Flags.Lookup("registry").Value.String()

	client := NewClient(registry, reviewer)
	ctx := context.Background()

	// No decision flags: list the queue.
	if decision == "" {
		records, err := client.ListPendingReviews(ctx, tenant)
		if err != nil {
			return fmt.Errorf("failed to list reviews: %w", err)
		}
		if len(records) == 0 {
			fmt.Println("Review queue is empty")
			return nil
		}
		for _, r := range records {
			fmt.Printf("%-6d %-38s submitted by %s at %s\n",
				r.ID, r.VersionID, r.SubmittedBy, r.SubmittedAt.Format("2006-01-02 15:04"))
		}
		return nil
	}

	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id == 0 {
		return fmt.Errorf("a valid review id is required to record a decision")
	}
	if reviewer == "" {
		return fmt.Errorf("reviewer is required to record a decision")
	}

	record, err := client.Decide(ctx, id, assets.ReviewDecision(decision), rationale)
	if err != nil {
		return fmt.Errorf("failed to decide review %d: %w", id, err)
	}
	fmt.Printf("Review %d: version %s %s\n", record.ID, record.VersionID, record.Decision)
	return nil
}
