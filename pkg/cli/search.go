package cli

import (
	"context"
	"flag"
	"fmt"
	"net/url"
)

func newSearchCommand() *Command {
	cmd := &Command{
		Name:        "search",
		Description: "Search the asset catalog",
		Flags:       flag.NewFlagSet("search", flag.ExitOnError),
		Run:         runSearch,
	}

	cmd.Flags.String("query", "", "Search term matched against name and description")
	cmd.Flags.String("tenant", "", "Filter by tenant ID")
	cmd.Flags.String("type", "", "Filter by asset type (skill, goal, hardprompt, context, args, compliance-extension)")
	cmd.Flags.String("tier", "", "Filter by tier (tenant_local or central_vetted)")
	cmd.Flags.String("registry", "http://localhost:8080", "Registry URL")
	cmd.Flags.Bool("versions", false, "Also list each asset's versions")

	return cmd
}

func runSearch(args []string) error {
	cmd := newSearchCommand()
	if err := cmd.Flags.Parse(args); err != nil {
		return err
	}

	query := cmd.Flags.Lookup("query").Value.String()
	tenant := cmd.Flags.Lookup("tenant").Value.String()
	assetType := cmd.Flags.Lookup("type").Value.String()
	tier := cmd.Flags.Lookup("tier").Value.String()
	registry := cmd.Flags.Lookup("registry").Value.String()
	showVersions := cmd.Flags.Lookup("versions").Value.String() == "true"

	params := url.Values{}
	if query != "" {
		params.Set("search", query)
	}
	if tenant != "" {
		params.Set("tenant_id", tenant)
	}
	if assetType != "" {
		params.Set("type", assetType)
	}
	if tier != "" {
		params.Set("tier", tier)
	}

	client := NewClient(registry, "")
	ctx := context.Background()
	found, err := client.SearchAssets(ctx, params)
	if err != nil {
		return fmt.Errorf("failed to search assets: %w", err)
	}

	if len(found) == 0 {
		fmt.Println("No assets found")
		return nil
	}
	for _, a := range found {
		fmt.Printf("%s  %-22s %-12s %s\n", a.ID, a.Slug, a.Type, a.Description)
		if !showVersions {
			continue
		}
		versions, err := client.ListVersions(ctx, a.ID)
		if err != nil {
			return fmt.Errorf("failed to list versions for %s: %w", a.Slug, err)
		}
		for _, v := range versions {
			fmt.Printf("    v%-4d %-14s %-14s %s\n", v.Version, v.Status, v.Tier, v.ID)
		}
	}
	return nil
}
