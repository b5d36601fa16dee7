package cli

import (
	"fmt"

	"github.com/platinummonkey/bazaar/pkg/gates"
)

// printReport renders a gate report as a simple table.
func printReport(report *gates.Report) {
	status := "PASSED"
	if !report.Passed {
		status = "FAILED"
	}
	fmt.Printf("Gate report for %s: %s\n", report.VersionID, status)
	for _, res := range report.Results {
		fmt.Printf("  %-20s %s", res.Gate, res.Verdict)
		if res.Error != "" {
			fmt.Printf(" (%s)", res.Error)
		}
		fmt.Println()
		for _, f := range res.Findings {
			loc := f.Location
			if loc == "" {
				loc = "-"
			}
			fmt.Printf("    [%s] %s %s\n", f.Severity, loc, f.Description)
		}
	}
}
