package sync

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/ballee/dbsync/internal/models"
)

// FormatSyncResult renders the final report for operators. Failed tables
// are always enumerated by name with the reason they failed.
func FormatSyncResult(res *models.SyncResult) string {
	output := fmt.Sprintf("=== Sync Report: %s → %s ===\n\n", res.Source, res.Target)

	if res.Overall == models.OverallDryRun {
		output += "Dry run complete, no changes made.\n"
		output += "Pass --confirm to perform the sync.\n"
		return output
	}

	names := make([]string, 0, len(res.PerTable))
	for name := range res.PerTable {
		names = append(names, name)
	}
	sort.Strings(names)

	var ok, mismatch, failed int
	for _, name := range names {
		switch res.PerTable[name].Status {
		case models.StatusOK:
			ok++
		case models.StatusMismatch:
			mismatch++
		case models.StatusFailed:
			failed++
		}
	}

	output += "Summary:\n"
	output += fmt.Sprintf("  Tables OK:        %d\n", ok)
	output += fmt.Sprintf("  Count Mismatches: %d\n", mismatch)
	output += fmt.Sprintf("  Tables Failed:    %d\n", failed)
	output += "\n"

	output += fmt.Sprintf("%-32s %12s %12s  %s\n", "TABLE", "SOURCE", "TARGET", "STATUS")
	for _, name := range names {
		r := res.PerTable[name]
		output += fmt.Sprintf("%-32s %12d %12d  %s\n", name, r.SourceCount, r.TargetCount, r.Status)
	}

	if mismatch > 0 {
		output += "\nCount mismatches (informational, not fatal):\n"
		for _, name := range names {
			r := res.PerTable[name]
			if r.Status == models.StatusMismatch {
				output += fmt.Sprintf("  ~ %s: source=%d target=%d\n", name, r.SourceCount, r.TargetCount)
			}
		}
	}

	if failed > 0 {
		output += "\nFailed tables:\n"
		for _, name := range names {
			r := res.PerTable[name]
			if r.Status == models.StatusFailed {
				output += fmt.Sprintf("  ✗ %s: %s\n", name, r.Reason)
			}
		}
	}

	output += fmt.Sprintf("\nOverall: %s\n", res.Overall)
	return output
}

// FormatSyncResultJSON renders the report as indented JSON for scripting.
func FormatSyncResultJSON(res *models.SyncResult) (string, error) {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}
	return string(data), nil
}
