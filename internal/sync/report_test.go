package sync

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/ballee/dbsync/internal/models"
)

func TestFormatSyncResult(t *testing.T) {
	res := &models.SyncResult{
		Source: "staging",
		Target: "local",
		PerTable: map[string]models.TableResult{
			"public.ref":    {SourceCount: 5, TargetCount: 5, Status: models.StatusOK},
			"public.parent": {SourceCount: 3, TargetCount: 2, Status: models.StatusMismatch},
			"public.child":  {SourceCount: 10, TargetCount: 7, Status: models.StatusFailed, Reason: "3 of 10 rows failed"},
		},
		Overall: models.OverallPartial,
	}

	out := FormatSyncResult(res)

	for _, want := range []string{
		"staging → local",
		"Tables OK:        1",
		"Count Mismatches: 1",
		"Tables Failed:    1",
		"public.child: 3 of 10 rows failed",
		"public.parent: source=3 target=2",
		"Overall: partial",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected report to contain %q, got:\n%s", want, out)
		}
	}
}

func TestFormatSyncResultDryRun(t *testing.T) {
	res := &models.SyncResult{
		Source:   "staging",
		Target:   "local",
		PerTable: map[string]models.TableResult{},
		Overall:  models.OverallDryRun,
	}

	out := FormatSyncResult(res)
	if !strings.Contains(out, "Dry run complete, no changes made.") {
		t.Errorf("Expected dry-run message, got:\n%s", out)
	}
}

func TestFormatSyncResultJSON(t *testing.T) {
	res := &models.SyncResult{
		Source: "staging",
		Target: "local",
		PerTable: map[string]models.TableResult{
			"public.ref": {SourceCount: 5, TargetCount: 5, Status: models.StatusOK},
		},
		Overall: models.OverallSuccess,
	}

	out, err := FormatSyncResultJSON(res)
	if err != nil {
		t.Fatalf("Failed to format JSON: %v", err)
	}

	var decoded models.SyncResult
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("Expected valid JSON, got: %v", err)
	}
	if decoded.Overall != models.OverallSuccess {
		t.Errorf("Expected overall 'success', got '%s'", decoded.Overall)
	}
	if decoded.PerTable["public.ref"].SourceCount != 5 {
		t.Errorf("Expected source count 5, got %d", decoded.PerTable["public.ref"].SourceCount)
	}
}
