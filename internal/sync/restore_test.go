package sync

import (
	"context"
	"fmt"
	"testing"

	"github.com/ballee/dbsync/internal/models"
)

type fakeStrategy struct {
	name   string
	rows   int64
	err    error
	tables []string
}

func (f *fakeStrategy) Name() string { return f.name }

func (f *fakeStrategy) Restore(ctx context.Context, t models.TableSpec, snap *Snapshot) (int64, error) {
	f.tables = append(f.tables, t.Qualified())
	return f.rows, f.err
}

func TestRestorerFirstSuccessWins(t *testing.T) {
	first := &fakeStrategy{name: "bulk", rows: 5}
	second := &fakeStrategy{name: "copy", rows: 5}
	r := &Restorer{Strategies: []RestoreStrategy{first, second}}

	tables := []models.TableSpec{{Schema: "public", Name: "ref", Rank: 0}}
	results := r.Load(context.Background(), tables, nil)

	res := results["public.ref"]
	if res.Status != models.StatusOK || res.TargetCount != 5 {
		t.Errorf("Expected ok with 5 rows, got %+v", res)
	}
	if res.Reason != "bulk" {
		t.Errorf("Expected winning strategy 'bulk', got '%s'", res.Reason)
	}
	if len(second.tables) != 0 {
		t.Errorf("Expected second strategy untouched, got %v", second.tables)
	}
}

func TestRestorerSkipsUnavailableStrategy(t *testing.T) {
	unavailable := &fakeStrategy{name: "bulk", err: ErrStrategyUnavailable}
	fallback := &fakeStrategy{name: "copy", rows: 3}
	r := &Restorer{Strategies: []RestoreStrategy{unavailable, fallback}}

	tables := []models.TableSpec{{Schema: "public", Name: "ref", Rank: 0}}
	results := r.Load(context.Background(), tables, nil)

	res := results["public.ref"]
	if res.Status != models.StatusOK || res.Reason != "copy" {
		t.Errorf("Expected fallback 'copy' to win, got %+v", res)
	}
}

func TestRestorerRecordsFailureAndContinues(t *testing.T) {
	failing := &fakeStrategy{name: "copy", rows: 7, err: fmt.Errorf("3 of 10 rows failed")}
	r := &Restorer{Strategies: []RestoreStrategy{failing}}

	tables := []models.TableSpec{
		{Schema: "public", Name: "child", Rank: 2},
		{Schema: "public", Name: "ref", Rank: 0},
	}
	results := r.Load(context.Background(), tables, nil)

	if len(results) != 2 {
		t.Fatalf("Expected every table in the report, got %d entries", len(results))
	}
	res := results["public.child"]
	if res.Status != models.StatusFailed {
		t.Errorf("Expected child marked failed, got '%s'", res.Status)
	}
	if res.TargetCount != 7 {
		t.Errorf("Expected partially loaded rows recorded, got %d", res.TargetCount)
	}
	if res.Reason == "" {
		t.Error("Expected a failure reason")
	}
}

func TestRestorerLoadsInAscendingRank(t *testing.T) {
	strategy := &fakeStrategy{name: "copy"}
	r := &Restorer{Strategies: []RestoreStrategy{strategy}}

	tables := []models.TableSpec{
		{Schema: "public", Name: "child", Rank: 2},
		{Schema: "public", Name: "ref", Rank: 0},
		{Schema: "public", Name: "parent", Rank: 1},
	}
	r.Load(context.Background(), tables, nil)

	want := []string{"public.ref", "public.parent", "public.child"}
	if len(strategy.tables) != len(want) {
		t.Fatalf("Expected %d tables, got %d", len(want), len(strategy.tables))
	}
	for i, name := range want {
		if strategy.tables[i] != name {
			t.Errorf("Expected position %d to be %s, got %s", i, name, strategy.tables[i])
		}
	}
}

func TestBulkLoadUnavailableWithoutSnapshot(t *testing.T) {
	s := &BulkLoad{Bin: "pg_restore"}
	_, err := s.Restore(context.Background(), models.TableSpec{Schema: "public", Name: "ref"}, nil)
	if err != ErrStrategyUnavailable {
		t.Errorf("Expected ErrStrategyUnavailable, got %v", err)
	}
}

func TestPresentColumns(t *testing.T) {
	row := map[string]any{"id": 1.0, "name": "x", "extra": true}
	got := presentColumns([]string{"id", "missing", "name"}, row)

	want := []string{"id", "name"}
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Expected %v, got %v", want, got)
		}
	}
}

func TestInsertValue(t *testing.T) {
	if v := insertValue(nil); v != nil {
		t.Errorf("Expected nil passthrough, got %v", v)
	}
	if v := insertValue("text"); v != "text" {
		t.Errorf("Expected string passthrough, got %v", v)
	}
	if v := insertValue(map[string]any{"a": 1}); v != `{"a":1}` {
		t.Errorf("Expected nested value re-encoded as JSON, got %v", v)
	}
}

func TestFieldString(t *testing.T) {
	if got := fieldString(nil); got != `\N` {
		t.Errorf(`Expected NULL marker \N, got %q`, got)
	}
	if got := fieldString([]byte("raw")); got != "raw" {
		t.Errorf("Expected byte slice as string, got %q", got)
	}
	if got := fieldString(int64(42)); got != "42" {
		t.Errorf("Expected numeric rendering '42', got %q", got)
	}
}
