package envs

import (
	"testing"

	"github.com/ballee/dbsync/internal/models"
)

func TestProtectedAllowList(t *testing.T) {
	if !IsProtected(Production) {
		t.Error("Expected production on the protected allow-list")
	}
	if IsProtected(Staging) {
		t.Error("Expected staging to be an allowed target")
	}
	if IsProtected(Local) {
		t.Error("Expected local to be an allowed target")
	}
}

func TestLookup(t *testing.T) {
	e, ok := Lookup(Production)
	if !ok {
		t.Fatal("Expected production to be registered")
	}
	if e.Protection != models.Protected {
		t.Errorf("Expected production protected, got '%s'", e.Protection)
	}

	if _, ok := Lookup("qa"); ok {
		t.Error("Expected unknown environment to miss")
	}
}

func TestIDsStable(t *testing.T) {
	ids := IDs()
	if len(ids) != 3 {
		t.Fatalf("Expected 3 environments, got %d", len(ids))
	}
	for i := 1; i < len(ids); i++ {
		if ids[i-1] >= ids[i] {
			t.Errorf("Expected sorted IDs, got %v", ids)
		}
	}
}

func TestDefaultTablesRanking(t *testing.T) {
	tables := DefaultTables()
	if len(tables) == 0 {
		t.Fatal("Expected a non-empty default table set")
	}

	ranks := make(map[string]int, len(tables))
	for _, spec := range tables {
		ranks[spec.Name] = spec.Rank
	}

	// Children must rank strictly after the tables they reference.
	parentOf := map[string]string{
		"profiles":      "categories", // via reference data
		"events":        "locations",
		"bookings":      "events",
		"event_tags":    "tags",
		"notifications": "profiles",
	}
	for child, parent := range parentOf {
		if ranks[child] <= ranks[parent] {
			t.Errorf("Expected %s (rank %d) to load after %s (rank %d)", child, ranks[child], parent, ranks[parent])
		}
	}
}

func TestAuthTableRanksFirst(t *testing.T) {
	auth := AuthTable()
	if auth.Rank != 0 {
		t.Errorf("Expected auth table at rank 0, got %d", auth.Rank)
	}
	if auth.Schema != "auth" {
		t.Errorf("Expected auth schema, got '%s'", auth.Schema)
	}
}
