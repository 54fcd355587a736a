package envs

import (
	"sort"

	"github.com/ballee/dbsync/internal/models"
)

// Known environment IDs.
const (
	Production = "production"
	Staging    = "staging"
	Local      = "local"
)

// protectedIDs is the fixed allow-list of environments that may never be a
// write target. It is deliberately not configurable: nothing at runtime may
// extend or shrink it.
var protectedIDs = map[string]bool{
	Production: true,
}

var registry = map[string]models.Environment{
	Production: {
		ID:         Production,
		Host:       "db.prod.internal",
		Port:       5432,
		User:       "postgres",
		Database:   "app_production",
		Protection: models.Protected,
	},
	Staging: {
		ID:         Staging,
		Host:       "db.staging.internal",
		Port:       5432,
		User:       "postgres",
		Database:   "app_staging",
		Protection: models.Unprotected,
	},
	Local: {
		ID:         Local,
		Host:       "localhost",
		Port:       54322,
		User:       "postgres",
		Database:   "postgres",
		Protection: models.Unprotected,
	},
}

// Lookup returns the descriptor for a known environment ID.
func Lookup(id string) (models.Environment, bool) {
	e, ok := registry[id]
	return e, ok
}

// IsProtected reports whether id is on the protected allow-list.
func IsProtected(id string) bool {
	return protectedIDs[id]
}

// IDs returns the known environment IDs in stable order.
func IDs() []string {
	ids := make([]string, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DefaultTables is the product's table set with its static dependency
// ranking: reference tables first, then core entities, then tables that
// reference them, then leaf tables. The Restorer loads strictly in
// ascending rank so no child is ever restored before its parent.
func DefaultTables() []models.TableSpec {
	return []models.TableSpec{
		{Schema: "public", Name: "categories", Rank: 0},
		{Schema: "public", Name: "locations", Rank: 0},
		{Schema: "public", Name: "tags", Rank: 0},
		{Schema: "public", Name: "profiles", Rank: 1},
		{Schema: "public", Name: "events", Rank: 1},
		{Schema: "public", Name: "bookings", Rank: 2},
		{Schema: "public", Name: "event_tags", Rank: 2},
		{Schema: "public", Name: "notifications", Rank: 3},
	}
}

// AuthTable is the identity table synced when --include-auth is set.
// profiles carries a foreign key to it, so it ranks ahead of everything.
func AuthTable() models.TableSpec {
	return models.TableSpec{Schema: "auth", Name: "users", Rank: 0}
}

// ExcludedTables are non-portable or audit-log tables never exported.
func ExcludedTables() []string {
	return []string{
		"public.activity_log",
		"public.schema_migrations",
	}
}
