package db

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/ballee/dbsync/internal/models"
)

// SchemaError reports a table whose metadata could not be read.
type SchemaError struct {
	Table string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("table %s has no readable columns on the target", e.Table)
}

// Catalog discovers table metadata from a live connection. It is built
// fresh per job: schemas drift between environments, so nothing survives
// across invocations.
type Catalog struct {
	db *sql.DB
}

func NewCatalog(db *sql.DB) *Catalog {
	return &Catalog{db: db}
}

// Describe fills each spec's column list from the connection's
// information schema and returns the set ordered by dependency rank.
// The target's column order is authoritative for the whole job.
func (c *Catalog) Describe(ctx context.Context, specs []models.TableSpec) ([]models.TableSpec, error) {
	out := make([]models.TableSpec, 0, len(specs))
	for _, spec := range specs {
		columns, err := c.Columns(ctx, spec.Schema, spec.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to describe %s: %w", spec.Qualified(), err)
		}
		if len(columns) == 0 {
			return nil, &SchemaError{Table: spec.Qualified()}
		}
		spec.Columns = columns
		out = append(out, spec)
	}

	SortTables(out)
	return out, nil
}

// Columns returns a table's writable column names in ordinal order.
// Generated and identity-always columns are excluded: they cannot be
// written during restore.
func (c *Catalog) Columns(ctx context.Context, schema, table string) ([]string, error) {
	query := `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = $1
			AND table_name = $2
			AND is_generated <> 'ALWAYS'
			AND (identity_generation IS NULL OR identity_generation <> 'ALWAYS')
		ORDER BY ordinal_position
	`

	rows, err := c.db.QueryContext(ctx, query, schema, table)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns: %w", err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan column name: %w", err)
		}
		columns = append(columns, name)
	}
	return columns, rows.Err()
}

// SortTables orders specs by ascending dependency rank, stable by name
// within a rank. Restore must follow this order exactly.
func SortTables(specs []models.TableSpec) {
	sort.SliceStable(specs, func(i, j int) bool {
		if specs[i].Rank != specs[j].Rank {
			return specs[i].Rank < specs[j].Rank
		}
		return specs[i].Qualified() < specs[j].Qualified()
	})
}

// Intersect projects source columns onto the target's column set,
// preserving the target's order. Columns only one side has are dropped,
// which keeps drifted schemas loadable.
func Intersect(target, source []string) []string {
	have := make(map[string]bool, len(source))
	for _, c := range source {
		have[c] = true
	}

	var out []string
	for _, c := range target {
		if have[c] {
			out = append(out, c)
		}
	}
	return out
}
