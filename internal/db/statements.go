package db

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/lib/pq"

	"github.com/ballee/dbsync/internal/models"
)

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_$]*$`)

// Builder composes the small set of statements the engine needs. Every
// table and column identifier is checked against a lexical pattern and an
// allow-list built from catalog metadata before any SQL is assembled, so
// an unexpected identifier can never reach the wire.
type Builder struct {
	tables  map[string]models.TableSpec
	columns map[string]map[string]bool
}

func NewBuilder(specs []models.TableSpec) *Builder {
	b := &Builder{
		tables:  make(map[string]models.TableSpec, len(specs)),
		columns: make(map[string]map[string]bool, len(specs)),
	}
	for _, spec := range specs {
		key := spec.Qualified()
		b.tables[key] = spec
		cols := make(map[string]bool, len(spec.Columns))
		for _, c := range spec.Columns {
			cols[c] = true
		}
		b.columns[key] = cols
	}
	return b
}

func (b *Builder) checkTable(t models.TableSpec) error {
	if !identPattern.MatchString(t.Schema) || !identPattern.MatchString(t.Name) {
		return fmt.Errorf("invalid table identifier %q", t.Qualified())
	}
	if _, ok := b.tables[t.Qualified()]; !ok {
		return fmt.Errorf("table %s is not in the job's table set", t.Qualified())
	}
	return nil
}

func (b *Builder) checkColumns(t models.TableSpec, cols []string) error {
	allowed := b.columns[t.Qualified()]
	for _, c := range cols {
		if !identPattern.MatchString(c) {
			return fmt.Errorf("invalid column identifier %q", c)
		}
		if !allowed[c] {
			return fmt.Errorf("column %s.%s is not in the catalog", t.Qualified(), c)
		}
	}
	return nil
}

func quoteTable(t models.TableSpec) string {
	return pq.QuoteIdentifier(t.Schema) + "." + pq.QuoteIdentifier(t.Name)
}

func quoteColumns(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pq.QuoteIdentifier(c)
	}
	return strings.Join(quoted, ", ")
}

// Truncate empties every table in the set in one statement. CASCADE covers
// referencing tables outside the set; enforcement is already deferred by
// the Resetter when this runs.
func (b *Builder) Truncate(specs []models.TableSpec) (string, error) {
	if len(specs) == 0 {
		return "", fmt.Errorf("no tables to truncate")
	}

	names := make([]string, len(specs))
	for i, spec := range specs {
		if err := b.checkTable(spec); err != nil {
			return "", err
		}
		names[i] = quoteTable(spec)
	}
	return fmt.Sprintf("TRUNCATE TABLE %s CASCADE", strings.Join(names, ", ")), nil
}

// SelectRows reads the given columns in the target's column order.
func (b *Builder) SelectRows(t models.TableSpec, cols []string) (string, error) {
	if err := b.checkTable(t); err != nil {
		return "", err
	}
	if err := b.checkColumns(t, cols); err != nil {
		return "", err
	}
	return fmt.Sprintf("SELECT %s FROM %s", quoteColumns(cols), quoteTable(t)), nil
}

// SelectJSONRows materializes every row as a self-contained JSON object,
// for the last-resort insert strategy.
func (b *Builder) SelectJSONRows(t models.TableSpec) (string, error) {
	if err := b.checkTable(t); err != nil {
		return "", err
	}
	return fmt.Sprintf("SELECT row_to_json(src) FROM %s AS src", quoteTable(t)), nil
}

// CountRows counts a table's rows for reconciliation.
func (b *Builder) CountRows(t models.TableSpec) (string, error) {
	if err := b.checkTable(t); err != nil {
		return "", err
	}
	return fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteTable(t)), nil
}

// InsertRow builds a single-row insert with skip-on-conflict semantics.
func (b *Builder) InsertRow(t models.TableSpec, cols []string) (string, error) {
	if err := b.checkTable(t); err != nil {
		return "", err
	}
	if err := b.checkColumns(t, cols); err != nil {
		return "", err
	}
	if len(cols) == 0 {
		return "", fmt.Errorf("no columns to insert into %s", t.Qualified())
	}

	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT DO NOTHING",
		quoteTable(t), quoteColumns(cols), strings.Join(placeholders, ", ")), nil
}

// CopyTarget validates and returns the pieces pq.CopyInSchema needs.
func (b *Builder) CopyTarget(t models.TableSpec, cols []string) (string, string, []string, error) {
	if err := b.checkTable(t); err != nil {
		return "", "", nil, err
	}
	if err := b.checkColumns(t, cols); err != nil {
		return "", "", nil, err
	}
	return t.Schema, t.Name, cols, nil
}
