package sync

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/ballee/dbsync/internal/db"
	"github.com/ballee/dbsync/internal/logger"
	"github.com/ballee/dbsync/internal/models"
)

// ErrStrategyUnavailable means a strategy cannot apply to this job at all
// (as opposed to having tried and failed). The chain moves on silently.
var ErrStrategyUnavailable = errors.New("restore strategy unavailable")

// nullMarker stands in for SQL NULL inside delimited export files.
const nullMarker = `\N`

// RestoreStrategy loads one table into the target and reports how many
// rows it loaded, or -1 when the mechanism cannot know.
type RestoreStrategy interface {
	Name() string
	Restore(ctx context.Context, t models.TableSpec, snap *Snapshot) (int64, error)
}

// Restorer tries each strategy in order per table, first success wins.
// Tables are processed one at a time in ascending dependency rank; a table
// that exhausts every strategy is recorded as failed and the job goes on.
type Restorer struct {
	Strategies []RestoreStrategy
}

func (r *Restorer) Load(ctx context.Context, tables []models.TableSpec, snap *Snapshot) map[string]models.TableResult {
	ordered := make([]models.TableSpec, len(tables))
	copy(ordered, tables)
	db.SortTables(ordered)

	results := make(map[string]models.TableResult, len(ordered))
	for _, t := range ordered {
		results[t.Qualified()] = r.loadTable(ctx, t, snap)
	}
	return results
}

func (r *Restorer) loadTable(ctx context.Context, t models.TableSpec, snap *Snapshot) models.TableResult {
	var lastErr error
	loaded := int64(0)

	for _, strategy := range r.Strategies {
		n, err := strategy.Restore(ctx, t, snap)
		if err == nil {
			logger.Log.Info("table restored",
				zap.String("table", t.Qualified()),
				zap.String("strategy", strategy.Name()),
				zap.Int64("rows", n))
			if n < 0 {
				n = 0
			}
			return models.TableResult{TargetCount: n, Status: models.StatusOK, Reason: strategy.Name()}
		}
		if errors.Is(err, ErrStrategyUnavailable) {
			continue
		}

		logger.Log.Warn("restore strategy failed",
			zap.String("table", t.Qualified()),
			zap.String("strategy", strategy.Name()),
			zap.Error(err))
		lastErr = err
		if n > 0 {
			loaded = n
		}
		if ctx.Err() != nil {
			break
		}
	}

	reason := "no restore strategy available"
	if lastErr != nil {
		reason = lastErr.Error()
	}
	return models.TableResult{TargetCount: loaded, Status: models.StatusFailed, Reason: reason}
}

// BulkLoad replays the copy-format snapshot for one table via pg_restore.
// Fastest path, exact binary fidelity; unavailable when the export already
// fell back.
type BulkLoad struct {
	Bin      string
	Target   models.Environment
	Password string

	run func(cmd *exec.Cmd) error
}

func (s *BulkLoad) Name() string { return "bulk" }

func (s *BulkLoad) Restore(ctx context.Context, t models.TableSpec, snap *Snapshot) (int64, error) {
	if snap == nil {
		return 0, ErrStrategyUnavailable
	}

	args := []string{
		"--data-only",
		"--no-owner",
		"--exit-on-error",
		"--schema", t.Schema,
		"--table", t.Name,
		"--host", s.Target.Host,
		"--port", strconv.Itoa(s.Target.Port),
		"--username", s.Target.User,
		"--dbname", s.Target.Database,
		snap.Path,
	}

	cmd := exec.CommandContext(ctx, s.Bin, args...)
	cmd.Env = append(os.Environ(), "PGPASSWORD="+s.Password)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	runner := s.run
	if runner == nil {
		runner = func(c *exec.Cmd) error { return c.Run() }
	}

	if err := runner(cmd); err != nil {
		if msg := stderr.String(); msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return 0, &ToolError{Tool: s.Bin, Err: err}
	}
	return -1, nil
}

// CopyTable exports one table from the source as a delimited file covering
// only the intersection of source and target columns, then bulk-loads that
// file. Tolerates schema drift between the environments.
type CopyTable struct {
	Source    *sql.DB
	SourceCat *db.Catalog
	Target    *sql.Conn
	Stmts     *db.Builder
	Workdir   *Workdir
}

func (s *CopyTable) Name() string { return "copy" }

func (s *CopyTable) Restore(ctx context.Context, t models.TableSpec, _ *Snapshot) (int64, error) {
	sourceCols, err := s.SourceCat.Columns(ctx, t.Schema, t.Name)
	if err != nil {
		return 0, fmt.Errorf("failed to read source columns for %s: %w", t.Qualified(), err)
	}

	cols := db.Intersect(t.Columns, sourceCols)
	if len(cols) == 0 {
		return 0, fmt.Errorf("no shared columns between source and target for %s", t.Qualified())
	}

	path, err := s.exportDelimited(ctx, t, cols)
	if err != nil {
		return 0, err
	}

	return s.bulkLoad(ctx, t, cols, path)
}

func (s *CopyTable) exportDelimited(ctx context.Context, t models.TableSpec, cols []string) (string, error) {
	query, err := s.Stmts.SelectRows(t, cols)
	if err != nil {
		return "", err
	}

	rows, err := s.Source.QueryContext(ctx, query)
	if err != nil {
		return "", fmt.Errorf("failed to read %s from source: %w", t.Qualified(), err)
	}
	defer rows.Close()

	path := s.Workdir.File(t.Schema + "." + t.Name + ".csv")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create export file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	record := make([]string, len(cols))
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return "", fmt.Errorf("failed to scan %s row: %w", t.Qualified(), err)
		}
		for i, v := range values {
			record[i] = fieldString(v)
		}
		if err := w.Write(record); err != nil {
			return "", fmt.Errorf("failed to write export file: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("failed to flush export file: %w", err)
	}
	return path, nil
}

func (s *CopyTable) bulkLoad(ctx context.Context, t models.TableSpec, cols []string, path string) (int64, error) {
	schema, table, columns, err := s.Stmts.CopyTarget(t, cols)
	if err != nil {
		return 0, err
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open export file: %w", err)
	}
	defer f.Close()

	tx, err := s.Target.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin copy transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, pq.CopyInSchema(schema, table, columns...))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare bulk copy for %s: %w", t.Qualified(), err)
	}

	var count int64
	r := csv.NewReader(f)
	args := make([]any, len(columns))
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			_ = stmt.Close()
			return 0, fmt.Errorf("failed to read export file for %s: %w", t.Qualified(), err)
		}
		if len(record) != len(columns) {
			_ = stmt.Close()
			return 0, fmt.Errorf("export file for %s has %d fields, want %d", t.Qualified(), len(record), len(columns))
		}

		for i, field := range record {
			if field == nullMarker {
				args[i] = nil
			} else {
				args[i] = field
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			_ = stmt.Close()
			return 0, fmt.Errorf("failed to copy row into %s: %w", t.Qualified(), err)
		}
		count++
	}

	// Final Exec flushes the COPY buffer.
	if _, err := stmt.ExecContext(ctx); err != nil {
		_ = stmt.Close()
		return 0, fmt.Errorf("failed to flush bulk copy for %s: %w", t.Qualified(), err)
	}
	if err := stmt.Close(); err != nil {
		return 0, fmt.Errorf("failed to close bulk copy for %s: %w", t.Qualified(), err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit bulk copy for %s: %w", t.Qualified(), err)
	}
	return count, nil
}

// InsertRows regenerates the table row by row from a JSON dump of the
// source, with skip-on-conflict semantics. Slowest path, maximally
// tolerant: a malformed row is skipped, not fatal.
type InsertRows struct {
	Source *sql.DB
	Target *sql.Conn
	Stmts  *db.Builder
}

func (s *InsertRows) Name() string { return "insert" }

func (s *InsertRows) Restore(ctx context.Context, t models.TableSpec, _ *Snapshot) (int64, error) {
	query, err := s.Stmts.SelectJSONRows(t)
	if err != nil {
		return 0, err
	}

	srcRows, err := s.Source.QueryContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to dump %s as JSON: %w", t.Qualified(), err)
	}
	defer srcRows.Close()

	var decoded []map[string]any
	for srcRows.Next() {
		var raw []byte
		if err := srcRows.Scan(&raw); err != nil {
			return 0, fmt.Errorf("failed to scan %s JSON row: %w", t.Qualified(), err)
		}

		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var row map[string]any
		if err := dec.Decode(&row); err != nil {
			return 0, fmt.Errorf("failed to decode %s JSON row: %w", t.Qualified(), err)
		}
		decoded = append(decoded, row)
	}
	if err := srcRows.Err(); err != nil {
		return 0, err
	}
	if len(decoded) == 0 {
		return 0, nil
	}

	cols := presentColumns(t.Columns, decoded[0])
	if len(cols) == 0 {
		return 0, fmt.Errorf("no shared columns between source and target for %s", t.Qualified())
	}

	insert, err := s.Stmts.InsertRow(t, cols)
	if err != nil {
		return 0, err
	}

	var loaded int64
	var failed int
	var firstErr error
	args := make([]any, len(cols))

	for _, row := range decoded {
		for i, col := range cols {
			args[i] = insertValue(row[col])
		}
		res, err := s.Target.ExecContext(ctx, insert, args...)
		if err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if n, err := res.RowsAffected(); err == nil {
			loaded += n
		}
	}

	if failed > 0 {
		return loaded, fmt.Errorf("%d of %d rows failed for %s: %w", failed, len(decoded), t.Qualified(), firstErr)
	}
	return loaded, nil
}

// presentColumns keeps the target's columns that the JSON dump carries,
// in the target's order.
func presentColumns(target []string, row map[string]any) []string {
	var out []string
	for _, c := range target {
		if _, ok := row[c]; ok {
			out = append(out, c)
		}
	}
	return out
}

// insertValue maps a decoded JSON value onto a driver-friendly parameter.
// Nested structures go back to JSON text so jsonb columns round-trip.
func insertValue(v any) any {
	switch val := v.(type) {
	case nil, bool, string:
		return val
	case json.Number:
		return val.String()
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}

// fieldString renders a scanned value for the delimited export file.
func fieldString(v any) string {
	switch val := v.(type) {
	case nil:
		return nullMarker
	case []byte:
		return string(val)
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}
