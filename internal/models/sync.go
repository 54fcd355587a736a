package models

import "fmt"

// Protection marks whether an environment may ever be a write target.
type Protection string

const (
	Protected   Protection = "protected"
	Unprotected Protection = "unprotected"
)

// Environment describes one known database environment. Descriptors are
// static: identity must still be confirmed against the live connection
// before any destructive action.
type Environment struct {
	ID         string     `json:"id"`
	Host       string     `json:"host"`
	Port       int        `json:"port"`
	User       string     `json:"user"`
	Database   string     `json:"database"`
	Protection Protection `json:"protection"`
}

func (e Environment) Addr() string {
	return fmt.Sprintf("%s:%d", e.Host, e.Port)
}

// Identity is what a live connection reports about itself.
type Identity struct {
	Database string
	Port     int // 0 when the server does not report one (unix socket)
}

// TableSpec describes one table to sync. Columns are the target's
// non-generated columns in ordinal order; Rank encodes restore order
// (rank 0 has no foreign keys and loads first).
type TableSpec struct {
	Schema  string   `json:"schema"`
	Name    string   `json:"name"`
	Rank    int      `json:"rank"`
	Columns []string `json:"columns,omitempty"`
}

func (t TableSpec) Qualified() string {
	return t.Schema + "." + t.Name
}

type TableStatus string

const (
	StatusOK       TableStatus = "ok"
	StatusMismatch TableStatus = "mismatch"
	StatusFailed   TableStatus = "failed"
)

// TableResult is the per-table outcome: how many rows each side holds
// after the job, and whether they reconcile.
type TableResult struct {
	SourceCount int64       `json:"source_count"`
	TargetCount int64       `json:"target_count"`
	Status      TableStatus `json:"status"`
	Reason      string      `json:"reason,omitempty"`
}

type OverallStatus string

const (
	OverallSuccess OverallStatus = "success"
	OverallPartial OverallStatus = "partial"
	OverallDryRun  OverallStatus = "dry-run"
)

// SyncResult is produced once at the end of a job and never mutated after.
type SyncResult struct {
	Source   string                 `json:"source"`
	Target   string                 `json:"target"`
	PerTable map[string]TableResult `json:"per_table"`
	Overall  OverallStatus          `json:"overall"`
}
