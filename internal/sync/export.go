package sync

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"go.uber.org/zap"

	"github.com/ballee/dbsync/internal/logger"
	"github.com/ballee/dbsync/internal/models"
)

// ToolError is a failure of an external snapshot tool. It is recoverable:
// the orchestrator falls back to per-table export instead of aborting.
type ToolError struct {
	Tool string
	Err  error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Tool, e.Err)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// Snapshot is a handle to a portable, data-only copy-format dump.
type Snapshot struct {
	Path string
}

// Exporter produces the primary snapshot by shelling out to pg_dump.
// The export is not transactionally pinned against concurrent writes on
// the source; that eventual-consistency risk is accepted and logged.
type Exporter struct {
	Bin      string
	Source   models.Environment
	Password string
	Schemas  []string
	Exclude  []string
	Workdir  *Workdir

	// run is swapped in tests.
	run func(cmd *exec.Cmd) error
}

func (e *Exporter) Export(ctx context.Context) (*Snapshot, error) {
	out := e.Workdir.File("snapshot.dump")

	args := []string{
		"--data-only",
		"--format=custom",
		"--no-owner",
		"--no-privileges",
	}
	for _, schema := range e.Schemas {
		args = append(args, "--schema="+schema)
	}
	for _, table := range e.Exclude {
		args = append(args, "--exclude-table="+table)
	}
	args = append(args,
		"--host", e.Source.Host,
		"--port", strconv.Itoa(e.Source.Port),
		"--username", e.Source.User,
		"--dbname", e.Source.Database,
		"--file", out,
	)

	logger.Log.Info("exporting snapshot from source",
		zap.String("source", e.Source.ID),
		zap.Strings("schemas", e.Schemas))
	logger.Log.Warn("export is not snapshot-isolated: concurrent writes on the source may produce referentially inconsistent data")

	cmd := exec.CommandContext(ctx, e.Bin, args...)
	cmd.Env = append(os.Environ(), "PGPASSWORD="+e.Password)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	runner := e.run
	if runner == nil {
		runner = func(c *exec.Cmd) error { return c.Run() }
	}

	if err := runner(cmd); err != nil {
		if msg := stderr.String(); msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return nil, &ToolError{Tool: e.Bin, Err: err}
	}

	return &Snapshot{Path: out}, nil
}
