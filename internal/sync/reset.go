package sync

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/ballee/dbsync/internal/db"
	"github.com/ballee/dbsync/internal/logger"
	"github.com/ballee/dbsync/internal/models"
)

// Resetter clears the target's data for the reset+restore window. It holds
// a single session so that the replica-role setting stays in effect until
// RestoreEnforcement runs. It does not re-check protection: it is only
// reachable through the orchestrator, after the guard has passed.
type Resetter struct {
	conn  *sql.Conn
	stmts *db.Builder
}

func NewResetter(conn *sql.Conn, stmts *db.Builder) *Resetter {
	return &Resetter{conn: conn, stmts: stmts}
}

// DeferEnforcement turns off trigger and foreign-key enforcement for this
// session so tables can be cleared and reloaded in dependency-rank order.
func (r *Resetter) DeferEnforcement(ctx context.Context) error {
	if _, err := r.conn.ExecContext(ctx, "SET session_replication_role = replica"); err != nil {
		return fmt.Errorf("failed to defer constraint enforcement: %w", err)
	}
	logger.Log.Debug("constraint enforcement deferred for restore window")
	return nil
}

// RestoreEnforcement re-enables triggers and foreign keys. The orchestrator
// runs this on every exit path once DeferEnforcement has succeeded, so the
// target is never left with constraints half-disabled.
func (r *Resetter) RestoreEnforcement(ctx context.Context) error {
	if _, err := r.conn.ExecContext(ctx, "SET session_replication_role = DEFAULT"); err != nil {
		return fmt.Errorf("failed to restore constraint enforcement: %w", err)
	}
	logger.Log.Debug("constraint enforcement restored")
	return nil
}

// Truncate removes all rows from the job's table set, cascading to any
// dependents outside it.
func (r *Resetter) Truncate(ctx context.Context, tables []models.TableSpec) error {
	stmt, err := r.stmts.Truncate(tables)
	if err != nil {
		return err
	}

	logger.Log.Info("clearing target tables", zap.Int("tables", len(tables)))
	if _, err := r.conn.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to truncate target tables: %w", err)
	}
	return nil
}
