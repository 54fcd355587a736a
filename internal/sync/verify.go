package sync

import (
	"context"

	"go.uber.org/zap"

	"github.com/ballee/dbsync/internal/db"
	"github.com/ballee/dbsync/internal/logger"
	"github.com/ballee/dbsync/internal/models"
)

// Counter counts rows in one environment's copy of a table.
type Counter interface {
	Count(ctx context.Context, t models.TableSpec) (int64, error)
}

// RowCounter counts via a live connection using the validated statement
// builder.
type RowCounter struct {
	Q     RowQuerier
	Stmts *db.Builder
}

func (c *RowCounter) Count(ctx context.Context, t models.TableSpec) (int64, error) {
	query, err := c.Stmts.CountRows(t)
	if err != nil {
		return 0, err
	}

	var n int64
	if err := c.Q.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Verifier reconciles row counts between source and target. It is purely
// informational: it never mutates either side and never fails the job, and
// it runs even when earlier phases reported partial failure so operators
// get full visibility.
type Verifier struct {
	Source Counter
	Target Counter
}

func (v *Verifier) Reconcile(ctx context.Context, tables []models.TableSpec, prior map[string]models.TableResult) map[string]models.TableResult {
	results := make(map[string]models.TableResult, len(tables))

	for _, t := range tables {
		res := prior[t.Qualified()]

		if n, err := v.Source.Count(ctx, t); err == nil {
			res.SourceCount = n
		} else {
			logger.Log.Warn("failed to count source rows", zap.String("table", t.Qualified()), zap.Error(err))
		}
		if n, err := v.Target.Count(ctx, t); err == nil {
			res.TargetCount = n
		} else {
			logger.Log.Warn("failed to count target rows", zap.String("table", t.Qualified()), zap.Error(err))
		}

		// A restore failure stays failed; counts are still reported.
		if res.Status != models.StatusFailed {
			if res.SourceCount == res.TargetCount {
				res.Status = models.StatusOK
			} else {
				res.Status = models.StatusMismatch
			}
		}

		results[t.Qualified()] = res
	}
	return results
}
