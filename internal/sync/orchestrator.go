package sync

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/ballee/dbsync/internal/logger"
	"github.com/ballee/dbsync/internal/models"
)

// State is the orchestrator's position in the phase sequence.
type State string

const (
	StateCreated           State = "created"
	StateCredentialsLoaded State = "credentials-loaded"
	StateIdentityVerified  State = "identity-verified"
	StateConfirmed         State = "confirmed"
	StateExported          State = "exported"
	StateReset             State = "reset"
	StateRestored          State = "restored"
	StateVerified          State = "verified"
	StateDone              State = "done"
	StateAborted           State = "aborted"
)

// ErrPartialRestore marks a job that completed with one or more failed
// tables. The SyncResult is still valid; callers map this to exit code 2.
var ErrPartialRestore = errors.New("one or more tables failed to restore")

// ErrAllTablesFailed marks a restore phase where nothing loaded at all.
var ErrAllTablesFailed = errors.New("all tables failed to restore")

// TargetGuard binds the safety guard to the resolved target connection.
type TargetGuard struct {
	Guard *Guard
	Conn  RowQuerier
	Env   models.Environment
}

func (t *TargetGuard) VerifyIdentity(ctx context.Context) error {
	return t.Guard.VerifyIdentity(ctx, t.Conn, t.Env)
}

func (t *TargetGuard) Confirm(job *Job, confirmFlag, yesFlag bool) error {
	return t.Guard.Confirm(job, confirmFlag, yesFlag)
}

type gate interface {
	VerifyIdentity(ctx context.Context) error
	Confirm(job *Job, confirmFlag, yesFlag bool) error
}

type exporter interface {
	Export(ctx context.Context) (*Snapshot, error)
}

type resetter interface {
	DeferEnforcement(ctx context.Context) error
	Truncate(ctx context.Context, tables []models.TableSpec) error
	RestoreEnforcement(ctx context.Context) error
}

type restorer interface {
	Load(ctx context.Context, tables []models.TableSpec, snap *Snapshot) map[string]models.TableResult
}

type reconciler interface {
	Reconcile(ctx context.Context, tables []models.TableSpec, prior map[string]models.TableResult) map[string]models.TableResult
}

// Orchestrator sequences one job through its phases. Any fatal error
// before the reset phase aborts with zero data touched; failures during
// restore degrade the job to partial but still verify and report.
type Orchestrator struct {
	Job         *Job
	ConfirmFlag bool
	YesFlag     bool

	Guard    gate
	Exporter exporter
	Resetter resetter
	Restorer restorer
	Verifier reconciler

	state State
}

func (o *Orchestrator) State() State {
	return o.state
}

func (o *Orchestrator) advance(s State) {
	o.state = s
	logger.Log.Debug("phase transition", zap.String("state", string(s)))
}

func (o *Orchestrator) abort(err error) (*models.SyncResult, error) {
	o.advance(StateAborted)
	return nil, err
}

// Run executes the job and produces its final, immutable SyncResult.
func (o *Orchestrator) Run(ctx context.Context) (*models.SyncResult, error) {
	o.advance(StateCreated)

	// Unconditional, redundant on purpose: the job constructor already
	// rejected protected targets, and nothing past this line may run
	// against one.
	if err := CheckTarget(o.Job.Target); err != nil {
		return o.abort(err)
	}

	// Credentials were resolved while wiring the connections this
	// orchestrator holds.
	o.advance(StateCredentialsLoaded)

	if err := o.Guard.VerifyIdentity(ctx); err != nil {
		return o.abort(err)
	}
	o.advance(StateIdentityVerified)

	if err := o.Guard.Confirm(o.Job, o.ConfirmFlag, o.YesFlag); err != nil {
		if errors.Is(err, ErrDryRun) {
			o.advance(StateDone)
			return &models.SyncResult{
				Source:   o.Job.Source.ID,
				Target:   o.Job.Target.ID,
				PerTable: map[string]models.TableResult{},
				Overall:  models.OverallDryRun,
			}, nil
		}
		return o.abort(err)
	}
	if !o.Job.Confirmed() {
		return o.abort(&SafetyError{
			Check:  "confirmation",
			Detail: "job is not confirmed",
			Remedy: "pass --confirm together with --yes or the typed phrase",
		})
	}
	o.advance(StateConfirmed)

	snap, err := o.Exporter.Export(ctx)
	if err != nil {
		var toolErr *ToolError
		if !errors.As(err, &toolErr) {
			return o.abort(err)
		}
		// Recoverable: per-table strategies take over.
		logger.Log.Warn("snapshot export failed, falling back to per-table export", zap.Error(err))
		snap = nil
	}
	o.advance(StateExported)

	if err := o.Resetter.DeferEnforcement(ctx); err != nil {
		return o.abort(err)
	}
	defer func() {
		// Must run on every exit path so the target is never left with
		// constraints disabled.
		if err := o.Resetter.RestoreEnforcement(context.WithoutCancel(ctx)); err != nil {
			logger.Log.Error("failed to restore constraint enforcement", zap.Error(err))
		}
	}()

	if err := o.Resetter.Truncate(ctx, o.Job.Tables); err != nil {
		return o.abort(err)
	}
	o.advance(StateReset)

	perTable := o.Restorer.Load(ctx, o.Job.Tables, snap)
	o.advance(StateRestored)

	failed := 0
	for _, res := range perTable {
		if res.Status == models.StatusFailed {
			failed++
		}
	}
	if len(perTable) > 0 && failed == len(perTable) {
		o.advance(StateAborted)
		return &models.SyncResult{
			Source:   o.Job.Source.ID,
			Target:   o.Job.Target.ID,
			PerTable: perTable,
			Overall:  models.OverallPartial,
		}, ErrAllTablesFailed
	}

	perTable = o.Verifier.Reconcile(ctx, o.Job.Tables, perTable)
	o.advance(StateVerified)

	result := &models.SyncResult{
		Source:   o.Job.Source.ID,
		Target:   o.Job.Target.ID,
		PerTable: perTable,
		Overall:  models.OverallSuccess,
	}
	if failed > 0 {
		result.Overall = models.OverallPartial
	}
	o.advance(StateDone)

	if failed > 0 {
		return result, ErrPartialRestore
	}
	return result, nil
}
