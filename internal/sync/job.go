package sync

import (
	"github.com/ballee/dbsync/internal/envs"
	"github.com/ballee/dbsync/internal/models"
)

// Job is one sync invocation: source, target, and the dependency-ordered
// table set. It lives for a single process run and is never persisted.
// The confirmed flag is unexported on purpose: only the guard's two-phase
// confirmation can set it.
type Job struct {
	Source      models.Environment
	Target      models.Environment
	Tables      []models.TableSpec
	IncludeAuth bool

	confirmed bool
}

// NewJob builds a job, rejecting protected targets before any connection
// with write intent exists.
func NewJob(source, target models.Environment, tables []models.TableSpec, includeAuth bool) (*Job, error) {
	if err := CheckTarget(target); err != nil {
		return nil, err
	}
	return &Job{
		Source:      source,
		Target:      target,
		Tables:      tables,
		IncludeAuth: includeAuth,
	}, nil
}

func (j *Job) Confirmed() bool {
	return j.confirmed
}

// CheckTarget rejects any environment on the protected allow-list.
// This check is unconditional: no flag combination bypasses it.
func CheckTarget(target models.Environment) error {
	if envs.IsProtected(target.ID) || target.Protection == models.Protected {
		return &SafetyError{
			Check:  "protected-target",
			Detail: "environment '" + target.ID + "' is a protected environment and can never be a sync target",
			Remedy: "choose an unprotected target such as 'staging' or 'local'",
		}
	}
	return nil
}
