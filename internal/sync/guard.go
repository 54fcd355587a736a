package sync

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ballee/dbsync/internal/models"
)

// ErrDryRun signals that --confirm was absent: the job stopped after the
// read-only identity check, touching no data. Callers treat it as success.
var ErrDryRun = errors.New("dry run complete, no changes made")

// SafetyError is a failed gating check. Fatal output names the check and
// the exact remediation so the operator knows what to change.
type SafetyError struct {
	Check  string
	Detail string
	Remedy string
}

func (e *SafetyError) Error() string {
	return fmt.Sprintf("safety check '%s' failed: %s (%s)", e.Check, e.Detail, e.Remedy)
}

// RowQuerier is the read-only slice of *sql.DB the guard needs.
type RowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Guard runs the safety checks standing between an operator and a wiped
// environment. Both gates (identity probe, two-phase confirmation) are
// independent; neither can be bypassed by a single flag.
type Guard struct {
	In  io.Reader
	Out io.Writer
}

func NewGuard() *Guard {
	return &Guard{In: os.Stdin, Out: os.Stderr}
}

// VerifyIdentity asks the live connection what it is and compares the
// answer against the descriptor. A mismatch means the declared target is
// not the database we are actually connected to, and is always fatal.
func (g *Guard) VerifyIdentity(ctx context.Context, q RowQuerier, env models.Environment) error {
	identity, err := ProbeIdentity(ctx, q)
	if err != nil {
		return fmt.Errorf("failed to probe identity of %s: %w", env.ID, err)
	}

	if identity.Database != env.Database {
		return &SafetyError{
			Check:  "identity-database",
			Detail: fmt.Sprintf("environment '%s' expects database '%s' but the connection reports '%s'", env.ID, env.Database, identity.Database),
			Remedy: "fix the connection parameters for this environment",
		}
	}
	if identity.Port != 0 && env.Port != 0 && identity.Port != env.Port {
		return &SafetyError{
			Check:  "identity-port",
			Detail: fmt.Sprintf("environment '%s' expects port %d but the server reports %d", env.ID, env.Port, identity.Port),
			Remedy: "fix the connection parameters for this environment",
		}
	}
	return nil
}

// ProbeIdentity issues the trivial "what am I connected to" query.
func ProbeIdentity(ctx context.Context, q RowQuerier) (models.Identity, error) {
	var identity models.Identity
	var port sql.NullInt64

	row := q.QueryRowContext(ctx, "SELECT current_database(), inet_server_port()")
	if err := row.Scan(&identity.Database, &port); err != nil {
		return models.Identity{}, err
	}
	if port.Valid {
		identity.Port = int(port.Int64)
	}
	return identity, nil
}

// Phrase is the exact confirmation string an operator must type when the
// non-interactive override is not set.
func Phrase(target models.Environment) string {
	return "SYNC TO " + strings.ToUpper(target.ID)
}

// Confirm applies the two-phase confirmation protocol. Without the
// --confirm flag the job is a dry run. With it, either the --yes override
// must be set or the operator must type the exact phrase, matched
// byte-for-byte. Only a passing Confirm marks the job confirmed.
func (g *Guard) Confirm(job *Job, confirmFlag, yesFlag bool) error {
	if !confirmFlag {
		return ErrDryRun
	}

	if yesFlag {
		job.confirmed = true
		return nil
	}

	want := Phrase(job.Target)
	fmt.Fprintf(g.Out, "This will ERASE all data in '%s' and replace it with data from '%s'.\n", job.Target.ID, job.Source.ID)
	fmt.Fprintf(g.Out, "Type %q to continue: ", want)

	line, err := bufio.NewReader(g.In).ReadString('\n')
	if err != nil && line == "" {
		return &SafetyError{
			Check:  "confirmation-phrase",
			Detail: "could not read confirmation phrase",
			Remedy: "rerun interactively or pass --yes",
		}
	}

	if strings.TrimRight(line, "\r\n") != want {
		return &SafetyError{
			Check:  "confirmation-phrase",
			Detail: "typed phrase did not match",
			Remedy: fmt.Sprintf("type exactly %q, or pass --yes to skip the prompt", want),
		}
	}

	job.confirmed = true
	return nil
}
