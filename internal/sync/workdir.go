package sync

import (
	"fmt"
	"os"
	"path/filepath"
)

// Workdir is the job-scoped directory for export artifacts. It is created
// once per job and removed on every exit path, so no snapshot or delimited
// export survives the process.
type Workdir struct {
	path string
}

func NewWorkdir() (*Workdir, error) {
	path, err := os.MkdirTemp("", "dbsync-")
	if err != nil {
		return nil, fmt.Errorf("failed to create work directory: %w", err)
	}
	return &Workdir{path: path}, nil
}

func (w *Workdir) Path() string {
	return w.path
}

// File returns the path for a named artifact inside the workdir.
func (w *Workdir) File(name string) string {
	return filepath.Join(w.path, name)
}

// Cleanup removes the directory and everything in it.
func (w *Workdir) Cleanup() {
	if w.path != "" {
		_ = os.RemoveAll(w.path)
	}
}
