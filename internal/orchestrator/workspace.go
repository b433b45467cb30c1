package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Workspace is the transient per-task working directory. It is owned by
// exactly one pipeline executor for the lifetime of one task and holds
// the downloaded media, the extracted audio and the rendered transcript
// before upload.
type Workspace struct {
	TaskID string
	Dir    string

	removeOnce sync.Once
	removeErr  error
}

// NewWorkspace creates <root>/<taskID> and returns its handle.
func NewWorkspace(root, taskID string) (*Workspace, error) {
	dir := filepath.Join(root, taskID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &Workspace{TaskID: taskID, Dir: dir}, nil
}

// Path joins name onto the workspace directory.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.Dir, name)
}

// Remove deletes the working directory and everything in it. It runs at
// most once no matter how many terminal paths reach it; the executor
// calls it via defer so it fires on success, failure, cancellation and
// panics alike.
func (w *Workspace) Remove() error {
	w.removeOnce.Do(func() {
		w.removeErr = os.RemoveAll(w.Dir)
	})
	return w.removeErr
}
