package orchestrator

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWorkspaceLifecycle(t *testing.T) {
	root := t.TempDir()

	ws, err := NewWorkspace(root, "task-1")
	if err != nil {
		t.Fatalf("NewWorkspace() error: %v", err)
	}
	if ws.Dir != filepath.Join(root, "task-1") {
		t.Errorf("Dir = %q, want under root", ws.Dir)
	}

	p := ws.Path("audio.wav")
	if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
		t.Fatalf("write into workspace: %v", err)
	}

	if err := ws.Remove(); err != nil {
		t.Fatalf("Remove() error: %v", err)
	}
	if _, err := os.Stat(ws.Dir); !os.IsNotExist(err) {
		t.Error("workspace dir still exists after Remove()")
	}

	// Second Remove is a no-op.
	if err := ws.Remove(); err != nil {
		t.Errorf("second Remove() error: %v", err)
	}
}
