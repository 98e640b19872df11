package render

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Workspace is the request-scoped staging directory. Every playlist gets its
// own subdirectory; Close removes the whole tree exactly once.
type Workspace struct {
	dir  string
	once sync.Once
	err  error
}

// NewWorkspace creates a fresh directory under parent (os.TempDir when empty).
func NewWorkspace(parent string) (*Workspace, error) {
	if parent != "" {
		if err := os.MkdirAll(parent, 0755); err != nil {
			return nil, fmt.Errorf("create workspace parent: %w", err)
		}
	}
	dir, err := os.MkdirTemp(parent, "render-")
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &Workspace{dir: dir}, nil
}

func (w *Workspace) Dir() string {
	return w.dir
}

// PlaylistDir returns the path reserved for the index-th playlist of the
// request. The directory itself is created by the renderer.
func (w *Workspace) PlaylistDir(index int, projectID string) string {
	return filepath.Join(w.dir, fmt.Sprintf("%03d-%s", index, SanitizeName(projectID, 64)))
}

func (w *Workspace) Close() error {
	w.once.Do(func() {
		w.err = os.RemoveAll(w.dir)
	})
	return w.err
}
