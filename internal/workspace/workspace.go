// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package workspace allocates, populates, and reliably destroys the
// per-item scratch directories used by the TeX extraction path.
//
// Implements: spec.md section 4.2 (Workspace Manager).
package workspace

import (
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/oklog/ulid/v2"

	"github.com/meshintel/arxiv-refextract/pkg/types"
)

// Manager creates and destroys per-item scratch directories under a
// single process-wide scratch root.
type Manager struct {
	root    string
	entropy *ulid.MonotonicEntropy
	current *types.Workspace
}

// New creates a Manager rooted at root, defaulting to os.TempDir() when
// root is empty.
func New(root string) *Manager {
	if root == "" {
		root = os.TempDir()
	}
	return &Manager{
		root:    root,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// Acquire creates a fresh scratch directory and returns a Workspace
// describing it. The directory name embeds the process id and a
// monotonic ulid so concurrent pipeline processes never collide (spec
// section 5).
//
// If a stale workspace directory from a prior allocation by this same
// Manager is still registered, it is destroyed first (spec section 3:
// "If a stale workspace from the same process is detected at allocation
// time it is destroyed first").
func (m *Manager) Acquire(debug int) (*types.Workspace, error) {
	if m.current != nil {
		if err := m.release(m.current); err != nil {
			return nil, fmt.Errorf("destroying stale workspace %s: %w", m.current.RootDir, err)
		}
		m.current = nil
	}

	name := fmt.Sprintf("refextract-%d-%s", os.Getpid(), ulid.MustNew(ulid.Now(), m.entropy).String())
	dir := filepath.Join(m.root, name)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating scratch directory %s: %w", dir, err)
	}

	ws := &types.Workspace{RootDir: dir, KeepOnExit: debug > 1}
	m.current = ws
	return ws, nil
}

// Release destroys ws unless it is marked KeepOnExit, in which case it is
// left in place (debug mode).
func (m *Manager) Release(ws *types.Workspace) error {
	if m.current == ws {
		m.current = nil
	}
	return m.release(ws)
}

func (m *Manager) release(ws *types.Workspace) error {
	if ws == nil {
		return nil
	}
	os.RemoveAll(pristineDir(ws.RootDir))
	if ws.KeepOnExit {
		return nil
	}
	return os.RemoveAll(ws.RootDir)
}

func pristineDir(dir string) string {
	return dir + ".pristine"
}

// Snapshot copies dir's current contents into a sibling ".pristine"
// directory, replacing any snapshot left by a prior call. A later
// RestoreSnapshot reverts dir to this state, undoing the in-place
// mutations the Reference Tagger and graphics rewriter make during one
// extraction attempt so the next marker/PS retry starts from the
// unpacked archive's original sources instead of a partially-tagged
// tree.
func Snapshot(dir string) (string, error) {
	snap := pristineDir(dir)
	if err := os.RemoveAll(snap); err != nil {
		return "", fmt.Errorf("clearing prior snapshot of %s: %w", dir, err)
	}
	if err := copyDir(dir, snap); err != nil {
		return "", fmt.Errorf("snapshotting %s: %w", dir, err)
	}
	return snap, nil
}

// RestoreSnapshot replaces dir's contents with a fresh copy from snap.
func RestoreSnapshot(dir, snap string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("clearing %s before restore: %w", dir, err)
	}
	if err := copyDir(snap, dir); err != nil {
		return fmt.Errorf("restoring %s from %s: %w", dir, snap, err)
	}
	return nil
}

func copyDir(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, info.Mode())
		}
		return copyFile(path, target, info.Mode())
	})
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copying %s to %s: %w", src, dst, err)
	}
	return nil
}
