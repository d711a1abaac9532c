// Package shadowtree is the "fake git" SourceTree backend: a temp-
// directory snapshot store used when git is disabled, or for cheap
// rollback during the performance-optimization flow. No teacher file
// implements this directly (Wilson always assumes a real git repo); it is
// grounded on spec.md §4.1's own description of the shadow backend's
// contract, expressed with the same os/exec-free, pure-filesystem style
// as the rest of this package.
package shadowtree

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"tac/sourcetree"
)

// Tree snapshots the allow-listed files of root into labeled directories
// under a temp directory, and restores/diffs against them.
type Tree struct {
	root    string
	tempDir string
	commits []string // labels in commit order
}

// New creates a shadow tree rooted at root, seeding an initial_commit.
func New(root string) (*Tree, error) {
	tempDir, err := os.MkdirTemp("", "tac-shadowtree-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create shadow snapshot dir: %w", err)
	}

	t := &Tree{root: root, tempDir: tempDir}
	if err := t.Commit(context.Background(), "initial_commit"); err != nil {
		return nil, err
	}
	return t, nil
}

// CurrentBranch is a no-op for the shadow backend: it has no branches.
func (t *Tree) CurrentBranch(ctx context.Context) (string, error) {
	return "", nil
}

// Status reports differences between the working directory and the most
// recent snapshot.
func (t *Tree) Status(ctx context.Context, ignoreUntracked bool) (sourcetree.Status, error) {
	if len(t.commits) == 0 {
		return sourcetree.Status{Clean: true}, nil
	}

	last := t.snapshotDir(t.commits[len(t.commits)-1])
	live := t.collectFiles(t.root)
	snap := t.collectFiles(last)

	var s sourcetree.Status
	for path := range live {
		if _, ok := snap[path]; !ok {
			s.Untracked = append(s.Untracked, path)
			continue
		}
		liveContent, _ := os.ReadFile(filepath.Join(t.root, path))
		snapContent, _ := os.ReadFile(filepath.Join(last, path))
		if string(liveContent) != string(snapContent) {
			s.Modified = append(s.Modified, path)
		}
	}
	for path := range snap {
		if _, ok := live[path]; !ok {
			s.Deleted = append(s.Deleted, path)
		}
	}

	if ignoreUntracked {
		s.Untracked = nil
	}
	s.Clean = len(s.Modified) == 0 && len(s.Untracked) == 0 && len(s.Deleted) == 0
	return s, nil
}

// CheckoutBranch and CreateOrSwitchToNamespacedBranch are no-ops
// returning success: the shadow backend has no branch concept.
func (t *Tree) CheckoutBranch(ctx context.Context, name string, create bool) error {
	return nil
}

func (t *Tree) CreateOrSwitchToNamespacedBranch(ctx context.Context, name string) error {
	return nil
}

// CompleteDiff produces a textual diff between the last snapshot and the
// live tree, in DiffCommit's format.
func (t *Tree) CompleteDiff(ctx context.Context) (string, error) {
	if len(t.commits) == 0 {
		return "", nil
	}
	return t.DiffCommit(t.commits[len(t.commits)-1])
}

// DiffCommit produces a textual diff between the snapshot recorded under
// label and the live tree. Each changed file gets ---/+++ headers followed
// by its whole old and new contents; no line-level hunks are computed.
// It satisfies the shadow contract's
// diff(label): immediately after RestoreCommit(label), DiffCommit(label)
// is empty.
func (t *Tree) DiffCommit(label string) (string, error) {
	dest := t.snapshotDir(label)
	if _, err := os.Stat(dest); err != nil {
		return "", fmt.Errorf("unknown snapshot %q: %w", label, err)
	}

	live := t.collectFiles(t.root)
	snap := t.collectFiles(dest)

	paths := make([]string, 0, len(live)+len(snap))
	seen := map[string]bool{}
	for p := range live {
		paths = append(paths, p)
		seen[p] = true
	}
	for p := range snap {
		if !seen[p] {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)

	var b strings.Builder
	for _, path := range paths {
		liveContent, liveOK := live[path]
		snapContent, snapOK := snap[path]

		switch {
		case liveOK && !snapOK:
			fmt.Fprintf(&b, "--- /dev/null\n+++ %s\n%s\n", path, liveContent)
		case !liveOK && snapOK:
			fmt.Fprintf(&b, "--- %s\n+++ /dev/null\n%s\n", path, snapContent)
		case liveContent != snapContent:
			fmt.Fprintf(&b, "--- a/%s\n+++ b/%s\n-%s\n+%s\n", path, path, snapContent, liveContent)
		}
	}
	return b.String(), nil
}

// Commit snapshots every allow-listed file under its exact label: a later
// RestoreCommit(message) or DiffCommit(message) must find it by that same
// label, so the directory name is sanitized for filesystem safety but
// never mangled with a counter or timestamp. Re-committing the same label
// overwrites its snapshot in place.
func (t *Tree) Commit(ctx context.Context, message string) error {
	dest := t.snapshotDir(message)

	if err := os.MkdirAll(dest, 0755); err != nil {
		return err
	}

	for rel, content := range t.collectFiles(t.root) {
		destPath := filepath.Join(dest, rel)
		if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(destPath, []byte(content), 0644); err != nil {
			return err
		}
	}

	t.commits = append(t.commits, message)
	return nil
}

// RestoreCommit overwrites the working tree to match label, deleting
// files absent from the snapshot.
func (t *Tree) RestoreCommit(label string) error {
	dest := t.snapshotDir(label)
	if _, err := os.Stat(dest); err != nil {
		return fmt.Errorf("unknown snapshot %q: %w", label, err)
	}

	live := t.collectFiles(t.root)
	snap := t.collectFiles(dest)

	for rel := range live {
		if _, ok := snap[rel]; !ok {
			_ = os.Remove(filepath.Join(t.root, rel))
		}
	}
	for rel, content := range snap {
		target := filepath.Join(t.root, rel)
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(target, []byte(content), 0644); err != nil {
			return err
		}
	}
	return nil
}

// RevertChanges restores the most recent snapshot.
func (t *Tree) RevertChanges(ctx context.Context) error {
	if len(t.commits) == 0 {
		return nil
	}
	return t.RestoreCommit(t.commits[len(t.commits)-1])
}

// PostExecutionHandle is a no-op for the shadow backend beyond taking a
// snapshot when autoCommit is requested: push has no meaning here.
func (t *Tree) PostExecutionHandle(ctx context.Context, autoCommit, autoPush bool, message string) error {
	if !autoCommit {
		return nil
	}
	return t.Commit(ctx, message)
}

func (t *Tree) snapshotDir(label string) string {
	return filepath.Join(t.tempDir, sanitizeLabel(label))
}

func (t *Tree) collectFiles(dir string) map[string]string {
	files := make(map[string]string)
	_ = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if strings.Contains(path, string(os.PathSeparator)+".git"+string(os.PathSeparator)) {
			return nil
		}
		if !sourcetree.CodeExtensions[filepath.Ext(path)] {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		files[rel] = string(content)
		return nil
	})
	return files
}

// sanitizeLabel maps a commit label onto a safe directory name. It must
// be a pure, stable function of label alone: Commit(L) and the later
// RestoreCommit(L)/DiffCommit(L) depend on it producing the same
// directory for the same label.
func sanitizeLabel(label string) string {
	safe := strings.Map(func(r rune) rune {
		if r == ' ' || r == '/' || r == os.PathSeparator {
			return '_'
		}
		return r
	}, label)
	if safe == "" {
		safe = "snapshot"
	}
	return safe
}

var _ sourcetree.SourceTree = (*Tree)(nil)
