// Package gittree is the real-git SourceTree backend: every operation
// shells out to the git binary, grounded on the teacher's
// capabilities/git tool family (FindGitRoot/RunGitCommand/status and
// branch porcelain parsing), restructured as SourceTree methods instead
// of chat-tool Execute handlers.
package gittree

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"tac/sourcetree"
)

// Tree is the git-backed SourceTree. useWorktree selects the
// worktree-isolated variant (SPEC_FULL §4.1 ADD): each namespaced branch
// gets its own `git worktree` checkout under .tac_worktrees/ so concurrent
// blocks never collide on the same working directory.
type Tree struct {
	root        string
	namespace   string
	useWorktree bool
	worktreeDir string
}

// New locates the git root containing dir and returns a Tree rooted
// there. useWorktree turns on the worktree-isolated variant.
func New(dir, namespace string, useWorktree bool) (*Tree, error) {
	root, err := findGitRoot(dir)
	if err != nil {
		return nil, err
	}

	t := &Tree{
		root:        root,
		namespace:   namespace,
		useWorktree: useWorktree,
		worktreeDir: filepath.Join(root, ".tac_worktrees"),
	}

	if err := t.ensureIgnored(); err != nil {
		return nil, fmt.Errorf("sourcetree startup check failed: %w", err)
	}

	return t, nil
}

func findGitRoot(startPath string) (string, error) {
	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	cmd.Dir = startPath
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("not a git repository (or any parent): %w", err)
	}
	return strings.TrimSpace(string(output)), nil
}

func (t *Tree) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = t.root
	output, err := cmd.CombinedOutput()
	if err != nil {
		return string(output), fmt.Errorf("git %s failed: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(output)))
	}
	return string(output), nil
}

// ensureIgnored appends sourcetree.ArtifactGlob to .gitignore and commits
// it if missing — the SourceTree startup invariant.
func (t *Tree) ensureIgnored() error {
	ignorePath := filepath.Join(t.root, ".gitignore")

	data, err := os.ReadFile(ignorePath)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	if strings.Contains(string(data), sourcetree.ArtifactGlob) {
		return nil
	}

	content := string(data)
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	content += sourcetree.ArtifactGlob + "\n"

	if err := os.WriteFile(ignorePath, []byte(content), 0644); err != nil {
		return err
	}

	ctx := context.Background()
	if _, err := t.run(ctx, "add", ".gitignore"); err != nil {
		return err
	}
	_, _ = t.run(ctx, "commit", "-m", "chore: ignore "+sourcetree.ArtifactGlob)
	return nil
}

// CurrentBranch returns the checked-out branch name.
func (t *Tree) CurrentBranch(ctx context.Context) (string, error) {
	out, err := t.run(ctx, "branch", "--show-current")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Status reports the working directory's cleanliness, parsing
// `git status --porcelain=v1 --branch` the same way the teacher's
// git_status tool does.
func (t *Tree) Status(ctx context.Context, ignoreUntracked bool) (sourcetree.Status, error) {
	out, err := t.run(ctx, "status", "--porcelain=v1", "--branch")
	if err != nil {
		return sourcetree.Status{}, err
	}

	status := parsePorcelainStatus(out)
	if ignoreUntracked {
		status.Untracked = nil
	}
	status.Clean = len(status.Modified) == 0 && len(status.Staged) == 0 &&
		len(status.Untracked) == 0 && len(status.Deleted) == 0
	return status, nil
}

func parsePorcelainStatus(output string) sourcetree.Status {
	var s sourcetree.Status
	seenDeleted := map[string]bool{}

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "##") {
			s.Branch, s.Ahead, s.Behind = parseBranchLine(line)
			continue
		}

		if len(line) < 3 {
			continue
		}

		code := line[:2]
		filename := strings.TrimSpace(line[3:])

		if code == "??" {
			s.Untracked = append(s.Untracked, filename)
			continue
		}

		staged, working := code[0], code[1]
		if staged != ' ' && staged != '?' {
			s.Staged = append(s.Staged, filename)
		}

		switch working {
		case 'M':
			s.Modified = append(s.Modified, filename)
		case 'D':
			if !seenDeleted[filename] {
				s.Deleted = append(s.Deleted, filename)
				seenDeleted[filename] = true
			}
		}

		if staged == 'D' && working != 'D' && !seenDeleted[filename] {
			s.Deleted = append(s.Deleted, filename)
			seenDeleted[filename] = true
		}
	}

	return s
}

func parseBranchLine(line string) (branch string, ahead, behind int) {
	info := strings.TrimPrefix(line, "## ")

	if idx := strings.Index(info, "..."); idx != -1 {
		branch = info[:idx]
	} else if idx := strings.Index(info, " "); idx != -1 {
		branch = info[:idx]
	} else {
		branch = info
	}

	if start := strings.Index(info, "["); start != -1 {
		if end := strings.Index(info, "]"); end > start {
			for _, part := range strings.Split(info[start+1:end], ",") {
				part = strings.TrimSpace(part)
				switch {
				case strings.HasPrefix(part, "ahead "):
					fmt.Sscanf(part, "ahead %d", &ahead)
				case strings.HasPrefix(part, "behind "):
					fmt.Sscanf(part, "behind %d", &behind)
				}
			}
		}
	}

	return branch, ahead, behind
}

// CheckoutBranch switches to name, creating it first when create is true.
func (t *Tree) CheckoutBranch(ctx context.Context, name string, create bool) error {
	args := []string{"checkout"}
	if create {
		args = append(args, "-B")
	}
	args = append(args, name)
	_, err := t.run(ctx, args...)
	return err
}

// CreateOrSwitchToNamespacedBranch is idempotent under t.namespace.
func (t *Tree) CreateOrSwitchToNamespacedBranch(ctx context.Context, name string) error {
	current, err := t.CurrentBranch(ctx)
	if err == nil && t.namespace != "" && strings.HasPrefix(current, t.namespace) {
		return nil
	}

	full := name
	if t.namespace != "" && !strings.HasPrefix(name, t.namespace) {
		full = t.namespace + name
	}

	if t.useWorktree {
		return t.addWorktree(ctx, full)
	}
	return t.CheckoutBranch(ctx, full, true)
}

func (t *Tree) addWorktree(ctx context.Context, branch string) error {
	if err := os.MkdirAll(t.worktreeDir, 0755); err != nil {
		return err
	}
	path := filepath.Join(t.worktreeDir, branch)
	_, err := t.run(ctx, "worktree", "add", "-B", branch, path)
	return err
}

// CompleteDiff returns staged + unstaged + untracked changes with content.
func (t *Tree) CompleteDiff(ctx context.Context) (string, error) {
	var b strings.Builder

	tracked, err := t.run(ctx, "diff", "HEAD")
	if err != nil {
		return "", err
	}
	b.WriteString(tracked)

	status, err := t.Status(ctx, false)
	if err != nil {
		return "", err
	}
	for _, file := range status.Untracked {
		content, err := os.ReadFile(filepath.Join(t.root, file))
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "\n--- /dev/null\n+++ %s (untracked)\n%s\n", file, string(content))
	}

	return b.String(), nil
}

// Commit stages everything and commits with message.
func (t *Tree) Commit(ctx context.Context, message string) error {
	if _, err := t.run(ctx, "add", "-A"); err != nil {
		return err
	}
	_, err := t.run(ctx, "commit", "-m", message)
	return err
}

// RevertChanges stashes (including untracked) then drops the stash and
// cleans untracked directories, matching the spec's stash-then-clean
// revert policy.
func (t *Tree) RevertChanges(ctx context.Context) error {
	if _, err := t.run(ctx, "stash", "push", "-u", "-m", "tac-revert"); err != nil {
		// Nothing to stash is not an error for our purposes.
		if !strings.Contains(err.Error(), "No local changes") {
			return err
		}
	}
	_, _ = t.run(ctx, "stash", "drop")
	_, err := t.run(ctx, "clean", "-fd")
	return err
}

// PostExecutionHandle runs optional auto-commit/auto-push after a
// successful block.
func (t *Tree) PostExecutionHandle(ctx context.Context, autoCommit, autoPush bool, message string) error {
	if !autoCommit {
		return nil
	}
	if err := t.Commit(ctx, message); err != nil {
		return err
	}
	if autoPush {
		branch, err := t.CurrentBranch(ctx)
		if err != nil {
			return err
		}
		if _, err := t.run(ctx, "push", "-u", "origin", branch); err != nil {
			return err
		}
	}
	return nil
}

var _ sourcetree.SourceTree = (*Tree)(nil)
