// Package sourcetree defines the transactional view of the working
// directory every CodingAgent writes into and every TrustAgent diffs
// against: snapshot, diff, restore, and branch-like labels behind one
// interface with two conforming backends (gittree, shadowtree).
package sourcetree

import "context"

// CodeExtensions is the allow-list of file extensions considered
// "code-relevant" for snapshotting and diffing. Files outside this set
// (binaries, build output, vendor trees) are never captured.
var CodeExtensions = map[string]bool{
	".go": true, ".py": true, ".js": true, ".ts": true, ".tsx": true,
	".jsx": true, ".java": true, ".c": true, ".h": true, ".cpp": true,
	".hpp": true, ".rs": true, ".rb": true, ".sh": true,
	".yaml": true, ".yml": true, ".json": true, ".toml": true, ".md": true,
	".html": true, ".css": true, ".sql": true, ".proto": true,
}

// Status summarizes the working directory's cleanliness.
type Status struct {
	Clean     bool
	Branch    string
	Ahead     int
	Behind    int
	Modified  []string
	Staged    []string
	Untracked []string
	Deleted   []string
}

// SourceTree is the uniform contract the Executor, Processor, and
// TrustAgents use to interact with the working directory, regardless of
// whether it is backed by a real git repository or the shadow snapshot
// store.
type SourceTree interface {
	// CurrentBranch returns the name of the currently checked-out branch
	// (or an empty string for the shadow backend, which has no branches).
	CurrentBranch(ctx context.Context) (string, error)

	// Status reports whether the working directory is clean.
	Status(ctx context.Context, ignoreUntracked bool) (Status, error)

	// CheckoutBranch switches to name, creating it first when create is true.
	CheckoutBranch(ctx context.Context, name string, create bool) error

	// CreateOrSwitchToNamespacedBranch is idempotent: if the current branch
	// is already under the namespace prefix, it returns success without
	// switching.
	CreateOrSwitchToNamespacedBranch(ctx context.Context, name string) error

	// CompleteDiff returns staged + unstaged + untracked changes with
	// contents, as a single unified textual diff.
	CompleteDiff(ctx context.Context) (string, error)

	// Commit records the current working directory state under message
	// (a git commit, or a shadow-backend label snapshot).
	Commit(ctx context.Context, message string) error

	// RevertChanges discards all uncommitted changes: stash-including-
	// untracked then clean untracked directories for the git backend;
	// restore-from-last-snapshot for the shadow backend.
	RevertChanges(ctx context.Context) error

	// PostExecutionHandle runs the post-success VCS housekeeping: optional
	// auto-commit and auto-push.
	PostExecutionHandle(ctx context.Context, autoCommit, autoPush bool, message string) error
}

// ArtifactGlob is the product's temp-artifact glob. The git backend adds it
// to .gitignore at startup when missing; the shadow backend has no ignore
// mechanism.
const ArtifactGlob = ".tac_*"
