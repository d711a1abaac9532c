package planner

import (
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"tac/config"
	"tac/core/registry"
	"tac/core/types"
)

// ReadinessChecks validates a freshly-parsed ProtoBlock against the
// Definition-of-Ready-style criteria spec.md §4.8 requires before a
// ProtoBlock may be handed to the Executor. Grounded on the teacher's
// agent/orchestration/dor_dod_validators.go (DORValidator.ValidateCriteria
// returning (bool, []string), plus CriteriaChecker's individual
// CheckHasTitle/CheckHasDescription/CheckNoDependencies-style boolean
// helpers) — generalized from task-management criteria (title,
// description, dependency resolution) to ProtoBlock criteria (non-empty
// task description, well-formed write/context file paths, namespaced
// branch name, mandatory trust agents present).
type ReadinessChecks struct {
	registry *registry.Registry
}

func NewReadinessChecks(r *registry.Registry) *ReadinessChecks {
	return &ReadinessChecks{registry: r}
}

var branchNamePattern = regexp.MustCompile(`^[a-zA-Z0-9](?:[a-zA-Z0-9._/-]*[a-zA-Z0-9])?$`)

// Check mirrors DORValidator.ValidateCriteria's (bool, []string) shape:
// true with a nil slice when every criterion passes, false with the
// list of failures otherwise.
func (r *ReadinessChecks) Check(block *types.ProtoBlock) (bool, []string) {
	if block == nil {
		return false, []string{"protoblock is nil"}
	}

	var errs []string

	if strings.TrimSpace(block.TaskDescription) == "" {
		errs = append(errs, "task_description must be non-empty")
	}

	if len(block.WriteFiles) == 0 {
		errs = append(errs, "write_files must name at least one file")
	}
	for _, f := range block.WriteFiles {
		if err := r.checkRelativePath(f); err != nil {
			errs = append(errs, fmt.Sprintf("write_files: %v", err))
		}
	}
	for _, f := range block.ContextFiles {
		if err := r.checkRelativePath(f); err != nil {
			errs = append(errs, fmt.Sprintf("context_files: %v", err))
		}
	}

	if err := r.checkTestFileLayout(block.WriteFiles); err != nil {
		errs = append(errs, err.Error())
	}

	if strings.TrimSpace(block.CommitMessage) == "" {
		errs = append(errs, "commit_message must be non-empty")
	}

	if strings.TrimSpace(block.BranchName) == "" {
		errs = append(errs, "branch_name must be non-empty")
	} else if !branchNamePattern.MatchString(block.BranchName) {
		errs = append(errs, fmt.Sprintf("branch_name %q is not a valid git ref component", block.BranchName))
	}

	if r.registry != nil {
		for _, mandatory := range r.registry.MandatoryNames() {
			if !contains(block.TrustyAgents, mandatory) {
				errs = append(errs, fmt.Sprintf("trusty_agents must include mandatory agent %q", mandatory))
			}
		}
		for _, name := range block.TrustyAgents {
			if !r.registry.Has(name) {
				errs = append(errs, fmt.Sprintf("trusty_agents names unregistered agent %q", name))
			}
		}
	}

	return len(errs) == 0, errs
}

// checkRelativePath rejects absolute paths and parent-directory escapes,
// the Go-native equivalent of the original system's implicit assumption
// that all file references live under project_root.
func (r *ReadinessChecks) checkRelativePath(p string) error {
	if p == "" {
		return fmt.Errorf("empty path")
	}
	if filepath.IsAbs(p) {
		return fmt.Errorf("%q must be a relative path", p)
	}
	clean := filepath.Clean(p)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("%q escapes the project root", p)
	}
	return nil
}

// checkTestFileLayout enforces invariant 3 / spec §3's canonical
// test-file layout: any write_files entry that lands under
// config.General.TestPath must be a direct child of it (no deeper
// nesting, including the tests/tests/ mistake §4.11's post-coding
// hygiene step otherwise has to clean up after the fact) and must match
// config.General.TestFilePattern — catching both before a single line
// of code is written.
func (r *ReadinessChecks) checkTestFileLayout(writeFiles []string) error {
	cfg := config.Get().General
	testRoot := filepath.ToSlash(cfg.TestPath)
	pattern := cfg.TestFilePattern

	for _, f := range writeFiles {
		clean := filepath.ToSlash(f)
		rel := strings.TrimPrefix(clean, testRoot+"/")
		if rel == clean {
			continue // not under the test root at all
		}
		if strings.Contains(rel, "/") {
			return fmt.Errorf("write_files entry %q must sit directly under %q, not nested deeper", f, testRoot)
		}
		if pattern != "" {
			if ok, err := path.Match(pattern, rel); err != nil || !ok {
				return fmt.Errorf("write_files entry %q does not match test_file_pattern %q", f, pattern)
			}
		}
	}
	return nil
}

func contains(haystack []string, needle string) bool {
	for _, h := range haystack {
		if h == needle {
			return true
		}
	}
	return false
}
