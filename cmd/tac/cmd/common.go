package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"tac/codingagent/mcpagent"
	"tac/codingagent/subprocess"
	"tac/config"
	"tac/core/registry"
	"tac/core/types"
	"tac/executor"
	"tac/planner"
	"tac/planner/summary"
	"tac/processor"
	"tac/runlog"
	"tac/session"
	"tac/sourcetree"
	"tac/sourcetree/gittree"
	"tac/sourcetree/shadowtree"
	"tac/telemetry"
)

// deps bundles the wired kernel components one command invocation needs.
type deps struct {
	tree      sourcetree.SourceTree
	proc      *processor.Processor
	planOnly  *planner.Planner
	history   *session.History
	logs      *runlog.Store
	tel       *telemetry.Provider
}

func buildDeps(ctx context.Context) (*deps, error) {
	cfg := config.Get()

	var tree sourcetree.SourceTree
	var err error
	if cfg.Git.Enabled {
		tree, err = gittree.New(rootDir, "tac", cfg.Git.UseWorktree)
	} else {
		tree, err = shadowtree.New(rootDir)
	}
	if err != nil {
		return nil, fmt.Errorf("building source tree: %w", err)
	}

	logDir := cfg.Persist.RunLogDir
	if logDir == "" {
		logDir = filepath.Join(rootDir, ".tac_runs")
	}
	logs, err := runlog.NewStore(logDir)
	if err != nil {
		return nil, fmt.Errorf("opening run log store: %w", err)
	}

	tel, err := telemetry.Init("tac", cfg.Audit.Enabled)
	if err != nil {
		return nil, fmt.Errorf("initializing telemetry: %w", err)
	}

	history := session.NewHistory(50)
	plan := planner.New(registry.Default, cfg.General.MaxRetriesProtoblockCreation)
	exec := executor.New(registry.Default, tree, rootDir).WithTelemetry(tel)
	proc := processor.New(exec, plan, tree, logs, history, stdinPrompter{}).WithTelemetry(tel)

	return &deps{tree: tree, proc: proc, planOnly: plan, history: history, logs: logs, tel: tel}, nil
}

// mcpCodingToolName is the by-convention tool name every MCP coding-tool
// server exposes, per codingagent/mcpagent's own doc comment.
const mcpCodingToolName = "apply_change"

// buildCoder realizes the CodingAgent named by general.coding_agent.
func buildCoder(cfg *config.Config) (types.CodingAgent, error) {
	switch cfg.General.CodingAgent {
	case "", "subprocess":
		return subprocess.New(), nil
	case "mcp":
		for name, server := range cfg.MCP.Servers {
			if server.Enabled {
				return mcpagent.New(name, mcpCodingToolName)
			}
		}
		return nil, fmt.Errorf("coding_agent is \"mcp\" but no mcp.servers entry is enabled")
	default:
		return nil, fmt.Errorf("unknown coding_agent %q", cfg.General.CodingAgent)
	}
}

// buildDigest walks rootDir and produces a CodebaseView, using per-file
// AST summaries instead of full contents when use_file_summaries is set.
func buildDigest(cfg *config.Config) func(ctx context.Context) (types.CodebaseView, error) {
	return func(ctx context.Context) (types.CodebaseView, error) {
		view := types.CodebaseView{Files: map[string]string{}}

		err := filepath.WalkDir(rootDir, func(path string, d os.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() {
				if strings.HasPrefix(d.Name(), ".") && d.Name() != "." {
					return filepath.SkipDir
				}
				return nil
			}
			if !sourcetree.CodeExtensions[filepath.Ext(path)] {
				return nil
			}
			rel, relErr := filepath.Rel(rootDir, path)
			if relErr != nil {
				rel = path
			}

			src, readErr := os.ReadFile(path)
			if readErr != nil {
				return nil
			}

			if cfg.General.UseFileSummaries && filepath.Ext(path) == ".go" {
				s, sumErr := summary.Summarize(ctx, rel, src)
				if sumErr == nil {
					view.Files[rel] = s.HighLevel
					return nil
				}
			}
			view.Files[rel] = string(src)
			return nil
		})
		if err != nil {
			return types.CodebaseView{}, err
		}
		return view, nil
	}
}

// stdinPrompter resolves halts by asking on stdin/stdout. It defaults to
// ResolutionAuto when stdin isn't a terminal (non-interactive runs must
// never block waiting for input that will never come).
type stdinPrompter struct{}

func (stdinPrompter) Confirm(kind session.HaltKind, blockID, prompt string) session.Resolution {
	info, err := os.Stdin.Stat()
	if err != nil || (info.Mode()&os.ModeCharDevice) == 0 {
		return session.ResolutionAuto
	}

	fmt.Printf("\n[%s] block %s\n%s\n(c)ontinue / (a)bort / co(m)mit? ", kind, blockID, prompt)
	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "a", "abort":
		return session.ResolutionAbort
	case "m", "commit":
		return session.ResolutionCommit
	default:
		return session.ResolutionContinue
	}
}
