// Package orchestrator implements spec.md §4.12's multi-block
// decomposition: an LLM-driven splitter turns one oversized task into an
// ordered RecipeSet sharing a single branch, then runs the Processor
// once per recipe strictly in order, stopping at the first failure.
// Grounded on the same llm_validator.go retry/parse shape planner.go
// already adapts (reused here via the shared parse helper style rather
// than duplicated), and on spec.md §5's explicit "no parallelism within
// a block, Orchestrator processes recipes strictly in order" rule, which
// rules out the teacher's concurrent orchestration/coordinator.go as a
// structural model for this loop.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"tac/config"
	"tac/core/types"
	"tac/llm"
	"tac/processor"
	"tac/session"
	"tac/sourcetree"
	"tac/telemetry"
)

// Prompter resolves the confirm_multiblock_execution prompt.
type Prompter interface {
	Confirm(kind session.HaltKind, blockID, prompt string) session.Resolution
}

// DigestFunc produces a fresh textual codebase view, called once before
// the plan and again before every recipe (spec.md §4.12 step 4: "Refresh
// the codebase digest").
type DigestFunc func(ctx context.Context) (types.CodebaseView, error)

type Outcome struct {
	Success      bool
	RecipeSet    types.RecipeSet
	CompletedAt  int // index of the failing recipe, or len(Recipes) when all succeeded
	FailureType  string
	Analysis     string
}

type Orchestrator struct {
	proc     *processor.Processor
	tree     sourcetree.SourceTree
	digest   DigestFunc
	history  *session.History
	prompter Prompter
	tel      *telemetry.Provider
}

func New(proc *processor.Processor, tree sourcetree.SourceTree, digest DigestFunc, history *session.History, prompter Prompter) *Orchestrator {
	return &Orchestrator{proc: proc, tree: tree, digest: digest, history: history, prompter: prompter}
}

// WithTelemetry attaches a tracer; Run's span is a no-op until this is
// called. Split opens no span.
func (o *Orchestrator) WithTelemetry(tel *telemetry.Provider) *Orchestrator {
	o.tel = tel
	return o
}

const splitterSystemPrompt = `You decompose a large coding task into an ordered list of smaller recipes,
each small enough for a single coding-agent attempt. Respond with ONLY a
JSON object:
{
  "branch_name": "tac/shared-slug",
  "strategy": "why this decomposition",
  "invalidated_tests": ["path/to/existing_test.go", ...],
  "recipes": [
    {"title": "...", "description": "...", "dependencies": [], "branch_name": "tac/shared-slug"}
  ]
}
Order recipes so each one only depends on recipes earlier in the list.
Do not include any text outside the JSON object.`

// Split calls the strong LLM once to produce a RecipeSet for taskInstructions.
func (o *Orchestrator) Split(ctx context.Context, taskInstructions string, view types.CodebaseView) (types.RecipeSet, error) {
	if llm.Default == nil {
		return types.RecipeSet{}, fmt.Errorf("orchestrator: no LLM configured (llm.Default is nil)")
	}

	var b strings.Builder
	b.WriteString("Task:\n")
	b.WriteString(taskInstructions)
	b.WriteString("\n\nCodebase view:\n")
	for path, content := range view.Files {
		fmt.Fprintf(&b, "--- %s ---\n%s\n\n", path, content)
	}

	resp, err := llm.Default.Generate(ctx, llm.PurposeStrong, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: splitterSystemPrompt},
			{Role: "user", Content: b.String()},
		},
	})
	if err != nil {
		return types.RecipeSet{}, fmt.Errorf("orchestrator: splitter llm call failed: %w", err)
	}

	set, err := parseRecipeSet(resp.Content)
	if err != nil {
		return types.RecipeSet{}, fmt.Errorf("orchestrator: %w", err)
	}
	if len(set.Recipes) == 0 {
		return types.RecipeSet{}, fmt.Errorf("orchestrator: splitter produced no recipes")
	}
	for i := range set.Recipes {
		if set.Recipes[i].BranchName == "" {
			set.Recipes[i].BranchName = set.BranchName
		}
	}
	return set, nil
}

var codeFencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

func parseRecipeSet(content string) (types.RecipeSet, error) {
	trimmed := strings.TrimSpace(content)
	var set types.RecipeSet
	if err := json.Unmarshal([]byte(trimmed), &set); err == nil {
		return set, nil
	}
	if m := codeFencePattern.FindStringSubmatch(trimmed); m != nil {
		if err := json.Unmarshal([]byte(m[1]), &set); err == nil {
			return set, nil
		}
	}
	return types.RecipeSet{}, fmt.Errorf("splitter response is not valid JSON")
}

// Run executes spec.md §4.12's steps 1-5 for one RecipeSet.
func (o *Orchestrator) Run(ctx context.Context, set types.RecipeSet, coder types.CodingAgent) Outcome {
	if o.tel != nil {
		var span trace.Span
		ctx, span = o.tel.StartSpan(ctx, "orchestrator.run")
		defer span.End()
	}

	cfg := config.Get()

	if cfg.General.ConfirmMultiblockExecution && o.prompter != nil {
		plan := describePlan(set)
		res := o.prompter.Confirm(session.HaltConfirmMultiblock, set.BranchName, plan)
		o.history.Record(session.HaltConfirmMultiblock, set.BranchName, plan, res)
		if res == session.ResolutionAbort {
			return Outcome{Success: false, RecipeSet: set, FailureType: string(types.FailureUserAbort)}
		}
	}

	if err := o.tree.CreateOrSwitchToNamespacedBranch(ctx, set.BranchName); err != nil {
		return Outcome{Success: false, RecipeSet: set, FailureType: string(types.FailureSourceTree), Analysis: err.Error()}
	}

	// Force auto_push=false for the duration of multi-block execution:
	// the Processor reads config.Get() itself, so Run installs a copy of
	// the snapshot with AutoPushIfSuccess cleared and restores the
	// original when it returns.
	if cfg.Git.AutoPushIfSuccess {
		noPush := *cfg
		noPush.Git.AutoPushIfSuccess = false
		config.Set(&noPush)
		defer config.Set(cfg)
	}

	for i, recipe := range set.Recipes {
		view, err := o.digest(ctx)
		if err != nil {
			return Outcome{Success: false, RecipeSet: set, CompletedAt: i, FailureType: string(types.FailureSourceTree), Analysis: err.Error()}
		}

		outcome := o.proc.Run(ctx, recipe.Description, view, coder, nil)
		if !outcome.Success {
			return Outcome{
				Success:     false,
				RecipeSet:   set,
				CompletedAt: i,
				FailureType: outcome.FailureType,
				Analysis:    fmt.Sprintf("recipe %d (%q) failed: %s", i+1, recipe.Title, outcome.Analysis),
			}
		}

		if err := o.tree.Commit(ctx, commitMessageFor(recipe)); err != nil {
			return Outcome{Success: false, RecipeSet: set, CompletedAt: i, FailureType: string(types.FailureSourceTree), Analysis: err.Error()}
		}
	}

	return Outcome{Success: true, RecipeSet: set, CompletedAt: len(set.Recipes)}
}

func commitMessageFor(r types.Recipe) string {
	if strings.TrimSpace(r.Title) == "" {
		return "apply recipe"
	}
	return r.Title
}

func describePlan(set types.RecipeSet) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Strategy: %s\nBranch: %s\nRecipes:\n", set.Strategy, set.BranchName)
	for i, r := range set.Recipes {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, r.Title)
	}
	if len(set.InvalidatedTests) > 0 {
		fmt.Fprintf(&b, "May invalidate: %s\n", strings.Join(set.InvalidatedTests, ", "))
	}
	return b.String()
}
