// Package executor implements spec.md §4.9's single operation,
// execute_block: drive one ProtoBlock through capture_before_state hooks,
// the CodingAgent, post-coding hygiene, and the declared trust agents in
// order, short-circuiting on pytest failure. Grounded on the ordering and
// short-circuit rules spec.md §4.9 names explicitly; there is no teacher
// analogue for this exact control flow (the teacher's closest shape,
// agent/orchestration/coordinator.go, runs steps concurrently across
// tasks, which spec.md §5 explicitly rules out here), so the step
// sequence is built directly from the spec text rather than adapted from
// a single teacher file.
package executor

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/trace"

	"tac/core/registry"
	"tac/core/types"
	"tac/erroranalyzer"
	"tac/sourcetree"
	"tac/telemetry"
)

// Outcome is execute_block's result: success/failure plus, on failure,
// the failure_type classification and an optional ErrorAnalyzer report.
type Outcome struct {
	Success     bool
	FailureType string
	Analysis    string
	Result      types.Result
}

type Executor struct {
	registry *registry.Registry
	tree     sourcetree.SourceTree
	rootDir  string
	tel      *telemetry.Provider
}

func New(r *registry.Registry, tree sourcetree.SourceTree, rootDir string) *Executor {
	return &Executor{registry: r, tree: tree, rootDir: rootDir}
}

// WithTelemetry attaches a tracer; ExecuteBlock spans are no-ops until
// this is called.
func (e *Executor) WithTelemetry(tel *telemetry.Provider) *Executor {
	e.tel = tel
	return e
}

// ExecuteBlock runs spec.md §4.9's five steps for one ProtoBlock attempt.
func (e *Executor) ExecuteBlock(ctx context.Context, block *types.ProtoBlock, coder types.CodingAgent, previousAnalysis string, view types.CodebaseView) Outcome {
	if e.tel != nil {
		var span trace.Span
		ctx, span = e.tel.StartSpan(ctx, "executor.execute_block", telemetry.BlockAttrs(block.BlockID, block.AttemptNumber)...)
		defer span.End()
	}

	agents, err := e.resolveAgents(block.TrustyAgents)
	if err != nil {
		return Outcome{Success: false, FailureType: "PlannerValidationError", Analysis: err.Error()}
	}

	// Step 1: capture_before_state hooks on comparative agents, before
	// the coding agent has touched anything.
	for name, agent := range agents {
		injectable, ok := agent.(types.ProtoBlockInjectable)
		if ok {
			injectable.SetProtoBlock(block)
		}
		capturer, ok := agent.(types.BeforeStateCapturer)
		if !ok {
			continue
		}
		if err := capturer.CaptureBeforeState(ctx, block); err != nil {
			return Outcome{Success: false, FailureType: fmt.Sprintf("before-state capture failed for %s", name), Analysis: err.Error()}
		}
	}

	// Step 2: run the coding agent. Any error maps to
	// "Exception during agent execution" and an ErrorAnalyzer pass over
	// the exception text.
	codingResult, err := coder.Run(ctx, block, previousAnalysis)
	if err != nil {
		analysis := e.analyzeFailure(ctx, block, err.Error(), view)
		return Outcome{Success: false, FailureType: string(types.FailureAgentException), Analysis: analysis, Result: codingResult}
	}

	// Step 3: post-process the working tree.
	if err := flattenNestedTestDirs(e.rootDir); err != nil {
		return Outcome{Success: false, FailureType: "post-processing failed", Analysis: err.Error()}
	}

	codeDiff, err := e.tree.CompleteDiff(ctx)
	if err != nil {
		return Outcome{Success: false, FailureType: string(types.FailureSourceTree), Analysis: err.Error()}
	}

	// Step 4: run each declared trust agent in order.
	for _, name := range block.TrustyAgents {
		agent := agents[name]

		if optOut, ok := agent.(types.MandatoryOptOut); ok {
			if run, reason := optOut.ShouldRunMandatory(block, view); !run {
				_ = reason
				continue
			}
		}

		result, err := agent.Check(ctx, block, view, codeDiff)
		if err != nil {
			analysis := e.analyzeFailure(ctx, block, err.Error(), view)
			return Outcome{Success: false, FailureType: fmt.Sprintf("%s agent error", name), Analysis: analysis, Result: result}
		}

		if block.TrustyAgentResults == nil {
			block.TrustyAgentResults = map[string]types.Result{}
		}
		block.TrustyAgentResults[name] = result

		if !result.Success {
			if name == "pytest" {
				analysis := e.analyzeFailure(ctx, block, result.Summary, view)
				return Outcome{Success: false, FailureType: string(types.FailureTestsFailed), Analysis: analysis, Result: result}
			}
			analysis := e.analyzeFailure(ctx, block, result.Summary, view)
			return Outcome{Success: false, FailureType: fmt.Sprintf("%s failed", name), Analysis: analysis, Result: result}
		}
	}

	// Step 5: every agent passed or opted out.
	return Outcome{Success: true, Result: codingResult}
}

func (e *Executor) resolveAgents(names []string) (map[string]types.TrustAgent, error) {
	agents := make(map[string]types.TrustAgent, len(names))
	for _, name := range names {
		agent, err := e.registry.Resolve(name)
		if err != nil {
			return nil, fmt.Errorf("executor: %w", err)
		}
		agents[name] = agent
	}
	return agents, nil
}

// analyzeFailure runs the ErrorAnalyzer and returns its strategy text,
// swallowing its own errors (an error-analysis failure must never mask
// the original failure being reported).
func (e *Executor) analyzeFailure(ctx context.Context, block *types.ProtoBlock, failureOutput string, view types.CodebaseView) string {
	analysis, err := erroranalyzer.Analyze(ctx, block, failureOutput, view)
	if err != nil {
		return failureOutput
	}
	return analysis.Strategy
}
