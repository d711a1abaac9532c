// Package processor implements spec.md §4.10's retry loop around the
// Executor: attempt 0 uses an externally-supplied ProtoBlock or calls the
// Planner; later attempts revert the working tree to the attempt-0
// baseline (when git is enabled), optionally halt for interactive
// recovery, and re-plan with the previous failure's analysis folded into
// the task description. On success it commits honoring
// auto_commit_if_success and halt_after_verify; on exhaustion it logs
// cleanup instructions and returns failure. There is no single teacher
// file this adapts — spec.md §5's strictly-sequential retry loop has no
// shape in common with the teacher's concurrent task queue
// (agent/queue.go, agent/orchestration/coordinator.go) — so this is
// built directly from spec.md §4.10's numbered steps, reusing
// session.History (already adapted from the teacher's chat History ring
// buffer) for the halt bookkeeping it names.
package processor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"tac/config"
	"tac/core/types"
	"tac/executor"
	"tac/planner"
	"tac/runlog"
	"tac/session"
	"tac/sourcetree"
	"tac/telemetry"
)

// Prompter resolves an interactive halt point. The non-interactive
// default (no tty, or Prompter is nil) is ResolutionAuto, which means
// "proceed without stopping" — a cron/headless run must never block.
type Prompter interface {
	Confirm(kind session.HaltKind, blockID, prompt string) session.Resolution
}

// Outcome is the Processor's final result for one task's worth of
// retries.
type Outcome struct {
	Success     bool
	Attempts    int
	ProtoBlock  *types.ProtoBlock
	FailureType string
	Analysis    string
}

type Processor struct {
	exec     *executor.Executor
	plan     *planner.Planner
	tree     sourcetree.SourceTree
	logs     *runlog.Store
	history  *session.History
	prompter Prompter
	tel      *telemetry.Provider
}

func New(exec *executor.Executor, plan *planner.Planner, tree sourcetree.SourceTree, logs *runlog.Store, history *session.History, prompter Prompter) *Processor {
	return &Processor{exec: exec, plan: plan, tree: tree, logs: logs, history: history, prompter: prompter}
}

// WithTelemetry attaches a tracer; Run spans are no-ops until this is
// called.
func (p *Processor) WithTelemetry(tel *telemetry.Provider) *Processor {
	p.tel = tel
	return p
}

// Run drives the retry loop for one task, optionally seeded with an
// externally-provided ProtoBlock for attempt 0.
func (p *Processor) Run(ctx context.Context, taskInstructions string, view types.CodebaseView, coder types.CodingAgent, seed *types.ProtoBlock) Outcome {
	if p.tel != nil {
		var span trace.Span
		ctx, span = p.tel.StartSpan(ctx, "processor.run")
		defer span.End()
	}

	cfg := config.Get()
	maxAttempts := cfg.General.MaxRetriesBlockCreation
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var block *types.ProtoBlock
	var baselineCaptured bool
	previousAnalysis := ""

	for i := 0; i < maxAttempts; i++ {
		var err error
		if i == 0 {
			if seed != nil {
				block = seed.Clone()
			} else {
				block, err = p.plan.Plan(ctx, taskInstructions, view, "")
			}
		} else {
			if p.prompter != nil && cfg.General.HaltAfterFail {
				res := p.prompter.Confirm(session.HaltAfterFail, block.BlockID, "attempt failed; continue to the next retry?")
				p.history.Record(session.HaltAfterFail, block.BlockID, "attempt failed; continue to the next retry?", res)
				if res == session.ResolutionAbort {
					return Outcome{Success: false, Attempts: i, ProtoBlock: block, FailureType: string(types.FailureUserAbort)}
				}
			}

			if cfg.Git.Enabled && baselineCaptured {
				if revertErr := p.tree.RevertChanges(ctx); revertErr != nil {
					return Outcome{Success: false, Attempts: i, ProtoBlock: block, FailureType: string(types.FailureSourceTree), Analysis: revertErr.Error()}
				}
			}

			avoidPreamble := fmt.Sprintf("AVOID THIS FAILURE from the previous attempt:\n%s\n\nOriginal task:\n%s", previousAnalysis, taskInstructions)
			next, planErr := p.plan.Plan(ctx, avoidPreamble, view, previousAnalysis)
			if planErr == nil {
				next.BlockID = block.BlockID
				next.BranchName = block.BranchName
				next.CommitMessage = block.CommitMessage
			}
			block, err = next, planErr
		}

		if err != nil {
			return Outcome{Success: false, Attempts: i + 1, FailureType: string(types.FailurePlannerValidation), Analysis: err.Error()}
		}
		if block.BlockID == "" {
			block.BlockID = uuid.NewString()
		}

		if i == 0 {
			if nsErr := p.tree.CreateOrSwitchToNamespacedBranch(ctx, block.BranchName); nsErr != nil {
				return Outcome{Success: false, Attempts: 1, ProtoBlock: block, FailureType: string(types.FailureSourceTree), Analysis: nsErr.Error()}
			}
			baselineCaptured = true
		}

		block.AttemptNumber = i + 1

		result := p.exec.ExecuteBlock(ctx, block, coder, previousAnalysis, view)
		p.recordAttempt(block, result)

		if result.Success {
			if p.prompter != nil && cfg.General.HaltAfterVerify {
				res := p.prompter.Confirm(session.HaltAfterVerify, block.BlockID, "verification passed; commit now?")
				p.history.Record(session.HaltAfterVerify, block.BlockID, "verification passed; commit now?", res)
				if res == session.ResolutionAbort {
					return Outcome{Success: false, Attempts: i + 1, ProtoBlock: block, FailureType: string(types.FailureUserAbort)}
				}
			}
			if cfg.Git.Enabled {
				if commitErr := p.tree.PostExecutionHandle(ctx, cfg.Git.AutoCommitIfSuccess, cfg.Git.AutoPushIfSuccess, block.CommitMessage); commitErr != nil {
					return Outcome{Success: false, Attempts: i + 1, ProtoBlock: block, FailureType: string(types.FailureSourceTree), Analysis: commitErr.Error()}
				}
			}
			return Outcome{Success: true, Attempts: i + 1, ProtoBlock: block}
		}

		previousAnalysis = result.Analysis
	}

	cleanup := fmt.Sprintf("exhausted %d attempt(s) on branch %q; restore with `git checkout %s` or discard with `git branch -D %s`",
		maxAttempts, blockBranch(block), blockBranch(block), blockBranch(block))
	return Outcome{
		Success:     false,
		Attempts:    maxAttempts,
		ProtoBlock:  block,
		FailureType: "RetriesExhausted",
		Analysis:    strings.TrimSpace(previousAnalysis + "\n\n" + cleanup),
	}
}

func blockBranch(b *types.ProtoBlock) string {
	if b == nil {
		return "<unknown>"
	}
	return b.BranchName
}

func (p *Processor) recordAttempt(block *types.ProtoBlock, outcome executor.Outcome) {
	if p.logs == nil {
		return
	}
	_ = p.logs.AppendExecution(block.BlockID, nil, runlog.Execution{
		ProtoBlock:      *block,
		Timestamp:       time.Now().Format(time.RFC3339),
		Attempt:         block.AttemptNumber,
		Success:         outcome.Success,
		Message:         outcome.FailureType,
		FailureAnalysis: outcome.Analysis,
	})
}
