// Package plausibility is the mandatory "plausibility" trust agent: it
// asks the strong LLM to grade a change A-F against the task it was meant
// to solve, per spec.md §4.4. Grounded on the teacher's llm/manager.go
// tiered-purpose Generate call (same Request/Response shape) — there is no
// direct teacher equivalent of LLM-as-judge grading, so the prompt itself
// is original, built the way the Planner's prompt is assembled.
package plausibility

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"tac/core/types"
	"tac/llm"
)

const AgentName = "plausibility"

const systemPrompt = `You are grading whether a code change plausibly accomplishes the task it
claims to. You will be given the task description, the diff that was
produced, and relevant source files. Grade the change on this scale:

A - fully accomplishes the task, no notable gaps
B - accomplishes the task with minor gaps or rough edges
C - partially accomplishes the task; significant gaps remain
D - mostly fails to accomplish the task
F - does not address the task, or actively breaks something important

Respond with a line "GRADE: <letter>" followed by a paragraph of
justification.`

type Agent struct{}

func New() types.TrustAgent { return &Agent{} }

var gradeLine = regexp.MustCompile(`(?i)GRADE:\s*([A-F])`)

func (a *Agent) Check(ctx context.Context, block *types.ProtoBlock, view types.CodebaseView, codeDiff string) (types.Result, error) {
	if llm.Default == nil {
		return types.Result{}, fmt.Errorf("plausibility: no LLM manager configured")
	}

	var codebase strings.Builder
	for path, content := range view.Files {
		fmt.Fprintf(&codebase, "=== %s ===\n%s\n\n", path, content)
	}

	userPrompt := fmt.Sprintf(
		"TASK:\n%s\n\nDIFF:\n%s\n\nRELEVANT FILES:\n%s",
		block.TaskDescription, truncate(codeDiff, 20000), truncate(codebase.String(), 20000),
	)

	resp, err := llm.Default.Generate(ctx, llm.PurposeStrong, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: 0.1,
	})
	if err != nil {
		return types.Result{}, fmt.Errorf("plausibility: LLM call failed: %w", err)
	}

	letter := extractGrade(resp.Content)
	pass := letter == "A" || letter == "B"

	result := types.Result{
		Success:   pass,
		AgentType: AgentName,
		Summary:   fmt.Sprintf("plausibility grade %s", letter),
	}
	result.Components = append(result.Components,
		types.GradeComp(letter, "A-F", "LLM plausibility grade against the task description"),
		types.ReportComp("plausibility justification", resp.Content),
	)
	return result, nil
}

func extractGrade(content string) string {
	m := gradeLine.FindStringSubmatch(content)
	if m == nil {
		return "F"
	}
	return strings.ToUpper(m[1])
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "\n... (truncated)"
}

var _ types.TrustAgent = (*Agent)(nil)
