// Package erroranalyzer turns a failed attempt's raw output into the two
// sections the next Planner call consumes, per spec.md §4.13: a prose
// strategy fed back verbatim, and a machine-readable list of extra paths
// the coding agent should be allowed to touch next time.
package erroranalyzer

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"tac/core/types"
	"tac/erroranalyzer/classifier"
	"tac/llm"
)

const systemPrompt = `You are the error analyst for an automated coding loop. You are given a
task description, the code the last attempt produced or touched, and the raw
failure output (test failures, a trust-agent report, or a coding-agent
exception). Produce exactly two sections, in this order, using these exact
headers:

NEW STRATEGY FOR SOLVING THE TASK
<prose the next planning pass should follow verbatim to avoid repeating this
failure. Be concrete: name the failing behavior and what should change.>

MISSING WRITE FILES
<one relative file path per line that the next attempt should additionally
be allowed to edit, beyond what it already could. Leave this section empty
(just the header) if no additional files are needed.>`

// Analysis is the parsed two-section ErrorAnalyzer output.
type Analysis struct {
	Strategy          string   // fed back to the Planner verbatim
	MissingWriteFiles []string // surfaced to the user, never auto-applied
	Raw               string   // full LLM response, for the Report component
}

var sectionHeader = regexp.MustCompile(`(?m)^(NEW STRATEGY FOR SOLVING THE TASK|MISSING WRITE FILES)\s*$`)

// Analyze asks the strong LLM to produce a strategy and a missing-files
// list from a failed attempt's context.
func Analyze(ctx context.Context, block *types.ProtoBlock, failureOutput string, view types.CodebaseView) (Analysis, error) {
	hint := classifier.Classify(failureOutput)

	var codebase strings.Builder
	for path, content := range view.Files {
		fmt.Fprintf(&codebase, "=== %s ===\n%s\n\n", path, content)
	}

	userPrompt := fmt.Sprintf(
		"TASK:\n%s\n\nFILES THE LAST ATTEMPT COULD WRITE:\n%s\n\nHEURISTIC HINT: %s failure (%s), touching roughly %d file(s), %d distinct error(s): %s\n\nFAILURE OUTPUT:\n%s\n\nCODEBASE:\n%s",
		block.TaskDescription,
		strings.Join(block.WriteFiles, ", "),
		hint.Severity, hint.ErrorType, hint.FilesCount, hint.ErrorCount, hint.Hint,
		truncate(failureOutput, 12000),
		truncate(codebase.String(), 20000),
	)

	if llm.Default == nil {
		return Analysis{}, fmt.Errorf("erroranalyzer: no LLM manager configured")
	}

	resp, err := llm.Default.Generate(ctx, llm.PurposeStrong, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return Analysis{}, fmt.Errorf("erroranalyzer: LLM call failed: %w", err)
	}

	return parse(resp.Content), nil
}

func parse(raw string) Analysis {
	locs := sectionHeader.FindAllStringSubmatchIndex(raw, -1)
	a := Analysis{Raw: raw}

	if len(locs) == 0 {
		a.Strategy = strings.TrimSpace(raw)
		return a
	}

	for i, loc := range locs {
		header := raw[loc[2]:loc[3]]
		bodyStart := loc[1]
		bodyEnd := len(raw)
		if i+1 < len(locs) {
			bodyEnd = locs[i+1][0]
		}
		body := strings.TrimSpace(raw[bodyStart:bodyEnd])

		switch header {
		case "NEW STRATEGY FOR SOLVING THE TASK":
			a.Strategy = body
		case "MISSING WRITE FILES":
			a.MissingWriteFiles = parseFileList(body)
		}
	}

	if a.Strategy == "" {
		a.Strategy = strings.TrimSpace(raw)
	}
	return a
}

func parseFileList(body string) []string {
	if body == "" {
		return nil
	}
	var files []string
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "-"))
		line = strings.TrimSpace(line)
		if line != "" {
			files = append(files, line)
		}
	}
	return files
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "\n... (truncated)"
}
