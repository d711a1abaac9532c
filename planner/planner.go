// Package planner turns a task description plus a codebase digest into a
// validated ProtoBlock, per spec.md §4.8. Grounded on the teacher's
// agent/base/llm_validator.go (CallLLMWithValidation's retry-with-backoff
// shape and its raw-then-extracted JSON parse attempts) generalized from
// a {"tool", "arguments"} tool-call schema to the ProtoBlock schema, and
// on core/registry's GenerateAgentPrompts/GenerateSectionsForOutputFormat
// for describing available trust agents to the LLM.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"time"

	"tac/core/registry"
	"tac/core/types"
	"tac/llm"
)

// Planner generates ProtoBlocks from task instructions and a codebase
// view, validating and retrying until the result satisfies
// ReadinessChecks or the retry budget is exhausted.
type Planner struct {
	registry   *registry.Registry
	readiness  *ReadinessChecks
	maxRetries int
}

func New(r *registry.Registry, maxRetries int) *Planner {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Planner{registry: r, readiness: NewReadinessChecks(r), maxRetries: maxRetries}
}

// rawProtoBlock is the JSON shape the LLM is asked to produce, per
// spec.md §4.8 step 2's field list.
type rawProtoBlock struct {
	Task               string            `json:"task"`
	WriteFiles         []string          `json:"write_files"`
	ContextFiles       []string          `json:"context_files"`
	CommitMessage      string            `json:"commit_message"`
	BranchName         string            `json:"branch_name"`
	TrustyAgents       []string          `json:"trusty_agents"`
	TrustyAgentPrompts map[string]string `json:"trusty_agent_prompts"`
}

const systemPromptTemplate = `You are the planning stage of an autonomous coding system. Given a task and a
view of the codebase, produce a single JSON object describing the work to do.

Available trust agents (verification steps that will run after the code is
written):
%s

%s

Respond with ONLY a JSON object with these fields:
{
  "task": "restated, precise task description",
  "write_files": ["relative/path/to/file.go", ...],
  "context_files": ["relative/path/to/other.go", ...],
  "commit_message": "short imperative commit message",
  "branch_name": "tac/short-slug",
  "trusty_agents": ["pytest", "plausibility", ...],
  "trusty_agent_prompts": {"vision": "describe what the screenshot should show"}
}

Do not include any text outside the JSON object.`

// Plan runs the full generate/validate/retry algorithm and returns a
// ready-to-execute ProtoBlock.
func (p *Planner) Plan(ctx context.Context, taskInstructions string, view types.CodebaseView, previousAnalysis string) (*types.ProtoBlock, error) {
	if llm.Default == nil {
		return nil, fmt.Errorf("planner: no LLM configured (llm.Default is nil)")
	}

	userPrompt := p.buildUserPrompt(taskInstructions, view, previousAnalysis)
	systemPrompt := p.buildSystemPrompt()

	var lastErrs []string
	for attempt := 1; attempt <= p.maxRetries; attempt++ {
		resp, err := llm.Default.Generate(ctx, llm.PurposeStrong, llm.Request{
			Messages: []llm.Message{
				{Role: "system", Content: systemPrompt},
				{Role: "user", Content: userPrompt},
			},
		})
		if err != nil {
			lastErrs = []string{fmt.Sprintf("llm call failed: %v", err)}
		} else {
			raw, perr := parse(resp.Content)
			if perr != nil {
				lastErrs = []string{fmt.Sprintf("parse failed: %v", perr)}
			} else {
				block := p.normalize(raw)
				if ok, errs := p.readiness.Check(block); ok {
					return block, nil
				} else {
					lastErrs = errs
					userPrompt = p.buildUserPrompt(taskInstructions, view, previousAnalysis) +
						"\n\nYour previous response failed validation:\n- " + strings.Join(errs, "\n- ") +
						"\n\nFix these issues and respond again with ONLY the corrected JSON object."
				}
			}
		}

		if attempt < p.maxRetries {
			backoff := time.Duration(attempt) * 200 * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	return nil, fmt.Errorf("planner: exhausted %d retries, last errors: %s", p.maxRetries, strings.Join(lastErrs, "; "))
}

func (p *Planner) buildSystemPrompt() string {
	agentList := "(no trust agents registered)"
	agentPrompts := ""
	if p.registry != nil {
		agentList = p.registry.GenerateSectionsForOutputFormat()
		agentPrompts = p.registry.GenerateAgentPrompts()
	}
	return fmt.Sprintf(systemPromptTemplate, agentList, agentPrompts)
}

func (p *Planner) buildUserPrompt(taskInstructions string, view types.CodebaseView, previousAnalysis string) string {
	var b strings.Builder
	if previousAnalysis != "" {
		b.WriteString("AVOID THIS FAILURE (from a previous attempt):\n")
		b.WriteString(previousAnalysis)
		b.WriteString("\n\n")
	}
	b.WriteString("Task:\n")
	b.WriteString(taskInstructions)
	b.WriteString("\n\nCodebase view:\n")
	for path, content := range view.Files {
		fmt.Fprintf(&b, "--- %s ---\n%s\n\n", path, content)
	}
	return b.String()
}

// parse attempts a raw JSON decode first, falling back to a code-fence-
// stripped decode (spec.md §4.8 step 3's "two attempts"), and finally to
// decoding the first {...} object embedded in the stripped text.
func parse(content string) (rawProtoBlock, error) {
	var out rawProtoBlock
	trimmed := strings.TrimSpace(content)

	if err := json.Unmarshal([]byte(trimmed), &out); err == nil {
		return out, nil
	}

	stripped := stripCodeFence(trimmed)
	if err := json.Unmarshal([]byte(stripped), &out); err == nil {
		return out, nil
	}

	if extracted := extractJSONObject(stripped); extracted != "" {
		if err := json.Unmarshal([]byte(extracted), &out); err == nil {
			return out, nil
		}
	}

	return rawProtoBlock{}, fmt.Errorf("response is not valid JSON after three parse attempts")
}

var codeFencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

func stripCodeFence(s string) string {
	if m := codeFencePattern.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return s
}

// extractJSONObject finds the first balanced {...} span, mirroring the
// teacher's brace-counting extractJSON helper (there keyed on a fixed
// `{"tool"` prefix; here any opening brace qualifies since a ProtoBlock
// response has no fixed leading field).
func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	if start == -1 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			escaped = true
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return s[start : i+1]
				}
			}
		}
	}
	return ""
}

var nonWordPattern = regexp.MustCompile(`[^a-z0-9]+`)

// normalize applies spec.md §4.8 step 4's per-field rules: trust agent
// augmentation, path cleanup, and branch-name synthesis.
func (p *Planner) normalize(raw rawProtoBlock) *types.ProtoBlock {
	writeFiles := cleanPaths(raw.WriteFiles)
	block := &types.ProtoBlock{
		TaskDescription:    strings.TrimSpace(raw.Task),
		WriteFiles:         writeFiles,
		ContextFiles:       removeOverlap(cleanPaths(raw.ContextFiles), writeFiles),
		CommitMessage:      strings.TrimSpace(raw.CommitMessage),
		BranchName:         strings.TrimSpace(raw.BranchName),
		TrustyAgents:       augmentMandatory(p.registry, raw.TrustyAgents),
		TrustyAgentPrompts: raw.TrustyAgentPrompts,
	}
	if block.TrustyAgentPrompts == nil {
		block.TrustyAgentPrompts = map[string]string{}
	}
	if block.BranchName == "" || !strings.Contains(block.BranchName, "/") {
		block.BranchName = synthesizeBranchName(block.TaskDescription)
	}
	return block
}

func cleanPaths(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		p = strings.TrimSpace(strings.TrimPrefix(p, "./"))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// removeOverlap drops from contextFiles any path already present in
// writeFiles, enforcing write_files ∩ context_files = ∅ (spec §3, §8
// invariant 2) rather than leaving a planner/LLM result that lists the
// same path in both sets.
func removeOverlap(contextFiles, writeFiles []string) []string {
	written := make(map[string]bool, len(writeFiles))
	for _, p := range writeFiles {
		written[p] = true
	}
	out := make([]string, 0, len(contextFiles))
	for _, p := range contextFiles {
		if !written[p] {
			out = append(out, p)
		}
	}
	return out
}

func augmentMandatory(r *registry.Registry, agents []string) []string {
	seen := make(map[string]bool, len(agents))
	out := append([]string(nil), agents...)
	for _, a := range agents {
		seen[a] = true
	}
	if r != nil {
		for _, m := range r.MandatoryNames() {
			if !seen[m] {
				out = append(out, m)
				seen[m] = true
			}
		}
	}
	return out
}

// synthesizeBranchName builds a namespaced branch name from the first
// few words of the task description, falling back to a timestamp-free
// random suffix (Date.now()-style uniqueness is unavailable here) when
// the description yields nothing usable.
func synthesizeBranchName(task string) string {
	slug := nonWordPattern.ReplaceAllString(strings.ToLower(task), "-")
	slug = strings.Trim(slug, "-")
	words := strings.Split(slug, "-")
	if len(words) > 6 {
		words = words[:6]
	}
	slug = strings.Join(words, "-")
	if slug == "" {
		slug = "task-" + strconv.Itoa(rand.Int())
	}
	return "tac/" + slug
}
