// Package types holds the shared domain model: ProtoBlock, Result and its
// component sum type, Recipe/RecipeSet, and the TrustAgent/CodingAgent
// contracts every other package builds on.
package types

import (
	"context"
	"time"
)

// FailureKind is a fixed vocabulary of error kinds, carried as values (not
// Go error types) so the Processor can switch on them without type assertions.
type FailureKind string

const (
	FailurePlannerValidation   FailureKind = "PlannerValidationError"
	FailureCodingAgent         FailureKind = "CodingAgentFailure"
	FailureCodingAgentTimeout  FailureKind = "CodingAgentTimeout"
	FailureTrustAgent          FailureKind = "TrustAgentFailure"
	FailureTestsFailed         FailureKind = "TestsFailed"
	FailureSourceTree          FailureKind = "SourceTreeError"
	FailureUserAbort           FailureKind = "UserAbort"
	FailureAgentException      FailureKind = "Exception during agent execution"
)

// Failure describes why an attempt did not succeed.
type Failure struct {
	Kind    FailureKind
	Agent   string // populated for FailureTrustAgent: the agent name
	Message string
}

func (f *Failure) Error() string {
	if f == nil {
		return ""
	}
	if f.Agent != "" {
		return string(f.Kind) + "(" + f.Agent + "): " + f.Message
	}
	return string(f.Kind) + ": " + f.Message
}

// VisualMetadata carries an optional image reference for tasks that describe
// a visual change.
type VisualMetadata struct {
	ImageURL          string `json:"image_url"`
	VisualDescription string `json:"visual_description"`
}

// ProtoBlock is the contract unit between planning and execution.
type ProtoBlock struct {
	BlockID            string                `json:"block_id"`
	TaskDescription    string                `json:"task_description"`
	WriteFiles         []string              `json:"write_files"`
	ContextFiles       []string              `json:"context_files"`
	TrustyAgents       []string              `json:"trusty_agents"`
	TrustyAgentPrompts map[string]string     `json:"trusty_agent_prompts"`
	BranchName         string                `json:"branch_name"`
	CommitMessage      string                `json:"commit_message"`
	AttemptNumber      int                   `json:"attempt_number"`
	TrustyAgentResults map[string]Result     `json:"trusty_agent_results"`
	VisualMetadata     *VisualMetadata       `json:"visual_metadata,omitempty"`
}

// Clone returns a deep-enough copy for use as the next attempt's working
// ProtoBlock: slices and maps are copied so mutating the copy never reaches
// back into a previous attempt's recorded state.
func (p *ProtoBlock) Clone() *ProtoBlock {
	clone := *p
	clone.WriteFiles = append([]string(nil), p.WriteFiles...)
	clone.ContextFiles = append([]string(nil), p.ContextFiles...)
	clone.TrustyAgents = append([]string(nil), p.TrustyAgents...)
	clone.TrustyAgentPrompts = make(map[string]string, len(p.TrustyAgentPrompts))
	for k, v := range p.TrustyAgentPrompts {
		clone.TrustyAgentPrompts[k] = v
	}
	clone.TrustyAgentResults = make(map[string]Result, len(p.TrustyAgentResults))
	for k, v := range p.TrustyAgentResults {
		clone.TrustyAgentResults[k] = v
	}
	return &clone
}

// ComponentType discriminates the Result component sum type on the wire.
type ComponentType string

const (
	ComponentGrade      ComponentType = "grade"
	ComponentReport     ComponentType = "report"
	ComponentScreenshot ComponentType = "screenshot"
	ComponentComparison ComponentType = "comparison"
	ComponentMetric     ComponentType = "metric"
	ComponentError      ComponentType = "error"
)

// Component is a single renderable piece of a Result. Exactly one of the
// typed payload fields is populated, selected by Type.
type Component struct {
	Type ComponentType `json:"component_type"`

	Grade      *GradeComponent      `json:"grade,omitempty"`
	Report     *ReportComponent     `json:"report,omitempty"`
	Screenshot *ScreenshotComponent `json:"screenshot,omitempty"`
	Comparison *ComparisonComponent `json:"comparison,omitempty"`
	Metric     *MetricComponent     `json:"metric,omitempty"`
	Error      *ErrorComponent      `json:"error,omitempty"`
}

type GradeComponent struct {
	Letter      string `json:"letter"`
	Scale       string `json:"scale"` // e.g. "A-F" or "0.0-5.0"
	Description string `json:"description"`
}

type ReportComponent struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type ScreenshotComponent struct {
	Path   string `json:"path"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type ComparisonComponent struct {
	Before    string `json:"before"`
	After     string `json:"after"`
	Reference string `json:"reference,omitempty"`
}

// MetricDirection says which way is "better" for a Metric's value.
type MetricDirection string

const (
	DirectionImprove MetricDirection = "improve"
	DirectionRegress MetricDirection = "regress"
)

type MetricComponent struct {
	Name      string          `json:"name"`
	Value     float64         `json:"value"`
	Unit      string          `json:"unit"`
	Threshold *float64        `json:"threshold,omitempty"`
	Direction MetricDirection `json:"direction,omitempty"`
}

type ErrorComponent struct {
	ErrorType  string `json:"type"`
	Message    string `json:"message"`
	Stacktrace string `json:"stacktrace,omitempty"`
}

func GradeComp(letter, scale, description string) Component {
	return Component{Type: ComponentGrade, Grade: &GradeComponent{Letter: letter, Scale: scale, Description: description}}
}

func ReportComp(title, body string) Component {
	return Component{Type: ComponentReport, Report: &ReportComponent{Title: title, Body: body}}
}

func ScreenshotComp(path string, w, h int) Component {
	return Component{Type: ComponentScreenshot, Screenshot: &ScreenshotComponent{Path: path, Width: w, Height: h}}
}

func ComparisonComp(before, after, reference string) Component {
	return Component{Type: ComponentComparison, Comparison: &ComparisonComponent{Before: before, After: after, Reference: reference}}
}

func MetricComp(name string, value float64, unit string, threshold *float64, direction MetricDirection) Component {
	return Component{Type: ComponentMetric, Metric: &MetricComponent{Name: name, Value: value, Unit: unit, Threshold: threshold, Direction: direction}}
}

func ErrorComp(errType, message, stacktrace string) Component {
	return Component{Type: ComponentError, Error: &ErrorComponent{ErrorType: errType, Message: message, Stacktrace: stacktrace}}
}

// Result is the tagged container every TrustAgent (and the CodingAgent,
// for its own exceptional outcomes) produces.
type Result struct {
	Success    bool                   `json:"success"`
	AgentType  string                 `json:"agent_type"`
	Summary    string                 `json:"summary"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Components []Component            `json:"components,omitempty"`
}

// Recipe is one item in the Orchestrator's decomposition of a large task.
type Recipe struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Dependencies []string `json:"dependencies,omitempty"`
	BranchName   string   `json:"branch_name"`

	// Ready/Done are advisory DoR/DoD-style markers; nothing in the
	// Orchestrator sets or logs them, and they do not gate execution.
	Ready bool `json:"ready"`
	Done  bool `json:"done"`
}

// RecipeSet is the Orchestrator's full decomposition of one task.
type RecipeSet struct {
	BranchName          string   `json:"branch_name"`
	Strategy            string   `json:"strategy"`
	Recipes             []Recipe `json:"recipes"`
	InvalidatedTests    []string `json:"invalidated_tests,omitempty"`
}

// PromptTarget says which prompt a registry entry's protoblock_prompt is
// meant for: the Planner building a ProtoBlock, or directly a trust agent.
type PromptTarget string

const (
	PromptTargetCodingAgent PromptTarget = "coding_agent"
	PromptTargetTrustyAgent PromptTarget = "trusty_agent"
)

// AgentDescription is a TrustAgent registry entry's declarative metadata.
type AgentDescription struct {
	Name            string       `json:"name"`
	Description     string       `json:"description"`
	ProtoblockPrompt string      `json:"protoblock_prompt"`
	PromptTarget    PromptTarget `json:"prompt_target"`
	Mandatory       bool         `json:"mandatory"`
}

// CodebaseView is the textual digest the Planner and ErrorAnalyzer consume:
// either raw file contents or (when use_file_summaries is set) precomputed
// per-file summaries.
type CodebaseView struct {
	Files map[string]string // relative path -> content or summary
}

// TrustAgent is the uniform verifier contract every check plugged into the
// Executor must satisfy. Only Check is mandatory; the rest are optional
// hooks detected via type assertion against the narrower interfaces below.
type TrustAgent interface {
	Check(ctx context.Context, block *ProtoBlock, view CodebaseView, codeDiff string) (Result, error)
}

// MandatoryOptOut lets an agent declared mandatory in the registry still
// skip a particular run (e.g. the test runner skips when there are no
// test files at all).
type MandatoryOptOut interface {
	ShouldRunMandatory(block *ProtoBlock, view CodebaseView) (bool, string)
}

// BeforeStateCapturer is implemented by comparative agents (vision-diff)
// that need a baseline captured before the coding agent runs.
type BeforeStateCapturer interface {
	CaptureBeforeState(ctx context.Context, block *ProtoBlock) error
}

// ProtoBlockInjectable lets the Executor hand a comparative agent the
// ProtoBlock ahead of CaptureBeforeState, before Check is ever called.
type ProtoBlockInjectable interface {
	SetProtoBlock(block *ProtoBlock)
}

// CodingAgent applies a ProtoBlock to the SourceTree. previousAnalysis is
// the ErrorAnalyzer output from the prior attempt, empty on attempt 0.
type CodingAgent interface {
	Run(ctx context.Context, block *ProtoBlock, previousAnalysis string) (Result, error)
}

// ProtoBlockVersion is one persisted revision of a ProtoBlock, as written
// to the versions file.
type ProtoBlockVersion struct {
	ProtoBlock
	Timestamp time.Time `json:"timestamp"`
}
