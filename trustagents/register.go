// Package trustagents wires every built-in TrustAgent into the process-wide
// registry. RegisterDefaults is called explicitly by cmd/tac at startup —
// never from an init() in any agent's own package — per spec.md §4.2's
// declarative-registration requirement.
package trustagents

import (
	"tac/core/registry"
	"tac/core/types"
	"tac/trustagents/performance"
	"tac/trustagents/plausibility"
	"tac/trustagents/testrunner"
	"tac/trustagents/vision"
	"tac/trustagents/visiondiff"
)

// RegisterDefaults populates r with every agent this repo ships. pytest and
// plausibility are mandatory per spec.md; vision, vision_diff, and
// performance are opt-in and must be named explicitly in a ProtoBlock's
// trusty_agents.
func RegisterDefaults(r *registry.Registry) {
	r.Register(types.AgentDescription{
		Name:        testrunner.AgentName,
		Description: "Runs the project's Go test suite under aggressive cache busting and reports structured pass/fail/skip counts.",
		PromptTarget: types.PromptTargetCodingAgent,
		Mandatory:   true,
	}, testrunner.New)

	r.Register(types.AgentDescription{
		Name:        plausibility.AgentName,
		Description: "Grades the diff A-F against the task description using a strong LLM; passes on A or B.",
		PromptTarget: types.PromptTargetCodingAgent,
		Mandatory:   true,
	}, plausibility.New)

	r.Register(types.AgentDescription{
		Name:         vision.AgentName,
		Description:  "Launches the program, screenshots it, and asks a vision LLM for a YES/NO verdict against a per-block prompt.",
		ProtoblockPrompt: "Describe what the screenshot should show for this task to be considered visually correct.",
		PromptTarget: types.PromptTargetTrustyAgent,
		Mandatory:    false,
	}, vision.New)

	r.Register(types.AgentDescription{
		Name:         visiondiff.AgentName,
		Description:  "Captures before/after screenshots and asks a vision LLM to rate the visual change 0.0-5.0 stars; passes at 4.0+.",
		ProtoblockPrompt: "Describe the expected visual change between the before and after screenshots.",
		PromptTarget: types.PromptTargetTrustyAgent,
		Mandatory:    false,
	}, visiondiff.New)

	r.Register(types.AgentDescription{
		Name:         performance.AgentName,
		Description:  "Runs a named Go benchmark and compares its ns/op against a threshold/direction.",
		ProtoblockPrompt: `Set trusty_agent_prompts["performance"] to a JSON object {"benchmark": "BenchmarkX", "metric": "...", "threshold": 500, "direction": "improve"}.`,
		PromptTarget: types.PromptTargetTrustyAgent,
		Mandatory:    false,
	}, performance.New)
}
