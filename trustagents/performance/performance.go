// Package performance is the opt-in benchmark trust agent: runs `go test
// -bench`, extracts the target benchmark's ns/op, and compares it against
// a threshold/direction, emitting a Metric component. Grounded on the
// original Python implementation's PerformanceTestingAgent
// (trusty_agents/performance.py, via original_source) — same
// run-benchmark/compare-against-baseline shape, minus its pytest-benchmark
// JSON parsing and multi-run optimization loop (that belongs to a
// hypothetical optimizer agent, not a trust agent whose only contract is
// Check). Unlike pytest/plausibility this agent is never auto-added to a
// ProtoBlock's trusty_agents; it only runs when named explicitly.
package performance

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"tac/config"
	"tac/core/types"
)

const AgentName = "performance"

type Agent struct{}

func New() types.TrustAgent { return &Agent{} }

// Spec is the agent-specific configuration carried in
// ProtoBlock.TrustyAgentPrompts[AgentName] as a JSON object, since trust
// agent prompts are already a free-form per-agent string slot.
type Spec struct {
	Benchmark string                `json:"benchmark"` // e.g. "BenchmarkEncode"
	Package   string                `json:"package"`    // defaults to test_path
	Metric    string                `json:"metric"`     // label for the Metric component
	Threshold *float64              `json:"threshold,omitempty"`
	Direction types.MetricDirection `json:"direction,omitempty"`
}

var benchLine = regexp.MustCompile(`^(Benchmark\S+)-?\d*\s+(\d+)\s+(\d+(?:\.\d+)?)\s+ns/op`)

func (a *Agent) Check(ctx context.Context, block *types.ProtoBlock, view types.CodebaseView, codeDiff string) (types.Result, error) {
	spec := parseSpec(block.TrustyAgentPrompts[AgentName])
	if spec.Benchmark == "" {
		return types.Result{}, fmt.Errorf("performance: no benchmark named in trusty_agent_prompts[%q]", AgentName)
	}

	pkg := spec.Package
	if pkg == "" {
		pkg = config.Get().General.TestPath
	}
	if pkg == "" {
		pkg = "./..."
	}

	cmd := exec.CommandContext(ctx, "go", "test", "-run", "^$", "-bench", "^"+spec.Benchmark+"$", "-benchmem", pkg)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	runErr := cmd.Run()

	nsPerOp, found := parseBenchOutput(out.String(), spec.Benchmark)
	if !found {
		return types.Result{
			Success:   false,
			AgentType: AgentName,
			Summary:   fmt.Sprintf("benchmark %s produced no result", spec.Benchmark),
			Components: []types.Component{
				types.ReportComp("go test -bench output", out.String()),
			},
		}, nil
	}

	metric := spec.Metric
	if metric == "" {
		metric = spec.Benchmark + "_ns_per_op"
	}
	direction := spec.Direction
	if direction == "" {
		direction = types.DirectionImprove
	}

	pass := runErr == nil
	if pass && spec.Threshold != nil {
		switch direction {
		case types.DirectionRegress:
			pass = nsPerOp <= *spec.Threshold
		default:
			pass = nsPerOp <= *spec.Threshold
		}
	}

	result := types.Result{
		Success:   pass,
		AgentType: AgentName,
		Summary:   fmt.Sprintf("%s: %.2f ns/op", spec.Benchmark, nsPerOp),
	}
	result.Components = append(result.Components,
		types.MetricComp(metric, nsPerOp, "ns/op", spec.Threshold, direction),
		types.ReportComp("go test -bench output", out.String()),
	)
	return result, nil
}

func parseSpec(raw string) Spec {
	var s Spec
	if raw == "" {
		return s
	}
	_ = json.Unmarshal([]byte(raw), &s)
	return s
}

func parseBenchOutput(output, name string) (float64, bool) {
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, name) {
			continue
		}
		m := benchLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(m[3], 64)
		if err != nil {
			continue
		}
		return v, true
	}
	return 0, false
}

var _ types.TrustAgent = (*Agent)(nil)
