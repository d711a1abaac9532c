package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFailureErrorWithAgent(t *testing.T) {
	f := &Failure{Kind: FailureTrustAgent, Agent: "pytest", Message: "tests failed"}
	assert.Equal(t, "TrustAgentFailure(pytest): tests failed", f.Error())
}

func TestFailureErrorWithoutAgent(t *testing.T) {
	f := &Failure{Kind: FailureUserAbort, Message: "user aborted"}
	assert.Equal(t, "UserAbort: user aborted", f.Error())
}

func TestFailureErrorNilReceiver(t *testing.T) {
	var f *Failure
	assert.Equal(t, "", f.Error())
}

func TestProtoBlockCloneIsIndependent(t *testing.T) {
	original := &ProtoBlock{
		BlockID:            "b1",
		WriteFiles:         []string{"a.go"},
		ContextFiles:       []string{"b.go"},
		TrustyAgents:       []string{"pytest"},
		TrustyAgentPrompts: map[string]string{"pytest": "run it"},
		TrustyAgentResults: map[string]Result{"pytest": {Success: true}},
	}

	clone := original.Clone()
	clone.WriteFiles[0] = "mutated.go"
	clone.TrustyAgentPrompts["pytest"] = "mutated"
	clone.TrustyAgentResults["pytest"] = Result{Success: false}
	clone.TrustyAgents = append(clone.TrustyAgents, "extra")

	assert.Equal(t, "a.go", original.WriteFiles[0])
	assert.Equal(t, "run it", original.TrustyAgentPrompts["pytest"])
	assert.True(t, original.TrustyAgentResults["pytest"].Success)
	assert.Len(t, original.TrustyAgents, 1)
}

func TestProtoBlockCloneHandlesNilMapsAndSlices(t *testing.T) {
	original := &ProtoBlock{BlockID: "b1"}
	clone := original.Clone()
	assert.NotNil(t, clone.TrustyAgentPrompts)
	assert.NotNil(t, clone.TrustyAgentResults)
	assert.Empty(t, clone.WriteFiles)
}

func TestComponentConstructors(t *testing.T) {
	grade := GradeComp("A", "A-F", "great work")
	assert.Equal(t, ComponentGrade, grade.Type)
	assert.Equal(t, "A", grade.Grade.Letter)

	report := ReportComp("title", "body")
	assert.Equal(t, ComponentReport, report.Type)
	assert.Equal(t, "body", report.Report.Body)

	shot := ScreenshotComp("path.png", 10, 20)
	assert.Equal(t, ComponentScreenshot, shot.Type)
	assert.Equal(t, 10, shot.Screenshot.Width)
	assert.Equal(t, 20, shot.Screenshot.Height)

	comparison := ComparisonComp("before.png", "after.png", "ref.png")
	assert.Equal(t, ComponentComparison, comparison.Type)
	assert.Equal(t, "ref.png", comparison.Comparison.Reference)

	threshold := 42.0
	metric := MetricComp("latency", 10.5, "ms", &threshold, DirectionImprove)
	assert.Equal(t, ComponentMetric, metric.Type)
	assert.Equal(t, 10.5, metric.Metric.Value)
	assert.Same(t, &threshold, metric.Metric.Threshold)

	errComp := ErrorComp("timeout", "no output", "stack")
	assert.Equal(t, ComponentError, errComp.Type)
	assert.Equal(t, "no output", errComp.Error.Message)
}

func TestProtoBlockVersionEmbedsProtoBlock(t *testing.T) {
	v := ProtoBlockVersion{ProtoBlock: ProtoBlock{BlockID: "b1"}}
	assert.Equal(t, "b1", v.BlockID)
}
