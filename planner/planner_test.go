package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tac/core/registry"
	"tac/core/types"
	"tac/llm"
)

func newTestRegistry() *registry.Registry {
	r := registry.New()
	r.Register(types.AgentDescription{Name: "pytest", Mandatory: true}, func() types.TrustAgent { return nil })
	r.Register(types.AgentDescription{Name: "plausibility", Mandatory: true}, func() types.TrustAgent { return nil })
	r.Register(types.AgentDescription{Name: "vision"}, func() types.TrustAgent { return nil })
	return r
}

func TestParseRawJSON(t *testing.T) {
	raw, err := parse(`{"task": "do thing", "write_files": ["a.go"], "commit_message": "m", "branch_name": "tac/x"}`)
	require.NoError(t, err)
	assert.Equal(t, "do thing", raw.Task)
}

func TestParseCodeFenced(t *testing.T) {
	content := "Here you go:\n```json\n{\"task\": \"do thing\", \"commit_message\": \"m\"}\n```\n"
	raw, err := parse(content)
	require.NoError(t, err)
	assert.Equal(t, "do thing", raw.Task)
}

func TestParseEmbeddedObject(t *testing.T) {
	content := "Sure, the plan is: {\"task\": \"t\", \"commit_message\": \"m\"} -- let me know if that works"
	raw, err := parse(content)
	require.NoError(t, err)
	assert.Equal(t, "t", raw.Task)
}

func TestParseInvalid(t *testing.T) {
	_, err := parse("no json anywhere")
	assert.Error(t, err)
}

func TestCleanPaths(t *testing.T) {
	out := cleanPaths([]string{"./a.go", " b.go ", "", "c.go"})
	assert.Equal(t, []string{"a.go", "b.go", "c.go"}, out)
}

func TestAugmentMandatory(t *testing.T) {
	r := newTestRegistry()
	out := augmentMandatory(r, []string{"vision"})
	assert.Contains(t, out, "vision")
	assert.Contains(t, out, "pytest")
	assert.Contains(t, out, "plausibility")
	assert.Len(t, out, 3)
}

func TestAugmentMandatoryNoDuplicate(t *testing.T) {
	r := newTestRegistry()
	out := augmentMandatory(r, []string{"pytest", "plausibility"})
	assert.Len(t, out, 2)
}

func TestSynthesizeBranchName(t *testing.T) {
	name := synthesizeBranchName("Fix the Login Bug in auth handler")
	assert.Equal(t, "tac/fix-the-login-bug-in-auth", name)
}

func TestSynthesizeBranchNameEmptyFallback(t *testing.T) {
	name := synthesizeBranchName("!!!")
	assert.Contains(t, name, "tac/task-")
}

func TestNormalizeSynthesizesBranchWithoutSlash(t *testing.T) {
	p := New(newTestRegistry(), 1)
	block := p.normalize(rawProtoBlock{
		Task:          "add a widget",
		WriteFiles:    []string{"widget.go"},
		CommitMessage: "add widget",
		BranchName:    "no-namespace",
	})
	assert.Equal(t, "tac/add-a-widget", block.BranchName)
	assert.Contains(t, block.TrustyAgents, "pytest")
}

func TestNormalizeKeepsNamespacedBranch(t *testing.T) {
	p := New(newTestRegistry(), 1)
	block := p.normalize(rawProtoBlock{
		Task:          "add a widget",
		BranchName:    "feature/already-namespaced",
		CommitMessage: "m",
	})
	assert.Equal(t, "feature/already-namespaced", block.BranchName)
}

func TestReadinessCheckPasses(t *testing.T) {
	rc := NewReadinessChecks(newTestRegistry())
	block := &types.ProtoBlock{
		TaskDescription: "do the thing",
		WriteFiles:      []string{"a.go"},
		CommitMessage:   "add a.go",
		BranchName:      "tac/add-a",
		TrustyAgents:    []string{"pytest", "plausibility"},
	}
	ok, errs := rc.Check(block)
	assert.True(t, ok, errs)
	assert.Empty(t, errs)
}

func TestReadinessCheckCatchesEverything(t *testing.T) {
	rc := NewReadinessChecks(newTestRegistry())
	block := &types.ProtoBlock{
		WriteFiles:   []string{"/abs/path.go", "../escape.go"},
		BranchName:   "bad branch name!",
		TrustyAgents: []string{"nonexistent"},
	}
	ok, errs := rc.Check(block)
	assert.False(t, ok)
	assert.Contains(t, errs, "task_description must be non-empty")
	assert.Contains(t, errs, "commit_message must be non-empty")
	assert.True(t, len(errs) >= 5)
}

func TestReadinessCheckNestedTestsDir(t *testing.T) {
	rc := NewReadinessChecks(newTestRegistry())
	block := &types.ProtoBlock{
		TaskDescription: "t",
		WriteFiles:      []string{"tests/tests/foo_test.go"},
		CommitMessage:   "m",
		BranchName:      "tac/x",
		TrustyAgents:    []string{"pytest", "plausibility"},
	}
	ok, errs := rc.Check(block)
	assert.False(t, ok)
	found := false
	for _, e := range errs {
		if e == `write_files entry "tests/tests/foo_test.go" must sit directly under "tests", not nested deeper` {
			found = true
		}
	}
	assert.True(t, found, errs)
}

func TestReadinessCheckRejectsNestedTestSubdir(t *testing.T) {
	rc := NewReadinessChecks(newTestRegistry())
	block := &types.ProtoBlock{
		TaskDescription: "t",
		WriteFiles:      []string{"tests/unit/foo_test.go"},
		CommitMessage:   "m",
		BranchName:      "tac/x",
		TrustyAgents:    []string{"pytest", "plausibility"},
	}
	ok, errs := rc.Check(block)
	assert.False(t, ok)
	assert.Contains(t, errs, `write_files entry "tests/unit/foo_test.go" must sit directly under "tests", not nested deeper`)
}

func TestReadinessCheckRejectsTestFileNotMatchingPattern(t *testing.T) {
	rc := NewReadinessChecks(newTestRegistry())
	block := &types.ProtoBlock{
		TaskDescription: "t",
		WriteFiles:      []string{"tests/foo.go"},
		CommitMessage:   "m",
		BranchName:      "tac/x",
		TrustyAgents:    []string{"pytest", "plausibility"},
	}
	ok, errs := rc.Check(block)
	assert.False(t, ok)
	assert.Contains(t, errs, `write_files entry "tests/foo.go" does not match test_file_pattern "*_test.go"`)
}

func TestReadinessCheckAcceptsDirectTestFile(t *testing.T) {
	rc := NewReadinessChecks(newTestRegistry())
	block := &types.ProtoBlock{
		TaskDescription: "t",
		WriteFiles:      []string{"tests/foo_test.go"},
		CommitMessage:   "m",
		BranchName:      "tac/x",
		TrustyAgents:    []string{"pytest", "plausibility"},
	}
	ok, errs := rc.Check(block)
	assert.True(t, ok, errs)
}

func TestNormalizeRemovesWriteFileOverlapFromContextFiles(t *testing.T) {
	p := New(newTestRegistry(), 1)
	block := p.normalize(rawProtoBlock{
		Task:          "add a widget",
		WriteFiles:    []string{"widget.go"},
		ContextFiles:  []string{"widget.go", "helper.go"},
		CommitMessage: "add widget",
		BranchName:    "tac/add-widget",
	})
	assert.Equal(t, []string{"widget.go"}, block.WriteFiles)
	assert.Equal(t, []string{"helper.go"}, block.ContextFiles)
}

func TestPlanErrorsWithoutLLM(t *testing.T) {
	prev := llm.Default
	llm.Default = nil
	defer func() { llm.Default = prev }()

	p := New(newTestRegistry(), 1)
	_, err := p.Plan(context.Background(), "do something", types.CodebaseView{}, "")
	assert.Error(t, err)
}
