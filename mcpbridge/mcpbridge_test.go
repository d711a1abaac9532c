package mcpbridge

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tac/core/registry"
	"tac/core/types"
)

type fakeAgent struct {
	result types.Result
	err    error
	seen   *types.ProtoBlock
}

func (a *fakeAgent) Check(ctx context.Context, block *types.ProtoBlock, view types.CodebaseView, codeDiff string) (types.Result, error) {
	a.seen = block
	return a.result, a.err
}

func textOf(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, res.Content, 1)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected a TextContent entry, got %T", res.Content[0])
	return tc.Text
}

func TestRunToolSuccess(t *testing.T) {
	agent := &fakeAgent{result: types.Result{Success: true, Summary: "looks good"}}
	r := registry.New()
	r.Register(types.AgentDescription{Name: "plausibility"}, func() types.TrustAgent { return agent })

	b := New(r, types.CodebaseView{})
	res, err := b.runTool(context.Background(), "plausibility", toolArgs{
		TaskDescription: "add a widget",
		CodeDiff:        "diff --git a/x.go",
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)

	var got types.Result
	require.NoError(t, json.Unmarshal([]byte(textOf(t, res)), &got))
	assert.Equal(t, "looks good", got.Summary)
	assert.Equal(t, "add a widget", agent.seen.TaskDescription)
}

func TestRunToolUnknownAgent(t *testing.T) {
	r := registry.New()
	b := New(r, types.CodebaseView{})

	res, err := b.runTool(context.Background(), "missing", toolArgs{})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestRunToolAgentCheckError(t *testing.T) {
	agent := &fakeAgent{err: assertErr("boom")}
	r := registry.New()
	r.Register(types.AgentDescription{Name: "vision"}, func() types.TrustAgent { return agent })

	b := New(r, types.CodebaseView{})
	res, err := b.runTool(context.Background(), "vision", toolArgs{})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, textOf(t, res), "boom")
}

func TestNewRegistersOneToolPerAgent(t *testing.T) {
	r := registry.New()
	r.Register(types.AgentDescription{Name: "pytest", Description: "runs tests"}, func() types.TrustAgent {
		return &fakeAgent{result: types.Result{Success: true}}
	})
	r.Register(types.AgentDescription{Name: "vision", Description: "checks screenshots"}, func() types.TrustAgent {
		return &fakeAgent{result: types.Result{Success: true}}
	})

	b := New(r, types.CodebaseView{})
	require.NotNil(t, b.srv)
}

type assertErrType string

func (e assertErrType) Error() string { return string(e) }

func assertErr(msg string) error { return assertErrType(msg) }
