// Package mcpbridge exposes this process's TrustAgents as MCP tools, the
// opposite direction from codingagent/mcpagent (which consumes an
// external MCP coding tool). It lets another MCP-speaking host call,
// say, the vision agent's Check without linking against this repo.
// Grounded on the teacher's mcp/client.go and mcp/types.go for the
// server's counterpart shapes (ServerConfig, tool naming), and on
// github.com/mark3labs/mcp-go's own server package — the same dependency
// the teacher already carries for its client role, used here for its
// symmetric server role rather than a new library.
package mcpbridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"tac/core/registry"
	"tac/core/types"
)

// Bridge wraps a TrustAgent registry as an MCP server, one tool per
// registered agent, each taking a ProtoBlock-shaped JSON argument and
// returning the agent's Result as JSON content.
type Bridge struct {
	srv      *server.MCPServer
	registry *registry.Registry
	view     types.CodebaseView
}

func New(r *registry.Registry, view types.CodebaseView) *Bridge {
	b := &Bridge{
		srv:      server.NewMCPServer("tac-trustagents", "1.0.0"),
		registry: r,
		view:     view,
	}
	for _, desc := range r.Descriptions() {
		b.registerTool(desc)
	}
	return b
}

// toolArgs is the JSON shape a caller supplies for a trust-agent tool
// call: the fields of a ProtoBlock relevant to Check, plus the unified
// diff to check against.
type toolArgs struct {
	TaskDescription    string            `json:"task_description"`
	WriteFiles         []string          `json:"write_files"`
	ContextFiles       []string          `json:"context_files"`
	TrustyAgentPrompts map[string]string `json:"trusty_agent_prompts"`
	CodeDiff           string            `json:"code_diff"`
}

func (b *Bridge) registerTool(desc types.AgentDescription) {
	tool := mcp.NewTool(desc.Name,
		mcp.WithDescription(desc.Description),
		mcp.WithString("task_description", mcp.Description("the task the change implements")),
		mcp.WithString("code_diff", mcp.Description("unified diff of the change to check")),
	)

	b.srv.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw, _ := json.Marshal(req.Params.Arguments)
		var args toolArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
		return b.runTool(ctx, desc.Name, args)
	})
}

// runTool resolves the agent named by name and runs Check against args,
// translated into the mcp.CallToolResult shape the handler closure
// returns. Split out of registerTool's closure so it can be exercised
// directly without going through mcp-go's own request dispatch.
func (b *Bridge) runTool(ctx context.Context, name string, args toolArgs) (*mcp.CallToolResult, error) {
	agent, err := b.registry.Resolve(name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	block := &types.ProtoBlock{
		TaskDescription:    args.TaskDescription,
		WriteFiles:         args.WriteFiles,
		ContextFiles:       args.ContextFiles,
		TrustyAgentPrompts: args.TrustyAgentPrompts,
		TrustyAgentResults: map[string]types.Result{},
	}
	if injectable, ok := agent.(types.ProtoBlockInjectable); ok {
		injectable.SetProtoBlock(block)
	}

	result, err := agent.Check(ctx, block, b.view, args.CodeDiff)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	payload, _ := json.Marshal(result)
	return mcp.NewToolResultText(string(payload)), nil
}

// ServeStdio runs the bridge over stdio, the same transport
// codingagent/mcpagent connects to on the client side.
func (b *Bridge) ServeStdio() error {
	return server.ServeStdio(b.srv)
}
