// Package mcpagent is the MCP-backed CodingAgent realization: it drives
// the same run contract as codingagent/subprocess, but over an MCP tool
// call instead of a raw subprocess, letting any coding tool exposed as an
// MCP server fill the CodingAgent role. Grounded on the teacher's
// mcp/client.go (NewStdioMCPClient, Initialize, CallTool) using
// github.com/mark3labs/mcp-go, kept from the teacher's own dependency for
// exactly the same client role.
package mcpagent

import (
	"context"
	"fmt"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"tac/config"
	"tac/core/types"
)

// Agent calls a named tool on a configured MCP server to apply a
// ProtoBlock, per spec.md §4.7's CodingAgent interface.
type Agent struct {
	ServerName string
	ToolName   string
	client     *mcpclient.Client
}

// New connects to the named server from config.MCP.Servers. The tool
// invoked on each Run is fixed at construction (a coding tool exposes one
// "apply change" tool per server, by convention).
func New(serverName, toolName string) (*Agent, error) {
	cfg := config.Get()
	serverCfg, ok := cfg.MCP.Servers[serverName]
	if !ok {
		return nil, fmt.Errorf("mcpagent: server %q is not configured", serverName)
	}

	envVars := make([]string, 0, len(serverCfg.Env))
	for k, v := range serverCfg.Env {
		envVars = append(envVars, k+"="+v)
	}

	c, err := mcpclient.NewStdioMCPClient(serverCfg.Command, envVars, serverCfg.Args...)
	if err != nil {
		return nil, fmt.Errorf("mcpagent: failed to create client for %q: %w", serverName, err)
	}

	initCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	initReq := mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			ClientInfo:      mcp.Implementation{Name: "tac", Version: "1.0.0"},
			Capabilities:    mcp.ClientCapabilities{},
		},
	}
	if _, err := c.Initialize(initCtx, initReq); err != nil {
		c.Close()
		return nil, fmt.Errorf("mcpagent: failed to initialize %q: %w", serverName, err)
	}

	return &Agent{ServerName: serverName, ToolName: toolName, client: c}, nil
}

func (a *Agent) Close() {
	if a.client != nil {
		a.client.Close()
	}
}

// Run realizes types.CodingAgent over the MCP tool call, honoring the
// same total-timeout contract as the subprocess realization (the
// no-output-reset portion of the contract has no MCP analogue: a single
// CallTool is one synchronous request, not a stream of lines).
func (a *Agent) Run(ctx context.Context, block *types.ProtoBlock, previousAnalysis string) (types.Result, error) {
	cfg := config.Get()
	total := cfg.General.CodingAgentTotalTimeout
	if total <= 0 {
		total = 600 * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, total)
	defer cancel()

	args := map[string]interface{}{
		"task_description":     block.TaskDescription,
		"write_files":          block.WriteFiles,
		"context_files":        block.ContextFiles,
		"previous_analysis":    previousAnalysis,
		"trusty_agent_prompts": block.TrustyAgentPrompts,
	}

	result, err := a.client.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: a.ToolName, Arguments: args},
	})
	if err != nil {
		if ctx.Err() != nil {
			return types.Result{}, &types.Failure{
				Kind:    types.FailureCodingAgentTimeout,
				Message: fmt.Sprintf("MCP tool %q on %q did not complete within %s", a.ToolName, a.ServerName, total),
			}
		}
		return types.Result{
			Success:   false,
			AgentType: "coding_agent",
			Summary:   "MCP coding tool call failed",
			Components: []types.Component{
				types.ErrorComp("CodingAgentFailure", err.Error(), ""),
			},
		}, &types.Failure{Kind: types.FailureCodingAgent, Message: err.Error()}
	}

	var output string
	for _, content := range result.Content {
		output += fmt.Sprintf("%v\n", content)
	}

	return types.Result{
		Success:   true,
		AgentType: "coding_agent",
		Summary:   fmt.Sprintf("MCP tool %q on %q completed", a.ToolName, a.ServerName),
		Components: []types.Component{
			types.ReportComp("coding agent output", output),
		},
	}, nil
}

var _ types.CodingAgent = (*Agent)(nil)
