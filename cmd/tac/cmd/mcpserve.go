package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"tac/config"
	"tac/core/registry"
	"tac/mcpbridge"
)

var mcpServeCmd = &cobra.Command{
	Use:   "mcp-serve",
	Short: "Expose this process's trust agents as MCP tools over stdio",
	RunE:  runMCPServe,
}

func init() {
	rootCmd.AddCommand(mcpServeCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg := config.Get()
	view, err := buildDigest(cfg)(ctx)
	if err != nil {
		return fmt.Errorf("building codebase digest: %w", err)
	}

	bridge := mcpbridge.New(registry.Default, view)
	return bridge.ServeStdio()
}
