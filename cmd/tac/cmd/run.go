package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tac/config"
)

var runCmd = &cobra.Command{
	Use:   "run [task description]",
	Short: "Plan and execute a single ProtoBlock for one task",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTask,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runTask(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg := config.Get()
	task := strings.Join(args, " ")

	d, err := buildDeps(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = d.tel.Shutdown(ctx) }()

	coder, err := buildCoder(cfg)
	if err != nil {
		return err
	}

	view, err := buildDigest(cfg)(ctx)
	if err != nil {
		return fmt.Errorf("building codebase digest: %w", err)
	}

	outcome := d.proc.Run(ctx, task, view, coder, nil)
	if !outcome.Success {
		return fmt.Errorf("task failed after %d attempt(s): %s (%s)", outcome.Attempts, outcome.FailureType, outcome.Analysis)
	}

	fmt.Printf("task completed on branch %q after %d attempt(s)\n", outcome.ProtoBlock.BranchName, outcome.Attempts)
	return nil
}
