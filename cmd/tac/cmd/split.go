package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tac/config"
	"tac/orchestrator"
	"tac/session"
)

var splitCmd = &cobra.Command{
	Use:   "split [task description]",
	Short: "Decompose a large task into an ordered RecipeSet and run it recipe by recipe",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSplit,
}

func init() {
	rootCmd.AddCommand(splitCmd)
}

func runSplit(cmd *cobra.Command, args []string) error {
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

	digest := buildDigest(cfg)
	view, err := digest(ctx)
	if err != nil {
		return fmt.Errorf("building codebase digest: %w", err)
	}

	history := session.NewHistory(50)
	orch := orchestrator.New(d.proc, d.tree, digest, history, stdinPrompter{}).WithTelemetry(d.tel)

	set, err := orch.Split(ctx, task, view)
	if err != nil {
		return fmt.Errorf("splitting task: %w", err)
	}

	fmt.Printf("split into %d recipe(s) on branch %q: %s\n", len(set.Recipes), set.BranchName, set.Strategy)

	outcome := orch.Run(ctx, set, coder)
	if !outcome.Success {
		return fmt.Errorf("recipe set failed at recipe %d: %s (%s)", outcome.CompletedAt+1, outcome.FailureType, outcome.Analysis)
	}

	fmt.Printf("completed all %d recipe(s) on branch %q\n", outcome.CompletedAt, set.BranchName)
	return nil
}
