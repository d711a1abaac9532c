package processor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tac/config"
	"tac/core/registry"
	"tac/core/types"
	"tac/executor"
	"tac/llm"
	"tac/planner"
	"tac/runlog"
	"tac/session"
	"tac/sourcetree"
)

type fakeTree struct{}

func (f *fakeTree) CurrentBranch(ctx context.Context) (string, error) { return "main", nil }
func (f *fakeTree) Status(ctx context.Context, ignoreUntracked bool) (sourcetree.Status, error) {
	return sourcetree.Status{}, nil
}
func (f *fakeTree) CheckoutBranch(ctx context.Context, name string, create bool) error { return nil }
func (f *fakeTree) CreateOrSwitchToNamespacedBranch(ctx context.Context, name string) error {
	return nil
}
func (f *fakeTree) CompleteDiff(ctx context.Context) (string, error) { return "", nil }
func (f *fakeTree) Commit(ctx context.Context, message string) error { return nil }
func (f *fakeTree) RevertChanges(ctx context.Context) error          { return nil }
func (f *fakeTree) PostExecutionHandle(ctx context.Context, autoCommit, autoPush bool, message string) error {
	return nil
}

type fakeCoder struct {
	err    error
	result types.Result
}

func (c *fakeCoder) Run(ctx context.Context, block *types.ProtoBlock, previousAnalysis string) (types.Result, error) {
	return c.result, c.err
}

type fakePrompter struct {
	resolution session.Resolution
	calls      []session.HaltKind
}

func (f *fakePrompter) Confirm(kind session.HaltKind, blockID, prompt string) session.Resolution {
	f.calls = append(f.calls, kind)
	return f.resolution
}

func newTestProcessor(t *testing.T, prompter Prompter) *Processor {
	t.Helper()
	r := registry.New()
	tree := &fakeTree{}
	exec := executor.New(r, tree, t.TempDir())
	plan := planner.New(r, 1)
	logs, err := runlog.NewStore(t.TempDir())
	require.NoError(t, err)
	history := session.NewHistory(10)
	return New(exec, plan, tree, logs, history, prompter)
}

func withConfig(t *testing.T, cfg *config.Config) {
	t.Helper()
	prev := config.Get()
	config.Set(cfg)
	t.Cleanup(func() { config.Set(prev) })
}

func TestRunSeededAttemptSucceeds(t *testing.T) {
	withConfig(t, &config.Config{General: config.GeneralConfig{MaxRetriesBlockCreation: 1}})

	p := newTestProcessor(t, nil)
	seed := &types.ProtoBlock{
		BlockID:       "b1",
		BranchName:    "tac/seed",
		CommitMessage: "m",
	}
	coder := &fakeCoder{result: types.Result{Success: true}}

	outcome := p.Run(context.Background(), "do a thing", types.CodebaseView{}, coder, seed)
	require.True(t, outcome.Success, outcome.Analysis)
	assert.Equal(t, 1, outcome.Attempts)
}

func TestRunSeededAttemptFailsWithNoRetryBudget(t *testing.T) {
	withConfig(t, &config.Config{General: config.GeneralConfig{MaxRetriesBlockCreation: 1}})

	p := newTestProcessor(t, nil)
	seed := &types.ProtoBlock{
		BlockID:       "b1",
		BranchName:    "tac/seed",
		CommitMessage: "m",
		TrustyAgents:  []string{"pytest"},
	}
	coder := &fakeCoder{err: simpleErr("boom")}

	outcome := p.Run(context.Background(), "do a thing", types.CodebaseView{}, coder, seed)
	assert.False(t, outcome.Success)
	assert.Equal(t, "RetriesExhausted", outcome.FailureType)
	assert.Equal(t, 1, outcome.Attempts)
}

func TestRunRetryRequiresLLMAndFailsCleanly(t *testing.T) {
	prevLLM := llm.Default
	llm.Default = nil
	defer func() { llm.Default = prevLLM }()

	withConfig(t, &config.Config{General: config.GeneralConfig{MaxRetriesBlockCreation: 2}})

	p := newTestProcessor(t, nil)
	seed := &types.ProtoBlock{
		BlockID:       "b1",
		BranchName:    "tac/seed",
		CommitMessage: "m",
	}
	coder := &fakeCoder{err: simpleErr("boom")}

	outcome := p.Run(context.Background(), "do a thing", types.CodebaseView{}, coder, seed)
	assert.False(t, outcome.Success)
	assert.Equal(t, string(types.FailurePlannerValidation), outcome.FailureType)
	assert.Equal(t, 2, outcome.Attempts)
}

func TestRunAbortsOnUserAbortAfterFail(t *testing.T) {
	withConfig(t, &config.Config{General: config.GeneralConfig{MaxRetriesBlockCreation: 2, HaltAfterFail: true}})

	prompter := &fakePrompter{resolution: session.ResolutionAbort}
	p := newTestProcessor(t, prompter)
	seed := &types.ProtoBlock{
		BlockID:       "b1",
		BranchName:    "tac/seed",
		CommitMessage: "m",
	}
	coder := &fakeCoder{err: simpleErr("boom")}

	outcome := p.Run(context.Background(), "do a thing", types.CodebaseView{}, coder, seed)
	assert.False(t, outcome.Success)
	assert.Equal(t, string(types.FailureUserAbort), outcome.FailureType)
	assert.Contains(t, prompter.calls, session.HaltAfterFail)
}

func TestRunHaltsAfterVerifyAndCommits(t *testing.T) {
	withConfig(t, &config.Config{
		General: config.GeneralConfig{MaxRetriesBlockCreation: 1, HaltAfterVerify: true},
		Git:     config.GitConfig{Enabled: true, AutoCommitIfSuccess: true},
	})

	prompter := &fakePrompter{resolution: session.ResolutionCommit}
	p := newTestProcessor(t, prompter)
	seed := &types.ProtoBlock{
		BlockID:       "b1",
		BranchName:    "tac/seed",
		CommitMessage: "m",
	}
	coder := &fakeCoder{result: types.Result{Success: true}}

	outcome := p.Run(context.Background(), "do a thing", types.CodebaseView{}, coder, seed)
	require.True(t, outcome.Success)
	assert.Contains(t, prompter.calls, session.HaltAfterVerify)
}

type simpleErr string

func (e simpleErr) Error() string { return string(e) }
