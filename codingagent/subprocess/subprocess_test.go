package subprocess

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tac/config"
	"tac/core/types"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "script.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func withCfg(t *testing.T, cfg *config.Config) {
	t.Helper()
	prev := config.Get()
	config.Set(cfg)
	t.Cleanup(func() { config.Set(prev) })
}

func TestRunSuccess(t *testing.T) {
	withCfg(t, &config.Config{General: config.GeneralConfig{
		CodingAgentBinary:       "/bin/cat",
		CodingAgentTotalTimeout: 5 * time.Second,
	}})

	a := New()
	block := &types.ProtoBlock{TaskDescription: "echo the payload"}

	result, err := a.Run(context.Background(), block, "")
	require.NoError(t, err)
	assert.True(t, result.Success)
	require.Len(t, result.Components, 1)
	assert.Contains(t, result.Components[0].Report.Body, "echo the payload")
}

func TestRunNonZeroExit(t *testing.T) {
	withCfg(t, &config.Config{General: config.GeneralConfig{
		CodingAgentBinary:       "/bin/false",
		CodingAgentTotalTimeout: 5 * time.Second,
	}})

	a := New()
	result, err := a.Run(context.Background(), &types.ProtoBlock{}, "")
	require.Error(t, err)
	assert.False(t, result.Success)

	var failure *types.Failure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, types.FailureCodingAgent, failure.Kind)
}

func TestRunTimesOutOnNoOutput(t *testing.T) {
	script := writeScript(t, "sleep 5\n")
	withCfg(t, &config.Config{General: config.GeneralConfig{
		CodingAgentBinary:       script,
		CodingAgentTotalTimeout: 300 * time.Millisecond,
	}})

	a := New()
	_, err := a.Run(context.Background(), &types.ProtoBlock{}, "")
	require.Error(t, err)

	var failure *types.Failure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, types.FailureCodingAgentTimeout, failure.Kind)
}

func TestRunSucceedsWithDefaultedTimeout(t *testing.T) {
	withCfg(t, &config.Config{General: config.GeneralConfig{CodingAgentBinary: "/bin/cat"}})

	a := New()
	result, err := a.Run(context.Background(), &types.ProtoBlock{TaskDescription: "x"}, "")
	require.NoError(t, err)
	assert.True(t, result.Success)
}
