package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tac/config"
	"tac/llm"
)

func TestReloadConfigNoFileFallsBackToDefaults(t *testing.T) {
	prev := config.Get()
	t.Cleanup(func() { config.Set(prev) })

	require.NoError(t, reloadConfig(false))
	assert.Equal(t, "tests", config.Get().General.TestPath)
}

func TestReloadConfigWithFileParsesYAML(t *testing.T) {
	prev := config.Get()
	t.Cleanup(func() {
		config.Set(prev)
		viper.Reset()
	})

	dir := t.TempDir()
	path := filepath.Join(dir, "tac.yaml")
	require.NoError(t, os.WriteFile(path, []byte("general:\n  coding_agent: mcp\n"), 0o644))

	viper.Reset()
	viper.SetConfigFile(path)
	require.NoError(t, viper.ReadInConfig())

	require.NoError(t, reloadConfig(true))
	assert.Equal(t, "mcp", config.Get().General.CodingAgent)
}

func TestWireLLMManagerRegistersKnownPurposesAndSkipsUnknown(t *testing.T) {
	prev := llm.Default
	t.Cleanup(func() { llm.Default = prev })

	cfg := &config.Config{LLMs: map[string]config.LLMConfig{
		"strong":  {Provider: "anthropic", Model: "claude"},
		"unknown": {Provider: "anthropic", Model: "claude"},
	}}
	wireLLMManager(cfg)

	require.NotNil(t, llm.Default)
	_, err := llm.Default.GetClient(llm.PurposeStrong)
	assert.NoError(t, err)
}
