package erroranalyzer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tac/core/types"
	"tac/llm"
)

func TestParseBothSections(t *testing.T) {
	raw := `NEW STRATEGY FOR SOLVING THE TASK
Fix the off-by-one error in the loop bound.

MISSING WRITE FILES
- internal/loop.go
internal/helpers.go
`
	a := parse(raw)
	assert.Equal(t, "Fix the off-by-one error in the loop bound.", a.Strategy)
	assert.Equal(t, []string{"internal/loop.go", "internal/helpers.go"}, a.MissingWriteFiles)
	assert.Equal(t, raw, a.Raw)
}

func TestParseMissingWriteFilesSectionEmpty(t *testing.T) {
	raw := `NEW STRATEGY FOR SOLVING THE TASK
Retry with a narrower scope.

MISSING WRITE FILES
`
	a := parse(raw)
	assert.Equal(t, "Retry with a narrower scope.", a.Strategy)
	assert.Empty(t, a.MissingWriteFiles)
}

func TestParseNoHeadersFallsBackToRawAsStrategy(t *testing.T) {
	raw := "the LLM just rambled without using the headers"
	a := parse(raw)
	assert.Equal(t, raw, a.Strategy)
	assert.Empty(t, a.MissingWriteFiles)
}

func TestParseFileListTrimsDashesAndBlankLines(t *testing.T) {
	files := parseFileList("- a.go\n\n  - b.go  \nc.go")
	assert.Equal(t, []string{"a.go", "b.go", "c.go"}, files)
}

func TestParseFileListEmptyBody(t *testing.T) {
	assert.Nil(t, parseFileList(""))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	out := truncate("0123456789", 4)
	assert.Equal(t, "0123\n... (truncated)", out)
}

func TestAnalyzeFailsFastWithoutLLM(t *testing.T) {
	prev := llm.Default
	llm.Default = nil
	t.Cleanup(func() { llm.Default = prev })

	_, err := Analyze(context.Background(), &types.ProtoBlock{TaskDescription: "task"}, "boom", types.CodebaseView{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no LLM manager configured")
}
