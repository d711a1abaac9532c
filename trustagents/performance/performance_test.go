package performance

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tac/core/types"
)

func TestParseSpecEmptyString(t *testing.T) {
	s := parseSpec("")
	assert.Empty(t, s.Benchmark)
}

func TestParseSpecParsesJSON(t *testing.T) {
	s := parseSpec(`{"benchmark":"BenchmarkEncode","metric":"encode_latency","threshold":500,"direction":"regress"}`)
	assert.Equal(t, "BenchmarkEncode", s.Benchmark)
	assert.Equal(t, "encode_latency", s.Metric)
	require.NotNil(t, s.Threshold)
	assert.Equal(t, 500.0, *s.Threshold)
	assert.Equal(t, types.DirectionRegress, s.Direction)
}

func TestParseSpecIgnoresMalformedJSON(t *testing.T) {
	s := parseSpec("not json")
	assert.Empty(t, s.Benchmark)
}

const sampleBenchOutput = `goos: linux
goarch: amd64
BenchmarkEncode-8   	 1000000	      1023 ns/op	     128 B/op	       2 allocs/op
PASS
ok  	tac/encode	1.234s
`

func TestParseBenchOutputFindsMatchingLine(t *testing.T) {
	v, found := parseBenchOutput(sampleBenchOutput, "BenchmarkEncode")
	require.True(t, found)
	assert.Equal(t, 1023.0, v)
}

func TestParseBenchOutputNotFoundWhenNameAbsent(t *testing.T) {
	_, found := parseBenchOutput(sampleBenchOutput, "BenchmarkDecode")
	assert.False(t, found)
}

func TestCheckErrorsWhenNoBenchmarkNamed(t *testing.T) {
	a := New()
	_, err := a.Check(context.Background(), &types.ProtoBlock{}, types.CodebaseView{}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no benchmark named")
}
