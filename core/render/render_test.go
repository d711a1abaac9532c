package render

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"tac/core/types"
)

func sampleResult(success bool) types.Result {
	threshold := 500.0
	return types.Result{
		Success:   success,
		AgentType: "pytest",
		Summary:   "3 passed, 0 failed",
		Components: []types.Component{
			types.GradeComp("A", "A-F", "solid work"),
			types.ReportComp("raw output", "line one\nline two"),
			types.ScreenshotComp("shot.png", 100, 200),
			types.ComparisonComp("before.png", "after.png", "ref.png"),
			types.MetricComp("latency", 12.5, "ms", &threshold, types.DirectionImprove),
			types.ErrorComp("timeout", "no output received", "stack trace here"),
		},
	}
}

func TestConsoleRendersPassMark(t *testing.T) {
	out := Console(sampleResult(true))
	assert.Contains(t, out, "[PASS]")
	assert.Contains(t, out, "pytest")
	assert.Contains(t, out, "3 passed, 0 failed")
}

func TestConsoleRendersFailMark(t *testing.T) {
	out := Console(sampleResult(false))
	assert.Contains(t, out, "[FAIL]")
}

func TestConsoleRendersEveryComponentKind(t *testing.T) {
	out := Console(sampleResult(true))
	assert.Contains(t, out, "grade: A (A-F) — solid work")
	assert.Contains(t, out, "raw output:")
	assert.Contains(t, out, "line one")
	assert.Contains(t, out, "line two")
	assert.Contains(t, out, "screenshot: shot.png (100x200)")
	assert.Contains(t, out, "comparison: before=before.png after=after.png")
	assert.Contains(t, out, "metric: latency = 12.50ms (threshold 500.00, improve)")
	assert.Contains(t, out, "error (timeout): no output received")
	assert.Contains(t, out, "stack trace here")
}

func TestHTMLRendersPassAndFailClasses(t *testing.T) {
	pass := HTML(sampleResult(true))
	assert.Contains(t, pass, `class="tac-result tac-result-pass"`)

	fail := HTML(sampleResult(false))
	assert.Contains(t, fail, `class="tac-result tac-result-fail"`)
}

func TestHTMLEscapesUntrustedContent(t *testing.T) {
	r := types.Result{
		AgentType: "<script>alert(1)</script>",
		Summary:   "safe",
	}
	out := HTML(r)
	assert.NotContains(t, out, "<script>alert(1)</script>")
	assert.Contains(t, out, "&lt;script&gt;")
}

func TestHTMLRendersEveryComponentKind(t *testing.T) {
	out := HTML(sampleResult(true))
	assert.Contains(t, out, `<div class="grade">A <small>(A-F)</small> — solid work</div>`)
	assert.Contains(t, out, "<div class=\"report\"><h3>raw output</h3><pre>line one\nline two</pre></div>")
	assert.Contains(t, out, `<img class="screenshot" src="shot.png" width="100" height="200">`)
	assert.Contains(t, out, `<div class="comparison"><img src="before.png"><img src="after.png"></div>`)
	assert.Contains(t, out, `<div class="metric">latency: 12.50ms</div>`)
	assert.Contains(t, out, `<div class="error"><strong>timeout</strong>: no output received</div>`)
}
