// Package render turns a types.Result into console text or an HTML
// fragment. Rendering is a switch over each Component's tag, per spec.md
// §9 ("rendering is a switch over the tag").
package render

import (
	"fmt"
	"html"
	"os"
	"strings"

	"tac/core/types"
)

const (
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorReset  = "\033[0m"
)

func isTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

// Console renders a Result as a plain-text block, colorized when stdout is
// a terminal (same TTY-detection idiom the teacher's status line uses).
func Console(r types.Result) string {
	var b strings.Builder
	color := colorGreen
	mark := "PASS"
	if !r.Success {
		color = colorRed
		mark = "FAIL"
	}
	tty := isTTY()

	if tty {
		fmt.Fprintf(&b, "%s[%s]%s %s — %s\n", color, mark, colorReset, r.AgentType, r.Summary)
	} else {
		fmt.Fprintf(&b, "[%s] %s — %s\n", mark, r.AgentType, r.Summary)
	}

	for _, c := range r.Components {
		renderComponentConsole(&b, c, tty)
	}
	return b.String()
}

func renderComponentConsole(b *strings.Builder, c types.Component, tty bool) {
	switch c.Type {
	case types.ComponentGrade:
		fmt.Fprintf(b, "  grade: %s (%s) — %s\n", c.Grade.Letter, c.Grade.Scale, c.Grade.Description)
	case types.ComponentReport:
		fmt.Fprintf(b, "  %s:\n", c.Report.Title)
		for _, line := range strings.Split(c.Report.Body, "\n") {
			fmt.Fprintf(b, "    %s\n", line)
		}
	case types.ComponentScreenshot:
		fmt.Fprintf(b, "  screenshot: %s (%dx%d)\n", c.Screenshot.Path, c.Screenshot.Width, c.Screenshot.Height)
	case types.ComponentComparison:
		fmt.Fprintf(b, "  comparison: before=%s after=%s\n", c.Comparison.Before, c.Comparison.After)
	case types.ComponentMetric:
		m := c.Metric
		thresh := ""
		if m.Threshold != nil {
			thresh = fmt.Sprintf(" (threshold %.2f, %s)", *m.Threshold, m.Direction)
		}
		fmt.Fprintf(b, "  metric: %s = %.2f%s%s\n", m.Name, m.Value, m.Unit, thresh)
	case types.ComponentError:
		color := colorYellow
		if !tty {
			color = ""
		}
		reset := colorReset
		if !tty {
			reset = ""
		}
		fmt.Fprintf(b, "  %serror (%s): %s%s\n", color, c.Error.ErrorType, c.Error.Message, reset)
		if c.Error.Stacktrace != "" {
			fmt.Fprintf(b, "    %s\n", strings.ReplaceAll(c.Error.Stacktrace, "\n", "\n    "))
		}
	}
}

// HTML renders a Result as a self-contained HTML fragment, one <section>
// per component, discriminated the same way as Console.
func HTML(r types.Result) string {
	var b strings.Builder
	status := "pass"
	if !r.Success {
		status = "fail"
	}
	fmt.Fprintf(&b, "<section class=\"tac-result tac-result-%s\">\n", status)
	fmt.Fprintf(&b, "  <h2>%s</h2>\n  <p>%s</p>\n", html.EscapeString(r.AgentType), html.EscapeString(r.Summary))

	for _, c := range r.Components {
		renderComponentHTML(&b, c)
	}
	b.WriteString("</section>\n")
	return b.String()
}

func renderComponentHTML(b *strings.Builder, c types.Component) {
	switch c.Type {
	case types.ComponentGrade:
		fmt.Fprintf(b, "  <div class=\"grade\">%s <small>(%s)</small> — %s</div>\n",
			html.EscapeString(c.Grade.Letter), html.EscapeString(c.Grade.Scale), html.EscapeString(c.Grade.Description))
	case types.ComponentReport:
		fmt.Fprintf(b, "  <div class=\"report\"><h3>%s</h3><pre>%s</pre></div>\n",
			html.EscapeString(c.Report.Title), html.EscapeString(c.Report.Body))
	case types.ComponentScreenshot:
		fmt.Fprintf(b, "  <img class=\"screenshot\" src=\"%s\" width=\"%d\" height=\"%d\">\n",
			html.EscapeString(c.Screenshot.Path), c.Screenshot.Width, c.Screenshot.Height)
	case types.ComponentComparison:
		fmt.Fprintf(b, "  <div class=\"comparison\"><img src=\"%s\"><img src=\"%s\"></div>\n",
			html.EscapeString(c.Comparison.Before), html.EscapeString(c.Comparison.After))
	case types.ComponentMetric:
		m := c.Metric
		fmt.Fprintf(b, "  <div class=\"metric\">%s: %.2f%s</div>\n", html.EscapeString(m.Name), m.Value, html.EscapeString(m.Unit))
	case types.ComponentError:
		fmt.Fprintf(b, "  <div class=\"error\"><strong>%s</strong>: %s</div>\n",
			html.EscapeString(c.Error.ErrorType), html.EscapeString(c.Error.Message))
	}
}
