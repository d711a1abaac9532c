// Package peeker returns a bounded slice of a file's content: either its
// leading/trailing N lines, or the lines spanning a named symbol, for a
// file too large to include whole. No other package calls it. Grounded
// on the original FilePeeker's detail-level/targeted-extraction behavior
// (agents/misc/file_peeker.py via original_source) — reworked from its
// chat-driven LLM relevance ranking plus regex/AST code-block extraction
// per language down to a single Go-native symbol lookup, since
// planner/summary already owns relevance ranking and per-file summaries;
// peeker's sole remaining job is "give me the lines around X".
package peeker

import (
	"fmt"
	"strings"

	"tac/planner/summary"
)

// Window is a bounded excerpt of a file: a line range plus its content.
type Window struct {
	Path      string
	StartLine int
	EndLine   int
	Content   string
}

// Head returns the first n lines of src.
func Head(path string, src []byte, n int) Window {
	lines := strings.Split(string(src), "\n")
	if n > len(lines) {
		n = len(lines)
	}
	return Window{Path: path, StartLine: 1, EndLine: n, Content: strings.Join(lines[:n], "\n")}
}

// Tail returns the last n lines of src.
func Tail(path string, src []byte, n int) Window {
	lines := strings.Split(string(src), "\n")
	start := len(lines) - n
	if start < 0 {
		start = 0
	}
	return Window{Path: path, StartLine: start + 1, EndLine: len(lines), Content: strings.Join(lines[start:], "\n")}
}

// Symbol returns the lines spanning the named function, method, or type
// declaration, using planner/summary's AST-based Extract so the boundary
// is exact rather than regex/indentation-guessed the way the original's
// per-language extractors worked.
func Symbol(path string, src []byte, name string) (Window, bool) {
	defs, err := summary.Extract(src)
	if err != nil {
		return Window{}, false
	}

	for _, d := range defs {
		if d.Name == name || strings.HasSuffix(d.Name, "."+name) {
			lines := strings.Split(string(src), "\n")
			start := d.StartLine - 1
			end := d.EndLine
			if start < 0 {
				start = 0
			}
			if end > len(lines) {
				end = len(lines)
			}
			return Window{
				Path:      path,
				StartLine: d.StartLine,
				EndLine:   d.EndLine,
				Content:   strings.Join(lines[start:end], "\n"),
			}, true
		}
	}
	return Window{}, false
}

// Format renders a Window the way the original's generate_context did:
// a bordered header naming the file and line range, then the content.
func (w Window) Format() string {
	sep := strings.Repeat("=", 80)
	return fmt.Sprintf("%s\nFILE: %s (lines %d-%d)\n%s\n\n%s\n\nEND FILE", sep, w.Path, w.StartLine, w.EndLine, sep, w.Content)
}
