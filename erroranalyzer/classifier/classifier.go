// Package classifier gives a cheap heuristic pre-classification of a
// failure's raw text before it's handed to the strong LLM: how many files
// and distinct errors it touches, and whether it looks like a simple
// single-site fix or something spanning the change. Ported from the
// teacher's AnalyzeCompileError (same severity/fixable/error-type shape,
// generalized from Go-compiler-error patterns to also recognize go test
// failure output).
package classifier

import (
	"regexp"
	"strings"
)

// Severity indicates how contained a failure looks.
type Severity string

const (
	SeveritySimple  Severity = "simple"  // isolated to one file/assertion
	SeverityComplex Severity = "complex" // spans files or many distinct errors
)

// Classification is the heuristic read on a failure's raw text, folded
// into the ErrorAnalyzer's prompt as a hint, never used for control flow.
type Classification struct {
	Severity   Severity
	ErrorType  string
	FilesCount int
	ErrorCount int
	Hint       string
}

var fileRefPattern = regexp.MustCompile(`(\S+\.go):\d+`)

// Classify inspects raw compiler/test output and returns a best-effort
// Classification.
func Classify(output string) Classification {
	c := Classification{
		FilesCount: countAffectedFiles(output),
		ErrorCount: countErrors(output),
	}

	if c.FilesCount > 1 {
		c.Severity = SeverityComplex
		c.ErrorType = "multi_file_error"
		c.Hint = "errors span multiple files; consider a coordinated fix across all of them"
		return c
	}

	if c.ErrorCount > 5 {
		c.Severity = SeverityComplex
		c.ErrorType = "multiple_errors"
		c.Hint = "many distinct errors reported; address them systematically rather than one at a time"
		return c
	}

	lower := strings.ToLower(output)

	switch {
	case strings.Contains(lower, "undefined:") || strings.Contains(lower, "undeclared name:"):
		c.Severity, c.ErrorType = SeveritySimple, "missing_import_or_typo"
		c.Hint = "an identifier is undefined; check for a missing import or a misspelled name"
	case strings.Contains(lower, "cannot use") || strings.Contains(lower, "cannot convert"):
		c.Severity, c.ErrorType = SeveritySimple, "type_error"
		c.Hint = "a type mismatch; check argument and return types against the call site"
	case strings.Contains(lower, "too many arguments") || strings.Contains(lower, "not enough arguments") ||
		strings.Contains(lower, "too many return values") || strings.Contains(lower, "not enough return values"):
		c.Severity, c.ErrorType = SeveritySimple, "argument_mismatch"
		c.Hint = "a call site disagrees with the function's signature"
	case strings.Contains(lower, "--- fail:"):
		c.Severity, c.ErrorType = SeveritySimple, "test_assertion_failure"
		c.Hint = "a test assertion failed; compare expected vs actual in the failure output"
	case strings.Contains(lower, "syntax error") || strings.Contains(lower, "expected"):
		c.Severity, c.ErrorType = SeveritySimple, "syntax_error"
		c.Hint = "a syntax error; look for an unbalanced bracket or missing token near the reported line"
	case c.FilesCount <= 1 && c.ErrorCount <= 2:
		c.Severity, c.ErrorType = SeveritySimple, "single_error"
		c.Hint = "a single isolated error"
	default:
		c.Severity, c.ErrorType = SeverityComplex, "uncertain"
		c.Hint = "cause is not immediately clear from patterns; read the full output"
	}
	return c
}

func countAffectedFiles(output string) int {
	seen := make(map[string]bool)
	for _, m := range fileRefPattern.FindAllStringSubmatch(output, -1) {
		seen[m[1]] = true
	}
	if len(seen) == 0 {
		return 1
	}
	return len(seen)
}

func countErrors(output string) int {
	count := strings.Count(output, "--- FAIL:")
	count += strings.Count(output, "# ")
	if count == 0 && strings.TrimSpace(output) != "" {
		count = 1
	}
	return count
}
