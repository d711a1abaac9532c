// Package summary produces high-level and detailed summaries of a Go
// source file, used by the planner to describe context files without
// paying the token cost of their full content. Grounded on the original
// Python FileSummarizer (utils/file_summarizer.py via original_source),
// reworked from its ast.walk-based Python definition extractor to Go's
// go/parser and go/ast packages, and from its multi-language prompt
// branches (python/javascript/html/glsl/json) down to a single Go-native
// path since this kernel only ever summarizes Go source.
package summary

import (
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strings"

	"tac/llm"
)

// Definition is a single top-level or method declaration extracted from a
// Go file, mirroring the original's {type, name, start_line, end_line}
// dict shape.
type Definition struct {
	Kind      string // "function", "method", "type"
	Name      string
	StartLine int
	EndLine   int
}

// Extract parses Go source and returns every function, method, and type
// declaration with its line range, the Go-native analogue of
// extract_code_definitions' ast.walk over FunctionDef/ClassDef nodes.
func Extract(src []byte) ([]Definition, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "", src, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("summary: parse failed: %w", err)
	}

	var defs []Definition
	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			kind := "function"
			name := d.Name.Name
			if d.Recv != nil && len(d.Recv.List) > 0 {
				kind = "method"
				name = receiverTypeName(d.Recv.List[0].Type) + "." + name
			}
			defs = append(defs, Definition{
				Kind:      kind,
				Name:      name,
				StartLine: fset.Position(d.Pos()).Line,
				EndLine:   fset.Position(d.End()).Line,
			})
		case *ast.GenDecl:
			if d.Tok != token.TYPE {
				continue
			}
			for _, spec := range d.Specs {
				ts, ok := spec.(*ast.TypeSpec)
				if !ok {
					continue
				}
				defs = append(defs, Definition{
					Kind:      "type",
					Name:      ts.Name.Name,
					StartLine: fset.Position(d.Pos()).Line,
					EndLine:   fset.Position(d.End()).Line,
				})
			}
		}
	}
	return defs, nil
}

func receiverTypeName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return receiverTypeName(t.X)
	case *ast.Ident:
		return t.Name
	default:
		return "?"
	}
}

// HighLevel returns a one-line summary with no LLM call: a definition
// count, used when no LLM is configured or as the cheap fallback tier.
func HighLevel(path string, defs []Definition) string {
	if len(defs) == 0 {
		return fmt.Sprintf("High-level summary: %s has no detected functions, methods, or types.", path)
	}
	return fmt.Sprintf("High-level summary: %s declares %d definitions.", path, len(defs))
}

const systemPrompt = "You are a Go code analysis expert. Provide clear, technical summaries of every function, method, and type declaration given to you. Do not skip any."

// Detailed asks the weak LLM to describe every extracted definition,
// mirroring _generate_detailed_summary's prompt shape (functions/classes
// list + full code, strict "name (line start:end): description" output
// format) collapsed to Go's single definition kind set.
func Detailed(ctx context.Context, path string, src []byte, defs []Definition) (string, error) {
	if llm.Default == nil {
		return HighLevel(path, defs), nil
	}
	if len(defs) == 0 {
		return HighLevel(path, defs), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Analyze the following Go file in detail.\n\nDefinitions:\n")
	for _, d := range defs {
		fmt.Fprintf(&b, "- %s (lines %d-%d)\n", d.Name, d.StartLine, d.EndLine)
	}
	fmt.Fprintf(&b, "\nFull Code:\n<code>\n%s\n</code>\n\n", string(src))
	b.WriteString("Format your response as:\nHigh-level summary: ...\n")
	for _, d := range defs {
		fmt.Fprintf(&b, "%s (line %d:%d): ...\n", d.Name, d.StartLine, d.EndLine)
	}
	b.WriteString("\nInclude every definition listed above, not just the first few.")

	resp, err := llm.Default.Generate(ctx, llm.PurposeWeak, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: b.String()},
		},
	})
	if err != nil {
		return "", fmt.Errorf("summary: llm call failed for %s: %w", path, err)
	}
	return strings.TrimSpace(resp.Content), nil
}

// Summarize is the entry point cmd/tac's codebase digest calls: parse the file,
// then produce both tiers so the caller can pick high-level or detailed
// per spec.md's "summaries instead of full source" context-trimming
// feature.
type Summary struct {
	Path        string
	Definitions []Definition
	HighLevel   string
	Detailed    string
}

func Summarize(ctx context.Context, path string, src []byte) (Summary, error) {
	defs, err := Extract(src)
	if err != nil {
		return Summary{Path: path, HighLevel: fmt.Sprintf("High-level summary: %s could not be parsed as Go source.", path)}, nil
	}

	high := HighLevel(path, defs)
	detailed, err := Detailed(ctx, path, src, defs)
	if err != nil {
		detailed = high
	}
	return Summary{Path: path, Definitions: defs, HighLevel: high, Detailed: detailed}, nil
}
