// Package ruletable is the reference external builder spec.md §6 leaves to a
// host: a text DSL, a participle/v2 parser, and a Build step that walks the
// parsed table into Engine.ExtendChunk calls. Grounded on the teacher's
// grammar/ + token/ + internal/parser/ trio (github.com/alecthomas/participle/v2
// turning source text into an AST) and internal/semantic/symbols.go (scoped
// name resolution before codegen) — both repointed at this spec's
// chunk/status/expression/handler record shapes instead of Kanso's module
// AST and IR.
package ruletable

import (
	"fmt"
	"strings"
	"sync"

	"github.com/alecthomas/participle/v2"

	"ifthen/ruletable/grammar"
	"ifthen/ruletable/token"
)

// Table is a fully parsed ruletable source, ready for symbol resolution and
// Build.
type Table = grammar.Table

var buildParser = sync.OnceValues(func() (*participle.Parser[grammar.Table], error) {
	return participle.Build[grammar.Table](
		participle.Lexer(grammar.Lexer),
		participle.Elide("Whitespace", "Comment"),
		participle.UseLookahead(3),
	)
})

// Parse lexes and parses a ruletable source file. Grounded on the teacher's
// grammar/parser.go ParseFile (participle.Build + ParseString), generalized
// to take source text directly rather than a path, since a host may load it
// from anywhere.
func Parse(filename, src string) (*Table, error) {
	parser, err := buildParser()
	if err != nil {
		return nil, fmt.Errorf("ruletable: building parser: %w", err)
	}
	tbl, err := parser.ParseString(filename, src)
	if err != nil {
		return nil, reportParseError(filename, src, err)
	}
	return tbl, nil
}

// reportParseError turns a participle parse error into a caret-annotated
// message, mirroring the teacher's grammar/parser.go reportParseError —
// returned as an error rather than printed, since ruletable is a library,
// not a CLI (cmd/ifthenctl prints it with color itself).
func reportParseError(filename, src string, err error) error {
	pe, ok := err.(participle.Error)
	if !ok {
		return err
	}
	pos := pe.Position()
	lines := strings.Split(src, "\n")
	if pos.Line <= 0 || pos.Line > len(lines) {
		return fmt.Errorf("%s: syntax error at unknown location: %w", filename, err)
	}
	line := lines[pos.Line-1]
	caret := strings.Repeat(" ", max(pos.Column-1, 0)) + "^"
	tp := token.Position{Filename: filename, Line: pos.Line, Column: pos.Column}
	return fmt.Errorf("%s: syntax error: %s\n%s\n%s", tp, pe.Message(), line, caret)
}
