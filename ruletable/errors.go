package ruletable

import (
	"fmt"
	"strings"

	"ifthen/ruletable/token"
)

// Diagnostic codes for ruletable's own validation pass (distinct from
// internal/codes, which covers the engine core — ruletable has real source
// positions worth reporting, the core never does; see SPEC_FULL.md §7).
const (
	codeDuplicateChunk  = "T001"
	codeDuplicateStatus = "T002"
	codeDuplicateExpr   = "T003"
	codeUnknownType     = "T004"
	codeBadLiteral      = "T005"
	codeUndeclaredRef   = "T006"
	codeMixedTermKinds  = "T007"
	codeBadCondition    = "T008"
	codeUnknownCall     = "T009"
	codeEngineRejected  = "T010"
)

// CompilerError is a ruletable validation failure with a source position and
// optional remediation text, in the teacher's fluent CompilerError shape
// (internal/errors_old/reporter.go + semantic_errors.go) repointed at
// ruletable's own Position and code space instead of the compiler's.
type CompilerError struct {
	Code        string
	Message     string
	Position    token.Position
	Notes       []string
	Suggestions []string
}

func (e *CompilerError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s [%s]", e.Position, e.Message, e.Code)
	for _, n := range e.Notes {
		fmt.Fprintf(&b, "\n  note: %s", n)
	}
	for _, s := range e.Suggestions {
		fmt.Fprintf(&b, "\n  suggestion: %s", s)
	}
	return b.String()
}

// errorBuilder is the fluent builder (NewSemanticError/WithNote/WithSuggestion/Build
// in the teacher) trimmed to the two extras ruletable actually uses.
type errorBuilder struct {
	err CompilerError
}

func newError(code, message string, pos token.Position) *errorBuilder {
	return &errorBuilder{err: CompilerError{Code: code, Message: message, Position: pos}}
}

func (b *errorBuilder) withNote(note string) *errorBuilder {
	b.err.Notes = append(b.err.Notes, note)
	return b
}

func (b *errorBuilder) withSuggestion(s string) *errorBuilder {
	b.err.Suggestions = append(b.err.Suggestions, s)
	return b
}

func (b *errorBuilder) build() *CompilerError {
	err := b.err
	return &err
}
