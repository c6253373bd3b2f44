// Package evaluator implements the library of compiled Boolean expressions
// (spec.md §4.4): AND/OR over status-comparison, status-transition, and
// sub-expression terms, stored per-chunk in homogeneous term vectors.
package evaluator

import (
	"ifthen/keys"
	"ifthen/status"
)

// Logic selects how an expression's terms combine (spec.md §3).
type Logic int8

const (
	And Logic = iota
	Or
)

// Kind names which of a chunk's three term vectors an Expression indexes
// into. An expression's terms are homogeneous — all one Kind.
type Kind int8

const (
	KindComparison Kind = iota
	KindTransition
	KindSubExpression
)

// Comparison is a StatusComparison term: `StatusKey <op> right`, where right
// is either a literal value or another status's current value (spec.md
// §4.4).
type Comparison struct {
	Key      keys.StatusKey
	Op       status.CompareOp
	Right    status.Value
	RightKey keys.StatusKey
	UseRight bool
}

// Transition is a StatusTransition term: true iff Key's transition flag is
// set this tick.
type Transition struct {
	Key keys.StatusKey
}

// SubExpression is a term that recursively evaluates another, already
// registered expression and compares the tri-state result to Expect
// (spec.md §4.4; cycle prevention is by construction order, not runtime
// detection — see Evaluator.RegisterExpression).
type SubExpression struct {
	Expression keys.ExpressionKey
	Expect     bool
}

// Expression is `{chunk, logic, kind, elements}` — elements is a [begin,end)
// range into the owning chunk's term vector matching kind (spec.md §4.4).
type Expression struct {
	Chunk keys.ChunkKey
	Logic Logic
	Kind  Kind
	Begin int
	End   int
}
