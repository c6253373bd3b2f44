package evaluator

import (
	"ifthen/keys"
	"ifthen/reservoir"
	"ifthen/status"
)

// chunkTerms holds one chunk's three homogeneous term vectors.
type chunkTerms struct {
	comparisons []Comparison
	transitions []Transition
	subs        []SubExpression
}

// Evaluator stores expressions grouped by chunk and evaluates one
// expression at a time against a Reservoir (spec.md §4.4).
type Evaluator struct {
	terms       map[keys.ChunkKey]*chunkTerms
	expressions map[keys.ExpressionKey]Expression
}

// New returns an empty Evaluator.
func New() *Evaluator {
	return &Evaluator{
		terms:       make(map[keys.ChunkKey]*chunkTerms),
		expressions: make(map[keys.ExpressionKey]Expression),
	}
}

// RegisterExpression appends terms (which must be non-empty and all the
// same Kind) to chunk's term vector and registers key → Expression. For
// SubExpression terms, every referenced expression key must already be
// registered — the only cycle guard the model needs, since a reference can
// never point forward or to itself (spec.md §4.4, §9 "Sub-expression cycle
// prevention").
func (e *Evaluator) RegisterExpression(chunk keys.ChunkKey, key keys.ExpressionKey, logic Logic, kind Kind, comparisons []Comparison, transitions []Transition, subs []SubExpression) bool {
	if _, exists := e.expressions[key]; exists {
		return false
	}

	var count int
	switch kind {
	case KindComparison:
		count = len(comparisons)
	case KindTransition:
		count = len(transitions)
	case KindSubExpression:
		count = len(subs)
		for _, s := range subs {
			if _, ok := e.expressions[s.Expression]; !ok {
				return false
			}
		}
	default:
		return false
	}
	if count == 0 {
		return false
	}

	ct, ok := e.terms[chunk]
	if !ok {
		ct = &chunkTerms{}
		e.terms[chunk] = ct
	}

	var begin, end int
	switch kind {
	case KindComparison:
		begin = len(ct.comparisons)
		ct.comparisons = append(ct.comparisons, comparisons...)
		end = len(ct.comparisons)
	case KindTransition:
		begin = len(ct.transitions)
		ct.transitions = append(ct.transitions, transitions...)
		end = len(ct.transitions)
	case KindSubExpression:
		begin = len(ct.subs)
		ct.subs = append(ct.subs, subs...)
		end = len(ct.subs)
	}

	e.expressions[key] = Expression{Chunk: chunk, Logic: logic, Kind: kind, Begin: begin, End: end}
	return true
}

// Evaluate looks up key, recursively evaluates its terms, and combines them
// per its Logic with short-circuiting order preserved left-to-right over
// the term slice (spec.md §4.4):
//
//	And: Unknown if any term Unknown; True iff all terms True; else False.
//	Or:  Unknown if all terms Unknown; True iff any term True; else False.
//
// Unknown propagates but does not short-circuit past a term that already
// makes the result deterministic (False for And, True for Or).
func (e *Evaluator) Evaluate(key keys.ExpressionKey, r *reservoir.Reservoir) status.Tri {
	expr, ok := e.expressions[key]
	if !ok {
		return status.Unknown
	}
	ct := e.terms[expr.Chunk]
	if ct == nil {
		return status.Unknown
	}

	unknowns := 0
	switch expr.Kind {
	case KindComparison:
		for i := expr.Begin; i < expr.End; i++ {
			v := evalComparison(ct.comparisons[i], r)
			if done, result := combine(expr.Logic, v, &unknowns); done {
				return result
			}
		}
	case KindTransition:
		for i := expr.Begin; i < expr.End; i++ {
			v := evalTransition(ct.transitions[i], r)
			if done, result := combine(expr.Logic, v, &unknowns); done {
				return result
			}
		}
	case KindSubExpression:
		for i := expr.Begin; i < expr.End; i++ {
			v := e.evalSub(ct.subs[i], r)
			if done, result := combine(expr.Logic, v, &unknowns); done {
				return result
			}
		}
	}

	if unknowns > 0 && (expr.Logic == And || unknowns == expr.End-expr.Begin) {
		return status.Unknown
	}
	if expr.Logic == And {
		return status.True
	}
	return status.False
}

// combine applies one term's tri-state result to the running fold for
// logic, returning (true, result) if the fold is now deterministic and
// evaluation should stop, or (false, _) to keep walking the term slice.
func combine(logic Logic, v status.Tri, unknowns *int) (bool, status.Tri) {
	if v == status.Unknown {
		*unknowns++
		return false, status.Unknown
	}
	if logic == And && v == status.False {
		return true, status.False
	}
	if logic == Or && v == status.True {
		return true, status.True
	}
	return false, status.Unknown
}

func evalComparison(c Comparison, r *reservoir.Reservoir) status.Tri {
	if c.UseRight {
		return r.CompareStatusKey(c.Key, c.Op, c.RightKey)
	}
	return r.CompareStatus(c.Key, c.Op, c.Right)
}

func evalTransition(t Transition, r *reservoir.Reservoir) status.Tri {
	flag, exists := r.FindTransition(t.Key)
	if !exists {
		return status.Unknown
	}
	return status.FromBool(flag)
}

func (e *Evaluator) evalSub(s SubExpression, r *reservoir.Reservoir) status.Tri {
	result := e.Evaluate(s.Expression, r)
	if result == status.Unknown {
		return status.Unknown
	}
	return status.FromBool((result == status.True) == s.Expect)
}

// ExpressionExists reports whether key is currently registered — lets a
// caller (Engine) classify why RegisterExpression failed (duplicate key vs.
// a dangling sub-expression reference) without RegisterExpression itself
// returning anything richer than its existing bool.
func (e *Evaluator) ExpressionExists(key keys.ExpressionKey) bool {
	_, ok := e.expressions[key]
	return ok
}

// RemoveChunk removes a chunk's term vectors and every expression whose
// chunk is the given key (spec.md §4.4).
func (e *Evaluator) RemoveChunk(chunk keys.ChunkKey) {
	delete(e.terms, chunk)
	for key, expr := range e.expressions {
		if expr.Chunk == chunk {
			delete(e.expressions, key)
		}
	}
}

// Dependencies walks key and every transitively referenced sub-expression,
// returning the set of status keys that appear (directly or via
// sub-expressions) in any comparison or transition term. Used by the
// Dispatcher to build each status-monitor's expression_keys set at
// registration time (spec.md §4.5) — the set is frozen then, per spec.md
// §9's resolution of the open question about later mutation.
func (e *Evaluator) Dependencies(key keys.ExpressionKey) map[keys.StatusKey]bool {
	deps := make(map[keys.StatusKey]bool)
	e.collectDependencies(key, deps, make(map[keys.ExpressionKey]bool))
	return deps
}

// FlushRequired reports whether key, or any expression it transitively
// reaches through sub-expression terms, contains a StatusTransition term.
// The Dispatcher uses this to set an expression-monitor's flush_condition:
// a transition of such an expression is computed against Unknown rather
// than its memoized last-evaluation, since a transition flag is reset
// every tick regardless of whether the expression was re-read (spec.md
// §4.5; grounded directly on original_source/if_then_engine/expression_monitor.hpp's
// register_expression returning -1 for kind_STATE_TRANSITION and
// propagating through register_compound_expression).
func (e *Evaluator) FlushRequired(key keys.ExpressionKey) bool {
	return e.flushRequired(key, make(map[keys.ExpressionKey]bool))
}

func (e *Evaluator) flushRequired(key keys.ExpressionKey, visited map[keys.ExpressionKey]bool) bool {
	if visited[key] {
		return false
	}
	visited[key] = true

	expr, ok := e.expressions[key]
	if !ok {
		return false
	}
	switch expr.Kind {
	case KindTransition:
		return expr.End > expr.Begin
	case KindSubExpression:
		ct := e.terms[expr.Chunk]
		if ct == nil {
			return false
		}
		for i := expr.Begin; i < expr.End; i++ {
			if e.flushRequired(ct.subs[i].Expression, visited) {
				return true
			}
		}
	}
	return false
}

func (e *Evaluator) collectDependencies(key keys.ExpressionKey, deps map[keys.StatusKey]bool, visited map[keys.ExpressionKey]bool) {
	if visited[key] {
		return
	}
	visited[key] = true

	expr, ok := e.expressions[key]
	if !ok {
		return
	}
	ct := e.terms[expr.Chunk]
	if ct == nil {
		return
	}

	switch expr.Kind {
	case KindComparison:
		for i := expr.Begin; i < expr.End; i++ {
			c := ct.comparisons[i]
			deps[c.Key] = true
			if c.UseRight {
				deps[c.RightKey] = true
			}
		}
	case KindTransition:
		for i := expr.Begin; i < expr.End; i++ {
			deps[ct.transitions[i].Key] = true
		}
	case KindSubExpression:
		for i := expr.Begin; i < expr.End; i++ {
			e.collectDependencies(ct.subs[i].Expression, deps, visited)
		}
	}
}
