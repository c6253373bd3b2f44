package dispatch

import (
	"ifthen/keys"
	"ifthen/status"
)

// statusMonitor tracks one status's registration existence and which
// expression-monitors depend on it, so a transition can be propagated by a
// single map lookup (spec.md §4.5).
type statusMonitor struct {
	lastExisted    bool
	expressionKeys map[keys.ExpressionKey]bool
}

// expressionMonitor tracks one expression's memoized evaluation and the
// (weak) handlers registered on it.
type expressionMonitor struct {
	registered bool

	// flushCondition makes a tick ignore lastEval and treat the previous
	// evaluation as Unknown — set when this expression, directly or through
	// the sub-expressions it transitively references, contains a
	// status-transition term (Evaluator.FlushRequired; spec.md §4.5).
	flushCondition bool

	lastEvalValid bool
	lastEval      status.Tri

	validTransition   bool
	invalidTransition bool

	handlers []*Handler
}

func newExpressionMonitor() *expressionMonitor {
	return &expressionMonitor{}
}

// pruneDead drops expired (released) handlers, reporting whether any live
// handler remains.
func (m *expressionMonitor) pruneDead() bool {
	live := m.handlers[:0]
	for _, h := range m.handlers {
		if h.alive() {
			live = append(live, h)
		}
	}
	m.handlers = live
	return len(m.handlers) > 0
}
