package dispatch

import (
	"sync/atomic"

	"ifthen/keys"
	"ifthen/status"
)

// FuncID is the host-chosen identity of a handler function — e.g. a
// ruletable "call" target name. register_handler's dedupe check is keyed on
// (expression_key, FuncID), not on Go function value identity (which isn't
// comparable for closures).
type FuncID string

// HandlerFunc is a condition-behavior function: called with the expression
// whose evaluation changed, its new value, and its previous value. It may
// enqueue further assignments but must not call Engine.Tick.
type HandlerFunc func(expression keys.ExpressionKey, now, last status.Tri)

// Handler is one registered condition-behavior binding. The Dispatcher's
// chunk handler list is the handler's strong owner; an expression monitor's
// handler slice holds the same *Handler but only ever inspects it through
// alive(), emulating the weak reference spec.md §4.5/§9 describes without
// runtime.SetFinalizer or unsafe — none of the corpus implements weak
// references, so this explicit shared-liveness-flag idiom is this
// repository's own (see DESIGN.md).
type Handler struct {
	Chunk      keys.ChunkKey
	Expression keys.ExpressionKey
	FuncID     FuncID
	Condition  Condition
	Priority   int64
	Func       HandlerFunc

	live int32
}

func newHandler(chunk keys.ChunkKey, expr keys.ExpressionKey, id FuncID, cond Condition, priority int64, fn HandlerFunc) *Handler {
	return &Handler{
		Chunk:      chunk,
		Expression: expr,
		FuncID:     id,
		Condition:  cond,
		Priority:   priority,
		Func:       fn,
		live:       1,
	}
}

func (h *Handler) alive() bool {
	return atomic.LoadInt32(&h.live) != 0
}

// release marks the handler dead; called when its strong reference is
// removed from the chunk handler list. The weak reference an expression
// monitor holds skips it from then on, and is pruned the next time a tick
// sees that expression's evaluation change (or by Dispatcher.Rebuild).
func (h *Handler) release() {
	atomic.StoreInt32(&h.live, 0)
}

type handlerKey struct {
	expr keys.ExpressionKey
	id   FuncID
}
