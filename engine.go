// SPDX-License-Identifier: Apache-2.0

// Package ifthen is the reactive if-then rules engine's core: a Reservoir of
// bit-packed status values, an Accumulator that batches writes into it, an
// Evaluator that compiles and runs boolean expressions over it, and a
// Dispatcher that fires priority-ordered handlers on expression transitions
// (spec.md §§2-6). Engine composes the four into the single external
// surface a host actually drives.
package ifthen

import (
	"ifthen/dispatch"
	"ifthen/evaluator"
	"ifthen/internal/codes"
	"ifthen/keys"
	"ifthen/queue"
	"ifthen/reservoir"
	"ifthen/status"
)

// StatusRecord is one status to register via ExtendChunk (spec.md §6:
// "status record: (status_key, initial_value, optional_bit_width)").
type StatusRecord struct {
	Key   keys.StatusKey
	Init  status.Value
	Width uint8 // 0 = auto
}

// ExpressionRecord is one expression to register via ExtendChunk (spec.md
// §6: "expression record: (expr_key, logic, kind, terms: [...])").
// Exactly one of Comparisons/Transitions/Subs should be populated,
// matching Kind.
type ExpressionRecord struct {
	Key         keys.ExpressionKey
	Logic       evaluator.Logic
	Kind        evaluator.Kind
	Comparisons []evaluator.Comparison
	Transitions []evaluator.Transition
	Subs        []evaluator.SubExpression
}

// HandlerRecord is one handler to register via ExtendChunk (spec.md §6:
// "handler record: (expr_key, condition_mask, priority, function)").
type HandlerRecord struct {
	Expression keys.ExpressionKey
	Condition  dispatch.Condition
	FuncID     dispatch.FuncID
	Priority   int64
	Func       dispatch.HandlerFunc
}

// Engine composes the Reservoir, Accumulator, Evaluator and Dispatcher
// behind the single surface spec.md §6 describes.
type Engine struct {
	reservoir   *reservoir.Reservoir
	accumulator *queue.Accumulator
	evaluator   *evaluator.Evaluator
	dispatcher  *dispatch.Dispatcher

	// lastErr records the codes.Error for the most recent Register*/Assign*
	// failure — a diagnostic aid only. spec.md §7's actual propagation
	// contract is the returned bool; nothing here changes state or retries
	// anything, and a successful call always clears it.
	lastErr error
}

// LastError returns the stack-annotated reason the most recent
// Register*/Assign* call returned false, or nil if it succeeded (or none
// has been called yet). This is a diagnostic convenience for a host or the
// ruletable builder; spec.md §7's actual contract is the returned bool.
func (e *Engine) LastError() error {
	return e.lastErr
}

// New returns an empty Engine sized by the given capacity hints (spec.md
// §6: Engine::new(chunk_cap, status_cap, expr_cap, cache_cap)).
func New(chunkCap, statusCap, exprCap, cacheCap int) *Engine {
	return &Engine{
		reservoir:   reservoir.New(chunkCap, statusCap),
		accumulator: queue.New(cacheCap),
		evaluator:   evaluator.New(),
		dispatcher:  dispatch.New(statusCap, exprCap, cacheCap),
	}
}

// ExtendChunk registers a batch of statuses, expressions and handlers under
// one chunk, as produced by an external builder (e.g. ruletable.Build —
// spec.md §6). It applies records in order and stops at the first failure,
// reporting how many of each kind actually registered; a caller that wants
// strict all-or-nothing semantics should RemoveChunk(chunk) on partial
// failure, since each individual Register* call already leaves its own
// state unchanged on failure (spec.md §7).
func (e *Engine) ExtendChunk(chunk keys.ChunkKey, statuses []StatusRecord, expressions []ExpressionRecord, handlers []HandlerRecord) (statusCount, exprCount, handlerCount int) {
	for _, s := range statuses {
		if !e.RegisterStatus(chunk, s.Key, s.Init, s.Width) {
			return statusCount, exprCount, handlerCount
		}
		statusCount++
	}
	for _, x := range expressions {
		if !e.evaluator.RegisterExpression(chunk, x.Key, x.Logic, x.Kind, x.Comparisons, x.Transitions, x.Subs) {
			e.lastErr = codes.Error(classifyExpressionFailure(e.evaluator, x), "expression registration failed")
			return statusCount, exprCount, handlerCount
		}
		e.lastErr = nil
		exprCount++
	}
	for _, h := range handlers {
		if !e.RegisterHandler(chunk, h.Expression, h.Condition, h.FuncID, h.Priority, h.Func) {
			return statusCount, exprCount, handlerCount
		}
		handlerCount++
	}
	return statusCount, exprCount, handlerCount
}

// classifyExpressionFailure reports which of spec.md §7's R0xx reasons a
// failed RegisterExpression call for x belongs to, by re-deriving the same
// checks RegisterExpression itself runs internally — ev.ExpressionExists is
// the only state RegisterExpression doesn't already expose some other way.
func classifyExpressionFailure(ev *evaluator.Evaluator, x ExpressionRecord) codes.Code {
	if ev.ExpressionExists(x.Key) {
		return codes.RDuplicateKey
	}

	var count int
	switch x.Kind {
	case evaluator.KindComparison:
		count = len(x.Comparisons)
	case evaluator.KindTransition:
		count = len(x.Transitions)
	case evaluator.KindSubExpression:
		count = len(x.Subs)
		for _, s := range x.Subs {
			if !ev.ExpressionExists(s.Expression) {
				return codes.RDanglingSubExpr
			}
		}
	default:
		return codes.RUnknownKind
	}
	if count == 0 {
		return codes.REmptyTermList
	}
	return codes.RDanglingSubExpr
}

// RemoveChunk atomically deletes every status, expression and handler
// registered under chunk (spec.md §5).
func (e *Engine) RemoveChunk(chunk keys.ChunkKey) {
	e.reservoir.RemoveChunk(chunk)
	e.evaluator.RemoveChunk(chunk)
	e.dispatcher.RemoveChunk(chunk)
}

// RegisterStatus registers one status value (spec.md §6).
func (e *Engine) RegisterStatus(chunk keys.ChunkKey, key keys.StatusKey, init status.Value, width uint8) bool {
	if !e.reservoir.RegisterStatus(chunk, key, init, width) {
		code := codes.RWidthOutOfRange
		msg := "status registration failed: value does not fit the declared/auto width, or width is invalid for init's kind"
		if e.reservoir.StatusExists(key) {
			code = codes.RDuplicateKey
			msg = "status registration failed: duplicate key"
		}
		e.lastErr = codes.Error(code, msg)
		return false
	}
	e.lastErr = nil
	return true
}

// AssignStatus writes value directly into key's slot, bypassing the
// Accumulator (spec.md §6). Most callers should prefer
// AccumulatorMut().Enqueue and flush via Tick; this exists for the cases
// spec.md §8's scenarios use it for — an immediate write the host wants
// reflected before the next tick's baseline is read.
func (e *Engine) AssignStatus(key keys.StatusKey, value status.Value) bool {
	if !e.reservoir.AssignStatus(key, value) {
		code := codes.AKindMismatch
		msg := "assign failed: value kind/width does not match the slot"
		if !e.reservoir.StatusExists(key) {
			code = codes.AUnregistered
			msg = "assign failed: unregistered key"
		}
		e.lastErr = codes.Error(code, msg)
		return false
	}
	e.lastErr = nil
	return true
}

// FindStatus reads a status value (spec.md §6).
func (e *Engine) FindStatus(key keys.StatusKey) status.Value {
	return e.reservoir.FindStatus(key)
}

// AccumulatorMut returns the handle for queuing assignments
// (spec.md §6: "accumulator_mut() returning a handle exposing
// enqueue/enqueue_many").
func (e *Engine) AccumulatorMut() *queue.Accumulator {
	return e.accumulator
}

// RegisterHandler registers one handler directly, outside ExtendChunk
// (spec.md §6).
func (e *Engine) RegisterHandler(chunk keys.ChunkKey, expr keys.ExpressionKey, condition dispatch.Condition, id dispatch.FuncID, priority int64, fn dispatch.HandlerFunc) bool {
	if !e.dispatcher.RegisterHandler(chunk, expr, condition, id, priority, fn, e.reservoir, e.evaluator) {
		e.lastErr = codes.Error(codes.RDuplicateKey, "handler registration failed: invalid condition mask, nil function, or duplicate (expression, id)")
		return false
	}
	e.lastErr = nil
	return true
}

// UnregisterHandler removes one handler (spec.md §6).
func (e *Engine) UnregisterHandler(expr keys.ExpressionKey, id dispatch.FuncID) bool {
	return e.dispatcher.UnregisterHandler(expr, id)
}

// FindHandler reports the registered handler for (expr, id), if any and
// still alive — a read-only inspection hook for a host console (repl.go
// uses this for its `handlers` command).
func (e *Engine) FindHandler(expr keys.ExpressionKey, id dispatch.FuncID) (dispatch.HandlerInfo, bool) {
	return e.dispatcher.FindHandler(expr, id)
}

// Tick flushes the Accumulator into the Reservoir, then runs one full
// dispatch cycle: propagate transitions, evaluate changed expressions,
// reset transition flags, and fire matching handlers in priority order
// (spec.md §4.5, §6).
func (e *Engine) Tick() {
	e.accumulator.Flush(e.reservoir)
	if e.dispatcher.Tick(e.reservoir, e.evaluator) {
		e.lastErr = nil
		return
	}
	e.lastErr = codes.Error(codes.XReentrant, "tick skipped: dispatch already in progress")
}

// Rebuild compacts the Reservoir and re-hashes the Dispatcher's monitor
// maps to the given bucket counts (spec.md §4.2, §4.5).
func (e *Engine) Rebuild(chunkBuckets, statusBuckets, exprBuckets int) {
	e.reservoir.Rebuild(chunkBuckets, statusBuckets)
	e.dispatcher.Rebuild(statusBuckets, exprBuckets)
}
