package dispatch

import (
	"slices"
	"sort"

	"github.com/sasha-s/go-deadlock"

	"ifthen/evaluator"
	"ifthen/internal/enginelog"
	"ifthen/keys"
	"ifthen/reservoir"
	"ifthen/status"
)

// cacheEntry is one fired handler waiting for its function to be called,
// held in ascending-priority order (spec.md §4.5 step 5e/7).
type cacheEntry struct {
	handler *Handler
	now     status.Tri
	last    status.Tri
}

// Dispatcher is the central piece: inverted status→expression and
// expression→handler indexes, plus the tick loop that detects transitions
// and fires handlers in priority order (spec.md §4.5).
type Dispatcher struct {
	statusMonitors     map[keys.StatusKey]*statusMonitor
	expressionMonitors map[keys.ExpressionKey]*expressionMonitor
	handlers           map[handlerKey]*Handler
	chunkHandlers      map[keys.ChunkKey]map[handlerKey]bool

	cache []cacheEntry

	dispatching deadlock.Mutex
}

// New returns an empty Dispatcher with the given initial capacity hints.
func New(statusCap, exprCap, cacheCap int) *Dispatcher {
	return &Dispatcher{
		statusMonitors:     make(map[keys.StatusKey]*statusMonitor, statusCap),
		expressionMonitors: make(map[keys.ExpressionKey]*expressionMonitor, exprCap),
		handlers:           make(map[handlerKey]*Handler),
		chunkHandlers:      make(map[keys.ChunkKey]map[handlerKey]bool),
		cache:              make([]cacheEntry, 0, cacheCap),
	}
}

// RegisterHandler inserts a handler: fails if condition is invalid, fn is
// nil, or (expression, id) is already registered. On success the handler's
// strong reference lives in the chunk's handler list and a weak reference
// (the same *Handler, observed only via alive()) lives in the expression's
// monitor.
//
// If this is the expression's first handler and its expression is already
// registered in ev, the monitor is wired into the status-monitor index and
// its baseline evaluation is primed immediately against r's current state
// (ensureRegistered/primeBaseline below) — so a handler registered before
// any later assignment observes that pre-assignment state as "last" on the
// very next Tick, rather than Unknown. An expression not yet known to ev
// falls back to the lazy wiring Tick's registerMonitors performs on its
// next pass, which leaves the baseline as Unknown (no earlier state ever
// existed to prime from).
func (d *Dispatcher) RegisterHandler(chunk keys.ChunkKey, expr keys.ExpressionKey, condition Condition, id FuncID, priority int64, fn HandlerFunc, r *reservoir.Reservoir, ev *evaluator.Evaluator) bool {
	if condition == invalidCondition || fn == nil {
		return false
	}
	key := handlerKey{expr: expr, id: id}
	if _, exists := d.handlers[key]; exists {
		return false
	}

	h := newHandler(chunk, expr, id, condition, priority, fn)
	d.handlers[key] = h
	if d.chunkHandlers[chunk] == nil {
		d.chunkHandlers[chunk] = make(map[handlerKey]bool)
	}
	d.chunkHandlers[chunk][key] = true

	mon, ok := d.expressionMonitors[expr]
	if !ok {
		mon = newExpressionMonitor()
		d.expressionMonitors[expr] = mon
	}
	mon.handlers = append(mon.handlers, h)

	if d.ensureRegistered(expr, mon, ev) {
		d.primeBaseline(expr, mon, r, ev)
	}
	return true
}

// ensureRegistered wires mon's status dependencies into the status-monitor
// index and records its flush sign, if not already done. Returns true the
// first time it succeeds for mon (the caller primes a baseline exactly
// once, right after that transition).
func (d *Dispatcher) ensureRegistered(expr keys.ExpressionKey, mon *expressionMonitor, ev *evaluator.Evaluator) bool {
	if mon.registered {
		return false
	}
	deps := ev.Dependencies(expr)
	if len(deps) == 0 {
		return false // expression not yet registered in the Evaluator
	}
	for statusKey := range deps {
		sm, ok := d.statusMonitors[statusKey]
		if !ok {
			sm = &statusMonitor{expressionKeys: make(map[keys.ExpressionKey]bool)}
			d.statusMonitors[statusKey] = sm
		}
		sm.expressionKeys[expr] = true
	}
	mon.registered = true
	mon.flushCondition = ev.FlushRequired(expr)
	return true
}

// primeBaseline evaluates expr against r's current state and stores it as
// mon's memoized last evaluation, and records each dependency's current
// existence as its monitor's baseline — so the next Tick's transition
// propagation only fires on a genuine change from this moment forward, not
// on the dependency's very first observation (spec.md §8 scenario "handler
// fires on the first transition after registration, comparing against the
// state at registration time").
func (d *Dispatcher) primeBaseline(expr keys.ExpressionKey, mon *expressionMonitor, r *reservoir.Reservoir, ev *evaluator.Evaluator) {
	for statusKey := range ev.Dependencies(expr) {
		if sm, ok := d.statusMonitors[statusKey]; ok {
			_, exists := r.FindTransition(statusKey)
			sm.lastExisted = exists
		}
	}
	mon.lastEval = ev.Evaluate(expr, r)
	mon.lastEvalValid = true
}

// UnregisterHandler removes the strong reference for (expr, id). The
// released handler is never called again; the weak reference in its
// expression monitor is pruned the next time a Tick sees that expression's
// evaluation change, or by Rebuild.
func (d *Dispatcher) UnregisterHandler(expr keys.ExpressionKey, id FuncID) bool {
	key := handlerKey{expr: expr, id: id}
	h, ok := d.handlers[key]
	if !ok {
		return false
	}
	d.dropHandler(key, h)
	return true
}

// UnregisterAllForExpression removes every handler registered on expr,
// returning how many were removed.
func (d *Dispatcher) UnregisterAllForExpression(expr keys.ExpressionKey) int {
	return d.dropWhere(func(k handlerKey) bool { return k.expr == expr })
}

// UnregisterAllForFunc removes every handler registered under id, across
// every expression, returning how many were removed.
func (d *Dispatcher) UnregisterAllForFunc(id FuncID) int {
	return d.dropWhere(func(k handlerKey) bool { return k.id == id })
}

func (d *Dispatcher) dropWhere(match func(handlerKey) bool) int {
	n := 0
	for key, h := range d.handlers {
		if match(key) {
			d.dropHandler(key, h)
			n++
		}
	}
	return n
}

func (d *Dispatcher) dropHandler(key handlerKey, h *Handler) {
	h.release()
	delete(d.handlers, key)
	if set, ok := d.chunkHandlers[h.Chunk]; ok {
		delete(set, key)
	}
}

// HandlerInfo is the read-only view FindHandler returns.
type HandlerInfo struct {
	Chunk      keys.ChunkKey
	Expression keys.ExpressionKey
	Condition  Condition
	Priority   int64
}

// FindHandler reports the registered handler for (expr, id), if any and
// still alive.
func (d *Dispatcher) FindHandler(expr keys.ExpressionKey, id FuncID) (HandlerInfo, bool) {
	h, ok := d.handlers[handlerKey{expr: expr, id: id}]
	if !ok || !h.alive() {
		return HandlerInfo{}, false
	}
	return HandlerInfo{Chunk: h.Chunk, Expression: h.Expression, Condition: h.Condition, Priority: h.Priority}, true
}

// RemoveChunk drops every handler registered under the given chunk key —
// a handler's chunk is whatever the caller passed to RegisterHandler, which
// need not be the chunk of the statuses its expression reads (an expression
// commonly compares statuses from other chunks). A handler survives its
// dependency's chunk going away exactly as long as it was registered under
// a different chunk key, so it still observes the resulting
// invalid-transition on the next Tick; it stays registered until it is
// unregistered or its own chunk is removed (spec.md §4.5, §5:
// remove_chunk atomically deletes statuses, expressions, and
// handlers for a chunk — the Engine façade calls this alongside
// Reservoir.RemoveChunk and Evaluator.RemoveChunk).
func (d *Dispatcher) RemoveChunk(chunk keys.ChunkKey) {
	for key := range d.chunkHandlers[chunk] {
		if h, ok := d.handlers[key]; ok {
			h.release()
			delete(d.handlers, key)
		}
	}
	delete(d.chunkHandlers, chunk)
}

// Tick runs one full dispatch cycle: register newly-monitored expressions,
// propagate status transitions, evaluate and cache matching handlers, reset
// transitions, then fire the cache in priority order (spec.md §4.5). It is
// a no-op if a Tick is already in progress (reentrancy — spec.md §7); ran
// reports false in that case so a caller can tell the cycle never ran.
func (d *Dispatcher) Tick(r *reservoir.Reservoir, ev *evaluator.Evaluator) (ran bool) {
	if !d.dispatching.TryLock() {
		enginelog.Reentrancy()
		return false
	}
	defer d.dispatching.Unlock()

	d.registerMonitors(ev)
	d.propagateTransitions(r)
	d.evaluateAndCache(r, ev)
	r.ResetTransitions()
	d.fireCache()
	return true
}

// registerMonitors wires every unregistered expression-monitor's status
// dependencies into the status-monitor index (spec.md §4.5 step 2). This is
// the lazy fallback for a handler registered before its expression existed
// in the Evaluator; since no earlier reservoir state was ever observable,
// its baseline evaluation starts Unknown rather than primed (contrast
// RegisterHandler's eager path, which primes from the state at registration
// time).
func (d *Dispatcher) registerMonitors(ev *evaluator.Evaluator) {
	for _, expr := range d.sortedExpressionKeys() {
		d.ensureRegistered(expr, d.expressionMonitors[expr], ev)
	}
}

// sortedExpressionKeys returns d.expressionMonitors' keys in ascending
// order, so a caller that walks them drives same-priority, cross-expression
// work (e.g. insertCache ties) in a reproducible sequence instead of Go's
// randomized map iteration order.
func (d *Dispatcher) sortedExpressionKeys() []keys.ExpressionKey {
	out := make([]keys.ExpressionKey, 0, len(d.expressionMonitors))
	for expr := range d.expressionMonitors {
		out = append(out, expr)
	}
	slices.Sort(out)
	return out
}

// sortedStatusKeys returns d.statusMonitors' keys in ascending order, for
// the same reason sortedExpressionKeys does.
func (d *Dispatcher) sortedStatusKeys() []keys.StatusKey {
	out := make([]keys.StatusKey, 0, len(d.statusMonitors))
	for statusKey := range d.statusMonitors {
		out = append(out, statusKey)
	}
	slices.Sort(out)
	return out
}

// propagateTransitions updates each status monitor's existence tracking and
// marks every expression-monitor depending on it valid/invalid accordingly
// (spec.md §4.5 step 3).
func (d *Dispatcher) propagateTransitions(r *reservoir.Reservoir) {
	for _, statusKey := range d.sortedStatusKeys() {
		sm := d.statusMonitors[statusKey]
		flag, exists := r.FindTransition(statusKey)
		becameValid := exists && (flag || !sm.lastExisted)
		becameInvalid := !exists && sm.lastExisted
		sm.lastExisted = exists

		if !becameValid && !becameInvalid {
			continue
		}
		for expr := range sm.expressionKeys {
			mon, ok := d.expressionMonitors[expr]
			if !ok {
				delete(sm.expressionKeys, expr) // stale reference, drop it (step 4)
				continue
			}
			if becameValid {
				mon.validTransition = true
			}
			if becameInvalid {
				mon.invalidTransition = true
			}
		}
	}
}

// evaluateAndCache runs the cache-handlers routine for every
// expression-monitor with a pending transition: evaluate (or force
// Unknown), compare to the memoized last evaluation, and if different,
// enqueue every matching live handler into the priority-ordered cache
// buffer (spec.md §4.5 step 5).
func (d *Dispatcher) evaluateAndCache(r *reservoir.Reservoir, ev *evaluator.Evaluator) {
	for _, expr := range d.sortedExpressionKeys() {
		mon := d.expressionMonitors[expr]
		if !mon.validTransition && !mon.invalidTransition {
			continue
		}

		last := status.Unknown
		if mon.lastEvalValid && !mon.flushCondition {
			last = mon.lastEval
		}

		var now status.Tri
		if mon.invalidTransition {
			now = status.Unknown
			mon.lastEvalValid = false
		} else {
			now = ev.Evaluate(expr, r)
			mon.lastEval = now
			mon.lastEvalValid = true
		}
		mon.validTransition = false
		mon.invalidTransition = false

		if last == now {
			continue
		}

		for _, h := range mon.handlers {
			if h.alive() && h.Condition.matches(now, last) {
				d.insertCache(cacheEntry{handler: h, now: now, last: last})
			}
		}

		if !mon.pruneDead() {
			delete(d.expressionMonitors, expr)
		}
	}
}

// insertCache inserts entry at the position that keeps d.cache sorted
// ascending by priority, breaking ties by insertion order (stable
// upper-bound insertion, spec.md §4.5 step 5e / §5's ordering guarantee).
// That guarantee only holds because evaluateAndCache visits
// d.expressionMonitors in a deterministic (sorted) order — a bare `range`
// over the map would make same-priority ties across expressions reorder
// from tick to tick.
func (d *Dispatcher) insertCache(entry cacheEntry) {
	idx := sort.Search(len(d.cache), func(i int) bool {
		return d.cache[i].handler.Priority > entry.handler.Priority
	})
	d.cache = append(d.cache, cacheEntry{})
	copy(d.cache[idx+1:], d.cache[idx:])
	d.cache[idx] = entry
}

// fireCache walks the cache buffer in order, invoking each handler's
// function, then clears the buffer for the next tick (spec.md §4.5 step 7).
func (d *Dispatcher) fireCache() {
	cache := d.cache
	d.cache = d.cache[:0]
	for _, entry := range cache {
		entry.handler.Func(entry.handler.Expression, entry.now, entry.last)
	}
}

// Rebuild re-hashes the monitor maps to the given bucket counts and prunes
// dead handlers, mirroring Reservoir.Rebuild's shape (spec.md §4.5).
func (d *Dispatcher) Rebuild(statusBuckets, exprBuckets int) {
	newStatusMonitors := make(map[keys.StatusKey]*statusMonitor, statusBuckets)
	for k, v := range d.statusMonitors {
		newStatusMonitors[k] = v
	}
	d.statusMonitors = newStatusMonitors

	newExprMonitors := make(map[keys.ExpressionKey]*expressionMonitor, exprBuckets)
	for k, mon := range d.expressionMonitors {
		if mon.pruneDead() {
			newExprMonitors[k] = mon
		}
	}
	d.expressionMonitors = newExprMonitors
	enginelog.Rebuilt("dispatcher", statusBuckets+exprBuckets)
}
