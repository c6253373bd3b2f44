package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ifthen/evaluator"
	"ifthen/keys"
	"ifthen/reservoir"
	"ifthen/status"
)

const (
	chunkH   keys.ChunkKey = 1
	chunkE   keys.ChunkKey = 2
	statusH  keys.StatusKey = 10
	exprE    keys.ExpressionKey = 20
	funcMain FuncID = "main"
)

// newHLessThan5 registers H=init (signed, width 8) in chunkH and an
// expression E = (H < 5) in chunkE, returning both for the caller to drive.
func newHLessThan5(t *testing.T, init int64) (*reservoir.Reservoir, *evaluator.Evaluator) {
	t.Helper()
	r := reservoir.New(1, 1)
	v, ok := status.Signed(init, 8)
	require.True(t, ok)
	require.True(t, r.RegisterStatus(chunkH, statusH, v, 0))

	ev := evaluator.New()
	five, ok := status.Signed(5, 8)
	require.True(t, ok)
	require.True(t, ev.RegisterExpression(chunkE, exprE, evaluator.And, evaluator.KindComparison,
		[]evaluator.Comparison{{Key: statusH, Op: status.Lt, Right: five}}, nil, nil))
	return r, ev
}

func fire(calls *[]cacheEntry) HandlerFunc {
	return func(expr keys.ExpressionKey, now, last status.Tri) {
		*calls = append(*calls, cacheEntry{now: now, last: last})
	}
}

// TestHandlerFiresAgainstPrimedBaselineOnFirstTick pins scenario S1: a
// handler registered while H==10 (E false) observes H assigned to 3 (E
// true) and must fire reporting (true, false) on the very first Tick, not
// (true, unknown) — the baseline comes from the state at registration time.
func TestHandlerFiresAgainstPrimedBaselineOnFirstTick(t *testing.T) {
	r, ev := newHLessThan5(t, 10)
	d := New(4, 4, 4)

	cond, ok := MakeCondition(True, False)
	require.True(t, ok)

	var calls []cacheEntry
	require.True(t, d.RegisterHandler(chunkE, exprE, cond, funcMain, 0, fire(&calls), r, ev))

	require.True(t, r.AssignStatus(statusH, mustSigned(t, 3, 8)))
	d.Tick(r, ev)

	require.Len(t, calls, 1)
	assert.Equal(t, status.True, calls[0].now)
	assert.Equal(t, status.False, calls[0].last)

	// No further assignment: a second tick must not re-fire.
	d.Tick(r, ev)
	assert.Len(t, calls, 1)
}

// TestHandlerSurvivesUnrelatedChunkRemoval pins scenario S2: removing H's
// chunk (not E's/the handler's chunk) must not kill the handler — it should
// still observe the resulting invalid-transition on the next Tick.
func TestHandlerSurvivesUnrelatedChunkRemoval(t *testing.T) {
	r, ev := newHLessThan5(t, 10)
	d := New(4, 4, 4)

	cond, ok := MakeCondition(Null, True)
	require.True(t, ok)

	var calls []cacheEntry
	require.True(t, d.RegisterHandler(chunkE, exprE, cond, funcMain, 0, fire(&calls), r, ev))

	condFire, ok := MakeCondition(True, False)
	require.True(t, ok)
	require.True(t, d.RegisterHandler(chunkE, exprE, condFire, "on-low", 0, fire(&calls), r, ev))

	require.True(t, r.AssignStatus(statusH, mustSigned(t, 3, 8)))
	d.Tick(r, ev)
	require.Len(t, calls, 1) // priming fire, as in S1

	r.RemoveChunk(chunkH)
	ev.RemoveChunk(chunkH) // note: H's comparisons live in ev under chunkE, so this is a no-op;
	// RemoveChunk only ever removes the registering chunk's own data (spec.md §4.2/§4.4).

	d.Tick(r, ev)
	require.Len(t, calls, 2)
	assert.Equal(t, status.Unknown, calls[1].now)
	assert.Equal(t, status.True, calls[1].last)

	if _, ok := d.FindHandler(exprE, funcMain); !ok {
		t.Fatal("handler under chunkE must survive removal of chunkH")
	}
}

// TestPriorityOrderFiresLowestFirst pins scenario S6: handlers on the same
// expression fire in ascending priority order regardless of registration
// order.
func TestPriorityOrderFiresLowestFirst(t *testing.T) {
	r, ev := newHLessThan5(t, 10)
	d := New(4, 4, 4)
	cond, ok := MakeCondition(True, False)
	require.True(t, ok)

	var order []string
	mk := func(name string) HandlerFunc {
		return func(keys.ExpressionKey, status.Tri, status.Tri) { order = append(order, name) }
	}

	require.True(t, d.RegisterHandler(chunkE, exprE, cond, "high", 100, mk("high"), r, ev))
	require.True(t, d.RegisterHandler(chunkE, exprE, cond, "low", -5, mk("low"), r, ev))
	require.True(t, d.RegisterHandler(chunkE, exprE, cond, "mid", 10, mk("mid"), r, ev))

	require.True(t, r.AssignStatus(statusH, mustSigned(t, 3, 8)))
	d.Tick(r, ev)

	assert.Equal(t, []string{"low", "mid", "high"}, order)
}

// TestResetTransitionsClearsFlagsAfterTick is the transition-fidelity
// universal property: after a Tick, a status with no further assignment
// reports no pending transition.
func TestResetTransitionsClearsFlagsAfterTick(t *testing.T) {
	r, ev := newHLessThan5(t, 10)
	d := New(4, 4, 4)
	cond, ok := MakeCondition(True, False)
	require.True(t, ok)
	var calls []cacheEntry
	require.True(t, d.RegisterHandler(chunkE, exprE, cond, funcMain, 0, fire(&calls), r, ev))

	require.True(t, r.AssignStatus(statusH, mustSigned(t, 3, 8)))
	flag, exists := r.FindTransition(statusH)
	assert.True(t, exists)
	assert.True(t, flag)

	d.Tick(r, ev)

	flag, exists = r.FindTransition(statusH)
	assert.True(t, exists)
	assert.False(t, flag)
}

// TestStationaryTransitionNeverFires is the handler-idempotence universal
// property: a handler whose condition requires now != last does not fire on
// a tick where the expression's evaluation did not change — here, after an
// assignment that writes back the value already stored.
func TestStationaryTransitionNeverFires(t *testing.T) {
	r, ev := newHLessThan5(t, 10)
	d := New(4, 4, 4)
	cond, ok := MakeCondition(True, False)
	require.True(t, ok)
	var calls []cacheEntry
	require.True(t, d.RegisterHandler(chunkE, exprE, cond, funcMain, 0, fire(&calls), r, ev))

	// Assign the same value back: Write reports unchanged, so no transition
	// flag, so no evaluation, so no fire.
	require.True(t, r.AssignStatus(statusH, mustSigned(t, 10, 8)))
	d.Tick(r, ev)
	assert.Empty(t, calls)
}

// TestUnregisterHandlerStopsFutureFires confirms a released handler's weak
// reference is pruned and never fires again.
func TestUnregisterHandlerStopsFutureFires(t *testing.T) {
	r, ev := newHLessThan5(t, 10)
	d := New(4, 4, 4)
	cond, ok := MakeCondition(True, False)
	require.True(t, ok)
	var calls []cacheEntry
	require.True(t, d.RegisterHandler(chunkE, exprE, cond, funcMain, 0, fire(&calls), r, ev))
	require.True(t, d.UnregisterHandler(exprE, funcMain))

	require.True(t, r.AssignStatus(statusH, mustSigned(t, 3, 8)))
	d.Tick(r, ev)
	assert.Empty(t, calls)

	_, ok = d.FindHandler(exprE, funcMain)
	assert.False(t, ok)
}

func mustSigned(t *testing.T, v int64, width uint8) status.Value {
	t.Helper()
	val, ok := status.Signed(v, width)
	require.True(t, ok)
	return val
}
