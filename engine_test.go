package ifthen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ifthen/dispatch"
	"ifthen/evaluator"
	"ifthen/keys"
	"ifthen/queue"
	"ifthen/status"
)

type fired struct {
	expr keys.ExpressionKey
	now  status.Tri
	last status.Tri
}

func recorder(out *[]fired) dispatch.HandlerFunc {
	return func(expr keys.ExpressionKey, now, last status.Tri) {
		*out = append(*out, fired{expr: expr, now: now, last: last})
	}
}

const (
	chunkH keys.ChunkKey = 1
	chunkE keys.ChunkKey = 2

	statusH keys.StatusKey = 100
	exprE   keys.ExpressionKey = 200
)

// TestScenarioS1BasicFire pins spec scenario S1.
func TestScenarioS1BasicFire(t *testing.T) {
	e := New(4, 8, 8, 8)
	u8, ok := status.Unsigned(10, 8)
	require.True(t, ok)
	require.True(t, e.RegisterStatus(chunkH, statusH, u8, 0))

	five, ok := status.Unsigned(5, 8)
	require.True(t, ok)
	_, exprCount, _ := e.ExtendChunk(chunkE, nil, []ExpressionRecord{{
		Key: exprE, Logic: evaluator.And, Kind: evaluator.KindComparison,
		Comparisons: []evaluator.Comparison{{Key: statusH, Op: status.Lt, Right: five}},
	}}, nil)
	require.Equal(t, 1, exprCount)

	var calls []fired
	cond, ok := dispatch.MakeCondition(dispatch.True, dispatch.False)
	require.True(t, ok)
	require.True(t, e.RegisterHandler(chunkE, exprE, cond, "on-low", 0, recorder(&calls)))

	three, ok := status.Unsigned(3, 8)
	require.True(t, ok)
	require.True(t, e.AssignStatus(statusH, three))
	e.Tick()

	require.Len(t, calls, 1)
	assert.Equal(t, status.True, calls[0].now)
	assert.Equal(t, status.False, calls[0].last)

	e.Tick()
	assert.Len(t, calls, 1, "tick with no further assignment must not re-fire")
}

// TestScenarioS2NullTransition pins spec scenario S2: a handler registered
// under a different chunk than the status survives remove_chunk(H.chunk)
// and fires once more with (Unknown, True) before eventually going quiet.
func TestScenarioS2NullTransition(t *testing.T) {
	e := New(4, 8, 8, 8)
	u8, ok := status.Unsigned(10, 8)
	require.True(t, ok)
	require.True(t, e.RegisterStatus(chunkH, statusH, u8, 0))

	five, ok := status.Unsigned(5, 8)
	require.True(t, ok)
	e.ExtendChunk(chunkE, nil, []ExpressionRecord{{
		Key: exprE, Logic: evaluator.And, Kind: evaluator.KindComparison,
		Comparisons: []evaluator.Comparison{{Key: statusH, Op: status.Lt, Right: five}},
	}}, nil)

	var calls []fired
	condFire, ok := dispatch.MakeCondition(dispatch.True, dispatch.False)
	require.True(t, ok)
	require.True(t, e.RegisterHandler(chunkE, exprE, condFire, "on-low", 0, recorder(&calls)))

	condNull, ok := dispatch.MakeCondition(dispatch.Null, dispatch.True)
	require.True(t, ok)
	require.True(t, e.RegisterHandler(chunkE, exprE, condNull, "on-removed", 1, recorder(&calls)))

	three, ok := status.Unsigned(3, 8)
	require.True(t, ok)
	require.True(t, e.AssignStatus(statusH, three))
	e.Tick()
	require.Len(t, calls, 1)

	e.RemoveChunk(chunkH)
	e.Tick()

	require.Len(t, calls, 2)
	assert.Equal(t, status.Unknown, calls[1].now)
	assert.Equal(t, status.True, calls[1].last)
}

// TestScenarioS3SeriesDeferAndReapply pins spec scenario S3.
func TestScenarioS3SeriesDeferAndReapply(t *testing.T) {
	e := New(4, 8, 8, 8)
	var statusX keys.StatusKey = 300
	zero, ok := status.Signed(0, 8)
	require.True(t, ok)
	require.True(t, e.RegisterStatus(chunkH, statusX, zero, 0))
	require.True(t, e.AssignStatus(statusX, mustSignedE(t, 1, 8))) // pre-change the flag

	five := mustSignedE(t, 5, 8)
	seven := mustSignedE(t, 7, 8)
	e.AccumulatorMut().Enqueue(queue.StatusAssignment{Key: statusX, Op: status.Copy, Value: five}, queue.Yield)
	e.AccumulatorMut().Enqueue(queue.StatusAssignment{Key: statusX, Op: status.Copy, Value: seven}, queue.Yield)

	e.Tick() // flush: X already has a pending transition, so both defer

	v := e.FindStatus(statusX)
	got, _ := v.SignedValue()
	assert.EqualValues(t, 1, got, "deferred series must not have applied yet")

	e.Tick() // second flush: no prior transition now, series applies

	v = e.FindStatus(statusX)
	got, _ = v.SignedValue()
	assert.EqualValues(t, 7, got, "the second write wins")
}

// TestScenarioS6PriorityOrder pins spec scenario S6: three handlers on the
// same expression, registered out of priority order, fire ascending by
// priority.
func TestScenarioS6PriorityOrder(t *testing.T) {
	e := New(4, 8, 8, 8)
	u8, ok := status.Unsigned(10, 8)
	require.True(t, ok)
	require.True(t, e.RegisterStatus(chunkH, statusH, u8, 0))
	five, ok := status.Unsigned(5, 8)
	require.True(t, ok)
	_, exprCount, _ := e.ExtendChunk(chunkE, nil, []ExpressionRecord{{
		Key: exprE, Logic: evaluator.And, Kind: evaluator.KindComparison,
		Comparisons: []evaluator.Comparison{{Key: statusH, Op: status.Lt, Right: five}},
	}}, nil)
	require.Equal(t, 1, exprCount)

	var order []string
	mk := func(name string) dispatch.HandlerFunc {
		return func(keys.ExpressionKey, status.Tri, status.Tri) { order = append(order, name) }
	}
	cond, ok := dispatch.MakeCondition(dispatch.True, dispatch.False)
	require.True(t, ok)

	require.True(t, e.RegisterHandler(chunkE, exprE, cond, "mid", 0, mk("mid")))
	require.True(t, e.RegisterHandler(chunkE, exprE, cond, "hi", 10, mk("hi")))
	require.True(t, e.RegisterHandler(chunkE, exprE, cond, "lo", -10, mk("lo")))

	require.True(t, e.AssignStatus(statusH, mustUnsignedE(t, 3, 8)))
	e.Tick()

	assert.Equal(t, []string{"lo", "mid", "hi"}, order)
}

// TestRoundTripAssignRead is universal property 1.
func TestRoundTripAssignRead(t *testing.T) {
	e := New(1, 1, 1, 1)
	var k keys.StatusKey = 1
	v, ok := status.Signed(-7, 16)
	require.True(t, ok)
	require.True(t, e.RegisterStatus(chunkH, k, v, 0))

	nv, ok := status.Signed(42, 16)
	require.True(t, ok)
	require.True(t, e.AssignStatus(k, nv))

	got := e.FindStatus(k)
	gi, _ := got.SignedValue()
	assert.EqualValues(t, 42, gi)
}

func mustSignedE(t *testing.T, v int64, width uint8) status.Value {
	t.Helper()
	val, ok := status.Signed(v, width)
	require.True(t, ok)
	return val
}

func mustUnsignedE(t *testing.T, v uint64, width uint8) status.Value {
	t.Helper()
	val, ok := status.Unsigned(v, width)
	require.True(t, ok)
	return val
}
