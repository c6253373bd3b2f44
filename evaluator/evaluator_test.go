package evaluator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ifthen/keys"
	"ifthen/reservoir"
	"ifthen/status"
)

func newTestReservoir() *reservoir.Reservoir {
	r := reservoir.New(1, 4)
	v1, _ := status.Unsigned(10, 8)
	r.RegisterStatus(1, 1, v1, 8) // hp = 10
	r.RegisterStatus(1, 2, status.Bool(false), 0)
	return r
}

func TestAndAllTrue(t *testing.T) {
	e := New()
	r := newTestReservoir()
	lit, _ := status.Unsigned(20, 8)
	require.True(t, e.RegisterExpression(1, 100, And, KindComparison, []Comparison{
		{Key: 1, Op: status.Lt, Right: lit},
	}, nil, nil))
	assert.Equal(t, status.True, e.Evaluate(100, r))
}

func TestAndShortCircuitsOnFalse(t *testing.T) {
	e := New()
	r := newTestReservoir()
	lo, _ := status.Unsigned(5, 8)
	hi, _ := status.Unsigned(20, 8)
	require.True(t, e.RegisterExpression(1, 100, And, KindComparison, []Comparison{
		{Key: 1, Op: status.Lt, Right: lo}, // false: 10 < 5
		{Key: 1, Op: status.Lt, Right: hi}, // would be true
	}, nil, nil))
	assert.Equal(t, status.False, e.Evaluate(100, r))
}

func TestOrShortCircuitsOnTrue(t *testing.T) {
	e := New()
	r := newTestReservoir()
	hi, _ := status.Unsigned(20, 8)
	lo, _ := status.Unsigned(5, 8)
	require.True(t, e.RegisterExpression(1, 100, Or, KindComparison, []Comparison{
		{Key: 1, Op: status.Lt, Right: hi}, // true: 10 < 20
		{Key: 1, Op: status.Lt, Right: lo},
	}, nil, nil))
	assert.Equal(t, status.True, e.Evaluate(100, r))
}

func TestUnknownPropagatesWithoutShortCircuit(t *testing.T) {
	e := New()
	r := newTestReservoir()
	lit, _ := status.Unsigned(20, 8)
	require.True(t, e.RegisterExpression(1, 100, And, KindComparison, []Comparison{
		{Key: 999, Op: status.Lt, Right: lit}, // unknown: unregistered status
		{Key: 1, Op: status.Lt, Right: lit},   // true, doesn't short-circuit the unknown away
	}, nil, nil))
	assert.Equal(t, status.Unknown, e.Evaluate(100, r))
}

func TestAndFalseBeatsUnknown(t *testing.T) {
	e := New()
	r := newTestReservoir()
	lit, _ := status.Unsigned(20, 8)
	lo, _ := status.Unsigned(5, 8)
	require.True(t, e.RegisterExpression(1, 100, And, KindComparison, []Comparison{
		{Key: 999, Op: status.Lt, Right: lit}, // unknown
		{Key: 1, Op: status.Lt, Right: lo},    // false: 10 < 5
	}, nil, nil))
	assert.Equal(t, status.False, e.Evaluate(100, r))
}

func TestTransitionTerm(t *testing.T) {
	e := New()
	r := newTestReservoir()
	require.True(t, e.RegisterExpression(1, 100, Or, KindTransition, nil, []Transition{{Key: 1}}, nil))
	assert.Equal(t, status.False, e.Evaluate(100, r), "freshly registered status has no transition yet")

	bumped, _ := status.Unsigned(11, 8)
	r.AssignStatus(1, bumped)
	assert.Equal(t, status.True, e.Evaluate(100, r))
}

func TestSubExpressionComposition(t *testing.T) {
	e := New()
	r := newTestReservoir()
	lit, _ := status.Unsigned(20, 8)
	require.True(t, e.RegisterExpression(1, 1, And, KindComparison, []Comparison{
		{Key: 1, Op: status.Lt, Right: lit},
	}, nil, nil))
	require.True(t, e.RegisterExpression(1, 2, Or, KindSubExpression, nil, nil, []SubExpression{
		{Expression: 1, Expect: false},
	}))
	// sub-expr 1 evaluates True; expect=false => term is False.
	assert.Equal(t, status.False, e.Evaluate(2, r))
}

func TestSubExpressionMustAlreadyBeRegistered(t *testing.T) {
	e := New()
	ok := e.RegisterExpression(1, 2, Or, KindSubExpression, nil, nil, []SubExpression{
		{Expression: 999, Expect: true},
	})
	assert.False(t, ok)
}

func TestRegisterExpressionRejectsEmptyTerms(t *testing.T) {
	e := New()
	assert.False(t, e.RegisterExpression(1, 1, And, KindComparison, nil, nil, nil))
}

func TestRegisterExpressionRejectsDuplicateKey(t *testing.T) {
	e := New()
	lit, _ := status.Unsigned(1, 8)
	require.True(t, e.RegisterExpression(1, 1, And, KindComparison, []Comparison{{Key: 1, Op: status.Eq, Right: lit}}, nil, nil))
	assert.False(t, e.RegisterExpression(1, 1, And, KindComparison, []Comparison{{Key: 1, Op: status.Eq, Right: lit}}, nil, nil))
}

func TestRemoveChunkDropsItsExpressions(t *testing.T) {
	e := New()
	r := newTestReservoir()
	lit, _ := status.Unsigned(20, 8)
	require.True(t, e.RegisterExpression(1, 1, And, KindComparison, []Comparison{{Key: 1, Op: status.Lt, Right: lit}}, nil, nil))

	e.RemoveChunk(1)
	assert.Equal(t, status.Unknown, e.Evaluate(1, r))
}

func TestDependenciesWalksSubExpressions(t *testing.T) {
	e := New()
	lit, _ := status.Unsigned(20, 8)
	require.True(t, e.RegisterExpression(1, 1, And, KindComparison, []Comparison{{Key: 1, Op: status.Lt, Right: lit}}, nil, nil))
	require.True(t, e.RegisterExpression(1, 2, Or, KindTransition, nil, []Transition{{Key: 2}}, nil))
	require.True(t, e.RegisterExpression(1, 3, Or, KindSubExpression, nil, nil, []SubExpression{
		{Expression: 1, Expect: true},
		{Expression: 2, Expect: true},
	}))

	deps := e.Dependencies(3)
	assert.True(t, deps[keys.StatusKey(1)])
	assert.True(t, deps[keys.StatusKey(2)])
	assert.Len(t, deps, 2)
}
