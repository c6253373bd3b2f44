package status

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnsignedRoundTrip(t *testing.T) {
	v, ok := Unsigned(200, 8)
	require.True(t, ok)
	got, ok := v.UnsignedValue()
	require.True(t, ok)
	assert.Equal(t, uint64(200), got)

	_, ok = Unsigned(256, 8)
	assert.False(t, ok, "256 does not fit in 8 bits")
}

func TestSignedRoundTrip(t *testing.T) {
	v, ok := Signed(-5, 8)
	require.True(t, ok)
	got, _ := v.SignedValue()
	assert.Equal(t, int64(-5), got)

	_, ok = Signed(200, 8)
	assert.False(t, ok, "200 overflows an 8-bit signed value")
}

func TestCompareBoolVsNumericFails(t *testing.T) {
	b := Bool(true)
	u, _ := Unsigned(1, 8)
	assert.Equal(t, Unknown, Compare(b, Eq, u))
}

func TestCompareBoolOrdering(t *testing.T) {
	assert.Equal(t, True, Compare(Bool(true), Gt, Bool(false)))
	assert.Equal(t, True, Compare(Bool(false), Lt, Bool(true)))
	assert.Equal(t, True, Compare(Bool(true), Eq, Bool(true)))
}

func TestCompareMixedIntegerSigns(t *testing.T) {
	neg, _ := Signed(-1, 8)
	pos, _ := Unsigned(1, 8)
	assert.Equal(t, True, Compare(neg, Lt, pos))
	assert.Equal(t, True, Compare(pos, Gt, neg))
}

func TestCompareFloatEpsilon(t *testing.T) {
	a := Float(1.0)
	b := Float(1.0 + 4e-16)
	assert.Equal(t, True, Compare(a, Eq, b))

	c := Float(1.1)
	assert.Equal(t, False, Compare(a, Eq, c))
}

func TestCompareEmptyIsUnknown(t *testing.T) {
	u, _ := Unsigned(1, 8)
	assert.Equal(t, Unknown, Compare(Empty(), Eq, u))
	assert.Equal(t, Unknown, Compare(u, Eq, Empty()))
}

func TestAssignCopyConvertsExactIntegerToFloat(t *testing.T) {
	f := Float(0)
	three, _ := Unsigned(3, 8)
	got, ok := Assign(f, Copy, three)
	require.True(t, ok)
	fv, _ := got.FloatValue()
	assert.Equal(t, 3.0, fv)
}

func TestAssignCopyRejectsInexactFloatToInteger(t *testing.T) {
	slot, _ := Unsigned(0, 8)
	half := Float(0.5)
	_, ok := Assign(slot, Copy, half)
	assert.False(t, ok)
}

func TestAssignCopyRejectsNegativeToUnsigned(t *testing.T) {
	slot, _ := Unsigned(0, 8)
	neg, _ := Signed(-1, 8)
	_, ok := Assign(slot, Copy, neg)
	assert.False(t, ok)
}

func TestAssignOverflowOfWidthFails(t *testing.T) {
	slot, _ := Unsigned(250, 8)
	ten, _ := Unsigned(10, 8)
	_, ok := Assign(slot, Add, ten)
	assert.False(t, ok)
}

func TestAssignDivByZeroFails(t *testing.T) {
	f := Float(10)
	zero := Float(0)
	_, ok := Assign(f, Div, zero)
	assert.False(t, ok)

	u, _ := Unsigned(10, 8)
	zu, _ := Unsigned(0, 8)
	_, ok = Assign(u, Mod, zu)
	assert.False(t, ok)
}

func TestAssignIllegalOpForKind(t *testing.T) {
	b := Bool(true)
	other := Bool(false)
	_, ok := Assign(b, Add, other)
	assert.False(t, ok, "Add is not a legal bool operator")
}

func TestAssignBoolOps(t *testing.T) {
	b := Bool(true)
	f := Bool(false)
	got, ok := Assign(b, Xor, f)
	require.True(t, ok)
	bv, _ := got.BoolValue()
	assert.True(t, bv)
}

func TestFormatRoundTrip(t *testing.T) {
	cases := []struct {
		kind  Kind
		width uint8
	}{
		{KindEmpty, 0},
		{KindBool, 0},
		{KindFloat, 0},
		{KindUnsigned, 8},
		{KindUnsigned, 2},
		{KindUnsigned, 64},
		{KindSigned, 8},
		{KindSigned, 64},
	}
	for _, c := range cases {
		f, ok := EncodeFormat(c.kind, c.width)
		require.True(t, ok)
		k, w := DecodeFormat(f)
		assert.Equal(t, c.kind, k)
		if c.kind == KindUnsigned || c.kind == KindSigned {
			assert.Equal(t, c.width, w)
		}
	}
}
