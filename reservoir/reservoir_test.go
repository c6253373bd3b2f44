package reservoir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ifthen/keys"
	"ifthen/status"
)

func TestRegisterAndFindRoundTrip(t *testing.T) {
	r := New(1, 1)
	v, _ := status.Unsigned(10, 8)
	ok := r.RegisterStatus(1, 100, v, 0)
	require.True(t, ok)

	got := r.FindStatus(100)
	gv, _ := got.UnsignedValue()
	assert.Equal(t, uint64(10), gv)
}

func TestRegisterDuplicateKeyFails(t *testing.T) {
	r := New(1, 1)
	v, _ := status.Unsigned(10, 8)
	require.True(t, r.RegisterStatus(1, 100, v, 0))
	assert.False(t, r.RegisterStatus(1, 100, v, 0))
}

func TestFindStatusUnknownIsEmpty(t *testing.T) {
	r := New(1, 1)
	assert.True(t, r.FindStatus(999).IsEmpty())
}

func TestAssignSetsTransitionOnlyOnChange(t *testing.T) {
	r := New(1, 1)
	v, _ := status.Unsigned(10, 8)
	r.RegisterStatus(1, 100, v, 0)

	flag, exists := r.FindTransition(100)
	require.True(t, exists)
	assert.False(t, flag)

	same, _ := status.Unsigned(10, 8)
	require.True(t, r.AssignStatus(100, same))
	flag, _ = r.FindTransition(100)
	assert.False(t, flag, "assigning the same bit pattern must not set the transition flag")

	diff, _ := status.Unsigned(20, 8)
	require.True(t, r.AssignStatus(100, diff))
	flag, _ = r.FindTransition(100)
	assert.True(t, flag)
}

func TestResetTransitionsClearsAllFlags(t *testing.T) {
	r := New(1, 1)
	v, _ := status.Unsigned(10, 8)
	r.RegisterStatus(1, 100, v, 0)
	diff, _ := status.Unsigned(20, 8)
	r.AssignStatus(100, diff)

	r.ResetTransitions()
	flag, _ := r.FindTransition(100)
	assert.False(t, flag)
}

func TestFindTransitionDistinguishesAbsentFromUnchanged(t *testing.T) {
	r := New(1, 1)
	_, exists := r.FindTransition(12345)
	assert.False(t, exists)

	v, _ := status.Unsigned(1, 8)
	r.RegisterStatus(1, 100, v, 0)
	flag, exists := r.FindTransition(100)
	assert.True(t, exists)
	assert.False(t, flag)
}

func TestRemoveChunkDeletesAllItsProperties(t *testing.T) {
	r := New(2, 2)
	v, _ := status.Unsigned(1, 8)
	r.RegisterStatus(1, 100, v, 0)
	r.RegisterStatus(1, 101, v, 0)
	r.RegisterStatus(2, 200, v, 0)

	r.RemoveChunk(1)

	assert.True(t, r.FindStatus(100).IsEmpty())
	assert.True(t, r.FindStatus(101).IsEmpty())
	assert.False(t, r.FindStatus(200).IsEmpty())
	assert.False(t, r.ChunkExists(1))
	assert.True(t, r.ChunkExists(2))
}

func TestBitPackingNoOverlapAcrossManySmallValues(t *testing.T) {
	r := New(1, 1)
	// 70 distinct 1-bit bools packed into one chunk must span multiple
	// 64-bit blocks without overlap.
	for i := keys.StatusKey(0); i < 70; i++ {
		ok := r.RegisterStatus(1, i, status.Bool(i%2 == 0), 0)
		require.True(t, ok)
	}
	for i := keys.StatusKey(0); i < 70; i++ {
		v, _ := r.FindStatus(i).BoolValue()
		assert.Equal(t, i%2 == 0, v, "status %d", i)
	}
	c := r.Chunk(1)
	assert.GreaterOrEqual(t, len(c.Blocks()), 2)
}

func TestFreeListFirstFitReusesSmallestAdequateGap(t *testing.T) {
	c := NewChunk()
	// Allocate a 4-bit field, then a 60-bit field: the 60-bit field
	// completes the first block exactly, leaving no gap. A second 4-bit
	// alloc after that must reuse no stale gap and simply open block 2.
	p1 := c.Alloc(4)
	p2 := c.Alloc(60)
	assert.Equal(t, 0, p1.block())
	assert.Equal(t, 0, p2.block())
	assert.Equal(t, uint8(4), p2.offset())
	assert.Len(t, c.free, 0)

	p3 := c.Alloc(4)
	assert.Equal(t, 1, p3.block())
}

func TestFreeListReclaimsLeftoverGap(t *testing.T) {
	c := NewChunk()
	c.Alloc(60) // leaves a 4-bit gap at the end of block 0
	require.Len(t, c.free, 1)
	assert.Equal(t, uint8(4), c.free[0].width)

	p := c.Alloc(4)
	assert.Equal(t, 0, p.block())
	assert.Equal(t, uint8(60), p.offset())
	assert.Len(t, c.free, 0, "the gap should be fully consumed, not re-split")
}

func TestRebuildPreservesValuesBitExactly(t *testing.T) {
	r := New(2, 8)
	vals := map[keys.StatusKey]status.Value{}
	for i := keys.StatusKey(0); i < 40; i++ {
		chunk := keys.ChunkKey(i % 3)
		width := uint8(2 + i%30)
		v, ok := status.Unsigned(uint64(i)%(uint64(1)<<width), width)
		require.True(t, ok)
		require.True(t, r.RegisterStatus(chunk, i, v, 0))
		vals[i] = v
	}

	r.Rebuild(4, 16)

	for k, want := range vals {
		got := r.FindStatus(k)
		wu, _ := want.UnsignedValue()
		gu, _ := got.UnsignedValue()
		assert.Equal(t, wu, gu, "status %d", k)
	}
}
