package reservoir

import "sort"

// BlockBits is the width of one storage block. A single status value never
// crosses a block boundary (spec.md §3, §9 design notes): allocation always
// picks (or creates) a block with enough room for the whole value.
const BlockBits = 64

// freeRegion is one entry of a chunk's free list: a run of `Width` unused
// bits starting at bit `Offset` within block `Block`. The free list is kept
// sorted ascending by Width so allocation can first-fit on the smallest
// region that still satisfies a request (spec.md §3, StatusChunk).
type freeRegion struct {
	block  int
	offset uint8
	width  uint8
}

// Chunk is a packed bit-vector: a vector of fixed-width blocks plus a
// width-sorted free list. Invariant: every block bit is either occupied by
// exactly one status or covered by exactly one free-list entry, with no
// overlaps (spec.md §3).
type Chunk struct {
	blocks []uint64
	free   []freeRegion
}

// NewChunk returns an empty chunk with no blocks allocated yet.
func NewChunk() *Chunk {
	return &Chunk{}
}

// BitPos is a global bit offset within a chunk's block vector
// (block*BlockBits + offset-within-block) — the "bit-position" spec.md's
// StatusProperty stores per status.
type BitPos uint32

func (p BitPos) block() int    { return int(p) / BlockBits }
func (p BitPos) offset() uint8 { return uint8(int(p) % BlockBits) }

func posOf(block int, offset uint8) BitPos {
	return BitPos(block*BlockBits + int(offset))
}

// Alloc reserves `width` contiguous bits (2 <= width <= BlockBits, or 1 for
// bool) within the chunk, returning their position. It first-fits on the
// width-sorted free list; if no free region is large enough, it appends a
// fresh block and allocates from its start, pushing any remainder onto the
// free list (spec.md §3: "pick the smallest free region that fits...if none,
// append one or more fresh blocks and push the remainder onto the free
// list").
func (c *Chunk) Alloc(width uint8) BitPos {
	if idx := c.firstFit(width); idx >= 0 {
		region := c.free[idx]
		c.free = append(c.free[:idx], c.free[idx+1:]...)
		pos := posOf(region.block, region.offset)
		if remain := region.width - width; remain > 0 {
			c.insertFree(freeRegion{
				block:  region.block,
				offset: region.offset + width,
				width:  remain,
			})
		}
		return pos
	}

	block := len(c.blocks)
	c.blocks = append(c.blocks, 0)
	pos := posOf(block, 0)
	if remain := BlockBits - int(width); remain > 0 {
		c.insertFree(freeRegion{block: block, offset: width, width: uint8(remain)})
	}
	return pos
}

// firstFit returns the index into c.free of the smallest region whose width
// is >= the requested width, or -1 if none fits.
func (c *Chunk) firstFit(width uint8) int {
	idx := sort.Search(len(c.free), func(i int) bool { return c.free[i].width >= width })
	if idx < len(c.free) {
		return idx
	}
	return -1
}

// insertFree inserts r into the free list, keeping it sorted ascending by
// width.
func (c *Chunk) insertFree(r freeRegion) {
	idx := sort.Search(len(c.free), func(i int) bool { return c.free[i].width >= r.width })
	c.free = append(c.free, freeRegion{})
	copy(c.free[idx+1:], c.free[idx:])
	c.free[idx] = r
}

// Read returns the `width`-bit unsigned value stored at pos.
func (c *Chunk) Read(pos BitPos, width uint8) uint64 {
	block := c.blocks[pos.block()]
	return extractBits(block, pos.offset(), width)
}

// Write stores the low `width` bits of value at pos, returning whether the
// stored bit pattern actually changed (spec.md §4.2: "Setting returns a
// 3-valued code: Err (overflow), 0 (no change), 1 (changed)" — overflow is
// checked by the caller before Write via status.Value's own width fit, so
// Write itself only ever reports changed/unchanged).
func (c *Chunk) Write(pos BitPos, width uint8, value uint64) (changed bool) {
	blockIdx := pos.block()
	old := extractBits(c.blocks[blockIdx], pos.offset(), width)
	if old == value {
		return false
	}
	c.blocks[blockIdx] = insertBits(c.blocks[blockIdx], pos.offset(), width, value)
	return true
}

// Blocks exposes the chunk's block vector in declaration order — the
// persisted bit-layout spec.md §6 describes ("the concatenation of the
// chunk's block vector in declaration order").
func (c *Chunk) Blocks() []uint64 {
	return c.blocks
}

func extractBits(block uint64, offset, width uint8) uint64 {
	mask := widthMask(width)
	return (block >> offset) & mask
}

func insertBits(block uint64, offset, width uint8, value uint64) uint64 {
	mask := widthMask(width)
	block &^= mask << offset
	block |= (value & mask) << offset
	return block
}

func widthMask(width uint8) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << width) - 1
}
