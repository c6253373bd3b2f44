// Package reservoir implements the bit-packed columnar status store
// (spec.md §4.2): StatusChunk, StatusProperty, and the Reservoir that owns
// both and mediates every read/write.
package reservoir

import (
	"ifthen/internal/enginelog"
	"ifthen/keys"
	"ifthen/status"
)

// Reservoir owns every chunk and every status property. Invariant: every
// property's (chunk, bit position, width) is a valid, non-overlapping
// region of the referenced chunk (spec.md §3).
type Reservoir struct {
	chunks     map[keys.ChunkKey]*Chunk
	properties map[keys.StatusKey]*Property
}

// New returns an empty Reservoir with the given initial capacity hints.
func New(chunkCap, statusCap int) *Reservoir {
	return &Reservoir{
		chunks:     make(map[keys.ChunkKey]*Chunk, chunkCap),
		properties: make(map[keys.StatusKey]*Property, statusCap),
	}
}

// RegisterStatus registers a new status value. It succeeds iff key is new,
// width is 0 (auto — derived from init's own kind/width) or an explicit
// 2..64 for integer kinds, and init fits the resulting width (spec.md §4.2).
func (r *Reservoir) RegisterStatus(chunk keys.ChunkKey, key keys.StatusKey, init status.Value, width uint8) bool {
	if _, exists := r.properties[key]; exists {
		return false
	}

	kind := init.Kind()
	var format status.Format
	var bitWidth uint8

	switch kind {
	case status.KindBool:
		if width != 0 {
			return false
		}
		format, bitWidth = status.FormatBool, 1

	case status.KindFloat:
		if width != 0 {
			return false
		}
		format, bitWidth = status.FormatFloat, 64

	case status.KindUnsigned:
		w := width
		if w == 0 {
			w = init.Width()
		}
		u, _ := init.UnsignedValue()
		if _, ok := status.Unsigned(u, w); !ok {
			return false
		}
		f, ok := status.EncodeFormat(kind, w)
		if !ok {
			return false
		}
		format, bitWidth = f, w

	case status.KindSigned:
		w := width
		if w == 0 {
			w = init.Width()
		}
		i, _ := init.SignedValue()
		if _, ok := status.Signed(i, w); !ok {
			return false
		}
		f, ok := status.EncodeFormat(kind, w)
		if !ok {
			return false
		}
		format, bitWidth = f, w

	default:
		return false // f != 0 invariant: can't register an Empty value
	}

	c, ok := r.chunks[chunk]
	if !ok {
		c = NewChunk()
		r.chunks[chunk] = c
	}
	pos := c.Alloc(bitWidth)
	c.Write(pos, bitWidth, encodeRaw(init))
	r.properties[key] = &Property{Chunk: chunk, Pos: pos, Format: format}
	return true
}

// FindStatus reads and decodes a status value, returning status.Empty() if
// key is unknown.
func (r *Reservoir) FindStatus(key keys.StatusKey) status.Value {
	prop, ok := r.properties[key]
	if !ok {
		return status.Empty()
	}
	c := r.chunks[prop.Chunk]
	raw := c.Read(prop.Pos, status.BitWidth(prop.Format))
	return decodeRaw(prop.Format, raw)
}

// AssignStatus writes value into key's slot after checking it matches the
// slot's declared kind and width exactly (the caller — normally
// queue.Accumulator, via status.Assign — is expected to have already
// produced a value of the correct kind/width; this is the final range
// check spec.md §4.2 describes). It sets the transition flag only if the
// written bits actually changed, and never mutates the slot on failure.
func (r *Reservoir) AssignStatus(key keys.StatusKey, value status.Value) bool {
	prop, ok := r.properties[key]
	if !ok {
		return false
	}
	kind, width := status.DecodeFormat(prop.Format)
	if value.Kind() != kind {
		return false
	}
	if (kind == status.KindUnsigned || kind == status.KindSigned) && value.Width() != width {
		return false
	}

	c := r.chunks[prop.Chunk]
	changed := c.Write(prop.Pos, status.BitWidth(prop.Format), encodeRaw(value))
	prop.Transition = prop.Transition || changed
	return true
}

// CompareStatus evaluates `key <op> rhs`, returning Unknown if key is
// unregistered (spec.md §4.2: compare_status).
func (r *Reservoir) CompareStatus(key keys.StatusKey, op status.CompareOp, rhs status.Value) status.Tri {
	prop, ok := r.properties[key]
	if !ok {
		return status.Unknown
	}
	c := r.chunks[prop.Chunk]
	raw := c.Read(prop.Pos, status.BitWidth(prop.Format))
	return status.Compare(decodeRaw(prop.Format, raw), op, rhs)
}

// CompareStatusKey evaluates `key <op> otherKey`.
func (r *Reservoir) CompareStatusKey(key keys.StatusKey, op status.CompareOp, otherKey keys.StatusKey) status.Tri {
	return status.Compare(r.FindStatus(key), op, r.FindStatus(otherKey))
}

// RemoveChunk deletes a chunk and every property registered against it, in
// O(chunks + properties) (spec.md §4.2).
func (r *Reservoir) RemoveChunk(chunk keys.ChunkKey) {
	delete(r.chunks, chunk)
	for key, prop := range r.properties {
		if prop.Chunk == chunk {
			delete(r.properties, key)
		}
	}
}

// ResetTransitions clears every status's transition flag. Called once per
// tick by the Dispatcher, after all evaluation has read them (spec.md
// §4.2, §5).
func (r *Reservoir) ResetTransitions() {
	for _, prop := range r.properties {
		prop.Transition = false
	}
}

// FindTransition reports a status's transition flag, and whether the status
// is registered at all — monitors use the second return to distinguish
// "present and unchanged" from "absent" (spec.md §4.2).
func (r *Reservoir) FindTransition(key keys.StatusKey) (flag bool, exists bool) {
	prop, ok := r.properties[key]
	if !ok {
		return false, false
	}
	return prop.Transition, true
}

// ChunkExists reports whether a chunk is currently registered.
func (r *Reservoir) ChunkExists(chunk keys.ChunkKey) bool {
	_, ok := r.chunks[chunk]
	return ok
}

// StatusExists reports whether key is currently registered — lets a caller
// (Engine) distinguish why RegisterStatus/AssignStatus failed without
// RegisterStatus/AssignStatus themselves returning anything richer than
// their existing bool.
func (r *Reservoir) StatusExists(key keys.StatusKey) bool {
	_, ok := r.properties[key]
	return ok
}

// Chunk exposes a chunk's packed block vector (e.g. for a host serializer —
// spec.md §6's persisted bit-layout). Returns nil if the chunk is unknown.
func (r *Reservoir) Chunk(chunk keys.ChunkKey) *Chunk {
	return r.chunks[chunk]
}

// Rebuild compacts storage: every live property is re-allocated into fresh
// chunks, largest-width first, so packing is as tight as the free-list
// allocator allows. All keys and values are preserved bit-exactly; this is
// observable only as faster subsequent access (spec.md §4.2).
func (r *Reservoir) Rebuild(newChunkBuckets, newStatusBuckets int) {
	live := make([]liveStatus, 0, len(r.properties))
	for key, prop := range r.properties {
		c := r.chunks[prop.Chunk]
		raw := c.Read(prop.Pos, status.BitWidth(prop.Format))
		live = append(live, liveStatus{
			key:    key,
			chunk:  prop.Chunk,
			format: prop.Format,
			value:  decodeRaw(prop.Format, raw),
		})
	}
	// Largest width first packs tightly: wide values claim whole fresh
	// blocks, narrower values backfill the remainders those allocations
	// leave on the free list.
	sortByWidthDesc(live)

	newChunks := make(map[keys.ChunkKey]*Chunk, newChunkBuckets)
	newProps := make(map[keys.StatusKey]*Property, newStatusBuckets)
	for _, ls := range live {
		c, ok := newChunks[ls.chunk]
		if !ok {
			c = NewChunk()
			newChunks[ls.chunk] = c
		}
		width := status.BitWidth(ls.format)
		pos := c.Alloc(width)
		c.Write(pos, width, encodeRaw(ls.value))
		newProps[ls.key] = &Property{Chunk: ls.chunk, Pos: pos, Format: ls.format}
	}

	r.chunks = newChunks
	r.properties = newProps
	enginelog.Rebuilt("reservoir", newChunkBuckets+newStatusBuckets)
}

// liveStatus is a decoded snapshot of one property, used by Rebuild to
// re-allocate every status into fresh, tightly packed chunks.
type liveStatus struct {
	key    keys.StatusKey
	chunk  keys.ChunkKey
	format status.Format
	value  status.Value
}

func sortByWidthDesc(live []liveStatus) {
	for i := 1; i < len(live); i++ {
		j := i
		for j > 0 && status.BitWidth(live[j-1].format) < status.BitWidth(live[j].format) {
			live[j-1], live[j] = live[j], live[j-1]
			j--
		}
	}
}
