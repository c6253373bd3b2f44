package reservoir

import (
	"ifthen/keys"
	"ifthen/status"
)

// Property is the per-registered-status metadata spec.md §3 calls
// StatusProperty: owning chunk, bit position within that chunk, format code
// (kind + width), and a transition flag set when the stored bits last
// changed.
type Property struct {
	Chunk      keys.ChunkKey
	Pos        BitPos
	Format     status.Format
	Transition bool
}

func (p *Property) kind() (status.Kind, uint8) {
	return status.DecodeFormat(p.Format)
}
