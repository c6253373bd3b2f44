// Package queue implements the Accumulator (spec.md §4.3): a batched,
// ordered write-queue with per-series delay/block/yield semantics, flushed
// atomically into a Reservoir.
package queue

import (
	"ifthen/keys"
	"ifthen/status"
)

// Delay selects how an assignment's series starts, per spec.md §4.3.
type Delay int8

const (
	// Follow glues an assignment onto the preceding series; it never
	// starts a new one.
	Follow Delay = iota
	// Yield starts a new series that defers (without cascading) if any
	// status referenced anywhere in the queue already had its transition
	// flag set when the flush began.
	Yield
	// Block starts a new series that, on deferring, also defers every
	// assignment remaining in the queue after it.
	Block
	// Nonblock starts a new series that always applies immediately,
	// regardless of prior changes.
	Nonblock
)

func (d Delay) String() string {
	switch d {
	case Follow:
		return "follow"
	case Yield:
		return "yield"
	case Block:
		return "block"
	case Nonblock:
		return "nonblock"
	default:
		return "unknown"
	}
}

// StatusAssignment names one pending write: apply Op to the status at Key
// using Value (or, if RightKey is set instead, the current value of
// RightKey — a status-to-status assignment).
type StatusAssignment struct {
	Key      keys.StatusKey
	Op       status.AssignOp
	Value    status.Value
	RightKey keys.StatusKey
	UseRight bool
}

// entry pairs one assignment with the delay it was enqueued under.
type entry struct {
	assignment StatusAssignment
	delay      Delay
}
