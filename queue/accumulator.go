package queue

import (
	"ifthen/reservoir"
	"ifthen/status"
)

// Accumulator queues pending status assignments with delay annotations and,
// on Flush, applies them to a Reservoir respecting per-series ordering and
// blocking (spec.md §4.3).
type Accumulator struct {
	queued []entry
	delay  []entry
}

// New returns an empty Accumulator with the given initial capacity hint.
func New(capacity int) *Accumulator {
	return &Accumulator{
		queued: make([]entry, 0, capacity),
		delay:  make([]entry, 0, capacity),
	}
}

// Count reports the number of assignments currently queued (not yet
// flushed).
func (a *Accumulator) Count() int {
	return len(a.queued)
}

// Enqueue appends one assignment under the given delay.
func (a *Accumulator) Enqueue(assignment StatusAssignment, delay Delay) {
	a.queued = append(a.queued, entry{assignment: assignment, delay: delay})
}

// EnqueueMany appends the first assignment with delay, and every subsequent
// one with Follow — the whole slice becomes a single series (spec.md §4.3).
func (a *Accumulator) EnqueueMany(assignments []StatusAssignment, delay Delay) {
	d := delay
	for _, assignment := range assignments {
		a.Enqueue(assignment, d)
		d = Follow
	}
}

// Flush walks the queue in series order and applies each series to r,
// following spec.md §4.3's algorithm exactly:
//
//  1. A series is a maximal run starting with a non-Follow delay, followed
//     by zero or more Follow entries.
//  2. has_prior_change is computed once, before any series in this flush is
//     touched: true iff any status this queue references already had its
//     transition flag set at flush entry (changed last tick, or by a prior
//     uncleared write). It is a single flush-wide snapshot, not re-read
//     live as series apply — a write made by an earlier series in *this*
//     flush must not itself make a later, unrelated series defer, and a
//     snapshot is what keeps that write from leaking into the check.
//  3. A Nonblock series always applies regardless of has_prior_change.
//     Every other series applies iff !has_prior_change; if an individual
//     assignment fails mid-series, the rest of that series is abandoned
//     but the flush continues.
//  4. A series that defers is copied into the delay queue. If its lead
//     delay was Block, the entire remainder of the queue is also copied to
//     the delay queue and this flush stops early.
//
// The delay queue becomes next flush's queue.
func (a *Accumulator) Flush(r *reservoir.Reservoir) {
	hadPriorChange := a.hadPriorChange(r)

	i := 0
	for i < len(a.queued) {
		lead := a.queued[i].delay
		nonblock := lead == Nonblock
		shouldFlush := nonblock || !hadPriorChange

		j := i + 1
		for j < len(a.queued) && a.queued[j].delay == Follow {
			j++
		}

		if shouldFlush {
			for ; i < j; i++ {
				if !apply(r, a.queued[i].assignment) {
					i = j
					break
				}
			}
			continue
		}

		if lead == Block {
			j = len(a.queued)
		}
		a.delay = append(a.delay, a.queued[i:j]...)
		i = j
		if lead == Block {
			break
		}
	}

	a.queued = a.queued[:0]
	a.queued, a.delay = a.delay, a.queued
}

// hadPriorChange reports whether any status referenced by the queued
// assignments already has its transition flag set, as observed once before
// this flush applies anything. It is deliberately not re-checked per
// series: series later in the same flush must see the reservoir as it was
// at flush entry, not as earlier series in this same flush left it.
func (a *Accumulator) hadPriorChange(r *reservoir.Reservoir) bool {
	for _, e := range a.queued {
		if hasTransitioned(r, e.assignment) {
			return true
		}
	}
	return false
}

// hasTransitioned reports whether the status(es) an assignment references
// already have their transition flag set.
func hasTransitioned(r *reservoir.Reservoir, assignment StatusAssignment) bool {
	if flag, exists := r.FindTransition(assignment.Key); exists && flag {
		return true
	}
	if assignment.UseRight {
		if flag, exists := r.FindTransition(assignment.RightKey); exists && flag {
			return true
		}
	}
	return false
}

// apply resolves a status-to-status assignment's right-hand side (if any)
// and writes it via r.AssignStatus.
func apply(r *reservoir.Reservoir, assignment StatusAssignment) bool {
	rhs := assignment.Value
	if assignment.UseRight {
		rhs = r.FindStatus(assignment.RightKey)
	}
	current := r.FindStatus(assignment.Key)
	next, ok := status.Assign(current, assignment.Op, rhs)
	if !ok {
		return false
	}
	return r.AssignStatus(assignment.Key, next)
}
