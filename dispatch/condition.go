// Package dispatch implements the Dispatcher (spec.md §4.5): inverted
// status→expression and expression→handler indexes, tick-driven transition
// detection, and priority-ordered handler firing.
package dispatch

import "ifthen/status"

// UnitMask is one bit (or a combination of bits) of a handler condition,
// over the three possible tri-state outcomes. Composite values like NotFalse
// mean "any of these" when used as a handler's now/last condition.
type UnitMask uint8

const (
	Null  UnitMask = 1
	False UnitMask = 2
	True  UnitMask = 4

	NotNull  UnitMask = False | True
	NotFalse UnitMask = Null | True
	NotTrue  UnitMask = Null | False
	Any      UnitMask = Null | False | True
)

// Condition is the 6-bit handler condition mask spec.md §6 describes: bits
// 0..2 are the "now" unit mask, bits 3..5 the "last" unit mask. Mask 0 is
// invalid.
type Condition uint8

const invalidCondition Condition = 0

// MakeCondition composes a now/last unit-mask pair into a handler
// condition, rejecting the combination that can never fire: now == last
// while now names exactly one outcome (a "stationary" condition — since
// expression_monitor.cache_handlers never calls handlers when an
// expression's evaluation hasn't changed, such a condition could never be
// observed). Grounded bit-exactly on
// original_source/if_then_engine/handler.hpp's mix_unit_condition.
func MakeCondition(now, last UnitMask) (Condition, bool) {
	if now == 0 || last == 0 {
		return invalidCondition, false
	}
	if now == last && isPowerOfTwo(now) {
		return invalidCondition, false
	}
	return Condition(now) | Condition(last)<<3, true
}

func isPowerOfTwo(m UnitMask) bool {
	return m != 0 && m&(m-1) == 0
}

// unitOf returns the single-bit unit mask for one evaluation result.
func unitOf(t status.Tri) UnitMask {
	switch t {
	case status.Unknown:
		return Null
	case status.False:
		return False
	default:
		return True
	}
}

// transitionBits composes the single-bit observed (now, last) pair into the
// same 6-bit layout a Condition uses, so it can be tested for containment.
func transitionBits(now, last status.Tri) Condition {
	return Condition(unitOf(now)) | Condition(unitOf(last))<<3
}

// matches reports whether an observed (now, last) transition satisfies a
// handler condition: every bit set in the observed transition must also be
// set in the condition (handler.hpp's is_matched).
func (c Condition) matches(now, last status.Tri) bool {
	t := transitionBits(now, last)
	return t == (t & c)
}
