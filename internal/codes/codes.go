// Package codes is the engine's error-kind catalogue: a range-partitioned
// code per spec.md §7's propagation policy for Register*/Assign* failures
// and reentrancy, wrapped with github.com/pkg/errors so a host gets a
// stack-annotated error out of a failed call without the core needing its
// own position-tracking machinery (positions are ruletable's concern — see
// its own diagnostics). Grounded on the teacher's internal/errors/codes.go
// range-partitioned catalogue (GetErrorCategory/IsWarning), repointed at the
// engine's actual failure kinds instead of compiler phases.
//
// Evaluation-indeterminate (Unknown) and invariant-violation conditions
// don't get codes here: the former surfaces as status.Unknown on the
// engine's hot tick/evaluate path, which internal/enginelog's own
// constraint keeps free of logging; the latter (bit-field overlap,
// term-slice index out of range) are structural guarantees of the
// Reservoir/Evaluator's own allocators, never raised at a call site a code
// could sit at.
package codes

import "github.com/pkg/errors"

// Code identifies which engine failure kind a Register*/Assign* call or
// Tick hit. The numeric suffix within each kind is free for callers to
// assign; only the prefix is load-bearing (category lookup).
type Code string

const (
	// R0xx: Invalid registration — duplicate key, width out of range,
	// empty term list, unknown expression kind, or a dangling
	// sub-expression reference.
	RDuplicateKey    Code = "R001"
	RWidthOutOfRange Code = "R002"
	RDanglingSubExpr Code = "R003"
	REmptyTermList   Code = "R004"
	RUnknownKind     Code = "R005"

	// A0xx: Assign failed — unregistered key, or value kind/width
	// mismatched against the slot.
	AKindMismatch Code = "A001"
	AUnregistered Code = "A002"

	// X0xx: Reentrancy — tick called while already dispatching.
	XReentrant Code = "X001"
)

// category returns the human-readable name of code's kind, by prefix.
func category(code Code) string {
	if len(code) == 0 {
		return "Unknown"
	}
	switch code[0] {
	case 'R':
		return "Invalid registration"
	case 'A':
		return "Assign mismatch"
	case 'X':
		return "Reentrancy"
	default:
		return "Unknown"
	}
}

// Error builds a new error carrying code and a category-prefixed message,
// via github.com/pkg/errors so callers upstream of the engine get
// a stack trace attached at the point of failure.
func Error(code Code, message string) error {
	return errors.Errorf("%s [%s]: %s", category(code), code, message)
}
