// Package enginelog is the engine's debug-assert logging facade: the
// handful of events spec.md §7 calls debug-assert-worthy (reentrant tick,
// invariant violation) plus a single informational line per Rebuild call.
// It never logs on the per-tick/per-assignment hot path.
package enginelog

import (
	"github.com/tliron/commonlog"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("ifthen")

// Configure wires commonlog's simple backend at the given verbosity
// (0=disabled, higher=more), exactly as cmd/kanso-lsp configured it for the
// teacher's LSP binary. A host that wants richer logging may call
// commonlog.Configure itself instead; this is a convenience for
// cmd/ifthenctl and repl.
func Configure(verbosity int) {
	commonlog.Configure(verbosity, nil)
}

// Reentrancy logs the debug-assert for a Tick call observed while already
// dispatching (spec.md §7: "Reentrancy ... no-op return; a debug-assert
// fires").
func Reentrancy() {
	log.Warning("tick called while already dispatching; ignored")
}

// InvariantViolation logs the debug-assert for a detected invariant
// violation (spec.md §7: "bit-field overlap, index-out-of-range in a term
// slice").
func InvariantViolation(where, detail string) {
	log.Errorf("invariant violation in %s: %s", where, detail)
}

// Rebuilt logs one informational line per Reservoir.Rebuild or
// Dispatcher.Rebuild call.
func Rebuilt(component string, buckets int) {
	log.Infof("%s rebuilt with %d buckets", component, buckets)
}
