package status

// CompareOp is one of the six relational operators a StatusComparison term
// may use (spec.md §3, Term kinds).
type CompareOp int8

const (
	Eq CompareOp = iota
	Ne
	Lt
	Le
	Gt
	Ge
)

func (op CompareOp) String() string {
	switch op {
	case Eq:
		return "=="
	case Ne:
		return "!="
	case Lt:
		return "<"
	case Le:
		return "<="
	case Gt:
		return ">"
	case Ge:
		return ">="
	default:
		return "?"
	}
}

// Compare evaluates `v <op> rhs` and returns a three-valued result. It
// returns Unknown whenever either operand is Empty or the two operands are
// kind-incompatible (bool vs numeric never compares — spec.md §4.1).
func Compare(v Value, op CompareOp, rhs Value) Tri {
	ord, ok := order(v, rhs)
	if !ok {
		return Unknown
	}
	switch op {
	case Eq:
		return FromBool(ord == 0)
	case Ne:
		return FromBool(ord != 0)
	case Lt:
		return FromBool(ord < 0)
	case Le:
		return FromBool(ord <= 0)
	case Gt:
		return FromBool(ord > 0)
	case Ge:
		return FromBool(ord >= 0)
	default:
		return Unknown
	}
}

// order returns -1/0/1 for a<b/a==b/a>b, and ok=false when the comparison is
// not defined (either side Empty, or bool compared against a numeric kind).
func order(a, b Value) (int, bool) {
	if a.kind == KindEmpty || b.kind == KindEmpty {
		return 0, false
	}
	if a.kind == KindBool || b.kind == KindBool {
		if a.kind != KindBool || b.kind != KindBool {
			return 0, false // bool vs numeric fails, per spec.md §4.1
		}
		if a.b == b.b {
			return 0, true
		}
		if a.b { // true > false
			return 1, true
		}
		return -1, true
	}

	if a.kind == KindFloat || b.kind == KindFloat {
		af, aok := asFloat(a)
		bf, bok := asFloat(b)
		if !aok || !bok {
			return 0, false
		}
		if floatEqual(af, bf) {
			return 0, true
		}
		if af < bf {
			return -1, true
		}
		return 1, true
	}

	// Both integer kinds (Unsigned/Signed, any width): compare exactly,
	// being careful around the signed/unsigned boundary.
	aNeg, aAbsU, aI := integerParts(a)
	bNeg, bAbsU, bI := integerParts(b)
	if aNeg != bNeg {
		if aNeg {
			return -1, true
		}
		return 1, true
	}
	if aNeg {
		// Both negative: compare as signed (more negative is smaller).
		if aI == bI {
			return 0, true
		}
		if aI < bI {
			return -1, true
		}
		return 1, true
	}
	// Both non-negative: compare magnitudes as uint64.
	if aAbsU == bAbsU {
		return 0, true
	}
	if aAbsU < bAbsU {
		return -1, true
	}
	return 1, true
}

// integerParts decomposes an integer-kind Value into (isNegative, magnitude
// as uint64 when non-negative, raw int64 when negative).
func integerParts(v Value) (neg bool, absU uint64, i int64) {
	switch v.kind {
	case KindSigned:
		if v.i < 0 {
			return true, 0, v.i
		}
		return false, uint64(v.i), 0
	case KindUnsigned:
		return false, v.u, 0
	default:
		return false, 0, 0
	}
}

func asFloat(v Value) (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindUnsigned:
		return float64(v.u), true
	case KindSigned:
		return float64(v.i), true
	default:
		return 0, false
	}
}
