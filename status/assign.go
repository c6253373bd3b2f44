package status

import "math/bits"

// AssignOp is one of the assignment operators spec.md §3/§4.1 describes.
// Which ops are legal for which Kind is given by OpTable.
type AssignOp int8

const (
	Copy AssignOp = iota
	Add
	Sub
	Mul
	Mod
	Or
	Xor
	And
	Div // floats only
)

func (op AssignOp) String() string {
	switch op {
	case Copy:
		return "copy"
	case Add:
		return "add"
	case Sub:
		return "sub"
	case Mul:
		return "mul"
	case Mod:
		return "mod"
	case Or:
		return "or"
	case Xor:
		return "xor"
	case And:
		return "and"
	case Div:
		return "div"
	default:
		return "?"
	}
}

// OpTable reports the assignment operators legal for each Kind, per
// spec.md §4.1: "Copy, Add, Sub, Mul, Mod, Or, Xor, And on integers; Copy,
// Add, Sub, Mul, Div on floats; only Copy, Or, Xor, And on bool." Grounded
// on the teacher's internal/builtins/types.go closed-catalogue-plus-predicate
// shape, repointed at StatusValue kinds instead of language built-in types.
var OpTable = map[Kind]map[AssignOp]bool{
	KindBool: {
		Copy: true, Or: true, Xor: true, And: true,
	},
	KindUnsigned: {
		Copy: true, Add: true, Sub: true, Mul: true, Mod: true,
		Or: true, Xor: true, And: true,
	},
	KindSigned: {
		Copy: true, Add: true, Sub: true, Mul: true, Mod: true,
		Or: true, Xor: true, And: true,
	},
	KindFloat: {
		Copy: true, Add: true, Sub: true, Mul: true, Div: true,
	},
}

// IsOpLegal reports whether op may be applied to a value of kind k.
func IsOpLegal(k Kind, op AssignOp) bool {
	return OpTable[k][op]
}

// Assign computes the result of `current <op>= rhs`, returning the new
// value and true on success. On failure it returns the zero Value and
// false; the caller must leave current unchanged (spec.md §4.1, §7:
// "Division/modulo by zero fails the assignment (value unchanged)").
//
// rhs is converted into current's kind (and, for integers, width) before
// the operator is applied; the conversion itself follows the round-trip
// rule (convertTo) spec.md §4.1 describes for Copy, and is reused here for
// every other operator's right-hand side as well, since none of them makes
// sense across an inexact kind conversion either.
func Assign(current Value, op AssignOp, rhs Value) (Value, bool) {
	if current.kind == KindEmpty {
		return Value{}, false
	}
	if !IsOpLegal(current.kind, op) {
		return Value{}, false
	}
	r, ok := convertTo(rhs, current.kind, current.width)
	if !ok {
		return Value{}, false
	}

	switch current.kind {
	case KindBool:
		return assignBool(current, op, r)
	case KindUnsigned:
		return assignUnsigned(current, op, r)
	case KindSigned:
		return assignSigned(current, op, r)
	case KindFloat:
		return assignFloat(current, op, r)
	default:
		return Value{}, false
	}
}

func assignBool(current Value, op AssignOp, r Value) (Value, bool) {
	switch op {
	case Copy:
		return Bool(r.b), true
	case Or:
		return Bool(current.b || r.b), true
	case Xor:
		return Bool(current.b != r.b), true
	case And:
		return Bool(current.b && r.b), true
	default:
		return Value{}, false
	}
}

func assignUnsigned(current Value, op AssignOp, r Value) (Value, bool) {
	w := current.width
	switch op {
	case Copy:
		return Unsigned(r.u, w)
	case Add:
		sum, carry := bits.Add64(current.u, r.u, 0)
		if carry != 0 {
			return Value{}, false
		}
		return Unsigned(sum, w)
	case Sub:
		diff, borrow := bits.Sub64(current.u, r.u, 0)
		if borrow != 0 {
			return Value{}, false
		}
		return Unsigned(diff, w)
	case Mul:
		hi, lo := bits.Mul64(current.u, r.u)
		if hi != 0 {
			return Value{}, false
		}
		return Unsigned(lo, w)
	case Mod:
		if r.u == 0 {
			return Value{}, false
		}
		return Unsigned(current.u%r.u, w)
	case Or:
		return Unsigned(current.u|r.u, w)
	case Xor:
		return Unsigned(current.u^r.u, w)
	case And:
		return Unsigned(current.u&r.u, w)
	default:
		return Value{}, false
	}
}

func assignSigned(current Value, op AssignOp, r Value) (Value, bool) {
	w := current.width
	a, b := current.i, r.i
	switch op {
	case Copy:
		return Signed(b, w)
	case Add:
		sum := a + b
		if (b > 0 && sum < a) || (b < 0 && sum > a) {
			return Value{}, false
		}
		return Signed(sum, w)
	case Sub:
		diff := a - b
		if (b < 0 && diff < a) || (b > 0 && diff > a) {
			return Value{}, false
		}
		return Signed(diff, w)
	case Mul:
		if a == 0 || b == 0 {
			return Signed(0, w)
		}
		prod := a * b
		if prod/b != a {
			return Value{}, false
		}
		return Signed(prod, w)
	case Mod:
		if b == 0 {
			return Value{}, false
		}
		return Signed(a%b, w)
	case Or:
		return Signed(a|b, w)
	case Xor:
		return Signed(a^b, w)
	case And:
		return Signed(a&b, w)
	default:
		return Value{}, false
	}
}

func assignFloat(current Value, op AssignOp, r Value) (Value, bool) {
	switch op {
	case Copy:
		return Float(r.f), true
	case Add:
		return Float(current.f + r.f), true
	case Sub:
		return Float(current.f - r.f), true
	case Mul:
		return Float(current.f * r.f), true
	case Div:
		if r.f == 0 {
			return Value{}, false
		}
		return Float(current.f / r.f), true
	default:
		return Value{}, false
	}
}

// convertTo converts v into kind k (with width w for integer kinds),
// succeeding only if the numeric value round-trips exactly: spec.md §4.1 —
// "integer 3 → float OK; float 0.5 → integer NO; negative → unsigned NO;
// overflow of declared width NO".
func convertTo(v Value, k Kind, w uint8) (Value, bool) {
	switch k {
	case KindBool:
		if v.kind != KindBool {
			return Value{}, false
		}
		return v, true

	case KindFloat:
		switch v.kind {
		case KindFloat:
			return v, true
		case KindUnsigned:
			f := float64(v.u)
			if uint64(f) != v.u {
				return Value{}, false
			}
			return Float(f), true
		case KindSigned:
			f := float64(v.i)
			if int64(f) != v.i {
				return Value{}, false
			}
			return Float(f), true
		default:
			return Value{}, false
		}

	case KindUnsigned:
		switch v.kind {
		case KindUnsigned:
			return Unsigned(v.u, w)
		case KindSigned:
			if v.i < 0 {
				return Value{}, false
			}
			return Unsigned(uint64(v.i), w)
		case KindFloat:
			if v.f < 0 {
				return Value{}, false
			}
			iv := uint64(v.f)
			if float64(iv) != v.f {
				return Value{}, false
			}
			return Unsigned(iv, w)
		default:
			return Value{}, false
		}

	case KindSigned:
		switch v.kind {
		case KindSigned:
			return Signed(v.i, w)
		case KindUnsigned:
			if v.u > (1<<63)-1 {
				return Value{}, false
			}
			return Signed(int64(v.u), w)
		case KindFloat:
			iv := int64(v.f)
			if float64(iv) != v.f {
				return Value{}, false
			}
			return Signed(iv, w)
		default:
			return Value{}, false
		}

	default:
		return Value{}, false
	}
}
