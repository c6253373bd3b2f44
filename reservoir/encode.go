package reservoir

import (
	"math"

	"ifthen/status"
)

// encodeRaw packs a status.Value's numeric payload into the raw bit pattern
// its property's declared width stores.
func encodeRaw(v status.Value) uint64 {
	switch v.Kind() {
	case status.KindBool:
		b, _ := v.BoolValue()
		if b {
			return 1
		}
		return 0
	case status.KindUnsigned:
		u, _ := v.UnsignedValue()
		return u
	case status.KindSigned:
		i, _ := v.SignedValue()
		return uint64(i)
	case status.KindFloat:
		f, _ := v.FloatValue()
		return math.Float64bits(f)
	default:
		return 0
	}
}

// decodeRaw reconstructs a status.Value from a property's format code and
// the raw bits read from its chunk, sign-extending signed integers back to
// their full int64 representation.
func decodeRaw(format status.Format, raw uint64) status.Value {
	kind, width := status.DecodeFormat(format)
	switch kind {
	case status.KindBool:
		return status.Bool(raw != 0)
	case status.KindUnsigned:
		v, _ := status.Unsigned(raw, width)
		return v
	case status.KindSigned:
		v, _ := status.Signed(signExtend(raw, width), width)
		return v
	case status.KindFloat:
		return status.Float(math.Float64frombits(raw))
	default:
		return status.Empty()
	}
}

// signExtend interprets the low `width` bits of raw as a two's-complement
// signed integer of that width, sign-extended to int64.
func signExtend(raw uint64, width uint8) int64 {
	if width >= 64 {
		return int64(raw)
	}
	signBit := uint64(1) << (width - 1)
	if raw&signBit != 0 {
		raw |= ^uint64(0) << width
	}
	return int64(raw)
}
