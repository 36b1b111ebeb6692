package codec

import "bytes"

// Ordering is the result of Compare: -1, 0, or 1. comparable is false
// when the two values cannot be meaningfully ordered (e.g. text vs a
// numeric literal); Compare never errors, the caller should treat an
// incomparable pair as not-equal / not-ordered.
type Ordering int

const (
	Less    Ordering = -1
	Equal   Ordering = 0
	Greater Ordering = 1
)

// Compare orders a against b. Two numeric values of different families
// are coerced to the widest common signed integer family before
// comparison; if either side is REAL, comparison
// happens in float64. Text is compared byte-lexicographically. A text
// value compared against a numeric value is never comparable.
func Compare(a, b Value) (Ordering, bool) {
	if a.typ == Text && b.typ == Text {
		return byteCompare(a.raw, b.raw), true
	}
	if a.typ == Blob && b.typ == Blob {
		return byteCompare(a.raw, b.raw), true
	}
	if (a.typ == Text) != (b.typ == Text) {
		return Equal, false
	}
	if (a.typ == Blob) != (b.typ == Blob) {
		return Equal, false
	}

	if a.typ == Real || b.typ == Real {
		fa, aok := a.Float64()
		fb, bok := b.Float64()
		if !aok || !bok {
			return Equal, false
		}
		switch {
		case fa < fb:
			return Less, true
		case fa > fb:
			return Greater, true
		default:
			return Equal, true
		}
	}

	na, aok := a.Int64()
	nb, bok := b.Int64()
	if aok && bok {
		switch {
		case na < nb:
			return Less, true
		case na > nb:
			return Greater, true
		default:
			return Equal, true
		}
	}
	return Equal, false
}

// Eq is shorthand for equality, with the same "never error" contract as
// Compare: incomparable values are simply not equal.
func Eq(a, b Value) bool {
	ord, ok := Compare(a, b)
	return ok && ord == Equal
}

func byteCompare(a, b []byte) Ordering {
	switch bytes.Compare(a, b) {
	case -1:
		return Less
	case 1:
		return Greater
	default:
		return Equal
	}
}

// FoldASCII lower-cases the ASCII letters in a TEXT value, leaving
// non-ASCII bytes untouched. Used by ignoreCase() condition modifiers.
func FoldASCII(v Value) Value {
	if v.typ != Text {
		return v
	}
	out := make([]byte, len(v.raw))
	for i, c := range v.raw {
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return Value{typ: Text, raw: out}
}
