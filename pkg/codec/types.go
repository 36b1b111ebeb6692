// Package codec implements NogDB's record codec: the binary encoding that
// packs a record's property values into a length-prefixed blob keyed by a
// compact property id, plus the typed value model and its conversion and
// comparison rules.
package codec

import (
	"fmt"
	"math"

	"github.com/nogdb/nogdb/pkg/nogdberr"
)

// PropertyID identifies a property within its owning class.
type PropertyID uint16

// Type is one of the eleven property types a property may declare.
type Type uint8

const (
	TinyInt Type = iota
	UTinyInt
	SmallInt
	USmallInt
	Integer
	UInteger
	BigInt
	UBigInt
	Real
	Text
	Blob
)

func (t Type) String() string {
	switch t {
	case TinyInt:
		return "TINYINT"
	case UTinyInt:
		return "UNSIGNED_TINYINT"
	case SmallInt:
		return "SMALLINT"
	case USmallInt:
		return "UNSIGNED_SMALLINT"
	case Integer:
		return "INTEGER"
	case UInteger:
		return "UNSIGNED_INTEGER"
	case BigInt:
		return "BIGINT"
	case UBigInt:
		return "UNSIGNED_BIGINT"
	case Real:
		return "REAL"
	case Text:
		return "TEXT"
	case Blob:
		return "BLOB"
	default:
		return "UNKNOWN"
	}
}

// ParseType maps a case-sensitive type keyword (as used by the SQL
// surface) to a Type.
func ParseType(s string) (Type, bool) {
	for t := TinyInt; t <= Blob; t++ {
		if t.String() == s {
			return t, true
		}
	}
	return 0, false
}

// fixedWidth returns the on-disk byte width of fixed-size numeric types,
// or 0 for TEXT/BLOB which are variable length.
func (t Type) fixedWidth() int {
	switch t {
	case TinyInt, UTinyInt:
		return 1
	case SmallInt, USmallInt:
		return 2
	case Integer, UInteger:
		return 4
	case BigInt, UBigInt, Real:
		return 8
	default:
		return 0
	}
}

func (t Type) isSigned() bool {
	switch t {
	case TinyInt, SmallInt, Integer, BigInt:
		return true
	default:
		return false
	}
}

func (t Type) isUnsigned() bool {
	switch t {
	case UTinyInt, USmallInt, UInteger, UBigInt:
		return true
	default:
		return false
	}
}

func (t Type) isNumeric() bool { return t != Text && t != Blob }

// Value is a typed property value as decoded from (or about to be
// encoded into) a record. The zero Value is not meaningful; use the
// constructors below.
type Value struct {
	typ Type
	raw []byte // little-endian fixed-width bytes for numerics; raw bytes for TEXT/BLOB
}

// Type reports the value's property type.
func (v Value) Type() Type { return v.typ }

// Raw returns the encoded bytes backing the value, as they appear on
// disk.
func (v Value) Raw() []byte { return v.raw }

// NewInt builds a signed-integer-family Value, range-checking against t.
func NewInt(t Type, n int64) (Value, error) {
	if !t.isSigned() {
		return Value{}, nogdberr.New(nogdberr.DataTypeMismatch, "%s is not a signed integer type", t)
	}
	lo, hi := signedRange(t)
	if n < lo || n > hi {
		return Value{}, nogdberr.New(nogdberr.DataTypeMismatch, "%d out of range for %s", n, t)
	}
	buf := make([]byte, t.fixedWidth())
	putLittleEndianSigned(buf, n)
	return Value{typ: t, raw: buf}, nil
}

// NewUint builds an unsigned-integer-family Value, range-checking against
// t.
func NewUint(t Type, n uint64) (Value, error) {
	if !t.isUnsigned() {
		return Value{}, nogdberr.New(nogdberr.DataTypeMismatch, "%s is not an unsigned integer type", t)
	}
	_, hi := unsignedRange(t)
	if n > hi {
		return Value{}, nogdberr.New(nogdberr.DataTypeMismatch, "%d out of range for %s", n, t)
	}
	buf := make([]byte, t.fixedWidth())
	putLittleEndianUnsigned(buf, n)
	return Value{typ: t, raw: buf}, nil
}

// NewReal builds a REAL (float64) value.
func NewReal(f float64) Value {
	buf := make([]byte, 8)
	putLittleEndianUnsigned(buf, math.Float64bits(f))
	return Value{typ: Real, raw: buf}
}

// NewText builds a TEXT value. Text is stored as raw bytes with no
// trailing NUL.
func NewText(s string) Value {
	return Value{typ: Text, raw: []byte(s)}
}

// NewBlob builds an opaque BLOB value.
func NewBlob(b []byte) Value {
	cp := make([]byte, len(b))
	copy(cp, b)
	return Value{typ: Blob, raw: cp}
}

// fromRaw reconstructs a Value of type t from its on-disk bytes, used by
// Decode for properties known to the schema.
func fromRaw(t Type, raw []byte) Value {
	return Value{typ: t, raw: raw}
}

func signedRange(t Type) (int64, int64) {
	switch t {
	case TinyInt:
		return math.MinInt8, math.MaxInt8
	case SmallInt:
		return math.MinInt16, math.MaxInt16
	case Integer:
		return math.MinInt32, math.MaxInt32
	default: // BigInt
		return math.MinInt64, math.MaxInt64
	}
}

func unsignedRange(t Type) (uint64, uint64) {
	switch t {
	case UTinyInt:
		return 0, math.MaxUint8
	case USmallInt:
		return 0, math.MaxUint16
	case UInteger:
		return 0, math.MaxUint32
	default: // UBigInt
		return 0, math.MaxUint64
	}
}

func putLittleEndianSigned(buf []byte, n int64) {
	putLittleEndianUnsigned(buf, uint64(n))
}

func putLittleEndianUnsigned(buf []byte, n uint64) {
	for i := range buf {
		buf[i] = byte(n >> (8 * uint(i)))
	}
}

func getLittleEndianUnsigned(buf []byte) uint64 {
	var n uint64
	for i, b := range buf {
		n |= uint64(b) << (8 * uint(i))
	}
	return n
}

func getLittleEndianSigned(buf []byte, width int) int64 {
	u := getLittleEndianUnsigned(buf)
	// sign-extend from width bytes to 64 bits
	shift := 64 - 8*width
	return int64(u<<uint(shift)) >> uint(shift)
}

// Int64 returns the value as a signed int64, widening losslessly from any
// signed or unsigned integer type. ok is false for REAL/TEXT/BLOB.
func (v Value) Int64() (int64, bool) {
	switch v.typ {
	case TinyInt, SmallInt, Integer, BigInt:
		return getLittleEndianSigned(v.raw, v.typ.fixedWidth()), true
	case UTinyInt, USmallInt, UInteger:
		return int64(getLittleEndianUnsigned(v.raw)), true
	case UBigInt:
		u := getLittleEndianUnsigned(v.raw)
		if u > math.MaxInt64 {
			return 0, false
		}
		return int64(u), true
	default:
		return 0, false
	}
}

// Uint64 returns the value as an unsigned uint64. ok is false for
// negative signed values, REAL, TEXT or BLOB.
func (v Value) Uint64() (uint64, bool) {
	switch v.typ {
	case UTinyInt, USmallInt, UInteger, UBigInt:
		return getLittleEndianUnsigned(v.raw), true
	case TinyInt, SmallInt, Integer, BigInt:
		n := getLittleEndianSigned(v.raw, v.typ.fixedWidth())
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	default:
		return 0, false
	}
}

// Float64 returns the value as a float64. Integer families widen
// losslessly enough for comparison purposes; REAL returns directly.
func (v Value) Float64() (float64, bool) {
	switch v.typ {
	case Real:
		return math.Float64frombits(getLittleEndianUnsigned(v.raw)), true
	default:
		if n, ok := v.Int64(); ok {
			return float64(n), true
		}
		if n, ok := v.Uint64(); ok {
			return float64(n), true
		}
		return 0, false
	}
}

// Text returns the value's bytes as a string. Only meaningful for TEXT.
func (v Value) Text() (string, bool) {
	if v.typ != Text {
		return "", false
	}
	return string(v.raw), true
}

// Blob returns the value's raw bytes. Only meaningful for BLOB.
func (v Value) Blob() ([]byte, bool) {
	if v.typ != Blob {
		return nil, false
	}
	return v.raw, true
}

// CastTo narrows or widens v into target, applying a range check:
// widening between integer families always succeeds; narrowing
// fails with DATA_TYPE_MISMATCH when the value does not fit.
func CastTo(v Value, target Type) (Value, error) {
	if v.typ == target {
		return v, nil
	}
	if target.isNumeric() && v.typ.isNumeric() {
		if target.isSigned() {
			n, ok := v.Int64()
			if !ok {
				return Value{}, nogdberr.New(nogdberr.DataTypeMismatch, "cannot convert %s to %s", v.typ, target)
			}
			return NewInt(target, n)
		}
		if target.isUnsigned() {
			n, ok := v.Uint64()
			if !ok {
				return Value{}, nogdberr.New(nogdberr.DataTypeMismatch, "cannot convert %s to %s", v.typ, target)
			}
			return NewUint(target, n)
		}
		if target == Real {
			f, ok := v.Float64()
			if !ok {
				return Value{}, nogdberr.New(nogdberr.DataTypeMismatch, "cannot convert %s to REAL", v.typ)
			}
			return NewReal(f), nil
		}
	}
	return Value{}, nogdberr.New(nogdberr.DataTypeMismatch, "cannot convert %s to %s", v.typ, target)
}

// String renders v for diagnostics; it is not used by the wire format.
func (v Value) String() string {
	switch v.typ {
	case Text:
		s, _ := v.Text()
		return s
	case Blob:
		b, _ := v.Blob()
		return fmt.Sprintf("blob(%d bytes)", len(b))
	case Real:
		f, _ := v.Float64()
		return fmt.Sprintf("%v", f)
	default:
		if v.typ.isSigned() {
			n, _ := v.Int64()
			return fmt.Sprintf("%d", n)
		}
		n, _ := v.Uint64()
		return fmt.Sprintf("%d", n)
	}
}
