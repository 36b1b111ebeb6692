package codec

import (
	"testing"

	"github.com/nogdb/nogdb/pkg/nogdberr"
	"github.com/stretchr/testify/require"
)

type staticLookup map[PropertyID]Type

func (s staticLookup) PropertyType(id PropertyID) (Type, bool) {
	t, ok := s[id]
	return t, ok
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	title, _ := NewInt(Integer, 42)
	rec := Record{
		1: NewText("hello"),
		2: title,
		3: NewBlob([]byte{1, 2, 3}),
	}
	lookup := staticLookup{1: Text, 2: Integer, 3: Blob}

	got, err := Decode(Encode(rec), lookup)
	require.NoError(t, err)
	require.Len(t, got, 3)

	s, ok := got[1].Text()
	require.True(t, ok)
	require.Equal(t, "hello", s)

	n, ok := got[2].Int64()
	require.True(t, ok)
	require.Equal(t, int64(42), n)
}

func TestDecodePreservesUnknownProperty(t *testing.T) {
	rec := Record{5: NewText("future")}
	out, err := Decode(Encode(rec), staticLookup{}) // nothing known
	require.NoError(t, err)

	reEncoded := Encode(out)
	require.Equal(t, Encode(rec), reEncoded, "unknown property must round-trip byte-for-byte")
}

func TestNewIntRejectsOutOfRange(t *testing.T) {
	_, err := NewInt(TinyInt, 1000)
	require.Error(t, err)
	require.True(t, nogdberr.Is(err, nogdberr.DataTypeMismatch))
}

func TestCastWideningIsLossless(t *testing.T) {
	tiny, err := NewInt(TinyInt, -5)
	require.NoError(t, err)

	wide, err := CastTo(tiny, BigInt)
	require.NoError(t, err)
	n, ok := wide.Int64()
	require.True(t, ok)
	require.Equal(t, int64(-5), n)
}

func TestCastNarrowingOutOfRangeFails(t *testing.T) {
	big, err := NewInt(BigInt, 1<<40)
	require.NoError(t, err)

	_, err = CastTo(big, Integer)
	require.Error(t, err)
	require.True(t, nogdberr.Is(err, nogdberr.DataTypeMismatch))
}

func TestCompareAcrossNumericFamilies(t *testing.T) {
	a, _ := NewInt(TinyInt, 5)
	b, _ := NewUint(UInteger, 5)
	ord, ok := Compare(a, b)
	require.True(t, ok)
	require.Equal(t, Equal, ord)
}

func TestCompareTextVsNumericNeverErrors(t *testing.T) {
	_, ok := Compare(NewText("5"), mustInt(5))
	require.False(t, ok, "text vs numeric must be incomparable, not an error")
}

func mustInt(n int64) Value {
	v, err := NewInt(Integer, n)
	if err != nil {
		panic(err)
	}
	return v
}

func TestFoldASCIIOnlyAffectsLetters(t *testing.T) {
	v := NewText("Héllo-W")
	folded := FoldASCII(v)
	s, _ := folded.Text()
	require.Equal(t, "héllo-w", s)
}
