package codec

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/nogdb/nogdb/pkg/nogdberr"
)

// PropertyTypeLookup resolves the declared type of a property within a
// class, consulted by Decode so that known properties come back as typed
// Values. Implemented by the schema package's class snapshot.
type PropertyTypeLookup interface {
	PropertyType(id PropertyID) (Type, bool)
}

// Record is an ordered mapping of PropertyID to typed Value, the decoded
// form of a row. Unset properties are simply absent from the map —
// distinct from a present, zero-valued property.
type Record map[PropertyID]Value

// rawProperty holds an undecoded property, used to pass through
// properties unknown to the current schema verbatim.
type rawProperty struct {
	id  PropertyID
	typ Type
	raw []byte
}

// Encode packs rec into the on-disk layout: for each property, in
// ascending PropertyID order, (PropertyID:varint)(length:varint)(bytes).
// Fixed-width numeric types always occupy their natural width; TEXT and
// BLOB are raw bytes with a varint length.
func Encode(rec Record) []byte {
	ids := make([]PropertyID, 0, len(rec))
	for id := range rec {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var buf []byte
	var scratch [binary.MaxVarintLen64]byte
	for _, id := range ids {
		v := rec[id]
		n := binary.PutUvarint(scratch[:], uint64(id))
		buf = append(buf, scratch[:n]...)
		n = binary.PutUvarint(scratch[:], uint64(len(v.raw)))
		buf = append(buf, scratch[:n]...)
		buf = append(buf, v.raw...)
	}
	return buf
}

// Decode unpacks b into a Record. Properties known to lookup are typed
// per the schema; properties unknown to lookup are preserved as opaque
// BLOB-shaped values so a subsequent Encode of an update-without-
// modification round-trips their bytes unchanged.
func Decode(b []byte, lookup PropertyTypeLookup) (Record, error) {
	rec := make(Record)
	for len(b) > 0 {
		id, n := binary.Uvarint(b)
		if n <= 0 {
			return nil, nogdberr.New(nogdberr.DataTypeMismatch, "corrupt record: bad property id varint")
		}
		b = b[n:]

		length, n := binary.Uvarint(b)
		if n <= 0 {
			return nil, nogdberr.New(nogdberr.DataTypeMismatch, "corrupt record: bad length varint")
		}
		b = b[n:]

		if uint64(len(b)) < length {
			return nil, nogdberr.New(nogdberr.DataTypeMismatch, "corrupt record: truncated value")
		}
		raw := b[:length]
		b = b[length:]

		pid := PropertyID(id)
		if typ, ok := lookup.PropertyType(pid); ok {
			rec[pid] = fromRaw(typ, raw)
		} else {
			// Unknown to the current schema: preserve verbatim as an
			// opaque value so update-without-modification passes it
			// through unchanged.
			cp := make([]byte, len(raw))
			copy(cp, raw)
			rec[pid] = Value{typ: Blob, raw: cp}
		}
	}
	return rec, nil
}

// String renders rec for diagnostics.
func (r Record) String() string {
	return fmt.Sprintf("Record(%d properties)", len(r))
}
