// Package index implements NogDB's secondary index engine: an ordered
// map from property value to record id, maintained on every write. A
// unique index is backed by an `index.<IndexId>.unique` table (value ->
// RecordId) and a non-unique index by an `index.<IndexId>.multi` table
// ((value, RecordId) -> 0).
package index

import (
	"encoding/binary"
	"math"
	"strconv"

	"github.com/nogdb/nogdb/pkg/codec"
	"github.com/nogdb/nogdb/pkg/kv"
	"github.com/nogdb/nogdb/pkg/nogdberr"
	"github.com/nogdb/nogdb/pkg/record"
	"github.com/nogdb/nogdb/pkg/schema"
)

func uniqueTable(id schema.IndexID) string {
	return "index." + strconv.FormatInt(int64(id), 10) + ".unique"
}

func multiTable(id schema.IndexID) string {
	return "index." + strconv.FormatInt(int64(id), 10) + ".multi"
}

// orderKey encodes a codec.Value into bytes whose byte-lexicographic
// order matches the value's natural order, so index scans can return
// ascending key order directly off the backing store. TEXT is already
// byte-lexicographic and needs no transform.
func orderKey(v codec.Value) []byte {
	switch v.Type() {
	case codec.Text:
		s, _ := v.Text()
		return []byte(s)
	case codec.Real:
		f, _ := v.Float64()
		bits := math.Float64bits(f)
		if bits&(1<<63) != 0 {
			bits = ^bits // negative: flip everything
		} else {
			bits |= 1 << 63 // positive: set sign bit so it sorts above negatives
		}
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], bits)
		return b[:]
	default:
		if n, ok := v.Int64(); ok {
			var b [8]byte
			binary.BigEndian.PutUint64(b[:], uint64(n)^(1<<63)) // flip sign bit
			return b[:]
		}
		u, _ := v.Uint64()
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], u)
		return b[:]
	}
}

func ridBytes(r record.ID) []byte {
	b := make([]byte, 16)
	binary.BigEndian.PutUint64(b[0:8], uint64(r.ClassID))
	binary.BigEndian.PutUint64(b[8:16], uint64(r.PositionalID))
	return b
}

func ridFromBytes(b []byte) record.ID {
	return record.ID{
		ClassID:      schema.ClassID(binary.BigEndian.Uint64(b[0:8])),
		PositionalID: int64(binary.BigEndian.Uint64(b[8:16])),
	}
}

// InsertUnique adds value -> rid to a unique index, failing
// UNIQUE_CONSTRAINT if the value is already claimed by a different
// record.
func InsertUnique(ktxn *kv.Txn, idx schema.IndexID, v codec.Value, rid record.ID) error {
	key := orderKey(v)
	existing, ok, err := ktxn.Get(uniqueTable(idx), key)
	if err != nil {
		return err
	}
	if ok && ridFromBytes(existing) != rid {
		return nogdberr.New(nogdberr.UniqueConstraint, "value %v already indexed", v)
	}
	return ktxn.Set(uniqueTable(idx), key, ridBytes(rid))
}

// RemoveUnique removes value's entry from a unique index.
func RemoveUnique(ktxn *kv.Txn, idx schema.IndexID, v codec.Value) error {
	return ktxn.Delete(uniqueTable(idx), orderKey(v))
}

// LookupUniqueEq returns the record id indexed under value, if any.
func LookupUniqueEq(ktxn *kv.Txn, idx schema.IndexID, v codec.Value) (record.ID, bool, error) {
	raw, ok, err := ktxn.Get(uniqueTable(idx), orderKey(v))
	if err != nil || !ok {
		return record.ID{}, false, err
	}
	return ridFromBytes(raw), true, nil
}

func multiKey(v codec.Value, rid record.ID) []byte {
	k := orderKey(v)
	out := make([]byte, 0, len(k)+1+16)
	out = append(out, k...)
	out = append(out, 0x00)
	out = append(out, ridBytes(rid)...)
	return out
}

// InsertMulti adds (value, rid) to a non-unique index.
func InsertMulti(ktxn *kv.Txn, idx schema.IndexID, v codec.Value, rid record.ID) error {
	return ktxn.Set(multiTable(idx), multiKey(v, rid), []byte{0})
}

// RemoveMulti removes (value, rid) from a non-unique index.
func RemoveMulti(ktxn *kv.Txn, idx schema.IndexID, v codec.Value, rid record.ID) error {
	return ktxn.Delete(multiTable(idx), multiKey(v, rid))
}

// LookupMultiEq returns every record id indexed under value, in
// ascending RecordId order, the tie-break for records sharing a value.
func LookupMultiEq(ktxn *kv.Txn, idx schema.IndexID, v codec.Value) ([]record.ID, error) {
	prefix := append(orderKey(v), 0x00)
	var out []record.ID
	err := ktxn.Iterate(multiTable(idx), prefix, func(k, _ []byte) (bool, error) {
		if len(k) < len(prefix) || string(k[:len(prefix)]) != string(prefix) {
			return false, nil
		}
		out = append(out, ridFromBytes(k[len(prefix):]))
		return true, nil
	})
	return out, err
}

// OnCreate maintains every index visible to classID for the properties
// present in props, as part of inserting rid.
func OnCreate(ktxn *kv.Txn, snap *schema.Snapshot, classID schema.ClassID, rid record.ID, props codec.Record) error {
	for pid, v := range props {
		idx, ok := snap.IndexFor(classID, pid)
		if !ok {
			continue
		}
		if idx.Unique {
			if err := InsertUnique(ktxn, idx.ID, v, rid); err != nil {
				return err
			}
		} else if err := InsertMulti(ktxn, idx.ID, v, rid); err != nil {
			return err
		}
	}
	return nil
}

// OnUpdate retargets every index visible to classID from oldProps to
// newProps for rid.
func OnUpdate(ktxn *kv.Txn, snap *schema.Snapshot, classID schema.ClassID, rid record.ID, oldProps, newProps codec.Record) error {
	touched := make(map[codec.PropertyID]bool, len(oldProps)+len(newProps))
	for pid := range oldProps {
		touched[pid] = true
	}
	for pid := range newProps {
		touched[pid] = true
	}
	for pid := range touched {
		idx, ok := snap.IndexFor(classID, pid)
		if !ok {
			continue
		}
		oldV, hadOld := oldProps[pid]
		newV, hasNew := newProps[pid]
		if hadOld && hasNew && codec.Eq(oldV, newV) {
			continue
		}
		if hasNew {
			if idx.Unique {
				if err := InsertUnique(ktxn, idx.ID, newV, rid); err != nil {
					return err
				}
			} else if err := InsertMulti(ktxn, idx.ID, newV, rid); err != nil {
				return err
			}
		}
		if hadOld {
			if idx.Unique {
				if err := RemoveUnique(ktxn, idx.ID, oldV); err != nil {
					return err
				}
			} else if err := RemoveMulti(ktxn, idx.ID, oldV, rid); err != nil {
				return err
			}
		}
	}
	return nil
}

// OnDestroy removes every indexed entry belonging to rid.
func OnDestroy(ktxn *kv.Txn, snap *schema.Snapshot, classID schema.ClassID, rid record.ID, props codec.Record) error {
	for pid, v := range props {
		idx, ok := snap.IndexFor(classID, pid)
		if !ok {
			continue
		}
		if idx.Unique {
			if err := RemoveUnique(ktxn, idx.ID, v); err != nil {
				return err
			}
		} else if err := RemoveMulti(ktxn, idx.ID, v, rid); err != nil {
			return err
		}
	}
	return nil
}

// DropIndexData removes every key physically stored under idx, in both
// its unique and multi tables. The catalog entry itself is removed
// separately by schema.Snapshot.DropIndex; this just reclaims the data
// an index id will never be reused for — index ids are permanent, like
// class ids.
func DropIndexData(ktxn *kv.Txn, idx schema.IndexID) error {
	for _, table := range []string{uniqueTable(idx), multiTable(idx)} {
		var keys [][]byte
		err := ktxn.Iterate(table, nil, func(k, _ []byte) (bool, error) {
			keys = append(keys, append([]byte(nil), k...))
			return true, nil
		})
		if err != nil {
			return err
		}
		for _, k := range keys {
			if err := ktxn.Delete(table, k); err != nil {
				return err
			}
		}
	}
	return nil
}

// ScanForUniqueViolation scans every record of classID looking for a
// duplicate value of prop, used by addIndex(unique=true) on a non-empty
// class. It returns the first colliding pair of record ids it finds, if
// any.
func ScanForUniqueViolation(ktxn *kv.Txn, store *record.Store, classID schema.ClassID, prop codec.PropertyID) (record.ID, record.ID, bool, error) {
	seen := make(map[string]record.ID)
	var dupA, dupB record.ID
	found := false
	err := store.Scan(ktxn, classID, func(id record.ID, s record.Stored) (bool, error) {
		v, ok := s.Properties[prop]
		if !ok {
			return true, nil
		}
		key := string(orderKey(v))
		if prior, exists := seen[key]; exists {
			dupA, dupB, found = prior, id, true
			return false, nil
		}
		seen[key] = id
		return true, nil
	})
	return dupA, dupB, found, err
}
