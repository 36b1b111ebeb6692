// Package record implements NogDB's record store: create/read/update/
// destroy of vertex and edge records across classes, keyed by a
// positional id that is never reused within a class's lifetime.
package record

import (
	"encoding/binary"
	"strconv"

	"github.com/nogdb/nogdb/pkg/codec"
	"github.com/nogdb/nogdb/pkg/kv"
	"github.com/nogdb/nogdb/pkg/nogdberr"
	"github.com/nogdb/nogdb/pkg/schema"
)

const (
	dataTablePrefix = "data."
	metaTable       = "record.meta"
)

// ID is the pair (ClassID, PositionalID) that names a record.
type ID struct {
	ClassID      schema.ClassID
	PositionalID int64
}

// String renders id in NogDB's "#classId:positionalId" record id
// notation.
func (id ID) String() string {
	return "#" + strconv.FormatInt(int64(id.ClassID), 10) + ":" + strconv.FormatInt(id.PositionalID, 10)
}

// Descriptor wraps an ID, optionally annotated with a traversal depth
// (informational only).
type Descriptor struct {
	ID       ID
	Depth    int
	HasDepth bool
}

func dataTable(classID schema.ClassID) string {
	return dataTablePrefix + strconv.FormatInt(int64(classID), 10)
}

func posKey(pos int64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(pos))
	return b[:]
}

func posFromKey(k []byte) int64 {
	return int64(binary.BigEndian.Uint64(k))
}

// Stored is the decoded on-disk representation of a record: its version
// counter plus its typed properties.
type Stored struct {
	Version    uint64
	Properties codec.Record
}

func encodeStored(s Stored) []byte {
	var scratch [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(scratch[:], s.Version)
	out := make([]byte, 0, n+32)
	out = append(out, scratch[:n]...)
	out = append(out, codec.Encode(s.Properties)...)
	return out
}

func decodeStored(b []byte, lookup codec.PropertyTypeLookup) (Stored, error) {
	ver, n := binary.Uvarint(b)
	if n <= 0 {
		return Stored{}, nogdberr.New(nogdberr.DataTypeMismatch, "corrupt record: bad version varint")
	}
	props, err := codec.Decode(b[n:], lookup)
	if err != nil {
		return Stored{}, err
	}
	return Stored{Version: ver, Properties: props}, nil
}

// Store provides CRUD for records of a single backing kv.DB, scoped per
// transaction via the kv.Txn handed to each method.
type Store struct {
	catalog *schema.Snapshot
}

// New returns a Store consulting catalog for property typing.
func New(catalog *schema.Snapshot) *Store {
	return &Store{catalog: catalog}
}

// nextPositionalID allocates and persists the next PositionalID for
// classID. Counters are never reset, so ids are never reused even after
// deletion.
func nextPositionalID(ktxn *kv.Txn, classID schema.ClassID) (int64, error) {
	key := []byte(strconv.FormatInt(int64(classID), 10))
	raw, ok, err := ktxn.Get(metaTable, key)
	if err != nil {
		return 0, err
	}
	var next int64
	if ok {
		next = posFromKey(raw)
	}
	if err := ktxn.Set(metaTable, key, posKey(next+1)); err != nil {
		return 0, err
	}
	return next, nil
}

// Create allocates a fresh PositionalID for classID and stores props at
// version 1.
func (s *Store) Create(ktxn *kv.Txn, classID schema.ClassID, props codec.Record) (ID, error) {
	pos, err := nextPositionalID(ktxn, classID)
	if err != nil {
		return ID{}, err
	}
	stored := Stored{Version: 1, Properties: props}
	if err := ktxn.Set(dataTable(classID), posKey(pos), encodeStored(stored)); err != nil {
		return ID{}, err
	}
	return ID{ClassID: classID, PositionalID: pos}, nil
}

// Get fetches and decodes the record at id.
func (s *Store) Get(ktxn *kv.Txn, id ID) (Stored, error) {
	raw, ok, err := ktxn.Get(dataTable(id.ClassID), posKey(id.PositionalID))
	if err != nil {
		return Stored{}, err
	}
	if !ok {
		return Stored{}, nogdberr.New(nogdberr.NoExistRecord, "record %v not found", id)
	}
	return decodeStored(raw, s.catalog.PropertyLookup(id.ClassID))
}

// Update overwrites id's properties and increments its version.
func (s *Store) Update(ktxn *kv.Txn, id ID, props codec.Record) (Stored, error) {
	cur, err := s.Get(ktxn, id)
	if err != nil {
		return Stored{}, err
	}
	stored := Stored{Version: cur.Version + 1, Properties: props}
	if err := ktxn.Set(dataTable(id.ClassID), posKey(id.PositionalID), encodeStored(stored)); err != nil {
		return Stored{}, err
	}
	return stored, nil
}

// Delete removes id. It is the caller's responsibility to have already
// cascaded any adjacency/index cleanup.
func (s *Store) Delete(ktxn *kv.Txn, id ID) error {
	return ktxn.Delete(dataTable(id.ClassID), posKey(id.PositionalID))
}

// Exists reports whether id names a live record.
func (s *Store) Exists(ktxn *kv.Txn, id ID) (bool, error) {
	_, ok, err := ktxn.Get(dataTable(id.ClassID), posKey(id.PositionalID))
	return ok, err
}

// Scan walks every record of classID in ascending PositionalID order —
// insertion order, since ids are monotonically increasing and never
// reused. fn receiving false stops the scan early.
func (s *Store) Scan(ktxn *kv.Txn, classID schema.ClassID, fn func(ID, Stored) (bool, error)) error {
	lookup := s.catalog.PropertyLookup(classID)
	return ktxn.Iterate(dataTable(classID), nil, func(k, v []byte) (bool, error) {
		stored, err := decodeStored(v, lookup)
		if err != nil {
			return false, err
		}
		return fn(ID{ClassID: classID, PositionalID: posFromKey(k)}, stored)
	})
}

// Count returns the number of live records in classID.
func (s *Store) Count(ktxn *kv.Txn, classID schema.ClassID) (int64, error) {
	var n int64
	err := s.Scan(ktxn, classID, func(ID, Stored) (bool, error) {
		n++
		return true, nil
	})
	return n, err
}
