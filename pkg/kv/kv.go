// Package kv wraps BadgerDB as NogDB's backing key-value engine.
//
// NogDB treats the backing store as a black-box ordered map with named
// sub-maps ("tables"), transactions, snapshot reads and a single writer.
// BadgerDB itself has no notion of named tables, so this package emulates
// them by prefixing every key with its table name, similar to a one-byte
// tag scheme (nodes/edges/label-index/...) except generalized to the
// dynamic table names NogDB needs (data.<ClassId>, index.<IndexId>.*).
package kv

import (
	"bytes"
	"fmt"
	"log"

	"github.com/dgraph-io/badger/v4"
)

// separator marks the boundary between a table name and the key that
// follows it. 0x00 never appears in a table name.
const separator = 0x00

// Options configures the backing store.
type Options struct {
	// Dir is the directory holding the database files. Required unless
	// InMemory is set.
	Dir string

	// InMemory runs the store entirely in RAM; useful for tests.
	InMemory bool

	// SyncWrites forces an fsync on every commit for maximum durability.
	SyncWrites bool

	// LowMemory trims Badger's in-memory buffers for constrained hosts.
	LowMemory bool
}

// DB is the opened backing store. Any number of read-only Txns may run
// concurrently with each other and with read-write Txns; DB itself does
// not limit how many read-write Txns are open at once.
type DB struct {
	bdb *badger.DB
}

// Open opens (creating if necessary) the database at the configured
// directory.
func Open(opts Options) (*DB, error) {
	bo := badger.DefaultOptions(opts.Dir)
	if opts.InMemory {
		bo = bo.WithInMemory(true)
	}
	bo = bo.WithSyncWrites(opts.SyncWrites).WithLogger(nil)
	if opts.LowMemory {
		bo = bo.
			WithMemTableSize(16 << 20).
			WithValueLogFileSize(64 << 20).
			WithNumMemtables(2).
			WithNumLevelZeroTables(2).
			WithNumLevelZeroTablesStall(4).
			WithBlockCacheSize(32 << 20).
			WithIndexCacheSize(16 << 20)
	}

	bdb, err := badger.Open(bo)
	if err != nil {
		return nil, fmt.Errorf("kv: opening backing store: %w", err)
	}
	log.Printf("kv: opened store at %q (in-memory=%v)", opts.Dir, opts.InMemory)
	return &DB{bdb: bdb}, nil
}

// Close releases the backing store. Any in-flight transactions become
// invalid.
func (db *DB) Close() error {
	return db.bdb.Close()
}

// Txn is a single transaction against the backing store, read-only or
// read-write depending on how it was begun. It never blocks readers.
type Txn struct {
	btxn     *badger.Txn
	writable bool
}

// Begin starts a new transaction. writable=true starts a read-write Badger
// transaction without waiting for other writers; Badger reports a
// conflict at Commit if another writer committed a key this one read.
// writable=false takes an immediate, non-blocking consistent snapshot of
// the last committed state.
func (db *DB) Begin(writable bool) *Txn {
	return &Txn{btxn: db.bdb.NewTransaction(writable), writable: writable}
}

// Writable reports whether this transaction may mutate the store.
func (t *Txn) Writable() bool { return t.writable }

func tableKey(table string, key []byte) []byte {
	out := make([]byte, 0, len(table)+1+len(key))
	out = append(out, table...)
	out = append(out, separator)
	out = append(out, key...)
	return out
}

// Get reads a single value from table at key. Returns (nil, false, nil) if
// absent.
func (t *Txn) Get(table string, key []byte) ([]byte, bool, error) {
	item, err := t.btxn.Get(tableKey(table, key))
	if err == badger.ErrKeyNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// Set writes value to table at key. Fails with an error if the
// transaction is read-only.
func (t *Txn) Set(table string, key, value []byte) error {
	return t.btxn.Set(tableKey(table, key), value)
}

// Delete removes key from table. It is not an error to delete an absent
// key.
func (t *Txn) Delete(table string, key []byte) error {
	return t.btxn.Delete(tableKey(table, key))
}

// Iterate walks every key in table in ascending key order, starting at
// prefix (which may be empty to scan the whole table), calling fn with the
// key (table name stripped, prefix kept) and value. Iteration stops early,
// without error, if fn returns false.
func (t *Txn) Iterate(table string, prefix []byte, fn func(key, value []byte) (bool, error)) error {
	it := t.btxn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	seek := tableKey(table, prefix)
	tablePrefix := tableKey(table, nil)
	for it.Seek(seek); it.ValidForPrefix(tablePrefix); it.Next() {
		item := it.Item()
		k := bytes.TrimPrefix(item.KeyCopy(nil), tablePrefix)
		v, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		cont, err := fn(k, v)
		if err != nil {
			return err
		}
		if !cont {
			break
		}
	}
	return nil
}

// Commit atomically persists every buffered write. Durability: when
// SyncWrites is enabled the call does not return until the write-ahead
// log has been fsynced.
func (t *Txn) Commit() error {
	return t.btxn.Commit()
}

// Rollback discards every buffered write and releases the writer slot
// (for a writable Txn) or the snapshot (for a read-only one).
func (t *Txn) Rollback() {
	t.btxn.Discard()
}
