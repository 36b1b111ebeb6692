package kv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(Options{Dir: t.TempDir(), InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSetGetDelete(t *testing.T) {
	db := openTestDB(t)

	txn := db.Begin(true)
	require.NoError(t, txn.Set("things", []byte("a"), []byte("1")))
	require.NoError(t, txn.Commit())

	ro := db.Begin(false)
	defer ro.Rollback()
	v, ok, err := ro.Get("things", []byte("a"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "1", string(v))

	_, ok, err = ro.Get("things", []byte("missing"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestTablesDoNotCollide(t *testing.T) {
	db := openTestDB(t)

	txn := db.Begin(true)
	require.NoError(t, txn.Set("tableA", []byte("k"), []byte("a")))
	require.NoError(t, txn.Set("tableB", []byte("k"), []byte("b")))
	require.NoError(t, txn.Commit())

	ro := db.Begin(false)
	defer ro.Rollback()
	v, _, _ := ro.Get("tableA", []byte("k"))
	require.Equal(t, "a", string(v))
	v, _, _ = ro.Get("tableB", []byte("k"))
	require.Equal(t, "b", string(v))
}

func TestIteratePrefixScopedToTable(t *testing.T) {
	db := openTestDB(t)

	txn := db.Begin(true)
	require.NoError(t, txn.Set("data.1", []byte{0, 0, 0, 1}, []byte("r1")))
	require.NoError(t, txn.Set("data.1", []byte{0, 0, 0, 2}, []byte("r2")))
	require.NoError(t, txn.Set("data.2", []byte{0, 0, 0, 1}, []byte("other")))
	require.NoError(t, txn.Commit())

	ro := db.Begin(false)
	defer ro.Rollback()

	var got []string
	err := ro.Iterate("data.1", nil, func(k, v []byte) (bool, error) {
		got = append(got, string(v))
		return true, nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"r1", "r2"}, got)
}

func TestRollbackDiscardsWrites(t *testing.T) {
	db := openTestDB(t)

	txn := db.Begin(true)
	require.NoError(t, txn.Set("t", []byte("k"), []byte("v")))
	txn.Rollback()

	ro := db.Begin(false)
	defer ro.Rollback()
	_, ok, err := ro.Get("t", []byte("k"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestReaderSnapshotIsolatedFromLaterWriter(t *testing.T) {
	db := openTestDB(t)

	w1 := db.Begin(true)
	require.NoError(t, w1.Set("t", []byte("k"), []byte("v1")))
	require.NoError(t, w1.Commit())

	reader := db.Begin(false)
	defer reader.Rollback()

	w2 := db.Begin(true)
	require.NoError(t, w2.Set("t", []byte("k"), []byte("v2")))
	require.NoError(t, w2.Commit())

	v, ok, err := reader.Get("t", []byte("k"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v1", string(v), "reader begun before the second commit must not see it")
}
