package record

import (
	"testing"

	"github.com/nogdb/nogdb/pkg/codec"
	"github.com/nogdb/nogdb/pkg/kv"
	"github.com/nogdb/nogdb/pkg/nogdberr"
	"github.com/nogdb/nogdb/pkg/schema"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*kv.DB, *schema.Snapshot) {
	t.Helper()
	db, err := kv.Open(kv.Options{Dir: t.TempDir(), InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ktxn := db.Begin(true)
	snap := schema.NewEmpty()
	_, err = snap.AddClass(ktxn, "books", schema.Vertex, schema.NoClass)
	require.NoError(t, err)
	_, err = snap.AddProperty(ktxn, "books", "title", codec.Text)
	require.NoError(t, err)
	_, err = snap.AddProperty(ktxn, "books", "pages", codec.Integer)
	require.NoError(t, err)
	require.NoError(t, ktxn.Commit())

	return db, snap
}

func TestCreateGetUpdateDelete(t *testing.T) {
	db, snap := setup(t)
	books, _ := snap.ClassByName("books")
	store := New(snap)

	pages, _ := codec.NewInt(codec.Integer, 100)

	ktxn := db.Begin(true)
	id, err := store.Create(ktxn, books.ID, codec.Record{0: codec.NewText("A"), 1: pages})
	require.NoError(t, err)
	require.NoError(t, ktxn.Commit())

	ktxn = db.Begin(false)
	got, err := store.Get(ktxn, id)
	require.NoError(t, err)
	require.Equal(t, uint64(1), got.Version)
	title, _ := got.Properties[0].Text()
	require.Equal(t, "A", title)
	ktxn.Rollback()

	newPages, _ := codec.NewInt(codec.Integer, 200)
	ktxn = db.Begin(true)
	updated, err := store.Update(ktxn, id, codec.Record{0: codec.NewText("A"), 1: newPages})
	require.NoError(t, err)
	require.Equal(t, uint64(2), updated.Version)
	require.NoError(t, ktxn.Commit())

	ktxn = db.Begin(true)
	require.NoError(t, store.Delete(ktxn, id))
	require.NoError(t, ktxn.Commit())

	ktxn = db.Begin(false)
	_, err = store.Get(ktxn, id)
	require.Error(t, err)
	require.True(t, nogdberr.Is(err, nogdberr.NoExistRecord))
	ktxn.Rollback()
}

func TestPositionalIDNeverReused(t *testing.T) {
	db, snap := setup(t)
	books, _ := snap.ClassByName("books")
	store := New(snap)

	ktxn := db.Begin(true)
	id1, err := store.Create(ktxn, books.ID, codec.Record{0: codec.NewText("A")})
	require.NoError(t, err)
	require.NoError(t, store.Delete(ktxn, id1))
	id2, err := store.Create(ktxn, books.ID, codec.Record{0: codec.NewText("B")})
	require.NoError(t, err)
	require.NoError(t, ktxn.Commit())

	require.NotEqual(t, id1.PositionalID, id2.PositionalID)
}

func TestScanPositionalOrderMatchesInsertion(t *testing.T) {
	db, snap := setup(t)
	books, _ := snap.ClassByName("books")
	store := New(snap)

	ktxn := db.Begin(true)
	for _, title := range []string{"A", "B", "C"} {
		_, err := store.Create(ktxn, books.ID, codec.Record{0: codec.NewText(title)})
		require.NoError(t, err)
	}
	require.NoError(t, ktxn.Commit())

	ktxn = db.Begin(false)
	defer ktxn.Rollback()
	var titles []string
	err := store.Scan(ktxn, books.ID, func(id ID, s Stored) (bool, error) {
		title, _ := s.Properties[0].Text()
		titles = append(titles, title)
		return true, nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"A", "B", "C"}, titles)

	count, err := store.Count(ktxn, books.ID)
	require.NoError(t, err)
	require.Equal(t, int64(3), count)
}

func TestUnsetPropertyIsAbsentNotZero(t *testing.T) {
	db, snap := setup(t)
	books, _ := snap.ClassByName("books")
	store := New(snap)

	ktxn := db.Begin(true)
	id, err := store.Create(ktxn, books.ID, codec.Record{0: codec.NewText("B")})
	require.NoError(t, err)
	require.NoError(t, ktxn.Commit())

	ktxn = db.Begin(false)
	defer ktxn.Rollback()
	got, err := store.Get(ktxn, id)
	require.NoError(t, err)
	_, hasPages := got.Properties[1]
	require.False(t, hasPages, "pages was never set and must not decode as a zero value")
}
