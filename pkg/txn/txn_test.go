package txn

import (
	"testing"

	"github.com/nogdb/nogdb/pkg/codec"
	"github.com/nogdb/nogdb/pkg/kv"
	"github.com/nogdb/nogdb/pkg/nogdberr"
	"github.com/nogdb/nogdb/pkg/record"
	"github.com/stretchr/testify/require"
)

func openManager(t *testing.T) *Manager {
	t.Helper()
	db, err := kv.Open(kv.Options{Dir: t.TempDir(), InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	m, err := Open(db)
	require.NoError(t, err)
	return m
}

func createSchema(t *testing.T, m *Manager) {
	t.Helper()
	tx := m.Begin(ReadWrite)
	_, err := tx.AddVertexClass("person", "")
	require.NoError(t, err)
	_, err = tx.AddProperty("person", "name", codec.Text)
	require.NoError(t, err)
	_, err = tx.AddProperty("person", "age", codec.Integer)
	require.NoError(t, err)
	_, err = tx.AddEdgeClass("knows", "")
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
}

func TestReadOnlyTxnRejectsWrites(t *testing.T) {
	m := openManager(t)
	createSchema(t, m)
	tx := m.Begin(ReadOnly)
	defer tx.Rollback()
	_, err := tx.CreateVertex("person", Props{"name": codec.NewText("A")})
	require.True(t, nogdberr.Is(err, nogdberr.TxnReadOnly))
}

func TestCompletedTxnRejectsFurtherUse(t *testing.T) {
	m := openManager(t)
	createSchema(t, m)
	tx := m.Begin(ReadWrite)
	require.NoError(t, tx.Commit())
	_, err := tx.CreateVertex("person", Props{"name": codec.NewText("A")})
	require.True(t, nogdberr.Is(err, nogdberr.TxnCompleted))
}

func TestCreateEdgeRequiresBothEndpoints(t *testing.T) {
	m := openManager(t)
	createSchema(t, m)
	tx := m.Begin(ReadWrite)
	defer tx.Rollback()

	v1, err := tx.CreateVertex("person", Props{"name": codec.NewText("A")})
	require.NoError(t, err)
	v2, err := tx.CreateVertex("person", Props{"name": codec.NewText("B")})
	require.NoError(t, err)
	e, err := tx.CreateEdge("knows", v1, v2, nil)
	require.NoError(t, err)

	out, err := tx.OutEdges(v1)
	require.NoError(t, err)
	require.Equal(t, []record.ID{e}, out)
}

func TestDestroyVertexCascadesToEdges(t *testing.T) {
	m := openManager(t)
	createSchema(t, m)
	tx := m.Begin(ReadWrite)
	defer tx.Rollback()

	v1, err := tx.CreateVertex("person", Props{"name": codec.NewText("A")})
	require.NoError(t, err)
	v2, err := tx.CreateVertex("person", Props{"name": codec.NewText("B")})
	require.NoError(t, err)
	e, err := tx.CreateEdge("knows", v1, v2, nil)
	require.NoError(t, err)

	require.NoError(t, tx.DestroyVertex(v1))

	_, err = tx.Get(e)
	require.Error(t, err)
	_, err = tx.Get(v2)
	require.NoError(t, err)
	in, err := tx.InEdges(v2)
	require.NoError(t, err)
	require.Empty(t, in)
}

func TestAddIndexRejectsExistingDuplicateThenEnforcesUniqueness(t *testing.T) {
	m := openManager(t)
	createSchema(t, m)

	tx := m.Begin(ReadWrite)
	_, err := tx.CreateVertex("person", Props{"name": codec.NewText("dup"), "age": mustInt(30)})
	require.NoError(t, err)
	_, err = tx.CreateVertex("person", Props{"name": codec.NewText("dup"), "age": mustInt(31)})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	tx = m.Begin(ReadWrite)
	_, err = tx.AddIndex("person", "name", true)
	require.Error(t, err)
	require.True(t, nogdberr.Is(err, nogdberr.UniqueConstraint))
	tx.Rollback()

	tx = m.Begin(ReadWrite)
	_, err = tx.AddIndex("person", "age", true)
	require.NoError(t, err)
	_, err = tx.CreateVertex("person", Props{"name": codec.NewText("third"), "age": mustInt(30)})
	require.Error(t, err)
	require.True(t, nogdberr.Is(err, nogdberr.UniqueConstraint))
	tx.Rollback()
}

func TestUpdateRetainsUntouchedPropertiesAndBumpsVersion(t *testing.T) {
	m := openManager(t)
	createSchema(t, m)
	tx := m.Begin(ReadWrite)
	defer tx.Rollback()

	id, err := tx.CreateVertex("person", Props{"name": codec.NewText("A"), "age": mustInt(1)})
	require.NoError(t, err)
	updated, err := tx.Update(id, Props{"age": mustInt(2)})
	require.NoError(t, err)
	require.Equal(t, uint64(2), updated.Version)

	got, err := tx.Get(id)
	require.NoError(t, err)
	name, _ := got.Properties[resolveID(t, tx, "person", "name")].Text()
	require.Equal(t, "A", name)
}

func mustInt(n int64) codec.Value {
	v, err := codec.NewInt(codec.Integer, n)
	if err != nil {
		panic(err)
	}
	return v
}

func resolveID(t *testing.T, tx *Txn, className, propName string) codec.PropertyID {
	t.Helper()
	c, ok := tx.Schema().ClassByName(className)
	require.True(t, ok)
	p, ok := tx.Schema().ResolveProperty(c.ID, propName)
	require.True(t, ok)
	return p.ID
}
