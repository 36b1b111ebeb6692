package nogdb

import (
	"testing"

	"github.com/nogdb/nogdb/pkg/codec"
	"github.com/nogdb/nogdb/pkg/kv"
	"github.com/nogdb/nogdb/pkg/schema"
	"github.com/stretchr/testify/require"
)

func openCtx(t *testing.T) *Context {
	t.Helper()
	ctx, err := Open(kv.Options{Dir: t.TempDir(), InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctx.Close() })
	return ctx
}

func TestOpenAndBeginTxnRoundTrip(t *testing.T) {
	ctx := openCtx(t)

	tx := ctx.BeginTxn(ReadWrite)
	_, err := tx.AddVertexClass("person", "")
	require.NoError(t, err)
	_, err = tx.AddProperty("person", "name", codec.Text)
	require.NoError(t, err)
	id, err := tx.CreateVertex("person", nil)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	tx2 := ctx.BeginTxn(ReadOnly)
	defer tx2.Rollback()
	stored, err := tx2.Get(id)
	require.NoError(t, err)
	require.Equal(t, uint64(1), stored.Version)
}

func TestSQLFacadeExecutesStatements(t *testing.T) {
	ctx := openCtx(t)
	tx := ctx.BeginTxn(ReadWrite)
	defer tx.Rollback()

	_, err := tx.SQL(`CREATE CLASS person AS VERTEX`)
	require.NoError(t, err)
	_, err = tx.SQL(`CREATE PROPERTY person.name TYPE TEXT`)
	require.NoError(t, err)
	_, err = tx.SQL(`CREATE VERTEX person SET name = 'Ann'`)
	require.NoError(t, err)

	res, err := tx.SQL(`SELECT * FROM person`)
	require.NoError(t, err)
	require.Equal(t, 1, res.Cursor.Size())
}

func TestSchemaDumpAndRestoreRoundTrip(t *testing.T) {
	ctx := openCtx(t)
	tx := ctx.BeginTxn(ReadWrite)

	_, err := tx.SQL(`CREATE CLASS person AS VERTEX`)
	require.NoError(t, err)
	_, err = tx.SQL(`CREATE PROPERTY person.email TYPE TEXT`)
	require.NoError(t, err)
	_, err = tx.SQL(`CREATE INDEX ON person(email) UNIQUE`)
	require.NoError(t, err)

	data, err := tx.DumpSchemaYAML()
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	ctx2 := openCtx(t)
	tx2 := ctx2.BeginTxn(ReadWrite)
	defer tx2.Rollback()
	require.NoError(t, tx2.RestoreSchemaYAML(data))

	_, ok := tx2.Schema().ClassByName("person")
	require.True(t, ok)
	prop, ok := tx2.Schema().ResolveProperty(mustClassID(t, tx2, "person"), "email")
	require.True(t, ok)
	idx, ok := tx2.Schema().IndexFor(mustClassID(t, tx2, "person"), prop.ID)
	require.True(t, ok)
	require.True(t, idx.Unique)
}

func mustClassID(t *testing.T, tx *Transaction, name string) schema.ClassID {
	t.Helper()
	c, ok := tx.Schema().ClassByName(name)
	require.True(t, ok)
	return c.ID
}
