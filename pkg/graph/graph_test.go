package graph

import (
	"testing"

	"github.com/nogdb/nogdb/pkg/kv"
	"github.com/nogdb/nogdb/pkg/nogdberr"
	"github.com/nogdb/nogdb/pkg/record"
	"github.com/stretchr/testify/require"
)

func openDB(t *testing.T) *kv.DB {
	t.Helper()
	db, err := kv.Open(kv.Options{Dir: t.TempDir(), InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestAddEdgeRequiresBothEndpoints(t *testing.T) {
	db := openDB(t)
	ktxn := db.Begin(true)
	defer ktxn.Rollback()

	v1 := record.ID{ClassID: 0, PositionalID: 0}
	v2 := record.ID{ClassID: 0, PositionalID: 1}
	e := record.ID{ClassID: 1, PositionalID: 0}

	err := AddEdgeEntry(ktxn, e, v1, v2)
	require.Error(t, err)
	require.True(t, nogdberr.Is(err, nogdberr.NoExistSrc))

	require.NoError(t, CreateVertexEntry(ktxn, v1))
	err = AddEdgeEntry(ktxn, e, v1, v2)
	require.True(t, nogdberr.Is(err, nogdberr.NoExistDst))
}

func TestAddEdgeUpdatesBothAdjacencies(t *testing.T) {
	db := openDB(t)
	ktxn := db.Begin(true)
	defer ktxn.Rollback()

	v1 := record.ID{ClassID: 0, PositionalID: 0}
	v2 := record.ID{ClassID: 0, PositionalID: 1}
	e := record.ID{ClassID: 1, PositionalID: 0}
	require.NoError(t, CreateVertexEntry(ktxn, v1))
	require.NoError(t, CreateVertexEntry(ktxn, v2))
	require.NoError(t, AddEdgeEntry(ktxn, e, v1, v2))

	out, err := OutEdges(ktxn, v1)
	require.NoError(t, err)
	require.Equal(t, []record.ID{e}, out)

	in, err := InEdges(ktxn, v2)
	require.NoError(t, err)
	require.Equal(t, []record.ID{e}, in)

	src, dst, err := Endpoints(ktxn, e)
	require.NoError(t, err)
	require.Equal(t, v1, src)
	require.Equal(t, v2, dst)
}

func TestAddEdgeThenRemoveRestoresCleanState(t *testing.T) {
	db := openDB(t)
	ktxn := db.Begin(true)
	defer ktxn.Rollback()

	v1 := record.ID{ClassID: 0, PositionalID: 0}
	v2 := record.ID{ClassID: 0, PositionalID: 1}
	e := record.ID{ClassID: 1, PositionalID: 0}
	require.NoError(t, CreateVertexEntry(ktxn, v1))
	require.NoError(t, CreateVertexEntry(ktxn, v2))
	require.NoError(t, AddEdgeEntry(ktxn, e, v1, v2))
	require.NoError(t, RemoveEdgeEntry(ktxn, e))

	out, err := OutEdges(ktxn, v1)
	require.NoError(t, err)
	require.Empty(t, out)
	in, err := InEdges(ktxn, v2)
	require.NoError(t, err)
	require.Empty(t, in)

	_, _, err = Endpoints(ktxn, e)
	require.Error(t, err)
}

func TestAllEdgesDeduplicatesSelfLoop(t *testing.T) {
	db := openDB(t)
	ktxn := db.Begin(true)
	defer ktxn.Rollback()

	v1 := record.ID{ClassID: 0, PositionalID: 0}
	e := record.ID{ClassID: 1, PositionalID: 0}
	require.NoError(t, CreateVertexEntry(ktxn, v1))
	require.NoError(t, AddEdgeEntry(ktxn, e, v1, v1))

	all, err := AllEdges(ktxn, v1)
	require.NoError(t, err)
	require.Equal(t, []record.ID{e}, all)
}
