// Package graph implements NogDB's adjacency engine: the persistent
// mapping from a vertex to its incoming/outgoing edges, and from an edge
// to its source/destination vertex. It knows nothing
// about classes, conditions or records beyond their ids — cascading
// deletes and class/predicate filtering are orchestrated by pkg/txn,
// which is the only caller that also has the schema and record store in
// hand.
package graph

import (
	"encoding/json"
	"strconv"

	"github.com/nogdb/nogdb/pkg/kv"
	"github.com/nogdb/nogdb/pkg/nogdberr"
	"github.com/nogdb/nogdb/pkg/record"
)

const (
	tableAdjacency = "graph.adj"
	tableEndpoints = "graph.endpoints"
)

// adjacency is the on-disk shape of a vertex's adjacency entry.
type adjacency struct {
	In  []record.ID `json:"in"`
	Out []record.ID `json:"out"`
}

// endpoints is the on-disk shape of an edge's endpoint pair.
type endpoints struct {
	Src record.ID `json:"src"`
	Dst record.ID `json:"dst"`
}

func vertexKey(v record.ID) []byte {
	return []byte(strconv.FormatInt(int64(v.ClassID), 10) + "." + strconv.FormatInt(v.PositionalID, 10))
}

func edgeKey(e record.ID) []byte { return vertexKey(e) }

func getAdjacency(ktxn *kv.Txn, v record.ID) (adjacency, bool, error) {
	raw, ok, err := ktxn.Get(tableAdjacency, vertexKey(v))
	if err != nil || !ok {
		return adjacency{}, ok, err
	}
	var a adjacency
	if err := json.Unmarshal(raw, &a); err != nil {
		return adjacency{}, false, err
	}
	return a, true, nil
}

func putAdjacency(ktxn *kv.Txn, v record.ID, a adjacency) error {
	b, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return ktxn.Set(tableAdjacency, vertexKey(v), b)
}

// VertexExists reports whether v has a live adjacency entry.
func VertexExists(ktxn *kv.Txn, v record.ID) (bool, error) {
	_, ok, err := getAdjacency(ktxn, v)
	return ok, err
}

// CreateVertexEntry installs an empty adjacency entry for a newly
// created vertex.
func CreateVertexEntry(ktxn *kv.Txn, v record.ID) error {
	return putAdjacency(ktxn, v, adjacency{})
}

// RemoveVertexEntry deletes v's adjacency entry. The caller must have
// already removed every incident edge.
func RemoveVertexEntry(ktxn *kv.Txn, v record.ID) error {
	return ktxn.Delete(tableAdjacency, vertexKey(v))
}

// AddEdgeEntry records a new edge e from src to dst: both endpoints must
// already have adjacency entries (NOEXST_SRC / NOEXST_DST otherwise).
func AddEdgeEntry(ktxn *kv.Txn, e, src, dst record.ID) error {
	srcAdj, ok, err := getAdjacency(ktxn, src)
	if err != nil {
		return err
	}
	if !ok {
		return nogdberr.New(nogdberr.NoExistSrc, "source vertex %v does not exist", src)
	}
	dstAdj, ok, err := getAdjacency(ktxn, dst)
	if err != nil {
		return err
	}
	if !ok {
		return nogdberr.New(nogdberr.NoExistDst, "destination vertex %v does not exist", dst)
	}

	if err := ktxn.Set(tableEndpoints, edgeKey(e), mustJSON(endpoints{Src: src, Dst: dst})); err != nil {
		return err
	}
	srcAdj.Out = append(srcAdj.Out, e)
	if err := putAdjacency(ktxn, src, srcAdj); err != nil {
		return err
	}
	dstAdj.In = append(dstAdj.In, e)
	return putAdjacency(ktxn, dst, dstAdj)
}

// Endpoints returns the (src, dst) pair for e.
func Endpoints(ktxn *kv.Txn, e record.ID) (src, dst record.ID, err error) {
	raw, ok, err := ktxn.Get(tableEndpoints, edgeKey(e))
	if err != nil {
		return record.ID{}, record.ID{}, err
	}
	if !ok {
		return record.ID{}, record.ID{}, nogdberr.New(nogdberr.NoExistRecord, "edge %v has no endpoints", e)
	}
	var ep endpoints
	if err := json.Unmarshal(raw, &ep); err != nil {
		return record.ID{}, record.ID{}, err
	}
	return ep.Src, ep.Dst, nil
}

// RemoveEdgeEntry removes e from both endpoints' adjacency sets and
// deletes its endpoint record.
func RemoveEdgeEntry(ktxn *kv.Txn, e record.ID) error {
	src, dst, err := Endpoints(ktxn, e)
	if err != nil {
		return err
	}
	if srcAdj, ok, err := getAdjacency(ktxn, src); err != nil {
		return err
	} else if ok {
		srcAdj.Out = removeID(srcAdj.Out, e)
		if err := putAdjacency(ktxn, src, srcAdj); err != nil {
			return err
		}
	}
	if dstAdj, ok, err := getAdjacency(ktxn, dst); err != nil {
		return err
	} else if ok {
		dstAdj.In = removeID(dstAdj.In, e)
		if err := putAdjacency(ktxn, dst, dstAdj); err != nil {
			return err
		}
	}
	return ktxn.Delete(tableEndpoints, edgeKey(e))
}

// InEdges returns the ids of every edge incoming to v.
func InEdges(ktxn *kv.Txn, v record.ID) ([]record.ID, error) {
	a, ok, err := getAdjacency(ktxn, v)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nogdberr.New(nogdberr.NoExistVertex, "vertex %v does not exist", v)
	}
	return a.In, nil
}

// OutEdges returns the ids of every edge outgoing from v.
func OutEdges(ktxn *kv.Txn, v record.ID) ([]record.ID, error) {
	a, ok, err := getAdjacency(ktxn, v)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nogdberr.New(nogdberr.NoExistVertex, "vertex %v does not exist", v)
	}
	return a.Out, nil
}

// AllEdges returns the deduplicated union of v's incoming and outgoing
// edges.
func AllEdges(ktxn *kv.Txn, v record.ID) ([]record.ID, error) {
	a, ok, err := getAdjacency(ktxn, v)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nogdberr.New(nogdberr.NoExistVertex, "vertex %v does not exist", v)
	}
	seen := make(map[record.ID]bool, len(a.In)+len(a.Out))
	out := make([]record.ID, 0, len(a.In)+len(a.Out))
	for _, e := range a.In {
		if !seen[e] {
			seen[e] = true
			out = append(out, e)
		}
	}
	for _, e := range a.Out {
		if !seen[e] {
			seen[e] = true
			out = append(out, e)
		}
	}
	return out, nil
}

func removeID(ids []record.ID, target record.ID) []record.ID {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
