// Package traverse implements NogDB's graph traversal engine: BFS/DFS
// walks with a direction, a depth window, an edge-class filter and
// vertex/edge predicate filters, plus Dijkstra shortest path over a
// caller-supplied edge cost function.
package traverse

import (
	"container/heap"

	"github.com/nogdb/nogdb/pkg/codec"
	"github.com/nogdb/nogdb/pkg/condition"
	"github.com/nogdb/nogdb/pkg/nogdberr"
	"github.com/nogdb/nogdb/pkg/record"
	"github.com/nogdb/nogdb/pkg/schema"
	"github.com/nogdb/nogdb/pkg/txn"
)

// Direction selects which adjacency a walk follows.
type Direction int

const (
	Out Direction = iota
	In
	All
)

// Options configures a single BFS/DFS walk.
type Options struct {
	Direction Direction
	MinDepth  int
	MaxDepth  int
	HasMaxDepth bool

	// EdgeClass, if non-empty, restricts the walk to edges belonging to
	// (or descending from) this class. Resolving it against an unknown
	// class, or a class that isn't tagged Edge, fails up front.
	EdgeClass string

	VertexCond condition.Tree
	EdgeCond   condition.Tree
}

// resolveEdgeClass validates opts.EdgeClass against the schema once, up
// front, and returns the set of concrete class ids an edge must belong
// to in order to pass (itself plus every descendant). A zero-value,
// absent return means no class filter is in effect.
func resolveEdgeClass(t *txn.Txn, className string) (map[schema.ClassID]bool, error) {
	if className == "" {
		return nil, nil
	}
	snap := t.Schema()
	c, ok := snap.ClassByName(className)
	if !ok {
		return nil, nogdberr.New(nogdberr.NoExistClass, "class %q not found", className)
	}
	if c.Tag != schema.Edge {
		return nil, nogdberr.New(nogdberr.MismatchClassType, "class %q is not an edge class", className)
	}
	allowed := map[schema.ClassID]bool{c.ID: true}
	for _, id := range snap.Descendants(c.ID) {
		allowed[id] = true
	}
	return allowed, nil
}

func edgesFor(t *txn.Txn, dir Direction, v record.ID) ([]record.ID, error) {
	switch dir {
	case In:
		return t.InEdges(v)
	case All:
		return t.AllEdges(v)
	default:
		return t.OutEdges(v)
	}
}

// step follows e from "from" and reports the vertex on its other end,
// honoring dir (an Out walk only follows e forward, an In walk only
// backward, an All walk follows either way).
func step(t *txn.Txn, dir Direction, from, e record.ID) (record.ID, bool, error) {
	src, dst, err := t.Endpoints(e)
	if err != nil {
		return record.ID{}, false, err
	}
	switch dir {
	case Out:
		if src == from {
			return dst, true, nil
		}
	case In:
		if dst == from {
			return src, true, nil
		}
	default:
		if src == from {
			return dst, true, nil
		}
		if dst == from {
			return src, true, nil
		}
	}
	return record.ID{}, false, nil
}

func asRow(t *txn.Txn, id record.ID) (condition.Row, error) {
	s, err := t.Get(id)
	if err != nil {
		return condition.Row{}, err
	}
	cls, _ := t.Schema().ClassByID(id.ClassID)
	className := ""
	if cls != nil {
		className = cls.Name
	}
	names := make(map[codec.PropertyID]string)
	for _, p := range t.Schema().AllProperties(id.ClassID) {
		names[p.ID] = p.Name
	}
	props := make(map[string]codec.Value, len(s.Properties))
	for pid, v := range s.Properties {
		if name, ok := names[pid]; ok {
			props[name] = v
		}
	}
	return condition.Row{ID: id, ClassName: className, Version: s.Version, Properties: props}, nil
}

func vertexPasses(t *txn.Txn, cond condition.Tree, v record.ID) (bool, error) {
	if cond == nil {
		return true, nil
	}
	row, err := asRow(t, v)
	if err != nil {
		return false, err
	}
	return cond.Eval(row), nil
}

func edgePasses(t *txn.Txn, cond condition.Tree, e record.ID) (bool, error) {
	if cond == nil {
		return true, nil
	}
	row, err := asRow(t, e)
	if err != nil {
		return false, err
	}
	return cond.Eval(row), nil
}

// classAllows reports whether e belongs to one of allowed's classes; a
// nil allowed set means no class filter is in effect.
func classAllows(allowed map[schema.ClassID]bool, e record.ID) bool {
	if allowed == nil {
		return true
	}
	return allowed[e.ClassID]
}

// frontierEntry is one vertex discovered during a walk, together with
// the depth it was discovered at.
type frontierEntry struct {
	vertex record.ID
	depth  int
}

func withinWindow(opts Options, depth int) bool {
	if depth < opts.MinDepth {
		return false
	}
	if opts.HasMaxDepth && depth > opts.MaxDepth {
		return false
	}
	return true
}

func exceedsWindow(opts Options, depth int) bool {
	return opts.HasMaxDepth && depth > opts.MaxDepth
}

// BFS walks out from start in breadth-first order, returning every
// visited vertex within the depth window and passing both filters.
func BFS(t *txn.Txn, start record.ID, opts Options) ([]record.ID, error) {
	return walk(t, start, opts, true)
}

// DFS walks out from start in depth-first order.
func DFS(t *txn.Txn, start record.ID, opts Options) ([]record.ID, error) {
	return walk(t, start, opts, false)
}

func walk(t *txn.Txn, start record.ID, opts Options, breadthFirst bool) ([]record.ID, error) {
	allowedEdgeClass, err := resolveEdgeClass(t, opts.EdgeClass)
	if err != nil {
		return nil, err
	}

	visited := map[record.ID]bool{start: true}
	var result []record.ID
	queue := []frontierEntry{{vertex: start, depth: 0}}

	for len(queue) > 0 {
		var cur frontierEntry
		if breadthFirst {
			cur, queue = queue[0], queue[1:]
		} else {
			cur, queue = queue[len(queue)-1], queue[:len(queue)-1]
		}

		if withinWindow(opts, cur.depth) {
			ok, err := vertexPasses(t, opts.VertexCond, cur.vertex)
			if err != nil {
				return nil, err
			}
			if ok {
				result = append(result, cur.vertex)
			}
		}
		if exceedsWindow(opts, cur.depth) {
			continue
		}

		edges, err := edgesFor(t, opts.Direction, cur.vertex)
		if err != nil {
			return nil, err
		}
		for _, e := range edges {
			if !classAllows(allowedEdgeClass, e) {
				continue
			}
			ok, err := edgePasses(t, opts.EdgeCond, e)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			next, moved, err := step(t, opts.Direction, cur.vertex, e)
			if err != nil {
				return nil, err
			}
			if !moved || visited[next] {
				continue
			}
			// The vertex filter is evaluated at discovery, not just at
			// emission: a neighbour Fv rejects is skipped without being
			// marked visited or enqueued, so a different (possibly
			// longer) path may still reach it and pass Fv there.
			passes, err := vertexPasses(t, opts.VertexCond, next)
			if err != nil {
				return nil, err
			}
			if !passes {
				continue
			}
			visited[next] = true
			queue = append(queue, frontierEntry{vertex: next, depth: cur.depth + 1})
		}
	}
	return result, nil
}

// CostFunc assigns a non-negative cost to traversing edge e from src to
// dst; the caller is free to read edge/vertex properties to compute it.
type CostFunc func(e, src, dst record.ID) (float64, error)

// ShortestPath runs Dijkstra's algorithm from start to goal over dir,
// returning the path (inclusive of both ends) and its total cost.
// edgeCond and vertexCond, when non-nil, restrict which edges/vertices
// the search may relax through: a rejected edge or vertex is never
// relaxed, so the returned cost is the minimum achievable under the
// filters, not the minimum overall. An unknown start or goal fails with
// NOEXST_SRC/NOEXST_DST respectively. ok is false if goal is
// unreachable under the filters.
func ShortestPath(t *txn.Txn, start, goal record.ID, dir Direction, cost CostFunc, edgeCond, vertexCond condition.Tree) (path []record.ID, total float64, ok bool, err error) {
	if _, getErr := t.Get(start); getErr != nil {
		return nil, 0, false, nogdberr.Wrap(nogdberr.NoExistSrc, getErr, "start vertex %s not found", start)
	}
	if _, getErr := t.Get(goal); getErr != nil {
		return nil, 0, false, nogdberr.Wrap(nogdberr.NoExistDst, getErr, "goal vertex %s not found", goal)
	}
	if start == goal {
		return []record.ID{start}, 0, true, nil
	}

	dist := map[record.ID]float64{start: 0}
	parent := map[record.ID]record.ID{}
	visited := map[record.ID]bool{}

	pq := &priorityQueue{{vertex: start, dist: 0}}
	heap.Init(pq)

	for pq.Len() > 0 {
		cur := heap.Pop(pq).(pqItem)
		if visited[cur.vertex] {
			continue
		}
		visited[cur.vertex] = true
		if cur.vertex == goal {
			break
		}

		edges, err := edgesFor(t, dir, cur.vertex)
		if err != nil {
			return nil, 0, false, err
		}
		for _, e := range edges {
			passes, err := edgePasses(t, edgeCond, e)
			if err != nil {
				return nil, 0, false, err
			}
			if !passes {
				continue
			}
			next, moved, err := step(t, dir, cur.vertex, e)
			if err != nil {
				return nil, 0, false, err
			}
			if !moved || visited[next] {
				continue
			}
			// next == goal is never rejected by vertexCond: the
			// destination itself is the thing being searched for, only
			// intermediate vertices are subject to the filter.
			if next != goal {
				passes, err := vertexPasses(t, vertexCond, next)
				if err != nil {
					return nil, 0, false, err
				}
				if !passes {
					continue
				}
			}
			src, dst := cur.vertex, next
			w, err := cost(e, src, dst)
			if err != nil {
				return nil, 0, false, err
			}
			nd := dist[cur.vertex] + w
			if existing, ok := dist[next]; !ok || nd < existing {
				dist[next] = nd
				parent[next] = cur.vertex
				heap.Push(pq, pqItem{vertex: next, dist: nd})
			}
		}
	}

	if _, reached := dist[goal]; !reached {
		return nil, 0, false, nil
	}
	for v := goal; ; {
		path = append([]record.ID{v}, path...)
		if v == start {
			break
		}
		v = parent[v]
	}
	return path, dist[goal], true, nil
}

type pqItem struct {
	vertex record.ID
	dist   float64
}

type priorityQueue []pqItem

func (pq priorityQueue) Len() int            { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool  { return pq[i].dist < pq[j].dist }
func (pq priorityQueue) Swap(i, j int)       { pq[i], pq[j] = pq[j], pq[i] }
func (pq *priorityQueue) Push(x interface{}) { *pq = append(*pq, x.(pqItem)) }
func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}
