package sqllang

import (
	"strconv"

	"github.com/nogdb/nogdb/pkg/codec"
	"github.com/nogdb/nogdb/pkg/condition"
	"github.com/nogdb/nogdb/pkg/nogdberr"
	"github.com/nogdb/nogdb/pkg/query"
	"github.com/nogdb/nogdb/pkg/record"
	"github.com/nogdb/nogdb/pkg/schema"
	"github.com/nogdb/nogdb/pkg/traverse"
	"github.com/nogdb/nogdb/pkg/txn"
)

// Result is whatever executing a Stmt produces: a cursor for SELECT, a
// count of affected records for mutations, nothing for DDL, or a Plan
// for EXPLAIN.
type Result struct {
	Cursor   *query.Cursor
	Affected int
	Path     []record.ID
	Plan     *query.Plan
}

// Exec parses and runs a single statement against an open transaction.
func Exec(t *txn.Txn, src string) (Result, error) {
	stmt, err := Parse(src)
	if err != nil {
		return Result{}, err
	}
	return Run(t, stmt)
}

// Run executes an already-parsed statement.
func Run(t *txn.Txn, stmt Stmt) (Result, error) {
	switch s := stmt.(type) {
	case CreateClassStmt:
		var err error
		if s.Tag == "EDGE" {
			_, err = t.AddEdgeClass(s.Name, s.Parent)
		} else {
			_, err = t.AddVertexClass(s.Name, s.Parent)
		}
		return Result{}, err

	case DropClassStmt:
		return Result{}, t.DropClass(s.Name)

	case AlterClassStmt:
		return Result{}, t.RenameClass(s.Name, s.NewName)

	case CreatePropertyStmt:
		typ, ok := codec.ParseType(s.Type)
		if !ok {
			return Result{}, nogdberr.New(nogdberr.InvalidPropTypeIndex, "unrecognized property type %q", s.Type)
		}
		_, err := t.AddProperty(s.Class, s.Property, typ)
		return Result{}, err

	case DropPropertyStmt:
		return Result{}, t.DropProperty(s.Class, s.Property)

	case AlterPropertyStmt:
		return Result{}, t.RenameProperty(s.Class, s.Property, s.NewName)

	case CreateIndexStmt:
		_, err := t.AddIndex(s.Class, s.Property, s.Unique)
		return Result{}, err

	case DropIndexStmt:
		return Result{}, t.DropIndex(s.Class, s.Property)

	case CreateVertexStmt:
		id, err := t.CreateVertex(s.Class, toProps(s.Set))
		if err != nil {
			return Result{}, err
		}
		return Result{Affected: 1, Path: []record.ID{id}}, nil

	case CreateEdgeStmt:
		src, err := parseRecordID(s.From)
		if err != nil {
			return Result{}, err
		}
		dst, err := parseRecordID(s.To)
		if err != nil {
			return Result{}, err
		}
		id, err := t.CreateEdge(s.Class, src, dst, toProps(s.Set))
		if err != nil {
			return Result{}, err
		}
		return Result{Affected: 1, Path: []record.ID{id}}, nil

	case SelectStmt:
		q := query.New(t, s.Class).Indexed()
		if s.Where != nil {
			q = q.Where(s.Where)
		}
		if s.HasSkip {
			q = q.Skip(s.Skip)
		}
		if s.HasLimit {
			q = q.Limit(s.Limit)
		}
		cur, err := q.Find()
		if err != nil {
			return Result{}, err
		}
		switch {
		case s.CountOnly:
			return Result{Cursor: countCursor(cur.Size())}, nil
		case len(s.Projection) > 0:
			return Result{Cursor: projectionCursor(cur, s.Projection), Affected: cur.Size()}, nil
		default:
			return Result{Cursor: cur, Affected: cur.Size()}, nil
		}

	case UpdateStmt:
		return runUpdate(t, s)

	case DeleteVertexStmt:
		return runDeleteVertex(t, s)

	case DeleteEdgeStmt:
		return runDeleteEdge(t, s)

	case TraverseStmt:
		return runTraverse(t, s)

	case ExplainStmt:
		return runExplain(t, s)

	default:
		return Result{}, nogdberr.New(nogdberr.SQLSyntaxError, "unsupported statement")
	}
}

// projectedClassID marks a synthetic SELECT result row — a COUNT(*) or
// column-projection row that isn't a real record — distinguishing it
// from schema.NoClass and from any real class id.
const projectedClassID = schema.ClassID(-2)

// countCursor builds the single synthetic row a SELECT COUNT(*) returns.
func countCursor(n int) *query.Cursor {
	v, _ := codec.NewInt(codec.BigInt, int64(n))
	row := query.Row{
		ID:         record.ID{ClassID: projectedClassID, PositionalID: 0},
		Properties: map[string]codec.Value{"count": v},
	}
	return query.NewCursor([]query.Row{row})
}

// projectionCursor narrows cur's rows down to cols, returning one
// synthetic row per source row.
func projectionCursor(cur *query.Cursor, cols []string) *query.Cursor {
	rows := cur.All()
	out := make([]query.Row, len(rows))
	for i, r := range rows {
		props := make(map[string]codec.Value, len(cols))
		for _, col := range cols {
			if v, ok := resolveProjectionColumn(r, col); ok {
				props[col] = v
			}
		}
		out[i] = query.Row{
			ID:        record.ID{ClassID: projectedClassID, PositionalID: int64(i)},
			ClassName: r.ClassName,
			Properties: props,
		}
	}
	return query.NewCursor(out)
}

func resolveProjectionColumn(r query.Row, col string) (codec.Value, bool) {
	switch col {
	case condition.ColRecordID:
		return codec.NewText(r.ID.String()), true
	case condition.ColClassName:
		return codec.NewText(r.ClassName), true
	case condition.ColVersion:
		v, _ := codec.NewInt(codec.BigInt, int64(r.Version))
		return v, true
	default:
		v, ok := r.Properties[col]
		return v, ok
	}
}

func toProps(set map[string]any) txn.Props {
	if set == nil {
		return nil
	}
	out := make(txn.Props, len(set))
	for k, v := range set {
		out[k] = toValue(v)
	}
	return out
}

// decodeRecordID parses NogDB's "#classId:positionalId" record id
// notation (record.ID.String()'s own format).
func decodeRecordID(lit string) (record.ID, error) {
	if len(lit) == 0 || lit[0] != '#' {
		return record.ID{}, nogdberr.New(nogdberr.SQLSyntaxError, "invalid record id %q", lit)
	}
	body := lit[1:]
	sep := -1
	for i, r := range body {
		if r == ':' {
			sep = i
			break
		}
	}
	if sep < 0 {
		return record.ID{}, nogdberr.New(nogdberr.SQLSyntaxError, "invalid record id %q", lit)
	}
	classID, err := parseInt64(body[:sep])
	if err != nil {
		return record.ID{}, nogdberr.New(nogdberr.SQLSyntaxError, "invalid record id %q", lit)
	}
	posID, err := parseInt64(body[sep+1:])
	if err != nil {
		return record.ID{}, nogdberr.New(nogdberr.SQLSyntaxError, "invalid record id %q", lit)
	}
	return record.ID{ClassID: schema.ClassID(classID), PositionalID: posID}, nil
}

func parseInt64(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) }

func parseRecordID(lit string) (record.ID, error) { return decodeRecordID(lit) }

func runUpdate(t *txn.Txn, s UpdateStmt) (Result, error) {
	matches, err := matchingIDs(t, s.Class, s.Where)
	if err != nil {
		return Result{}, err
	}
	props := toProps(s.Set)
	for _, id := range matches {
		if _, err := t.Update(id, props); err != nil {
			return Result{}, err
		}
	}
	return Result{Affected: len(matches)}, nil
}

func runDeleteVertex(t *txn.Txn, s DeleteVertexStmt) (Result, error) {
	matches, err := matchingIDs(t, s.Class, s.Where)
	if err != nil {
		return Result{}, err
	}
	for _, id := range matches {
		if err := t.DestroyVertex(id); err != nil {
			return Result{}, err
		}
	}
	return Result{Affected: len(matches)}, nil
}

func runDeleteEdge(t *txn.Txn, s DeleteEdgeStmt) (Result, error) {
	matches, err := matchingIDs(t, s.Class, s.Where)
	if err != nil {
		return Result{}, err
	}
	for _, id := range matches {
		if err := t.DestroyEdge(id); err != nil {
			return Result{}, err
		}
	}
	return Result{Affected: len(matches)}, nil
}

func matchingIDs(t *txn.Txn, className string, where condition.Tree) ([]record.ID, error) {
	q := query.New(t, className).Indexed()
	if where != nil {
		q = q.Where(where)
	}
	cur, err := q.Find()
	if err != nil {
		return nil, err
	}
	rows := cur.All()
	ids := make([]record.ID, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	return ids, nil
}

// runExplain reports the scan/index strategy a class-scan statement
// would use, without running it.
func runExplain(t *txn.Txn, s ExplainStmt) (Result, error) {
	var className string
	var where condition.Tree
	switch inner := s.Inner.(type) {
	case SelectStmt:
		className, where = inner.Class, inner.Where
	case UpdateStmt:
		className, where = inner.Class, inner.Where
	case DeleteVertexStmt:
		className, where = inner.Class, inner.Where
	case DeleteEdgeStmt:
		className, where = inner.Class, inner.Where
	default:
		return Result{}, nogdberr.New(nogdberr.SQLSyntaxError, "EXPLAIN does not support this statement")
	}
	q := query.New(t, className).Indexed()
	if where != nil {
		q = q.Where(where)
	}
	plan, err := q.Explain()
	if err != nil {
		return Result{}, err
	}
	return Result{Plan: &plan}, nil
}

func runTraverse(t *txn.Txn, s TraverseStmt) (Result, error) {
	starts := make([]record.ID, len(s.From))
	for i, lit := range s.From {
		id, err := decodeRecordID(lit)
		if err != nil {
			return Result{}, err
		}
		starts[i] = id
	}
	dir := traverse.Out
	switch s.Direction {
	case "IN":
		dir = traverse.In
	case "ALL":
		dir = traverse.All
	}
	opts := traverse.Options{Direction: dir, EdgeClass: s.Class}
	if s.HasMin {
		opts.MinDepth = s.MinDepth
	}
	if s.HasMax {
		opts.MaxDepth, opts.HasMaxDepth = s.MaxDepth, true
	}
	walkFn := traverse.BFS
	if s.Strategy == "DEPTH_FIRST" {
		walkFn = traverse.DFS
	}

	seen := make(map[record.ID]bool)
	var path []record.ID
	for _, start := range starts {
		visited, err := walkFn(t, start, opts)
		if err != nil {
			return Result{}, err
		}
		for _, id := range visited {
			if seen[id] {
				continue
			}
			seen[id] = true
			path = append(path, id)
		}
	}
	return Result{Path: path, Affected: len(path)}, nil
}
