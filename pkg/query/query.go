// Package query implements NogDB's class scan and find surface: a
// builder over pkg/txn that walks a class and its subclasses in a
// pinned DFS order, evaluates a pkg/condition.Tree over each candidate,
// and optionally short-circuits an equality predicate through pkg/index
// instead of scanning.
package query

import (
	"github.com/nogdb/nogdb/pkg/codec"
	"github.com/nogdb/nogdb/pkg/condition"
	"github.com/nogdb/nogdb/pkg/nogdberr"
	"github.com/nogdb/nogdb/pkg/record"
	"github.com/nogdb/nogdb/pkg/schema"
	"github.com/nogdb/nogdb/pkg/txn"
)

// Query builds a class scan against a single open transaction.
type Query struct {
	t         *txn.Txn
	className string
	cond      condition.Tree
	useIndex  bool
	skip      int
	limit     int
	hasLimit  bool
}

// New starts a query over className (and every subclass of it).
func New(t *txn.Txn, className string) *Query {
	return &Query{t: t, className: className}
}

// Where restricts the scan to rows matching cond.
func (q *Query) Where(cond condition.Tree) *Query {
	q.cond = cond
	return q
}

// Indexed hints that, if Where's condition is a single equality Atom on
// an indexed property, it should be answered by an index lookup rather
// than a full scan. Any other shape of condition falls back to scanning.
func (q *Query) Indexed() *Query {
	q.useIndex = true
	return q
}

// Skip discards the first n matches.
func (q *Query) Skip(n int) *Query {
	q.skip = n
	return q
}

// Limit caps the number of matches returned.
func (q *Query) Limit(n int) *Query {
	q.limit = n
	q.hasLimit = true
	return q
}

// Row pairs a matched record's id with its name-keyed properties, ready
// for projection.
type Row struct {
	ID         record.ID
	ClassName  string
	Version    uint64
	Properties map[string]codec.Value
}

// Find executes the query and returns a bidirectional Cursor over the
// matching rows.
func (q *Query) Find() (*Cursor, error) {
	snap := q.t.Schema()
	class, ok := snap.ClassByName(q.className)
	if !ok {
		return nil, nogdberr.New(nogdberr.NoExistClass, "class %q not found", q.className)
	}

	if q.useIndex {
		if rows, ok, err := q.tryIndexLookup(class); err != nil {
			return nil, err
		} else if ok {
			return newCursor(applyWindow(rows, q.skip, q.limit, q.hasLimit)), nil
		}
	}

	classIDs := append([]schema.ClassID{class.ID}, snap.Descendants(class.ID)...)
	var matches []Row
	for _, cid := range classIDs {
		names := nameIndex(snap, cid)
		cname, _ := snap.ClassByID(cid)
		err := q.t.Scan(cid, func(id record.ID, s record.Stored) (bool, error) {
			row := toRow(id, cname.Name, s, names)
			if q.cond == nil || q.cond.Eval(toConditionRow(row)) {
				matches = append(matches, row)
			}
			return true, nil
		})
		if err != nil {
			return nil, err
		}
	}
	return newCursor(applyWindow(matches, q.skip, q.limit, q.hasLimit)), nil
}

// indexEligible reports whether Where's condition is exactly a single
// equality Atom over an indexed property of class, and if so the index
// and property it would be answered from.
func (q *Query) indexEligible(class *schema.Class) (*schema.Index, *schema.Property, bool) {
	atom, ok := q.cond.(condition.Atom)
	if !ok || atom.Operator != condition.Eq || len(atom.Args) != 1 || atom.IgnoreCase {
		return nil, nil, false
	}
	snap := q.t.Schema()
	prop, ok := snap.ResolveProperty(class.ID, atom.Column)
	if !ok {
		return nil, nil, false
	}
	idx, ok := snap.IndexFor(class.ID, prop.ID)
	if !ok {
		return nil, nil, false
	}
	return idx, prop, true
}

// Plan describes how Find would answer the query, without running it —
// the embedded SQL surface's EXPLAIN support reads this.
type Plan struct {
	ClassName     string
	Subclasses    []string
	UsesIndex     bool
	IndexProperty string
	UniqueIndex   bool
}

// Explain reports Find's execution strategy for the query as currently
// built.
func (q *Query) Explain() (Plan, error) {
	snap := q.t.Schema()
	class, ok := snap.ClassByName(q.className)
	if !ok {
		return Plan{}, nogdberr.New(nogdberr.NoExistClass, "class %q not found", q.className)
	}
	plan := Plan{ClassName: q.className}
	for _, cid := range snap.Descendants(class.ID) {
		if c, ok := snap.ClassByID(cid); ok {
			plan.Subclasses = append(plan.Subclasses, c.Name)
		}
	}
	if q.useIndex {
		if idx, prop, ok := q.indexEligible(class); ok {
			plan.UsesIndex = true
			plan.IndexProperty = prop.Name
			plan.UniqueIndex = idx.Unique
		}
	}
	return plan, nil
}

// tryIndexLookup answers the query directly from an index when Where's
// condition is exactly a single equality Atom over an indexed property.
// It returns ok=false (not an error) whenever the shape doesn't fit, so
// the caller falls back to a full scan.
func (q *Query) tryIndexLookup(class *schema.Class) ([]Row, bool, error) {
	idx, _, ok := q.indexEligible(class)
	if !ok {
		return nil, false, nil
	}
	atom := q.cond.(condition.Atom)
	snap := q.t.Schema()

	var ids []record.ID
	if idx.Unique {
		if rid, found, err := q.t.LookupUniqueEq(idx.ID, atom.Args[0]); err != nil {
			return nil, false, err
		} else if found {
			ids = append(ids, rid)
		}
	} else {
		found, err := q.t.LookupMultiEq(idx.ID, atom.Args[0])
		if err != nil {
			return nil, false, err
		}
		ids = found
	}

	rows := make([]Row, 0, len(ids))
	for _, id := range ids {
		s, err := q.t.Get(id)
		if err != nil {
			continue // concurrently removed between index lookup and fetch
		}
		cname, _ := snap.ClassByID(id.ClassID)
		rows = append(rows, toRow(id, cname.Name, s, nameIndex(snap, id.ClassID)))
	}
	return rows, true, nil
}

func nameIndex(snap *schema.Snapshot, classID schema.ClassID) map[codec.PropertyID]string {
	props := snap.AllProperties(classID)
	out := make(map[codec.PropertyID]string, len(props))
	for _, p := range props {
		out[p.ID] = p.Name
	}
	return out
}

func toRow(id record.ID, className string, s record.Stored, names map[codec.PropertyID]string) Row {
	props := make(map[string]codec.Value, len(s.Properties))
	for pid, v := range s.Properties {
		if name, ok := names[pid]; ok {
			props[name] = v
		}
	}
	return Row{ID: id, ClassName: className, Version: s.Version, Properties: props}
}

func toConditionRow(r Row) condition.Row {
	return condition.Row{ID: r.ID, ClassName: r.ClassName, Version: r.Version, Properties: r.Properties}
}

func applyWindow(rows []Row, skip, limit int, hasLimit bool) []Row {
	if skip > 0 {
		if skip >= len(rows) {
			return nil
		}
		rows = rows[skip:]
	}
	if hasLimit && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}
