// Package txn implements NogDB's transaction manager: it owns the single
// writer slot over the backing store and orchestrates every
// cross-package mutation — schema DDL, record CRUD, adjacency upkeep and
// index maintenance — as one atomic unit of work. Schema/record/graph/
// index stay ignorant of each other; this package is the only one that
// holds all four at once, exactly as pkg/graph and pkg/schema's doc
// comments anticipate.
package txn

import (
	"github.com/nogdb/nogdb/pkg/codec"
	"github.com/nogdb/nogdb/pkg/graph"
	"github.com/nogdb/nogdb/pkg/index"
	"github.com/nogdb/nogdb/pkg/kv"
	"github.com/nogdb/nogdb/pkg/nogdberr"
	"github.com/nogdb/nogdb/pkg/record"
	"github.com/nogdb/nogdb/pkg/schema"
)

// Mode selects whether a transaction may mutate the database.
type Mode int

const (
	ReadOnly Mode = iota
	ReadWrite
)

// Manager binds a backing store to the schema catalog and hands out
// transactions against both.
type Manager struct {
	db      *kv.DB
	catalog *schema.Catalog
}

// Open loads (or initializes) the schema catalog from db and returns a
// ready Manager.
func Open(db *kv.DB) (*Manager, error) {
	ktxn := db.Begin(false)
	defer ktxn.Rollback()
	snap, err := schema.Load(ktxn)
	if err != nil {
		return nil, err
	}
	return &Manager{db: db, catalog: schema.NewCatalog(snap)}, nil
}

// Begin starts a transaction in the given mode. A ReadOnly transaction
// sees a consistent snapshot of the last committed schema and data; a
// ReadWrite transaction acquires the single writer slot and works
// against a private clone of the schema that only becomes visible to
// new transactions on Commit.
func (m *Manager) Begin(mode Mode) *Txn {
	writable := mode == ReadWrite
	snap := m.catalog.Current()
	if writable {
		snap = snap.Clone()
	}
	return &Txn{
		manager: m,
		ktxn:    m.db.Begin(writable),
		mode:    mode,
		snap:    snap,
		store:   record.New(snap),
	}
}

// Txn is a single unit of work against the database.
type Txn struct {
	manager   *Manager
	ktxn      *kv.Txn
	mode      Mode
	snap      *schema.Snapshot
	store     *record.Store
	completed bool
}

// Schema exposes the transaction's read-through schema snapshot for
// callers (pkg/query, pkg/sqllang) that only need to read the catalog.
func (t *Txn) Schema() *schema.Snapshot { return t.snap }

// Mode reports whether this transaction is read-only or read-write.
func (t *Txn) Mode() Mode { return t.mode }

func (t *Txn) requireOpen() error {
	if t.completed {
		return nogdberr.New(nogdberr.TxnCompleted, "transaction already completed")
	}
	return nil
}

func (t *Txn) requireWritable() error {
	if err := t.requireOpen(); err != nil {
		return err
	}
	if t.mode != ReadWrite {
		return nogdberr.New(nogdberr.TxnReadOnly, "transaction is read-only")
	}
	return nil
}

// Commit persists every buffered write and, for a read-write
// transaction, publishes its schema snapshot so subsequent transactions
// observe it.
func (t *Txn) Commit() error {
	if err := t.requireOpen(); err != nil {
		return err
	}
	if err := t.ktxn.Commit(); err != nil {
		return err
	}
	t.completed = true
	if t.mode == ReadWrite {
		t.manager.catalog.Swap(t.snap)
	}
	return nil
}

// Rollback discards every buffered write.
func (t *Txn) Rollback() {
	if t.completed {
		return
	}
	t.ktxn.Rollback()
	t.completed = true
}

// Props is a user-facing property set keyed by name, the shape callers
// (pkg/sqllang, pkg/nogdb) build before handing a write to a Txn.
type Props map[string]codec.Value

func (t *Txn) resolveProps(classID schema.ClassID, props Props) (codec.Record, error) {
	out := make(codec.Record, len(props))
	for name, v := range props {
		p, ok := t.snap.ResolveProperty(classID, name)
		if !ok {
			return nil, nogdberr.New(nogdberr.NoExistProperty, "property %q not declared on this class", name)
		}
		cast, err := codec.CastTo(v, p.Type)
		if err != nil {
			return nil, err
		}
		out[p.ID] = cast
	}
	return out, nil
}

// AddVertexClass declares a new vertex class, optionally inheriting from
// parentName ("" for a root class).
func (t *Txn) AddVertexClass(name, parentName string) (*schema.Class, error) {
	return t.addClass(name, schema.Vertex, parentName)
}

// AddEdgeClass declares a new edge class, optionally inheriting from
// parentName ("" for a root class).
func (t *Txn) AddEdgeClass(name, parentName string) (*schema.Class, error) {
	return t.addClass(name, schema.Edge, parentName)
}

func (t *Txn) addClass(name string, tag schema.Tag, parentName string) (*schema.Class, error) {
	if err := t.requireWritable(); err != nil {
		return nil, err
	}
	parentID := schema.NoClass
	if parentName != "" {
		parent, ok := t.snap.ClassByName(parentName)
		if !ok {
			return nil, nogdberr.New(nogdberr.NoExistClass, "parent class %q not found", parentName)
		}
		parentID = parent.ID
	}
	return t.snap.AddClass(t.ktxn, name, tag, parentID)
}

// DropClass removes a class definition and every record stored under it.
func (t *Txn) DropClass(name string) error {
	if err := t.requireWritable(); err != nil {
		return err
	}
	c, ok := t.snap.ClassByName(name)
	if !ok {
		return nogdberr.New(nogdberr.NoExistClass, "class %q not found", name)
	}
	var ids []record.ID
	if err := t.store.Scan(t.ktxn, c.ID, func(id record.ID, _ record.Stored) (bool, error) {
		ids = append(ids, id)
		return true, nil
	}); err != nil {
		return err
	}
	for _, id := range ids {
		if c.Tag == schema.Edge {
			if err := t.destroyEdge(id); err != nil {
				return err
			}
		} else if err := t.destroyVertex(id); err != nil {
			return err
		}
	}
	return t.snap.DropClass(t.ktxn, name)
}

// RenameClass renames an existing class.
func (t *Txn) RenameClass(oldName, newName string) error {
	if err := t.requireWritable(); err != nil {
		return err
	}
	return t.snap.RenameClass(t.ktxn, oldName, newName)
}

// AddProperty declares propName with type typ on className.
func (t *Txn) AddProperty(className, propName string, typ codec.Type) (*schema.Property, error) {
	if err := t.requireWritable(); err != nil {
		return nil, err
	}
	return t.snap.AddProperty(t.ktxn, className, propName, typ)
}

// DropProperty removes propName from className.
func (t *Txn) DropProperty(className, propName string) error {
	if err := t.requireWritable(); err != nil {
		return err
	}
	return t.snap.DropProperty(t.ktxn, className, propName)
}

// RenameProperty renames a property declared directly on className.
func (t *Txn) RenameProperty(className, oldName, newName string) error {
	if err := t.requireWritable(); err != nil {
		return err
	}
	return t.snap.RenameProperty(t.ktxn, className, oldName, newName)
}

// AddIndex declares a new index on className.propName. If unique is set
// and the class already holds records, every existing value is scanned
// for a collision before the index is published, and every existing
// record (including those of subclasses, which inherit visibility to
// the new index) is backfilled into it.
func (t *Txn) AddIndex(className, propName string, unique bool) (*schema.Index, error) {
	if err := t.requireWritable(); err != nil {
		return nil, err
	}
	c, ok := t.snap.ClassByName(className)
	if !ok {
		return nil, nogdberr.New(nogdberr.NoExistClass, "class %q not found", className)
	}
	p, ok := t.snap.ResolveProperty(c.ID, propName)
	if !ok {
		return nil, nogdberr.New(nogdberr.NoExistProperty, "property %q not found on %q", propName, className)
	}
	affected := append([]schema.ClassID{c.ID}, t.snap.Descendants(c.ID)...)
	if unique {
		for _, cid := range affected {
			a, b, found, err := index.ScanForUniqueViolation(t.ktxn, t.store, cid, p.ID)
			if err != nil {
				return nil, err
			}
			if found {
				return nil, nogdberr.New(nogdberr.UniqueConstraint, "records %v and %v already share a value for %q", a, b, propName)
			}
		}
	}
	idx, err := t.snap.AddIndex(t.ktxn, className, propName, unique)
	if err != nil {
		return nil, err
	}
	for _, cid := range affected {
		if err := t.store.Scan(t.ktxn, cid, func(id record.ID, s record.Stored) (bool, error) {
			return true, index.OnCreate(t.ktxn, t.snap, cid, id, s.Properties)
		}); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

// DropIndex removes the index on className.propName along with every
// entry physically stored under it.
func (t *Txn) DropIndex(className, propName string) error {
	if err := t.requireWritable(); err != nil {
		return err
	}
	c, ok := t.snap.ClassByName(className)
	if !ok {
		return nogdberr.New(nogdberr.NoExistClass, "class %q not found", className)
	}
	p, ok := t.snap.ResolveProperty(c.ID, propName)
	if !ok {
		return nogdberr.New(nogdberr.NoExistProperty, "property %q not found on %q", propName, className)
	}
	idx, ok := t.snap.IndexFor(c.ID, p.ID)
	if !ok {
		return nogdberr.New(nogdberr.NoExistIndex, "no index on %s.%s", className, propName)
	}
	if err := t.snap.DropIndex(t.ktxn, className, propName); err != nil {
		return err
	}
	return index.DropIndexData(t.ktxn, idx.ID)
}

// CreateVertex inserts a new vertex of className with the given
// properties.
func (t *Txn) CreateVertex(className string, props Props) (record.ID, error) {
	if err := t.requireWritable(); err != nil {
		return record.ID{}, err
	}
	c, ok := t.snap.ClassByName(className)
	if !ok {
		return record.ID{}, nogdberr.New(nogdberr.NoExistClass, "class %q not found", className)
	}
	if c.Tag != schema.Vertex {
		return record.ID{}, nogdberr.New(nogdberr.MismatchClassType, "%q is not a vertex class", className)
	}
	rec, err := t.resolveProps(c.ID, props)
	if err != nil {
		return record.ID{}, err
	}
	id, err := t.store.Create(t.ktxn, c.ID, rec)
	if err != nil {
		return record.ID{}, err
	}
	if err := graph.CreateVertexEntry(t.ktxn, id); err != nil {
		return record.ID{}, err
	}
	if err := index.OnCreate(t.ktxn, t.snap, c.ID, id, rec); err != nil {
		return record.ID{}, err
	}
	return id, nil
}

// CreateEdge inserts a new edge of className connecting src to dst.
func (t *Txn) CreateEdge(className string, src, dst record.ID, props Props) (record.ID, error) {
	if err := t.requireWritable(); err != nil {
		return record.ID{}, err
	}
	c, ok := t.snap.ClassByName(className)
	if !ok {
		return record.ID{}, nogdberr.New(nogdberr.NoExistClass, "class %q not found", className)
	}
	if c.Tag != schema.Edge {
		return record.ID{}, nogdberr.New(nogdberr.MismatchClassType, "%q is not an edge class", className)
	}
	rec, err := t.resolveProps(c.ID, props)
	if err != nil {
		return record.ID{}, err
	}
	id, err := t.store.Create(t.ktxn, c.ID, rec)
	if err != nil {
		return record.ID{}, err
	}
	if err := graph.AddEdgeEntry(t.ktxn, id, src, dst); err != nil {
		return record.ID{}, err
	}
	if err := index.OnCreate(t.ktxn, t.snap, c.ID, id, rec); err != nil {
		return record.ID{}, err
	}
	return id, nil
}

// Get fetches a record's current stored state, vertex or edge alike; the
// record kind only matters to the caller.
func (t *Txn) Get(id record.ID) (record.Stored, error) {
	if err := t.requireOpen(); err != nil {
		return record.Stored{}, err
	}
	return t.store.Get(t.ktxn, id)
}

// Update merges props into id's current properties, bumping its version
// and re-threading any affected index entries.
func (t *Txn) Update(id record.ID, props Props) (record.Stored, error) {
	if err := t.requireWritable(); err != nil {
		return record.Stored{}, err
	}
	old, err := t.store.Get(t.ktxn, id)
	if err != nil {
		return record.Stored{}, err
	}
	delta, err := t.resolveProps(id.ClassID, props)
	if err != nil {
		return record.Stored{}, err
	}
	merged := make(codec.Record, len(old.Properties)+len(delta))
	for k, v := range old.Properties {
		merged[k] = v
	}
	for k, v := range delta {
		merged[k] = v
	}
	updated, err := t.store.Update(t.ktxn, id, merged)
	if err != nil {
		return record.Stored{}, err
	}
	if err := index.OnUpdate(t.ktxn, t.snap, id.ClassID, id, old.Properties, merged); err != nil {
		return record.Stored{}, err
	}
	return updated, nil
}

// DestroyVertex removes a vertex and cascades onto every incident edge:
// destroying a vertex always destroys its edges too.
func (t *Txn) DestroyVertex(id record.ID) error {
	if err := t.requireWritable(); err != nil {
		return err
	}
	return t.destroyVertex(id)
}

func (t *Txn) destroyVertex(id record.ID) error {
	edges, err := graph.AllEdges(t.ktxn, id)
	if err != nil {
		return err
	}
	for _, e := range edges {
		if err := t.destroyEdge(e); err != nil {
			return err
		}
	}
	stored, err := t.store.Get(t.ktxn, id)
	if err != nil {
		return err
	}
	if err := index.OnDestroy(t.ktxn, t.snap, id.ClassID, id, stored.Properties); err != nil {
		return err
	}
	if err := t.store.Delete(t.ktxn, id); err != nil {
		return err
	}
	return graph.RemoveVertexEntry(t.ktxn, id)
}

// DestroyEdge removes a single edge without touching its endpoints.
func (t *Txn) DestroyEdge(id record.ID) error {
	if err := t.requireWritable(); err != nil {
		return err
	}
	return t.destroyEdge(id)
}

func (t *Txn) destroyEdge(id record.ID) error {
	stored, err := t.store.Get(t.ktxn, id)
	if err != nil {
		return err
	}
	if err := index.OnDestroy(t.ktxn, t.snap, id.ClassID, id, stored.Properties); err != nil {
		return err
	}
	if err := graph.RemoveEdgeEntry(t.ktxn, id); err != nil {
		return err
	}
	return t.store.Delete(t.ktxn, id)
}

// InEdges, OutEdges and AllEdges expose the adjacency engine for
// traversal packages built on top of a transaction.
func (t *Txn) InEdges(v record.ID) ([]record.ID, error)  { return graph.InEdges(t.ktxn, v) }
func (t *Txn) OutEdges(v record.ID) ([]record.ID, error) { return graph.OutEdges(t.ktxn, v) }
func (t *Txn) AllEdges(v record.ID) ([]record.ID, error) { return graph.AllEdges(t.ktxn, v) }

// Endpoints returns an edge's (src, dst) pair.
func (t *Txn) Endpoints(e record.ID) (src, dst record.ID, err error) {
	return graph.Endpoints(t.ktxn, e)
}

// Scan walks every record of classID in insertion order.
func (t *Txn) Scan(classID schema.ClassID, fn func(record.ID, record.Stored) (bool, error)) error {
	return t.store.Scan(t.ktxn, classID, fn)
}

// LookupUniqueEq and LookupMultiEq expose equality-only index lookups
// for pkg/query's indexed().where(...) path.
func (t *Txn) LookupUniqueEq(idx schema.IndexID, v codec.Value) (record.ID, bool, error) {
	return index.LookupUniqueEq(t.ktxn, idx, v)
}

func (t *Txn) LookupMultiEq(idx schema.IndexID, v codec.Value) ([]record.ID, error) {
	return index.LookupMultiEq(t.ktxn, idx, v)
}
