// Package nogdb is NogDB's public library surface: the Context a host
// application opens once per database file, and the Transaction it begins
// against that Context to read or write. Everything else — schema,
// records, adjacency, indexes, conditions, traversal, SQL — is
// orchestrated through pkg/txn; this package just gives it one front
// door.
package nogdb

import (
	"github.com/nogdb/nogdb/pkg/codec"
	"github.com/nogdb/nogdb/pkg/condition"
	"github.com/nogdb/nogdb/pkg/kv"
	"github.com/nogdb/nogdb/pkg/query"
	"github.com/nogdb/nogdb/pkg/record"
	"github.com/nogdb/nogdb/pkg/schema"
	"github.com/nogdb/nogdb/pkg/sqllang"
	"github.com/nogdb/nogdb/pkg/traverse"
	"github.com/nogdb/nogdb/pkg/txn"
)

// Context is an opened NogDB database.
type Context struct {
	db      *kv.DB
	manager *txn.Manager
}

// Open opens (creating if necessary) a NogDB database using opts to
// configure the backing store.
func Open(opts kv.Options) (*Context, error) {
	db, err := kv.Open(opts)
	if err != nil {
		return nil, err
	}
	m, err := txn.Open(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Context{db: db, manager: m}, nil
}

// Close releases the backing store. Any open Transaction becomes
// invalid.
func (c *Context) Close() error { return c.db.Close() }

// Mode selects whether a Transaction may mutate the database.
type Mode = txn.Mode

const (
	ReadOnly  = txn.ReadOnly
	ReadWrite = txn.ReadWrite
)

// Transaction is a single unit of work against a Context.
type Transaction struct {
	t *txn.Txn
}

// BeginTxn starts a new Transaction in the given Mode.
func (c *Context) BeginTxn(mode Mode) *Transaction {
	return &Transaction{t: c.manager.Begin(mode)}
}

// Commit persists every buffered write in the transaction.
func (tx *Transaction) Commit() error { return tx.t.Commit() }

// Rollback discards every buffered write in the transaction.
func (tx *Transaction) Rollback() { tx.t.Rollback() }

// Schema DDL, delegated straight through to pkg/txn.

func (tx *Transaction) AddVertexClass(name, parent string) (*schema.Class, error) {
	return tx.t.AddVertexClass(name, parent)
}
func (tx *Transaction) AddEdgeClass(name, parent string) (*schema.Class, error) {
	return tx.t.AddEdgeClass(name, parent)
}
func (tx *Transaction) DropClass(name string) error          { return tx.t.DropClass(name) }
func (tx *Transaction) RenameClass(old, new string) error     { return tx.t.RenameClass(old, new) }
func (tx *Transaction) AddProperty(class, name string, typ codec.Type) (*schema.Property, error) {
	return tx.t.AddProperty(class, name, typ)
}
func (tx *Transaction) DropProperty(class, name string) error { return tx.t.DropProperty(class, name) }
func (tx *Transaction) RenameProperty(class, old, new string) error {
	return tx.t.RenameProperty(class, old, new)
}
func (tx *Transaction) AddIndex(class, prop string, unique bool) (*schema.Index, error) {
	return tx.t.AddIndex(class, prop, unique)
}
func (tx *Transaction) DropIndex(class, prop string) error { return tx.t.DropIndex(class, prop) }

// Record CRUD.

func (tx *Transaction) CreateVertex(class string, props txn.Props) (record.ID, error) {
	return tx.t.CreateVertex(class, props)
}
func (tx *Transaction) CreateEdge(class string, src, dst record.ID, props txn.Props) (record.ID, error) {
	return tx.t.CreateEdge(class, src, dst, props)
}
func (tx *Transaction) Get(id record.ID) (record.Stored, error) { return tx.t.Get(id) }
func (tx *Transaction) Update(id record.ID, props txn.Props) (record.Stored, error) {
	return tx.t.Update(id, props)
}
func (tx *Transaction) DestroyVertex(id record.ID) error { return tx.t.DestroyVertex(id) }
func (tx *Transaction) DestroyEdge(id record.ID) error   { return tx.t.DestroyEdge(id) }

// Find starts a class scan/find builder.
func (tx *Transaction) Find(className string) *query.Query { return query.New(tx.t, className) }

// Plan is the execution strategy Find would use for a built query.
type Plan = query.Plan

// Traverse walks out from start with opts.
func (tx *Transaction) Traverse(start record.ID, opts traverse.Options, breadthFirst bool) ([]record.ID, error) {
	if breadthFirst {
		return traverse.BFS(tx.t, start, opts)
	}
	return traverse.DFS(tx.t, start, opts)
}

// ShortestPath runs Dijkstra from start to goal, restricting relaxation
// to edges and vertices that pass edgeCond/vertexCond (either may be
// nil).
func (tx *Transaction) ShortestPath(start, goal record.ID, dir traverse.Direction, cost traverse.CostFunc, edgeCond, vertexCond condition.Tree) ([]record.ID, float64, bool, error) {
	return traverse.ShortestPath(tx.t, start, goal, dir, cost, edgeCond, vertexCond)
}

// Result is the outcome of running a SQL statement: a Cursor for a
// SELECT, an affected-row count for a mutation, a Path for a traversal
// statement, or a Plan for EXPLAIN.
type Result = sqllang.Result

// SQL executes a single NogDB SQL statement.
func (tx *Transaction) SQL(src string) (Result, error) {
	return sqllang.Exec(tx.t, src)
}

// Schema exposes the transaction's read-through schema snapshot.
func (tx *Transaction) Schema() *schema.Snapshot { return tx.t.Schema() }
