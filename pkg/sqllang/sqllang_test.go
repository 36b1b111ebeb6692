package sqllang

import (
	"testing"

	"github.com/nogdb/nogdb/pkg/kv"
	"github.com/nogdb/nogdb/pkg/nogdberr"
	"github.com/nogdb/nogdb/pkg/record"
	"github.com/nogdb/nogdb/pkg/schema"
	"github.com/nogdb/nogdb/pkg/txn"
	"github.com/stretchr/testify/require"
)

func openTxn(t *testing.T) *txn.Txn {
	t.Helper()
	db, err := kv.Open(kv.Options{Dir: t.TempDir(), InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	m, err := txn.Open(db)
	require.NoError(t, err)
	return m.Begin(txn.ReadWrite)
}

func TestCreateClassAndProperty(t *testing.T) {
	tx := openTxn(t)
	defer tx.Rollback()

	_, err := Exec(tx, `CREATE CLASS person AS VERTEX`)
	require.NoError(t, err)
	_, err = Exec(tx, `CREATE PROPERTY person.name TYPE TEXT`)
	require.NoError(t, err)

	_, ok := tx.Schema().ClassByName("person")
	require.True(t, ok)
}

func TestCreateVertexAndSelect(t *testing.T) {
	tx := openTxn(t)
	defer tx.Rollback()

	_, err := Exec(tx, `CREATE CLASS person AS VERTEX`)
	require.NoError(t, err)
	_, err = Exec(tx, `CREATE PROPERTY person.name TYPE TEXT`)
	require.NoError(t, err)
	_, err = Exec(tx, `CREATE PROPERTY person.age TYPE INTEGER`)
	require.NoError(t, err)

	_, err = Exec(tx, `CREATE VERTEX person SET name = 'Ann', age = 30`)
	require.NoError(t, err)
	_, err = Exec(tx, `CREATE VERTEX person SET name = 'Bob', age = 20`)
	require.NoError(t, err)

	res, err := Exec(tx, `SELECT * FROM person WHERE age > 25`)
	require.NoError(t, err)
	require.Equal(t, 1, res.Cursor.Size())
	row, _ := res.Cursor.First()
	name, _ := row.Properties["name"].Text()
	require.Equal(t, "Ann", name)
}

func TestCreateEdgeAndTraverse(t *testing.T) {
	tx := openTxn(t)
	defer tx.Rollback()

	_, err := Exec(tx, `CREATE CLASS person AS VERTEX`)
	require.NoError(t, err)
	_, err = Exec(tx, `CREATE CLASS knows AS EDGE`)
	require.NoError(t, err)

	res, err := Exec(tx, `CREATE VERTEX person`)
	require.NoError(t, err)
	a := res.Path[0]
	res, err = Exec(tx, `CREATE VERTEX person`)
	require.NoError(t, err)
	b := res.Path[0]

	_, err = Exec(tx, `CREATE EDGE knows FROM `+a.String()+` TO `+b.String())
	require.NoError(t, err)

	res, err = Exec(tx, `TRAVERSE OUT FROM `+a.String())
	require.NoError(t, err)
	require.Equal(t, 2, res.Affected)
	require.Equal(t, []record.ID{a, b}, res.Path)

	res, err = Exec(tx, `TRAVERSE OUT FROM `+a.String()+` MINDEPTH 1`)
	require.NoError(t, err)
	require.Equal(t, 1, res.Affected)
	require.Equal(t, b, res.Path[0])
}

func TestUpdateAndDeleteVertex(t *testing.T) {
	tx := openTxn(t)
	defer tx.Rollback()

	_, err := Exec(tx, `CREATE CLASS person AS VERTEX`)
	require.NoError(t, err)
	_, err = Exec(tx, `CREATE PROPERTY person.age TYPE INTEGER`)
	require.NoError(t, err)
	_, err = Exec(tx, `CREATE VERTEX person SET age = 1`)
	require.NoError(t, err)

	res, err := Exec(tx, `UPDATE person SET age = 2`)
	require.NoError(t, err)
	require.Equal(t, 1, res.Affected)

	res, err = Exec(tx, `DELETE VERTEX FROM person`)
	require.NoError(t, err)
	require.Equal(t, 1, res.Affected)

	res, err = Exec(tx, `SELECT * FROM person`)
	require.NoError(t, err)
	require.True(t, res.Cursor.Empty())
}

func TestExplainReportsIndexUsage(t *testing.T) {
	tx := openTxn(t)
	defer tx.Rollback()

	_, err := Exec(tx, `CREATE CLASS person AS VERTEX`)
	require.NoError(t, err)
	_, err = Exec(tx, `CREATE PROPERTY person.email TYPE TEXT`)
	require.NoError(t, err)
	_, err = Exec(tx, `CREATE PROPERTY person.age TYPE INTEGER`)
	require.NoError(t, err)
	_, err = Exec(tx, `CREATE INDEX ON person(email) UNIQUE`)
	require.NoError(t, err)

	res, err := Exec(tx, `EXPLAIN SELECT * FROM person WHERE email = 'a@x.com'`)
	require.NoError(t, err)
	require.NotNil(t, res.Plan)
	require.True(t, res.Plan.UsesIndex)
	require.Equal(t, "email", res.Plan.IndexProperty)
	require.True(t, res.Plan.UniqueIndex)

	res, err = Exec(tx, `EXPLAIN SELECT * FROM person WHERE age > 10`)
	require.NoError(t, err)
	require.NotNil(t, res.Plan)
	require.False(t, res.Plan.UsesIndex)
}

func TestSelectCountStar(t *testing.T) {
	tx := openTxn(t)
	defer tx.Rollback()

	_, err := Exec(tx, `CREATE CLASS person AS VERTEX`)
	require.NoError(t, err)
	_, err = Exec(tx, `CREATE VERTEX person`)
	require.NoError(t, err)
	_, err = Exec(tx, `CREATE VERTEX person`)
	require.NoError(t, err)

	res, err := Exec(tx, `SELECT COUNT(*) FROM person`)
	require.NoError(t, err)
	require.Equal(t, 1, res.Cursor.Size())
	row, _ := res.Cursor.First()
	require.Equal(t, schema.ClassID(-2), row.ID.ClassID)
	n, _ := row.Properties["count"].Int64()
	require.Equal(t, int64(2), n)
}

func TestSelectColumnProjection(t *testing.T) {
	tx := openTxn(t)
	defer tx.Rollback()

	_, err := Exec(tx, `CREATE CLASS person AS VERTEX`)
	require.NoError(t, err)
	_, err = Exec(tx, `CREATE PROPERTY person.name TYPE TEXT`)
	require.NoError(t, err)
	_, err = Exec(tx, `CREATE PROPERTY person.age TYPE INTEGER`)
	require.NoError(t, err)
	_, err = Exec(tx, `CREATE VERTEX person SET name = 'Ann', age = 30`)
	require.NoError(t, err)

	res, err := Exec(tx, `SELECT name FROM person`)
	require.NoError(t, err)
	require.Equal(t, 1, res.Cursor.Size())
	row, _ := res.Cursor.First()
	require.Equal(t, schema.ClassID(-2), row.ID.ClassID)
	name, _ := row.Properties["name"].Text()
	require.Equal(t, "Ann", name)
	_, hasAge := row.Properties["age"]
	require.False(t, hasAge)
}

func TestTraverseEdgeClassFilter(t *testing.T) {
	tx := openTxn(t)
	defer tx.Rollback()

	_, err := Exec(tx, `CREATE CLASS person AS VERTEX`)
	require.NoError(t, err)
	_, err = Exec(tx, `CREATE CLASS knows AS EDGE`)
	require.NoError(t, err)
	_, err = Exec(tx, `CREATE CLASS blocks AS EDGE`)
	require.NoError(t, err)

	res, err := Exec(tx, `CREATE VERTEX person`)
	require.NoError(t, err)
	a := res.Path[0]
	res, err = Exec(tx, `CREATE VERTEX person`)
	require.NoError(t, err)
	b := res.Path[0]
	res, err = Exec(tx, `CREATE VERTEX person`)
	require.NoError(t, err)
	c := res.Path[0]

	_, err = Exec(tx, `CREATE EDGE knows FROM `+a.String()+` TO `+b.String())
	require.NoError(t, err)
	_, err = Exec(tx, `CREATE EDGE blocks FROM `+a.String()+` TO `+c.String())
	require.NoError(t, err)

	res, err = Exec(tx, `TRAVERSE OUT(knows) FROM `+a.String())
	require.NoError(t, err)
	require.ElementsMatch(t, []record.ID{a, b}, res.Path)

	_, err = Exec(tx, `TRAVERSE OUT(does_not_exist) FROM `+a.String())
	require.True(t, nogdberr.Is(err, nogdberr.NoExistClass))

	_, err = Exec(tx, `TRAVERSE OUT(person) FROM `+a.String())
	require.True(t, nogdberr.Is(err, nogdberr.MismatchClassType))
}

func TestTraverseStrategyDepthFirst(t *testing.T) {
	tx := openTxn(t)
	defer tx.Rollback()

	_, err := Exec(tx, `CREATE CLASS person AS VERTEX`)
	require.NoError(t, err)
	_, err = Exec(tx, `CREATE CLASS knows AS EDGE`)
	require.NoError(t, err)

	res, err := Exec(tx, `CREATE VERTEX person`)
	require.NoError(t, err)
	a := res.Path[0]
	res, err = Exec(tx, `CREATE VERTEX person`)
	require.NoError(t, err)
	b := res.Path[0]

	_, err = Exec(tx, `CREATE EDGE knows FROM `+a.String()+` TO `+b.String())
	require.NoError(t, err)

	res, err = Exec(tx, `TRAVERSE OUT FROM `+a.String()+` STRATEGY DEPTH_FIRST`)
	require.NoError(t, err)
	require.Equal(t, []record.ID{a, b}, res.Path)
}

func TestTraverseMultipleSourcesUnionsAndDedupes(t *testing.T) {
	tx := openTxn(t)
	defer tx.Rollback()

	_, err := Exec(tx, `CREATE CLASS person AS VERTEX`)
	require.NoError(t, err)
	_, err = Exec(tx, `CREATE CLASS knows AS EDGE`)
	require.NoError(t, err)

	res, err := Exec(tx, `CREATE VERTEX person`)
	require.NoError(t, err)
	a := res.Path[0]
	res, err = Exec(tx, `CREATE VERTEX person`)
	require.NoError(t, err)
	b := res.Path[0]
	res, err = Exec(tx, `CREATE VERTEX person`)
	require.NoError(t, err)
	c := res.Path[0]

	_, err = Exec(tx, `CREATE EDGE knows FROM `+a.String()+` TO `+c.String())
	require.NoError(t, err)
	_, err = Exec(tx, `CREATE EDGE knows FROM `+b.String()+` TO `+c.String())
	require.NoError(t, err)

	res, err = Exec(tx, `TRAVERSE OUT FROM `+a.String()+`,`+b.String()+` MINDEPTH 1`)
	require.NoError(t, err)
	require.ElementsMatch(t, []record.ID{c}, res.Path)
}

func TestUniqueIndexViaSQL(t *testing.T) {
	tx := openTxn(t)
	defer tx.Rollback()

	_, err := Exec(tx, `CREATE CLASS person AS VERTEX`)
	require.NoError(t, err)
	_, err = Exec(tx, `CREATE PROPERTY person.email TYPE TEXT`)
	require.NoError(t, err)
	_, err = Exec(tx, `CREATE INDEX ON person(email) UNIQUE`)
	require.NoError(t, err)
	_, err = Exec(tx, `CREATE VERTEX person SET email = 'a@x.com'`)
	require.NoError(t, err)
	_, err = Exec(tx, `CREATE VERTEX person SET email = 'a@x.com'`)
	require.Error(t, err)
}
