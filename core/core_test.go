package core

import (
	"context"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veltadb/veltadb/kv/memkv"
	"github.com/veltadb/veltadb/perm"
	"github.com/veltadb/veltadb/syn/ast"
	"github.com/veltadb/veltadb/syn/parser"
	"github.com/veltadb/veltadb/value"
	"github.com/veltadb/veltadb/veltaerr"
)

func newTestDatastore() (*Datastore, *Session) {
	ds := NewDatastore(memkv.New(), nil)
	sess := NewSession()
	sess.NS, sess.DB = "test", "test"
	sess.Principal = perm.Principal{Level: perm.FullAuthority}
	return ds, sess
}

func parseOne(t *testing.T, src string) ast.Statement {
	t.Helper()
	stmts, err := parser.Parse(src)
	require.NoError(t, err)
	require.Len(t, stmts, 1)
	return stmts[0]
}

func TestCreateThenSelectRoundTrip(t *testing.T) {
	ds, sess := newTestDatastore()
	ctx := context.Background()

	create := parseOne(t, "CREATE person SET name = 'Tobie', age = 33;").(ast.CreateStmt)
	created, err := ds.Create(ctx, sess, create)
	require.NoError(t, err)
	obj, ok := created.AsObject()
	require.True(t, ok)
	name, _ := obj.Get("name")
	s, _ := name.AsString()
	assert.Equal(t, "Tobie", s)

	sel := parseOne(t, "SELECT * FROM person;").(ast.SelectStmt)
	result, err := ds.Select(ctx, sess, sel)
	require.NoError(t, err)
	rows, ok := result.AsArray()
	require.True(t, ok)
	require.Len(t, rows, 1)
}

func TestUpdateMergesOverExistingRow(t *testing.T) {
	ds, sess := newTestDatastore()
	ctx := context.Background()

	create := parseOne(t, "CREATE person SET name = 'Tobie', age = 33;").(ast.CreateStmt)
	_, err := ds.Create(ctx, sess, create)
	require.NoError(t, err)

	update := parseOne(t, "UPDATE person MERGE { age: 34 };").(ast.UpdateStmt)
	result, err := ds.Update(ctx, sess, update)
	require.NoError(t, err)
	rows, ok := result.AsArray()
	require.True(t, ok)
	require.Len(t, rows, 1)
	obj, _ := rows[0].AsObject()
	age, _ := obj.Get("age")
	n, _ := age.AsInt()
	assert.Equal(t, int64(34), n)
	name, _ := obj.Get("name")
	s, _ := name.AsString()
	assert.Equal(t, "Tobie", s)
}

func TestUpsertCreatesOnMissingAndUpdatesOnExisting(t *testing.T) {
	ds, sess := newTestDatastore()
	ctx := context.Background()

	upsert := parseOne(t, "UPSERT person:tobie SET name = 'Tobie';").(ast.UpsertStmt)
	created, err := ds.Upsert(ctx, sess, upsert)
	require.NoError(t, err)
	obj, _ := created.AsObject()
	name, _ := obj.Get("name")
	s, _ := name.AsString()
	assert.Equal(t, "Tobie", s)

	upsert2 := parseOne(t, "UPSERT person:tobie SET name = 'Tobie B.';").(ast.UpsertStmt)
	updated, err := ds.Upsert(ctx, sess, upsert2)
	require.NoError(t, err)
	obj2, _ := updated.AsObject()
	name2, _ := obj2.Get("name")
	s2, _ := name2.AsString()
	assert.Equal(t, "Tobie B.", s2)
}

func TestDeleteRemovesRow(t *testing.T) {
	ds, sess := newTestDatastore()
	ctx := context.Background()

	create := parseOne(t, "CREATE person SET name = 'Tobie';").(ast.CreateStmt)
	_, err := ds.Create(ctx, sess, create)
	require.NoError(t, err)

	del := parseOne(t, "DELETE person;").(ast.DeleteStmt)
	_, err = ds.Delete(ctx, sess, del)
	require.NoError(t, err)

	sel := parseOne(t, "SELECT * FROM person;").(ast.SelectStmt)
	result, err := ds.Select(ctx, sess, sel)
	require.NoError(t, err)
	rows, _ := result.AsArray()
	assert.Len(t, rows, 0)
}

func TestInsertBulkCreatesRows(t *testing.T) {
	ds, sess := newTestDatastore()
	ctx := context.Background()

	insert := parseOne(t, "INSERT INTO person [{name: 'A'}, {name: 'B'}];").(ast.InsertStmt)
	result, err := ds.Insert(ctx, sess, insert)
	require.NoError(t, err)
	rows, ok := result.AsArray()
	require.True(t, ok)
	assert.Len(t, rows, 2)

	names := make([]string, len(rows))
	for i, row := range rows {
		obj, _ := row.AsObject()
		name, _ := obj.Get("name")
		names[i], _ = name.AsString()
	}
	sort.Strings(names)
	if diff := cmp.Diff([]string{"A", "B"}, names); diff != "" {
		t.Errorf("inserted names mismatch (-want +got):\n%s", diff)
	}
}

func TestRelateCreatesEdgeWithInOut(t *testing.T) {
	ds, sess := newTestDatastore()
	ctx := context.Background()

	_, err := ds.Create(ctx, sess, parseOne(t, "CREATE person:tobie SET name = 'Tobie';").(ast.CreateStmt))
	require.NoError(t, err)
	_, err = ds.Create(ctx, sess, parseOne(t, "CREATE person:jaime SET name = 'Jaime';").(ast.CreateStmt))
	require.NoError(t, err)

	relate := parseOne(t, "RELATE person:tobie->knows->person:jaime SET weight = 1;").(ast.RelateStmt)
	edge, err := ds.Relate(ctx, sess, relate)
	require.NoError(t, err)
	obj, ok := edge.AsObject()
	require.True(t, ok)
	_, ok = obj.Get("in")
	assert.True(t, ok)
	_, ok = obj.Get("out")
	assert.True(t, ok)
}

func TestUniqueIndexRejectsDuplicateValue(t *testing.T) {
	ds, sess := newTestDatastore()
	ctx := context.Background()

	_, err := ds.Catalog.DefineTable(parseOne(t, "DEFINE TABLE person;").(ast.DefineTableStmt))
	require.NoError(t, err)
	_, err = ds.Catalog.DefineIndex(parseOne(t, "DEFINE INDEX idx_email ON person FIELDS email UNIQUE;").(ast.DefineIndexStmt))
	require.NoError(t, err)

	_, err = ds.Create(ctx, sess, parseOne(t, "CREATE person SET email = 'a@example.com';").(ast.CreateStmt))
	require.NoError(t, err)

	_, err = ds.Create(ctx, sess, parseOne(t, "CREATE person SET email = 'a@example.com';").(ast.CreateStmt))
	require.Error(t, err)
}

func TestChangeFeedRecordsMutationsForOptedInTable(t *testing.T) {
	ds, sess := newTestDatastore()
	ctx := context.Background()

	_, err := ds.Catalog.DefineTable(parseOne(t, "DEFINE TABLE person CHANGEFEED 1d;").(ast.DefineTableStmt))
	require.NoError(t, err)

	_, err = ds.Create(ctx, sess, parseOne(t, "CREATE person SET name = 'Tobie';").(ast.CreateStmt))
	require.NoError(t, err)

	show := parseOne(t, "SHOW CHANGES FOR TABLE person SINCE 0;").(ast.ShowChangesStmt)
	result, err := ds.ShowChanges(ctx, sess, show)
	require.NoError(t, err)
	groups, ok := result.AsArray()
	require.True(t, ok)
	require.Len(t, groups, 1)
}

func TestLiveSelectNotifiesOnMatchingCreate(t *testing.T) {
	ds, sess := newTestDatastore()
	ctx := context.Background()

	live := parseOne(t, "LIVE SELECT * FROM person WHERE age > 18;").(ast.LiveSelectStmt)
	id, sink, err := ds.LiveSelect(sess, live.Select)
	require.NoError(t, err)
	defer ds.Kill(id)

	_, err = ds.Create(ctx, sess, parseOne(t, "CREATE person SET name = 'Tobie', age = 33;").(ast.CreateStmt))
	require.NoError(t, err)

	select {
	case n := <-sink:
		assert.Equal(t, id, n.Subscription)
		obj, ok := n.Result.AsObject()
		require.True(t, ok)
		name, _ := obj.Get("name")
		s, _ := name.AsString()
		assert.Equal(t, "Tobie", s)
	default:
		t.Fatal("expected a live notification for a matching row")
	}
}

func TestPermissionDeniedForScopedPrincipalAgainstNoneTable(t *testing.T) {
	ds, sess := newTestDatastore()
	ctx := context.Background()

	_, err := ds.Catalog.DefineTable(parseOne(t, "DEFINE TABLE secret PERMISSIONS NONE;").(ast.DefineTableStmt))
	require.NoError(t, err)

	sess.Principal = perm.Principal{Level: perm.Scoped, Auth: value.Str("user:1")}
	_, err = ds.Create(ctx, sess, parseOne(t, "CREATE secret SET x = 1;").(ast.CreateStmt))
	require.Error(t, err)
	assert.True(t, veltaerr.Is(err, veltaerr.KindPermissionDenied))
}
