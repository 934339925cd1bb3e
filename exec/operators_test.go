package exec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/veltadb/veltadb/keycodec"
	"github.com/veltadb/veltadb/keys"
	"github.com/veltadb/veltadb/kv/memkv"
	"github.com/veltadb/veltadb/syn/ast"
	"github.com/veltadb/veltadb/value"
)

func putRow(t *testing.T, tx interface {
	Set(ctx context.Context, key, val []byte) error
}, ns, db, tbl string, id int64, row *value.Object) {
	t.Helper()
	key := keys.PrimaryKey(ns, db, tbl, value.Int(id))
	require.NoError(t, tx.Set(context.Background(), key, keycodec.Encode(nil, value.Obj(row))))
}

func seedPeople(t *testing.T) (*memkv.Store, []struct {
	name string
	age  int64
}) {
	store := memkv.New()
	ctx := context.Background()
	tx, err := store.Begin(ctx, true)
	require.NoError(t, err)

	people := []struct {
		name string
		age  int64
	}{
		{"alice", 30},
		{"bob", 25},
		{"cara", 40},
	}
	for i, p := range people {
		obj := value.NewObject()
		obj.Set("name", value.Str(p.name))
		obj.Set("age", value.Int(p.age))
		putRow(t, tx, "test", "test", "person", int64(i+1), obj)
	}
	_, err = tx.Commit(ctx)
	require.NoError(t, err)
	return store, people
}

func TestScanOperatorReturnsAllRows(t *testing.T) {
	store, people := seedPeople(t)
	ctx := context.Background()
	tx, err := store.Begin(ctx, false)
	require.NoError(t, err)

	scan := NewScan(tx, "test", "test", "person")
	rows, err := Collect(ctx, scan)
	require.NoError(t, err)
	require.Len(t, rows, len(people))
}

func TestFilterOperatorKeepsMatchingRows(t *testing.T) {
	store, _ := seedPeople(t)
	ctx := context.Background()
	tx, err := store.Begin(ctx, false)
	require.NoError(t, err)

	pred := ast.BinaryOp{Op: ">", Left: ast.Idiom{Path: value.ParseIdiom("age")}, Right: ast.Literal{Value: value.Int(28)}}
	f := &FilterOperator{Child: NewScan(tx, "test", "test", "person"), Predicate: pred, Env: &Env{}}
	rows, err := Collect(ctx, f)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		age, _ := value.Get(row, value.ParseIdiom("age")).AsInt()
		require.Greater(t, age, int64(28))
	}
}

func TestSortOperatorOrdersByField(t *testing.T) {
	store, _ := seedPeople(t)
	ctx := context.Background()
	tx, err := store.Begin(ctx, false)
	require.NoError(t, err)

	s := &SortOperator{Child: NewScan(tx, "test", "test", "person"), OrderBy: []ast.OrderField{{Field: value.ParseIdiom("age"), Desc: false}}}
	rows, err := Collect(ctx, s)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	prev := int64(-1)
	for _, row := range rows {
		age, _ := value.Get(row, value.ParseIdiom("age")).AsInt()
		require.GreaterOrEqual(t, age, prev)
		prev = age
	}
}

func TestLimitStartOperatorPagesRows(t *testing.T) {
	store, _ := seedPeople(t)
	ctx := context.Background()
	tx, err := store.Begin(ctx, false)
	require.NoError(t, err)

	s := &SortOperator{Child: NewScan(tx, "test", "test", "person"), OrderBy: []ast.OrderField{{Field: value.ParseIdiom("age")}}}
	l := &LimitStartOperator{Child: s, Start: 1, Limit: 1}
	rows, err := Collect(ctx, l)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	age, _ := value.Get(rows[0], value.ParseIdiom("age")).AsInt()
	require.Equal(t, int64(30), age)
}

func TestProjectOperatorBuildsAliasedFields(t *testing.T) {
	store, _ := seedPeople(t)
	ctx := context.Background()
	tx, err := store.Begin(ctx, false)
	require.NoError(t, err)

	fields := []ast.OutputField{{Expr: ast.Idiom{Path: value.ParseIdiom("name")}, Alias: value.ParseIdiom("who")}}
	p := &ProjectOperator{Child: NewScan(tx, "test", "test", "person"), Fields: fields, Env: &Env{}}
	rows, err := Collect(ctx, p)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for _, row := range rows {
		obj, ok := row.AsObject()
		require.True(t, ok)
		_, has := obj.Get("who")
		require.True(t, has)
		_, hasName := obj.Get("name")
		require.False(t, hasName)
	}
}

func TestProjectOperatorOmitsFields(t *testing.T) {
	store, _ := seedPeople(t)
	ctx := context.Background()
	tx, err := store.Begin(ctx, false)
	require.NoError(t, err)

	p := &ProjectOperator{Child: NewScan(tx, "test", "test", "person"), Omit: []value.Idiom{value.ParseIdiom("age")}}
	rows, err := Collect(ctx, p)
	require.NoError(t, err)
	for _, row := range rows {
		obj, _ := row.AsObject()
		_, has := obj.Get("age")
		require.False(t, has)
		_, hasName := obj.Get("name")
		require.True(t, hasName)
	}
}

func TestCancelledContextStopsScan(t *testing.T) {
	store, _ := seedPeople(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tx, err := store.Begin(context.Background(), false)
	require.NoError(t, err)

	scan := NewScan(tx, "test", "test", "person")
	_, _, err = scan.Next(ctx)
	require.Error(t, err)
}
