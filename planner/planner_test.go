package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/veltadb/veltadb/catalog"
	"github.com/veltadb/veltadb/exec"
	"github.com/veltadb/veltadb/keycodec"
	"github.com/veltadb/veltadb/keys"
	"github.com/veltadb/veltadb/kv/memkv"
	"github.com/veltadb/veltadb/syn/ast"
	"github.com/veltadb/veltadb/value"
)

func seedPlannerStore(t *testing.T) *memkv.Store {
	t.Helper()
	store := memkv.New()
	ctx := context.Background()
	tx, err := store.Begin(ctx, true)
	require.NoError(t, err)

	rows := []struct {
		id   int64
		name string
		age  int64
	}{
		{1, "alice", 30},
		{2, "bob", 25},
		{3, "cara", 25},
	}
	for _, r := range rows {
		obj := value.NewObject()
		obj.Set("name", value.Str(r.name))
		obj.Set("age", value.Int(r.age))
		key := keys.PrimaryKey("test", "test", "person", value.Int(r.id))
		require.NoError(t, tx.Set(ctx, key, keycodec.Encode(nil, value.Obj(obj))))

		ixKey := keys.IndexKey("test", "test", "person", "age_ix", []value.Value{value.Int(r.age)}, value.Int(r.id), false)
		require.NoError(t, tx.Set(ctx, ixKey, keycodec.Encode(nil, value.Int(r.id))))
	}
	_, err = tx.Commit(ctx)
	require.NoError(t, err)
	return store
}

func TestPlanUsesIndexForEqualityPredicate(t *testing.T) {
	store := seedPlannerStore(t)
	ctx := context.Background()
	tx, err := store.Begin(ctx, false)
	require.NoError(t, err)

	cat := catalog.New()
	_, err = cat.DefineTable(ast.DefineTableStmt{Name: "person"})
	require.NoError(t, err)
	_, err = cat.DefineIndex(ast.DefineIndexStmt{Name: "age_ix", Table: "person", Columns: []value.Idiom{value.ParseIdiom("age")}})
	require.NoError(t, err)

	stmt := ast.SelectStmt{
		What:  []ast.Expr{ast.Idiom{Path: value.ParseIdiom("person")}},
		Where: ast.BinaryOp{Op: "=", Left: ast.Idiom{Path: value.ParseIdiom("age")}, Right: ast.Literal{Value: value.Int(25)}},
	}
	op, err := Plan(ctx, stmt, cat, nil, tx, "test", "test", &exec.Env{})
	require.NoError(t, err)
	rows, err := exec.Collect(ctx, op)
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestPlanFallsBackToScanWithoutIndex(t *testing.T) {
	store := seedPlannerStore(t)
	ctx := context.Background()
	tx, err := store.Begin(ctx, false)
	require.NoError(t, err)

	cat := catalog.New()
	_, err = cat.DefineTable(ast.DefineTableStmt{Name: "person"})
	require.NoError(t, err)

	stmt := ast.SelectStmt{
		What:  []ast.Expr{ast.Idiom{Path: value.ParseIdiom("person")}},
		Where: ast.BinaryOp{Op: "=", Left: ast.Idiom{Path: value.ParseIdiom("name")}, Right: ast.Literal{Value: value.Str("bob")}},
	}
	op, err := Plan(ctx, stmt, cat, nil, tx, "test", "test", &exec.Env{})
	require.NoError(t, err)
	rows, err := exec.Collect(ctx, op)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestPlanPointLookupByRecordID(t *testing.T) {
	store := seedPlannerStore(t)
	ctx := context.Background()
	tx, err := store.Begin(ctx, false)
	require.NoError(t, err)

	cat := catalog.New()
	_, err = cat.DefineTable(ast.DefineTableStmt{Name: "person"})
	require.NoError(t, err)

	stmt := ast.SelectStmt{What: []ast.Expr{ast.RecordIDExpr{Table: "person", Key: ast.Literal{Value: value.Int(1)}}}}
	op, err := Plan(ctx, stmt, cat, nil, tx, "test", "test", &exec.Env{})
	require.NoError(t, err)
	rows, err := exec.Collect(ctx, op)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestPlanLimitAndStart(t *testing.T) {
	store := seedPlannerStore(t)
	ctx := context.Background()
	tx, err := store.Begin(ctx, false)
	require.NoError(t, err)

	cat := catalog.New()
	_, err = cat.DefineTable(ast.DefineTableStmt{Name: "person"})
	require.NoError(t, err)

	stmt := ast.SelectStmt{
		What:    []ast.Expr{ast.Idiom{Path: value.ParseIdiom("person")}},
		OrderBy: []ast.OrderField{{Field: value.ParseIdiom("age")}},
		Limit:   ast.Literal{Value: value.Int(1)},
		Start:   ast.Literal{Value: value.Int(1)},
	}
	op, err := Plan(ctx, stmt, cat, nil, tx, "test", "test", &exec.Env{})
	require.NoError(t, err)
	rows, err := exec.Collect(ctx, op)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}
