package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veltadb/veltadb/syn/ast"
	"github.com/veltadb/veltadb/value"
	"github.com/veltadb/veltadb/veltaerr"
)

func TestParseSelectBasic(t *testing.T) {
	stmts, err := Parse("SELECT name, age FROM person WHERE age >= 18 LIMIT 10;")
	require.NoError(t, err)
	require.Len(t, stmts, 1)
	sel, ok := stmts[0].(ast.SelectStmt)
	require.True(t, ok)
	assert.Len(t, sel.Fields, 2)
	assert.NotNil(t, sel.Where)
	assert.NotNil(t, sel.Limit)
}

func TestParseCreateWithSet(t *testing.T) {
	stmts, err := Parse("CREATE person SET name = 'Tobie';")
	require.NoError(t, err)
	c, ok := stmts[0].(ast.CreateStmt)
	require.True(t, ok)
	obj, ok := c.Content.(ast.ObjectExpr)
	require.True(t, ok)
	require.Len(t, obj.Fields, 1)
	assert.Equal(t, "name", obj.Fields[0].Key)
}

func TestParseRecordIDWithIntegerKey(t *testing.T) {
	stmts, err := Parse("SELECT * FROM person:42;")
	require.NoError(t, err)
	sel := stmts[0].(ast.SelectStmt)
	rid, ok := sel.What[0].(ast.RecordIDExpr)
	require.True(t, ok)
	assert.Equal(t, "person", rid.Table)
	lit, ok := rid.Key.(ast.Literal)
	require.True(t, ok)
	assert.Equal(t, int64(42), must(lit.Value.AsInt()))
}

func must(i int64, ok bool) int64 { return i }

func TestParseCompoundWhereIndexRange(t *testing.T) {
	stmts, err := Parse("SELECT * FROM t WHERE a = 1 AND b >= 15;")
	require.NoError(t, err)
	sel := stmts[0].(ast.SelectStmt)
	bin, ok := sel.Where.(ast.BinaryOp)
	require.True(t, ok)
	assert.Equal(t, "AND", bin.Op)
}

func TestParseRangeExpression(t *testing.T) {
	stmts, err := Parse("SELECT * FROM t WHERE x IN 1..=10;")
	require.NoError(t, err)
	sel := stmts[0].(ast.SelectStmt)
	bin := sel.Where.(ast.BinaryOp)
	rng, ok := bin.Right.(ast.RangeExpr)
	require.True(t, ok)
	assert.Equal(t, value.Included, rng.EndKind)
}

func TestParseFullTextAndKnn(t *testing.T) {
	stmts, err := Parse("SELECT * FROM doc WHERE content @@ 'hello';")
	require.NoError(t, err)
	sel := stmts[0].(ast.SelectStmt)
	bin := sel.Where.(ast.BinaryOp)
	assert.Equal(t, "@@", bin.Op)

	stmts2, err := Parse("SELECT * FROM doc WHERE embedding <|3|> [1,2,3];")
	require.NoError(t, err)
	sel2 := stmts2[0].(ast.SelectStmt)
	bin2 := sel2.Where.(ast.BinaryOp)
	assert.Equal(t, "<K|>", bin2.Op)
	assert.Equal(t, 3, bin2.KnnK)
}

func TestParseDefineTablePermissions(t *testing.T) {
	stmts, err := Parse("DEFINE TABLE t PERMISSIONS FOR select WHERE owner = $auth;")
	require.NoError(t, err)
	def := stmts[0].(ast.DefineTableStmt)
	assert.Equal(t, ast.PermFor, def.Permissions.Select.Kind)
	assert.Equal(t, ast.PermNone, def.Permissions.Create.Kind)
}

func TestParseLiveAndKill(t *testing.T) {
	stmts, err := Parse("LIVE SELECT * FROM person WHERE condition = true;")
	require.NoError(t, err)
	live, ok := stmts[0].(ast.LiveSelectStmt)
	require.True(t, ok)
	assert.True(t, live.Select.Live)

	stmts2, err := Parse("KILL u\"f47ac10b-58cc-4372-a567-0e02b2c3d479\";")
	require.NoError(t, err)
	_, ok = stmts2[0].(ast.KillStmt)
	require.True(t, ok)
}

func TestParseShowChanges(t *testing.T) {
	stmts, err := Parse("SHOW CHANGES FOR TABLE person SINCE 0;")
	require.NoError(t, err)
	sc, ok := stmts[0].(ast.ShowChangesStmt)
	require.True(t, ok)
	assert.Equal(t, "person", sc.Table)
}

func TestParseDefineIndexCompound(t *testing.T) {
	stmts, err := Parse("DEFINE INDEX i ON t FIELDS a, b;")
	require.NoError(t, err)
	idx := stmts[0].(ast.DefineIndexStmt)
	assert.Equal(t, "t", idx.Table)
	assert.Len(t, idx.Columns, 2)
}

func TestParseDefineFieldPermissions(t *testing.T) {
	stmts, err := Parse("DEFINE FIELD ssn ON person PERMISSIONS NONE;")
	require.NoError(t, err)
	fd := stmts[0].(ast.DefineFieldStmt)
	assert.Equal(t, "person", fd.Table)
	assert.Equal(t, ast.PermNone, fd.Permissions.Kind)

	stmts2, err := Parse("DEFINE FIELD name ON person;")
	require.NoError(t, err)
	fd2 := stmts2[0].(ast.DefineFieldStmt)
	assert.Equal(t, ast.PermFull, fd2.Permissions.Kind)
}

func TestParseSyntaxErrorHasSpan(t *testing.T) {
	_, err := Parse("SELECT FROM FROM;")
	require.Error(t, err)
	var ve *veltaerr.Error
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, veltaerr.KindSyntaxError, ve.Kind)
}

func TestParseDepthExceeded(t *testing.T) {
	src := "SELECT * FROM t WHERE "
	for i := 0; i < MaxDepth+10; i++ {
		src += "("
	}
	src += "1"
	for i := 0; i < MaxDepth+10; i++ {
		src += ")"
	}
	src += ";"
	_, err := Parse(src)
	require.Error(t, err)
	assert.True(t, veltaerr.Is(err, veltaerr.KindDepthExceeded))
}
