package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veltadb/veltadb/syn/ast"
	"github.com/veltadb/veltadb/value"
	"github.com/veltadb/veltadb/veltaerr"
)

func TestDefineAndLookupTable(t *testing.T) {
	c := New()
	td, err := c.DefineTable(ast.DefineTableStmt{Name: "person"})
	require.NoError(t, err)
	assert.Equal(t, "person", td.Name)
	got, ok := c.Table("person")
	require.True(t, ok)
	assert.Equal(t, td.ID, got.ID)
}

func TestDefineIndexRequiresTable(t *testing.T) {
	c := New()
	_, err := c.DefineIndex(ast.DefineIndexStmt{Name: "i", Table: "missing"})
	require.Error(t, err)
	assert.True(t, veltaerr.Is(err, veltaerr.KindTableNotFound))
}

func TestDefineIndexDuplicateRejected(t *testing.T) {
	c := New()
	_, _ = c.DefineTable(ast.DefineTableStmt{Name: "t"})
	cols := []value.Idiom{value.ParseIdiom("a")}
	_, err := c.DefineIndex(ast.DefineIndexStmt{Name: "i", Table: "t", Columns: cols})
	require.NoError(t, err)
	_, err = c.DefineIndex(ast.DefineIndexStmt{Name: "i", Table: "t", Columns: cols})
	require.Error(t, err)
	assert.True(t, veltaerr.Is(err, veltaerr.KindAlreadyExists))
}

func TestIndexesForOrderPreserved(t *testing.T) {
	c := New()
	_, _ = c.DefineTable(ast.DefineTableStmt{Name: "t"})
	_, _ = c.DefineIndex(ast.DefineIndexStmt{Name: "i1", Table: "t", Columns: []value.Idiom{value.ParseIdiom("a")}})
	_, _ = c.DefineIndex(ast.DefineIndexStmt{Name: "i2", Table: "t", Columns: []value.Idiom{value.ParseIdiom("b")}})
	idxs := c.IndexesFor("t")
	require.Len(t, idxs, 2)
	assert.Equal(t, "i1", idxs[0].Name)
	assert.Equal(t, "i2", idxs[1].Name)
}

func TestEnsureTableImplicit(t *testing.T) {
	c := New()
	td := c.EnsureTable("person")
	again := c.EnsureTable("person")
	assert.Equal(t, td.ID, again.ID)
}
