package perm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veltadb/veltadb/catalog"
	"github.com/veltadb/veltadb/syn/ast"
	"github.com/veltadb/veltadb/value"
)

func ownerRow(owner string) value.Value {
	o := value.NewObject()
	o.Set("owner", value.Str(owner))
	return value.Obj(o)
}

func TestFullAuthorityBypassesAllClauses(t *testing.T) {
	table := &catalog.TableDef{Name: "secret", Permissions: ast.TablePermissions{
		Select: ast.ActionPermission{Kind: ast.PermNone},
	}}
	ok, err := Allows(Principal{Level: FullAuthority}, table, Select, ownerRow("bob"), nil)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPermNoneRejectsScopedPrincipal(t *testing.T) {
	table := &catalog.TableDef{Name: "secret", Permissions: ast.TablePermissions{
		Select: ast.ActionPermission{Kind: ast.PermNone},
	}}
	ok, err := Allows(Principal{Level: Scoped}, table, Select, ownerRow("bob"), nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPermForEvaluatesGuardAgainstAuth(t *testing.T) {
	cond := ast.BinaryOp{
		Op:    "=",
		Left:  ast.Idiom{Path: value.ParseIdiom("owner")},
		Right: ast.Param{Name: "auth"},
	}
	table := &catalog.TableDef{Name: "post", Permissions: ast.TablePermissions{
		Select: ast.ActionPermission{Kind: ast.PermFor, Cond: cond},
	}}
	principal := Principal{Level: Scoped, Auth: value.Str("bob")}
	env := Env(principal, nil)

	ok, err := Allows(principal, table, Select, ownerRow("bob"), env)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Allows(principal, table, Select, ownerRow("alice"), env)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCheckMutationRejectsWithPermissionDenied(t *testing.T) {
	table := &catalog.TableDef{Name: "post", Permissions: ast.TablePermissions{
		Create: ast.ActionPermission{Kind: ast.PermNone},
	}}
	err := CheckMutation(Principal{Level: Scoped}, table, Create, ownerRow("bob"), nil)
	require.Error(t, err)
}

func TestFilterSelectDropsDisallowedRows(t *testing.T) {
	cond := ast.BinaryOp{
		Op:    "=",
		Left:  ast.Idiom{Path: value.ParseIdiom("owner")},
		Right: ast.Param{Name: "auth"},
	}
	table := &catalog.TableDef{Name: "post", Permissions: ast.TablePermissions{
		Select: ast.ActionPermission{Kind: ast.PermFor, Cond: cond},
	}}
	principal := Principal{Level: Scoped, Auth: value.Str("bob")}
	env := Env(principal, nil)

	rows := []value.Value{ownerRow("bob"), ownerRow("alice"), ownerRow("bob")}
	filtered, err := FilterSelect(principal, table, rows, env)
	require.NoError(t, err)
	assert.Len(t, filtered, 2)
}

func TestApplyFieldPermissionsStripsRestrictedField(t *testing.T) {
	cat := catalog.New()
	_, err := cat.DefineTable(ast.DefineTableStmt{Name: "person"})
	require.NoError(t, err)
	_, err = cat.DefineField(ast.DefineFieldStmt{
		Table: "person", Name: "ssn",
		Permissions: ast.ActionPermission{Kind: ast.PermNone},
	})
	require.NoError(t, err)

	row := value.NewObject()
	row.Set("name", value.Str("alice"))
	row.Set("ssn", value.Str("000-00-0000"))

	out, err := ApplyFieldPermissions(Principal{Level: Scoped}, cat, "person", value.Obj(row), nil)
	require.NoError(t, err)
	obj, _ := out.AsObject()
	_, hasName := obj.Get("name")
	_, hasSSN := obj.Get("ssn")
	assert.True(t, hasName)
	assert.False(t, hasSSN)
}
