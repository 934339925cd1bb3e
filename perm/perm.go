// Copyright 2026 The veltadb Authors
// SPDX-License-Identifier: Apache-2.0

// Package perm evaluates the table- and field-level permission clauses of
// §4.9 against a session principal bound into the row-evaluation
// environment as `$auth`. Full-authority sessions bypass evaluation
// entirely; everyone else is subject to the table's per-action clause
// (NONE/FULL/a guarded WHERE expression) and, for SELECT projections, the
// per-field clause recorded in the catalog.
package perm

import (
	"github.com/veltadb/veltadb/catalog"
	"github.com/veltadb/veltadb/exec"
	"github.com/veltadb/veltadb/syn/ast"
	"github.com/veltadb/veltadb/value"
	"github.com/veltadb/veltadb/veltaerr"
)

// Action is the statement kind a permission check is evaluated for.
type Action int

const (
	Select Action = iota
	Create
	Update
	Delete
)

// Level is a session's authority scope. FullAuthority sessions (root,
// namespace owner, database owner) bypass every permission clause.
type Level int

const (
	FullAuthority Level = iota
	Scoped
)

// Principal is the `$auth` session context permission clauses are
// evaluated against.
type Principal struct {
	Level Level
	Auth  value.Value // bound as $auth when evaluating a FOR clause
}

// Env binds a Principal into an exec.Env so permission-clause WHERE
// expressions can reference $auth the same way a query's own predicates
// reference $params.
func Env(p Principal, base *exec.Env) *exec.Env {
	params := map[string]value.Value{}
	if base != nil {
		for k, v := range base.Params {
			params[k] = v
		}
	}
	params["auth"] = p.Auth
	return &exec.Env{Params: params}
}

func clauseFor(tbl ast.TablePermissions, action Action) ast.ActionPermission {
	switch action {
	case Create:
		return tbl.Create
	case Update:
		return tbl.Update
	case Delete:
		return tbl.Delete
	default:
		return tbl.Select
	}
}

// Allows reports whether row (ignored for Create/Update/Delete clauses
// that don't reference fields) is permitted for action under the table's
// permission clause. A FullAuthority principal always passes.
func Allows(p Principal, table *catalog.TableDef, action Action, row value.Value, env *exec.Env) (bool, error) {
	if p.Level == FullAuthority {
		return true, nil
	}
	clause := clauseFor(table.Permissions, action)
	switch clause.Kind {
	case ast.PermFull:
		return true, nil
	case ast.PermNone:
		return false, nil
	case ast.PermFor:
		v, err := exec.Eval(clause.Cond, row, env)
		if err != nil {
			return false, err
		}
		return v.IsTruthy(), nil
	default:
		return false, nil
	}
}

// CheckMutation rejects a CREATE/UPDATE/DELETE with KindPermissionDenied
// when the table's clause for action does not allow row.
func CheckMutation(p Principal, table *catalog.TableDef, action Action, row value.Value, env *exec.Env) error {
	ok, err := Allows(p, table, action, row, env)
	if err != nil {
		return err
	}
	if !ok {
		return veltaerr.New(veltaerr.KindPermissionDenied, "permission denied for table %q", table.Name)
	}
	return nil
}

// FilterSelect drops rows a SELECT's table-level permission clause
// rejects, evaluating the clause against each row independently (a FOR
// clause may reference row fields, e.g. `FOR select WHERE user = $auth.id`).
func FilterSelect(p Principal, table *catalog.TableDef, rows []value.Value, env *exec.Env) ([]value.Value, error) {
	if p.Level == FullAuthority || table.Permissions.Select.Kind == ast.PermFull {
		return rows, nil
	}
	out := rows[:0:0]
	for _, row := range rows {
		ok, err := Allows(p, table, Select, row, env)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, row)
		}
	}
	return out, nil
}

// ApplyFieldPermissions strips fields a principal has no SELECT access to
// (catalog field permissions default to FULL, so this is a no-op for
// tables with no restricted fields).
func ApplyFieldPermissions(p Principal, cat *catalog.Catalog, tableName string, row value.Value, env *exec.Env) (value.Value, error) {
	if p.Level == FullAuthority {
		return row, nil
	}
	obj, ok := row.AsObject()
	if !ok {
		return row, nil
	}
	clone := obj.Clone()
	for _, key := range obj.Keys() {
		field, ok := cat.Field(tableName, key)
		if !ok || field.Permissions.Kind == ast.PermFull {
			continue
		}
		switch field.Permissions.Kind {
		case ast.PermNone:
			clone.Delete(key)
		case ast.PermFor:
			v, _ := obj.Get(key)
			allowed, err := exec.Eval(field.Permissions.Cond, v, env)
			if err != nil || !allowed.IsTruthy() {
				clone.Delete(key)
			}
		}
	}
	return value.Obj(clone), nil
}
