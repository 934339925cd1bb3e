// Copyright 2026 The veltadb Authors
// SPDX-License-Identifier: Apache-2.0

// Package exec is the physical operator pipeline (§4.5): Scan, Filter,
// Project, Compute, Sort, Limit/Start, streaming fixed-size batches with
// cooperative cancellation checked at every batch boundary.
package exec

import (
	"math"

	"github.com/veltadb/veltadb/syn/ast"
	"github.com/veltadb/veltadb/value"
	"github.com/veltadb/veltadb/veltaerr"
)

// Env is everything expression evaluation needs beyond the current row:
// bound statement parameters and the session principal (consulted by
// perm, not by Eval itself — Eval only resolves $params).
type Env struct {
	Params map[string]value.Value
}

// Eval evaluates expr against one row (normally a value.Object wrapped in
// a Value). Idiom lookups of absent paths and unbound $params resolve to
// None per §7; every other failure returns an error.
func Eval(expr ast.Expr, row value.Value, env *Env) (value.Value, error) {
	switch e := expr.(type) {
	case ast.Literal:
		return e.Value, nil
	case ast.Idiom:
		return value.Get(row, e.Path), nil
	case ast.Param:
		if env != nil {
			if v, ok := env.Params[e.Name]; ok {
				return v, nil
			}
		}
		return value.None(), nil
	case ast.UnaryOp:
		return evalUnary(e, row, env)
	case ast.BinaryOp:
		return evalBinary(e, row, env)
	case ast.RangeExpr:
		return evalRange(e, row, env)
	case ast.ArrayExpr:
		items := make([]value.Value, len(e.Items))
		for i, it := range e.Items {
			v, err := Eval(it, row, env)
			if err != nil {
				return value.Value{}, err
			}
			items[i] = v
		}
		return value.Array(items...), nil
	case ast.ObjectExpr:
		obj := value.NewObject()
		for _, f := range e.Fields {
			v, err := Eval(f.Value, row, env)
			if err != nil {
				return value.Value{}, err
			}
			obj.Set(f.Key, v)
		}
		return value.Obj(obj), nil
	case ast.RecordIDExpr:
		keyExpr := e.Key
		if rng, ok := keyExpr.(ast.RangeExpr); ok {
			rv, err := evalRange(rng, row, env)
			if err != nil {
				return value.Value{}, err
			}
			return rv, nil
		}
		kv, err := Eval(keyExpr, row, env)
		if err != nil {
			return value.Value{}, err
		}
		return value.Rid(value.NewRecordID(e.Table, kv)), nil
	case ast.FuncCall:
		return evalFunc(e, row, env)
	default:
		return value.Value{}, veltaerr.New(veltaerr.KindUnknown, "unevaluable expression node %T", expr)
	}
}

func evalUnary(e ast.UnaryOp, row value.Value, env *Env) (value.Value, error) {
	v, err := Eval(e.Operand, row, env)
	if err != nil {
		return value.Value{}, err
	}
	switch e.Op {
	case "NOT":
		return value.Bool(!v.IsTruthy()), nil
	case "-":
		if f, ok := v.AsFloat(); ok {
			return value.Float(-f), nil
		}
		if i, ok := v.AsInt(); ok {
			return value.Int(-i), nil
		}
		return value.Value{}, veltaerr.New(veltaerr.KindCoercion, "cannot negate %s", v.Kind())
	default:
		return value.Value{}, veltaerr.New(veltaerr.KindUnknown, "unknown unary operator %q", e.Op)
	}
}

func evalRange(e ast.RangeExpr, row value.Value, env *Env) (value.Value, error) {
	r := value.Range{Start: value.Bound{Kind: e.StartKind}, End: value.Bound{Kind: e.EndKind}}
	if e.Start != nil {
		v, err := Eval(e.Start, row, env)
		if err != nil {
			return value.Value{}, err
		}
		r.Start.Value = v
	}
	if e.End != nil {
		v, err := Eval(e.End, row, env)
		if err != nil {
			return value.Value{}, err
		}
		r.End.Value = v
	}
	return value.Rng(r), nil
}

func evalBinary(e ast.BinaryOp, row value.Value, env *Env) (value.Value, error) {
	left, err := Eval(e.Left, row, env)
	if err != nil {
		return value.Value{}, err
	}
	// short-circuit AND/OR
	if e.Op == "AND" {
		if !left.IsTruthy() {
			return value.Bool(false), nil
		}
		right, err := Eval(e.Right, row, env)
		if err != nil {
			return value.Value{}, err
		}
		return value.Bool(right.IsTruthy()), nil
	}
	if e.Op == "OR" {
		if left.IsTruthy() {
			return value.Bool(true), nil
		}
		right, err := Eval(e.Right, row, env)
		if err != nil {
			return value.Value{}, err
		}
		return value.Bool(right.IsTruthy()), nil
	}

	right, err := Eval(e.Right, row, env)
	if err != nil {
		return value.Value{}, err
	}

	switch e.Op {
	case "=":
		return value.Bool(value.Equal(left, right)), nil
	case "!=":
		return value.Bool(!value.Equal(left, right)), nil
	case "<":
		return value.Bool(value.Compare(left, right) < 0), nil
	case "<=":
		return value.Bool(value.Compare(left, right) <= 0), nil
	case ">":
		return value.Bool(value.Compare(left, right) > 0), nil
	case ">=":
		return value.Bool(value.Compare(left, right) >= 0), nil
	case "IN":
		return evalIn(left, right)
	case "+", "-", "*", "/", "%":
		return evalArith(e.Op, left, right)
	case "@@", "<K|>":
		// Full-text and KNN bindings are resolved by the planner into
		// dedicated index iterators; if one reaches Eval directly (no
		// matching index), it degrades to checking that both operands are
		// truthy so the query still runs, just without index acceleration.
		return value.Bool(left.IsTruthy() && right.IsTruthy()), nil
	default:
		return value.Value{}, veltaerr.New(veltaerr.KindUnknown, "unknown binary operator %q", e.Op)
	}
}

func evalIn(left, right value.Value) (value.Value, error) {
	if rng, ok := right.AsRange(); ok {
		return value.Bool(rng.Contains(left)), nil
	}
	if arr, ok := right.AsArray(); ok {
		for _, item := range arr {
			if value.Equal(left, item) {
				return value.Bool(true), nil
			}
		}
		return value.Bool(false), nil
	}
	return value.Value{}, veltaerr.New(veltaerr.KindCoercion, "IN requires an array or range on the right, got %s", right.Kind())
}

func evalArith(op string, left, right value.Value) (value.Value, error) {
	lf, lok := asNumber(left)
	rf, rok := asNumber(right)
	if !lok || !rok {
		return value.Value{}, veltaerr.New(veltaerr.KindCoercion, "arithmetic requires numeric operands, got %s and %s", left.Kind(), right.Kind())
	}
	switch op {
	case "+":
		return value.Float(lf + rf), nil
	case "-":
		return value.Float(lf - rf), nil
	case "*":
		return value.Float(lf * rf), nil
	case "/":
		if rf == 0 {
			return value.Float(math.NaN()), nil
		}
		return value.Float(lf / rf), nil
	case "%":
		if rf == 0 {
			return value.Float(math.NaN()), nil
		}
		return value.Float(math.Mod(lf, rf)), nil
	default:
		return value.Value{}, veltaerr.New(veltaerr.KindUnknown, "unknown arithmetic operator %q", op)
	}
}

func asNumber(v value.Value) (float64, bool) {
	if f, ok := v.AsFloat(); ok {
		return f, true
	}
	if i, ok := v.AsInt(); ok {
		return float64(i), true
	}
	if d, ok := v.AsDecimal(); ok {
		f, _ := d.Float64()
		return f, true
	}
	return 0, false
}

// evalFunc resolves a small built-in function surface (count and string);
// there are no user-defined functions, and any other name is an error.
func evalFunc(e ast.FuncCall, row value.Value, env *Env) (value.Value, error) {
	args := make([]value.Value, len(e.Args))
	for i, a := range e.Args {
		v, err := Eval(a, row, env)
		if err != nil {
			return value.Value{}, err
		}
		args[i] = v
	}
	switch e.Name {
	case "count", "COUNT":
		if len(args) == 1 {
			if arr, ok := args[0].AsArray(); ok {
				return value.Int(int64(len(arr))), nil
			}
		}
		return value.Int(int64(len(args))), nil
	case "string", "STRING":
		if len(args) == 1 {
			return value.Str(args[0].String()), nil
		}
		return value.Str(""), nil
	default:
		return value.Value{}, veltaerr.New(veltaerr.KindUnknown, "unknown function %q", e.Name)
	}
}
