// Copyright 2026 The veltadb Authors
// SPDX-License-Identifier: Apache-2.0

// Package planner turns a parsed SelectStmt plus the catalog into a tree
// of exec.Operators (§4.4): index selection (equality/range/compound
// prefix; IN conjuncts stay in the residual filter), projection rules,
// and safe LIMIT/START pushdown.
//
// Full-text (@@) and KNN (<K|>) predicates bind to a live idx/ft.Index or
// idx/mtree.Index through the Registry passed in by the caller (core owns
// the registry and populates it as DEFINE INDEX/ingestion happen); when no
// such live index is registered for the predicate's field, the predicate
// is left in the residual filter and exec.Eval's truthy fallback applies
// instead of an index-accelerated iterator.
package planner

import (
	"context"

	"github.com/veltadb/veltadb/catalog"
	"github.com/veltadb/veltadb/exec"
	"github.com/veltadb/veltadb/idx/btree"
	"github.com/veltadb/veltadb/idx/ft"
	"github.com/veltadb/veltadb/idx/mtree"
	"github.com/veltadb/veltadb/keycodec"
	"github.com/veltadb/veltadb/keys"
	"github.com/veltadb/veltadb/kv"
	"github.com/veltadb/veltadb/syn/ast"
	"github.com/veltadb/veltadb/value"
	"github.com/veltadb/veltadb/veltaerr"
)

// Registry resolves the live full-text/KNN index instances backing a
// catalog IndexDef, keyed by "table/indexname". core populates it.
type Registry struct {
	FullText map[string]*ft.Index
	Vector   map[string]*mtree.Index
}

func NewRegistry() *Registry {
	return &Registry{FullText: map[string]*ft.Index{}, Vector: map[string]*mtree.Index{}}
}

// Plan builds the physical operator tree for a single-table SELECT.
func Plan(ctx context.Context, stmt ast.SelectStmt, cat *catalog.Catalog, reg *Registry, tx kv.Transaction, ns, db string, env *exec.Env) (exec.Operator, error) {
	table, pointKey, err := resolveTarget(stmt.What)
	if err != nil {
		return nil, err
	}

	conjuncts := flattenAnd(stmt.Where)
	var base exec.Operator
	var usedByIndex []int

	if pointKey != nil {
		base = &pointLookupOperator{tx: tx, ns: ns, db: db, table: table, key: *pointKey}
	} else {
		indexes := cat.IndexesFor(table)
		matched, consumed := matchIndex(ns, db, table, indexes, conjuncts, reg)
		if matched != nil {
			base = &indexScanOperator{iter: matched, tx: tx, ns: ns, db: db, table: table}
			usedByIndex = consumed
		} else {
			base = exec.NewScan(tx, ns, db, table)
		}
	}

	residual := removeIndices(conjuncts, usedByIndex)
	var op exec.Operator = base
	if pred := rebuildAnd(residual); pred != nil {
		op = &exec.FilterOperator{Child: op, Predicate: pred, Env: env}
	}

	if len(stmt.OrderBy) > 0 {
		op = &exec.SortOperator{Child: op, OrderBy: stmt.OrderBy}
	}

	start, _ := intLiteral(stmt.Start)
	limit, hasLimit := intLiteral(stmt.Limit)
	if start > 0 || hasLimit {
		op = &exec.LimitStartOperator{Child: op, Start: start, Limit: limit}
	}

	if !stmt.Live {
		op = &exec.ProjectOperator{
			Child:     op,
			Fields:    stmt.Fields,
			Omit:      stmt.OmitPaths,
			ValueOnly: stmt.ValueOnly,
			Env:       env,
		}
	}
	return op, nil
}

func resolveTarget(what []ast.Expr) (table string, pointKey *value.Value, err error) {
	if len(what) != 1 {
		return "", nil, veltaerr.New(veltaerr.KindUnknown, "planner: multi-target FROM not supported")
	}
	switch e := what[0].(type) {
	case ast.Idiom:
		if len(e.Path) == 1 && e.Path[0].Index < 0 {
			return e.Path[0].Field, nil, nil
		}
	case ast.RecordIDExpr:
		if lit, ok := e.Key.(ast.Literal); ok {
			v := lit.Value
			return e.Table, &v, nil
		}
		return e.Table, nil, nil
	}
	return "", nil, veltaerr.New(veltaerr.KindUnknown, "planner: unsupported FROM target")
}

func intLiteral(e ast.Expr) (int, bool) {
	if e == nil {
		return 0, false
	}
	lit, ok := e.(ast.Literal)
	if !ok {
		return 0, false
	}
	n, ok := lit.Value.AsInt()
	return int(n), ok
}

// flattenAnd decomposes a WHERE tree into its top-level AND conjuncts.
func flattenAnd(e ast.Expr) []ast.Expr {
	if e == nil {
		return nil
	}
	if b, ok := e.(ast.BinaryOp); ok && b.Op == "AND" {
		return append(flattenAnd(b.Left), flattenAnd(b.Right)...)
	}
	return []ast.Expr{e}
}

func rebuildAnd(exprs []ast.Expr) ast.Expr {
	var out ast.Expr
	for _, e := range exprs {
		if out == nil {
			out = e
			continue
		}
		out = ast.BinaryOp{Op: "AND", Left: out, Right: e}
	}
	return out
}

func removeIndices(all []ast.Expr, used []int) []ast.Expr {
	if len(used) == 0 {
		return all
	}
	skip := map[int]bool{}
	for _, i := range used {
		skip[i] = true
	}
	var out []ast.Expr
	for i, e := range all {
		if !skip[i] {
			out = append(out, e)
		}
	}
	return out
}

func fieldName(e ast.Expr) (string, bool) {
	id, ok := e.(ast.Idiom)
	if !ok || len(id.Path) != 1 {
		return "", false
	}
	return id.Path[0].Field, true
}

func literalValue(e ast.Expr) (value.Value, bool) {
	lit, ok := e.(ast.Literal)
	if !ok {
		return value.Value{}, false
	}
	return lit.Value, true
}

// matchIndex implements §4.4's index selection pipeline: equality,
// range, full-text and KNN binding, with compound indexes matching a
// leading run of equalities plus one trailing range. IN conjuncts are
// not matched.
func matchIndex(ns, db, table string, indexes []*catalog.IndexDef, conjuncts []ast.Expr, reg *Registry) (btree.Iterator, []int) {
	var best btree.Iterator
	var bestUsed []int
	bestCols := 0

	for _, ix := range indexes {
		switch ix.Kind {
		case ast.IndexSearch:
			if reg == nil {
				continue
			}
			if iter, used := matchFullText(ns, db, table, ix, conjuncts, reg); iter != nil && len(used) > bestCols {
				best, bestUsed, bestCols = iter, used, len(used)
			}
			continue
		case ast.IndexMTree:
			if reg == nil {
				continue
			}
			if iter, used := matchKnn(table, ix, conjuncts, reg); iter != nil && len(used) > bestCols {
				best, bestUsed, bestCols = iter, used, len(used)
			}
			continue
		}

		var eqVals []value.Value
		var used []int
		for _, col := range ix.Columns {
			idx, val, ok := findEquality(conjuncts, used, col)
			if !ok {
				break
			}
			eqVals = append(eqVals, val)
			used = append(used, idx)
		}

		if len(eqVals) == len(ix.Columns) && len(eqVals) > 0 {
			iter := btree.NewEqualIterator(ns, db, table, ix.Name, table, eqVals)
			if len(used) > bestCols {
				best, bestUsed, bestCols = iter, used, len(used)
			}
			continue
		}

		if len(eqVals) < len(ix.Columns) {
			nextCol := ix.Columns[len(eqVals)]
			if idx, rng, ok := findRange(conjuncts, used, nextCol); ok {
				iter := btree.NewCompoundRangeIterator(ns, db, table, ix.Name, table, eqVals, rng)
				total := append(append([]int{}, used...), idx)
				if len(total) > bestCols {
					best, bestUsed, bestCols = iter, total, len(total)
				}
			} else if len(eqVals) > 0 {
				iter := btree.NewCompoundEqualIterator(ns, db, table, ix.Name, table, eqVals)
				if len(used) > bestCols {
					best, bestUsed, bestCols = iter, used, len(used)
				}
			}
		}
	}
	return best, bestUsed
}

func findEquality(conjuncts []ast.Expr, already []int, col string) (int, value.Value, bool) {
	skip := map[int]bool{}
	for _, i := range already {
		skip[i] = true
	}
	for i, c := range conjuncts {
		if skip[i] {
			continue
		}
		b, ok := c.(ast.BinaryOp)
		if !ok || b.Op != "=" {
			continue
		}
		name, ok := fieldName(b.Left)
		if !ok || name != col {
			continue
		}
		val, ok := literalValue(b.Right)
		if !ok {
			continue
		}
		return i, val, true
	}
	return 0, value.Value{}, false
}

func findRange(conjuncts []ast.Expr, already []int, col string) (int, value.Range, bool) {
	skip := map[int]bool{}
	for _, i := range already {
		skip[i] = true
	}
	for i, c := range conjuncts {
		if skip[i] {
			continue
		}
		b, ok := c.(ast.BinaryOp)
		if !ok {
			continue
		}
		name, ok := fieldName(b.Left)
		if !ok || name != col {
			continue
		}
		val, ok := literalValue(b.Right)
		if !ok {
			continue
		}
		switch b.Op {
		case "<":
			return i, value.Range{Start: value.Bound{Kind: value.Unbounded}, End: value.Bound{Kind: value.Excluded, Value: val}}, true
		case "<=":
			return i, value.Range{Start: value.Bound{Kind: value.Unbounded}, End: value.Bound{Kind: value.Included, Value: val}}, true
		case ">":
			return i, value.Range{Start: value.Bound{Kind: value.Excluded, Value: val}, End: value.Bound{Kind: value.Unbounded}}, true
		case ">=":
			return i, value.Range{Start: value.Bound{Kind: value.Included, Value: val}, End: value.Bound{Kind: value.Unbounded}}, true
		}
	}
	return 0, value.Range{}, false
}

func matchFullText(ns, db, table string, ix *catalog.IndexDef, conjuncts []ast.Expr, reg *Registry) (btree.Iterator, []int) {
	ftIndex, ok := reg.FullText[table+"/"+ix.Name]
	if !ok {
		return nil, nil
	}
	for i, c := range conjuncts {
		b, ok := c.(ast.BinaryOp)
		if !ok || b.Op != "@@" {
			continue
		}
		name, ok := fieldName(b.Left)
		if !ok || len(ix.Columns) != 1 || name != ix.Columns[0] {
			continue
		}
		query, ok := literalValue(b.Right)
		if !ok {
			continue
		}
		results := ftIndex.Search(query.String())
		return &staticRecordIDIterator{table: table, docs: results}, []int{i}
	}
	return nil, nil
}

func matchKnn(table string, ix *catalog.IndexDef, conjuncts []ast.Expr, reg *Registry) (btree.Iterator, []int) {
	vecIndex, ok := reg.Vector[table+"/"+ix.Name]
	if !ok {
		return nil, nil
	}
	for i, c := range conjuncts {
		b, ok := c.(ast.BinaryOp)
		if !ok || b.Op != "<K|>" {
			continue
		}
		name, ok := fieldName(b.Left)
		if !ok || len(ix.Columns) != 1 || name != ix.Columns[0] {
			continue
		}
		arr, ok := b.Right.(ast.Literal)
		if !ok {
			continue
		}
		items, ok := arr.Value.AsArray()
		if !ok {
			continue
		}
		vec := make([]float64, len(items))
		for j, it := range items {
			f, _ := it.AsFloat()
			vec[j] = f
		}
		results, err := vecIndex.Search(vec, b.KnnK)
		if err != nil {
			return nil, nil
		}
		return &staticKnnIterator{table: table, candidates: results}, []int{i}
	}
	return nil, nil
}

// staticRecordIDIterator wraps an already-computed result list (full-text
// search results) as a btree.Iterator so it composes with the rest of the
// index-scan pipeline.
type staticRecordIDIterator struct {
	table string
	docs  []ft.ScoredDoc
	pos   int
}

func (s *staticRecordIDIterator) NextBatch(ctx context.Context, tx kv.Transaction, limit int) ([]*value.RecordID, error) {
	if s.pos >= len(s.docs) {
		return nil, nil
	}
	end := len(s.docs)
	if limit > 0 && s.pos+limit < end {
		end = s.pos + limit
	}
	out := make([]*value.RecordID, 0, end-s.pos)
	for _, d := range s.docs[s.pos:end] {
		out = append(out, value.NewRecordID(s.table, value.Str(d.DocKey)))
	}
	s.pos = end
	return out, nil
}

type staticKnnIterator struct {
	table      string
	candidates []mtree.Candidate
	pos        int
}

func (s *staticKnnIterator) NextBatch(ctx context.Context, tx kv.Transaction, limit int) ([]*value.RecordID, error) {
	if s.pos >= len(s.candidates) {
		return nil, nil
	}
	end := len(s.candidates)
	if limit > 0 && s.pos+limit < end {
		end = s.pos + limit
	}
	out := make([]*value.RecordID, 0, end-s.pos)
	for _, c := range s.candidates[s.pos:end] {
		out = append(out, value.NewRecordID(s.table, value.Str(c.DocKey)))
	}
	s.pos = end
	return out, nil
}

// indexScanOperator drives a btree.Iterator to completion, resolving each
// yielded RecordID to its full row via a primary-key Get.
type indexScanOperator struct {
	iter             btree.Iterator
	tx               kv.Transaction
	ns, db, table    string
}

func (s *indexScanOperator) Next(ctx context.Context) (exec.Batch, bool, error) {
	rids, err := s.iter.NextBatch(ctx, s.tx, exec.BatchSize)
	if err != nil {
		return nil, false, err
	}
	if len(rids) == 0 {
		return nil, false, nil
	}
	batch := make(exec.Batch, 0, len(rids))
	for _, rid := range rids {
		key := keys.PrimaryKey(s.ns, s.db, s.table, rid.Key)
		raw, found, err := s.tx.Get(ctx, key, nil)
		if err != nil {
			return nil, false, err
		}
		if !found {
			continue
		}
		row, _, err := keycodec.Decode(raw)
		if err != nil {
			return nil, false, veltaerr.Wrap(veltaerr.KindCorruption, err, "index scan: decode resolved row")
		}
		batch = append(batch, row)
	}
	return batch, true, nil
}

// pointLookupOperator resolves a single `tb:key` RecordID target.
type pointLookupOperator struct {
	tx            kv.Transaction
	ns, db, table string
	key           value.Value
	done          bool
}

func (p *pointLookupOperator) Next(ctx context.Context) (exec.Batch, bool, error) {
	if p.done {
		return nil, false, nil
	}
	p.done = true
	raw, found, err := p.tx.Get(ctx, keys.PrimaryKey(p.ns, p.db, p.table, p.key), nil)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}
	row, _, err := keycodec.Decode(raw)
	if err != nil {
		return nil, false, veltaerr.Wrap(veltaerr.KindCorruption, err, "point lookup: decode row")
	}
	return exec.Batch{row}, true, nil
}
