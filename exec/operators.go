// Copyright 2026 The veltadb Authors
// SPDX-License-Identifier: Apache-2.0

package exec

import (
	"context"
	"sort"

	"github.com/veltadb/veltadb/keycodec"
	"github.com/veltadb/veltadb/keys"
	"github.com/veltadb/veltadb/kv"
	"github.com/veltadb/veltadb/syn/ast"
	"github.com/veltadb/veltadb/value"
	"github.com/veltadb/veltadb/veltaerr"
)

// BatchSize is the fixed streaming granularity of §4.5.
const BatchSize = 1000

// Batch is one streamed chunk of rows.
type Batch = []value.Value

// Operator is a pull-based physical operator: each Next call returns the
// next batch (nil, false, nil at exhaustion) or an error. Cooperative
// cancellation is observed by checking ctx at every call, the batch
// boundary the design calls for.
type Operator interface {
	Next(ctx context.Context) (Batch, bool, error)
}

func checkCancelled(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return veltaerr.New(veltaerr.KindCancelled, "operation cancelled")
	default:
		return nil
	}
}

// ScanOperator streams every record of one table, decoding each stored
// payload back into a Value as written (including its stored "id" field).
type ScanOperator struct {
	Tx           kv.Transaction
	NS, DB, Tbl  string
	skip         int
	lastKey      []byte
	exhausted    bool
}

func NewScan(tx kv.Transaction, ns, db, tbl string) *ScanOperator {
	return &ScanOperator{Tx: tx, NS: ns, DB: db, Tbl: tbl}
}

func (s *ScanOperator) Next(ctx context.Context) (Batch, bool, error) {
	if err := checkCancelled(ctx); err != nil {
		return nil, false, err
	}
	if s.exhausted {
		return nil, false, nil
	}
	start := keys.TablePrefix(s.NS, s.DB, s.Tbl)
	if s.lastKey != nil {
		start = nextKey(s.lastKey)
	}
	end := keys.PrimaryKeyEnd(s.NS, s.DB, s.Tbl)
	pairs, err := s.Tx.Scan(ctx, start, end, BatchSize, 0, nil)
	if err != nil {
		return nil, false, err
	}
	if len(pairs) == 0 {
		s.exhausted = true
		return nil, false, nil
	}
	if len(pairs) < BatchSize {
		s.exhausted = true
	}
	s.lastKey = pairs[len(pairs)-1].Key
	batch := make(Batch, 0, len(pairs))
	for _, p := range pairs {
		row, _, err := keycodec.Decode(p.Value)
		if err != nil {
			return nil, false, veltaerr.Wrap(veltaerr.KindCorruption, err, "scan: decode stored row")
		}
		batch = append(batch, row)
	}
	return batch, true, nil
}

func nextKey(k []byte) []byte {
	n := append([]byte(nil), k...)
	return append(n, 0x00)
}

// RecordIDsOperator streams a fixed list of already-resolved record
// objects (used by Index*Iterators in idx/btree, which resolve keys
// first and hand rows back here for the rest of the pipeline).
type RecordIDsOperator struct {
	Rows []value.Value
	pos  int
}

func (r *RecordIDsOperator) Next(ctx context.Context) (Batch, bool, error) {
	if err := checkCancelled(ctx); err != nil {
		return nil, false, err
	}
	if r.pos >= len(r.Rows) {
		return nil, false, nil
	}
	end := r.pos + BatchSize
	if end > len(r.Rows) {
		end = len(r.Rows)
	}
	batch := r.Rows[r.pos:end]
	r.pos = end
	return batch, true, nil
}

// FilterOperator drops rows where Predicate does not evaluate truthy.
type FilterOperator struct {
	Child     Operator
	Predicate ast.Expr
	Env       *Env
}

func (f *FilterOperator) Next(ctx context.Context) (Batch, bool, error) {
	for {
		if err := checkCancelled(ctx); err != nil {
			return nil, false, err
		}
		batch, ok, err := f.Child.Next(ctx)
		if err != nil || !ok {
			return nil, ok, err
		}
		var out Batch
		for _, row := range batch {
			v, err := Eval(f.Predicate, row, f.Env)
			if err != nil {
				return nil, false, err
			}
			if v.IsTruthy() {
				out = append(out, row)
			}
		}
		if len(out) > 0 {
			return out, true, nil
		}
		// this batch filtered to nothing; pull the next one rather than
		// returning an empty batch, so callers can treat ok=true as
		// "at least one row".
	}
}

// ComputeOperator pre-evaluates a shared sub-expression once per row,
// writing it into the row under a synthetic field so downstream Project
// stages can reference it without re-evaluating.
type ComputeOperator struct {
	Child Operator
	Field string
	Expr  ast.Expr
	Env   *Env
}

func (c *ComputeOperator) Next(ctx context.Context) (Batch, bool, error) {
	batch, ok, err := c.Child.Next(ctx)
	if err != nil || !ok {
		return nil, ok, err
	}
	out := make(Batch, len(batch))
	for i, row := range batch {
		v, err := Eval(c.Expr, row, c.Env)
		if err != nil {
			return nil, false, err
		}
		obj, _ := row.AsObject()
		clone := obj.Clone()
		clone.Set(c.Field, v)
		out[i] = value.Obj(clone)
	}
	return out, true, nil
}

// ProjectOperator builds output rows via the output-path tree described in
// §4.4: SELECT * passthrough, aliased/dotted projections, OMIT, and
// VALUE-collapse to a bare scalar.
type ProjectOperator struct {
	Child     Operator
	Fields    []ast.OutputField // nil means SELECT *
	Omit      []value.Idiom
	ValueOnly bool
	Env       *Env
}

func (pr *ProjectOperator) Next(ctx context.Context) (Batch, bool, error) {
	batch, ok, err := pr.Child.Next(ctx)
	if err != nil || !ok {
		return nil, ok, err
	}
	out := make(Batch, len(batch))
	for i, row := range batch {
		projected, err := pr.projectRow(row)
		if err != nil {
			return nil, false, err
		}
		out[i] = projected
	}
	return out, true, nil
}

func (pr *ProjectOperator) projectRow(row value.Value) (value.Value, error) {
	if pr.ValueOnly {
		if len(pr.Fields) != 1 {
			return value.Value{}, veltaerr.New(veltaerr.KindUnknown, "VALUE projection requires exactly one field")
		}
		return Eval(pr.Fields[0].Expr, row, pr.Env)
	}
	if len(pr.Fields) == 0 {
		result := row
		if len(pr.Omit) > 0 {
			obj, ok := row.AsObject()
			if ok {
				clone := obj.Clone()
				for _, path := range pr.Omit {
					if len(path) == 1 {
						clone.Delete(path[0].Field)
					}
				}
				result = value.Obj(clone)
			}
		}
		return result, nil
	}
	out := value.NewObject()
	for _, f := range pr.Fields {
		v, err := Eval(f.Expr, row, pr.Env)
		if err != nil {
			return value.Value{}, err
		}
		if len(f.Alias) == 0 {
			continue
		}
		value.Set(out, f.Alias, v)
	}
	return value.Obj(out), nil
}

// SortOperator buffers its entire child output, sorts it, then streams
// the result back out in fixed batches. NULLS (None/Null) sort first,
// matching value.Compare's variant-discriminant ordering.
type SortOperator struct {
	Child   Operator
	OrderBy []ast.OrderField
	rows    []value.Value
	pos     int
	primed  bool
}

func (s *SortOperator) prime(ctx context.Context) error {
	for {
		batch, ok, err := s.Child.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		s.rows = append(s.rows, batch...)
	}
	sort.SliceStable(s.rows, func(i, j int) bool {
		for _, of := range s.OrderBy {
			a := value.Get(s.rows[i], of.Field)
			b := value.Get(s.rows[j], of.Field)
			c := value.Compare(a, b)
			if c == 0 {
				continue
			}
			if of.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	s.primed = true
	return nil
}

func (s *SortOperator) Next(ctx context.Context) (Batch, bool, error) {
	if err := checkCancelled(ctx); err != nil {
		return nil, false, err
	}
	if !s.primed {
		if err := s.prime(ctx); err != nil {
			return nil, false, err
		}
	}
	if s.pos >= len(s.rows) {
		return nil, false, nil
	}
	end := s.pos + BatchSize
	if end > len(s.rows) {
		end = len(s.rows)
	}
	batch := s.rows[s.pos:end]
	s.pos = end
	return batch, true, nil
}

// LimitStartOperator applies START (skip) then LIMIT (cap) to its child's
// stream without buffering beyond one batch at a time.
type LimitStartOperator struct {
	Child      Operator
	Start      int
	Limit      int // <=0 means unlimited
	skipped    int
	emitted    int
}

func (l *LimitStartOperator) Next(ctx context.Context) (Batch, bool, error) {
	if err := checkCancelled(ctx); err != nil {
		return nil, false, err
	}
	if l.Limit > 0 && l.emitted >= l.Limit {
		return nil, false, nil
	}
	for {
		batch, ok, err := l.Child.Next(ctx)
		if err != nil || !ok {
			return nil, ok, err
		}
		var out Batch
		for _, row := range batch {
			if l.skipped < l.Start {
				l.skipped++
				continue
			}
			if l.Limit > 0 && l.emitted >= l.Limit {
				break
			}
			out = append(out, row)
			l.emitted++
		}
		if len(out) > 0 {
			return out, true, nil
		}
		if l.Limit > 0 && l.emitted >= l.Limit {
			return nil, false, nil
		}
	}
}

// Collect drains an operator into one slice; used by callers (core) that
// need the full result rather than a streaming handle.
func Collect(ctx context.Context, op Operator) ([]value.Value, error) {
	var all []value.Value
	for {
		batch, ok, err := op.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return all, nil
		}
		all = append(all, batch...)
	}
}
