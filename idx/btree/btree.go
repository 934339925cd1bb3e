// Copyright 2026 The veltadb Authors
// SPDX-License-Identifier: Apache-2.0

// Package btree implements the B-tree index iterators of §4.6.1: equality
// (unique and non-unique), inclusive/exclusive range, compound prefix
// variants of both, and a de-duplicating union for IN/membership
// predicates. Every iterator walks the same keyspace layout the keys
// package builds and yields RecordID batches; the executor resolves full
// rows with a separate primary-key Get.
package btree

import (
	"context"

	"github.com/veltadb/veltadb/keycodec"
	"github.com/veltadb/veltadb/keys"
	"github.com/veltadb/veltadb/kv"
	"github.com/veltadb/veltadb/value"
	"github.com/veltadb/veltadb/veltaerr"
)

// Iterator is the shape every index access path exposes: next_batch(tx,
// limit) -> Vec<RecordId> from §4.6.1, capped so a pushed-down LIMIT also
// caps storage-level work.
type Iterator interface {
	NextBatch(ctx context.Context, tx kv.Transaction, limit int) ([]*value.RecordID, error)
}

func decodeRecordID(table string, raw []byte) (*value.RecordID, error) {
	key, rest, err := keycodec.Decode(raw)
	if err != nil {
		return nil, veltaerr.Wrap(veltaerr.KindIndexCorruption, err, "decode index entry value")
	}
	if len(rest) != 0 {
		return nil, veltaerr.New(veltaerr.KindIndexCorruption, "trailing bytes after index entry value")
	}
	return value.NewRecordID(table, key), nil
}

// prefixIterator scans a fixed [start, end) key range and decodes each
// entry's value (the encoded record key) into a RecordID. It underlies
// equality, range and compound variants alike — they differ only in how
// start/end are computed.
type prefixIterator struct {
	Table      string
	start, end []byte
	cursor     []byte
	done       bool
}

func (p *prefixIterator) NextBatch(ctx context.Context, tx kv.Transaction, limit int) ([]*value.RecordID, error) {
	if p.done {
		return nil, nil
	}
	begin := p.start
	if p.cursor != nil {
		begin = append(append([]byte(nil), p.cursor...), 0x00)
	}
	pairs, err := tx.Scan(ctx, begin, p.end, limit, 0, nil)
	if err != nil {
		return nil, err
	}
	if len(pairs) == 0 || (limit > 0 && len(pairs) < limit) {
		p.done = true
	}
	if len(pairs) == 0 {
		return nil, nil
	}
	p.cursor = pairs[len(pairs)-1].Key
	out := make([]*value.RecordID, 0, len(pairs))
	for _, pair := range pairs {
		rid, err := decodeRecordID(p.Table, pair.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, rid)
	}
	return out, nil
}

// NewEqualIterator handles both IndexEqualIterator and
// UniqueEqualIterator (§4.6.1): a unique index has at most one matching
// entry, but the prefix scan is identical either way — uniqueness only
// changes expected cardinality, not the access path.
func NewEqualIterator(ns, db, tb, ix string, table string, cols []value.Value) Iterator {
	prefix := keys.IndexValuePrefix(ns, db, tb, ix, cols)
	return &prefixIterator{Table: table, start: prefix, end: keys.PrefixEnd(prefix)}
}

// NewCompoundEqualIterator is NewEqualIterator generalized to a leading
// run of equality columns on a compound index (§4.4 rule 2).
func NewCompoundEqualIterator(ns, db, tb, ix, table string, cols []value.Value) Iterator {
	return NewEqualIterator(ns, db, tb, ix, table, cols)
}

// rangeBounds computes the [start, end) key pair for a range over one
// trailing column, given the already-fixed prefix of equality columns.
// Exclusive bounds are implemented by jumping past every key sharing the
// boundary value's encoded prefix (keys.PrefixEnd), which has the same
// effect as "filter out the first key equal to the boundary" (§4.6.1)
// without needing to decode and compare each scanned key.
func rangeBounds(eqPrefix []byte, r value.Range) (start, end []byte) {
	switch r.Start.Kind {
	case value.Unbounded:
		start = eqPrefix
	case value.Included:
		start = keycodec.Encode(append([]byte(nil), eqPrefix...), r.Start.Value)
	case value.Excluded:
		start = keys.PrefixEnd(keycodec.Encode(append([]byte(nil), eqPrefix...), r.Start.Value))
	}
	switch r.End.Kind {
	case value.Unbounded:
		end = keys.PrefixEnd(eqPrefix)
	case value.Included:
		end = keys.PrefixEnd(keycodec.Encode(append([]byte(nil), eqPrefix...), r.End.Value))
	case value.Excluded:
		end = keycodec.Encode(append([]byte(nil), eqPrefix...), r.End.Value)
	}
	return start, end
}

// NewRangeIterator is IndexRangeIterator (§4.6.1) on a single-column index.
func NewRangeIterator(ns, db, tb, ix, table string, r value.Range) Iterator {
	prefix := keys.IndexPrefix(ns, db, tb, ix)
	start, end := rangeBounds(prefix, r)
	return &prefixIterator{Table: table, start: start, end: end}
}

// NewCompoundRangeIterator builds the range over the column immediately
// following a prefix of fixed equality columns (§4.4 rule 2, §4.6.1).
func NewCompoundRangeIterator(ns, db, tb, ix, table string, eqCols []value.Value, r value.Range) Iterator {
	prefix := keys.IndexValuePrefix(ns, db, tb, ix, eqCols)
	start, end := rangeBounds(prefix, r)
	return &prefixIterator{Table: table, start: start, end: end}
}

// UnionIterator merges several child iterators, de-duplicating by record
// id (§4.6.1, used for IN/membership predicates). Children are drained
// one at a time rather than interleaved: simpler, and since IN lists are
// small in practice this does not meaningfully change total scan work.
type UnionIterator struct {
	children []Iterator
	seen     map[string]struct{}
	idx      int
}

func NewUnion(children ...Iterator) *UnionIterator {
	return &UnionIterator{children: children, seen: map[string]struct{}{}}
}

func (u *UnionIterator) NextBatch(ctx context.Context, tx kv.Transaction, limit int) ([]*value.RecordID, error) {
	var out []*value.RecordID
	for u.idx < len(u.children) {
		batch, err := u.children[u.idx].NextBatch(ctx, tx, limit)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			u.idx++
			continue
		}
		for _, rid := range batch {
			key := rid.String()
			if _, dup := u.seen[key]; dup {
				continue
			}
			u.seen[key] = struct{}{}
			out = append(out, rid)
		}
		if limit > 0 && len(out) >= limit {
			return out[:limit], nil
		}
		return out, nil
	}
	return out, nil
}
