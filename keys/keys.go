// Copyright 2026 The veltadb Authors
// SPDX-License-Identifier: Apache-2.0

// Package keys builds the composite byte-string keys every other layer
// (exec, idx, cf) addresses the KV store with, per §4.2/§6's wire-exact
// layout: /ns/{ns}/db/{db}/tb/{tb}/id/{key}, .../ix/{ix}/val/{cols}/id/{key},
// and .../cf/{versionstamp}. Segments are escaped with keycodec's
// null-escape scheme so prefix scans over a namespace/table/index remain
// well-defined regardless of what the segment names themselves contain.
package keys

import (
	"github.com/veltadb/veltadb/keycodec"
	"github.com/veltadb/veltadb/kv"
	"github.com/veltadb/veltadb/value"
)

func seg(dst []byte, s string) []byte {
	return keycodec.Encode(dst, value.Str(s))
}

// TablePrefix returns the prefix under which every primary record of a
// table lives: /ns/{ns}/db/{db}/tb/{tb}/id/
func TablePrefix(ns, db, tb string) []byte {
	k := seg(nil, ns)
	k = seg(k, db)
	k = seg(k, tb)
	k = seg(k, "id")
	return k
}

// PrimaryKey is the full key for one record.
func PrimaryKey(ns, db, tb string, recordKey value.Value) []byte {
	k := TablePrefix(ns, db, tb)
	return keycodec.Encode(k, recordKey)
}

// PrimaryKeyEnd is the exclusive upper bound of TablePrefix's range, used
// for a full-table Scan.
func PrimaryKeyEnd(ns, db, tb string) []byte {
	return PrefixEnd(TablePrefix(ns, db, tb))
}

// IndexPrefix returns the prefix under which one index's entries live:
// /ns/{ns}/db/{db}/tb/{tb}/ix/{ix}/val/
func IndexPrefix(ns, db, tb, ix string) []byte {
	k := seg(nil, ns)
	k = seg(k, db)
	k = seg(k, tb)
	k = seg(k, "ix")
	k = seg(k, ix)
	k = seg(k, "val")
	return k
}

// IndexValuePrefix appends the encoded column values (in index-column
// order) to an index prefix, forming the prefix a compound-equality or
// compound-range scan narrows within.
func IndexValuePrefix(ns, db, tb, ix string, cols []value.Value) []byte {
	k := IndexPrefix(ns, db, tb, ix)
	for _, c := range cols {
		k = keycodec.Encode(k, c)
	}
	return k
}

// IndexKey is the full key for one non-unique index entry: the column
// values followed by /id/{recordkey}. Unique indexes omit the /id/
// suffix — uniqueness is enforced by a Put (KeyAlreadyExists on collision).
func IndexKey(ns, db, tb, ix string, cols []value.Value, recordKey value.Value, unique bool) []byte {
	k := IndexValuePrefix(ns, db, tb, ix, cols)
	if unique {
		return k
	}
	k = seg(k, "id")
	return keycodec.Encode(k, recordKey)
}

// ChangeFeedPrefix returns the prefix under which a table's change-feed
// log lives: /ns/{ns}/db/{db}/tb/{tb}/cf/
func ChangeFeedPrefix(ns, db, tb string) []byte {
	k := seg(nil, ns)
	k = seg(k, db)
	k = seg(k, tb)
	k = seg(k, "cf")
	return k
}

// ChangeFeedKey appends the 128-bit big-endian versionstamp so the change
// log scans in versionstamp order.
func ChangeFeedKey(ns, db, tb string, versionstamp kv.VS) []byte {
	k := ChangeFeedPrefix(ns, db, tb)
	return append(k, versionstamp.Bytes()...)
}

// PrefixEnd returns the smallest byte string greater than every string
// having prefix p, used as an exclusive scan upper bound. Also doubles as
// the "skip every entry equal to or starting with p" jump used by the
// index range iterators (idx/btree) to implement exclusive bounds.
func PrefixEnd(p []byte) []byte {
	end := append([]byte(nil), p...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] != 0xFF {
			end[i]++
			return end[:i+1]
		}
	}
	return append(end, 0xFF)
}
