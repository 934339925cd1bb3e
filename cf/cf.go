// Copyright 2026 The veltadb Authors
// SPDX-License-Identifier: Apache-2.0

// Package cf implements the change-feed log of §4.7: an append-only,
// versionstamp-keyed entry per mutating commit on a changefeed-enabled
// table, a retention-window GC pass, and the grouped SHOW CHANGES read
// path. Entries are zstd-compressed (klauspost/compress), matching the
// domain-stack wiring table's change-feed payload-compression slot.
package cf

import (
	"context"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/veltadb/veltadb/keycodec"
	"github.com/veltadb/veltadb/keys"
	"github.com/veltadb/veltadb/kv"
	"github.com/veltadb/veltadb/value"
	"github.com/veltadb/veltadb/veltaerr"
)

// Action is the kind of mutation a change-feed entry records.
type Action string

const (
	Create Action = "CREATE"
	Update Action = "UPDATE"
	Delete Action = "DELETE"
)

// Change is one change-feed entry (§4.7's `{versionstamp, change}`).
type Change struct {
	Versionstamp kv.VS
	Timestamp    time.Time
	Table        string
	RecordKey    value.Value
	Action       Action
	Before       value.Value // None() if not applicable (CREATE)
	After        value.Value // None() if not applicable (DELETE)
}

var (
	sharedEncoder *zstd.Encoder
	sharedDecoder *zstd.Decoder
	codecOnce     sync.Once
)

func codecs() (*zstd.Encoder, *zstd.Decoder) {
	codecOnce.Do(func() {
		sharedEncoder, _ = zstd.NewWriter(nil)
		sharedDecoder, _ = zstd.NewReader(nil)
	})
	return sharedEncoder, sharedDecoder
}

func encodeChange(c Change) []byte {
	obj := value.NewObject()
	obj.Set("ts", value.Datetime(c.Timestamp))
	obj.Set("table", value.Str(c.Table))
	obj.Set("key", c.RecordKey)
	obj.Set("action", value.Str(string(c.Action)))
	obj.Set("before", c.Before)
	obj.Set("after", c.After)
	raw := keycodec.Encode(nil, value.Obj(obj))
	enc, _ := codecs()
	return enc.EncodeAll(raw, nil)
}

func decodeChange(ns, db string, versionstamp kv.VS, compressed []byte) (Change, error) {
	_, dec := codecs()
	raw, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		return Change{}, veltaerr.Wrap(veltaerr.KindCorruption, err, "change-feed: zstd decompress")
	}
	v, _, err := keycodec.Decode(raw)
	if err != nil {
		return Change{}, veltaerr.Wrap(veltaerr.KindCorruption, err, "change-feed: decode entry")
	}
	obj, ok := v.AsObject()
	if !ok {
		return Change{}, veltaerr.New(veltaerr.KindCorruption, "change-feed entry is not an object")
	}
	ts, _ := obj.Get("ts")
	table, _ := obj.Get("table")
	key, _ := obj.Get("key")
	action, _ := obj.Get("action")
	before, _ := obj.Get("before")
	after, _ := obj.Get("after")
	tableStr, _ := table.AsString()
	actionStr, _ := action.AsString()
	dt, _ := ts.AsDatetime()
	return Change{
		Versionstamp: versionstamp,
		Timestamp:    dt,
		Table:        tableStr,
		RecordKey:    key,
		Action:       Action(actionStr),
		Before:       before,
		After:        after,
	}, nil
}

// Append writes one change-feed entry under versionstamp. Backends that
// only assign a versionstamp at Commit (kv.Transaction.Commit's return
// value) cannot record the entry in the same transaction as the mutation
// it describes; callers in that position append in an immediately
// following transaction, trading strict atomicity for knowing the real
// versionstamp (see core.Datastore.appendChangeFeed).
func Append(ctx context.Context, tx kv.Transaction, ns, db string, versionstamp kv.VS, c Change) error {
	c.Versionstamp = versionstamp
	if c.Timestamp.IsZero() {
		c.Timestamp = time.Now().UTC()
	}
	key := keys.ChangeFeedKey(ns, db, c.Table, versionstamp)
	return tx.Set(ctx, key, encodeChange(c))
}

// Group is every change sharing one versionstamp (§4.7's "grouping
// entries sharing a versionstamp").
type Group struct {
	Versionstamp kv.VS
	Changes      []Change
}

// ShowChanges scans the forward range (since, +inf) up to limit groups,
// implementing `SHOW CHANGES FOR TABLE t SINCE v`.
func ShowChanges(ctx context.Context, tx kv.Transaction, ns, db, table string, since kv.VS, limit int) ([]Group, error) {
	prefix := keys.ChangeFeedPrefix(ns, db, table)
	start := keys.ChangeFeedKey(ns, db, table, since.Next())
	end := keys.PrefixEnd(prefix)

	pairs, err := tx.Scan(ctx, start, end, 0, 0, nil)
	if err != nil {
		return nil, err
	}

	var groups []Group
	for _, p := range pairs {
		vs, ok := versionstampFromKey(prefix, p.Key)
		if !ok {
			continue
		}
		change, err := decodeChange(ns, db, vs, p.Value)
		if err != nil {
			return nil, err
		}
		if len(groups) > 0 && groups[len(groups)-1].Versionstamp == vs {
			groups[len(groups)-1].Changes = append(groups[len(groups)-1].Changes, change)
			continue
		}
		if limit > 0 && len(groups) >= limit {
			break
		}
		groups = append(groups, Group{Versionstamp: vs, Changes: []Change{change}})
	}
	return groups, nil
}

func versionstampFromKey(prefix, key []byte) (kv.VS, bool) {
	if len(key) != len(prefix)+16 {
		return kv.ZeroVS, false
	}
	return kv.VSFromBytes(key[len(prefix):]), true
}

// GC deletes every entry older than the table's retention window,
// scanning from the start of the table's change-feed forward and
// stopping at the first entry still within the window (entries are
// written in versionstamp, hence roughly chronological, order).
func GC(ctx context.Context, tx kv.Transaction, ns, db, table string, retention time.Duration, now time.Time) (int, error) {
	prefix := keys.ChangeFeedPrefix(ns, db, table)
	end := keys.PrefixEnd(prefix)
	cutoff := now.Add(-retention)

	pairs, err := tx.Scan(ctx, prefix, end, 0, 0, nil)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, p := range pairs {
		vs, _ := versionstampFromKey(prefix, p.Key)
		change, err := decodeChange(ns, db, vs, p.Value)
		if err != nil {
			return deleted, err
		}
		if change.Timestamp.After(cutoff) {
			break
		}
		if err := tx.Del(ctx, p.Key); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}
