// Copyright 2026 The veltadb Authors
// SPDX-License-Identifier: Apache-2.0

// Package memkv is the in-memory kv.Store backend: an ordered key space
// backed by google/btree, with snapshot isolation implemented by
// copy-on-write of the btree (cheap: btree.Clone is O(1), pages copy
// lazily), versioned history retained per key for ScanAllVersions.
package memkv

import (
	"bytes"
	"context"
	"sync"

	"github.com/google/btree"

	"github.com/veltadb/veltadb/kv"
	"github.com/veltadb/veltadb/kv/savepoint"
)

const btreeDegree = 32

type item struct {
	key []byte
	val []byte
}

func (a item) Less(b btree.Item) bool { return bytes.Compare(a.key, b.(item).key) < 0 }

// versionRecord is one historical write to a key.
type versionRecord struct {
	versionstamp uint64
	value        []byte
	tombstone    bool
}

// Store is the in-memory backend. It single-handedly owns the committed
// key space and per-key version history for the process lifetime of the
// Datastore that created it (§3.5).
type Store struct {
	mu       sync.Mutex
	tree     *btree.BTree
	versions map[string][]versionRecord
	nextVS   uint64
}

func New() *Store {
	return &Store{tree: btree.New(btreeDegree), versions: map[string][]versionRecord{}}
}

func (s *Store) SupportsVersionedReads() bool { return true }

func (s *Store) Close() error { return nil }

func (s *Store) Begin(ctx context.Context, write bool) (kv.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.tree.Clone()
	return &txn{
		store:    s,
		snapshot: snap,
		write:    write,
		writes:   map[string]*item{}, // nil value-pointer = tombstone
		sp:       savepoint.New(),
	}, nil
}

type txn struct {
	store     *Store
	snapshot  *btree.BTree
	write     bool
	writes    map[string]*item // staged, uncommitted writes overlaid atop snapshot
	sp        *savepoint.Stack
	finished  bool
}

func (t *txn) checkOpen() error {
	if t.finished {
		return kv.ErrTxFinished
	}
	return nil
}

// lookup resolves a key through the staged-writes overlay, falling back to
// the snapshot if unstaged.
func (t *txn) lookup(key []byte) ([]byte, bool) {
	if it, staged := t.writes[string(key)]; staged {
		if it == nil {
			return nil, false
		}
		return it.val, true
	}
	found := t.snapshot.Get(item{key: key})
	if found == nil {
		return nil, false
	}
	return found.(item).val, true
}

func (t *txn) Get(ctx context.Context, key []byte, version *kv.VS) ([]byte, bool, error) {
	if err := t.checkOpen(); err != nil {
		return nil, false, err
	}
	if version != nil {
		return t.store.getAsOf(key, version.Uint64())
	}
	v, ok := t.lookup(key)
	return v, ok, nil
}

func (t *txn) Exists(ctx context.Context, key []byte, version *kv.VS) (bool, error) {
	_, ok, err := t.Get(ctx, key, version)
	return ok, err
}

func (t *txn) stage(key, val []byte, tombstone bool) {
	prevVal, prevPresent := t.lookup(key)
	if t.sp.Active() {
		if prevPresent {
			t.sp.Record(string(key), append([]byte(nil), prevVal...), true)
		} else {
			t.sp.Record(string(key), nil, false)
		}
	}
	if tombstone {
		t.writes[string(key)] = nil
	} else {
		t.writes[string(key)] = &item{key: append([]byte(nil), key...), val: append([]byte(nil), val...)}
	}
}

func (t *txn) Set(ctx context.Context, key, val []byte) error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	t.stage(key, val, false)
	return nil
}

func (t *txn) Put(ctx context.Context, key, val []byte) error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	if _, ok := t.lookup(key); ok {
		return kv.ErrKeyAlreadyExists(key)
	}
	t.stage(key, val, false)
	return nil
}

func (t *txn) Putc(ctx context.Context, key, val []byte, check []byte, checkPresent bool) error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	cur, ok := t.lookup(key)
	if ok != checkPresent || (checkPresent && !bytes.Equal(cur, check)) {
		return kv.ErrConditionNotMet(key)
	}
	t.stage(key, val, false)
	return nil
}

func (t *txn) Del(ctx context.Context, key []byte) error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	t.stage(key, nil, true)
	return nil
}

func (t *txn) Delc(ctx context.Context, key []byte, check []byte, checkPresent bool) error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	cur, ok := t.lookup(key)
	if ok != checkPresent || (checkPresent && !bytes.Equal(cur, check)) {
		return kv.ErrConditionNotMet(key)
	}
	t.stage(key, nil, true)
	return nil
}

func (t *txn) Clr(ctx context.Context, rangeStart, rangeEnd []byte) error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	keys, err := t.Keys(ctx, rangeStart, rangeEnd, 0, 0, nil)
	if err != nil {
		return err
	}
	for _, k := range keys {
		t.stage(k, nil, true)
	}
	return nil
}

func (t *txn) Clrc(ctx context.Context, rangeStart, rangeEnd []byte, check []byte, checkPresent bool) error {
	return t.Clr(ctx, rangeStart, rangeEnd)
}

func (t *txn) inRangeKeys(rangeStart, rangeEnd []byte) []string {
	seen := map[string]bool{}
	var keys []string
	visit := func(k []byte) {
		ks := string(k)
		if seen[ks] {
			return
		}
		seen[ks] = true
		if len(rangeStart) > 0 && bytes.Compare(k, rangeStart) < 0 {
			return
		}
		if len(rangeEnd) > 0 && bytes.Compare(k, rangeEnd) >= 0 {
			return
		}
		keys = append(keys, ks)
	}
	t.snapshot.Ascend(func(bi btree.Item) bool {
		visit(bi.(item).key)
		return true
	})
	for ks := range t.writes {
		visit([]byte(ks))
	}
	return keys
}

func (t *txn) Scan(ctx context.Context, rangeStart, rangeEnd []byte, limit, skip int, version *kv.VS) ([]kv.KVPair, error) {
	if err := t.checkOpen(); err != nil {
		return nil, err
	}
	if version != nil {
		return t.store.scanAsOf(rangeStart, rangeEnd, limit, skip, version.Uint64(), false)
	}
	keys := t.inRangeKeys(rangeStart, rangeEnd)
	sortStrings(keys)
	return t.materialize(keys, limit, skip)
}

func (t *txn) Scanr(ctx context.Context, rangeStart, rangeEnd []byte, limit, skip int, version *kv.VS) ([]kv.KVPair, error) {
	if err := t.checkOpen(); err != nil {
		return nil, err
	}
	if version != nil {
		return t.store.scanAsOf(rangeStart, rangeEnd, limit, skip, version.Uint64(), true)
	}
	keys := t.inRangeKeys(rangeStart, rangeEnd)
	sortStringsDesc(keys)
	return t.materialize(keys, limit, skip)
}

func (t *txn) materialize(keys []string, limit, skip int) ([]kv.KVPair, error) {
	var out []kv.KVPair
	skipped := 0
	for _, ks := range keys {
		v, ok := t.lookup([]byte(ks))
		if !ok {
			continue
		}
		if skipped < skip {
			skipped++
			continue
		}
		out = append(out, kv.KVPair{Key: []byte(ks), Value: v})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (t *txn) Keys(ctx context.Context, rangeStart, rangeEnd []byte, limit, skip int, version *kv.VS) ([][]byte, error) {
	pairs, err := t.Scan(ctx, rangeStart, rangeEnd, limit, skip, version)
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(pairs))
	for i, p := range pairs {
		out[i] = p.Key
	}
	return out, nil
}

func (t *txn) Keysr(ctx context.Context, rangeStart, rangeEnd []byte, limit, skip int, version *kv.VS) ([][]byte, error) {
	pairs, err := t.Scanr(ctx, rangeStart, rangeEnd, limit, skip, version)
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(pairs))
	for i, p := range pairs {
		out[i] = p.Key
	}
	return out, nil
}

func (t *txn) Count(ctx context.Context, rangeStart, rangeEnd []byte) (int64, error) {
	if err := t.checkOpen(); err != nil {
		return 0, err
	}
	keys := t.inRangeKeys(rangeStart, rangeEnd)
	var n int64
	for _, ks := range keys {
		if _, ok := t.lookup([]byte(ks)); ok {
			n++
		}
	}
	return n, nil
}

func (t *txn) ScanAllVersions(ctx context.Context, rangeStart, rangeEnd []byte, limit int) ([]kv.VersionedEntry, error) {
	if err := t.checkOpen(); err != nil {
		return nil, err
	}
	return t.store.scanAllVersions(rangeStart, rangeEnd, limit)
}

func (t *txn) NewSavePoint() error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	t.sp.Push()
	return nil
}

func (t *txn) RollbackToSavePoint() error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	return t.sp.RollbackTo(func(pi savepoint.PreImage) {
		if pi.Present {
			t.writes[pi.Key] = &item{key: []byte(pi.Key), val: pi.Value}
		} else {
			t.writes[pi.Key] = nil
		}
	})
}

func (t *txn) ReleaseLastSavePoint() error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	return t.sp.ReleaseLast()
}

func (t *txn) Cancel(ctx context.Context) error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	t.finished = true
	return nil
}

func (t *txn) Commit(ctx context.Context) (kv.VS, error) {
	if err := t.checkOpen(); err != nil {
		return kv.ZeroVS, err
	}
	if !t.write {
		return kv.ZeroVS, kv.ErrTxReadonly
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	t.store.nextVS++
	vs := t.store.nextVS
	for ks, it := range t.writes {
		key := []byte(ks)
		if it == nil {
			t.store.tree.Delete(item{key: key})
			t.store.versions[ks] = append(t.store.versions[ks], versionRecord{versionstamp: vs, tombstone: true})
			continue
		}
		t.store.tree.ReplaceOrInsert(*it)
		t.store.versions[ks] = append(t.store.versions[ks], versionRecord{versionstamp: vs, value: append([]byte(nil), it.val...)})
	}
	t.finished = true
	return kv.VSFromUint64(vs), nil
}

func (t *txn) ReadOnly() bool { return !t.write }

func (s *Store) getAsOf(key []byte, version uint64) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs := s.versions[string(key)]
	var best *versionRecord
	for i := range recs {
		if recs[i].versionstamp <= version {
			best = &recs[i]
		}
	}
	if best == nil || best.tombstone {
		return nil, false, nil
	}
	return best.value, true, nil
}

func (s *Store) scanAsOf(rangeStart, rangeEnd []byte, limit, skip int, version uint64, reverse bool) ([]kv.KVPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for ks := range s.versions {
		k := []byte(ks)
		if len(rangeStart) > 0 && bytes.Compare(k, rangeStart) < 0 {
			continue
		}
		if len(rangeEnd) > 0 && bytes.Compare(k, rangeEnd) >= 0 {
			continue
		}
		keys = append(keys, ks)
	}
	if reverse {
		sortStringsDesc(keys)
	} else {
		sortStrings(keys)
	}
	var out []kv.KVPair
	skipped := 0
	for _, ks := range keys {
		v, ok, _ := s.getAsOf([]byte(ks), version)
		if !ok {
			continue
		}
		if skipped < skip {
			skipped++
			continue
		}
		out = append(out, kv.KVPair{Key: []byte(ks), Value: v})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) scanAllVersions(rangeStart, rangeEnd []byte, limit int) ([]kv.VersionedEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []kv.VersionedEntry
	var keys []string
	for ks := range s.versions {
		k := []byte(ks)
		if len(rangeStart) > 0 && bytes.Compare(k, rangeStart) < 0 {
			continue
		}
		if len(rangeEnd) > 0 && bytes.Compare(k, rangeEnd) >= 0 {
			continue
		}
		keys = append(keys, ks)
	}
	sortStrings(keys)
	for _, ks := range keys {
		for _, rec := range s.versions[ks] {
			out = append(out, kv.VersionedEntry{
				Key: []byte(ks), Value: rec.value, Versionstamp: kv.VSFromUint64(rec.versionstamp), Tombstone: rec.tombstone,
			})
			if limit > 0 && len(out) >= limit {
				return out, nil
			}
		}
	}
	return out, nil
}

func sortStrings(s []string) {
	// insertion sort is fine: ranges scanned are expected to be small
	// (bounded by index prefixes); avoids pulling in sort for this hot path
	// while keeping the package import list minimal.
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j] < s[j-1]; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}

func sortStringsDesc(s []string) {
	sortStrings(s)
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
