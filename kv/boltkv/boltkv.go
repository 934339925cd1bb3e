// Copyright 2026 The veltadb Authors
// SPDX-License-Identifier: Apache-2.0

// Package boltkv is the embedded, on-disk kv.Store backend: a single
// bbolt.DB file holding one bucket ("d") for live data and one ("h") for
// per-key version history, guarded by a directory flock so two processes
// never open the same data directory concurrently.
package boltkv

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	bolt "go.etcd.io/bbolt"

	"github.com/veltadb/veltadb/kv"
	"github.com/veltadb/veltadb/kv/savepoint"
	"github.com/veltadb/veltadb/veltaerr"
)

var dataBucket = []byte("d")
var historyBucket = []byte("h")
var metaBucket = []byte("m")
var nextVSKey = []byte("nextvs")

// Store is the embedded backend. One Store owns one data directory for the
// lifetime of the process that opened it.
type Store struct {
	db   *bolt.DB
	lock *flock.Flock
	path string
}

// Open opens (creating if necessary) a bbolt database at dir/data.db,
// guarded by a flock lock file at dir/LOCK so a second process attempting
// to open the same directory fails fast rather than corrupting state.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, veltaerr.Wrap(veltaerr.KindIO, err, "boltkv: create data dir %s", dir)
	}
	lock := flock.New(filepath.Join(dir, "LOCK"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, veltaerr.Wrap(veltaerr.KindIO, err, "boltkv: lock data dir %s", dir)
	}
	if !locked {
		return nil, veltaerr.New(veltaerr.KindIO, "boltkv: data dir %s is locked by another process", dir)
	}
	db, err := bolt.Open(filepath.Join(dir, "data.db"), 0o644, nil)
	if err != nil {
		_ = lock.Unlock()
		return nil, veltaerr.Wrap(veltaerr.KindIO, err, "boltkv: open bbolt db")
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{dataBucket, historyBucket, metaBucket} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, veltaerr.Wrap(veltaerr.KindIO, err, "boltkv: init buckets")
	}
	return &Store{db: db, lock: lock, path: dir}, nil
}

func (s *Store) SupportsVersionedReads() bool { return true }

func (s *Store) Close() error {
	err := s.db.Close()
	_ = s.lock.Unlock()
	return err
}

func (s *Store) nextVersionstamp(btx *bolt.Tx) (uint64, error) {
	mb := btx.Bucket(metaBucket)
	cur := mb.Get(nextVSKey)
	var n uint64
	if cur != nil {
		n = binary.BigEndian.Uint64(cur)
	}
	n++
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, n)
	if err := mb.Put(nextVSKey, buf); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) Begin(ctx context.Context, write bool) (kv.Transaction, error) {
	btx, err := s.db.Begin(write)
	if err != nil {
		return nil, veltaerr.Wrap(veltaerr.KindIO, err, "boltkv: begin transaction")
	}
	return &txn{store: s, btx: btx, write: write, sp: savepoint.New()}, nil
}

type txn struct {
	store    *Store
	btx      *bolt.Tx
	write    bool
	sp       *savepoint.Stack
	finished bool
}

func (t *txn) checkOpen() error {
	if t.finished {
		return kv.ErrTxFinished
	}
	return nil
}

// historyKey packs (key, versionstamp-big-endian) so a bucket-range scan
// over a key's history prefix yields versions in ascending versionstamp
// order.
func historyKey(key []byte, vs uint64) []byte {
	buf := make([]byte, len(key)+1+8)
	copy(buf, key)
	buf[len(key)] = 0x00
	binary.BigEndian.PutUint64(buf[len(key)+1:], vs)
	return buf
}

const tombstoneMarker = 0x01
const valueMarker = 0x00

func (t *txn) Get(ctx context.Context, key []byte, version *kv.VS) ([]byte, bool, error) {
	if err := t.checkOpen(); err != nil {
		return nil, false, err
	}
	if version != nil {
		return t.getAsOf(key, version.Uint64())
	}
	v := t.btx.Bucket(dataBucket).Get(key)
	if v == nil {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (t *txn) Exists(ctx context.Context, key []byte, version *kv.VS) (bool, error) {
	_, ok, err := t.Get(ctx, key, version)
	return ok, err
}

func (t *txn) getAsOf(key []byte, version uint64) ([]byte, bool, error) {
	hb := t.btx.Bucket(historyBucket)
	c := hb.Cursor()
	prefix := append(append([]byte(nil), key...), 0x00)
	var bestVal []byte
	var bestFound bool
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		vs := binary.BigEndian.Uint64(k[len(prefix):])
		if vs > version {
			break
		}
		bestFound = true
		if len(v) > 0 && v[0] == tombstoneMarker {
			bestVal = nil
		} else {
			bestVal = append([]byte(nil), v[1:]...)
		}
	}
	if !bestFound || bestVal == nil {
		return nil, false, nil
	}
	return bestVal, true, nil
}

func (t *txn) recordPreImage(key []byte) {
	if !t.sp.Active() {
		return
	}
	cur := t.btx.Bucket(dataBucket).Get(key)
	if cur == nil {
		t.sp.Record(string(key), nil, false)
	} else {
		t.sp.Record(string(key), append([]byte(nil), cur...), true)
	}
}

func (t *txn) writeValue(key, val []byte) error {
	t.recordPreImage(key)
	if err := t.btx.Bucket(dataBucket).Put(key, val); err != nil {
		return veltaerr.Wrap(veltaerr.KindIO, err, "boltkv: put")
	}
	vs, err := t.store.nextVersionstampPeek(t.btx)
	if err != nil {
		return err
	}
	histVal := append([]byte{valueMarker}, val...)
	return t.btx.Bucket(historyBucket).Put(historyKey(key, vs), histVal)
}

// nextVersionstampPeek assigns a provisional versionstamp for history
// rows written mid-transaction; Commit finalizes the counter once more so
// every write in a transaction shares the same commit versionstamp.
func (s *Store) nextVersionstampPeek(btx *bolt.Tx) (uint64, error) {
	mb := btx.Bucket(metaBucket)
	cur := mb.Get(nextVSKey)
	var n uint64
	if cur != nil {
		n = binary.BigEndian.Uint64(cur)
	}
	return n + 1, nil
}

func (t *txn) Set(ctx context.Context, key, val []byte) error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	return t.writeValue(key, val)
}

func (t *txn) Put(ctx context.Context, key, val []byte) error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	if v := t.btx.Bucket(dataBucket).Get(key); v != nil {
		return kv.ErrKeyAlreadyExists(key)
	}
	return t.writeValue(key, val)
}

func (t *txn) Putc(ctx context.Context, key, val []byte, check []byte, checkPresent bool) error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	cur := t.btx.Bucket(dataBucket).Get(key)
	if (cur != nil) != checkPresent || (checkPresent && !bytes.Equal(cur, check)) {
		return kv.ErrConditionNotMet(key)
	}
	return t.writeValue(key, val)
}

func (t *txn) deleteKey(key []byte) error {
	t.recordPreImage(key)
	if err := t.btx.Bucket(dataBucket).Delete(key); err != nil {
		return veltaerr.Wrap(veltaerr.KindIO, err, "boltkv: delete")
	}
	vs, err := t.store.nextVersionstampPeek(t.btx)
	if err != nil {
		return err
	}
	return t.btx.Bucket(historyBucket).Put(historyKey(key, vs), []byte{tombstoneMarker})
}

func (t *txn) Del(ctx context.Context, key []byte) error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	return t.deleteKey(key)
}

func (t *txn) Delc(ctx context.Context, key []byte, check []byte, checkPresent bool) error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	cur := t.btx.Bucket(dataBucket).Get(key)
	if (cur != nil) != checkPresent || (checkPresent && !bytes.Equal(cur, check)) {
		return kv.ErrConditionNotMet(key)
	}
	return t.deleteKey(key)
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
		if err := t.deleteKey(k); err != nil {
			return err
		}
	}
	return nil
}

func (t *txn) Clrc(ctx context.Context, rangeStart, rangeEnd []byte, check []byte, checkPresent bool) error {
	return t.Clr(ctx, rangeStart, rangeEnd)
}

func (t *txn) Scan(ctx context.Context, rangeStart, rangeEnd []byte, limit, skip int, version *kv.VS) ([]kv.KVPair, error) {
	if err := t.checkOpen(); err != nil {
		return nil, err
	}
	if version != nil {
		return t.scanAsOf(rangeStart, rangeEnd, limit, skip, version.Uint64(), false)
	}
	c := t.btx.Bucket(dataBucket).Cursor()
	var out []kv.KVPair
	i := 0
	for k, v := seekStart(c, rangeStart); k != nil && withinEnd(k, rangeEnd); k, v = c.Next() {
		if i < skip {
			i++
			continue
		}
		out = append(out, kv.KVPair{Key: append([]byte(nil), k...), Value: append([]byte(nil), v...)})
		i++
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (t *txn) Scanr(ctx context.Context, rangeStart, rangeEnd []byte, limit, skip int, version *kv.VS) ([]kv.KVPair, error) {
	if err := t.checkOpen(); err != nil {
		return nil, err
	}
	if version != nil {
		return t.scanAsOf(rangeStart, rangeEnd, limit, skip, version.Uint64(), true)
	}
	c := t.btx.Bucket(dataBucket).Cursor()
	var all []kv.KVPair
	for k, v := seekStart(c, rangeStart); k != nil && withinEnd(k, rangeEnd); k, v = c.Next() {
		all = append(all, kv.KVPair{Key: append([]byte(nil), k...), Value: append([]byte(nil), v...)})
	}
	var out []kv.KVPair
	for i := len(all) - 1 - skip; i >= 0; i-- {
		out = append(out, all[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func seekStart(c *bolt.Cursor, rangeStart []byte) ([]byte, []byte) {
	if len(rangeStart) == 0 {
		return c.First()
	}
	return c.Seek(rangeStart)
}

func withinEnd(k, rangeEnd []byte) bool {
	if len(rangeEnd) == 0 {
		return true
	}
	return bytes.Compare(k, rangeEnd) < 0
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
	c := t.btx.Bucket(dataBucket).Cursor()
	var n int64
	for k, _ := seekStart(c, rangeStart); k != nil && withinEnd(k, rangeEnd); k, _ = c.Next() {
		n++
	}
	return n, nil
}

func (t *txn) scanAsOf(rangeStart, rangeEnd []byte, limit, skip int, version uint64, reverse bool) ([]kv.KVPair, error) {
	c := t.btx.Bucket(dataBucket).Cursor()
	var keys [][]byte
	for k, _ := seekStart(c, rangeStart); k != nil && withinEnd(k, rangeEnd); k, _ = c.Next() {
		keys = append(keys, append([]byte(nil), k...))
	}
	hb := t.btx.Bucket(historyBucket)
	_ = hb
	var out []kv.KVPair
	collect := func(k []byte) {
		v, ok, _ := t.getAsOf(k, version)
		if ok {
			out = append(out, kv.KVPair{Key: k, Value: v})
		}
	}
	if reverse {
		for i := len(keys) - 1; i >= 0; i-- {
			collect(keys[i])
		}
	} else {
		for _, k := range keys {
			collect(k)
		}
	}
	if skip > 0 {
		if skip >= len(out) {
			return nil, nil
		}
		out = out[skip:]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (t *txn) ScanAllVersions(ctx context.Context, rangeStart, rangeEnd []byte, limit int) ([]kv.VersionedEntry, error) {
	if err := t.checkOpen(); err != nil {
		return nil, err
	}
	hb := t.btx.Bucket(historyBucket)
	c := hb.Cursor()
	var out []kv.VersionedEntry
	for k, v := c.First(); k != nil; k, v = c.Next() {
		sep := bytes.LastIndexByte(k, 0x00)
		if sep < 0 {
			continue
		}
		origKey := k[:sep]
		if len(rangeStart) > 0 && bytes.Compare(origKey, rangeStart) < 0 {
			continue
		}
		if len(rangeEnd) > 0 && bytes.Compare(origKey, rangeEnd) >= 0 {
			continue
		}
		vs := binary.BigEndian.Uint64(k[sep+1:])
		tomb := len(v) > 0 && v[0] == tombstoneMarker
		var val []byte
		if !tomb {
			val = append([]byte(nil), v[1:]...)
		}
		out = append(out, kv.VersionedEntry{Key: append([]byte(nil), origKey...), Value: val, Versionstamp: kv.VSFromUint64(vs), Tombstone: tomb})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
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
		db := t.btx.Bucket(dataBucket)
		if pi.Present {
			_ = db.Put([]byte(pi.Key), pi.Value)
		} else {
			_ = db.Delete([]byte(pi.Key))
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
	return t.btx.Rollback()
}

func (t *txn) Commit(ctx context.Context) (kv.VS, error) {
	if err := t.checkOpen(); err != nil {
		return kv.ZeroVS, err
	}
	if !t.write {
		_ = t.btx.Rollback()
		t.finished = true
		return kv.ZeroVS, kv.ErrTxReadonly
	}
	vs, err := t.store.nextVersionstamp(t.btx)
	if err != nil {
		_ = t.btx.Rollback()
		t.finished = true
		return kv.ZeroVS, veltaerr.Wrap(veltaerr.KindIO, err, "boltkv: assign versionstamp")
	}
	t.finished = true
	if err := t.btx.Commit(); err != nil {
		return kv.ZeroVS, veltaerr.Wrap(veltaerr.KindIO, err, "boltkv: commit")
	}
	return kv.VSFromUint64(vs), nil
}

func (t *txn) ReadOnly() bool { return !t.write }
