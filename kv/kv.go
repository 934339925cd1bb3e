// Copyright 2026 The veltadb Authors
// SPDX-License-Identifier: Apache-2.0

// Package kv defines Transactable (§4.1): the single trait every storage
// backend (in-memory, embedded, remote cluster) implements. Keys and values
// are opaque byte slices — the key codec and catalog decide their meaning.
//
// The interface shape (separate RoTx/RwTx-like methods living on one
// Transaction, cursor-free range scans returning slices, a TemporalTx-like
// versioned read extension) is modeled directly on
// erigon-lib's kv.RoDB/RwDB/Tx/RwTx/TemporalTx hierarchy.
package kv

import (
	"bytes"
	"context"
	"encoding/binary"

	"github.com/veltadb/veltadb/veltaerr"
)

// VS is the 128-bit big-endian versionstamp of §3.4/§6: the monotonic
// commit identifier that orders versioned reads and change-feed entries.
type VS [16]byte

// ZeroVS is the smallest possible versionstamp, used as a SINCE 0 bound.
var ZeroVS VS

// VSFromUint64 packs a 64-bit monotonic counter into the low 8 bytes of a
// VS, zeroing the high 8 bytes. Backends that only maintain a 64-bit
// internal commit counter (memkv, boltkv) use this to satisfy the
// 128-bit wire representation without tracking separate batch/order bytes.
func VSFromUint64(v uint64) VS {
	var vs VS
	binary.BigEndian.PutUint64(vs[8:], v)
	return vs
}

// Uint64 returns the low 8 bytes, the counter VSFromUint64 packed in.
func (vs VS) Uint64() uint64 { return binary.BigEndian.Uint64(vs[8:]) }

// Compare orders versionstamps the way their big-endian bytes sort.
func (vs VS) Compare(other VS) int { return bytes.Compare(vs[:], other[:]) }

func (vs VS) Bytes() []byte { return vs[:] }

// Next returns the smallest VS strictly greater than vs, carrying across
// the full 16 bytes. Used to turn an inclusive SINCE bound into the
// exclusive scan start that keys.ChangeFeedKey needs.
func (vs VS) Next() VS {
	out := vs
	for i := len(out) - 1; i >= 0; i-- {
		out[i]++
		if out[i] != 0 {
			break
		}
	}
	return out
}

// VSFromBytes reads a 16-byte big-endian versionstamp back out of b.
func VSFromBytes(b []byte) VS {
	var vs VS
	copy(vs[:], b)
	return vs
}

// KVPair is one (key, value) result from a scan.
type KVPair struct {
	Key   []byte
	Value []byte
}

// VersionedEntry is one result from ScanAllVersions: a key's value as of a
// particular versionstamp, plus whether that version is a tombstone
// (deletion) marker.
type VersionedEntry struct {
	Key          []byte
	Value        []byte
	Versionstamp VS
	Tombstone    bool
}

// Store is the datastore-level handle: it begins transactions and reports
// whether it supports versioned reads. A concrete backend (memkv, boltkv, a
// remote-cluster client) implements Store.
type Store interface {
	// Begin starts a new transaction. write=false yields a read-only
	// snapshot; write=true yields a transaction whose writes become visible
	// to others only after Commit.
	Begin(ctx context.Context, write bool) (Transaction, error)

	// SupportsVersionedReads reports whether Get/Exists/Scan with a
	// version argument and ScanAllVersions are implemented, rather than
	// returning ErrUnsupportedVersionedQueries.
	SupportsVersionedReads() bool

	Close() error
}

// Transaction is the single trait of §4.1. All keys/values are opaque bytes.
type Transaction interface {
	// Get returns the value at key, or (nil, false, nil) if absent. When
	// version is non-nil, the read is as-of that versionstamp; backends
	// without versioned-read support return ErrUnsupportedVersionedQueries.
	Get(ctx context.Context, key []byte, version *VS) ([]byte, bool, error)
	Exists(ctx context.Context, key []byte, version *VS) (bool, error)

	// Set is an unconditional put.
	Set(ctx context.Context, key, val []byte) error
	// Put fails KeyAlreadyExists if key is already present.
	Put(ctx context.Context, key, val []byte) error
	// Putc is a compare-and-set: with checkPresent the current value must
	// equal check; without it the key must be absent; else ConditionNotMet.
	Putc(ctx context.Context, key, val []byte, check []byte, checkPresent bool) error

	Del(ctx context.Context, key []byte) error
	Delc(ctx context.Context, key []byte, check []byte, checkPresent bool) error
	// Clr deletes the whole half-open range [rangeStart, rangeEnd).
	Clr(ctx context.Context, rangeStart, rangeEnd []byte) error
	Clrc(ctx context.Context, rangeStart, rangeEnd []byte, check []byte, checkPresent bool) error

	// Scan returns up to limit pairs in [rangeStart, rangeEnd), skipping the
	// first skip matches, in forward order. limit<=0 means unlimited.
	Scan(ctx context.Context, rangeStart, rangeEnd []byte, limit, skip int, version *VS) ([]KVPair, error)
	Scanr(ctx context.Context, rangeStart, rangeEnd []byte, limit, skip int, version *VS) ([]KVPair, error)
	Keys(ctx context.Context, rangeStart, rangeEnd []byte, limit, skip int, version *VS) ([][]byte, error)
	Keysr(ctx context.Context, rangeStart, rangeEnd []byte, limit, skip int, version *VS) ([][]byte, error)
	Count(ctx context.Context, rangeStart, rangeEnd []byte) (int64, error)

	ScanAllVersions(ctx context.Context, rangeStart, rangeEnd []byte, limit int) ([]VersionedEntry, error)

	NewSavePoint() error
	RollbackToSavePoint() error
	ReleaseLastSavePoint() error

	// Cancel discards every write the transaction made.
	Cancel(ctx context.Context) error
	// Commit makes writes visible. Returns TxReadonly for read-only
	// transactions, TxFinished if already committed/cancelled.
	Commit(ctx context.Context) (Versionstamp VS, err error)

	// ReadOnly reports whether this transaction was opened with write=false.
	ReadOnly() bool
}

var (
	ErrTxFinished                   = veltaerr.New(veltaerr.KindTxFinished, "transaction already committed or cancelled")
	ErrTxReadonly                   = veltaerr.New(veltaerr.KindTxReadonly, "cannot commit a read-only transaction")
	ErrUnsupportedVersionedQueries  = veltaerr.New(veltaerr.KindUnsupportedVersionedQueries, "backend does not support versioned reads")
)

// ErrKeyAlreadyExists builds a KeyAlreadyExists error naming the offending key.
func ErrKeyAlreadyExists(key []byte) error {
	return veltaerr.New(veltaerr.KindKeyAlreadyExists, "key %x already exists", key)
}

// ErrConditionNotMet builds a ConditionNotMet error naming the offending key.
func ErrConditionNotMet(key []byte) error {
	return veltaerr.New(veltaerr.KindConditionNotMet, "compare-and-set condition not met for key %x", key)
}
