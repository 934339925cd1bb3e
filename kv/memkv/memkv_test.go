package memkv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veltadb/veltadb/kv"
	"github.com/veltadb/veltadb/veltaerr"
)

func TestSetGetCommit(t *testing.T) {
	ctx := context.Background()
	s := New()
	tx, err := s.Begin(ctx, true)
	require.NoError(t, err)
	require.NoError(t, tx.Set(ctx, []byte("a"), []byte("1")))
	v, ok, err := tx.Get(ctx, []byte("a"), nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("1"), v)
	vs, err := tx.Commit(ctx)
	require.NoError(t, err)
	assert.Equal(t, kv.VSFromUint64(1), vs)

	ro, err := s.Begin(ctx, false)
	require.NoError(t, err)
	v2, ok, err := ro.Get(ctx, []byte("a"), nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("1"), v2)
}

func TestPutFailsOnDuplicate(t *testing.T) {
	ctx := context.Background()
	s := New()
	tx, _ := s.Begin(ctx, true)
	require.NoError(t, tx.Put(ctx, []byte("k"), []byte("v")))
	err := tx.Put(ctx, []byte("k"), []byte("v2"))
	require.True(t, veltaerr.Is(err, veltaerr.KindKeyAlreadyExists))
}

func TestPutcConditionNotMet(t *testing.T) {
	ctx := context.Background()
	s := New()
	tx, _ := s.Begin(ctx, true)
	err := tx.Putc(ctx, []byte("k"), []byte("v"), []byte("expected"), true)
	require.True(t, veltaerr.Is(err, veltaerr.KindConditionNotMet))
	require.NoError(t, tx.Putc(ctx, []byte("k"), []byte("v"), nil, false))
}

func TestSavePointRollback(t *testing.T) {
	ctx := context.Background()
	s := New()
	tx, _ := s.Begin(ctx, true)
	require.NoError(t, tx.Set(ctx, []byte("a"), []byte("1")))

	require.NoError(t, tx.NewSavePoint())
	require.NoError(t, tx.Set(ctx, []byte("a"), []byte("2")))
	require.NoError(t, tx.Set(ctx, []byte("b"), []byte("new")))
	v, _, _ := tx.Get(ctx, []byte("a"), nil)
	assert.Equal(t, []byte("2"), v)

	require.NoError(t, tx.RollbackToSavePoint())
	v, ok, _ := tx.Get(ctx, []byte("a"), nil)
	assert.True(t, ok)
	assert.Equal(t, []byte("1"), v)
	_, ok, _ = tx.Get(ctx, []byte("b"), nil)
	assert.False(t, ok)
}

func TestSavePointRelease(t *testing.T) {
	ctx := context.Background()
	s := New()
	tx, _ := s.Begin(ctx, true)
	require.NoError(t, tx.Set(ctx, []byte("a"), []byte("1")))
	require.NoError(t, tx.NewSavePoint())
	require.NoError(t, tx.Set(ctx, []byte("a"), []byte("2")))
	require.NoError(t, tx.ReleaseLastSavePoint())
	v, _, _ := tx.Get(ctx, []byte("a"), nil)
	assert.Equal(t, []byte("2"), v)
}

func TestScanRange(t *testing.T) {
	ctx := context.Background()
	s := New()
	tx, _ := s.Begin(ctx, true)
	for _, k := range []string{"a", "b", "c", "d"} {
		require.NoError(t, tx.Set(ctx, []byte(k), []byte(k)))
	}
	_, err := tx.Commit(ctx)
	require.NoError(t, err)

	ro, _ := s.Begin(ctx, false)
	pairs, err := ro.Scan(ctx, []byte("b"), []byte("d"), 0, 0, nil)
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	assert.Equal(t, []byte("b"), pairs[0].Key)
	assert.Equal(t, []byte("c"), pairs[1].Key)
}

func TestVersionedReadAsOf(t *testing.T) {
	ctx := context.Background()
	s := New()

	tx1, _ := s.Begin(ctx, true)
	require.NoError(t, tx1.Set(ctx, []byte("k"), []byte("v1")))
	vs1, err := tx1.Commit(ctx)
	require.NoError(t, err)

	tx2, _ := s.Begin(ctx, true)
	require.NoError(t, tx2.Set(ctx, []byte("k"), []byte("v2")))
	_, err = tx2.Commit(ctx)
	require.NoError(t, err)

	ro, _ := s.Begin(ctx, false)
	v, ok, err := ro.Get(ctx, []byte("k"), &vs1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v1"), v)
}

func TestCommitOnReadOnlyFails(t *testing.T) {
	ctx := context.Background()
	s := New()
	ro, _ := s.Begin(ctx, false)
	_, err := ro.Commit(ctx)
	assert.ErrorIs(t, err, kv.ErrTxReadonly)
}

func TestFinishedTxRejectsOps(t *testing.T) {
	ctx := context.Background()
	s := New()
	tx, _ := s.Begin(ctx, true)
	require.NoError(t, tx.Cancel(ctx))
	err := tx.Set(ctx, []byte("a"), []byte("1"))
	assert.ErrorIs(t, err, kv.ErrTxFinished)
}
