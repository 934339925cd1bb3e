package boltkv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veltadb/veltadb/kv"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBoltSetGetCommit(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)
	tx, err := s.Begin(ctx, true)
	require.NoError(t, err)
	require.NoError(t, tx.Set(ctx, []byte("a"), []byte("1")))
	vs, err := tx.Commit(ctx)
	require.NoError(t, err)
	assert.Equal(t, kv.VSFromUint64(1), vs)

	ro, err := s.Begin(ctx, false)
	require.NoError(t, err)
	v, ok, err := ro.Get(ctx, []byte("a"), nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("1"), v)
	require.NoError(t, ro.Cancel(ctx))
}

func TestBoltSavePointRollback(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)
	tx, _ := s.Begin(ctx, true)
	require.NoError(t, tx.Set(ctx, []byte("a"), []byte("1")))
	require.NoError(t, tx.NewSavePoint())
	require.NoError(t, tx.Set(ctx, []byte("a"), []byte("2")))
	require.NoError(t, tx.RollbackToSavePoint())
	v, ok, _ := tx.Get(ctx, []byte("a"), nil)
	assert.True(t, ok)
	assert.Equal(t, []byte("1"), v)
	require.NoError(t, tx.Cancel(ctx))
}

func TestBoltVersionedRead(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

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
	require.NoError(t, ro.Cancel(ctx))
}

func TestBoltScanRange(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)
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
	require.NoError(t, ro.Cancel(ctx))
}

func TestBoltReopenLock(t *testing.T) {
	dir := t.TempDir()
	s1, err := Open(dir)
	require.NoError(t, err)
	_, err = Open(dir)
	assert.Error(t, err)
	require.NoError(t, s1.Close())
	s2, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s2.Close())
}

func TestBoltCommitOnReadOnlyFails(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)
	ro, _ := s.Begin(ctx, false)
	_, err := ro.Commit(ctx)
	assert.ErrorIs(t, err, kv.ErrTxReadonly)
}
