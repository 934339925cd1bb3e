package cf

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/veltadb/veltadb/kv"
	"github.com/veltadb/veltadb/kv/memkv"
	"github.com/veltadb/veltadb/value"
)

func TestAppendAndShowChangesGroupsByVersionstamp(t *testing.T) {
	store := memkv.New()
	ctx := context.Background()
	tx, err := store.Begin(ctx, true)
	require.NoError(t, err)

	require.NoError(t, Append(ctx, tx, "test", "test", kv.VSFromUint64(1), Change{
		Table: "person", RecordKey: value.Int(1), Action: Create,
		Before: value.None(), After: value.Str("alice"),
		Timestamp: time.Now().UTC(),
	}))
	require.NoError(t, Append(ctx, tx, "test", "test", kv.VSFromUint64(2), Change{
		Table: "person", RecordKey: value.Int(2), Action: Create,
		Before: value.None(), After: value.Str("bob"),
		Timestamp: time.Now().UTC(),
	}))
	_, err = tx.Commit(ctx)
	require.NoError(t, err)

	tx2, err := store.Begin(ctx, false)
	require.NoError(t, err)
	groups, err := ShowChanges(ctx, tx2, "test", "test", "person", kv.ZeroVS, 0)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	require.Equal(t, kv.VSFromUint64(1), groups[0].Versionstamp)
	require.Equal(t, kv.VSFromUint64(2), groups[1].Versionstamp)
}

func TestShowChangesSinceExcludesEarlierVersionstamps(t *testing.T) {
	store := memkv.New()
	ctx := context.Background()
	tx, err := store.Begin(ctx, true)
	require.NoError(t, err)
	for i := uint64(1); i <= 3; i++ {
		require.NoError(t, Append(ctx, tx, "test", "test", kv.VSFromUint64(i), Change{
			Table: "person", RecordKey: value.Int(int64(i)), Action: Update,
			Before: value.Str("a"), After: value.Str("b"), Timestamp: time.Now().UTC(),
		}))
	}
	_, err = tx.Commit(ctx)
	require.NoError(t, err)

	tx2, err := store.Begin(ctx, false)
	require.NoError(t, err)
	groups, err := ShowChanges(ctx, tx2, "test", "test", "person", kv.VSFromUint64(1), 0)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	require.Equal(t, kv.VSFromUint64(2), groups[0].Versionstamp)
}

func TestGCDeletesEntriesOlderThanRetention(t *testing.T) {
	store := memkv.New()
	ctx := context.Background()
	tx, err := store.Begin(ctx, true)
	require.NoError(t, err)

	old := time.Now().Add(-2 * time.Hour)
	recent := time.Now()
	require.NoError(t, Append(ctx, tx, "test", "test", kv.VSFromUint64(1), Change{
		Table: "person", RecordKey: value.Int(1), Action: Create,
		Before: value.None(), After: value.Str("x"), Timestamp: old,
	}))
	require.NoError(t, Append(ctx, tx, "test", "test", kv.VSFromUint64(2), Change{
		Table: "person", RecordKey: value.Int(2), Action: Create,
		Before: value.None(), After: value.Str("y"), Timestamp: recent,
	}))
	_, err = tx.Commit(ctx)
	require.NoError(t, err)

	tx2, err := store.Begin(ctx, true)
	require.NoError(t, err)
	deleted, err := GC(ctx, tx2, "test", "test", "person", time.Hour, time.Now())
	require.NoError(t, err)
	require.Equal(t, 1, deleted)
	_, err = tx2.Commit(ctx)
	require.NoError(t, err)

	tx3, err := store.Begin(ctx, false)
	require.NoError(t, err)
	groups, err := ShowChanges(ctx, tx3, "test", "test", "person", kv.ZeroVS, 0)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Equal(t, kv.VSFromUint64(2), groups[0].Versionstamp)
}
