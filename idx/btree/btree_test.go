package btree

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/veltadb/veltadb/keycodec"
	"github.com/veltadb/veltadb/keys"
	"github.com/veltadb/veltadb/kv/memkv"
	"github.com/veltadb/veltadb/value"
)

func seedIndex(t *testing.T) *memkv.Store {
	t.Helper()
	store := memkv.New()
	ctx := context.Background()
	tx, err := store.Begin(ctx, true)
	require.NoError(t, err)

	rows := []struct {
		age int64
		id  int64
	}{{20, 1}, {25, 2}, {25, 3}, {30, 4}, {35, 5}}
	for _, r := range rows {
		k := keys.IndexKey("t", "d", "person", "age_ix", []value.Value{value.Int(r.age)}, value.Int(r.id), false)
		v := keycodec.Encode(nil, value.Int(r.id))
		require.NoError(t, tx.Set(ctx, k, v))
	}
	_, err = tx.Commit(ctx)
	require.NoError(t, err)
	return store
}

func TestEqualIteratorFindsAllMatches(t *testing.T) {
	store := seedIndex(t)
	ctx := context.Background()
	tx, err := store.Begin(ctx, false)
	require.NoError(t, err)

	it := NewEqualIterator("t", "d", "person", "age_ix", "person", []value.Value{value.Int(25)})
	rids, err := it.NextBatch(ctx, tx, 100)
	require.NoError(t, err)
	require.Len(t, rids, 2)
}

func TestRangeIteratorInclusiveBounds(t *testing.T) {
	store := seedIndex(t)
	ctx := context.Background()
	tx, err := store.Begin(ctx, false)
	require.NoError(t, err)

	r := value.Range{
		Start: value.Bound{Kind: value.Included, Value: value.Int(25)},
		End:   value.Bound{Kind: value.Included, Value: value.Int(30)},
	}
	it := NewRangeIterator("t", "d", "person", "age_ix", "person", r)
	rids, err := it.NextBatch(ctx, tx, 100)
	require.NoError(t, err)
	require.Len(t, rids, 3) // ages 25,25,30
}

func TestRangeIteratorExclusiveLowerBoundSkipsBoundary(t *testing.T) {
	store := seedIndex(t)
	ctx := context.Background()
	tx, err := store.Begin(ctx, false)
	require.NoError(t, err)

	r := value.Range{
		Start: value.Bound{Kind: value.Excluded, Value: value.Int(25)},
		End:   value.Bound{Kind: value.Unbounded},
	}
	it := NewRangeIterator("t", "d", "person", "age_ix", "person", r)
	rids, err := it.NextBatch(ctx, tx, 100)
	require.NoError(t, err)
	require.Len(t, rids, 2) // 30, 35 only
}

func TestUnionIteratorDedupsAcrossChildren(t *testing.T) {
	store := seedIndex(t)
	ctx := context.Background()
	tx, err := store.Begin(ctx, false)
	require.NoError(t, err)

	a := NewEqualIterator("t", "d", "person", "age_ix", "person", []value.Value{value.Int(25)})
	b := NewEqualIterator("t", "d", "person", "age_ix", "person", []value.Value{value.Int(25)})
	u := NewUnion(a, b)
	var total int
	for {
		batch, err := u.NextBatch(ctx, tx, 100)
		require.NoError(t, err)
		if len(batch) == 0 {
			break
		}
		total += len(batch)
	}
	require.Equal(t, 2, total)
}
