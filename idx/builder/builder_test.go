package builder

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitFinished(t *testing.T, r *Registry, table, index string) Status {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		st, ok := r.Status(table, index)
		if ok && st.Finished {
			return st
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("build did not finish in time")
	return Status{}
}

func TestBuildReportsProgressToCompletion(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()

	r.Start(ctx, "person", "age_ix", 3, func(ctx context.Context, emit func(RowFunc) error) error {
		for i := 0; i < 3; i++ {
			if err := emit(func(ctx context.Context) error { return nil }); err != nil {
				return err
			}
		}
		return nil
	})

	st := waitFinished(t, r, "person", "age_ix")
	require.NoError(t, st.Err)
	assert.Equal(t, int64(3), st.Done)
	assert.Equal(t, int64(3), st.Total)
}

func TestStatusUnknownForUntrackedIndex(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Status("nope", "nope")
	assert.False(t, ok)
}
