package mtree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchReturnsKNearestInIncreasingDistance(t *testing.T) {
	ix := New(Euclidean, 0)
	ix.Upsert("a", []float64{0, 0})
	ix.Upsert("b", []float64{1, 0})
	ix.Upsert("c", []float64{5, 5})
	ix.Upsert("d", []float64{0, 1})

	results, err := ix.Search([]float64{0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].DocKey)
	assert.LessOrEqual(t, results[0].Distance, results[1].Distance)
}

func TestDeleteRemovesVectorFromFutureSearches(t *testing.T) {
	ix := New(Euclidean, 0)
	ix.Upsert("a", []float64{0, 0})
	ix.Upsert("b", []float64{1, 1})
	ix.Delete("a")

	results, err := ix.Search([]float64{0, 0}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].DocKey)
}

func TestCosineDistanceOfIdenticalVectorsIsZero(t *testing.T) {
	d, err := Compute(Cosine, []float64{1, 2, 3}, []float64{1, 2, 3}, 0)
	require.NoError(t, err)
	assert.InDelta(t, 0, d, 1e-9)
}

func TestHammingCountsMismatches(t *testing.T) {
	d, err := Compute(Hamming, []float64{1, 0, 1, 1}, []float64{1, 1, 1, 0}, 0)
	require.NoError(t, err)
	assert.Equal(t, float64(2), d)
}

func TestDimensionMismatchErrors(t *testing.T) {
	_, err := Compute(Euclidean, []float64{1, 2}, []float64{1}, 0)
	require.Error(t, err)
}

func TestPriorityListCapsAtK(t *testing.T) {
	l := NewPriorityList(2)
	l.Offer(Candidate{DocKey: "x", Distance: 5})
	l.Offer(Candidate{DocKey: "y", Distance: 1})
	l.Offer(Candidate{DocKey: "z", Distance: 3})
	got := l.Materialize()
	require.Len(t, got, 2)
	assert.Equal(t, "y", got[0].DocKey)
	assert.Equal(t, "z", got[1].DocKey)
}
