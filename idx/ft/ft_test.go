package ft

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngestAndSearchRanksByRelevance(t *testing.T) {
	ix := New(nil)
	ix.Ingest("doc:1", "the quick brown fox")
	ix.Ingest("doc:2", "the quick quick fox jumps")
	ix.Ingest("doc:3", "a slow turtle")
	// two more unrelated docs: "quick" and "fox" then appear in 2 of 5
	// docs, so their IDF is positive and term frequency decides the order.
	ix.Ingest("doc:4", "green grass grows")
	ix.Ingest("doc:5", "lazy dog sleeps")

	results := ix.Search("quick fox")
	require.Len(t, results, 2)
	assert.Equal(t, "doc:2", results[0].DocKey) // higher term frequency for "quick"
}

func TestMatchRequiresEveryTerm(t *testing.T) {
	ix := New(nil)
	ix.Ingest("doc:1", "red green blue")
	assert.True(t, ix.Match("doc:1", "red blue"))
	assert.False(t, ix.Match("doc:1", "red purple"))
}

func TestUpdateReindexesSameDocID(t *testing.T) {
	ix := New(nil)
	ix.Ingest("doc:1", "alpha beta")
	ix.Ingest("doc:1", "gamma delta")
	assert.False(t, ix.Match("doc:1", "alpha"))
	assert.True(t, ix.Match("doc:1", "gamma"))
}

func TestDeleteRemovesDocumentAndFreesID(t *testing.T) {
	ix := New(nil)
	ix.Ingest("doc:1", "alpha")
	ix.Delete("doc:1")
	assert.False(t, ix.Match("doc:1", "alpha"))
	ix.Ingest("doc:2", "beta")
	assert.True(t, ix.Match("doc:2", "beta"))
	assert.Equal(t, int64(0), ix.docIDs["doc:2"]) // doc:2 reuses the doc_id doc:1 freed
}

func TestSearchKeepsNonPositiveIDFMatches(t *testing.T) {
	ix := New(nil)
	ix.Ingest("doc:1", "common common")
	ix.Ingest("doc:2", "common rare")
	results := ix.Search("common")
	// "common" appears in every document: idf <= 0, contributes nothing,
	// but every matching document must still come back with a 0 score.
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, float64(0), r.Score)
	}
}
