// Copyright 2026 The veltadb Authors
// SPDX-License-Identifier: Apache-2.0

// Package ft implements the full-text BM25 index of §4.6.2: the four
// sub-stores (DocIds, DocLengths, Terms, Postings), ingestion/update/
// delete, and the BM25 scoring formula. Everything lives in memory behind
// a mutex, keyed by an in-process index handle. The sub-stores are not
// persisted through the KV layer, and nothing rebuilds them from the
// primary table after a restart.
package ft

import (
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/veltadb/veltadb/value"
)

// k1 and b are the standard Okapi BM25 tuning constants. Not exposed as
// per-index configuration, so they are fixed here.
const (
	k1 = 1.2
	b  = 0.75
)

// Analyzer splits a document into the terms it gets indexed under. Only
// one ships (lowercase + whitespace/punctuation split), enough to
// exercise the index end to end.
type Analyzer func(text string) []string

func DefaultAnalyzer(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
}

// Index is one full-text search index's four sub-stores.
type Index struct {
	mu       sync.RWMutex
	analyzer Analyzer

	docIDs    map[string]int64 // doc_key -> doc_id
	docKeys   map[int64]string // doc_id -> doc_key
	freelist  []int64
	nextDocID int64

	docLengths map[int64]int64

	termIDs    map[string]int64 // term_text -> term_id
	termTexts  map[int64]string
	termDF     map[int64]int64 // document frequency
	nextTermID int64

	// postings[term_id] is a bitmap of doc_ids for fast intersection; the
	// term frequency for (term_id, doc_id) lives in postingsFreq.
	postings     map[int64]*roaring.Bitmap
	postingsFreq map[int64]map[int64]int64

	docTerms map[int64]map[int64]int64 // doc_id -> term_id -> tf, for diff-apply on update
}

func New(analyzer Analyzer) *Index {
	if analyzer == nil {
		analyzer = DefaultAnalyzer
	}
	return &Index{
		analyzer:     analyzer,
		docIDs:       map[string]int64{},
		docKeys:      map[int64]string{},
		docLengths:   map[int64]int64{},
		termIDs:      map[string]int64{},
		termTexts:    map[int64]string{},
		termDF:       map[int64]int64{},
		postings:     map[int64]*roaring.Bitmap{},
		postingsFreq: map[int64]map[int64]int64{},
		docTerms:     map[int64]map[int64]int64{},
	}
}

func (ix *Index) allocDocID(docKey string) int64 {
	var id int64
	if n := len(ix.freelist); n > 0 {
		id = ix.freelist[n-1]
		ix.freelist = ix.freelist[:n-1]
	} else {
		id = ix.nextDocID
		ix.nextDocID++
	}
	ix.docIDs[docKey] = id
	ix.docKeys[id] = docKey
	return id
}

func (ix *Index) termID(text string) int64 {
	if id, ok := ix.termIDs[text]; ok {
		return id
	}
	id := ix.nextTermID
	ix.nextTermID++
	ix.termIDs[text] = id
	ix.termTexts[id] = text
	return id
}

func termCounts(terms []string) map[string]int64 {
	counts := map[string]int64{}
	for _, t := range terms {
		counts[t]++
	}
	return counts
}

// Ingest indexes a new document, or re-indexes an existing one under the
// same doc_key (reusing its doc_id, diff-applying postings per §4.6.2).
func (ix *Index) Ingest(docKey, text string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	terms := ix.analyzer(text)
	counts := termCounts(terms)

	docID, existing := ix.docIDs[docKey]
	if !existing {
		docID = ix.allocDocID(docKey)
	} else {
		ix.removePostingsLocked(docID)
	}

	ix.docLengths[docID] = int64(len(terms))
	newTerms := map[int64]int64{}
	for text, tf := range counts {
		tid := ix.termID(text)
		newTerms[tid] = tf
		if ix.postings[tid] == nil {
			ix.postings[tid] = roaring.New()
			ix.postingsFreq[tid] = map[int64]int64{}
		}
		if _, had := ix.postingsFreq[tid][docID]; !had {
			ix.termDF[tid]++
		}
		ix.postings[tid].Add(uint32(docID))
		ix.postingsFreq[tid][docID] = tf
	}
	ix.docTerms[docID] = newTerms
}

func (ix *Index) removePostingsLocked(docID int64) {
	for tid := range ix.docTerms[docID] {
		ix.postings[tid].Remove(uint32(docID))
		delete(ix.postingsFreq[tid], docID)
		ix.termDF[tid]--
	}
	delete(ix.docTerms, docID)
}

// Delete removes a document: postings, length, and returns its doc_id to
// the freelist.
func (ix *Index) Delete(docKey string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	docID, ok := ix.docIDs[docKey]
	if !ok {
		return
	}
	ix.removePostingsLocked(docID)
	delete(ix.docLengths, docID)
	delete(ix.docIDs, docKey)
	delete(ix.docKeys, docID)
	ix.freelist = append(ix.freelist, docID)
}

// Match reports whether docKey's document matches every query term
// (conjunctive phrase match, §4.6.2).
func (ix *Index) Match(docKey string, query string) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	docID, ok := ix.docIDs[docKey]
	if !ok {
		return false
	}
	for _, term := range ix.analyzer(query) {
		tid, ok := ix.termIDs[term]
		if !ok {
			return false
		}
		if _, has := ix.postingsFreq[tid][docID]; !has {
			return false
		}
	}
	return true
}

// ScoredDoc is one search result.
type ScoredDoc struct {
	DocKey string
	Score  float64
}

// Search scores every document matching at least one query term with
// BM25 and returns the top results in decreasing score order.
func (ix *Index) Search(query string) []ScoredDoc {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	terms := ix.analyzer(query)
	n := int64(len(ix.docLengths))
	if n == 0 {
		return nil
	}
	var totalLen int64
	for _, l := range ix.docLengths {
		totalLen += l
	}
	avgDL := float64(totalLen) / float64(n)

	scores := map[int64]float64{}
	for _, term := range terms {
		tid, ok := ix.termIDs[term]
		if !ok {
			continue
		}
		df := ix.termDF[tid]
		if df <= 0 {
			continue
		}
		idf := math.Log((float64(n)-float64(df)+0.5)/(float64(df)+0.5))
		if idf <= 0 || math.IsNaN(idf) {
			idf = 0
		}
		for docID, tf := range ix.postingsFreq[tid] {
			if _, ok := scores[docID]; !ok {
				scores[docID] = 0
			}
			if idf == 0 {
				continue
			}
			tfPrime := 1 + math.Log(float64(tf))
			dl := float64(ix.docLengths[docID])
			denom := k1*(1-b+b*dl/avgDL) + tfPrime
			scores[docID] += idf * (k1 + 1) * tfPrime / denom
		}
	}

	out := make([]ScoredDoc, 0, len(scores))
	for docID, score := range scores {
		out = append(out, ScoredDoc{DocKey: ix.docKeys[docID], Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].DocKey < out[j].DocKey
	})
	return out
}

// AsValue renders a score list as a value.Array of {id, score} objects for
// projection into a query result row.
func AsValue(docs []ScoredDoc) value.Value {
	items := make([]value.Value, len(docs))
	for i, d := range docs {
		o := value.NewObject()
		o.Set("id", value.Str(d.DocKey))
		o.Set("score", value.Float(d.Score))
		items[i] = value.Obj(o)
	}
	return value.Array(items...)
}
