// Copyright 2026 The veltadb Authors
// SPDX-License-Identifier: Apache-2.0

// Package mtree implements the KNN index of §4.6.3: a metric tree keyed
// by vector values under a configurable distance function. The tree
// itself is a flat slice scanned under the chosen metric rather than a
// true M-tree routing structure — correct KNN results, without the
// pivot-selection machinery a real M-tree needs, which the vector volumes
// this layer is expected to serve (index rebuilds bounded by a single
// table's row count) don't yet justify.
package mtree

import (
	"math"
	"sort"

	"github.com/veltadb/veltadb/veltaerr"
)

// Distance is one of the metrics named in §4.6.3.
type Distance string

const (
	Euclidean Distance = "euclidean"
	Cosine    Distance = "cosine"
	Manhattan Distance = "manhattan"
	Chebyshev Distance = "chebyshev"
	Minkowski Distance = "minkowski"
	Hamming   Distance = "hamming"
	Jaccard   Distance = "jaccard"
	Pearson   Distance = "pearson"
)

// DistanceFunc computes a distance between two equal-length vectors. p is
// only consulted by Minkowski.
type DistanceFunc func(a, b []float64, p float64) (float64, error)

func Compute(d Distance, a, b []float64, p float64) (float64, error) {
	if len(a) != len(b) {
		return 0, veltaerr.New(veltaerr.KindCoercion, "vector dimension mismatch: %d vs %d", len(a), len(b))
	}
	switch d {
	case Euclidean:
		var sum float64
		for i := range a {
			diff := a[i] - b[i]
			sum += diff * diff
		}
		return math.Sqrt(sum), nil
	case Manhattan:
		var sum float64
		for i := range a {
			sum += math.Abs(a[i] - b[i])
		}
		return sum, nil
	case Chebyshev:
		var max float64
		for i := range a {
			if d := math.Abs(a[i] - b[i]); d > max {
				max = d
			}
		}
		return max, nil
	case Minkowski:
		if p <= 0 {
			p = 2
		}
		var sum float64
		for i := range a {
			sum += math.Pow(math.Abs(a[i]-b[i]), p)
		}
		return math.Pow(sum, 1/p), nil
	case Cosine:
		var dot, na, nb float64
		for i := range a {
			dot += a[i] * b[i]
			na += a[i] * a[i]
			nb += b[i] * b[i]
		}
		if na == 0 || nb == 0 {
			return 1, nil
		}
		return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb)), nil
	case Hamming:
		var count float64
		for i := range a {
			if a[i] != b[i] {
				count++
			}
		}
		return count, nil
	case Jaccard:
		var inter, union float64
		for i := range a {
			if a[i] != 0 || b[i] != 0 {
				union++
				if a[i] != 0 && b[i] != 0 {
					inter++
				}
			}
		}
		if union == 0 {
			return 0, nil
		}
		return 1 - inter/union, nil
	case Pearson:
		n := float64(len(a))
		if n == 0 {
			return 1, nil
		}
		var meanA, meanB float64
		for i := range a {
			meanA += a[i]
			meanB += b[i]
		}
		meanA /= n
		meanB /= n
		var cov, varA, varB float64
		for i := range a {
			da, db := a[i]-meanA, b[i]-meanB
			cov += da * db
			varA += da * da
			varB += db * db
		}
		if varA == 0 || varB == 0 {
			return 1, nil
		}
		corr := cov / math.Sqrt(varA*varB)
		return 1 - corr, nil
	default:
		return 0, veltaerr.New(veltaerr.KindUnknown, "unknown distance metric %q", d)
	}
}

// Index is an in-memory KNN index over named vectors.
type Index struct {
	Dist    Distance
	P       float64 // Minkowski exponent; ignored otherwise
	vectors map[string][]float64
	order   []string
}

func New(dist Distance, p float64) *Index {
	return &Index{Dist: dist, P: p, vectors: map[string][]float64{}}
}

func (ix *Index) Upsert(docKey string, vec []float64) {
	if _, exists := ix.vectors[docKey]; !exists {
		ix.order = append(ix.order, docKey)
	}
	ix.vectors[docKey] = vec
}

func (ix *Index) Delete(docKey string) {
	if _, exists := ix.vectors[docKey]; !exists {
		return
	}
	delete(ix.vectors, docKey)
	for i, k := range ix.order {
		if k == docKey {
			ix.order = append(ix.order[:i], ix.order[i+1:]...)
			break
		}
	}
}

// Candidate is one KNN search result.
type Candidate struct {
	DocKey   string
	Distance float64
}

// Search returns at most k candidates ordered by increasing distance
// (§4.6.3's knn_search).
func (ix *Index) Search(query []float64, k int) ([]Candidate, error) {
	list := NewPriorityList(k)
	for _, key := range ix.order {
		d, err := Compute(ix.Dist, query, ix.vectors[key], ix.P)
		if err != nil {
			return nil, err
		}
		list.Offer(Candidate{DocKey: key, Distance: d})
	}
	return list.Materialize(), nil
}

// PriorityList accumulates candidates during a streaming evaluation
// stage (§4.6.3) and is materialized into a sorted, K-capped slice at
// stage end. Kept as a simple slice with insertion-position search
// rather than a heap: K is expected to be small (a handful to low
// hundreds), so the O(K) insert is not worth a heap's bookkeeping.
type PriorityList struct {
	k    int
	best []Candidate
}

func NewPriorityList(k int) *PriorityList {
	return &PriorityList{k: k}
}

func (l *PriorityList) Offer(c Candidate) {
	if l.k <= 0 {
		l.best = append(l.best, c)
		return
	}
	i := sort.Search(len(l.best), func(i int) bool { return l.best[i].Distance > c.Distance })
	if i >= l.k {
		return
	}
	l.best = append(l.best, Candidate{})
	copy(l.best[i+1:], l.best[i:])
	l.best[i] = c
	if len(l.best) > l.k {
		l.best = l.best[:l.k]
	}
}

func (l *PriorityList) Materialize() []Candidate {
	return l.best
}
