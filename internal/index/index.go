// Package index implements the candidate vector index: exact search for
// small catalogs, graph-based approximate search for medium ones, and
// inverted-file approximate search with a trained quantizer for large ones.
// The tier is a build-time decision; the query contract is identical across
// backends. Similarity is the inner product of L2-normalized vectors.
package index

import (
	"fmt"
	"sort"

	"github.com/shopsmarter/shopsmarter/internal/domain"
)

// Tier selection boundaries, by vector count at build time.
const (
	flatMaxVectors = 1000
	hnswMaxVectors = 10000
)

// Kind identifies the backing structure.
type Kind uint8

// Kind values. Persisted in the index file header; do not reorder.
const (
	KindFlat Kind = iota
	KindHNSW
	KindIVF
)

func (k Kind) String() string {
	switch k {
	case KindFlat:
		return "flat"
	case KindHNSW:
		return "hnsw"
	case KindIVF:
		return "ivf"
	}
	return "unknown"
}

// Candidate is one search hit: a row into the build-time vector order and
// its inner-product similarity.
type Candidate struct {
	Row        int
	Similarity float32
}

// Index is a read-only nearest-neighbor structure. Implementations are
// immutable after construction; concurrent Search calls need no coordination.
type Index interface {
	// Search returns up to k rows ordered by descending similarity.
	Search(query []float32, k int) []Candidate
	Len() int
	Dim() int
	Kind() Kind
}

// Build constructs an index over the given vectors, choosing the backend by
// catalog size. Vectors must all share the same dimension and should be
// L2-normalized; they are retained by the returned index and must not be
// mutated afterwards.
func Build(vectors [][]float32) (Index, error) {
	if len(vectors) == 0 {
		return nil, fmt.Errorf("build index: no vectors")
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, fmt.Errorf("build index: zero-dimension vectors")
	}
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("build index: vector %d has dim %d, want %d: %w",
				i, len(v), dim, domain.ErrVectorDimMismatch)
		}
	}

	return buildKind(vectors, tierFor(len(vectors)))
}

func tierFor(n int) Kind {
	switch {
	case n < flatMaxVectors:
		return KindFlat
	case n < hnswMaxVectors:
		return KindHNSW
	default:
		return KindIVF
	}
}

func buildKind(vectors [][]float32, kind Kind) (Index, error) {
	switch kind {
	case KindFlat:
		return newFlat(vectors), nil
	case KindHNSW:
		return buildHNSW(vectors, defaultHNSWParams()), nil
	case KindIVF:
		return buildIVF(vectors, defaultIVFParams(len(vectors))), nil
	}
	return nil, fmt.Errorf("build index: unknown kind %d", kind)
}

// topK keeps the k best candidates seen so far. Small fixed k, so a sorted
// slice with binary insertion beats a heap in practice.
type topK struct {
	k     int
	items []Candidate
}

func newTopK(k int) *topK {
	return &topK{k: k, items: make([]Candidate, 0, k)}
}

func (t *topK) push(c Candidate) {
	if len(t.items) == t.k {
		if c.Similarity <= t.items[len(t.items)-1].Similarity {
			return
		}
		t.items = t.items[:len(t.items)-1]
	}
	pos := sort.Search(len(t.items), func(i int) bool {
		return t.items[i].Similarity < c.Similarity
	})
	t.items = append(t.items, Candidate{})
	copy(t.items[pos+1:], t.items[pos:])
	t.items[pos] = c
}

// worst returns the lowest retained similarity, or -inf semantics via ok=false
// when fewer than k items are held.
func (t *topK) worst() (float32, bool) {
	if len(t.items) < t.k {
		return 0, false
	}
	return t.items[len(t.items)-1].Similarity, true
}

func (t *topK) result() []Candidate {
	return t.items
}
