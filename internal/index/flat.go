package index

import "github.com/shopsmarter/shopsmarter/internal/domain"

// flatIndex is exact brute-force inner-product search. Used for small
// catalogs where a full scan is cheaper than maintaining any structure.
type flatIndex struct {
	dim     int
	vectors [][]float32
}

func newFlat(vectors [][]float32) *flatIndex {
	return &flatIndex{dim: len(vectors[0]), vectors: vectors}
}

func (f *flatIndex) Search(query []float32, k int) []Candidate {
	if k <= 0 || len(query) != f.dim {
		return nil
	}
	if k > len(f.vectors) {
		k = len(f.vectors)
	}
	best := newTopK(k)
	for row, v := range f.vectors {
		best.push(Candidate{Row: row, Similarity: domain.Dot(query, v)})
	}
	return best.result()
}

func (f *flatIndex) Len() int   { return len(f.vectors) }
func (f *flatIndex) Dim() int   { return f.dim }
func (f *flatIndex) Kind() Kind { return KindFlat }
