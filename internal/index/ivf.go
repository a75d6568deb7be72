package index

import (
	"math"
	"math/rand"

	"github.com/shopsmarter/shopsmarter/internal/domain"
)

type ivfParams struct {
	NList      int
	NProbe     int
	TrainIters int
}

func defaultIVFParams(n int) ivfParams {
	nlist := int(math.Sqrt(float64(n)))
	if nlist < 100 {
		nlist = 100
	}
	if nlist > 4096 {
		nlist = 4096
	}
	return ivfParams{NList: nlist, NProbe: 10, TrainIters: 10}
}

// ivfIndex partitions the vectors into NList cells around k-means centroids
// and scans only the NProbe cells closest to the query. Immutable after
// buildIVF returns.
type ivfIndex struct {
	dim       int
	params    ivfParams
	vectors   [][]float32
	centroids [][]float32
	// cells[c] lists the rows assigned to centroid c.
	cells [][]int32
}

func buildIVF(vectors [][]float32, p ivfParams) *ivfIndex {
	if p.NList > len(vectors) {
		p.NList = len(vectors)
	}
	idx := &ivfIndex{
		dim:     len(vectors[0]),
		params:  p,
		vectors: vectors,
	}
	idx.train()
	idx.assign()
	return idx
}

// train runs k-means over the full set. Centroids are seeded from a fixed
// shuffle so rebuilds over the same vectors are reproducible.
func (idx *ivfIndex) train() {
	rng := rand.New(rand.NewSource(1))
	perm := rng.Perm(len(idx.vectors))

	idx.centroids = make([][]float32, idx.params.NList)
	for c := range idx.centroids {
		seed := idx.vectors[perm[c]]
		idx.centroids[c] = append(make([]float32, 0, idx.dim), seed...)
	}

	assignments := make([]int, len(idx.vectors))
	for iter := 0; iter < idx.params.TrainIters; iter++ {
		moved := 0
		for row, v := range idx.vectors {
			c := idx.nearestCentroid(v)
			if assignments[row] != c {
				assignments[row] = c
				moved++
			}
		}
		if iter > 0 && moved == 0 {
			break
		}

		sums := make([][]float64, idx.params.NList)
		counts := make([]int, idx.params.NList)
		for c := range sums {
			sums[c] = make([]float64, idx.dim)
		}
		for row, v := range idx.vectors {
			c := assignments[row]
			counts[c]++
			for d, x := range v {
				sums[c][d] += float64(x)
			}
		}
		for c := range idx.centroids {
			if counts[c] == 0 {
				// Empty cell keeps its previous centroid.
				continue
			}
			for d := range idx.centroids[c] {
				idx.centroids[c][d] = float32(sums[c][d] / float64(counts[c]))
			}
			domain.Normalize(idx.centroids[c])
		}
	}
}

func (idx *ivfIndex) assign() {
	idx.cells = make([][]int32, idx.params.NList)
	for row, v := range idx.vectors {
		c := idx.nearestCentroid(v)
		idx.cells[c] = append(idx.cells[c], int32(row))
	}
}

func (idx *ivfIndex) nearestCentroid(v []float32) int {
	best := 0
	bestSim := domain.Dot(v, idx.centroids[0])
	for c := 1; c < len(idx.centroids); c++ {
		if sim := domain.Dot(v, idx.centroids[c]); sim > bestSim {
			best, bestSim = c, sim
		}
	}
	return best
}

func (idx *ivfIndex) Search(query []float32, k int) []Candidate {
	if k <= 0 || len(query) != idx.dim {
		return nil
	}

	nprobe := idx.params.NProbe
	if nprobe > len(idx.centroids) {
		nprobe = len(idx.centroids)
	}
	probes := newTopK(nprobe)
	for c := range idx.centroids {
		probes.push(Candidate{Row: c, Similarity: domain.Dot(query, idx.centroids[c])})
	}

	best := newTopK(k)
	for _, cell := range probes.result() {
		for _, row := range idx.cells[cell.Row] {
			best.push(Candidate{Row: int(row), Similarity: domain.Dot(query, idx.vectors[row])})
		}
	}
	return best.result()
}

func (idx *ivfIndex) Len() int   { return len(idx.vectors) }
func (idx *ivfIndex) Dim() int   { return idx.dim }
func (idx *ivfIndex) Kind() Kind { return KindIVF }
