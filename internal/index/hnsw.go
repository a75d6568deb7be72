package index

import (
	"container/heap"
	"math"
	"math/rand"

	"github.com/shopsmarter/shopsmarter/internal/domain"
)

// hnswParams tunes the graph index. The defaults match the values used when
// the index was first sized against the catalog and are kept deliberately.
type hnswParams struct {
	M              int
	EFConstruction int
	EFSearch       int
}

func defaultHNSWParams() hnswParams {
	return hnswParams{M: 32, EFConstruction: 200, EFSearch: 50}
}

// hnswIndex is a hierarchical navigable small-world graph over the vectors.
// Immutable after buildHNSW returns.
type hnswIndex struct {
	dim     int
	params  hnswParams
	vectors [][]float32
	// links[row][level] holds neighbor rows. Level 0 allows 2*M links,
	// upper levels M.
	links    [][][]int32
	levels   []int
	entry    int
	maxLevel int
}

// buildHNSW inserts vectors one by one. The level RNG is fixed-seeded so a
// rebuild over the same vectors yields the same graph.
func buildHNSW(vectors [][]float32, p hnswParams) *hnswIndex {
	h := &hnswIndex{
		dim:      len(vectors[0]),
		params:   p,
		vectors:  vectors,
		links:    make([][][]int32, len(vectors)),
		levels:   make([]int, len(vectors)),
		entry:    -1,
		maxLevel: -1,
	}
	ml := 1.0 / math.Log(float64(p.M))
	rng := rand.New(rand.NewSource(1))
	for row := range vectors {
		level := int(math.Floor(-math.Log(rng.Float64()+1e-12) * ml))
		h.insert(row, level)
	}
	return h
}

func (h *hnswIndex) insert(row, level int) {
	h.levels[row] = level
	h.links[row] = make([][]int32, level+1)

	if h.entry < 0 {
		h.entry = row
		h.maxLevel = level
		return
	}

	q := h.vectors[row]
	ep := h.entry
	for l := h.maxLevel; l > level; l-- {
		ep = h.greedyClosest(q, ep, l)
	}

	top := level
	if top > h.maxLevel {
		top = h.maxLevel
	}
	for l := top; l >= 0; l-- {
		cands := h.searchLayer(q, ep, h.params.EFConstruction, l)
		maxLinks := h.params.M
		if l == 0 {
			maxLinks = 2 * h.params.M
		}

		take := len(cands)
		if take > maxLinks {
			take = maxLinks
		}
		for _, c := range cands[:take] {
			h.links[row][l] = append(h.links[row][l], int32(c.Row))
			h.links[c.Row][l] = append(h.links[c.Row][l], int32(row))
			if len(h.links[c.Row][l]) > maxLinks {
				h.pruneLinks(c.Row, l, maxLinks)
			}
		}
		if len(cands) > 0 {
			ep = cands[0].Row
		}
	}

	if level > h.maxLevel {
		h.maxLevel = level
		h.entry = row
	}
}

// pruneLinks trims a node's neighbor list to the closest maxLinks entries.
func (h *hnswIndex) pruneLinks(row, level, maxLinks int) {
	v := h.vectors[row]
	best := newTopK(maxLinks)
	for _, nb := range h.links[row][level] {
		best.push(Candidate{Row: int(nb), Similarity: domain.Dot(v, h.vectors[nb])})
	}
	pruned := make([]int32, 0, maxLinks)
	for _, c := range best.result() {
		pruned = append(pruned, int32(c.Row))
	}
	h.links[row][level] = pruned
}

func (h *hnswIndex) neighbors(row, level int) []int32 {
	if level >= len(h.links[row]) {
		return nil
	}
	return h.links[row][level]
}

// greedyClosest walks the given level toward the query until no neighbor
// improves similarity.
func (h *hnswIndex) greedyClosest(q []float32, ep, level int) int {
	best := ep
	bestSim := domain.Dot(q, h.vectors[ep])
	for changed := true; changed; {
		changed = false
		for _, nb := range h.neighbors(best, level) {
			if sim := domain.Dot(q, h.vectors[nb]); sim > bestSim {
				best, bestSim = int(nb), sim
				changed = true
			}
		}
	}
	return best
}

// searchLayer is best-first expansion with a bounded result set of size ef.
// Returns candidates ordered by descending similarity.
func (h *hnswIndex) searchLayer(q []float32, ep, ef, level int) []Candidate {
	epSim := domain.Dot(q, h.vectors[ep])

	visited := make(map[int32]struct{}, ef*4)
	visited[int32(ep)] = struct{}{}

	results := newTopK(ef)
	results.push(Candidate{Row: ep, Similarity: epSim})

	cands := &candidateHeap{{Row: ep, Similarity: epSim}}
	for cands.Len() > 0 {
		c := heap.Pop(cands).(Candidate)
		if worst, full := results.worst(); full && c.Similarity < worst {
			break
		}
		for _, nb := range h.neighbors(c.Row, level) {
			if _, seen := visited[nb]; seen {
				continue
			}
			visited[nb] = struct{}{}
			sim := domain.Dot(q, h.vectors[nb])
			if worst, full := results.worst(); !full || sim > worst {
				next := Candidate{Row: int(nb), Similarity: sim}
				results.push(next)
				heap.Push(cands, next)
			}
		}
	}
	return results.result()
}

func (h *hnswIndex) Search(query []float32, k int) []Candidate {
	if h.entry < 0 || k <= 0 || len(query) != h.dim {
		return nil
	}
	ep := h.entry
	for l := h.maxLevel; l > 0; l-- {
		ep = h.greedyClosest(query, ep, l)
	}
	ef := h.params.EFSearch
	if ef < k {
		ef = k
	}
	cands := h.searchLayer(query, ep, ef, 0)
	if len(cands) > k {
		cands = cands[:k]
	}
	return cands
}

func (h *hnswIndex) Len() int   { return len(h.vectors) }
func (h *hnswIndex) Dim() int   { return h.dim }
func (h *hnswIndex) Kind() Kind { return KindHNSW }

// candidateHeap is a max-heap by similarity for best-first expansion.
type candidateHeap []Candidate

func (h candidateHeap) Len() int            { return len(h) }
func (h candidateHeap) Less(i, j int) bool  { return h[i].Similarity > h[j].Similarity }
func (h candidateHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *candidateHeap) Push(x any)         { *h = append(*h, x.(Candidate)) }
func (h *candidateHeap) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	*h = old[:n-1]
	return c
}
