package index

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopsmarter/shopsmarter/internal/domain"
)

// Hit is a search result resolved to an item ID.
type Hit struct {
	ID         string
	Similarity float32
}

// Handle owns the on-disk index for the serving process. The first Search
// loads the files lazily; Reload swaps in a freshly written index without
// blocking readers. Rebuilds happen out of process and land via atomic
// rename, so a Reload always sees a complete pair of files.
type Handle struct {
	vectorPath string
	idPath     string

	mu   sync.Mutex
	snap atomic.Pointer[snapshot]
}

type snapshot struct {
	index    Index
	ids      []string
	loadedAt time.Time
}

func NewHandle(vectorPath, idPath string) *Handle {
	return &Handle{vectorPath: vectorPath, idPath: idPath}
}

// Search returns up to k items ordered by descending similarity.
func (h *Handle) Search(query []float32, k int) ([]Hit, error) {
	s, err := h.current()
	if err != nil {
		return nil, err
	}
	cands := s.index.Search(query, k)
	hits := make([]Hit, 0, len(cands))
	for _, c := range cands {
		hits = append(hits, Hit{ID: s.ids[c.Row], Similarity: c.Similarity})
	}
	return hits, nil
}

// Ready forces the lazy load and reports whether the index is servable.
func (h *Handle) Ready() error {
	_, err := h.current()
	return err
}

// Reload replaces the active snapshot with the index currently on disk.
// In-flight searches keep using the snapshot they started with.
func (h *Handle) Reload() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.load()
}

// Stats describes the loaded snapshot for the status endpoint.
type Stats struct {
	Loaded   bool      `json:"loaded"`
	Kind     string    `json:"kind,omitempty"`
	Vectors  int       `json:"vectors"`
	Dim      int       `json:"dim"`
	LoadedAt time.Time `json:"loaded_at,omitzero"`
}

func (h *Handle) Stats() Stats {
	s := h.snap.Load()
	if s == nil {
		return Stats{}
	}
	return Stats{
		Loaded:   true,
		Kind:     s.index.Kind().String(),
		Vectors:  s.index.Len(),
		Dim:      s.index.Dim(),
		LoadedAt: s.loadedAt,
	}
}

func (h *Handle) current() (*snapshot, error) {
	if s := h.snap.Load(); s != nil {
		return s, nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if s := h.snap.Load(); s != nil {
		return s, nil
	}
	if err := h.load(); err != nil {
		return nil, err
	}
	return h.snap.Load(), nil
}

// load must be called with mu held.
func (h *Handle) load() error {
	idx, ids, err := Load(h.vectorPath, h.idPath)
	if err != nil {
		return fmt.Errorf("%w: %s", domain.ErrIndexUnavailable, err)
	}
	h.snap.Store(&snapshot{index: idx, ids: ids, loadedAt: time.Now()})
	return nil
}
