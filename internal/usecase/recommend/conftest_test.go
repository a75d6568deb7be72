package recommend

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/shopsmarter/shopsmarter/internal/domain"
	domcat "github.com/shopsmarter/shopsmarter/internal/domain/catalog"
	"github.com/shopsmarter/shopsmarter/internal/index"
	"github.com/shopsmarter/shopsmarter/internal/scoring"
)

// --- Mocks ---

// fakeCatalog is an in-memory Catalog over an item slice. Sample returns
// items in slice order so assertions stay deterministic.
type fakeCatalog struct {
	items []domcat.Item

	lookupErr     error
	bulkErr       error
	filterErr     error
	sampleErr     error
	searchTextErr error

	filterCalls int
	lastLimit   int
}

func (f *fakeCatalog) Lookup(_ context.Context, id string) (domcat.Item, error) {
	if f.lookupErr != nil {
		return domcat.Item{}, f.lookupErr
	}
	for _, item := range f.items {
		if item.ID == id {
			return item, nil
		}
	}
	return domcat.Item{}, domain.ErrItemNotFound
}

func (f *fakeCatalog) BulkLookup(_ context.Context, ids []string) ([]domcat.Item, error) {
	if f.bulkErr != nil {
		return nil, f.bulkErr
	}
	byID := make(map[string]domcat.Item, len(f.items))
	for _, item := range f.items {
		byID[item.ID] = item
	}
	out := make([]domcat.Item, 0, len(ids))
	for _, id := range ids {
		if item, ok := byID[id]; ok {
			out = append(out, item)
		}
	}
	return out, nil
}

func (f *fakeCatalog) Filter(
	_ context.Context, match func(domcat.Item) bool, limit int,
) ([]domcat.Item, error) {
	f.filterCalls++
	f.lastLimit = limit
	if f.filterErr != nil {
		return nil, f.filterErr
	}
	var out []domcat.Item
	for _, item := range f.items {
		if !match(item) {
			continue
		}
		out = append(out, item)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeCatalog) Sample(
	_ context.Context, n int, exclude func(domcat.Item) bool,
) ([]domcat.Item, error) {
	if f.sampleErr != nil {
		return nil, f.sampleErr
	}
	var out []domcat.Item
	for _, item := range f.items {
		if exclude != nil && exclude(item) {
			continue
		}
		out = append(out, item)
		if len(out) >= n {
			break
		}
	}
	return out, nil
}

func (f *fakeCatalog) SearchText(
	_ context.Context, query string, limit int,
) ([]domcat.Item, error) {
	if f.searchTextErr != nil {
		return nil, f.searchTextErr
	}
	var out []domcat.Item
	for _, item := range f.items {
		if item.Text().Anywhere(query) {
			out = append(out, item)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

type mockEmbedder struct {
	vec      []float32
	err      error
	calls    int
	lastText string
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	m.calls++
	m.lastText = text
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	vec := m.vec
	if vec == nil {
		vec = make([]float32, domain.VectorDim)
		vec[0] = 1
	}
	return domain.EmbeddingResult{Embedding: vec, TotalTokens: 3}, nil
}

type mockIndex struct {
	hits  []index.Hit
	err   error
	calls int
	lastK int
}

func (m *mockIndex) Search(_ []float32, k int) ([]index.Hit, error) {
	m.calls++
	m.lastK = k
	if m.err != nil {
		return nil, m.err
	}
	return m.hits, nil
}

func newTestService(cat *fakeCatalog, emb *mockEmbedder, idx *mockIndex) *Service {
	return New(cat, emb, idx, scoring.New(scoring.Weights{}), zap.NewNop())
}

func item(id, name, description, category string) domcat.Item {
	return domcat.Item{ID: id, Name: name, Description: description, Category: category, Price: 20}
}

func resultIDs(t *testing.T, recs []Recommendation) []string {
	t.Helper()
	ids := make([]string, 0, len(recs))
	for _, r := range recs {
		ids = append(ids, r.Item.ID)
	}
	return ids
}

func itemIDs(items []domcat.Item) []string {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	return ids
}

func sameIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
