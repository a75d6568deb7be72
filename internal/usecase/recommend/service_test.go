package recommend

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/shopsmarter/shopsmarter/internal/domain"
	domcat "github.com/shopsmarter/shopsmarter/internal/domain/catalog"
	"github.com/shopsmarter/shopsmarter/internal/index"
)

func TestSearch_PrefilterFillsPage(t *testing.T) {
	cat := &fakeCatalog{items: []domcat.Item{
		item("p1", "Black T-Shirt", "", "clothing"),
		item("p2", "Black Tee", "", "clothing"),
		item("p3", "White T-Shirt", "", "clothing"),
		item("p4", "Red Dress", "", "clothing"),
	}}
	emb := &mockEmbedder{}
	idx := &mockIndex{}
	svc := newTestService(cat, emb, idx)

	recs, err := svc.Search(context.Background(), "black t-shirt", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := resultIDs(t, recs); !sameIDs(got, []string{"p1", "p2"}) {
		t.Fatalf("expected [p1 p2], got %v", got)
	}
	if recs[0].Score <= recs[1].Score {
		t.Errorf("expected descending scores, got %v then %v", recs[0].Score, recs[1].Score)
	}
	// neutral gender 0.25 + primary color 0.245 + subcategory 0.10 + category 0.05
	if math.Abs(recs[0].Score-0.645) > 1e-9 {
		t.Errorf("expected top score 0.645, got %v", recs[0].Score)
	}
	if emb.calls != 0 {
		t.Error("embedder should not be called when the pre-filter fills the page")
	}
	if idx.calls != 0 {
		t.Error("index should not be called when the pre-filter fills the page")
	}
}

func TestSearch_VectorPathRescoresByAttributes(t *testing.T) {
	cat := &fakeCatalog{items: []domcat.Item{
		item("p1", "Black T-Shirt", "", "clothing"),
		item("p2", "Black Tee", "", "clothing"),
		item("p3", "Red Dress", "", "clothing"),
		item("p4", "White Polo", "", "clothing"),
	}}
	emb := &mockEmbedder{}
	// Similarity order disagrees with attribute relevance on purpose.
	idx := &mockIndex{hits: []index.Hit{
		{ID: "p2", Similarity: 0.95},
		{ID: "p3", Similarity: 0.90},
		{ID: "p1", Similarity: 0.85},
		{ID: "p4", Similarity: 0.80},
	}}
	svc := newTestService(cat, emb, idx)

	recs, err := svc.Search(context.Background(), "black t-shirt", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := resultIDs(t, recs); !sameIDs(got, []string{"p1", "p2"}) {
		t.Fatalf("expected [p1 p2] by attribute score, got %v", got)
	}
	if emb.calls != 1 {
		t.Fatalf("expected 1 embed call, got %d", emb.calls)
	}
	if emb.lastText != "black t-shirt" {
		t.Errorf("expected raw query text to be embedded, got %q", emb.lastText)
	}
	if idx.lastK != 3*candidateMultiplier {
		t.Errorf("expected over-fetch k=%d, got %d", 3*candidateMultiplier, idx.lastK)
	}
}

func TestSearch_EmbedFailureDegradesToScan(t *testing.T) {
	cat := &fakeCatalog{items: []domcat.Item{
		item("p1", "Black T-Shirt", "", "clothing"),
		item("p2", "Black Tee", "", "clothing"),
		item("p3", "Red Dress", "", "clothing"),
	}}
	emb := &mockEmbedder{err: domain.ErrEmbeddingProviderError}
	idx := &mockIndex{}
	svc := newTestService(cat, emb, idx)

	recs, err := svc.Search(context.Background(), "black t-shirt", 3)
	if err != nil {
		t.Fatalf("expected degraded search to succeed, got %v", err)
	}
	if got := resultIDs(t, recs); !sameIDs(got, []string{"p1", "p2"}) {
		t.Fatalf("expected [p1 p2] from catalog scan, got %v", got)
	}
	if idx.calls != 0 {
		t.Error("index should not be reached when embedding fails")
	}
}

func TestSearch_IndexFailureDegradesToScan(t *testing.T) {
	cat := &fakeCatalog{items: []domcat.Item{
		item("p1", "Black T-Shirt", "", "clothing"),
		item("p2", "Black Tee", "", "clothing"),
		item("p3", "Red Dress", "", "clothing"),
	}}
	emb := &mockEmbedder{}
	idx := &mockIndex{err: domain.ErrIndexUnavailable}
	svc := newTestService(cat, emb, idx)

	recs, err := svc.Search(context.Background(), "black t-shirt", 3)
	if err != nil {
		t.Fatalf("expected degraded search to succeed, got %v", err)
	}
	if got := resultIDs(t, recs); !sameIDs(got, []string{"p1", "p2"}) {
		t.Fatalf("expected [p1 p2] from catalog scan, got %v", got)
	}
	if emb.calls != 1 {
		t.Fatalf("expected 1 embed call, got %d", emb.calls)
	}
}

func TestSearch_PartialPrefilterReturnedWhenVectorsEmpty(t *testing.T) {
	cat := &fakeCatalog{items: []domcat.Item{
		item("p1", "Black T-Shirt", "", "clothing"),
		item("p2", "Red Dress", "", "clothing"),
	}}
	emb := &mockEmbedder{}
	idx := &mockIndex{} // no hits
	svc := newTestService(cat, emb, idx)

	recs, err := svc.Search(context.Background(), "black t-shirt", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := resultIDs(t, recs); !sameIDs(got, []string{"p1"}) {
		t.Fatalf("expected partial pre-filter result [p1], got %v", got)
	}
}

func TestSearch_FallbackSampleExcludesInfantWear(t *testing.T) {
	cat := &fakeCatalog{items: []domcat.Item{
		item("b1", "Baby Romper", "", "clothing"),
		item("p1", "Blue Jeans", "", "clothing"),
		item("p2", "Green Scarf", "", "accessories"),
	}}
	emb := &mockEmbedder{}
	idx := &mockIndex{hits: []index.Hit{
		{ID: "p1", Similarity: 0.5},
		{ID: "p2", Similarity: 0.4},
		{ID: "b1", Similarity: 0.3},
	}}
	svc := newTestService(cat, emb, idx)

	// Nothing in the catalog clears the threshold for this query.
	recs, err := svc.Search(context.Background(), "purple gown", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := resultIDs(t, recs); !sameIDs(got, []string{"p1", "p2"}) {
		t.Fatalf("expected sampled [p1 p2], got %v", got)
	}
	for _, r := range recs {
		if r.Score != 0 {
			t.Errorf("fallback results must carry zero score, got %v for %s", r.Score, r.Item.ID)
		}
	}
}

func TestSearch_EmptyCatalog(t *testing.T) {
	cat := &fakeCatalog{items: []domcat.Item{
		item("b1", "Baby Romper", "", "clothing"),
	}}
	svc := newTestService(cat, &mockEmbedder{}, &mockIndex{})

	_, err := svc.Search(context.Background(), "purple gown", 2)
	if !errors.Is(err, domain.ErrEmptyCatalog) {
		t.Fatalf("expected ErrEmptyCatalog, got %v", err)
	}
}

func TestSearchByItem_ExcludesSeed(t *testing.T) {
	cat := &fakeCatalog{items: []domcat.Item{
		item("p1", "Black T-Shirt", "", "clothing"),
		item("p2", "Black Tee", "", "clothing"),
		item("p3", "Black T-Shirt Slim", "", "clothing"),
	}}
	emb := &mockEmbedder{}
	svc := newTestService(cat, emb, &mockIndex{})

	recs, err := svc.SearchByItem(context.Background(), "p1", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := resultIDs(t, recs); !sameIDs(got, []string{"p3", "p2"}) {
		t.Fatalf("expected [p3 p2], got %v", got)
	}
	for _, r := range recs {
		if r.Item.ID == "p1" {
			t.Fatal("seed item must never appear in its own results")
		}
	}
}

func TestSearchByItem_EmbedsAttributePrompt(t *testing.T) {
	cat := &fakeCatalog{items: []domcat.Item{
		item("p1", "Black T-Shirt", "", "clothing"),
		item("p2", "Blue Jeans", "", "clothing"),
	}}
	emb := &mockEmbedder{}
	svc := newTestService(cat, emb, &mockIndex{})

	recs, err := svc.SearchByItem(context.Background(), "p1", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "A t-shirt from clothing category with black colors with solid patterns in casual style"
	if emb.lastText != want {
		t.Errorf("expected prompt %q, got %q", want, emb.lastText)
	}
	// Nothing scores above the threshold, so the sample fallback serves p2.
	if got := resultIDs(t, recs); !sameIDs(got, []string{"p2"}) {
		t.Fatalf("expected fallback [p2], got %v", got)
	}
}

func TestSearchByItem_NotFound(t *testing.T) {
	svc := newTestService(&fakeCatalog{}, &mockEmbedder{}, &mockIndex{})

	_, err := svc.SearchByItem(context.Background(), "missing", 5)
	if !errors.Is(err, domain.ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
}

func TestClampLimit(t *testing.T) {
	cases := []struct {
		in, want int
	}{
		{0, defaultLimit},
		{-3, defaultLimit},
		{7, 7},
		{maxLimit, maxLimit},
		{maxLimit + 1, maxLimit},
	}
	for _, tc := range cases {
		if got := clampLimit(tc.in); got != tc.want {
			t.Errorf("clampLimit(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}
