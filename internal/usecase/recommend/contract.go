package recommend

import (
	"context"

	"github.com/shopsmarter/shopsmarter/internal/domain"
	domcat "github.com/shopsmarter/shopsmarter/internal/domain/catalog"
	"github.com/shopsmarter/shopsmarter/internal/index"
)

// Catalog defines the storage contract for recommendation retrieval.
type Catalog interface {
	Lookup(ctx context.Context, id string) (domcat.Item, error)
	BulkLookup(ctx context.Context, ids []string) ([]domcat.Item, error)
	Filter(ctx context.Context, match func(domcat.Item) bool, limit int) ([]domcat.Item, error)
	Sample(ctx context.Context, n int, exclude func(domcat.Item) bool) ([]domcat.Item, error)
	SearchText(ctx context.Context, query string, limit int) ([]domcat.Item, error)
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// VectorIndex searches the candidate index.
type VectorIndex interface {
	Search(query []float32, k int) ([]index.Hit, error)
}
