package cart

import (
	"context"

	domcat "github.com/shopsmarter/shopsmarter/internal/domain/catalog"
	"github.com/shopsmarter/shopsmarter/internal/usecase/recommend"
)

// Recommender supplies the suggestion sources for cart analysis.
type Recommender interface {
	Complementary(ctx context.Context, id string, limit int) ([]domcat.Item, error)
	SearchByItem(ctx context.Context, id string, limit int) ([]recommend.Recommendation, error)
}
