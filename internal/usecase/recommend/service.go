package recommend

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/shopsmarter/shopsmarter/internal/domain"
	"github.com/shopsmarter/shopsmarter/internal/domain/attribute"
	domcat "github.com/shopsmarter/shopsmarter/internal/domain/catalog"
	"github.com/shopsmarter/shopsmarter/internal/metrics"
	"github.com/shopsmarter/shopsmarter/internal/scoring"
)

const (
	defaultLimit = 10
	maxLimit     = 50

	// Vector retrieval over-fetches so attribute rescoring has room to
	// reject candidates and still fill the page.
	candidateMultiplier = 8
)

// Recommendation is one ranked result. Score is the attribute score, which
// is authoritative for ordering; fallback results carry zero.
type Recommendation struct {
	Item  domcat.Item
	Score float64
}

// Service handles similarity retrieval: attribute pre-filtering first,
// vector candidates with attribute rescoring second, random sampling as the
// degenerate last resort.
type Service struct {
	catalog Catalog
	embed   Embedder
	index   VectorIndex
	scorer  scoring.Scorer
	logger  *zap.Logger
}

// New creates a recommendation service.
func New(catalog Catalog, embed Embedder, idx VectorIndex, scorer scoring.Scorer, logger *zap.Logger) *Service {
	return &Service{catalog: catalog, embed: embed, index: idx, scorer: scorer, logger: logger}
}

// Search recommends items for a free-text query.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]Recommendation, error) {
	limit = clampLimit(limit)
	q := attribute.FromItemText(query, "", "")
	return s.search(ctx, q, query, limit, "")
}

// SearchByItem recommends items similar to an existing catalog item. The
// item's attribute record is re-derived from its text, never assumed stored.
func (s *Service) SearchByItem(ctx context.Context, id string, limit int) ([]Recommendation, error) {
	limit = clampLimit(limit)
	item, err := s.catalog.Lookup(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("lookup seed item: %w", err)
	}
	q := attribute.FromItemText(item.Name, item.Description, item.Category)
	return s.search(ctx, q, q.PromptText(), limit, item.ID)
}

func (s *Service) search(
	ctx context.Context, q attribute.Record, text string, limit int, excludeID string,
) ([]Recommendation, error) {
	start := time.Now()

	// Stage 1: hard pre-filter against the catalog. When it already fills
	// the page the index search is skipped entirely.
	var prefiltered []Recommendation
	pred := scoring.Prefilter(q)
	if !pred.Empty() {
		matched, err := s.catalog.Filter(ctx, func(item domcat.Item) bool {
			return item.ID != excludeID && pred.Matches(item.Text())
		}, limit*2)
		if err != nil {
			return nil, fmt.Errorf("prefilter catalog: %w", err)
		}
		prefiltered = s.rank(q, matched, limit)
		if len(prefiltered) >= limit {
			s.observe("prefilter", start, len(prefiltered))
			return prefiltered, nil
		}
	}

	// Stage 2: vector candidates rescored by attributes. Provider or index
	// failure degrades to attribute-only retrieval instead of failing.
	recs, err := s.searchVector(ctx, q, text, limit, excludeID)
	if err != nil {
		s.logger.Warn("Vector retrieval degraded", zap.Error(err))
		recs, err = s.scanCatalog(ctx, q, limit, excludeID)
		if err != nil {
			return nil, err
		}
	}
	if len(recs) > 0 {
		s.observe("vector", start, len(recs))
		return recs, nil
	}
	if len(prefiltered) > 0 {
		s.observe("prefilter", start, len(prefiltered))
		return prefiltered, nil
	}

	// Degenerate case: loosen everything and resample.
	return s.fallbackSample(ctx, limit, excludeID, start)
}

func (s *Service) searchVector(
	ctx context.Context, q attribute.Record, text string, limit int, excludeID string,
) ([]Recommendation, error) {
	emb, err := s.embed.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}

	hits, err := s.index.Search(emb.Embedding, limit*candidateMultiplier)
	if err != nil {
		return nil, fmt.Errorf("index search: %w", err)
	}

	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		if h.ID == excludeID {
			continue
		}
		ids = append(ids, h.ID)
	}
	items, err := s.catalog.BulkLookup(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve candidates: %w", err)
	}
	return s.rank(q, items, limit), nil
}

// scanCatalog scores the whole catalog directly. Used when vector retrieval
// is unavailable.
func (s *Service) scanCatalog(
	ctx context.Context, q attribute.Record, limit int, excludeID string,
) ([]Recommendation, error) {
	all, err := s.catalog.Filter(ctx, func(item domcat.Item) bool {
		return item.ID != excludeID
	}, 0)
	if err != nil {
		return nil, fmt.Errorf("scan catalog: %w", err)
	}
	return s.rank(q, all, limit), nil
}

func (s *Service) fallbackSample(
	ctx context.Context, limit int, excludeID string, start time.Time,
) ([]Recommendation, error) {
	sample, err := s.catalog.Sample(ctx, limit, func(item domcat.Item) bool {
		return item.ID == excludeID || isInfantItem(item)
	})
	if err != nil {
		return nil, fmt.Errorf("fallback sample: %w", err)
	}
	if len(sample) == 0 {
		return nil, domain.ErrEmptyCatalog
	}

	recs := make([]Recommendation, 0, len(sample))
	for _, item := range sample {
		recs = append(recs, Recommendation{Item: item})
	}
	s.observe("fallback", start, len(recs))
	return recs, nil
}

// rank scores items, keeps those above the acceptance threshold and orders
// by attribute score. Ties keep retrieval order.
func (s *Service) rank(q attribute.Record, items []domcat.Item, limit int) []Recommendation {
	recs := make([]Recommendation, 0, len(items))
	for _, item := range items {
		score := s.scorer.Score(q, item.Text())
		if score > s.scorer.Threshold() {
			recs = append(recs, Recommendation{Item: item, Score: score})
		}
	}
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Score > recs[j].Score })
	if len(recs) > limit {
		recs = recs[:limit]
	}
	return recs
}

func (s *Service) observe(mode string, start time.Time, results int) {
	metrics.SearchRequestsTotal.WithLabelValues(mode, "success").Inc()
	metrics.SearchDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	metrics.SearchResultsReturned.WithLabelValues(mode).Observe(float64(results))
}

func isInfantItem(item domcat.Item) bool {
	t := item.Text()
	return t.Anywhere("infant") || t.Anywhere("baby")
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}
