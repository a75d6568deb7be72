package recommend

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	domcat "github.com/shopsmarter/shopsmarter/internal/domain/catalog"
)

// Rank-position weights for the two retrieval legs. Vector similarity
// dominates; keyword matches break in.
const (
	vectorLegWeight  = 0.6
	keywordLegWeight = 0.4
)

// Hybrid fuses vector retrieval and keyword retrieval for one query. Each
// leg contributes weight scaled by rank position; items found by both legs
// accumulate both contributions.
func (s *Service) Hybrid(ctx context.Context, query string, limit int) ([]Recommendation, error) {
	limit = clampLimit(limit)
	start := time.Now()
	fetch := limit * 2

	var vectorIDs []string
	if emb, err := s.embed.Embed(ctx, query); err != nil {
		s.logger.Warn("Hybrid vector leg unavailable", zap.Error(err))
	} else if hits, err := s.index.Search(emb.Embedding, fetch); err != nil {
		s.logger.Warn("Hybrid vector leg unavailable", zap.Error(err))
	} else {
		for _, h := range hits {
			vectorIDs = append(vectorIDs, h.ID)
		}
	}

	keywordItems, err := s.catalog.SearchText(ctx, query, fetch)
	if err != nil {
		return nil, fmt.Errorf("keyword leg: %w", err)
	}
	keywordIDs := make([]string, 0, len(keywordItems))
	for _, item := range keywordItems {
		keywordIDs = append(keywordIDs, item.ID)
	}

	fused := fuseRanks(vectorIDs, keywordIDs, limit)
	if len(fused) == 0 {
		// Neither leg produced anything; the plain search path owns the
		// degenerate fallback policy.
		return s.Search(ctx, query, limit)
	}

	ids := make([]string, 0, len(fused))
	for _, f := range fused {
		ids = append(ids, f.id)
	}
	items, err := s.catalog.BulkLookup(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve fused results: %w", err)
	}

	byID := make(map[string]domcat.Item, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}
	recs := make([]Recommendation, 0, len(fused))
	for _, f := range fused {
		item, ok := byID[f.id]
		if !ok {
			continue
		}
		recs = append(recs, Recommendation{Item: item, Score: f.score})
	}

	s.observe("hybrid", start, len(recs))
	return recs, nil
}

type fusedHit struct {
	id    string
	score float64
}

// fuseRanks merges two ID lists by rank-position weighting: position i in a
// list of n contributes weight*(n-i)/n. Order of first appearance breaks
// score ties.
func fuseRanks(vectorIDs, keywordIDs []string, limit int) []fusedHit {
	scores := make(map[string]float64, len(vectorIDs)+len(keywordIDs))
	var order []string

	add := func(ids []string, weight float64) {
		n := len(ids)
		for i, id := range ids {
			if _, seen := scores[id]; !seen {
				order = append(order, id)
			}
			scores[id] += weight * float64(n-i) / float64(n)
		}
	}
	add(vectorIDs, vectorLegWeight)
	add(keywordIDs, keywordLegWeight)

	fused := make([]fusedHit, 0, len(order))
	for _, id := range order {
		fused = append(fused, fusedHit{id: id, score: scores[id]})
	}
	sort.SliceStable(fused, func(i, j int) bool { return fused[i].score > fused[j].score })
	if len(fused) > limit {
		fused = fused[:limit]
	}
	return fused
}
