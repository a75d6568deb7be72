package refine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	domcat "github.com/shopsmarter/shopsmarter/internal/domain/catalog"
	"github.com/shopsmarter/shopsmarter/internal/domain/constraint"
)

// maxResults bounds how many items a refinement returns.
const maxResults = 20

// Reranker is the optional probabilistic fallback used when rule-based
// filtering changed nothing. Its failures are never fatal.
type Reranker interface {
	Rerank(ctx context.Context, query string, items []domcat.Item, limit int) ([]string, error)
}

// Result is the outcome of one refinement: the filtered or reordered items
// and a human-readable message describing what happened.
type Result struct {
	Items   []domcat.Item
	Message string
}

// Service applies prompt constraints to a result list.
type Service struct {
	reranker Reranker
	logger   *zap.Logger
}

// New creates a refinement service. The reranker may be nil, in which case
// unmatched prompts return the list unchanged.
func New(reranker Reranker, logger *zap.Logger) *Service {
	return &Service{reranker: reranker, logger: logger}
}

// Refine filters and reorders items according to the prompt. Stages compose
// in fixed precedence: informational answer, price bounds, price preference,
// category (strict), color and style (lenient), price sort, truncation.
// A prompt that changes nothing may delegate to the reranker.
func (s *Service) Refine(ctx context.Context, items []domcat.Item, prompt string) (Result, error) {
	c := Extract(prompt)

	if c.Informational() {
		return Result{Items: items, Message: s.answer(items, c, prompt)}, nil
	}

	out := items

	if c.MinPrice != nil || c.MaxPrice != nil {
		out = filterItems(out, func(it domcat.Item) bool {
			if c.MinPrice != nil && it.Price < *c.MinPrice {
				return false
			}
			if c.MaxPrice != nil && it.Price > *c.MaxPrice {
				return false
			}
			return true
		})
	} else if c.Preference != constraint.None {
		// Tertile cut over the pre-filter set, only without explicit bounds.
		out = filterByTertile(out, items, c.Preference)
	}

	if c.Category != "" {
		rule, ok := rulesFor(c.Category)
		if ok {
			out = filterItems(out, func(it domcat.Item) bool {
				return matchesCategory(rule, it)
			})
			if len(out) == 0 {
				// Strict policy: report zero results instead of reverting.
				return Result{
					Message: fmt.Sprintf("No items match the %q category in the current results.", c.Category),
				}, nil
			}
		}
	}

	out = applyLenientTextFilter(out, c.Colors)
	out = applyLenientTextFilter(out, c.StyleKeywords)

	out = sortByPriceSignal(out, c)
	if len(out) > maxResults {
		out = out[:maxResults]
	}

	if sameItems(out, items) {
		return s.delegateToReranker(ctx, items, prompt)
	}
	return Result{
		Items:   out,
		Message: fmt.Sprintf("Refined to %d items: %s.", len(out), c.Summary()),
	}, nil
}

// filterItems keeps items satisfying the predicate, preserving order. The
// input slice is never mutated.
func filterItems(items []domcat.Item, keep func(domcat.Item) bool) []domcat.Item {
	out := make([]domcat.Item, 0, len(items))
	for _, it := range items {
		if keep(it) {
			out = append(out, it)
		}
	}
	return out
}

// filterByTertile keeps the cheapest third (or priciest third) of the
// current set, with the cut price computed over the pre-filter set.
func filterByTertile(out, all []domcat.Item, pref constraint.Preference) []domcat.Item {
	if len(all) == 0 {
		return out
	}
	prices := make([]float64, len(all))
	for i, it := range all {
		prices[i] = it.Price
	}
	sort.Float64s(prices)

	n := len(prices)
	switch pref {
	case constraint.Cheaper:
		cut := prices[(n-1)/3]
		return filterItems(out, func(it domcat.Item) bool { return it.Price <= cut })
	case constraint.Expensive:
		cut := prices[n-1-(n-1)/3]
		return filterItems(out, func(it domcat.Item) bool { return it.Price >= cut })
	}
	return out
}

func matchesCategory(rule categoryRule, it domcat.Item) bool {
	text := it.Text().Combined()
	for _, term := range rule.exclude {
		if strings.Contains(text, term) {
			return false
		}
	}
	for _, term := range rule.include {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}

// applyLenientTextFilter keeps items containing any of the terms, unless
// that would empty the set, in which case the filter is skipped.
func applyLenientTextFilter(items []domcat.Item, terms []string) []domcat.Item {
	if len(terms) == 0 || len(items) == 0 {
		return items
	}
	filtered := filterItems(items, func(it domcat.Item) bool {
		text := it.Text().Combined()
		for _, term := range terms {
			if strings.Contains(text, term) {
				return true
			}
		}
		return false
	})
	if len(filtered) == 0 {
		return items
	}
	return filtered
}

// sortByPriceSignal orders by price when the prompt carried a directional
// price signal; otherwise the incoming order is preserved. An expensive or
// min-only signal sorts descending, any ceiling signal ascending.
func sortByPriceSignal(items []domcat.Item, c constraint.Constraints) []domcat.Item {
	var asc bool
	switch {
	case c.Preference == constraint.Expensive,
		c.MinPrice != nil && c.MaxPrice == nil:
		asc = false
	case c.Preference == constraint.Cheaper, c.MaxPrice != nil:
		asc = true
	default:
		return items
	}

	sorted := append([]domcat.Item(nil), items...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if asc {
			return sorted[i].Price < sorted[j].Price
		}
		return sorted[i].Price > sorted[j].Price
	})
	return sorted
}

func (s *Service) delegateToReranker(
	ctx context.Context, items []domcat.Item, prompt string,
) (Result, error) {
	noConstraints := Result{
		Items:   items,
		Message: "No constraints detected; results unchanged.",
	}
	if s.reranker == nil || len(items) == 0 {
		return noConstraints, nil
	}

	ids, err := s.reranker.Rerank(ctx, prompt, items, maxResults)
	if err != nil {
		s.logger.Warn("Reranker unavailable, keeping rule-based order", zap.Error(err))
		return noConstraints, nil
	}
	if len(ids) == 0 || len(ids) >= len(items) {
		return noConstraints, nil
	}

	byID := make(map[string]domcat.Item, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}
	picked := make([]domcat.Item, 0, len(ids))
	for _, id := range ids {
		if it, ok := byID[id]; ok {
			picked = append(picked, it)
		}
	}
	if len(picked) == 0 {
		return noConstraints, nil
	}
	return Result{
		Items:   picked,
		Message: fmt.Sprintf("Narrowed to %d items by semantic reranking.", len(picked)),
	}, nil
}

// answer builds the textual reply for an informational prompt. The item
// list passes through unchanged.
func (s *Service) answer(items []domcat.Item, c constraint.Constraints, prompt string) string {
	if len(items) == 0 {
		return "There are no items in the current results."
	}
	switch c.Intent {
	case constraint.IntentCount:
		return fmt.Sprintf("There are %d items in the current results.", len(items))
	case constraint.IntentPriceRange:
		return priceAnswer(items, strings.ToLower(prompt))
	case constraint.IntentCategories:
		return categoriesAnswer(items)
	}
	return fmt.Sprintf("There are %d items in the current results.", len(items))
}

func priceAnswer(items []domcat.Item, prompt string) string {
	cheapest, priciest := items[0], items[0]
	var sum float64
	for _, it := range items {
		if it.Price < cheapest.Price {
			cheapest = it
		}
		if it.Price > priciest.Price {
			priciest = it
		}
		sum += it.Price
	}

	switch {
	case strings.Contains(prompt, "cheapest"):
		return fmt.Sprintf("The cheapest item is %s at $%.2f.", cheapest.Name, cheapest.Price)
	case strings.Contains(prompt, "most expensive"):
		return fmt.Sprintf("The most expensive item is %s at $%.2f.", priciest.Name, priciest.Price)
	}
	return fmt.Sprintf(
		"Prices range from $%.2f to $%.2f, averaging $%.2f.",
		cheapest.Price, priciest.Price, sum/float64(len(items)),
	)
}

func categoriesAnswer(items []domcat.Item) string {
	counts := make(map[string]int)
	var order []string
	for _, it := range items {
		cat := strings.ToLower(strings.TrimSpace(it.Category))
		if cat == "" {
			cat = "uncategorized"
		}
		if _, seen := counts[cat]; !seen {
			order = append(order, cat)
		}
		counts[cat]++
	}
	parts := make([]string, 0, len(order))
	for _, cat := range order {
		parts = append(parts, fmt.Sprintf("%s (%d)", cat, counts[cat]))
	}
	return "Current results cover: " + strings.Join(parts, ", ") + "."
}

func sameItems(a, b []domcat.Item) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
	}
	return true
}
