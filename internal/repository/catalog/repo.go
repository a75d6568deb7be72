package catalog

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/shopsmarter/shopsmarter/internal/db"
	"github.com/shopsmarter/shopsmarter/internal/domain"
	domcat "github.com/shopsmarter/shopsmarter/internal/domain/catalog"
)

const keyPrefix = "shopsmarter:product:"

// store is the consumer interface for the product catalog (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Repo stores products one hash per item under keyPrefix.
type Repo struct {
	store store
}

// New creates a catalog repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Upsert creates or updates an item.
func (r *Repo) Upsert(ctx context.Context, item domcat.Item) error {
	if item.ID == "" {
		return fmt.Errorf("upsert: empty item id")
	}
	if err := r.store.HSet(ctx, itemKey(item.ID), buildHashFields(item)); err != nil {
		return fmt.Errorf("hset %s: %w", item.ID, err)
	}
	return nil
}

// UpsertMulti stores a batch of items in one pipelined round-trip.
func (r *Repo) UpsertMulti(ctx context.Context, items []domcat.Item) error {
	if len(items) == 0 {
		return nil
	}
	batch := make([]db.HashSetItem, 0, len(items))
	for _, item := range items {
		if item.ID == "" {
			return fmt.Errorf("upsert multi: empty item id")
		}
		batch = append(batch, db.HashSetItem{Key: itemKey(item.ID), Fields: buildHashFields(item)})
	}
	if err := r.store.HSetMulti(ctx, batch); err != nil {
		return fmt.Errorf("hset multi: %w", err)
	}
	return nil
}

// Lookup returns an item by ID.
func (r *Repo) Lookup(ctx context.Context, id string) (domcat.Item, error) {
	m, err := r.store.HGetAll(ctx, itemKey(id))
	if err != nil {
		return domcat.Item{}, fmt.Errorf("hgetall %s: %w", id, err)
	}
	// HGETALL on a missing key is an empty map, not an error.
	if len(m) == 0 {
		return domcat.Item{}, domain.ErrItemNotFound
	}
	return parseHashFields(id, m), nil
}

// BulkLookup resolves IDs in order, silently dropping the ones that no
// longer exist.
func (r *Repo) BulkLookup(ctx context.Context, ids []string) ([]domcat.Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = itemKey(id)
	}
	maps, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("hgetall multi: %w", err)
	}
	items := make([]domcat.Item, 0, len(ids))
	for i, m := range maps {
		if len(m) == 0 {
			continue
		}
		items = append(items, parseHashFields(ids[i], m))
	}
	return items, nil
}

// All returns every item in the catalog. Scan order is unspecified.
func (r *Repo) All(ctx context.Context) ([]domcat.Item, error) {
	ids, err := r.ids(ctx)
	if err != nil {
		return nil, err
	}
	return r.BulkLookup(ctx, ids)
}

// Filter returns up to limit items for which match is true. limit <= 0
// means no cap.
func (r *Repo) Filter(ctx context.Context, match func(domcat.Item) bool, limit int) ([]domcat.Item, error) {
	all, err := r.All(ctx)
	if err != nil {
		return nil, err
	}
	var out []domcat.Item
	for _, item := range all {
		if !match(item) {
			continue
		}
		out = append(out, item)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Sample returns up to n randomly chosen items, skipping the ones exclude
// rejects. A nil exclude accepts everything.
func (r *Repo) Sample(ctx context.Context, n int, exclude func(domcat.Item) bool) ([]domcat.Item, error) {
	if n <= 0 {
		return nil, nil
	}
	all, err := r.All(ctx)
	if err != nil {
		return nil, err
	}
	rand.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })

	out := make([]domcat.Item, 0, n)
	for _, item := range all {
		if exclude != nil && exclude(item) {
			continue
		}
		out = append(out, item)
		if len(out) == n {
			break
		}
	}
	return out, nil
}

// Latest pages through the catalog in descending ID order. IDs are assigned
// monotonically at ingest, so this approximates recency.
func (r *Repo) Latest(ctx context.Context, offset, limit int) ([]domcat.Item, error) {
	if limit <= 0 {
		limit = 20
	}
	ids, err := r.ids(ctx)
	if err != nil {
		return nil, err
	}
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))
	if offset >= len(ids) {
		return nil, nil
	}
	ids = ids[offset:]
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return r.BulkLookup(ctx, ids)
}

// SearchText returns items whose name, description or category contains the
// query, case-insensitively.
func (r *Repo) SearchText(ctx context.Context, query string, limit int) ([]domcat.Item, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, nil
	}
	return r.Filter(ctx, func(item domcat.Item) bool {
		return item.Text().Anywhere(q)
	}, limit)
}

// CategoryCount is one entry of the category breakdown.
type CategoryCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Categories returns the distinct categories with item counts, sorted by
// count descending then name.
func (r *Repo) Categories(ctx context.Context) ([]CategoryCount, error) {
	all, err := r.All(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, item := range all {
		name := strings.ToLower(strings.TrimSpace(item.Category))
		if name == "" {
			name = "uncategorized"
		}
		counts[name]++
	}
	out := make([]CategoryCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, CategoryCount{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// Count returns the number of items in the catalog.
func (r *Repo) Count(ctx context.Context) (int, error) {
	ids, err := r.ids(ctx)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// Stats is the aggregate catalog summary for the stats endpoint.
type Stats struct {
	Items      int     `json:"items"`
	Categories int     `json:"categories"`
	MinPrice   float64 `json:"min_price"`
	MaxPrice   float64 `json:"max_price"`
	AvgPrice   float64 `json:"avg_price"`
}

// Stats aggregates item count, distinct categories and the price spread.
func (r *Repo) Stats(ctx context.Context) (Stats, error) {
	items, err := r.All(ctx)
	if err != nil {
		return Stats{}, err
	}
	if len(items) == 0 {
		return Stats{}, nil
	}

	s := Stats{Items: len(items), MinPrice: items[0].Price, MaxPrice: items[0].Price}
	cats := make(map[string]bool)
	var sum float64
	for _, item := range items {
		cats[strings.ToLower(strings.TrimSpace(item.Category))] = true
		sum += item.Price
		if item.Price < s.MinPrice {
			s.MinPrice = item.Price
		}
		if item.Price > s.MaxPrice {
			s.MaxPrice = item.Price
		}
	}
	s.Categories = len(cats)
	s.AvgPrice = sum / float64(len(items))
	return s, nil
}

// Delete removes an item.
func (r *Repo) Delete(ctx context.Context, id string) error {
	key := itemKey(id)
	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check exists %s: %w", id, err)
	}
	if !exists {
		return domain.ErrItemNotFound
	}
	if err := r.store.Del(ctx, key); err != nil {
		return fmt.Errorf("del %s: %w", id, err)
	}
	return nil
}

func (r *Repo) ids(ctx context.Context) ([]string, error) {
	keys, err := r.store.Scan(ctx, keyPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("scan products: %w", err)
	}
	ids := make([]string, 0, len(keys))
	for _, key := range keys {
		ids = append(ids, strings.TrimPrefix(key, keyPrefix))
	}
	sort.Strings(ids)
	return ids, nil
}

func itemKey(id string) string {
	return keyPrefix + id
}
