package catalog

import (
	"context"
	"sort"
	"strings"
	"testing"

	"github.com/shopsmarter/shopsmarter/internal/db"
	domcat "github.com/shopsmarter/shopsmarter/internal/domain/catalog"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	hsetFn         func(ctx context.Context, key string, fields map[string]string) error
	hsetMultiFn    func(ctx context.Context, items []db.HashSetItem) error
	hgetAllFn      func(ctx context.Context, key string) (map[string]string, error)
	hgetAllMultiFn func(ctx context.Context, keys []string) ([]map[string]string, error)
	delFn          func(ctx context.Context, key string) error
	existsFn       func(ctx context.Context, key string) (bool, error)
	scanFn         func(ctx context.Context, pattern string) ([]string, error)
}

func (m *mockStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if m.hsetFn != nil {
		return m.hsetFn(ctx, key, fields)
	}
	return nil
}

func (m *mockStore) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	if m.hsetMultiFn != nil {
		return m.hsetMultiFn(ctx, items)
	}
	return nil
}

func (m *mockStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if m.hgetAllFn != nil {
		return m.hgetAllFn(ctx, key)
	}
	return map[string]string{}, nil
}

func (m *mockStore) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	if m.hgetAllMultiFn != nil {
		return m.hgetAllMultiFn(ctx, keys)
	}
	return make([]map[string]string, len(keys)), nil
}

func (m *mockStore) Del(ctx context.Context, key string) error {
	if m.delFn != nil {
		return m.delFn(ctx, key)
	}
	return nil
}

func (m *mockStore) Exists(ctx context.Context, key string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, key)
	}
	return false, nil
}

func (m *mockStore) Scan(ctx context.Context, pattern string) ([]string, error) {
	if m.scanFn != nil {
		return m.scanFn(ctx, pattern)
	}
	return nil, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms), ms
}

// seedStore wires the mock's read paths over a fixed set of items.
func seedStore(t *testing.T, ms *mockStore, items ...domcat.Item) {
	t.Helper()
	byKey := make(map[string]map[string]string, len(items))
	for _, item := range items {
		byKey[itemKey(item.ID)] = buildHashFields(item)
	}
	ms.scanFn = func(_ context.Context, pattern string) ([]string, error) {
		if !strings.HasPrefix(pattern, keyPrefix) {
			t.Errorf("scan pattern %q lacks key prefix", pattern)
		}
		keys := make([]string, 0, len(byKey))
		for k := range byKey {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return keys, nil
	}
	ms.hgetAllFn = func(_ context.Context, key string) (map[string]string, error) {
		if m, ok := byKey[key]; ok {
			return m, nil
		}
		return map[string]string{}, nil
	}
	ms.hgetAllMultiFn = func(_ context.Context, keys []string) ([]map[string]string, error) {
		out := make([]map[string]string, len(keys))
		for i, key := range keys {
			if m, ok := byKey[key]; ok {
				out[i] = m
			} else {
				out[i] = map[string]string{}
			}
		}
		return out, nil
	}
}

func testItem(id, name, category string, price float64) domcat.Item {
	return domcat.Item{
		ID:          id,
		Name:        name,
		Description: name + " description",
		Category:    category,
		Price:       price,
	}
}
