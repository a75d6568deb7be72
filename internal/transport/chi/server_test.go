package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/shopsmarter/shopsmarter/internal/domain"
	domcat "github.com/shopsmarter/shopsmarter/internal/domain/catalog"
	"github.com/shopsmarter/shopsmarter/internal/index"
	catalogrepo "github.com/shopsmarter/shopsmarter/internal/repository/catalog"
	cartuc "github.com/shopsmarter/shopsmarter/internal/usecase/cart"
	healthuc "github.com/shopsmarter/shopsmarter/internal/usecase/health"
	recommenduc "github.com/shopsmarter/shopsmarter/internal/usecase/recommend"
	refineuc "github.com/shopsmarter/shopsmarter/internal/usecase/refine"
)

// --- Mocks ---

type stubRecommender struct {
	recs  []recommenduc.Recommendation
	items []domcat.Item
	err   error

	lastQuery string
	lastID    string
	lastLimit int
	lastOp    string
}

func (m *stubRecommender) Search(_ context.Context, query string, limit int) ([]recommenduc.Recommendation, error) {
	m.lastOp, m.lastQuery, m.lastLimit = "search", query, limit
	return m.recs, m.err
}

func (m *stubRecommender) SearchByItem(_ context.Context, id string, limit int) ([]recommenduc.Recommendation, error) {
	m.lastOp, m.lastID, m.lastLimit = "search_by_item", id, limit
	return m.recs, m.err
}

func (m *stubRecommender) Complementary(_ context.Context, id string, limit int) ([]domcat.Item, error) {
	m.lastOp, m.lastID, m.lastLimit = "complementary", id, limit
	return m.items, m.err
}

func (m *stubRecommender) Hybrid(_ context.Context, query string, limit int) ([]recommenduc.Recommendation, error) {
	m.lastOp, m.lastQuery, m.lastLimit = "hybrid", query, limit
	return m.recs, m.err
}

type stubRefiner struct {
	res refineuc.Result
	err error

	gotItems   []domcat.Item
	lastPrompt string
}

func (m *stubRefiner) Refine(_ context.Context, items []domcat.Item, prompt string) (refineuc.Result, error) {
	m.gotItems, m.lastPrompt = items, prompt
	return m.res, m.err
}

type stubCart struct {
	analysis cartuc.Analysis
	err      error

	gotLines []cartuc.Line
}

func (m *stubCart) Analyze(_ context.Context, lines []cartuc.Line) (cartuc.Analysis, error) {
	m.gotLines = lines
	return m.analysis, m.err
}

type stubCatalog struct {
	items []domcat.Item
	err   error
}

func (m *stubCatalog) Lookup(_ context.Context, id string) (domcat.Item, error) {
	if m.err != nil {
		return domcat.Item{}, m.err
	}
	for _, item := range m.items {
		if item.ID == id {
			return item, nil
		}
	}
	return domcat.Item{}, domain.ErrItemNotFound
}

func (m *stubCatalog) BulkLookup(_ context.Context, ids []string) ([]domcat.Item, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []domcat.Item
	for _, id := range ids {
		for _, item := range m.items {
			if item.ID == id {
				out = append(out, item)
				break
			}
		}
	}
	return out, nil
}

func (m *stubCatalog) Latest(_ context.Context, offset, limit int) ([]domcat.Item, error) {
	if m.err != nil {
		return nil, m.err
	}
	if offset >= len(m.items) {
		return nil, nil
	}
	items := m.items[offset:]
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (m *stubCatalog) SearchText(_ context.Context, query string, limit int) ([]domcat.Item, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []domcat.Item
	for _, item := range m.items {
		if item.Text().Anywhere(strings.ToLower(query)) {
			out = append(out, item)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *stubCatalog) Categories(_ context.Context) ([]catalogrepo.CategoryCount, error) {
	if m.err != nil {
		return nil, m.err
	}
	return []catalogrepo.CategoryCount{{Name: "clothing", Count: len(m.items)}}, nil
}

func (m *stubCatalog) Stats(_ context.Context) (catalogrepo.Stats, error) {
	if m.err != nil {
		return catalogrepo.Stats{}, m.err
	}
	return catalogrepo.Stats{Items: len(m.items)}, nil
}

type stubHealth struct {
	report healthuc.Report
}

func (m *stubHealth) Check(context.Context) healthuc.Report { return m.report }

type stubIndexStatus struct {
	stats index.Stats
}

func (m *stubIndexStatus) Stats() index.Stats { return m.stats }

type testEnv struct {
	recommend *stubRecommender
	refine    *stubRefiner
	cart      *stubCart
	catalog   *stubCatalog
	health    *stubHealth
	status    *stubIndexStatus
	router    chi.Router
}

func newTestEnv() *testEnv {
	env := &testEnv{
		recommend: &stubRecommender{},
		refine:    &stubRefiner{},
		cart:      &stubCart{},
		catalog:   &stubCatalog{},
		health:    &stubHealth{report: healthuc.Report{Status: healthuc.Healthy}},
		status:    &stubIndexStatus{},
	}
	srv := NewServer(env.recommend, env.refine, env.cart, env.catalog, env.health, env.status, zap.NewNop())
	env.router = chi.NewRouter()
	srv.Routes(env.router)
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func testItem(id, name string, price float64) domcat.Item {
	return domcat.Item{ID: id, Name: name, Category: "clothing", Price: price}
}

// --- Recommendations ---

func TestSimilar_ByQuery(t *testing.T) {
	env := newTestEnv()
	env.recommend.recs = []recommenduc.Recommendation{
		{Item: testItem("p1", "Black T-Shirt", 19.99), Score: 0.645},
	}

	rr := env.do(t, "POST", "/api/recommendations/similar",
		map[string]any{"query": "black t-shirt", "limit": 5})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d (%s)", rr.Code, http.StatusOK, rr.Body.String())
	}
	if env.recommend.lastOp != "search" || env.recommend.lastQuery != "black t-shirt" || env.recommend.lastLimit != 5 {
		t.Errorf("call: got %s(%q, %d)", env.recommend.lastOp, env.recommend.lastQuery, env.recommend.lastLimit)
	}

	resp := decode[recommendationsResponse](t, rr)
	if resp.Count != 1 || len(resp.Results) != 1 {
		t.Fatalf("count: got %d results", len(resp.Results))
	}
	if resp.Results[0].Item.ID != "p1" || resp.Results[0].Score != 0.645 {
		t.Errorf("result: got %+v", resp.Results[0])
	}
}

func TestSimilar_ByProductID(t *testing.T) {
	env := newTestEnv()
	env.recommend.recs = []recommenduc.Recommendation{
		{Item: testItem("p2", "Black Tee", 14.99), Score: 0.635},
	}

	rr := env.do(t, "POST", "/api/recommendations/similar",
		map[string]any{"product_id": "p1", "limit": 3})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	if env.recommend.lastOp != "search_by_item" || env.recommend.lastID != "p1" {
		t.Errorf("call: got %s(%q)", env.recommend.lastOp, env.recommend.lastID)
	}
}

func TestSimilar_RejectsBothAndNeither(t *testing.T) {
	env := newTestEnv()

	for name, body := range map[string]map[string]any{
		"neither": {"limit": 5},
		"both":    {"query": "shoes", "product_id": "p1"},
	} {
		rr := env.do(t, "POST", "/api/recommendations/similar", body)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: got %d, want %d", name, rr.Code, http.StatusBadRequest)
		}
		resp := decode[errorResponse](t, rr)
		if resp.Code != codeBadRequest {
			t.Errorf("%s: error code %s", name, resp.Code)
		}
	}
}

func TestSimilar_ItemNotFoundMapsTo404(t *testing.T) {
	env := newTestEnv()
	env.recommend.err = fmt.Errorf("lookup seed: %w", domain.ErrItemNotFound)

	rr := env.do(t, "POST", "/api/recommendations/similar", map[string]any{"product_id": "missing"})

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
	resp := decode[errorResponse](t, rr)
	if resp.Code != codeItemNotFound {
		t.Errorf("error code: got %s, want %s", resp.Code, codeItemNotFound)
	}
	if resp.Message != domain.ErrItemNotFound.Error() {
		t.Errorf("message: got %q", resp.Message)
	}
}

func TestSimilar_UnknownErrorMapsTo500WithoutDetails(t *testing.T) {
	env := newTestEnv()
	env.recommend.err = fmt.Errorf("redis: connection refused to 10.0.0.5")

	rr := env.do(t, "POST", "/api/recommendations/similar", map[string]any{"query": "shoes"})

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusInternalServerError)
	}
	resp := decode[errorResponse](t, rr)
	if resp.Message != "internal error" {
		t.Errorf("internal details leaked: %q", resp.Message)
	}
}

func TestHybrid_RequiresQuery(t *testing.T) {
	env := newTestEnv()

	rr := env.do(t, "POST", "/api/recommendations/hybrid", map[string]any{"limit": 5})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}

	rr = env.do(t, "POST", "/api/recommendations/hybrid", map[string]any{"query": "denim"})
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	if env.recommend.lastOp != "hybrid" || env.recommend.lastQuery != "denim" {
		t.Errorf("call: got %s(%q)", env.recommend.lastOp, env.recommend.lastQuery)
	}
}

func TestComplementary_ReturnsItems(t *testing.T) {
	env := newTestEnv()
	env.recommend.items = []domcat.Item{
		testItem("c1", "Men's Slim Jeans", 49.99),
		testItem("c2", "Leather Belt", 24.99),
	}

	rr := env.do(t, "POST", "/api/recommendations/complementary",
		map[string]any{"product_id": "p1", "limit": 4})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	resp := decode[itemsResponse](t, rr)
	if resp.Count != 2 || resp.Items[0].ID != "c1" {
		t.Errorf("items: got %+v", resp.Items)
	}
}

func TestComplementary_EmptyCatalogMapsTo404(t *testing.T) {
	env := newTestEnv()
	env.recommend.err = domain.ErrEmptyCatalog

	rr := env.do(t, "POST", "/api/recommendations/complementary", map[string]any{"product_id": "p1"})

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
	resp := decode[errorResponse](t, rr)
	if resp.Code != codeEmptyCatalog {
		t.Errorf("error code: got %s", resp.Code)
	}
}

func TestRefine_ResolvesIDsAndForwardsPrompt(t *testing.T) {
	env := newTestEnv()
	env.catalog.items = []domcat.Item{
		testItem("a", "Red T-Shirt", 19.99),
		testItem("b", "Blue Jeans", 59.99),
	}
	env.refine.res = refineuc.Result{
		Items:   []domcat.Item{testItem("a", "Red T-Shirt", 19.99)},
		Message: "Refined to 1 items: under $30.",
	}

	rr := env.do(t, "POST", "/api/recommendations/refine",
		map[string]any{"product_ids": []string{"a", "gone", "b"}, "prompt": "under $30"})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	// Missing IDs drop out before refinement.
	if len(env.refine.gotItems) != 2 || env.refine.gotItems[0].ID != "a" || env.refine.gotItems[1].ID != "b" {
		t.Errorf("refiner input: got %+v", env.refine.gotItems)
	}
	if env.refine.lastPrompt != "under $30" {
		t.Errorf("prompt: got %q", env.refine.lastPrompt)
	}
	resp := decode[refineResponse](t, rr)
	if resp.Count != 1 || resp.Items[0].ID != "a" || resp.Message == "" {
		t.Errorf("response: got %+v", resp)
	}
}

func TestRefine_RequiresPrompt(t *testing.T) {
	env := newTestEnv()

	rr := env.do(t, "POST", "/api/recommendations/refine",
		map[string]any{"product_ids": []string{"a"}})

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestIndexStatus_ReportsSnapshot(t *testing.T) {
	env := newTestEnv()
	env.status.stats = index.Stats{
		Loaded:   true,
		Kind:     "hnsw",
		Vectors:  5000,
		Dim:      512,
		LoadedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	rr := env.do(t, "GET", "/api/recommendations/status", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	resp := decode[index.Stats](t, rr)
	if !resp.Loaded || resp.Kind != "hnsw" || resp.Vectors != 5000 || resp.Dim != 512 {
		t.Errorf("stats: got %+v", resp)
	}
}

// --- Cart ---

func TestAnalyzeCart_ResolvesLinesAndMergesDuplicates(t *testing.T) {
	env := newTestEnv()
	env.catalog.items = []domcat.Item{
		testItem("p1", "Black T-Shirt", 20),
		testItem("p2", "Blue Jeans", 60),
	}
	env.cart.analysis = cartuc.Analysis{
		Pricing: cartuc.Pricing{OriginalTotal: 100, FinalTotal: 95, Shipping: 0, FreeShippingEligible: true},
	}

	rr := env.do(t, "POST", "/api/cart/analyze", map[string]any{
		"items": []map[string]any{
			{"product_id": "p1", "quantity": 1},
			{"product_id": "p2", "quantity": 1},
			{"product_id": "p1", "quantity": 1},
			{"product_id": "gone", "quantity": 2},
		},
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d (%s)", rr.Code, http.StatusOK, rr.Body.String())
	}
	if len(env.cart.gotLines) != 2 {
		t.Fatalf("lines: got %d, want 2", len(env.cart.gotLines))
	}
	if env.cart.gotLines[0].Item.ID != "p1" || env.cart.gotLines[0].Quantity != 2 {
		t.Errorf("duplicate lines not merged: %+v", env.cart.gotLines[0])
	}

	resp := decode[cartResponse](t, rr)
	if resp.Pricing.FinalTotal != 95 || !resp.Pricing.FreeShippingEligible {
		t.Errorf("pricing: got %+v", resp.Pricing)
	}
}

// --- Products ---

func TestGetProduct(t *testing.T) {
	env := newTestEnv()
	env.catalog.items = []domcat.Item{testItem("p1", "Black T-Shirt", 19.99)}

	rr := env.do(t, "GET", "/api/products/p1", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	resp := decode[itemDTO](t, rr)
	if resp.ID != "p1" || resp.Name != "Black T-Shirt" || resp.Price != 19.99 {
		t.Errorf("item: got %+v", resp)
	}

	rr = env.do(t, "GET", "/api/products/nope", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("missing item: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestSearchProducts_RequiresQuery(t *testing.T) {
	env := newTestEnv()
	env.catalog.items = []domcat.Item{
		testItem("p1", "Black T-Shirt", 19.99),
		testItem("p2", "Red Dress", 49.99),
	}

	rr := env.do(t, "GET", "/api/products/search", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("missing q: got %d, want %d", rr.Code, http.StatusBadRequest)
	}

	rr = env.do(t, "GET", "/api/products/search?q=dress", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	resp := decode[itemsResponse](t, rr)
	if resp.Count != 1 || resp.Items[0].ID != "p2" {
		t.Errorf("search: got %+v", resp.Items)
	}
}

func TestLatestProducts_PagesWithDefaults(t *testing.T) {
	env := newTestEnv()
	for i := 0; i < 25; i++ {
		env.catalog.items = append(env.catalog.items, testItem(fmt.Sprintf("p%02d", i), "Item", 10))
	}

	rr := env.do(t, "GET", "/api/products/latest", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	resp := decode[itemsResponse](t, rr)
	if resp.Count != 20 {
		t.Errorf("default page: got %d, want 20", resp.Count)
	}

	rr = env.do(t, "GET", "/api/products/latest?offset=20&limit=10", nil)
	resp = decode[itemsResponse](t, rr)
	if resp.Count != 5 {
		t.Errorf("last page: got %d, want 5", resp.Count)
	}

	// Junk paging params fall back to defaults rather than erroring.
	rr = env.do(t, "GET", "/api/products/latest?offset=x&limit=-3", nil)
	resp = decode[itemsResponse](t, rr)
	if resp.Count != 20 {
		t.Errorf("junk params: got %d, want 20", resp.Count)
	}
}

func TestCatalogStats(t *testing.T) {
	env := newTestEnv()
	env.catalog.items = []domcat.Item{testItem("p1", "Black T-Shirt", 19.99)}

	rr := env.do(t, "GET", "/api/products/stats", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	resp := decode[catalogrepo.Stats](t, rr)
	if resp.Items != 1 {
		t.Errorf("stats: got %+v", resp)
	}
}

// --- Health ---

func TestHealth_DegradedStaysServing(t *testing.T) {
	env := newTestEnv()
	env.health.report = healthuc.Report{
		Status: healthuc.Degraded,
		Checks: map[string]healthuc.CheckResult{
			"database":  healthuc.CheckOK,
			"embedding": healthuc.CheckError,
		},
	}

	rr := env.do(t, "GET", "/health", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("degraded: got %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestHealth_Unhealthy503(t *testing.T) {
	env := newTestEnv()
	env.health.report = healthuc.Report{
		Status: healthuc.Unhealthy,
		Checks: map[string]healthuc.CheckResult{"database": healthuc.CheckError},
	}

	rr := env.do(t, "GET", "/health", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("unhealthy: got %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}

	var resp struct {
		Status string                          `json:"status"`
		Checks map[string]healthuc.CheckResult `json:"checks"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "error" || resp.Checks["database"] != healthuc.CheckError {
		t.Errorf("body: got %+v", resp)
	}
}
