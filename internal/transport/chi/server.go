package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/shopsmarter/shopsmarter/internal/domain"
	domcat "github.com/shopsmarter/shopsmarter/internal/domain/catalog"
	"github.com/shopsmarter/shopsmarter/internal/index"
	logpkg "github.com/shopsmarter/shopsmarter/internal/logger"
	catalogrepo "github.com/shopsmarter/shopsmarter/internal/repository/catalog"
	cartuc "github.com/shopsmarter/shopsmarter/internal/usecase/cart"
	healthuc "github.com/shopsmarter/shopsmarter/internal/usecase/health"
	recommenduc "github.com/shopsmarter/shopsmarter/internal/usecase/recommend"
	refineuc "github.com/shopsmarter/shopsmarter/internal/usecase/refine"
)

// errorCode is the machine-readable error discriminator in error responses.
type errorCode string

const (
	codeBadRequest             errorCode = "bad_request"
	codeItemNotFound           errorCode = "item_not_found"
	codeEmptyCatalog           errorCode = "empty_catalog"
	codeVectorDimMismatch      errorCode = "vector_dim_mismatch"
	codeRateLimited            errorCode = "rate_limited"
	codeEmbeddingProviderError errorCode = "embedding_provider_error"
	codeIndexUnavailable       errorCode = "index_unavailable"
	codeInternalError          errorCode = "internal_error"
)

type errorResponse struct {
	Code    errorCode `json:"code"`
	Message string    `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Recommender is the consumer interface for the retrieval service (ISP).
type Recommender interface {
	Search(ctx context.Context, query string, limit int) ([]recommenduc.Recommendation, error)
	SearchByItem(ctx context.Context, id string, limit int) ([]recommenduc.Recommendation, error)
	Complementary(ctx context.Context, id string, limit int) ([]domcat.Item, error)
	Hybrid(ctx context.Context, query string, limit int) ([]recommenduc.Recommendation, error)
}

// Refiner applies a natural-language prompt to a previously returned list.
type Refiner interface {
	Refine(ctx context.Context, items []domcat.Item, prompt string) (refineuc.Result, error)
}

// CartAnalyzer builds the cart report.
type CartAnalyzer interface {
	Analyze(ctx context.Context, lines []cartuc.Line) (cartuc.Analysis, error)
}

// Catalog is the read side of the product store used by the browse endpoints.
type Catalog interface {
	Lookup(ctx context.Context, id string) (domcat.Item, error)
	BulkLookup(ctx context.Context, ids []string) ([]domcat.Item, error)
	Latest(ctx context.Context, offset, limit int) ([]domcat.Item, error)
	SearchText(ctx context.Context, query string, limit int) ([]domcat.Item, error)
	Categories(ctx context.Context) ([]catalogrepo.CategoryCount, error)
	Stats(ctx context.Context) (catalogrepo.Stats, error)
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// IndexStatus describes the loaded candidate index.
type IndexStatus interface {
	Stats() index.Stats
}

// Server is the HTTP API surface over the recommendation engine.
type Server struct {
	recommend     Recommender
	refine        Refiner
	cart          CartAnalyzer
	catalog       Catalog
	health        HealthChecker
	indexStatus   IndexStatus
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	recommend Recommender,
	refine Refiner,
	cart CartAnalyzer,
	catalog Catalog,
	health HealthChecker,
	indexStatus IndexStatus,
	logger *zap.Logger,
) *Server {
	s := &Server{
		recommend:   recommend,
		refine:      refine,
		cart:        cart,
		catalog:     catalog,
		health:      health,
		indexStatus: indexStatus,
		logger:      logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrItemNotFound, http.StatusNotFound, codeItemNotFound),
		sentinelHandler(domain.ErrEmptyCatalog, http.StatusNotFound, codeEmptyCatalog),
		sentinelHandler(domain.ErrVectorDimMismatch, http.StatusBadRequest, codeVectorDimMismatch),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, codeRateLimited),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeEmbeddingProviderError),
		sentinelHandler(domain.ErrIndexUnavailable, http.StatusServiceUnavailable, codeIndexUnavailable),
	}
	return s
}

// Routes mounts every API route on the router.
func (s *Server) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Route("/recommendations", func(r chi.Router) {
			r.Post("/similar", s.Similar)
			r.Post("/complementary", s.ComplementaryItems)
			r.Post("/hybrid", s.HybridSearch)
			r.Post("/refine", s.RefineResults)
			r.Get("/status", s.IndexStats)
		})
		r.Post("/cart/analyze", s.AnalyzeCart)
		r.Route("/products", func(r chi.Router) {
			r.Get("/latest", s.LatestProducts)
			r.Get("/search", s.SearchProducts)
			r.Get("/categories", s.ProductCategories)
			r.Get("/stats", s.CatalogStats)
			r.Get("/{id}", s.GetProduct)
		})
	})
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

type itemDTO struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Category    string  `json:"category"`
	Price       float64 `json:"price"`
	Image       string  `json:"image,omitempty"`
}

type recommendationDTO struct {
	Item  itemDTO `json:"item"`
	Score float64 `json:"score"`
}

type recommendationsResponse struct {
	Results []recommendationDTO `json:"results"`
	Count   int                 `json:"count"`
}

type itemsResponse struct {
	Items []itemDTO `json:"items"`
	Count int       `json:"count"`
}

type similarRequest struct {
	Query     string `json:"query"`
	ProductID string `json:"product_id"`
	Limit     int    `json:"limit"`
}

// Similar handles POST /api/recommendations/similar. The request carries
// either a free-text query or a catalog item ID to use as the seed.
func (s *Server) Similar(w http.ResponseWriter, r *http.Request) {
	var req similarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if (req.Query == "") == (req.ProductID == "") {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Exactly one of query and product_id is required")
		return
	}

	var (
		recs []recommenduc.Recommendation
		err  error
	)
	if req.ProductID != "" {
		recs, err = s.recommend.SearchByItem(r.Context(), req.ProductID, req.Limit)
	} else {
		recs, err = s.recommend.Search(r.Context(), req.Query, req.Limit)
	}
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, recommendationsToDTO(recs))
}

type complementaryRequest struct {
	ProductID string `json:"product_id"`
	Limit     int    `json:"limit"`
}

// ComplementaryItems handles POST /api/recommendations/complementary.
func (s *Server) ComplementaryItems(w http.ResponseWriter, r *http.Request) {
	var req complementaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.ProductID == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "product_id is required")
		return
	}

	items, err := s.recommend.Complementary(r.Context(), req.ProductID, req.Limit)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, itemsResponse{Items: itemsToDTO(items), Count: len(items)})
}

type hybridRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

// HybridSearch handles POST /api/recommendations/hybrid.
func (s *Server) HybridSearch(w http.ResponseWriter, r *http.Request) {
	var req hybridRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "query is required")
		return
	}

	recs, err := s.recommend.Hybrid(r.Context(), req.Query, req.Limit)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, recommendationsToDTO(recs))
}

type refineRequest struct {
	ProductIDs []string `json:"product_ids"`
	Prompt     string   `json:"prompt"`
}

type refineResponse struct {
	Items   []itemDTO `json:"items"`
	Count   int       `json:"count"`
	Message string    `json:"message"`
}

// RefineResults handles POST /api/recommendations/refine. The caller sends
// the IDs of its current result list; missing IDs are dropped silently.
func (s *Server) RefineResults(w http.ResponseWriter, r *http.Request) {
	var req refineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Prompt == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "prompt is required")
		return
	}

	items, err := s.catalog.BulkLookup(r.Context(), req.ProductIDs)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	res, err := s.refine.Refine(r.Context(), items, req.Prompt)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, refineResponse{
		Items:   itemsToDTO(res.Items),
		Count:   len(res.Items),
		Message: res.Message,
	})
}

// IndexStats handles GET /api/recommendations/status.
func (s *Server) IndexStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.indexStatus.Stats())
}

type cartLineRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type cartRequest struct {
	Items []cartLineRequest `json:"items"`
}

type discountDTO struct {
	Kind        string  `json:"kind"`
	Name        string  `json:"name"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
}

type pricingDTO struct {
	OriginalTotal        float64       `json:"original_total"`
	Discounts            []discountDTO `json:"discounts"`
	Savings              float64       `json:"savings"`
	Shipping             float64       `json:"shipping"`
	FreeShippingEligible bool          `json:"free_shipping_eligible"`
	FinalTotal           float64       `json:"final_total"`
}

type suggestionDTO struct {
	Item       itemDTO `json:"item"`
	Reason     string  `json:"reason"`
	Confidence float64 `json:"confidence"`
}

type tipDTO struct {
	Kind             string  `json:"kind"`
	Message          string  `json:"message"`
	TargetAmount     float64 `json:"target_amount,omitempty"`
	PotentialSavings float64 `json:"potential_savings,omitempty"`
}

type cartResponse struct {
	FrequentlyBoughtTogether []suggestionDTO `json:"frequently_bought_together"`
	CompleteTheLook          []suggestionDTO `json:"complete_the_look"`
	Pricing                  pricingDTO      `json:"pricing"`
	Tips                     []tipDTO        `json:"tips"`
}

// AnalyzeCart handles POST /api/cart/analyze. Lines whose product no longer
// exists are dropped before analysis.
func (s *Server) AnalyzeCart(w http.ResponseWriter, r *http.Request) {
	var req cartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	lines, err := s.resolveCartLines(r.Context(), req.Items)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	analysis, err := s.cart.Analyze(r.Context(), lines)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, cartResponse{
		FrequentlyBoughtTogether: suggestionsToDTO(analysis.FrequentlyBoughtTogether),
		CompleteTheLook:          suggestionsToDTO(analysis.CompleteTheLook),
		Pricing:                  pricingToDTO(analysis.Pricing),
		Tips:                     tipsToDTO(analysis.Tips),
	})
}

func (s *Server) resolveCartLines(ctx context.Context, reqLines []cartLineRequest) ([]cartuc.Line, error) {
	ids := make([]string, 0, len(reqLines))
	qty := make(map[string]int, len(reqLines))
	for _, l := range reqLines {
		if l.ProductID == "" {
			continue
		}
		if _, seen := qty[l.ProductID]; !seen {
			ids = append(ids, l.ProductID)
		}
		qty[l.ProductID] += l.Quantity
	}
	items, err := s.catalog.BulkLookup(ctx, ids)
	if err != nil {
		return nil, err
	}
	lines := make([]cartuc.Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, cartuc.Line{Item: item, Quantity: qty[item.ID]})
	}
	return lines, nil
}

// LatestProducts handles GET /api/products/latest.
func (s *Server) LatestProducts(w http.ResponseWriter, r *http.Request) {
	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", 20)

	items, err := s.catalog.Latest(r.Context(), offset, limit)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, itemsResponse{Items: itemsToDTO(items), Count: len(items)})
}

// SearchProducts handles GET /api/products/search.
func (s *Server) SearchProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "q is required")
		return
	}
	limit := queryInt(r, "limit", 20)

	items, err := s.catalog.SearchText(r.Context(), q, limit)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, itemsResponse{Items: itemsToDTO(items), Count: len(items)})
}

// ProductCategories handles GET /api/products/categories.
func (s *Server) ProductCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.catalog.Categories(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	if cats == nil {
		cats = []catalogrepo.CategoryCount{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"categories": cats,
		"count":      len(cats),
	})
}

// CatalogStats handles GET /api/products/stats.
func (s *Server) CatalogStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.catalog.Stats(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// GetProduct handles GET /api/products/{id}.
func (s *Server) GetProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	item, err := s.catalog.Lookup(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, itemToDTO(item))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func itemToDTO(item domcat.Item) itemDTO {
	return itemDTO{
		ID:          item.ID,
		Name:        item.Name,
		Description: item.Description,
		Category:    item.Category,
		Price:       item.Price,
		Image:       item.ImageRef,
	}
}

func itemsToDTO(items []domcat.Item) []itemDTO {
	out := make([]itemDTO, len(items))
	for i, item := range items {
		out[i] = itemToDTO(item)
	}
	return out
}

func recommendationsToDTO(recs []recommenduc.Recommendation) recommendationsResponse {
	results := make([]recommendationDTO, len(recs))
	for i, rec := range recs {
		results[i] = recommendationDTO{Item: itemToDTO(rec.Item), Score: rec.Score}
	}
	return recommendationsResponse{Results: results, Count: len(results)}
}

func suggestionsToDTO(sugs []cartuc.Suggestion) []suggestionDTO {
	out := make([]suggestionDTO, len(sugs))
	for i, sug := range sugs {
		out[i] = suggestionDTO{Item: itemToDTO(sug.Item), Reason: sug.Reason, Confidence: sug.Confidence}
	}
	return out
}

func pricingToDTO(p cartuc.Pricing) pricingDTO {
	discounts := make([]discountDTO, len(p.Discounts))
	for i, d := range p.Discounts {
		discounts[i] = discountDTO{Kind: d.Kind, Name: d.Name, Amount: d.Amount, Description: d.Description}
	}
	return pricingDTO{
		OriginalTotal:        p.OriginalTotal,
		Discounts:            discounts,
		Savings:              p.Savings,
		Shipping:             p.Shipping,
		FreeShippingEligible: p.FreeShippingEligible,
		FinalTotal:           p.FinalTotal,
	}
}

func tipsToDTO(tips []cartuc.Tip) []tipDTO {
	out := make([]tipDTO, len(tips))
	for i, tip := range tips {
		out[i] = tipDTO{
			Kind:             tip.Kind,
			Message:          tip.Message,
			TargetAmount:     tip.TargetAmount,
			PotentialSavings: tip.PotentialSavings,
		}
	}
	return out
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code errorCode, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without
// exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrItemNotFound,
		domain.ErrEmptyCatalog,
		domain.ErrVectorDimMismatch,
		domain.ErrRateLimited,
		domain.ErrEmbeddingProviderError,
		domain.ErrIndexUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code errorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// handleDomainError maps a domain error onto the response. The
// request-scoped logger carries the request id when the wide-event
// middleware is mounted; the server logger is the fallback.
func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	logger := logpkg.FromContext(r.Context(), s.logger)
	logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
