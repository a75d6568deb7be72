package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/shopsmarter/shopsmarter/internal/domain"
	domcat "github.com/shopsmarter/shopsmarter/internal/domain/catalog"
	"github.com/shopsmarter/shopsmarter/internal/metrics"
)

// Reranker asks a chat model to reorder candidates for a refinement query
// when attribute and price filtering cannot act on it. It is strictly
// best-effort: every failure degrades to ErrRerankerUnavailable and the
// caller keeps its current list.
type Reranker struct {
	client     *openai.Client
	model      string
	provider   string
	timeout    time.Duration
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	logger     *zap.Logger
}

// RerankerConfig holds the reranker settings.
type RerankerConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Provider   string
	Timeout    time.Duration
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Logger     *zap.Logger
}

// NewReranker creates an OpenAI-compatible chat reranker.
func NewReranker(cfg *RerankerConfig) *Reranker {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	r := &Reranker{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      cfg.Model,
		provider:   cfg.Provider,
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		baseDelay:  cfg.BaseDelay,
		maxDelay:   cfg.MaxDelay,
		logger:     cfg.Logger,
	}
	if r.timeout <= 0 {
		r.timeout = 10 * time.Second
	}
	if r.baseDelay <= 0 {
		r.baseDelay = 500 * time.Millisecond
	}
	if r.maxDelay <= 0 {
		r.maxDelay = 5 * time.Second
	}
	return r
}

// Rerank returns item IDs ordered by relevance to the query, at most limit.
// Unknown and duplicate IDs in the model output are dropped.
func (r *Reranker) Rerank(ctx context.Context, query string, items []domcat.Item, limit int) ([]string, error) {
	if len(items) == 0 || limit <= 0 {
		return nil, nil
	}

	prompt := buildRerankPrompt(query, items, limit)

	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			if err := r.sleep(ctx, attempt); err != nil {
				return nil, fmt.Errorf("%w: %s", domain.ErrRerankerUnavailable, err)
			}
		}

		ids, err := r.once(ctx, prompt)
		if err == nil {
			metrics.RerankerRequestsTotal.WithLabelValues(r.provider, r.model, "success").Inc()
			return filterIDs(ids, items, limit), nil
		}
		lastErr = err
		if errors.Is(err, domain.ErrRateLimited) {
			r.logger.Warn("Reranker rate limited", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}
		if errors.Is(err, context.Canceled) {
			break
		}
		r.logger.Warn("Reranker attempt failed", zap.Int("attempt", attempt), zap.Error(err))
	}

	metrics.RerankerRequestsTotal.WithLabelValues(r.provider, r.model, "error").Inc()
	return nil, fmt.Errorf("%w: %s", domain.ErrRerankerUnavailable, lastErr)
}

func (r *Reranker) once(ctx context.Context, prompt string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       r.model,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: rerankSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	metrics.RerankerRequestDuration.WithLabelValues(r.provider, r.model).Observe(time.Since(start).Seconds())

	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == 429 {
			return nil, fmt.Errorf("reranker: %w", domain.ErrRateLimited)
		}
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty chat response")
	}
	return parseIDArray(resp.Choices[0].Message.Content)
}

// sleep waits the exponential backoff delay for the given attempt or until
// the context ends.
func (r *Reranker) sleep(ctx context.Context, attempt int) error {
	delay := r.baseDelay << (attempt - 1)
	if delay > r.maxDelay {
		delay = r.maxDelay
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

const rerankSystemPrompt = "You rank products for a shopping assistant. " +
	"Reply with a JSON array of product IDs only, best match first. No other text."

func buildRerankPrompt(query string, items []domcat.Item, limit int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Shopper request: %q\n\nProducts:\n", query)
	for _, item := range items {
		fmt.Fprintf(&b, "- id=%s name=%q category=%q price=%.2f\n",
			item.ID, item.Name, item.Category, item.Price)
	}
	fmt.Fprintf(&b, "\nReturn the IDs of the %d products that best satisfy the request, "+
		"ordered best first, as a JSON array.", limit)
	return b.String()
}

// parseIDArray pulls the first JSON array out of the model output. Models
// occasionally wrap the array in prose or code fences.
func parseIDArray(content string) ([]string, error) {
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON array in reranker output")
	}
	var ids []string
	if err := json.Unmarshal([]byte(content[start:end+1]), &ids); err != nil {
		return nil, fmt.Errorf("parse reranker output: %w", err)
	}
	return ids, nil
}

// filterIDs keeps only known IDs, in model order, without duplicates.
func filterIDs(ids []string, items []domcat.Item, limit int) []string {
	known := make(map[string]bool, len(items))
	for _, item := range items {
		known[item.ID] = true
	}
	out := make([]string, 0, limit)
	seen := make(map[string]bool, limit)
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if !known[id] || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
		if len(out) == limit {
			break
		}
	}
	return out
}
