package domain

import "errors"

var (
	// ErrItemNotFound signals a missing catalog item.
	ErrItemNotFound = errors.New("item not found")
	// ErrEmptyCatalog signals that the catalog store holds no items at all.
	ErrEmptyCatalog = errors.New("catalog is empty")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrIndexUnavailable signals that the candidate index could not be loaded.
	ErrIndexUnavailable = errors.New("candidate index unavailable")
	// ErrEmbeddingProviderError signals an embedding provider failure;
	// callers degrade to attribute-only filtering.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrRerankerUnavailable signals an exhausted or failing external reranker.
	ErrRerankerUnavailable = errors.New("reranker unavailable")
	// ErrRateLimited signals a rate limit hit on an external provider.
	ErrRateLimited = errors.New("rate limited")
)
