package domain

import (
	"context"
	"math"
)

// VectorDim is the fixed embedding dimension. Providers returning a different
// dimension are conformed via ConformVector before any vector enters the index.
const VectorDim = 512

// Embedder is the shared text vectorization contract between layers.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// HealthChecker verifies embedding provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult carries the embedding vector and token usage through the
// decorator chain.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// Normalize scales v to unit L2 norm in place. Zero vectors are left as-is.
func Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := 1.0 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
}

// Dot returns the inner product of two equal-length vectors. On normalized
// vectors this equals cosine similarity.
func Dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// ConformVector pads or truncates v to VectorDim and renormalizes.
// The input slice is never aliased by the result when resizing occurs.
func ConformVector(v []float32) []float32 {
	switch {
	case len(v) == VectorDim:
		// common case, still renormalize in case the provider did not
	case len(v) > VectorDim:
		v = append([]float32(nil), v[:VectorDim]...)
	default:
		padded := make([]float32, VectorDim)
		copy(padded, v)
		v = padded
	}
	Normalize(v)
	return v
}
