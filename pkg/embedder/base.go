// Package embedder defines the text embedding interface the memory engine
// depends on.
//
// All embedding implementations must declare a fixed output dimension and
// report token usage and duration for each call, so callers can meter
// embedding cost without knowing the provider.
package embedder

import (
	"context"
	"math"
	"time"
)

// Report describes the cost of one embedding call.
type Report struct {
	// Tokens is the token count the provider charged for the call. Zero
	// when the provider does not report usage.
	Tokens int `json:"tokens"`

	// Duration is the wall-clock time of the call.
	Duration time.Duration `json:"duration"`
}

// Provider is the embedding interface.
type Provider interface {
	// Embed converts a text string into a vector embedding. The returned
	// vector's length equals Dimensions exactly.
	Embed(ctx context.Context, text string) ([]float32, *Report, error)

	// EmbedBatch converts multiple texts in one call, preserving order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, *Report, error)

	// Similarity computes cosine similarity between two vectors.
	Similarity(a, b []float32) float64

	// Dimensions returns the fixed output dimension of this provider.
	Dimensions() int

	// HealthCheck verifies the provider is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases provider resources.
	Close() error
}

// CosineSimilarity is the shared Similarity implementation providers can
// use. It returns 0 for mismatched dimensions or zero-norm vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
