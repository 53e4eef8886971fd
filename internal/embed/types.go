// Package embed defines the embedding collaborator interface and the static
// hash embedder used for offline serving and tests. Real model-backed
// embedders plug in behind the same interface; the pipeline only assumes
// unit-normalized output vectors.
package embed

import (
	"context"
	"math"
)

// Embedder converts text into fixed-dimension unit-normalized vectors.
type Embedder interface {
	// Embed generates the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension.
	Dimensions() int

	// ModelName identifies the embedding model.
	ModelName() string

	// Close releases resources.
	Close() error
}

// NormalizeVector returns vec scaled to unit length. A zero vector is
// returned unchanged so cosine against it stays exactly 0.
func NormalizeVector(vec []float32) []float32 {
	var sum float64
	for _, x := range vec {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return vec
	}
	inv := float32(1 / math.Sqrt(sum))
	out := make([]float32, len(vec))
	for i, x := range vec {
		out[i] = x * inv
	}
	return out
}
