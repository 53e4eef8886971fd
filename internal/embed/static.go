package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"
	"sync"
)

// StaticDimensions is the dimension of static hash embeddings.
const StaticDimensions = 256

// Feature weights for vector construction.
const (
	tokenWeight  = 0.7
	trigramWeight = 0.3
	trigramSize  = 3
)

var tokenPattern = regexp.MustCompile(`[a-z0-9]+`)

// StaticEmbedder produces deterministic hash-based embeddings with no model
// or network dependency. Semantic quality is reduced but behavior is exactly
// reproducible, which the test suite and offline mode rely on.
type StaticEmbedder struct {
	mu     sync.RWMutex
	closed bool
}

// NewStaticEmbedder creates a static embedder.
func NewStaticEmbedder() *StaticEmbedder {
	return &StaticEmbedder{}
}

// Embed generates the embedding for a single text.
func (e *StaticEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("embedder is closed")
	}

	trimmed := strings.TrimSpace(strings.ToLower(text))
	if trimmed == "" {
		return make([]float32, StaticDimensions), nil
	}

	vec := make([]float32, StaticDimensions)

	tokens := tokenPattern.FindAllString(trimmed, -1)
	for _, tok := range tokens {
		vec[hashToIndex(tok)] += tokenWeight
	}

	joined := strings.Join(tokens, " ")
	for i := 0; i+trigramSize <= len(joined); i++ {
		vec[hashToIndex(joined[i:i+trigramSize])] += trigramWeight
	}

	return NormalizeVector(vec), nil
}

// EmbedBatch generates embeddings for multiple texts.
func (e *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Dimensions returns the embedding dimension.
func (e *StaticEmbedder) Dimensions() int { return StaticDimensions }

// ModelName identifies the embedder.
func (e *StaticEmbedder) ModelName() string { return "static-hash-256" }

// Close marks the embedder closed.
func (e *StaticEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

func hashToIndex(s string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return int(h.Sum32() % StaticDimensions)
}

var _ Embedder = (*StaticEmbedder)(nil)
