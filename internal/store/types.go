// Package store provides the serving-side data layer: the HNSW vector index,
// the bleve lexical index, and the read-only chunk store. All three are
// loaded once at startup; index rebuilds happen out-of-band and are swapped
// in as fresh snapshots.
package store

// Chunk is a retrievable unit of content with its topic association.
type Chunk struct {
	// ID uniquely identifies the chunk.
	ID string `json:"id"`

	// TopicID links the chunk to its catalog entry.
	TopicID string `json:"topic_id"`

	// Title is the chunk's section or topic title.
	Title string `json:"title,omitempty"`

	// Text is the chunk content.
	Text string `json:"text"`

	// Tags are domain tags inherited from the chunk's topic.
	Tags []string `json:"tags,omitempty"`

	// Metadata carries additional key-value context.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// VectorResult is a single nearest-neighbor hit.
type VectorResult struct {
	ID    string
	Score float32 // cosine similarity, higher is better
}

// LexicalResult is a single term-overlap hit.
type LexicalResult struct {
	ID    string
	Score float64 // BM25 score, higher is better
}

// VectorStoreConfig configures the HNSW vector index.
type VectorStoreConfig struct {
	// Dimensions is the embedding dimension; vectors of any other length
	// are rejected at insert and search time.
	Dimensions int

	// M is the HNSW connectivity parameter (default 16).
	M int

	// EfSearch is the HNSW search breadth parameter (default 20).
	EfSearch int
}
