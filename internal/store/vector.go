package store

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"
)

// VectorIndex is an HNSW-backed nearest-neighbor index over cosine
// similarity. String chunk IDs are mapped to internal uint64 keys because
// the graph keys on integers.
type VectorIndex struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[uint64]
	config VectorStoreConfig

	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64

	closed bool
}

// vectorMetadata is the gob envelope persisted alongside the graph.
type vectorMetadata struct {
	IDMap   map[string]uint64
	NextKey uint64
	Config  VectorStoreConfig
}

// NewVectorIndex creates an empty vector index.
func NewVectorIndex(cfg VectorStoreConfig) (*VectorIndex, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("vector index requires positive dimensions, got %d", cfg.Dimensions)
	}
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 20
	}

	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25

	return &VectorIndex{
		graph:  graph,
		config: cfg,
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
	}, nil
}

// Add inserts vectors keyed by chunk ID. Existing IDs are remapped rather
// than deleted from the graph; orphaned nodes are filtered at search time.
func (v *VectorIndex) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) == 0 {
		return nil
	}
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return fmt.Errorf("vector index is closed")
	}

	for _, vec := range vectors {
		if len(vec) != v.config.Dimensions {
			return fmt.Errorf("vector dimension mismatch: expected %d, got %d", v.config.Dimensions, len(vec))
		}
	}

	for i, id := range ids {
		if existing, ok := v.idMap[id]; ok {
			delete(v.keyMap, existing)
			delete(v.idMap, id)
		}

		key := v.nextKey
		v.nextKey++

		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		normalizeInPlace(vec)

		v.graph.Add(hnsw.MakeNode(key, vec))
		v.idMap[id] = key
		v.keyMap[key] = id
	}

	return nil
}

// Search returns up to k nearest neighbors of the query vector, best first.
func (v *VectorIndex) Search(ctx context.Context, query []float32, k int) ([]VectorResult, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.closed {
		return nil, fmt.Errorf("vector index is closed")
	}
	if k <= 0 || v.graph.Len() == 0 {
		return []VectorResult{}, nil
	}
	if len(query) != v.config.Dimensions {
		return nil, fmt.Errorf("query dimension mismatch: expected %d, got %d", v.config.Dimensions, len(query))
	}

	normalized := make([]float32, len(query))
	copy(normalized, query)
	normalizeInPlace(normalized)

	nodes := v.graph.Search(normalized, k)

	results := make([]VectorResult, 0, len(nodes))
	for _, node := range nodes {
		id, ok := v.keyMap[node.Key]
		if !ok {
			// Orphaned key from a remapped ID.
			continue
		}
		results = append(results, VectorResult{
			ID:    id,
			Score: cosineFromNormalized(normalized, node.Value),
		})
	}

	return results, nil
}

// Count returns the number of live vectors.
func (v *VectorIndex) Count() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.idMap)
}

// Save persists the graph and ID mapping to path.
func (v *VectorIndex) Save(path string) error {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.closed {
		return fmt.Errorf("vector index is closed")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer func() { _ = f.Close() }()

	w := bufio.NewWriter(f)
	if err := v.graph.Export(w); err != nil {
		return fmt.Errorf("export graph: %w", err)
	}

	meta := vectorMetadata{IDMap: v.idMap, NextKey: v.nextKey, Config: v.config}
	if err := gob.NewEncoder(w).Encode(meta); err != nil {
		return fmt.Errorf("encode index metadata: %w", err)
	}

	return w.Flush()
}

// LoadVectorIndex reads a previously saved index from path.
func LoadVectorIndex(path string) (*VectorIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open index file: %w", err)
	}
	defer func() { _ = f.Close() }()

	r := bufio.NewReader(f)

	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	if err := graph.Import(r); err != nil {
		return nil, fmt.Errorf("import graph: %w", err)
	}

	var meta vectorMetadata
	if err := gob.NewDecoder(r).Decode(&meta); err != nil {
		return nil, fmt.Errorf("decode index metadata: %w", err)
	}

	v := &VectorIndex{
		graph:   graph,
		config:  meta.Config,
		idMap:   meta.IDMap,
		keyMap:  make(map[uint64]string, len(meta.IDMap)),
		nextKey: meta.NextKey,
	}
	for id, key := range meta.IDMap {
		v.keyMap[key] = id
	}

	return v, nil
}

// Close releases the index. Further operations fail.
func (v *VectorIndex) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	return nil
}

// normalizeInPlace scales vec to unit length; zero vectors are left as-is.
func normalizeInPlace(vec []float32) {
	var sum float64
	for _, x := range vec {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range vec {
		vec[i] *= inv
	}
}

// cosineFromNormalized is the inner product of two unit vectors.
func cosineFromNormalized(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot float32
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
	}
	return dot
}
