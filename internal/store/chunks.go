package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
)

// ChunkStore is an in-memory, read-only map of chunk metadata loaded once at
// startup from a JSONL snapshot. It backs candidate enrichment after index
// hits come back as bare IDs.
type ChunkStore struct {
	chunks map[string]Chunk
	ids    []string
}

// NewChunkStore builds a store from chunks, deduplicating by ID (first wins).
func NewChunkStore(chunks []Chunk) *ChunkStore {
	s := &ChunkStore{chunks: make(map[string]Chunk, len(chunks))}
	for _, c := range chunks {
		if c.ID == "" {
			continue
		}
		if _, dup := s.chunks[c.ID]; dup {
			continue
		}
		s.chunks[c.ID] = c
		s.ids = append(s.ids, c.ID)
	}
	sort.Strings(s.ids)
	return s
}

// LoadChunks reads a JSONL file with one chunk per line. Malformed lines are
// skipped with a warning rather than failing the load.
func LoadChunks(path string) (*ChunkStore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open chunks file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var chunks []Chunk
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var c Chunk
		if err := json.Unmarshal(raw, &c); err != nil {
			slog.Warn("skipping malformed chunk line",
				slog.String("path", path),
				slog.Int("line", line),
				slog.String("error", err.Error()))
			continue
		}
		chunks = append(chunks, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read chunks file: %w", err)
	}

	return NewChunkStore(chunks), nil
}

// Get returns the chunk for id.
func (s *ChunkStore) Get(id string) (Chunk, bool) {
	if s == nil {
		return Chunk{}, false
	}
	c, ok := s.chunks[id]
	return c, ok
}

// GetMany returns chunks for ids, preserving input order and skipping
// unknown IDs.
func (s *ChunkStore) GetMany(ids []string) []Chunk {
	if s == nil {
		return nil
	}
	out := make([]Chunk, 0, len(ids))
	for _, id := range ids {
		if c, ok := s.chunks[id]; ok {
			out = append(out, c)
		}
	}
	return out
}

// All returns every chunk in ascending ID order.
func (s *ChunkStore) All() []Chunk {
	if s == nil {
		return nil
	}
	out := make([]Chunk, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, s.chunks[id])
	}
	return out
}

// Count returns the number of chunks.
func (s *ChunkStore) Count() int {
	if s == nil {
		return 0
	}
	return len(s.chunks)
}
