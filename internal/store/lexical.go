package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
)

// LexicalIndex wraps bleve for BM25-style term-overlap retrieval. It is the
// second candidate source in the accurate lane.
type LexicalIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
}

// lexicalDocument is the indexed document shape.
type lexicalDocument struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// NewLexicalIndex opens or creates a lexical index at path. An empty path
// creates an in-memory index, used by tests and ephemeral serving.
func NewLexicalIndex(path string) (*LexicalIndex, error) {
	mapping := bleve.NewIndexMapping()

	var idx bleve.Index
	var err error
	if path == "" {
		idx, err = bleve.NewMemOnly(mapping)
	} else {
		if mkErr := os.MkdirAll(filepath.Dir(path), 0o755); mkErr != nil {
			return nil, fmt.Errorf("create index dir: %w", mkErr)
		}
		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, mapping)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open lexical index: %w", err)
	}

	return &LexicalIndex{index: idx, path: path}, nil
}

// Index adds chunks to the lexical index in a single batch.
func (l *LexicalIndex) Index(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return fmt.Errorf("lexical index is closed")
	}

	batch := l.index.NewBatch()
	for _, c := range chunks {
		doc := lexicalDocument{Title: c.Title, Text: c.Text}
		if err := batch.Index(c.ID, doc); err != nil {
			return fmt.Errorf("index chunk %s: %w", c.ID, err)
		}
	}

	if err := l.index.Batch(batch); err != nil {
		return fmt.Errorf("execute batch: %w", err)
	}
	return nil
}

// Search returns up to limit chunks matching the query, scored by BM25.
func (l *LexicalIndex) Search(ctx context.Context, queryStr string, limit int) ([]LexicalResult, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return nil, fmt.Errorf("lexical index is closed")
	}
	if limit <= 0 || strings.TrimSpace(queryStr) == "" {
		return []LexicalResult{}, nil
	}

	match := bleve.NewMatchQuery(queryStr)
	req := bleve.NewSearchRequest(match)
	req.Size = limit

	result, err := l.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}

	results := make([]LexicalResult, 0, len(result.Hits))
	for _, hit := range result.Hits {
		results = append(results, LexicalResult{ID: hit.ID, Score: hit.Score})
	}
	return results, nil
}

// Count returns the number of indexed documents.
func (l *LexicalIndex) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return 0
	}
	n, _ := l.index.DocCount()
	return int(n)
}

// Close closes the underlying bleve index.
func (l *LexicalIndex) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.index.Close()
}
