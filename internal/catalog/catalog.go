// Package catalog holds the static registry of known topics used for query
// routing and score boosting. The catalog is loaded (or built) once at
// startup and is read-only while serving.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Entry describes one topic known to the router.
type Entry struct {
	// ID uniquely identifies the topic.
	ID string `json:"id"`

	// Title is the human-readable topic title.
	Title string `json:"title"`

	// ShortTitle is an abbreviated title, falling back to Title.
	ShortTitle string `json:"short_title,omitempty"`

	// Tags are domain tags from the fixed vocabulary.
	Tags []string `json:"tags,omitempty"`

	// Keywords are representative phrases for keyword matching.
	Keywords []string `json:"keywords,omitempty"`

	// RelatedFields and RelatedLinks widen the keyword-match surface.
	RelatedFields []string `json:"related_fields,omitempty"`
	RelatedLinks  []string `json:"related_links,omitempty"`

	// Centroid is the unit-normalized centroid embedding for the topic,
	// empty when embeddings were unavailable at build time.
	Centroid []float32 `json:"centroid,omitempty"`
}

// Catalog is a read-only collection of topic entries.
type Catalog struct {
	entries map[string]Entry
	ids     []string // sorted for deterministic iteration
}

// New builds a catalog from entries, deduplicating by ID (first wins).
func New(entries []Entry) *Catalog {
	c := &Catalog{entries: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		if e.ID == "" {
			continue
		}
		if _, dup := c.entries[e.ID]; dup {
			continue
		}
		c.entries[e.ID] = e
		c.ids = append(c.ids, e.ID)
	}
	sort.Strings(c.ids)
	return c
}

// Get returns the entry for id.
func (c *Catalog) Get(id string) (Entry, bool) {
	if c == nil {
		return Entry{}, false
	}
	e, ok := c.entries[id]
	return e, ok
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}

// IDs returns entry IDs in ascending order.
func (c *Catalog) IDs() []string {
	if c == nil {
		return nil
	}
	out := make([]string, len(c.ids))
	copy(out, c.ids)
	return out
}

// ForEach calls fn for every entry in ascending ID order. Deterministic
// iteration keeps router scoring reproducible across runs.
func (c *Catalog) ForEach(fn func(Entry)) {
	if c == nil {
		return
	}
	for _, id := range c.ids {
		fn(c.entries[id])
	}
}

// catalogFile is the on-disk JSON envelope.
type catalogFile struct {
	Entries []Entry `json:"entries"`
}

// Load reads a catalog from a JSON file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var file catalogFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}

	return New(file.Entries), nil
}

// Save writes the catalog to a JSON file, creating parent directories.
func (c *Catalog) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create catalog dir: %w", err)
	}

	file := catalogFile{Entries: make([]Entry, 0, c.Len())}
	c.ForEach(func(e Entry) {
		file.Entries = append(file.Entries, e)
	})

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write catalog: %w", err)
	}
	return nil
}
