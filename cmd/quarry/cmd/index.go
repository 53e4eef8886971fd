package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/quarrylabs/quarry/internal/catalog"
	"github.com/quarrylabs/quarry/internal/embed"
	"github.com/quarrylabs/quarry/internal/store"
)

// Data file names inside the data directory.
const (
	vectorsFile = "vectors.gob"
	lexicalDir  = "lexical.bleve"
	chunksFile  = "chunks.jsonl"
	catalogFile = "catalog.json"
)

// embedBatchSize bounds memory during corpus embedding.
const embedBatchSize = 64

func newIndexCmd() *cobra.Command {
	var chunksPath string

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build the search indexes from a chunk corpus",
		Long: `Build the vector index, lexical index, and topic catalog from a JSONL
corpus with one chunk per line:

  {"id":"c1","topic_id":"stewardship","title":"...","text":"...","tags":["..."]}

Indexes are written to the data directory and loaded read-only at
search time.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd.Context(), chunksPath)
		},
	}

	cmd.Flags().StringVar(&chunksPath, "chunks", "", "Path to the JSONL chunk corpus (required)")
	_ = cmd.MarkFlagRequired("chunks")

	return cmd
}

func runIndex(ctx context.Context, chunksPath string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	start := time.Now()

	chunks, err := store.LoadChunks(chunksPath)
	if err != nil {
		return err
	}
	if chunks.Count() == 0 {
		return fmt.Errorf("no chunks found in %s", chunksPath)
	}
	slog.Info("corpus loaded", "chunks", chunks.Count())

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	embedder, err := embed.NewCachedEmbedder(embed.NewStaticEmbedder(), 0)
	if err != nil {
		return err
	}
	defer func() { _ = embedder.Close() }()

	vectors, err := store.NewVectorIndex(store.VectorStoreConfig{Dimensions: embedder.Dimensions()})
	if err != nil {
		return err
	}
	defer func() { _ = vectors.Close() }()

	all := chunks.All()
	for i := 0; i < len(all); i += embedBatchSize {
		end := i + embedBatchSize
		if end > len(all) {
			end = len(all)
		}
		batch := all[i:end]

		ids := make([]string, len(batch))
		texts := make([]string, len(batch))
		for j, c := range batch {
			ids[j] = c.ID
			texts[j] = c.Text
		}
		vecs, err := embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed chunks: %w", err)
		}
		if err := vectors.Add(ctx, ids, vecs); err != nil {
			return fmt.Errorf("index vectors: %w", err)
		}
	}
	if err := vectors.Save(filepath.Join(cfg.DataDir, vectorsFile)); err != nil {
		return err
	}
	slog.Info("vector index built", "vectors", vectors.Count())

	lexPath := filepath.Join(cfg.DataDir, lexicalDir)
	if err := os.RemoveAll(lexPath); err != nil {
		return fmt.Errorf("clear lexical index: %w", err)
	}
	lexical, err := store.NewLexicalIndex(lexPath)
	if err != nil {
		return err
	}
	defer func() { _ = lexical.Close() }()
	if err := lexical.Index(ctx, all); err != nil {
		return fmt.Errorf("index lexical: %w", err)
	}
	slog.Info("lexical index built", "documents", lexical.Count())

	cat, err := catalog.Build(ctx, chunks, embedder)
	if err != nil {
		return err
	}
	if err := cat.Save(filepath.Join(cfg.DataDir, catalogFile)); err != nil {
		return err
	}

	if err := writeChunks(filepath.Join(cfg.DataDir, chunksFile), all); err != nil {
		return err
	}

	slog.Info("index complete",
		"chunks", chunks.Count(),
		"topics", cat.Len(),
		"duration", time.Since(start))
	return nil
}

// writeChunks snapshots the corpus next to the indexes so search does not
// depend on the original file sticking around.
func writeChunks(path string, chunks []store.Chunk) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write chunks snapshot: %w", err)
	}
	defer func() { _ = f.Close() }()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, c := range chunks {
		if err := enc.Encode(c); err != nil {
			return fmt.Errorf("encode chunk %s: %w", c.ID, err)
		}
	}
	return w.Flush()
}
