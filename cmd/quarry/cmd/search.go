package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quarrylabs/quarry/internal/catalog"
	"github.com/quarrylabs/quarry/internal/config"
	"github.com/quarrylabs/quarry/internal/embed"
	"github.com/quarrylabs/quarry/internal/engine"
	"github.com/quarrylabs/quarry/internal/store"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	lane     string
	limit    int
	noRouter bool
	format   string
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed corpus",
		Long: `Search the indexed corpus through one of two lanes.

The fast lane runs dense retrieval with diversity reranking. The
accurate lane adds lexical retrieval, rank fusion, and precision
reranking when a scorer is configured.

Examples:
  quarry search "leadership feels heavy"
  quarry search "hidden load" --lane accurate --limit 5
  quarry search "decision fog" --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVar(&opts.lane, "lane", "fast", "Retrieval lane: fast, accurate")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (0 = lane default)")
	cmd.Flags().BoolVar(&opts.noRouter, "no-router", false, "Disable topic routing and boosting")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runSearch(ctx context.Context, queryText string, opts searchOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	lane := engine.Lane(opts.lane)
	if lane != engine.LaneFast && lane != engine.LaneAccurate {
		return fmt.Errorf("unknown lane %q (want fast or accurate)", opts.lane)
	}

	rc, closeAll, err := openRetrievalContext(cfg)
	if err != nil {
		return err
	}
	defer closeAll()

	eng := engine.New(rc, cfg)
	results := eng.Retrieve(ctx, queryText, engine.Options{
		Lane:      lane,
		TopK:      opts.limit,
		UseRouter: !opts.noRouter && cfg.Router.Enabled,
	})

	if opts.format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		fmt.Println("No results.")
		return nil
	}
	if route := results[0].Route; route != nil {
		fmt.Printf("route=%s confidence=%.2f\n\n", route.Route, route.Confidence)
	}
	for _, r := range results {
		fmt.Printf("%2d. %s  (score %.4f)\n    %s\n", r.Rank+1, r.ID, r.Score, snippet(r.Text))
	}
	return nil
}

// openRetrievalContext loads the serving state written by quarry index.
func openRetrievalContext(cfg config.Config) (*engine.RetrievalContext, func(), error) {
	chunksPath := filepath.Join(cfg.DataDir, chunksFile)
	if _, err := os.Stat(chunksPath); os.IsNotExist(err) {
		return nil, nil, fmt.Errorf("no index found in %s, run 'quarry index' first", cfg.DataDir)
	}

	chunks, err := store.LoadChunks(chunksPath)
	if err != nil {
		return nil, nil, err
	}

	vectors, err := store.LoadVectorIndex(filepath.Join(cfg.DataDir, vectorsFile))
	if err != nil {
		return nil, nil, err
	}

	lexical, err := store.NewLexicalIndex(filepath.Join(cfg.DataDir, lexicalDir))
	if err != nil {
		_ = vectors.Close()
		return nil, nil, err
	}

	cat, err := catalog.Load(filepath.Join(cfg.DataDir, catalogFile))
	if err != nil {
		_ = vectors.Close()
		_ = lexical.Close()
		return nil, nil, err
	}

	embedder, err := embed.NewCachedEmbedder(embed.NewStaticEmbedder(), 0)
	if err != nil {
		_ = vectors.Close()
		_ = lexical.Close()
		return nil, nil, err
	}

	closeAll := func() {
		_ = embedder.Close()
		_ = lexical.Close()
		_ = vectors.Close()
	}
	return &engine.RetrievalContext{
		Vectors:  vectors,
		Lexical:  lexical,
		Chunks:   chunks,
		Catalog:  cat,
		Embedder: embedder,
	}, closeAll, nil
}

func snippet(text string) string {
	const limit = 120
	text = strings.Join(strings.Fields(text), " ")
	if len(text) > limit {
		return text[:limit] + "..."
	}
	return text
}
