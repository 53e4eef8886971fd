// Package engine assembles the retrieval pipeline: query parsing, topic
// routing, dense and lexical retrieval, rank fusion, catalog boosting, and
// the MMR and precision finishers. Each query is a synchronous computation
// over immutable serving state, so one Engine serves concurrent callers
// without locking.
package engine

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quarrylabs/quarry/internal/catalog"
	"github.com/quarrylabs/quarry/internal/config"
	"github.com/quarrylabs/quarry/internal/embed"
	"github.com/quarrylabs/quarry/internal/query"
	"github.com/quarrylabs/quarry/internal/rank"
	"github.com/quarrylabs/quarry/internal/router"
	"github.com/quarrylabs/quarry/internal/store"
)

// Lane selects the latency/quality tradeoff for one retrieval call.
type Lane string

const (
	LaneFast     Lane = "fast"
	LaneAccurate Lane = "accurate"
)

// RetrievalContext holds the immutable serving state: index handles,
// catalog, and embedder, loaded once at startup. Index rebuilds swap in a
// new RetrievalContext rather than mutating a live one.
type RetrievalContext struct {
	Vectors  *store.VectorIndex
	Lexical  *store.LexicalIndex
	Chunks   *store.ChunkStore
	Catalog  *catalog.Catalog
	Embedder embed.Embedder

	// Scorer is the optional precision reranker for the accurate lane.
	Scorer rank.Scorer
}

// Options adjusts a single Retrieve call.
type Options struct {
	Lane      Lane
	TopK      int
	UseRouter bool
}

// Result is one ranked chunk returned to the caller. Route is attached to
// the first result only, and only when routing ran.
type Result struct {
	ID       string            `json:"id"`
	Rank     int               `json:"rank"`
	Score    float64           `json:"score"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Route    *router.Decision  `json:"route_decision,omitempty"`
}

// Engine runs the retrieval pipeline over one RetrievalContext.
type Engine struct {
	rc     *RetrievalContext
	cfg    config.Config
	router *router.Router
	fuser  *rank.Fuser
	boost  *rank.Booster
	logger *slog.Logger
}

// New creates an Engine. rc fields may be nil; missing collaborators
// disable their stage and the pipeline degrades per the error policy
// instead of failing.
func New(rc *RetrievalContext, cfg config.Config) *Engine {
	if rc == nil {
		rc = &RetrievalContext{}
	}
	var rt *router.Router
	if cfg.Router.Enabled {
		rt = router.New(rc.Catalog, rc.Embedder, cfg.Router)
	}
	return &Engine{
		rc:     rc,
		cfg:    cfg,
		router: rt,
		fuser:  rank.NewFuser(cfg.RRFC),
		boost:  rank.NewBooster(rc.Catalog, cfg.TopicBoost, cfg.TagBoost, cfg.TopicTopN),
		logger: slog.Default().With("component", "engine"),
	}
}

// Retrieve runs one query through the selected lane and returns a ranked
// list. It never returns an error: every internal failure degrades to a
// valid, possibly empty, result list.
func (e *Engine) Retrieve(ctx context.Context, rawQuery string, opts Options) []Result {
	start := time.Now()

	if opts.TopK <= 0 {
		opts.TopK = e.defaultTopK(opts.Lane)
	}
	if opts.Lane == "" {
		opts.Lane = LaneFast
	}

	if budget := e.laneBudget(opts.Lane); budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}

	parsed := query.Parse(rawQuery)
	if parsed.Text == "" {
		return nil
	}

	var decision *router.Decision
	if opts.UseRouter && e.router != nil {
		d := e.router.Route(ctx, parsed)
		decision = &d
	}

	var ranked []rank.Candidate
	switch opts.Lane {
	case LaneAccurate:
		ranked = e.accurateLane(ctx, parsed, decision, opts.TopK)
	default:
		ranked = e.fastLane(ctx, parsed, decision, opts.TopK)
	}

	results := e.toResults(ranked, decision, opts.UseRouter)
	e.logger.Debug("retrieve complete",
		"lane", string(opts.Lane),
		"results", len(results),
		"routed", decision != nil && decision.Route != router.RouteAll,
		"duration", time.Since(start))
	return results
}

// fastLane: dense retrieval, boosting, MMR at lambda 0.5.
func (e *Engine) fastLane(ctx context.Context, parsed query.Parsed, decision *router.Decision, topK int) []rank.Candidate {
	queryVec := e.embedQuery(ctx, parsed.Text)

	candidates := e.denseSearch(ctx, queryVec, e.cfg.KDense)
	candidates = e.applyGate(candidates, decision)
	candidates = e.boost.Boost(candidates, decision, &parsed)

	return e.mmrStage(ctx, candidates, queryVec, topK, 0.5, e.cfg.KDense)
}

// accurateLane: dense and lexical retrieval in parallel, RRF fusion,
// boosting, MMR over a 3*topK pool at lambda 0.6, then optional precision
// reranking.
func (e *Engine) accurateLane(ctx context.Context, parsed query.Parsed, decision *router.Decision, topK int) []rank.Candidate {
	queryVec := e.embedQuery(ctx, parsed.Text)

	var dense, lexical []rank.Candidate
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		dense = e.denseSearch(gctx, queryVec, e.cfg.KDense)
		return nil
	})
	g.Go(func() error {
		lexical = e.lexicalSearch(gctx, parsed.Text, e.cfg.KLex)
		return nil
	})
	_ = g.Wait() // search goroutines absorb their own failures

	fused := e.fuser.Fuse(dense, lexical)
	fused = e.applyGate(fused, decision)
	fused = e.boost.Boost(fused, decision, &parsed)

	pool := 3 * topK
	if pool > e.cfg.AccurateIn {
		pool = e.cfg.AccurateIn
	}
	shrunk := e.mmrStage(ctx, fused, queryVec, pool, 0.6, e.cfg.AccurateIn)

	if len(shrunk) <= topK {
		return shrunk
	}
	if ctx.Err() != nil {
		// Budget exhausted: skip the optional precision stage.
		return shrunk[:topK]
	}
	return rank.PrecisionRerank(ctx, shrunk, parsed.Text, e.rc.Scorer, topK)
}

// denseSearch embeds nothing itself; it searches the vector index with the
// provided query vector and enriches hits from the chunk store. Any
// failure logs and returns nil.
func (e *Engine) denseSearch(ctx context.Context, queryVec []float32, k int) []rank.Candidate {
	if e.rc.Vectors == nil || len(queryVec) == 0 {
		return nil
	}
	hits, err := e.rc.Vectors.Search(ctx, queryVec, k)
	if err != nil {
		e.logger.Warn("dense search failed", "error", err)
		return nil
	}

	out := make([]rank.Candidate, 0, len(hits))
	for _, hit := range hits {
		cand := rank.Candidate{ID: hit.ID, Score: float64(hit.Score)}
		if chunk, ok := e.rc.Chunks.Get(hit.ID); ok {
			cand.Text = chunk.Text
			cand.TopicID = chunk.TopicID
			cand.Tags = chunk.Tags
			cand.Metadata = chunk.Metadata
		}
		out = append(out, cand)
	}
	return out
}

func (e *Engine) lexicalSearch(ctx context.Context, text string, k int) []rank.Candidate {
	if e.rc.Lexical == nil {
		return nil
	}
	hits, err := e.rc.Lexical.Search(ctx, text, k)
	if err != nil {
		e.logger.Warn("lexical search failed", "error", err)
		return nil
	}

	out := make([]rank.Candidate, 0, len(hits))
	for _, hit := range hits {
		cand := rank.Candidate{ID: hit.ID, Score: hit.Score}
		if chunk, ok := e.rc.Chunks.Get(hit.ID); ok {
			cand.Text = chunk.Text
			cand.TopicID = chunk.TopicID
			cand.Tags = chunk.Tags
			cand.Metadata = chunk.Metadata
		}
		out = append(out, cand)
	}
	return out
}

// applyGate hard-filters candidates to routed topics, but only when the
// router is configured as a hard gate and actually narrowed the search.
// In the default soft mode routing influences ranking through boosting
// only.
func (e *Engine) applyGate(candidates []rank.Candidate, decision *router.Decision) []rank.Candidate {
	if !e.cfg.Router.HardGate || decision == nil || len(decision.Candidates) == 0 {
		return candidates
	}

	allowed := make(map[string]bool, len(decision.Candidates))
	for _, c := range decision.Candidates {
		allowed[c.EntryID] = true
	}

	out := make([]rank.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if allowed[c.TopicID] {
			out = append(out, c)
		}
	}
	return out
}

// mmrStage embeds the candidate texts and runs MMR. If candidate
// embeddings cannot be produced, it degrades to top-k by current score.
func (e *Engine) mmrStage(ctx context.Context, candidates []rank.Candidate, queryVec []float32, topK int, lambda float64, maxCandidates int) []rank.Candidate {
	if len(candidates) == 0 || topK <= 0 {
		return nil
	}

	if e.rc.Embedder == nil {
		return truncate(candidates, topK)
	}

	pool := candidates
	if maxCandidates > 0 && len(pool) > maxCandidates {
		pool = pool[:maxCandidates]
	}
	texts := make([]string, len(pool))
	for i, c := range pool {
		texts[i] = c.Text
	}
	vecs, err := e.rc.Embedder.EmbedBatch(ctx, texts)
	if err != nil {
		e.logger.Warn("candidate embedding failed, skipping diversity rerank", "error", err)
		return truncate(candidates, topK)
	}

	return rank.MMRRerank(pool, queryVec, vecs, topK, lambda, maxCandidates)
}

// embedQuery returns nil when no embedding can be produced; downstream
// cosine treats nil as zero similarity.
func (e *Engine) embedQuery(ctx context.Context, text string) []float32 {
	if e.rc.Embedder == nil {
		return nil
	}
	vec, err := e.rc.Embedder.Embed(ctx, text)
	if err != nil {
		e.logger.Warn("query embedding failed", "error", err)
		return nil
	}
	return vec
}

func (e *Engine) toResults(candidates []rank.Candidate, decision *router.Decision, useRouter bool) []Result {
	results := make([]Result, 0, len(candidates))
	for i, c := range candidates {
		r := Result{
			ID:       c.ID,
			Rank:     i,
			Score:    c.Score,
			Text:     c.Text,
			Metadata: c.Metadata,
		}
		if i == 0 && useRouter && decision != nil {
			r.Route = decision
		}
		results = append(results, r)
	}
	return results
}

func (e *Engine) defaultTopK(lane Lane) int {
	if lane == LaneAccurate {
		return e.cfg.AccurateOut
	}
	return e.cfg.FastReturn
}

func (e *Engine) laneBudget(lane Lane) time.Duration {
	if lane == LaneAccurate {
		return e.cfg.AccurateBudgetDuration()
	}
	return e.cfg.FastBudgetDuration()
}

func truncate(candidates []rank.Candidate, k int) []rank.Candidate {
	out := make([]rank.Candidate, len(candidates))
	copy(out, candidates)
	if k < len(out) {
		out = out[:k]
	}
	return out
}
