// Package router narrows retrieval to a small set of catalog topics using
// a confidence-graded decision procedure. The router only ever narrows or
// declines to narrow; it never blocks retrieval, and it never returns an
// error: any failure degrades to the unrestricted all route.
package router

import (
	"context"
	"log/slog"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/quarrylabs/quarry/internal/catalog"
	"github.com/quarrylabs/quarry/internal/query"
	"github.com/quarrylabs/quarry/internal/vecmath"
)

// Route is the router's verdict on how many topics to prioritize.
type Route string

const (
	RouteSingle Route = "single"
	RouteDouble Route = "double"
	RouteTriple Route = "triple"
	RouteAll    Route = "all"
)

// Candidate is one routed topic with its combined score.
type Candidate struct {
	EntryID string  `json:"entry_id"`
	Title   string  `json:"title"`
	Score   float64 `json:"score"`
}

// Decision is the routing outcome for one query. Candidates length matches
// the route: single=1, double=2, triple=3, all=0 (no restriction).
type Decision struct {
	Candidates []Candidate `json:"candidates"`
	Confidence float64     `json:"confidence"`
	Route      Route       `json:"route"`
}

// Weights blend the three component scores of the embedded scorer.
type Weights struct {
	Embed    float64 `yaml:"embed" env:"EMBED"`
	Tags     float64 `yaml:"tags" env:"TAGS"`
	Keywords float64 `yaml:"keywords" env:"KEYWORDS"`
}

// Config holds the router's thresholds and weights.
type Config struct {
	Enabled       bool    `yaml:"enabled" env:"ENABLED"`
	K             int     `yaml:"k" env:"K"`
	MinConfSingle float64 `yaml:"min_conf_single" env:"MIN_CONF_SINGLE"`
	MinConfDouble float64 `yaml:"min_conf_double" env:"MIN_CONF_DOUBLE"`
	MinConfTriple float64 `yaml:"min_conf_triple" env:"MIN_CONF_TRIPLE"`
	Weights       Weights `yaml:"weights" envPrefix:"WEIGHTS_"`
	HardGate      bool    `yaml:"hard_gate" env:"HARD_GATE"`
}

// DefaultConfig returns the router defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:       true,
		K:             3,
		MinConfSingle: 0.45,
		MinConfDouble: 0.30,
		MinConfTriple: 0.22,
		Weights:       Weights{Embed: 0.6, Tags: 0.2, Keywords: 0.2},
	}
}

// Embedder is the router's view of the embedding collaborator. A nil
// Embedder switches the router to keywords-only scoring.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

const decisionCacheSize = 512

// Router scores catalog entries against a parsed query and grades its own
// confidence in the result. Safe for concurrent use once constructed.
type Router struct {
	catalog  *catalog.Catalog
	embedder Embedder
	config   Config
	cache    *lru.Cache[string, Decision]
}

// New creates a Router over the catalog. embedder may be nil.
func New(cat *catalog.Catalog, embedder Embedder, cfg Config) *Router {
	if cfg.K <= 0 {
		cfg.K = DefaultConfig().K
	}
	cache, err := lru.New[string, Decision](decisionCacheSize)
	if err != nil {
		cache = nil
	}
	return &Router{catalog: cat, embedder: embedder, config: cfg, cache: cache}
}

// Route decides how to narrow retrieval for the parsed query. It never
// returns an error: an empty catalog, a scoring failure, or an
// unembeddable query all produce the unrestricted all route with zero
// confidence.
func (r *Router) Route(ctx context.Context, parsed query.Parsed) Decision {
	fallback := Decision{Route: RouteAll, Confidence: 0.0}
	if r.catalog == nil || r.catalog.Len() == 0 || parsed.Text == "" {
		return fallback
	}

	if r.cache != nil {
		if cached, ok := r.cache.Get(parsed.Text); ok {
			return cached
		}
	}

	scorer, cacheable := r.pickScorer(ctx, parsed)

	scored := make([]Candidate, 0, r.catalog.Len())
	r.catalog.ForEach(func(entry catalog.Entry) {
		score := scorer.score(parsed, entry)
		if !vecmath.Finite(score) {
			score = 0.0
		}
		scored = append(scored, Candidate{EntryID: entry.ID, Title: entry.Title, Score: score})
	})
	if len(scored) == 0 {
		return fallback
	}

	// ForEach already walks IDs ascending, so the stable sort keeps the
	// ID tie-break.
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	confidence := scored[0].Score
	if confidence <= 0 {
		confidence = 0.0
	}

	decision := r.grade(scored, confidence)
	if r.cache != nil && cacheable {
		r.cache.Add(parsed.Text, decision)
	}
	return decision
}

func (r *Router) grade(scored []Candidate, confidence float64) Decision {
	var take int
	var route Route
	switch {
	case confidence >= r.config.MinConfSingle:
		route, take = RouteSingle, 1
	case confidence >= r.config.MinConfDouble:
		route, take = RouteDouble, 2
	case confidence >= r.config.MinConfTriple:
		route, take = RouteTriple, 3
	default:
		return Decision{Route: RouteAll, Confidence: confidence}
	}

	if take > r.config.K {
		take = r.config.K
	}
	if take > len(scored) {
		take = len(scored)
	}
	candidates := make([]Candidate, take)
	copy(candidates, scored[:take])

	return Decision{Candidates: candidates, Confidence: confidence, Route: route}
}

// pickScorer selects the scoring variant once per call: embedded when a
// query embedding is obtainable, keywords-only otherwise. The two variants
// are distinct formulas, not one formula with a zeroed term. The second
// return reports whether the resulting decision may be cached: a decision
// scored during a transient embedding failure must not be, or the degraded
// route would be pinned for the cache lifetime.
func (r *Router) pickScorer(ctx context.Context, parsed query.Parsed) (entryScorer, bool) {
	if r.embedder == nil {
		return keywordsScorer{}, true
	}
	vec, err := r.embedder.Embed(ctx, parsed.Text)
	if err != nil || len(vec) == 0 {
		if err != nil {
			slog.Debug("query embedding unavailable, using keywords-only routing", "error", err)
		}
		return keywordsScorer{}, false
	}
	return embeddedScorer{queryVec: vec, weights: r.config.Weights}, true
}

type entryScorer interface {
	score(parsed query.Parsed, entry catalog.Entry) float64
}

// embeddedScorer blends embedding similarity with tag and keyword overlap.
type embeddedScorer struct {
	queryVec []float32
	weights  Weights
}

func (s embeddedScorer) score(parsed query.Parsed, entry catalog.Entry) float64 {
	embedSim := 0.0
	if len(entry.Centroid) > 0 {
		embedSim = vecmath.Cosine(s.queryVec, entry.Centroid)
		if embedSim < 0 {
			embedSim = 0.0
		}
	}
	return s.weights.Embed*embedSim +
		s.weights.Tags*tagOverlap(parsed, entry) +
		s.weights.Keywords*keywordMatch(parsed, entry)
}

// keywordsScorer averages tag and keyword overlap, with no embedding term.
type keywordsScorer struct{}

func (keywordsScorer) score(parsed query.Parsed, entry catalog.Entry) float64 {
	return (tagOverlap(parsed, entry) + keywordMatch(parsed, entry)) / 2.0
}
