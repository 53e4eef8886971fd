package rank

import (
	"log/slog"
	"math"

	"github.com/quarrylabs/quarry/internal/vecmath"
)

// MMR defaults.
const (
	DefaultMMRLambda       = 0.6
	DefaultMMRMaxCandidates = 200
)

// MMRRerank selects topK candidates balancing relevance to the query
// against dissimilarity to already-selected candidates. The first pick is
// the candidate with the highest original score; each subsequent pick
// maximizes lambda*relevance - (1-lambda)*maxSimilarityToSelected.
//
// Guardrails: empty input returns empty output; the pool is truncated to
// maxCandidates (DefaultMMRMaxCandidates when <= 0); a length mismatch
// between candidates and vecs truncates both to the shorter; topK is
// clamped to the pool size. A non-finite score anywhere falls back to the
// top topK candidates by original score, so reranking failure never
// surfaces as an error.
func MMRRerank(candidates []Candidate, queryVec []float32, vecs [][]float32, topK int, lambda float64, maxCandidates int) []Candidate {
	if len(candidates) == 0 || topK <= 0 {
		return nil
	}
	if maxCandidates <= 0 {
		maxCandidates = DefaultMMRMaxCandidates
	}

	n := len(candidates)
	if len(vecs) < n {
		slog.Warn("candidate/vector length mismatch, truncating",
			"candidates", len(candidates), "vectors", len(vecs))
		n = len(vecs)
	}
	if n > maxCandidates {
		n = maxCandidates
	}
	if n == 0 {
		return topKByScore(candidates, topK)
	}
	pool := candidates[:n]
	poolVecs := vecs[:n]

	if topK > n {
		topK = n
	}

	// Relevance to the query is fixed per candidate; compute once.
	relevance := make([]float64, n)
	for i := range pool {
		relevance[i] = vecmath.Cosine(queryVec, poolVecs[i])
		if !vecmath.Finite(relevance[i]) {
			return topKByScore(pool, topK)
		}
	}

	selected := make([]int, 0, topK)
	remaining := make(map[int]bool, n)
	for i := 0; i < n; i++ {
		remaining[i] = true
	}

	// Seed with the highest original score so relevance anchors the set
	// before diversity kicks in.
	seed := -1
	for i := range pool {
		if !vecmath.Finite(pool[i].Score) {
			return topKByScore(pool, topK)
		}
		if seed < 0 || pool[i].Score > pool[seed].Score ||
			(pool[i].Score == pool[seed].Score && pool[i].ID < pool[seed].ID) {
			seed = i
		}
	}
	selected = append(selected, seed)
	delete(remaining, seed)

	for len(selected) < topK && len(remaining) > 0 {
		best := -1
		bestScore := math.Inf(-1)
		for i := range pool {
			if !remaining[i] {
				continue
			}
			// The true maximum similarity to the selected set; it can be
			// negative, and a negative penalty rewards anti-correlated
			// picks. selected is never empty here, so the -Inf start is
			// always replaced.
			penalty := math.Inf(-1)
			for _, s := range selected {
				sim := vecmath.Cosine(poolVecs[i], poolVecs[s])
				if sim > penalty {
					penalty = sim
				}
			}
			score := lambda*relevance[i] - (1-lambda)*penalty
			if !vecmath.Finite(score) {
				return topKByScore(pool, topK)
			}
			if score > bestScore || (score == bestScore && (best < 0 || pool[i].ID < pool[best].ID)) {
				best = i
				bestScore = score
			}
		}
		if best < 0 {
			break
		}
		selected = append(selected, best)
		delete(remaining, best)
	}

	out := make([]Candidate, 0, len(selected))
	for _, idx := range selected {
		out = append(out, pool[idx])
	}
	return out
}
