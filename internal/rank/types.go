// Package rank implements the score-fusion and reranking stages of the
// retrieval pipeline: reciprocal rank fusion of heterogeneous candidate
// lists, catalog-driven boosting, MMR diversity selection, and optional
// pairwise precision reranking.
package rank

import (
	"math"
	"sort"
)

// Candidate is a retrieved chunk flowing through the ranking stages. Each
// stage returns a new slice; candidates are treated as values and never
// shared mutably between stages.
type Candidate struct {
	ID         string
	Score      float64
	Text       string
	TopicID    string
	Tags       []string
	Metadata   map[string]string
	CrossScore float64
}

// topKByScore returns the top k candidates sorted by score descending,
// ties broken by ID ascending. Non-finite scores sort last. Used as the
// degraded path when a reranking stage cannot run.
func topKByScore(candidates []Candidate, k int) []Candidate {
	out := make([]Candidate, len(candidates))
	copy(out, candidates)
	sort.SliceStable(out, func(i, j int) bool {
		si, sj := saneScore(out[i].Score), saneScore(out[j].Score)
		if si != sj {
			return si > sj
		}
		return out[i].ID < out[j].ID
	})
	if k >= 0 && k < len(out) {
		out = out[:k]
	}
	return out
}

func sortByScoreDesc(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].ID < candidates[j].ID
	})
}

func saneScore(s float64) float64 {
	if math.IsNaN(s) || math.IsInf(s, 0) {
		return math.Inf(-1)
	}
	return s
}
