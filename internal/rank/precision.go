package rank

import (
	"context"
	"log/slog"
)

// Combined-score weights for precision reranking.
const (
	crossWeight    = 0.7
	originalWeight = 0.3
)

// Scorer is a pairwise precision scorer, typically a cross-encoder. It is
// an optional collaborator: Available reports whether scoring can be
// attempted at all.
type Scorer interface {
	// Score rates how well text answers the query. Higher is better.
	Score(ctx context.Context, query, text string) (float64, error)
	Available() bool
}

// PrecisionRerank rescores candidates with the pairwise scorer, combining
// 0.7*cross and 0.3*original score, then sorts descending and truncates to
// topK. When the scorer is nil, unavailable, or fails on any candidate,
// the input passes through unchanged except for topK truncation.
func PrecisionRerank(ctx context.Context, candidates []Candidate, queryText string, scorer Scorer, topK int) []Candidate {
	if len(candidates) == 0 || topK <= 0 {
		return nil
	}
	if topK > len(candidates) {
		topK = len(candidates)
	}
	if scorer == nil || !scorer.Available() {
		out := make([]Candidate, topK)
		copy(out, candidates[:topK])
		return out
	}

	out := make([]Candidate, len(candidates))
	copy(out, candidates)

	for i := range out {
		cross, err := scorer.Score(ctx, queryText, out[i].Text)
		if err != nil {
			slog.Warn("precision scorer failed, passing candidates through",
				"candidate", out[i].ID, "error", err)
			passthrough := make([]Candidate, topK)
			copy(passthrough, candidates[:topK])
			return passthrough
		}
		out[i].CrossScore = cross
		out[i].Score = crossWeight*cross + originalWeight*out[i].Score
	}

	sortByScoreDesc(out)
	return out[:topK]
}
