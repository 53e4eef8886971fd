package rank

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedScorer struct {
	scores    map[string]float64
	available bool
	err       error
}

func (s *fixedScorer) Score(ctx context.Context, query, text string) (float64, error) {
	if s.err != nil {
		return 0, s.err
	}
	return s.scores[text], nil
}

func (s *fixedScorer) Available() bool { return s.available }

func TestPrecisionRerankCombinesScores(t *testing.T) {
	scorer := &fixedScorer{
		available: true,
		scores:    map[string]float64{"low-orig": 1.0, "high-orig": 0.0},
	}
	candidates := []Candidate{
		{ID: "a", Score: 0.9, Text: "high-orig"},
		{ID: "b", Score: 0.1, Text: "low-orig"},
	}

	out := PrecisionRerank(context.Background(), candidates, "q", scorer, 2)
	require.Len(t, out, 2)

	// b: 0.7*1.0 + 0.3*0.1 = 0.73 beats a: 0.7*0 + 0.3*0.9 = 0.27.
	assert.Equal(t, "b", out[0].ID)
	assert.InDelta(t, 0.73, out[0].Score, 1e-9)
	assert.InDelta(t, 1.0, out[0].CrossScore, 1e-9)
	assert.InDelta(t, 0.27, out[1].Score, 1e-9)
}

func TestPrecisionRerankTruncatesToTopK(t *testing.T) {
	scorer := &fixedScorer{available: true, scores: map[string]float64{}}
	candidates := []Candidate{
		{ID: "a", Score: 0.3, Text: "a"},
		{ID: "b", Score: 0.2, Text: "b"},
		{ID: "c", Score: 0.1, Text: "c"},
	}

	out := PrecisionRerank(context.Background(), candidates, "q", scorer, 2)
	assert.Len(t, out, 2)
}

func TestPrecisionRerankNilScorerPassesThrough(t *testing.T) {
	candidates := []Candidate{
		{ID: "a", Score: 0.9},
		{ID: "b", Score: 0.1},
	}

	out := PrecisionRerank(context.Background(), candidates, "q", nil, 2)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].ID)
	assert.InDelta(t, 0.9, out[0].Score, 1e-9)
}

func TestPrecisionRerankUnavailableScorerPassesThrough(t *testing.T) {
	scorer := &fixedScorer{available: false}
	candidates := []Candidate{{ID: "a", Score: 0.5}, {ID: "b", Score: 0.4}, {ID: "c", Score: 0.3}}

	out := PrecisionRerank(context.Background(), candidates, "q", scorer, 2)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, "b", out[1].ID)
}

func TestPrecisionRerankScorerErrorPassesThrough(t *testing.T) {
	scorer := &fixedScorer{available: true, err: errors.New("model crashed")}
	candidates := []Candidate{{ID: "a", Score: 0.5}, {ID: "b", Score: 0.4}}

	out := PrecisionRerank(context.Background(), candidates, "q", scorer, 2)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].ID)
	assert.InDelta(t, 0.5, out[0].Score, 1e-9)
}

func TestPrecisionRerankEmptyInput(t *testing.T) {
	assert.Empty(t, PrecisionRerank(context.Background(), nil, "q", nil, 5))
	assert.Empty(t, PrecisionRerank(context.Background(), []Candidate{{ID: "a"}}, "q", nil, 0))
}
