package rank

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMMRLambdaOnePureRelevance(t *testing.T) {
	queryVec := []float32{1, 0, 0}
	// Scores equal each candidate's cosine to the query, as dense
	// retrieval produces.
	candidates := []Candidate{
		{ID: "far", Score: 0.1},
		{ID: "near", Score: 0.99},
		{ID: "mid", Score: 0.6},
	}
	vecs := [][]float32{
		{0.1, 0.99, 0},
		{0.99, 0.1, 0},
		{0.6, 0.8, 0},
	}

	out := MMRRerank(candidates, queryVec, vecs, 3, 1.0, 0)
	require.Len(t, out, 3)
	assert.Equal(t, "near", out[0].ID)
	assert.Equal(t, "mid", out[1].ID)
	assert.Equal(t, "far", out[2].ID)
}

func TestMMRLambdaZeroAvoidsNearDuplicates(t *testing.T) {
	queryVec := []float32{1, 0, 0}
	candidates := []Candidate{
		{ID: "seed", Score: 1.0},
		{ID: "twin", Score: 0.95},   // almost identical to seed
		{ID: "other", Score: 0.2},   // orthogonal to seed
	}
	vecs := [][]float32{
		{1, 0, 0},
		{0.999, 0.04, 0},
		{0, 1, 0},
	}

	out := MMRRerank(candidates, queryVec, vecs, 2, 0.0, 0)
	require.Len(t, out, 2)
	assert.Equal(t, "seed", out[0].ID)
	assert.Equal(t, "other", out[1].ID, "second pick must avoid the near-duplicate")
}

func TestMMRNegativeSimilarityRewardsDiversity(t *testing.T) {
	queryVec := []float32{0, 1, 0}
	candidates := []Candidate{
		{ID: "seed", Score: 1.0},
		{ID: "opposite", Score: 0.5}, // anti-correlated with seed
		{ID: "leaning", Score: 0.6},  // partly aligned with seed
	}
	vecs := [][]float32{
		{1, 0, 0},
		{-1, 0, 0},
		{0.6, 0.8, 0},
	}

	// opposite: 0.5*0 - 0.5*(-1) = 0.5, leaning: 0.5*0.8 - 0.5*0.6 = 0.1.
	// The negative penalty must carry through, not clamp at zero.
	out := MMRRerank(candidates, queryVec, vecs, 2, 0.5, 0)
	require.Len(t, out, 2)
	assert.Equal(t, "seed", out[0].ID)
	assert.Equal(t, "opposite", out[1].ID, "anti-correlated pick must keep its diversity reward")
}

func TestMMRSeedIsHighestOriginalScore(t *testing.T) {
	queryVec := []float32{0, 1}
	candidates := []Candidate{
		{ID: "a", Score: 0.3},
		{ID: "b", Score: 0.9},
	}
	vecs := [][]float32{{1, 0}, {0, 1}}

	out := MMRRerank(candidates, queryVec, vecs, 1, 0.5, 0)
	require.Len(t, out, 1)
	assert.Equal(t, "b", out[0].ID)
}

func TestMMREmptyInput(t *testing.T) {
	assert.Empty(t, MMRRerank(nil, []float32{1}, nil, 5, 0.5, 0))
	assert.Empty(t, MMRRerank([]Candidate{{ID: "a"}}, []float32{1}, [][]float32{{1}}, 0, 0.5, 0))
}

func TestMMRLengthMismatchTruncates(t *testing.T) {
	candidates := []Candidate{
		{ID: "a", Score: 0.9},
		{ID: "b", Score: 0.8},
		{ID: "c", Score: 0.7},
	}
	vecs := [][]float32{{1, 0}, {0, 1}} // one vector short

	out := MMRRerank(candidates, []float32{1, 0}, vecs, 10, 0.5, 0)
	require.Len(t, out, 2)
	for _, c := range out {
		assert.NotEqual(t, "c", c.ID)
	}
}

func TestMMRClampsTopK(t *testing.T) {
	candidates := []Candidate{{ID: "a", Score: 0.5}}
	out := MMRRerank(candidates, []float32{1}, [][]float32{{1}}, 100, 0.5, 0)
	assert.Len(t, out, 1)
}

func TestMMRTruncatesToMaxCandidates(t *testing.T) {
	candidates := make([]Candidate, 10)
	vecs := make([][]float32, 10)
	for i := range candidates {
		candidates[i] = Candidate{ID: string(rune('a' + i)), Score: 1.0 - float64(i)*0.01}
		vecs[i] = []float32{float32(i + 1), 1}
	}

	out := MMRRerank(candidates, []float32{1, 0}, vecs, 10, 0.5, 4)
	assert.Len(t, out, 4)
}

func TestMMRZeroVectorsSafe(t *testing.T) {
	candidates := []Candidate{
		{ID: "a", Score: 0.9},
		{ID: "b", Score: 0.8},
	}
	vecs := [][]float32{{0, 0}, {0, 0}}

	out := MMRRerank(candidates, []float32{0, 0}, vecs, 2, 0.5, 0)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].ID)
}

func TestMMRNonFiniteScoreFallsBack(t *testing.T) {
	candidates := []Candidate{
		{ID: "b", Score: 0.5},
		{ID: "a", Score: math.NaN()},
		{ID: "c", Score: 0.9},
	}
	vecs := [][]float32{{1, 0}, {0, 1}, {1, 1}}

	out := MMRRerank(candidates, []float32{1, 0}, vecs, 2, 0.5, 0)
	require.Len(t, out, 2)
	// Fallback is top-k by original score.
	assert.Equal(t, "c", out[0].ID)
	assert.Equal(t, "b", out[1].ID)
}
