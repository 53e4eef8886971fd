package embed

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticEmbedderDeterministic(t *testing.T) {
	e := NewStaticEmbedder()
	defer e.Close()

	a, err := e.Embed(context.Background(), "trust under pressure")
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), "trust under pressure")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, StaticDimensions)
}

func TestStaticEmbedderUnitNorm(t *testing.T) {
	e := NewStaticEmbedder()
	defer e.Close()

	vec, err := e.Embed(context.Background(), "pace and presence")
	require.NoError(t, err)

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
}

func TestStaticEmbedderEmptyText(t *testing.T) {
	e := NewStaticEmbedder()
	defer e.Close()

	vec, err := e.Embed(context.Background(), "   ")
	require.NoError(t, err)
	require.Len(t, vec, StaticDimensions)
	for _, v := range vec {
		assert.Zero(t, v)
	}
}

func TestStaticEmbedderSimilarTextsOverlap(t *testing.T) {
	e := NewStaticEmbedder()
	defer e.Close()

	ctx := context.Background()
	a, err := e.Embed(ctx, "leadership feels heavy")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "leadership feels very heavy")
	require.NoError(t, err)
	c, err := e.Embed(ctx, "quarterly revenue projections")
	require.NoError(t, err)

	simAB := dot(a, b)
	simAC := dot(a, c)
	assert.Greater(t, simAB, simAC, "texts sharing tokens should be closer")
}

func TestStaticEmbedderBatch(t *testing.T) {
	e := NewStaticEmbedder()
	defer e.Close()

	vecs, err := e.EmbedBatch(context.Background(), []string{"one", "two", "one"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, vecs[0], vecs[2])
}

func TestStaticEmbedderClosed(t *testing.T) {
	e := NewStaticEmbedder()
	require.NoError(t, e.Close())

	_, err := e.Embed(context.Background(), "anything")
	assert.Error(t, err)
}

func TestCachedEmbedderServesFromCache(t *testing.T) {
	inner := &countingEmbedder{inner: NewStaticEmbedder()}
	cached, err := NewCachedEmbedder(inner, 16)
	require.NoError(t, err)
	defer cached.Close()

	ctx := context.Background()
	a, err := cached.Embed(ctx, "clarity in decision")
	require.NoError(t, err)
	b, err := cached.Embed(ctx, "clarity in decision")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, 1, inner.calls)
}

func TestCachedEmbedderBatchPartialHits(t *testing.T) {
	inner := &countingEmbedder{inner: NewStaticEmbedder()}
	cached, err := NewCachedEmbedder(inner, 16)
	require.NoError(t, err)
	defer cached.Close()

	ctx := context.Background()
	_, err = cached.Embed(ctx, "alpha")
	require.NoError(t, err)

	vecs, err := cached.EmbedBatch(ctx, []string{"alpha", "beta"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, 1, inner.batchSize, "only the miss should reach the embedder")
}

type countingEmbedder struct {
	inner     Embedder
	calls     int
	batchSize int
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	return c.inner.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.batchSize = len(texts)
	return c.inner.EmbedBatch(ctx, texts)
}

func (c *countingEmbedder) Dimensions() int   { return c.inner.Dimensions() }
func (c *countingEmbedder) ModelName() string { return c.inner.ModelName() }
func (c *countingEmbedder) Close() error      { return c.inner.Close() }

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}
