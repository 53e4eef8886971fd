package catalog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrylabs/quarry/internal/embed"
	"github.com/quarrylabs/quarry/internal/store"
)

func TestNewDeduplicatesByID(t *testing.T) {
	cat := New([]Entry{
		{ID: "a", Title: "first"},
		{ID: "a", Title: "second"},
		{ID: "b", Title: "other"},
		{ID: "", Title: "dropped"},
	})

	require.Equal(t, 2, cat.Len())
	entry, ok := cat.Get("a")
	require.True(t, ok)
	assert.Equal(t, "first", entry.Title)
}

func TestForEachAscendingOrder(t *testing.T) {
	cat := New([]Entry{{ID: "zeta"}, {ID: "alpha"}, {ID: "mid"}})

	var ids []string
	cat.ForEach(func(e Entry) { ids = append(ids, e.ID) })
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, ids)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	cat := New([]Entry{
		{
			ID:       "stewardship",
			Title:    "Carrying the Load",
			Tags:     []string{"stewardship"},
			Keywords: []string{"hidden load"},
			Centroid: []float32{0.6, 0.8},
		},
	})

	require.NoError(t, cat.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 1, loaded.Len())

	entry, ok := loaded.Get("stewardship")
	require.True(t, ok)
	assert.Equal(t, "Carrying the Load", entry.Title)
	assert.Equal(t, []string{"hidden load"}, entry.Keywords)
	assert.InDelta(t, 0.6, entry.Centroid[0], 1e-6)
}

func TestBuildGroupsChunksByTopic(t *testing.T) {
	chunks := store.NewChunkStore([]store.Chunk{
		{ID: "c1", TopicID: "stewardship", Title: "Carrying the Load",
			Text: "leadership burden and hidden load", Tags: []string{"stewardship"},
			Metadata: map[string]string{"keywords": "hidden load, leadership burden"}},
		{ID: "c2", TopicID: "stewardship", Text: "the weight leaders carry",
			Tags: []string{"trust"}},
		{ID: "c3", TopicID: "pace", Title: "Sustainable Pace",
			Text: "slowing down on purpose"},
		{ID: "c4", TopicID: "", Text: "orphan chunk, no topic"},
	})

	embedder := embed.NewStaticEmbedder()
	defer embedder.Close()

	cat, err := Build(context.Background(), chunks, embedder)
	require.NoError(t, err)
	require.Equal(t, 2, cat.Len())

	entry, ok := cat.Get("stewardship")
	require.True(t, ok)
	assert.Equal(t, "Carrying the Load", entry.Title)
	assert.ElementsMatch(t, []string{"stewardship", "trust"}, entry.Tags)
	assert.ElementsMatch(t, []string{"hidden load", "leadership burden"}, entry.Keywords)
	require.NotEmpty(t, entry.Centroid)

	var norm float64
	for _, v := range entry.Centroid {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, norm, 1e-5, "centroid must be unit-normalized")
}

func TestBuildWithoutEmbedder(t *testing.T) {
	chunks := store.NewChunkStore([]store.Chunk{
		{ID: "c1", TopicID: "pace", Text: "slowing down"},
	})

	cat, err := Build(context.Background(), chunks, nil)
	require.NoError(t, err)

	entry, ok := cat.Get("pace")
	require.True(t, ok)
	assert.Empty(t, entry.Centroid)
	assert.Equal(t, "pace", entry.Title, "topic id stands in for a missing title")
}

func TestBuildEmptyCorpus(t *testing.T) {
	cat, err := Build(context.Background(), store.NewChunkStore(nil), nil)
	require.NoError(t, err)
	assert.Zero(t, cat.Len())
}
