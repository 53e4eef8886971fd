package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/quarrylabs/quarry/internal/embed"
	"github.com/quarrylabs/quarry/internal/store"
)

// centroidSampleLimit bounds how many chunk texts contribute to a topic
// centroid.
const centroidSampleLimit = 32

// Build derives catalog entries from the chunk corpus, grouping chunks by
// topic. The entry title comes from the first titled chunk, tags are the
// union of chunk tags, and the centroid is the unit-normalized mean of the
// sampled chunk embeddings. A nil embedder produces entries without
// centroids, which downgrades the router to keywords-only scoring.
func Build(ctx context.Context, chunks *store.ChunkStore, embedder embed.Embedder) (*Catalog, error) {
	if chunks == nil || chunks.Count() == 0 {
		return New(nil), nil
	}

	groups := make(map[string][]store.Chunk)
	for _, chunk := range chunks.All() {
		topic := chunk.TopicID
		if topic == "" {
			continue
		}
		groups[topic] = append(groups[topic], chunk)
	}

	topics := make([]string, 0, len(groups))
	for topic := range groups {
		topics = append(topics, topic)
	}
	sort.Strings(topics)

	entries := make([]Entry, 0, len(topics))
	for _, topic := range topics {
		entry, err := buildEntry(ctx, topic, groups[topic], embedder)
		if err != nil {
			return nil, fmt.Errorf("build entry %s: %w", topic, err)
		}
		entries = append(entries, entry)
	}

	slog.Info("catalog built", "topics", len(entries), "chunks", chunks.Count())
	return New(entries), nil
}

func buildEntry(ctx context.Context, topic string, chunks []store.Chunk, embedder embed.Embedder) (Entry, error) {
	entry := Entry{ID: topic}

	tagSet := make(map[string]struct{})
	keywordSet := make(map[string]struct{})
	var texts []string

	for _, chunk := range chunks {
		if entry.Title == "" && chunk.Title != "" {
			entry.Title = chunk.Title
		}
		for _, tag := range chunk.Tags {
			tagSet[strings.ToLower(tag)] = struct{}{}
		}
		if kw := chunk.Metadata["keywords"]; kw != "" {
			for _, phrase := range strings.Split(kw, ",") {
				phrase = strings.TrimSpace(strings.ToLower(phrase))
				if phrase != "" {
					keywordSet[phrase] = struct{}{}
				}
			}
		}
		if len(texts) < centroidSampleLimit {
			texts = append(texts, chunk.Text)
		}
	}

	if entry.Title == "" {
		entry.Title = topic
	}
	if short := chunks[0].Metadata["short_title"]; short != "" {
		entry.ShortTitle = short
	}
	entry.Tags = sortedKeys(tagSet)
	entry.Keywords = sortedKeys(keywordSet)

	if embedder != nil && len(texts) > 0 {
		centroid, err := topicCentroid(ctx, texts, embedder)
		if err != nil {
			return Entry{}, err
		}
		entry.Centroid = centroid
	}

	return entry, nil
}

// topicCentroid embeds the sampled texts and returns their unit-normalized
// mean vector.
func topicCentroid(ctx context.Context, texts []string, embedder embed.Embedder) ([]float32, error) {
	vecs, err := embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed topic sample: %w", err)
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return nil, nil
	}

	dims := len(vecs[0])
	centroid := make([]float32, dims)
	for _, vec := range vecs {
		if len(vec) != dims {
			continue
		}
		for i, v := range vec {
			centroid[i] += v
		}
	}
	inv := 1.0 / float32(len(vecs))
	for i := range centroid {
		centroid[i] *= inv
	}
	return embed.NormalizeVector(centroid), nil
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
