package router

import (
	"strings"

	"github.com/quarrylabs/quarry/internal/catalog"
	"github.com/quarrylabs/quarry/internal/query"
)

// tagOverlap is the Jaccard overlap between the query's tag signals and
// the entry's tags.
func tagOverlap(parsed query.Parsed, entry catalog.Entry) float64 {
	if len(parsed.TagSignals) == 0 || len(entry.Tags) == 0 {
		return 0.0
	}

	entryTags := make(map[string]struct{}, len(entry.Tags))
	for _, t := range entry.Tags {
		entryTags[strings.ToLower(t)] = struct{}{}
	}

	intersection := 0
	seen := make(map[string]struct{}, len(parsed.TagSignals))
	for _, t := range parsed.TagSignals {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := entryTags[t]; ok {
			intersection++
		}
	}

	union := len(entryTags) + len(seen) - intersection
	if union == 0 {
		return 0.0
	}
	return float64(intersection) / float64(union)
}

// keywordMatch is the fraction of query keywords found, as a substring,
// in the entry's searchable text (title, short title, keywords, related
// fields and links).
func keywordMatch(parsed query.Parsed, entry catalog.Entry) float64 {
	if len(parsed.Keywords) == 0 {
		return 0.0
	}

	haystack := searchableText(entry)
	matched := 0
	for _, kw := range parsed.Keywords {
		if strings.Contains(haystack, kw) {
			matched++
		}
	}
	return float64(matched) / float64(len(parsed.Keywords))
}

func searchableText(entry catalog.Entry) string {
	var sb strings.Builder
	sb.WriteString(entry.Title)
	sb.WriteByte(' ')
	sb.WriteString(entry.ShortTitle)
	for _, s := range entry.Keywords {
		sb.WriteByte(' ')
		sb.WriteString(s)
	}
	for _, s := range entry.RelatedFields {
		sb.WriteByte(' ')
		sb.WriteString(s)
	}
	for _, s := range entry.RelatedLinks {
		sb.WriteByte(' ')
		sb.WriteString(s)
	}
	return strings.ToLower(sb.String())
}
