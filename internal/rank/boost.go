package rank

import (
	"strings"

	"github.com/quarrylabs/quarry/internal/catalog"
	"github.com/quarrylabs/quarry/internal/query"
	"github.com/quarrylabs/quarry/internal/router"
)

// Boost defaults, applied when a Booster is constructed with zero values.
const (
	DefaultTopicBoost = 0.15
	DefaultTagBoost   = 0.05
	DefaultTopicTopN  = 10

	// maxTagMatches caps the per-candidate tag bonus.
	maxTagMatches = 3
)

// Booster reorders candidates using the router's topic decision and the
// query's tag signals. Boosting only adjusts scores and re-sorts; it never
// filters, so a non-matching candidate passes through with its score
// unchanged.
type Booster struct {
	catalog    *catalog.Catalog
	topicBoost float64
	tagBoost   float64
	topN       int
}

// NewBooster creates a Booster over the given catalog. Non-positive
// values fall back to the defaults. topN bounds how many routed topics
// earn a bonus.
func NewBooster(cat *catalog.Catalog, topicBoost, tagBoost float64, topN int) *Booster {
	if topicBoost <= 0 {
		topicBoost = DefaultTopicBoost
	}
	if tagBoost <= 0 {
		tagBoost = DefaultTagBoost
	}
	if topN <= 0 {
		topN = DefaultTopicTopN
	}
	return &Booster{catalog: cat, topicBoost: topicBoost, tagBoost: tagBoost, topN: topN}
}

// Boost returns a new candidate list with topic and tag bonuses applied,
// sorted by boosted score descending. A decision with no candidates (the
// all route) leaves topic boosting inert; tag boosting still applies.
func (b *Booster) Boost(candidates []Candidate, decision *router.Decision, parsed *query.Parsed) []Candidate {
	if len(candidates) == 0 {
		return nil
	}

	routed := make(map[string]bool)
	if decision != nil {
		for i, rc := range decision.Candidates {
			if i >= b.topN {
				break
			}
			routed[rc.EntryID] = true
		}
	}

	out := make([]Candidate, len(candidates))
	copy(out, candidates)

	for i := range out {
		if routed[out[i].TopicID] {
			overlap := b.textOverlap(out[i].TopicID, parsed)
			bonus := overlap * b.topicBoost
			if bonus > b.topicBoost {
				bonus = b.topicBoost
			}
			out[i].Score += bonus
		}

		if parsed != nil && len(parsed.TagSignals) > 0 {
			matches := 0
			for _, tag := range out[i].Tags {
				// Chunk tags may carry source casing; signals are lowercase.
				if parsed.HasTag(strings.ToLower(tag)) {
					matches++
					if matches == maxTagMatches {
						break
					}
				}
			}
			out[i].Score += float64(matches) * b.tagBoost
		}
	}

	sortByScoreDesc(out)
	return out
}

// textOverlap computes the fraction of query keywords found in the entry's
// title and representative keywords.
func (b *Booster) textOverlap(entryID string, parsed *query.Parsed) float64 {
	if b.catalog == nil || parsed == nil || len(parsed.Keywords) == 0 {
		return 0.0
	}
	entry, ok := b.catalog.Get(entryID)
	if !ok {
		return 0.0
	}

	var sb strings.Builder
	sb.WriteString(strings.ToLower(entry.Title))
	for _, kw := range entry.Keywords {
		sb.WriteByte(' ')
		sb.WriteString(strings.ToLower(kw))
	}
	haystack := sb.String()

	matched := 0
	for _, kw := range parsed.Keywords {
		if strings.Contains(haystack, kw) {
			matched++
		}
	}
	return float64(matched) / float64(len(parsed.Keywords))
}
