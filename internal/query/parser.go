// Package query normalizes raw query text into the signals the router and
// booster consume: keywords, tag signals from a fixed vocabulary, and coarse
// intent labels. Parsing is a pure, total function: any input (including the
// empty string) yields a valid Parsed value.
package query

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Parsed holds the extracted signals for a single query.
// Created once per query and never mutated afterwards.
type Parsed struct {
	// Text is the normalized query: lowercased, diacritics stripped,
	// non-alphanumeric runs collapsed to single spaces.
	Text string

	// TagSignals are tags from the fixed vocabulary whose trigger terms
	// appear in the normalized text. Sorted, deduplicated.
	TagSignals []string

	// Keywords are tokens longer than three characters that are not
	// stop words. Order follows the query; duplicates removed.
	Keywords []string

	// Intents are coarse intent labels in a fixed evaluation order.
	Intents []string
}

// HasTag reports whether tag is among the parsed tag signals.
func (p Parsed) HasTag(tag string) bool {
	for _, t := range p.TagSignals {
		if t == tag {
			return true
		}
	}
	return false
}

// stopWords are excluded from keyword extraction.
var stopWords = map[string]struct{}{
	"what": {}, "when": {}, "where": {}, "why": {}, "how": {},
	"this": {}, "that": {}, "with": {}, "from": {}, "they": {},
	"have": {}, "been": {}, "were": {}, "will": {}, "your": {},
}

// tagVocabulary maps each tag to the terms that trigger it. The table is
// static data; matching is by substring against the normalized text, so
// "load" also triggers inside "overloaded".
var tagVocabulary = []struct {
	tag   string
	terms []string
}{
	{"stewardship", []string{"burnout", "burden", "weight", "heavy", "carrying", "load"}},
	{"wholeness", []string{"integrity", "whole", "complete", "aligned"}},
	{"pace", []string{"rushing", "haste", "urgency", "pace", "rhythm", "fast"}},
	{"trust", []string{"trust", "confidence", "reliability", "dependable"}},
	{"presence", []string{"present", "mindful", "aware", "conscious", "grounded"}},
	{"clarity", []string{"clarity", "clear", "clearly", "illuminate", "bright", "vision"}},
	{"light", []string{"light", "brightness", "illumination"}},
	{"structure", []string{"structure", "framework", "system", "process", "method"}},
}

// intentRules map intent labels to trigger terms, in evaluation order.
var intentRules = []struct {
	intent string
	terms  []string
}{
	{"support", []string{"help", "support", "guidance", "advice"}},
	{"information", []string{"how", "what", "when", "where"}},
	{"problem_solving", []string{"problem", "issue", "struggle", "difficult"}},
	{"topic_selection", []string{"process", "method", "approach", "practice"}},
}

// diacriticStripper removes combining marks after NFD decomposition.
var diacriticStripper = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// Parse extracts retrieval signals from raw query text.
func Parse(raw string) Parsed {
	text := Normalize(raw)
	if text == "" {
		return Parsed{}
	}

	tokens := strings.Fields(text)

	return Parsed{
		Text:       text,
		TagSignals: extractTagSignals(text),
		Keywords:   extractKeywords(tokens),
		Intents:    extractIntents(tokens),
	}
}

// Normalize lowercases, strips diacritics, and collapses every run of
// non-alphanumeric characters to a single space.
func Normalize(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	if lowered == "" {
		return ""
	}

	stripped, _, err := transform.String(diacriticStripper, lowered)
	if err != nil {
		// Transform failure leaves diacritics in place; normalization
		// must not fail the parse.
		stripped = lowered
	}

	var b strings.Builder
	b.Grow(len(stripped))
	inGap := false
	for _, r := range stripped {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if inGap && b.Len() > 0 {
				b.WriteByte(' ')
			}
			inGap = false
			b.WriteRune(r)
		} else {
			inGap = true
		}
	}
	return b.String()
}

func extractKeywords(tokens []string) []string {
	var keywords []string
	seen := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		if len(tok) <= 3 {
			continue
		}
		if _, stop := stopWords[tok]; stop {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		keywords = append(keywords, tok)
	}
	return keywords
}

func extractTagSignals(text string) []string {
	var tags []string
	for _, entry := range tagVocabulary {
		for _, term := range entry.terms {
			if strings.Contains(text, term) {
				tags = append(tags, entry.tag)
				break
			}
		}
	}
	return tags
}

func extractIntents(tokens []string) []string {
	tokenSet := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		tokenSet[tok] = struct{}{}
	}

	var intents []string
	for _, rule := range intentRules {
		for _, term := range rule.terms {
			if _, ok := tokenSet[term]; ok {
				intents = append(intents, rule.intent)
				break
			}
		}
	}
	return intents
}
