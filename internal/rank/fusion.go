package rank

import "sort"

// DefaultRRFConstant is the smoothing constant for reciprocal rank fusion.
// Larger values flatten the contribution difference between nearby ranks.
const DefaultRRFConstant = 60

// Fuser merges independently rank-ordered candidate lists with reciprocal
// rank fusion. Fusion is rank-based, not score-based: only each candidate's
// position within its own list matters.
type Fuser struct {
	c int
}

// NewFuser creates a Fuser with the given constant. Values <= 0 fall back
// to DefaultRRFConstant.
func NewFuser(c int) *Fuser {
	if c <= 0 {
		c = DefaultRRFConstant
	}
	return &Fuser{c: c}
}

// Fuse combines the input lists into one ranked list. Each candidate's
// fused score is the sum over lists containing it of 1/(c + rank + 1),
// with rank zero-based. A candidate appearing in several lists accumulates
// a contribution from each; text and metadata are carried from the list
// where it was first observed. Output is sorted by fused score descending,
// ties broken by ID ascending.
func (f *Fuser) Fuse(lists ...[]Candidate) []Candidate {
	fused := make(map[string]Candidate)

	for _, list := range lists {
		for rank, cand := range list {
			contribution := 1.0 / float64(f.c+rank+1)
			if existing, ok := fused[cand.ID]; ok {
				existing.Score += contribution
				fused[cand.ID] = existing
				continue
			}
			first := cand
			first.Score = contribution
			fused[cand.ID] = first
		}
	}

	out := make([]Candidate, 0, len(fused))
	for _, cand := range fused {
		out = append(out, cand)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	return out
}
