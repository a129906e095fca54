package engine

import (
	"sort"
	"time"
)

// Ranker orders candidates. Implementations must be deterministic: same
// candidates and reference time, same output order. Truncation to the
// result cap happens after ranking, in Suggest.
type Ranker interface {
	Rank(candidates []Candidate, ref time.Time) []Candidate
}

// scoreDecayWindow flattens the earliest-first decay: a candidate a full
// window after ref scores one point lower.
const scoreDecayWindow = 30 * 24 * time.Hour

// tinyGap is the fragmentation threshold: a leftover sliver shorter than
// this on either side of the candidate is considered wasted time.
const tinyGap = 15 * time.Minute

// EarliestFirst is the default ranking policy: sooner is better, full stop.
type EarliestFirst struct{}

func (EarliestFirst) Rank(candidates []Candidate, ref time.Time) []Candidate {
	out := make([]Candidate, len(candidates))
	copy(out, candidates)
	for i := range out {
		out[i].Score = 1.0 - out[i].Start.Sub(ref).Seconds()/scoreDecayWindow.Seconds()
	}
	sortCandidates(out)
	return out
}

// FragmentationAware keeps the earliest-first decay but penalizes
// candidates that leave an unusable sliver (< tinyGap) against either edge
// of their host free interval.
type FragmentationAware struct{}

func (FragmentationAware) Rank(candidates []Candidate, ref time.Time) []Candidate {
	out := make([]Candidate, len(candidates))
	copy(out, candidates)
	for i := range out {
		c := &out[i]
		c.Score = 1.0 - c.Start.Sub(ref).Seconds()/scoreDecayWindow.Seconds()
		if left := c.Start.Sub(c.Host.Start); left > 0 && left < tinyGap {
			c.Score -= 0.05
		}
		if right := c.Host.End.Sub(c.End); right > 0 && right < tinyGap {
			c.Score -= 0.05
		}
	}
	sortCandidates(out)
	return out
}

// sortCandidates orders by score descending with deterministic tie-breaks:
// earlier start, then longer host free interval, then stable input order.
func sortCandidates(out []Candidate) {
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].Host.Duration() > out[j].Host.Duration()
	})
}
