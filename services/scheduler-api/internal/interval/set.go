package interval

import (
	"fmt"
	"sort"
	"time"
)

// Set is an ordered collection of non-overlapping, non-touching intervals.
// The zero value is the empty set.
type Set struct {
	ivs []Interval
}

// Normalize builds a Set from a raw, possibly unordered and overlapping
// collection. Overlapping or exactly touching intervals are merged. A
// malformed member (start >= end) rejects the whole input; a bad interval
// almost always means an upstream data bug, so callers surface it as a
// validation error rather than silently dropping it.
func Normalize(raw []Interval) (Set, error) {
	if len(raw) == 0 {
		return Set{}, nil
	}

	sorted := make([]Interval, 0, len(raw))
	for _, iv := range raw {
		if !iv.End.After(iv.Start) {
			return Set{}, fmt.Errorf("malformed interval: start %s must precede end %s",
				iv.Start.UTC().Format(time.RFC3339), iv.End.UTC().Format(time.RFC3339))
		}
		sorted = append(sorted, Interval{Start: iv.Start.UTC(), End: iv.End.UTC()})
	}
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].Start.Equal(sorted[j].Start) {
			return sorted[i].Start.Before(sorted[j].Start)
		}
		return sorted[i].End.Before(sorted[j].End)
	})

	merged := sorted[:1]
	for _, iv := range sorted[1:] {
		last := &merged[len(merged)-1]
		if !iv.Start.After(last.End) {
			// Overlapping or touching: extend the running interval.
			if iv.End.After(last.End) {
				last.End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}

	out := make([]Interval, len(merged))
	copy(out, merged)
	return Set{ivs: out}, nil
}

// FromInterval wraps a single already-validated interval in a Set.
func FromInterval(iv Interval) Set {
	return Set{ivs: []Interval{iv}}
}

// Intervals returns a copy of the members in ascending start order.
func (s Set) Intervals() []Interval {
	out := make([]Interval, len(s.ivs))
	copy(out, s.ivs)
	return out
}

func (s Set) Len() int { return len(s.ivs) }

func (s Set) IsEmpty() bool { return len(s.ivs) == 0 }

// Union merges two sets into one normalized set.
func (s Set) Union(other Set) Set {
	raw := make([]Interval, 0, len(s.ivs)+len(other.ivs))
	raw = append(raw, s.ivs...)
	raw = append(raw, other.ivs...)
	// Members of a Set are valid by construction, so Normalize cannot fail.
	merged, err := Normalize(raw)
	if err != nil {
		panic("interval: union of valid sets failed: " + err.Error())
	}
	return merged
}

// Subtract returns the fragments of s not covered by other. Both sets are
// already sorted and merged, so a single forward sweep with two cursors
// visits every interval once.
func (s Set) Subtract(other Set) Set {
	if s.IsEmpty() || other.IsEmpty() {
		return Set{ivs: s.Intervals()}
	}

	var out []Interval
	j := 0
	for _, f := range s.ivs {
		cursor := f.Start
		// Skip blocks that end at or before the current fragment start.
		for j < len(other.ivs) && !other.ivs[j].End.After(cursor) {
			j++
		}
		for k := j; k < len(other.ivs) && other.ivs[k].Start.Before(f.End); k++ {
			b := other.ivs[k]
			if b.Start.After(cursor) {
				out = append(out, Interval{Start: cursor, End: b.Start})
			}
			if b.End.After(cursor) {
				cursor = b.End
			}
			if !cursor.Before(f.End) {
				break
			}
		}
		if cursor.Before(f.End) {
			out = append(out, Interval{Start: cursor, End: f.End})
		}
	}
	return Set{ivs: out}
}

// ClipToRange intersects every member with [from, to), dropping members that
// fall entirely outside.
func (s Set) ClipToRange(from, to time.Time) Set {
	from, to = from.UTC(), to.UTC()
	var out []Interval
	for _, iv := range s.ivs {
		start, end := iv.Start, iv.End
		if start.Before(from) {
			start = from
		}
		if end.After(to) {
			end = to
		}
		if end.After(start) {
			out = append(out, Interval{Start: start, End: end})
		}
	}
	return Set{ivs: out}
}

// Overlapping returns the first member overlapping q, if any.
func (s Set) Overlapping(q Interval) (Interval, bool) {
	// First member ending after q.Start is the only candidate that can
	// overlap earliest; members are sorted and disjoint.
	i := sort.Search(len(s.ivs), func(i int) bool {
		return s.ivs[i].End.After(q.Start)
	})
	if i < len(s.ivs) && s.ivs[i].Overlaps(q) {
		return s.ivs[i], true
	}
	return Interval{}, false
}

// Equal reports whether both sets contain identical members.
func (s Set) Equal(other Set) bool {
	if len(s.ivs) != len(other.ivs) {
		return false
	}
	for i := range s.ivs {
		if !s.ivs[i].Equal(other.ivs[i]) {
			return false
		}
	}
	return true
}
