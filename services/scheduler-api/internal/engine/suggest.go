package engine

import (
	"time"

	"github.com/mzivlin/timecraft/services/scheduler-api/internal/interval"
)

const (
	DefaultSnap      = 15 * time.Minute
	DefaultResultCap = 12
)

// Candidate is a proposed slot of exactly the requested duration, entirely
// inside one free interval (its Host).
type Candidate struct {
	Start time.Time
	End   time.Time
	Score float64
	Host  interval.Interval
}

// Options tunes candidate generation and ranking. Zero values select the
// documented defaults: step equal to the requested duration (adjacent,
// non-overlapping candidates), 15-minute snap, no floor, cap of 12.
type Options struct {
	Step      time.Duration
	Snap      time.Duration
	NotBefore time.Time
	ResultCap int
	Ranker    Ranker
}

func (o Options) withDefaults(duration time.Duration) Options {
	if o.Step <= 0 {
		o.Step = duration
	}
	if o.Snap <= 0 {
		o.Snap = DefaultSnap
	}
	if o.ResultCap <= 0 {
		o.ResultCap = DefaultResultCap
	}
	if o.Ranker == nil {
		o.Ranker = EarliestFirst{}
	}
	return o
}

// FreeIntervals subtracts the (normalized) busy collection from resolved
// availability. The heavy lifting is interval.Set.Subtract; this exists so
// callers hand over raw busy events and get back a canonical free set.
func FreeIntervals(avail interval.Set, busy []interval.Interval) (interval.Set, error) {
	busySet, err := interval.Normalize(busy)
	if err != nil {
		return interval.Set{}, validationf("busy intervals: %v", err)
	}
	return avail.Subtract(busySet), nil
}

// Candidates walks the free set and emits fixed-length slots.
//
// Per free interval the effective start is max(start, notBefore) rounded up
// to the snap grid; rounding up can never push a candidate into busy time
// before the interval. Emission advances by step until the slot no longer
// fits; intervals too short after flooring yield nothing rather than an
// undersized slot. Free intervals are sorted, so the output is ordered by
// start without a final sort.
func Candidates(free interval.Set, duration time.Duration, opts Options) ([]Candidate, error) {
	if duration <= 0 {
		return nil, validationf("duration must be positive")
	}
	opts = opts.withDefaults(duration)

	var out []Candidate
	for _, f := range free.Intervals() {
		start := f.Start
		if opts.NotBefore.After(start) {
			start = opts.NotBefore.UTC()
		}
		start = snapUp(start, opts.Snap)
		for !start.Add(duration).After(f.End) {
			out = append(out, Candidate{
				Start: start,
				End:   start.Add(duration),
				Host:  f,
			})
			start = start.Add(opts.Step)
		}
	}
	return out, nil
}

// snapUp rounds t up to the next multiple of grid (measured from the epoch).
func snapUp(t time.Time, grid time.Duration) time.Time {
	floored := t.Truncate(grid)
	if floored.Before(t) {
		return floored.Add(grid)
	}
	return floored
}

// Suggest runs the whole pipeline: resolve the weekly template over
// [from, to), subtract busy, generate candidates, rank and truncate.
func Suggest(t WeeklyTemplate, busy []interval.Interval, from, to time.Time, duration time.Duration, opts Options) ([]Candidate, error) {
	if duration <= 0 {
		return nil, validationf("duration must be positive")
	}
	opts = opts.withDefaults(duration)

	avail, err := ResolveAvailability(t, from, to)
	if err != nil {
		return nil, err
	}
	free, err := FreeIntervals(avail, busy)
	if err != nil {
		return nil, err
	}
	candidates, err := Candidates(free, duration, opts)
	if err != nil {
		return nil, err
	}

	// Scores decay from a fixed reference so identical inputs rank
	// identically; the engine never consults a clock.
	ref := opts.NotBefore
	if ref.IsZero() {
		ref = from
	}
	ranked := opts.Ranker.Rank(candidates, ref)
	if len(ranked) > opts.ResultCap {
		ranked = ranked[:opts.ResultCap]
	}
	return ranked, nil
}

// ConflictResult is the outcome of a point availability check.
type ConflictResult struct {
	Free     bool
	Conflict *interval.Interval
}

// CheckConflict reports whether the query interval overlaps any busy
// interval. The diagnostic is the earliest-starting busy interval as
// given, not a merged span, so it points at one concrete event even when
// stored events overlap each other. Half-open semantics: a query that
// merely touches a busy interval is free.
func CheckConflict(query interval.Interval, busy []interval.Interval) (ConflictResult, error) {
	if !query.End.After(query.Start) {
		return ConflictResult{}, validationf("query start must precede end")
	}
	// Normalize validates the members; the merged set itself is not used.
	if _, err := interval.Normalize(busy); err != nil {
		return ConflictResult{}, validationf("busy intervals: %v", err)
	}

	var hit *interval.Interval
	for _, b := range busy {
		if !b.Overlaps(query) {
			continue
		}
		if hit == nil || b.Start.Before(hit.Start) || (b.Start.Equal(hit.Start) && b.End.Before(hit.End)) {
			found := interval.Interval{Start: b.Start.UTC(), End: b.End.UTC()}
			hit = &found
		}
	}
	if hit != nil {
		return ConflictResult{Free: false, Conflict: hit}, nil
	}
	return ConflictResult{Free: true}, nil
}
