package engine

import (
	"testing"
	"time"

	"github.com/mzivlin/timecraft/services/scheduler-api/internal/interval"
)

// monTemplate is a Monday 09:00-12:00 UTC template used across scenarios.
func monTemplate() WeeklyTemplate {
	return WeeklyTemplate{
		Timezone: "UTC",
		Windows:  map[string][]LocalWindow{"Mon": {{Start: "09:00", End: "12:00"}}},
	}
}

// monday 2026-03-02 00:00 UTC.
var monday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func monAt(h, m int) time.Time {
	return monday.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func assertSlots(t *testing.T, got []Candidate, want [][2]time.Time) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("candidate count: got %d (%v), want %d", len(got), got, len(want))
	}
	for i, w := range want {
		if !got[i].Start.Equal(w[0]) || !got[i].End.Equal(w[1]) {
			t.Errorf("candidate %d: got [%s, %s), want [%s, %s)", i,
				got[i].Start.Format(time.RFC3339), got[i].End.Format(time.RFC3339),
				w[0].Format(time.RFC3339), w[1].Format(time.RFC3339))
		}
	}
}

func TestSuggest_NoBusy(t *testing.T) {
	got, err := Suggest(monTemplate(), nil, monday, monday.Add(24*time.Hour), time.Hour, Options{})
	if err != nil {
		t.Fatalf("Suggest failed: %v", err)
	}
	// Default step equals duration: back-to-back hourly slots.
	assertSlots(t, got, [][2]time.Time{
		{monAt(9, 0), monAt(10, 0)},
		{monAt(10, 0), monAt(11, 0)},
		{monAt(11, 0), monAt(12, 0)},
	})
}

func TestSuggest_BusyBlockSplitsWindow(t *testing.T) {
	busy := []interval.Interval{{Start: monAt(10, 0), End: monAt(10, 30)}}
	got, err := Suggest(monTemplate(), busy, monday, monday.Add(24*time.Hour), time.Hour, Options{})
	if err != nil {
		t.Fatalf("Suggest failed: %v", err)
	}
	// Free: [09:00, 10:00) and [10:30, 12:00). The 10:00 slot is gone; the
	// second fragment fits exactly one snapped hour.
	assertSlots(t, got, [][2]time.Time{
		{monAt(9, 0), monAt(10, 0)},
		{monAt(10, 30), monAt(11, 30)},
	})
}

func TestSuggest_NotBeforeFloor(t *testing.T) {
	got, err := Suggest(monTemplate(), nil, monday, monday.Add(24*time.Hour), time.Hour, Options{
		NotBefore: monAt(9, 30),
	})
	if err != nil {
		t.Fatalf("Suggest failed: %v", err)
	}
	// The pre-floor 09:00 candidate is dropped, not truncated; generation
	// restarts from the snapped floor.
	assertSlots(t, got, [][2]time.Time{
		{monAt(9, 30), monAt(10, 30)},
		{monAt(10, 30), monAt(11, 30)},
	})
}

func TestSuggest_ConflictCheckScenario(t *testing.T) {
	busy := []interval.Interval{{Start: monAt(14, 0), End: monAt(15, 0)}}

	res, err := CheckConflict(interval.Interval{Start: monAt(14, 30), End: monAt(14, 45)}, busy)
	if err != nil {
		t.Fatalf("CheckConflict failed: %v", err)
	}
	if res.Free {
		t.Fatal("expected conflict for contained query")
	}
	if res.Conflict == nil || !res.Conflict.Start.Equal(monAt(14, 0)) || !res.Conflict.End.Equal(monAt(15, 0)) {
		t.Fatalf("unexpected conflict interval: %+v", res.Conflict)
	}

	res, err = CheckConflict(interval.Interval{Start: monAt(15, 0), End: monAt(15, 30)}, busy)
	if err != nil {
		t.Fatalf("CheckConflict failed: %v", err)
	}
	if !res.Free {
		t.Fatal("touching query must be free (half-open boundary)")
	}
	if res.Conflict != nil {
		t.Fatalf("free result carries a conflict: %+v", res.Conflict)
	}
}

func TestCheckConflict_ReportsStoredEventNotMergedSpan(t *testing.T) {
	// Two stored events overlap each other; the diagnostic must be one of
	// them as stored, never the merged 13:30-15:00 span.
	busy := []interval.Interval{
		{Start: monAt(13, 30), End: monAt(14, 30)},
		{Start: monAt(14, 0), End: monAt(15, 0)},
	}

	res, err := CheckConflict(interval.Interval{Start: monAt(14, 40), End: monAt(14, 50)}, busy)
	if err != nil {
		t.Fatalf("CheckConflict failed: %v", err)
	}
	if res.Free || res.Conflict == nil {
		t.Fatalf("expected a conflict, got %+v", res)
	}
	if !res.Conflict.Start.Equal(monAt(14, 0)) || !res.Conflict.End.Equal(monAt(15, 0)) {
		t.Fatalf("conflict = [%s, %s), want the stored 14:00-15:00 event",
			res.Conflict.Start.Format(time.RFC3339), res.Conflict.End.Format(time.RFC3339))
	}

	// Query overlapping both events: the earliest-starting one wins.
	res, err = CheckConflict(interval.Interval{Start: monAt(14, 10), End: monAt(14, 20)}, busy)
	if err != nil {
		t.Fatalf("CheckConflict failed: %v", err)
	}
	if res.Conflict == nil || !res.Conflict.Start.Equal(monAt(13, 30)) || !res.Conflict.End.Equal(monAt(14, 30)) {
		t.Fatalf("unexpected conflict: %+v", res.Conflict)
	}
}

func TestCandidates_SnapRoundsUpIntoInterval(t *testing.T) {
	free, _ := interval.Normalize([]interval.Interval{
		{Start: monAt(9, 7), End: monAt(11, 0)},
	})
	got, err := Candidates(free, time.Hour, Options{Snap: 15 * time.Minute})
	if err != nil {
		t.Fatalf("Candidates failed: %v", err)
	}
	// 09:07 rounds up to 09:15; rounding down would claim busy time.
	assertSlots(t, got, [][2]time.Time{
		{monAt(9, 15), monAt(10, 15)},
	})
}

func TestCandidates_SkipsUndersizedIntervals(t *testing.T) {
	free, _ := interval.Normalize([]interval.Interval{
		{Start: monAt(9, 0), End: monAt(9, 45)},
		{Start: monAt(13, 0), End: monAt(14, 0)},
	})
	got, err := Candidates(free, time.Hour, Options{})
	if err != nil {
		t.Fatalf("Candidates failed: %v", err)
	}
	assertSlots(t, got, [][2]time.Time{
		{monAt(13, 0), monAt(14, 0)},
	})
}

func TestCandidates_DenserStep(t *testing.T) {
	free, _ := interval.Normalize([]interval.Interval{
		{Start: monAt(9, 0), End: monAt(10, 30)},
	})
	got, err := Candidates(free, time.Hour, Options{Step: 15 * time.Minute})
	if err != nil {
		t.Fatalf("Candidates failed: %v", err)
	}
	assertSlots(t, got, [][2]time.Time{
		{monAt(9, 0), monAt(10, 0)},
		{monAt(9, 15), monAt(10, 15)},
		{monAt(9, 30), monAt(10, 30)},
	})
}

func TestCandidates_ValidityInvariants(t *testing.T) {
	free, _ := interval.Normalize([]interval.Interval{
		{Start: monAt(8, 40), End: monAt(12, 5)},
		{Start: monAt(14, 0), End: monAt(14, 20)},
		{Start: monAt(16, 3), End: monAt(19, 0)},
	})
	duration := 45 * time.Minute
	notBefore := monAt(9, 10)
	opts := Options{Snap: 15 * time.Minute, Step: 30 * time.Minute, NotBefore: notBefore}

	got, err := Candidates(free, duration, opts)
	if err != nil {
		t.Fatalf("Candidates failed: %v", err)
	}
	if len(got) == 0 {
		t.Fatal("expected candidates")
	}
	prev := time.Time{}
	for _, c := range got {
		if c.End.Sub(c.Start) != duration {
			t.Errorf("candidate %v has wrong length %v", c.Start, c.End.Sub(c.Start))
		}
		if c.Start.Before(notBefore) {
			t.Errorf("candidate %v starts before the floor", c.Start)
		}
		if c.Start.Unix()%(15*60) != 0 {
			t.Errorf("candidate %v is off the snap grid", c.Start)
		}
		if !c.Host.Contains(interval.Interval{Start: c.Start, End: c.End}) {
			t.Errorf("candidate %v escapes its host %v", c.Start, c.Host)
		}
		if c.Start.Before(prev) {
			t.Errorf("candidates out of order at %v", c.Start)
		}
		prev = c.Start
	}
}

func TestSuggest_ResultCap(t *testing.T) {
	tpl := WeeklyTemplate{
		Timezone: "UTC",
		Windows:  map[string][]LocalWindow{"Mon": {{Start: "00:00", End: "24:00"}}},
	}
	got, err := Suggest(tpl, nil, monday, monday.Add(24*time.Hour), 30*time.Minute, Options{})
	if err != nil {
		t.Fatalf("Suggest failed: %v", err)
	}
	if len(got) != DefaultResultCap {
		t.Fatalf("expected cap of %d, got %d", DefaultResultCap, len(got))
	}
	got, err = Suggest(tpl, nil, monday, monday.Add(24*time.Hour), 30*time.Minute, Options{ResultCap: 3})
	if err != nil {
		t.Fatalf("Suggest failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected cap of 3, got %d", len(got))
	}
}

func TestSuggest_EmptyIsNotAnError(t *testing.T) {
	busy := []interval.Interval{{Start: monAt(9, 0), End: monAt(12, 0)}}
	got, err := Suggest(monTemplate(), busy, monday, monday.Add(24*time.Hour), time.Hour, Options{})
	if err != nil {
		t.Fatalf("Suggest failed: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no candidates, got %v", got)
	}
}

func TestSuggest_Deterministic(t *testing.T) {
	busy := []interval.Interval{
		{Start: monAt(10, 0), End: monAt(10, 30)},
		{Start: monAt(11, 15), End: monAt(11, 20)},
	}
	run := func() []Candidate {
		got, err := Suggest(monTemplate(), busy, monday, monday.Add(24*time.Hour), 30*time.Minute, Options{
			Step: 15 * time.Minute,
		})
		if err != nil {
			t.Fatalf("Suggest failed: %v", err)
		}
		return got
	}

	first := run()
	for i := 0; i < 5; i++ {
		again := run()
		if len(again) != len(first) {
			t.Fatalf("run %d: length %d vs %d", i, len(again), len(first))
		}
		for j := range first {
			if !again[j].Start.Equal(first[j].Start) || !again[j].End.Equal(first[j].End) || again[j].Score != first[j].Score {
				t.Fatalf("run %d: candidate %d differs: %+v vs %+v", i, j, again[j], first[j])
			}
		}
	}
}

func TestSuggest_ValidationFailures(t *testing.T) {
	from, to := monday, monday.Add(24*time.Hour)

	if _, err := Suggest(monTemplate(), nil, to, from, time.Hour, Options{}); err == nil {
		t.Fatal("expected error for inverted range")
	}
	if _, err := Suggest(monTemplate(), nil, from, to, 0, Options{}); err == nil {
		t.Fatal("expected error for zero duration")
	}
	badBusy := []interval.Interval{{Start: monAt(11, 0), End: monAt(10, 0)}}
	if _, err := Suggest(monTemplate(), badBusy, from, to, time.Hour, Options{}); err == nil {
		t.Fatal("expected error for malformed busy interval")
	}
	noTZ := monTemplate()
	noTZ.Timezone = ""
	if _, err := Suggest(noTZ, nil, from, to, time.Hour, Options{}); err == nil {
		t.Fatal("expected error for missing timezone")
	}
}

func TestEarliestFirst_OrdersByStart(t *testing.T) {
	host := interval.Interval{Start: monAt(9, 0), End: monAt(18, 0)}
	cands := []Candidate{
		{Start: monAt(15, 0), End: monAt(16, 0), Host: host},
		{Start: monAt(9, 0), End: monAt(10, 0), Host: host},
		{Start: monAt(12, 0), End: monAt(13, 0), Host: host},
	}
	ranked := EarliestFirst{}.Rank(cands, monAt(9, 0))
	if !ranked[0].Start.Equal(monAt(9, 0)) || !ranked[1].Start.Equal(monAt(12, 0)) || !ranked[2].Start.Equal(monAt(15, 0)) {
		t.Fatalf("unexpected order: %v", ranked)
	}
	for i := 1; i < len(ranked); i++ {
		if ranked[i].Score >= ranked[i-1].Score {
			t.Fatalf("scores not strictly decreasing: %v", ranked)
		}
	}
	// Input slice must not be reordered in place.
	if !cands[0].Start.Equal(monAt(15, 0)) {
		t.Fatal("Rank mutated its input")
	}
}

func TestFragmentationAware_PenalizesSlivers(t *testing.T) {
	host := interval.Interval{Start: monAt(9, 0), End: monAt(10, 10)}
	snug := Candidate{Start: monAt(9, 0), End: monAt(10, 0), Host: host}     // leaves a 10m sliver
	clean := Candidate{Start: monAt(9, 0), End: monAt(10, 10), Host: host}   // flush fit
	ranked := FragmentationAware{}.Rank([]Candidate{snug, clean}, monAt(9, 0))

	var snugScore, cleanScore float64
	for _, c := range ranked {
		if c.End.Equal(monAt(10, 0)) {
			snugScore = c.Score
		} else {
			cleanScore = c.Score
		}
	}
	if snugScore >= cleanScore {
		t.Fatalf("sliver-producing candidate not penalized: %f >= %f", snugScore, cleanScore)
	}
}

func TestFreeIntervals_SubtractsNormalizedBusy(t *testing.T) {
	avail, _ := interval.Normalize([]interval.Interval{{Start: monAt(9, 0), End: monAt(17, 0)}})
	busy := []interval.Interval{
		{Start: monAt(13, 0), End: monAt(14, 0)},
		{Start: monAt(10, 0), End: monAt(11, 0)},
		{Start: monAt(10, 30), End: monAt(11, 30)}, // overlaps previous
	}
	free, err := FreeIntervals(avail, busy)
	if err != nil {
		t.Fatalf("FreeIntervals failed: %v", err)
	}
	assertIntervals(t, free.Intervals(), []interval.Interval{
		{Start: monAt(9, 0), End: monAt(10, 0)},
		{Start: monAt(11, 30), End: monAt(13, 0)},
		{Start: monAt(14, 0), End: monAt(17, 0)},
	})
}
