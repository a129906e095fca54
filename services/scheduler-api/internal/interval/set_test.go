package interval

import (
	"testing"
	"time"
)

var day = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC) // a Monday

func at(h, m int) time.Time {
	return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func iv(t *testing.T, startH, startM, endH, endM int) Interval {
	t.Helper()
	out, err := New(at(startH, startM), at(endH, endM))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return out
}

func TestNew_RejectsInverted(t *testing.T) {
	if _, err := New(at(10, 0), at(9, 0)); err == nil {
		t.Fatal("expected error for start after end")
	}
	if _, err := New(at(10, 0), at(10, 0)); err == nil {
		t.Fatal("expected error for zero-length interval")
	}
}

func TestNormalize_MergesOverlappingAndTouching(t *testing.T) {
	raw := []Interval{
		iv(t, 13, 0, 14, 0),
		iv(t, 9, 0, 10, 0),
		iv(t, 10, 0, 11, 0), // touches the 9-10 interval
		iv(t, 9, 30, 9, 45), // nested
	}
	set, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	got := set.Intervals()
	if len(got) != 2 {
		t.Fatalf("expected 2 merged intervals, got %d: %v", len(got), got)
	}
	if !got[0].Equal(iv(t, 9, 0, 11, 0)) {
		t.Errorf("first interval: got %v", got[0])
	}
	if !got[1].Equal(iv(t, 13, 0, 14, 0)) {
		t.Errorf("second interval: got %v", got[1])
	}
}

func TestNormalize_RejectsMalformedMember(t *testing.T) {
	raw := []Interval{
		iv(t, 9, 0, 10, 0),
		{Start: at(12, 0), End: at(11, 0)},
	}
	if _, err := Normalize(raw); err == nil {
		t.Fatal("expected validation error for malformed member")
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	raw := []Interval{
		iv(t, 8, 0, 9, 30),
		iv(t, 9, 0, 10, 0),
		iv(t, 15, 0, 16, 0),
	}
	once, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	twice, err := Normalize(once.Intervals())
	if err != nil {
		t.Fatalf("second Normalize failed: %v", err)
	}
	if !once.Equal(twice) {
		t.Fatalf("normalize is not idempotent: %v vs %v", once.Intervals(), twice.Intervals())
	}
}

func TestSubtract_EmptyIsIdentity(t *testing.T) {
	a, err := Normalize([]Interval{iv(t, 9, 0, 12, 0), iv(t, 14, 0, 15, 0)})
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	got := a.Subtract(Set{})
	if !got.Equal(a) {
		t.Fatalf("A - empty != A: %v", got.Intervals())
	}
}

func TestSubtract_SplitsAroundBlock(t *testing.T) {
	avail, _ := Normalize([]Interval{iv(t, 9, 0, 12, 0)})
	busy, _ := Normalize([]Interval{iv(t, 10, 0, 10, 30)})

	free := avail.Subtract(busy)
	got := free.Intervals()
	if len(got) != 2 {
		t.Fatalf("expected 2 fragments, got %d: %v", len(got), got)
	}
	if !got[0].Equal(iv(t, 9, 0, 10, 0)) || !got[1].Equal(iv(t, 10, 30, 12, 0)) {
		t.Fatalf("unexpected fragments: %v", got)
	}
}

func TestSubtract_BlockSpansFragments(t *testing.T) {
	avail, _ := Normalize([]Interval{iv(t, 9, 0, 10, 0), iv(t, 10, 30, 12, 0)})
	busy, _ := Normalize([]Interval{iv(t, 9, 30, 11, 0)})

	free := avail.Subtract(busy)
	got := free.Intervals()
	if len(got) != 2 {
		t.Fatalf("expected 2 fragments, got %d: %v", len(got), got)
	}
	if !got[0].Equal(iv(t, 9, 0, 9, 30)) || !got[1].Equal(iv(t, 11, 0, 12, 0)) {
		t.Fatalf("unexpected fragments: %v", got)
	}
}

func TestSubtract_Exhaustive(t *testing.T) {
	a, _ := Normalize([]Interval{iv(t, 8, 0, 12, 0), iv(t, 13, 0, 18, 0)})
	b, _ := Normalize([]Interval{iv(t, 7, 0, 8, 30), iv(t, 9, 0, 9, 15), iv(t, 11, 0, 14, 0), iv(t, 17, 0, 19, 0)})

	diff := a.Subtract(b)

	// No point of the result is covered by b.
	for _, f := range diff.Intervals() {
		if _, hit := b.Overlapping(f); hit {
			t.Fatalf("fragment %v overlaps subtrahend", f)
		}
		if _, inA := a.Overlapping(f); !inA {
			t.Fatalf("fragment %v escaped the minuend", f)
		}
	}

	// diff ∪ (a ∩ b) recovers a exactly.
	clippedB := Set{}
	for _, f := range a.Intervals() {
		clippedB = clippedB.Union(b.ClipToRange(f.Start, f.End))
	}
	if !diff.Union(clippedB).Equal(a) {
		t.Fatalf("subtract + intersection does not recover original: %v", diff.Union(clippedB).Intervals())
	}
}

func TestSetOperations_NeverProduceOverlapOrTouch(t *testing.T) {
	a, _ := Normalize([]Interval{iv(t, 8, 0, 10, 0), iv(t, 10, 0, 12, 0), iv(t, 11, 0, 13, 0)})
	b, _ := Normalize([]Interval{iv(t, 9, 0, 9, 30), iv(t, 12, 30, 12, 45)})

	for name, set := range map[string]Set{
		"normalize": a,
		"union":     a.Union(b),
		"subtract":  a.Subtract(b),
		"clip":      a.ClipToRange(at(8, 30), at(12, 0)),
	} {
		members := set.Intervals()
		for i := 1; i < len(members); i++ {
			if !members[i].Start.After(members[i-1].End) {
				t.Errorf("%s: members %v and %v overlap or touch", name, members[i-1], members[i])
			}
		}
	}
}

func TestClipToRange_DropsOutside(t *testing.T) {
	set, _ := Normalize([]Interval{iv(t, 6, 0, 7, 0), iv(t, 9, 0, 12, 0), iv(t, 20, 0, 22, 0)})
	clipped := set.ClipToRange(at(8, 0), at(10, 0))
	got := clipped.Intervals()
	if len(got) != 1 {
		t.Fatalf("expected 1 interval, got %d: %v", len(got), got)
	}
	if !got[0].Equal(iv(t, 9, 0, 10, 0)) {
		t.Fatalf("unexpected clip result: %v", got[0])
	}
}

func TestOverlapping_HalfOpenBoundary(t *testing.T) {
	busy, _ := Normalize([]Interval{iv(t, 14, 0, 15, 0)})

	if _, hit := busy.Overlapping(iv(t, 14, 30, 14, 45)); !hit {
		t.Fatal("expected overlap for contained query")
	}
	// Touching at 15:00 is not overlapping.
	if got, hit := busy.Overlapping(iv(t, 15, 0, 15, 30)); hit {
		t.Fatalf("touching query reported overlap with %v", got)
	}
	if _, hit := busy.Overlapping(iv(t, 13, 0, 14, 0)); hit {
		t.Fatal("touching query before the block reported overlap")
	}
}

func TestSubtract_DoesNotAliasInput(t *testing.T) {
	a, _ := Normalize([]Interval{iv(t, 9, 0, 12, 0)})
	before := a.Intervals()

	diff := a.Subtract(Set{})
	got := diff.Intervals()
	got[0].Start = at(0, 0) // mutate the copy

	after := a.Intervals()
	if !after[0].Equal(before[0]) {
		t.Fatal("subtract result aliases input storage")
	}
}
