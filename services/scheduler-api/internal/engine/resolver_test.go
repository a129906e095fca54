package engine

import (
	"testing"
	"time"

	"github.com/mzivlin/timecraft/services/scheduler-api/internal/interval"
)

func utc(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

func TestResolveAvailability_SingleDay(t *testing.T) {
	tpl := WeeklyTemplate{
		Timezone: "UTC",
		Windows: map[string][]LocalWindow{
			"Mon": {{Start: "09:00", End: "12:00"}},
		},
	}
	// 2026-03-02 is a Monday.
	got, err := ResolveAvailability(tpl, utc(2026, 3, 2, 0, 0), utc(2026, 3, 3, 0, 0))
	if err != nil {
		t.Fatalf("ResolveAvailability failed: %v", err)
	}
	want := []interval.Interval{{Start: utc(2026, 3, 2, 9, 0), End: utc(2026, 3, 2, 12, 0)}}
	assertIntervals(t, got.Intervals(), want)
}

func TestResolveAvailability_EmptyDayYieldsNothing(t *testing.T) {
	tpl := WeeklyTemplate{
		Timezone: "UTC",
		Windows:  map[string][]LocalWindow{"Tue": {{Start: "09:00", End: "10:00"}}},
	}
	got, err := ResolveAvailability(tpl, utc(2026, 3, 2, 0, 0), utc(2026, 3, 3, 0, 0)) // Monday only
	if err != nil {
		t.Fatalf("ResolveAvailability failed: %v", err)
	}
	if !got.IsEmpty() {
		t.Fatalf("expected empty availability, got %v", got.Intervals())
	}
}

func TestResolveAvailability_MergesAcrossMidnight(t *testing.T) {
	tpl := WeeklyTemplate{
		Timezone: "UTC",
		Windows: map[string][]LocalWindow{
			"Mon": {{Start: "22:00", End: "24:00"}},
			"Tue": {{Start: "00:00", End: "02:00"}},
		},
	}
	got, err := ResolveAvailability(tpl, utc(2026, 3, 2, 0, 0), utc(2026, 3, 4, 0, 0))
	if err != nil {
		t.Fatalf("ResolveAvailability failed: %v", err)
	}
	want := []interval.Interval{{Start: utc(2026, 3, 2, 22, 0), End: utc(2026, 3, 3, 2, 0)}}
	assertIntervals(t, got.Intervals(), want)
}

func TestResolveAvailability_ClipsPartialDays(t *testing.T) {
	tpl := WeeklyTemplate{
		Timezone: "UTC",
		Windows:  map[string][]LocalWindow{"Mon": {{Start: "09:00", End: "17:00"}}},
	}
	got, err := ResolveAvailability(tpl, utc(2026, 3, 2, 10, 30), utc(2026, 3, 2, 16, 0))
	if err != nil {
		t.Fatalf("ResolveAvailability failed: %v", err)
	}
	want := []interval.Interval{{Start: utc(2026, 3, 2, 10, 30), End: utc(2026, 3, 2, 16, 0)}}
	assertIntervals(t, got.Intervals(), want)
}

func TestResolveAvailability_LocalZoneOffset(t *testing.T) {
	tpl := WeeklyTemplate{
		Timezone: "Asia/Jerusalem", // UTC+2 in winter
		Windows:  map[string][]LocalWindow{"Mon": {{Start: "09:00", End: "12:00"}}},
	}
	got, err := ResolveAvailability(tpl, utc(2026, 1, 5, 0, 0), utc(2026, 1, 6, 0, 0))
	if err != nil {
		t.Fatalf("ResolveAvailability failed: %v", err)
	}
	want := []interval.Interval{{Start: utc(2026, 1, 5, 7, 0), End: utc(2026, 1, 5, 10, 0)}}
	assertIntervals(t, got.Intervals(), want)
}

func TestResolveAvailability_DSTSpringForward(t *testing.T) {
	// America/New_York springs forward on Sunday 2026-03-08 at 02:00.
	tpl := WeeklyTemplate{
		Timezone: "America/New_York",
		Windows:  map[string][]LocalWindow{"Sun": {{Start: "00:00", End: "08:00"}}},
	}

	transition, err := ResolveAvailability(tpl, utc(2026, 3, 8, 0, 0), utc(2026, 3, 9, 12, 0))
	if err != nil {
		t.Fatalf("ResolveAvailability failed: %v", err)
	}
	if transition.Len() != 1 {
		t.Fatalf("expected 1 interval, got %v", transition.Intervals())
	}
	// 00:00-08:00 local spans the skipped hour: 7h absolute, not 8.
	if d := transition.Intervals()[0].Duration(); d != 7*time.Hour {
		t.Fatalf("transition-week duration = %v, want 7h", d)
	}

	plain, err := ResolveAvailability(tpl, utc(2026, 3, 15, 0, 0), utc(2026, 3, 16, 12, 0))
	if err != nil {
		t.Fatalf("ResolveAvailability failed: %v", err)
	}
	if d := plain.Intervals()[0].Duration(); d != 8*time.Hour {
		t.Fatalf("plain-week duration = %v, want 8h", d)
	}
}

func TestResolveAvailability_DSTOffsetPerDate(t *testing.T) {
	// Same local wall clock resolves to different UTC offsets either side of
	// the transition: EST is UTC-5, EDT is UTC-4.
	tpl := WeeklyTemplate{
		Timezone: "America/New_York",
		Windows:  map[string][]LocalWindow{"Mon": {{Start: "09:00", End: "17:00"}}},
	}

	before, err := ResolveAvailability(tpl, utc(2026, 3, 2, 0, 0), utc(2026, 3, 3, 12, 0))
	if err != nil {
		t.Fatalf("ResolveAvailability failed: %v", err)
	}
	assertIntervals(t, before.Intervals(), []interval.Interval{
		{Start: utc(2026, 3, 2, 14, 0), End: utc(2026, 3, 2, 22, 0)},
	})

	after, err := ResolveAvailability(tpl, utc(2026, 3, 9, 0, 0), utc(2026, 3, 10, 12, 0))
	if err != nil {
		t.Fatalf("ResolveAvailability failed: %v", err)
	}
	assertIntervals(t, after.Intervals(), []interval.Interval{
		{Start: utc(2026, 3, 9, 13, 0), End: utc(2026, 3, 9, 21, 0)},
	})
}

func TestResolveAvailability_RejectsBadRange(t *testing.T) {
	tpl := WeeklyTemplate{Timezone: "UTC", Windows: map[string][]LocalWindow{}}
	if _, err := ResolveAvailability(tpl, utc(2026, 3, 3, 0, 0), utc(2026, 3, 2, 0, 0)); err == nil {
		t.Fatal("expected error for inverted range")
	}
}

func assertIntervals(t *testing.T, got, want []interval.Interval) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("interval count: got %d (%v), want %d (%v)", len(got), got, len(want), want)
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("interval %d: got [%s, %s), want [%s, %s)", i,
				got[i].Start.Format(time.RFC3339), got[i].End.Format(time.RFC3339),
				want[i].Start.Format(time.RFC3339), want[i].End.Format(time.RFC3339))
		}
	}
}
