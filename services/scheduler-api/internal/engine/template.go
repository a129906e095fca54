// Package engine computes free time and slot suggestions from a weekly
// availability template and a set of fixed busy intervals. It is a pure
// function of its inputs: no clocks, no storage, no shared state, so
// identical inputs always produce identical output.
package engine

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/mzivlin/timecraft/services/scheduler-api/internal/interval"
)

// ErrValidation marks errors caused by malformed input. Handlers map it to
// a 400 response; anything else is an internal failure.
var ErrValidation = errors.New("validation")

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// WeekdayKeys are the canonical weekday identifiers, in template order.
var WeekdayKeys = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// LocalWindow is a recurring wall-clock window, "HH:MM" inclusive-start
// exclusive-end, both within 00:00..24:00.
type LocalWindow struct {
	Start string
	End   string
}

// WeeklyTemplate is the recurring availability rule: per-weekday local
// windows plus the IANA timezone used to interpret them. It deliberately has
// no conversion back from absolute time; wall-clock rules only become
// instants for a concrete date via ResolveAvailability.
type WeeklyTemplate struct {
	Timezone string
	Windows  map[string][]LocalWindow
}

// Validate checks the timezone and every window. It fails fast so no
// partial computation happens on malformed templates; a missing or bogus
// timezone is an error, never a silent UTC fallback.
func (t WeeklyTemplate) Validate() error {
	if t.Timezone == "" {
		return validationf("timezone is required")
	}
	if _, err := time.LoadLocation(t.Timezone); err != nil {
		return validationf("unknown timezone %q", t.Timezone)
	}

	// Sorted so the reported key does not depend on map iteration order.
	days := make([]string, 0, len(t.Windows))
	for day := range t.Windows {
		days = append(days, day)
	}
	sort.Strings(days)
	for _, day := range days {
		if !isWeekdayKey(day) {
			return validationf("unknown weekday %q (want Mon..Sun)", day)
		}
	}

	for _, day := range WeekdayKeys {
		windows := t.Windows[day]
		prevEnd := -1
		for _, w := range windows {
			start, err := parseClock(w.Start)
			if err != nil {
				return validationf("%s: %v", day, err)
			}
			end, err := parseClock(w.End)
			if err != nil {
				return validationf("%s: %v", day, err)
			}
			if start >= end {
				return validationf("%s: window %s-%s is empty or inverted", day, w.Start, w.End)
			}
			if start < prevEnd {
				return validationf("%s: windows overlap or are out of order at %s", day, w.Start)
			}
			prevEnd = end
		}
	}
	return nil
}

func isWeekdayKey(day string) bool {
	for _, k := range WeekdayKeys {
		if k == day {
			return true
		}
	}
	return false
}

// weekdayKey maps time.Weekday to the template key.
func weekdayKey(d time.Weekday) string {
	// time.Weekday starts at Sunday; the template week starts at Monday.
	return WeekdayKeys[(int(d)+6)%7]
}

// parseClock parses "HH:MM" into minutes since local midnight. 24:00 is the
// exclusive end of day.
func parseClock(s string) (int, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("bad time %q (want HH:MM)", s)
	}
	hh, err1 := atoi2(s[0], s[1])
	mm, err2 := atoi2(s[3], s[4])
	if err1 != nil || err2 != nil {
		return 0, fmt.Errorf("bad time %q (want HH:MM)", s)
	}
	minutes := hh*60 + mm
	if mm > 59 || minutes > 24*60 {
		return 0, fmt.Errorf("time %q out of range (00:00..24:00)", s)
	}
	return minutes, nil
}

func atoi2(a, b byte) (int, error) {
	if a < '0' || a > '9' || b < '0' || b > '9' {
		return 0, errors.New("not a digit")
	}
	return int(a-'0')*10 + int(b-'0'), nil
}

// ResolveAvailability expands the weekly template into absolute UTC
// intervals covering [from, to).
//
// The walk visits every calendar day from the day containing `from` to the
// day containing `to` in the template's zone, converts each local window
// against that concrete date (so the zone's rules, including DST, pick the
// UTC offset), then merges and clips. Windows that land outside the range
// are removed by the clip step, keeping the expansion loop uniform.
func ResolveAvailability(t WeeklyTemplate, from, to time.Time) (interval.Set, error) {
	if !to.After(from) {
		return interval.Set{}, validationf("range start must precede range end")
	}
	if err := t.Validate(); err != nil {
		return interval.Set{}, err
	}
	loc, err := time.LoadLocation(t.Timezone)
	if err != nil {
		return interval.Set{}, validationf("unknown timezone %q", t.Timezone)
	}

	var raw []interval.Interval
	first := from.In(loc)
	last := to.Add(-time.Nanosecond).In(loc)

	y, m, d := first.Date()
	ly, lm, ld := last.Date()
	lastMidnight := time.Date(ly, lm, ld, 0, 0, 0, 0, loc)

	for offset := 0; ; offset++ {
		dayStart := time.Date(y, m, d+offset, 0, 0, 0, 0, loc)
		if dayStart.After(lastMidnight) {
			break
		}
		dy, dm, dd := dayStart.Date()
		for _, w := range t.Windows[weekdayKey(dayStart.Weekday())] {
			startMin, _ := parseClock(w.Start) // validated above
			endMin, _ := parseClock(w.End)
			absStart := time.Date(dy, dm, dd, startMin/60, startMin%60, 0, 0, loc)
			absEnd := time.Date(dy, dm, dd, endMin/60, endMin%60, 0, 0, loc)
			// A window can collapse when a DST transition skips its local
			// times; that is the zone rule speaking, not bad data.
			if !absEnd.After(absStart) {
				continue
			}
			raw = append(raw, interval.Interval{Start: absStart.UTC(), End: absEnd.UTC()})
		}
	}

	set, err := interval.Normalize(raw)
	if err != nil {
		return interval.Set{}, err
	}
	return set.ClipToRange(from, to), nil
}
