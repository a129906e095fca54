// Package interval implements half-open time interval arithmetic.
//
// All operations treat intervals as [Start, End): the start instant is
// included, the end instant is not, so two intervals that merely touch do
// not overlap. Sets are immutable; every operation returns a fresh Set and
// never aliases the backing storage of its inputs.
package interval

import (
	"fmt"
	"time"
)

// Interval is a half-open time range [Start, End) in absolute (UTC) time.
type Interval struct {
	Start time.Time
	End   time.Time
}

// New validates Start < End and returns the interval with both endpoints in UTC.
func New(start, end time.Time) (Interval, error) {
	if !end.After(start) {
		return Interval{}, fmt.Errorf("interval start %s must precede end %s",
			start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339))
	}
	return Interval{Start: start.UTC(), End: end.UTC()}, nil
}

func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// Overlaps reports whether the two half-open intervals share any instant.
// Touching endpoints ([a,b) and [b,c)) do not overlap.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// Contains reports whether other lies entirely within iv.
func (iv Interval) Contains(other Interval) bool {
	return !other.Start.Before(iv.Start) && !other.End.After(iv.End)
}

func (iv Interval) Equal(other Interval) bool {
	return iv.Start.Equal(other.Start) && iv.End.Equal(other.End)
}
