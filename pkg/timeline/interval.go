// Package timeline provides the time-interval value type and set utilities
// shared by every stage of the soundscribe pipeline.
//
// All timestamps are float64 seconds from the start of the media file, which
// is the unit every upstream model (speech-to-text, diarization) reports in.
// Intervals are plain values; operations never mutate their receiver.
package timeline

import (
	"fmt"
	"math"
	"sort"
)

// Interval is a half-open-feeling but inclusively compared time range in
// seconds. A well-formed Interval satisfies 0 <= Start < End; use
// [NewInterval] to enforce this at construction boundaries.
type Interval struct {
	// Start is the interval begin time in seconds from media start.
	Start float64

	// End is the interval end time in seconds from media start.
	End float64
}

// NewInterval constructs a validated Interval. It rejects negative start
// times and degenerate ranges (end <= start) so that malformed upstream
// values are caught at the boundary rather than deep inside an algorithm.
func NewInterval(start, end float64) (Interval, error) {
	if start < 0 {
		return Interval{}, fmt.Errorf("timeline: interval start %.3f is negative", start)
	}
	if end <= start {
		return Interval{}, fmt.Errorf("timeline: interval end %.3f is not after start %.3f", end, start)
	}
	return Interval{Start: start, End: end}, nil
}

// Duration returns the interval length in seconds.
func (iv Interval) Duration() float64 {
	return iv.End - iv.Start
}

// Midpoint returns the temporal midpoint of the interval.
func (iv Interval) Midpoint() float64 {
	return (iv.Start + iv.End) / 2
}

// Contains reports whether t lies inside the interval, boundaries included.
func (iv Interval) Contains(t float64) bool {
	return iv.Start <= t && t <= iv.End
}

// Overlaps reports whether iv and other share any point in time,
// boundaries included.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start <= other.End && other.Start <= iv.End
}

// Gap returns the silence between iv and a later interval other, i.e.
// other.Start - iv.End. The result is negative when the intervals overlap.
func (iv Interval) Gap(other Interval) float64 {
	return other.Start - iv.End
}

// Round returns a copy of iv with both endpoints rounded to millisecond
// precision. Upstream models emit timestamps with floating-point jitter well
// below a millisecond; rounding makes merge passes and equality checks stable.
func (iv Interval) Round() Interval {
	return Interval{
		Start: RoundTime(iv.Start),
		End:   RoundTime(iv.End),
	}
}

// RoundTime rounds a timestamp in seconds to millisecond precision.
func RoundTime(t float64) float64 {
	return math.Round(t*1000) / 1000
}

// SortByStart sorts items in place by ascending interval start time. The sort
// is stable so that equal-start entries keep their upstream order. key maps
// an element to its Interval.
func SortByStart[T any](items []T, key func(T) Interval) {
	sort.SliceStable(items, func(i, j int) bool {
		return key(items[i]).Start < key(items[j]).Start
	})
}

// Span returns the smallest interval covering all items, using key to map an
// element to its Interval. ok is false for an empty slice.
func Span[T any](items []T, key func(T) Interval) (span Interval, ok bool) {
	if len(items) == 0 {
		return Interval{}, false
	}
	span = key(items[0])
	for _, it := range items[1:] {
		iv := key(it)
		if iv.Start < span.Start {
			span.Start = iv.Start
		}
		if iv.End > span.End {
			span.End = iv.End
		}
	}
	return span, true
}
