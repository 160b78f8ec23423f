package core

import (
	"fmt"
	"iter"
)

const (
	IntervalNone      Interval = ""
	IntervalDaily     Interval = "daily"
	IntervalWeekly    Interval = "weekly"
	IntervalMonthly   Interval = "monthly"
	IntervalQuarterly Interval = "quarterly"
	IntervalYearly    Interval = "yearly"
)

// Interval is the repetition step of a recurring transaction.
type Interval string

// ParseInterval validates and normalizes an interval string. The empty string
// means "not recurring".
func ParseInterval(s string) (Interval, error) {
	switch Interval(s) {
	case IntervalNone, IntervalDaily, IntervalWeekly, IntervalMonthly, IntervalQuarterly, IntervalYearly:
		return Interval(s), nil
	default:
		return IntervalNone, fmt.Errorf("%w: unknown recurrence interval %q", ErrInvalidRequest, s)
	}
}

// occurrence returns the k-th occurrence date for an anchor. Month-based
// intervals step from the anchor each time rather than from the previous
// occurrence, so a Jan 31 monthly anchor yields Feb 28 then Mar 31, not a
// drifting day-28 series.
func (i Interval) occurrence(anchor Date, k int) Date {
	switch i {
	case IntervalDaily:
		return anchor.AddDays(k)
	case IntervalWeekly:
		return anchor.AddDays(7 * k)
	case IntervalMonthly:
		return anchor.AddMonths(k)
	case IntervalQuarterly:
		return anchor.AddMonths(3 * k)
	case IntervalYearly:
		return anchor.AddYears(k)
	default:
		return anchor
	}
}

// Expand produces the ordered occurrence dates of a recurrence inside a query
// window. The sequence is finite and restartable: it starts at the anchor,
// steps by the interval, and stops past window.End or past until (when set),
// whichever comes first. Occurrences before window.Start advance the walk but
// are not yielded, so a recurrence anchored before the window is still found
// inside it. Both window bounds are inclusive.
//
// An empty interval degenerates to the single anchor date if it falls inside
// the window.
func Expand(anchor Date, every Interval, until Date, window Window) iter.Seq[Date] {
	return func(yield func(Date) bool) {
		if every == IntervalNone {
			if window.Contains(anchor) {
				yield(anchor)
			}
			return
		}
		for k := 0; ; k++ {
			d := every.occurrence(anchor, k)
			if d.After(window.End) {
				return
			}
			if !until.IsZero() && d.After(until) {
				return
			}
			if d.Before(window.Start) {
				continue
			}
			if !yield(d) {
				return
			}
		}
	}
}

// CountOccurrences returns how many occurrences fall inside the window.
func CountOccurrences(anchor Date, every Interval, until Date, window Window) int {
	n := 0
	for range Expand(anchor, every, until, window) {
		n++
	}
	return n
}
