package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// DateFormat is the ISO-8601 format used for dates on the wire and in storage.
const DateFormat = "2006-01-02"

// Date represents a civil date with day granularity. The zero value means
// "unset" (used for open-ended recurrences).
type Date struct {
	y int
	m time.Month
	d int
}

// NewDate returns a normalized Date for the given year, month, and day.
func NewDate(year, month, day int) Date {
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return Date{t.Year(), t.Month(), t.Day()}
}

// DateOf truncates a time.Time to its civil date in UTC.
func DateOf(t time.Time) Date {
	u := t.UTC()
	return Date{u.Year(), u.Month(), u.Day()}
}

// Today returns the current date.
func Today() Date { return DateOf(time.Now()) }

// ParseDate parses an ISO-8601 date string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateFormat, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q want format %q: %w", s, DateFormat, err)
	}
	return DateOf(t), nil
}

func (d Date) time() time.Time { return time.Date(d.y, d.m, d.d, 0, 0, 0, 0, time.UTC) }

// Year returns the year of the date.
func (d Date) Year() int { return d.y }

// Month returns the month of the date as an int (1-12).
func (d Date) Month() int { return int(d.m) }

// Day returns the day of the month.
func (d Date) Day() int { return d.d }

// IsZero reports whether the date is unset.
func (d Date) IsZero() bool { return d.y == 0 && d.m == 0 && d.d == 0 }

// Before reports whether d is before x.
func (d Date) Before(x Date) bool { return d.time().Before(x.time()) }

// After reports whether d is after x.
func (d Date) After(x Date) bool { return d.time().After(x.time()) }

// Equal reports whether d and x are the same day.
func (d Date) Equal(x Date) bool { return d == x }

func (d Date) String() string { return d.time().Format(DateFormat) }

// AddDays returns the date i days after d (negative i steps backwards).
func (d Date) AddDays(i int) Date { return DateOf(d.time().AddDate(0, 0, i)) }

// AddMonths returns the date n calendar months after d. The day of month is
// clamped to the target month's length, so Jan 31 plus one month is Feb 28
// (or 29 in leap years), never an overflow into March.
func (d Date) AddMonths(n int) Date {
	first := time.Date(d.y, d.m+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	day := d.d
	if last := daysIn(first.Year(), first.Month()); day > last {
		day = last
	}
	return Date{first.Year(), first.Month(), day}
}

// AddYears returns the date n calendar years after d, clamped like AddMonths
// (Feb 29 plus one year is Feb 28).
func (d Date) AddYears(n int) Date { return d.AddMonths(12 * n) }

// StartOfMonth returns the first day of d's month.
func (d Date) StartOfMonth() Date { return Date{d.y, d.m, 1} }

// EndOfMonth returns the last day of d's month.
func (d Date) EndOfMonth() Date { return Date{d.y, d.m, daysIn(d.y, d.m)} }

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// MarshalJSON encodes the date as an ISO-8601 string.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes the date from an ISO-8601 string.
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

var (
	_ json.Marshaler   = Date{}
	_ json.Unmarshaler = (*Date)(nil)
)

// Window is a closed date range [Start, End]. Both bounds are inclusive.
type Window struct {
	Start Date
	End   Date
}

// NewWindow builds a window and rejects inverted bounds.
func NewWindow(start, end Date) (Window, error) {
	if start.After(end) {
		return Window{}, fmt.Errorf("%w: window start %s after end %s", ErrInvalidRequest, start, end)
	}
	return Window{Start: start, End: end}, nil
}

// MonthWindow returns the window spanning one calendar month.
func MonthWindow(year, month int) Window {
	first := NewDate(year, month, 1)
	return Window{Start: first, End: first.EndOfMonth()}
}

// YearWindow returns the window spanning one calendar year.
func YearWindow(year int) Window {
	return Window{Start: NewDate(year, 1, 1), End: NewDate(year, 12, 31)}
}

// DayWindow returns the single-day window [d, d].
func DayWindow(d Date) Window { return Window{Start: d, End: d} }

// Contains reports whether the date falls inside the window.
func (w Window) Contains(d Date) bool {
	return !d.Before(w.Start) && !d.After(w.End)
}

// Validate checks that the window has usable bounds.
func (w Window) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() {
		return errors.New("window bounds must be set")
	}
	if w.Start.After(w.End) {
		return fmt.Errorf("window start %s after end %s", w.Start, w.End)
	}
	return nil
}
