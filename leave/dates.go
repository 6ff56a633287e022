package leave

import (
	"fmt"
	"time"
)

// =============================================================================
// DATE - Calendar date, no clock, no timezone beyond UTC normalization
// =============================================================================

// Date is a calendar date at day granularity. All leave arithmetic works on
// dates, never on instants: a request from Monday to Wednesday means the same
// thing regardless of where the server runs.
type Date struct {
	t time.Time
}

// DateLayout is the wire format for dates (YYYY-MM-DD).
const DateLayout = "2006-01-02"

func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string. Malformed input is a validation
// failure, never a panic.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, &MalformedDateError{Input: s, Err: err}
	}
	return Date{t: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}, nil
}

// Today returns the current calendar date. Tests inject their own clock via
// the Clock type instead of calling this directly.
func Today() Date {
	now := time.Now().UTC()
	return NewDate(now.Year(), now.Month(), now.Day())
}

// Comparison
func (d Date) Before(other Date) bool        { return d.t.Before(other.t) }
func (d Date) After(other Date) bool         { return d.t.After(other.t) }
func (d Date) Equal(other Date) bool         { return d.t.Equal(other.t) }
func (d Date) BeforeOrEqual(other Date) bool { return !d.After(other) }
func (d Date) AfterOrEqual(other Date) bool  { return !d.Before(other) }

// Arithmetic
func (d Date) AddDays(n int) Date { return Date{t: d.t.AddDate(0, 0, n)} }

// Properties
func (d Date) Year() int             { return d.t.Year() }
func (d Date) Month() time.Month     { return d.t.Month() }
func (d Date) Day() int              { return d.t.Day() }
func (d Date) Weekday() time.Weekday { return d.t.Weekday() }
func (d Date) IsZero() bool          { return d.t.IsZero() }

func (d Date) IsWeekend() bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// NextMonday returns the Monday strictly following a weekend date. For a
// weekday it returns the date unchanged.
func (d Date) NextMonday() Date {
	switch d.Weekday() {
	case time.Saturday:
		return d.AddDays(2)
	case time.Sunday:
		return d.AddDays(1)
	default:
		return d
	}
}

// MonthToken formats the date's accrual period at month granularity: "YYYY-MM".
func (d Date) MonthToken() string { return d.t.Format("2006-01") }

// YearToken formats the date's accrual period at year granularity: "YYYY".
func (d Date) YearToken() string { return d.t.Format("2006") }

// StartOfMonth returns the first of the date's month.
func (d Date) StartOfMonth() Date { return NewDate(d.Year(), d.Month(), 1) }

func (d Date) String() string { return d.t.Format(DateLayout) }

// Time exposes the underlying instant for storage encoding.
func (d Date) Time() time.Time { return d.t }

// DaysBetween returns the number of calendar days from a to b (negative when
// b precedes a).
func DaysBetween(a, b Date) int {
	return int(b.t.Sub(a.t).Hours() / 24)
}

// =============================================================================
// SPAN - Inclusive date range
// =============================================================================

// Span is an inclusive [Start, End] date range. Start ≤ End is an invariant
// everywhere a Span is accepted; NewSpan enforces it.
type Span struct {
	Start Date
	End   Date
}

func NewSpan(start, end Date) (Span, error) {
	if end.Before(start) {
		return Span{}, ErrEndBeforeStart
	}
	return Span{Start: start, End: end}, nil
}

// Overlaps uses the inclusive interval test: two spans overlap when each
// starts no later than the other ends.
func (s Span) Overlaps(other Span) bool {
	return s.Start.BeforeOrEqual(other.End) && s.End.AfterOrEqual(other.Start)
}

// OverlapDays returns the number of calendar days shared by the two spans,
// clamped at zero: min(s.End, other.End) - max(s.Start, other.Start) + 1.
func (s Span) OverlapDays(other Span) int {
	start := s.Start
	if other.Start.After(start) {
		start = other.Start
	}
	end := s.End
	if other.End.Before(end) {
		end = other.End
	}
	if end.Before(start) {
		return 0
	}
	return Span{Start: start, End: end}.CalendarDays()
}

// CalendarDays returns the total day count of the span, weekends included.
func (s Span) CalendarDays() int { return DaysBetween(s.Start, s.End) + 1 }

// Weekdays counts the Mon-Fri dates inside the span. Weekend days never
// consume leave balance.
func (s Span) Weekdays() int {
	n := 0
	for d := s.Start; d.BeforeOrEqual(s.End); d = d.AddDays(1) {
		if !d.IsWeekend() {
			n++
		}
	}
	return n
}

func (s Span) String() string {
	return fmt.Sprintf("[%s, %s]", s.Start, s.End)
}

// =============================================================================
// CLOCK - Injectable time source
// =============================================================================

// Clock supplies the current date. The engine takes a Clock instead of
// calling time.Now so accrual boundaries can be tested deterministically.
type Clock interface {
	Today() Date
}

// SystemClock is the production Clock.
type SystemClock struct{}

func (SystemClock) Today() Date { return Today() }

// FixedClock pins the date; used by tests and backfills.
type FixedClock struct{ Date Date }

func (f FixedClock) Today() Date { return f.Date }
