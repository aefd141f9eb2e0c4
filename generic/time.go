package generic

import (
	"fmt"
	"time"
)

// DateLayout is the ISO 8601 calendar date format used at every boundary.
const DateLayout = "2006-01-02"

// MaxDate is the last date DateLayout can write and read back.
var MaxDate = NewDate(9999, time.December, 31)

// =============================================================================
// DATE - Calendar date without time of day
// =============================================================================

// Date is a calendar day. Payments, due dates and payout dates are all
// day-granular, so there is no time-of-day or zone to carry around.
type Date struct {
	Time time.Time
}

// Clock returns the current instant. Services take one so tests can pin "today".
type Clock func() time.Time

// Constructors
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day (in t's own location).
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// Today returns the current date according to clock, or the wall clock when nil.
func Today(clock Clock) Date {
	if clock == nil {
		clock = time.Now
	}
	return DateOf(clock())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD): %w", s, err)
	}
	return DateOf(t), nil
}

// MustParseDate is ParseDate for literals in tests and scenarios.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Comparison
func (d Date) Before(other Date) bool        { return d.Time.Before(other.Time) }
func (d Date) After(other Date) bool         { return d.Time.After(other.Time) }
func (d Date) Equal(other Date) bool         { return d.Time.Equal(other.Time) }
func (d Date) BeforeOrEqual(other Date) bool { return !d.After(other) }
func (d Date) AfterOrEqual(other Date) bool  { return !d.Before(other) }

// Properties
func (d Date) Year() int         { return d.Time.Year() }
func (d Date) Month() time.Month { return d.Time.Month() }
func (d Date) Day() int          { return d.Time.Day() }
func (d Date) IsZero() bool      { return d.Time.IsZero() }
func (d Date) String() string    { return d.Time.Format(DateLayout) }

// WithDay returns the same month with the day replaced, clamped to the month length.
func (d Date) WithDay(day int) Date {
	if last := DaysIn(d.Year(), d.Month()); day > last {
		day = last
	}
	return NewDate(d.Year(), d.Month(), day)
}

// =============================================================================
// DATE ARITHMETIC
// =============================================================================

// AddDays shifts the date by n days.
func (d Date) AddDays(n int) Date { return Date{Time: d.Time.AddDate(0, 0, n)} }

// AddMonths adds n calendar months (n may be negative or zero) keeping the
// day of month. When the target month is too short the day is clamped to
// its last day, so Jan 31 + 1 month is Feb 28 (or 29), never Mar 3.
func (d Date) AddMonths(n int) Date {
	offset := int(d.Month()) - 1 + n
	year := d.Year() + floorDiv(offset, 12)
	month := time.Month(offset - floorDiv(offset, 12)*12 + 1)

	day := d.Day()
	if last := DaysIn(year, month); day > last {
		day = last
	}
	return NewDate(year, month, day)
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
