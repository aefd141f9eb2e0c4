package generic

import "time"

// =============================================================================
// PERIOD - Inclusive date window used for monthly aggregation
// =============================================================================

// Period is the closed range [Start, End].
//
// Commission is always computed over one calendar month of client payments,
// so the usual constructor is MonthPeriod.
type Period struct {
	Start Date
	End   Date
}

// MonthPeriod returns the first through last day of the month.
func MonthPeriod(year int, month time.Month) Period {
	return Period{
		Start: NewDate(year, month, 1),
		End:   NewDate(year, month, DaysIn(year, month)),
	}
}

// Contains returns true if d is within the period [Start, End]
func (p Period) Contains(d Date) bool {
	return d.AfterOrEqual(p.Start) && d.BeforeOrEqual(p.End)
}

// Next returns the following calendar month period.
func (p Period) Next() Period {
	n := p.Start.AddMonths(1)
	return MonthPeriod(n.Year(), n.Month())
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}
