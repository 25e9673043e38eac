package generic

import "time"

// =============================================================================
// PERIOD - The unit every salary is computed for
// =============================================================================

// Period is a half-open range of calendar dates [Start, End).
// A salary is ALWAYS computed for a period, never at a point in time.
// Start == End is a valid empty period.
type Period struct {
	Start TimePoint `json:"from"`
	End   TimePoint `json:"to"`
}

// NewPeriod builds a validated period.
func NewPeriod(start, end TimePoint) (Period, error) {
	p := Period{Start: start, End: end}
	if err := p.Validate(); err != nil {
		return Period{}, err
	}
	return p, nil
}

// ParsePeriod parses two YYYY-MM-DD strings into a validated period.
// Every failure is a *RangeError wrapping ErrInvalidRange.
func ParsePeriod(from, to string) (Period, error) {
	start, err := ParseDate(from)
	if err != nil {
		return Period{}, &RangeError{From: from, To: to, Reason: "unparsable from date"}
	}
	end, err := ParseDate(to)
	if err != nil {
		return Period{}, &RangeError{From: from, To: to, Reason: "unparsable to date"}
	}
	return NewPeriod(start, end)
}

// Validate rejects zero dates and ranges whose start is after their end.
func (p Period) Validate() error {
	if p.Start.IsZero() || p.End.IsZero() {
		return &RangeError{From: p.Start.String(), To: p.End.String(), Reason: "missing date"}
	}
	if p.Start.After(p.End) {
		return &RangeError{From: p.Start.String(), To: p.End.String(), Reason: "from is after to"}
	}
	return nil
}

// Contains returns true if the date is within [Start, End).
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.Before(p.End)
}

// Days returns every date in the period in order.
func (p Period) Days() []TimePoint {
	var days []TimePoint
	for current := p.Start; current.Before(p.End); current = current.AddDays(1) {
		days = append(days, current)
	}
	return days
}

// Bounds returns the instant range [Start midnight, End midnight) in loc.
func (p Period) Bounds(loc *time.Location) (time.Time, time.Time) {
	return p.Start.Midnight(loc), p.End.Midnight(loc)
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + ")"
}

// MonthPeriod returns the calendar month containing date, ending at the 1st
// of the following month.
func MonthPeriod(date TimePoint) Period {
	start := StartOfMonth(date.Year(), date.Month())
	return Period{Start: start, End: start.AddMonths(1)}
}

// DayPeriod returns the one-day period [date, date+1).
func DayPeriod(date TimePoint) Period {
	return Period{Start: date, End: date.AddDays(1)}
}
