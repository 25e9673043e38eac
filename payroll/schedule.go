package payroll

import (
	"sort"
	"time"

	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// SCHEDULE RESOLVER - recurring assignments -> dated occurrences
// =============================================================================

// ResolveOccurrences expands assignments into the classes expected in
// period. An assignment yields exactly one occurrence on every day that
// lies inside both the period and its occupied window and whose weekday
// its day-package includes.
//
// Output is ordered by date, slot time, then assignment ID.
func ResolveOccurrences(assignments []ScheduleAssignment, period generic.Period, loc *time.Location) ([]ClassOccurrence, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}

	var occurrences []ClassOccurrence
	for _, a := range assignments {
		pkg, err := ParseDayPackage(a.DayPackage)
		if err != nil {
			return nil, err
		}
		for _, day := range period.Days() {
			if !a.ActiveOn(day) || !pkg.Includes(day.Weekday()) {
				continue
			}
			occurrences = append(occurrences, ClassOccurrence{
				Date:           day,
				Assignment:     a,
				ScheduledStart: day.At(a.Slot, loc),
			})
		}
	}

	sort.SliceStable(occurrences, func(i, j int) bool {
		oi, oj := occurrences[i], occurrences[j]
		if !oi.Date.Equal(oj.Date) {
			return oi.Date.Before(oj.Date)
		}
		if oi.Assignment.Slot.Minutes() != oj.Assignment.Slot.Minutes() {
			return oi.Assignment.Slot.Minutes() < oj.Assignment.Slot.Minutes()
		}
		return oi.Assignment.ID < oj.Assignment.ID
	})
	return occurrences, nil
}
