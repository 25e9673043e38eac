package payroll

import (
	"sort"
	"time"

	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// EVENT RECONCILER - expected occurrences <-> recorded deliveries
// =============================================================================

// Match pairs an occurrence with the delivery event chosen for it.
// Event is nil when nothing was dispatched for that class.
type Match struct {
	Occurrence   ClassOccurrence
	Event        *DeliveryEvent
	DelayMinutes int
}

type pairKey struct {
	student generic.StudentID
	date    generic.TimePoint
}

// Reconcile matches each occurrence to the earliest delivery event of the
// same (teacher, student) dispatched on the same local date. Ties on the
// dispatch time go to the smallest event ID. An event attends at most one
// class, so two slots with the same student on one day need two events;
// the second slot without its own event is an absence.
//
// Occurrences must be in resolver order; the result keeps that order.
func Reconcile(occurrences []ClassOccurrence, events []DeliveryEvent, loc *time.Location) []Match {
	candidates := make(map[pairKey][]DeliveryEvent)
	for _, e := range events {
		k := pairKey{student: e.StudentID, date: generic.DateOf(e.DispatchedAt, loc)}
		candidates[k] = append(candidates[k], e)
	}
	for k, list := range candidates {
		sort.Slice(list, func(i, j int) bool {
			if !list[i].DispatchedAt.Equal(list[j].DispatchedAt) {
				return list[i].DispatchedAt.Before(list[j].DispatchedAt)
			}
			return list[i].ID < list[j].ID
		})
		candidates[k] = list
	}

	matches := make([]Match, 0, len(occurrences))
	for _, occ := range occurrences {
		k := pairKey{student: occ.Assignment.StudentID, date: occ.Date}
		list := candidates[k]
		m := Match{Occurrence: occ}
		for len(list) > 0 {
			e := list[0]
			list = list[1:]
			if e.TeacherID != occ.Assignment.TeacherID {
				continue
			}
			ev := e
			m.Event = &ev
			m.DelayMinutes = delayMinutes(occ.ScheduledStart, ev.JoinedAt)
			break
		}
		candidates[k] = list
		matches = append(matches, m)
	}
	return matches
}

// delayMinutes is joinedAt - scheduled in whole minutes, never negative.
func delayMinutes(scheduled time.Time, joinedAt *time.Time) int {
	if joinedAt == nil {
		return 0
	}
	d := joinedAt.Sub(scheduled)
	if d <= 0 {
		return 0
	}
	return int(d / time.Minute)
}
