package payroll

import (
	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// LATENESS & ABSENCE EVALUATORS
// =============================================================================

// Classify decides on-time, late or absent for one match. A dispatch that
// nobody joined, or that ended as a no-show, is an absence.
func Classify(m Match) Classification {
	if m.Event == nil || !m.Event.Attended() {
		return Absent
	}
	if m.DelayMinutes > 0 {
		return Late
	}
	return OnTime
}

// EvaluateLateness returns the ledger entry of an attended match. The
// entry is present even when the deduction is zero.
func EvaluateLateness(m Match, cfg DeductionConfig) LedgerEntry {
	entry := newEntry(m)
	entry.Classification = Classify(m)
	entry.Type = DeductionLateness
	entry.Amount = cfg.LatenessDeduction(m.DelayMinutes)
	entry.Charged = entry.Amount
	return entry
}

// EvaluateAbsence returns the ledger entry of a missed class.
func EvaluateAbsence(m Match, cfg DeductionConfig) LedgerEntry {
	entry := newEntry(m)
	entry.Classification = Absent
	entry.DelayMinutes = 0
	entry.Type = DeductionAbsence
	entry.Amount = cfg.AbsenceAmount
	entry.Charged = entry.Amount
	return entry
}

// Evaluate runs every match through exactly one evaluator, under the
// config effective on the occurrence date.
func Evaluate(matches []Match, rules DeductionRules) []LedgerEntry {
	ledger := make([]LedgerEntry, 0, len(matches))
	for _, m := range matches {
		cfg, src := rules.On(m.Occurrence.Date)
		var entry LedgerEntry
		if Classify(m) == Absent {
			entry = EvaluateAbsence(m, cfg)
		} else {
			entry = EvaluateLateness(m, cfg)
		}
		entry.ConfigSource = src
		ledger = append(ledger, entry)
	}
	return ledger
}

func newEntry(m Match) LedgerEntry {
	entry := LedgerEntry{
		Date:           m.Occurrence.Date,
		AssignmentID:   m.Occurrence.Assignment.ID,
		StudentID:      m.Occurrence.Assignment.StudentID,
		ScheduledStart: m.Occurrence.ScheduledStart,
		DelayMinutes:   m.DelayMinutes,
		Waived:         decimal.Zero,
	}
	if m.Event != nil {
		id := m.Event.ID
		entry.EventID = &id
	}
	return entry
}

// waiverKey identifies the deduction a waiver cancels.
type waiverKey struct {
	date generic.TimePoint
	typ  DeductionType
}
