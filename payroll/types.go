// Package payroll implements the teacher payroll and attendance-deduction
// engine: schedule expansion, delivery reconciliation, lateness and absence
// deductions, waivers, bonuses and the salary aggregate, plus the cached
// service that exposes it.
package payroll

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// DIRECTORY - tenants and teachers
// =============================================================================

type Tenant struct {
	ID   generic.TenantID `json:"id"`
	Name string           `json:"name"`
}

// Teacher carries the base salary for a full period. How it is derived
// (package price, contract) is decided outside the engine.
type Teacher struct {
	ID         generic.TeacherID `json:"id"`
	TenantID   generic.TenantID  `json:"tenant_id"`
	Name       string            `json:"name"`
	BaseSalary decimal.Decimal   `json:"base_salary"`
}

// =============================================================================
// SCHEDULE
// =============================================================================

// ScheduleAssignment is a recurring class: one teacher, one student, a
// day-package and a local slot time. Reassignment closes the window
// (OccupiedUntil) instead of deleting the row.
type ScheduleAssignment struct {
	ID            string             `json:"id"`
	TenantID      generic.TenantID   `json:"tenant_id"`
	TeacherID     generic.TeacherID  `json:"teacher_id"`
	StudentID     generic.StudentID  `json:"student_id"`
	DayPackage    string             `json:"day_package"`
	Slot          generic.ClockTime  `json:"slot"`
	OccupiedFrom  generic.TimePoint  `json:"occupied_from"`
	OccupiedUntil *generic.TimePoint `json:"occupied_until,omitempty"`
}

// ActiveOn reports whether the assignment window covers date.
func (a ScheduleAssignment) ActiveOn(date generic.TimePoint) bool {
	if date.Before(a.OccupiedFrom) {
		return false
	}
	return a.OccupiedUntil == nil || date.BeforeOrEqual(*a.OccupiedUntil)
}

// ClassOccurrence is one expected class on one date. Derived, never stored.
type ClassOccurrence struct {
	Date           generic.TimePoint
	Assignment     ScheduleAssignment
	ScheduledStart time.Time
}

// =============================================================================
// DELIVERY EVENTS
// =============================================================================

type DeliveryStatus string

const (
	DeliveryEnded   DeliveryStatus = "ended"
	DeliveryNoShow  DeliveryStatus = "no_show"
	DeliveryUnknown DeliveryStatus = "unknown"
)

// DeliveryEvent is what the meeting subsystem recorded for one class
// attempt. JoinedAt is nil when nobody joined.
type DeliveryEvent struct {
	ID           int64             `json:"id"`
	TenantID     generic.TenantID  `json:"tenant_id"`
	TeacherID    generic.TeacherID `json:"teacher_id"`
	StudentID    generic.StudentID `json:"student_id"`
	DispatchedAt time.Time         `json:"dispatched_at"`
	JoinedAt     *time.Time        `json:"joined_at,omitempty"`
	Duration     time.Duration     `json:"duration"`
	Status       DeliveryStatus    `json:"status"`
}

// Attended is false for no-shows and for dispatches nobody joined.
func (e DeliveryEvent) Attended() bool {
	return e.Status != DeliveryNoShow && e.JoinedAt != nil
}

// =============================================================================
// DEDUCTIONS, WAIVERS, BONUSES
// =============================================================================

type DeductionType string

const (
	DeductionLateness DeductionType = "lateness"
	DeductionAbsence  DeductionType = "absence"
)

func (t DeductionType) Valid() bool {
	return t == DeductionLateness || t == DeductionAbsence
}

// DeductionWaiver cancels the deduction identified by
// (teacher, tenant, date, type). Immutable once created.
type DeductionWaiver struct {
	ID             string            `json:"id"`
	TenantID       generic.TenantID  `json:"tenant_id"`
	TeacherID      generic.TeacherID `json:"teacher_id"`
	Date           generic.TimePoint `json:"date"`
	Type           DeductionType     `json:"type"`
	Reason         string            `json:"reason"`
	OriginalAmount decimal.Decimal   `json:"original_amount"`
	IssuedBy       string            `json:"issued_by"`
	CreatedAt      time.Time         `json:"created_at"`
}

// QualityBonus is awarded by the review workflow for one week.
type QualityBonus struct {
	ID        string            `json:"id"`
	TenantID  generic.TenantID  `json:"tenant_id"`
	TeacherID generic.TeacherID `json:"teacher_id"`
	WeekStart generic.TimePoint `json:"week_start"`
	Amount    decimal.Decimal   `json:"amount"`
	Rating    string            `json:"rating"`
	CreatedAt time.Time         `json:"created_at"`
}

// =============================================================================
// PAYMENTS
// =============================================================================

type PaymentStatus string

const (
	PaymentPaid   PaymentStatus = "paid"
	PaymentUnpaid PaymentStatus = "unpaid"
)

// Payment records that a teacher was paid for exactly one period.
type Payment struct {
	ID        string            `json:"id"`
	TenantID  generic.TenantID  `json:"tenant_id"`
	TeacherID generic.TeacherID `json:"teacher_id"`
	Period    generic.Period    `json:"period"`
	Amount    decimal.Decimal   `json:"amount"`
	PaidBy    string            `json:"paid_by"`
	PaidAt    time.Time         `json:"paid_at"`
}

// =============================================================================
// SALARY RESULT - derived, cached, never the system of record
// =============================================================================

type Classification string

const (
	OnTime Classification = "on_time"
	Late   Classification = "late"
	Absent Classification = "absent"
)

// WaiverRef is the audit trail of a waiver applied to a ledger entry.
type WaiverRef struct {
	ID       string `json:"id"`
	Reason   string `json:"reason"`
	IssuedBy string `json:"issued_by"`
}

// LedgerEntry is one occurrence in the per-date deduction ledger. Every
// occurrence appears, on-time ones with a zero amount.
type LedgerEntry struct {
	Date           generic.TimePoint `json:"date"`
	AssignmentID   string            `json:"assignment_id"`
	StudentID      generic.StudentID `json:"student_id"`
	ScheduledStart time.Time         `json:"scheduled_start"`
	Classification Classification    `json:"classification"`
	DelayMinutes   int               `json:"delay_minutes"`
	EventID        *int64            `json:"event_id,omitempty"`
	Type           DeductionType     `json:"type"`
	Amount         decimal.Decimal   `json:"amount"`
	Charged        decimal.Decimal   `json:"charged"`
	Waived         decimal.Decimal   `json:"waived"`
	Waiver         *WaiverRef        `json:"waiver,omitempty"`
	ConfigSource   ConfigSource      `json:"config_source"`
}

// DeductionTotals splits one deduction type into charged and waived.
// Total = Charged + Waived.
type DeductionTotals struct {
	Total   decimal.Decimal `json:"total"`
	Charged decimal.Decimal `json:"charged"`
	Waived  decimal.Decimal `json:"waived"`
}

type OccurrenceCounts struct {
	Scheduled int `json:"scheduled"`
	OnTime    int `json:"on_time"`
	Late      int `json:"late"`
	Absent    int `json:"absent"`
}

type ConfigSource string

const (
	ConfigFromTenant  ConfigSource = "tenant"
	ConfigFromDefault ConfigSource = "default"
	ConfigMixed       ConfigSource = "mixed" // the period crosses a config boundary
)

// SalaryResult is the auditable salary of one teacher for one period.
//
// INVARIANT:
//
//	NetSalary = BaseSalary - Lateness.Charged - Absence.Charged + TotalBonus
type SalaryResult struct {
	TenantID      generic.TenantID  `json:"tenant_id"`
	TeacherID     generic.TeacherID `json:"teacher_id"`
	Period        generic.Period    `json:"period"`
	BaseSalary    decimal.Decimal   `json:"base_salary"`
	Lateness      DeductionTotals   `json:"lateness"`
	Absence       DeductionTotals   `json:"absence"`
	TotalWaived   decimal.Decimal   `json:"total_waived"`
	TotalBonus    decimal.Decimal   `json:"total_bonus"`
	NetSalary     decimal.Decimal   `json:"net_salary"`
	PaymentStatus PaymentStatus     `json:"payment_status"`
	Counts        OccurrenceCounts  `json:"counts"`
	Ledger        []LedgerEntry     `json:"ledger"`
	Waivers       []DeductionWaiver `json:"waivers"`
	Bonuses       []QualityBonus    `json:"bonuses"`
	ConfigSource  ConfigSource      `json:"config_source"`
	ComputedAt    time.Time         `json:"computed_at"`
}

// TotalCharged is what actually reduces the salary.
func (r *SalaryResult) TotalCharged() decimal.Decimal {
	return r.Lateness.Charged.Add(r.Absence.Charged)
}

// Clone returns a copy that shares no slices with r.
func (r *SalaryResult) Clone() *SalaryResult {
	if r == nil {
		return nil
	}
	c := *r
	c.Ledger = append([]LedgerEntry(nil), r.Ledger...)
	c.Waivers = append([]DeductionWaiver(nil), r.Waivers...)
	c.Bonuses = append([]QualityBonus(nil), r.Bonuses...)
	return &c
}
