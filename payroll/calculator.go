/*
calculator.go - The single-teacher salary pipeline

PURPOSE:
  Computes one SalaryResult for (tenant, teacher, period) by reading the
  collaborator stores once and running the pure stages:

    ResolveOccurrences -> Reconcile -> Evaluate (lateness | absence)
      -> ApplyWaivers -> SumBonuses -> Aggregate

FAILURE SEMANTICS:
  - Invalid period: ErrInvalidRange before any store is touched
  - Unknown tenant / teacher: ErrUnknownTenant / ErrUnknownTeacher
  - No deduction config for some day: defaults for that day, logged as
    ErrConfigMissing, not an error
  - Any store failure: *generic.DataUnavailableError naming the store
  - No assignments: a valid result with net == base

DETERMINISM:
  Given the same store contents the result is identical except for
  ComputedAt. Nothing here writes anywhere.

SEE ALSO:
  - service.go: cache, single-flight and batch fan-out on top of this
*/
package payroll

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/payroll-engine/generic"
)

// Calculator runs the pipeline against a set of stores.
type Calculator struct {
	Stores   Stores
	Location *time.Location // tenant wall-clock zone for slots and dispatch dates
	Logger   *zap.Logger
	Now      func() time.Time
}

// NewCalculator creates a calculator. A nil location means UTC.
func NewCalculator(stores Stores, loc *time.Location, logger *zap.Logger) *Calculator {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Calculator{Stores: stores, Location: loc, Logger: logger, Now: time.Now}
}

// Calculate computes the salary of one teacher for one period.
func (c *Calculator) Calculate(ctx context.Context, tenantID generic.TenantID, teacherID generic.TeacherID, period generic.Period) (*SalaryResult, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}

	unavailable := func(store string, err error) error {
		c.Logger.Error("payroll store failed",
			zap.String("store", store),
			zap.String("tenant_id", string(tenantID)),
			zap.String("teacher_id", string(teacherID)),
			zap.Error(err))
		return &generic.DataUnavailableError{Store: store, TenantID: tenantID, TeacherID: teacherID, Err: err}
	}

	// 1. Scope
	tenant, err := c.Stores.Directory.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, unavailable("directory", err)
	}
	if tenant == nil {
		return nil, generic.ErrUnknownTenant
	}
	teacher, err := c.Stores.Directory.GetTeacher(ctx, tenantID, teacherID)
	if err != nil {
		return nil, unavailable("directory", err)
	}
	if teacher == nil {
		return nil, generic.ErrUnknownTeacher
	}

	// 2. Deduction rules, one version per day
	versions, err := c.Stores.Config.ListDeductionConfigs(ctx, tenantID, period)
	if err != nil {
		return nil, unavailable("deduction_config", err)
	}
	rules := NewDeductionRules(tenantID, versions)

	// 3. Expected classes
	assignments, err := c.Stores.Schedule.ListActiveAssignments(ctx, teacherID, tenantID)
	if err != nil {
		return nil, unavailable("schedule", err)
	}
	occurrences, err := ResolveOccurrences(assignments, period, c.Location)
	if err != nil {
		return nil, err
	}

	// 4. Delivered classes
	var events []DeliveryEvent
	if len(occurrences) > 0 {
		from, to := period.Bounds(c.Location)
		events, err = c.Stores.Delivery.ListDeliveryEvents(ctx, teacherID, tenantID, from, to)
		if err != nil {
			return nil, unavailable("delivery_events", err)
		}
	}
	ledger := Evaluate(Reconcile(occurrences, events, c.Location), rules)
	source := rules.Source(ledger, period.Start)
	if source != ConfigFromTenant {
		c.Logger.Warn(generic.ErrConfigMissing.Error(),
			zap.String("tenant_id", string(tenantID)),
			zap.String("period", period.String()),
			zap.String("config_source", string(source)))
	}

	// 5. Waivers
	waivers, err := ApplyWaivers(ctx, ledger, func(ctx context.Context, date generic.TimePoint, typ DeductionType) (*DeductionWaiver, error) {
		return c.Stores.Waivers.FindWaiver(ctx, teacherID, tenantID, date, typ)
	})
	if err != nil {
		return nil, unavailable("waivers", err)
	}

	// 6. Bonuses
	bonuses, err := c.Stores.Bonuses.ListBonuses(ctx, teacherID, tenantID, period)
	if err != nil {
		return nil, unavailable("bonuses", err)
	}

	// 7. Payment status
	payment, err := c.Stores.Payments.GetPayment(ctx, tenantID, teacherID, period)
	if err != nil {
		return nil, unavailable("payments", err)
	}
	status := PaymentUnpaid
	if payment != nil {
		status = PaymentPaid
	}

	result := Aggregate(AggregateInput{
		TenantID:      tenantID,
		TeacherID:     teacherID,
		Period:        period,
		BaseSalary:    teacher.BaseSalary,
		Ledger:        ledger,
		Waivers:       waivers,
		Bonuses:       bonuses,
		PaymentStatus: status,
		ConfigSource:  source,
	})
	result.ComputedAt = c.Now().UTC()

	c.Logger.Debug("salary computed",
		zap.String("tenant_id", string(tenantID)),
		zap.String("teacher_id", string(teacherID)),
		zap.String("period", period.String()),
		zap.Int("occurrences", result.Counts.Scheduled),
		zap.String("net", result.NetSalary.String()))
	return result, nil
}

// =============================================================================
// AGGREGATOR
// =============================================================================

// AggregateInput is everything the aggregator needs; no I/O happens past here.
type AggregateInput struct {
	TenantID      generic.TenantID
	TeacherID     generic.TeacherID
	Period        generic.Period
	BaseSalary    decimal.Decimal
	Ledger        []LedgerEntry
	Waivers       []DeductionWaiver
	Bonuses       []QualityBonus
	PaymentStatus PaymentStatus
	ConfigSource  ConfigSource
}

// Aggregate folds the ledger and bonuses into a SalaryResult:
//
//	net = base - lateness.charged - absence.charged + bonuses
func Aggregate(in AggregateInput) *SalaryResult {
	r := &SalaryResult{
		TenantID:      in.TenantID,
		TeacherID:     in.TeacherID,
		Period:        in.Period,
		BaseSalary:    in.BaseSalary,
		Lateness:      zeroTotals(),
		Absence:       zeroTotals(),
		PaymentStatus: in.PaymentStatus,
		Ledger:        in.Ledger,
		Waivers:       in.Waivers,
		ConfigSource:  in.ConfigSource,
	}
	if r.Ledger == nil {
		r.Ledger = []LedgerEntry{}
	}
	if r.Waivers == nil {
		r.Waivers = []DeductionWaiver{}
	}

	for _, e := range in.Ledger {
		r.Counts.Scheduled++
		switch e.Classification {
		case OnTime:
			r.Counts.OnTime++
		case Late:
			r.Counts.Late++
		case Absent:
			r.Counts.Absent++
		}

		totals := &r.Lateness
		if e.Type == DeductionAbsence {
			totals = &r.Absence
		}
		totals.Total = totals.Total.Add(e.Amount)
		totals.Charged = totals.Charged.Add(e.Charged)
		totals.Waived = totals.Waived.Add(e.Waived)
	}

	r.TotalBonus, r.Bonuses = SumBonuses(in.Bonuses, in.Period)
	if r.Bonuses == nil {
		r.Bonuses = []QualityBonus{}
	}
	r.TotalWaived = r.Lateness.Waived.Add(r.Absence.Waived)
	r.NetSalary = in.BaseSalary.
		Sub(r.Lateness.Charged).
		Sub(r.Absence.Charged).
		Add(r.TotalBonus)
	return r
}

func zeroTotals() DeductionTotals {
	return DeductionTotals{Total: decimal.Zero, Charged: decimal.Zero, Waived: decimal.Zero}
}
