/*
deduction.go - Deduction configuration and its single default table

PURPOSE:
  A tenant configures how much a late or missed class costs. Every default
  lives in DefaultDeductionConfig; ResolveDeductionConfig is the only place
  that decides between the tenant's row and the defaults.

DEFAULT TABLE:
  Lateness tiers (minutes late, inclusive lower bound -> amount):
    0  -> 0
    5  -> 10
    10 -> 20
  Absence: 30 per missed class.

TIER LOOKUP:
  The tier with the highest threshold not exceeding the delay wins.
  Beyond the last threshold the last tier applies (no unbounded growth).
  Below the first threshold the deduction is zero.
  Validate rejects tables whose amounts decrease, so the lookup is
  monotonic in the delay.

EFFECTIVE WINDOWS:
  A tenant may hold several versions. DeductionRules picks one per
  occurrence date, so a period crossing effective_from or effective_to
  charges each class under the rules of its own day.
*/
package payroll

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/generic"
)

// LatenessTier applies Amount from MinMinutes of delay upwards.
type LatenessTier struct {
	MinMinutes int             `json:"min_minutes"`
	Amount     decimal.Decimal `json:"amount"`
}

// DeductionConfig is one tenant's deduction rules for an effective window.
type DeductionConfig struct {
	TenantID      generic.TenantID   `json:"tenant_id"`
	EffectiveFrom generic.TimePoint  `json:"effective_from"`
	EffectiveTo   *generic.TimePoint `json:"effective_to,omitempty"`
	LatenessTiers []LatenessTier     `json:"lateness_tiers"`
	AbsenceAmount decimal.Decimal    `json:"absence_amount"`
}

// DefaultAbsenceAmount is charged per missed class when a tenant has no config.
var DefaultAbsenceAmount = decimal.NewFromInt(30)

// DefaultDeductionConfig returns the documented default table.
func DefaultDeductionConfig() DeductionConfig {
	return DeductionConfig{
		LatenessTiers: []LatenessTier{
			{MinMinutes: 0, Amount: decimal.Zero},
			{MinMinutes: 5, Amount: decimal.NewFromInt(10)},
			{MinMinutes: 10, Amount: decimal.NewFromInt(20)},
		},
		AbsenceAmount: DefaultAbsenceAmount,
	}
}

// ResolveDeductionConfig picks the config that applies on asOf: the
// tenant's own when present and effective, otherwise the defaults.
func ResolveDeductionConfig(tenantID generic.TenantID, cfg *DeductionConfig, asOf generic.TimePoint) (DeductionConfig, ConfigSource) {
	if cfg == nil || !cfg.EffectiveOn(asOf) {
		def := DefaultDeductionConfig()
		def.TenantID = tenantID
		return def, ConfigFromDefault
	}
	resolved := *cfg
	resolved.LatenessTiers = sortedTiers(cfg.LatenessTiers)
	return resolved, ConfigFromTenant
}

// DeductionRules holds every config version overlapping a period and
// resolves the one that applies on each date.
type DeductionRules struct {
	tenantID generic.TenantID
	versions []DeductionConfig
}

// NewDeductionRules builds rules from stored versions. On equal
// EffectiveFrom the later version in the slice wins.
func NewDeductionRules(tenantID generic.TenantID, versions []DeductionConfig) DeductionRules {
	sorted := append([]DeductionConfig(nil), versions...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].EffectiveFrom.Before(sorted[j].EffectiveFrom)
	})
	return DeductionRules{tenantID: tenantID, versions: sorted}
}

// On returns the config effective on date, or the defaults.
func (r DeductionRules) On(date generic.TimePoint) (DeductionConfig, ConfigSource) {
	var best *DeductionConfig
	for i := range r.versions {
		if r.versions[i].EffectiveOn(date) {
			best = &r.versions[i]
		}
	}
	return ResolveDeductionConfig(r.tenantID, best, date)
}

// Source summarizes the sources of a ledger. An empty ledger reports the
// source effective on fallback.
func (r DeductionRules) Source(ledger []LedgerEntry, fallback generic.TimePoint) ConfigSource {
	if len(ledger) == 0 {
		_, src := r.On(fallback)
		return src
	}
	src := ledger[0].ConfigSource
	for _, e := range ledger[1:] {
		if e.ConfigSource != src {
			return ConfigMixed
		}
	}
	return src
}

// EffectiveOn reports whether the config's window covers date. Both ends
// are inclusive.
func (c DeductionConfig) EffectiveOn(date generic.TimePoint) bool {
	if !c.EffectiveFrom.IsZero() && date.Before(c.EffectiveFrom) {
		return false
	}
	return c.EffectiveTo == nil || date.BeforeOrEqual(*c.EffectiveTo)
}

// Overlaps reports whether the config is effective on any day of period.
func (c DeductionConfig) Overlaps(period generic.Period) bool {
	if !c.EffectiveFrom.IsZero() && !c.EffectiveFrom.Before(period.End) {
		return false
	}
	return c.EffectiveTo == nil || c.EffectiveTo.AfterOrEqual(period.Start)
}

// Validate checks the table is usable and monotonic.
func (c DeductionConfig) Validate() error {
	if c.AbsenceAmount.IsNegative() {
		return fmt.Errorf("absence amount must not be negative")
	}
	if c.EffectiveTo != nil && !c.EffectiveFrom.IsZero() && c.EffectiveTo.Before(c.EffectiveFrom) {
		return fmt.Errorf("effective_to %s is before effective_from %s", c.EffectiveTo, c.EffectiveFrom)
	}
	tiers := sortedTiers(c.LatenessTiers)
	for i, t := range tiers {
		if t.MinMinutes < 0 {
			return fmt.Errorf("tier %d: min_minutes must not be negative", i)
		}
		if t.Amount.IsNegative() {
			return fmt.Errorf("tier %d: amount must not be negative", i)
		}
		if i == 0 {
			continue
		}
		prev := tiers[i-1]
		if prev.MinMinutes == t.MinMinutes {
			return fmt.Errorf("duplicate tier threshold %d", t.MinMinutes)
		}
		if t.Amount.LessThan(prev.Amount) {
			return fmt.Errorf("tier at %d minutes (%s) is lower than tier at %d minutes (%s)",
				t.MinMinutes, t.Amount, prev.MinMinutes, prev.Amount)
		}
	}
	return nil
}

// LatenessDeduction returns the amount charged for delayMinutes of delay.
func (c DeductionConfig) LatenessDeduction(delayMinutes int) decimal.Decimal {
	if delayMinutes <= 0 {
		return decimal.Zero
	}
	amount := decimal.Zero
	for _, t := range c.LatenessTiers {
		if delayMinutes < t.MinMinutes {
			break
		}
		amount = t.Amount
	}
	return amount
}

func sortedTiers(tiers []LatenessTier) []LatenessTier {
	out := append([]LatenessTier(nil), tiers...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].MinMinutes < out[j].MinMinutes })
	return out
}
