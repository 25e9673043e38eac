/*
Package factory provides JSON to Go deduction config conversion.

PURPOSE:
  Converts JSON deduction tables into payroll.DeductionConfig. Tenants edit
  their lateness tiers and absence amount without code changes; the admin
  API stores whatever this factory accepts.

JSON SCHEMA:
  {
    "lateness_tiers": [
      {"min_minutes": 0,  "amount": "0"},
      {"min_minutes": 5,  "amount": "10"},
      {"min_minutes": 10, "amount": "20"}
    ],
    "absence_amount": "30",
    "effective_from": "2025-01-01",
    "effective_to": null
  }

  Amounts are decimal strings (numbers are accepted too). Omitted
  lateness_tiers or absence_amount take the default table's values.

USAGE:
  f := NewDeductionFactory()
  cfg, err := f.ParseDeductionConfig("tenant-1", jsonString)
  err = store.SaveDeductionConfig(ctx, *cfg)

SEE ALSO:
  - payroll/deduction.go: DeductionConfig and the default table
  - api/handlers.go: PUT /api/deduction-config
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// DeductionConfigJSON is the JSON representation of a deduction table.
type DeductionConfigJSON struct {
	LatenessTiers []TierJSON       `json:"lateness_tiers,omitempty"`
	AbsenceAmount *decimal.Decimal `json:"absence_amount,omitempty"`
	EffectiveFrom string           `json:"effective_from"`
	EffectiveTo   *string          `json:"effective_to,omitempty"`
}

// TierJSON is one lateness tier.
type TierJSON struct {
	MinMinutes int             `json:"min_minutes"`
	Amount     decimal.Decimal `json:"amount"`
}

// =============================================================================
// DEDUCTION FACTORY
// =============================================================================

// DeductionFactory converts JSON deduction tables to payroll configs.
type DeductionFactory struct{}

// NewDeductionFactory creates a new deduction factory.
func NewDeductionFactory() *DeductionFactory {
	return &DeductionFactory{}
}

// ParseDeductionConfig parses a JSON string into a validated config.
func (f *DeductionFactory) ParseDeductionConfig(tenantID generic.TenantID, jsonStr string) (*payroll.DeductionConfig, error) {
	var dj DeductionConfigJSON
	if err := json.Unmarshal([]byte(jsonStr), &dj); err != nil {
		return nil, fmt.Errorf("failed to parse deduction config JSON: %w", err)
	}
	return f.FromJSON(tenantID, dj)
}

// FromJSON converts DeductionConfigJSON to a validated payroll.DeductionConfig.
func (f *DeductionFactory) FromJSON(tenantID generic.TenantID, dj DeductionConfigJSON) (*payroll.DeductionConfig, error) {
	defaults := payroll.DefaultDeductionConfig()
	cfg := &payroll.DeductionConfig{
		TenantID:      tenantID,
		LatenessTiers: defaults.LatenessTiers,
		AbsenceAmount: defaults.AbsenceAmount,
	}

	if dj.EffectiveFrom == "" {
		return nil, fmt.Errorf("effective_from is required")
	}
	from, err := generic.ParseDate(dj.EffectiveFrom)
	if err != nil {
		return nil, fmt.Errorf("invalid effective_from %q: %w", dj.EffectiveFrom, err)
	}
	cfg.EffectiveFrom = from

	if dj.EffectiveTo != nil && *dj.EffectiveTo != "" {
		to, err := generic.ParseDate(*dj.EffectiveTo)
		if err != nil {
			return nil, fmt.Errorf("invalid effective_to %q: %w", *dj.EffectiveTo, err)
		}
		cfg.EffectiveTo = &to
	}

	if len(dj.LatenessTiers) > 0 {
		cfg.LatenessTiers = make([]payroll.LatenessTier, 0, len(dj.LatenessTiers))
		for _, t := range dj.LatenessTiers {
			cfg.LatenessTiers = append(cfg.LatenessTiers, payroll.LatenessTier{MinMinutes: t.MinMinutes, Amount: t.Amount})
		}
	}
	if dj.AbsenceAmount != nil {
		cfg.AbsenceAmount = *dj.AbsenceAmount
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid deduction config: %w", err)
	}
	return cfg, nil
}

// ToJSON renders a config back into its JSON form.
func (f *DeductionFactory) ToJSON(cfg payroll.DeductionConfig) DeductionConfigJSON {
	dj := DeductionConfigJSON{
		EffectiveFrom: cfg.EffectiveFrom.String(),
	}
	absence := cfg.AbsenceAmount
	dj.AbsenceAmount = &absence
	for _, t := range cfg.LatenessTiers {
		dj.LatenessTiers = append(dj.LatenessTiers, TierJSON{MinMinutes: t.MinMinutes, Amount: t.Amount})
	}
	if cfg.EffectiveTo != nil {
		to := cfg.EffectiveTo.String()
		dj.EffectiveTo = &to
	}
	return dj
}

// =============================================================================
// PRESETS
// =============================================================================

// StrictDeductionJSON charges from the first minute and doubles absences.
func StrictDeductionJSON(effectiveFrom string) string {
	return fmt.Sprintf(`{
		"lateness_tiers": [
			{"min_minutes": 1,  "amount": "10"},
			{"min_minutes": 5,  "amount": "20"},
			{"min_minutes": 15, "amount": "40"}
		],
		"absence_amount": "60",
		"effective_from": %q
	}`, effectiveFrom)
}

// LenientDeductionJSON tolerates ten minutes and halves absences.
func LenientDeductionJSON(effectiveFrom string) string {
	return fmt.Sprintf(`{
		"lateness_tiers": [
			{"min_minutes": 0,  "amount": "0"},
			{"min_minutes": 10, "amount": "5"},
			{"min_minutes": 20, "amount": "15"}
		],
		"absence_amount": "15",
		"effective_from": %q
	}`, effectiveFrom)
}
