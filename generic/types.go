/*
Package generic provides the domain-agnostic primitives of the payroll engine.

PURPOSE:
  Identifiers, calendar dates, periods, money helpers, the error taxonomy,
  and the boundary types (Principal, TenantScope) shared by every other
  package. Nothing in here knows about schedules, deliveries or waivers.

KEY CONCEPTS IN THIS FILE (types.go):
  - TenantID / TeacherID / StudentID: type-safe identifiers
  - Money helpers over decimal.Decimal (never float64 for amounts)

DESIGN PRINCIPLES:
  1. Precision: all amounts are decimal.Decimal
  2. Type Safety: distinct ID types prevent mixing tenant and teacher IDs
  3. Determinism: nothing here reads the clock or global state

SEE ALSO:
  - time.go: TimePoint (calendar date) and ClockTime (local slot time)
  - period.go: half-open date ranges [from, to)
  - errors.go: sentinel and structured errors
*/
package generic

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type TenantID string
type TeacherID string
type StudentID string

// =============================================================================
// MONEY - decimal helpers
// =============================================================================

// Sum adds all values. The sum of nothing is zero.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// ParseMoney parses a non-negative decimal amount.
func ParseMoney(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("invalid amount %q: must not be negative", s)
	}
	return d, nil
}
