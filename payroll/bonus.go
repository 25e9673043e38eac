package payroll

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/generic"
)

// SumBonuses adds every bonus whose week starts inside the period.
// A week counts in full once its start is in range; no proration.
// The second return value lists the counted bonuses by week start.
func SumBonuses(bonuses []QualityBonus, period generic.Period) (decimal.Decimal, []QualityBonus) {
	total := decimal.Zero
	var counted []QualityBonus
	for _, b := range bonuses {
		if !period.Contains(b.WeekStart) {
			continue
		}
		total = total.Add(b.Amount)
		counted = append(counted, b)
	}
	sort.SliceStable(counted, func(i, j int) bool {
		if !counted[i].WeekStart.Equal(counted[j].WeekStart) {
			return counted[i].WeekStart.Before(counted[j].WeekStart)
		}
		return counted[i].ID < counted[j].ID
	})
	return total, counted
}
