package payroll

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// WAIVER / OVERRIDE LAYER
// =============================================================================

// WaiverLookup finds the waiver for one deduction key.
type WaiverLookup func(ctx context.Context, date generic.TimePoint, typ DeductionType) (*DeductionWaiver, error)

// ApplyWaivers moves waived amounts from Charged to Waived. Each distinct
// (date, type) key with a non-zero deduction is looked up once; a waiver
// applies to every entry with exactly that key and to nothing else.
//
// The ledger is updated in place. Returned waivers are those that matched
// at least one entry, in ledger order. Running it twice over the same
// ledger changes nothing the second time.
func ApplyWaivers(ctx context.Context, ledger []LedgerEntry, lookup WaiverLookup) ([]DeductionWaiver, error) {
	found := make(map[waiverKey]*DeductionWaiver)
	var applied []DeductionWaiver

	for i := range ledger {
		entry := &ledger[i]
		if !entry.Amount.IsPositive() {
			continue
		}
		k := waiverKey{date: entry.Date, typ: entry.Type}
		w, seen := found[k]
		if !seen {
			var err error
			w, err = lookup(ctx, entry.Date, entry.Type)
			if err != nil {
				return nil, err
			}
			if w != nil && (!w.Date.Equal(entry.Date) || w.Type != entry.Type) {
				w = nil
			}
			found[k] = w
			if w != nil {
				applied = append(applied, *w)
			}
		}
		if w == nil || entry.Waiver != nil {
			continue
		}
		entry.Waived = entry.Amount
		entry.Charged = decimal.Zero
		entry.Waiver = &WaiverRef{ID: w.ID, Reason: w.Reason, IssuedBy: w.IssuedBy}
	}
	return applied, nil
}
