package budget

import (
	"github.com/shopspring/decimal"

	"ledger/internal/core"
)

// ShouldAlert reports whether an active budget has reached its alert
// threshold. The comparison is inclusive and uses the exact spent and budget
// amounts, not the rounded Stats.PercentageUsed.
func ShouldAlert(b core.Budget) bool {
	if b.Status != core.BudgetActive {
		return false
	}
	// spent/amount >= threshold/100, cross-multiplied to stay exact.
	spent := decimal.NewFromInt(b.Stats.SpentAmount.Cents).Mul(hundred)
	limit := decimal.NewFromInt(int64(b.Settings.AlertThreshold)).Mul(decimal.NewFromInt(b.Amount.Cents))
	return spent.GreaterThanOrEqual(limit)
}

// CrossedThreshold is true only on the recompute that moves a budget into the
// alerting state, so a collaborator can notify once instead of on every pass.
func CrossedThreshold(prev, next core.Budget) bool {
	return !ShouldAlert(prev) && ShouldAlert(next)
}
