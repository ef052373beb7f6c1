// Package budget derives budget statistics and status from the expenses that
// fall inside a budget's scope.
//
// Recompute is a pure function of the budget, the matching expense amounts
// and the supplied time. Running it twice with the same inputs yields the same
// budget.
package budget

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
)

const day = 24 * time.Hour

var hundred = decimal.NewFromInt(100)

// Recompute refreshes b.Stats from amounts and derives b.Status.
// Paused and cancelled budgets keep their status; their stats are still
// refreshed.
func Recompute(b core.Budget, amounts []core.Money, now time.Time) (core.Budget, error) {
	if err := b.Amount.Validate(); err != nil {
		return b, err
	}
	if !b.EndDate.After(b.StartDate.Time) {
		return b, core.ErrInvalidDateRange
	}

	spent, err := core.Sum(b.Amount.Currency, amounts)
	if err != nil {
		return b, fmt.Errorf("sum budget expenses: %w", err)
	}

	remaining := core.Zero(b.Amount.Currency)
	if spent.Cents < b.Amount.Cents {
		remaining.Cents = b.Amount.Cents - spent.Cents
	}

	avg := core.Zero(b.Amount.Currency)
	elapsed := ceilDays(now.Sub(b.StartDate.Time))
	if elapsed > 0 {
		avg = core.MoneyFromDecimal(spent.Decimal().Div(decimal.NewFromInt(int64(elapsed))), b.Amount.Currency)
	}

	b.Stats = core.BudgetStats{
		SpentAmount:       spent,
		RemainingAmount:   remaining,
		PercentageUsed:    PercentageUsed(spent, b.Amount),
		DaysRemaining:     ceilDays(periodEnd(b.EndDate).Sub(now)),
		AverageDailySpent: avg,
		LastUpdated:       now,
	}
	b.Status = DeriveStatus(b.Status, spent, b.Amount, b.EndDate, now)
	return b, nil
}

// PercentageUsed returns 100*spent/amount rounded to two places for display
// and storage. Threshold checks use ShouldAlert, which compares exactly.
// amount must be positive. Values above 100 are valid and mean overspending.
func PercentageUsed(spent, amount core.Money) decimal.Decimal {
	return core.Round2(spent.Decimal().Mul(hundred).Div(amount.Decimal()))
}

// DeriveStatus applies the status rule for one recompute pass.
func DeriveStatus(current core.BudgetStatus, spent, amount core.Money, end core.Date, now time.Time) core.BudgetStatus {
	if current.Sticky() {
		return current
	}
	over := spent.Cents > amount.Cents
	ended := !now.Before(periodEnd(end))
	switch {
	case ended && over:
		return core.BudgetExceeded
	case ended:
		return core.BudgetCompleted
	case over:
		return core.BudgetExceeded
	default:
		return core.BudgetActive
	}
}

// periodEnd is the first instant after the end date. The end date is a whole
// day that still belongs to the budget, matching Scope.Matches.
func periodEnd(end core.Date) time.Time {
	return end.Time.Add(day)
}

// ceilDays rounds d up to whole days, never below zero.
func ceilDays(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + day - 1) / day)
}
