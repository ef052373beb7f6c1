package group

import (
	"fmt"
	"time"

	"ledger/internal/core"
)

// RecordExpense folds one new expense into the group's stats.
func RecordExpense(g core.Group, amount core.Money, at time.Time) (core.Group, error) {
	total := g.Stats.TotalAmount
	if total.Currency == "" {
		total = core.Zero(g.Settings.Currency)
	}
	sum, err := total.Add(amount)
	if err != nil {
		return g, fmt.Errorf("record group expense: %w", err)
	}
	g.Stats.TotalAmount = sum
	g.Stats.TotalExpenses++
	if at.After(g.Stats.LastActivity) {
		g.Stats.LastActivity = at
	}
	return g, nil
}

// RecomputeStats rebuilds the stats from the group's expenses. Deleted
// expenses and expenses of other groups are ignored.
func RecomputeStats(g core.Group, expenses []core.Expense) (core.Group, error) {
	stats := core.GroupStats{
		MemberCount: MemberCount(g),
		TotalAmount: core.Zero(g.Settings.Currency),
	}
	for _, e := range expenses {
		if !e.Counts() || e.GroupID != g.ID {
			continue
		}
		sum, err := stats.TotalAmount.Add(e.Amount)
		if err != nil {
			return g, fmt.Errorf("recompute group stats: %w", err)
		}
		stats.TotalAmount = sum
		stats.TotalExpenses++
		if e.CreatedAt.After(stats.LastActivity) {
			stats.LastActivity = e.CreatedAt
		}
	}
	g.Stats = stats
	return g, nil
}
