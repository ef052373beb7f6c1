package budget

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/core"
)

func try(cents int64) core.Money { return core.NewMoney(cents, "TRY") }

func januaryBudget(amount int64) core.Budget {
	return core.Budget{
		ID:        "b1",
		UserID:    "u1",
		Amount:    try(amount),
		Type:      core.PersonalBudget,
		Period:    core.PeriodMonthly,
		StartDate: core.NewDate(2025, 1, 1),
		EndDate:   core.NewDate(2025, 1, 31),
		Settings:  core.BudgetSettings{AlertThreshold: 80},
		Status:    core.BudgetActive,
	}
}

func at(y, m, d, h int) time.Time { return time.Date(y, time.Month(m), d, h, 0, 0, 0, time.UTC) }

func TestRecomputeStats(t *testing.T) {
	now := at(2025, 1, 10, 12)
	got, err := Recompute(januaryBudget(100000), []core.Money{try(12000), try(8050)}, now)
	require.NoError(t, err)

	assert.Equal(t, try(20050), got.Stats.SpentAmount)
	assert.Equal(t, try(79950), got.Stats.RemainingAmount)
	assert.True(t, got.Stats.PercentageUsed.Equal(decimal.RequireFromString("20.05")), got.Stats.PercentageUsed.String())
	// 21 days 12 hours left counting January 31 rounds up to 22.
	assert.Equal(t, 22, got.Stats.DaysRemaining)
	// 9.5 days elapsed rounds up to 10: 200.50 / 10.
	assert.Equal(t, try(2005), got.Stats.AverageDailySpent)
	assert.Equal(t, now, got.Stats.LastUpdated)
	assert.Equal(t, core.BudgetActive, got.Status)
}

func TestRecomputeIsIdempotent(t *testing.T) {
	now := at(2025, 1, 20, 8)
	amounts := []core.Money{try(50000), try(45000), try(10000)}

	first, err := Recompute(januaryBudget(100000), amounts, now)
	require.NoError(t, err)
	second, err := Recompute(first, amounts, now)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, core.BudgetExceeded, second.Status)
}

func TestRecomputeOverspend(t *testing.T) {
	b := januaryBudget(20000)
	got, err := Recompute(b, []core.Money{try(25000)}, at(2025, 1, 15, 0))
	require.NoError(t, err)

	assert.True(t, got.Stats.PercentageUsed.Equal(decimal.NewFromInt(125)))
	assert.True(t, got.Stats.RemainingAmount.IsZero())
	assert.Equal(t, core.BudgetExceeded, got.Status)
}

func TestRecomputeBeforeStart(t *testing.T) {
	got, err := Recompute(januaryBudget(10000), nil, at(2024, 12, 20, 0))
	require.NoError(t, err)

	assert.True(t, got.Stats.SpentAmount.IsZero())
	assert.True(t, got.Stats.AverageDailySpent.IsZero())
	assert.True(t, got.Stats.PercentageUsed.IsZero())
	assert.Equal(t, 43, got.Stats.DaysRemaining)
	assert.Equal(t, core.BudgetActive, got.Status)
}

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		name    string
		current core.BudgetStatus
		spent   int64
		now     time.Time
		want    core.BudgetStatus
	}{
		{"under budget in range", core.BudgetActive, 5000, at(2025, 1, 10, 0), core.BudgetActive},
		{"at budget in range", core.BudgetActive, 10000, at(2025, 1, 10, 0), core.BudgetActive},
		{"over budget in range", core.BudgetActive, 10001, at(2025, 1, 10, 0), core.BudgetExceeded},
		{"exceeded flips back", core.BudgetExceeded, 9000, at(2025, 1, 10, 0), core.BudgetActive},
		{"last day is still in range", core.BudgetActive, 9000, at(2025, 1, 31, 23), core.BudgetActive},
		{"period over under budget", core.BudgetActive, 9000, at(2025, 2, 1, 0), core.BudgetCompleted},
		{"period over over budget", core.BudgetActive, 11000, at(2025, 2, 1, 0), core.BudgetExceeded},
		{"paused stays paused", core.BudgetPaused, 50000, at(2025, 2, 1, 0), core.BudgetPaused},
		{"cancelled stays cancelled", core.BudgetCancelled, 0, at(2025, 1, 10, 0), core.BudgetCancelled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := januaryBudget(10000)
			b.Status = tt.current
			got, err := Recompute(b, []core.Money{try(tt.spent)}, tt.now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Status)
		})
	}
}

func TestRecomputeErrors(t *testing.T) {
	b := januaryBudget(10000)
	b.EndDate = b.StartDate
	_, err := Recompute(b, nil, at(2025, 1, 1, 0))
	assert.ErrorIs(t, err, core.ErrInvalidDateRange)

	b = januaryBudget(0)
	_, err = Recompute(b, nil, at(2025, 1, 1, 0))
	assert.ErrorIs(t, err, core.ErrInvalidAmount)

	b = januaryBudget(10000)
	_, err = Recompute(b, []core.Money{core.NewMoney(100, "USD")}, at(2025, 1, 1, 0))
	assert.ErrorIs(t, err, core.ErrInvalidCurrency)
}

func TestPercentageUsedAtAlertBoundary(t *testing.T) {
	b, err := Recompute(januaryBudget(2500000), []core.Money{try(1999900)}, at(2025, 1, 20, 0))
	require.NoError(t, err)
	assert.Equal(t, "80.00", b.Stats.PercentageUsed.StringFixed(2))
	assert.False(t, ShouldAlert(b))

	b, err = Recompute(januaryBudget(2500000), []core.Money{try(1999900), try(100)}, at(2025, 1, 20, 0))
	require.NoError(t, err)
	assert.True(t, ShouldAlert(b))
}

func TestRecomputeLastDayCountsAsRemaining(t *testing.T) {
	b := januaryBudget(10000)
	lastDay := core.Expense{
		UserID:    b.UserID,
		Amount:    try(4000),
		Date:      b.EndDate,
		Lifecycle: core.ActiveLifecycle(),
	}
	require.True(t, ScopeOf(b).Matches(lastDay))

	got, err := Recompute(b, []core.Money{lastDay.Amount}, at(2025, 1, 31, 9))
	require.NoError(t, err)
	assert.Equal(t, 1, got.Stats.DaysRemaining)
	assert.Equal(t, core.BudgetActive, got.Status)

	got, err = Recompute(b, []core.Money{lastDay.Amount}, at(2025, 2, 1, 0))
	require.NoError(t, err)
	assert.Equal(t, 0, got.Stats.DaysRemaining)
	assert.Equal(t, core.BudgetCompleted, got.Status)
}
