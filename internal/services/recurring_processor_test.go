package services

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/budget"
	"ledger/internal/core"
	"ledger/internal/metrics"
)

func newRecurringFixture(t *testing.T) (*ExpenseService, *RecurringProcessor, *metrics.Metrics) {
	repo := newTestRepo(t)
	m := metrics.New()
	expenses := NewExpenseService(repo, core.StandardDefaults())
	return expenses, NewRecurringProcessor(repo, expenses, m), m
}

func yearScope(user string) budget.Scope {
	return budget.Scope{UserID: user, Start: core.NewDate(2025, 1, 1), End: core.NewDate(2025, 12, 31)}
}

func TestProcessDue_CatchesUpMonthEnd(t *testing.T) {
	expenses, proc, m := newRecurringFixture(t)

	e := personal("alice", "Rent", core.NewDate(2025, 1, 31), 150000)
	e.IsRecurring = true
	e.Recurrence = core.RecurrencePattern{Frequency: core.Monthly, Interval: 1}
	tmpl, err := expenses.CreateExpense(ctx, CreateExpenseRequest{Expense: e}, t0)
	require.NoError(t, err)

	now := time.Date(2025, 4, 30, 8, 0, 0, 0, time.UTC)
	n, err := proc.ProcessDue(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.RecurrencesMaterialized))

	all, err := proc.storage.ListExpensesForScope(ctx, yearScope("alice"))
	require.NoError(t, err)
	var dates []string
	for _, x := range all {
		if x.TemplateID == tmpl.ID {
			dates = append(dates, x.Date.String())
			assert.False(t, x.IsRecurring)
			assert.Equal(t, int64(150000), x.Amount.Cents)
		}
	}
	assert.Equal(t, []string{"2025-02-28", "2025-03-31", "2025-04-30"}, dates)

	stored, err := proc.storage.GetExpense(ctx, tmpl.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsRecurring)
	assert.Equal(t, "2025-05-31", stored.Recurrence.NextOccurrence.String())

	n, err = proc.ProcessDue(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestProcessDue_RetiresAtEndDate(t *testing.T) {
	expenses, proc, m := newRecurringFixture(t)

	e := personal("alice", "Lessons", core.NewDate(2025, 1, 1), 2000)
	e.IsRecurring = true
	e.Recurrence = core.RecurrencePattern{
		Frequency: core.Weekly,
		Interval:  1,
		EndDate:   core.NewDate(2025, 1, 20),
	}
	tmpl, err := expenses.CreateExpense(ctx, CreateExpenseRequest{Expense: e}, t0)
	require.NoError(t, err)

	n, err := proc.ProcessDue(ctx, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RecurrencesRetired))

	stored, err := proc.storage.GetExpense(ctx, tmpl.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsRecurring)
	assert.True(t, stored.Recurrence.NextOccurrence.IsEmpty())
}

func TestProcessDue_DoesNotDuplicateOccurrences(t *testing.T) {
	expenses, proc, _ := newRecurringFixture(t)

	e := personal("alice", "Coffee", core.NewDate(2025, 1, 1), 300)
	e.IsRecurring = true
	e.Recurrence = core.RecurrencePattern{Frequency: core.Daily, Interval: 1}
	tmpl, err := expenses.CreateExpense(ctx, CreateExpenseRequest{Expense: e}, t0)
	require.NoError(t, err)

	now := time.Date(2025, 1, 4, 12, 0, 0, 0, time.UTC)
	n, err := proc.ProcessDue(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// Rewind the template as if the previous pass died before advancing it.
	require.NoError(t, proc.storage.UpdateRecurrence(ctx, tmpl.ID, true, core.NewDate(2025, 1, 2), now))

	n, err = proc.ProcessDue(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	all, err := proc.storage.ListExpensesForScope(ctx, yearScope("alice"))
	require.NoError(t, err)
	assert.Len(t, all, 4)

	stored, err := proc.storage.GetExpense(ctx, tmpl.ID)
	require.NoError(t, err)
	assert.Equal(t, "2025-01-05", stored.Recurrence.NextOccurrence.String())
}

func TestProcessDue_GroupOccurrenceUpdatesStats(t *testing.T) {
	expenses, proc, _ := newRecurringFixture(t)
	groups := NewGroupService(proc.storage, core.StandardDefaults())

	g, err := groups.CreateGroup(ctx, "Flat", "", "alice", t0)
	require.NoError(t, err)
	_, err = groups.Join(ctx, g.InviteCode, "bob", t0)
	require.NoError(t, err)

	e := core.Expense{
		UserID:      "alice",
		Description: "Internet",
		Amount:      try(4000),
		Date:        core.NewDate(2025, 1, 1),
		GroupID:     g.ID,
		IsRecurring: true,
		Recurrence:  core.RecurrencePattern{Frequency: core.Monthly},
	}
	_, err = expenses.CreateExpense(ctx, CreateExpenseRequest{Expense: e}, t0)
	require.NoError(t, err)

	n, err := proc.ProcessDue(ctx, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	stored, err := proc.storage.GetGroup(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.Stats.TotalExpenses)
	assert.Equal(t, int64(12000), stored.Stats.TotalAmount.Cents)
}

func TestProcessDue_Uninitialized(t *testing.T) {
	proc := &RecurringProcessor{}
	_, err := proc.ProcessDue(ctx, t0)
	assert.Error(t, err)
}
