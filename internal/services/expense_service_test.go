package services

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/core"
	ledgerlog "ledger/internal/log"
	"ledger/internal/split"
)

func TestCreateExpense_EqualSplit(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewExpenseService(repo, core.StandardDefaults())

	e := personal("alice", "Dinner", core.NewDate(2025, 1, 5), 10000)
	e.SplitBetween = []string{"alice", "bob", "carol"}

	created, err := svc.CreateExpense(ctx, CreateExpenseRequest{Expense: e}, t0)
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, core.PersonalExpense, created.Type)
	assert.Equal(t, core.SplitEqual, created.SplitMethod)
	assert.Equal(t, "alice", created.PaidBy)
	assert.Equal(t, []int64{3334, 3333, 3333}, shareCents(created.SplitAmounts))

	stored, err := repo.GetExpense(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{3334, 3333, 3333}, shareCents(stored.SplitAmounts))
	assert.Equal(t, []string{"alice", "bob", "carol"}, stored.SplitBetween)
}

func TestCreateExpense_PercentageSplit(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewExpenseService(repo, core.StandardDefaults())

	e := personal("alice", "Rent", core.NewDate(2025, 1, 1), 100000)
	e.SplitMethod = core.SplitPercentage

	created, err := svc.CreateExpense(ctx, CreateExpenseRequest{
		Expense: e,
		Weights: []split.Weight{
			{Participant: "alice", Percent: decimal.NewFromInt(60)},
			{Participant: "bob", Percent: decimal.NewFromInt(40)},
		},
	}, t0)
	require.NoError(t, err)
	assert.Equal(t, []int64{60000, 40000}, shareCents(created.SplitAmounts))
	assert.Equal(t, []string{"alice", "bob"}, created.SplitBetween)
}

func TestCreateExpense_RejectsBadInput(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewExpenseService(repo, core.StandardDefaults())

	e := personal("alice", "Dinner", core.NewDate(2025, 1, 5), 10000)
	e.SplitMethod = core.SplitExact
	e.SplitAmounts = []core.Share{{Participant: "alice", Amount: try(4000)}, {Participant: "bob", Amount: try(5000)}}
	_, err := svc.CreateExpense(ctx, CreateExpenseRequest{Expense: e}, t0)
	assert.ErrorIs(t, err, core.ErrAmountMismatch)

	e = personal("alice", " ", core.NewDate(2025, 1, 5), 10000)
	_, err = svc.CreateExpense(ctx, CreateExpenseRequest{Expense: e}, t0)
	assert.ErrorIs(t, err, core.ErrEmptyDescription)
}

func TestCreateExpense_SchedulesRecurrence(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewExpenseService(repo, core.StandardDefaults())

	e := personal("alice", "Gym", core.NewDate(2025, 1, 31), 5000)
	e.IsRecurring = true
	e.Recurrence = core.RecurrencePattern{Frequency: core.Monthly}

	created, err := svc.CreateExpense(ctx, CreateExpenseRequest{Expense: e}, t0)
	require.NoError(t, err)
	assert.True(t, created.IsRecurring)
	assert.Equal(t, 1, created.Recurrence.Interval)
	assert.Equal(t, "2025-02-28", created.Recurrence.NextOccurrence.String())

	stored, err := repo.GetExpense(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "2025-02-28", stored.Recurrence.NextOccurrence.String())
}

func TestCreateExpense_GroupExpense(t *testing.T) {
	repo := newTestRepo(t)
	groups := NewGroupService(repo, core.StandardDefaults())
	svc := NewExpenseService(repo, core.StandardDefaults())

	g, err := groups.CreateGroup(ctx, "Flat", "", "alice", t0)
	require.NoError(t, err)
	_, err = groups.Join(ctx, g.InviteCode, "bob", t0)
	require.NoError(t, err)

	e := core.Expense{
		UserID:      "alice",
		Description: "Groceries",
		Amount:      core.Money{Cents: 10001},
		Date:        core.NewDate(2025, 1, 9),
		GroupID:     g.ID,
	}
	created, err := svc.CreateExpense(ctx, CreateExpenseRequest{Expense: e}, t0)
	require.NoError(t, err)
	assert.Equal(t, core.GroupExpense, created.Type)
	assert.Equal(t, "TRY", created.Amount.Currency)
	assert.Equal(t, []string{"alice", "bob"}, created.SplitBetween)
	assert.Equal(t, []int64{5000, 5001}, shareCents(created.SplitAmounts))

	stored, err := repo.GetGroup(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Stats.TotalExpenses)
	assert.Equal(t, int64(10001), stored.Stats.TotalAmount.Cents)

	require.NoError(t, svc.DeleteExpense(ctx, created.ID, t0.Add(1)))
	stored, err = repo.GetGroup(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.Stats.TotalExpenses)
	assert.Equal(t, int64(0), stored.Stats.TotalAmount.Cents)
	assert.Equal(t, 2, stored.Stats.MemberCount)
}

func TestCreateExpense_GroupRequiresMembers(t *testing.T) {
	repo := newTestRepo(t)
	groups := NewGroupService(repo, core.StandardDefaults())
	svc := NewExpenseService(repo, core.StandardDefaults())

	g, err := groups.CreateGroup(ctx, "Flat", "", "alice", t0)
	require.NoError(t, err)

	e := core.Expense{
		UserID:       "alice",
		Description:  "Taxi",
		Amount:       try(3000),
		Date:         core.NewDate(2025, 1, 9),
		GroupID:      g.ID,
		SplitBetween: []string{"alice", "mallory"},
	}
	_, err = svc.CreateExpense(ctx, CreateExpenseRequest{Expense: e}, t0)
	assert.ErrorIs(t, err, core.ErrMemberNotFound)

	e.SplitBetween = nil
	e.Amount = core.NewMoney(3000, "EUR")
	_, err = svc.CreateExpense(ctx, CreateExpenseRequest{Expense: e}, t0)
	assert.ErrorIs(t, err, core.ErrInvalidCurrency)
}

func TestCreateExpense_ConcurrentGroupExpensesAllCount(t *testing.T) {
	repo := newTestRepo(t)
	groups := NewGroupService(repo, core.StandardDefaults())
	svc := NewExpenseService(repo, core.StandardDefaults())

	g, err := groups.CreateGroup(ctx, "Flat", "", "alice", t0)
	require.NoError(t, err)

	const n = 20
	start := make(chan struct{})
	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := svc.CreateExpense(ctx, CreateExpenseRequest{Expense: core.Expense{
				UserID:  "alice",
				Amount:  try(100),
				Date:    core.NewDate(2025, 1, 9),
				GroupID: g.ID,
			}}, t0)
			errs <- err
		}()
	}
	close(start)
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	stored, err := repo.GetGroup(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, n, stored.Stats.TotalExpenses)
	assert.Equal(t, int64(n*100), stored.Stats.TotalAmount.Cents)
}

func TestCreateExpense_DoesNotUndoConcurrentLeave(t *testing.T) {
	repo := newTestRepo(t)
	groups := NewGroupService(repo, core.StandardDefaults())
	svc := NewExpenseService(repo, core.StandardDefaults())

	g, err := groups.CreateGroup(ctx, "Flat", "", "alice", t0)
	require.NoError(t, err)

	for round := 0; round < 10; round++ {
		_, err := groups.Join(ctx, g.InviteCode, "bob", t0)
		require.NoError(t, err)

		start := make(chan struct{})
		var wg sync.WaitGroup
		var leaveErr, createErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			<-start
			_, leaveErr = groups.Leave(ctx, g.ID, "bob", t0)
		}()
		go func() {
			defer wg.Done()
			<-start
			_, createErr = svc.CreateExpense(ctx, CreateExpenseRequest{Expense: core.Expense{
				UserID:  "alice",
				Amount:  try(200),
				Date:    core.NewDate(2025, 1, 9),
				GroupID: g.ID,
			}}, t0)
		}()
		close(start)
		wg.Wait()

		require.NoError(t, leaveErr)
		if createErr != nil {
			// The expense may lose to the leave and see bob gone.
			require.ErrorIs(t, createErr, core.ErrMemberNotFound)
		}

		stored, err := repo.GetGroup(ctx, g.ID)
		require.NoError(t, err)
		assert.False(t, isActive(stored, "bob"), "round %d: bob is active after leaving", round)
		assert.Equal(t, 1, stored.Stats.MemberCount)
	}
}

func isActive(g core.Group, user string) bool {
	for _, m := range g.Members {
		if m.UserID == user {
			return m.IsActive
		}
	}
	return false
}

func TestDeleteExpense_NotFound(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewExpenseService(repo, core.StandardDefaults())

	assert.Error(t, svc.DeleteExpense(ctx, "missing", t0))
}

func TestCreateExpense_LogsThroughContextLogger(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewExpenseService(repo, core.StandardDefaults())

	var buf bytes.Buffer
	logger := ledgerlog.New(ledgerlog.Config{
		Handler: slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}),
	})
	logCtx := ledgerlog.NewContext(ctx, logger)

	created, err := svc.CreateExpense(logCtx, CreateExpenseRequest{
		Expense: personal("alice", "Coffee", core.NewDate(2025, 1, 5), 450),
	}, t0)
	require.NoError(t, err)

	var line string
	for _, l := range strings.Split(buf.String(), "\n") {
		if strings.Contains(l, "Expense created") {
			line = l
		}
	}
	require.NotEmpty(t, line, "no creation record in %q", buf.String())
	assert.Contains(t, line, "component=expense")
	assert.Contains(t, line, "operation=create")
	assert.Contains(t, line, "expense_id="+created.ID)
	assert.Contains(t, line, "amount_cents=450")
	assert.Equal(t, 1, strings.Count(line, "component="))
}
