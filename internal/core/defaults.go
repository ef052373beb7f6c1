package core

import (
	"errors"
	"fmt"
	"time"
)

// Defaults carries the values applied when a caller leaves a field unset.
// There is no package-level mutable state: constructors take Defaults
// explicitly and services receive them from configuration.
type Defaults struct {
	Currency       string
	SplitMethod    SplitMethod
	AlertThreshold int
	BudgetPeriod   BudgetPeriod
}

// StandardDefaults returns TRY, equal split, 80% alerts and monthly budgets.
func StandardDefaults() Defaults {
	return Defaults{
		Currency:       "TRY",
		SplitMethod:    SplitEqual,
		AlertThreshold: 80,
		BudgetPeriod:   PeriodMonthly,
	}
}

func (d Defaults) Validate() error {
	if err := ValidateCurrency(d.Currency); err != nil {
		return err
	}
	if !d.SplitMethod.Valid() {
		return fmt.Errorf("invalid default split method %q", d.SplitMethod)
	}
	if d.AlertThreshold < 0 || d.AlertThreshold > 100 {
		return fmt.Errorf("default alert threshold %d out of range [0,100]", d.AlertThreshold)
	}
	switch d.BudgetPeriod {
	case PeriodWeekly, PeriodMonthly, PeriodQuarterly, PeriodYearly, PeriodCustom:
	default:
		return fmt.Errorf("invalid default budget period %q", d.BudgetPeriod)
	}
	return nil
}

// NewExpense fills currency, type, split method and lifecycle from d where
// e leaves them empty. It does not validate the result.
func NewExpense(e Expense, d Defaults, now time.Time) Expense {
	if e.Amount.Currency == "" {
		e.Amount.Currency = d.Currency
	}
	if e.Type == "" {
		e.Type = PersonalExpense
		if e.GroupID != "" {
			e.Type = GroupExpense
		}
	}
	if e.SplitMethod == "" {
		e.SplitMethod = d.SplitMethod
	}
	if e.PaidBy == "" {
		e.PaidBy = e.UserID
	}
	if e.Lifecycle.State == "" {
		e.Lifecycle = ActiveLifecycle()
	}
	if e.IsRecurring && e.Recurrence.Interval == 0 {
		e.Recurrence.Interval = 1
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	return e
}

// NewBudget applies defaults and starts the budget active with zeroed stats.
func NewBudget(b Budget, d Defaults, now time.Time) Budget {
	if b.Amount.Currency == "" {
		b.Amount.Currency = d.Currency
	}
	if b.Type == "" {
		switch {
		case b.GroupID != "":
			b.Type = GroupBudget
		case b.CategoryID != "":
			b.Type = CategoryBudget
		default:
			b.Type = PersonalBudget
		}
	}
	if b.Period == "" {
		b.Period = d.BudgetPeriod
	}
	if b.Settings.AlertThreshold == 0 {
		b.Settings.AlertThreshold = d.AlertThreshold
	}
	if b.Status == "" {
		b.Status = BudgetActive
	}
	b.Stats = BudgetStats{
		SpentAmount:       Zero(b.Amount.Currency),
		RemainingAmount:   b.Amount,
		AverageDailySpent: Zero(b.Amount.Currency),
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
	return b
}

// NewGroup creates a group whose creator is its first, admin, member.
func NewGroup(name, createdBy, inviteCode string, d Defaults, now time.Time) (Group, error) {
	if createdBy == "" {
		return Group{}, errors.New("group requires a creator")
	}
	g := Group{
		Name:      name,
		CreatedBy: createdBy,
		Members: []Member{{
			UserID:   createdBy,
			Role:     RoleAdmin,
			JoinedAt: now,
			IsActive: true,
		}},
		Settings: GroupSettings{
			SplitMethod: d.SplitMethod,
			Currency:    d.Currency,
		},
		Stats: GroupStats{
			MemberCount: 1,
			TotalAmount: Zero(d.Currency),
		},
		InviteCode: inviteCode,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := g.Validate(); err != nil {
		return Group{}, err
	}
	return g, nil
}
