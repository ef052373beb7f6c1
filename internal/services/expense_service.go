package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ledger/internal/core"
	"ledger/internal/group"
	ledgerlog "ledger/internal/log"
	"ledger/internal/recurrence"
	"ledger/internal/split"
	"ledger/internal/storage"
)

// CreateExpenseRequest carries an expense plus the split input that does not
// live on core.Expense. Equal splits read Expense.SplitBetween, exact splits
// read Expense.SplitAmounts and percentage splits read Weights.
type CreateExpenseRequest struct {
	Expense core.Expense
	Weights []split.Weight
}

// ExpenseService validates, splits and schedules expenses before storing
// them, and keeps group stats in step.
type ExpenseService struct {
	storage  *storage.SQLiteRepository
	defaults core.Defaults
}

func NewExpenseService(storage *storage.SQLiteRepository, defaults core.Defaults) *ExpenseService {
	return &ExpenseService{
		storage:  storage,
		defaults: defaults,
	}
}

// CreateExpense stores a new expense and returns it as persisted.
func (s *ExpenseService) CreateExpense(ctx context.Context, req CreateExpenseRequest, now time.Time) (core.Expense, error) {
	e := req.Expense

	var g core.Group
	if e.GroupID != "" {
		var err error
		if g, err = s.storage.GetGroup(ctx, e.GroupID); err != nil {
			return core.Expense{}, fmt.Errorf("load group: %w", err)
		}
		if e.Amount.Currency == "" {
			e.Amount.Currency = g.Settings.Currency
		}
		if e.SplitMethod == "" {
			e.SplitMethod = g.Settings.SplitMethod
		}
	}
	e = core.NewExpense(e, s.defaults, now)

	if e.Type == core.GroupExpense {
		if len(e.SplitBetween) == 0 && len(e.SplitAmounts) == 0 && len(req.Weights) == 0 {
			e.SplitBetween = group.ActiveMembers(g)
		}
		if err := checkMembers(g, e.UserID, e.PaidBy); err != nil {
			return core.Expense{}, err
		}
	}

	if err := allocate(&e, req.Weights); err != nil {
		return core.Expense{}, err
	}
	if e.Type == core.GroupExpense {
		if err := checkMembers(g, e.SplitBetween...); err != nil {
			return core.Expense{}, err
		}
	}

	if err := e.Validate(); err != nil {
		return core.Expense{}, fmt.Errorf("validate expense: %w", err)
	}

	e, err := recurrence.AdvanceExpense(e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("schedule expense: %w", err)
	}

	var check func(core.Group) error
	if e.Type == core.GroupExpense {
		participants := append([]string{e.UserID, e.PaidBy}, e.SplitBetween...)
		check = func(cur core.Group) error { return checkMembers(cur, participants...) }
	}
	if err := s.persist(ctx, &e, now, check); err != nil {
		return core.Expense{}, err
	}

	fields := ledgerlog.NewFields().
		WithOperation(ledgerlog.OpCreate).
		WithExpense(e.ID, e.Amount.Cents, e.Amount.Currency)
	fields["split_method"] = e.SplitMethod
	fields["participants"] = len(e.SplitAmounts)
	fields["recurring"] = e.IsRecurring
	ledgerlog.FromContext(ctx).WithComponent(ledgerlog.ComponentExpense).
		InfoContext(ctx, "Expense created", fields.ToSlice()...)
	return e, nil
}

// persist writes e. A group expense is folded into the group stats in the
// same transaction, after check has accepted the group's current roster.
func (s *ExpenseService) persist(ctx context.Context, e *core.Expense, now time.Time, check func(core.Group) error) error {
	if e.Type != core.GroupExpense {
		if err := s.storage.CreateExpense(ctx, e); err != nil {
			return fmt.Errorf("save expense: %w", err)
		}
		return nil
	}

	err := s.storage.CreateGroupExpense(ctx, e, func(g core.Group) (core.Group, error) {
		if e.Amount.Currency != g.Settings.Currency {
			return g, fmt.Errorf("%w: group %s uses %s", core.ErrInvalidCurrency, g.ID, g.Settings.Currency)
		}
		if check != nil {
			if err := check(g); err != nil {
				return g, err
			}
		}
		updated, err := group.RecordExpense(g, e.Amount, now)
		if err != nil {
			return g, err
		}
		updated.UpdatedAt = now
		return updated, nil
	})
	if err != nil {
		return fmt.Errorf("save group expense: %w", err)
	}
	return nil
}

// DeleteExpense soft deletes an expense. For a group expense the group stats
// are rebuilt from the remaining expenses in the same transaction.
func (s *ExpenseService) DeleteExpense(ctx context.Context, id string, now time.Time) error {
	e, err := s.storage.GetExpense(ctx, id)
	if err != nil {
		return fmt.Errorf("load expense: %w", err)
	}

	if e.GroupID == "" {
		err = s.storage.SoftDeleteExpense(ctx, id, now)
	} else {
		err = s.storage.SoftDeleteGroupExpense(ctx, id, e.GroupID, now, func(g core.Group, expenses []core.Expense) (core.Group, error) {
			updated, err := group.RecomputeStats(g, expenses)
			if err != nil {
				return g, err
			}
			updated.UpdatedAt = now
			return updated, nil
		})
	}
	if err != nil {
		return fmt.Errorf("soft delete expense: %w", err)
	}

	ledgerlog.FromContext(ctx).WithComponent(ledgerlog.ComponentExpense).InfoContext(ctx, "Expense deleted",
		ledgerlog.NewFields().WithOperation(ledgerlog.OpDelete).WithExpense(id, e.Amount.Cents, e.Amount.Currency).ToSlice()...)
	return nil
}

// allocate fills e.SplitAmounts and e.SplitBetween from the split input.
// An expense with no split input is not split.
func allocate(e *core.Expense, weights []split.Weight) error {
	req := split.Request{
		Amount:       e.Amount,
		Method:       e.SplitMethod,
		Participants: e.SplitBetween,
		Exact:        e.SplitAmounts,
		Weights:      weights,
	}
	switch e.SplitMethod {
	case core.SplitEqual:
		if len(e.SplitBetween) == 0 {
			return nil
		}
	case core.SplitExact:
		if len(e.SplitAmounts) == 0 {
			return nil
		}
	case core.SplitPercentage:
		if len(weights) == 0 {
			return nil
		}
	}

	shares, err := split.Allocate(req)
	if err != nil {
		return fmt.Errorf("split expense: %w", err)
	}
	e.SplitAmounts = shares
	e.SplitBetween = make([]string, len(shares))
	for i, sh := range shares {
		e.SplitBetween[i] = sh.Participant
	}
	return nil
}

func checkMembers(g core.Group, userIDs ...string) error {
	var errs []error
	for _, id := range userIDs {
		if !group.IsMember(g, id) {
			errs = append(errs, fmt.Errorf("%w: %s in group %s", core.ErrMemberNotFound, id, g.ID))
		}
	}
	return errors.Join(errs...)
}
