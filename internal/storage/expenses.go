package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ledger/internal/budget"
	"ledger/internal/core"
	ledgerlog "ledger/internal/log"
)

const expenseColumns = `id, user_id, description, amount_cents, currency, date, type, group_id,
	category_id, paid_by, split_method, is_recurring, frequency, interval, end_date,
	next_occurrence, template_id, status, deleted_at, created_at, updated_at`

// CreateExpense inserts e and its split rows in one transaction. An empty ID
// is replaced by a new UUID.
func (r *SQLiteRepository) CreateExpense(ctx context.Context, e *core.Expense) error {
	if e.ID == "" {
		e.ID = newID()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertExpense(ctx, tx, e); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit expense: %w", err)
	}

	ledgerlog.FromContext(ctx).WithComponent(ledgerlog.ComponentStorage).
		DebugContext(ctx, "Expense saved to SQLite",
			ledgerlog.FieldExpenseID, e.ID,
			ledgerlog.FieldAmountCents, e.Amount.Cents,
			"splits", len(e.SplitAmounts))
	return nil
}

func insertExpense(ctx context.Context, tx *sql.Tx, e *core.Expense) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO expenses (`+expenseColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.Description, e.Amount.Cents, e.Amount.Currency,
		formatDate(e.Date), string(e.Type), e.GroupID, e.CategoryID, e.PaidBy,
		string(e.SplitMethod), boolToInt(e.IsRecurring), string(e.Recurrence.Frequency),
		e.Recurrence.Interval, formatDate(e.Recurrence.EndDate),
		formatDate(e.Recurrence.NextOccurrence), e.TemplateID,
		string(e.Lifecycle.State), formatTime(e.Lifecycle.DeletedAt),
		formatTime(e.CreatedAt), formatTime(e.UpdatedAt),
	)
	if isUniqueViolation(err, "expenses.id") {
		return fmt.Errorf("expense %s: %w", e.ID, ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("insert expense: %w", err)
	}

	for i, sh := range e.SplitAmounts {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO expense_splits (expense_id, position, participant, amount_cents) VALUES (?, ?, ?, ?)",
			e.ID, i, sh.Participant, sh.Amount.Cents,
		)
		if err != nil {
			return fmt.Errorf("insert expense split: %w", err)
		}
	}
	return nil
}

// GetExpense loads an expense with its splits, including deleted ones.
func (r *SQLiteRepository) GetExpense(ctx context.Context, id string) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+expenseColumns+" FROM expenses WHERE id = ?", id)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, fmt.Errorf("expense %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT participant, amount_cents FROM expense_splits WHERE expense_id = ? ORDER BY position", id)
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense splits: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		s := core.Share{Amount: core.Money{Currency: e.Amount.Currency}}
		if err := rows.Scan(&s.Participant, &s.Amount.Cents); err != nil {
			return core.Expense{}, fmt.Errorf("scan expense split: %w", err)
		}
		e.SplitAmounts = append(e.SplitAmounts, s)
		e.SplitBetween = append(e.SplitBetween, s.Participant)
	}
	if err := rows.Err(); err != nil {
		return core.Expense{}, fmt.Errorf("iterate expense splits: %w", err)
	}
	return e, nil
}

// UpdateRecurrence stores the result of advancing a recurring expense.
func (r *SQLiteRepository) UpdateRecurrence(ctx context.Context, id string, isRecurring bool, next core.Date, now time.Time) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE expenses SET is_recurring = ?, next_occurrence = ?, updated_at = ? WHERE id = ?",
		boolToInt(isRecurring), formatDate(next), formatTime(now), id,
	)
	if err != nil {
		return fmt.Errorf("update recurrence: %w", err)
	}
	return expectOne(res, "expense", id)
}

// SoftDeleteExpense marks the expense deleted. The row is kept.
func (r *SQLiteRepository) SoftDeleteExpense(ctx context.Context, id string, at time.Time) error {
	return softDeleteExpense(ctx, r.db, id, at)
}

func softDeleteExpense(ctx context.Context, q dbtx, id string, at time.Time) error {
	res, err := q.ExecContext(ctx,
		"UPDATE expenses SET status = ?, deleted_at = ?, updated_at = ? WHERE id = ? AND status != ?",
		string(core.StateDeleted), formatTime(at), formatTime(at), id, string(core.StateDeleted),
	)
	if err != nil {
		return fmt.Errorf("soft delete expense: %w", err)
	}
	return expectOne(res, "expense", id)
}

// ListDueRecurring returns recurring templates whose next occurrence is on
// or before now's calendar day.
func (r *SQLiteRepository) ListDueRecurring(ctx context.Context, now time.Time) ([]core.Expense, error) {
	return queryExpenses(ctx, r.db, "SELECT "+expenseColumns+` FROM expenses
		WHERE is_recurring = 1 AND status != ? AND next_occurrence != '' AND next_occurrence <= ?
		ORDER BY next_occurrence, id`,
		string(core.StateDeleted), formatDate(core.DateOf(now)),
	)
}

// ListExpensesForScope returns the non-deleted expenses matching a budget
// scope. Split rows are not loaded.
func (r *SQLiteRepository) ListExpensesForScope(ctx context.Context, s budget.Scope) ([]core.Expense, error) {
	return queryExpenses(ctx, r.db, "SELECT "+expenseColumns+` FROM expenses
		WHERE user_id = ? AND status != ? AND date >= ? AND date <= ?
		AND (? = '' OR group_id = ?) AND (? = '' OR category_id = ?)
		ORDER BY date, id`,
		s.UserID, string(core.StateDeleted), formatDate(s.Start), formatDate(s.End),
		s.GroupID, s.GroupID, s.CategoryID, s.CategoryID,
	)
}

// ListGroupExpenses returns every expense of a group, deleted ones included,
// so callers can apply lifecycle rules themselves.
func (r *SQLiteRepository) ListGroupExpenses(ctx context.Context, groupID string) ([]core.Expense, error) {
	return listGroupExpenses(ctx, r.db, groupID)
}

func listGroupExpenses(ctx context.Context, q dbtx, groupID string) ([]core.Expense, error) {
	return queryExpenses(ctx, q, "SELECT "+expenseColumns+" FROM expenses WHERE group_id = ? ORDER BY created_at, id", groupID)
}

func queryExpenses(ctx context.Context, q dbtx, query string, args ...any) ([]core.Expense, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return out, nil
}

func scanExpense(s scanner) (core.Expense, error) {
	var (
		e                               core.Expense
		date, endDate, next             string
		typ, method, freq, state        string
		deletedAt, createdAt, updatedAt string
		recurring                       int
	)
	err := s.Scan(&e.ID, &e.UserID, &e.Description, &e.Amount.Cents, &e.Amount.Currency,
		&date, &typ, &e.GroupID, &e.CategoryID, &e.PaidBy, &method, &recurring, &freq,
		&e.Recurrence.Interval, &endDate, &next, &e.TemplateID, &state, &deletedAt,
		&createdAt, &updatedAt)
	if err != nil {
		return core.Expense{}, err
	}

	e.Type = core.ExpenseType(typ)
	e.SplitMethod = core.SplitMethod(method)
	e.IsRecurring = recurring != 0
	e.Recurrence.Frequency = core.Frequency(freq)
	e.Lifecycle.State = core.LifecycleState(state)

	if e.Date, err = parseDate(date); err != nil {
		return core.Expense{}, err
	}
	if e.Recurrence.EndDate, err = parseDate(endDate); err != nil {
		return core.Expense{}, err
	}
	if e.Recurrence.NextOccurrence, err = parseDate(next); err != nil {
		return core.Expense{}, err
	}
	if e.Lifecycle.DeletedAt, err = parseTime(deletedAt); err != nil {
		return core.Expense{}, err
	}
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return core.Expense{}, err
	}
	if e.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

func expectOne(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}
