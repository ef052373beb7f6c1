package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ledger/internal/core"
)

// GroupStatsFunc derives a group's stats after an expense is added. It runs
// inside the write transaction and sees the committed roster, so it may
// still reject the expense.
type GroupStatsFunc func(g core.Group) (core.Group, error)

// GroupRebuildFunc derives a group's stats from all of its expenses.
type GroupRebuildFunc func(g core.Group, expenses []core.Expense) (core.Group, error)

// CreateGroupExpense inserts e and folds it into the stats of e.GroupID in
// one transaction. Only the stats columns of the group are written; the
// roster is never touched.
func (r *SQLiteRepository) CreateGroupExpense(ctx context.Context, e *core.Expense, update GroupStatsFunc) error {
	if e.ID == "" {
		e.ID = newID()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	g, err := getGroup(ctx, tx, "id", e.GroupID)
	if err != nil {
		return err
	}
	if err := insertExpense(ctx, tx, e); err != nil {
		return err
	}
	updated, err := update(g)
	if err != nil {
		return err
	}
	if err := saveGroupStats(ctx, tx, updated); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit group expense: %w", err)
	}
	return nil
}

// SoftDeleteGroupExpense marks expense id deleted and rebuilds the stats of
// groupID from its expenses in one transaction.
func (r *SQLiteRepository) SoftDeleteGroupExpense(ctx context.Context, id, groupID string, at time.Time, rebuild GroupRebuildFunc) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := softDeleteExpense(ctx, tx, id, at); err != nil {
		return err
	}
	g, err := getGroup(ctx, tx, "id", groupID)
	if err != nil {
		return err
	}
	expenses, err := listGroupExpenses(ctx, tx, groupID)
	if err != nil {
		return err
	}
	updated, err := rebuild(g, expenses)
	if err != nil {
		return err
	}
	if err := saveGroupStats(ctx, tx, updated); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit group expense delete: %w", err)
	}
	return nil
}

func saveGroupStats(ctx context.Context, tx *sql.Tx, g core.Group) error {
	res, err := tx.ExecContext(ctx, `UPDATE expense_groups SET
			total_expenses = ?, total_cents = ?, last_activity = ?, updated_at = ?
		WHERE id = ?`,
		g.Stats.TotalExpenses, g.Stats.TotalAmount.Cents,
		formatTime(g.Stats.LastActivity), formatTime(g.UpdatedAt), g.ID,
	)
	if err != nil {
		return fmt.Errorf("update group stats: %w", err)
	}
	return expectOne(res, "group", g.ID)
}
