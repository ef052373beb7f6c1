package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
)

const budgetColumns = `id, user_id, name, amount_cents, currency, type, period, start_date, end_date,
	group_id, category_id, alert_threshold, spent_cents, remaining_cents, percentage_used,
	days_remaining, avg_daily_cents, stats_updated_at, status, version, created_at, updated_at`

// CreateBudget inserts b at version 1.
func (r *SQLiteRepository) CreateBudget(ctx context.Context, b *core.Budget) error {
	if b.ID == "" {
		b.ID = newID()
	}
	b.Version = 1

	_, err := r.db.ExecContext(ctx, `INSERT INTO budgets (`+budgetColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.UserID, b.Name, b.Amount.Cents, b.Amount.Currency, string(b.Type),
		string(b.Period), formatDate(b.StartDate), formatDate(b.EndDate), b.GroupID,
		b.CategoryID, b.Settings.AlertThreshold, b.Stats.SpentAmount.Cents,
		b.Stats.RemainingAmount.Cents, b.Stats.PercentageUsed.String(), b.Stats.DaysRemaining,
		b.Stats.AverageDailySpent.Cents, formatTime(b.Stats.LastUpdated), string(b.Status),
		b.Version, formatTime(b.CreatedAt), formatTime(b.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert budget: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetBudget(ctx context.Context, id string) (core.Budget, error) {
	b, err := scanBudget(r.db.QueryRowContext(ctx, "SELECT "+budgetColumns+" FROM budgets WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, fmt.Errorf("budget %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.Budget{}, fmt.Errorf("get budget: %w", err)
	}
	return b, nil
}

// ListRefreshableBudgets returns budgets whose status recomputation may
// still change, i.e. everything except paused and cancelled.
func (r *SQLiteRepository) ListRefreshableBudgets(ctx context.Context) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+budgetColumns+" FROM budgets WHERE status NOT IN (?, ?) ORDER BY id",
		string(core.BudgetPaused), string(core.BudgetCancelled))
	if err != nil {
		return nil, fmt.Errorf("query budgets: %w", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate budgets: %w", err)
	}
	return out, nil
}

// SaveBudgetStats writes b's stats and status if the stored version still
// equals expectedVersion, and returns b at its new version. A stale version
// yields ErrConflict.
func (r *SQLiteRepository) SaveBudgetStats(ctx context.Context, b core.Budget, expectedVersion int64) (core.Budget, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE budgets SET
			spent_cents = ?, remaining_cents = ?, percentage_used = ?, days_remaining = ?,
			avg_daily_cents = ?, stats_updated_at = ?, status = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		b.Stats.SpentAmount.Cents, b.Stats.RemainingAmount.Cents, b.Stats.PercentageUsed.String(),
		b.Stats.DaysRemaining, b.Stats.AverageDailySpent.Cents, formatTime(b.Stats.LastUpdated),
		string(b.Status), formatTime(b.Stats.LastUpdated), b.ID, expectedVersion,
	)
	if err != nil {
		return b, fmt.Errorf("save budget stats: %w", err)
	}
	if err := r.casResult(ctx, res, b.ID); err != nil {
		return b, err
	}
	b.Version = expectedVersion + 1
	b.UpdatedAt = b.Stats.LastUpdated
	return b, nil
}

// SetBudgetStatus records a manual status change under the same
// compare-and-swap rule as SaveBudgetStats.
func (r *SQLiteRepository) SetBudgetStatus(ctx context.Context, id string, status core.BudgetStatus, expectedVersion int64, now time.Time) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE budgets SET status = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?",
		string(status), formatTime(now), id, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("set budget status: %w", err)
	}
	return r.casResult(ctx, res, id)
}

// casResult tells a missing budget apart from a version mismatch.
func (r *SQLiteRepository) casResult(ctx context.Context, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}
	var exists int
	err = r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM budgets WHERE id = ?", id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check budget: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("budget %s: %w", id, ErrNotFound)
	}
	return fmt.Errorf("budget %s: %w", id, ErrConflict)
}

func scanBudget(s scanner) (core.Budget, error) {
	var (
		b                             core.Budget
		typ, period, status, pct      string
		start, end                    string
		statsAt, createdAt, updatedAt string
		spent, remaining, avg         int64
	)
	err := s.Scan(&b.ID, &b.UserID, &b.Name, &b.Amount.Cents, &b.Amount.Currency, &typ, &period,
		&start, &end, &b.GroupID, &b.CategoryID, &b.Settings.AlertThreshold, &spent, &remaining,
		&pct, &b.Stats.DaysRemaining, &avg, &statsAt, &status, &b.Version, &createdAt, &updatedAt)
	if err != nil {
		return core.Budget{}, err
	}

	cur := b.Amount.Currency
	b.Type = core.BudgetType(typ)
	b.Period = core.BudgetPeriod(period)
	b.Status = core.BudgetStatus(status)
	b.Stats.SpentAmount = core.NewMoney(spent, cur)
	b.Stats.RemainingAmount = core.NewMoney(remaining, cur)
	b.Stats.AverageDailySpent = core.NewMoney(avg, cur)

	if b.Stats.PercentageUsed, err = decimal.NewFromString(pct); err != nil {
		return core.Budget{}, fmt.Errorf("parse percentage %q: %w", pct, err)
	}
	if b.StartDate, err = parseDate(start); err != nil {
		return core.Budget{}, err
	}
	if b.EndDate, err = parseDate(end); err != nil {
		return core.Budget{}, err
	}
	if b.Stats.LastUpdated, err = parseTime(statsAt); err != nil {
		return core.Budget{}, err
	}
	if b.CreatedAt, err = parseTime(createdAt); err != nil {
		return core.Budget{}, err
	}
	if b.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return core.Budget{}, err
	}
	return b, nil
}
