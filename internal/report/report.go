// Package report exports budget snapshots to an external spreadsheet.
package report

import (
	"context"
	"fmt"
	"time"

	"ledger/internal/core"
	ledgerlog "ledger/internal/log"
)

// Header is the column layout written by Rows.
var Header = []any{
	"Exported At", "Budget ID", "Name", "User", "Currency", "Amount", "Spent",
	"Remaining", "Used %", "Days Remaining", "Avg Daily", "Status",
}

// SnapshotWriter appends rows to a report destination and returns a
// reference to the written range.
type SnapshotWriter interface {
	AppendRows(ctx context.Context, rows [][]any) (string, error)
}

// BudgetSource lists the budgets to export.
type BudgetSource interface {
	ListRefreshableBudgets(ctx context.Context) ([]core.Budget, error)
}

// Rows renders one row per budget. Amounts are decimal strings in major
// units so spreadsheet locales do not reinterpret them.
func Rows(budgets []core.Budget, now time.Time) [][]any {
	stamp := now.UTC().Format(time.RFC3339)
	rows := make([][]any, 0, len(budgets))
	for _, b := range budgets {
		rows = append(rows, []any{
			stamp,
			b.ID,
			b.Name,
			b.UserID,
			b.Amount.Currency,
			b.Amount.Decimal().StringFixed(2),
			b.Stats.SpentAmount.Decimal().StringFixed(2),
			b.Stats.RemainingAmount.Decimal().StringFixed(2),
			b.Stats.PercentageUsed.StringFixed(2),
			b.Stats.DaysRemaining,
			b.Stats.AverageDailySpent.Decimal().StringFixed(2),
			string(b.Status),
		})
	}
	return rows
}

type Exporter struct {
	source BudgetSource
	writer SnapshotWriter
}

func NewExporter(source BudgetSource, writer SnapshotWriter) *Exporter {
	return &Exporter{source: source, writer: writer}
}

// Export appends a snapshot of every tracked budget and returns the number
// of rows written.
func (e *Exporter) Export(ctx context.Context, now time.Time) (int, error) {
	budgets, err := e.source.ListRefreshableBudgets(ctx)
	if err != nil {
		return 0, fmt.Errorf("list budgets: %w", err)
	}
	if len(budgets) == 0 {
		return 0, nil
	}

	ref, err := e.writer.AppendRows(ctx, Rows(budgets, now))
	if err != nil {
		return 0, fmt.Errorf("append budget snapshots: %w", err)
	}

	ledgerlog.FromContext(ctx).WithComponent(ledgerlog.ComponentReport).
		InfoContext(ctx, "Budget snapshots exported",
			ledgerlog.FieldOperation, ledgerlog.OpExport,
			ledgerlog.FieldRows, len(budgets),
			ledgerlog.FieldRange, ref)
	return len(budgets), nil
}
