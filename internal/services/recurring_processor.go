package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ledger/internal/core"
	ledgerlog "ledger/internal/log"
	"ledger/internal/metrics"
	"ledger/internal/recurrence"
	"ledger/internal/storage"
)

// maxCatchUp bounds how many missed occurrences of one template are written
// per pass. The rest are picked up on the next pass.
const maxCatchUp = 400

// occurrenceNamespace derives stable IDs for materialized occurrences, so a
// pass interrupted between writing an occurrence and advancing its template
// does not write the occurrence twice.
var occurrenceNamespace = uuid.MustParse("6f1c3a52-0d7e-4b8e-9a55-3f2d1c0b9e71")

// RecurringProcessor turns due recurring templates into plain expenses.
type RecurringProcessor struct {
	storage        *storage.SQLiteRepository
	expenseService *ExpenseService
	metrics        *metrics.Metrics
}

func NewRecurringProcessor(storage *storage.SQLiteRepository, expenseService *ExpenseService, m *metrics.Metrics) *RecurringProcessor {
	return &RecurringProcessor{
		storage:        storage,
		expenseService: expenseService,
		metrics:        m,
	}
}

// ProcessDue materializes every occurrence on or before now's calendar day
// and advances each template past it. It returns the number of expenses
// written. A failing template is logged and skipped.
func (p *RecurringProcessor) ProcessDue(ctx context.Context, now time.Time) (int, error) {
	if p.storage == nil || p.expenseService == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}

	templates, err := p.storage.ListDueRecurring(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list due recurring expenses: %w", err)
	}

	logger := ledgerlog.FromContext(ctx).WithComponent(ledgerlog.ComponentRecurring)
	logger.InfoContext(ctx, "Processing recurring expenses",
		"due", len(templates),
		"processing_date", core.DateOf(now).String())

	total := 0
	for _, t := range templates {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := p.processTemplate(ctx, logger, t.ID, now)
		total += n
		if err != nil {
			fields := ledgerlog.NewFields().WithOperation(ledgerlog.OpMaterialize).WithError(err)
			fields[ledgerlog.FieldTemplateID] = t.ID
			fields[ledgerlog.FieldCount] = n
			logger.ErrorContext(ctx, "Failed to process recurring expense", fields.ToSlice()...)
		}
	}

	p.metrics.Materialized(total)
	logger.InfoContext(ctx, "Recurring expense processing complete",
		ledgerlog.FieldCount, total,
		"templates", len(templates))
	return total, nil
}

func (p *RecurringProcessor) processTemplate(ctx context.Context, logger *ledgerlog.Logger, id string, now time.Time) (int, error) {
	// The due listing does not carry split rows.
	t, err := p.storage.GetExpense(ctx, id)
	if err != nil {
		return 0, err
	}

	today := core.DateOf(now)
	next := recurrence.Result{Next: t.Recurrence.NextOccurrence, Recurring: true}
	written := 0
	for next.Recurring && !next.Next.After(today.Time) && written < maxCatchUp {
		occ := occurrence(t, next.Next, now)
		switch err := p.expenseService.persist(ctx, &occ, now, nil); {
		case errors.Is(err, storage.ErrAlreadyExists):
			logger.DebugContext(ctx, "Occurrence already materialized",
				ledgerlog.FieldTemplateID, t.ID,
				ledgerlog.FieldOccurrence, next.Next.String())
		case err != nil:
			return written, err
		default:
			written++
		}

		if next, err = recurrence.NextAfter(t.Date, t.Recurrence, next.Next); err != nil {
			return written, err
		}
	}

	if err := p.storage.UpdateRecurrence(ctx, t.ID, next.Recurring, next.Next, now); err != nil {
		return written, fmt.Errorf("advance template: %w", err)
	}
	if !next.Recurring {
		p.metrics.Retired()
		logger.InfoContext(ctx, "Recurring expense reached its end date",
			ledgerlog.FieldOperation, ledgerlog.OpRetire,
			ledgerlog.FieldTemplateID, t.ID,
			"end_date", t.Recurrence.EndDate.String())
	}
	return written, nil
}

// occurrence copies the template into a plain, non-recurring expense dated on.
func occurrence(t core.Expense, on core.Date, now time.Time) core.Expense {
	shares := make([]core.Share, len(t.SplitAmounts))
	copy(shares, t.SplitAmounts)
	participants := make([]string, len(t.SplitBetween))
	copy(participants, t.SplitBetween)

	return core.Expense{
		ID:           uuid.NewSHA1(occurrenceNamespace, []byte(t.ID+"/"+on.String())).String(),
		UserID:       t.UserID,
		Description:  t.Description,
		Amount:       t.Amount,
		Date:         on,
		Type:         t.Type,
		GroupID:      t.GroupID,
		CategoryID:   t.CategoryID,
		PaidBy:       t.PaidBy,
		SplitMethod:  t.SplitMethod,
		SplitBetween: participants,
		SplitAmounts: shares,
		TemplateID:   t.ID,
		Lifecycle:    core.ActiveLifecycle(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
