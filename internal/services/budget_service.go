package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"ledger/internal/amqp"
	"ledger/internal/budget"
	"ledger/internal/cache"
	"ledger/internal/core"
	ledgerlog "ledger/internal/log"
	"ledger/internal/metrics"
	"ledger/internal/storage"
)

const (
	maxRefreshAttempts = 3
	snapshotCacheSize  = 1024
	snapshotTTL        = 5 * time.Minute
)

// AlertPublisher delivers budget alerts to an out-of-process consumer.
type AlertPublisher interface {
	PublishBudgetAlert(ctx context.Context, msg *amqp.BudgetAlertMessage) error
}

// BudgetService keeps persisted budget stats in step with the expenses in
// scope and emits an alert when a budget first reaches its threshold.
type BudgetService struct {
	storage     *storage.SQLiteRepository
	publisher   AlertPublisher
	defaults    core.Defaults
	metrics     *metrics.Metrics
	snapshots   cache.Cache[core.Budget]
	inflight    singleflight.Group
	concurrency int
}

type BudgetServiceConfig struct {
	Defaults core.Defaults
	// Publisher may be nil; alerts are then written as notifications.
	Publisher   AlertPublisher
	Metrics     *metrics.Metrics
	Concurrency int
}

func NewBudgetService(storage *storage.SQLiteRepository, cfg BudgetServiceConfig) *BudgetService {
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &BudgetService{
		storage:     storage,
		publisher:   cfg.Publisher,
		defaults:    cfg.Defaults,
		metrics:     cfg.Metrics,
		snapshots:   cache.NewLRU[core.Budget](snapshotCacheSize, snapshotTTL),
		concurrency: concurrency,
	}
}

// Snapshots exposes the snapshot cache so a janitor can sweep it.
func (s *BudgetService) Snapshots() cache.Cache[core.Budget] {
	return s.snapshots
}

func budgetLogger(ctx context.Context) *ledgerlog.Logger {
	return ledgerlog.FromContext(ctx).WithComponent(ledgerlog.ComponentBudget)
}

func budgetFields(b core.Budget) ledgerlog.LogFields {
	return ledgerlog.NewFields().WithBudget(b.ID, b.Stats.PercentageUsed.StringFixed(2), string(b.Status))
}

// CreateBudget applies defaults, derives the date range from the period when
// none is given, stores the budget and computes its first stats.
func (s *BudgetService) CreateBudget(ctx context.Context, b core.Budget, now time.Time) (core.Budget, error) {
	b = core.NewBudget(b, s.defaults, now)
	if b.StartDate.IsZero() && b.EndDate.IsZero() {
		start, end, err := budget.PeriodBounds(b.Period, core.DateOf(now))
		if err != nil {
			return core.Budget{}, fmt.Errorf("derive budget period: %w", err)
		}
		b.StartDate, b.EndDate = start, end
	}
	if err := b.Validate(); err != nil {
		return core.Budget{}, fmt.Errorf("validate budget: %w", err)
	}
	if err := s.storage.CreateBudget(ctx, &b); err != nil {
		return core.Budget{}, err
	}

	fields := ledgerlog.NewFields().WithOperation(ledgerlog.OpCreate)
	fields[ledgerlog.FieldBudgetID] = b.ID
	fields[ledgerlog.FieldAmountCents] = b.Amount.Cents
	fields["start"] = b.StartDate.String()
	fields["end"] = b.EndDate.String()
	budgetLogger(ctx).InfoContext(ctx, "Budget created", fields.ToSlice()...)
	return s.Refresh(ctx, b.ID, now)
}

// Refresh recomputes one budget as of now and persists the result.
// Concurrent calls for the same budget and the same now share a single
// computation. The shared work is detached from any one caller's
// cancellation; each caller stops waiting when its own ctx is done. A write
// that loses the version race is retried against the fresh row.
func (s *BudgetService) Refresh(ctx context.Context, id string, now time.Time) (core.Budget, error) {
	if err := ctx.Err(); err != nil {
		return core.Budget{}, err
	}

	key := id + "@" + now.UTC().Format(time.RFC3339Nano)
	work := context.WithoutCancel(ctx)
	ch := s.inflight.DoChan(key, func() (any, error) {
		return s.refresh(work, id, now)
	})

	select {
	case <-ctx.Done():
		return core.Budget{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return core.Budget{}, res.Err
		}
		return res.Val.(core.Budget), nil
	}
}

func (s *BudgetService) refresh(ctx context.Context, id string, now time.Time) (core.Budget, error) {
	start := time.Now()
	for attempt := 1; attempt <= maxRefreshAttempts; attempt++ {
		prev, err := s.storage.GetBudget(ctx, id)
		if err != nil {
			s.metrics.ObserveRefresh(metrics.OutcomeError, time.Since(start))
			return core.Budget{}, err
		}

		scope := budget.ScopeOf(prev)
		expenses, err := s.storage.ListExpensesForScope(ctx, scope)
		if err != nil {
			s.metrics.ObserveRefresh(metrics.OutcomeError, time.Since(start))
			return core.Budget{}, fmt.Errorf("load budget expenses: %w", err)
		}

		next, err := budget.Recompute(prev, budget.SelectAmounts(scope, expenses), now)
		if err != nil {
			s.metrics.ObserveRefresh(metrics.OutcomeError, time.Since(start))
			return core.Budget{}, fmt.Errorf("recompute budget %s: %w", id, err)
		}

		saved, err := s.storage.SaveBudgetStats(ctx, next, prev.Version)
		if errors.Is(err, storage.ErrConflict) {
			s.metrics.ObserveRefresh(metrics.OutcomeConflict, time.Since(start))
			budgetLogger(ctx).DebugContext(ctx, "Budget changed during refresh, retrying",
				ledgerlog.FieldBudgetID, id,
				ledgerlog.FieldAttempt, attempt)
			continue
		}
		if err != nil {
			s.metrics.ObserveRefresh(metrics.OutcomeError, time.Since(start))
			return core.Budget{}, err
		}

		s.snapshots.Set(id, saved)
		s.metrics.ObserveRefresh(metrics.OutcomeUpdated, time.Since(start))

		if budget.CrossedThreshold(prev, saved) {
			s.alert(ctx, saved, now)
		}
		return saved, nil
	}
	return core.Budget{}, fmt.Errorf("refresh budget %s after %d attempts: %w", id, maxRefreshAttempts, storage.ErrConflict)
}

// alert publishes the alert, falling back to a notification row when no
// publisher is configured or publishing fails.
func (s *BudgetService) alert(ctx context.Context, b core.Budget, now time.Time) {
	msg := amqp.NewBudgetAlertMessage(b, now)

	if s.publisher != nil {
		err := s.publisher.PublishBudgetAlert(ctx, msg)
		if err == nil {
			s.metrics.AlertEmitted("amqp")
			budgetLogger(ctx).InfoContext(ctx, "Budget alert published",
				budgetFields(b).WithOperation(ledgerlog.OpAlert).ToSlice()...)
			return
		}
		budgetLogger(ctx).WarnContext(ctx, "Failed to publish budget alert, writing notification instead",
			budgetFields(b).WithOperation(ledgerlog.OpAlert).WithError(err).ToSlice()...)
	}

	n := NotificationFromAlert(msg, now)
	if err := s.storage.CreateNotification(ctx, &n); err != nil {
		budgetLogger(ctx).ErrorContext(ctx, "Failed to store budget alert",
			budgetFields(b).WithOperation(ledgerlog.OpAlert).WithError(err).ToSlice()...)
		return
	}
	s.metrics.AlertEmitted("notification")
}

// NotificationFromAlert renders a budget alert as a user notification.
func NotificationFromAlert(m *amqp.BudgetAlertMessage, now time.Time) core.Notification {
	name := m.BudgetName
	if name == "" {
		name = m.BudgetID
	}
	return core.Notification{
		UserID:    m.UserID,
		BudgetID:  m.BudgetID,
		Kind:      core.NotificationBudgetAlert,
		Message:   fmt.Sprintf("Budget %q has used %s%% of its amount (alert at %d%%)", name, m.PercentageUsed.StringFixed(2), m.Threshold),
		CreatedAt: now,
	}
}

// RefreshAll refreshes every budget that is neither paused nor cancelled,
// at most s.concurrency at a time. Failures do not stop the pass; they are
// returned joined once all budgets have been tried.
func (s *BudgetService) RefreshAll(ctx context.Context, now time.Time) (int, error) {
	budgets, err := s.storage.ListRefreshableBudgets(ctx)
	if err != nil {
		return 0, fmt.Errorf("list budgets: %w", err)
	}

	var (
		mu        sync.Mutex
		errs      []error
		refreshed int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, b := range budgets {
		id := b.ID
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			_, err := s.Refresh(gctx, id, now)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("budget %s: %w", id, err))
				return nil
			}
			refreshed++
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		errs = append(errs, err)
	}

	budgetLogger(ctx).InfoContext(ctx, "Budget refresh pass complete",
		ledgerlog.FieldOperation, ledgerlog.OpRefresh,
		"budgets", len(budgets),
		"refreshed", refreshed,
		"failed", len(errs))
	return refreshed, errors.Join(errs...)
}

// Pause stops status derivation for a budget until it is resumed.
func (s *BudgetService) Pause(ctx context.Context, id string, now time.Time) (core.Budget, error) {
	return s.transition(ctx, id, now, budget.Pause)
}

// Cancel ends a budget for good.
func (s *BudgetService) Cancel(ctx context.Context, id string, now time.Time) (core.Budget, error) {
	return s.transition(ctx, id, now, budget.Cancel)
}

// Resume reactivates a paused budget and recomputes its status.
func (s *BudgetService) Resume(ctx context.Context, id string, now time.Time) (core.Budget, error) {
	if _, err := s.transition(ctx, id, now, budget.Resume); err != nil {
		return core.Budget{}, err
	}
	return s.Refresh(ctx, id, now)
}

func (s *BudgetService) transition(ctx context.Context, id string, now time.Time, fn func(core.Budget, time.Time) (core.Budget, error)) (core.Budget, error) {
	b, err := s.storage.GetBudget(ctx, id)
	if err != nil {
		return core.Budget{}, err
	}
	next, err := fn(b, now)
	if err != nil {
		return core.Budget{}, err
	}
	if err := s.storage.SetBudgetStatus(ctx, id, next.Status, b.Version, now); err != nil {
		return core.Budget{}, err
	}
	next.Version = b.Version + 1
	s.snapshots.Invalidate(id)

	budgetLogger(ctx).InfoContext(ctx, "Budget status changed",
		ledgerlog.FieldBudgetID, id,
		"from", b.Status,
		"to", next.Status)
	return next, nil
}

// Snapshot returns the last persisted state of a budget, served from cache
// when possible. It does not recompute.
func (s *BudgetService) Snapshot(ctx context.Context, id string) (core.Budget, error) {
	if b, ok := s.snapshots.Get(id); ok {
		return b, nil
	}
	b, err := s.storage.GetBudget(ctx, id)
	if err != nil {
		return core.Budget{}, err
	}
	s.snapshots.Set(id, b)
	return b, nil
}
