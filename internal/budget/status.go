package budget

import (
	"errors"
	"fmt"
	"time"

	"ledger/internal/core"
)

var ErrInvalidTransition = errors.New("invalid budget status transition")

// Pause stops automatic status derivation for an active or exceeded budget.
func Pause(b core.Budget, now time.Time) (core.Budget, error) {
	return transition(b, core.BudgetPaused, now, core.BudgetActive, core.BudgetExceeded)
}

// Cancel is terminal. Paused budgets can be cancelled too.
func Cancel(b core.Budget, now time.Time) (core.Budget, error) {
	return transition(b, core.BudgetCancelled, now, core.BudgetActive, core.BudgetExceeded, core.BudgetPaused)
}

// Resume returns a paused budget to active. The next Recompute derives the
// real status from its stats.
func Resume(b core.Budget, now time.Time) (core.Budget, error) {
	return transition(b, core.BudgetActive, now, core.BudgetPaused)
}

func transition(b core.Budget, to core.BudgetStatus, now time.Time, from ...core.BudgetStatus) (core.Budget, error) {
	for _, s := range from {
		if b.Status == s {
			b.Status = to
			b.UpdatedAt = now
			return b, nil
		}
	}
	return b, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.Status, to)
}
