package budget

import "ledger/internal/core"

// Scope selects the expenses that count toward a budget: same user, same
// group and category when the budget sets them, dated inside [Start, End].
type Scope struct {
	UserID     string
	GroupID    string
	CategoryID string
	Start      core.Date
	End        core.Date
}

func ScopeOf(b core.Budget) Scope {
	return Scope{
		UserID:     b.UserID,
		GroupID:    b.GroupID,
		CategoryID: b.CategoryID,
		Start:      b.StartDate,
		End:        b.EndDate,
	}
}

// Matches reports whether e counts toward the scope. Deleted expenses never
// match; archived ones do.
func (s Scope) Matches(e core.Expense) bool {
	if !e.Counts() {
		return false
	}
	if e.UserID != s.UserID {
		return false
	}
	if s.GroupID != "" && e.GroupID != s.GroupID {
		return false
	}
	if s.CategoryID != "" && e.CategoryID != s.CategoryID {
		return false
	}
	return !e.Date.Before(s.Start.Time) && !e.Date.After(s.End.Time)
}

// SelectAmounts returns the amounts of the expenses matching s, in order.
func SelectAmounts(s Scope, expenses []core.Expense) []core.Money {
	var out []core.Money
	for _, e := range expenses {
		if s.Matches(e) {
			out = append(out, e.Amount)
		}
	}
	return out
}
