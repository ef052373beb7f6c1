package budget

import (
	"fmt"
	"time"

	"ledger/internal/core"
)

// PeriodBounds returns the calendar period containing ref. Weeks start on
// Monday; quarters are Jan-Mar, Apr-Jun, Jul-Sep and Oct-Dec. Custom periods
// have no implied bounds.
func PeriodBounds(p core.BudgetPeriod, ref core.Date) (start, end core.Date, err error) {
	y, m := ref.Year(), ref.Month()
	switch p {
	case core.PeriodWeekly:
		offset := (int(ref.Weekday()) + 6) % 7
		start = core.Date{Time: ref.AddDate(0, 0, -offset)}
		end = core.Date{Time: start.AddDate(0, 0, 6)}
	case core.PeriodMonthly:
		start = core.NewDate(y, m, 1)
		end = lastDay(y, m)
	case core.PeriodQuarterly:
		first := ((m-1)/3)*3 + 1
		start = core.NewDate(y, first, 1)
		end = lastDay(y, first+2)
	case core.PeriodYearly:
		start = core.NewDate(y, 1, 1)
		end = core.NewDate(y, 12, 31)
	default:
		return core.Date{}, core.Date{}, fmt.Errorf("no calendar bounds for %q period", p)
	}
	return start, end, nil
}

func lastDay(year, month int) core.Date {
	return core.Date{Time: time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC)}
}
