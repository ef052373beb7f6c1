// Package recurrence advances recurring expense schedules.
//
// Each frequency has its own Stepper that knows how to move an anchor date
// forward by a number of units. Monthly and yearly steps clamp to the last
// valid day of the target month, so 2024-01-31 + 1 month is 2024-02-29 and
// 2024-02-29 + 1 year is 2025-02-28.
package recurrence

import (
	"fmt"
	"time"

	"ledger/internal/core"
)

// Stepper moves a date forward by a number of frequency units.
type Stepper interface {
	// Step returns anchor advanced by units. units is always positive.
	Step(anchor core.Date, units int) core.Date
	// Units returns roughly how many whole units separate from and to.
	// It may be off by one; callers correct the estimate.
	Units(from, to core.Date) int
}

type DailyStepper struct{}

func (DailyStepper) Step(anchor core.Date, units int) core.Date {
	return core.Date{Time: anchor.AddDate(0, 0, units)}
}

func (DailyStepper) Units(from, to core.Date) int {
	return int(to.Sub(from.Time).Hours() / 24)
}

type WeeklyStepper struct{}

func (WeeklyStepper) Step(anchor core.Date, units int) core.Date {
	return core.Date{Time: anchor.AddDate(0, 0, 7*units)}
}

func (WeeklyStepper) Units(from, to core.Date) int {
	return int(to.Sub(from.Time).Hours() / (24 * 7))
}

// MonthlyStepper adds calendar months, clamping to the end of shorter months.
type MonthlyStepper struct{}

func (MonthlyStepper) Step(anchor core.Date, units int) core.Date {
	return addMonths(anchor, units)
}

func (MonthlyStepper) Units(from, to core.Date) int {
	return (to.Year()-from.Year())*12 + to.Month() - from.Month()
}

// YearlyStepper adds calendar years; Feb 29 lands on Feb 28 in non-leap years.
type YearlyStepper struct{}

func (YearlyStepper) Step(anchor core.Date, units int) core.Date {
	return addMonths(anchor, 12*units)
}

func (YearlyStepper) Units(from, to core.Date) int {
	return to.Year() - from.Year()
}

func addMonths(d core.Date, months int) core.Date {
	total := d.Year()*12 + (d.Month() - 1) + months
	year, month := total/12, total%12+1
	day := d.Day()
	if last := daysIn(year, month); day > last {
		day = last
	}
	return core.NewDate(year, month, day)
}

func daysIn(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

var steppers = map[core.Frequency]Stepper{
	core.Daily:   DailyStepper{},
	core.Weekly:  WeeklyStepper{},
	core.Monthly: MonthlyStepper{},
	core.Yearly:  YearlyStepper{},
}

// StepperFor returns the stepper registered for f.
func StepperFor(f core.Frequency) (Stepper, error) {
	s, ok := steppers[f]
	if !ok {
		return nil, fmt.Errorf("%w: unknown frequency %q", core.ErrRecurrenceMisconfigured, f)
	}
	return s, nil
}

// Result is the outcome of advancing a schedule. Next is zero when
// Recurring is false.
type Result struct {
	Next      core.Date
	Recurring bool
}

func stepperFor(p core.RecurrencePattern) (Stepper, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return StepperFor(p.Frequency)
}

func finish(next core.Date, p core.RecurrencePattern) Result {
	if !p.EndDate.IsZero() && next.After(p.EndDate.Time) {
		return Result{}
	}
	return Result{Next: next, Recurring: true}
}

// Advance computes the occurrence that follows date: date plus one interval
// of the pattern's frequency. Once that would fall after EndDate the
// recurrence stops and Result is zero.
func Advance(date core.Date, p core.RecurrencePattern) (Result, error) {
	s, err := stepperFor(p)
	if err != nil {
		return Result{}, err
	}
	return finish(s.Step(date, p.Interval), p), nil
}

// NextAfter returns the first occurrence strictly after `after`, counted in
// whole intervals from anchor. Stepping from the anchor rather than from the
// previous occurrence keeps month-end schedules on their original day.
func NextAfter(anchor core.Date, p core.RecurrencePattern, after core.Date) (Result, error) {
	s, err := stepperFor(p)
	if err != nil {
		return Result{}, err
	}

	k := 1
	if after.After(anchor.Time) {
		if est := s.Units(anchor, after) / p.Interval; est > k {
			k = est
		}
	}
	for k > 1 && s.Step(anchor, (k-1)*p.Interval).After(after.Time) {
		k--
	}
	next := s.Step(anchor, k*p.Interval)
	for !next.After(after.Time) {
		k++
		next = s.Step(anchor, k*p.Interval)
	}
	return finish(next, p), nil
}

// AdvanceExpense schedules the first occurrence after e.Date. A non-recurring
// expense is returned unchanged. When the schedule has run past its end date
// the expense stops recurring and NextOccurrence is cleared; turning it back
// on is left to the user.
func AdvanceExpense(e core.Expense) (core.Expense, error) {
	if !e.IsRecurring {
		return e, nil
	}
	res, err := Advance(e.Date, e.Recurrence)
	if err != nil {
		return e, err
	}
	e.IsRecurring = res.Recurring
	e.Recurrence.NextOccurrence = res.Next
	return e, nil
}
