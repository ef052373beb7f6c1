// Package split divides a shared expense among its participants.
//
// Every allocation conserves money exactly: shares are computed from a rounded
// base amount and the leftover cents are handed out one at a time, in
// participant order, so the result is deterministic and always sums to the
// expense amount.
package split

import (
	"fmt"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
)

var hundred = decimal.NewFromInt(100)

// Weight is a participant's percentage of a percentage split.
type Weight struct {
	Participant string
	Percent     decimal.Decimal
}

// Request describes a split. Participants is used by the equal method,
// Exact by the exact method and Weights by the percentage method.
type Request struct {
	Amount       core.Money
	Method       core.SplitMethod
	Participants []string
	Exact        []core.Share
	Weights      []Weight
}

type allocator func(Request) ([]core.Share, error)

var allocators = map[core.SplitMethod]allocator{
	core.SplitEqual: func(r Request) ([]core.Share, error) {
		return Equal(r.Amount, r.Participants)
	},
	core.SplitExact: func(r Request) ([]core.Share, error) {
		return Exact(r.Amount, r.Exact)
	},
	core.SplitPercentage: func(r Request) ([]core.Share, error) {
		return ByPercentage(r.Amount, r.Weights)
	},
}

// Allocate dispatches on r.Method.
func Allocate(r Request) ([]core.Share, error) {
	alloc, ok := allocators[r.Method]
	if !ok {
		return nil, fmt.Errorf("unsupported split method %q", r.Method)
	}
	return alloc(r)
}

func validateAmount(amount core.Money) error {
	if amount.Cents < 0 {
		return core.ErrInvalidAmount
	}
	return core.ValidateCurrency(amount.Currency)
}

// Equal splits amount evenly. With 100.00 and three participants the result
// is 33.34, 33.33, 33.33.
func Equal(amount core.Money, participants []string) ([]core.Share, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	if err := core.ValidateParticipants(participants); err != nil {
		return nil, err
	}

	n := int64(len(participants))
	base := core.MoneyFromDecimal(amount.Decimal().Div(decimal.NewFromInt(n)), amount.Currency)

	shares := make([]core.Share, len(participants))
	for i, p := range participants {
		shares[i] = core.Share{Participant: p, Amount: base}
	}

	all := make([]int, len(shares))
	for i := range all {
		all[i] = i
	}
	distribute(shares, amount.Cents-base.Cents*n, all)
	return shares, nil
}

// Exact checks caller-supplied shares against amount and returns them as given.
func Exact(amount core.Money, shares []core.Share) ([]core.Share, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	ids := make([]string, len(shares))
	amounts := make([]core.Money, len(shares))
	for i, s := range shares {
		if s.Amount.Cents < 0 {
			return nil, fmt.Errorf("%w: negative share for %s", core.ErrInvalidAmount, s.Participant)
		}
		ids[i] = s.Participant
		amounts[i] = s.Amount
	}
	if err := core.ValidateParticipants(ids); err != nil {
		return nil, err
	}
	total, err := core.Sum(amount.Currency, amounts)
	if err != nil {
		return nil, err
	}
	if total.Cents != amount.Cents {
		return nil, fmt.Errorf("%w: shares total %s, expense %s", core.ErrAmountMismatch, total, amount)
	}

	out := make([]core.Share, len(shares))
	copy(out, shares)
	return out, nil
}

// ByPercentage splits amount by weights that must sum to exactly 100.
// Leftover cents only go to participants with a non-zero weight.
func ByPercentage(amount core.Money, weights []Weight) ([]core.Share, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	ids := make([]string, len(weights))
	total := decimal.Zero
	for i, w := range weights {
		if w.Percent.IsNegative() {
			return nil, fmt.Errorf("%w: negative weight for %s", core.ErrInvalidPercentages, w.Participant)
		}
		ids[i] = w.Participant
		total = total.Add(w.Percent)
	}
	if err := core.ValidateParticipants(ids); err != nil {
		return nil, err
	}
	if !total.Equal(hundred) {
		return nil, fmt.Errorf("%w: got %s", core.ErrInvalidPercentages, total)
	}

	shares := make([]core.Share, len(weights))
	var allocated int64
	var weighted []int
	for i, w := range weights {
		part := core.MoneyFromDecimal(amount.Decimal().Mul(w.Percent).Div(hundred), amount.Currency)
		shares[i] = core.Share{Participant: w.Participant, Amount: part}
		allocated += part.Cents
		if !w.Percent.IsZero() {
			weighted = append(weighted, i)
		}
	}
	distribute(shares, amount.Cents-allocated, weighted)
	return shares, nil
}

// distribute hands out remainder one cent at a time over the eligible
// indexes, in order, wrapping around. A negative remainder takes cents back
// and skips shares that are already zero.
func distribute(shares []core.Share, remainder int64, eligible []int) {
	step := int64(1)
	if remainder < 0 {
		step = -1
	}
	for remainder != 0 {
		moved := false
		for _, i := range eligible {
			if remainder == 0 {
				break
			}
			if step < 0 && shares[i].Amount.Cents == 0 {
				continue
			}
			shares[i].Amount.Cents += step
			remainder -= step
			moved = true
		}
		if !moved {
			return
		}
	}
}
