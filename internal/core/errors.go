package core

import "errors"

// Engine error kinds. Callers match them with errors.Is; the engine only wraps
// them with context and never swallows or logs them.
var (
	ErrAmountMismatch          = errors.New("split amounts do not sum to expense amount")
	ErrEmptyParticipants       = errors.New("split requires at least one participant")
	ErrDuplicateParticipant    = errors.New("duplicate split participant")
	ErrInvalidParticipant      = errors.New("invalid split participant")
	ErrInvalidPercentages      = errors.New("split percentages must sum to 100")
	ErrInvalidCurrency         = errors.New("invalid or mismatched currency")
	ErrInvalidDateRange        = errors.New("end date must be after start date")
	ErrMemberNotFound          = errors.New("member not found")
	ErrRecurrenceMisconfigured = errors.New("recurrence misconfigured")
	ErrInvalidAmount           = errors.New("invalid amount")
	ErrCategoryCycle           = errors.New("category parent would create a cycle")

	ErrInvalidDay       = errors.New("invalid day")
	ErrInvalidMonth     = errors.New("invalid month")
	ErrEmptyDescription = errors.New("empty description")
)
