package log

import "sort"

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldDuration    = "duration_ms"
	FieldExpenseID   = "expense_id"
	FieldTemplateID  = "template_id"
	FieldBudgetID    = "budget_id"
	FieldGroupID     = "group_id"
	FieldUserID      = "user_id"
	FieldAmountCents = "amount_cents"
	FieldCurrency    = "currency"
	FieldPercentage  = "percentage_used"
	FieldStatus      = "status"
	FieldCount       = "count"
	FieldOccurrence  = "occurrence"
	FieldNext        = "next_occurrence"
	FieldAttempt     = "attempt"
	FieldThreshold   = "threshold"
	FieldNotifyID    = "notification_id"
	FieldRows        = "rows"
	FieldRange       = "range"
	FieldSheet       = "sheet"
)

// Components
const (
	ComponentApp       = "app"
	ComponentExpense   = "expense"
	ComponentRecurring = "recurring"
	ComponentBudget    = "budget"
	ComponentGroup     = "group"
	ComponentCategory  = "category"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentReport    = "report"
	ComponentMetrics   = "metrics"
	ComponentCache     = "cache"
)

// Operations
const (
	OpCreate      = "create"
	OpDelete      = "delete"
	OpMaterialize = "materialize"
	OpRetire      = "retire"
	OpRefresh     = "refresh"
	OpAlert       = "alert"
	OpJoin        = "join"
	OpLeave       = "leave"
	OpExport      = "export"
	OpShutdown    = "shutdown"
	OpStartup     = "startup"
	OpSweep       = "sweep"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithError adds the error text; a nil error adds nothing.
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithExpense adds expense identity and amount.
func (f LogFields) WithExpense(id string, amountCents int64, currency string) LogFields {
	f[FieldExpenseID] = id
	f[FieldAmountCents] = amountCents
	f[FieldCurrency] = currency
	return f
}

// WithBudget adds budget identity, usage and status.
func (f LogFields) WithBudget(id, percentage, status string) LogFields {
	f[FieldBudgetID] = id
	f[FieldPercentage] = percentage
	f[FieldStatus] = status
	return f
}

// ToSlice converts LogFields to a slice for slog, ordered by key.
func (f LogFields) ToSlice() []any {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	slice := make([]any, 0, len(f)*2)
	for _, k := range keys {
		slice = append(slice, k, f[k])
	}
	return slice
}
