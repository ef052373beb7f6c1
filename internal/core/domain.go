package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

const (
	PersonalExpense ExpenseType = "personal"
	GroupExpense    ExpenseType = "group"
)

const (
	SplitEqual      SplitMethod = "equal"
	SplitExact      SplitMethod = "exact"
	SplitPercentage SplitMethod = "percentage"
)

type (
	Frequency   string
	ExpenseType string
	SplitMethod string

	Date struct {
		time.Time
	}

	// Share is one participant's part of a split expense.
	Share struct {
		Participant string
		Amount      Money
	}

	// RecurrencePattern describes how an expense repeats. A zero EndDate means
	// the recurrence is open-ended; a zero NextOccurrence means none is scheduled.
	RecurrencePattern struct {
		Frequency      Frequency
		Interval       int
		EndDate        Date
		NextOccurrence Date
	}

	Expense struct {
		ID          string
		UserID      string
		Description string
		Amount      Money
		Date        Date
		Type        ExpenseType
		GroupID     string
		CategoryID  string
		PaidBy      string

		SplitMethod  SplitMethod
		SplitBetween []string
		SplitAmounts []Share

		IsRecurring bool
		Recurrence  RecurrencePattern
		// TemplateID links a materialized occurrence back to its recurring expense.
		TemplateID string

		Lifecycle Lifecycle
		CreatedAt time.Time
		UpdatedAt time.Time
	}
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) Date {
	t = t.UTC()
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// IsEmpty returns true if the date is zero (optional dates)
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format("2006-01-02")
}

// Valid reports whether f is one of the supported frequencies.
func (f Frequency) Valid() bool {
	switch f {
	case Daily, Weekly, Monthly, Yearly:
		return true
	}
	return false
}

func (m SplitMethod) Valid() bool {
	switch m {
	case SplitEqual, SplitExact, SplitPercentage:
		return true
	}
	return false
}

// Validate checks the pattern is usable for an active recurrence.
func (p RecurrencePattern) Validate() error {
	if p.Frequency == "" {
		return fmt.Errorf("%w: missing frequency", ErrRecurrenceMisconfigured)
	}
	if !p.Frequency.Valid() {
		return fmt.Errorf("%w: unknown frequency %q", ErrRecurrenceMisconfigured, p.Frequency)
	}
	if p.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive, got %d", ErrRecurrenceMisconfigured, p.Interval)
	}
	return nil
}

// Counts reports whether the expense takes part in aggregation.
func (e Expense) Counts() bool {
	return !e.Lifecycle.IsDeleted()
}

// SplitMap returns SplitAmounts keyed by participant.
func (e Expense) SplitMap() map[string]Money {
	out := make(map[string]Money, len(e.SplitAmounts))
	for _, s := range e.SplitAmounts {
		out[s.Participant] = s.Amount
	}
	return out
}

func (e Expense) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(e.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(e.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	switch e.Type {
	case PersonalExpense:
	case GroupExpense:
		if e.GroupID == "" {
			return errors.New("group expense requires a group")
		}
	default:
		return fmt.Errorf("invalid expense type %q", e.Type)
	}
	if e.SplitBetween != nil {
		if err := ValidateParticipants(e.SplitBetween); err != nil {
			return err
		}
	}
	if len(e.SplitAmounts) > 0 {
		amounts := make([]Money, len(e.SplitAmounts))
		for i, s := range e.SplitAmounts {
			amounts[i] = s.Amount
		}
		total, err := Sum(e.Amount.Currency, amounts)
		if err != nil {
			return err
		}
		if total.Cents != e.Amount.Cents {
			return fmt.Errorf("%w: shares total %s, expense %s", ErrAmountMismatch, total, e.Amount)
		}
	}
	if e.IsRecurring {
		if err := e.Recurrence.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ValidateParticipants requires a non-empty list of distinct, non-blank IDs.
func ValidateParticipants(ids []string) error {
	if len(ids) == 0 {
		return ErrEmptyParticipants
	}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			return ErrInvalidParticipant
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateParticipant, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

const (
	PersonalBudget BudgetType = "personal"
	GroupBudget    BudgetType = "group"
	CategoryBudget BudgetType = "category"
)

const (
	PeriodWeekly    BudgetPeriod = "weekly"
	PeriodMonthly   BudgetPeriod = "monthly"
	PeriodQuarterly BudgetPeriod = "quarterly"
	PeriodYearly    BudgetPeriod = "yearly"
	PeriodCustom    BudgetPeriod = "custom"
)

const (
	BudgetActive    BudgetStatus = "active"
	BudgetCompleted BudgetStatus = "completed"
	BudgetExceeded  BudgetStatus = "exceeded"
	BudgetPaused    BudgetStatus = "paused"
	BudgetCancelled BudgetStatus = "cancelled"
)

type (
	BudgetType   string
	BudgetPeriod string
	BudgetStatus string

	BudgetSettings struct {
		// AlertThreshold is a percentage in [0, 100].
		AlertThreshold int
	}

	BudgetStats struct {
		SpentAmount       Money
		RemainingAmount   Money
		PercentageUsed    decimal.Decimal
		DaysRemaining     int
		AverageDailySpent Money
		LastUpdated       time.Time
	}

	Budget struct {
		ID         string
		UserID     string
		Name       string
		Amount     Money
		Type       BudgetType
		Period     BudgetPeriod
		StartDate  Date
		EndDate    Date
		GroupID    string
		CategoryID string
		Settings   BudgetSettings
		Stats      BudgetStats
		Status     BudgetStatus
		// Version is bumped on every persisted stats write (compare-and-swap).
		Version   int64
		CreatedAt time.Time
		UpdatedAt time.Time
	}
)

// Sticky reports whether recomputation must leave the status alone.
func (s BudgetStatus) Sticky() bool {
	return s == BudgetPaused || s == BudgetCancelled
}

func (s BudgetStatus) Valid() bool {
	switch s {
	case BudgetActive, BudgetCompleted, BudgetExceeded, BudgetPaused, BudgetCancelled:
		return true
	}
	return false
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.UserID) == "" {
		return errors.New("budget requires a user")
	}
	if err := b.Amount.Validate(); err != nil {
		return err
	}
	if b.StartDate.IsZero() || b.EndDate.IsZero() || !b.EndDate.After(b.StartDate.Time) {
		return ErrInvalidDateRange
	}
	if b.Settings.AlertThreshold < 0 || b.Settings.AlertThreshold > 100 {
		return fmt.Errorf("alert threshold %d out of range [0,100]", b.Settings.AlertThreshold)
	}
	switch b.Type {
	case PersonalBudget:
	case GroupBudget:
		if b.GroupID == "" {
			return errors.New("group budget requires a group")
		}
	case CategoryBudget:
		if b.CategoryID == "" {
			return errors.New("category budget requires a category")
		}
	default:
		return fmt.Errorf("invalid budget type %q", b.Type)
	}
	if !b.Status.Valid() {
		return fmt.Errorf("invalid budget status %q", b.Status)
	}
	return nil
}

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

type (
	Role string

	// Member is a roster entry. Removed members stay in the list with
	// IsActive=false so historical expenses keep their attribution.
	Member struct {
		UserID   string
		Role     Role
		JoinedAt time.Time
		IsActive bool
	}

	GroupSettings struct {
		SplitMethod SplitMethod
		Currency    string
	}

	GroupStats struct {
		MemberCount   int
		TotalExpenses int
		TotalAmount   Money
		LastActivity  time.Time
	}

	Group struct {
		ID          string
		Name        string
		Description string
		CreatedBy   string
		Members     []Member
		Settings    GroupSettings
		Stats       GroupStats
		InviteCode  string
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleMember
}

func (g Group) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return errors.New("group name cannot be empty")
	}
	if g.CreatedBy == "" {
		return errors.New("group requires a creator")
	}
	if g.InviteCode == "" {
		return errors.New("group requires an invite code")
	}
	if err := ValidateCurrency(g.Settings.Currency); err != nil {
		return err
	}
	if !g.Settings.SplitMethod.Valid() {
		return fmt.Errorf("invalid split method %q", g.Settings.SplitMethod)
	}
	return nil
}

// Category is a user-defined expense category, optionally nested under a parent.
type Category struct {
	ID       string
	UserID   string
	Name     string
	ParentID string
}

const NotificationBudgetAlert = "budget_alert"

// Notification is written by collaborators when the engine signals an alert.
type Notification struct {
	ID        string
	UserID    string
	BudgetID  string
	Kind      string
	Message   string
	CreatedAt time.Time
}
