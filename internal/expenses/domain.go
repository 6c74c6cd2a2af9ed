package expenses

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/dukahub/dukahub/internal/billing"
)

// Frequency enumerates recurrence intervals.
type Frequency string

const (
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// Category groups expenses for reporting.
type Category struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// Expense is a billable cost. amount_paid and payment_status are maintained
// by the payment ledger, never set directly.
type Expense struct {
	ID            int64
	CategoryID    int64
	Description   string
	Amount        decimal.Decimal
	AmountPaid    decimal.Decimal
	PaymentStatus billing.Status
	ExpenseDate   time.Time
	RecurringID   *int64
	CreatedBy     int64
	CreatedAt     time.Time
}

// RecurringExpense is a schedule that materializes expenses over time. A
// schedule runs for at most 12 occurrences and never beyond one year from
// its start date.
type RecurringExpense struct {
	ID          int64
	CategoryID  int64
	Description string
	Amount      decimal.Decimal
	Frequency   Frequency
	StartDate   time.Time
	Occurrences int
	Generated   int
	NextRunAt   time.Time
	Active      bool
	CreatedBy   int64
	CreatedAt   time.Time
}

// ExpenseInput describes a requested expense.
type ExpenseInput struct {
	CategoryID      int64
	Description     string
	Amount          decimal.Decimal
	ExpenseDate     time.Time
	AmountPaid      decimal.Decimal
	PaymentMethod   billing.Method
	ReferenceNumber string
	ActorID         int64
}

// RecurringInput describes a requested schedule.
type RecurringInput struct {
	CategoryID  int64
	Description string
	Amount      decimal.Decimal
	Frequency   Frequency
	StartDate   time.Time
	Occurrences int
	ActorID     int64
}

// ListFilter filters expense listings.
type ListFilter struct {
	CategoryID int64
	From       time.Time
	To         time.Time
	Limit      int
}

// advance returns the run time after t for the frequency.
func (f Frequency) advance(t time.Time) time.Time {
	if f == FrequencyWeekly {
		return t.AddDate(0, 0, 7)
	}
	return t.AddDate(0, 1, 0)
}

// lastRun returns when the final occurrence of a schedule falls.
func lastRun(start time.Time, f Frequency, occurrences int) time.Time {
	t := start
	for i := 1; i < occurrences; i++ {
		t = f.advance(t)
	}
	return t
}
