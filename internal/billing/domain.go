package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind identifies which business object a payment settles.
type Kind string

const (
	// KindSale covers invoices and credit notes.
	KindSale Kind = "sale"
	// KindExpense covers operating and sales expenses.
	KindExpense Kind = "expense"
	// KindPurchase covers inbound stock transactions bought on credit.
	KindPurchase Kind = "purchase"
)

// Status tracks how much of a billable has been settled.
type Status string

const (
	StatusUnpaid  Status = "unpaid"
	StatusPartial Status = "partial"
	StatusPaid    Status = "paid"
)

// Method enumerates accepted payment methods. Every method except cash
// requires a reference number.
type Method string

const (
	MethodCash  Method = "cash"
	MethodMpesa Method = "mpesa"
	MethodBank  Method = "bank"
	MethodCard  Method = "card"
)

// ValidMethod reports whether m is a known payment method.
func ValidMethod(m Method) bool {
	switch m {
	case MethodCash, MethodMpesa, MethodBank, MethodCard:
		return true
	}
	return false
}

// DeriveStatus is the single place payment status is computed. It is
// sign-aware: credit notes carry negative amounts and negative payments
// (refunds), and the same arithmetic applies.
//
//	PAID    iff amount_due == 0
//	UNPAID  iff amount_paid == 0 (and amount != 0)
//	PARTIAL otherwise
func DeriveStatus(amount, paid decimal.Decimal) Status {
	if amount.Sub(paid).IsZero() {
		return StatusPaid
	}
	if paid.IsZero() {
		return StatusUnpaid
	}
	return StatusPartial
}

// Payment is an immutable, append-only settlement record. Amount is stored
// signed to match the billable: positive against invoices and expenses,
// negative for credit-note refunds. Payments are never edited or deleted;
// corrections happen through a new payment.
type Payment struct {
	ID              int64
	Kind            Kind
	BillableID      int64
	Amount          decimal.Decimal
	Method          Method
	ReferenceNumber string
	Receipt         string
	Date            time.Time
	Note            string
	CreatedBy       int64
	CreatedAt       time.Time
}

// Billable is the ledger's view of the object being settled. CustomerID is
// set for sale-kind billables so payments can move the customer balance.
type Billable struct {
	Kind       Kind
	ID         int64
	Amount     decimal.Decimal
	AmountPaid decimal.Decimal
	CustomerID int64
}

// Due returns the remaining amount, signed like the billable.
func (b Billable) Due() decimal.Decimal {
	return b.Amount.Sub(b.AmountPaid)
}

// BillableStatus is the derived read surface per billable.
type BillableStatus struct {
	Kind       Kind            `json:"kind"`
	BillableID int64           `json:"billable_id"`
	Amount     decimal.Decimal `json:"amount"`
	AmountPaid decimal.Decimal `json:"amount_paid"`
	AmountDue  decimal.Decimal `json:"amount_due"`
	Status     Status          `json:"payment_status"`
}

// PaymentInput describes a requested payment. Amount is the positive figure
// supplied by the caller; the ledger stores it signed to match the billable.
type PaymentInput struct {
	Kind            Kind
	BillableID      int64
	Amount          decimal.Decimal
	Method          Method
	ReferenceNumber string
	Date            time.Time
	Note            string
	ActorID         int64
}
