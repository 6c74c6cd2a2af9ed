package stock

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/dukahub/dukahub/internal/billing"
)

// TransactionType enumerates supported stock movements.
type TransactionType string

const (
	// TypeIn represents an inbound movement (purchase receipt, return).
	TypeIn TransactionType = "in"
	// TypeOut represents an outbound movement (sale, issue).
	TypeOut TransactionType = "out"
	// TypeTransfer moves stock between two locations.
	TypeTransfer TransactionType = "transfer"
	// TypeAdjustment corrects a count with a signed delta.
	TypeAdjustment TransactionType = "adjustment"
)

// Reference types linking a transaction to the entity that caused it.
const (
	RefSale             = "sale"
	RefCreditNoteReturn = "credit_note_return"
	RefReversal         = "reversal"
)

// Transaction is an immutable, append-only stock movement. Quantity is always
// stored non-negative; direction is implied by type and the from/to fields.
// Corrections happen only through a new reversal transaction referencing it.
type Transaction struct {
	ID             int64
	VariantID      int64
	Type           TransactionType
	Quantity       int64
	FromLocationID *int64
	ToLocationID   *int64
	SupplierID     *int64
	UnitCost       *decimal.Decimal
	TotalCost      *decimal.Decimal
	PaymentStatus  billing.Status
	AmountPaid     decimal.Decimal
	ReferenceType  string
	ReferenceID    int64
	Note           string
	CreatedBy      int64
	CreatedAt      time.Time
}

// Billable reports whether the transaction opened a payable to a supplier.
func (t Transaction) Billable() bool {
	return t.Type == TypeIn && t.SupplierID != nil && t.TotalCost != nil
}

// Position is the derived on-hand quantity of one variant at one location.
// It is mutated only by applying transactions, never set directly.
type Position struct {
	VariantID  int64
	LocationID int64
	Quantity   int64
	MinLevel   *int64
	MaxLevel   *int64
	UpdatedAt  time.Time
}

// LowStock reports whether the position sits at or below its minimum level.
func (p Position) LowStock() bool {
	return p.MinLevel != nil && p.Quantity <= *p.MinLevel
}

// MovementInput describes a requested movement. Quantity is positive except
// for adjustments, where the sign carries the direction of the correction.
type MovementInput struct {
	VariantID       int64
	Type            TransactionType
	Quantity        int64
	FromLocationID  int64
	ToLocationID    int64
	SupplierID      int64
	UnitCost        *decimal.Decimal
	AmountPaid      decimal.Decimal
	PaymentMethod   billing.Method
	ReferenceNumber string
	ReferenceType   string
	ReferenceID     int64
	Note            string
	ActorID         int64
}

// HistoryFilter filters transaction listings.
type HistoryFilter struct {
	VariantID  int64
	LocationID int64
	Type       TransactionType
	Limit      int
}
