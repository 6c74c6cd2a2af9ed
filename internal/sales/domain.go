package sales

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/dukahub/dukahub/internal/billing"
)

// SaleType distinguishes the two documents the engine issues.
type SaleType string

const (
	TypeInvoice    SaleType = "invoice"
	TypeCreditNote SaleType = "credit_note"
)

// Sale is an issued document. Invoices carry positive totals, credit notes
// negative ones; both are immutable once created. amount_paid and
// payment_status are maintained by the payment ledger.
type Sale struct {
	ID             int64
	Number         string
	Type           SaleType
	CustomerID     *int64
	OriginalSaleID *int64
	LocationID     int64
	Subtotal       decimal.Decimal
	DiscountPct    decimal.Decimal
	DiscountAmount decimal.Decimal
	TotalAmount    decimal.Decimal
	AmountPaid     decimal.Decimal
	PaymentStatus  billing.Status
	Note           string
	CreatedBy      int64
	CreatedAt      time.Time
}

// SaleItem is one line of a sale. Unit price and discount are frozen at
// issue time; credit-note lines point back at the invoice line they return.
type SaleItem struct {
	ID                 int64
	SaleID             int64
	VariantID          int64
	Quantity           int64
	UnitPrice          decimal.Decimal
	LineTotal          decimal.Decimal
	OriginalSaleItemID *int64
}

// CustomerAccount is the engine's view of the customer being sold to.
type CustomerAccount struct {
	ID          int64
	Name        string
	CreditLimit decimal.Decimal
	Balance     decimal.Decimal
	TierID      *int64
	Active      bool
}

// InvoiceLine is one requested invoice line.
type InvoiceLine struct {
	VariantID int64
	Quantity  int64
}

// InvoiceInput describes a requested invoice. CustomerID nil means a walk-in
// sale with no account behind it.
type InvoiceInput struct {
	CustomerID      *int64
	LocationID      int64
	Lines           []InvoiceLine
	AmountPaid      decimal.Decimal
	PaymentMethod   billing.Method
	ReferenceNumber string
	Note            string
	ActorID         int64
}

// CreditNoteLine returns part of one invoice line.
type CreditNoteLine struct {
	OriginalSaleItemID int64
	Quantity           int64
}

// CreditNoteInput describes a requested credit note against an invoice.
type CreditNoteInput struct {
	OriginalSaleID int64
	Lines          []CreditNoteLine
	Note           string
	ActorID        int64
}

// ListFilter filters sale listings.
type ListFilter struct {
	Type       SaleType
	CustomerID int64
	LocationID int64
	Limit      int
}
