package analytics

import (
	"time"

	"github.com/shopspring/decimal"
)

// SalesSummary aggregates issued documents and collections over a window.
type SalesSummary struct {
	From             time.Time       `json:"from"`
	To               time.Time       `json:"to"`
	InvoiceCount     int64           `json:"invoice_count"`
	CreditNoteCount  int64           `json:"credit_note_count"`
	GrossSales       decimal.Decimal `json:"gross_sales"`
	Returns          decimal.Decimal `json:"returns"`
	NetSales         decimal.Decimal `json:"net_sales"`
	PaymentsReceived decimal.Decimal `json:"payments_received"`
}

// Receivables summarizes what customers owe right now.
type Receivables struct {
	CustomersOwing   int64           `json:"customers_owing"`
	TotalOutstanding decimal.Decimal `json:"total_outstanding"`
	TopDebtors       []Debtor        `json:"top_debtors"`
}

// Debtor is one customer's outstanding position.
type Debtor struct {
	CustomerID int64           `json:"customer_id"`
	Name       string          `json:"name"`
	Balance    decimal.Decimal `json:"balance"`
}

// Snapshot is the dashboard read model.
type Snapshot struct {
	SalesToday    SalesSummary `json:"sales_today"`
	Receivables   Receivables  `json:"receivables"`
	LowStockCount int64        `json:"low_stock_count"`
	GeneratedAt   time.Time    `json:"generated_at"`
}
