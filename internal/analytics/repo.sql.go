package analytics

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository computes aggregates in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SalesSummary aggregates sales and collections in [from, to).
func (r *Repository) SalesSummary(ctx context.Context, from, to time.Time) (SalesSummary, error) {
	summary := SalesSummary{From: from, To: to}
	err := r.pool.QueryRow(ctx, `SELECT
COUNT(*) FILTER (WHERE sale_type = 'invoice'),
COUNT(*) FILTER (WHERE sale_type = 'credit_note'),
COALESCE(SUM(total_amount) FILTER (WHERE sale_type = 'invoice'), 0),
COALESCE(-SUM(total_amount) FILTER (WHERE sale_type = 'credit_note'), 0),
COALESCE(SUM(total_amount), 0)
FROM sales WHERE created_at >= $1 AND created_at < $2`, from, to).
		Scan(&summary.InvoiceCount, &summary.CreditNoteCount,
			&summary.GrossSales, &summary.Returns, &summary.NetSales)
	if err != nil {
		return SalesSummary{}, err
	}
	err = r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM payments
WHERE billable_kind = 'sale' AND created_at >= $1 AND created_at < $2`, from, to).
		Scan(&summary.PaymentsReceived)
	if err != nil {
		return SalesSummary{}, err
	}
	return summary, nil
}

// Receivables summarizes outstanding customer balances.
func (r *Repository) Receivables(ctx context.Context, topN int) (Receivables, error) {
	if topN <= 0 || topN > 50 {
		topN = 5
	}
	var out Receivables
	out.TotalOutstanding = decimal.Zero
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*), COALESCE(SUM(current_balance), 0)
FROM customers WHERE current_balance > 0`).Scan(&out.CustomersOwing, &out.TotalOutstanding)
	if err != nil {
		return Receivables{}, err
	}

	rows, err := r.pool.Query(ctx, `SELECT id, name, current_balance FROM customers
WHERE current_balance > 0 ORDER BY current_balance DESC LIMIT $1`, topN)
	if err != nil {
		return Receivables{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var d Debtor
		if err := rows.Scan(&d.CustomerID, &d.Name, &d.Balance); err != nil {
			return Receivables{}, err
		}
		out.TopDebtors = append(out.TopDebtors, d)
	}
	return out, rows.Err()
}

// LowStockCount counts positions at or below their minimum level.
func (r *Repository) LowStockCount(ctx context.Context) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM stock_positions
WHERE min_level IS NOT NULL AND quantity <= min_level`).Scan(&n)
	return n, err
}
