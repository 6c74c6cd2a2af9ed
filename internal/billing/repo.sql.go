package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/dukahub/dukahub/internal/platform/db"
	"github.com/dukahub/dukahub/internal/shared"
)

// Repository persists payments in PostgreSQL.
type Repository struct {
	pool    *pgxpool.Pool
	retries int
}

func NewRepository(pool *pgxpool.Pool, retries int) *Repository {
	return &Repository{pool: pool, retries: retries}
}

// TxStore exposes the transactional operations the service needs.
type TxStore interface {
	GetBillableForUpdate(ctx context.Context, kind Kind, id int64) (Billable, error)
	InsertPayment(ctx context.Context, p Payment) (int64, error)
	UpdateBillableTotals(ctx context.Context, kind Kind, id int64, paid decimal.Decimal, status Status) error
	AdjustCustomerBalance(ctx context.Context, customerID int64, delta decimal.Decimal) error
}

type txStore struct {
	tx pgx.Tx
}

// NewTxStore wraps an open transaction in a TxStore so other modules can
// post payments inside their own transactional boundary.
func NewTxStore(tx pgx.Tx) TxStore {
	return &txStore{tx: tx}
}

// WithTx executes the callback inside a repeatable-read transaction,
// retrying bounded times on serialization conflicts.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	return db.WithTxRetry(ctx, r.pool, r.retries, func(tx pgx.Tx) error {
		return fn(ctx, &txStore{tx: tx})
	})
}

// GetBillable reads one billable without locking it.
func (r *Repository) GetBillable(ctx context.Context, kind Kind, id int64) (Billable, error) {
	query, err := billableQuery(kind, false)
	if err != nil {
		return Billable{}, err
	}
	return scanBillable(r.pool.QueryRow(ctx, query, id), kind, id)
}

// ListPayments returns the payment stream for one billable, oldest first.
func (r *Repository) ListPayments(ctx context.Context, kind Kind, billableID int64) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, billable_kind, billable_id, amount, method,
COALESCE(reference_number,''), receipt_number, payment_date, COALESCE(note,''), created_by, created_at
FROM payments WHERE billable_kind=$1 AND billable_id=$2
ORDER BY created_at, id`, string(kind), billableID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var payments []Payment
	for rows.Next() {
		var p Payment
		var k string
		if err := rows.Scan(&p.ID, &k, &p.BillableID, &p.Amount, &p.Method,
			&p.ReferenceNumber, &p.Receipt, &p.Date, &p.Note, &p.CreatedBy, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Kind = Kind(k)
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (s *txStore) GetBillableForUpdate(ctx context.Context, kind Kind, id int64) (Billable, error) {
	query, err := billableQuery(kind, true)
	if err != nil {
		return Billable{}, err
	}
	return scanBillable(s.tx.QueryRow(ctx, query, id), kind, id)
}

func (s *txStore) InsertPayment(ctx context.Context, p Payment) (int64, error) {
	var id int64
	err := s.tx.QueryRow(ctx, `INSERT INTO payments
(billable_kind, billable_id, amount, method, reference_number, receipt_number, payment_date, note, created_by, created_at)
VALUES ($1,$2,$3,$4,NULLIF($5,''),$6,$7,NULLIF($8,''),$9,$10)
RETURNING id`,
		string(p.Kind), p.BillableID, p.Amount, string(p.Method), p.ReferenceNumber,
		p.Receipt, p.Date, p.Note, p.CreatedBy, p.CreatedAt).Scan(&id)
	return id, err
}

func (s *txStore) UpdateBillableTotals(ctx context.Context, kind Kind, id int64, paid decimal.Decimal, status Status) error {
	var query string
	switch kind {
	case KindSale:
		query = `UPDATE sales SET amount_paid=$2, payment_status=$3 WHERE id=$1`
	case KindExpense:
		query = `UPDATE expenses SET amount_paid=$2, payment_status=$3 WHERE id=$1`
	case KindPurchase:
		query = `UPDATE stock_transactions SET amount_paid=$2, payment_status=$3 WHERE id=$1`
	default:
		return fmt.Errorf("billing: unknown kind %q", kind)
	}
	tag, err := s.tx.Exec(ctx, query, id, paid, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %d: %w", kind, id, shared.ErrNotFound)
	}
	return nil
}

func (s *txStore) AdjustCustomerBalance(ctx context.Context, customerID int64, delta decimal.Decimal) error {
	tag, err := s.tx.Exec(ctx,
		`UPDATE customers SET current_balance = current_balance + $2, updated_at = NOW() WHERE id=$1`,
		customerID, delta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("customer %d: %w", customerID, shared.ErrNotFound)
	}
	return nil
}

// billableQuery maps a kind to the table holding it. Purchase billables are
// inbound stock transactions with a supplier and a total cost.
func billableQuery(kind Kind, forUpdate bool) (string, error) {
	var query string
	switch kind {
	case KindSale:
		query = `SELECT id, total_amount, amount_paid, COALESCE(customer_id, 0) FROM sales WHERE id=$1`
	case KindExpense:
		query = `SELECT id, amount, amount_paid, 0 FROM expenses WHERE id=$1`
	case KindPurchase:
		query = `SELECT id, total_cost, amount_paid, 0 FROM stock_transactions
WHERE id=$1 AND transaction_type='in' AND supplier_id IS NOT NULL AND total_cost IS NOT NULL`
	default:
		return "", fmt.Errorf("billing: unknown kind %q", kind)
	}
	if forUpdate {
		query += " FOR UPDATE"
	}
	return query, nil
}

func scanBillable(row pgx.Row, kind Kind, id int64) (Billable, error) {
	b := Billable{Kind: kind}
	err := row.Scan(&b.ID, &b.Amount, &b.AmountPaid, &b.CustomerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Billable{}, fmt.Errorf("%s %d: %w", kind, id, shared.ErrNotFound)
	}
	return b, err
}
