package sales

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/dukahub/dukahub/internal/billing"
	"github.com/dukahub/dukahub/internal/platform/db"
	"github.com/dukahub/dukahub/internal/shared"
	"github.com/dukahub/dukahub/internal/stock"
)

// Repository persists sales in PostgreSQL.
type Repository struct {
	pool    *pgxpool.Pool
	retries int
}

func NewRepository(pool *pgxpool.Pool, retries int) *Repository {
	return &Repository{pool: pool, retries: retries}
}

// TxStore exposes the transactional operations the sales engine needs.
// Stock returns a stock ledger store bound to the same transaction, so
// invoice stock effects share the invoice's boundary.
type TxStore interface {
	Stock() stock.TxStore
	GetCustomerForUpdate(ctx context.Context, id int64) (CustomerAccount, error)
	GetTierDiscount(ctx context.Context, tierID int64) (decimal.Decimal, error)
	GetVariantPrice(ctx context.Context, variantID int64) (decimal.Decimal, error)
	NextSaleNumber(ctx context.Context, t SaleType) (string, error)
	InsertSale(ctx context.Context, sale Sale) (int64, error)
	InsertSaleItem(ctx context.Context, item SaleItem) (int64, error)
	GetSaleForUpdate(ctx context.Context, id int64) (Sale, error)
	ListSaleItems(ctx context.Context, saleID int64) ([]SaleItem, error)
	ReturnedQuantity(ctx context.Context, originalItemID int64) (int64, error)
	AdjustCustomerBalance(ctx context.Context, customerID int64, delta decimal.Decimal) error
	InsertSalePayment(ctx context.Context, p billing.Payment) (int64, error)
}

type txStore struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction,
// retrying bounded times on serialization conflicts.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	return db.WithTxRetry(ctx, r.pool, r.retries, func(tx pgx.Tx) error {
		return fn(ctx, &txStore{tx: tx})
	})
}

const saleColumns = `id, number, sale_type, customer_id, original_sale_id, location_id,
subtotal, discount_pct, discount_amount, total_amount, amount_paid, payment_status,
COALESCE(note,''), created_by, created_at`

// GetSale returns one sale with its lines.
func (r *Repository) GetSale(ctx context.Context, id int64) (Sale, []SaleItem, error) {
	sale, err := scanSale(r.pool.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Sale{}, nil, fmt.Errorf("sale %d: %w", id, shared.ErrNotFound)
	}
	if err != nil {
		return Sale{}, nil, err
	}
	items, err := listSaleItems(ctx, r.pool, id)
	return sale, items, err
}

// ListSales returns sales matching the filter, newest first.
func (r *Repository) ListSales(ctx context.Context, filter ListFilter) ([]Sale, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT `+saleColumns+` FROM sales
WHERE ($1 = '' OR sale_type = $1)
  AND ($2 = 0 OR customer_id = $2)
  AND ($3 = 0 OR location_id = $3)
ORDER BY created_at DESC, id DESC
LIMIT $4`, string(filter.Type), filter.CustomerID, filter.LocationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sales []Sale
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, sale)
	}
	return sales, rows.Err()
}

func (s *txStore) Stock() stock.TxStore {
	return stock.NewTxStore(s.tx)
}

func (s *txStore) GetCustomerForUpdate(ctx context.Context, id int64) (CustomerAccount, error) {
	var acc CustomerAccount
	err := s.tx.QueryRow(ctx, `SELECT id, name, credit_limit, current_balance, pricing_tier_id, is_active
FROM customers WHERE id=$1 FOR UPDATE`, id).
		Scan(&acc.ID, &acc.Name, &acc.CreditLimit, &acc.Balance, &acc.TierID, &acc.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return CustomerAccount{}, fmt.Errorf("customer %d: %w", id, shared.ErrNotFound)
	}
	return acc, err
}

func (s *txStore) GetTierDiscount(ctx context.Context, tierID int64) (decimal.Decimal, error) {
	var pct decimal.Decimal
	err := s.tx.QueryRow(ctx, `SELECT discount_pct FROM pricing_tiers WHERE id=$1`, tierID).Scan(&pct)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("pricing tier %d: %w", tierID, shared.ErrNotFound)
	}
	return pct, err
}

func (s *txStore) GetVariantPrice(ctx context.Context, variantID int64) (decimal.Decimal, error) {
	var price decimal.Decimal
	err := s.tx.QueryRow(ctx, `SELECT selling_price FROM product_variants WHERE id=$1 AND is_active`,
		variantID).Scan(&price)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("variant %d: %w", variantID, shared.ErrNotFound)
	}
	return price, err
}

// NextSaleNumber draws from a per-type sequence. Gaps from rolled-back
// transactions are acceptable; duplicates are not.
func (s *txStore) NextSaleNumber(ctx context.Context, t SaleType) (string, error) {
	seq, prefix := "invoice_number_seq", "INV"
	if t == TypeCreditNote {
		seq, prefix = "credit_note_number_seq", "CRN"
	}
	var n int64
	if err := s.tx.QueryRow(ctx, `SELECT nextval($1::regclass)`, seq).Scan(&n); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%06d", prefix, n), nil
}

func (s *txStore) InsertSale(ctx context.Context, sale Sale) (int64, error) {
	var id int64
	err := s.tx.QueryRow(ctx, `INSERT INTO sales
(number, sale_type, customer_id, original_sale_id, location_id, subtotal, discount_pct,
 discount_amount, total_amount, amount_paid, payment_status, note, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,NULLIF($12,''),$13,$14)
RETURNING id`,
		sale.Number, string(sale.Type), sale.CustomerID, sale.OriginalSaleID, sale.LocationID,
		sale.Subtotal, sale.DiscountPct, sale.DiscountAmount, sale.TotalAmount,
		sale.AmountPaid, string(sale.PaymentStatus), sale.Note, sale.CreatedBy, sale.CreatedAt).Scan(&id)
	return id, err
}

func (s *txStore) InsertSaleItem(ctx context.Context, item SaleItem) (int64, error) {
	var id int64
	err := s.tx.QueryRow(ctx, `INSERT INTO sale_items
(sale_id, variant_id, quantity, unit_price, line_total, original_sale_item_id)
VALUES ($1,$2,$3,$4,$5,$6)
RETURNING id`,
		item.SaleID, item.VariantID, item.Quantity, item.UnitPrice, item.LineTotal,
		item.OriginalSaleItemID).Scan(&id)
	return id, err
}

func (s *txStore) GetSaleForUpdate(ctx context.Context, id int64) (Sale, error) {
	sale, err := scanSale(s.tx.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE id=$1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Sale{}, fmt.Errorf("sale %d: %w", id, shared.ErrNotFound)
	}
	return sale, err
}

func (s *txStore) ListSaleItems(ctx context.Context, saleID int64) ([]SaleItem, error) {
	return listSaleItems(ctx, s.tx, saleID)
}

// ReturnedQuantity sums returns already issued against one invoice line.
func (s *txStore) ReturnedQuantity(ctx context.Context, originalItemID int64) (int64, error) {
	var total int64
	err := s.tx.QueryRow(ctx, `SELECT COALESCE(SUM(quantity), 0)
FROM sale_items WHERE original_sale_item_id=$1`, originalItemID).Scan(&total)
	return total, err
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

func (s *txStore) InsertSalePayment(ctx context.Context, p billing.Payment) (int64, error) {
	return billing.NewTxStore(s.tx).InsertPayment(ctx, p)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listSaleItems(ctx context.Context, q querier, saleID int64) ([]SaleItem, error) {
	rows, err := q.Query(ctx, `SELECT id, sale_id, variant_id, quantity, unit_price, line_total, original_sale_item_id
FROM sale_items WHERE sale_id=$1 ORDER BY id`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SaleItem
	for rows.Next() {
		var item SaleItem
		if err := rows.Scan(&item.ID, &item.SaleID, &item.VariantID, &item.Quantity,
			&item.UnitPrice, &item.LineTotal, &item.OriginalSaleItemID); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSale(row rowScanner) (Sale, error) {
	var sale Sale
	var saleType, status string
	err := row.Scan(&sale.ID, &sale.Number, &saleType, &sale.CustomerID, &sale.OriginalSaleID,
		&sale.LocationID, &sale.Subtotal, &sale.DiscountPct, &sale.DiscountAmount,
		&sale.TotalAmount, &sale.AmountPaid, &status, &sale.Note, &sale.CreatedBy, &sale.CreatedAt)
	if err != nil {
		return Sale{}, err
	}
	sale.Type = SaleType(saleType)
	sale.PaymentStatus = billing.Status(status)
	return sale, nil
}
