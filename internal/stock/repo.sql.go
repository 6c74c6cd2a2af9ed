package stock

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dukahub/dukahub/internal/billing"
	"github.com/dukahub/dukahub/internal/platform/db"
	"github.com/dukahub/dukahub/internal/shared"
)

// Repository persists stock data in PostgreSQL.
type Repository struct {
	pool    *pgxpool.Pool
	retries int
}

// NewRepository constructs Repository. retries bounds automatic replays of
// serialization conflicts.
func NewRepository(pool *pgxpool.Pool, retries int) *Repository {
	return &Repository{pool: pool, retries: retries}
}

// TxStore exposes the transactional operations the service needs. The sales
// engine obtains one from its own transaction so invoice stock effects share
// the invoice's boundary.
type TxStore interface {
	GetPositionForUpdate(ctx context.Context, variantID, locationID int64) (Position, error)
	UpsertPosition(ctx context.Context, pos Position) error
	InsertTransaction(ctx context.Context, txn Transaction) (int64, error)
	GetTransaction(ctx context.Context, id int64) (Transaction, error)
	HasReversal(ctx context.Context, id int64) (bool, error)
	InsertPurchasePayment(ctx context.Context, p billing.Payment) (int64, error)
}

// ErrPositionNotFound indicates a missing position row.
var ErrPositionNotFound = errors.New("stock position not found")

type txStore struct {
	tx pgx.Tx
}

// NewTxStore wraps an open transaction in a TxStore.
func NewTxStore(tx pgx.Tx) TxStore {
	return &txStore{tx: tx}
}

// WithTx executes the callback inside a repeatable-read transaction,
// retrying bounded times on serialization conflicts.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	if r == nil {
		return errors.New("stock repository not initialised")
	}
	return db.WithTxRetry(ctx, r.pool, r.retries, func(tx pgx.Tx) error {
		return fn(ctx, &txStore{tx: tx})
	})
}

const transactionColumns = `id, variant_id, transaction_type, quantity, from_location_id, to_location_id,
supplier_id, unit_cost, total_cost, payment_status, amount_paid, reference_type, reference_id, note, created_by, created_at`

// GetPosition returns the current position, zero-quantity when absent.
func (r *Repository) GetPosition(ctx context.Context, variantID, locationID int64) (Position, error) {
	row := r.pool.QueryRow(ctx, `SELECT variant_id, location_id, quantity, min_level, max_level, updated_at
FROM stock_positions WHERE variant_id=$1 AND location_id=$2`, variantID, locationID)
	pos, err := scanPosition(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Position{VariantID: variantID, LocationID: locationID}, nil
	}
	return pos, err
}

// ListTransactions lists committed transactions newest first.
func (r *Repository) ListTransactions(ctx context.Context, filter HistoryFilter) ([]Transaction, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT `+transactionColumns+`
FROM stock_transactions
WHERE ($1 = 0 OR variant_id = $1)
  AND ($2 = 0 OR from_location_id = $2 OR to_location_id = $2)
  AND ($3 = '' OR transaction_type = $3)
ORDER BY created_at DESC, id DESC
LIMIT $4`, filter.VariantID, filter.LocationID, string(filter.Type), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var txns []Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}
	return txns, rows.Err()
}

func (s *txStore) GetPositionForUpdate(ctx context.Context, variantID, locationID int64) (Position, error) {
	row := s.tx.QueryRow(ctx, `SELECT variant_id, location_id, quantity, min_level, max_level, updated_at
FROM stock_positions WHERE variant_id=$1 AND location_id=$2 FOR UPDATE`, variantID, locationID)
	pos, err := scanPosition(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Position{VariantID: variantID, LocationID: locationID}, ErrPositionNotFound
	}
	return pos, err
}

func (s *txStore) UpsertPosition(ctx context.Context, pos Position) error {
	_, err := s.tx.Exec(ctx, `INSERT INTO stock_positions (variant_id, location_id, quantity, updated_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (variant_id, location_id)
DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = NOW()`,
		pos.VariantID, pos.LocationID, pos.Quantity)
	return err
}

func (s *txStore) InsertTransaction(ctx context.Context, txn Transaction) (int64, error) {
	var id int64
	err := s.tx.QueryRow(ctx, `INSERT INTO stock_transactions
(variant_id, transaction_type, quantity, from_location_id, to_location_id, supplier_id,
 unit_cost, total_cost, payment_status, amount_paid, reference_type, reference_id, note, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NULLIF($11,''),NULLIF($12,0),$13,$14,$15)
RETURNING id`,
		txn.VariantID, string(txn.Type), txn.Quantity, txn.FromLocationID, txn.ToLocationID, txn.SupplierID,
		txn.UnitCost, txn.TotalCost, string(txn.PaymentStatus), txn.AmountPaid,
		txn.ReferenceType, txn.ReferenceID, txn.Note, txn.CreatedBy, txn.CreatedAt).Scan(&id)
	return id, err
}

func (s *txStore) GetTransaction(ctx context.Context, id int64) (Transaction, error) {
	row := s.tx.QueryRow(ctx, `SELECT `+transactionColumns+` FROM stock_transactions WHERE id=$1`, id)
	txn, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, fmt.Errorf("stock transaction %d: %w", id, shared.ErrNotFound)
	}
	return txn, err
}

func (s *txStore) HasReversal(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := s.tx.QueryRow(ctx, `SELECT EXISTS (
SELECT 1 FROM stock_transactions WHERE reference_type=$1 AND reference_id=$2)`, RefReversal, id).Scan(&exists)
	return exists, err
}

func (s *txStore) InsertPurchasePayment(ctx context.Context, p billing.Payment) (int64, error) {
	return billing.NewTxStore(s.tx).InsertPayment(ctx, p)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPosition(row rowScanner) (Position, error) {
	var pos Position
	err := row.Scan(&pos.VariantID, &pos.LocationID, &pos.Quantity, &pos.MinLevel, &pos.MaxLevel, &pos.UpdatedAt)
	return pos, err
}

func scanTransaction(row rowScanner) (Transaction, error) {
	var txn Transaction
	var txType, status string
	var refType *string
	var refID *int64
	err := row.Scan(&txn.ID, &txn.VariantID, &txType, &txn.Quantity, &txn.FromLocationID, &txn.ToLocationID,
		&txn.SupplierID, &txn.UnitCost, &txn.TotalCost, &status, &txn.AmountPaid,
		&refType, &refID, &txn.Note, &txn.CreatedBy, &txn.CreatedAt)
	if err != nil {
		return Transaction{}, err
	}
	txn.Type = TransactionType(txType)
	txn.PaymentStatus = billing.Status(status)
	if refType != nil {
		txn.ReferenceType = *refType
	}
	if refID != nil {
		txn.ReferenceID = *refID
	}
	return txn, nil
}
