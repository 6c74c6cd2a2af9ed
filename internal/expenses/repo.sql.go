package expenses

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dukahub/dukahub/internal/billing"
	"github.com/dukahub/dukahub/internal/platform/db"
	"github.com/dukahub/dukahub/internal/shared"
)

// Repository persists expenses in PostgreSQL.
type Repository struct {
	pool    *pgxpool.Pool
	retries int
}

func NewRepository(pool *pgxpool.Pool, retries int) *Repository {
	return &Repository{pool: pool, retries: retries}
}

// TxStore exposes the transactional operations the service needs.
type TxStore interface {
	InsertExpense(ctx context.Context, e Expense) (int64, error)
	InsertExpensePayment(ctx context.Context, p billing.Payment) (int64, error)
	InsertRecurring(ctx context.Context, r RecurringExpense) (int64, error)
	ListDueRecurringForUpdate(ctx context.Context, now time.Time) ([]RecurringExpense, error)
	UpdateRecurringProgress(ctx context.Context, r RecurringExpense) error
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

// CreateCategory inserts a category.
func (r *Repository) CreateCategory(ctx context.Context, name string) (Category, error) {
	cat := Category{Name: name, CreatedAt: time.Now().UTC()}
	err := r.pool.QueryRow(ctx, `INSERT INTO expense_categories (name, created_at) VALUES ($1, $2)
RETURNING id`, cat.Name, cat.CreatedAt).Scan(&cat.ID)
	return cat, err
}

// ListCategories lists categories by name.
func (r *Repository) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, created_at FROM expense_categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var cats []Category
	for rows.Next() {
		var cat Category
		if err := rows.Scan(&cat.ID, &cat.Name, &cat.CreatedAt); err != nil {
			return nil, err
		}
		cats = append(cats, cat)
	}
	return cats, rows.Err()
}

const expenseColumns = `id, category_id, COALESCE(description,''), amount, amount_paid, payment_status,
expense_date, recurring_id, created_by, created_at`

// GetExpense returns one expense.
func (r *Repository) GetExpense(ctx context.Context, id int64) (Expense, error) {
	e, err := scanExpense(r.pool.QueryRow(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Expense{}, fmt.Errorf("expense %d: %w", id, shared.ErrNotFound)
	}
	return e, err
}

// ListExpenses lists expenses matching the filter, newest first.
func (r *Repository) ListExpenses(ctx context.Context, filter ListFilter) ([]Expense, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT `+expenseColumns+` FROM expenses
WHERE ($1 = 0 OR category_id = $1)
  AND ($2::timestamptz IS NULL OR expense_date >= $2)
  AND ($3::timestamptz IS NULL OR expense_date <= $3)
ORDER BY expense_date DESC, id DESC
LIMIT $4`, filter.CategoryID, nullTime(filter.From), nullTime(filter.To), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

const recurringColumns = `id, category_id, COALESCE(description,''), amount, frequency, start_date,
occurrences, generated, next_run_at, is_active, created_by, created_at`

// ListRecurring lists schedules.
func (r *Repository) ListRecurring(ctx context.Context, activeOnly bool) ([]RecurringExpense, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+recurringColumns+` FROM recurring_expenses
WHERE (NOT $1 OR is_active) ORDER BY next_run_at`, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecurring(rows)
}

func (s *txStore) InsertExpense(ctx context.Context, e Expense) (int64, error) {
	var id int64
	err := s.tx.QueryRow(ctx, `INSERT INTO expenses
(category_id, description, amount, amount_paid, payment_status, expense_date, recurring_id, created_by, created_at)
VALUES ($1,NULLIF($2,''),$3,$4,$5,$6,$7,$8,$9)
RETURNING id`,
		e.CategoryID, e.Description, e.Amount, e.AmountPaid, string(e.PaymentStatus),
		e.ExpenseDate, e.RecurringID, e.CreatedBy, e.CreatedAt).Scan(&id)
	return id, err
}

func (s *txStore) InsertExpensePayment(ctx context.Context, p billing.Payment) (int64, error) {
	return billing.NewTxStore(s.tx).InsertPayment(ctx, p)
}

func (s *txStore) InsertRecurring(ctx context.Context, r RecurringExpense) (int64, error) {
	var id int64
	err := s.tx.QueryRow(ctx, `INSERT INTO recurring_expenses
(category_id, description, amount, frequency, start_date, occurrences, generated, next_run_at, is_active, created_by, created_at)
VALUES ($1,NULLIF($2,''),$3,$4,$5,$6,$7,$8,$9,$10,$11)
RETURNING id`,
		r.CategoryID, r.Description, r.Amount, string(r.Frequency), r.StartDate,
		r.Occurrences, r.Generated, r.NextRunAt, r.Active, r.CreatedBy, r.CreatedAt).Scan(&id)
	return id, err
}

// ListDueRecurringForUpdate locks due schedules so concurrent generation
// runs cannot pick up the same schedule twice.
func (s *txStore) ListDueRecurringForUpdate(ctx context.Context, now time.Time) ([]RecurringExpense, error) {
	rows, err := s.tx.Query(ctx, `SELECT `+recurringColumns+` FROM recurring_expenses
WHERE is_active AND next_run_at <= $1
ORDER BY next_run_at
FOR UPDATE SKIP LOCKED`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecurring(rows)
}

func (s *txStore) UpdateRecurringProgress(ctx context.Context, r RecurringExpense) error {
	_, err := s.tx.Exec(ctx, `UPDATE recurring_expenses
SET generated=$2, next_run_at=$3, is_active=$4 WHERE id=$1`,
		r.ID, r.Generated, r.NextRunAt, r.Active)
	return err
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (Expense, error) {
	var e Expense
	var status string
	err := row.Scan(&e.ID, &e.CategoryID, &e.Description, &e.Amount, &e.AmountPaid, &status,
		&e.ExpenseDate, &e.RecurringID, &e.CreatedBy, &e.CreatedAt)
	if err != nil {
		return Expense{}, err
	}
	e.PaymentStatus = billing.Status(status)
	return e, nil
}

func collectRecurring(rows pgx.Rows) ([]RecurringExpense, error) {
	var out []RecurringExpense
	for rows.Next() {
		var r RecurringExpense
		var freq string
		if err := rows.Scan(&r.ID, &r.CategoryID, &r.Description, &r.Amount, &freq, &r.StartDate,
			&r.Occurrences, &r.Generated, &r.NextRunAt, &r.Active, &r.CreatedBy, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Frequency = Frequency(freq)
		out = append(out, r)
	}
	return out, rows.Err()
}
