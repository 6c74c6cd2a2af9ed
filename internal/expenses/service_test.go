package expenses

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/dukahub/dukahub/internal/billing"
	"github.com/dukahub/dukahub/internal/shared"
)

type memStore struct {
	categories []Category
	expenses   map[int64]Expense
	recurring  map[int64]*RecurringExpense
	payments   []billing.Payment
	nextID     int64
}

func newMemStore() *memStore {
	return &memStore{expenses: map[int64]Expense{}, recurring: map[int64]*RecurringExpense{}}
}

func (m *memStore) InsertExpense(_ context.Context, e Expense) (int64, error) {
	m.nextID++
	e.ID = m.nextID
	m.expenses[e.ID] = e
	return e.ID, nil
}

func (m *memStore) InsertExpensePayment(_ context.Context, p billing.Payment) (int64, error) {
	p.ID = int64(len(m.payments) + 1)
	m.payments = append(m.payments, p)
	return p.ID, nil
}

func (m *memStore) InsertRecurring(_ context.Context, r RecurringExpense) (int64, error) {
	m.nextID++
	r.ID = m.nextID
	m.recurring[r.ID] = &r
	return r.ID, nil
}

func (m *memStore) ListDueRecurringForUpdate(_ context.Context, now time.Time) ([]RecurringExpense, error) {
	var due []RecurringExpense
	for _, r := range m.recurring {
		if r.Active && !r.NextRunAt.After(now) {
			due = append(due, *r)
		}
	}
	return due, nil
}

func (m *memStore) UpdateRecurringProgress(_ context.Context, r RecurringExpense) error {
	stored, ok := m.recurring[r.ID]
	if !ok {
		return fmt.Errorf("recurring expense %d: %w", r.ID, shared.ErrNotFound)
	}
	*stored = r
	return nil
}

type memRepo struct {
	store *memStore
}

func (r *memRepo) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	return fn(ctx, r.store)
}

func (r *memRepo) CreateCategory(_ context.Context, name string) (Category, error) {
	cat := Category{ID: int64(len(r.store.categories) + 1), Name: name}
	r.store.categories = append(r.store.categories, cat)
	return cat, nil
}

func (r *memRepo) ListCategories(_ context.Context) ([]Category, error) {
	return r.store.categories, nil
}

func (r *memRepo) GetExpense(_ context.Context, id int64) (Expense, error) {
	e, ok := r.store.expenses[id]
	if !ok {
		return Expense{}, fmt.Errorf("expense %d: %w", id, shared.ErrNotFound)
	}
	return e, nil
}

func (r *memRepo) ListExpenses(_ context.Context, _ ListFilter) ([]Expense, error) {
	var out []Expense
	for _, e := range r.store.expenses {
		out = append(out, e)
	}
	return out, nil
}

func (r *memRepo) ListRecurring(_ context.Context, activeOnly bool) ([]RecurringExpense, error) {
	var out []RecurringExpense
	for _, rec := range r.store.recurring {
		if activeOnly && !rec.Active {
			continue
		}
		out = append(out, *rec)
	}
	return out, nil
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestService(store *memStore) *Service {
	return NewService(&memRepo{store: store}, nil)
}

func TestCreateExpense(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	expense, err := svc.Create(context.Background(), ExpenseInput{
		CategoryID: 1, Description: "rent", Amount: d("15000"),
	})
	require.NoError(t, err)
	require.Equal(t, billing.StatusUnpaid, expense.PaymentStatus)
	require.Empty(t, store.payments)
}

func TestCreateExpensePaidOnEntry(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	expense, err := svc.Create(context.Background(), ExpenseInput{
		CategoryID: 1, Amount: d("1000"), AmountPaid: d("1000"),
		PaymentMethod: billing.MethodMpesa, ReferenceNumber: "QX9",
	})
	require.NoError(t, err)
	require.Equal(t, billing.StatusPaid, expense.PaymentStatus)
	require.Len(t, store.payments, 1)
	require.Equal(t, billing.KindExpense, store.payments[0].Kind)
	require.Equal(t, expense.ID, store.payments[0].BillableID)
}

func TestCreateExpenseValidation(t *testing.T) {
	svc := newTestService(newMemStore())

	_, err := svc.Create(context.Background(), ExpenseInput{CategoryID: 1, Amount: d("0")})
	require.True(t, shared.IsValidation(err))

	_, err = svc.Create(context.Background(), ExpenseInput{
		CategoryID: 1, Amount: d("100"), AmountPaid: d("150"),
	})
	require.True(t, shared.IsValidation(err), "overpayment at entry rejected")

	_, err = svc.Create(context.Background(), ExpenseInput{
		CategoryID: 1, Amount: d("100"), AmountPaid: d("50"),
		PaymentMethod: billing.MethodBank,
	})
	require.True(t, shared.IsValidation(err), "bank payments need a reference")
}

func TestCreateRecurringBounds(t *testing.T) {
	svc := newTestService(newMemStore())
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	_, err := svc.CreateRecurring(context.Background(), RecurringInput{
		CategoryID: 1, Amount: d("100"), Frequency: FrequencyMonthly,
		StartDate: start, Occurrences: 13,
	})
	require.True(t, shared.IsValidation(err), "more than 12 occurrences rejected")

	_, err = svc.CreateRecurring(context.Background(), RecurringInput{
		CategoryID: 1, Amount: d("100"), Frequency: Frequency("daily"),
		StartDate: start, Occurrences: 4,
	})
	require.True(t, shared.IsValidation(err), "unknown frequency rejected")

	schedule, err := svc.CreateRecurring(context.Background(), RecurringInput{
		CategoryID: 1, Amount: d("100"), Frequency: FrequencyMonthly,
		StartDate: start, Occurrences: 12,
	})
	require.NoError(t, err, "12 monthly occurrences end exactly at the one-year boundary")
	require.True(t, schedule.Active)
	require.Equal(t, start, schedule.NextRunAt)
}

func TestGenerateDue(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	schedule, err := svc.CreateRecurring(context.Background(), RecurringInput{
		CategoryID: 1, Description: "internet", Amount: d("2500"),
		Frequency: FrequencyWeekly, StartDate: start, Occurrences: 3,
	})
	require.NoError(t, err)

	// Nothing due before the start date.
	n, err := svc.GenerateDue(context.Background(), start.Add(-time.Hour))
	require.NoError(t, err)
	require.Zero(t, n)

	// Two weeks in, two occurrences are due.
	n, err = svc.GenerateDue(context.Background(), start.AddDate(0, 0, 7))
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.True(t, store.recurring[schedule.ID].Active)

	// The run is idempotent until the next occurrence falls due.
	n, err = svc.GenerateDue(context.Background(), start.AddDate(0, 0, 7))
	require.NoError(t, err)
	require.Zero(t, n)

	// Final occurrence retires the schedule.
	n, err = svc.GenerateDue(context.Background(), start.AddDate(0, 0, 14))
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.False(t, store.recurring[schedule.ID].Active)

	require.Len(t, store.expenses, 3)
	for _, e := range store.expenses {
		require.NotNil(t, e.RecurringID)
		require.Equal(t, schedule.ID, *e.RecurringID)
		require.True(t, e.Amount.Equal(d("2500")))
		require.Equal(t, billing.StatusUnpaid, e.PaymentStatus)
	}
}
