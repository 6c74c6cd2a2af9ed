package billing

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/dukahub/dukahub/internal/shared"
)

type memBillable struct {
	billable Billable
	status   Status
}

type memStore struct {
	billables map[string]*memBillable
	payments  []Payment
	balances  map[int64]decimal.Decimal
	nextID    int64
}

func newMemStore() *memStore {
	return &memStore{
		billables: map[string]*memBillable{},
		balances:  map[int64]decimal.Decimal{},
	}
}

func (m *memStore) key(kind Kind, id int64) string { return fmt.Sprintf("%s/%d", kind, id) }

func (m *memStore) add(b Billable) {
	m.billables[m.key(b.Kind, b.ID)] = &memBillable{billable: b, status: DeriveStatus(b.Amount, b.AmountPaid)}
}

func (m *memStore) GetBillableForUpdate(_ context.Context, kind Kind, id int64) (Billable, error) {
	entry, ok := m.billables[m.key(kind, id)]
	if !ok {
		return Billable{}, fmt.Errorf("%s %d: %w", kind, id, shared.ErrNotFound)
	}
	return entry.billable, nil
}

func (m *memStore) InsertPayment(_ context.Context, p Payment) (int64, error) {
	m.nextID++
	p.ID = m.nextID
	m.payments = append(m.payments, p)
	return p.ID, nil
}

func (m *memStore) UpdateBillableTotals(_ context.Context, kind Kind, id int64, paid decimal.Decimal, status Status) error {
	entry, ok := m.billables[m.key(kind, id)]
	if !ok {
		return fmt.Errorf("%s %d: %w", kind, id, shared.ErrNotFound)
	}
	entry.billable.AmountPaid = paid
	entry.status = status
	return nil
}

func (m *memStore) AdjustCustomerBalance(_ context.Context, customerID int64, delta decimal.Decimal) error {
	m.balances[customerID] = m.balances[customerID].Add(delta)
	return nil
}

type memRepo struct {
	store *memStore
}

func (r *memRepo) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	return fn(ctx, r.store)
}

func (r *memRepo) GetBillable(ctx context.Context, kind Kind, id int64) (Billable, error) {
	return r.store.GetBillableForUpdate(ctx, kind, id)
}

func (r *memRepo) ListPayments(_ context.Context, kind Kind, billableID int64) ([]Payment, error) {
	var out []Payment
	for _, p := range r.store.payments {
		if p.Kind == kind && p.BillableID == billableID {
			out = append(out, p)
		}
	}
	return out, nil
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestService(store *memStore) *Service {
	return NewService(&memRepo{store: store}, nil, nil)
}

func TestRecordPaymentInvoice(t *testing.T) {
	store := newMemStore()
	store.add(Billable{Kind: KindSale, ID: 1, Amount: d("1000"), AmountPaid: d("0"), CustomerID: 7})
	store.balances[7] = d("1000")
	svc := newTestService(store)

	payment, err := svc.RecordPayment(context.Background(), PaymentInput{
		Kind: KindSale, BillableID: 1, Amount: d("400"),
		Method: MethodMpesa, ReferenceNumber: "QX12ABC", ActorID: 3,
	})
	require.NoError(t, err)
	require.True(t, payment.Amount.Equal(d("400")))
	require.NotEmpty(t, payment.Receipt)

	entry := store.billables["sale/1"]
	require.True(t, entry.billable.AmountPaid.Equal(d("400")))
	require.Equal(t, StatusPartial, entry.status)
	require.True(t, store.balances[7].Equal(d("600")), "collection lowers customer balance")

	// Settle the remainder.
	_, err = svc.RecordPayment(context.Background(), PaymentInput{
		Kind: KindSale, BillableID: 1, Amount: d("600"), Method: MethodCash,
	})
	require.NoError(t, err)
	require.Equal(t, StatusPaid, store.billables["sale/1"].status)
	require.True(t, store.balances[7].IsZero())
}

func TestRecordPaymentExceedsDue(t *testing.T) {
	store := newMemStore()
	store.add(Billable{Kind: KindSale, ID: 1, Amount: d("1000"), AmountPaid: d("800")})
	svc := newTestService(store)

	_, err := svc.RecordPayment(context.Background(), PaymentInput{
		Kind: KindSale, BillableID: 1, Amount: d("200.01"), Method: MethodCash,
	})
	require.Error(t, err)
	require.True(t, shared.IsConflict(err, shared.ReasonExceedsAmountDue))
	conflict, _ := shared.AsConflict(err)
	require.Contains(t, conflict.Message, "KES 200.00")
	require.Empty(t, store.payments, "no payment is recorded on rejection")
}

func TestRecordPaymentMethodRules(t *testing.T) {
	store := newMemStore()
	store.add(Billable{Kind: KindExpense, ID: 4, Amount: d("500")})
	svc := newTestService(store)

	_, err := svc.RecordPayment(context.Background(), PaymentInput{
		Kind: KindExpense, BillableID: 4, Amount: d("100"), Method: MethodMpesa,
	})
	require.Error(t, err, "mpesa requires a reference number")
	require.True(t, shared.IsValidation(err))

	_, err = svc.RecordPayment(context.Background(), PaymentInput{
		Kind: KindExpense, BillableID: 4, Amount: d("100"),
		Method: MethodCash, ReferenceNumber: "RCPT-1",
	})
	require.Error(t, err, "cash must not carry a reference number")
	require.True(t, shared.IsValidation(err))

	_, err = svc.RecordPayment(context.Background(), PaymentInput{
		Kind: KindExpense, BillableID: 4, Amount: d("100"),
		Method: MethodBank, ReferenceNumber: "TRF-889",
	})
	require.NoError(t, err)
}

func TestRecordPaymentRejectsNonPositiveAmount(t *testing.T) {
	svc := newTestService(newMemStore())

	_, err := svc.RecordPayment(context.Background(), PaymentInput{
		Kind: KindSale, BillableID: 1, Amount: d("0"), Method: MethodCash,
	})
	require.True(t, shared.IsValidation(err))

	_, err = svc.RecordPayment(context.Background(), PaymentInput{
		Kind: KindSale, BillableID: 1, Amount: d("-50"), Method: MethodCash,
	})
	require.True(t, shared.IsValidation(err))
}

func TestRecordRefundAgainstCreditNote(t *testing.T) {
	store := newMemStore()
	// Credit notes carry negative totals; refunds are stored negative.
	store.add(Billable{Kind: KindSale, ID: 9, Amount: d("-300"), AmountPaid: d("0"), CustomerID: 5})
	store.balances[5] = d("-300")
	svc := newTestService(store)

	payment, err := svc.RecordPayment(context.Background(), PaymentInput{
		Kind: KindSale, BillableID: 9, Amount: d("300"), Method: MethodCash,
	})
	require.NoError(t, err)
	require.True(t, payment.Amount.Equal(d("-300")), "refund takes the billable's sign")

	entry := store.billables["sale/9"]
	require.Equal(t, StatusPaid, entry.status)
	require.True(t, store.balances[5].IsZero(), "refund settles the credit owed to the customer")
}

func TestRefundCannotExceedCreditNote(t *testing.T) {
	store := newMemStore()
	store.add(Billable{Kind: KindSale, ID: 9, Amount: d("-300"), AmountPaid: d("-250")})
	svc := newTestService(store)

	_, err := svc.RecordPayment(context.Background(), PaymentInput{
		Kind: KindSale, BillableID: 9, Amount: d("100"), Method: MethodCash,
	})
	require.True(t, shared.IsConflict(err, shared.ReasonExceedsAmountDue))
}

func TestStatusReadModel(t *testing.T) {
	store := newMemStore()
	store.add(Billable{Kind: KindPurchase, ID: 2, Amount: d("750"), AmountPaid: d("750")})
	svc := newTestService(store)

	status, err := svc.Status(context.Background(), KindPurchase, 2)
	require.NoError(t, err)
	require.Equal(t, StatusPaid, status.Status)
	require.True(t, status.AmountDue.IsZero())
}
