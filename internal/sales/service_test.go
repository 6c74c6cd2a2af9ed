package sales

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/dukahub/dukahub/internal/billing"
	"github.com/dukahub/dukahub/internal/shared"
	"github.com/dukahub/dukahub/internal/stock"
)

type posKey struct {
	variantID  int64
	locationID int64
}

// memStock satisfies stock.TxStore so invoice stock effects run through the
// real stock ledger service.
type memStock struct {
	positions map[posKey]stock.Position
	txns      map[int64]stock.Transaction
	nextID    int64
}

func newMemStock() *memStock {
	return &memStock{positions: map[posKey]stock.Position{}, txns: map[int64]stock.Transaction{}}
}

func (m *memStock) GetPositionForUpdate(_ context.Context, variantID, locationID int64) (stock.Position, error) {
	pos, ok := m.positions[posKey{variantID, locationID}]
	if !ok {
		return stock.Position{VariantID: variantID, LocationID: locationID}, stock.ErrPositionNotFound
	}
	return pos, nil
}

func (m *memStock) UpsertPosition(_ context.Context, pos stock.Position) error {
	m.positions[posKey{pos.VariantID, pos.LocationID}] = pos
	return nil
}

func (m *memStock) InsertTransaction(_ context.Context, txn stock.Transaction) (int64, error) {
	m.nextID++
	txn.ID = m.nextID
	m.txns[txn.ID] = txn
	return txn.ID, nil
}

func (m *memStock) GetTransaction(_ context.Context, id int64) (stock.Transaction, error) {
	txn, ok := m.txns[id]
	if !ok {
		return stock.Transaction{}, fmt.Errorf("stock transaction %d: %w", id, shared.ErrNotFound)
	}
	return txn, nil
}

func (m *memStock) HasReversal(_ context.Context, id int64) (bool, error) {
	for _, txn := range m.txns {
		if txn.ReferenceType == stock.RefReversal && txn.ReferenceID == id {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStock) InsertPurchasePayment(_ context.Context, p billing.Payment) (int64, error) {
	return 1, nil
}

type memStore struct {
	customers map[int64]*CustomerAccount
	tiers     map[int64]decimal.Decimal
	prices    map[int64]decimal.Decimal
	sales     map[int64]Sale
	items     map[int64][]SaleItem
	payments  []billing.Payment
	stock     *memStock
	nextSale  int64
	nextItem  int64
	counters  map[SaleType]int64
}

func newMemStore() *memStore {
	return &memStore{
		customers: map[int64]*CustomerAccount{},
		tiers:     map[int64]decimal.Decimal{},
		prices:    map[int64]decimal.Decimal{},
		sales:     map[int64]Sale{},
		items:     map[int64][]SaleItem{},
		stock:     newMemStock(),
		counters:  map[SaleType]int64{},
	}
}

func (m *memStore) Stock() stock.TxStore { return m.stock }

func (m *memStore) GetCustomerForUpdate(_ context.Context, id int64) (CustomerAccount, error) {
	acc, ok := m.customers[id]
	if !ok {
		return CustomerAccount{}, fmt.Errorf("customer %d: %w", id, shared.ErrNotFound)
	}
	return *acc, nil
}

func (m *memStore) GetTierDiscount(_ context.Context, tierID int64) (decimal.Decimal, error) {
	pct, ok := m.tiers[tierID]
	if !ok {
		return decimal.Zero, fmt.Errorf("pricing tier %d: %w", tierID, shared.ErrNotFound)
	}
	return pct, nil
}

func (m *memStore) GetVariantPrice(_ context.Context, variantID int64) (decimal.Decimal, error) {
	price, ok := m.prices[variantID]
	if !ok {
		return decimal.Zero, fmt.Errorf("variant %d: %w", variantID, shared.ErrNotFound)
	}
	return price, nil
}

func (m *memStore) NextSaleNumber(_ context.Context, t SaleType) (string, error) {
	m.counters[t]++
	prefix := "INV"
	if t == TypeCreditNote {
		prefix = "CRN"
	}
	return fmt.Sprintf("%s-%06d", prefix, m.counters[t]), nil
}

func (m *memStore) InsertSale(_ context.Context, sale Sale) (int64, error) {
	m.nextSale++
	sale.ID = m.nextSale
	m.sales[sale.ID] = sale
	return sale.ID, nil
}

func (m *memStore) InsertSaleItem(_ context.Context, item SaleItem) (int64, error) {
	m.nextItem++
	item.ID = m.nextItem
	m.items[item.SaleID] = append(m.items[item.SaleID], item)
	return item.ID, nil
}

func (m *memStore) GetSaleForUpdate(_ context.Context, id int64) (Sale, error) {
	sale, ok := m.sales[id]
	if !ok {
		return Sale{}, fmt.Errorf("sale %d: %w", id, shared.ErrNotFound)
	}
	return sale, nil
}

func (m *memStore) ListSaleItems(_ context.Context, saleID int64) ([]SaleItem, error) {
	return m.items[saleID], nil
}

func (m *memStore) ReturnedQuantity(_ context.Context, originalItemID int64) (int64, error) {
	var total int64
	for _, items := range m.items {
		for _, item := range items {
			if item.OriginalSaleItemID != nil && *item.OriginalSaleItemID == originalItemID {
				total += item.Quantity
			}
		}
	}
	return total, nil
}

func (m *memStore) AdjustCustomerBalance(_ context.Context, customerID int64, delta decimal.Decimal) error {
	acc, ok := m.customers[customerID]
	if !ok {
		return fmt.Errorf("customer %d: %w", customerID, shared.ErrNotFound)
	}
	acc.Balance = acc.Balance.Add(delta)
	return nil
}

func (m *memStore) InsertSalePayment(_ context.Context, p billing.Payment) (int64, error) {
	p.ID = int64(len(m.payments) + 1)
	m.payments = append(m.payments, p)
	return p.ID, nil
}

type memRepo struct {
	store *memStore
}

func (r *memRepo) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	return fn(ctx, r.store)
}

func (r *memRepo) GetSale(ctx context.Context, id int64) (Sale, []SaleItem, error) {
	sale, err := r.store.GetSaleForUpdate(ctx, id)
	if err != nil {
		return Sale{}, nil, err
	}
	return sale, r.store.items[id], nil
}

func (r *memRepo) ListSales(_ context.Context, filter ListFilter) ([]Sale, error) {
	var out []Sale
	for _, sale := range r.store.sales {
		if filter.Type != "" && sale.Type != filter.Type {
			continue
		}
		out = append(out, sale)
	}
	return out, nil
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestService(store *memStore) *Service {
	stockSvc := stock.NewService(nil, nil, nil, stock.ServiceConfig{})
	return NewService(&memRepo{store: store}, stockSvc, nil, nil)
}

func seedStock(store *memStore, variantID, locationID, qty int64) {
	store.stock.positions[posKey{variantID, locationID}] = stock.Position{
		VariantID: variantID, LocationID: locationID, Quantity: qty,
	}
}

func stockQty(store *memStore, variantID, locationID int64) int64 {
	return store.stock.positions[posKey{variantID, locationID}].Quantity
}

func TestCreateInvoiceCashSale(t *testing.T) {
	store := newMemStore()
	store.prices[1] = d("100")
	store.prices[2] = d("250")
	seedStock(store, 1, 5, 20)
	seedStock(store, 2, 5, 20)
	svc := newTestService(store)

	sale, items, err := svc.CreateInvoice(context.Background(), InvoiceInput{
		LocationID: 5,
		Lines: []InvoiceLine{
			{VariantID: 1, Quantity: 3},
			{VariantID: 2, Quantity: 2},
		},
		AmountPaid:    d("800"),
		PaymentMethod: billing.MethodCash,
		ActorID:       4,
	})
	require.NoError(t, err)
	require.Equal(t, "INV-000001", sale.Number)
	require.True(t, sale.TotalAmount.Equal(d("800")))
	require.Equal(t, billing.StatusPaid, sale.PaymentStatus)
	require.Len(t, items, 2)
	require.True(t, items[0].UnitPrice.Equal(d("100")), "price frozen at sale time")

	require.Equal(t, int64(17), stockQty(store, 1, 5))
	require.Equal(t, int64(18), stockQty(store, 2, 5))
	for _, txn := range store.stock.txns {
		require.Equal(t, stock.RefSale, txn.ReferenceType)
		require.Equal(t, sale.ID, txn.ReferenceID)
	}
	require.Len(t, store.payments, 1)
	require.True(t, store.payments[0].Amount.Equal(d("800")))
}

func TestCreateInvoiceOnCredit(t *testing.T) {
	store := newMemStore()
	store.prices[1] = d("100")
	seedStock(store, 1, 5, 10)
	store.customers[7] = &CustomerAccount{ID: 7, CreditLimit: d("1000"), Balance: d("200"), Active: true}
	svc := newTestService(store)

	customerID := int64(7)
	sale, _, err := svc.CreateInvoice(context.Background(), InvoiceInput{
		CustomerID: &customerID,
		LocationID: 5,
		Lines:      []InvoiceLine{{VariantID: 1, Quantity: 4}},
	})
	require.NoError(t, err)
	require.Equal(t, billing.StatusUnpaid, sale.PaymentStatus)
	require.True(t, store.customers[7].Balance.Equal(d("600")), "unpaid amount lands on the customer balance")
	require.Empty(t, store.payments)
}

func TestCreateInvoiceCreditLimitExceeded(t *testing.T) {
	store := newMemStore()
	store.prices[1] = d("100")
	seedStock(store, 1, 5, 100)
	store.customers[7] = &CustomerAccount{ID: 7, CreditLimit: d("500"), Balance: d("300"), Active: true}
	svc := newTestService(store)

	customerID := int64(7)
	_, _, err := svc.CreateInvoice(context.Background(), InvoiceInput{
		CustomerID: &customerID,
		LocationID: 5,
		Lines:      []InvoiceLine{{VariantID: 1, Quantity: 3}},
	})
	require.True(t, shared.IsConflict(err, shared.ReasonCreditLimitExceeded))
	conflict, _ := shared.AsConflict(err)
	avail, ok := conflict.Extras["available_credit"].(decimal.Decimal)
	require.True(t, ok)
	require.True(t, avail.Equal(d("200")))
	require.Empty(t, store.sales, "nothing is persisted on rejection")
	require.Equal(t, int64(100), stockQty(store, 1, 5))
}

func TestCreateInvoiceWalkInAlwaysPasses(t *testing.T) {
	store := newMemStore()
	store.prices[1] = d("100")
	seedStock(store, 1, 5, 20)
	svc := newTestService(store)

	// An entirely unpaid walk-in sale is still admitted.
	sale, _, err := svc.CreateInvoice(context.Background(), InvoiceInput{
		LocationID: 5,
		Lines:      []InvoiceLine{{VariantID: 1, Quantity: 10}},
	})
	require.NoError(t, err)
	require.Nil(t, sale.CustomerID)
	require.True(t, sale.TotalAmount.Equal(d("1000")))
	require.True(t, sale.AmountPaid.IsZero())
	require.Equal(t, billing.StatusUnpaid, sale.PaymentStatus)
	require.Empty(t, store.payments)
	require.Equal(t, int64(10), stockQty(store, 1, 5))

	// Partial payment at the till is fine too.
	sale, _, err = svc.CreateInvoice(context.Background(), InvoiceInput{
		LocationID:    5,
		Lines:         []InvoiceLine{{VariantID: 1, Quantity: 2}},
		AmountPaid:    d("150"),
		PaymentMethod: billing.MethodCash,
	})
	require.NoError(t, err)
	require.Equal(t, billing.StatusPartial, sale.PaymentStatus)
	require.Len(t, store.payments, 1)
}

func TestCreateInvoiceTierDiscount(t *testing.T) {
	store := newMemStore()
	store.prices[1] = d("100")
	seedStock(store, 1, 5, 10)
	tierID := int64(2)
	store.tiers[tierID] = d("10")
	store.customers[7] = &CustomerAccount{ID: 7, CreditLimit: d("10000"), TierID: &tierID, Active: true}
	svc := newTestService(store)

	customerID := int64(7)
	sale, _, err := svc.CreateInvoice(context.Background(), InvoiceInput{
		CustomerID: &customerID,
		LocationID: 5,
		Lines:      []InvoiceLine{{VariantID: 1, Quantity: 5}},
	})
	require.NoError(t, err)
	require.True(t, sale.Subtotal.Equal(d("500")))
	require.True(t, sale.DiscountAmount.Equal(d("50")))
	require.True(t, sale.TotalAmount.Equal(d("450")))
}

func TestCreateInvoiceInsufficientStock(t *testing.T) {
	store := newMemStore()
	store.prices[1] = d("100")
	seedStock(store, 1, 5, 1)
	svc := newTestService(store)

	_, _, err := svc.CreateInvoice(context.Background(), InvoiceInput{
		LocationID:    5,
		Lines:         []InvoiceLine{{VariantID: 1, Quantity: 3}},
		AmountPaid:    d("300"),
		PaymentMethod: billing.MethodCash,
	})
	require.True(t, shared.IsConflict(err, shared.ReasonInsufficientStock))
}

func TestCreateInvoiceDeactivatedCustomer(t *testing.T) {
	store := newMemStore()
	store.prices[1] = d("100")
	seedStock(store, 1, 5, 10)
	store.customers[7] = &CustomerAccount{ID: 7, Active: false}
	svc := newTestService(store)

	customerID := int64(7)
	_, _, err := svc.CreateInvoice(context.Background(), InvoiceInput{
		CustomerID: &customerID,
		LocationID: 5,
		Lines:      []InvoiceLine{{VariantID: 1, Quantity: 1}},
	})
	require.True(t, shared.IsValidation(err))
}

func invoiceForReturns(t *testing.T, store *memStore, svc *Service) (Sale, []SaleItem) {
	t.Helper()
	store.prices[1] = d("100")
	seedStock(store, 1, 5, 20)
	tierID := int64(2)
	store.tiers[tierID] = d("10")
	store.customers[7] = &CustomerAccount{ID: 7, CreditLimit: d("10000"), TierID: &tierID, Active: true}

	customerID := int64(7)
	sale, items, err := svc.CreateInvoice(context.Background(), InvoiceInput{
		CustomerID: &customerID,
		LocationID: 5,
		Lines:      []InvoiceLine{{VariantID: 1, Quantity: 10}},
	})
	require.NoError(t, err)
	return sale, items
}

func TestCreateCreditNote(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	sale, items := invoiceForReturns(t, store, svc)
	// Invoice: 10 x 100 - 10% = 900 on credit.
	require.True(t, store.customers[7].Balance.Equal(d("900")))
	require.Equal(t, int64(10), stockQty(store, 1, 5))

	note, noteItems, err := svc.CreateCreditNote(context.Background(), CreditNoteInput{
		OriginalSaleID: sale.ID,
		Lines:          []CreditNoteLine{{OriginalSaleItemID: items[0].ID, Quantity: 4}},
		ActorID:        4,
	})
	require.NoError(t, err)
	require.Equal(t, "CRN-000001", note.Number)
	require.Equal(t, TypeCreditNote, note.Type)
	require.True(t, note.Subtotal.Equal(d("-400")))
	require.True(t, note.DiscountPct.Equal(d("10")), "discount frozen from the invoice")
	require.True(t, note.TotalAmount.Equal(d("-360")))
	require.Len(t, noteItems, 1)
	require.NotNil(t, noteItems[0].OriginalSaleItemID)

	require.Equal(t, int64(14), stockQty(store, 1, 5), "returned units flow back in")
	require.True(t, store.customers[7].Balance.Equal(d("540")), "customer owes less after the return")
}

func TestCreditNoteCumulativeReturnLimit(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	sale, items := invoiceForReturns(t, store, svc)

	_, _, err := svc.CreateCreditNote(context.Background(), CreditNoteInput{
		OriginalSaleID: sale.ID,
		Lines:          []CreditNoteLine{{OriginalSaleItemID: items[0].ID, Quantity: 6}},
	})
	require.NoError(t, err)

	_, _, err = svc.CreateCreditNote(context.Background(), CreditNoteInput{
		OriginalSaleID: sale.ID,
		Lines:          []CreditNoteLine{{OriginalSaleItemID: items[0].ID, Quantity: 5}},
	})
	require.True(t, shared.IsConflict(err, shared.ReasonExceedsReturnable))
	conflict, _ := shared.AsConflict(err)
	require.Equal(t, int64(4), conflict.Extras["returnable"])
}

func TestCreditNoteRequiresInvoice(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	sale, items := invoiceForReturns(t, store, svc)

	note, _, err := svc.CreateCreditNote(context.Background(), CreditNoteInput{
		OriginalSaleID: sale.ID,
		Lines:          []CreditNoteLine{{OriginalSaleItemID: items[0].ID, Quantity: 1}},
	})
	require.NoError(t, err)

	_, _, err = svc.CreateCreditNote(context.Background(), CreditNoteInput{
		OriginalSaleID: note.ID,
		Lines:          []CreditNoteLine{{OriginalSaleItemID: items[0].ID, Quantity: 1}},
	})
	require.True(t, shared.IsConflict(err, shared.ReasonNotAnInvoice))
}

func TestCreditNoteForeignItemRejected(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	sale, _ := invoiceForReturns(t, store, svc)

	_, _, err := svc.CreateCreditNote(context.Background(), CreditNoteInput{
		OriginalSaleID: sale.ID,
		Lines:          []CreditNoteLine{{OriginalSaleItemID: 999, Quantity: 1}},
	})
	require.True(t, shared.IsValidation(err))
}

func TestInvoiceValidation(t *testing.T) {
	svc := newTestService(newMemStore())

	_, _, err := svc.CreateInvoice(context.Background(), InvoiceInput{LocationID: 5})
	require.True(t, shared.IsValidation(err), "no lines")

	_, _, err = svc.CreateInvoice(context.Background(), InvoiceInput{
		LocationID: 5,
		Lines:      []InvoiceLine{{VariantID: 1, Quantity: 0}},
	})
	require.True(t, shared.IsValidation(err), "zero quantity")

	_, _, err = svc.CreateInvoice(context.Background(), InvoiceInput{
		LocationID: 5,
		Lines:      []InvoiceLine{{VariantID: 1, Quantity: 1}},
		AmountPaid: d("10"),
	})
	require.True(t, shared.IsValidation(err), "payment without method")

	_, _, err = svc.CreateInvoice(context.Background(), InvoiceInput{
		LocationID:    5,
		Lines:         []InvoiceLine{{VariantID: 1, Quantity: 1}},
		AmountPaid:    d("10"),
		PaymentMethod: billing.MethodMpesa,
	})
	require.True(t, shared.IsValidation(err), "mpesa without reference")
}
