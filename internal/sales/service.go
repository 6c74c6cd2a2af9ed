package sales

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dukahub/dukahub/internal/billing"
	"github.com/dukahub/dukahub/internal/credit"
	"github.com/dukahub/dukahub/internal/shared"
	"github.com/dukahub/dukahub/internal/stock"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error
	GetSale(ctx context.Context, id int64) (Sale, []SaleItem, error)
	ListSales(ctx context.Context, filter ListFilter) ([]Sale, error)
}

// StockPort posts stock movements inside the caller's transaction so an
// invoice's stock effects commit or roll back with the invoice.
type StockPort interface {
	ApplyIn(ctx context.Context, store stock.TxStore, input stock.MovementInput) (stock.Transaction, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort abstracts sales metrics.
type MetricsPort interface {
	SaleIssued(saleType string)
	Rejected(reason string)
}

// Service issues invoices and credit notes. Documents are immutable once
// created; corrections are credit notes, never edits.
type Service struct {
	repo    RepositoryPort
	stock   StockPort
	audit   AuditPort
	metrics MetricsPort
}

func NewService(repo RepositoryPort, stockPort StockPort, audit AuditPort, metrics MetricsPort) *Service {
	return &Service{repo: repo, stock: stockPort, audit: audit, metrics: metrics}
}

// CreateInvoice freezes prices and tier discount, guards the customer's
// credit, moves stock out, and records any payment taken at the till, all in
// one transaction. Nothing is committed unless every line succeeds.
func (s *Service) CreateInvoice(ctx context.Context, input InvoiceInput) (Sale, []SaleItem, error) {
	if err := validateInvoiceInput(input); err != nil {
		return Sale{}, nil, err
	}

	var (
		sale  Sale
		items []SaleItem
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, store TxStore) error {
		var account *CustomerAccount
		if input.CustomerID != nil {
			acc, err := store.GetCustomerForUpdate(ctx, *input.CustomerID)
			if err != nil {
				return err
			}
			if !acc.Active {
				return shared.NewValidation("customer %d is deactivated", acc.ID)
			}
			account = &acc
		}

		discountPct := decimal.Zero
		if account != nil && account.TierID != nil {
			pct, err := store.GetTierDiscount(ctx, *account.TierID)
			if err != nil {
				return err
			}
			discountPct = pct
		}

		subtotal := decimal.Zero
		items = items[:0]
		for _, line := range input.Lines {
			price, err := store.GetVariantPrice(ctx, line.VariantID)
			if err != nil {
				return err
			}
			lineTotal := price.Mul(decimal.NewFromInt(line.Quantity))
			subtotal = subtotal.Add(lineTotal)
			items = append(items, SaleItem{
				VariantID: line.VariantID,
				Quantity:  line.Quantity,
				UnitPrice: price,
				LineTotal: lineTotal,
			})
		}

		discountAmount := subtotal.Mul(discountPct).Div(decimal.NewFromInt(100)).Round(2)
		total := subtotal.Sub(discountAmount)

		if input.AmountPaid.GreaterThan(total) {
			return shared.NewValidation("amount paid exceeds invoice total of %s", shared.FormatKES(total))
		}

		unpaid := total.Sub(input.AmountPaid)
		limit, balance := decimal.Zero, decimal.Zero
		if account != nil {
			limit, balance = account.CreditLimit, account.Balance
		}
		decision := credit.Admit(limit, balance, unpaid, account == nil)
		if !decision.Allowed {
			return creditLimitExceeded(account, unpaid, decision.AvailableCredit)
		}

		number, err := store.NextSaleNumber(ctx, TypeInvoice)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		sale = Sale{
			Number:         number,
			Type:           TypeInvoice,
			CustomerID:     input.CustomerID,
			LocationID:     input.LocationID,
			Subtotal:       subtotal,
			DiscountPct:    discountPct,
			DiscountAmount: discountAmount,
			TotalAmount:    total,
			AmountPaid:     input.AmountPaid,
			PaymentStatus:  billing.DeriveStatus(total, input.AmountPaid),
			Note:           input.Note,
			CreatedBy:      input.ActorID,
			CreatedAt:      now,
		}
		sale.ID, err = store.InsertSale(ctx, sale)
		if err != nil {
			return err
		}

		for i := range items {
			items[i].SaleID = sale.ID
			items[i].ID, err = store.InsertSaleItem(ctx, items[i])
			if err != nil {
				return err
			}
			_, err = s.stock.ApplyIn(ctx, store.Stock(), stock.MovementInput{
				VariantID:      items[i].VariantID,
				Type:           stock.TypeOut,
				Quantity:       items[i].Quantity,
				FromLocationID: input.LocationID,
				ReferenceType:  stock.RefSale,
				ReferenceID:    sale.ID,
				ActorID:        input.ActorID,
			})
			if err != nil {
				return err
			}
		}

		if input.AmountPaid.IsPositive() {
			_, err = store.InsertSalePayment(ctx, billing.Payment{
				Kind:            billing.KindSale,
				BillableID:      sale.ID,
				Amount:          input.AmountPaid,
				Method:          input.PaymentMethod,
				ReferenceNumber: input.ReferenceNumber,
				Receipt:         uuid.NewString(),
				Date:            now,
				Note:            "paid at sale",
				CreatedBy:       input.ActorID,
				CreatedAt:       now,
			})
			if err != nil {
				return err
			}
		}

		if account != nil && unpaid.IsPositive() {
			if err := store.AdjustCustomerBalance(ctx, account.ID, unpaid); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.countRejection(err)
		return Sale{}, nil, err
	}
	s.recordIssued(ctx, sale)
	return sale, items, nil
}

// CreateCreditNote issues a return against an invoice. Unit prices and the
// discount rate are frozen from the original document, returned quantities
// are checked cumulatively across all prior credit notes, and stock flows
// back to the invoice's location.
func (s *Service) CreateCreditNote(ctx context.Context, input CreditNoteInput) (Sale, []SaleItem, error) {
	if input.OriginalSaleID == 0 {
		return Sale{}, nil, shared.NewValidation("original sale id required")
	}
	if len(input.Lines) == 0 {
		return Sale{}, nil, shared.NewValidation("a credit note needs at least one line")
	}
	for _, line := range input.Lines {
		if line.Quantity <= 0 {
			return Sale{}, nil, shared.NewValidation("return quantity must be positive")
		}
	}

	var (
		note  Sale
		items []SaleItem
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, store TxStore) error {
		original, err := store.GetSaleForUpdate(ctx, input.OriginalSaleID)
		if err != nil {
			return err
		}
		if original.Type != TypeInvoice {
			return shared.NewConflict(shared.ReasonNotAnInvoice,
				fmt.Sprintf("sale %s is not an invoice and cannot be credited", original.Number), nil)
		}

		originalItems, err := store.ListSaleItems(ctx, original.ID)
		if err != nil {
			return err
		}
		byID := make(map[int64]SaleItem, len(originalItems))
		for _, item := range originalItems {
			byID[item.ID] = item
		}

		subtotal := decimal.Zero
		items = items[:0]
		for _, line := range input.Lines {
			item, ok := byID[line.OriginalSaleItemID]
			if !ok {
				return shared.NewValidation("item %d does not belong to sale %s",
					line.OriginalSaleItemID, original.Number)
			}
			returned, err := store.ReturnedQuantity(ctx, item.ID)
			if err != nil {
				return err
			}
			returnable := item.Quantity - returned
			if line.Quantity > returnable {
				return shared.NewConflict(shared.ReasonExceedsReturnable,
					fmt.Sprintf("only %d of item %d remain returnable", returnable, item.ID),
					map[string]any{
						"original_sale_item_id": item.ID,
						"sold":                  item.Quantity,
						"already_returned":      returned,
						"returnable":            returnable,
					})
			}
			lineTotal := item.UnitPrice.Mul(decimal.NewFromInt(line.Quantity)).Neg()
			subtotal = subtotal.Add(lineTotal)
			itemID := item.ID
			items = append(items, SaleItem{
				VariantID:          item.VariantID,
				Quantity:           line.Quantity,
				UnitPrice:          item.UnitPrice,
				LineTotal:          lineTotal,
				OriginalSaleItemID: &itemID,
			})
		}

		discountAmount := subtotal.Mul(original.DiscountPct).Div(decimal.NewFromInt(100)).Round(2)
		total := subtotal.Sub(discountAmount)

		number, err := store.NextSaleNumber(ctx, TypeCreditNote)
		if err != nil {
			return err
		}

		originalID := original.ID
		note = Sale{
			Number:         number,
			Type:           TypeCreditNote,
			CustomerID:     original.CustomerID,
			OriginalSaleID: &originalID,
			LocationID:     original.LocationID,
			Subtotal:       subtotal,
			DiscountPct:    original.DiscountPct,
			DiscountAmount: discountAmount,
			TotalAmount:    total,
			AmountPaid:     decimal.Zero,
			PaymentStatus:  billing.StatusUnpaid,
			Note:           input.Note,
			CreatedBy:      input.ActorID,
			CreatedAt:      time.Now().UTC(),
		}
		note.ID, err = store.InsertSale(ctx, note)
		if err != nil {
			return err
		}

		for i := range items {
			items[i].SaleID = note.ID
			items[i].ID, err = store.InsertSaleItem(ctx, items[i])
			if err != nil {
				return err
			}
			_, err = s.stock.ApplyIn(ctx, store.Stock(), stock.MovementInput{
				VariantID:     items[i].VariantID,
				Type:          stock.TypeIn,
				Quantity:      items[i].Quantity,
				ToLocationID:  original.LocationID,
				ReferenceType: stock.RefCreditNoteReturn,
				ReferenceID:   note.ID,
				ActorID:       input.ActorID,
			})
			if err != nil {
				return err
			}
		}

		if original.CustomerID != nil {
			// The note total is negative; the customer's debt shrinks by it.
			if err := store.AdjustCustomerBalance(ctx, *original.CustomerID, total); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.countRejection(err)
		return Sale{}, nil, err
	}
	s.recordIssued(ctx, note)
	return note, items, nil
}

// Get returns one sale with its lines.
func (s *Service) Get(ctx context.Context, id int64) (Sale, []SaleItem, error) {
	return s.repo.GetSale(ctx, id)
}

// List returns sales matching the filter, newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Sale, error) {
	return s.repo.ListSales(ctx, filter)
}

func validateInvoiceInput(input InvoiceInput) error {
	if input.LocationID == 0 {
		return shared.NewValidation("location required")
	}
	if len(input.Lines) == 0 {
		return shared.NewValidation("an invoice needs at least one line")
	}
	for _, line := range input.Lines {
		if line.VariantID == 0 || line.Quantity <= 0 {
			return shared.NewValidation("each line needs a variant and a positive quantity")
		}
	}
	if input.AmountPaid.IsNegative() {
		return shared.NewValidation("amount paid must be >= 0")
	}
	if input.AmountPaid.IsPositive() {
		if !billing.ValidMethod(input.PaymentMethod) {
			return shared.NewValidation("unknown payment method %q", input.PaymentMethod)
		}
		if input.PaymentMethod == billing.MethodCash && input.ReferenceNumber != "" {
			return shared.NewValidation("cash payments must not carry a reference number")
		}
		if input.PaymentMethod != billing.MethodCash && input.ReferenceNumber == "" {
			return shared.NewValidation("%s payments require a reference number", input.PaymentMethod)
		}
	}
	return nil
}

func creditLimitExceeded(account *CustomerAccount, unpaid, available decimal.Decimal) error {
	extras := map[string]any{
		"required_credit":  unpaid,
		"available_credit": available,
	}
	if account != nil {
		extras["customer_id"] = account.ID
	}
	msg := fmt.Sprintf("credit limit exceeded: %s required, %s available",
		shared.FormatKES(unpaid), shared.FormatKES(available))
	return shared.NewConflict(shared.ReasonCreditLimitExceeded, msg, extras)
}

func (s *Service) recordIssued(ctx context.Context, sale Sale) {
	if s.metrics != nil {
		s.metrics.SaleIssued(string(sale.Type))
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  sale.CreatedBy,
			Action:   fmt.Sprintf("sales:%s", sale.Type),
			Entity:   "sale",
			EntityID: fmt.Sprintf("%d", sale.ID),
			Meta: map[string]any{
				"number": sale.Number,
				"total":  sale.TotalAmount,
			},
		})
	}
}

func (s *Service) countRejection(err error) {
	if s.metrics == nil {
		return
	}
	if conflict, ok := shared.AsConflict(err); ok {
		s.metrics.Rejected(conflict.Reason)
	}
}
