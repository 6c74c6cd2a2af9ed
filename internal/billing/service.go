package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dukahub/dukahub/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error
	GetBillable(ctx context.Context, kind Kind, id int64) (Billable, error)
	ListPayments(ctx context.Context, kind Kind, billableID int64) ([]Payment, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort abstracts payment metrics.
type MetricsPort interface {
	PaymentRecorded(kind, method string)
	Rejected(reason string)
}

// Service is the payment ledger. It is the only writer of amount_paid and
// payment_status on any billable; those fields are derived from the payment
// stream, never set directly.
type Service struct {
	repo    RepositoryPort
	audit   AuditPort
	metrics MetricsPort
}

func NewService(repo RepositoryPort, audit AuditPort, metrics MetricsPort) *Service {
	return &Service{repo: repo, audit: audit, metrics: metrics}
}

// RecordPayment validates and posts a payment against a billable, then
// reconciles the billable's totals and, for sale billables, the customer
// balance, all within one transaction.
func (s *Service) RecordPayment(ctx context.Context, input PaymentInput) (Payment, error) {
	if err := validateInput(input); err != nil {
		return Payment{}, err
	}

	var payment Payment
	err := s.repo.WithTx(ctx, func(ctx context.Context, store TxStore) error {
		billable, err := store.GetBillableForUpdate(ctx, input.Kind, input.BillableID)
		if err != nil {
			return err
		}

		// Credit notes carry negative totals; the stored payment takes the
		// billable's sign so one arithmetic covers collections and refunds.
		signed := input.Amount
		if billable.Amount.IsNegative() {
			signed = signed.Neg()
		}

		due := billable.Due()
		if signed.Abs().GreaterThan(due.Abs()) {
			return exceedsAmountDue(billable, due)
		}

		date := input.Date
		if date.IsZero() {
			date = time.Now().UTC()
		}
		payment = Payment{
			Kind:            input.Kind,
			BillableID:      input.BillableID,
			Amount:          signed,
			Method:          input.Method,
			ReferenceNumber: input.ReferenceNumber,
			Receipt:         uuid.NewString(),
			Date:            date,
			Note:            input.Note,
			CreatedBy:       input.ActorID,
			CreatedAt:       time.Now().UTC(),
		}
		payment.ID, err = store.InsertPayment(ctx, payment)
		if err != nil {
			return err
		}

		newPaid := billable.AmountPaid.Add(signed)
		status := DeriveStatus(billable.Amount, newPaid)
		if err := store.UpdateBillableTotals(ctx, input.Kind, input.BillableID, newPaid, status); err != nil {
			return err
		}

		if input.Kind == KindSale && billable.CustomerID != 0 {
			// Collections lower what the customer owes; refunds raise it back.
			if err := store.AdjustCustomerBalance(ctx, billable.CustomerID, signed.Neg()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.countRejection(err)
		return Payment{}, err
	}

	if s.metrics != nil {
		s.metrics.PaymentRecorded(string(input.Kind), string(input.Method))
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   "billing:payment",
			Entity:   string(input.Kind),
			EntityID: fmt.Sprintf("%d", input.BillableID),
			Meta: map[string]any{
				"payment_id": payment.ID,
				"amount":     payment.Amount,
				"method":     payment.Method,
				"receipt":    payment.Receipt,
			},
		})
	}
	return payment, nil
}

// Status returns the derived settlement state of one billable.
func (s *Service) Status(ctx context.Context, kind Kind, id int64) (BillableStatus, error) {
	if !validKind(kind) {
		return BillableStatus{}, shared.NewValidation("unknown billable kind %q", kind)
	}
	b, err := s.repo.GetBillable(ctx, kind, id)
	if err != nil {
		return BillableStatus{}, err
	}
	return BillableStatus{
		Kind:       b.Kind,
		BillableID: b.ID,
		Amount:     b.Amount,
		AmountPaid: b.AmountPaid,
		AmountDue:  b.Due(),
		Status:     DeriveStatus(b.Amount, b.AmountPaid),
	}, nil
}

// Payments lists the payment stream for one billable, oldest first.
func (s *Service) Payments(ctx context.Context, kind Kind, billableID int64) ([]Payment, error) {
	if !validKind(kind) {
		return nil, shared.NewValidation("unknown billable kind %q", kind)
	}
	return s.repo.ListPayments(ctx, kind, billableID)
}

func validateInput(input PaymentInput) error {
	if !validKind(input.Kind) {
		return shared.NewValidation("unknown billable kind %q", input.Kind)
	}
	if input.BillableID == 0 {
		return shared.NewValidation("billable id required")
	}
	if !input.Amount.IsPositive() {
		return shared.NewValidation("payment amount must be positive")
	}
	if !ValidMethod(input.Method) {
		return shared.NewValidation("unknown payment method %q", input.Method)
	}
	if input.Method == MethodCash && input.ReferenceNumber != "" {
		return shared.NewValidation("cash payments must not carry a reference number")
	}
	if input.Method != MethodCash && input.ReferenceNumber == "" {
		return shared.NewValidation("%s payments require a reference number", input.Method)
	}
	return nil
}

func validKind(k Kind) bool {
	switch k {
	case KindSale, KindExpense, KindPurchase:
		return true
	}
	return false
}

func exceedsAmountDue(b Billable, due decimal.Decimal) error {
	return shared.NewConflict(shared.ReasonExceedsAmountDue,
		fmt.Sprintf("payment exceeds amount due of %s", shared.FormatKES(due.Abs())),
		map[string]any{
			"kind":        b.Kind,
			"billable_id": b.ID,
			"amount_due":  due.Abs(),
		})
}

func (s *Service) countRejection(err error) {
	if s.metrics == nil {
		return
	}
	if conflict, ok := shared.AsConflict(err); ok {
		s.metrics.Rejected(conflict.Reason)
	}
}
