package stock

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dukahub/dukahub/internal/billing"
	"github.com/dukahub/dukahub/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error
	GetPosition(ctx context.Context, variantID, locationID int64) (Position, error)
	ListTransactions(ctx context.Context, filter HistoryFilter) ([]Transaction, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort abstracts ledger metrics.
type MetricsPort interface {
	StockPosted(txType string)
	Rejected(reason string)
}

// Service is the stock ledger: the only writer of on-hand quantity. Every
// mutation is an immutable transaction; positions are derived aggregates.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	metrics  MetricsPort
	allowNeg bool
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	// AllowNegativeStock lets adjustments drive a position below zero so a
	// miscount can be corrected even when the recorded quantity is too low.
	// OUT and TRANSFER movements are rejected on insufficiency regardless.
	AllowNegativeStock bool
}

// NewService builds the stock ledger service.
func NewService(repo RepositoryPort, audit AuditPort, metrics MetricsPort, cfg ServiceConfig) *Service {
	return &Service{repo: repo, audit: audit, metrics: metrics, allowNeg: cfg.AllowNegativeStock}
}

// Validation errors.
var (
	ErrInvalidQuantity = errors.New("stock: quantity must be positive")
	ErrZeroDelta       = errors.New("stock: adjustment delta must be non-zero")
)

// Apply validates and posts a movement in its own transaction.
func (s *Service) Apply(ctx context.Context, input MovementInput) (Transaction, error) {
	var txn Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, store TxStore) error {
		var err error
		txn, err = s.ApplyIn(ctx, store, input)
		return err
	})
	if err != nil {
		s.countRejection(err)
		return Transaction{}, err
	}
	s.recordApply(ctx, txn)
	return txn, nil
}

// ApplyIn posts a movement using the caller's transaction store. The sales
// engine uses this path so invoice stock effects share the invoice's
// transactional boundary. All type invariants re-run here.
func (s *Service) ApplyIn(ctx context.Context, store TxStore, input MovementInput) (Transaction, error) {
	normalized, effects, err := s.normalize(input)
	if err != nil {
		return Transaction{}, err
	}

	// Lock positions in a stable order so concurrent transfers cannot
	// deadlock each other.
	sort.Slice(effects, func(i, j int) bool { return effects[i].locationID < effects[j].locationID })

	for _, eff := range effects {
		pos, err := store.GetPositionForUpdate(ctx, input.VariantID, eff.locationID)
		if err != nil && !errors.Is(err, ErrPositionNotFound) {
			return Transaction{}, err
		}
		if errors.Is(err, ErrPositionNotFound) {
			pos = Position{VariantID: input.VariantID, LocationID: eff.locationID}
		}
		newQty := pos.Quantity + eff.delta
		if newQty < 0 {
			if input.Type != TypeAdjustment || !s.allowNeg {
				return Transaction{}, insufficientStock(input.VariantID, eff.locationID, pos.Quantity, -eff.delta)
			}
		}
		pos.Quantity = newQty
		if err := store.UpsertPosition(ctx, pos); err != nil {
			return Transaction{}, err
		}
	}

	id, err := store.InsertTransaction(ctx, normalized)
	if err != nil {
		return Transaction{}, err
	}
	normalized.ID = id

	if normalized.Billable() && normalized.AmountPaid.IsPositive() {
		method := input.PaymentMethod
		if method == "" {
			method = billing.MethodCash
		}
		_, err := store.InsertPurchasePayment(ctx, billing.Payment{
			Kind:            billing.KindPurchase,
			BillableID:      id,
			Amount:          normalized.AmountPaid,
			Method:          method,
			ReferenceNumber: input.ReferenceNumber,
			Receipt:         uuid.NewString(),
			Date:            normalized.CreatedAt,
			Note:            "paid on receipt",
			CreatedBy:       input.ActorID,
		})
		if err != nil {
			return Transaction{}, err
		}
	}

	return normalized, nil
}

// Reverse materializes a compensating transaction for id and applies it
// through the same path as any other movement, so all invariants re-run.
// A reversal cannot itself be reversed, and a transaction can be reversed
// at most once.
func (s *Service) Reverse(ctx context.Context, id, actorID int64) (Transaction, error) {
	var reversal Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, store TxStore) error {
		original, err := store.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		if original.ReferenceType == RefReversal {
			return shared.NewConflict(shared.ReasonCannotReverseAReversal,
				fmt.Sprintf("transaction %d is a reversal and cannot be reversed", id), nil)
		}
		reversed, err := store.HasReversal(ctx, id)
		if err != nil {
			return err
		}
		if reversed {
			return shared.NewConflict(shared.ReasonAlreadyReversed,
				fmt.Sprintf("transaction %d has already been reversed", id), nil)
		}

		input, err := compensate(original, actorID)
		if err != nil {
			return err
		}
		reversal, err = s.ApplyIn(ctx, store, input)
		return err
	})
	if err != nil {
		s.countRejection(err)
		return Transaction{}, err
	}
	s.recordApply(ctx, reversal)
	return reversal, nil
}

// Position returns the derived on-hand quantity for one variant at one location.
func (s *Service) Position(ctx context.Context, variantID, locationID int64) (Position, error) {
	if variantID == 0 || locationID == 0 {
		return Position{}, shared.NewValidation("variant and location required")
	}
	return s.repo.GetPosition(ctx, variantID, locationID)
}

// History lists committed transactions.
func (s *Service) History(ctx context.Context, filter HistoryFilter) ([]Transaction, error) {
	return s.repo.ListTransactions(ctx, filter)
}

type effect struct {
	locationID int64
	delta      int64
}

// normalize validates type-specific location requirements and produces the
// stored transaction plus the signed position deltas it implies.
func (s *Service) normalize(input MovementInput) (Transaction, []effect, error) {
	if input.VariantID == 0 {
		return Transaction{}, nil, shared.NewValidation("variant required")
	}

	txn := Transaction{
		VariantID:     input.VariantID,
		Type:          input.Type,
		ReferenceType: input.ReferenceType,
		ReferenceID:   input.ReferenceID,
		Note:          input.Note,
		CreatedBy:     input.ActorID,
		CreatedAt:     time.Now().UTC(),
		AmountPaid:    decimal.Zero,
		PaymentStatus: billing.StatusUnpaid,
	}

	var effects []effect

	switch input.Type {
	case TypeIn:
		if input.Quantity <= 0 {
			return Transaction{}, nil, shared.WrapValidation(ErrInvalidQuantity)
		}
		if input.ToLocationID == 0 {
			return Transaction{}, nil, shared.NewValidation("to_location_id is required for stock in")
		}
		txn.Quantity = input.Quantity
		txn.ToLocationID = &input.ToLocationID
		effects = []effect{{input.ToLocationID, input.Quantity}}

	case TypeOut:
		if input.Quantity <= 0 {
			return Transaction{}, nil, shared.WrapValidation(ErrInvalidQuantity)
		}
		if input.FromLocationID == 0 {
			return Transaction{}, nil, shared.NewValidation("from_location_id is required for stock out")
		}
		txn.Quantity = input.Quantity
		txn.FromLocationID = &input.FromLocationID
		effects = []effect{{input.FromLocationID, -input.Quantity}}

	case TypeTransfer:
		if input.Quantity <= 0 {
			return Transaction{}, nil, shared.WrapValidation(ErrInvalidQuantity)
		}
		if input.FromLocationID == 0 || input.ToLocationID == 0 {
			return Transaction{}, nil, shared.NewValidation("both from_location_id and to_location_id are required for transfer")
		}
		if input.FromLocationID == input.ToLocationID {
			return Transaction{}, nil, shared.NewValidation("transfer locations must differ")
		}
		txn.Quantity = input.Quantity
		txn.FromLocationID = &input.FromLocationID
		txn.ToLocationID = &input.ToLocationID
		effects = []effect{
			{input.FromLocationID, -input.Quantity},
			{input.ToLocationID, input.Quantity},
		}

	case TypeAdjustment:
		if input.Quantity == 0 {
			return Transaction{}, nil, shared.WrapValidation(ErrZeroDelta)
		}
		loc := input.ToLocationID
		if loc == 0 {
			loc = input.FromLocationID
		}
		if loc == 0 {
			return Transaction{}, nil, shared.NewValidation("a location is required for adjustment")
		}
		if input.Quantity > 0 {
			txn.Quantity = input.Quantity
			txn.ToLocationID = &loc
		} else {
			txn.Quantity = -input.Quantity
			txn.FromLocationID = &loc
		}
		effects = []effect{{loc, input.Quantity}}

	default:
		return Transaction{}, nil, shared.NewValidation("unknown transaction type %q", input.Type)
	}

	if input.SupplierID != 0 {
		txn.SupplierID = &input.SupplierID
	}
	if input.UnitCost != nil {
		if input.UnitCost.IsNegative() {
			return Transaction{}, nil, shared.NewValidation("unit cost must be >= 0")
		}
		cost := *input.UnitCost
		total := cost.Mul(decimal.NewFromInt(txn.Quantity))
		txn.UnitCost = &cost
		txn.TotalCost = &total
	}

	if txn.Billable() {
		if input.AmountPaid.IsNegative() {
			return Transaction{}, nil, shared.NewValidation("amount paid must be >= 0")
		}
		if input.AmountPaid.GreaterThan(*txn.TotalCost) {
			return Transaction{}, nil, shared.NewValidation("amount paid exceeds total cost")
		}
		if input.AmountPaid.IsPositive() {
			method := input.PaymentMethod
			if method == "" {
				method = billing.MethodCash
			}
			if !billing.ValidMethod(method) {
				return Transaction{}, nil, shared.NewValidation("unknown payment method %q", input.PaymentMethod)
			}
			if method == billing.MethodCash && input.ReferenceNumber != "" {
				return Transaction{}, nil, shared.NewValidation("cash payments must not carry a reference number")
			}
			if method != billing.MethodCash && input.ReferenceNumber == "" {
				return Transaction{}, nil, shared.NewValidation("%s payments require a reference number", method)
			}
		}
		txn.AmountPaid = input.AmountPaid
		txn.PaymentStatus = billing.DeriveStatus(*txn.TotalCost, input.AmountPaid)
	} else if input.AmountPaid.IsPositive() {
		return Transaction{}, nil, shared.NewValidation("amount paid requires an inbound transaction with supplier and unit cost")
	}

	return txn, effects, nil
}

// compensate builds the movement that exactly undoes original.
func compensate(original Transaction, actorID int64) (MovementInput, error) {
	input := MovementInput{
		VariantID:     original.VariantID,
		Quantity:      original.Quantity,
		ReferenceType: RefReversal,
		ReferenceID:   original.ID,
		Note:          fmt.Sprintf("reversal of transaction %d", original.ID),
		ActorID:       actorID,
	}
	switch original.Type {
	case TypeIn:
		input.Type = TypeOut
		input.FromLocationID = deref(original.ToLocationID)
	case TypeOut:
		input.Type = TypeIn
		input.ToLocationID = deref(original.FromLocationID)
	case TypeTransfer:
		input.Type = TypeTransfer
		input.FromLocationID = deref(original.ToLocationID)
		input.ToLocationID = deref(original.FromLocationID)
	case TypeAdjustment:
		input.Type = TypeAdjustment
		if original.ToLocationID != nil {
			input.Quantity = -original.Quantity
			input.FromLocationID = *original.ToLocationID
		} else {
			input.Quantity = original.Quantity
			input.ToLocationID = deref(original.FromLocationID)
		}
	default:
		return MovementInput{}, shared.NewValidation("cannot reverse transaction type %q", original.Type)
	}
	return input, nil
}

func deref(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}

func insufficientStock(variantID, locationID, available, requested int64) error {
	return shared.NewConflict(shared.ReasonInsufficientStock,
		fmt.Sprintf("insufficient stock for variant %d at location %d: available %d, requested %d",
			variantID, locationID, available, requested),
		map[string]any{
			"variant_id":  variantID,
			"location_id": locationID,
			"available":   available,
			"requested":   requested,
		})
}

func (s *Service) recordApply(ctx context.Context, txn Transaction) {
	if s.metrics != nil {
		s.metrics.StockPosted(string(txn.Type))
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  txn.CreatedBy,
			Action:   fmt.Sprintf("stock:%s", txn.Type),
			Entity:   "stock_transaction",
			EntityID: fmt.Sprintf("%d", txn.ID),
			Meta: map[string]any{
				"variant_id": txn.VariantID,
				"quantity":   txn.Quantity,
				"reference":  txn.ReferenceType,
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
