package stock

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/dukahub/dukahub/internal/billing"
	"github.com/dukahub/dukahub/internal/platform/httpx"
	"github.com/dukahub/dukahub/internal/shared"
)

// Handler wires HTTP endpoints for the stock ledger.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs stock handler.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validate: validate}
}

// MountRoutes registers stock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/transactions", h.handleApply)
	r.Get("/transactions", h.handleHistory)
	r.Post("/transactions/{id}/reverse", h.handleReverse)
	r.Get("/positions", h.handlePosition)
}

type movementRequest struct {
	VariantID       int64            `json:"variant_id" validate:"required,gt=0"`
	Type            string           `json:"transaction_type" validate:"required,oneof=in out transfer adjustment"`
	Quantity        int64            `json:"quantity" validate:"required"`
	FromLocationID  int64            `json:"from_location_id"`
	ToLocationID    int64            `json:"to_location_id"`
	SupplierID      int64            `json:"supplier_id"`
	UnitCost        *decimal.Decimal `json:"unit_cost"`
	AmountPaid      decimal.Decimal  `json:"amount_paid"`
	PaymentMethod   string           `json:"payment_method" validate:"omitempty,oneof=cash mpesa bank card"`
	ReferenceNumber string           `json:"reference_number"`
	Note            string           `json:"note"`
}

type transactionResponse struct {
	ID             int64            `json:"id"`
	VariantID      int64            `json:"variant_id"`
	Type           TransactionType  `json:"transaction_type"`
	Quantity       int64            `json:"quantity"`
	FromLocationID *int64           `json:"from_location_id,omitempty"`
	ToLocationID   *int64           `json:"to_location_id,omitempty"`
	SupplierID     *int64           `json:"supplier_id,omitempty"`
	UnitCost       *decimal.Decimal `json:"unit_cost,omitempty"`
	TotalCost      *decimal.Decimal `json:"total_cost,omitempty"`
	PaymentStatus  billing.Status   `json:"payment_status"`
	AmountPaid     decimal.Decimal  `json:"amount_paid"`
	ReferenceType  string           `json:"reference_type,omitempty"`
	ReferenceID    int64            `json:"reference_id,omitempty"`
	Note           string           `json:"note,omitempty"`
	CreatedBy      int64            `json:"created_by"`
	CreatedAt      time.Time        `json:"created_at"`
}

type positionResponse struct {
	VariantID  int64  `json:"variant_id"`
	LocationID int64  `json:"location_id"`
	Quantity   int64  `json:"quantity"`
	MinLevel   *int64 `json:"min_level,omitempty"`
	MaxLevel   *int64 `json:"max_level,omitempty"`
	LowStock   bool   `json:"low_stock"`
}

func (h *Handler) handleApply(w http.ResponseWriter, r *http.Request) {
	var req movementRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}

	txn, err := h.service.Apply(r.Context(), MovementInput{
		VariantID:       req.VariantID,
		Type:            TransactionType(req.Type),
		Quantity:        req.Quantity,
		FromLocationID:  req.FromLocationID,
		ToLocationID:    req.ToLocationID,
		SupplierID:      req.SupplierID,
		UnitCost:        req.UnitCost,
		AmountPaid:      req.AmountPaid,
		PaymentMethod:   billing.Method(req.PaymentMethod),
		ReferenceNumber: req.ReferenceNumber,
		Note:            req.Note,
		ActorID:         shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.logger.Warn("stock movement rejected", slog.String("type", req.Type),
			slog.Int64("variant_id", req.VariantID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toTransactionResponse(txn))
}

func (h *Handler) handleReverse(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, shared.NewValidation("invalid transaction id"))
		return
	}
	reversal, err := h.service.Reverse(r.Context(), id, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.logger.Warn("reversal rejected", slog.Int64("transaction_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toTransactionResponse(reversal))
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := HistoryFilter{
		VariantID:  queryInt64(q.Get("variant_id")),
		LocationID: queryInt64(q.Get("location_id")),
		Type:       TransactionType(q.Get("transaction_type")),
		Limit:      int(queryInt64(q.Get("limit"))),
	}
	txns, err := h.service.History(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]transactionResponse, 0, len(txns))
	for _, txn := range txns {
		out = append(out, toTransactionResponse(txn))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handlePosition(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pos, err := h.service.Position(r.Context(), queryInt64(q.Get("variant_id")), queryInt64(q.Get("location_id")))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, positionResponse{
		VariantID:  pos.VariantID,
		LocationID: pos.LocationID,
		Quantity:   pos.Quantity,
		MinLevel:   pos.MinLevel,
		MaxLevel:   pos.MaxLevel,
		LowStock:   pos.LowStock(),
	})
}

func queryInt64(s string) int64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func toTransactionResponse(txn Transaction) transactionResponse {
	return transactionResponse{
		ID:             txn.ID,
		VariantID:      txn.VariantID,
		Type:           txn.Type,
		Quantity:       txn.Quantity,
		FromLocationID: txn.FromLocationID,
		ToLocationID:   txn.ToLocationID,
		SupplierID:     txn.SupplierID,
		UnitCost:       txn.UnitCost,
		TotalCost:      txn.TotalCost,
		PaymentStatus:  txn.PaymentStatus,
		AmountPaid:     txn.AmountPaid,
		ReferenceType:  txn.ReferenceType,
		ReferenceID:    txn.ReferenceID,
		Note:           txn.Note,
		CreatedBy:      txn.CreatedBy,
		CreatedAt:      txn.CreatedAt,
	}
}
