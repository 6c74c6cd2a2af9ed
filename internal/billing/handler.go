package billing

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/dukahub/dukahub/internal/platform/httpx"
	"github.com/dukahub/dukahub/internal/shared"
)

// Handler wires HTTP endpoints for the payment ledger.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs billing handler.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validate: validate}
}

// MountRoutes registers billing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/payments", h.handleRecordPayment)
	r.Get("/billables/{kind}/{id}/status", h.handleStatus)
	r.Get("/billables/{kind}/{id}/payments", h.handleListPayments)
}

type recordPaymentRequest struct {
	Kind            string          `json:"kind" validate:"required,oneof=sale expense purchase"`
	BillableID      int64           `json:"billable_id" validate:"required,gt=0"`
	Amount          decimal.Decimal `json:"amount" validate:"required"`
	Method          string          `json:"method" validate:"required,oneof=cash mpesa bank card"`
	ReferenceNumber string          `json:"reference_number"`
	Date            *time.Time      `json:"payment_date"`
	Note            string          `json:"note"`
}

type paymentResponse struct {
	ID              int64           `json:"id"`
	Kind            Kind            `json:"kind"`
	BillableID      int64           `json:"billable_id"`
	Amount          decimal.Decimal `json:"amount"`
	Method          Method          `json:"method"`
	ReferenceNumber string          `json:"reference_number,omitempty"`
	Receipt         string          `json:"receipt_number"`
	Date            time.Time       `json:"payment_date"`
	Note            string          `json:"note,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

func (h *Handler) handleRecordPayment(w http.ResponseWriter, r *http.Request) {
	var req recordPaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}

	input := PaymentInput{
		Kind:            Kind(req.Kind),
		BillableID:      req.BillableID,
		Amount:          req.Amount,
		Method:          Method(req.Method),
		ReferenceNumber: req.ReferenceNumber,
		Note:            req.Note,
		ActorID:         shared.ActorFromContext(r.Context()),
	}
	if req.Date != nil {
		input.Date = *req.Date
	}

	payment, err := h.service.RecordPayment(r.Context(), input)
	if err != nil {
		h.logger.Warn("record payment failed", slog.String("kind", req.Kind),
			slog.Int64("billable_id", req.BillableID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toPaymentResponse(payment))
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	kind, id, err := billableParams(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	status, err := h.service.Status(r.Context(), kind, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, status)
}

func (h *Handler) handleListPayments(w http.ResponseWriter, r *http.Request) {
	kind, id, err := billableParams(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	payments, err := h.service.Payments(r.Context(), kind, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]paymentResponse, 0, len(payments))
	for _, p := range payments {
		out = append(out, toPaymentResponse(p))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func billableParams(r *http.Request) (Kind, int64, error) {
	kind := Kind(chi.URLParam(r, "kind"))
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return "", 0, shared.NewValidation("invalid billable id")
	}
	return kind, id, nil
}

func toPaymentResponse(p Payment) paymentResponse {
	return paymentResponse{
		ID:              p.ID,
		Kind:            p.Kind,
		BillableID:      p.BillableID,
		Amount:          p.Amount,
		Method:          p.Method,
		ReferenceNumber: p.ReferenceNumber,
		Receipt:         p.Receipt,
		Date:            p.Date,
		Note:            p.Note,
		CreatedAt:       p.CreatedAt,
	}
}
