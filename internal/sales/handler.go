package sales

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

// Handler wires HTTP endpoints for the sales engine.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs sales handler.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validate: validate}
}

// MountRoutes registers sales routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/invoices", h.handleCreateInvoice)
	r.Post("/credit-notes", h.handleCreateCreditNote)
	r.Get("/{id}", h.handleGet)
	r.Get("/", h.handleList)
}

type invoiceLineRequest struct {
	VariantID int64 `json:"variant_id" validate:"required,gt=0"`
	Quantity  int64 `json:"quantity" validate:"required,gt=0"`
}

type createInvoiceRequest struct {
	CustomerID      *int64               `json:"customer_id"`
	LocationID      int64                `json:"location_id" validate:"required,gt=0"`
	Lines           []invoiceLineRequest `json:"items" validate:"required,min=1,dive"`
	AmountPaid      decimal.Decimal      `json:"amount_paid"`
	PaymentMethod   string               `json:"payment_method" validate:"omitempty,oneof=cash mpesa bank card"`
	ReferenceNumber string               `json:"reference_number"`
	Note            string               `json:"note"`
}

type creditNoteLineRequest struct {
	OriginalSaleItemID int64 `json:"original_sale_item_id" validate:"required,gt=0"`
	Quantity           int64 `json:"quantity" validate:"required,gt=0"`
}

type createCreditNoteRequest struct {
	OriginalSaleID int64                   `json:"original_sale_id" validate:"required,gt=0"`
	Lines          []creditNoteLineRequest `json:"items" validate:"required,min=1,dive"`
	Note           string                  `json:"note"`
}

type saleItemResponse struct {
	ID                 int64           `json:"id"`
	VariantID          int64           `json:"variant_id"`
	Quantity           int64           `json:"quantity"`
	UnitPrice          decimal.Decimal `json:"unit_price"`
	LineTotal          decimal.Decimal `json:"line_total"`
	OriginalSaleItemID *int64          `json:"original_sale_item_id,omitempty"`
}

type saleResponse struct {
	ID             int64              `json:"id"`
	Number         string             `json:"number"`
	Type           SaleType           `json:"sale_type"`
	CustomerID     *int64             `json:"customer_id,omitempty"`
	OriginalSaleID *int64             `json:"original_sale_id,omitempty"`
	LocationID     int64              `json:"location_id"`
	Subtotal       decimal.Decimal    `json:"subtotal"`
	DiscountPct    decimal.Decimal    `json:"discount_pct"`
	DiscountAmount decimal.Decimal    `json:"discount_amount"`
	TotalAmount    decimal.Decimal    `json:"total_amount"`
	AmountPaid     decimal.Decimal    `json:"amount_paid"`
	PaymentStatus  billing.Status     `json:"payment_status"`
	Note           string             `json:"note,omitempty"`
	CreatedBy      int64              `json:"created_by"`
	CreatedAt      time.Time          `json:"created_at"`
	Items          []saleItemResponse `json:"items,omitempty"`
}

func (h *Handler) handleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req createInvoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}

	lines := make([]InvoiceLine, 0, len(req.Lines))
	for _, line := range req.Lines {
		lines = append(lines, InvoiceLine{VariantID: line.VariantID, Quantity: line.Quantity})
	}
	sale, items, err := h.service.CreateInvoice(r.Context(), InvoiceInput{
		CustomerID:      req.CustomerID,
		LocationID:      req.LocationID,
		Lines:           lines,
		AmountPaid:      req.AmountPaid,
		PaymentMethod:   billing.Method(req.PaymentMethod),
		ReferenceNumber: req.ReferenceNumber,
		Note:            req.Note,
		ActorID:         shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.logger.Warn("invoice rejected", slog.Int64("location_id", req.LocationID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toSaleResponse(sale, items))
}

func (h *Handler) handleCreateCreditNote(w http.ResponseWriter, r *http.Request) {
	var req createCreditNoteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}

	lines := make([]CreditNoteLine, 0, len(req.Lines))
	for _, line := range req.Lines {
		lines = append(lines, CreditNoteLine{OriginalSaleItemID: line.OriginalSaleItemID, Quantity: line.Quantity})
	}
	note, items, err := h.service.CreateCreditNote(r.Context(), CreditNoteInput{
		OriginalSaleID: req.OriginalSaleID,
		Lines:          lines,
		Note:           req.Note,
		ActorID:        shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.logger.Warn("credit note rejected", slog.Int64("original_sale_id", req.OriginalSaleID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toSaleResponse(note, items))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, shared.NewValidation("invalid sale id"))
		return
	}
	sale, items, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toSaleResponse(sale, items))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	customerID, _ := strconv.ParseInt(q.Get("customer_id"), 10, 64)
	locationID, _ := strconv.ParseInt(q.Get("location_id"), 10, 64)
	sales, err := h.service.List(r.Context(), ListFilter{
		Type:       SaleType(q.Get("sale_type")),
		CustomerID: customerID,
		LocationID: locationID,
		Limit:      limit,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]saleResponse, 0, len(sales))
	for _, sale := range sales {
		out = append(out, toSaleResponse(sale, nil))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func toSaleResponse(sale Sale, items []SaleItem) saleResponse {
	resp := saleResponse{
		ID:             sale.ID,
		Number:         sale.Number,
		Type:           sale.Type,
		CustomerID:     sale.CustomerID,
		OriginalSaleID: sale.OriginalSaleID,
		LocationID:     sale.LocationID,
		Subtotal:       sale.Subtotal,
		DiscountPct:    sale.DiscountPct,
		DiscountAmount: sale.DiscountAmount,
		TotalAmount:    sale.TotalAmount,
		AmountPaid:     sale.AmountPaid,
		PaymentStatus:  sale.PaymentStatus,
		Note:           sale.Note,
		CreatedBy:      sale.CreatedBy,
		CreatedAt:      sale.CreatedAt,
	}
	for _, item := range items {
		resp.Items = append(resp.Items, saleItemResponse{
			ID:                 item.ID,
			VariantID:          item.VariantID,
			Quantity:           item.Quantity,
			UnitPrice:          item.UnitPrice,
			LineTotal:          item.LineTotal,
			OriginalSaleItemID: item.OriginalSaleItemID,
		})
	}
	return resp
}
