package expenses

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

// Handler wires HTTP endpoints for expenses.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs expenses handler.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validate: validate}
}

// MountRoutes registers expense routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleCreate)
	r.Get("/", h.handleList)
	r.Get("/{id}", h.handleGet)
	r.Post("/categories", h.handleCreateCategory)
	r.Get("/categories", h.handleListCategories)
	r.Post("/recurring", h.handleCreateRecurring)
	r.Get("/recurring", h.handleListRecurring)
}

type createExpenseRequest struct {
	CategoryID      int64           `json:"category_id" validate:"required,gt=0"`
	Description     string          `json:"description"`
	Amount          decimal.Decimal `json:"amount" validate:"required"`
	ExpenseDate     *time.Time      `json:"expense_date"`
	AmountPaid      decimal.Decimal `json:"amount_paid"`
	PaymentMethod   string          `json:"payment_method" validate:"omitempty,oneof=cash mpesa bank card"`
	ReferenceNumber string          `json:"reference_number"`
}

type createRecurringRequest struct {
	CategoryID  int64           `json:"category_id" validate:"required,gt=0"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount" validate:"required"`
	Frequency   string          `json:"frequency" validate:"required,oneof=weekly monthly"`
	StartDate   time.Time       `json:"start_date" validate:"required"`
	Occurrences int             `json:"occurrences" validate:"required,min=1,max=12"`
}

type expenseResponse struct {
	ID            int64           `json:"id"`
	CategoryID    int64           `json:"category_id"`
	Description   string          `json:"description,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	PaymentStatus billing.Status  `json:"payment_status"`
	ExpenseDate   time.Time       `json:"expense_date"`
	RecurringID   *int64          `json:"recurring_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

type recurringResponse struct {
	ID          int64           `json:"id"`
	CategoryID  int64           `json:"category_id"`
	Description string          `json:"description,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Frequency   Frequency       `json:"frequency"`
	StartDate   time.Time       `json:"start_date"`
	Occurrences int             `json:"occurrences"`
	Generated   int             `json:"generated"`
	NextRunAt   time.Time       `json:"next_run_at"`
	Active      bool            `json:"is_active"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createExpenseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}

	input := ExpenseInput{
		CategoryID:      req.CategoryID,
		Description:     req.Description,
		Amount:          req.Amount,
		AmountPaid:      req.AmountPaid,
		PaymentMethod:   billing.Method(req.PaymentMethod),
		ReferenceNumber: req.ReferenceNumber,
		ActorID:         shared.ActorFromContext(r.Context()),
	}
	if req.ExpenseDate != nil {
		input.ExpenseDate = *req.ExpenseDate
	}
	expense, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.logger.Warn("expense rejected", slog.Int64("category_id", req.CategoryID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toExpenseResponse(expense))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, shared.NewValidation("invalid expense id"))
		return
	}
	expense, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toExpenseResponse(expense))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	categoryID, _ := strconv.ParseInt(q.Get("category_id"), 10, 64)
	limit, _ := strconv.Atoi(q.Get("limit"))
	filter := ListFilter{CategoryID: categoryID, Limit: limit}
	if from := q.Get("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			httpx.RespondError(w, shared.NewValidation("invalid from date"))
			return
		}
		filter.From = t
	}
	if to := q.Get("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			httpx.RespondError(w, shared.NewValidation("invalid to date"))
			return
		}
		filter.To = t
	}
	out, err := h.service.List(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	resp := make([]expenseResponse, 0, len(out))
	for _, e := range out {
		resp = append(resp, toExpenseResponse(e))
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name" validate:"required"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	cat, err := h.service.CreateCategory(r.Context(), req.Name)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, cat)
}

func (h *Handler) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.service.Categories(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, cats)
}

func (h *Handler) handleCreateRecurring(w http.ResponseWriter, r *http.Request) {
	var req createRecurringRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	schedule, err := h.service.CreateRecurring(r.Context(), RecurringInput{
		CategoryID:  req.CategoryID,
		Description: req.Description,
		Amount:      req.Amount,
		Frequency:   Frequency(req.Frequency),
		StartDate:   req.StartDate,
		Occurrences: req.Occurrences,
		ActorID:     shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toRecurringResponse(schedule))
}

func (h *Handler) handleListRecurring(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	schedules, err := h.service.Recurring(r.Context(), activeOnly)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	resp := make([]recurringResponse, 0, len(schedules))
	for _, schedule := range schedules {
		resp = append(resp, toRecurringResponse(schedule))
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func toExpenseResponse(e Expense) expenseResponse {
	return expenseResponse{
		ID:            e.ID,
		CategoryID:    e.CategoryID,
		Description:   e.Description,
		Amount:        e.Amount,
		AmountPaid:    e.AmountPaid,
		PaymentStatus: e.PaymentStatus,
		ExpenseDate:   e.ExpenseDate,
		RecurringID:   e.RecurringID,
		CreatedAt:     e.CreatedAt,
	}
}

func toRecurringResponse(r RecurringExpense) recurringResponse {
	return recurringResponse{
		ID:          r.ID,
		CategoryID:  r.CategoryID,
		Description: r.Description,
		Amount:      r.Amount,
		Frequency:   r.Frequency,
		StartDate:   r.StartDate,
		Occurrences: r.Occurrences,
		Generated:   r.Generated,
		NextRunAt:   r.NextRunAt,
		Active:      r.Active,
	}
}
