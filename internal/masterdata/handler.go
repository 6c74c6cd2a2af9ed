package masterdata

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/dukahub/dukahub/internal/platform/httpx"
	"github.com/dukahub/dukahub/internal/shared"
)

// Handler wires HTTP endpoints for master data.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs masterdata handler.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validate: validate}
}

// MountRoutes registers master data routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/locations", func(r chi.Router) {
		r.Post("/", h.handleCreateLocation)
		r.Get("/", h.handleListLocations)
		r.Get("/{id}", h.handleGetLocation)
		r.Put("/{id}", h.handleUpdateLocation)
		r.Post("/{id}/deactivate", h.handleDeactivateLocation)
		r.Post("/{id}/activate", h.handleActivateLocation)
	})
	r.Route("/pricing-tiers", func(r chi.Router) {
		r.Post("/", h.handleCreateTier)
		r.Get("/", h.handleListTiers)
	})
	r.Route("/customers", func(r chi.Router) {
		r.Post("/", h.handleCreateCustomer)
		r.Get("/", h.handleListCustomers)
		r.Get("/{id}", h.handleGetCustomer)
		r.Put("/{id}", h.handleUpdateCustomer)
		r.Get("/{id}/balance", h.handleCustomerBalance)
		r.Get("/{id}/check-credit", h.handleCheckCredit)
		r.Post("/{id}/deactivate", h.handleDeactivateCustomer)
		r.Post("/{id}/activate", h.handleActivateCustomer)
	})
	r.Route("/suppliers", func(r chi.Router) {
		r.Post("/", h.handleCreateSupplier)
		r.Get("/", h.handleListSuppliers)
		r.Get("/{id}", h.handleGetSupplier)
		r.Put("/{id}", h.handleUpdateSupplier)
		r.Post("/{id}/deactivate", h.handleDeactivateSupplier)
	})
	r.Route("/products", func(r chi.Router) {
		r.Post("/", h.handleCreateProduct)
		r.Get("/", h.handleListProducts)
		r.Get("/{id}", h.handleGetProduct)
		r.Put("/{id}", h.handleUpdateProduct)
		r.Post("/{id}/variants", h.handleCreateVariant)
		r.Post("/categories", h.handleCreateProductCategory)
		r.Get("/categories", h.handleListProductCategories)
	})
	r.Route("/variants", func(r chi.Router) {
		r.Put("/{id}", h.handleUpdateVariant)
		r.Post("/{id}/deactivate", h.handleDeactivateVariant)
	})
}

func urlID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.NewValidation("invalid id")
	}
	return id, nil
}

// --- locations ---

type locationRequest struct {
	Name    string `json:"name" validate:"required"`
	Kind    string `json:"kind" validate:"required,oneof=warehouse shop store other"`
	Address string `json:"address"`
}

func (h *Handler) handleCreateLocation(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	loc, err := h.service.CreateLocation(r.Context(), req.Name, LocationKind(req.Kind), req.Address)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, loc)
}

func (h *Handler) handleUpdateLocation(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req locationRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	loc, err := h.service.UpdateLocation(r.Context(), id, req.Name, LocationKind(req.Kind), req.Address)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, loc)
}

func (h *Handler) handleGetLocation(w http.ResponseWriter, r *http.Request) {
	h.getByID(w, r, func(id int64) (any, error) {
		return h.service.GetLocation(r.Context(), id)
	})
}

func (h *Handler) handleListLocations(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.ListLocations(r.Context(), activeOnly(r))
	h.respondList(w, out, err)
}

func (h *Handler) handleDeactivateLocation(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, h.service.DeactivateLocation)
}

func (h *Handler) handleActivateLocation(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, h.service.ActivateLocation)
}

// --- pricing tiers ---

type tierRequest struct {
	Name        string          `json:"name" validate:"required"`
	DiscountPct decimal.Decimal `json:"discount_pct"`
}

func (h *Handler) handleCreateTier(w http.ResponseWriter, r *http.Request) {
	var req tierRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	tier, err := h.service.CreateTier(r.Context(), req.Name, req.DiscountPct)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, tier)
}

func (h *Handler) handleListTiers(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.ListTiers(r.Context())
	h.respondList(w, out, err)
}

// --- customers ---

type customerRequest struct {
	Name        string          `json:"name" validate:"required"`
	Phone       string          `json:"phone"`
	Email       string          `json:"email" validate:"omitempty,email"`
	CreditLimit decimal.Decimal `json:"credit_limit"`
	TierID      *int64          `json:"pricing_tier_id"`
}

func (req customerRequest) input() CustomerInput {
	return CustomerInput{
		Name:        req.Name,
		Phone:       req.Phone,
		Email:       req.Email,
		CreditLimit: req.CreditLimit,
		TierID:      req.TierID,
	}
}

func (h *Handler) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.service.CreateCustomer(r.Context(), req.input())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, c)
}

func (h *Handler) handleUpdateCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req customerRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.service.UpdateCustomer(r.Context(), id, req.input())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	h.getByID(w, r, func(id int64) (any, error) {
		return h.service.GetCustomer(r.Context(), id)
	})
}

func (h *Handler) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.ListCustomers(r.Context(), activeOnly(r))
	h.respondList(w, out, err)
}

func (h *Handler) handleCustomerBalance(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.service.GetCustomer(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"customer_id":      c.ID,
		"credit_limit":     c.CreditLimit,
		"current_balance":  c.CurrentBalance,
		"available_credit": c.AvailableCredit(),
	})
}

func (h *Handler) handleCheckCredit(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	amount, err := decimal.NewFromString(r.URL.Query().Get("amount"))
	if err != nil || amount.IsNegative() {
		httpx.RespondError(w, shared.NewValidation("amount must be a non-negative number"))
		return
	}
	decision, err := h.service.CheckCredit(r.Context(), id, amount)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"allowed":          decision.Allowed,
		"available_credit": decision.AvailableCredit,
	})
}

func (h *Handler) handleDeactivateCustomer(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, h.service.DeactivateCustomer)
}

func (h *Handler) handleActivateCustomer(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, h.service.ActivateCustomer)
}

// --- suppliers ---

type supplierRequest struct {
	Name             string `json:"name" validate:"required"`
	Phone            string `json:"phone"`
	Email            string `json:"email" validate:"omitempty,email"`
	PaymentTermsDays int    `json:"payment_terms_days" validate:"min=0"`
}

func (req supplierRequest) input() SupplierInput {
	return SupplierInput{
		Name:             req.Name,
		Phone:            req.Phone,
		Email:            req.Email,
		PaymentTermsDays: req.PaymentTermsDays,
	}
}

func (h *Handler) handleCreateSupplier(w http.ResponseWriter, r *http.Request) {
	var req supplierRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	s, err := h.service.CreateSupplier(r.Context(), req.input())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, s)
}

func (h *Handler) handleUpdateSupplier(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req supplierRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	s, err := h.service.UpdateSupplier(r.Context(), id, req.input())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, s)
}

func (h *Handler) handleGetSupplier(w http.ResponseWriter, r *http.Request) {
	h.getByID(w, r, func(id int64) (any, error) {
		return h.service.GetSupplier(r.Context(), id)
	})
}

func (h *Handler) handleListSuppliers(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.ListSuppliers(r.Context(), activeOnly(r))
	h.respondList(w, out, err)
}

func (h *Handler) handleDeactivateSupplier(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, h.service.DeactivateSupplier)
}

// --- products and variants ---

type productRequest struct {
	CategoryID  *int64 `json:"category_id"`
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

type variantRequest struct {
	SKU          string          `json:"sku" validate:"required"`
	Name         string          `json:"name"`
	CostPrice    decimal.Decimal `json:"cost_price"`
	SellingPrice decimal.Decimal `json:"selling_price"`
}

func (h *Handler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.service.CreateProduct(r.Context(), ProductInput{
		CategoryID: req.CategoryID, Name: req.Name, Description: req.Description,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req productRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.service.UpdateProduct(r.Context(), id, ProductInput{
		CategoryID: req.CategoryID, Name: req.Name, Description: req.Description,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, variants, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"product": p, "variants": variants})
}

func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.ListProducts(r.Context(), activeOnly(r))
	h.respondList(w, out, err)
}

func (h *Handler) handleCreateProductCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name" validate:"required"`
	}
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	cat, err := h.service.CreateProductCategory(r.Context(), req.Name)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, cat)
}

func (h *Handler) handleListProductCategories(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.ListProductCategories(r.Context())
	h.respondList(w, out, err)
}

func (h *Handler) handleCreateVariant(w http.ResponseWriter, r *http.Request) {
	productID, err := urlID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req variantRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	v, err := h.service.CreateVariant(r.Context(), productID, VariantInput{
		SKU: req.SKU, Name: req.Name, CostPrice: req.CostPrice, SellingPrice: req.SellingPrice,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, v)
}

func (h *Handler) handleUpdateVariant(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req variantRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	v, err := h.service.UpdateVariant(r.Context(), id, VariantInput{
		SKU: req.SKU, Name: req.Name, CostPrice: req.CostPrice, SellingPrice: req.SellingPrice,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, v)
}

func (h *Handler) handleDeactivateVariant(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, h.service.DeactivateVariant)
}

// --- helpers ---

func (h *Handler) decode(r *http.Request, target any) error {
	if err := httpx.DecodeJSON(r, target); err != nil {
		return err
	}
	return h.validate.Struct(target)
}

func (h *Handler) action(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id int64) error) {
	id, err := urlID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := fn(r.Context(), id); err != nil {
		h.logger.Warn("masterdata action failed", slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getByID(w http.ResponseWriter, r *http.Request, fn func(id int64) (any, error)) {
	id, err := urlID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out, err := fn(id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) respondList(w http.ResponseWriter, out any, err error) {
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func activeOnly(r *http.Request) bool {
	return r.URL.Query().Get("active") == "true"
}
