package inventory

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/dukahub/dukahub/internal/platform/httpx"
)

// Handler wires HTTP endpoints for inventory reads.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validate: validate}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/positions", h.handleListPositions)
	r.Put("/positions/thresholds", h.handleSetThresholds)
	r.Get("/low-stock/count", h.handleLowStockCount)
}

type thresholdRequest struct {
	VariantID  int64  `json:"variant_id" validate:"required,gt=0"`
	LocationID int64  `json:"location_id" validate:"required,gt=0"`
	MinLevel   *int64 `json:"min_level"`
	MaxLevel   *int64 `json:"max_level"`
}

func (h *Handler) handleListPositions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	locationID, _ := strconv.ParseInt(q.Get("location_id"), 10, 64)
	variantID, _ := strconv.ParseInt(q.Get("variant_id"), 10, 64)
	limit, _ := strconv.Atoi(q.Get("limit"))
	out, err := h.service.Positions(r.Context(), PositionFilter{
		LocationID:   locationID,
		VariantID:    variantID,
		LowStockOnly: q.Get("low_stock") == "true",
		Limit:        limit,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleSetThresholds(w http.ResponseWriter, r *http.Request) {
	var req thresholdRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	err := h.service.SetThresholds(r.Context(), ThresholdInput{
		VariantID:  req.VariantID,
		LocationID: req.LocationID,
		MinLevel:   req.MinLevel,
		MaxLevel:   req.MaxLevel,
	})
	if err != nil {
		h.logger.Warn("threshold update failed", slog.Int64("variant_id", req.VariantID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleLowStockCount(w http.ResponseWriter, r *http.Request) {
	locationID, _ := strconv.ParseInt(r.URL.Query().Get("location_id"), 10, 64)
	n, err := h.service.LowStockCount(r.Context(), locationID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int64{"low_stock_count": n})
}
