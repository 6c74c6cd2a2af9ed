package analytics

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dukahub/dukahub/internal/platform/httpx"
	"github.com/dukahub/dukahub/internal/shared"
)

// Handler wires HTTP endpoints for analytics.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs analytics handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers analytics routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/snapshot", h.handleSnapshot)
	r.Get("/sales-summary", h.handleSalesSummary)
	r.Get("/receivables", h.handleReceivables)
}

func (h *Handler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.service.Snapshot(r.Context(), time.Now().UTC())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, snapshot)
}

func (h *Handler) handleSalesSummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := time.Parse(time.RFC3339, q.Get("from"))
	if err != nil {
		httpx.RespondError(w, shared.NewValidation("invalid from date"))
		return
	}
	to, err := time.Parse(time.RFC3339, q.Get("to"))
	if err != nil {
		httpx.RespondError(w, shared.NewValidation("invalid to date"))
		return
	}
	summary, err := h.service.SalesSummary(r.Context(), from, to)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) handleReceivables(w http.ResponseWriter, r *http.Request) {
	topN, _ := strconv.Atoi(r.URL.Query().Get("top"))
	out, err := h.service.Receivables(r.Context(), topN)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}
