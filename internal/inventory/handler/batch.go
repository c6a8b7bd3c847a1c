package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wardflow/wardflow-backend/internal/inventory/service"
	"github.com/wardflow/wardflow-backend/pkg/httputil"
	"github.com/wardflow/wardflow-backend/pkg/logger"
)

// BatchHandler handles batch endpoints
type BatchHandler struct {
	service *service.InventoryService
	logger  *logger.Logger
}

// NewBatchHandler creates a new batch handler
func NewBatchHandler(svc *service.InventoryService, log *logger.Logger) *BatchHandler {
	return &BatchHandler{
		service: svc,
		logger:  log,
	}
}

type adjustBatchRequest struct {
	Quantity int    `json:"quantity" validate:"gte=0"`
	Reason   string `json:"reason" validate:"required,min=1"`
}

// Get gets a batch by ID
func (h *BatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	batch, err := h.service.GetBatch(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batch)
}

// ListByItem lists an item's batches in ascending expiry order
func (h *BatchHandler) ListByItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "id")

	batches, err := h.service.ListBatchesByItem(r.Context(), itemID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batches)
}

// Adjust corrects a batch to an absolute quantity
func (h *BatchHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req adjustBatchRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.service.AdjustBatch(r.Context(), id, req.Quantity, req.Reason, httputil.GetUserID(r.Context()))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}

// Expire marks an active batch expired. The mark is one-way.
func (h *BatchHandler) Expire(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	result, err := h.service.MarkBatchExpired(r.Context(), id, httputil.GetUserID(r.Context()))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}

// ExpiryAlerts reports batches expired or expiring within the window
func (h *BatchHandler) ExpiryAlerts(w http.ResponseWriter, r *http.Request) {
	days := httputil.QueryInt(r, "days", service.DefaultExpirySoonDays)

	report, err := h.service.GetExpiryAlerts(r.Context(), days)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, report)
}
