package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wardflow/wardflow-backend/internal/inventory/service"
	"github.com/wardflow/wardflow-backend/pkg/httputil"
	"github.com/wardflow/wardflow-backend/pkg/logger"
)

// AlertHandler handles stored alert endpoints
type AlertHandler struct {
	service *service.InventoryService
	logger  *logger.Logger
}

// NewAlertHandler creates a new alert handler
func NewAlertHandler(svc *service.InventoryService, log *logger.Logger) *AlertHandler {
	return &AlertHandler{
		service: svc,
		logger:  log,
	}
}

// List lists stored alerts, critical first
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := httputil.Pagination(r)

	var acknowledged *bool
	if raw := r.URL.Query().Get("acknowledged"); raw != "" {
		value := raw == "true"
		acknowledged = &value
	}
	alertType := r.URL.Query().Get("type")

	alerts, total, err := h.service.ListAlerts(r.Context(), acknowledged, alertType, page, perPage)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, alerts, httputil.NewMeta(page, perPage, total))
}

// Acknowledge marks an alert acknowledged by the current user
func (h *AlertHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	alert, err := h.service.AcknowledgeAlert(r.Context(), id, httputil.GetUserID(r.Context()))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, alert)
}
