package handler

import (
	"net/http"

	"github.com/wardflow/wardflow-backend/internal/inventory/service"
	"github.com/wardflow/wardflow-backend/pkg/httputil"
	"github.com/wardflow/wardflow-backend/pkg/logger"
)

// DashboardHandler handles dashboard statistics
type DashboardHandler struct {
	service *service.InventoryService
	logger  *logger.Logger
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(svc *service.InventoryService, log *logger.Logger) *DashboardHandler {
	return &DashboardHandler{
		service: svc,
		logger:  log,
	}
}

// Stats returns inventory health aggregates for the tenant
func (h *DashboardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetDashboardStats(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, stats)
}
