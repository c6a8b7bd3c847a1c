package handler

import (
	"net/http"
	"time"

	"github.com/wardflow/wardflow-backend/internal/inventory/service"
	"github.com/wardflow/wardflow-backend/pkg/errors"
	"github.com/wardflow/wardflow-backend/pkg/httputil"
	"github.com/wardflow/wardflow-backend/pkg/logger"
)

// StockHandler handles stock movement endpoints
type StockHandler struct {
	service *service.InventoryService
	logger  *logger.Logger
}

// NewStockHandler creates a new stock handler
func NewStockHandler(svc *service.InventoryService, log *logger.Logger) *StockHandler {
	return &StockHandler{
		service: svc,
		logger:  log,
	}
}

type stockInRequest struct {
	ItemID        string `json:"item_id" validate:"required,uuid"`
	Quantity      int    `json:"quantity" validate:"required,gt=0"`
	BatchNumber   string `json:"batch_number" validate:"required,min=1,max=100"`
	ExpiryDate    string `json:"expiry_date" validate:"required,datetime=2006-01-02"`
	UnitCostCents int    `json:"unit_cost_cents" validate:"gte=0"`
	Reason        string `json:"reason"`
}

type stockOutRequest struct {
	ItemID   string `json:"item_id" validate:"required,uuid"`
	Quantity int    `json:"quantity" validate:"required,gt=0"`
	Reason   string `json:"reason"`
}

// In receives a delivery into a new batch
func (h *StockHandler) In(w http.ResponseWriter, r *http.Request) {
	var req stockInRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	expiry, err := time.Parse("2006-01-02", req.ExpiryDate)
	if err != nil {
		httputil.Error(w, errors.Validation(map[string]string{"expiry_date": "expiry_date must be formatted as YYYY-MM-DD"}))
		return
	}

	result, err := h.service.StockIn(r.Context(), service.StockInInput{
		ItemID:        req.ItemID,
		Quantity:      req.Quantity,
		BatchNumber:   req.BatchNumber,
		ExpiryDate:    expiry,
		UnitCostCents: req.UnitCostCents,
		Reason:        req.Reason,
	}, httputil.GetUserID(r.Context()))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, result)
}

// Out draws stock via FEFO allocation
func (h *StockHandler) Out(w http.ResponseWriter, r *http.Request) {
	var req stockOutRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.service.StockOut(r.Context(), service.StockOutInput{
		ItemID:   req.ItemID,
		Quantity: req.Quantity,
		Reason:   req.Reason,
	}, httputil.GetUserID(r.Context()))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}
