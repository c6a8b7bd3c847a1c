package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wardflow/wardflow-backend/internal/inventory/repository"
	"github.com/wardflow/wardflow-backend/internal/inventory/service"
	"github.com/wardflow/wardflow-backend/pkg/errors"
	"github.com/wardflow/wardflow-backend/pkg/httputil"
	"github.com/wardflow/wardflow-backend/pkg/logger"
)

// ItemHandler handles item endpoints
type ItemHandler struct {
	service *service.InventoryService
	logger  *logger.Logger
}

// NewItemHandler creates a new item handler
func NewItemHandler(svc *service.InventoryService, log *logger.Logger) *ItemHandler {
	return &ItemHandler{
		service: svc,
		logger:  log,
	}
}

type createItemRequest struct {
	Name             string  `json:"name" validate:"required,min=1,max=255"`
	SKU              string  `json:"sku" validate:"max=100"`
	Description      string  `json:"description"`
	Unit             string  `json:"unit" validate:"required,max=50"`
	CategoryID       *string `json:"category_id" validate:"omitempty,uuid"`
	ReorderLevel     int     `json:"reorder_level" validate:"gte=0"`
	CostPerUnitCents int     `json:"cost_per_unit_cents" validate:"gte=0"`
	InitialStock     int     `json:"initial_stock" validate:"gte=0"`
	BatchNumber      string  `json:"batch_number" validate:"max=100"`
	ExpiryDate       string  `json:"expiry_date" validate:"omitempty,datetime=2006-01-02"`
}

type updateItemRequest struct {
	Name             string  `json:"name" validate:"required,min=1,max=255"`
	SKU              string  `json:"sku" validate:"max=100"`
	Description      string  `json:"description"`
	Unit             string  `json:"unit" validate:"required,max=50"`
	CategoryID       *string `json:"category_id" validate:"omitempty,uuid"`
	ReorderLevel     int     `json:"reorder_level" validate:"gte=0"`
	CostPerUnitCents int     `json:"cost_per_unit_cents" validate:"gte=0"`
}

// List lists inventory items with filters and pagination
func (h *ItemHandler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := httputil.Pagination(r)

	filter := repository.ItemFilter{
		CategoryID:      r.URL.Query().Get("category_id"),
		Search:          r.URL.Query().Get("search"),
		IncludeArchived: r.URL.Query().Get("include_archived") == "true",
	}

	items, total, err := h.service.ListItems(r.Context(), page, perPage, filter)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, items, httputil.NewMeta(page, perPage, total))
}

// Get gets an item with its batches
func (h *ItemHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	item, err := h.service.GetItem(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, item)
}

// Create creates an item, atomically with its opening stock when
// initial_stock is set
func (h *ItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	input := service.CreateItemInput{
		Name:             req.Name,
		SKU:              req.SKU,
		Description:      req.Description,
		Unit:             req.Unit,
		CategoryID:       req.CategoryID,
		ReorderLevel:     req.ReorderLevel,
		CostPerUnitCents: req.CostPerUnitCents,
		InitialStock:     req.InitialStock,
		BatchNumber:      req.BatchNumber,
	}
	if req.ExpiryDate != "" {
		expiry, err := time.Parse("2006-01-02", req.ExpiryDate)
		if err != nil {
			httputil.Error(w, errors.Validation(map[string]string{"expiry_date": "expiry_date must be formatted as YYYY-MM-DD"}))
			return
		}
		input.ExpiryDate = &expiry
	}

	item, err := h.service.CreateItem(r.Context(), input, httputil.GetUserID(r.Context()))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, item)
}

// Update updates an item's descriptive fields
func (h *ItemHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateItemRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	item, err := h.service.UpdateItem(r.Context(), &repository.Item{
		ID:               id,
		Name:             req.Name,
		SKU:              req.SKU,
		Description:      req.Description,
		Unit:             req.Unit,
		CategoryID:       req.CategoryID,
		ReorderLevel:     req.ReorderLevel,
		CostPerUnitCents: req.CostPerUnitCents,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, item)
}

// Delete soft-archives an item
func (h *ItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.ArchiveItem(r.Context(), id); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// Restore reverses a soft archive
func (h *ItemHandler) Restore(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.RestoreItem(r.Context(), id); err != nil {
		httputil.Error(w, err)
		return
	}

	item, err := h.service.GetItem(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, item)
}

// Search searches active items by name or SKU for autocomplete
func (h *ItemHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		httputil.JSON(w, http.StatusOK, []*repository.Item{})
		return
	}

	limit := httputil.QueryInt(r, "limit", 10)
	if limit < 1 || limit > 50 {
		limit = 10
	}

	items, err := h.service.SearchMedications(r.Context(), q, limit)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, items)
}
