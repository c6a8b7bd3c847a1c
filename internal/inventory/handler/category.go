package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wardflow/wardflow-backend/internal/inventory/repository"
	"github.com/wardflow/wardflow-backend/internal/inventory/service"
	"github.com/wardflow/wardflow-backend/pkg/httputil"
	"github.com/wardflow/wardflow-backend/pkg/logger"
)

// CategoryHandler handles category endpoints
type CategoryHandler struct {
	service *service.InventoryService
	logger  *logger.Logger
}

// NewCategoryHandler creates a new category handler
func NewCategoryHandler(svc *service.InventoryService, log *logger.Logger) *CategoryHandler {
	return &CategoryHandler{
		service: svc,
		logger:  log,
	}
}

type categoryRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=255"`
	Description string `json:"description"`
}

// List lists categories with their active item counts
func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	includeArchived := r.URL.Query().Get("include_archived") == "true"

	categories, err := h.service.ListCategories(r.Context(), includeArchived)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, categories)
}

// Get gets a category by ID
func (h *CategoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	category, err := h.service.GetCategory(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, category)
}

// Create creates a new category
func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	category := &repository.Category{
		Name:        req.Name,
		Description: req.Description,
	}
	if err := h.service.CreateCategory(r.Context(), category); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, category)
}

// Update updates a category
func (h *CategoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req categoryRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	category := &repository.Category{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
	}
	if err := h.service.UpdateCategory(r.Context(), category); err != nil {
		httputil.Error(w, err)
		return
	}

	updated, err := h.service.GetCategory(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, updated)
}

// Delete soft-archives a category. Items keep their category reference.
func (h *CategoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.ArchiveCategory(r.Context(), id); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// Restore reverses a soft archive
func (h *CategoryHandler) Restore(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.RestoreCategory(r.Context(), id); err != nil {
		httputil.Error(w, err)
		return
	}

	category, err := h.service.GetCategory(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, category)
}
