package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wardflow/wardflow-backend/internal/staff/repository"
	"github.com/wardflow/wardflow-backend/internal/staff/service"
	"github.com/wardflow/wardflow-backend/pkg/httputil"
	"github.com/wardflow/wardflow-backend/pkg/logger"
)

// StaffHandler handles staff directory endpoints
type StaffHandler struct {
	service *service.StaffService
	logger  *logger.Logger
}

// NewStaffHandler creates a new staff handler
func NewStaffHandler(svc *service.StaffService, log *logger.Logger) *StaffHandler {
	return &StaffHandler{
		service: svc,
		logger:  log,
	}
}

type staffRequest struct {
	Name       string `json:"name" validate:"required,min=1,max=255"`
	Role       string `json:"role" validate:"required,max=100"`
	Specialty  string `json:"specialty" validate:"max=100"`
	Department string `json:"department" validate:"max=100"`
	Email      string `json:"email" validate:"omitempty,email"`
	Phone      string `json:"phone" validate:"max=50"`
}

// List lists staff members with filters and pagination
func (h *StaffHandler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := httputil.Pagination(r)

	filter := repository.StaffFilter{
		Role:            r.URL.Query().Get("role"),
		Specialty:       r.URL.Query().Get("specialty"),
		Department:      r.URL.Query().Get("department"),
		Search:          r.URL.Query().Get("search"),
		IncludeArchived: r.URL.Query().Get("include_archived") == "true",
	}

	members, total, err := h.service.List(r.Context(), page, perPage, filter)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, members, httputil.NewMeta(page, perPage, total))
}

// Get gets a staff member by ID
func (h *StaffHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	member, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, member)
}

// Create creates a new staff member
func (h *StaffHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req staffRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	member := &repository.StaffMember{
		Name:       req.Name,
		Role:       req.Role,
		Specialty:  req.Specialty,
		Department: req.Department,
		Email:      req.Email,
		Phone:      req.Phone,
	}
	if err := h.service.Create(r.Context(), member); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, member)
}

// Update updates a staff member's profile
func (h *StaffHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req staffRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	member, err := h.service.Update(r.Context(), &repository.StaffMember{
		ID:         id,
		Name:       req.Name,
		Role:       req.Role,
		Specialty:  req.Specialty,
		Department: req.Department,
		Email:      req.Email,
		Phone:      req.Phone,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, member)
}

// Delete soft-archives a staff member
func (h *StaffHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.Archive(r.Context(), id); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// Restore reverses a soft archive
func (h *StaffHandler) Restore(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	member, err := h.service.Restore(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, member)
}

// Export streams the staff directory as CSV or XLSX
func (h *StaffHandler) Export(w http.ResponseWriter, r *http.Request) {
	headers, rows, err := h.service.Export(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	filename := fmt.Sprintf("staff-%s", time.Now().Format("2006-01-02"))
	switch r.URL.Query().Get("format") {
	case "xlsx":
		httputil.WriteExcel(w, filename, headers, rows)
	default:
		httputil.WriteCSV(w, filename+".csv", headers, rows)
	}
}
