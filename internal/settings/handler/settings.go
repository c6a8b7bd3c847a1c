package handler

import (
	"net/http"

	"github.com/wardflow/wardflow-backend/internal/settings/repository"
	"github.com/wardflow/wardflow-backend/pkg/errors"
	"github.com/wardflow/wardflow-backend/pkg/httputil"
	"github.com/wardflow/wardflow-backend/pkg/logger"
)

// SettingsHandler handles tenant settings endpoints
type SettingsHandler struct {
	repo   *repository.SettingsRepository
	logger *logger.Logger
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(repo *repository.SettingsRepository, log *logger.Logger) *SettingsHandler {
	return &SettingsHandler{
		repo:   repo,
		logger: log,
	}
}

type settingsRequest struct {
	HospitalName      string `json:"hospital_name" validate:"max=255"`
	Address           string `json:"address" validate:"max=500"`
	ContactEmail      string `json:"contact_email" validate:"omitempty,email"`
	ContactPhone      string `json:"contact_phone" validate:"max=50"`
	ExpirySoonDays    int    `json:"expiry_soon_days" validate:"required,gt=0"`
	ExpiryLaterDays   int    `json:"expiry_later_days" validate:"required,gt=0"`
	LowStockThreshold int    `json:"low_stock_threshold" validate:"gte=0"`
}

// Get returns the tenant's settings, defaults included for tenants that
// never saved any
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	settings, err := h.repo.Get(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, settings)
}

// Update saves the tenant's settings
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}
	if req.ExpirySoonDays > req.ExpiryLaterDays {
		httputil.Error(w, errors.Validation(map[string]string{
			"expiry_soon_days": "expiry_soon_days cannot exceed expiry_later_days",
		}))
		return
	}

	settings := &repository.TenantSettings{
		HospitalName:      req.HospitalName,
		Address:           req.Address,
		ContactEmail:      req.ContactEmail,
		ContactPhone:      req.ContactPhone,
		ExpirySoonDays:    req.ExpirySoonDays,
		ExpiryLaterDays:   req.ExpiryLaterDays,
		LowStockThreshold: req.LowStockThreshold,
	}
	if err := h.repo.Upsert(r.Context(), settings); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, settings)
}
