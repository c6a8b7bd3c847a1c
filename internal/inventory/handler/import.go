package handler

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/wardflow/wardflow-backend/internal/inventory/service"
	"github.com/wardflow/wardflow-backend/pkg/config"
	"github.com/wardflow/wardflow-backend/pkg/errors"
	"github.com/wardflow/wardflow-backend/pkg/httputil"
	"github.com/wardflow/wardflow-backend/pkg/logger"
)

// ImportHandler handles bulk item imports
type ImportHandler struct {
	service *service.InventoryService
	cfg     *config.InventoryConfig
	logger  *logger.Logger
}

// NewImportHandler creates a new import handler
func NewImportHandler(svc *service.InventoryService, cfg *config.InventoryConfig, log *logger.Logger) *ImportHandler {
	return &ImportHandler{
		service: svc,
		cfg:     cfg,
		logger:  log,
	}
}

// Import accepts a multipart XLSX upload under the "file" field. With
// ?preview=true the normalized rows come back without writing anything.
func (h *ImportHandler) Import(w http.ResponseWriter, r *http.Request) {
	maxBytes := h.cfg.ImportMaxBytes
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	if err := r.ParseMultipartForm(maxBytes); err != nil {
		httputil.Error(w, errors.BadRequest("upload too large or malformed"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.Error(w, errors.BadRequest("missing file upload"))
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext != ".xlsx" && ext != ".xls" {
		httputil.Error(w, errors.BadRequest("only .xlsx and .xls files are supported"))
		return
	}

	preview := r.URL.Query().Get("preview") == "true"

	report, err := h.service.ImportItems(r.Context(), file, header.Filename, preview, httputil.GetUserID(r.Context()))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, report)
}
