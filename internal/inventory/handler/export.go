package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wardflow/wardflow-backend/internal/inventory/service"
	"github.com/wardflow/wardflow-backend/pkg/errors"
	"github.com/wardflow/wardflow-backend/pkg/httputil"
	"github.com/wardflow/wardflow-backend/pkg/logger"
)

// ExportHandler handles tabular downloads of inventory data
type ExportHandler struct {
	service *service.InventoryService
	logger  *logger.Logger
}

// NewExportHandler creates a new export handler
func NewExportHandler(svc *service.InventoryService, log *logger.Logger) *ExportHandler {
	return &ExportHandler{
		service: svc,
		logger:  log,
	}
}

// Export streams one of the inventory datasets as CSV or XLSX.
// The dataset comes from the URL, the format from ?format= (default csv).
func (h *ExportHandler) Export(w http.ResponseWriter, r *http.Request) {
	dataset := chi.URLParam(r, "dataset")

	var (
		headers []string
		rows    [][]string
		err     error
	)
	switch dataset {
	case "items":
		headers, rows, err = h.service.ExportItems(r.Context())
	case "categories":
		headers, rows, err = h.service.ExportCategories(r.Context())
	case "transactions":
		headers, rows, err = h.service.ExportTransactions(r.Context(), transactionFilterFromQuery(r))
	default:
		httputil.Error(w, errors.NotFound("export dataset"))
		return
	}
	if err != nil {
		httputil.Error(w, err)
		return
	}

	filename := fmt.Sprintf("%s-%s", dataset, time.Now().Format("2006-01-02"))
	switch r.URL.Query().Get("format") {
	case "xlsx":
		httputil.WriteExcel(w, filename, headers, rows)
	default:
		httputil.WriteCSV(w, filename+".csv", headers, rows)
	}
}
