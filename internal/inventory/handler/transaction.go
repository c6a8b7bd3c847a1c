package handler

import (
	"net/http"
	"time"

	"github.com/wardflow/wardflow-backend/internal/inventory/repository"
	"github.com/wardflow/wardflow-backend/internal/inventory/service"
	"github.com/wardflow/wardflow-backend/pkg/httputil"
	"github.com/wardflow/wardflow-backend/pkg/logger"
)

// TransactionHandler handles stock ledger reads
type TransactionHandler struct {
	service *service.InventoryService
	logger  *logger.Logger
}

// NewTransactionHandler creates a new transaction handler
func NewTransactionHandler(svc *service.InventoryService, log *logger.Logger) *TransactionHandler {
	return &TransactionHandler{
		service: svc,
		logger:  log,
	}
}

// List reads the ledger newest first with item, type, batch and date filters
func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := httputil.Pagination(r)
	filter := transactionFilterFromQuery(r)

	entries, total, err := h.service.ListTransactions(r.Context(), page, perPage, filter)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, entries, httputil.NewMeta(page, perPage, total))
}

func transactionFilterFromQuery(r *http.Request) repository.TransactionFilter {
	filter := repository.TransactionFilter{
		ItemID:  r.URL.Query().Get("item_id"),
		BatchID: r.URL.Query().Get("batch_id"),
		Type:    r.URL.Query().Get("type"),
	}

	if raw := r.URL.Query().Get("from"); raw != "" {
		if from, err := time.Parse("2006-01-02", raw); err == nil {
			filter.From = &from
		}
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		if to, err := time.Parse("2006-01-02", raw); err == nil {
			// Inclusive end of day
			end := to.AddDate(0, 0, 1)
			filter.To = &end
		}
	}

	return filter
}
