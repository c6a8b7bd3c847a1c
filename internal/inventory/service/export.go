package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/wardflow/wardflow-backend/internal/inventory/repository"
)

// Export row caps keep downloads bounded; the ledger export pages under the
// hood.
const exportMaxRows = 10000

// ExportItems flattens the item list into tabular rows for CSV/XLSX download
func (s *InventoryService) ExportItems(ctx context.Context) ([]string, [][]string, error) {
	items, _, err := s.ListItems(ctx, 1, exportMaxRows, repository.ItemFilter{IncludeArchived: true})
	if err != nil {
		return nil, nil, err
	}

	headers := []string{"Name", "SKU", "Category", "Unit", "Current Stock", "Reorder Level", "Cost Per Unit", "Stock Status", "Nearest Expiry", "Active"}
	rows := make([][]string, len(items))
	for i, item := range items {
		nearestExpiry := ""
		if item.NearestExpiry != nil {
			nearestExpiry = item.NearestExpiry.Format("2006-01-02")
		}
		rows[i] = []string{
			item.Name,
			item.SKU,
			item.CategoryName,
			item.Unit,
			strconv.Itoa(item.CurrentStock),
			strconv.Itoa(item.ReorderLevel),
			fmt.Sprintf("%.2f", item.CostPerUnit),
			item.StockStatus,
			nearestExpiry,
			strconv.FormatBool(item.IsActive),
		}
	}

	return headers, rows, nil
}

// ExportCategories flattens the category list for download
func (s *InventoryService) ExportCategories(ctx context.Context) ([]string, [][]string, error) {
	categories, err := s.categoryRepo.List(ctx, true)
	if err != nil {
		return nil, nil, err
	}

	headers := []string{"Name", "Description", "Item Count", "Active"}
	rows := make([][]string, len(categories))
	for i, cat := range categories {
		rows[i] = []string{
			cat.Name,
			cat.Description,
			strconv.Itoa(cat.ItemCount),
			strconv.FormatBool(cat.IsActive),
		}
	}

	return headers, rows, nil
}

// ExportTransactions flattens the filtered stock ledger for download
func (s *InventoryService) ExportTransactions(ctx context.Context, filter repository.TransactionFilter) ([]string, [][]string, error) {
	entries, _, err := s.txRepo.List(ctx, 1, exportMaxRows, filter)
	if err != nil {
		return nil, nil, err
	}

	headers := []string{"Date", "Item", "Type", "Quantity", "Resulting Stock", "Batch", "Batch Expiry", "Performed By", "Reason"}
	rows := make([][]string, len(entries))
	for i, entry := range entries {
		batchNumber := ""
		if entry.BatchNumber != nil {
			batchNumber = *entry.BatchNumber
		}
		batchExpiry := ""
		if entry.BatchExpiry != nil {
			batchExpiry = entry.BatchExpiry.Format("2006-01-02")
		}
		rows[i] = []string{
			entry.CreatedAt.Format("2006-01-02 15:04"),
			entry.ItemName,
			entry.Type,
			strconv.Itoa(entry.Quantity),
			strconv.Itoa(entry.ResultingStock),
			batchNumber,
			batchExpiry,
			entry.PerformedByName,
			entry.Reason,
		}
	}

	return headers, rows, nil
}
