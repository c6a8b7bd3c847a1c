package service

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/wardflow/wardflow-backend/internal/inventory/repository"
	"github.com/wardflow/wardflow-backend/pkg/errors"
	"github.com/wardflow/wardflow-backend/pkg/messaging"
)

// Number of normalized rows returned in preview mode
const importPreviewRows = 20

// Accepted spreadsheet date layouts for the expiry column
var importDateLayouts = []string{"2006-01-02", "02/01/2006", "01-02-2006", "2006/01/02"}

// Header aliases accepted by the importer, all matched after normalization
// (lowercase, spaces and underscores collapsed).
var importHeaderAliases = map[string]string{
	"name":          "name",
	"item name":     "name",
	"item":          "name",
	"product":       "name",
	"medication":    "name",
	"sku":           "sku",
	"code":          "sku",
	"item code":     "sku",
	"category":      "category",
	"unit":          "unit",
	"uom":           "unit",
	"reorder level": "reorder_level",
	"min stock":     "reorder_level",
	"minimum stock": "reorder_level",
	"cost per unit": "cost_per_unit",
	"unit cost":     "cost_per_unit",
	"cost":          "cost_per_unit",
	"price":         "cost_per_unit",
	"current stock": "current_stock",
	"stock":         "current_stock",
	"quantity":      "current_stock",
	"qty":           "current_stock",
	"initial stock": "current_stock",
	"expiry date":   "expiry_date",
	"expiry":        "expiry_date",
	"expires":       "expiry_date",
	"description":   "description",
	"notes":         "description",
}

// ImportRow is one spreadsheet row after header mapping and coercion.
// Missing or unparseable fields take their zero-value defaults.
type ImportRow struct {
	Row              int        `json:"row"`
	Name             string     `json:"name"`
	SKU              string     `json:"sku"`
	Category         string     `json:"category"`
	Unit             string     `json:"unit"`
	Description      string     `json:"description"`
	ReorderLevel     int        `json:"reorder_level"`
	CostPerUnitCents int        `json:"cost_per_unit_cents"`
	CurrentStock     int        `json:"current_stock"`
	ExpiryDate       *time.Time `json:"expiry_date,omitempty"`
}

// ImportRowError reports why one row was not imported
type ImportRowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// ImportReport is the outcome of a bulk import. Partial success is normal:
// Imported + Failed should be read together with Errors.
type ImportReport struct {
	FileName  string           `json:"file_name"`
	TotalRows int              `json:"total_rows"`
	Imported  int              `json:"imported"`
	Failed    int              `json:"failed"`
	Errors    []ImportRowError `json:"errors"`
	Preview   []ImportRow      `json:"preview,omitempty"`
}

// ImportItems imports items from an XLSX stream. With preview set the first
// rows are normalized and returned without writing anything; otherwise each
// row is created in its own transaction and failures are reported per row.
func (s *InventoryService) ImportItems(ctx context.Context, r io.Reader, fileName string, preview bool, performedBy string) (*ImportReport, error) {
	rows, err := parseImportSheet(r)
	if err != nil {
		return nil, err
	}

	report := &ImportReport{
		FileName:  fileName,
		TotalRows: len(rows),
		Errors:    []ImportRowError{},
	}

	if preview {
		if limit := s.previewRowLimit(); len(rows) > limit {
			rows = rows[:limit]
		}
		report.Preview = rows
		return report, nil
	}

	categoryIDs, err := s.categoryIDsByName(ctx)
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		if err := s.importRow(ctx, row, categoryIDs, performedBy); err != nil {
			report.Failed++
			report.Errors = append(report.Errors, ImportRowError{Row: row.Row, Message: importErrorMessage(err)})
			continue
		}
		report.Imported++
	}

	s.publisher.PublishItemsImported(ctx, messaging.ItemsImportedEvent{
		FileName:     fileName,
		RowsTotal:    report.TotalRows,
		RowsImported: report.Imported,
		RowsSkipped:  report.Failed,
		PerformedBy:  performedBy,
	})

	s.logger.Info().
		Str("file_name", fileName).
		Int("imported", report.Imported).
		Int("failed", report.Failed).
		Msg("items import finished")

	return report, nil
}

func (s *InventoryService) importRow(ctx context.Context, row ImportRow, categoryIDs map[string]string, performedBy string) error {
	if row.Name == "" {
		return errors.BadRequest("name is required")
	}

	var categoryID *string
	if row.Category != "" {
		id, err := s.resolveCategory(ctx, row.Category, categoryIDs)
		if err != nil {
			return err
		}
		categoryID = &id
	}

	input := CreateItemInput{
		Name:             row.Name,
		SKU:              row.SKU,
		Description:      row.Description,
		Unit:             row.Unit,
		CategoryID:       categoryID,
		ReorderLevel:     row.ReorderLevel,
		CostPerUnitCents: row.CostPerUnitCents,
		InitialStock:     row.CurrentStock,
		ExpiryDate:       row.ExpiryDate,
	}

	_, err := s.CreateItem(ctx, input, performedBy)
	return err
}

// resolveCategory maps a category name to its ID, creating the category on
// first sight. The cache spans the whole import so repeated names cost one
// lookup.
func (s *InventoryService) resolveCategory(ctx context.Context, name string, cache map[string]string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if id, ok := cache[key]; ok {
		return id, nil
	}

	cat := &repository.Category{Name: strings.TrimSpace(name)}
	if err := s.CreateCategory(ctx, cat); err != nil {
		return "", err
	}
	cache[key] = cat.ID
	return cat.ID, nil
}

func (s *InventoryService) categoryIDsByName(ctx context.Context) (map[string]string, error) {
	categories, err := s.categoryRepo.List(ctx, true)
	if err != nil {
		return nil, err
	}

	ids := make(map[string]string, len(categories))
	for _, cat := range categories {
		ids[strings.ToLower(cat.Name)] = cat.ID
	}
	return ids, nil
}

// parseImportSheet reads the first sheet into normalized rows. Row numbers
// in the result are 1-based spreadsheet rows, so the first data row is 2.
func parseImportSheet(r io.Reader) ([]ImportRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.BadRequest("file is not a valid spreadsheet")
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.BadRequest("spreadsheet has no sheets")
	}

	raw, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, errors.BadRequest("failed to read spreadsheet rows")
	}
	if len(raw) < 2 {
		return nil, errors.BadRequest("spreadsheet has no data rows")
	}

	columns := mapHeaders(raw[0])
	if _, ok := columns["name"]; !ok {
		return nil, errors.BadRequest("spreadsheet is missing a name column")
	}

	rows := make([]ImportRow, 0, len(raw)-1)
	for i, cells := range raw[1:] {
		if rowIsEmpty(cells) {
			continue
		}
		rows = append(rows, normalizeRow(i+2, cells, columns))
	}
	return rows, nil
}

func mapHeaders(header []string) map[string]int {
	columns := make(map[string]int)
	for i, cell := range header {
		key := strings.Join(strings.Fields(strings.ToLower(strings.ReplaceAll(cell, "_", " "))), " ")
		if field, ok := importHeaderAliases[key]; ok {
			if _, taken := columns[field]; !taken {
				columns[field] = i
			}
		}
	}
	return columns
}

func normalizeRow(rowNum int, cells []string, columns map[string]int) ImportRow {
	get := func(field string) string {
		idx, ok := columns[field]
		if !ok || idx >= len(cells) {
			return ""
		}
		return strings.TrimSpace(cells[idx])
	}

	row := ImportRow{
		Row:              rowNum,
		Name:             get("name"),
		SKU:              get("sku"),
		Category:         get("category"),
		Unit:             get("unit"),
		Description:      get("description"),
		ReorderLevel:     coerceInt(get("reorder_level")),
		CostPerUnitCents: coerceCents(get("cost_per_unit")),
		CurrentStock:     coerceInt(get("current_stock")),
	}

	if raw := get("expiry_date"); raw != "" {
		for _, layout := range importDateLayouts {
			if d, err := time.Parse(layout, raw); err == nil {
				row.ExpiryDate = &d
				break
			}
		}
	}

	return row
}

func rowIsEmpty(cells []string) bool {
	for _, cell := range cells {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// coerceInt parses an integer cell, defaulting to zero on anything
// unparseable
func coerceInt(raw string) int {
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// coerceCents parses a decimal money cell into integer cents, defaulting to
// zero
func coerceCents(raw string) int {
	if raw == "" {
		return 0
	}
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "$")
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f < 0 {
		return 0
	}
	return int(f*100 + 0.5)
}

func importErrorMessage(err error) string {
	var appErr *errors.AppError
	if errors.As(err, &appErr) {
		if len(appErr.Details) > 0 {
			parts := make([]string, 0, len(appErr.Details))
			for field, msg := range appErr.Details {
				parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
			}
			return strings.Join(parts, "; ")
		}
		return appErr.Message
	}
	return err.Error()
}
