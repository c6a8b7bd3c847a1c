package service

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func buildImportSheet(t *testing.T, rows [][]interface{}) *bytes.Buffer {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestParseImportSheet(t *testing.T) {
	buf := buildImportSheet(t, [][]interface{}{
		{"Item Name", "SKU", "Category", "Unit", "Min Stock", "Unit Cost", "Qty", "Expiry Date", "Notes"},
		{"Paracetamol 500mg", "MED-001", "Analgesics", "box", "25", "4.50", "100", "2027-03-01", "shelf A"},
		{"Surgical Gloves", "", "Consumables", "pair", "", "", "", "", ""},
	})

	rows, err := parseImportSheet(buf)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	first := rows[0]
	assert.Equal(t, 2, first.Row)
	assert.Equal(t, "Paracetamol 500mg", first.Name)
	assert.Equal(t, "MED-001", first.SKU)
	assert.Equal(t, "Analgesics", first.Category)
	assert.Equal(t, "box", first.Unit)
	assert.Equal(t, 25, first.ReorderLevel)
	assert.Equal(t, 450, first.CostPerUnitCents)
	assert.Equal(t, 100, first.CurrentStock)
	assert.Equal(t, "shelf A", first.Description)
	require.NotNil(t, first.ExpiryDate)
	assert.Equal(t, "2027-03-01", first.ExpiryDate.Format("2006-01-02"))

	// A sparse row falls back to zero-value defaults
	second := rows[1]
	assert.Equal(t, 3, second.Row)
	assert.Equal(t, "Surgical Gloves", second.Name)
	assert.Equal(t, "", second.SKU)
	assert.Equal(t, 0, second.ReorderLevel)
	assert.Equal(t, 0, second.CostPerUnitCents)
	assert.Equal(t, 0, second.CurrentStock)
	assert.Nil(t, second.ExpiryDate)
}

func TestParseImportSheetSkipsEmptyRows(t *testing.T) {
	buf := buildImportSheet(t, [][]interface{}{
		{"name", "unit"},
		{"", ""},
		{"Gauze", "roll"},
	})

	rows, err := parseImportSheet(buf)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Gauze", rows[0].Name)
	assert.Equal(t, 3, rows[0].Row)
}

func TestParseImportSheetMissingNameColumn(t *testing.T) {
	buf := buildImportSheet(t, [][]interface{}{
		{"sku", "unit"},
		{"X-1", "box"},
	})

	_, err := parseImportSheet(buf)
	assert.Error(t, err)
}

func TestParseImportSheetRejectsGarbage(t *testing.T) {
	_, err := parseImportSheet(bytes.NewBufferString("not a spreadsheet"))
	assert.Error(t, err)
}

func TestMapHeaders(t *testing.T) {
	columns := mapHeaders([]string{"Item_Name", "CODE", "uom", "Reorder Level", "price", "initial stock", "ignored"})

	assert.Equal(t, 0, columns["name"])
	assert.Equal(t, 1, columns["sku"])
	assert.Equal(t, 2, columns["unit"])
	assert.Equal(t, 3, columns["reorder_level"])
	assert.Equal(t, 4, columns["cost_per_unit"])
	assert.Equal(t, 5, columns["current_stock"])
	_, ok := columns["ignored"]
	assert.False(t, ok)
}

func TestCoerceInt(t *testing.T) {
	assert.Equal(t, 42, coerceInt("42"))
	assert.Equal(t, 0, coerceInt(""))
	assert.Equal(t, 0, coerceInt("lots"))
	assert.Equal(t, 0, coerceInt("-5"))
}

func TestCoerceCents(t *testing.T) {
	assert.Equal(t, 450, coerceCents("4.50"))
	assert.Equal(t, 450, coerceCents("$4.50"))
	assert.Equal(t, 1000, coerceCents("10"))
	assert.Equal(t, 0, coerceCents(""))
	assert.Equal(t, 0, coerceCents("free"))
	assert.Equal(t, 0, coerceCents("-2"))
}
