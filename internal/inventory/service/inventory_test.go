package service

import (
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardflow/wardflow-backend/pkg/config"
	"github.com/wardflow/wardflow-backend/pkg/errors"
	"github.com/wardflow/wardflow-backend/pkg/testutil"
)

func TestCreateItemWithOpeningStockIsAtomic(t *testing.T) {
	svc, mockDB := newTestService(t)
	ctx := testutil.TenantContext(testTenantID)

	now := time.Now()
	expiry := now.AddDate(1, 0, 0)

	// Item, opening batch and IN ledger entry all inside one transaction
	mockDB.ExpectTenantBegin(testTenantID)
	mockDB.Mock.ExpectQuery(`INSERT INTO inventory_items`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mockDB.Mock.ExpectQuery(`INSERT INTO item_batches`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mockDB.Mock.ExpectQuery(`UPDATE inventory_items SET current_stock = current_stock \+ \$2`).
		WillReturnRows(sqlmock.NewRows([]string{"current_stock"}).AddRow(20))
	mockDB.Mock.ExpectQuery(`SELECT (.+) FROM cached_users WHERE id = \$1`).
		WillReturnError(sql.ErrNoRows)
	mockDB.Mock.ExpectQuery(`INSERT INTO stock_transactions`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))
	mockDB.ExpectCommit()

	// Enrichment reads run after the commit
	mockDB.ExpectTenantBegin(testTenantID)
	mockDB.Mock.ExpectQuery(`SELECT item_id, MIN\(expiry_date\) AS expiry`).
		WillReturnRows(sqlmock.NewRows([]string{"item_id", "expiry"}))
	mockDB.ExpectCommit()

	item, err := svc.CreateItem(ctx, CreateItemInput{
		Name:         "Amoxicillin 250mg",
		SKU:          "MED-014",
		Unit:         "box",
		ReorderLevel: 5,
		InitialStock: 20,
		ExpiryDate:   &expiry,
	}, testUserID)
	require.NoError(t, err)

	assert.NotEmpty(t, item.ID)
	assert.Equal(t, 20, item.CurrentStock)
	assert.True(t, item.IsActive)
	assert.Equal(t, StockStatusInStock, item.StockStatus)

	mockDB.ExpectationsWereMet(t)
}

func TestCreateItemRollsBackWhenOpeningBatchFails(t *testing.T) {
	svc, mockDB := newTestService(t)
	ctx := testutil.TenantContext(testTenantID)

	now := time.Now()
	expiry := now.AddDate(1, 0, 0)

	mockDB.ExpectTenantBegin(testTenantID)
	mockDB.Mock.ExpectQuery(`INSERT INTO inventory_items`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mockDB.Mock.ExpectQuery(`INSERT INTO item_batches`).
		WillReturnError(fmt.Errorf("connection reset"))
	mockDB.ExpectRollback()

	_, err := svc.CreateItem(ctx, CreateItemInput{
		Name:         "Amoxicillin 250mg",
		Unit:         "box",
		InitialStock: 20,
		ExpiryDate:   &expiry,
	}, testUserID)
	require.Error(t, err)

	// No stock bump and no ledger write happened past the failure
	mockDB.ExpectationsWereMet(t)
}

func TestCreateItemOpeningStockValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := testutil.TenantContext(testTenantID)

	past := time.Now().AddDate(0, 0, -1)

	tests := []struct {
		name     string
		input    CreateItemInput
		wantCode string
	}{
		{
			name:     "negative initial stock",
			input:    CreateItemInput{Name: "X", InitialStock: -1},
			wantCode: "BAD_REQUEST",
		},
		{
			name:     "initial stock without expiry date",
			input:    CreateItemInput{Name: "X", InitialStock: 5},
			wantCode: "VALIDATION_ERROR",
		},
		{
			name:     "initial stock with past expiry",
			input:    CreateItemInput{Name: "X", InitialStock: 5, ExpiryDate: &past},
			wantCode: "VALIDATION_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateItem(ctx, tt.input, testUserID)
			require.Error(t, err)

			var appErr *errors.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, tt.wantCode, appErr.Code)
		})
	}
}

func TestConfigureAppliesPolicyDefaults(t *testing.T) {
	svc, _ := newTestService(t)

	svc.Configure(&config.InventoryConfig{
		ExpirySoonDays:  14,
		ExpiryLaterDays: 45,
		ImportPreview:   2,
	})

	windows := svc.policyWindows()
	assert.Equal(t, 14, windows.SoonDays)
	assert.Equal(t, 45, windows.LaterDays)
	assert.Equal(t, 2, svc.previewRowLimit())

	// Invalid values keep the previous policy
	svc.Configure(&config.InventoryConfig{ExpirySoonDays: 60, ExpiryLaterDays: 30, ImportPreview: -1})
	windows = svc.policyWindows()
	assert.Equal(t, 14, windows.SoonDays)
	assert.Equal(t, 2, svc.previewRowLimit())
}

func TestImportPreviewHonorsConfiguredLimit(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := testutil.TenantContext(testTenantID)

	svc.Configure(&config.InventoryConfig{ImportPreview: 2})

	buf := buildImportSheet(t, [][]interface{}{
		{"Name", "Unit"},
		{"Item A", "box"},
		{"Item B", "box"},
		{"Item C", "box"},
		{"Item D", "box"},
	})

	report, err := svc.ImportItems(ctx, buf, "stock.xlsx", true, testUserID)
	require.NoError(t, err)

	assert.Equal(t, 4, report.TotalRows)
	require.Len(t, report.Preview, 2)
	assert.Equal(t, "Item A", report.Preview[0].Name)
	assert.Equal(t, "Item B", report.Preview[1].Name)
}
