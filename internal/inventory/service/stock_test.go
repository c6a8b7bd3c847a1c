package service

import (
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardflow/wardflow-backend/internal/inventory/repository"
	"github.com/wardflow/wardflow-backend/pkg/database"
	"github.com/wardflow/wardflow-backend/pkg/errors"
	"github.com/wardflow/wardflow-backend/pkg/logger"
	"github.com/wardflow/wardflow-backend/pkg/testutil"
)

const (
	testTenantID = "11111111-1111-1111-1111-111111111111"
	testItemID   = "22222222-2222-2222-2222-222222222222"
	testUserID   = "33333333-3333-3333-3333-333333333333"
)

func newTestService(t *testing.T) (*InventoryService, *testutil.MockDB) {
	t.Helper()

	mockDB := testutil.NewMockDB(t)
	t.Cleanup(func() { mockDB.Close() })

	log := logger.New("hospital-service-test", "test")
	db := database.NewFromSqlx(mockDB.DB, log)

	svc := NewInventoryService(
		db,
		repository.NewItemRepository(db),
		repository.NewCategoryRepository(db),
		repository.NewBatchRepository(db),
		repository.NewTransactionRepository(db),
		repository.NewAlertRepository(db),
		repository.NewUserCacheRepository(db),
		nil, // settings: defaults are fine for these paths
		nil, // publisher: nil is a no-op
		log,
	)
	return svc, mockDB
}

func itemRow(stock int) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "name", "sku", "description", "category_id", "unit",
		"reorder_level", "cost_per_unit_cents", "current_stock", "is_active",
		"created_at", "updated_at",
	}).AddRow(testItemID, "Paracetamol 500mg", "MED-001", "", nil, "box", 10, 450, stock, true, now, now)
}

func batchRows(batches ...*repository.Batch) *sqlmock.Rows {
	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "item_id", "batch_number", "initial_quantity", "current_quantity",
		"unit_cost_cents", "expiry_date", "received_at", "status",
		"created_at", "updated_at",
	})
	for _, b := range batches {
		rows.AddRow(b.ID, testItemID, b.BatchNumber, b.InitialQuantity, b.CurrentQuantity,
			b.UnitCostCents, b.ExpiryDate, now, repository.BatchStatusActive, now, now)
	}
	return rows
}

func TestStockOutInsufficientStock(t *testing.T) {
	svc, mockDB := newTestService(t)
	ctx := testutil.TenantContext(testTenantID)

	mockDB.ExpectTenantBegin(testTenantID)
	mockDB.Mock.ExpectQuery(`SELECT (.+) FROM inventory_items WHERE id = \$1`).
		WillReturnRows(itemRow(5))
	mockDB.Mock.ExpectQuery(`SELECT (.+) FROM item_batches (.+) FOR UPDATE`).
		WillReturnRows(batchRows(&repository.Batch{
			ID:              "b1",
			BatchNumber:     "BN-1",
			InitialQuantity: 5,
			CurrentQuantity: 5,
			ExpiryDate:      time.Now().AddDate(0, 6, 0),
		}))
	mockDB.ExpectRollback()

	_, err := svc.StockOut(ctx, StockOutInput{ItemID: testItemID, Quantity: 6}, testUserID)
	require.Error(t, err)

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "INSUFFICIENT_STOCK", appErr.Code)
	assert.Equal(t, "Insufficient stock. Available: 5", appErr.Message)

	mockDB.ExpectationsWereMet(t)
}

func TestStockOutSplitsAcrossBatchesFEFO(t *testing.T) {
	svc, mockDB := newTestService(t)
	ctx := testutil.TenantContext(testTenantID)

	soon := &repository.Batch{
		ID: "b-soon", BatchNumber: "BN-1", InitialQuantity: 3, CurrentQuantity: 3,
		ExpiryDate: time.Now().AddDate(0, 0, 10),
	}
	later := &repository.Batch{
		ID: "b-later", BatchNumber: "BN-2", InitialQuantity: 10, CurrentQuantity: 10,
		ExpiryDate: time.Now().AddDate(0, 6, 0),
	}

	mockDB.ExpectTenantBegin(testTenantID)
	mockDB.Mock.ExpectQuery(`SELECT (.+) FROM inventory_items WHERE id = \$1`).
		WillReturnRows(itemRow(13))
	mockDB.Mock.ExpectQuery(`SELECT (.+) FROM item_batches (.+) FOR UPDATE`).
		WillReturnRows(batchRows(soon, later))
	mockDB.Mock.ExpectQuery(`SELECT (.+) FROM cached_users WHERE id = \$1`).
		WillReturnError(sql.ErrNoRows)

	// First allocation drains the soonest batch completely
	mockDB.Mock.ExpectExec(`UPDATE item_batches SET current_quantity = \$2, status = \$3`).
		WithArgs("b-soon", 0, repository.BatchStatusDepleted).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.Mock.ExpectQuery(`UPDATE inventory_items SET current_stock = current_stock \+ \$2`).
		WillReturnRows(sqlmock.NewRows([]string{"current_stock"}).AddRow(10))
	mockDB.Mock.ExpectQuery(`INSERT INTO stock_transactions`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	// Second allocation takes the remainder from the later batch
	mockDB.Mock.ExpectExec(`UPDATE item_batches SET current_quantity = \$2, status = \$3`).
		WithArgs("b-later", 6, repository.BatchStatusActive).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.Mock.ExpectQuery(`UPDATE inventory_items SET current_stock = current_stock \+ \$2`).
		WillReturnRows(sqlmock.NewRows([]string{"current_stock"}).AddRow(6))
	mockDB.Mock.ExpectQuery(`INSERT INTO stock_transactions`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	mockDB.ExpectCommit()

	result, err := svc.StockOut(ctx, StockOutInput{ItemID: testItemID, Quantity: 7, Reason: "ward 3"}, testUserID)
	require.NoError(t, err)

	require.Len(t, result.Allocations, 2)
	assert.Equal(t, "b-soon", result.Allocations[0].Batch.ID)
	assert.Equal(t, 3, result.Allocations[0].Quantity)
	assert.Equal(t, "b-later", result.Allocations[1].Batch.ID)
	assert.Equal(t, 4, result.Allocations[1].Quantity)

	require.Len(t, result.Entries, 2)
	assert.Equal(t, -3, result.Entries[0].Quantity)
	assert.Equal(t, -4, result.Entries[1].Quantity)
	assert.Equal(t, 6, result.Item.CurrentStock)

	mockDB.ExpectationsWereMet(t)
}

func TestStockOutConsumesBatchExpiringToday(t *testing.T) {
	svc, mockDB := newTestService(t)
	ctx := testutil.TenantContext(testTenantID)

	y, m, d := time.Now().UTC().Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	mockDB.ExpectTenantBegin(testTenantID)
	mockDB.Mock.ExpectQuery(`SELECT (.+) FROM inventory_items WHERE id = \$1`).
		WillReturnRows(itemRow(3))
	// The expiry cutoff binds against a DATE column; it must arrive at date
	// precision or a batch expiring today fails midnight >= now and the draw
	// reports insufficient stock.
	mockDB.Mock.ExpectQuery(`SELECT (.+) FROM item_batches (.+) FOR UPDATE`).
		WithArgs(testItemID, testutil.MidnightUTC{}).
		WillReturnRows(batchRows(&repository.Batch{
			ID:              "b-today",
			BatchNumber:     "BN-1",
			InitialQuantity: 3,
			CurrentQuantity: 3,
			ExpiryDate:      today,
		}))
	mockDB.Mock.ExpectQuery(`SELECT (.+) FROM cached_users WHERE id = \$1`).
		WillReturnError(sql.ErrNoRows)
	mockDB.Mock.ExpectExec(`UPDATE item_batches SET current_quantity = \$2, status = \$3`).
		WithArgs("b-today", 0, repository.BatchStatusDepleted).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.Mock.ExpectQuery(`UPDATE inventory_items SET current_stock = current_stock \+ \$2`).
		WillReturnRows(sqlmock.NewRows([]string{"current_stock"}).AddRow(0))
	mockDB.Mock.ExpectQuery(`INSERT INTO stock_transactions`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	mockDB.ExpectCommit()

	result, err := svc.StockOut(ctx, StockOutInput{ItemID: testItemID, Quantity: 3}, testUserID)
	require.NoError(t, err)

	require.Len(t, result.Allocations, 1)
	assert.Equal(t, "b-today", result.Allocations[0].Batch.ID)
	assert.Equal(t, 3, result.Allocations[0].Quantity)
	assert.Equal(t, 0, result.Item.CurrentStock)

	mockDB.ExpectationsWereMet(t)
}

func TestStockOutRejectsNonPositiveQuantity(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := testutil.TenantContext(testTenantID)

	_, err := svc.StockOut(ctx, StockOutInput{ItemID: testItemID, Quantity: 0}, testUserID)
	require.Error(t, err)

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
}

func TestStockInValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := testutil.TenantContext(testTenantID)

	tests := []struct {
		name  string
		input StockInInput
	}{
		{
			name:  "zero quantity",
			input: StockInInput{ItemID: testItemID, Quantity: 0, BatchNumber: "B1", ExpiryDate: time.Now().AddDate(0, 1, 0)},
		},
		{
			name:  "empty batch number",
			input: StockInInput{ItemID: testItemID, Quantity: 10, BatchNumber: "", ExpiryDate: time.Now().AddDate(0, 1, 0)},
		},
		{
			name:  "expiry today",
			input: StockInInput{ItemID: testItemID, Quantity: 10, BatchNumber: "B1", ExpiryDate: time.Now()},
		},
		{
			name:  "expiry in the past",
			input: StockInInput{ItemID: testItemID, Quantity: 10, BatchNumber: "B1", ExpiryDate: time.Now().AddDate(0, 0, -1)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.StockIn(ctx, tt.input, testUserID)
			require.Error(t, err)

			var appErr *errors.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
		})
	}
}

func TestStockInCreatesBatchLedgerAndStock(t *testing.T) {
	svc, mockDB := newTestService(t)
	ctx := testutil.TenantContext(testTenantID)

	mockDB.ExpectTenantBegin(testTenantID)
	mockDB.Mock.ExpectQuery(`SELECT (.+) FROM inventory_items WHERE id = \$1`).
		WillReturnRows(itemRow(5))
	mockDB.Mock.ExpectQuery(`INSERT INTO item_batches`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(time.Now(), time.Now()))
	mockDB.Mock.ExpectQuery(`UPDATE inventory_items SET current_stock = current_stock \+ \$2`).
		WillReturnRows(sqlmock.NewRows([]string{"current_stock"}).AddRow(15))
	mockDB.Mock.ExpectQuery(`SELECT (.+) FROM cached_users WHERE id = \$1`).
		WillReturnError(sql.ErrNoRows)
	mockDB.Mock.ExpectQuery(`INSERT INTO stock_transactions`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	mockDB.ExpectCommit()

	result, err := svc.StockIn(ctx, StockInInput{
		ItemID:      testItemID,
		Quantity:    10,
		BatchNumber: "BN-2025-07",
		ExpiryDate:  time.Now().AddDate(1, 0, 0),
	}, testUserID)
	require.NoError(t, err)

	assert.Equal(t, 15, result.Item.CurrentStock)
	require.NotNil(t, result.Batch)
	assert.Equal(t, "BN-2025-07", result.Batch.BatchNumber)
	require.Len(t, result.Entries, 1)
	assert.Equal(t, repository.TransactionIn, result.Entries[0].Type)
	assert.Equal(t, 10, result.Entries[0].Quantity)
	assert.Equal(t, 15, result.Entries[0].ResultingStock)

	mockDB.ExpectationsWereMet(t)
}
