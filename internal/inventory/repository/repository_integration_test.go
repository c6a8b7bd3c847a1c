package repository_test

import (
	"context"
	"flag"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardflow/wardflow-backend/internal/inventory/repository"
	"github.com/wardflow/wardflow-backend/pkg/errors"
	"github.com/wardflow/wardflow-backend/pkg/testutil"
)

var suite *testutil.IntegrationSuite

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(0)
	}

	ctx := context.Background()

	var err error
	suite, err = testutil.NewIntegrationSuite(ctx)
	if err != nil {
		log.Fatalf("failed to create integration suite: %v", err)
	}
	defer testutil.TerminateContainer(ctx)

	os.Exit(m.Run())
}

func createTestItem(t *testing.T, ctx context.Context, repo *repository.ItemRepository) *repository.Item {
	t.Helper()

	fixture := suite.Fixtures.Item()
	item := &repository.Item{
		Name:             fixture.Name,
		SKU:              fixture.SKU,
		Description:      fixture.Description,
		Unit:             fixture.Unit,
		ReorderLevel:     fixture.ReorderLevel,
		CostPerUnitCents: fixture.CostCents,
		IsActive:         true,
	}
	require.NoError(t, repo.Create(ctx, item))
	return item
}

func TestItemRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	tenant := suite.SetupTenant(t, ctx, "item-create")
	tenantCtx := suite.TenantContext(tenant)

	repo := repository.NewItemRepository(suite.DB)
	item := createTestItem(t, tenantCtx, repo)

	assert.NotEmpty(t, item.ID)
	assert.False(t, item.CreatedAt.IsZero())

	got, err := repo.GetByID(tenantCtx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, item.Name, got.Name)
	assert.Equal(t, 0, got.CurrentStock)
	assert.True(t, got.IsActive)
}

func TestItemRepository_GetMissingReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	tenant := suite.SetupTenant(t, ctx, "item-missing")
	tenantCtx := suite.TenantContext(tenant)

	repo := repository.NewItemRepository(suite.DB)

	_, err := repo.GetByID(tenantCtx, "00000000-0000-0000-0000-000000000000")
	require.Error(t, err)

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "NOT_FOUND", appErr.Code)
}

func TestItemRepository_AdjustCachedStock(t *testing.T) {
	ctx := context.Background()
	tenant := suite.SetupTenant(t, ctx, "item-stock")
	tenantCtx := suite.TenantContext(tenant)

	repo := repository.NewItemRepository(suite.DB)
	item := createTestItem(t, tenantCtx, repo)

	stock, err := repo.AdjustCachedStock(tenantCtx, item.ID, 20)
	require.NoError(t, err)
	assert.Equal(t, 20, stock)

	stock, err = repo.AdjustCachedStock(tenantCtx, item.ID, -7)
	require.NoError(t, err)
	assert.Equal(t, 13, stock)

	// The check constraint refuses to go below zero
	_, err = repo.AdjustCachedStock(tenantCtx, item.ID, -100)
	require.Error(t, err)
}

func TestItemRepository_SetActiveFlipsOnce(t *testing.T) {
	ctx := context.Background()
	tenant := suite.SetupTenant(t, ctx, "item-archive")
	tenantCtx := suite.TenantContext(tenant)

	repo := repository.NewItemRepository(suite.DB)
	item := createTestItem(t, tenantCtx, repo)

	require.NoError(t, repo.SetActive(tenantCtx, item.ID, false))

	// Archiving twice is a no-op the repository reports as not found
	err := repo.SetActive(tenantCtx, item.ID, false)
	require.Error(t, err)

	require.NoError(t, repo.SetActive(tenantCtx, item.ID, true))
}

func TestBatchRepository_ListConsumableOrdering(t *testing.T) {
	ctx := context.Background()
	tenant := suite.SetupTenant(t, ctx, "batch-fefo")
	tenantCtx := suite.TenantContext(tenant)

	itemRepo := repository.NewItemRepository(suite.DB)
	batchRepo := repository.NewBatchRepository(suite.DB)
	item := createTestItem(t, tenantCtx, itemRepo)

	mkBatch := func(number string, qty, expiresInDays int) *repository.Batch {
		b := &repository.Batch{
			ItemID:          item.ID,
			BatchNumber:     number,
			InitialQuantity: qty,
			CurrentQuantity: qty,
			ExpiryDate:      time.Now().UTC().AddDate(0, 0, expiresInDays),
		}
		require.NoError(t, batchRepo.Create(tenantCtx, b))
		return b
	}

	mkBatch("LATER", 10, 60)
	mkBatch("SOON", 5, 5)
	depleted := mkBatch("DEPLETED", 4, 30)
	expired := mkBatch("STALE", 8, 30)

	require.NoError(t, batchRepo.UpdateQuantity(tenantCtx, depleted.ID, 0, repository.BatchStatusDepleted))
	marked, err := batchRepo.MarkExpired(tenantCtx, expired.ID)
	require.NoError(t, err)
	require.True(t, marked)

	batches, err := batchRepo.ListConsumableForUpdate(tenantCtx, item.ID, time.Now())
	require.NoError(t, err)

	// Only the two active batches with stock, soonest expiry first
	require.Len(t, batches, 2)
	assert.Equal(t, "SOON", batches[0].BatchNumber)
	assert.Equal(t, "LATER", batches[1].BatchNumber)
}

func TestBatchRepository_MarkExpiredIsOneWay(t *testing.T) {
	ctx := context.Background()
	tenant := suite.SetupTenant(t, ctx, "batch-expire")
	tenantCtx := suite.TenantContext(tenant)

	itemRepo := repository.NewItemRepository(suite.DB)
	batchRepo := repository.NewBatchRepository(suite.DB)
	item := createTestItem(t, tenantCtx, itemRepo)

	batch := &repository.Batch{
		ItemID:          item.ID,
		BatchNumber:     "EXP-1",
		InitialQuantity: 10,
		CurrentQuantity: 10,
		ExpiryDate:      time.Now().UTC().AddDate(0, 1, 0),
	}
	require.NoError(t, batchRepo.Create(tenantCtx, batch))

	marked, err := batchRepo.MarkExpired(tenantCtx, batch.ID)
	require.NoError(t, err)
	assert.True(t, marked)

	// Second mark finds no eligible row
	marked, err = batchRepo.MarkExpired(tenantCtx, batch.ID)
	require.NoError(t, err)
	assert.False(t, marked)

	// The batch keeps its quantity for audit
	got, err := batchRepo.GetByID(tenantCtx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.BatchStatusExpired, got.Status)
	assert.Equal(t, 10, got.CurrentQuantity)
}

func TestBatchRepository_DuplicateBatchNumberConflicts(t *testing.T) {
	ctx := context.Background()
	tenant := suite.SetupTenant(t, ctx, "batch-dup")
	tenantCtx := suite.TenantContext(tenant)

	itemRepo := repository.NewItemRepository(suite.DB)
	batchRepo := repository.NewBatchRepository(suite.DB)
	item := createTestItem(t, tenantCtx, itemRepo)

	first := &repository.Batch{
		ItemID: item.ID, BatchNumber: "BN-1",
		InitialQuantity: 5, CurrentQuantity: 5,
		ExpiryDate: time.Now().UTC().AddDate(0, 1, 0),
	}
	require.NoError(t, batchRepo.Create(tenantCtx, first))

	dup := &repository.Batch{
		ItemID: item.ID, BatchNumber: "BN-1",
		InitialQuantity: 3, CurrentQuantity: 3,
		ExpiryDate: time.Now().UTC().AddDate(0, 2, 0),
	}
	err := batchRepo.Create(tenantCtx, dup)
	require.Error(t, err)

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "CONFLICT", appErr.Code)
}

func TestTransactionRepository_ListJoinsBatchDetail(t *testing.T) {
	ctx := context.Background()
	tenant := suite.SetupTenant(t, ctx, "ledger-joins")
	tenantCtx := suite.TenantContext(tenant)

	itemRepo := repository.NewItemRepository(suite.DB)
	batchRepo := repository.NewBatchRepository(suite.DB)
	txRepo := repository.NewTransactionRepository(suite.DB)
	item := createTestItem(t, tenantCtx, itemRepo)

	batch := &repository.Batch{
		ItemID: item.ID, BatchNumber: "BN-42",
		InitialQuantity: 10, CurrentQuantity: 10,
		ExpiryDate: time.Now().UTC().AddDate(0, 3, 0),
	}
	require.NoError(t, batchRepo.Create(tenantCtx, batch))

	entry := &repository.StockTransaction{
		ItemID:          item.ID,
		BatchID:         &batch.ID,
		Type:            repository.TransactionIn,
		Quantity:        10,
		ResultingStock:  10,
		PerformedBy:     "tester",
		PerformedByName: "Test User",
		Reason:          "delivery",
	}
	require.NoError(t, txRepo.Create(tenantCtx, entry))
	assert.False(t, entry.CreatedAt.IsZero())

	entries, total, err := txRepo.List(tenantCtx, 1, 20, repository.TransactionFilter{ItemID: item.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, entries, 1)

	got := entries[0]
	assert.Equal(t, item.Name, got.ItemName)
	require.NotNil(t, got.BatchNumber)
	assert.Equal(t, "BN-42", *got.BatchNumber)
	require.NotNil(t, got.BatchExpiry)
}

func TestCategoryRepository_ItemCount(t *testing.T) {
	ctx := context.Background()
	tenant := suite.SetupTenant(t, ctx, "category-count")
	tenantCtx := suite.TenantContext(tenant)

	itemRepo := repository.NewItemRepository(suite.DB)
	categoryRepo := repository.NewCategoryRepository(suite.DB)

	category := &repository.Category{Name: "Analgesics", IsActive: true}
	require.NoError(t, categoryRepo.Create(tenantCtx, category))

	for i := 0; i < 2; i++ {
		fixture := suite.Fixtures.Item()
		item := &repository.Item{
			Name:       fixture.Name,
			SKU:        fixture.SKU,
			Unit:       fixture.Unit,
			CategoryID: &category.ID,
			IsActive:   true,
		}
		require.NoError(t, itemRepo.Create(tenantCtx, item))
	}

	categories, err := categoryRepo.List(tenantCtx, false)
	require.NoError(t, err)
	require.Len(t, categories, 1)
	assert.Equal(t, 2, categories[0].ItemCount)
}

func TestAlertRepository_DedupAndAcknowledge(t *testing.T) {
	ctx := context.Background()
	tenant := suite.SetupTenant(t, ctx, "alert-flow")
	tenantCtx := suite.TenantContext(tenant)

	itemRepo := repository.NewItemRepository(suite.DB)
	alertRepo := repository.NewAlertRepository(suite.DB)
	item := createTestItem(t, tenantCtx, itemRepo)

	alert := &repository.InventoryAlert{
		AlertType: repository.AlertLowStock,
		Severity:  "warning",
		Message:   item.Name + " is low on stock",
		ItemID:    item.ID,
		ItemName:  item.Name,
	}
	require.NoError(t, alertRepo.Create(tenantCtx, alert))

	open, err := alertRepo.HasOpenAlert(tenantCtx, repository.AlertLowStock, item.ID, "")
	require.NoError(t, err)
	assert.True(t, open)

	count, err := alertRepo.UnacknowledgedCount(tenantCtx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	require.NoError(t, alertRepo.Acknowledge(tenantCtx, alert.ID, "tester"))

	open, err = alertRepo.HasOpenAlert(tenantCtx, repository.AlertLowStock, item.ID, "")
	require.NoError(t, err)
	assert.False(t, open)

	// Acknowledging twice reports not found
	err = alertRepo.Acknowledge(tenantCtx, alert.ID, "tester")
	require.Error(t, err)
}
