package service

import (
	"context"
	"time"

	"github.com/wardflow/wardflow-backend/internal/inventory/events"
	"github.com/wardflow/wardflow-backend/internal/inventory/repository"
	settingsrepo "github.com/wardflow/wardflow-backend/internal/settings/repository"
	"github.com/wardflow/wardflow-backend/pkg/config"
	"github.com/wardflow/wardflow-backend/pkg/database"
	"github.com/wardflow/wardflow-backend/pkg/errors"
	"github.com/wardflow/wardflow-backend/pkg/logger"
	"github.com/wardflow/wardflow-backend/pkg/messaging"
	"github.com/wardflow/wardflow-backend/pkg/tenant"
)

// Stock status buckets derived from current stock vs reorder level.
const (
	StockStatusInStock    = "in_stock"
	StockStatusLowStock   = "low_stock"
	StockStatusOutOfStock = "out_of_stock"
)

// Fallback batch number for opening stock created together with an item
const openingBatchNumber = "OPENING"

// InventoryService handles inventory business logic
type InventoryService struct {
	db           *database.DB
	itemRepo     *repository.ItemRepository
	categoryRepo *repository.CategoryRepository
	batchRepo    *repository.BatchRepository
	txRepo       *repository.TransactionRepository
	alertRepo    *repository.AlertRepository
	userCache    *repository.UserCacheRepository
	settingsRepo *settingsrepo.SettingsRepository
	publisher    *events.InventoryEventPublisher
	logger       *logger.Logger

	// Deployment-level policy defaults; per-tenant settings still win.
	defaultWindows ExpiryWindows
	previewRows    int
}

// NewInventoryService creates a new inventory service
func NewInventoryService(
	db *database.DB,
	itemRepo *repository.ItemRepository,
	categoryRepo *repository.CategoryRepository,
	batchRepo *repository.BatchRepository,
	txRepo *repository.TransactionRepository,
	alertRepo *repository.AlertRepository,
	userCache *repository.UserCacheRepository,
	settingsRepo *settingsrepo.SettingsRepository,
	publisher *events.InventoryEventPublisher,
	log *logger.Logger,
) *InventoryService {
	return &InventoryService{
		db:           db,
		itemRepo:     itemRepo,
		categoryRepo: categoryRepo,
		batchRepo:    batchRepo,
		txRepo:       txRepo,
		alertRepo:    alertRepo,
		userCache:    userCache,
		settingsRepo: settingsRepo,
		publisher:    publisher,
		logger:       log,
	}
}

// Configure applies inventory policy from configuration. Invalid or zero
// values keep the built-in defaults.
func (s *InventoryService) Configure(cfg *config.InventoryConfig) {
	if cfg == nil {
		return
	}
	if cfg.ExpirySoonDays > 0 && cfg.ExpiryLaterDays >= cfg.ExpirySoonDays {
		s.defaultWindows = ExpiryWindows{SoonDays: cfg.ExpirySoonDays, LaterDays: cfg.ExpiryLaterDays}
	}
	if cfg.ImportPreview > 0 {
		s.previewRows = cfg.ImportPreview
	}
}

// CreateItemInput carries everything needed to create an item, optionally
// with opening stock
type CreateItemInput struct {
	Name             string
	SKU              string
	Description      string
	Unit             string
	CategoryID       *string
	ReorderLevel     int
	CostPerUnitCents int

	// Opening stock. When InitialStock > 0 an opening batch and an IN
	// ledger entry are created in the same transaction as the item.
	InitialStock int
	BatchNumber  string
	ExpiryDate   *time.Time
}

// ItemWithBatches is an item enriched with its batches for detail views
type ItemWithBatches struct {
	*repository.Item
	Batches []*repository.Batch `json:"batches"`
}

// CreateItem creates an item. If input.InitialStock > 0 the item, its opening
// batch and the IN ledger entry commit atomically; a failure of any step
// leaves nothing behind.
func (s *InventoryService) CreateItem(ctx context.Context, input CreateItemInput, performedBy string) (*repository.Item, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	if input.InitialStock < 0 {
		return nil, errors.BadRequest("initial_stock cannot be negative")
	}
	if input.InitialStock > 0 {
		if input.ExpiryDate == nil {
			return nil, errors.Validation(map[string]string{"expiry_date": "expiry_date is required when initial_stock is set"})
		}
		if DaysUntilExpiry(time.Now(), *input.ExpiryDate) <= 0 {
			return nil, errors.Validation(map[string]string{"expiry_date": "expiry_date must be after today"})
		}
	}

	item := &repository.Item{
		Name:             input.Name,
		SKU:              input.SKU,
		Description:      input.Description,
		Unit:             input.Unit,
		CategoryID:       input.CategoryID,
		ReorderLevel:     input.ReorderLevel,
		CostPerUnitCents: input.CostPerUnitCents,
		IsActive:         true,
	}

	var batch *repository.Batch
	err = s.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		if err := s.itemRepo.Create(ctx, item); err != nil {
			return err
		}

		if input.InitialStock == 0 {
			return nil
		}

		batchNumber := input.BatchNumber
		if batchNumber == "" {
			batchNumber = openingBatchNumber
		}

		batch = &repository.Batch{
			ItemID:          item.ID,
			BatchNumber:     batchNumber,
			InitialQuantity: input.InitialStock,
			CurrentQuantity: input.InitialStock,
			UnitCostCents:   input.CostPerUnitCents,
			ExpiryDate:      *input.ExpiryDate,
		}
		if err := s.batchRepo.Create(ctx, batch); err != nil {
			return err
		}

		newStock, err := s.itemRepo.AdjustCachedStock(ctx, item.ID, input.InitialStock)
		if err != nil {
			return err
		}
		item.CurrentStock = newStock

		entry := &repository.StockTransaction{
			ItemID:          item.ID,
			BatchID:         &batch.ID,
			Type:            repository.TransactionIn,
			Quantity:        input.InitialStock,
			ResultingStock:  newStock,
			PerformedBy:     performedBy,
			PerformedByName: s.performerName(ctx, performedBy),
			Reason:          "opening stock",
		}
		return s.txRepo.Create(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	if batch != nil {
		s.publisher.PublishStockIn(ctx, messaging.StockMovementEvent{
			ItemID:   item.ID,
			ItemName: item.Name,
			Quantity: input.InitialStock,
			Allocations: []messaging.BatchAllocation{
				{BatchID: batch.ID, BatchNumber: batch.BatchNumber, Quantity: input.InitialStock},
			},
			PerformedBy: performedBy,
			Notes:       "opening stock",
		})
	}

	s.enrichItems(ctx, []*repository.Item{item})
	return item, nil
}

// GetItem returns an item with its batches in ascending expiry order
func (s *InventoryService) GetItem(ctx context.Context, id string) (*ItemWithBatches, error) {
	item, err := s.itemRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	batches, err := s.batchRepo.ListByItem(ctx, id)
	if err != nil {
		return nil, err
	}

	s.enrichItems(ctx, []*repository.Item{item})
	return &ItemWithBatches{Item: item, Batches: batches}, nil
}

// ListItems lists items with batch-derived enrichment
func (s *InventoryService) ListItems(ctx context.Context, page, perPage int, filter repository.ItemFilter) ([]*repository.Item, int64, error) {
	items, total, err := s.itemRepo.List(ctx, page, perPage, filter)
	if err != nil {
		return nil, 0, err
	}

	s.enrichItems(ctx, items)
	return items, total, nil
}

// UpdateItem updates an item's descriptive fields. Stock levels only change
// through stock operations.
func (s *InventoryService) UpdateItem(ctx context.Context, item *repository.Item) (*repository.Item, error) {
	if err := s.itemRepo.Update(ctx, item); err != nil {
		return nil, err
	}

	updated, err := s.itemRepo.GetByID(ctx, item.ID)
	if err != nil {
		return nil, err
	}

	s.enrichItems(ctx, []*repository.Item{updated})
	return updated, nil
}

// ArchiveItem soft-archives an item; its batches and ledger remain
func (s *InventoryService) ArchiveItem(ctx context.Context, id string) error {
	return s.itemRepo.SetActive(ctx, id, false)
}

// RestoreItem reverses a soft archive
func (s *InventoryService) RestoreItem(ctx context.Context, id string) error {
	return s.itemRepo.SetActive(ctx, id, true)
}

// SearchMedications searches active items by name or SKU for autocomplete
func (s *InventoryService) SearchMedications(ctx context.Context, q string, limit int) ([]*repository.Item, error) {
	items, err := s.itemRepo.Search(ctx, q, limit)
	if err != nil {
		return nil, err
	}

	s.enrichItems(ctx, items)
	return items, nil
}

// Category operations

// CreateCategory creates a new category
func (s *InventoryService) CreateCategory(ctx context.Context, cat *repository.Category) error {
	cat.IsActive = true
	return s.categoryRepo.Create(ctx, cat)
}

// GetCategory gets a category by ID
func (s *InventoryService) GetCategory(ctx context.Context, id string) (*repository.Category, error) {
	return s.categoryRepo.GetByID(ctx, id)
}

// ListCategories lists categories with their active item counts
func (s *InventoryService) ListCategories(ctx context.Context, includeArchived bool) ([]*repository.Category, error) {
	return s.categoryRepo.List(ctx, includeArchived)
}

// UpdateCategory updates a category
func (s *InventoryService) UpdateCategory(ctx context.Context, cat *repository.Category) error {
	return s.categoryRepo.Update(ctx, cat)
}

// ArchiveCategory soft-archives a category. Items keep their category_id.
func (s *InventoryService) ArchiveCategory(ctx context.Context, id string) error {
	return s.categoryRepo.SetActive(ctx, id, false)
}

// RestoreCategory reverses a soft archive
func (s *InventoryService) RestoreCategory(ctx context.Context, id string) error {
	return s.categoryRepo.SetActive(ctx, id, true)
}

// Ledger

// ListTransactions reads the stock ledger, newest first
func (s *InventoryService) ListTransactions(ctx context.Context, page, perPage int, filter repository.TransactionFilter) ([]*repository.StockTransaction, int64, error) {
	return s.txRepo.List(ctx, page, perPage, filter)
}

// Alerts

// ListAlerts lists stored alerts, critical first
func (s *InventoryService) ListAlerts(ctx context.Context, acknowledged *bool, alertType string, page, perPage int) ([]*repository.InventoryAlert, int64, error) {
	return s.alertRepo.List(ctx, acknowledged, alertType, page, perPage)
}

// AcknowledgeAlert marks an alert acknowledged by the given user
func (s *InventoryService) AcknowledgeAlert(ctx context.Context, id, userID string) (*repository.InventoryAlert, error) {
	if err := s.alertRepo.Acknowledge(ctx, id, userID); err != nil {
		return nil, err
	}
	return s.alertRepo.GetByID(ctx, id)
}

// Dashboard

// DashboardStats aggregates inventory health for the dashboard
type DashboardStats struct {
	TotalItems        int64          `json:"total_items"`
	TotalStock        int            `json:"total_stock"`
	TotalValueCents   int64          `json:"total_value_cents"`
	LowStockCount     int64          `json:"low_stock_count"`
	OutOfStockCount   int64          `json:"out_of_stock_count"`
	ExpiringSoonCount int64          `json:"expiring_soon_count"`
	ExpiredCount      int64          `json:"expired_count"`
	AlertCount        int64          `json:"alert_count"`
	CategoryBreakdown map[string]int `json:"category_breakdown"`
}

// GetDashboardStats computes dashboard statistics for the tenant
func (s *InventoryService) GetDashboardStats(ctx context.Context) (*DashboardStats, error) {
	items, err := s.itemRepo.GetAllActive(ctx)
	if err != nil {
		return nil, err
	}

	windows := s.expiryWindows(ctx)
	expiring, err := s.batchRepo.GetExpiringWithin(ctx, windows.SoonDays)
	if err != nil {
		return nil, err
	}

	alertCount, err := s.alertRepo.UnacknowledgedCount(ctx)
	if err != nil {
		return nil, err
	}

	breakdown, err := s.itemRepo.CountsByCategory(ctx)
	if err != nil {
		return nil, err
	}

	stats := &DashboardStats{
		TotalItems:        int64(len(items)),
		AlertCount:        alertCount,
		CategoryBreakdown: breakdown,
	}

	for _, item := range items {
		stats.TotalStock += item.CurrentStock
		stats.TotalValueCents += int64(item.CurrentStock) * int64(item.CostPerUnitCents)
		if item.CurrentStock == 0 {
			stats.OutOfStockCount++
		} else if item.ReorderLevel > 0 && item.CurrentStock <= item.ReorderLevel {
			stats.LowStockCount++
		}
	}

	today := time.Now()
	for _, batch := range expiring {
		if batch.CurrentQuantity == 0 {
			continue
		}
		status, _ := ClassifyExpiry(today, batch.ExpiryDate, windows)
		switch status {
		case ExpiryStatusExpired:
			stats.ExpiredCount++
		case ExpiryStatusExpiringSoon:
			stats.ExpiringSoonCount++
		}
	}

	return stats, nil
}

// Helpers

// enrichItems fills the computed fields (category name, nearest expiry,
// expiry and stock status). Enrichment failures are logged, not fatal; a
// list read should not break because a lookup did.
func (s *InventoryService) enrichItems(ctx context.Context, items []*repository.Item) {
	if len(items) == 0 {
		return
	}

	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}

	expiries, err := s.batchRepo.NearestExpiries(ctx, ids)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to load nearest expiries")
		expiries = map[string]time.Time{}
	}

	categoryNames := s.categoryNames(ctx, items)

	windows := s.expiryWindows(ctx)
	today := time.Now()
	for _, item := range items {
		item.CostPerUnit = float64(item.CostPerUnitCents) / 100

		if item.CategoryID != nil {
			item.CategoryName = categoryNames[*item.CategoryID]
		}

		if exp, ok := expiries[item.ID]; ok {
			e := exp
			item.NearestExpiry = &e
			item.ExpiryStatus, _ = ClassifyExpiry(today, exp, windows)
		}

		switch {
		case item.CurrentStock == 0:
			item.StockStatus = StockStatusOutOfStock
		case item.ReorderLevel > 0 && item.CurrentStock <= item.ReorderLevel:
			item.StockStatus = StockStatusLowStock
		default:
			item.StockStatus = StockStatusInStock
		}
	}
}

func (s *InventoryService) categoryNames(ctx context.Context, items []*repository.Item) map[string]string {
	needed := false
	for _, item := range items {
		if item.CategoryID != nil {
			needed = true
			break
		}
	}
	if !needed {
		return nil
	}

	categories, err := s.categoryRepo.List(ctx, true)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to load category names")
		return nil
	}

	names := make(map[string]string, len(categories))
	for _, cat := range categories {
		names[cat.ID] = cat.Name
	}
	return names
}

// expiryWindows returns the tenant's configured expiry windows, falling back
// to the deployment defaults when settings cannot be read
func (s *InventoryService) expiryWindows(ctx context.Context) ExpiryWindows {
	if s.settingsRepo == nil {
		return s.policyWindows()
	}

	soon, later, err := s.settingsRepo.ExpiryWindows(ctx)
	if err != nil || soon <= 0 || later < soon {
		return s.policyWindows()
	}
	return ExpiryWindows{SoonDays: soon, LaterDays: later}
}

// policyWindows returns the configured deployment-level windows, or the
// built-in 30/90 defaults when nothing was configured
func (s *InventoryService) policyWindows() ExpiryWindows {
	if s.defaultWindows.SoonDays > 0 && s.defaultWindows.LaterDays >= s.defaultWindows.SoonDays {
		return s.defaultWindows
	}
	return DefaultExpiryWindows()
}

// previewRowLimit returns the configured preview row count for imports
func (s *InventoryService) previewRowLimit() int {
	if s.previewRows > 0 {
		return s.previewRows
	}
	return importPreviewRows
}

// performerName resolves a user ID to a display name via the cached user
// directory. Missing users yield an empty name, never an error; the ledger
// write must not fail because the user cache lags.
func (s *InventoryService) performerName(ctx context.Context, userID string) string {
	if userID == "" || s.userCache == nil {
		return ""
	}

	user, err := s.userCache.Get(ctx, userID)
	if err != nil || user == nil {
		return ""
	}
	return user.FullName()
}
