package service

import (
	"context"
	"fmt"
	"time"

	"github.com/wardflow/wardflow-backend/internal/inventory/repository"
	"github.com/wardflow/wardflow-backend/pkg/errors"
	"github.com/wardflow/wardflow-backend/pkg/messaging"
	"github.com/wardflow/wardflow-backend/pkg/tenant"
)

// StockInInput describes an inbound delivery of one batch
type StockInInput struct {
	ItemID        string
	Quantity      int
	BatchNumber   string
	ExpiryDate    time.Time
	UnitCostCents int
	Reason        string
}

// StockOutInput describes an outbound draw satisfied by FEFO allocation
type StockOutInput struct {
	ItemID   string
	Quantity int
	Reason   string
}

// StockMovementResult reports the outcome of a stock movement
type StockMovementResult struct {
	Item        *repository.Item               `json:"item"`
	Batch       *repository.Batch              `json:"batch,omitempty"`
	Allocations []Allocation                   `json:"-"`
	Entries     []*repository.StockTransaction `json:"transactions"`
}

// StockIn receives a delivery: creates the batch, bumps the item's stock and
// writes the IN ledger entry in one transaction.
func (s *InventoryService) StockIn(ctx context.Context, input StockInInput, performedBy string) (*StockMovementResult, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	if input.Quantity <= 0 {
		return nil, errors.Validation(map[string]string{"quantity": "quantity must be greater than zero"})
	}
	if input.BatchNumber == "" {
		return nil, errors.Validation(map[string]string{"batch_number": "batch_number is required"})
	}
	if DaysUntilExpiry(time.Now(), input.ExpiryDate) <= 0 {
		return nil, errors.Validation(map[string]string{"expiry_date": "expiry_date must be after today"})
	}

	var (
		item  *repository.Item
		batch *repository.Batch
		entry *repository.StockTransaction
	)
	err = s.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		item, err = s.itemRepo.GetByID(ctx, input.ItemID)
		if err != nil {
			return err
		}

		batch = &repository.Batch{
			ItemID:          item.ID,
			BatchNumber:     input.BatchNumber,
			InitialQuantity: input.Quantity,
			CurrentQuantity: input.Quantity,
			UnitCostCents:   input.UnitCostCents,
			ExpiryDate:      input.ExpiryDate,
		}
		if err := s.batchRepo.Create(ctx, batch); err != nil {
			return err
		}

		newStock, err := s.itemRepo.AdjustCachedStock(ctx, item.ID, input.Quantity)
		if err != nil {
			return err
		}
		item.CurrentStock = newStock

		entry = &repository.StockTransaction{
			ItemID:          item.ID,
			BatchID:         &batch.ID,
			Type:            repository.TransactionIn,
			Quantity:        input.Quantity,
			ResultingStock:  newStock,
			PerformedBy:     performedBy,
			PerformedByName: s.performerName(ctx, performedBy),
			Reason:          input.Reason,
		}
		return s.txRepo.Create(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	s.publisher.PublishStockIn(ctx, messaging.StockMovementEvent{
		ItemID:   item.ID,
		ItemName: item.Name,
		Quantity: input.Quantity,
		Allocations: []messaging.BatchAllocation{
			{BatchID: batch.ID, BatchNumber: batch.BatchNumber, Quantity: input.Quantity},
		},
		PerformedBy: performedBy,
		Notes:       input.Reason,
	})

	s.logger.Info().
		Str("item_id", item.ID).
		Str("batch_number", batch.BatchNumber).
		Int("quantity", input.Quantity).
		Msg("stock received")

	return &StockMovementResult{Item: item, Batch: batch, Entries: []*repository.StockTransaction{entry}}, nil
}

// StockOut draws stock using FEFO allocation: earliest expiry first, expired
// batches skipped, split across batches as needed. The availability check
// runs against row-locked batches inside the transaction, so two concurrent
// draws cannot both succeed on the same stock.
func (s *InventoryService) StockOut(ctx context.Context, input StockOutInput, performedBy string) (*StockMovementResult, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	if input.Quantity <= 0 {
		return nil, errors.Validation(map[string]string{"quantity": "quantity must be greater than zero"})
	}

	var (
		item        *repository.Item
		allocations []Allocation
		entries     []*repository.StockTransaction
	)
	err = s.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		item, err = s.itemRepo.GetByID(ctx, input.ItemID)
		if err != nil {
			return err
		}

		today := time.Now()
		batches, err := s.batchRepo.ListConsumableForUpdate(ctx, item.ID, today)
		if err != nil {
			return err
		}

		var available int
		allocations, available = allocateFEFO(batches, input.Quantity, today)
		if allocations == nil {
			return errors.InsufficientStock(available)
		}

		performedByName := s.performerName(ctx, performedBy)
		for _, alloc := range allocations {
			batch := alloc.Batch
			remaining := batch.CurrentQuantity - alloc.Quantity
			status := repository.BatchStatusActive
			if remaining == 0 {
				status = repository.BatchStatusDepleted
			}
			if err := s.batchRepo.UpdateQuantity(ctx, batch.ID, remaining, status); err != nil {
				return err
			}
			batch.CurrentQuantity = remaining
			batch.Status = status

			newStock, err := s.itemRepo.AdjustCachedStock(ctx, item.ID, -alloc.Quantity)
			if err != nil {
				return err
			}
			item.CurrentStock = newStock

			entry := &repository.StockTransaction{
				ItemID:          item.ID,
				BatchID:         &batch.ID,
				Type:            repository.TransactionOut,
				Quantity:        -alloc.Quantity,
				ResultingStock:  newStock,
				PerformedBy:     performedBy,
				PerformedByName: performedByName,
				Reason:          input.Reason,
			}
			if err := s.txRepo.Create(ctx, entry); err != nil {
				return err
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	eventAllocs := make([]messaging.BatchAllocation, len(allocations))
	for i, alloc := range allocations {
		eventAllocs[i] = messaging.BatchAllocation{
			BatchID:     alloc.Batch.ID,
			BatchNumber: alloc.Batch.BatchNumber,
			Quantity:    alloc.Quantity,
		}
	}
	s.publisher.PublishStockOut(ctx, messaging.StockMovementEvent{
		ItemID:      item.ID,
		ItemName:    item.Name,
		Quantity:    input.Quantity,
		Allocations: eventAllocs,
		PerformedBy: performedBy,
		Notes:       input.Reason,
	})

	s.logger.Info().
		Str("item_id", item.ID).
		Int("quantity", input.Quantity).
		Int("batches", len(allocations)).
		Msg("stock dispensed")

	return &StockMovementResult{Item: item, Allocations: allocations, Entries: entries}, nil
}

// GetBatch gets a batch by ID
func (s *InventoryService) GetBatch(ctx context.Context, id string) (*repository.Batch, error) {
	return s.batchRepo.GetByID(ctx, id)
}

// ListBatchesByItem lists an item's batches in ascending expiry order
func (s *InventoryService) ListBatchesByItem(ctx context.Context, itemID string) ([]*repository.Batch, error) {
	return s.batchRepo.ListByItem(ctx, itemID)
}

// AdjustBatch corrects a batch to an absolute quantity with a mandatory
// reason. The delta is recorded as an ADJUSTMENT ledger entry.
func (s *InventoryService) AdjustBatch(ctx context.Context, batchID string, newQuantity int, reason, performedBy string) (*StockMovementResult, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	if newQuantity < 0 {
		return nil, errors.Validation(map[string]string{"quantity": "quantity cannot be negative"})
	}
	if reason == "" {
		return nil, errors.Validation(map[string]string{"reason": "reason is required for adjustments"})
	}

	var (
		item  *repository.Item
		batch *repository.Batch
		entry *repository.StockTransaction
		delta int
	)
	err = s.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		batch, err = s.batchRepo.GetByIDForUpdate(ctx, batchID)
		if err != nil {
			return err
		}
		if batch.Status == repository.BatchStatusExpired {
			return errors.Conflict("cannot adjust an expired batch")
		}
		if newQuantity > batch.InitialQuantity {
			return errors.BadRequest(fmt.Sprintf("quantity cannot exceed the batch's initial quantity of %d", batch.InitialQuantity))
		}

		delta = newQuantity - batch.CurrentQuantity
		if delta == 0 {
			return errors.BadRequest("quantity is unchanged")
		}

		status := repository.BatchStatusActive
		if newQuantity == 0 {
			status = repository.BatchStatusDepleted
		}
		if err := s.batchRepo.UpdateQuantity(ctx, batch.ID, newQuantity, status); err != nil {
			return err
		}
		batch.CurrentQuantity = newQuantity
		batch.Status = status

		newStock, err := s.itemRepo.AdjustCachedStock(ctx, batch.ItemID, delta)
		if err != nil {
			return err
		}

		item, err = s.itemRepo.GetByID(ctx, batch.ItemID)
		if err != nil {
			return err
		}
		item.CurrentStock = newStock

		entry = &repository.StockTransaction{
			ItemID:          batch.ItemID,
			BatchID:         &batch.ID,
			Type:            repository.TransactionAdjustment,
			Quantity:        delta,
			ResultingStock:  newStock,
			PerformedBy:     performedBy,
			PerformedByName: s.performerName(ctx, performedBy),
			Reason:          reason,
		}
		return s.txRepo.Create(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	s.publisher.PublishStockAdjusted(ctx, messaging.StockAdjustedEvent{
		ItemID:      item.ID,
		BatchID:     batch.ID,
		Adjustment:  delta,
		NewQuantity: newQuantity,
		PerformedBy: performedBy,
		Reason:      reason,
	})

	return &StockMovementResult{Item: item, Batch: batch, Entries: []*repository.StockTransaction{entry}}, nil
}

// MarkBatchExpired marks an active batch expired. The mark is one-way; the
// batch keeps its quantity for audit while an ADJUSTMENT ledger entry removes
// that quantity from the item's available stock.
func (s *InventoryService) MarkBatchExpired(ctx context.Context, batchID string, performedBy string) (*StockMovementResult, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var (
		item  *repository.Item
		batch *repository.Batch
		entry *repository.StockTransaction
	)
	err = s.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		batch, err = s.batchRepo.GetByIDForUpdate(ctx, batchID)
		if err != nil {
			return err
		}

		marked, err := s.batchRepo.MarkExpired(ctx, batch.ID)
		if err != nil {
			return err
		}
		if !marked {
			return errors.Conflict("batch cannot be marked expired: it must be active with remaining stock")
		}
		batch.Status = repository.BatchStatusExpired

		newStock, err := s.itemRepo.AdjustCachedStock(ctx, batch.ItemID, -batch.CurrentQuantity)
		if err != nil {
			return err
		}

		item, err = s.itemRepo.GetByID(ctx, batch.ItemID)
		if err != nil {
			return err
		}
		item.CurrentStock = newStock

		entry = &repository.StockTransaction{
			ItemID:          batch.ItemID,
			BatchID:         &batch.ID,
			Type:            repository.TransactionAdjustment,
			Quantity:        -batch.CurrentQuantity,
			ResultingStock:  newStock,
			PerformedBy:     performedBy,
			PerformedByName: s.performerName(ctx, performedBy),
			Reason:          fmt.Sprintf("batch %s marked expired", batch.BatchNumber),
		}
		return s.txRepo.Create(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	s.publisher.PublishBatchExpired(ctx, messaging.BatchExpiredEvent{
		ItemID:       item.ID,
		BatchID:      batch.ID,
		ItemName:     item.Name,
		BatchNumber:  batch.BatchNumber,
		ExpiryDate:   batch.ExpiryDate,
		QuantityLost: batch.CurrentQuantity,
		PerformedBy:  performedBy,
	})

	s.logger.Info().
		Str("batch_id", batch.ID).
		Str("item_id", item.ID).
		Int("quantity_lost", batch.CurrentQuantity).
		Msg("batch marked expired")

	return &StockMovementResult{Item: item, Batch: batch, Entries: []*repository.StockTransaction{entry}}, nil
}

// ExpiryAlertReport buckets batches nearing or past expiry
type ExpiryAlertReport struct {
	Days         int                 `json:"days"`
	Expired      []*repository.Batch `json:"expired"`
	ExpiringSoon []*repository.Batch `json:"expiring_soon"`
}

// GetExpiryAlerts reports active batches with stock that are expired or
// expiring within the given window (default 30 days)
func (s *InventoryService) GetExpiryAlerts(ctx context.Context, days int) (*ExpiryAlertReport, error) {
	if days <= 0 {
		days = s.policyWindows().SoonDays
	}

	batches, err := s.batchRepo.GetExpiringWithin(ctx, days)
	if err != nil {
		return nil, err
	}

	report := &ExpiryAlertReport{
		Days:         days,
		Expired:      []*repository.Batch{},
		ExpiringSoon: []*repository.Batch{},
	}

	today := time.Now()
	for _, batch := range batches {
		if batch.CurrentQuantity == 0 {
			continue
		}
		if DaysUntilExpiry(today, batch.ExpiryDate) < 0 {
			report.Expired = append(report.Expired, batch)
		} else {
			report.ExpiringSoon = append(report.ExpiringSoon, batch)
		}
	}

	return report, nil
}
