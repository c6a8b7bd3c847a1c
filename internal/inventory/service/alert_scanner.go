package service

import (
	"context"
	"fmt"
	"time"

	"github.com/wardflow/wardflow-backend/internal/inventory/events"
	"github.com/wardflow/wardflow-backend/internal/inventory/repository"
	settingsrepo "github.com/wardflow/wardflow-backend/internal/settings/repository"
	"github.com/wardflow/wardflow-backend/pkg/logger"
)

// Acknowledged alerts older than this are purged on each scan
const alertRetention = 30 * 24 * time.Hour

// AlertScanner scans a tenant's inventory and raises stored alerts for low
// stock and expiry conditions. Each alert type is deduplicated against open
// alerts so repeated scans do not stack duplicates.
type AlertScanner struct {
	itemRepo     *repository.ItemRepository
	batchRepo    *repository.BatchRepository
	alertRepo    *repository.AlertRepository
	settingsRepo *settingsrepo.SettingsRepository
	publisher    *events.InventoryEventPublisher
	logger       *logger.Logger
}

// NewAlertScanner creates a new alert scanner
func NewAlertScanner(
	itemRepo *repository.ItemRepository,
	batchRepo *repository.BatchRepository,
	alertRepo *repository.AlertRepository,
	settingsRepo *settingsrepo.SettingsRepository,
	publisher *events.InventoryEventPublisher,
	log *logger.Logger,
) *AlertScanner {
	return &AlertScanner{
		itemRepo:     itemRepo,
		batchRepo:    batchRepo,
		alertRepo:    alertRepo,
		settingsRepo: settingsRepo,
		publisher:    publisher,
		logger:       log,
	}
}

// ScanAll runs all alert scans for the tenant in the context. Individual
// scan failures are logged and the remaining scans still run.
func (s *AlertScanner) ScanAll(ctx context.Context) error {
	scanners := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"low_stock", s.scanLowStock},
		{"expiry", s.scanExpiry},
		{"cleanup", s.cleanupAcknowledged},
	}

	var lastErr error
	for _, scanner := range scanners {
		if err := scanner.fn(ctx); err != nil {
			s.logger.Error().Err(err).Str("scanner", scanner.name).Msg("alert scan failed")
			lastErr = err
		}
	}

	return lastErr
}

// scanLowStock raises alerts for items at or below their reorder level.
// Items without a reorder level fall back to the tenant's default threshold.
func (s *AlertScanner) scanLowStock(ctx context.Context) error {
	items, err := s.itemRepo.GetAllActive(ctx)
	if err != nil {
		return fmt.Errorf("scanLowStock: get active items: %w", err)
	}

	fallbackThreshold := settingsrepo.DefaultLowStockThreshold
	if s.settingsRepo != nil {
		if threshold, err := s.settingsRepo.LowStockThreshold(ctx); err == nil {
			fallbackThreshold = threshold
		}
	}

	for _, item := range items {
		threshold := item.ReorderLevel
		if threshold == 0 {
			threshold = fallbackThreshold
		}
		if item.CurrentStock > threshold {
			continue
		}

		alertType := repository.AlertLowStock
		severity := "warning"
		if item.CurrentStock == 0 {
			alertType = repository.AlertOutOfStock
			severity = "critical"
		} else if item.CurrentStock <= threshold/2 {
			severity = "critical"
		}

		exists, err := s.alertRepo.HasOpenAlert(ctx, alertType, item.ID, "")
		if err != nil {
			s.logger.Error().Err(err).Str("item_id", item.ID).Msg("scanLowStock: dedup check failed")
			continue
		}
		if exists {
			continue
		}

		currentStock := item.CurrentStock
		reorderLevel := threshold
		alert := &repository.InventoryAlert{
			AlertType:    alertType,
			ItemID:       item.ID,
			ItemName:     item.Name,
			Severity:     severity,
			Message:      fmt.Sprintf("%s is %s (%d/%d)", item.Name, alertType, item.CurrentStock, threshold),
			CurrentStock: &currentStock,
			ReorderLevel: &reorderLevel,
		}

		if err := s.alertRepo.Create(ctx, alert); err != nil {
			s.logger.Error().Err(err).Str("item_id", item.ID).Msg("scanLowStock: failed to create alert")
			continue
		}
		s.publisher.PublishAlertGenerated(ctx, alert)
	}

	return nil
}

// scanExpiry raises alerts for batches with stock that are expired or inside
// the tenant's warning windows
func (s *AlertScanner) scanExpiry(ctx context.Context) error {
	windows := DefaultExpiryWindows()
	if s.settingsRepo != nil {
		if soon, later, err := s.settingsRepo.ExpiryWindows(ctx); err == nil && soon > 0 && later >= soon {
			windows = ExpiryWindows{SoonDays: soon, LaterDays: later}
		}
	}

	batches, err := s.batchRepo.GetExpiringWithin(ctx, windows.SoonDays)
	if err != nil {
		return fmt.Errorf("scanExpiry: get expiring batches: %w", err)
	}

	today := time.Now()
	for _, batch := range batches {
		if batch.CurrentQuantity == 0 {
			continue
		}

		status, daysUntil := ClassifyExpiry(today, batch.ExpiryDate, windows)

		var alertType, severity, message string
		switch status {
		case ExpiryStatusExpired:
			alertType = repository.AlertExpired
			severity = "critical"
			message = fmt.Sprintf("%s batch %s expired %d days ago", batch.ItemName, batch.BatchNumber, -daysUntil)
		case ExpiryStatusExpiringSoon:
			alertType = repository.AlertExpiring
			severity = "warning"
			if daysUntil <= 7 {
				severity = "critical"
			}
			message = fmt.Sprintf("%s batch %s expires in %d days", batch.ItemName, batch.BatchNumber, daysUntil)
		default:
			continue
		}

		exists, err := s.alertRepo.HasOpenAlert(ctx, alertType, batch.ItemID, batch.ID)
		if err != nil {
			s.logger.Error().Err(err).Str("batch_id", batch.ID).Msg("scanExpiry: dedup check failed")
			continue
		}
		if exists {
			continue
		}

		batchID := batch.ID
		batchNumber := batch.BatchNumber
		expiryDate := batch.ExpiryDate
		days := daysUntil
		alert := &repository.InventoryAlert{
			AlertType:       alertType,
			ItemID:          batch.ItemID,
			ItemName:        batch.ItemName,
			BatchID:         &batchID,
			BatchNumber:     &batchNumber,
			Severity:        severity,
			Message:         message,
			ExpiryDate:      &expiryDate,
			DaysUntilExpiry: &days,
		}

		if err := s.alertRepo.Create(ctx, alert); err != nil {
			s.logger.Error().Err(err).Str("batch_id", batch.ID).Msg("scanExpiry: failed to create alert")
			continue
		}
		s.publisher.PublishAlertGenerated(ctx, alert)
	}

	return nil
}

func (s *AlertScanner) cleanupAcknowledged(ctx context.Context) error {
	return s.alertRepo.DeleteOld(ctx, alertRetention)
}
