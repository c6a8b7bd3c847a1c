package events

import (
	"context"

	"github.com/wardflow/wardflow-backend/internal/inventory/repository"
	"github.com/wardflow/wardflow-backend/pkg/logger"
	"github.com/wardflow/wardflow-backend/pkg/messaging"
)

// InventoryEventPublisher publishes inventory-related events
type InventoryEventPublisher struct {
	publisher *messaging.Publisher
	logger    *logger.Logger
}

// NewInventoryEventPublisher creates a new inventory event publisher
func NewInventoryEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*InventoryEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeInventoryEvents, "hospital-service", log)
	if err != nil {
		return nil, err
	}

	return &InventoryEventPublisher{
		publisher: publisher,
		logger:    log,
	}, nil
}

// PublishStockIn publishes a stock in event
func (p *InventoryEventPublisher) PublishStockIn(ctx context.Context, data messaging.StockMovementEvent) {
	if p == nil {
		return
	}
	if err := p.publisher.Publish(ctx, messaging.EventStockIn, data); err != nil {
		p.logger.Error().Err(err).Str("item_id", data.ItemID).Msg("failed to publish stock in event")
	}
}

// PublishStockOut publishes a stock out event with its batch allocations
func (p *InventoryEventPublisher) PublishStockOut(ctx context.Context, data messaging.StockMovementEvent) {
	if p == nil {
		return
	}
	if err := p.publisher.Publish(ctx, messaging.EventStockOut, data); err != nil {
		p.logger.Error().Err(err).Str("item_id", data.ItemID).Msg("failed to publish stock out event")
	}
}

// PublishStockAdjusted publishes a stock adjusted event
func (p *InventoryEventPublisher) PublishStockAdjusted(ctx context.Context, data messaging.StockAdjustedEvent) {
	if p == nil {
		return
	}
	if err := p.publisher.Publish(ctx, messaging.EventStockAdjusted, data); err != nil {
		p.logger.Error().Err(err).Str("item_id", data.ItemID).Msg("failed to publish stock adjusted event")
	}
}

// PublishBatchExpired publishes a batch expired event
func (p *InventoryEventPublisher) PublishBatchExpired(ctx context.Context, data messaging.BatchExpiredEvent) {
	if p == nil {
		return
	}
	if err := p.publisher.Publish(ctx, messaging.EventBatchExpired, data); err != nil {
		p.logger.Error().Err(err).Str("batch_id", data.BatchID).Msg("failed to publish batch expired event")
	}
}

// PublishAlertGenerated publishes an alert generated event
func (p *InventoryEventPublisher) PublishAlertGenerated(ctx context.Context, alert *repository.InventoryAlert) {
	if p == nil {
		return
	}
	batchID := ""
	if alert.BatchID != nil {
		batchID = *alert.BatchID
	}

	data := messaging.AlertGeneratedEvent{
		AlertID:   alert.ID,
		AlertType: alert.AlertType,
		Severity:  alert.Severity,
		Message:   alert.Message,
		ItemID:    alert.ItemID,
		BatchID:   batchID,
	}

	if err := p.publisher.Publish(ctx, messaging.EventAlertGenerated, data); err != nil {
		p.logger.Error().Err(err).Str("alert_id", alert.ID).Msg("failed to publish alert generated event")
	}
}

// PublishItemsImported publishes a bulk import summary event
func (p *InventoryEventPublisher) PublishItemsImported(ctx context.Context, data messaging.ItemsImportedEvent) {
	if p == nil {
		return
	}
	if err := p.publisher.Publish(ctx, messaging.EventItemsImported, data); err != nil {
		p.logger.Error().Err(err).Str("file_name", data.FileName).Msg("failed to publish items imported event")
	}
}
