package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	// User events (consumed from the identity service)
	EventUserCreated = "user.created"
	EventUserUpdated = "user.updated"
	EventUserDeleted = "user.deleted"

	// Inventory events
	EventStockIn        = "inventory.stock.in"
	EventStockOut       = "inventory.stock.out"
	EventStockAdjusted  = "inventory.stock.adjusted"
	EventBatchExpired   = "inventory.batch.expired"
	EventAlertGenerated = "inventory.alert.generated"
	EventItemsImported  = "inventory.items.imported"

	// Staff events
	EventStaffCreated  = "staff.member.created"
	EventStaffUpdated  = "staff.member.updated"
	EventStaffArchived = "staff.member.archived"
)

// Exchange names
const (
	ExchangeUserEvents      = "user.events"
	ExchangeInventoryEvents = "inventory.events"
	ExchangeStaffEvents     = "staff.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	TenantID      string          `json:"tenant_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID, tenantID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            uuid.New().String(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		TenantID:      tenantID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// User Events

// UserCreatedEvent is consumed when the identity service creates a user
type UserCreatedEvent struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	RoleName  string `json:"role_name"`

	TenantID   string `json:"tenant_id"`
	TenantSlug string `json:"tenant_slug"`
}

// FullName returns the user's full name
func (e *UserCreatedEvent) FullName() string {
	return e.FirstName + " " + e.LastName
}

// UserUpdatedEvent is consumed when a user's profile changes
type UserUpdatedEvent struct {
	UserID string         `json:"user_id"`
	Fields map[string]any `json:"fields"`

	TenantID   string `json:"tenant_id"`
	TenantSlug string `json:"tenant_slug"`
}

// UserDeletedEvent is consumed when a user is deleted
type UserDeletedEvent struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`

	TenantID   string `json:"tenant_id"`
	TenantSlug string `json:"tenant_slug"`
}

// Inventory Events

// StockMovementEvent is published for stock in and stock out operations.
// Allocations lists the batches a stock out consumed from.
type StockMovementEvent struct {
	ItemID      string            `json:"item_id"`
	ItemName    string            `json:"item_name"`
	Quantity    int               `json:"quantity"`
	Allocations []BatchAllocation `json:"allocations,omitempty"`
	PerformedBy string            `json:"performed_by"`
	Notes       string            `json:"notes,omitempty"`
}

// BatchAllocation records how much of a movement came from one batch
type BatchAllocation struct {
	BatchID     string `json:"batch_id"`
	BatchNumber string `json:"batch_number"`
	Quantity    int    `json:"quantity"`
}

// StockAdjustedEvent is published when a batch quantity is manually corrected
type StockAdjustedEvent struct {
	ItemID      string `json:"item_id"`
	BatchID     string `json:"batch_id"`
	Adjustment  int    `json:"adjustment"`
	NewQuantity int    `json:"new_quantity"`
	PerformedBy string `json:"performed_by"`
	Reason      string `json:"reason"`
}

// BatchExpiredEvent is published when a batch is marked expired
type BatchExpiredEvent struct {
	ItemID       string    `json:"item_id"`
	BatchID      string    `json:"batch_id"`
	ItemName     string    `json:"item_name"`
	BatchNumber  string    `json:"batch_number"`
	ExpiryDate   time.Time `json:"expiry_date"`
	QuantityLost int       `json:"quantity_lost"`
	PerformedBy  string    `json:"performed_by"`
}

// AlertGeneratedEvent is published when the alert scanner raises an alert
type AlertGeneratedEvent struct {
	AlertID   string `json:"alert_id"`
	AlertType string `json:"alert_type"`
	Severity  string `json:"severity"`
	Message   string `json:"message"`
	ItemID    string `json:"item_id,omitempty"`
	BatchID   string `json:"batch_id,omitempty"`
}

// ItemsImportedEvent is published after a bulk import commits
type ItemsImportedEvent struct {
	FileName     string `json:"file_name"`
	RowsTotal    int    `json:"rows_total"`
	RowsImported int    `json:"rows_imported"`
	RowsSkipped  int    `json:"rows_skipped"`
	PerformedBy  string `json:"performed_by"`
}

// Staff Events

// StaffMemberEvent is published when a staff directory entry changes
type StaffMemberEvent struct {
	StaffID    string `json:"staff_id"`
	Name       string `json:"name"`
	Department string `json:"department,omitempty"`
}
