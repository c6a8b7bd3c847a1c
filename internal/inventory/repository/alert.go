package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wardflow/wardflow-backend/pkg/database"
	"github.com/wardflow/wardflow-backend/pkg/errors"
	"github.com/wardflow/wardflow-backend/pkg/tenant"
)

// Alert types raised by the scanner
const (
	AlertLowStock   = "low_stock"
	AlertOutOfStock = "out_of_stock"
	AlertExpiring   = "expiring"
	AlertExpired    = "expired"
)

// InventoryAlert represents a stored inventory alert
type InventoryAlert struct {
	ID              string     `db:"id" json:"id"`
	AlertType       string     `db:"alert_type" json:"alert_type"`
	Severity        string     `db:"severity" json:"severity"`
	Message         string     `db:"message" json:"message"`
	ItemID          string     `db:"item_id" json:"item_id"`
	ItemName        string     `db:"item_name" json:"item_name"`
	BatchID         *string    `db:"batch_id" json:"batch_id,omitempty"`
	BatchNumber     *string    `db:"batch_number" json:"batch_number,omitempty"`
	ExpiryDate      *time.Time `db:"expiry_date" json:"expiry_date,omitempty"`
	DaysUntilExpiry *int       `db:"days_until_expiry" json:"days_until_expiry,omitempty"`
	CurrentStock    *int       `db:"current_stock" json:"current_stock,omitempty"`
	ReorderLevel    *int       `db:"reorder_level" json:"reorder_level,omitempty"`
	IsAcknowledged  bool       `db:"is_acknowledged" json:"is_acknowledged"`
	AcknowledgedBy  *string    `db:"acknowledged_by" json:"acknowledged_by,omitempty"`
	AcknowledgedAt  *time.Time `db:"acknowledged_at" json:"acknowledged_at,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}

// AlertRepository handles alert persistence
type AlertRepository struct {
	db *database.DB
}

// NewAlertRepository creates a new alert repository
func NewAlertRepository(db *database.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// Create creates a new alert
func (r *AlertRepository) Create(ctx context.Context, alert *InventoryAlert) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	if alert.ID == "" {
		alert.ID = uuid.New().String()
	}

	return r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			INSERT INTO inventory_alerts (
				id, tenant_id, alert_type, severity, message, item_id, item_name,
				batch_id, batch_number, expiry_date, days_until_expiry,
				current_stock, reorder_level
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			RETURNING created_at
		`

		return r.db.QueryRowxContext(ctx, query,
			alert.ID, tenantID, alert.AlertType, alert.Severity, alert.Message,
			alert.ItemID, alert.ItemName, alert.BatchID, alert.BatchNumber,
			alert.ExpiryDate, alert.DaysUntilExpiry, alert.CurrentStock,
			alert.ReorderLevel,
		).Scan(&alert.CreatedAt)
	})
}

// GetByID gets an alert by ID
func (r *AlertRepository) GetByID(ctx context.Context, id string) (*InventoryAlert, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var alert InventoryAlert
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `SELECT * FROM inventory_alerts WHERE id = $1`
		return r.db.GetContext(ctx, &alert, query, id)
	})

	if err == sql.ErrNoRows {
		return nil, errors.NotFound("alert")
	}
	if err != nil {
		return nil, err
	}

	return &alert, nil
}

// List lists alerts, critical first, newest first within severity
func (r *AlertRepository) List(ctx context.Context, acknowledged *bool, alertType string, page, perPage int) ([]*InventoryAlert, int64, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, 0, err
	}

	var total int64
	var alerts []*InventoryAlert

	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		where := ""
		args := []interface{}{}
		n := 0

		next := func() string {
			n++
			return fmt.Sprintf("$%d", n)
		}

		if acknowledged != nil {
			where += " AND is_acknowledged = " + next()
			args = append(args, *acknowledged)
		}
		if alertType != "" {
			where += " AND alert_type = " + next()
			args = append(args, alertType)
		}

		countQuery := `SELECT COUNT(*) FROM inventory_alerts WHERE TRUE` + where
		if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
			return err
		}

		offset := (page - 1) * perPage
		query := `SELECT * FROM inventory_alerts WHERE TRUE` + where +
			` ORDER BY CASE severity WHEN 'critical' THEN 0 ELSE 1 END, created_at DESC` +
			` LIMIT ` + next()
		args = append(args, perPage)
		query += ` OFFSET ` + next()
		args = append(args, offset)

		return r.db.SelectContext(ctx, &alerts, query, args...)
	})

	if err != nil {
		return nil, 0, err
	}

	return alerts, total, nil
}

// Acknowledge acknowledges an alert
func (r *AlertRepository) Acknowledge(ctx context.Context, id, userID string) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	return r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			UPDATE inventory_alerts
			SET is_acknowledged = true, acknowledged_by = $2, acknowledged_at = NOW()
			WHERE id = $1 AND is_acknowledged = false
		`

		result, err := r.db.ExecContext(ctx, query, id, userID)
		if err != nil {
			return err
		}

		affected, _ := result.RowsAffected()
		if affected == 0 {
			return errors.NotFound("alert")
		}

		return nil
	})
}

// HasOpenAlert reports whether an unacknowledged alert of the given type
// already exists for the item (and batch, when batchID is non-empty).
// The scanner uses this to avoid stacking duplicates every interval.
func (r *AlertRepository) HasOpenAlert(ctx context.Context, alertType, itemID, batchID string) (bool, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return false, err
	}

	var exists bool
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			SELECT EXISTS (
				SELECT 1 FROM inventory_alerts
				WHERE alert_type = $1 AND item_id = $2 AND is_acknowledged = false
				  AND ($3 = '' OR batch_id = $3::uuid)
			)
		`
		return r.db.GetContext(ctx, &exists, query, alertType, itemID, batchID)
	})

	return exists, err
}

// UnacknowledgedCount gets the count of unacknowledged alerts
func (r *AlertRepository) UnacknowledgedCount(ctx context.Context) (int64, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return 0, err
	}

	var count int64
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `SELECT COUNT(*) FROM inventory_alerts WHERE is_acknowledged = false`
		return r.db.GetContext(ctx, &count, query)
	})

	return count, err
}

// DeleteOld deletes acknowledged alerts older than the retention window
func (r *AlertRepository) DeleteOld(ctx context.Context, olderThan time.Duration) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	return r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `DELETE FROM inventory_alerts WHERE is_acknowledged = true AND acknowledged_at < $1`
		_, err := r.db.ExecContext(ctx, query, time.Now().Add(-olderThan))
		return err
	})
}
