package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/wardflow/wardflow-backend/pkg/database"
	"github.com/wardflow/wardflow-backend/pkg/errors"
	"github.com/wardflow/wardflow-backend/pkg/tenant"
)

// Batch status values. The lifecycle is one-way:
// active -> depleted (quantity reaches zero) or active -> expired (explicit mark).
const (
	BatchStatusActive   = "active"
	BatchStatusDepleted = "depleted"
	BatchStatusExpired  = "expired"
)

// ValidBatchStatus reports whether s is a known batch status
func ValidBatchStatus(s string) bool {
	switch s {
	case BatchStatusActive, BatchStatusDepleted, BatchStatusExpired:
		return true
	}
	return false
}

// Batch represents one received lot of an item
type Batch struct {
	ID              string    `db:"id" json:"id"`
	ItemID          string    `db:"item_id" json:"item_id"`
	BatchNumber     string    `db:"batch_number" json:"batch_number"`
	InitialQuantity int       `db:"initial_quantity" json:"initial_quantity"`
	CurrentQuantity int       `db:"current_quantity" json:"current_quantity"`
	UnitCostCents   int       `db:"unit_cost_cents" json:"unit_cost_cents"`
	ExpiryDate      time.Time `db:"expiry_date" json:"expiry_date"`
	ReceivedAt      time.Time `db:"received_at" json:"received_at"`
	Status          string    `db:"status" json:"status"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`

	// Filled by joins where the caller needs item context
	ItemName string `db:"item_name" json:"item_name,omitempty"`
}

const batchColumns = `id, item_id, batch_number, initial_quantity, current_quantity,
	unit_cost_cents, expiry_date, received_at, status, created_at, updated_at`

// BatchRepository handles batch persistence
type BatchRepository struct {
	db *database.DB
}

// NewBatchRepository creates a new batch repository
func NewBatchRepository(db *database.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

// Create creates a new batch
func (r *BatchRepository) Create(ctx context.Context, batch *Batch) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	if batch.ID == "" {
		batch.ID = uuid.New().String()
	}
	if batch.Status == "" {
		batch.Status = BatchStatusActive
	}
	if batch.ReceivedAt.IsZero() {
		batch.ReceivedAt = time.Now().UTC()
	}

	return r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			INSERT INTO item_batches (
				id, tenant_id, item_id, batch_number, initial_quantity,
				current_quantity, unit_cost_cents, expiry_date, received_at, status
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING created_at, updated_at
		`

		err := r.db.QueryRowxContext(ctx, query,
			batch.ID, tenantID, batch.ItemID, batch.BatchNumber, batch.InitialQuantity,
			batch.CurrentQuantity, batch.UnitCostCents, batch.ExpiryDate,
			batch.ReceivedAt, batch.Status,
		).Scan(&batch.CreatedAt, &batch.UpdatedAt)
		if err != nil {
			if appErr := database.MapPQError(err); appErr != nil {
				return appErr
			}
			return err
		}
		return nil
	})
}

// GetByID gets a batch by ID
func (r *BatchRepository) GetByID(ctx context.Context, id string) (*Batch, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var batch Batch
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `SELECT ` + batchColumns + ` FROM item_batches WHERE id = $1`
		return r.db.GetContext(ctx, &batch, query, id)
	})

	if err == sql.ErrNoRows {
		return nil, errors.NotFound("batch")
	}
	if err != nil {
		return nil, err
	}

	return &batch, nil
}

// GetByIDForUpdate locks and returns a batch row. Must run inside a tenant
// transaction; the lock holds until that transaction ends.
func (r *BatchRepository) GetByIDForUpdate(ctx context.Context, id string) (*Batch, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var batch Batch
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `SELECT ` + batchColumns + ` FROM item_batches WHERE id = $1 FOR UPDATE`
		return r.db.GetContext(ctx, &batch, query, id)
	})

	if err == sql.ErrNoRows {
		return nil, errors.NotFound("batch")
	}
	if err != nil {
		return nil, err
	}

	return &batch, nil
}

// ListByItem lists all batches for an item in ascending expiry order
func (r *BatchRepository) ListByItem(ctx context.Context, itemID string) ([]*Batch, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var batches []*Batch
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			SELECT ` + batchColumns + ` FROM item_batches
			WHERE item_id = $1
			ORDER BY expiry_date, received_at
		`
		return r.db.SelectContext(ctx, &batches, query, itemID)
	})

	if err != nil {
		return nil, err
	}

	return batches, nil
}

// ListConsumableForUpdate returns the batches FEFO may draw from, earliest
// expiry first, with their rows locked for the rest of the transaction.
// Expired lots are excluded twice over: by explicit status and by date, so a
// batch past its expiry date that nobody marked yet is still never consumed.
func (r *BatchRepository) ListConsumableForUpdate(ctx context.Context, itemID string, today time.Time) ([]*Batch, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	// expiry_date is a DATE; compare at date precision or a batch expiring
	// today fails midnight >= now and drops out of the allocation set.
	y, m, d := today.UTC().Date()
	cutoff := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	var batches []*Batch
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			SELECT ` + batchColumns + ` FROM item_batches
			WHERE item_id = $1
			  AND status = 'active'
			  AND current_quantity > 0
			  AND expiry_date >= $2
			ORDER BY expiry_date, received_at
			FOR UPDATE
		`
		return r.db.SelectContext(ctx, &batches, query, itemID, cutoff)
	})

	if err != nil {
		return nil, err
	}

	return batches, nil
}

// UpdateQuantity sets a batch's quantity and status in one statement
func (r *BatchRepository) UpdateQuantity(ctx context.Context, id string, quantity int, status string) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	return r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			UPDATE item_batches SET current_quantity = $2, status = $3, updated_at = NOW()
			WHERE id = $1
		`
		result, err := r.db.ExecContext(ctx, query, id, quantity, status)
		if err != nil {
			if appErr := database.MapPQError(err); appErr != nil {
				return appErr
			}
			return err
		}

		affected, _ := result.RowsAffected()
		if affected == 0 {
			return errors.NotFound("batch")
		}

		return nil
	})
}

// MarkExpired flips an active batch to expired. The WHERE clause enforces the
// one-way transition; zero rows affected means the batch was not eligible.
func (r *BatchRepository) MarkExpired(ctx context.Context, id string) (bool, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return false, err
	}

	var marked bool
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			UPDATE item_batches SET status = $2, updated_at = NOW()
			WHERE id = $1 AND status = $3 AND current_quantity > 0
		`
		result, err := r.db.ExecContext(ctx, query, id, BatchStatusExpired, BatchStatusActive)
		if err != nil {
			return err
		}

		affected, _ := result.RowsAffected()
		marked = affected > 0
		return nil
	})

	return marked, err
}

// GetExpiringWithin returns active batches with stock whose expiry falls on or
// before today+days, joined with item names, earliest first. Includes batches
// already past their date but not yet marked.
func (r *BatchRepository) GetExpiringWithin(ctx context.Context, days int) ([]*Batch, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var batches []*Batch
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			SELECT b.id, b.item_id, b.batch_number, b.initial_quantity, b.current_quantity,
			       b.unit_cost_cents, b.expiry_date, b.received_at, b.status,
			       b.created_at, b.updated_at, i.name AS item_name
			FROM item_batches b
			JOIN inventory_items i ON i.id = b.item_id
			WHERE b.status = 'active' AND b.current_quantity > 0
			  AND b.expiry_date <= CURRENT_DATE + $1::int
			ORDER BY b.expiry_date, b.received_at
		`
		return r.db.SelectContext(ctx, &batches, query, days)
	})

	if err != nil {
		return nil, err
	}

	return batches, nil
}

// NearestExpiries returns, per item, the earliest expiry among consumable
// batches. Used for item enrichment without an N+1 query.
func (r *BatchRepository) NearestExpiries(ctx context.Context, itemIDs []string) (map[string]time.Time, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	if len(itemIDs) == 0 {
		return map[string]time.Time{}, nil
	}

	type row struct {
		ItemID string    `db:"item_id"`
		Expiry time.Time `db:"expiry"`
	}

	var rows []row
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			SELECT item_id, MIN(expiry_date) AS expiry
			FROM item_batches
			WHERE status = 'active' AND current_quantity > 0 AND item_id = ANY($1)
			GROUP BY item_id
		`
		return r.db.SelectContext(ctx, &rows, query, pq.Array(itemIDs))
	})

	if err != nil {
		return nil, err
	}

	out := make(map[string]time.Time, len(rows))
	for _, r := range rows {
		out[r.ItemID] = r.Expiry
	}

	return out, nil
}
