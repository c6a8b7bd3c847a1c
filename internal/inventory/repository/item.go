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

// Item represents an inventory item. CurrentStock is a server-maintained
// aggregate kept in sync with batch quantities inside the same transaction
// as every stock movement.
type Item struct {
	ID               string    `db:"id" json:"id"`
	Name             string    `db:"name" json:"name"`
	SKU              string    `db:"sku" json:"sku"`
	Description      string    `db:"description" json:"description"`
	CategoryID       *string   `db:"category_id" json:"category_id,omitempty"`
	Unit             string    `db:"unit" json:"unit"`
	ReorderLevel     int       `db:"reorder_level" json:"reorder_level"`
	CostPerUnitCents int       `db:"cost_per_unit_cents" json:"cost_per_unit_cents"`
	CurrentStock     int       `db:"current_stock" json:"current_stock"`
	IsActive         bool      `db:"is_active" json:"is_active"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`

	// Computed fields, filled by the service layer
	CategoryName  string     `db:"-" json:"category_name,omitempty"`
	CostPerUnit   float64    `db:"-" json:"cost_per_unit"`
	NearestExpiry *time.Time `db:"-" json:"nearest_expiry,omitempty"`
	ExpiryStatus  string     `db:"-" json:"expiry_status,omitempty"`
	StockStatus   string     `db:"-" json:"stock_status,omitempty"`
}

// ItemFilter narrows item list queries
type ItemFilter struct {
	CategoryID      string
	Search          string
	IncludeArchived bool
}

const itemColumns = `id, name, sku, description, category_id, unit, reorder_level,
	cost_per_unit_cents, current_stock, is_active, created_at, updated_at`

// ItemRepository handles inventory item persistence
type ItemRepository struct {
	db *database.DB
}

// NewItemRepository creates a new item repository
func NewItemRepository(db *database.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

// Create creates a new inventory item
// TENANT-ISOLATED: RLS scopes the insert to the tenant
func (r *ItemRepository) Create(ctx context.Context, item *Item) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err // Fail-fast if tenant context missing
	}

	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.Unit == "" {
		item.Unit = "unit"
	}
	item.IsActive = true

	return r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			INSERT INTO inventory_items (
				id, tenant_id, name, sku, description, category_id, unit,
				reorder_level, cost_per_unit_cents, current_stock, is_active
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING created_at, updated_at
		`

		err := r.db.QueryRowxContext(ctx, query,
			item.ID, tenantID, item.Name, item.SKU, item.Description, item.CategoryID,
			item.Unit, item.ReorderLevel, item.CostPerUnitCents, item.CurrentStock,
			item.IsActive,
		).Scan(&item.CreatedAt, &item.UpdatedAt)
		if err != nil {
			if appErr := database.MapPQError(err); appErr != nil {
				return appErr
			}
			return err
		}
		return nil
	})
}

// GetByID gets an item by ID
// TENANT-ISOLATED: RLS scopes the read to the tenant
func (r *ItemRepository) GetByID(ctx context.Context, id string) (*Item, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var item Item
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `SELECT ` + itemColumns + ` FROM inventory_items WHERE id = $1`
		return r.db.GetContext(ctx, &item, query, id)
	})

	if err == sql.ErrNoRows {
		return nil, errors.NotFound("item")
	}
	if err != nil {
		return nil, err
	}

	return &item, nil
}

// GetBySKU gets an item by SKU
func (r *ItemRepository) GetBySKU(ctx context.Context, sku string) (*Item, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var item Item
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `SELECT ` + itemColumns + ` FROM inventory_items WHERE sku = $1 AND sku <> ''`
		return r.db.GetContext(ctx, &item, query, sku)
	})

	if err == sql.ErrNoRows {
		return nil, errors.NotFound("item")
	}
	if err != nil {
		return nil, err
	}

	return &item, nil
}

// List lists inventory items with pagination and filters
// TENANT-ISOLATED: Returns only the tenant's items
func (r *ItemRepository) List(ctx context.Context, page, perPage int, filter ItemFilter) ([]*Item, int64, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, 0, err
	}

	var total int64
	var items []*Item

	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		where := ""
		args := []interface{}{}
		n := 0

		next := func() string {
			n++
			return fmt.Sprintf("$%d", n)
		}

		if !filter.IncludeArchived {
			where += " AND is_active = true"
		}
		if filter.CategoryID != "" {
			where += " AND category_id = " + next()
			args = append(args, filter.CategoryID)
		}
		if filter.Search != "" {
			p := next()
			where += fmt.Sprintf(" AND (name ILIKE %s OR sku ILIKE %s)", p, p)
			args = append(args, "%"+filter.Search+"%")
		}

		countQuery := `SELECT COUNT(*) FROM inventory_items WHERE TRUE` + where
		if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
			return err
		}

		offset := (page - 1) * perPage
		query := `SELECT ` + itemColumns + ` FROM inventory_items WHERE TRUE` + where +
			` ORDER BY name LIMIT ` + next()
		args = append(args, perPage)
		query += ` OFFSET ` + next()
		args = append(args, offset)

		return r.db.SelectContext(ctx, &items, query, args...)
	})

	if err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

// Search finds active items whose name or SKU matches the query.
// Prefix matches sort before substring matches, then by name.
func (r *ItemRepository) Search(ctx context.Context, q string, limit int) ([]*Item, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var items []*Item
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			SELECT ` + itemColumns + `
			FROM inventory_items
			WHERE is_active = true AND (name ILIKE $1 OR sku ILIKE $1)
			ORDER BY (name ILIKE $2 OR sku ILIKE $2) DESC, name
			LIMIT $3
		`
		return r.db.SelectContext(ctx, &items, query, "%"+q+"%", q+"%", limit)
	})

	if err != nil {
		return nil, err
	}

	return items, nil
}

// GetAllActive gets all active items
func (r *ItemRepository) GetAllActive(ctx context.Context) ([]*Item, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var items []*Item
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `SELECT ` + itemColumns + ` FROM inventory_items WHERE is_active = true ORDER BY name`
		return r.db.SelectContext(ctx, &items, query)
	})

	if err != nil {
		return nil, err
	}

	return items, nil
}

// Update updates an inventory item's descriptive fields.
// Stock is never written here; movements go through the stock operations.
func (r *ItemRepository) Update(ctx context.Context, item *Item) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	return r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			UPDATE inventory_items SET
				name = $2, sku = $3, description = $4, category_id = $5, unit = $6,
				reorder_level = $7, cost_per_unit_cents = $8, updated_at = NOW()
			WHERE id = $1
		`

		result, err := r.db.ExecContext(ctx, query,
			item.ID, item.Name, item.SKU, item.Description, item.CategoryID,
			item.Unit, item.ReorderLevel, item.CostPerUnitCents,
		)
		if err != nil {
			if appErr := database.MapPQError(err); appErr != nil {
				return appErr
			}
			return err
		}

		affected, _ := result.RowsAffected()
		if affected == 0 {
			return errors.NotFound("item")
		}

		return nil
	})
}

// SetActive archives or restores an item
func (r *ItemRepository) SetActive(ctx context.Context, id string, active bool) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	return r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `UPDATE inventory_items SET is_active = $2, updated_at = NOW() WHERE id = $1 AND is_active = $3`
		result, err := r.db.ExecContext(ctx, query, id, active, !active)
		if err != nil {
			return err
		}

		affected, _ := result.RowsAffected()
		if affected == 0 {
			return errors.NotFound("item")
		}

		return nil
	})
}

// AdjustCachedStock applies a signed delta to the item's stock aggregate and
// returns the resulting level. Must run inside the same tenant transaction as
// the batch mutation it mirrors.
func (r *ItemRepository) AdjustCachedStock(ctx context.Context, id string, delta int) (int, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return 0, err
	}

	var resulting int
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			UPDATE inventory_items
			SET current_stock = current_stock + $2, updated_at = NOW()
			WHERE id = $1
			RETURNING current_stock
		`
		err := r.db.QueryRowxContext(ctx, query, id, delta).Scan(&resulting)
		if err == sql.ErrNoRows {
			return errors.NotFound("item")
		}
		if err != nil {
			if appErr := database.MapPQError(err); appErr != nil {
				return appErr
			}
		}
		return err
	})

	return resulting, err
}

// CountsByCategory returns item counts grouped by category for dashboard stats
func (r *ItemRepository) CountsByCategory(ctx context.Context) (map[string]int, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	type row struct {
		Name  string `db:"name"`
		Count int    `db:"count"`
	}

	var rows []row
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			SELECT COALESCE(c.name, 'Uncategorized') AS name, COUNT(*) AS count
			FROM inventory_items i
			LEFT JOIN categories c ON c.id = i.category_id
			WHERE i.is_active = true
			GROUP BY c.name
		`
		return r.db.SelectContext(ctx, &rows, query)
	})

	if err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.Name] = r.Count
	}

	return counts, nil
}

// LowStockItems returns active items at or below their reorder level
func (r *ItemRepository) LowStockItems(ctx context.Context) ([]*Item, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var items []*Item
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			SELECT ` + itemColumns + `
			FROM inventory_items
			WHERE is_active = true AND reorder_level > 0 AND current_stock <= reorder_level
			ORDER BY current_stock
		`
		return r.db.SelectContext(ctx, &items, query)
	})

	if err != nil {
		return nil, err
	}

	return items, nil
}
