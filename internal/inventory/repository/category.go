package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/wardflow/wardflow-backend/pkg/database"
	"github.com/wardflow/wardflow-backend/pkg/errors"
	"github.com/wardflow/wardflow-backend/pkg/tenant"
)

// Category represents an item category
type Category struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	ItemCount   int       `db:"item_count" json:"item_count"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// CategoryRepository handles category persistence
type CategoryRepository struct {
	db *database.DB
}

// NewCategoryRepository creates a new category repository
func NewCategoryRepository(db *database.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// Create creates a new category
func (r *CategoryRepository) Create(ctx context.Context, cat *Category) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	if cat.ID == "" {
		cat.ID = uuid.New().String()
	}
	cat.IsActive = true

	return r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			INSERT INTO categories (id, tenant_id, name, description, is_active)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING created_at, updated_at
		`

		err := r.db.QueryRowxContext(ctx, query,
			cat.ID, tenantID, cat.Name, cat.Description, cat.IsActive,
		).Scan(&cat.CreatedAt, &cat.UpdatedAt)
		if err != nil {
			if appErr := database.MapPQError(err); appErr != nil {
				return appErr
			}
			return err
		}
		return nil
	})
}

// GetByID gets a category by ID, including its live item count
func (r *CategoryRepository) GetByID(ctx context.Context, id string) (*Category, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var cat Category
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			SELECT c.id, c.name, c.description, c.is_active, c.created_at, c.updated_at,
			       COUNT(i.id) FILTER (WHERE i.is_active) AS item_count
			FROM categories c
			LEFT JOIN inventory_items i ON i.category_id = c.id
			WHERE c.id = $1
			GROUP BY c.id
		`
		return r.db.GetContext(ctx, &cat, query, id)
	})

	if err == sql.ErrNoRows {
		return nil, errors.NotFound("category")
	}
	if err != nil {
		return nil, err
	}

	return &cat, nil
}

// List lists categories with item counts
func (r *CategoryRepository) List(ctx context.Context, includeArchived bool) ([]*Category, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var cats []*Category
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			SELECT c.id, c.name, c.description, c.is_active, c.created_at, c.updated_at,
			       COUNT(i.id) FILTER (WHERE i.is_active) AS item_count
			FROM categories c
			LEFT JOIN inventory_items i ON i.category_id = c.id
		`
		if !includeArchived {
			query += ` WHERE c.is_active = true`
		}
		query += ` GROUP BY c.id ORDER BY c.name`

		return r.db.SelectContext(ctx, &cats, query)
	})

	if err != nil {
		return nil, err
	}

	return cats, nil
}

// Update updates a category
func (r *CategoryRepository) Update(ctx context.Context, cat *Category) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	return r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			UPDATE categories SET name = $2, description = $3, updated_at = NOW()
			WHERE id = $1
		`

		result, err := r.db.ExecContext(ctx, query, cat.ID, cat.Name, cat.Description)
		if err != nil {
			if appErr := database.MapPQError(err); appErr != nil {
				return appErr
			}
			return err
		}

		affected, _ := result.RowsAffected()
		if affected == 0 {
			return errors.NotFound("category")
		}

		return nil
	})
}

// SetActive archives or restores a category
func (r *CategoryRepository) SetActive(ctx context.Context, id string, active bool) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	return r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `UPDATE categories SET is_active = $2, updated_at = NOW() WHERE id = $1 AND is_active = $3`
		result, err := r.db.ExecContext(ctx, query, id, active, !active)
		if err != nil {
			return err
		}

		affected, _ := result.RowsAffected()
		if affected == 0 {
			return errors.NotFound("category")
		}

		return nil
	})
}
