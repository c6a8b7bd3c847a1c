package repository

import (
	"context"
	"database/sql"

	"github.com/wardflow/wardflow-backend/pkg/database"
	"github.com/wardflow/wardflow-backend/pkg/tenant"
)

// CachedUser holds actor names replicated from user events.
// Used to enrich ledger entries with performer names without
// calling the identity service on every read.
type CachedUser struct {
	ID        string `db:"id" json:"id"`
	Email     string `db:"email" json:"email"`
	FirstName string `db:"first_name" json:"first_name"`
	LastName  string `db:"last_name" json:"last_name"`
	RoleName  string `db:"role_name" json:"role_name"`
}

// FullName returns the user's full name
func (u *CachedUser) FullName() string {
	return u.FirstName + " " + u.LastName
}

// UserCacheRepository handles user cache persistence
type UserCacheRepository struct {
	db *database.DB
}

// NewUserCacheRepository creates a new user cache repository
func NewUserCacheRepository(db *database.DB) *UserCacheRepository {
	return &UserCacheRepository{db: db}
}

// Set creates or updates a cached user
func (r *UserCacheRepository) Set(ctx context.Context, user *CachedUser) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	return r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			INSERT INTO cached_users (id, tenant_id, email, first_name, last_name, role_name, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW())
			ON CONFLICT (id)
			DO UPDATE SET email = $3, first_name = $4, last_name = $5, role_name = $6, updated_at = NOW()
		`

		_, err := r.db.ExecContext(ctx, query,
			user.ID, tenantID, user.Email, user.FirstName, user.LastName, user.RoleName)
		return err
	})
}

// Get gets a cached user by ID. Returns nil without error when the user is
// unknown; ledger writes fall back to an empty performer name.
func (r *UserCacheRepository) Get(ctx context.Context, userID string) (*CachedUser, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var user CachedUser
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `SELECT id, email, first_name, last_name, role_name FROM cached_users WHERE id = $1`
		return r.db.GetContext(ctx, &user, query, userID)
	})

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &user, nil
}

// Delete deletes a cached user
func (r *UserCacheRepository) Delete(ctx context.Context, userID string) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	return r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `DELETE FROM cached_users WHERE id = $1`
		_, err := r.db.ExecContext(ctx, query, userID)
		return err
	})
}
