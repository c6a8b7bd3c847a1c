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

// StaffMember is a directory entry for hospital staff
type StaffMember struct {
	ID         string    `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	Role       string    `db:"role" json:"role"`
	Specialty  string    `db:"specialty" json:"specialty"`
	Department string    `db:"department" json:"department"`
	Email      string    `db:"email" json:"email"`
	Phone      string    `db:"phone" json:"phone"`
	IsActive   bool      `db:"is_active" json:"is_active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// StaffFilter narrows staff list queries
type StaffFilter struct {
	Role            string
	Specialty       string
	Department      string
	Search          string
	IncludeArchived bool
}

const staffColumns = `id, name, role, specialty, department, email, phone, is_active, created_at, updated_at`

// StaffRepository handles staff directory persistence
type StaffRepository struct {
	db *database.DB
}

// NewStaffRepository creates a new staff repository
func NewStaffRepository(db *database.DB) *StaffRepository {
	return &StaffRepository{db: db}
}

// Create creates a new staff member
func (r *StaffRepository) Create(ctx context.Context, member *StaffMember) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	if member.ID == "" {
		member.ID = uuid.New().String()
	}

	return r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			INSERT INTO staff_members (
				id, tenant_id, name, role, specialty, department, email, phone, is_active
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING created_at, updated_at
		`

		err := r.db.QueryRowxContext(ctx, query,
			member.ID, tenantID, member.Name, member.Role, member.Specialty,
			member.Department, member.Email, member.Phone, member.IsActive,
		).Scan(&member.CreatedAt, &member.UpdatedAt)
		if err != nil {
			if appErr := database.MapPQError(err); appErr != nil {
				return appErr
			}
			return err
		}
		return nil
	})
}

// GetByID gets a staff member by ID
func (r *StaffRepository) GetByID(ctx context.Context, id string) (*StaffMember, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var member StaffMember
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `SELECT ` + staffColumns + ` FROM staff_members WHERE id = $1`
		return r.db.GetContext(ctx, &member, query, id)
	})

	if err == sql.ErrNoRows {
		return nil, errors.NotFound("staff member")
	}
	if err != nil {
		return nil, err
	}

	return &member, nil
}

// List lists staff members with filters and pagination
func (r *StaffRepository) List(ctx context.Context, page, perPage int, filter StaffFilter) ([]*StaffMember, int64, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, 0, err
	}

	members := []*StaffMember{}
	var total int64
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		where := `WHERE TRUE`
		args := []interface{}{}
		n := 0
		next := func() string {
			n++
			return fmt.Sprintf("$%d", n)
		}

		if !filter.IncludeArchived {
			where += ` AND is_active = TRUE`
		}
		if filter.Role != "" {
			where += ` AND role = ` + next()
			args = append(args, filter.Role)
		}
		if filter.Specialty != "" {
			where += ` AND specialty = ` + next()
			args = append(args, filter.Specialty)
		}
		if filter.Department != "" {
			where += ` AND department = ` + next()
			args = append(args, filter.Department)
		}
		if filter.Search != "" {
			p := next()
			where += fmt.Sprintf(` AND (name ILIKE %s OR email ILIKE %s)`, p, p)
			args = append(args, "%"+filter.Search+"%")
		}

		countQuery := `SELECT COUNT(*) FROM staff_members ` + where
		if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
			return err
		}

		listQuery := fmt.Sprintf(
			`SELECT %s FROM staff_members %s ORDER BY name LIMIT %s OFFSET %s`,
			staffColumns, where, next(), next(),
		)
		args = append(args, perPage, (page-1)*perPage)

		return r.db.SelectContext(ctx, &members, listQuery, args...)
	})
	if err != nil {
		return nil, 0, err
	}

	return members, total, nil
}

// GetAll lists every staff member for export, archived included
func (r *StaffRepository) GetAll(ctx context.Context) ([]*StaffMember, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	members := []*StaffMember{}
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `SELECT ` + staffColumns + ` FROM staff_members ORDER BY name`
		return r.db.SelectContext(ctx, &members, query)
	})
	if err != nil {
		return nil, err
	}

	return members, nil
}

// Update updates a staff member's profile fields
func (r *StaffRepository) Update(ctx context.Context, member *StaffMember) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	return r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			UPDATE staff_members
			SET name = $2, role = $3, specialty = $4, department = $5,
				email = $6, phone = $7, updated_at = NOW()
			WHERE id = $1
			RETURNING updated_at
		`

		err := r.db.QueryRowxContext(ctx, query,
			member.ID, member.Name, member.Role, member.Specialty,
			member.Department, member.Email, member.Phone,
		).Scan(&member.UpdatedAt)
		if err == sql.ErrNoRows {
			return errors.NotFound("staff member")
		}
		if err != nil {
			if appErr := database.MapPQError(err); appErr != nil {
				return appErr
			}
		}
		return err
	})
}

// SetActive flips the archive flag. Zero rows affected means the member was
// missing or already in the requested state.
func (r *StaffRepository) SetActive(ctx context.Context, id string, active bool) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	return r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			UPDATE staff_members SET is_active = $2, updated_at = NOW()
			WHERE id = $1 AND is_active = $3
		`

		result, err := r.db.ExecContext(ctx, query, id, active, !active)
		if err != nil {
			return err
		}

		affected, _ := result.RowsAffected()
		if affected == 0 {
			return errors.NotFound("staff member")
		}

		return nil
	})
}
