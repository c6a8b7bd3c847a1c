package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/wardflow/wardflow-backend/pkg/database"
	"github.com/wardflow/wardflow-backend/pkg/tenant"
)

// Default policy values used when a tenant has never saved settings.
const (
	DefaultExpirySoonDays    = 30
	DefaultExpiryLaterDays   = 90
	DefaultLowStockThreshold = 10
)

// TenantSettings is the per-tenant hospital profile and inventory policy
type TenantSettings struct {
	TenantID          string    `db:"tenant_id" json:"tenant_id"`
	HospitalName      string    `db:"hospital_name" json:"hospital_name"`
	Address           string    `db:"address" json:"address"`
	ContactEmail      string    `db:"contact_email" json:"contact_email"`
	ContactPhone      string    `db:"contact_phone" json:"contact_phone"`
	ExpirySoonDays    int       `db:"expiry_soon_days" json:"expiry_soon_days"`
	ExpiryLaterDays   int       `db:"expiry_later_days" json:"expiry_later_days"`
	LowStockThreshold int       `db:"low_stock_threshold" json:"low_stock_threshold"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// SettingsRepository handles tenant settings persistence
type SettingsRepository struct {
	db *database.DB
}

// NewSettingsRepository creates a new settings repository
func NewSettingsRepository(db *database.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get returns the tenant's settings, or the defaults when none were saved yet
func (r *SettingsRepository) Get(ctx context.Context) (*TenantSettings, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	settings := &TenantSettings{}
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			SELECT tenant_id, hospital_name, address, contact_email, contact_phone,
				expiry_soon_days, expiry_later_days, low_stock_threshold,
				created_at, updated_at
			FROM tenant_settings
			WHERE tenant_id = $1`
		return r.db.GetContext(ctx, settings, query, tenantID)
	})
	if err == sql.ErrNoRows {
		return defaultSettings(tenantID), nil
	}
	if err != nil {
		return nil, err
	}

	return settings, nil
}

// Upsert saves the tenant's settings, creating the row on first save
func (r *SettingsRepository) Upsert(ctx context.Context, settings *TenantSettings) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}
	settings.TenantID = tenantID

	return r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			INSERT INTO tenant_settings (
				tenant_id, hospital_name, address, contact_email, contact_phone,
				expiry_soon_days, expiry_later_days, low_stock_threshold
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (tenant_id) DO UPDATE SET
				hospital_name = EXCLUDED.hospital_name,
				address = EXCLUDED.address,
				contact_email = EXCLUDED.contact_email,
				contact_phone = EXCLUDED.contact_phone,
				expiry_soon_days = EXCLUDED.expiry_soon_days,
				expiry_later_days = EXCLUDED.expiry_later_days,
				low_stock_threshold = EXCLUDED.low_stock_threshold,
				updated_at = NOW()
			RETURNING created_at, updated_at`

		row := r.db.QueryRowxContext(ctx, query,
			settings.TenantID, settings.HospitalName, settings.Address,
			settings.ContactEmail, settings.ContactPhone,
			settings.ExpirySoonDays, settings.ExpiryLaterDays, settings.LowStockThreshold,
		)
		if err := row.Scan(&settings.CreatedAt, &settings.UpdatedAt); err != nil {
			if appErr := database.MapPQError(err); appErr != nil {
				return appErr
			}
			return err
		}
		return nil
	})
}

// ExpiryWindows returns the tenant's expiry warning thresholds in days
func (r *SettingsRepository) ExpiryWindows(ctx context.Context) (soonDays, laterDays int, err error) {
	settings, err := r.Get(ctx)
	if err != nil {
		return 0, 0, err
	}
	return settings.ExpirySoonDays, settings.ExpiryLaterDays, nil
}

// LowStockThreshold returns the tenant's fallback low-stock threshold for
// items without a reorder level
func (r *SettingsRepository) LowStockThreshold(ctx context.Context) (int, error) {
	settings, err := r.Get(ctx)
	if err != nil {
		return 0, err
	}
	return settings.LowStockThreshold, nil
}

func defaultSettings(tenantID string) *TenantSettings {
	return &TenantSettings{
		TenantID:          tenantID,
		ExpirySoonDays:    DefaultExpirySoonDays,
		ExpiryLaterDays:   DefaultExpiryLaterDays,
		LowStockThreshold: DefaultLowStockThreshold,
	}
}
