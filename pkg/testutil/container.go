// Package testutil provides testing utilities for the WardFlow backend.
// It includes testcontainers for PostgreSQL, tenant context helpers,
// mock factories, and common test fixtures.
package testutil

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresContainer wraps a testcontainers PostgreSQL instance
type PostgresContainer struct {
	*postgres.PostgresContainer
	DSN string
}

// PostgresContainerConfig configures the test PostgreSQL container
type PostgresContainerConfig struct {
	Database string
	Username string
	Password string
	Image    string // Optional: defaults to postgres:15-alpine
}

// DefaultPostgresConfig returns sensible defaults for test containers
func DefaultPostgresConfig() PostgresContainerConfig {
	return PostgresContainerConfig{
		Database: "wardflow_test",
		Username: "test",
		Password: "test",
		Image:    "postgres:15-alpine",
	}
}

// NewPostgresContainer creates a new PostgreSQL test container.
//
// Usage:
//
//	func TestMain(m *testing.M) {
//	    ctx := context.Background()
//	    container, err := testutil.NewPostgresContainer(ctx, testutil.DefaultPostgresConfig())
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer container.Terminate(ctx)
//
//	    code := m.Run()
//	    os.Exit(code)
//	}
func NewPostgresContainer(ctx context.Context, cfg PostgresContainerConfig) (*PostgresContainer, error) {
	if cfg.Image == "" {
		cfg.Image = "postgres:15-alpine"
	}
	if cfg.Database == "" {
		cfg.Database = "wardflow_test"
	}
	if cfg.Username == "" {
		cfg.Username = "test"
	}
	if cfg.Password == "" {
		cfg.Password = "test"
	}

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage(cfg.Image),
		postgres.WithDatabase(cfg.Database),
		postgres.WithUsername(cfg.Username),
		postgres.WithPassword(cfg.Password),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	return &PostgresContainer{
		PostgresContainer: container,
		DSN:               dsn,
	}, nil
}

// Connect returns a sqlx.DB connection to the container
func (c *PostgresContainer) Connect(ctx context.Context) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", c.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to test database: %w", err)
	}
	return db, nil
}

// Terminate stops and removes the container
func (c *PostgresContainer) Terminate(ctx context.Context) error {
	return c.PostgresContainer.Terminate(ctx)
}

// CreateSchema creates all application tables with row level security
// policies keyed on app.current_tenant. Mirrors the production migrations.
func (c *PostgresContainer) CreateSchema(ctx context.Context, db *sqlx.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS tenants (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			name VARCHAR(255) NOT NULL,
			slug VARCHAR(100) UNIQUE NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS categories (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			tenant_id UUID NOT NULL REFERENCES tenants(id),
			name VARCHAR(255) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT uq_categories_name UNIQUE (tenant_id, name)
		);

		CREATE TABLE IF NOT EXISTS inventory_items (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			tenant_id UUID NOT NULL REFERENCES tenants(id),
			name VARCHAR(255) NOT NULL,
			sku VARCHAR(100) NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			category_id UUID REFERENCES categories(id),
			unit VARCHAR(50) NOT NULL DEFAULT 'unit',
			reorder_level INT NOT NULL DEFAULT 0,
			cost_per_unit_cents INT NOT NULL DEFAULT 0,
			current_stock INT NOT NULL DEFAULT 0,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT stock_non_negative CHECK (current_stock >= 0)
		);
		CREATE UNIQUE INDEX IF NOT EXISTS uq_items_sku
			ON inventory_items (tenant_id, sku) WHERE sku <> '';

		CREATE TABLE IF NOT EXISTS item_batches (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			tenant_id UUID NOT NULL REFERENCES tenants(id),
			item_id UUID NOT NULL REFERENCES inventory_items(id) ON DELETE CASCADE,
			batch_number VARCHAR(100) NOT NULL,
			initial_quantity INT NOT NULL,
			current_quantity INT NOT NULL,
			unit_cost_cents INT NOT NULL DEFAULT 0,
			expiry_date DATE NOT NULL,
			received_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			status VARCHAR(20) NOT NULL DEFAULT 'active',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT uq_batches_batch_number UNIQUE (tenant_id, item_id, batch_number),
			CONSTRAINT quantity_non_negative CHECK (current_quantity >= 0),
			CONSTRAINT quantity_within_initial CHECK (current_quantity <= initial_quantity),
			CONSTRAINT batch_status_valid CHECK (status IN ('active', 'depleted', 'expired'))
		);

		CREATE TABLE IF NOT EXISTS stock_transactions (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			tenant_id UUID NOT NULL REFERENCES tenants(id),
			item_id UUID NOT NULL REFERENCES inventory_items(id) ON DELETE CASCADE,
			batch_id UUID REFERENCES item_batches(id),
			type VARCHAR(20) NOT NULL,
			quantity INT NOT NULL,
			resulting_stock INT NOT NULL,
			performed_by VARCHAR(255) NOT NULL DEFAULT '',
			performed_by_name VARCHAR(255) NOT NULL DEFAULT '',
			reason TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT transaction_type_valid CHECK (type IN ('IN', 'OUT', 'ADJUSTMENT'))
		);

		CREATE TABLE IF NOT EXISTS inventory_alerts (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			tenant_id UUID NOT NULL REFERENCES tenants(id),
			alert_type VARCHAR(50) NOT NULL,
			severity VARCHAR(20) NOT NULL,
			message TEXT NOT NULL,
			item_id UUID NOT NULL REFERENCES inventory_items(id) ON DELETE CASCADE,
			item_name VARCHAR(255) NOT NULL DEFAULT '',
			batch_id UUID REFERENCES item_batches(id) ON DELETE CASCADE,
			batch_number VARCHAR(100),
			expiry_date DATE,
			days_until_expiry INT,
			current_stock INT,
			reorder_level INT,
			is_acknowledged BOOLEAN NOT NULL DEFAULT FALSE,
			acknowledged_by VARCHAR(255),
			acknowledged_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS cached_users (
			id UUID PRIMARY KEY,
			tenant_id UUID NOT NULL REFERENCES tenants(id),
			email VARCHAR(255) NOT NULL,
			first_name VARCHAR(255) NOT NULL DEFAULT '',
			last_name VARCHAR(255) NOT NULL DEFAULT '',
			role_name VARCHAR(100) NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT uq_cached_users_email UNIQUE (tenant_id, email)
		);

		CREATE TABLE IF NOT EXISTS staff_members (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			tenant_id UUID NOT NULL REFERENCES tenants(id),
			name VARCHAR(255) NOT NULL,
			role VARCHAR(100) NOT NULL DEFAULT '',
			specialty VARCHAR(255) NOT NULL DEFAULT '',
			department VARCHAR(255) NOT NULL DEFAULT '',
			email VARCHAR(255) NOT NULL DEFAULT '',
			phone VARCHAR(50) NOT NULL DEFAULT '',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE UNIQUE INDEX IF NOT EXISTS uq_staff_members_email
			ON staff_members (tenant_id, email) WHERE email <> '';

		CREATE TABLE IF NOT EXISTS tenant_settings (
			tenant_id UUID PRIMARY KEY REFERENCES tenants(id),
			hospital_name VARCHAR(255) NOT NULL DEFAULT '',
			address TEXT NOT NULL DEFAULT '',
			contact_email VARCHAR(255) NOT NULL DEFAULT '',
			contact_phone VARCHAR(50) NOT NULL DEFAULT '',
			expiry_soon_days INT NOT NULL DEFAULT 30,
			expiry_later_days INT NOT NULL DEFAULT 90,
			low_stock_threshold INT NOT NULL DEFAULT 10,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT expiry_windows_valid CHECK (expiry_soon_days > 0 AND expiry_later_days >= expiry_soon_days)
		);
	`

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return c.enableRLS(ctx, db)
}

// enableRLS turns on row level security for every tenant-scoped table.
// FORCE makes policies apply to the table owner too, which is what the
// test connection runs as.
func (c *PostgresContainer) enableRLS(ctx context.Context, db *sqlx.DB) error {
	tables := []string{
		"categories",
		"inventory_items",
		"item_batches",
		"stock_transactions",
		"inventory_alerts",
		"cached_users",
		"staff_members",
		"tenant_settings",
	}

	for _, table := range tables {
		stmts := fmt.Sprintf(`
			ALTER TABLE %[1]s ENABLE ROW LEVEL SECURITY;
			ALTER TABLE %[1]s FORCE ROW LEVEL SECURITY;
			DROP POLICY IF EXISTS tenant_isolation ON %[1]s;
			CREATE POLICY tenant_isolation ON %[1]s
				USING (tenant_id = current_setting('app.current_tenant')::uuid)
				WITH CHECK (tenant_id = current_setting('app.current_tenant')::uuid);
		`, table)

		if _, err := db.ExecContext(ctx, stmts); err != nil {
			return fmt.Errorf("failed to enable RLS on %s: %w", table, err)
		}
	}

	return nil
}
