package testutil

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/wardflow/wardflow-backend/pkg/database"
	"github.com/wardflow/wardflow-backend/pkg/logger"
	"github.com/wardflow/wardflow-backend/pkg/tenant"
)

var (
	// Global test container (shared across all integration tests)
	globalContainer *PostgresContainer
	globalDB        *sqlx.DB
	containerOnce   sync.Once
	containerErr    error
)

// TestTenant is a tenant row created for one test
type TestTenant struct {
	ID   string
	Slug string
	Name string
}

// IntegrationSuite provides a base for integration tests with real PostgreSQL.
// All tenant-scoped tables share one schema; isolation comes from RLS policies,
// so each test gets its own tenant row rather than its own schema.
type IntegrationSuite struct {
	Container *PostgresContainer
	RawDB     *sqlx.DB
	DB        *database.DB
	Fixtures  *FixtureFactory
	Logger    *logger.Logger
}

// NewIntegrationSuite creates a new integration test suite.
// Call this in TestMain to set up shared test infrastructure.
//
// Usage:
//
//	var suite *testutil.IntegrationSuite
//
//	func TestMain(m *testing.M) {
//	    ctx := context.Background()
//
//	    suite, err := testutil.NewIntegrationSuite(ctx)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer testutil.TerminateContainer(ctx)
//
//	    os.Exit(m.Run())
//	}
func NewIntegrationSuite(ctx context.Context) (*IntegrationSuite, error) {
	container, db, err := getOrCreateContainer(ctx)
	if err != nil {
		return nil, err
	}

	log := logger.New("test", "test")
	wrappedDB, err := database.NewWithDSN(container.DSN, log)
	if err != nil {
		return nil, err
	}

	if err := container.CreateSchema(ctx, db); err != nil {
		return nil, err
	}

	return &IntegrationSuite{
		Container: container,
		RawDB:     db,
		DB:        wrappedDB,
		Fixtures:  NewFixtureFactory(),
		Logger:    log,
	}, nil
}

func getOrCreateContainer(ctx context.Context) (*PostgresContainer, *sqlx.DB, error) {
	containerOnce.Do(func() {
		globalContainer, containerErr = NewPostgresContainer(ctx, DefaultPostgresConfig())
		if containerErr != nil {
			return
		}
		globalDB, containerErr = globalContainer.Connect(ctx)
	})

	return globalContainer, globalDB, containerErr
}

// SetupTenant creates a tenant row for a specific test.
// Each test should use its own tenant for isolation.
func (s *IntegrationSuite) SetupTenant(t *testing.T, ctx context.Context, name string) *TestTenant {
	t.Helper()

	tt := &TestTenant{
		ID:   uuid.New().String(),
		Slug: fmt.Sprintf("%s-%s", name, uuid.New().String()[:8]),
		Name: name,
	}

	_, err := s.RawDB.ExecContext(ctx,
		"INSERT INTO tenants (id, name, slug) VALUES ($1, $2, $3)",
		tt.ID, tt.Name, tt.Slug)
	if err != nil {
		t.Fatalf("failed to create tenant: %v", err)
	}

	t.Cleanup(func() {
		s.dropTenant(ctx, t, tt)
	})

	return tt
}

// dropTenant deletes the tenant and all its rows. Child tables first
// to satisfy foreign keys; RLS does not apply to the raw owner connection
// unless forced, so these run through per-tenant WHERE clauses.
func (s *IntegrationSuite) dropTenant(ctx context.Context, t *testing.T, tt *TestTenant) {
	tables := []string{
		"inventory_alerts",
		"stock_transactions",
		"item_batches",
		"inventory_items",
		"categories",
		"cached_users",
		"staff_members",
		"tenant_settings",
	}

	for _, table := range tables {
		query := fmt.Sprintf("DELETE FROM %s WHERE tenant_id = $1", table)
		if _, err := s.execAsTenant(ctx, tt.ID, query, tt.ID); err != nil {
			t.Logf("warning: failed to clean %s for tenant %s: %v", table, tt.Slug, err)
		}
	}

	if _, err := s.RawDB.ExecContext(ctx, "DELETE FROM tenants WHERE id = $1", tt.ID); err != nil {
		t.Logf("warning: failed to drop tenant %s: %v", tt.Slug, err)
	}
}

func (s *IntegrationSuite) execAsTenant(ctx context.Context, tenantID, query string, args ...interface{}) (int64, error) {
	tx, err := s.RawDB.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL app.current_tenant = '%s'", tenantID)); err != nil {
		return 0, err
	}

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	affected, _ := res.RowsAffected()

	return affected, tx.Commit()
}

// TenantContext returns a context carrying the tenant
func (s *IntegrationSuite) TenantContext(tt *TestTenant) context.Context {
	return tenant.WithTenantContext(context.Background(), tt.ID, tt.Slug)
}

// TerminateContainer terminates the shared container.
// Only call this in TestMain after all tests have completed.
func TerminateContainer(ctx context.Context) {
	if globalContainer != nil {
		globalContainer.Terminate(ctx)
	}
}

// UnitTestSuite provides a base for unit tests with mocked dependencies
type UnitTestSuite struct {
	MockDB   *MockDB
	Fixtures *FixtureFactory
	t        *testing.T
}

// NewUnitTestSuite creates a new unit test suite
func NewUnitTestSuite(t *testing.T) *UnitTestSuite {
	return &UnitTestSuite{
		MockDB:   NewMockDB(t),
		Fixtures: NewFixtureFactory(),
		t:        t,
	}
}

// Cleanup verifies expectations and cleans up
func (s *UnitTestSuite) Cleanup() {
	s.MockDB.ExpectationsWereMet(s.t)
	s.MockDB.Close()
}

// GetEnvOrDefault returns environment variable or default value
func GetEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// IsCI returns true if running in CI environment
func IsCI() bool {
	ciVars := []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL"}
	for _, v := range ciVars {
		if os.Getenv(v) != "" {
			return true
		}
	}
	return false
}
