package repository_test

import (
	"context"
	"flag"
	"log"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardflow/wardflow-backend/internal/settings/repository"
	"github.com/wardflow/wardflow-backend/pkg/errors"
	"github.com/wardflow/wardflow-backend/pkg/testutil"
)

var suite *testutil.IntegrationSuite

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(0)
	}

	ctx := context.Background()

	var err error
	suite, err = testutil.NewIntegrationSuite(ctx)
	if err != nil {
		log.Fatalf("failed to create integration suite: %v", err)
	}
	defer testutil.TerminateContainer(ctx)

	os.Exit(m.Run())
}

func TestSettingsRepository_GetReturnsDefaultsWhenUnsaved(t *testing.T) {
	ctx := context.Background()
	tenant := suite.SetupTenant(t, ctx, "settings-defaults")
	tenantCtx := suite.TenantContext(tenant)

	repo := repository.NewSettingsRepository(suite.DB)

	settings, err := repo.Get(tenantCtx)
	require.NoError(t, err)
	assert.Equal(t, tenant.ID, settings.TenantID)
	assert.Equal(t, repository.DefaultExpirySoonDays, settings.ExpirySoonDays)
	assert.Equal(t, repository.DefaultExpiryLaterDays, settings.ExpiryLaterDays)
	assert.Equal(t, repository.DefaultLowStockThreshold, settings.LowStockThreshold)
}

func TestSettingsRepository_UpsertCreatesThenUpdates(t *testing.T) {
	ctx := context.Background()
	tenant := suite.SetupTenant(t, ctx, "settings-upsert")
	tenantCtx := suite.TenantContext(tenant)

	repo := repository.NewSettingsRepository(suite.DB)

	settings := &repository.TenantSettings{
		HospitalName:      "St. Example General",
		ContactEmail:      "ops@example.org",
		ExpirySoonDays:    14,
		ExpiryLaterDays:   60,
		LowStockThreshold: 5,
	}
	require.NoError(t, repo.Upsert(tenantCtx, settings))
	assert.Equal(t, tenant.ID, settings.TenantID)
	assert.False(t, settings.CreatedAt.IsZero())

	settings.ExpirySoonDays = 21
	require.NoError(t, repo.Upsert(tenantCtx, settings))

	got, err := repo.Get(tenantCtx)
	require.NoError(t, err)
	assert.Equal(t, "St. Example General", got.HospitalName)
	assert.Equal(t, 21, got.ExpirySoonDays)
	assert.Equal(t, 60, got.ExpiryLaterDays)

	soon, later, err := repo.ExpiryWindows(tenantCtx)
	require.NoError(t, err)
	assert.Equal(t, 21, soon)
	assert.Equal(t, 60, later)

	threshold, err := repo.LowStockThreshold(tenantCtx)
	require.NoError(t, err)
	assert.Equal(t, 5, threshold)
}

func TestSettingsRepository_RejectsInvertedWindows(t *testing.T) {
	ctx := context.Background()
	tenant := suite.SetupTenant(t, ctx, "settings-invalid")
	tenantCtx := suite.TenantContext(tenant)

	repo := repository.NewSettingsRepository(suite.DB)

	err := repo.Upsert(tenantCtx, &repository.TenantSettings{
		ExpirySoonDays:    90,
		ExpiryLaterDays:   30,
		LowStockThreshold: 10,
	})
	require.Error(t, err)

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
}
