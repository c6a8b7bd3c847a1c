package service

import (
	"context"
	"time"

	"github.com/wardflow/wardflow-backend/pkg/database"
	"github.com/wardflow/wardflow-backend/pkg/logger"
	"github.com/wardflow/wardflow-backend/pkg/tenant"
)

// AlertScheduler runs alert scans periodically across all tenants.
// It queries the tenants table for active tenants and runs each scan with
// that tenant's context.
type AlertScheduler struct {
	scanner  *AlertScanner
	db       *database.DB
	interval time.Duration
	logger   *logger.Logger
	cancel   context.CancelFunc
}

// NewAlertScheduler creates a new alert scheduler
func NewAlertScheduler(scanner *AlertScanner, db *database.DB, interval time.Duration, log *logger.Logger) *AlertScheduler {
	return &AlertScheduler{
		scanner:  scanner,
		db:       db,
		interval: interval,
		logger:   log,
	}
}

// Start starts the scheduler in a background goroutine.
// One scan cycle runs immediately, then one per interval.
func (s *AlertScheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	go func() {
		s.logger.Info().Dur("interval", s.interval).Msg("alert scheduler started")

		s.runScanCycle(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info().Msg("alert scheduler stopped")
				return
			case <-ticker.C:
				s.runScanCycle(ctx)
			}
		}
	}()
}

// Stop stops the scheduler goroutine
func (s *AlertScheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *AlertScheduler) runScanCycle(ctx context.Context) {
	start := time.Now()

	tenantIDs, err := s.getActiveTenantIDs(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to query active tenants")
		return
	}

	for _, tenantID := range tenantIDs {
		tenantCtx := tenant.WithTenantID(ctx, tenantID)

		if err := s.scanner.ScanAll(tenantCtx); err != nil {
			s.logger.Error().Err(err).Str("tenant_id", tenantID).Msg("alert scan failed for tenant")
		}
	}

	s.logger.Info().
		Dur("duration", time.Since(start)).
		Int("tenant_count", len(tenantIDs)).
		Msg("alert scan cycle completed")
}

// getActiveTenantIDs reads the tenant list directly from the pool. The
// tenants table has no RLS policy, so no tenant context is needed.
func (s *AlertScheduler) getActiveTenantIDs(ctx context.Context) ([]string, error) {
	var tenantIDs []string
	query := `SELECT id FROM tenants WHERE is_active = TRUE`
	if err := s.db.DB.SelectContext(ctx, &tenantIDs, query); err != nil {
		return nil, err
	}
	return tenantIDs, nil
}
