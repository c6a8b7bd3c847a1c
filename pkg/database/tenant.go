package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type txKey struct{}

// WithTenantRLS executes a function with RLS-based tenant isolation.
// This is the isolation mechanism for pooled multi-tenancy.
//
// Usage in repositories:
//
//	tenantID, err := tenant.TenantID(ctx)
//	if err != nil { return err }
//	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
//	    return r.db.GetContext(ctx, &item, "SELECT * FROM inventory_items WHERE id = $1", id)
//	})
//
// How it works:
//  1. Starts a transaction (or joins one already carried by the context,
//     which lets a service compose several repository calls atomically)
//  2. Sets "SET LOCAL app.current_tenant = '<tenant-uuid>'"
//  3. RLS policies filter rows automatically:
//     USING (tenant_id = current_setting('app.current_tenant')::uuid)
//  4. Commits the transaction (SET LOCAL is scoped to it, so pooled
//     connections hand back clean state)
func (db *DB) WithTenantRLS(ctx context.Context, tenantID string, fn func(context.Context) error) error {
	// Already inside a tenant transaction: run in place
	if db.getTx(ctx) != nil {
		return fn(ctx)
	}

	return db.Transaction(ctx, func(tx *sqlx.Tx) error {
		// Set tenant context for RLS policies.
		// NOTE: SET LOCAL doesn't support parameterized queries ($1), must use
		// fmt.Sprintf. Safe because tenantID is a UUID validated upstream.
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL app.current_tenant = '%s'", tenantID)); err != nil {
			return fmt.Errorf("failed to set app.current_tenant to %s: %w", tenantID, err)
		}

		// Store transaction in context so DB helpers route through it
		txCtx := context.WithValue(ctx, txKey{}, tx)

		return fn(txCtx)
	})
}

// getTx extracts a transaction from the context if present
func (db *DB) getTx(ctx context.Context) *sqlx.Tx {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return nil
}
