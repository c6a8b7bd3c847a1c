package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wardflow/wardflow-backend/pkg/database"
	"github.com/wardflow/wardflow-backend/pkg/tenant"
)

// Transaction types for the stock ledger
const (
	TransactionIn         = "IN"
	TransactionOut        = "OUT"
	TransactionAdjustment = "ADJUSTMENT"
)

// StockTransaction is one immutable ledger entry. Quantity is signed:
// positive for IN, negative for OUT, either sign for ADJUSTMENT.
// ResultingStock is the item's stock level after this entry applied.
type StockTransaction struct {
	ID              string    `db:"id" json:"id"`
	ItemID          string    `db:"item_id" json:"item_id"`
	BatchID         *string   `db:"batch_id" json:"batch_id,omitempty"`
	Type            string    `db:"type" json:"type"`
	Quantity        int       `db:"quantity" json:"quantity"`
	ResultingStock  int       `db:"resulting_stock" json:"resulting_stock"`
	PerformedBy     string    `db:"performed_by" json:"performed_by"`
	PerformedByName string    `db:"performed_by_name" json:"performed_by_name"`
	Reason          string    `db:"reason" json:"reason"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`

	// Batch detail, joined into list reads so clients need no second fetch
	ItemName    string     `db:"item_name" json:"item_name,omitempty"`
	BatchNumber *string    `db:"batch_number" json:"batch_number,omitempty"`
	BatchExpiry *time.Time `db:"batch_expiry" json:"batch_expiry,omitempty"`
}

// TransactionFilter narrows ledger reads
type TransactionFilter struct {
	ItemID  string
	BatchID string
	Type    string
	From    *time.Time
	To      *time.Time
}

// TransactionRepository handles the stock ledger. Entries are created once
// and never updated or deleted.
type TransactionRepository struct {
	db *database.DB
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *database.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create appends a ledger entry
func (r *TransactionRepository) Create(ctx context.Context, tx *StockTransaction) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}

	return r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			INSERT INTO stock_transactions (
				id, tenant_id, item_id, batch_id, type, quantity,
				resulting_stock, performed_by, performed_by_name, reason
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING created_at
		`

		err := r.db.QueryRowxContext(ctx, query,
			tx.ID, tenantID, tx.ItemID, tx.BatchID, tx.Type, tx.Quantity,
			tx.ResultingStock, tx.PerformedBy, tx.PerformedByName, tx.Reason,
		).Scan(&tx.CreatedAt)
		if err != nil {
			if appErr := database.MapPQError(err); appErr != nil {
				return appErr
			}
			return err
		}
		return nil
	})
}

// List reads the ledger newest first, with batch and item detail joined in
func (r *TransactionRepository) List(ctx context.Context, page, perPage int, filter TransactionFilter) ([]*StockTransaction, int64, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, 0, err
	}

	var total int64
	var txs []*StockTransaction

	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		where := ""
		args := []interface{}{}
		n := 0

		next := func() string {
			n++
			return fmt.Sprintf("$%d", n)
		}

		if filter.ItemID != "" {
			where += " AND t.item_id = " + next()
			args = append(args, filter.ItemID)
		}
		if filter.BatchID != "" {
			where += " AND t.batch_id = " + next()
			args = append(args, filter.BatchID)
		}
		if filter.Type != "" {
			where += " AND t.type = " + next()
			args = append(args, filter.Type)
		}
		if filter.From != nil {
			where += " AND t.created_at >= " + next()
			args = append(args, *filter.From)
		}
		if filter.To != nil {
			where += " AND t.created_at <= " + next()
			args = append(args, *filter.To)
		}

		countQuery := `SELECT COUNT(*) FROM stock_transactions t WHERE TRUE` + where
		if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
			return err
		}

		offset := (page - 1) * perPage
		query := `
			SELECT t.id, t.item_id, t.batch_id, t.type, t.quantity, t.resulting_stock,
			       t.performed_by, t.performed_by_name, t.reason, t.created_at,
			       i.name AS item_name, b.batch_number, b.expiry_date AS batch_expiry
			FROM stock_transactions t
			JOIN inventory_items i ON i.id = t.item_id
			LEFT JOIN item_batches b ON b.id = t.batch_id
			WHERE TRUE` + where + `
			ORDER BY t.created_at DESC
			LIMIT ` + next()
		args = append(args, perPage)
		query += ` OFFSET ` + next()
		args = append(args, offset)

		return r.db.SelectContext(ctx, &txs, query, args...)
	})

	if err != nil {
		return nil, 0, err
	}

	return txs, total, nil
}
