package service

import (
	"time"

	"github.com/wardflow/wardflow-backend/internal/inventory/repository"
)

// Allocation records a planned draw of Quantity units from one batch.
type Allocation struct {
	Batch    *repository.Batch
	Quantity int
}

// allocateFEFO plans how to satisfy a draw of quantity units from the given
// batches, consuming earliest expiry first and splitting across batches as
// needed. Batches that are not active, empty, or expired relative to today
// are skipped even if the caller passed them in. Returns the allocation plan
// and the total stock that was available; when available < quantity the plan
// is empty and the caller must not mutate anything.
//
// The batches slice is expected in ascending expiry order, as returned by
// ListConsumableForUpdate. Allocation itself does not touch the database.
func allocateFEFO(batches []*repository.Batch, quantity int, today time.Time) ([]Allocation, int) {
	available := 0
	consumable := make([]*repository.Batch, 0, len(batches))
	for _, b := range batches {
		if b.Status != repository.BatchStatusActive || b.CurrentQuantity <= 0 {
			continue
		}
		if DaysUntilExpiry(today, b.ExpiryDate) < 0 {
			continue
		}
		consumable = append(consumable, b)
		available += b.CurrentQuantity
	}

	if quantity <= 0 || available < quantity {
		return nil, available
	}

	allocations := make([]Allocation, 0, len(consumable))
	remaining := quantity
	for _, b := range consumable {
		if remaining == 0 {
			break
		}
		take := b.CurrentQuantity
		if take > remaining {
			take = remaining
		}
		allocations = append(allocations, Allocation{Batch: b, Quantity: take})
		remaining -= take
	}

	return allocations, available
}
