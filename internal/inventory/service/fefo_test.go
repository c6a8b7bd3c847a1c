package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardflow/wardflow-backend/internal/inventory/repository"
)

func fefoBatch(id string, qty int, expiresIn int, today time.Time) *repository.Batch {
	return &repository.Batch{
		ID:              id,
		BatchNumber:     "B-" + id,
		CurrentQuantity: qty,
		InitialQuantity: qty,
		ExpiryDate:      today.AddDate(0, 0, expiresIn),
		Status:          repository.BatchStatusActive,
	}
}

func TestAllocateFEFO(t *testing.T) {
	today := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	t.Run("single batch covers the draw", func(t *testing.T) {
		batches := []*repository.Batch{fefoBatch("a", 10, 5, today)}

		allocs, available := allocateFEFO(batches, 4, today)
		require.Len(t, allocs, 1)
		assert.Equal(t, 10, available)
		assert.Equal(t, "a", allocs[0].Batch.ID)
		assert.Equal(t, 4, allocs[0].Quantity)
	})

	t.Run("splits across batches in expiry order", func(t *testing.T) {
		batches := []*repository.Batch{
			fefoBatch("soon", 3, 2, today),
			fefoBatch("later", 10, 30, today),
		}

		allocs, available := allocateFEFO(batches, 7, today)
		require.Len(t, allocs, 2)
		assert.Equal(t, 13, available)
		assert.Equal(t, "soon", allocs[0].Batch.ID)
		assert.Equal(t, 3, allocs[0].Quantity)
		assert.Equal(t, "later", allocs[1].Batch.ID)
		assert.Equal(t, 4, allocs[1].Quantity)
	})

	t.Run("exact depletion stops at the boundary", func(t *testing.T) {
		batches := []*repository.Batch{
			fefoBatch("a", 5, 2, today),
			fefoBatch("b", 5, 30, today),
		}

		allocs, _ := allocateFEFO(batches, 5, today)
		require.Len(t, allocs, 1)
		assert.Equal(t, "a", allocs[0].Batch.ID)
		assert.Equal(t, 5, allocs[0].Quantity)
	})

	t.Run("skips expired batches", func(t *testing.T) {
		batches := []*repository.Batch{
			fefoBatch("expired", 100, -1, today),
			fefoBatch("fresh", 6, 10, today),
		}

		allocs, available := allocateFEFO(batches, 5, today)
		require.Len(t, allocs, 1)
		assert.Equal(t, 6, available)
		assert.Equal(t, "fresh", allocs[0].Batch.ID)
	})

	t.Run("skips non-active and empty batches", func(t *testing.T) {
		depleted := fefoBatch("depleted", 0, 10, today)
		depleted.Status = repository.BatchStatusDepleted
		marked := fefoBatch("marked", 8, 10, today)
		marked.Status = repository.BatchStatusExpired

		batches := []*repository.Batch{depleted, marked, fefoBatch("ok", 5, 20, today)}

		allocs, available := allocateFEFO(batches, 5, today)
		require.Len(t, allocs, 1)
		assert.Equal(t, 5, available)
		assert.Equal(t, "ok", allocs[0].Batch.ID)
	})

	t.Run("insufficient stock returns no plan", func(t *testing.T) {
		batches := []*repository.Batch{fefoBatch("a", 5, 10, today)}

		allocs, available := allocateFEFO(batches, 6, today)
		assert.Nil(t, allocs)
		assert.Equal(t, 5, available)
	})

	t.Run("batch expiring today is still consumable", func(t *testing.T) {
		batches := []*repository.Batch{fefoBatch("today", 3, 0, today)}

		allocs, available := allocateFEFO(batches, 3, today)
		require.Len(t, allocs, 1)
		assert.Equal(t, 3, available)
	})

	t.Run("non-positive draw returns no plan", func(t *testing.T) {
		batches := []*repository.Batch{fefoBatch("a", 5, 10, today)}

		allocs, _ := allocateFEFO(batches, 0, today)
		assert.Nil(t, allocs)
	})
}
