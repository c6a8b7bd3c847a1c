package database

import (
	"strings"

	"github.com/lib/pq"
	"github.com/wardflow/wardflow-backend/pkg/errors"
)

// MapPQError converts a PostgreSQL error to an AppError with meaningful messages.
// Returns nil if the error is not a pq.Error.
func MapPQError(err error) *errors.AppError {
	pqErr, ok := err.(*pq.Error)
	if !ok {
		return nil
	}

	switch pqErr.Code {
	// Check constraint violation (23514)
	case "23514":
		return mapCheckConstraint(pqErr)

	// Unique constraint violation (23505)
	case "23505":
		return errors.Conflict(formatConstraintMessage(pqErr))

	// Foreign key violation (23503)
	case "23503":
		return errors.BadRequest("referenced record does not exist")

	// Not null violation (23502)
	case "23502":
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{
			col: "must not be empty",
		})

	default:
		return nil
	}
}

// mapCheckConstraint maps specific CHECK constraint names to user-friendly messages.
func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "quantity_non_negative"):
		return errors.Validation(map[string]string{
			"quantity": "must not be negative",
		})

	case strings.Contains(constraint, "quantity_within_initial"):
		return errors.Validation(map[string]string{
			"current_quantity": "must not exceed the initial batch quantity",
		})

	case strings.Contains(constraint, "batch_status_valid"):
		return errors.Validation(map[string]string{
			"status": "must be one of: active, depleted, expired",
		})

	case strings.Contains(constraint, "transaction_type_valid"):
		return errors.Validation(map[string]string{
			"type": "must be one of: IN, OUT, ADJUSTMENT",
		})

	default:
		return errors.BadRequest("data validation failed: " + constraint)
	}
}

// formatConstraintMessage creates a user-friendly message for unique constraint violations.
func formatConstraintMessage(pqErr *pq.Error) string {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "batch_number"):
		return "a batch with this batch number already exists for this item"
	case strings.Contains(constraint, "sku"):
		return "an item with this SKU already exists"
	case strings.Contains(constraint, "category") && strings.Contains(constraint, "name"):
		return "a category with this name already exists"
	case strings.Contains(constraint, "email"):
		return "a staff member with this email already exists"
	default:
		return "a record with these values already exists"
	}
}
