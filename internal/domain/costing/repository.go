// Package costing maintains per-product FIFO cost lots and computes
// consumption cost for sales.
package costing

import (
	"context"

	"varejo/internal/core/entity"
	"varejo/internal/core/id"
)

// Repository defines storage operations for cost lots and the inventory
// movements the costing boundary produces (purchase receipts).
type Repository interface {
	// OpenLotsForUpdate returns all lots for the product with remaining
	// quantity, ordered by created_at ascending, locked for update.
	// Must be called inside a transaction.
	OpenLotsForUpdate(ctx context.Context, productID id.ID) ([]entity.CostLot, error)

	// SetLotRemaining persists the decremented remaining quantity of a lot.
	SetLotRemaining(ctx context.Context, lotID id.ID, qtyRemainingBase int64) error

	// CreateLot inserts a new cost lot.
	CreateLot(ctx context.Context, lot *entity.CostLot) error

	// CreateMovement inserts an inventory movement row.
	CreateMovement(ctx context.Context, m *entity.InventoryMovement) error
}
