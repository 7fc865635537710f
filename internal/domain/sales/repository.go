// Package sales implements the sale confirmation transaction: inventory
// consumption, coupon assignment, and payment fan-out as one atomic unit.
package sales

import (
	"context"

	"varejo/internal/core/entity"
	"varejo/internal/core/id"
)

// Repository defines the storage operations the confirmation needs.
// All mutating calls run inside the confirmation transaction.
type Repository interface {
	// GetSaleForUpdate loads the sale row with a row lock.
	GetSaleForUpdate(ctx context.Context, saleID id.ID) (*entity.Sale, error)

	// GetItems returns the sale's items.
	GetItems(ctx context.Context, saleID id.ID) ([]entity.SaleItem, error)

	// GetUnit loads a product unit (for the base-unit factor).
	GetUnit(ctx context.Context, unitID id.ID) (*entity.ProductUnit, error)

	// ConfirmSale sets status CONFIRMED and the coupon number.
	ConfirmSale(ctx context.Context, saleID id.ID, couponNumber int64) error

	// CreateMovement inserts an inventory movement row.
	CreateMovement(ctx context.Context, m *entity.InventoryMovement) error

	// CreatePayment inserts a settled payment row.
	CreatePayment(ctx context.Context, p *entity.Payment) error

	// CreateReceivables inserts a batch of receivables.
	CreateReceivables(ctx context.Context, rs []entity.Receivable) error

	// CreateFinanceEntry inserts a finance ledger entry.
	CreateFinanceEntry(ctx context.Context, e *entity.FinanceEntry) error
}

// CouponSequence hands out the next coupon number. The implementation must
// be atomic under concurrent confirmations (UPSERT-and-RETURNING counter);
// numbers are strictly increasing, gaps from rolled-back confirmations are
// acceptable.
type CouponSequence interface {
	Next(ctx context.Context) (int64, error)
}
