// Package entity defines the persistent domain model shared by the sync
// service and the sale ledger.
package entity

import (
	"time"

	"github.com/shopspring/decimal"

	"varejo/internal/core/id"
	"varejo/internal/core/types"
)

// SaleStatus is the lifecycle state of a sale.
type SaleStatus string

const (
	SaleStatusDraft     SaleStatus = "DRAFT"
	SaleStatusConfirmed SaleStatus = "CONFIRMED"
	SaleStatusCancelled SaleStatus = "CANCELLED"
)

// Sale is a sales document. Drafts are editable and sync freely between
// devices; confirmation happens server-side and assigns the coupon number.
type Sale struct {
	ID           id.ID       `db:"id" json:"id"`
	CustomerID   *id.ID      `db:"customer_id" json:"customerId,omitempty"`
	Date         time.Time   `db:"date" json:"date"`
	Status       SaleStatus  `db:"status" json:"status"`
	CouponNumber *int64      `db:"coupon_number" json:"couponNumber,omitempty"`
	Total        types.Money `db:"total" json:"total"`
	CreatedAt    time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time   `db:"updated_at" json:"updatedAt"`
}

// IsDraft reports whether the sale can still be modified or confirmed.
func (s *Sale) IsDraft() bool {
	return s.Status == SaleStatusDraft
}

// SaleItem is one line of a sale. Qty is in the item's display unit;
// inventory arithmetic converts it to the product's base unit via the
// unit's factor.
type SaleItem struct {
	ID        id.ID           `db:"id" json:"id"`
	SaleID    id.ID           `db:"sale_id" json:"saleId"`
	ProductID id.ID           `db:"product_id" json:"productId"`
	UnitID    id.ID           `db:"unit_id" json:"unitId"`
	Qty       decimal.Decimal `db:"qty" json:"qty"`
	UnitPrice types.Money     `db:"unit_price" json:"unitPrice"`
	Total     types.Money     `db:"total" json:"total"`
}

// ProductUnit maps a sellable unit to the product's base unit.
// FactorToBase is fixed per unit: a box of 12 has factor 12, a kilogram of
// a gram-counted product has factor 1000.
type ProductUnit struct {
	ID           id.ID  `db:"id" json:"id"`
	ProductID    id.ID  `db:"product_id" json:"productId"`
	Name         string `db:"name" json:"name"`
	FactorToBase int64  `db:"factor_to_base" json:"factorToBase"`
}
