package entity

import (
	"time"

	"varejo/internal/core/id"
	"varejo/internal/core/types"
)

// MovementDirection of an inventory movement.
type MovementDirection string

const (
	MovementIn  MovementDirection = "IN"
	MovementOut MovementDirection = "OUT"
)

// MovementReason names the document that produced a movement.
type MovementReason string

const (
	ReasonSale       MovementReason = "SALE"
	ReasonPurchase   MovementReason = "PURCHASE"
	ReasonAdjustment MovementReason = "ADJUSTMENT"
)

// InventoryMovement records a stock change in base units.
// Movements are immutable after creation; corrections are new movements.
type InventoryMovement struct {
	ID         id.ID             `db:"id" json:"id"`
	ProductID  id.ID             `db:"product_id" json:"productId"`
	Direction  MovementDirection `db:"direction" json:"direction"`
	QtyBase    int64             `db:"qty_base" json:"qtyBase"`
	ReasonType MovementReason    `db:"reason_type" json:"reasonType"`
	ReasonID   id.ID             `db:"reason_id" json:"reasonId"`
	Date       time.Time         `db:"date" json:"date"`
	CreatedAt  time.Time         `db:"created_at" json:"createdAt"`
}

// CostLot is a batch of stock received at a specific unit cost.
// Lots are created by purchase receipt and consumed oldest-first by sales.
// QtyRemainingBase only decreases after creation and never goes negative.
type CostLot struct {
	ID               id.ID       `db:"id" json:"id"`
	ProductID        id.ID       `db:"product_id" json:"productId"`
	QtyInitialBase   int64       `db:"qty_initial_base" json:"qtyInitialBase"`
	QtyRemainingBase int64       `db:"qty_remaining_base" json:"qtyRemainingBase"`
	UnitCostBase     types.Money `db:"unit_cost_base" json:"unitCostBase"`
	CreatedAt        time.Time   `db:"created_at" json:"createdAt"`
}
