package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReceiptRequest records a purchase receipt creating one cost lot.
type ReceiptRequest struct {
	ProductID    string          `json:"productId" binding:"required"`
	QtyBase      int64           `json:"qtyBase" binding:"required"`
	UnitCostBase decimal.Decimal `json:"unitCostBase" binding:"required"`
	PurchaseID   string          `json:"purchaseId" binding:"required"`
	Date         *time.Time      `json:"date"`
}

// ReceiptResponse describes the created lot.
type ReceiptResponse struct {
	LotID            string          `json:"lotId"`
	ProductID        string          `json:"productId"`
	QtyInitialBase   int64           `json:"qtyInitialBase"`
	QtyRemainingBase int64           `json:"qtyRemainingBase"`
	UnitCostBase     decimal.Decimal `json:"unitCostBase"`
}
