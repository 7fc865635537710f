package sales

import (
	"time"

	"varejo/internal/core/entity"
	"varejo/internal/core/id"
	"varejo/internal/core/types"
)

// PaymentInput is one payment leg of a confirmation request.
type PaymentInput struct {
	Method    entity.PaymentMethod `json:"method"`
	Amount    types.Money          `json:"amount"`
	AccountID id.ID                `json:"accountId"`

	// Installments applies to CREDIT_CARD (1 = immediate settlement) and to
	// deferred methods (number of receivables to generate, minimum 1).
	Installments int `json:"installments"`

	// IntervalDays is the gap between deferred installments. Defaults to 30.
	// Credit card installments always use a fixed 30-day interval.
	IntervalDays int `json:"intervalDays"`
}

// ConfirmInput are the inputs of the confirmation transaction. Items and the
// customer come from the sale rows already synced or created on the server.
type ConfirmInput struct {
	SaleID   id.ID          `json:"saleId"`
	Payments []PaymentInput `json:"payments"`
	SaleDate time.Time      `json:"saleDate"`
	DeviceID string         `json:"deviceId"`
}

// ConfirmResult reports the outcome of a successful confirmation.
type ConfirmResult struct {
	SaleID       id.ID       `json:"saleId"`
	CouponNumber int64       `json:"couponNumber"`
	CostOfGoods  types.Money `json:"costOfGoods"`
	Receivables  int         `json:"receivables"`
	Payments     int         `json:"payments"`
}
