package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ConfirmPayment is one payment leg of a confirmation request.
type ConfirmPayment struct {
	Method       string          `json:"method" binding:"required"`
	Amount       decimal.Decimal `json:"amount" binding:"required"`
	AccountID    string          `json:"accountId" binding:"required"`
	Installments int             `json:"installments"`
	IntervalDays int             `json:"intervalDays"`
}

// ConfirmSaleRequest confirms a draft sale.
type ConfirmSaleRequest struct {
	Payments []ConfirmPayment `json:"payments" binding:"required"`
	SaleDate *time.Time       `json:"saleDate"`
}

// ConfirmSaleResponse reports the confirmation outcome.
type ConfirmSaleResponse struct {
	SaleID       string          `json:"saleId"`
	CouponNumber int64           `json:"couponNumber"`
	CostOfGoods  decimal.Decimal `json:"costOfGoods"`
	Receivables  int             `json:"receivables"`
	Payments     int             `json:"payments"`
}
