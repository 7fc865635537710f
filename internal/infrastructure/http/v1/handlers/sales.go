package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"varejo/internal/core/apperror"
	appctx "varejo/internal/core/context"
	"varejo/internal/core/entity"
	"varejo/internal/core/id"
	"varejo/internal/domain/sales"
	"varejo/internal/infrastructure/http/v1/dto"
)

// SalesHandler serves the sale confirmation endpoint.
type SalesHandler struct {
	BaseHandler
	svc *sales.Service
}

// NewSalesHandler creates the sales handler.
func NewSalesHandler(svc *sales.Service) *SalesHandler {
	return &SalesHandler{svc: svc}
}

// Confirm runs the confirmation transaction for a draft sale.
// POST /api/v1/sales/:id/confirm
func (h *SalesHandler) Confirm(c *gin.Context) {
	saleID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid sale id"))
		return
	}

	var req dto.ConfirmSaleRequest
	if !h.BindJSON(c, &req) {
		return
	}

	in := sales.ConfirmInput{
		SaleID:   saleID,
		SaleDate: time.Now().UTC(),
	}
	if req.SaleDate != nil {
		in.SaleDate = *req.SaleDate
	}
	if device := appctx.GetDevice(c.Request.Context()); device != nil {
		in.DeviceID = device.DeviceID
	}

	for _, p := range req.Payments {
		accountID, err := id.Parse(p.AccountID)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid account id").WithDetail("accountId", p.AccountID))
			return
		}
		in.Payments = append(in.Payments, sales.PaymentInput{
			Method:       entity.PaymentMethod(p.Method),
			Amount:       p.Amount,
			AccountID:    accountID,
			Installments: p.Installments,
			IntervalDays: p.IntervalDays,
		})
	}

	result, err := h.svc.Confirm(c.Request.Context(), in)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ConfirmSaleResponse{
		SaleID:       result.SaleID.String(),
		CouponNumber: result.CouponNumber,
		CostOfGoods:  result.CostOfGoods,
		Receivables:  result.Receivables,
		Payments:     result.Payments,
	})
}
