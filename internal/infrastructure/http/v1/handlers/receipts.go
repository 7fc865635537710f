package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"varejo/internal/core/apperror"
	"varejo/internal/core/id"
	"varejo/internal/core/tx"
	"varejo/internal/domain/costing"
	"varejo/internal/infrastructure/http/v1/dto"
)

// ReceiptHandler serves purchase receipts, the entry point of cost lots.
type ReceiptHandler struct {
	BaseHandler
	svc *costing.Service
	txm tx.Manager
}

// NewReceiptHandler creates the receipt handler.
func NewReceiptHandler(svc *costing.Service, txm tx.Manager) *ReceiptHandler {
	return &ReceiptHandler{svc: svc, txm: txm}
}

// Create records a purchase receipt.
// POST /api/v1/purchases/receipts
func (h *ReceiptHandler) Create(c *gin.Context) {
	var req dto.ReceiptRequest
	if !h.BindJSON(c, &req) {
		return
	}

	productID, err := id.Parse(req.ProductID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid product id"))
		return
	}
	purchaseID, err := id.Parse(req.PurchaseID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid purchase id"))
		return
	}

	in := costing.ReceiptInput{
		ProductID:    productID,
		QtyBase:      req.QtyBase,
		UnitCostBase: req.UnitCostBase,
		PurchaseID:   purchaseID,
		Date:         time.Now().UTC(),
	}
	if req.Date != nil {
		in.Date = *req.Date
	}

	lot, err := h.svc.ReceiveLot(c.Request.Context(), h.txm, in)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ReceiptResponse{
		LotID:            lot.ID.String(),
		ProductID:        lot.ProductID.String(),
		QtyInitialBase:   lot.QtyInitialBase,
		QtyRemainingBase: lot.QtyRemainingBase,
		UnitCostBase:     lot.UnitCostBase,
	})
}
