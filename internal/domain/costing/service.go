package costing

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"varejo/internal/core/apperror"
	"varejo/internal/core/entity"
	"varejo/internal/core/id"
	"varejo/internal/core/syncwire"
	"varejo/internal/core/tx"
	"varejo/internal/core/types"
	"varejo/pkg/logger"
)

// ChangeRecorder appends a server-originated change to the sync feed so
// devices receive it on their next pull.
type ChangeRecorder interface {
	RecordChange(ctx context.Context, entityType string, action syncwire.Action, payload any) error
}

// Service provides FIFO costing operations.
//
// Exhaustion policy: consuming more than the open lots cover is rejected with
// INSUFFICIENT_STOCK. Allowing implicit negative stock would silently
// under-cost sales, so the shortage surfaces as a business error instead.
type Service struct {
	repo Repository
	feed ChangeRecorder
}

// NewService creates a costing service.
func NewService(repo Repository, feed ChangeRecorder) *Service {
	return &Service{repo: repo, feed: feed}
}

// ConsumeFIFO consumes qtyBase units of a product from its cost lots,
// oldest lot first, and returns the accumulated cost of the consumed units.
// Lot decrements are persisted as it goes; the caller's transaction makes
// the whole consumption atomic.
func (s *Service) ConsumeFIFO(ctx context.Context, productID id.ID, qtyBase int64) (types.Money, error) {
	if qtyBase <= 0 {
		return types.ZeroMoney(), apperror.NewValidation("consumption quantity must be positive")
	}

	lots, err := s.repo.OpenLotsForUpdate(ctx, productID)
	if err != nil {
		return types.ZeroMoney(), fmt.Errorf("fetch open lots: %w", err)
	}

	var available int64
	for _, lot := range lots {
		available += lot.QtyRemainingBase
	}
	if available < qtyBase {
		return types.ZeroMoney(), apperror.NewInsufficientStock(productID.String(), qtyBase, available)
	}

	totalCost := types.ZeroMoney()
	remaining := qtyBase
	for _, lot := range lots {
		if remaining <= 0 {
			break
		}
		take := lot.QtyRemainingBase
		if take > remaining {
			take = remaining
		}

		totalCost = totalCost.Add(lot.UnitCostBase.Mul(decimal.NewFromInt(take)))
		if err := s.repo.SetLotRemaining(ctx, lot.ID, lot.QtyRemainingBase-take); err != nil {
			return types.ZeroMoney(), fmt.Errorf("decrement lot %s: %w", lot.ID, err)
		}
		remaining -= take
	}

	return totalCost, nil
}

// ReceiptInput describes a purchase receipt creating one cost lot.
type ReceiptInput struct {
	ProductID    id.ID
	QtyBase      int64
	UnitCostBase types.Money
	PurchaseID   id.ID
	Date         time.Time
}

// ReceiveLot records a purchase receipt: one new cost lot plus an IN
// inventory movement, atomically, and feeds both to the sync changelog.
func (s *Service) ReceiveLot(ctx context.Context, txm tx.Manager, in ReceiptInput) (*entity.CostLot, error) {
	if in.QtyBase <= 0 {
		return nil, apperror.NewValidation("receipt quantity must be positive")
	}
	if in.UnitCostBase.IsNegative() {
		return nil, apperror.NewValidation("unit cost must not be negative")
	}

	now := time.Now().UTC()
	lot := &entity.CostLot{
		ID:               id.New(),
		ProductID:        in.ProductID,
		QtyInitialBase:   in.QtyBase,
		QtyRemainingBase: in.QtyBase,
		UnitCostBase:     in.UnitCostBase,
		CreatedAt:        now,
	}
	movement := &entity.InventoryMovement{
		ID:         id.New(),
		ProductID:  in.ProductID,
		Direction:  entity.MovementIn,
		QtyBase:    in.QtyBase,
		ReasonType: entity.ReasonPurchase,
		ReasonID:   in.PurchaseID,
		Date:       in.Date,
		CreatedAt:  now,
	}

	err := txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.CreateLot(ctx, lot); err != nil {
			return fmt.Errorf("create lot: %w", err)
		}
		if err := s.repo.CreateMovement(ctx, movement); err != nil {
			return fmt.Errorf("create movement: %w", err)
		}
		return s.feed.RecordChange(ctx, "inventory_movement", syncwire.ActionCreate, movement)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "cost lot received",
		"product_id", in.ProductID,
		"qty_base", in.QtyBase,
		"unit_cost", in.UnitCostBase,
	)
	return lot, nil
}
