package sales

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
	"varejo/internal/domain/installment"
	"varejo/pkg/logger"
)

// cardInstallmentIntervalDays is fixed for credit card installments.
const cardInstallmentIntervalDays = 30

// defaultDeferredIntervalDays applies when a deferred payment does not
// configure its own interval.
const defaultDeferredIntervalDays = 30

// FIFOConsumer consumes product stock from cost lots, oldest first, and
// returns the cost of the consumed units.
type FIFOConsumer interface {
	ConsumeFIFO(ctx context.Context, productID id.ID, qtyBase int64) (types.Money, error)
}

// ChangeRecorder appends a server-originated change to the sync feed.
type ChangeRecorder interface {
	RecordChange(ctx context.Context, entityType string, action syncwire.Action, payload any) error
}

// Service orchestrates the sale confirmation transaction.
//
// The service does not validate that the payments sum to the sale total;
// that check belongs to the caller. Everything else about a confirmation is
// atomic: any failure rolls back all inventory, coupon, and finance effects.
type Service struct {
	repo    Repository
	costing FIFOConsumer
	coupons CouponSequence
	feed    ChangeRecorder
	txm     tx.Manager
	now     func() time.Time
}

// NewService creates a sale confirmation service.
func NewService(repo Repository, costing FIFOConsumer, coupons CouponSequence, feed ChangeRecorder, txm tx.Manager) *Service {
	return &Service{
		repo:    repo,
		costing: costing,
		coupons: coupons,
		feed:    feed,
		txm:     txm,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Confirm runs the confirmation transaction for a draft sale.
//
// Inside one serializable transaction it converts item quantities to base
// units, writes OUT movements, consumes FIFO cost lots, assigns the next
// coupon number, marks the sale CONFIRMED, and fans payments out into
// immediate cash entries or receivable installments.
func (s *Service) Confirm(ctx context.Context, in ConfirmInput) (*ConfirmResult, error) {
	if len(in.Payments) == 0 {
		return nil, apperror.NewValidation("confirmation requires at least one payment")
	}
	if in.SaleDate.IsZero() {
		return nil, apperror.NewValidation("confirmation requires a sale date")
	}

	var result *ConfirmResult
	err := s.txm.RunSerializable(ctx, func(ctx context.Context) error {
		res, err := s.confirmInTx(ctx, in)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "sale confirmed",
		"sale_id", in.SaleID,
		"coupon_number", result.CouponNumber,
		"cogs", result.CostOfGoods,
		"device_id", in.DeviceID,
	)
	return result, nil
}

func (s *Service) confirmInTx(ctx context.Context, in ConfirmInput) (*ConfirmResult, error) {
	sale, err := s.repo.GetSaleForUpdate(ctx, in.SaleID)
	if err != nil {
		return nil, err
	}
	if !sale.IsDraft() {
		return nil, apperror.NewSaleNotDraft(sale.ID.String(), string(sale.Status))
	}

	items, err := s.repo.GetItems(ctx, in.SaleID)
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	if len(items) == 0 {
		return nil, apperror.NewValidation("sale has no items")
	}

	cogs, err := s.consumeInventory(ctx, sale, items, in.SaleDate)
	if err != nil {
		return nil, err
	}

	couponNumber, err := s.coupons.Next(ctx)
	if err != nil {
		return nil, fmt.Errorf("next coupon number: %w", err)
	}
	if err := s.repo.ConfirmSale(ctx, sale.ID, couponNumber); err != nil {
		return nil, fmt.Errorf("confirm sale: %w", err)
	}

	payments, receivables, err := s.fanOutPayments(ctx, sale, in, couponNumber)
	if err != nil {
		return nil, err
	}

	sale.Status = entity.SaleStatusConfirmed
	sale.CouponNumber = &couponNumber
	if err := s.feed.RecordChange(ctx, "sale", syncwire.ActionUpdate, sale); err != nil {
		return nil, fmt.Errorf("record sale change: %w", err)
	}

	return &ConfirmResult{
		SaleID:       sale.ID,
		CouponNumber: couponNumber,
		CostOfGoods:  cogs,
		Receivables:  receivables,
		Payments:     payments,
	}, nil
}

// consumeInventory writes one OUT movement per item and consumes FIFO lots,
// returning the accumulated cost of goods sold.
func (s *Service) consumeInventory(ctx context.Context, sale *entity.Sale, items []entity.SaleItem, saleDate time.Time) (types.Money, error) {
	cogs := types.ZeroMoney()

	for _, item := range items {
		unit, err := s.repo.GetUnit(ctx, item.UnitID)
		if err != nil {
			return types.ZeroMoney(), fmt.Errorf("load unit %s: %w", item.UnitID, err)
		}
		if unit.FactorToBase < 1 {
			return types.ZeroMoney(), apperror.NewValidation("unit factor must be at least 1").
				WithDetail("unit_id", unit.ID)
		}

		qtyBase := item.Qty.Mul(decimal.NewFromInt(unit.FactorToBase))
		if !qtyBase.IsInteger() || !qtyBase.IsPositive() {
			return types.ZeroMoney(), apperror.NewValidation("item quantity does not convert to a whole base quantity").
				WithDetail("item_id", item.ID).
				WithDetail("qty", item.Qty).
				WithDetail("factor_to_base", unit.FactorToBase)
		}

		movement := &entity.InventoryMovement{
			ID:         id.New(),
			ProductID:  item.ProductID,
			Direction:  entity.MovementOut,
			QtyBase:    qtyBase.IntPart(),
			ReasonType: entity.ReasonSale,
			ReasonID:   sale.ID,
			Date:       saleDate,
			CreatedAt:  s.now(),
		}
		if err := s.repo.CreateMovement(ctx, movement); err != nil {
			return types.ZeroMoney(), fmt.Errorf("create movement: %w", err)
		}
		if err := s.feed.RecordChange(ctx, "inventory_movement", syncwire.ActionCreate, movement); err != nil {
			return types.ZeroMoney(), fmt.Errorf("record movement change: %w", err)
		}

		cost, err := s.costing.ConsumeFIFO(ctx, item.ProductID, qtyBase.IntPart())
		if err != nil {
			return types.ZeroMoney(), err
		}
		cogs = cogs.Add(cost)
	}

	return cogs, nil
}

// fanOutPayments classifies each payment and creates the matching ledger
// rows. Returns the number of payment rows and receivable rows created.
func (s *Service) fanOutPayments(ctx context.Context, sale *entity.Sale, in ConfirmInput, couponNumber int64) (int, int, error) {
	paymentsCreated := 0
	receivablesCreated := 0

	for _, p := range in.Payments {
		if !p.Amount.IsPositive() {
			return 0, 0, apperror.NewValidation("payment amount must be positive").
				WithDetail("method", p.Method)
		}

		if p.Method.SettlesImmediately(p.Installments) {
			if err := s.settleImmediate(ctx, sale, p, in.SaleDate, couponNumber); err != nil {
				return 0, 0, err
			}
			paymentsCreated++
			continue
		}

		n, err := s.scheduleReceivables(ctx, sale, p, in.SaleDate)
		if err != nil {
			return 0, 0, err
		}
		receivablesCreated += n
	}

	return paymentsCreated, receivablesCreated, nil
}

func (s *Service) settleImmediate(ctx context.Context, sale *entity.Sale, p PaymentInput, saleDate time.Time, couponNumber int64) error {
	payment := &entity.Payment{
		ID:        id.New(),
		SaleID:    sale.ID,
		Method:    p.Method,
		Amount:    p.Amount,
		AccountID: p.AccountID,
		Date:      saleDate,
	}
	if err := s.repo.CreatePayment(ctx, payment); err != nil {
		return fmt.Errorf("create payment: %w", err)
	}

	paidAt := saleDate
	entry := &entity.FinanceEntry{
		ID:        id.New(),
		Type:      entity.EntryIncome,
		AccountID: p.AccountID,
		Amount:    p.Amount,
		Status:    entity.EntryPaid,
		PaidAt:    &paidAt,
		Notes:     fmt.Sprintf("Sale coupon %d", couponNumber),
	}
	if err := s.repo.CreateFinanceEntry(ctx, entry); err != nil {
		return fmt.Errorf("create finance entry: %w", err)
	}

	if err := s.feed.RecordChange(ctx, "payment", syncwire.ActionCreate, payment); err != nil {
		return fmt.Errorf("record payment change: %w", err)
	}
	if err := s.feed.RecordChange(ctx, "finance_entry", syncwire.ActionCreate, entry); err != nil {
		return fmt.Errorf("record finance entry change: %w", err)
	}
	return nil
}

func (s *Service) scheduleReceivables(ctx context.Context, sale *entity.Sale, p PaymentInput, saleDate time.Time) (int, error) {
	kind, ok := entity.ReceivableKindFor(p.Method)
	if !ok {
		return 0, apperror.NewValidation("payment method does not produce receivables").
			WithDetail("method", p.Method)
	}
	if sale.CustomerID == nil || id.IsNil(*sale.CustomerID) {
		return 0, apperror.NewCustomerRequired(sale.ID.String(), string(p.Method))
	}

	count := p.Installments
	if count < 1 {
		count = 1
	}
	intervalDays := p.IntervalDays
	if p.Method == entity.MethodCreditCard {
		intervalDays = cardInstallmentIntervalDays
	} else if intervalDays < 1 {
		intervalDays = defaultDeferredIntervalDays
	}

	plan, err := installment.Generate(installment.Plan{
		Total:        p.Amount,
		Count:        count,
		IntervalDays: intervalDays,
		Anchor:       saleDate,
		Mode:         installment.ModeDayInterval,
	})
	if err != nil {
		return 0, err
	}

	receivables := make([]entity.Receivable, 0, len(plan))
	for _, inst := range plan {
		receivables = append(receivables, entity.Receivable{
			ID:            id.New(),
			SaleID:        sale.ID,
			CustomerID:    *sale.CustomerID,
			InstallmentNo: inst.Number,
			DueDate:       inst.DueDate,
			Amount:        inst.Amount,
			Status:        entity.ReceivableOpen,
			Kind:          kind,
		})
	}
	if err := s.repo.CreateReceivables(ctx, receivables); err != nil {
		return 0, fmt.Errorf("create receivables: %w", err)
	}
	for i := range receivables {
		if err := s.feed.RecordChange(ctx, "receivable", syncwire.ActionCreate, &receivables[i]); err != nil {
			return 0, fmt.Errorf("record receivable change: %w", err)
		}
	}
	return len(receivables), nil
}
