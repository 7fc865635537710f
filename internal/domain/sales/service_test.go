package sales

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"varejo/internal/core/apperror"
	"varejo/internal/core/entity"
	"varejo/internal/core/id"
	"varejo/internal/core/syncwire"
	"varejo/internal/core/types"
)

// fakeRepo holds sale state in memory.
type fakeRepo struct {
	sale  *entity.Sale
	items []entity.SaleItem
	units map[id.ID]*entity.ProductUnit

	movements   []*entity.InventoryMovement
	payments    []*entity.Payment
	receivables []entity.Receivable
	entries     []*entity.FinanceEntry

	confirmedCoupon *int64
}

func (r *fakeRepo) GetSaleForUpdate(_ context.Context, saleID id.ID) (*entity.Sale, error) {
	if r.sale == nil || r.sale.ID != saleID {
		return nil, apperror.NewNotFound("sale", saleID)
	}
	copied := *r.sale
	return &copied, nil
}

func (r *fakeRepo) GetItems(_ context.Context, saleID id.ID) ([]entity.SaleItem, error) {
	var out []entity.SaleItem
	for _, item := range r.items {
		if item.SaleID == saleID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (r *fakeRepo) GetUnit(_ context.Context, unitID id.ID) (*entity.ProductUnit, error) {
	unit, ok := r.units[unitID]
	if !ok {
		return nil, apperror.NewNotFound("product_unit", unitID)
	}
	return unit, nil
}

func (r *fakeRepo) ConfirmSale(_ context.Context, saleID id.ID, couponNumber int64) error {
	r.sale.Status = entity.SaleStatusConfirmed
	r.sale.CouponNumber = &couponNumber
	r.confirmedCoupon = &couponNumber
	return nil
}

func (r *fakeRepo) CreateMovement(_ context.Context, m *entity.InventoryMovement) error {
	r.movements = append(r.movements, m)
	return nil
}

func (r *fakeRepo) CreatePayment(_ context.Context, p *entity.Payment) error {
	r.payments = append(r.payments, p)
	return nil
}

func (r *fakeRepo) CreateReceivables(_ context.Context, rs []entity.Receivable) error {
	r.receivables = append(r.receivables, rs...)
	return nil
}

func (r *fakeRepo) CreateFinanceEntry(_ context.Context, e *entity.FinanceEntry) error {
	r.entries = append(r.entries, e)
	return nil
}

func (r *fakeRepo) snapshot() fakeRepo {
	copied := *r
	if r.sale != nil {
		sale := *r.sale
		copied.sale = &sale
	}
	copied.movements = append([]*entity.InventoryMovement(nil), r.movements...)
	copied.payments = append([]*entity.Payment(nil), r.payments...)
	copied.receivables = append([]entity.Receivable(nil), r.receivables...)
	copied.entries = append([]*entity.FinanceEntry(nil), r.entries...)
	return copied
}

// rollbackTxManager emulates transactional semantics for the fakes: on error
// the repo and costing state are restored to the pre-transaction snapshot.
type rollbackTxManager struct {
	repo    *fakeRepo
	costing *fakeCosting
}

func (m *rollbackTxManager) run(ctx context.Context, fn func(ctx context.Context) error) error {
	repoSnap := m.repo.snapshot()
	costSnap := append([]consumeCall(nil), m.costing.calls...)
	if err := fn(ctx); err != nil {
		*m.repo = repoSnap
		m.costing.calls = costSnap
		return err
	}
	return nil
}

func (m *rollbackTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.run(ctx, fn)
}

func (m *rollbackTxManager) RunSerializable(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.run(ctx, fn)
}

type consumeCall struct {
	productID id.ID
	qtyBase   int64
}

// fakeCosting returns 2.00 per base unit.
type fakeCosting struct {
	calls []consumeCall
	fail  error
}

func (c *fakeCosting) ConsumeFIFO(_ context.Context, productID id.ID, qtyBase int64) (types.Money, error) {
	if c.fail != nil {
		return types.ZeroMoney(), c.fail
	}
	c.calls = append(c.calls, consumeCall{productID: productID, qtyBase: qtyBase})
	return types.MustMoney("2.00").Mul(decimal.NewFromInt(qtyBase)), nil
}

type fakeCoupons struct {
	current int64
}

func (c *fakeCoupons) Next(_ context.Context) (int64, error) {
	c.current++
	return c.current, nil
}

type feedEntry struct {
	entityType string
	action     syncwire.Action
}

type fakeFeed struct {
	entries []feedEntry
}

func (f *fakeFeed) RecordChange(_ context.Context, entityType string, action syncwire.Action, _ any) error {
	f.entries = append(f.entries, feedEntry{entityType: entityType, action: action})
	return nil
}

type fixture struct {
	repo    *fakeRepo
	costing *fakeCosting
	coupons *fakeCoupons
	feed    *fakeFeed
	svc     *Service

	saleID     id.ID
	customerID id.ID
	productID  id.ID
	accountID  id.ID
	saleDate   time.Time
}

func newFixture(t *testing.T, withCustomer bool) *fixture {
	t.Helper()

	saleID := id.New()
	customerID := id.New()
	productID := id.New()
	unitID := id.New()

	sale := &entity.Sale{
		ID:     saleID,
		Date:   time.Date(2024, time.April, 2, 0, 0, 0, 0, time.UTC),
		Status: entity.SaleStatusDraft,
		Total:  types.MustMoney("60.00"),
	}
	if withCustomer {
		sale.CustomerID = &customerID
	}

	repo := &fakeRepo{
		sale: sale,
		items: []entity.SaleItem{{
			ID:        id.New(),
			SaleID:    saleID,
			ProductID: productID,
			UnitID:    unitID,
			Qty:       decimal.NewFromInt(2), // 2 boxes of 6 = 12 base units
			UnitPrice: types.MustMoney("30.00"),
			Total:     types.MustMoney("60.00"),
		}},
		units: map[id.ID]*entity.ProductUnit{
			unitID: {ID: unitID, ProductID: productID, Name: "box", FactorToBase: 6},
		},
	}
	costing := &fakeCosting{}
	coupons := &fakeCoupons{current: 100}
	feed := &fakeFeed{}
	txm := &rollbackTxManager{repo: repo, costing: costing}

	return &fixture{
		repo:       repo,
		costing:    costing,
		coupons:    coupons,
		feed:       feed,
		svc:        NewService(repo, costing, coupons, feed, txm),
		saleID:     saleID,
		customerID: customerID,
		productID:  productID,
		accountID:  id.New(),
		saleDate:   time.Date(2024, time.April, 2, 10, 30, 0, 0, time.UTC),
	}
}

func TestConfirm_ImmediateCashPayment(t *testing.T) {
	f := newFixture(t, false)

	res, err := f.svc.Confirm(context.Background(), ConfirmInput{
		SaleID:   f.saleID,
		SaleDate: f.saleDate,
		Payments: []PaymentInput{{
			Method:    entity.MethodCash,
			Amount:    types.MustMoney("60.00"),
			AccountID: f.accountID,
		}},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(101), res.CouponNumber)
	assert.Equal(t, entity.SaleStatusConfirmed, f.repo.sale.Status)
	require.NotNil(t, f.repo.sale.CouponNumber)
	assert.Equal(t, int64(101), *f.repo.sale.CouponNumber)

	// 2 boxes * factor 6 = 12 base units, consumed at 2.00 each.
	require.Len(t, f.repo.movements, 1)
	assert.Equal(t, entity.MovementOut, f.repo.movements[0].Direction)
	assert.Equal(t, int64(12), f.repo.movements[0].QtyBase)
	assert.Equal(t, entity.ReasonSale, f.repo.movements[0].ReasonType)
	assert.Equal(t, f.saleID, f.repo.movements[0].ReasonID)
	assert.True(t, res.CostOfGoods.Equal(types.MustMoney("24.00")), "got %s", res.CostOfGoods)

	require.Len(t, f.repo.payments, 1)
	assert.Equal(t, entity.MethodCash, f.repo.payments[0].Method)

	require.Len(t, f.repo.entries, 1)
	assert.Equal(t, entity.EntryIncome, f.repo.entries[0].Type)
	assert.Equal(t, entity.EntryPaid, f.repo.entries[0].Status)
	require.NotNil(t, f.repo.entries[0].PaidAt)
	assert.Equal(t, f.saleDate, *f.repo.entries[0].PaidAt)

	assert.Empty(t, f.repo.receivables)

	// The confirmed sale and every ledger row reach the sync feed.
	counts := make(map[string]int)
	for _, e := range f.feed.entries {
		counts[e.entityType]++
	}
	assert.Equal(t, 1, counts["sale"])
	assert.Equal(t, 1, counts["inventory_movement"])
	assert.Equal(t, 1, counts["payment"])
	assert.Equal(t, 1, counts["finance_entry"])
}

func TestConfirm_CreditCardSingleInstallmentIsImmediate(t *testing.T) {
	f := newFixture(t, false)

	_, err := f.svc.Confirm(context.Background(), ConfirmInput{
		SaleID:   f.saleID,
		SaleDate: f.saleDate,
		Payments: []PaymentInput{{
			Method:       entity.MethodCreditCard,
			Amount:       types.MustMoney("60.00"),
			AccountID:    f.accountID,
			Installments: 1,
		}},
	})
	require.NoError(t, err)

	assert.Len(t, f.repo.payments, 1)
	assert.Len(t, f.repo.entries, 1)
	assert.Empty(t, f.repo.receivables)
}

func TestConfirm_CreditCardInstallments(t *testing.T) {
	f := newFixture(t, true)

	res, err := f.svc.Confirm(context.Background(), ConfirmInput{
		SaleID:   f.saleID,
		SaleDate: f.saleDate,
		Payments: []PaymentInput{{
			Method:       entity.MethodCreditCard,
			Amount:       types.MustMoney("100.00"),
			AccountID:    f.accountID,
			Installments: 3,
			IntervalDays: 99, // ignored for cards: the interval is fixed
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Receivables)
	assert.Equal(t, 0, res.Payments)

	require.Len(t, f.repo.receivables, 3)
	sum := types.ZeroMoney()
	for i, rcv := range f.repo.receivables {
		assert.Equal(t, entity.KindCardInstallment, rcv.Kind)
		assert.Equal(t, entity.ReceivableOpen, rcv.Status)
		assert.Equal(t, f.customerID, rcv.CustomerID)
		assert.Equal(t, i+1, rcv.InstallmentNo)
		assert.Equal(t, f.saleDate.AddDate(0, 0, 30*(i+1)), rcv.DueDate)
		sum = sum.Add(rcv.Amount)
	}
	assert.True(t, sum.Equal(types.MustMoney("100.00")), "sum %s", sum)

	assert.Empty(t, f.repo.payments)
	assert.Empty(t, f.repo.entries)
}

func TestConfirm_DeferredMethodUsesConfiguredSchedule(t *testing.T) {
	f := newFixture(t, true)

	_, err := f.svc.Confirm(context.Background(), ConfirmInput{
		SaleID:   f.saleID,
		SaleDate: f.saleDate,
		Payments: []PaymentInput{{
			Method:       entity.MethodBankSlip,
			Amount:       types.MustMoney("90.00"),
			AccountID:    f.accountID,
			Installments: 2,
			IntervalDays: 15,
		}},
	})
	require.NoError(t, err)

	require.Len(t, f.repo.receivables, 2)
	assert.Equal(t, entity.KindBankSlip, f.repo.receivables[0].Kind)
	assert.Equal(t, f.saleDate.AddDate(0, 0, 15), f.repo.receivables[0].DueDate)
	assert.Equal(t, f.saleDate.AddDate(0, 0, 30), f.repo.receivables[1].DueDate)
}

func TestConfirm_DeferredWithoutCustomerRollsBackEverything(t *testing.T) {
	f := newFixture(t, false)

	_, err := f.svc.Confirm(context.Background(), ConfirmInput{
		SaleID:   f.saleID,
		SaleDate: f.saleDate,
		Payments: []PaymentInput{{
			Method:       entity.MethodStoreCredit,
			Amount:       types.MustMoney("60.00"),
			AccountID:    f.accountID,
			Installments: 2,
		}},
	})
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeCustomerRequired))

	// Full rollback: no movements, no lot consumption, no receivables, and
	// the sale is still a draft.
	assert.Empty(t, f.repo.movements)
	assert.Empty(t, f.repo.receivables)
	assert.Empty(t, f.repo.payments)
	assert.Empty(t, f.costing.calls)
	assert.Equal(t, entity.SaleStatusDraft, f.repo.sale.Status)
	assert.Nil(t, f.repo.sale.CouponNumber)
}

func TestConfirm_InsufficientStockRollsBack(t *testing.T) {
	f := newFixture(t, false)
	f.costing.fail = apperror.NewInsufficientStock(f.productID.String(), 12, 3)

	_, err := f.svc.Confirm(context.Background(), ConfirmInput{
		SaleID:   f.saleID,
		SaleDate: f.saleDate,
		Payments: []PaymentInput{{
			Method:    entity.MethodCash,
			Amount:    types.MustMoney("60.00"),
			AccountID: f.accountID,
		}},
	})
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))
	assert.Empty(t, f.repo.movements)
	assert.Equal(t, entity.SaleStatusDraft, f.repo.sale.Status)
}

func TestConfirm_NonDraftSaleIsRejected(t *testing.T) {
	f := newFixture(t, false)
	f.repo.sale.Status = entity.SaleStatusConfirmed

	_, err := f.svc.Confirm(context.Background(), ConfirmInput{
		SaleID:   f.saleID,
		SaleDate: f.saleDate,
		Payments: []PaymentInput{{
			Method:    entity.MethodCash,
			Amount:    types.MustMoney("60.00"),
			AccountID: f.accountID,
		}},
	})
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeSaleNotDraft))
}

func TestConfirm_CouponNumbersStrictlyIncrease(t *testing.T) {
	coupons := &fakeCoupons{}
	var previous int64

	for i := 0; i < 5; i++ {
		f := newFixture(t, false)
		f.coupons = coupons
		f.svc = NewService(f.repo, f.costing, coupons, f.feed, &rollbackTxManager{repo: f.repo, costing: f.costing})

		res, err := f.svc.Confirm(context.Background(), ConfirmInput{
			SaleID:   f.saleID,
			SaleDate: f.saleDate,
			Payments: []PaymentInput{{
				Method:    entity.MethodPix,
				Amount:    types.MustMoney("60.00"),
				AccountID: f.accountID,
			}},
		})
		require.NoError(t, err)
		assert.Greater(t, res.CouponNumber, previous)
		previous = res.CouponNumber
	}
}

func TestConfirm_ValidationGuards(t *testing.T) {
	f := newFixture(t, false)

	// No payments.
	_, err := f.svc.Confirm(context.Background(), ConfirmInput{
		SaleID:   f.saleID,
		SaleDate: f.saleDate,
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	// Fractional base quantity: 0.5 of a unit with factor 1.
	f = newFixture(t, false)
	for _, unit := range f.repo.units {
		unit.FactorToBase = 1
	}
	f.repo.items[0].Qty = decimal.RequireFromString("0.5")
	_, err = f.svc.Confirm(context.Background(), ConfirmInput{
		SaleID:   f.saleID,
		SaleDate: f.saleDate,
		Payments: []PaymentInput{{
			Method:    entity.MethodCash,
			Amount:    types.MustMoney("60.00"),
			AccountID: f.accountID,
		}},
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}
