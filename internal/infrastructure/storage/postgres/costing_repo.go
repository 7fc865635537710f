package postgres

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"varejo/internal/core/apperror"
	"varejo/internal/core/entity"
	"varejo/internal/core/id"
	"varejo/internal/domain/costing"
)

// Compile-time check.
var _ costing.Repository = (*CostingRepo)(nil)

// CostingRepo stores cost lots and the inventory movements produced at the
// costing boundary.
type CostingRepo struct {
	txm *TxManager
}

// NewCostingRepo creates the costing repository.
func NewCostingRepo(txm *TxManager) *CostingRepo {
	return &CostingRepo{txm: txm}
}

// OpenLotsForUpdate loads the product's open lots oldest first with row
// locks. FIFO depends on the created_at order; the lock keeps two
// confirmations from draining the same lot.
func (r *CostingRepo) OpenLotsForUpdate(ctx context.Context, productID id.ID) ([]entity.CostLot, error) {
	query, args, err := sq.Select("id", "product_id", "qty_initial_base", "qty_remaining_base", "unit_cost_base", "created_at").
		From("reg_cost_lots").
		Where(sq.Eq{"product_id": productID}).
		Where(sq.Gt{"qty_remaining_base": 0}).
		OrderBy("created_at ASC", "id ASC").
		Suffix("FOR UPDATE").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build lots query: %w", err)
	}

	var lots []entity.CostLot
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &lots, query, args...); err != nil {
		return nil, apperror.NewDatabase(fmt.Errorf("load open lots: %w", err))
	}
	return lots, nil
}

// SetLotRemaining persists a lot's decremented remaining quantity.
func (r *CostingRepo) SetLotRemaining(ctx context.Context, lotID id.ID, qtyRemainingBase int64) error {
	query, args, err := sq.Update("reg_cost_lots").
		Set("qty_remaining_base", qtyRemainingBase).
		Where(sq.Eq{"id": lotID}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("build lot update: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, query, args...)
	if err != nil {
		return apperror.NewDatabase(fmt.Errorf("update lot %s: %w", lotID, err))
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("cost lot", lotID)
	}
	return nil
}

// CreateLot inserts a new cost lot.
func (r *CostingRepo) CreateLot(ctx context.Context, lot *entity.CostLot) error {
	query, args, err := sq.Insert("reg_cost_lots").
		Columns("id", "product_id", "qty_initial_base", "qty_remaining_base", "unit_cost_base", "created_at").
		Values(lot.ID, lot.ProductID, lot.QtyInitialBase, lot.QtyRemainingBase, lot.UnitCostBase, lot.CreatedAt).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("build lot insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, query, args...); err != nil {
		return apperror.NewDatabase(fmt.Errorf("insert cost lot: %w", err))
	}
	return nil
}

// CreateMovement inserts an inventory movement.
func (r *CostingRepo) CreateMovement(ctx context.Context, m *entity.InventoryMovement) error {
	return insertMovement(ctx, r.txm.GetQuerier(ctx), m)
}

// insertMovement is shared with the sales repository; both boundaries write
// the same register.
func insertMovement(ctx context.Context, q Querier, m *entity.InventoryMovement) error {
	query, args, err := sq.Insert("reg_inventory_movements").
		Columns("id", "product_id", "direction", "qty_base", "reason_type", "reason_id", "date", "created_at").
		Values(m.ID, m.ProductID, m.Direction, m.QtyBase, m.ReasonType, m.ReasonID, m.Date, m.CreatedAt).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("build movement insert: %w", err)
	}
	if _, err := q.Exec(ctx, query, args...); err != nil {
		return apperror.NewDatabase(fmt.Errorf("insert inventory movement: %w", err))
	}
	return nil
}
