package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"varejo/internal/core/apperror"
	"varejo/internal/core/entity"
	"varejo/internal/core/id"
	"varejo/internal/domain/sales"
)

// Compile-time check.
var _ sales.Repository = (*SalesRepo)(nil)

// SalesRepo stores sales documents and the ledger rows the confirmation
// fans out to.
type SalesRepo struct {
	txm *TxManager
}

// NewSalesRepo creates the sales repository.
func NewSalesRepo(txm *TxManager) *SalesRepo {
	return &SalesRepo{txm: txm}
}

// GetSaleForUpdate loads the sale with a row lock so concurrent confirmations
// of the same sale serialize on the row.
func (r *SalesRepo) GetSaleForUpdate(ctx context.Context, saleID id.ID) (*entity.Sale, error) {
	query, args, err := sq.Select("id", "customer_id", "date", "status", "coupon_number", "total", "created_at", "updated_at").
		From("doc_sales").
		Where(sq.Eq{"id": saleID}).
		Suffix("FOR UPDATE").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sale query: %w", err)
	}

	var sale entity.Sale
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &sale, query, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NewNotFound("sale", saleID)
		}
		return nil, apperror.NewDatabase(fmt.Errorf("load sale: %w", err))
	}
	return &sale, nil
}

// GetItems returns the sale's items.
func (r *SalesRepo) GetItems(ctx context.Context, saleID id.ID) ([]entity.SaleItem, error) {
	query, args, err := sq.Select("id", "sale_id", "product_id", "unit_id", "qty", "unit_price", "total").
		From("doc_sale_items").
		Where(sq.Eq{"sale_id": saleID}).
		OrderBy("id ASC").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build items query: %w", err)
	}

	var items []entity.SaleItem
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &items, query, args...); err != nil {
		return nil, apperror.NewDatabase(fmt.Errorf("load sale items: %w", err))
	}
	return items, nil
}

// GetUnit loads a product unit.
func (r *SalesRepo) GetUnit(ctx context.Context, unitID id.ID) (*entity.ProductUnit, error) {
	query, args, err := sq.Select("id", "product_id", "name", "factor_to_base").
		From("cat_product_units").
		Where(sq.Eq{"id": unitID}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build unit query: %w", err)
	}

	var unit entity.ProductUnit
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &unit, query, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NewNotFound("product unit", unitID)
		}
		return nil, apperror.NewDatabase(fmt.Errorf("load product unit: %w", err))
	}
	return &unit, nil
}

// ConfirmSale flips the sale to CONFIRMED with its coupon number.
func (r *SalesRepo) ConfirmSale(ctx context.Context, saleID id.ID, couponNumber int64) error {
	query, args, err := sq.Update("doc_sales").
		Set("status", entity.SaleStatusConfirmed).
		Set("coupon_number", couponNumber).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": saleID}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("build confirm update: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, query, args...)
	if err != nil {
		return apperror.NewDatabase(fmt.Errorf("confirm sale: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("sale", saleID)
	}
	return nil
}

// CreateMovement inserts an inventory movement.
func (r *SalesRepo) CreateMovement(ctx context.Context, m *entity.InventoryMovement) error {
	return insertMovement(ctx, r.txm.GetQuerier(ctx), m)
}

// CreatePayment inserts a settled payment.
func (r *SalesRepo) CreatePayment(ctx context.Context, p *entity.Payment) error {
	query, args, err := sq.Insert("reg_payments").
		Columns("id", "sale_id", "method", "amount", "account_id", "date").
		Values(p.ID, p.SaleID, p.Method, p.Amount, p.AccountID, p.Date).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("build payment insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, query, args...); err != nil {
		return apperror.NewDatabase(fmt.Errorf("insert payment: %w", err))
	}
	return nil
}

// CreateReceivables inserts the installment batch in one statement.
func (r *SalesRepo) CreateReceivables(ctx context.Context, rs []entity.Receivable) error {
	if len(rs) == 0 {
		return nil
	}

	builder := sq.Insert("reg_receivables").
		Columns("id", "sale_id", "customer_id", "installment_no", "due_date", "amount", "status", "kind").
		PlaceholderFormat(sq.Dollar)
	for _, rec := range rs {
		builder = builder.Values(rec.ID, rec.SaleID, rec.CustomerID, rec.InstallmentNo, rec.DueDate, rec.Amount, rec.Status, rec.Kind)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("build receivables insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, query, args...); err != nil {
		return apperror.NewDatabase(fmt.Errorf("insert receivables: %w", err))
	}
	return nil
}

// CreateFinanceEntry inserts a finance ledger entry.
func (r *SalesRepo) CreateFinanceEntry(ctx context.Context, e *entity.FinanceEntry) error {
	query, args, err := sq.Insert("reg_finance_entries").
		Columns("id", "type", "account_id", "amount", "status", "paid_at", "notes").
		Values(e.ID, e.Type, e.AccountID, e.Amount, e.Status, e.PaidAt, e.Notes).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("build finance entry insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, query, args...); err != nil {
		return apperror.NewDatabase(fmt.Errorf("insert finance entry: %w", err))
	}
	return nil
}
