package postgres

import (
	"context"
	"fmt"

	"varejo/internal/domain/sales"
)

// Compile-time check.
var _ sales.CouponSequence = (*CouponSequence)(nil)

const couponSequenceKey = "sale_coupon"

// QuerierSource resolves the querier for the current context (the active
// transaction, or the pool outside one). *TxManager implements it.
type QuerierSource interface {
	GetQuerier(ctx context.Context) Querier
}

// CouponSequence hands out fiscal coupon numbers from a database counter.
// The UPSERT..RETURNING increments and reads in a single statement, so two
// concurrent confirmations can never see the same value. Numbers consumed
// by a transaction that later rolls back are lost; the sequence is
// monotonic, not gapless.
type CouponSequence struct {
	src QuerierSource
}

// NewCouponSequence creates a coupon sequence backed by sys_sequences.
func NewCouponSequence(src QuerierSource) *CouponSequence {
	return &CouponSequence{src: src}
}

// Next returns the next coupon number. Runs on the caller's transaction
// when one is in context, so the increment commits or rolls back with the
// confirmation itself.
func (s *CouponSequence) Next(ctx context.Context) (int64, error) {
	q := s.src.GetQuerier(ctx)

	var next int64
	err := q.QueryRow(ctx, `
		INSERT INTO sys_sequences (key, current_val)
		VALUES ($1, 1)
		ON CONFLICT (key) DO UPDATE
		SET current_val = sys_sequences.current_val + 1
		RETURNING current_val
	`, couponSequenceKey).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("next coupon number: %w", err)
	}
	return next, nil
}
