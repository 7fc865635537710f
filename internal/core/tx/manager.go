// Package tx provides transaction management abstractions.
// Domain services depend on these interfaces instead of a concrete database,
// which keeps the sale confirmation logic testable without PostgreSQL.
package tx

import (
	"context"
)

// Manager defines the contract for transaction management.
// Implementations handle BEGIN, COMMIT, ROLLBACK, and nested transaction
// support. The concrete implementation lives in infrastructure/storage/postgres.
type Manager interface {
	// RunInTransaction executes fn within a database transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn succeeds, the transaction is committed.
	//
	// Nested calls reuse the existing transaction from context.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// RunSerializable executes fn in a serializable transaction.
	// The sale confirmation uses this: coupon assignment and FIFO lot
	// decrements must not interleave with a concurrent confirmation.
	RunSerializable(ctx context.Context, fn func(ctx context.Context) error) error
}
