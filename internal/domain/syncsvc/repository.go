// Package syncsvc is the server side of device synchronization: it applies
// pushed operations idempotently and serves the cursor-paginated change feed.
package syncsvc

import (
	"context"

	"varejo/internal/core/entity"
	"varejo/internal/core/syncwire"
)

// ChangeRow is one changelog entry with its feed sequence number.
type ChangeRow struct {
	Seq    int64
	Origin string
	Change syncwire.Change
}

// Repository defines storage operations for applying operations and reading
// the change feed.
type Repository interface {
	// TryRecordOperation claims an operation id. Returns false when the id
	// was already applied, which makes duplicate deliveries no-ops.
	TryRecordOperation(ctx context.Context, operationID, deviceID string) (bool, error)

	// UpsertEntity inserts or updates a row in the mapped table from the
	// operation payload. The payload must contain the row id.
	UpsertEntity(ctx context.Context, table string, payload map[string]any) error

	// DeleteEntity removes a row by id. Missing rows are not an error.
	DeleteEntity(ctx context.Context, table string, entityID string) error

	// SaleStatus reads the stored status of a sale. The second return is
	// false when no such sale exists.
	SaleStatus(ctx context.Context, saleID string) (entity.SaleStatus, bool, error)

	// AppendChange appends a change to the feed, tagged with its origin
	// device ("" for server-originated ledger changes).
	AppendChange(ctx context.Context, origin string, change syncwire.Change) error

	// ChangesAfter returns up to limit feed entries with seq > after,
	// oldest first, excluding entries originated by excludeOrigin.
	ChangesAfter(ctx context.Context, after int64, excludeOrigin string, limit int) ([]ChangeRow, error)
}
