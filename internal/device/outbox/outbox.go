// Package outbox is the device's durable queue of local mutations awaiting
// push, plus the persisted pull cursor.
package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"varejo/internal/core/id"
	"varejo/internal/core/syncwire"
)

const cursorKey = "pull_cursor"

// Outbox stores queued operations in the device database.
type Outbox struct {
	db *sql.DB
}

// New creates an outbox over the device database handle.
func New(db *sql.DB) *Outbox {
	return &Outbox{db: db}
}

// Enqueue appends an operation to the queue. The operation id is the
// idempotency key; enqueueing the same id twice is an error in the caller.
func (o *Outbox) Enqueue(ctx context.Context, op syncwire.Operation) error {
	if op.OperationID == "" {
		return fmt.Errorf("operation id is required")
	}
	_, err := o.db.ExecContext(ctx, `
		INSERT INTO outbox_operations (operation_id, entity_type, action, payload)
		VALUES (?, ?, ?, ?)
	`, op.OperationID, op.EntityType, string(op.Action), string(op.Payload))
	if err != nil {
		return fmt.Errorf("enqueue operation %s: %w", op.OperationID, err)
	}
	return nil
}

// EnqueueChange wraps a local mutation as an operation with a fresh
// operation id and queues it. This is the entry point the app's save paths
// call; no network is involved.
func (o *Outbox) EnqueueChange(ctx context.Context, entityType string, action syncwire.Action, payload json.RawMessage) (*syncwire.Operation, error) {
	op := syncwire.Operation{
		OperationID: id.NewString(),
		EntityType:  entityType,
		Action:      action,
		Payload:     payload,
	}
	if err := o.Enqueue(ctx, op); err != nil {
		return nil, err
	}
	return &op, nil
}

// Pending returns up to limit queued operations in enqueue order.
func (o *Outbox) Pending(ctx context.Context, limit int) ([]syncwire.Operation, error) {
	rows, err := o.db.QueryContext(ctx, `
		SELECT operation_id, entity_type, action, payload
		FROM outbox_operations
		WHERE status = 'pending'
		ORDER BY created_at ASC, rowid ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("load pending operations: %w", err)
	}
	defer rows.Close()

	var ops []syncwire.Operation
	for rows.Next() {
		var (
			op      syncwire.Operation
			action  string
			payload string
		)
		if err := rows.Scan(&op.OperationID, &op.EntityType, &action, &payload); err != nil {
			return nil, fmt.Errorf("scan operation: %w", err)
		}
		op.Action = syncwire.Action(action)
		op.Payload = json.RawMessage(payload)
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

// CountPending returns the queue depth.
func (o *Outbox) CountPending(ctx context.Context) (int, error) {
	var n int
	err := o.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM outbox_operations WHERE status = 'pending'`,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending: %w", err)
	}
	return n, nil
}

// MarkSynced marks the given operation ids as accepted by the server.
// Unknown ids are no-ops.
func (o *Outbox) MarkSynced(ctx context.Context, operationIDs []string) error {
	return o.setStatus(ctx, operationIDs, "synced", nil)
}

// MarkRejected marks operations the server refused, with their reasons.
// Rejections are terminal; the engine surfaces them instead of retrying.
func (o *Outbox) MarkRejected(ctx context.Context, rejections []syncwire.RejectedOperation) error {
	for _, rej := range rejections {
		if err := o.setStatus(ctx, []string{rej.OperationID}, "rejected", &rej.Reason); err != nil {
			return err
		}
	}
	return nil
}

func (o *Outbox) setStatus(ctx context.Context, operationIDs []string, status string, reason *string) error {
	if len(operationIDs) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(operationIDs))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, 0, len(operationIDs)+2)
	args = append(args, status)
	r := ""
	if reason != nil {
		r = *reason
	}
	args = append(args, r)
	for _, id := range operationIDs {
		args = append(args, id)
	}

	_, err := o.db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE outbox_operations
		SET status = ?, reason = ?
		WHERE operation_id IN (%s) AND status = 'pending'
	`, placeholders), args...)
	if err != nil {
		return fmt.Errorf("mark operations %s: %w", status, err)
	}
	return nil
}

// LoadCursor returns the persisted pull cursor, "" when none.
func (o *Outbox) LoadCursor(ctx context.Context) (string, error) {
	var value string
	err := o.db.QueryRowContext(ctx,
		`SELECT value FROM sync_state WHERE key = ?`, cursorKey,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load cursor: %w", err)
	}
	return value, nil
}

// SaveCursor persists the pull cursor. Called only after the page it came
// from is durably applied.
func (o *Outbox) SaveCursor(ctx context.Context, cursor string) error {
	_, err := o.db.ExecContext(ctx, `
		INSERT INTO sync_state (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`, cursorKey, cursor)
	if err != nil {
		return fmt.Errorf("save cursor: %w", err)
	}
	return nil
}
