package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"varejo/internal/core/apperror"
	"varejo/internal/core/entity"
	"varejo/internal/core/syncwire"
	"varejo/internal/domain/syncsvc"
)

// Compile-time check.
var _ syncsvc.Repository = (*SyncRepo)(nil)

// SyncRepo applies pushed operations to the synced tables and tracks the
// per-operation idempotency ledger. The change feed itself lives in Changelog.
type SyncRepo struct {
	txm       *TxManager
	changelog *Changelog
}

// NewSyncRepo creates the sync repository.
func NewSyncRepo(txm *TxManager, changelog *Changelog) *SyncRepo {
	return &SyncRepo{txm: txm, changelog: changelog}
}

// TryRecordOperation claims an operation id. A duplicate id leaves the ledger
// untouched and returns false.
func (r *SyncRepo) TryRecordOperation(ctx context.Context, operationID, deviceID string) (bool, error) {
	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, `
		INSERT INTO sys_applied_operations (operation_id, device_id)
		VALUES ($1, $2)
		ON CONFLICT (operation_id) DO NOTHING
	`, operationID, deviceID)
	if err != nil {
		return false, fmt.Errorf("record operation %s: %w", operationID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// UpsertEntity inserts or updates a row from an operation payload. Payload
// keys arrive in wire casing (camelCase) and map to snake_case columns.
// Unknown keys are rejected rather than silently dropped so a device with a
// newer schema gets a clear error instead of losing fields.
func (r *SyncRepo) UpsertEntity(ctx context.Context, table string, payload map[string]any) error {
	cols := make([]string, 0, len(payload))
	colToKey := make(map[string]string, len(payload))
	for key := range payload {
		col, err := payloadColumn(key)
		if err != nil {
			return err
		}
		if prev, dup := colToKey[col]; dup {
			return apperror.NewValidation(fmt.Sprintf("payload fields %q and %q map to the same column", prev, key))
		}
		cols = append(cols, col)
		colToKey[col] = key
	}
	// Deterministic statement text keeps prepared-statement caching effective.
	sort.Strings(cols)

	vals := make([]any, 0, len(cols))
	updates := make([]string, 0, len(cols))
	for _, col := range cols {
		vals = append(vals, payload[colToKey[col]])
		if col != "id" {
			updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
		}
	}

	builder := sq.Insert(table).
		Columns(cols...).
		Values(vals...).
		PlaceholderFormat(sq.Dollar)
	if len(updates) > 0 {
		builder = builder.Suffix("ON CONFLICT (id) DO UPDATE SET " + strings.Join(updates, ", "))
	} else {
		builder = builder.Suffix("ON CONFLICT (id) DO NOTHING")
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("build upsert for %s: %w", table, err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, query, args...); err != nil {
		return classifyWriteError(fmt.Sprintf("upsert into %s", table), err)
	}
	return nil
}

// DeleteEntity removes a row by id. Deleting a row that is already gone is
// fine; the device may replay the operation after a partial sync.
func (r *SyncRepo) DeleteEntity(ctx context.Context, table string, entityID string) error {
	query, args, err := sq.Delete(table).
		Where(sq.Eq{"id": entityID}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete for %s: %w", table, err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, query, args...); err != nil {
		return classifyWriteError(fmt.Sprintf("delete from %s", table), err)
	}
	return nil
}

// SaleStatus reads the stored status of a sale, reporting whether the row
// exists at all. Runs on the caller's transaction so the read is consistent
// with a following write.
func (r *SyncRepo) SaleStatus(ctx context.Context, saleID string) (entity.SaleStatus, bool, error) {
	var status string
	err := r.txm.GetQuerier(ctx).QueryRow(ctx,
		`SELECT status FROM doc_sales WHERE id = $1`, saleID,
	).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, apperror.NewDatabase(fmt.Errorf("load status of sale %s: %w", saleID, err))
	}
	return entity.SaleStatus(status), true, nil
}

// classifyWriteError separates payload faults from infrastructure failures.
// A payload fault is deterministic: replaying the same operation hits the
// same error forever, so it must become a per-operation rejection instead of
// failing the whole push. Everything else stays a database error, which
// aborts the call and lets the device retry.
func classifyWriteError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && isPayloadFault(pgErr.Code) {
		return apperror.NewValidation(fmt.Sprintf("%s: %s", op, pgErr.Message)).WithCause(err)
	}
	return apperror.NewDatabase(fmt.Errorf("%s: %w", op, err))
}

// isPayloadFault reports whether a SQLSTATE is caused by the operation
// payload rather than by server state. Serialization failures, connection
// problems and resource exhaustion are deliberately NOT here: those are
// retryable.
func isPayloadFault(code string) bool {
	switch {
	case strings.HasPrefix(code, "22"):
		// Data exceptions: bad uuid, numeric overflow, invalid text
		// representation and friends.
		return true
	case code == "42703", code == "42804":
		// Undefined column / datatype mismatch: a device with a newer
		// schema sent fields this server does not have.
		return true
	case code == "23502", code == "23503", code == "23514":
		// Not-null, foreign-key and check violations: the row itself
		// does not fit the schema's constraints.
		return true
	}
	return false
}

// AppendChange delegates to the changelog.
func (r *SyncRepo) AppendChange(ctx context.Context, origin string, change syncwire.Change) error {
	return r.changelog.AppendChange(ctx, origin, change)
}

// ChangesAfter delegates to the changelog.
func (r *SyncRepo) ChangesAfter(ctx context.Context, after int64, excludeOrigin string, limit int) ([]syncsvc.ChangeRow, error) {
	return r.changelog.ChangesAfter(ctx, after, excludeOrigin, limit)
}

// payloadColumn converts a wire key (camelCase) to its column name and
// validates it is a safe identifier. Payload keys become SQL identifiers, so
// anything outside [a-z0-9_] after conversion is refused.
func payloadColumn(key string) (string, error) {
	if key == "" {
		return "", apperror.NewValidation("empty field name in payload")
	}
	col := wireKeyToColumn(key)
	for _, ch := range col {
		switch {
		case ch >= 'a' && ch <= 'z':
		case ch >= '0' && ch <= '9':
		case ch == '_':
		default:
			return "", apperror.NewValidation(fmt.Sprintf("invalid field name %q in payload", key))
		}
	}
	return col, nil
}

// wireKeyToColumn converts camelCase to snake_case: customerId -> customer_id.
func wireKeyToColumn(key string) string {
	var b strings.Builder
	b.Grow(len(key) + 4)
	for i, ch := range key {
		if ch >= 'A' && ch <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(ch + ('a' - 'A'))
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}
