// Package localdb is the device-side SQLite store: a local replica of the
// synced entities plus the outbox and sync state tables.
package localdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"varejo/internal/core/syncwire"
	"varejo/pkg/logger"
)

// DB wraps the device's SQLite database.
type DB struct {
	sql *sql.DB
}

// Open opens (or creates) the device database at path. Use ":memory:" for
// tests.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite serializes writes; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	d := &DB{sql: db}
	if err := d.createSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.sql.Close()
}

// SQL exposes the underlying handle for the outbox living in the same file.
func (d *DB) SQL() *sql.DB {
	return d.sql
}

// createSchema creates one document table per synced entity type plus the
// sync bookkeeping tables. Rows are stored as JSON documents; the device UI
// reads them with SQLite's json functions.
func (d *DB) createSchema() error {
	for _, entityType := range syncwire.EntityTypes() {
		stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			data TEXT NOT NULL,
			updated_at TEXT NOT NULL DEFAULT (strftime('%%Y-%%m-%%dT%%H:%%M:%%fZ','now'))
		)`, localTable(entityType))
		if _, err := d.sql.Exec(stmt); err != nil {
			return fmt.Errorf("create table for %s: %w", entityType, err)
		}
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS outbox_operations (
			operation_id TEXT PRIMARY KEY,
			entity_type TEXT NOT NULL,
			action TEXT NOT NULL,
			payload TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			reason TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_outbox_pending
			ON outbox_operations (created_at) WHERE status = 'pending'`,
		`CREATE TABLE IF NOT EXISTS sync_state (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := d.sql.Exec(stmt); err != nil {
			return fmt.Errorf("create sync schema: %w", err)
		}
	}
	return nil
}

// ApplyChange applies one pulled change to the local replica. Idempotent:
// replaying a page after a crash converges to the same state. Changes for
// entity types this build does not know are skipped, so an older app keeps
// syncing after the server gains new types.
func (d *DB) ApplyChange(ctx context.Context, change syncwire.Change) error {
	if _, ok := syncwire.Lookup(change.EntityType); !ok {
		logger.Debug(ctx, "skipping unknown entity type", "entity_type", change.EntityType)
		return nil
	}

	entityID, err := payloadID(change.Payload)
	if err != nil {
		return fmt.Errorf("change for %s: %w", change.EntityType, err)
	}

	switch change.Action {
	case syncwire.ActionCreate, syncwire.ActionUpdate:
		return d.upsert(ctx, change.EntityType, entityID, change.Payload)
	case syncwire.ActionDelete:
		return d.delete(ctx, change.EntityType, entityID)
	default:
		return fmt.Errorf("unknown action %q", change.Action)
	}
}

// Get returns the stored document for an entity, or ok=false.
func (d *DB) Get(ctx context.Context, entityType, entityID string) (json.RawMessage, bool, error) {
	if _, ok := syncwire.Lookup(entityType); !ok {
		return nil, false, fmt.Errorf("unknown entity type %q", entityType)
	}

	var data string
	err := d.sql.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT data FROM %s WHERE id = ?`, localTable(entityType)),
		entityID,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s/%s: %w", entityType, entityID, err)
	}
	return json.RawMessage(data), true, nil
}

func (d *DB) upsert(ctx context.Context, entityType, entityID string, payload json.RawMessage) error {
	stmt := fmt.Sprintf(`INSERT INTO %s (id, data, updated_at)
		VALUES (?, ?, strftime('%%Y-%%m-%%dT%%H:%%M:%%fZ','now'))
		ON CONFLICT (id) DO UPDATE SET
			data = excluded.data,
			updated_at = excluded.updated_at`, localTable(entityType))
	if _, err := d.sql.ExecContext(ctx, stmt, entityID, string(payload)); err != nil {
		return fmt.Errorf("upsert %s/%s: %w", entityType, entityID, err)
	}
	return nil
}

func (d *DB) delete(ctx context.Context, entityType, entityID string) error {
	stmt := fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, localTable(entityType))
	if _, err := d.sql.ExecContext(ctx, stmt, entityID); err != nil {
		return fmt.Errorf("delete %s/%s: %w", entityType, entityID, err)
	}
	return nil
}

// localTable maps an entity type to its replica table name.
func localTable(entityType string) string {
	return "synced_" + entityType
}

// payloadID pulls the row id out of a change payload.
func payloadID(payload json.RawMessage) (string, error) {
	var probe struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return "", fmt.Errorf("decode payload: %w", err)
	}
	if probe.ID == "" {
		return "", fmt.Errorf("payload has no id")
	}
	return probe.ID, nil
}
