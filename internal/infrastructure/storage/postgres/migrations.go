package postgres

import (
	"context"
	"fmt"

	"varejo/pkg/logger"
)

// schema is applied on startup. Statements are idempotent so repeated boots
// against the same database are safe; real schema changes ship as new
// statements appended here.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS cat_products (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		sku TEXT NOT NULL DEFAULT '',
		barcode TEXT NOT NULL DEFAULT '',
		sale_price NUMERIC(15,2) NOT NULL DEFAULT 0,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS cat_product_units (
		id UUID PRIMARY KEY,
		product_id UUID NOT NULL,
		name TEXT NOT NULL,
		factor_to_base BIGINT NOT NULL DEFAULT 1
	)`,
	`CREATE INDEX IF NOT EXISTS idx_product_units_product ON cat_product_units (product_id)`,

	`CREATE TABLE IF NOT EXISTS cat_customers (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		document TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS cat_suppliers (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		document TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS cat_accounts (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		kind TEXT NOT NULL DEFAULT 'CASH',
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS doc_sales (
		id UUID PRIMARY KEY,
		customer_id UUID,
		date TIMESTAMPTZ NOT NULL,
		status TEXT NOT NULL DEFAULT 'DRAFT',
		coupon_number BIGINT,
		total NUMERIC(15,2) NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sales_status ON doc_sales (status)`,

	`CREATE TABLE IF NOT EXISTS doc_sale_items (
		id UUID PRIMARY KEY,
		sale_id UUID NOT NULL,
		product_id UUID NOT NULL,
		unit_id UUID NOT NULL,
		qty NUMERIC(15,3) NOT NULL,
		unit_price NUMERIC(15,2) NOT NULL,
		total NUMERIC(15,2) NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sale_items_sale ON doc_sale_items (sale_id)`,

	`CREATE TABLE IF NOT EXISTS reg_inventory_movements (
		id UUID PRIMARY KEY,
		product_id UUID NOT NULL,
		direction TEXT NOT NULL,
		qty_base BIGINT NOT NULL,
		reason_type TEXT NOT NULL,
		reason_id UUID NOT NULL,
		date TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_movements_product ON reg_inventory_movements (product_id, date)`,

	`CREATE TABLE IF NOT EXISTS reg_cost_lots (
		id UUID PRIMARY KEY,
		product_id UUID NOT NULL,
		qty_initial_base BIGINT NOT NULL,
		qty_remaining_base BIGINT NOT NULL,
		unit_cost_base NUMERIC(15,6) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		CHECK (qty_remaining_base >= 0)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_cost_lots_open
		ON reg_cost_lots (product_id, created_at) WHERE qty_remaining_base > 0`,

	`CREATE TABLE IF NOT EXISTS reg_finance_entries (
		id UUID PRIMARY KEY,
		type TEXT NOT NULL,
		account_id UUID NOT NULL,
		amount NUMERIC(15,2) NOT NULL,
		status TEXT NOT NULL DEFAULT 'OPEN',
		paid_at TIMESTAMPTZ,
		notes TEXT NOT NULL DEFAULT ''
	)`,

	`CREATE TABLE IF NOT EXISTS reg_receivables (
		id UUID PRIMARY KEY,
		sale_id UUID NOT NULL,
		customer_id UUID NOT NULL,
		installment_no INT NOT NULL,
		due_date TIMESTAMPTZ NOT NULL,
		amount NUMERIC(15,2) NOT NULL,
		status TEXT NOT NULL DEFAULT 'OPEN',
		kind TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_receivables_customer ON reg_receivables (customer_id, due_date)`,

	`CREATE TABLE IF NOT EXISTS reg_payments (
		id UUID PRIMARY KEY,
		sale_id UUID NOT NULL,
		method TEXT NOT NULL,
		amount NUMERIC(15,2) NOT NULL,
		account_id UUID NOT NULL,
		date TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_payments_sale ON reg_payments (sale_id)`,

	`CREATE TABLE IF NOT EXISTS sys_sequences (
		key TEXT PRIMARY KEY,
		current_val BIGINT NOT NULL DEFAULT 0
	)`,

	`CREATE TABLE IF NOT EXISTS sys_devices (
		device_id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		secret_hash TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		last_seen_at TIMESTAMPTZ
	)`,

	`CREATE TABLE IF NOT EXISTS sys_applied_operations (
		operation_id TEXT PRIMARY KEY,
		device_id TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS sys_changelog (
		seq BIGSERIAL PRIMARY KEY,
		origin TEXT NOT NULL DEFAULT '',
		entity_type TEXT NOT NULL,
		action TEXT NOT NULL,
		payload BYTEA NOT NULL,
		compressed BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_changelog_origin ON sys_changelog (origin, seq)`,
}

// Migrate applies the schema to the connected database.
func Migrate(ctx context.Context, pool *Pool) error {
	for i, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i, err)
		}
	}
	logger.Info(ctx, "schema up to date", "statements", len(schema))
	return nil
}
