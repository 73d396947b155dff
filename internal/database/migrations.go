package database

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
)

// migration pairs a stable name with the SQL to apply. Applied in order,
// tracked in schema_migrations so restarts are safe.
type migration struct {
	name string
	sql  string
}

var migrations = []migration{
	{
		name: "001_staff",
		sql: `
CREATE TABLE IF NOT EXISTS staff (
	id              UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	username        TEXT NOT NULL UNIQUE,
	full_name       TEXT NOT NULL,
	hashed_password TEXT NOT NULL,
	role            TEXT NOT NULL CHECK (role IN ('WAITER', 'MANAGER', 'ADMIN')),
	is_active       BOOLEAN NOT NULL DEFAULT true,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	},
	{
		name: "002_tables",
		sql: `
CREATE TABLE IF NOT EXISTS tables (
	id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	label      TEXT NOT NULL UNIQUE,
	occupied   BOOLEAN NOT NULL DEFAULT false,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	},
	{
		name: "003_menu_items",
		sql: `
CREATE TABLE IF NOT EXISTS menu_items (
	id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	name        TEXT NOT NULL UNIQUE,
	price       NUMERIC(8,2) NOT NULL CHECK (price >= 0),
	available   BOOLEAN NOT NULL DEFAULT true,
	external_id INTEGER,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	},
	{
		name: "004_orders",
		sql: `
CREATE SEQUENCE IF NOT EXISTS order_code_seq;

CREATE TABLE IF NOT EXISTS orders (
	id              UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	code            TEXT NOT NULL UNIQUE,
	table_id        UUID NOT NULL REFERENCES tables(id),
	staff_id        UUID NOT NULL REFERENCES staff(id),
	state           TEXT NOT NULL DEFAULT 'DRAFT' CHECK (state IN
		('DRAFT', 'STOCK_PENDING', 'IN_KITCHEN', 'READY', 'DELIVERED', 'CANCELLED')),
	kitchen_note    TEXT,
	discount_pct    NUMERIC(5,2) NOT NULL DEFAULT 0 CHECK (discount_pct >= 0 AND discount_pct <= 100),
	reservation_id  TEXT,
	stock_validated BOOLEAN NOT NULL DEFAULT false,
	stock_consumed  BOOLEAN NOT NULL DEFAULT false,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	sent_at         TIMESTAMPTZ,
	delivered_at    TIMESTAMPTZ,
	cancelled_at    TIMESTAMPTZ,
	cancel_reason   TEXT
);

CREATE INDEX IF NOT EXISTS idx_orders_table_state ON orders(table_id, state)`,
	},
	{
		name: "005_order_lines",
		sql: `
CREATE TABLE IF NOT EXISTS order_lines (
	id       UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	order_id UUID NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
	item_id  UUID NOT NULL REFERENCES menu_items(id) ON DELETE RESTRICT,
	quantity INTEGER NOT NULL CHECK (quantity >= 1 AND quantity <= 20),
	note     TEXT NOT NULL DEFAULT '',
	UNIQUE (order_id, item_id, note)
)`,
	},
}

// Migrate applies all pending migrations.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name       TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	applied := make(map[string]bool)
	rows, err := pool.Query(ctx, `SELECT name FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("list applied migrations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		applied[name] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, m := range migrations {
		if applied[m.name] {
			continue
		}
		tx, err := pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", m.name, err)
		}
		if _, err := tx.Exec(ctx, m.sql); err != nil {
			tx.Rollback(ctx)
			return fmt.Errorf("apply migration %s: %w", m.name, err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, m.name); err != nil {
			tx.Rollback(ctx)
			return fmt.Errorf("record migration %s: %w", m.name, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit migration %s: %w", m.name, err)
		}
		log.Printf("applied migration %s", m.name)
	}
	return nil
}
