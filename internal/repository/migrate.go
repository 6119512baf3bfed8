package repository

import (
	"context"
	"strings"

	"entgo.io/ent/dialect"
)

const (
	tableGuides = "seller_guides"
	tableOrders = "parsed_orders"
)

// ddl is written once with postgres types; sqlite gets a rewritten copy.
var ddl = []string{
	`CREATE TABLE IF NOT EXISTS seller_guides (
		id              TEXT PRIMARY KEY,
		seller_name     TEXT NOT NULL DEFAULT '',
		guide_text      TEXT NOT NULL,
		profile_json    TEXT NOT NULL,
		products_count  INTEGER NOT NULL DEFAULT 0,
		created_at      BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_seller_guides_created_at ON seller_guides (created_at)`,
	`CREATE TABLE IF NOT EXISTS parsed_orders (
		id               TEXT PRIMARY KEY,
		guide_id         TEXT REFERENCES seller_guides (id),
		raw_text         TEXT NOT NULL,
		order_json       TEXT NOT NULL DEFAULT '{}',
		validation_json  TEXT NOT NULL DEFAULT '{}',
		customer_name    TEXT,
		contact_number   TEXT,
		expected_amount  INTEGER NOT NULL DEFAULT 0,
		total_amount     INTEGER NOT NULL DEFAULT 0,
		confidence       DOUBLE PRECISION NOT NULL DEFAULT 0,
		status           TEXT NOT NULL,
		created_at       BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_parsed_orders_guide_id ON parsed_orders (guide_id)`,
	`CREATE INDEX IF NOT EXISTS idx_parsed_orders_created_at ON parsed_orders (created_at)`,
}

var sqliteTypes = strings.NewReplacer(
	"DOUBLE PRECISION", "REAL",
	"BIGINT", "INTEGER",
)

// Migrate creates the tables when missing. Safe to run on every start.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range ddl {
		if s.dialect != dialect.Postgres {
			stmt = sqliteTypes.Replace(stmt)
		}
		if _, err := s.exec(ctx, stmt, []any{}); err != nil {
			s.logger.Error("repo.migrate.failed", "error", err)
			return err
		}
	}
	s.logger.Info("repo.migrate.ok", "dialect", s.dialect, "statements", len(ddl))
	return nil
}
