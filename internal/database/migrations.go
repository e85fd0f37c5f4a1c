package database

import (
	"context"
	"fmt"
)

// migrations are applied in order at startup. Statements must be idempotent.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS domains (
		id            BIGSERIAL PRIMARY KEY,
		registrar_id  VARCHAR(50),
		name          VARCHAR(255) NOT NULL,
		owner         VARCHAR(255),
		registered_on VARCHAR(20),
		is_expired    BOOLEAN NOT NULL DEFAULT FALSE,
		is_locked     BOOLEAN NOT NULL DEFAULT FALSE,
		auto_renew    BOOLEAN NOT NULL DEFAULT FALSE,
		whois_guard   VARCHAR(50),
		is_premium    BOOLEAN,
		uses_own_dns  BOOLEAN,
		expiry_date   DATE NOT NULL,
		name_server1  VARCHAR(255),
		name_server2  VARCHAR(255),
		blocked       BOOLEAN NOT NULL DEFAULT FALSE,
		description   TEXT,
		category      VARCHAR(10),
		is_used       BOOLEAN NOT NULL DEFAULT FALSE,
		is_defense    BOOLEAN NOT NULL DEFAULT FALSE,
		is_link_alt   BOOLEAN NOT NULL DEFAULT FALSE,
		group_id      BIGINT,
		active        BOOLEAN NOT NULL DEFAULT TRUE,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_domains_registrar_id
		ON domains (registrar_id) WHERE registrar_id IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS idx_domains_name ON domains (name)`,
	`CREATE INDEX IF NOT EXISTS idx_domains_is_used ON domains (is_used)`,
	`CREATE TABLE IF NOT EXISTS sync_log (
		id        BIGSERIAL PRIMARY KEY,
		kind      SMALLINT NOT NULL,
		timestamp TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sync_log_kind_ts ON sync_log (kind, timestamp DESC)`,
}

// Migrate creates the schema if it does not exist yet.
func (d *DB) Migrate(ctx context.Context) error {
	for i, stmt := range migrations {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration %d: %w", i+1, err)
		}
	}
	d.logger.Info("Database schema up to date")
	return nil
}
