package catalog

import (
	"context"
	"database/sql"
	"fmt"
)

// postgresSchema is the authoritative schema for production deployments.
var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS tenants (
		id         VARCHAR(64) PRIMARY KEY,
		slug       VARCHAR(255) NOT NULL UNIQUE,
		name       VARCHAR(255) NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS projects (
		id           VARCHAR(64) PRIMARY KEY,
		tenant_id    VARCHAR(64) NOT NULL REFERENCES tenants(id),
		slug         VARCHAR(255) NOT NULL,
		impact_level VARCHAR(8) NOT NULL,
		created_at   TIMESTAMP NOT NULL DEFAULT NOW(),
		UNIQUE (tenant_id, slug)
	)`,
	`CREATE TABLE IF NOT EXISTS assets (
		id           VARCHAR(64) PRIMARY KEY,
		tenant_id    VARCHAR(64) NOT NULL REFERENCES tenants(id),
		slug         VARCHAR(255) NOT NULL,
		type         VARCHAR(32) NOT NULL,
		display_name VARCHAR(255) NOT NULL,
		description  TEXT NOT NULL DEFAULT '',
		created_at   TIMESTAMP NOT NULL DEFAULT NOW(),
		UNIQUE (tenant_id, slug)
	)`,
	`CREATE TABLE IF NOT EXISTS asset_versions (
		id             VARCHAR(64) PRIMARY KEY,
		asset_id       VARCHAR(64) NOT NULL REFERENCES assets(id),
		version        INTEGER NOT NULL,
		status         VARCHAR(32) NOT NULL,
		tier           VARCHAR(32) NOT NULL,
		impact_min     VARCHAR(8) NOT NULL,
		impact_max     VARCHAR(8) NOT NULL,
		content_digest VARCHAR(64) NOT NULL,
		created_by     VARCHAR(255) NOT NULL,
		created_at     TIMESTAMP NOT NULL DEFAULT NOW(),
		updated_at     TIMESTAMP NOT NULL DEFAULT NOW(),
		promote_seq    BIGINT NOT NULL,
		UNIQUE (asset_id, version),
		UNIQUE (promote_seq)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_asset_versions_status ON asset_versions(status)`,
	`CREATE INDEX IF NOT EXISTS idx_asset_versions_promote_seq ON asset_versions(promote_seq)`,
	`CREATE TABLE IF NOT EXISTS scan_results (
		id           BIGSERIAL PRIMARY KEY,
		version_id   VARCHAR(64) NOT NULL REFERENCES asset_versions(id),
		gate         VARCHAR(32) NOT NULL,
		verdict      VARCHAR(16) NOT NULL,
		findings     TEXT NOT NULL DEFAULT '[]',
		error        TEXT NOT NULL DEFAULT '',
		started_at   TIMESTAMP NOT NULL,
		completed_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_scan_results_version ON scan_results(version_id)`,
	`CREATE TABLE IF NOT EXISTS review_records (
		id           BIGSERIAL PRIMARY KEY,
		version_id   VARCHAR(64) NOT NULL REFERENCES asset_versions(id),
		tenant_id    VARCHAR(64) NOT NULL,
		submitted_by VARCHAR(255) NOT NULL,
		decision     VARCHAR(16) NOT NULL DEFAULT 'pending',
		reviewer     VARCHAR(255),
		rationale    TEXT,
		submitted_at TIMESTAMP NOT NULL DEFAULT NOW(),
		decided_at   TIMESTAMP
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_review_pending_version
		ON review_records(version_id) WHERE decision = 'pending'`,
	`CREATE TABLE IF NOT EXISTS installations (
		id            VARCHAR(64) PRIMARY KEY,
		tenant_id     VARCHAR(64) NOT NULL,
		project_id    VARCHAR(64) NOT NULL,
		asset_id      VARCHAR(64) NOT NULL,
		version_id    VARCHAR(64) NOT NULL REFERENCES asset_versions(id),
		installed_by  VARCHAR(255) NOT NULL,
		installed_at  TIMESTAMP NOT NULL DEFAULT NOW(),
		superseded_at TIMESTAMP
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_installations_active
		ON installations(project_id, asset_id) WHERE superseded_at IS NULL`,
	`CREATE TABLE IF NOT EXISTS sync_states (
		tenant_id         VARCHAR(64) PRIMARY KEY,
		promote_watermark BIGINT NOT NULL DEFAULT 0,
		pull_watermark    BIGINT NOT NULL DEFAULT 0,
		updated_at        TIMESTAMP NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS provenance_records (
		id          BIGSERIAL PRIMARY KEY,
		version_id  VARCHAR(64) NOT NULL,
		seq         INTEGER NOT NULL,
		kind        VARCHAR(32) NOT NULL,
		payload     BYTEA NOT NULL,
		prev_digest VARCHAR(64) NOT NULL,
		digest      VARCHAR(64) NOT NULL,
		signature   TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMP NOT NULL DEFAULT NOW(),
		UNIQUE (version_id, seq)
	)`,
}

// sqliteSchema mirrors the postgres schema for local development and the CLI's
// standalone mode.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS tenants (
		id         TEXT PRIMARY KEY,
		slug       TEXT NOT NULL UNIQUE,
		name       TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS projects (
		id           TEXT PRIMARY KEY,
		tenant_id    TEXT NOT NULL REFERENCES tenants(id),
		slug         TEXT NOT NULL,
		impact_level TEXT NOT NULL,
		created_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (tenant_id, slug)
	)`,
	`CREATE TABLE IF NOT EXISTS assets (
		id           TEXT PRIMARY KEY,
		tenant_id    TEXT NOT NULL REFERENCES tenants(id),
		slug         TEXT NOT NULL,
		type         TEXT NOT NULL,
		display_name TEXT NOT NULL,
		description  TEXT NOT NULL DEFAULT '',
		created_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (tenant_id, slug)
	)`,
	`CREATE TABLE IF NOT EXISTS asset_versions (
		id             TEXT PRIMARY KEY,
		asset_id       TEXT NOT NULL REFERENCES assets(id),
		version        INTEGER NOT NULL,
		status         TEXT NOT NULL,
		tier           TEXT NOT NULL,
		impact_min     TEXT NOT NULL,
		impact_max     TEXT NOT NULL,
		content_digest TEXT NOT NULL,
		created_by     TEXT NOT NULL,
		created_at     TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at     TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		promote_seq    INTEGER NOT NULL,
		UNIQUE (asset_id, version),
		UNIQUE (promote_seq)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_asset_versions_status ON asset_versions(status)`,
	`CREATE INDEX IF NOT EXISTS idx_asset_versions_promote_seq ON asset_versions(promote_seq)`,
	`CREATE TABLE IF NOT EXISTS scan_results (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		version_id   TEXT NOT NULL REFERENCES asset_versions(id),
		gate         TEXT NOT NULL,
		verdict      TEXT NOT NULL,
		findings     TEXT NOT NULL DEFAULT '[]',
		error        TEXT NOT NULL DEFAULT '',
		started_at   TIMESTAMP NOT NULL,
		completed_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_scan_results_version ON scan_results(version_id)`,
	`CREATE TABLE IF NOT EXISTS review_records (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		version_id   TEXT NOT NULL REFERENCES asset_versions(id),
		tenant_id    TEXT NOT NULL,
		submitted_by TEXT NOT NULL,
		decision     TEXT NOT NULL DEFAULT 'pending',
		reviewer     TEXT,
		rationale    TEXT,
		submitted_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		decided_at   TIMESTAMP
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_review_pending_version
		ON review_records(version_id) WHERE decision = 'pending'`,
	`CREATE TABLE IF NOT EXISTS installations (
		id            TEXT PRIMARY KEY,
		tenant_id     TEXT NOT NULL,
		project_id    TEXT NOT NULL,
		asset_id      TEXT NOT NULL,
		version_id    TEXT NOT NULL REFERENCES asset_versions(id),
		installed_by  TEXT NOT NULL,
		installed_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		superseded_at TIMESTAMP
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_installations_active
		ON installations(project_id, asset_id) WHERE superseded_at IS NULL`,
	`CREATE TABLE IF NOT EXISTS sync_states (
		tenant_id         TEXT PRIMARY KEY,
		promote_watermark INTEGER NOT NULL DEFAULT 0,
		pull_watermark    INTEGER NOT NULL DEFAULT 0,
		updated_at        TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS provenance_records (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		version_id  TEXT NOT NULL,
		seq         INTEGER NOT NULL,
		kind        TEXT NOT NULL,
		payload     BLOB NOT NULL,
		prev_digest TEXT NOT NULL,
		digest      TEXT NOT NULL,
		signature   TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (version_id, seq)
	)`,
}

// Migrate applies the schema for the given driver. Statements are idempotent so
// repeated startup is safe.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	var stmts []string
	switch driver {
	case "postgres":
		stmts = postgresSchema
	case "sqlite3":
		stmts = sqliteSchema
	default:
		return fmt.Errorf("unsupported database driver %q", driver)
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply migration: %w", err)
		}
	}
	return nil
}
