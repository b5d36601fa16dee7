package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// DBLogger appends audit events to the audit_events table.
type DBLogger struct {
	db *sql.DB
}

// NewDBLogger creates a database-backed audit logger and ensures the
// audit_events table exists.
func NewDBLogger(db *sql.DB) (*DBLogger, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	l := &DBLogger{db: db}
	if err := l.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure audit_events table: %w", err)
	}
	return l, nil
}

func (l *DBLogger) ensureTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS audit_events (
		id BIGSERIAL PRIMARY KEY,
		timestamp TIMESTAMP WITH TIME ZONE NOT NULL,
		actor VARCHAR(255) NOT NULL,
		tenant_id VARCHAR(255),
		action VARCHAR(100) NOT NULL,
		subject VARCHAR(255) NOT NULL,
		outcome VARCHAR(20) NOT NULL,
		message TEXT,
		request_id VARCHAR(100),
		metadata JSONB
	);
	CREATE INDEX IF NOT EXISTS idx_audit_events_timestamp ON audit_events(timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_audit_events_subject ON audit_events(subject);
	CREATE INDEX IF NOT EXISTS idx_audit_events_tenant ON audit_events(tenant_id);
	`
	_, err := l.db.Exec(query)
	return err
}

// Log appends an audit event. Events are never updated or deleted.
func (l *DBLogger) Log(ctx context.Context, event *Event) error {
	var metadataJSON []byte
	var err error
	if event.Metadata != nil {
		metadataJSON, err = json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	query := `
		INSERT INTO audit_events (timestamp, actor, tenant_id, action, subject, outcome, message, request_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = l.db.ExecContext(ctx, query,
		event.Timestamp, event.Actor, nullable(event.TenantID), event.Action,
		event.Subject, event.Outcome, nullable(event.Message),
		nullable(event.RequestID), metadataJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

// Close is a no-op; the DB connection is owned by the caller.
func (l *DBLogger) Close() error { return nil }

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
