package storage

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema creates the audit tables. Durations are stored in microseconds
// and timestamps as RFC 3339 text with nanoseconds in UTC, so both
// drivers read them back identically.
const Schema = `
CREATE TABLE IF NOT EXISTS relay_audit (
    id TEXT PRIMARY KEY,
    request_id TEXT NOT NULL,
    recorded_at TEXT NOT NULL,
    method TEXT NOT NULL,
    path TEXT NOT NULL,
    outcome TEXT NOT NULL,
    error_kind TEXT,
    upstream_status INTEGER NOT NULL DEFAULT 0,
    upstream_latency_us INTEGER NOT NULL DEFAULT 0,
    duration_us INTEGER NOT NULL DEFAULT 0,
    message_count INTEGER NOT NULL DEFAULT 0,
    request_hash TEXT,
    request_bytes INTEGER NOT NULL DEFAULT 0,
    response_bytes INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_relay_audit_recorded_at ON relay_audit(recorded_at);
CREATE INDEX IF NOT EXISTS idx_relay_audit_outcome ON relay_audit(outcome);
CREATE INDEX IF NOT EXISTS idx_relay_audit_request_id ON relay_audit(request_id);
`

// InsertSchemaVersion records the schema version.
const InsertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING;
`

// GetSchemaVersion retrieves the current schema version.
const GetSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`

const insertRecord = `
INSERT INTO relay_audit (
    id, request_id, recorded_at, method, path,
    outcome, error_kind,
    upstream_status, upstream_latency_us, duration_us,
    message_count, request_hash, request_bytes, response_bytes
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const selectColumns = `
SELECT id, request_id, recorded_at, method, path,
    outcome, error_kind,
    upstream_status, upstream_latency_us, duration_us,
    message_count, request_hash, request_bytes, response_bytes
FROM relay_audit`
