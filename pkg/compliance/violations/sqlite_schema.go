package violations

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema creates the violation tables.
const Schema = `
CREATE TABLE IF NOT EXISTS violations (
    id TEXT PRIMARY KEY,
    rule_id TEXT NOT NULL,
    type TEXT NOT NULL,
    severity TEXT NOT NULL,
    tenant_id TEXT,
    timestamp INTEGER NOT NULL,
    resolved BOOLEAN NOT NULL DEFAULT 0,
    body TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_violations_rule_id ON violations(rule_id);
CREATE INDEX IF NOT EXISTS idx_violations_type ON violations(type);
CREATE INDEX IF NOT EXISTS idx_violations_tenant_id ON violations(tenant_id);
CREATE INDEX IF NOT EXISTS idx_violations_timestamp ON violations(timestamp);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`

// InsertSchemaVersion records the schema version.
const InsertSchemaVersion = `INSERT OR IGNORE INTO schema_version (version) VALUES (?)`

// GetSchemaVersion returns the latest applied schema version.
const GetSchemaVersion = `SELECT MAX(version) FROM schema_version`

const upsertViolation = `
INSERT INTO violations (id, rule_id, type, severity, tenant_id, timestamp, resolved, body)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    rule_id = excluded.rule_id,
    type = excluded.type,
    severity = excluded.severity,
    tenant_id = excluded.tenant_id,
    timestamp = excluded.timestamp,
    resolved = excluded.resolved,
    body = excluded.body
`
