package ledger

// SchemaVersion is the current ledger schema version. A mismatch on open
// aborts startup rather than risking a silent misread of billing data.
const SchemaVersion = 1

// Schema creates the ledger tables. Timestamps are stored as Unix
// seconds so comparisons stay cheap and timezone-free inside SQL.
const Schema = `
CREATE TABLE IF NOT EXISTS rate_limit_windows (
	subject_id    TEXT    NOT NULL,
	window_type   TEXT    NOT NULL,
	limit_value   INTEGER NOT NULL,
	current_usage INTEGER NOT NULL DEFAULT 0,
	reset_at      INTEGER NOT NULL,
	created_at    INTEGER NOT NULL,
	updated_at    INTEGER NOT NULL,
	PRIMARY KEY (subject_id, window_type)
);

CREATE INDEX IF NOT EXISTS idx_rate_limit_windows_updated_at
	ON rate_limit_windows (updated_at);

CREATE TABLE IF NOT EXISTS schema_version (
	version    INTEGER PRIMARY KEY,
	applied_at INTEGER NOT NULL
);
`

const insertSchemaVersion = `
INSERT OR IGNORE INTO schema_version (version, applied_at) VALUES (?, ?)
`

const getSchemaVersion = `
SELECT MAX(version) FROM schema_version
`
