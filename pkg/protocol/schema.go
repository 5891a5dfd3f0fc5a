package protocol

// SchemaDDL defines the SQLite schema for the metadata cache.
// One row per server base URL holds the last successfully fetched metadata.
// Execute against a SQLite database with: db.Exec(SchemaDDL)
const SchemaDDL = `
CREATE TABLE IF NOT EXISTS metadata_cache (
    base_url TEXT PRIMARY KEY,
    payload BLOB NOT NULL,
    version TEXT NOT NULL DEFAULT '',
    fetched_at TEXT NOT NULL DEFAULT (datetime('now'))
);
`
