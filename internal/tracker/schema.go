package tracker

// createSchemaSQL is the DDL for the schema_migrations ledger table.
// applied_at is set by the store at insertion time, never by the caller.
const createSchemaSQL = `CREATE TABLE IF NOT EXISTS schema_migrations (
    version      TEXT PRIMARY KEY,
    filename     TEXT NOT NULL,
    checksum     TEXT NOT NULL,
    applied_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    duration_ms  INTEGER NOT NULL
)`
