package store

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS vehicles (
	vehicle_id   TEXT PRIMARY KEY,
	name         TEXT NOT NULL DEFAULT '',
	gateway_addr TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS users (
	username      TEXT PRIMARY KEY,
	password_hash BLOB NOT NULL,
	created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS audit_log (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	kind       TEXT NOT NULL,
	vehicle_id TEXT NOT NULL,
	principal  TEXT NOT NULL DEFAULT '',
	payload    TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_vehicle ON audit_log(vehicle_id, created_at);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS vehicles (
	vehicle_id   TEXT PRIMARY KEY,
	name         TEXT NOT NULL DEFAULT '',
	gateway_addr TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS users (
	username      TEXT PRIMARY KEY,
	password_hash BYTEA NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS audit_log (
	id         BIGSERIAL PRIMARY KEY,
	kind       TEXT NOT NULL,
	vehicle_id TEXT NOT NULL,
	principal  TEXT NOT NULL DEFAULT '',
	payload    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_vehicle ON audit_log(vehicle_id, created_at);
`
