// ABOUTME: SQLite database schema for the reference store
// ABOUTME: Reference vectors per embedding model plus a build manifest table
package sqlite

// Schema contains all SQL statements for database initialization
const Schema = `
-- One row per reference image, vectors stored as little-endian float64 BLOBs
CREATE TABLE IF NOT EXISTS reference_entries (
    id TEXT PRIMARY KEY,
    model TEXT NOT NULL,
    position INTEGER NOT NULL,
    label TEXT NOT NULL,
    artwork_id TEXT,
    slug TEXT,
    image_url TEXT,
    dimension INTEGER NOT NULL,
    vector BLOB NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (model, position)
);

CREATE INDEX IF NOT EXISTS idx_reference_entries_model ON reference_entries(model, position);
CREATE INDEX IF NOT EXISTS idx_reference_entries_label ON reference_entries(label);

-- Last successful build per model
CREATE TABLE IF NOT EXISTS reference_builds (
    model TEXT PRIMARY KEY,
    entries INTEGER NOT NULL,
    artworks INTEGER NOT NULL,
    dimension INTEGER NOT NULL,
    built_at DATETIME NOT NULL
);
`
