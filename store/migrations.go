package store

import "database/sql"

// migrations contains the SQL statements to set up the database schema.
// These run on open to ensure tables exist.
const migrationSchema = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    entityset TEXT NOT NULL,
    target TEXT NOT NULL,
    max_depth INTEGER NOT NULL,
    num_rows INTEGER NOT NULL,
    num_features INTEGER NOT NULL,
    matrix_csv TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS run_features (
    run_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    name TEXT NOT NULL,
    entity TEXT NOT NULL,
    kind TEXT NOT NULL,
    depth INTEGER NOT NULL,
    primitive TEXT NOT NULL,
    PRIMARY KEY (run_id, position),
    FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_run_features_run_id ON run_features(run_id);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(migrationSchema)
	return err
}
